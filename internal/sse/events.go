package sse

import "encoding/json"

// EventKind enumerates the closed set of SSE event kinds spoq understands.
type EventKind string

const (
	KindContent            EventKind = "content"
	KindThreadInfo         EventKind = "thread_info"
	KindMessageInfo        EventKind = "message_info"
	KindDone               EventKind = "done"
	KindCancelled          EventKind = "cancelled"
	KindError              EventKind = "error"
	KindPing               EventKind = "ping"
	KindSkillsInjected     EventKind = "skills_injected"
	KindOAuthConsent       EventKind = "oauth_consent_required"
	KindContextCompacted   EventKind = "context_compacted"
	KindToolCallStart      EventKind = "tool_call_start"
	KindToolCallArgument   EventKind = "tool_call_argument"
	KindToolExecuting      EventKind = "tool_executing"
	KindToolResult         EventKind = "tool_result"
	KindReasoning          EventKind = "reasoning"
	KindPermissionRequest  EventKind = "permission_request"
	KindTodosUpdated       EventKind = "todos_updated"
	KindSubagentStarted    EventKind = "subagent_started"
	KindSubagentProgress   EventKind = "subagent_progress"
	KindSubagentCompleted  EventKind = "subagent_completed"
	KindThreadUpdated      EventKind = "thread_updated"
	KindUsage              EventKind = "usage"
	KindPlanningStarted    EventKind = "planning_started"
	KindPlanSummary        EventKind = "plan_summary"
	KindPlanApprovalResult EventKind = "plan_approval_result"
)

// Meta carries the cross-cutting fields present on every event envelope.
type Meta struct {
	Seq       int64  `json:"seq"`
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id"`
	ThreadID  string `json:"thread_id"`
}

// Event is a single typed, metadata-tagged SSE event ready for projection.
type Event struct {
	Kind    EventKind
	Meta    Meta
	Payload any
}

// ContentPayload carries streamed assistant text.
type ContentPayload struct {
	Text string
}

// ReasoningPayload carries streamed thinking text.
type ReasoningPayload struct {
	Text string
}

// ThreadInfoPayload reports the backend-assigned thread id and title.
type ThreadInfoPayload struct {
	ThreadID string `json:"thread_id"`
	Title    string `json:"title"`
}

// MessageInfoPayload carries the finalized message id for the active stream.
type MessageInfoPayload struct {
	MessageID int64 `json:"message_id"`
}

// DonePayload signals the end of a streaming response.
type DonePayload struct{}

// CancelledPayload signals the backend honored a cooperative cancel request.
type CancelledPayload struct{}

// ErrorPayload carries a backend-reported error.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// PingPayload is an empty liveness signal.
type PingPayload struct{}

// SkillsInjectedPayload reports skills made available to the session.
type SkillsInjectedPayload struct {
	Skills []string `json:"skills"`
}

// OAuthConsentPayload signals that the user must complete an OAuth consent flow.
type OAuthConsentPayload struct {
	Provider string `json:"provider"`
	URL      string `json:"url"`
}

// ContextCompactedPayload reports that context was compacted server-side.
type ContextCompactedPayload struct {
	TokensBefore int `json:"tokens_before"`
	TokensAfter  int `json:"tokens_after"`
}

// ToolCallStartPayload begins a tool invocation.
type ToolCallStartPayload struct {
	CallID       string `json:"id"`
	FunctionName string `json:"function_name"`
	DisplayName  string `json:"display_name"`
}

// ToolCallArgumentPayload streams a chunk of a tool call's argument JSON.
type ToolCallArgumentPayload struct {
	CallID string `json:"id"`
	Chunk  string `json:"chunk"`
}

// ToolExecutingPayload reports a tool transitioning to the executing phase.
type ToolExecutingPayload struct {
	CallID      string `json:"id"`
	DisplayName string `json:"display_name"`
}

// ToolResultPayload delivers a tool's final result.
type ToolResultPayload struct {
	CallID  string `json:"id"`
	Result  string `json:"result"`
	IsError bool   `json:"is_error"`
}

// PermissionRequestPayload carries a pending permission prompt.
type PermissionRequestPayload struct {
	PermissionID string          `json:"permission_id"`
	ToolName     string          `json:"tool_name"`
	Description  string          `json:"description"`
	ToolInput    json.RawMessage `json:"tool_input"`
}

// TodoItemPayload is a single todo entry within a TodosUpdatedPayload.
type TodoItemPayload struct {
	Content    string `json:"content"`
	ActiveForm string `json:"active_form"`
	Status     string `json:"status"`
}

// TodosUpdatedPayload replaces the session's todo list.
type TodosUpdatedPayload struct {
	Todos []TodoItemPayload `json:"todos"`
}

// SubagentStartedPayload announces a subagent run beginning.
type SubagentStartedPayload struct {
	SubagentID string `json:"subagent_id"`
	Name       string `json:"name"`
}

// SubagentProgressPayload reports incremental subagent progress.
type SubagentProgressPayload struct {
	SubagentID string `json:"subagent_id"`
	Message    string `json:"message"`
}

// SubagentCompletedPayload reports subagent completion.
type SubagentCompletedPayload struct {
	SubagentID string `json:"subagent_id"`
	Summary    string `json:"summary"`
	IsError    bool   `json:"is_error"`
}

// ThreadUpdatedPayload carries thread metadata changes.
type ThreadUpdatedPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UsagePayload reports context token usage.
type UsagePayload struct {
	TokensUsed  int `json:"tokens_used"`
	TokensLimit int `json:"tokens_limit"`
}

// PlanningStartedPayload marks the beginning of plan construction.
type PlanningStartedPayload struct{}

// PlanSummaryPayload carries a proposed plan for approval.
type PlanSummaryPayload struct {
	Summary string `json:"summary"`
}

// PlanApprovalResultPayload reports the user's (or backend's) plan decision.
type PlanApprovalResultPayload struct {
	Approved bool `json:"approved"`
}
