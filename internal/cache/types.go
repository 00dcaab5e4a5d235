// Package cache implements the per-process thread and message cache: the
// single owner of every Thread/Message, reconciliation of pending ids to
// backend-assigned ones, and idle eviction. It is mutated only from the
// event-loop task (see internal/tui), so none of its operations take a lock.
package cache

import "time"

// ThreadType distinguishes a conversational thread from one that edits a
// working directory's files.
type ThreadType string

const (
	ThreadConversation ThreadType = "conversation"
	ThreadProgramming  ThreadType = "programming"
)

// PermissionMode is a thread's permission mode: default, plan or execution.
// The value is sent unchanged on both the mode and the permission sync legs;
// no translation to the normal/exec thread-mode spelling is applied.
type PermissionMode string

const (
	PermissionDefault PermissionMode = "default"
	PermissionPlan    PermissionMode = "plan"
	PermissionExec    PermissionMode = "execution"
)

// PlanState is a thread's plan-approval lifecycle.
type PlanState string

const (
	PlanNone     PlanState = "none"
	PlanProposed PlanState = "proposed"
	PlanApproved PlanState = "approved"
	PlanRejected PlanState = "rejected"
)

// Thread is one conversation, identified by a stable string id (possibly a
// client-generated "local-<uuid>" pending id before reconciliation).
type Thread struct {
	ID               string
	Title            string
	Description      string
	ThreadType       ThreadType
	Mode             string
	PermissionMode   PermissionMode
	PrePlanMode      PermissionMode // remembered to restore when a plan is approved/rejected
	PlanState        PlanState
	PlanSummary      string
	MessageCount     int
	WorkingDirectory string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ToolStatus is a ToolEvent's lifecycle state.
type ToolStatus string

const (
	ToolRunning  ToolStatus = "running"
	ToolComplete ToolStatus = "complete"
	ToolFailed   ToolStatus = "failed"
)

// ToolEvent tracks one tool invocation embedded in a message's segment list.
type ToolEvent struct {
	CallID        string
	FunctionName  string
	DisplayName   string
	Status        ToolStatus
	StartedAt     time.Time
	CompletedAt   time.Time
	ArgsJSON      string
	ArgsDisplay   string
	ResultPreview string
	ResultIsError bool
}

// DurationSecs returns the elapsed time between start and completion, or the
// time elapsed so far if the tool is still running.
func (t *ToolEvent) DurationSecs(now time.Time) float64 {
	end := t.CompletedAt
	if end.IsZero() {
		end = now
	}
	return end.Sub(t.StartedAt).Seconds()
}

// SubagentStatus is a SubagentEvent's lifecycle state.
type SubagentStatus string

const (
	SubagentStarted  SubagentStatus = "started"
	SubagentRunning  SubagentStatus = "running"
	SubagentComplete SubagentStatus = "complete"
)

// SubagentEvent tracks one subagent run embedded in a message's segment list.
type SubagentEvent struct {
	SubagentID string
	Name       string
	Status     SubagentStatus
	LastUpdate string
	Summary    string
	IsError    bool
}

// SegmentKind discriminates a MessageSegment's payload, mirroring the
// Type-tagged single-struct shape used for streamed content blocks.
type SegmentKind string

const (
	SegmentText     SegmentKind = "text"
	SegmentTool     SegmentKind = "tool_event"
	SegmentSubagent SegmentKind = "subagent_event"
)

// Segment is one element of a Message's ordered content. Consecutive Text
// segments are merged on append; Tool/Subagent segments are never reordered.
type Segment struct {
	Kind     SegmentKind
	Text     string
	Tool     *ToolEvent
	Subagent *SubagentEvent
}

// Message is one entry in a thread's transcript.
type Message struct {
	ID                 int64
	ThreadID           string
	Role               Role
	Content            string
	PartialContent     string
	ReasoningContent   string
	ReasoningCollapsed bool
	IsStreaming        bool
	Segments           []Segment
	RenderVersion      uint64
}

// ErrorInfo is one inline error banner queued on a thread.
type ErrorInfo struct {
	ID        string
	Code      string
	Message   string
	Timestamp time.Time
}
