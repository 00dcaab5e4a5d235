package projector

import (
	"testing"

	"github.com/spoq-dev/spoq/internal/cache"
	"github.com/spoq-dev/spoq/internal/session"
	"github.com/spoq-dev/spoq/internal/sse"
	"github.com/spoq-dev/spoq/internal/testutil"
)

func newFixture() (*Projector, *cache.ThreadCache, *session.State, string) {
	threadCache := cache.NewThreadCache(cache.DefaultIdleEvictAfter)
	sessionState := session.New()
	pending := threadCache.CreatePendingThread("New chat", cache.ThreadConversation)
	threadCache.AppendUserMessage(pending, "hello")
	p := New(threadCache, sessionState, nil)
	return p, threadCache, sessionState, pending
}

func TestProjector_TokenStreamingReconciliation(t *testing.T) {
	p, c, _, pending := newFixture()

	sig := p.Project(&sse.Event{Kind: sse.KindContent, Payload: sse.ContentPayload{Text: "Hel"}}, pending)
	testutil.RequireTrue(t, sig == nil, "content event emits no signal")
	p.Project(&sse.Event{Kind: sse.KindContent, Payload: sse.ContentPayload{Text: "lo"}}, pending)

	msgs := c.Messages(pending)
	streaming := msgs[len(msgs)-1]
	testutil.RequireEqual(t, streaming.PartialContent, "Hello", "tokens accumulate in order")
	testutil.RequireTrue(t, streaming.IsStreaming, "message still streaming before done")

	sig = p.Project(&sse.Event{Kind: sse.KindThreadInfo, Payload: sse.ThreadInfoPayload{ThreadID: "real-1", Title: "Hello there"}}, pending)
	testutil.RequireTrue(t, sig != nil, "thread_info on a pending thread must emit a signal")
	testutil.RequireEqual(t, sig.Kind, SignalThreadCreated, "signal kind")
	testutil.RequireEqual(t, sig.ThreadCreated.RealID, "real-1", "reconciled real id")

	testutil.RequireTrue(t, c.Thread(pending) == nil, "pending id must no longer resolve directly")
	resolved := c.Thread("real-1")
	testutil.RequireTrue(t, resolved != nil, "real id must resolve after reconcile")
	testutil.RequireEqual(t, resolved.Title, "Hello there", "title carried through reconcile")

	p.Project(&sse.Event{Kind: sse.KindMessageInfo, Payload: sse.MessageInfoPayload{MessageID: 7}}, "real-1")
	sig = p.Project(&sse.Event{Kind: sse.KindDone, Payload: sse.DonePayload{}}, "real-1")
	testutil.RequireTrue(t, sig != nil, "done must emit a signal")
	testutil.RequireEqual(t, sig.Kind, SignalStreamComplete, "done signal kind")

	finalMsgs := c.Messages("real-1")
	final := finalMsgs[len(finalMsgs)-1]
	testutil.RequireEqual(t, final.IsStreaming, false, "message finalized")
	testutil.RequireEqual(t, final.Content, "Hello", "content moved from partial on finalize")
	testutil.RequireEqual(t, final.ID, int64(7), "final id taken from message_info")
}

func TestProjector_DoneWithoutMessageInfoReusesStreamingID(t *testing.T) {
	p, c, _, pending := newFixture()
	p.Project(&sse.Event{Kind: sse.KindContent, Payload: sse.ContentPayload{Text: "hi"}}, pending)
	streamingID := c.CurrentStreamingID(pending)

	p.Project(&sse.Event{Kind: sse.KindDone, Payload: sse.DonePayload{}}, pending)

	msgs := c.Messages(pending)
	final := msgs[len(msgs)-1]
	testutil.RequireEqual(t, final.ID, streamingID, "final id falls back to the negative streaming id")
}

func TestProjector_ToolEventLifecycle(t *testing.T) {
	p, c, _, pending := newFixture()

	p.Project(&sse.Event{Kind: sse.KindToolCallStart, Payload: sse.ToolCallStartPayload{CallID: "call-1", FunctionName: "read_file"}}, pending)
	p.Project(&sse.Event{Kind: sse.KindToolCallArgument, Payload: sse.ToolCallArgumentPayload{CallID: "call-1", Chunk: `{"path":`}}, pending)
	p.Project(&sse.Event{Kind: sse.KindToolCallArgument, Payload: sse.ToolCallArgumentPayload{CallID: "call-1", Chunk: `"a.go"}`}}, pending)
	p.Project(&sse.Event{Kind: sse.KindToolExecuting, Payload: sse.ToolExecutingPayload{CallID: "call-1", DisplayName: "Reading a.go"}}, pending)
	p.Project(&sse.Event{Kind: sse.KindToolResult, Payload: sse.ToolResultPayload{CallID: "call-1", Result: "package main", IsError: false}}, pending)

	msgs := c.Messages(pending)
	var tool *cache.ToolEvent
	for _, seg := range msgs[len(msgs)-1].Segments {
		if seg.Kind == cache.SegmentTool && seg.Tool.CallID == "call-1" {
			tool = seg.Tool
		}
	}
	testutil.RequireTrue(t, tool != nil, "tool segment must exist")
	testutil.RequireEqual(t, tool.ArgsJSON, `{"path":"a.go"}`, "argument chunks concatenated in order")
	testutil.RequireEqual(t, tool.DisplayName, "Reading a.go", "display name set on executing")
	testutil.RequireEqual(t, tool.Status, cache.ToolComplete, "non-error result completes the tool")
	testutil.RequireEqual(t, tool.ResultPreview, "package main", "result preview recorded")
}

func TestProjector_ToolErrorResultFailsEvent(t *testing.T) {
	p, c, _, pending := newFixture()
	p.Project(&sse.Event{Kind: sse.KindToolCallStart, Payload: sse.ToolCallStartPayload{CallID: "call-2", FunctionName: "run_shell"}}, pending)
	p.Project(&sse.Event{Kind: sse.KindToolResult, Payload: sse.ToolResultPayload{CallID: "call-2", Result: "boom", IsError: true}}, pending)

	msgs := c.Messages(pending)
	var tool *cache.ToolEvent
	for _, seg := range msgs[len(msgs)-1].Segments {
		if seg.Kind == cache.SegmentTool && seg.Tool.CallID == "call-2" {
			tool = seg.Tool
		}
	}
	testutil.RequireTrue(t, tool != nil, "tool segment must exist")
	testutil.RequireEqual(t, tool.Status, cache.ToolFailed, "error result fails the tool")
	testutil.RequireTrue(t, tool.ResultIsError, "result_is_error flag set")
}

func TestProjector_CancelDuringStreamFinalizesAndSignals(t *testing.T) {
	p, c, _, pending := newFixture()
	p.Project(&sse.Event{Kind: sse.KindContent, Payload: sse.ContentPayload{Text: "partial"}}, pending)

	sig := p.Project(&sse.Event{Kind: sse.KindCancelled, Payload: sse.CancelledPayload{}}, pending)
	testutil.RequireTrue(t, sig != nil, "cancelled must emit a signal")
	testutil.RequireEqual(t, sig.Kind, SignalStreamCancelled, "signal kind")
	testutil.RequireEqual(t, sig.StreamCancelled.ThreadID, pending, "signal carries thread id")

	msgs := c.Messages(pending)
	testutil.RequireEqual(t, msgs[len(msgs)-1].IsStreaming, false, "cancel finalizes the streaming message")
}

func TestProjector_ErrorEventPushesBannerAndFinalizes(t *testing.T) {
	p, c, _, pending := newFixture()
	p.Project(&sse.Event{Kind: sse.KindContent, Payload: sse.ContentPayload{Text: "x"}}, pending)

	sig := p.Project(&sse.Event{Kind: sse.KindError, Payload: sse.ErrorPayload{Code: "rate_limited", Message: "slow down"}}, pending)
	testutil.RequireEqual(t, sig.Kind, SignalStreamError, "signal kind")

	errs := c.Errors(pending)
	testutil.RequireEqual(t, len(errs), 1, "one error banner pushed")
	testutil.RequireEqual(t, errs[0].Message, "slow down", "error message recorded")

	msgs := c.Messages(pending)
	testutil.RequireEqual(t, msgs[len(msgs)-1].IsStreaming, false, "error finalizes the streaming message")
}

func TestProjector_PermissionRequestSetsPending(t *testing.T) {
	p, _, s, pending := newFixture()
	p.Project(&sse.Event{Kind: sse.KindPermissionRequest, Payload: sse.PermissionRequestPayload{
		PermissionID: "perm-1",
		ToolName:     "write_file",
		Description:  "Write to a.go",
	}}, pending)

	pp := s.PendingPermission
	testutil.RequireTrue(t, pp != nil, "pending permission must be set")
	testutil.RequireEqual(t, pp.PermissionID, "perm-1", "permission id")
	testutil.RequireEqual(t, pp.ToolName, "write_file", "tool name")
}

func TestProjector_TodosUpdatedReplacesWholesale(t *testing.T) {
	p, _, s, pending := newFixture()
	p.Project(&sse.Event{Kind: sse.KindTodosUpdated, Payload: sse.TodosUpdatedPayload{Todos: []sse.TodoItemPayload{
		{Content: "write tests", Status: "in_progress"},
		{Content: "ship it", ActiveForm: "Shipping it", Status: "bogus"},
	}}}, pending)

	testutil.RequireEqual(t, len(s.Todos), 2, "todo count")
	testutil.RequireEqual(t, s.Todos[0].ActiveForm, "write tests", "active_form defaults to content")
	testutil.RequireEqual(t, s.Todos[1].Status, session.TodoPending, "unknown status defaults to pending")
}

func TestProjector_PlanLifecycle(t *testing.T) {
	p, c, _, pending := newFixture()

	p.Project(&sse.Event{Kind: sse.KindPlanningStarted, Payload: sse.PlanningStartedPayload{}}, pending)
	thread := c.Thread(pending)
	testutil.RequireEqual(t, thread.PermissionMode, cache.PermissionPlan, "planning_started switches to plan mode")
	testutil.RequireEqual(t, thread.PrePlanMode, cache.PermissionDefault, "pre_plan_mode remembers prior mode")

	p.Project(&sse.Event{Kind: sse.KindPlanSummary, Payload: sse.PlanSummaryPayload{Summary: "do the thing"}}, pending)
	thread = c.Thread(pending)
	testutil.RequireEqual(t, thread.PlanState, cache.PlanProposed, "plan_summary proposes the plan")
	testutil.RequireEqual(t, thread.PlanSummary, "do the thing", "summary text recorded")

	p.Project(&sse.Event{Kind: sse.KindPlanApprovalResult, Payload: sse.PlanApprovalResultPayload{Approved: true}}, pending)
	thread = c.Thread(pending)
	testutil.RequireEqual(t, thread.PlanState, cache.PlanApproved, "plan approved")
	testutil.RequireEqual(t, thread.PermissionMode, cache.PermissionDefault, "mode restored after approval")
}

func TestProjector_UsageUpdatesSessionContextTokens(t *testing.T) {
	p, _, s, pending := newFixture()
	p.Project(&sse.Event{Kind: sse.KindUsage, Payload: sse.UsagePayload{TokensUsed: 120, TokensLimit: 8000}}, pending)
	testutil.RequireEqual(t, s.ContextTokensUsed, 120, "tokens used")
	testutil.RequireEqual(t, s.ContextTokensLimit, 8000, "tokens limit")
}

func TestProjector_OAuthConsentAndContextCompactedSignal(t *testing.T) {
	p, _, _, pending := newFixture()
	sig := p.Project(&sse.Event{Kind: sse.KindOAuthConsent, Payload: sse.OAuthConsentPayload{Provider: "github", URL: "https://example.test/auth"}}, pending)
	testutil.RequireEqual(t, sig.Kind, SignalOAuthConsent, "oauth consent signal kind")
	testutil.RequireEqual(t, sig.OAuthConsent.Provider, "github", "provider carried through")

	sig = p.Project(&sse.Event{Kind: sse.KindContextCompacted, Payload: sse.ContextCompactedPayload{TokensBefore: 9000, TokensAfter: 4000}}, pending)
	testutil.RequireEqual(t, sig.Kind, SignalContextCompacted, "context compacted signal kind")
	testutil.RequireEqual(t, sig.ContextCompacted.TokensAfter, 4000, "tokens after carried through")
}

func TestProjector_SubagentLifecycle(t *testing.T) {
	p, c, _, pending := newFixture()
	p.Project(&sse.Event{Kind: sse.KindSubagentStarted, Payload: sse.SubagentStartedPayload{SubagentID: "sub-1", Name: "researcher"}}, pending)
	p.Project(&sse.Event{Kind: sse.KindSubagentProgress, Payload: sse.SubagentProgressPayload{SubagentID: "sub-1", Message: "reading docs"}}, pending)
	p.Project(&sse.Event{Kind: sse.KindSubagentCompleted, Payload: sse.SubagentCompletedPayload{SubagentID: "sub-1", Summary: "done", IsError: false}}, pending)

	msgs := c.Messages(pending)
	var sub *cache.SubagentEvent
	for _, seg := range msgs[len(msgs)-1].Segments {
		if seg.Kind == cache.SegmentSubagent && seg.Subagent.SubagentID == "sub-1" {
			sub = seg.Subagent
		}
	}
	testutil.RequireTrue(t, sub != nil, "subagent segment must exist")
	testutil.RequireEqual(t, sub.Status, cache.SubagentComplete, "subagent marked complete")
	testutil.RequireEqual(t, sub.Summary, "done", "summary recorded")
}

func TestProjector_SkillsInjectedAddsSkills(t *testing.T) {
	p, _, s, pending := newFixture()
	p.Project(&sse.Event{Kind: sse.KindSkillsInjected, Payload: sse.SkillsInjectedPayload{Skills: []string{"web-search", "code-exec"}}}, pending)
	testutil.RequireTrue(t, s.HasSkill("web-search"), "web-search skill present")
	testutil.RequireTrue(t, s.HasSkill("code-exec"), "code-exec skill present")
}
