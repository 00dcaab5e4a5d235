package projector

import (
	"go.uber.org/zap"

	"github.com/spoq-dev/spoq/internal/cache"
	"github.com/spoq-dev/spoq/internal/control"
	"github.com/spoq-dev/spoq/internal/session"
	"github.com/spoq-dev/spoq/internal/sse"
)

// Projector applies typed events to the cache and session state. One
// Projector serves the whole process; it is invoked only from the
// event-loop task, so it needs no locking despite touching shared state.
type Projector struct {
	cache   *cache.ThreadCache
	session *session.State
	logger  *zap.Logger

	pendingFinalMsgID map[string]int64
}

// New constructs a Projector over the given cache and session state.
func New(threadCache *cache.ThreadCache, sessionState *session.State, logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{
		cache:             threadCache,
		session:           sessionState,
		logger:            logger,
		pendingFinalMsgID: make(map[string]int64),
	}
}

// resolveThreadID prefers the event's own thread_id metadata, falling back
// to the id of the stream the event arrived on (needed for a brand-new
// pending thread, whose first events may carry only the backend's new real
// id once ThreadInfo reconciles it).
func resolveThreadID(meta sse.Meta, streamThreadID string) string {
	if meta.ThreadID != "" {
		return meta.ThreadID
	}
	return streamThreadID
}

// Project applies one SSE event, emitting a Signal when the event loop
// needs to react beyond a redraw. streamThreadID identifies the thread the
// originating HTTP stream was opened against (pending or real id).
func (p *Projector) Project(ev *sse.Event, streamThreadID string) *Signal {
	threadID := resolveThreadID(ev.Meta, streamThreadID)

	switch ev.Kind {
	case sse.KindContent:
		payload := ev.Payload.(sse.ContentPayload)
		p.cache.EnsureStreamingAssistant(threadID)
		p.cache.AppendToken(threadID, payload.Text)

	case sse.KindReasoning:
		payload := ev.Payload.(sse.ReasoningPayload)
		p.cache.EnsureStreamingAssistant(threadID)
		p.cache.AppendReasoningToken(threadID, payload.Text)

	case sse.KindThreadInfo:
		payload := ev.Payload.(sse.ThreadInfoPayload)
		return p.projectThreadInfo(streamThreadID, payload)

	case sse.KindMessageInfo:
		payload := ev.Payload.(sse.MessageInfoPayload)
		p.pendingFinalMsgID[threadID] = payload.MessageID

	case sse.KindToolCallStart:
		payload := ev.Payload.(sse.ToolCallStartPayload)
		p.cache.StartToolEvent(threadID, payload.CallID, payload.FunctionName)

	case sse.KindToolCallArgument:
		payload := ev.Payload.(sse.ToolCallArgumentPayload)
		p.cache.AppendToolArgChunk(threadID, payload.CallID, payload.Chunk)

	case sse.KindToolExecuting:
		payload := ev.Payload.(sse.ToolExecutingPayload)
		p.cache.SetToolDisplayName(threadID, payload.CallID, payload.DisplayName)

	case sse.KindToolResult:
		payload := ev.Payload.(sse.ToolResultPayload)
		p.cache.SetToolResult(threadID, payload.CallID, payload.Result, payload.IsError)

	case sse.KindDone:
		p.finalize(threadID)
		return &Signal{Kind: SignalStreamComplete, StreamComplete: &StreamCompleteSignal{ThreadID: threadID}}

	case sse.KindCancelled:
		p.finalize(threadID)
		return &Signal{Kind: SignalStreamCancelled, StreamCancelled: &StreamCancelledSignal{ThreadID: threadID}}

	case sse.KindError:
		payload := ev.Payload.(sse.ErrorPayload)
		p.cache.PushError(threadID, payload.Code, payload.Message)
		p.finalize(threadID)
		return &Signal{Kind: SignalStreamError, StreamError: &StreamErrorSignal{ThreadID: threadID, Message: payload.Message}}

	case sse.KindPing:
		// Liveness only.

	case sse.KindPermissionRequest:
		payload := ev.Payload.(sse.PermissionRequestPayload)
		p.session.SetPendingPermission(&session.PendingPermission{
			PermissionID: payload.PermissionID,
			ToolName:     payload.ToolName,
			Description:  payload.Description,
			ToolInput:    payload.ToolInput,
		})

	case sse.KindTodosUpdated:
		payload := ev.Payload.(sse.TodosUpdatedPayload)
		todos := make([]session.Todo, 0, len(payload.Todos))
		for _, t := range payload.Todos {
			todos = append(todos, session.NewTodo(t.Content, t.ActiveForm, session.ParseTodoStatus(t.Status)))
		}
		p.session.ReplaceTodos(todos)

	case sse.KindSubagentStarted:
		payload := ev.Payload.(sse.SubagentStartedPayload)
		p.cache.StartSubagentEvent(threadID, payload.SubagentID, payload.Name)

	case sse.KindSubagentProgress:
		payload := ev.Payload.(sse.SubagentProgressPayload)
		p.cache.UpdateSubagentProgress(threadID, payload.SubagentID, payload.Message)

	case sse.KindSubagentCompleted:
		payload := ev.Payload.(sse.SubagentCompletedPayload)
		p.cache.CompleteSubagentEvent(threadID, payload.SubagentID, payload.Summary, payload.IsError)

	case sse.KindSkillsInjected:
		payload := ev.Payload.(sse.SkillsInjectedPayload)
		for _, skill := range payload.Skills {
			p.session.AddSkill(skill)
		}

	case sse.KindOAuthConsent:
		payload := ev.Payload.(sse.OAuthConsentPayload)
		return &Signal{Kind: SignalOAuthConsent, OAuthConsent: &OAuthConsentSignal{Provider: payload.Provider, URL: payload.URL}}

	case sse.KindContextCompacted:
		payload := ev.Payload.(sse.ContextCompactedPayload)
		return &Signal{Kind: SignalContextCompacted, ContextCompacted: &ContextCompactedSignal{TokensBefore: payload.TokensBefore, TokensAfter: payload.TokensAfter}}

	case sse.KindUsage:
		payload := ev.Payload.(sse.UsagePayload)
		p.session.SetContextUsage(payload.TokensUsed, payload.TokensLimit)

	case sse.KindThreadUpdated:
		payload := ev.Payload.(sse.ThreadUpdatedPayload)
		p.cache.ApplyThreadUpdate(threadID, payload.Title, payload.Description, payload.Title != "", payload.Description != "")

	case sse.KindPlanningStarted:
		p.projectPlanningStarted(threadID)

	case sse.KindPlanSummary:
		payload := ev.Payload.(sse.PlanSummaryPayload)
		p.projectPlanSummary(threadID, payload.Summary)

	case sse.KindPlanApprovalResult:
		payload := ev.Payload.(sse.PlanApprovalResultPayload)
		p.projectPlanApproval(threadID, payload.Approved)

	default:
		p.logger.Warn("projector: no handler for event kind", zap.String("kind", string(ev.Kind)))
	}

	return nil
}

// ProjectControl applies an incoming control-channel frame.
func (p *Projector) ProjectControl(incoming *control.Incoming) *Signal {
	if incoming.Kind == control.IncomingPermissionRequest && incoming.PermissionRequest != nil {
		frame := incoming.PermissionRequest
		p.session.SetPendingPermission(&session.PendingPermission{
			PermissionID: frame.RequestID,
			ToolName:     frame.ToolName,
			Description:  frame.Description,
			ToolInput:    frame.ToolInput,
		})
	}
	return nil
}

func (p *Projector) finalize(threadID string) {
	finalID, ok := p.pendingFinalMsgID[threadID]
	if !ok {
		finalID = p.cache.CurrentStreamingID(threadID)
	} else {
		delete(p.pendingFinalMsgID, threadID)
	}
	p.cache.FinalizeStreaming(threadID, finalID)
}

func (p *Projector) projectThreadInfo(streamThreadID string, payload sse.ThreadInfoPayload) *Signal {
	thread := p.cache.Thread(streamThreadID)
	if thread == nil || thread.ID == payload.ThreadID {
		// Already reconciled (or nothing to reconcile); apply a title update only.
		if thread != nil && payload.Title != "" {
			p.cache.ApplyThreadUpdate(thread.ID, payload.Title, "", true, false)
		}
		return nil
	}
	p.cache.ReconcileThread(streamThreadID, payload.ThreadID, payload.Title)
	return &Signal{Kind: SignalThreadCreated, ThreadCreated: &ThreadCreatedSignal{PendingID: streamThreadID, RealID: payload.ThreadID, Title: payload.Title}}
}

func (p *Projector) projectPlanningStarted(threadID string) {
	thread := p.cache.Thread(threadID)
	if thread == nil {
		return
	}
	if thread.PermissionMode != cache.PermissionPlan {
		thread.PrePlanMode = thread.PermissionMode
	}
	thread.PermissionMode = cache.PermissionPlan
	thread.PlanState = cache.PlanNone
	thread.PlanSummary = ""
}

func (p *Projector) projectPlanSummary(threadID, summary string) {
	thread := p.cache.Thread(threadID)
	if thread == nil {
		return
	}
	if thread.PermissionMode != cache.PermissionPlan {
		thread.PrePlanMode = thread.PermissionMode
		thread.PermissionMode = cache.PermissionPlan
	}
	thread.PlanSummary = summary
	thread.PlanState = cache.PlanProposed
}

func (p *Projector) projectPlanApproval(threadID string, approved bool) {
	thread := p.cache.Thread(threadID)
	if thread == nil {
		return
	}
	if approved {
		thread.PlanState = cache.PlanApproved
	} else {
		thread.PlanState = cache.PlanRejected
	}
	thread.PermissionMode = thread.PrePlanMode
}
