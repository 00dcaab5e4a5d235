package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/spoq-dev/spoq/internal/cache"
	"github.com/spoq-dev/spoq/internal/coordinator"
	"github.com/spoq-dev/spoq/internal/hitarea"
	"github.com/spoq-dev/spoq/internal/projector"
	"github.com/spoq-dev/spoq/internal/render"
)

// handleAppMsg case-splits on the app-message variant sent by a background
// task and mutates cache/session accordingly; this is the only place those
// mutations happen, so neither takes a lock (§4.10's ordering guarantee).
func (m *Model) handleAppMsg(msg appMsg) {
	switch {
	case msg.sseEvent != nil:
		signal := m.proj.Project(msg.sseEvent, msg.sseThreadID)
		m.applySignal(signal)
		m.needsRedraw = true

	case msg.streamEnded:
		m.activeStream = nil
		m.coordinator.OnStreamOutcome(msg.sseThreadID)
		m.coordinator.ClearActiveStream()
		if msg.streamErr != nil {
			m.cache.PushError(msg.sseThreadID, "stream_io_error", msg.streamErr.Error())
		}
		m.needsRedraw = true

	case msg.controlFrame != nil:
		signal := m.proj.ProjectControl(msg.controlFrame)
		m.applySignal(signal)
		m.needsRedraw = true

	case msg.connState != nil:
		m.view.Conn = *msg.connState
		m.needsRedraw = true

	case msg.steeringAck != nil:
		if err := m.coordinator.HandleSteeringAck(coordinator.SteeringAck(msg.steeringAck.ack)); err != nil {
			m.logger.Debug("steering ack rejected", zap.Error(err))
		}
		m.needsRedraw = true
	}
}

func (m *Model) applySignal(signal *projector.Signal) {
	if signal == nil {
		return
	}
	switch signal.Kind {
	case projector.SignalThreadCreated:
		if m.view.ActiveThreadID == signal.ThreadCreated.PendingID {
			m.view.ActiveThreadID = signal.ThreadCreated.RealID
		}
	case projector.SignalStreamComplete:
		m.coordinator.OnStreamOutcome(signal.StreamComplete.ThreadID)
	case projector.SignalStreamCancelled:
		m.coordinator.OnStreamOutcome(signal.StreamCancelled.ThreadID)
		if m.session.QueuedSteering != nil && m.session.QueuedSteering.ThreadID == signal.StreamCancelled.ThreadID {
			_ = m.coordinator.CompleteSteering()
		}
	case projector.SignalStreamError:
		m.coordinator.OnStreamOutcome(signal.StreamError.ThreadID)
	case projector.SignalOAuthConsent:
		m.logger.Info("oauth consent required", zap.String("provider", signal.OAuthConsent.Provider), zap.String("url", signal.OAuthConsent.URL))
	case projector.SignalContextCompacted:
		m.logger.Debug("context compacted", zap.Int("tokens_before", signal.ContextCompacted.TokensBefore), zap.Int("tokens_after", signal.ContextCompacted.TokensAfter))
	}
}

// handleMouse resolves a mouse event against the hit-area registry built by
// the last render pass: motion updates hover (marking dirty only on
// change), and a press resolves and dispatches the clicked action.
func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	switch msg.Action {
	case tea.MouseActionMotion:
		if m.caches.Hits.UpdateHover(msg.X, msg.Y) {
			m.needsRedraw = true
		}
		return nil
	case tea.MouseActionPress:
		action, ok := m.caches.Hits.HitTest(msg.X, msg.Y)
		if !ok {
			return nil
		}
		return m.dispatchHitAction(action)
	}
	return nil
}

func (m *Model) dispatchHitAction(action hitarea.Action) tea.Cmd {
	switch action.Kind {
	case hitarea.ActionDismissError:
		m.cache.DismissFocusedError(m.view.ActiveThreadID)
		m.needsRedraw = true
	case hitarea.ActionApproveThread:
		m.setPermissionMode(action.ThreadID, cache.PermissionExec)
	case hitarea.ActionRejectThread:
		m.setPermissionMode(action.ThreadID, cache.PermissionPlan)
	case hitarea.ActionOpenThread:
		m.view.ActiveThreadID = action.ThreadID
		m.view.Screen = render.ScreenThread
		m.needsRedraw = true
	case hitarea.ActionViewFullPlan, hitarea.ActionFilterWorking:
		m.needsRedraw = true
	}
	return nil
}

func (m *Model) setPermissionMode(threadID string, mode cache.PermissionMode) {
	thread := m.cache.Thread(threadID)
	if thread == nil {
		return
	}
	thread.PermissionMode = mode
	m.modesync.RequestModeChange(threadID, mode)
	m.needsRedraw = true
}
