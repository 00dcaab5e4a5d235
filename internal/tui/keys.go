package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/spoq-dev/spoq/internal/cache"
	"github.com/spoq-dev/spoq/internal/hitarea"
	"github.com/spoq-dev/spoq/internal/render"
)

// handleKey maps one terminal key event to app mutations, marking the frame
// dirty whenever visible state changed. Compound-modifier keys are matched
// by their string form first (mirroring the teacher's "shift+tab"/"ctrl+j"
// switch), then the remainder falls back to the plain key-type switch.
func (m *Model) handleKey(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "shift+enter", "ctrl+enter", "ctrl+j", "alt+enter":
		m.insertRunes("\n")
		return nil
	case "tab":
		m.cycleFocus(1)
		return nil
	case "shift+tab":
		m.cycleFocus(-1)
		return nil
	}

	switch key.Type {
	case tea.KeyCtrlC:
		return m.handleInterrupt()
	case tea.KeyEsc:
		if m.view.Screen == render.ScreenFolder {
			m.view.Folder.Open = false
			m.view.Screen = render.ScreenThread
			m.needsRedraw = true
			return nil
		}
		if m.view.Screen == render.ScreenThread && m.view.Focus != render.FocusThread {
			m.view.Focus = render.FocusThread
			m.needsRedraw = true
		}
		return nil
	case tea.KeyEnter:
		return m.submitInput()
	case tea.KeyBackspace:
		if len(m.view.InputContent) > 0 && m.view.InputCursor > 0 {
			m.view.InputContent = m.view.InputContent[:m.view.InputCursor-1] + m.view.InputContent[m.view.InputCursor:]
			m.view.InputCursor--
			m.needsRedraw = true
		}
		return nil
	case tea.KeyUp:
		m.view.Scroll.ApplyUserScroll(1)
		m.needsRedraw = true
		return nil
	case tea.KeyDown:
		m.view.Scroll.ApplyUserScroll(-1)
		m.needsRedraw = true
		return nil
	case tea.KeyPgUp:
		m.view.Scroll.ApplyUserScroll(m.view.TermHeight)
		m.needsRedraw = true
		return nil
	case tea.KeyPgDown:
		m.view.Scroll.ApplyUserScroll(-m.view.TermHeight)
		m.needsRedraw = true
		return nil
	case tea.KeyRunes:
		return m.handleRunes(key)
	}
	return nil
}

// handleRunes inserts into the input box by default; once the user has
// tabbed focus away to browse the thread (FocusThread), a handful of
// single-rune shortcuts from §6's keybinding table take over instead, since
// the input box isn't the thing listening for typed text anymore.
func (m *Model) handleRunes(key tea.KeyMsg) tea.Cmd {
	if m.view.Focus != render.FocusThread {
		m.insertRunes(string(key.Runes))
		return nil
	}
	if len(key.Runes) != 1 {
		return nil
	}
	switch key.Runes[0] {
	case 'd':
		m.cache.DismissFocusedError(m.view.ActiveThreadID)
		m.needsRedraw = true
	case 't':
		m.cache.ToggleReasoningCollapsed(m.view.ActiveThreadID)
		m.needsRedraw = true
	case 'y':
		return m.respondToPlan(true)
	case 'n':
		return m.respondToPlan(false)
	}
	return nil
}

// respondToPlan approves or rejects the active thread's proposed plan,
// reusing the same transition mouse-click approval uses (dispatch.go), but
// only while the thread is actually awaiting plan approval (PlanProposed).
func (m *Model) respondToPlan(approved bool) tea.Cmd {
	threadID := m.view.ActiveThreadID
	thread := m.cache.Thread(threadID)
	if thread == nil || thread.PlanState != cache.PlanProposed {
		return nil
	}
	kind := hitarea.ActionRejectThread
	if approved {
		kind = hitarea.ActionApproveThread
	}
	return m.dispatchHitAction(hitarea.Action{Kind: kind, ThreadID: threadID})
}

// cycleFocus moves keyboard focus between the input box and browsing the
// thread view; with only two focus targets on the thread screen, either
// direction is the same toggle. Tab is a no-op on screens with a single
// focus target (dashboard, folder picker).
func (m *Model) cycleFocus(_ int) {
	if m.view.Screen != render.ScreenThread {
		return
	}
	if m.view.Focus == render.FocusInput {
		m.view.Focus = render.FocusThread
	} else {
		m.view.Focus = render.FocusInput
	}
	m.needsRedraw = true
}

func (m *Model) insertRunes(s string) {
	content := m.view.InputContent
	cursor := m.view.InputCursor
	m.view.InputContent = content[:cursor] + s + content[cursor:]
	m.view.InputCursor += len(s)
	m.needsRedraw = true
}

// handleInterrupt implements §4.13's Ctrl+C semantics: if a stream is
// active, the first Ctrl+C cancels it (idempotent while already
// in-flight); with nothing active, Ctrl+C quits the program.
func (m *Model) handleInterrupt() tea.Cmd {
	if m.view.ActiveThreadID == "" || m.activeStream == nil {
		return func() tea.Msg { return shutdownMsg{} }
	}
	_ = m.coordinator.CancelActiveStream(m.ctx)
	m.needsRedraw = true
	return nil
}

// submitInput sends the current input box content: as a new user message
// and stream request if nothing is active on this thread, or as a steering
// instruction if a stream is already in flight.
func (m *Model) submitInput() tea.Cmd {
	text := m.view.InputContent
	if text == "" {
		return nil
	}
	threadID := m.view.ActiveThreadID

	m.view.InputContent = ""
	m.view.InputCursor = 0
	m.needsRedraw = true

	if m.activeStream != nil {
		if err := m.coordinator.QueueSteering(m.ctx, threadID, text); err != nil {
			m.cache.PushError(threadID, "steering_rejected", err.Error())
		}
		return nil
	}

	if threadID == "" {
		threadID = m.cache.CreatePendingThread("New chat", cache.ThreadConversation)
		m.view.ActiveThreadID = threadID
		m.view.Screen = render.ScreenThread
		m.view.Focus = render.FocusInput
	}
	m.cache.AppendUserMessage(threadID, text)
	return m.startStream(threadID, text)
}
