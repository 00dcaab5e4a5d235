package tui

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/spoq-dev/spoq/internal/streamclient"
)

// startStream opens a new streaming turn and arms both the active-stream
// bookkeeping and a background reader command that feeds events back onto
// the app-message channel.
func (m *Model) startStream(threadID, prompt string) tea.Cmd {
	req := streamclient.Request{Prompt: prompt, SessionID: m.sessionID, ThreadID: threadID, ThreadType: "conversation"}
	stream, err := m.streamer.Stream(m.ctx, req)
	if err != nil {
		m.cache.PushError(threadID, "stream_start_failed", err.Error())
		m.needsRedraw = true
		return nil
	}
	m.activeStream = stream
	m.coordinator.SetActiveStream(threadID)
	return m.listenStream(stream, threadID)
}

// listenStream pulls one event at a time from the active stream's reader
// and forwards it to the event loop over the app channel; bubbletea
// guarantees at most one outstanding Cmd goroutine per returned tea.Cmd, so
// this naturally serializes with itself.
func (m *Model) listenStream(stream *streamclient.Stream, threadID string) tea.Cmd {
	return func() tea.Msg {
		go func() {
			for {
				ev, err := stream.Next()
				if err != nil {
					select {
					case m.appCh <- appMsg{streamEnded: true, streamErr: nonEOF(err), sseThreadID: threadID}:
					case <-m.ctx.Done():
					}
					return
				}
				select {
				case m.appCh <- appMsg{sseEvent: ev, sseThreadID: threadID}:
				case <-m.ctx.Done():
					return
				}
			}
		}()
		return nil
	}
}

func nonEOF(err error) error {
	if err == io.EOF {
		return nil
	}
	return err
}
