package tui

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/spoq-dev/spoq/internal/cache"
	"github.com/spoq-dev/spoq/internal/coordinator"
	"github.com/spoq-dev/spoq/internal/modesync"
	"github.com/spoq-dev/spoq/internal/projector"
	"github.com/spoq-dev/spoq/internal/session"
	"github.com/spoq-dev/spoq/internal/sse"
	"github.com/spoq-dev/spoq/internal/streamclient"
	"github.com/spoq-dev/spoq/internal/testutil"
)

func contentEvent(text string) *sse.Event {
	return &sse.Event{Kind: sse.KindContent, Payload: sse.ContentPayload{Text: text}}
}

type fakeDoer struct {
	body string
}

func (f *fakeDoer) Do(_ *http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

type fakeDispatcher struct{}

func (fakeDispatcher) SendCancel(context.Context, string) error         { return nil }
func (fakeDispatcher) SendSteer(context.Context, string, string) error { return nil }

type fakeSyncer struct{}

func (fakeSyncer) SyncThreadMode(context.Context, string, cache.PermissionMode) error      { return nil }
func (fakeSyncer) SyncPermissionMode(context.Context, string, cache.PermissionMode) error { return nil }

func newTestModel(streamBody string) *Model {
	c := cache.NewThreadCache(cache.DefaultIdleEvictAfter)
	s := session.New()
	proj := projector.New(c, s, nil)
	ms := modesync.New(fakeSyncer{}, nil)
	co := coordinator.New(c, s, fakeDispatcher{}, nil)
	streamer := streamclient.NewClient("http://backend", &fakeDoer{body: streamBody}, nil)
	m := New(c, s, proj, ms, co, streamer, nil, nil)
	m.view.TermWidth = 80
	m.view.TermHeight = 24
	return m
}

func TestModel_WindowSizeMarksDirty(t *testing.T) {
	m := newTestModel("")
	m.needsRedraw = false
	_, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	testutil.RequireTrue(t, m.needsRedraw, "resize marks the frame dirty")
	testutil.RequireEqual(t, m.view.TermWidth, 100, "width applied")
}

func TestModel_TypingRunesUpdatesInputContent(t *testing.T) {
	m := newTestModel("")
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi")})
	testutil.RequireEqual(t, m.view.InputContent, "hi", "typed runes appended to input")
}

func TestModel_SubmitInputCreatesThreadAndStartsStream(t *testing.T) {
	body := "event: content\ndata: {\"text\":\"hello\"}\n\nevent: done\ndata: {}\n\n"
	m := newTestModel(body)
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi there")})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	testutil.RequireTrue(t, m.view.ActiveThreadID != "", "a thread is created on first submit")
	testutil.RequireTrue(t, m.activeStream != nil, "a stream is armed")
	testutil.RequireTrue(t, cmd != nil, "a listen command is returned")

	msgs := m.cache.Messages(m.view.ActiveThreadID)
	testutil.RequireEqual(t, msgs[0].Content, "hi there", "user message recorded before streaming")
}

func TestModel_InterruptWithNoActiveStreamQuits(t *testing.T) {
	m := newTestModel("")
	cmd := m.handleInterrupt()
	testutil.RequireTrue(t, cmd != nil, "ctrl-c with nothing active returns a shutdown command")
}

func TestModel_AppMsgSSEEventAdvancesCacheAndMarksDirty(t *testing.T) {
	m := newTestModel("")
	threadID := m.cache.CreatePendingThread("t", cache.ThreadConversation)
	m.needsRedraw = false

	ev := contentEvent("hello world")
	_, _ = m.Update(appMsg{sseEvent: ev, sseThreadID: threadID})

	testutil.RequireTrue(t, m.needsRedraw, "an sse event marks the frame dirty")
	msgs := m.cache.Messages(threadID)
	testutil.RequireEqual(t, msgs[len(msgs)-1].PartialContent, "hello world", "the sse event's text reaches the cache")
}

func TestModel_TickDecaysVelocityAndReschedules(t *testing.T) {
	m := newTestModel("")
	m.view.Scroll.ApplyVelocityImpulse(5)
	_, cmd := m.Update(tickMsg{})
	testutil.RequireTrue(t, cmd != nil, "tick reschedules itself")
	testutil.RequireTrue(t, m.view.Scroll.Velocity < 5, "tick decays scroll velocity")
}

func TestModel_ViewCachesFrameUntilDirty(t *testing.T) {
	m := newTestModel("")
	first := m.View()
	testutil.RequireTrue(t, !m.needsRedraw, "view clears the dirty flag after drawing")

	second := m.View()
	testutil.RequireEqual(t, first, second, "a quiet frame returns the cached output")
}
