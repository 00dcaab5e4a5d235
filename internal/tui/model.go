// Package tui wires every other component into a bubbletea event loop: a
// single cooperative task owns all cache/session mutation, background tasks
// (SSE stream, control channel) communicate only by sending app messages,
// and a two-phase prepare/render pass (internal/render) redraws exactly
// when something dirtied the frame.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spoq-dev/spoq/internal/cache"
	"github.com/spoq-dev/spoq/internal/control"
	"github.com/spoq-dev/spoq/internal/coordinator"
	"github.com/spoq-dev/spoq/internal/modesync"
	"github.com/spoq-dev/spoq/internal/projector"
	"github.com/spoq-dev/spoq/internal/render"
	"github.com/spoq-dev/spoq/internal/session"
	"github.com/spoq-dev/spoq/internal/streamclient"
)

// StreamStarter opens a new streaming turn against the backend; it is the
// capability the input-submit command dispatches through.
type StreamStarter interface {
	Stream(ctx context.Context, req streamclient.Request) (*streamclient.Stream, error)
}

// shutdownMsg requests the event loop unwind and tea.Quit.
type shutdownMsg struct{}

// Model is the bubbletea application model. Every field it touches is
// mutated only inside Update, on the event-loop goroutine bubbletea drives —
// nothing here is shared with a background task by reference.
type Model struct {
	cache   *cache.ThreadCache
	session *session.State
	proj    *projector.Projector

	modesync    *modesync.Coordinator
	coordinator *coordinator.Coordinator
	streamer    StreamStarter
	controlCh   *control.Client

	caches *render.Caches
	view   render.AppViewState

	sessionID    string
	activeStream *streamclient.Stream
	appCh        chan appMsg
	needsRedraw  bool
	lastFrame    string

	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// New constructs a Model ready to be driven by tea.NewProgram.
func New(
	threadCache *cache.ThreadCache,
	sessionState *session.State,
	proj *projector.Projector,
	sync *modesync.Coordinator,
	coord *coordinator.Coordinator,
	streamer StreamStarter,
	controlClient *control.Client,
	logger *zap.Logger,
) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Model{
		cache:       threadCache,
		session:     sessionState,
		proj:        proj,
		modesync:    sync,
		coordinator: coord,
		streamer:    streamer,
		controlCh:   controlClient,
		caches:      render.NewCaches(),
		view: render.AppViewState{
			Screen: render.ScreenDashboard,
			Focus:  render.FocusDashboard,
			Scroll: &render.ScrollState{},
		},
		sessionID:   uuid.NewString(),
		appCh:       make(chan appMsg, 256),
		needsRedraw: true,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// Init starts the periodic tick and the app-message pump.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.scheduleTick(), m.pumpAppMessages(), m.subscribeControlChannel())
}

func (m *Model) scheduleTick() tea.Cmd {
	return tea.Tick(render.TickInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

// pumpAppMessages turns the next value on m.appCh into a tea.Msg, re-arming
// itself each time it's consumed (the standard bubbletea "listen on a
// channel forever" pattern, mirroring the teacher's streamCh listener).
func (m *Model) pumpAppMessages() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.appCh
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *Model) subscribeControlChannel() tea.Cmd {
	if m.controlCh == nil {
		return nil
	}
	return func() tea.Msg {
		sub, _ := m.controlCh.Subscribe()
		go func() {
			for frame := range sub.C {
				f := frame
				select {
				case m.appCh <- appMsg{controlFrame: &f}:
				case <-m.ctx.Done():
					return
				}
			}
		}()

		states, _ := m.controlCh.State().Subscribe()
		go func() {
			for state := range states {
				s := state
				select {
				case m.appCh <- appMsg{connState: &s}:
				case <-m.ctx.Done():
					return
				}
			}
		}()
		return nil
	}
}

// Update is the single dispatch point: terminal input, the periodic tick,
// app messages from background tasks, and resize events all funnel through
// here, each marking the frame dirty only when state visibly changed.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.view.TermWidth = msg.Width
		m.view.TermHeight = msg.Height
		m.needsRedraw = true
		return m, nil

	case tea.KeyMsg:
		cmd := m.handleKey(msg)
		return m, cmd

	case tea.MouseMsg:
		cmd := m.handleMouse(msg)
		return m, cmd

	case tickMsg:
		if m.view.Scroll.Tick() {
			m.needsRedraw = true
		}
		if m.activeStream != nil {
			m.view.Tick++
			m.needsRedraw = true
		}
		return m, m.scheduleTick()

	case appMsg:
		m.handleAppMsg(msg)
		return m, m.pumpAppMessages()

	case shutdownMsg:
		return m, m.shutdown()
	}

	return m, nil
}

// View runs the two-phase prepare/render pass iff the frame is dirty,
// caching the last output otherwise so a quiet frame costs nothing.
func (m *Model) View() string {
	if !m.needsRedraw {
		return m.lastFrame
	}
	render.Prepare(m.caches, &m.view)
	frame, outputs := render.Render(m.caches, &m.view)
	m.view.Scroll.SyncMaxScroll(outputs.TotalContentLines, m.view.TermHeight)
	m.lastFrame = frame
	m.needsRedraw = false
	return frame
}

// shutdown cancels every background task the model spawned and quits.
func (m *Model) shutdown() tea.Cmd {
	m.cancel()
	if m.activeStream != nil {
		m.activeStream.Cancel()
	}
	return tea.Quit
}
