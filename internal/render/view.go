// Package render implements the two-phase prepare/render pipeline: Prepare
// mutates per-frame caches (hit-area registry, height cache) ahead of a
// render; Render is a pure function over a borrowed AppViewState producing
// the lines to draw plus the outputs the caller applies back to app state.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/spoq-dev/spoq/internal/cache"
	"github.com/spoq-dev/spoq/internal/control"
	"github.com/spoq-dev/spoq/internal/heightcache"
	"github.com/spoq-dev/spoq/internal/hitarea"
	"github.com/spoq-dev/spoq/internal/session"
)

// Screen identifies which top-level view the TUI currently shows.
type Screen string

const (
	ScreenDashboard Screen = "dashboard"
	ScreenThread    Screen = "thread"
	ScreenFolder    Screen = "folder_picker"
)

// Focus identifies which widget consumes keyboard input.
type Focus string

const (
	FocusInput     Focus = "input"
	FocusThread    Focus = "thread"
	FocusDashboard Focus = "dashboard"
	FocusFolder    Focus = "folder_picker"
)

// FolderPickerState is the minimal state a folder-switch prompt needs to render.
type FolderPickerState struct {
	Open      bool
	Query     string
	Entries   []string
	Selected  int
}

// Caches bundles the per-thread prepare-phase caches a frame depends on:
// one height cache and one hit-area registry per active render target.
type Caches struct {
	Heights map[string]*heightcache.Cache
	Hits    *hitarea.Registry
}

// NewCaches constructs an empty Caches.
func NewCaches() *Caches {
	return &Caches{Heights: make(map[string]*heightcache.Cache), Hits: hitarea.New()}
}

// AppViewState is the borrowed, read-only view the pure Render function
// consumes. Nothing in it is mutated by Render.
type AppViewState struct {
	Screen Screen
	Focus  Focus

	TermWidth  int
	TermHeight int
	Tick       uint64

	Cache   *cache.ThreadCache
	Session *session.State

	ActiveThreadID string
	Scroll         *ScrollState

	InputContent string
	InputCursor  int

	Folder FolderPickerState
	Conn   control.ConnState
}

// RenderOutputs carries values the render pass computed that the caller
// must feed back into app/scroll state after drawing.
type RenderOutputs struct {
	MaxScroll         int
	HasVisibleLinks   bool
	InputSectionStart int
	TotalContentLines int
}

// Prepare runs the non-rendering per-frame bookkeeping: clears the hit
// registry, invalidates the active thread's height cache if the viewport
// width changed (the cache rebuilds itself lazily inside Prepare), and
// rebuilds/updates the height cache for the active thread's current
// messages. It never touches the terminal.
func Prepare(caches *Caches, view *AppViewState) {
	caches.Hits.Clear()

	if view.ActiveThreadID == "" {
		return
	}
	messages := view.Cache.Messages(view.ActiveThreadID)
	existing := caches.Heights[view.ActiveThreadID]
	caches.Heights[view.ActiveThreadID] = heightcache.Prepare(existing, view.ActiveThreadID, view.TermWidth, messages)
}

// Render is the pure render pass: it builds the full frame as a string and
// returns the outputs the caller applies back to scroll/app state. It does
// not mutate view, caches, or the terminal; Registry/hover registration is
// its only side effect, and that is the intended per-frame hit-testing
// surface rebuilt fresh every call.
func Render(caches *Caches, view *AppViewState) (string, RenderOutputs) {
	switch view.Screen {
	case ScreenDashboard:
		return renderDashboard(view)
	case ScreenFolder:
		return renderFolderPicker(view)
	default:
		return renderThread(caches, view)
	}
}

func renderThread(caches *Caches, view *AppViewState) (string, RenderOutputs) {
	var b strings.Builder
	outputs := RenderOutputs{}

	thread := view.Cache.Thread(view.ActiveThreadID)
	heights := caches.Heights[view.ActiveThreadID]
	messages := view.Cache.Messages(view.ActiveThreadID)

	headerHeight := 1
	footerHeight := 3
	viewportHeight := view.TermHeight - headerHeight - footerHeight
	if viewportHeight < 1 {
		viewportHeight = 1
	}

	b.WriteString(renderHeader(thread, view.Conn))
	b.WriteString("\n")

	if heights != nil {
		outputs.TotalContentLines = heights.TotalLines()
		start, end, firstLineOffset := heights.VisibleRange(view.Scroll.Position, viewportHeight)
		lines := renderMessageSlice(messages, start, end, view.TermWidth)
		if firstLineOffset > 0 && firstLineOffset < len(lines) {
			lines = lines[firstLineOffset:]
		}
		if len(lines) > viewportHeight {
			lines = lines[:viewportHeight]
		}
		for _, l := range lines {
			if strings.Contains(l, "http://") || strings.Contains(l, "https://") {
				outputs.HasVisibleLinks = true
			}
		}
		b.WriteString(strings.Join(lines, "\n"))
	}
	b.WriteString("\n")

	outputs.InputSectionStart = view.TermHeight - footerHeight
	b.WriteString(renderFooter(caches.Hits, view, thread, thinking(messages)))

	return b.String(), outputs
}

// thinking reports whether the trailing message is a streaming assistant
// turn that hasn't produced any visible content yet, the window during
// which the idle-state spinner is shown in its place.
func thinking(messages []*cache.Message) bool {
	if len(messages) == 0 {
		return false
	}
	last := messages[len(messages)-1]
	return last.IsStreaming && last.PartialContent == "" && last.ReasoningContent == ""
}

func renderHeader(thread *cache.Thread, conn control.ConnState) string {
	title := "spoq"
	if thread != nil && thread.Title != "" {
		title = thread.Title
	}
	status := string(conn.Status)
	style := lipgloss.NewStyle().Bold(true)
	return style.Render(fmt.Sprintf("%s [%s]", title, status))
}

// maxVisibleErrors caps the inline error banner ring; anything past this
// is summarized as a single "+N more" line instead of being rendered.
const maxVisibleErrors = 2

func renderFooter(hits *hitarea.Registry, view *AppViewState, thread *cache.Thread, thinking bool) string {
	var b strings.Builder
	lineY := view.TermHeight - 3

	if thinking {
		b.WriteString(fmt.Sprintf("%s %s...\n", SpinnerGlyph(view.Tick), SpinnerVerb(view.Tick)))
		lineY++
	}

	errs := view.Cache.Errors(view.ActiveThreadID)
	visible := errs
	if len(visible) > maxVisibleErrors {
		visible = visible[:maxVisibleErrors]
	}
	for _, errInfo := range visible {
		line := fmt.Sprintf("! %s (dismiss)", errInfo.Message)
		hits.Register(hitarea.Rect{X: 0, Y: lineY, Width: view.TermWidth, Height: 1}, hitarea.Action{Kind: hitarea.ActionDismissError, ErrorID: errInfo.ID}, nil)
		b.WriteString(line + "\n")
		lineY++
	}
	if extra := len(errs) - len(visible); extra > 0 {
		b.WriteString(fmt.Sprintf("+%d more\n", extra))
		lineY++
	}
	if view.Session.PendingPermission != nil {
		b.WriteString(fmt.Sprintf("permission: %s\n", view.Session.PendingPermission.ToolName))
		lineY++
	}
	if view.Session.QueuedSteering != nil {
		b.WriteString(fmt.Sprintf("steering: %s (%s)\n", view.Session.QueuedSteering.Instruction, view.Session.QueuedSteering.State))
	}
	if thread != nil && thread.PlanState == cache.PlanProposed {
		hits.Register(hitarea.Rect{X: 0, Y: lineY, Width: 10, Height: 1}, hitarea.Action{Kind: hitarea.ActionApproveThread, ThreadID: thread.ID}, nil)
		hits.Register(hitarea.Rect{X: 11, Y: lineY, Width: 10, Height: 1}, hitarea.Action{Kind: hitarea.ActionRejectThread, ThreadID: thread.ID}, nil)
		hits.Register(hitarea.Rect{X: 22, Y: lineY, Width: 14, Height: 1}, hitarea.Action{Kind: hitarea.ActionViewFullPlan, ThreadID: thread.ID}, nil)
		b.WriteString("[approve] [reject] [view full plan]\n")
	}

	mode := cache.PermissionDefault
	if thread != nil {
		mode = thread.PermissionMode
	}
	prefix := fmt.Sprintf("[%s] ", mode)
	wrapped := WrapWithPrefix(view.InputContent, prefix, view.TermWidth)
	b.WriteString(strings.Join(wrapped, "\n"))
	return b.String()
}

func renderMessageSlice(messages []*cache.Message, start, end, viewportWidth int) []string {
	if start < 0 {
		start = 0
	}
	if end > len(messages) {
		end = len(messages)
	}
	if start >= end {
		return nil
	}

	var lines []string
	for _, msg := range messages[start:end] {
		prefix := rolePrefix(msg.Role)
		body := msg.Content
		if msg.IsStreaming {
			body += msg.PartialContent
		}
		lines = append(lines, WrapWithPrefix(body, prefix, viewportWidth)...)
	}
	return lines
}

func rolePrefix(role cache.Role) string {
	switch role {
	case cache.RoleUser:
		return "│ "
	case cache.RoleAssistant:
		return "  "
	case cache.RoleSystem:
		return "* "
	default:
		return "  "
	}
}

func renderDashboard(view *AppViewState) (string, RenderOutputs) {
	ids := view.Cache.ThreadOrder()
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Threads"))
	b.WriteString("\n")
	for _, id := range ids {
		t := view.Cache.Thread(id)
		if t == nil {
			continue
		}
		b.WriteString(fmt.Sprintf("  %s  %s\n", t.ID, t.Title))
	}
	return b.String(), RenderOutputs{TotalContentLines: len(ids) + 1}
}

func renderFolderPicker(view *AppViewState) (string, RenderOutputs) {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("cd> %s\n", view.Folder.Query))
	for i, entry := range view.Folder.Entries {
		marker := "  "
		if i == view.Folder.Selected {
			marker = "> "
		}
		b.WriteString(marker + entry + "\n")
	}
	return b.String(), RenderOutputs{TotalContentLines: len(view.Folder.Entries) + 1}
}
