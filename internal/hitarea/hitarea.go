// Package hitarea implements the clickable-rect registry the renderer
// populates every frame and the event loop queries on mouse events: a
// closed set of click actions, painter's-algorithm hit testing over
// overlapping rects, and hover-change detection for dirty tracking.
package hitarea

import "github.com/charmbracelet/lipgloss"

// Rect is a terminal-cell rectangle whose right and bottom edges are
// exclusive: it covers columns X..X+Width-1 and rows Y..Y+Height-1.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Contains reports whether (x, y) falls within the rect.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// ActionKind enumerates every interactive affordance the renderer can
// register a clickable rect for.
type ActionKind string

const (
	ActionApproveThread ActionKind = "approve_thread"
	ActionRejectThread  ActionKind = "reject_thread"
	ActionViewFullPlan  ActionKind = "view_full_plan"
	ActionFilterWorking ActionKind = "filter_working"
	ActionOpenThread    ActionKind = "open_thread"
	ActionDismissError  ActionKind = "dismiss_error"
)

// Action is a closed tagged variant identifying what a registered rect
// does when clicked, carrying only the fields relevant to its Kind.
type Action struct {
	Kind     ActionKind
	ThreadID string
	ErrorID  string
}

// area is one registered hit region, in registration order.
type area struct {
	rect       Rect
	action     Action
	hoverStyle *lipgloss.Style
}

// Registry tracks the clickable rects registered during the current
// render pass and the last-known hover position.
type Registry struct {
	areas      []area
	hoverX     int
	hoverY     int
	hasHover   bool
	hoverIndex int
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{hoverIndex: -1}
}

// Clear empties the registry; called at the start of every prepare pass
// so stale rects from the previous frame never outlive their widgets.
func (r *Registry) Clear() {
	r.areas = r.areas[:0]
	r.hoverIndex = -1
}

// Register records one clickable rect. Later registrations shadow earlier
// ones at overlapping coordinates (painter's algorithm: last drawn wins).
func (r *Registry) Register(rect Rect, action Action, hoverStyle *lipgloss.Style) {
	r.areas = append(r.areas, area{rect: rect, action: action, hoverStyle: hoverStyle})
}

// HitTest returns the action of the topmost (last-registered) rect
// containing (x, y), or false if none matches.
func (r *Registry) HitTest(x, y int) (Action, bool) {
	for i := len(r.areas) - 1; i >= 0; i-- {
		if r.areas[i].rect.Contains(x, y) {
			return r.areas[i].action, true
		}
	}
	return Action{}, false
}

// UpdateHover recomputes the hovered rect for (x, y) and reports whether
// the hovered rect changed since the last call, so callers can mark the
// frame dirty only when hover visibly moved.
func (r *Registry) UpdateHover(x, y int) bool {
	r.hoverX, r.hoverY, r.hasHover = x, y, true

	newIndex := -1
	for i := len(r.areas) - 1; i >= 0; i-- {
		if r.areas[i].rect.Contains(x, y) {
			newIndex = i
			break
		}
	}

	changed := newIndex != r.hoverIndex
	r.hoverIndex = newIndex
	return changed
}

// HoverStyle returns the hover style registered for the currently hovered
// rect, if any.
func (r *Registry) HoverStyle() (lipgloss.Style, bool) {
	if r.hoverIndex < 0 || r.hoverIndex >= len(r.areas) || r.areas[r.hoverIndex].hoverStyle == nil {
		return lipgloss.Style{}, false
	}
	return *r.areas[r.hoverIndex].hoverStyle, true
}

// Len reports how many rects are currently registered, mostly for tests.
func (r *Registry) Len() int {
	return len(r.areas)
}
