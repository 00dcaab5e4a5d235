package render

import "time"

// BoundaryHighlightTicks is how many ticks a scroll-boundary-hit indicator
// stays lit before auto-clearing.
const BoundaryHighlightTicks = 6

// ScrollVelocityDecay is the per-tick multiplicative decay factor applied to
// scroll momentum.
const ScrollVelocityDecay = 0.82

// ScrollState is the unified-scroll model for one thread's message view.
// unified_scroll is distance from the bottom: 0 means bottom-anchored,
// larger values mean further back in history.
type ScrollState struct {
	Position          int
	MaxScroll         int
	Velocity          float64
	UserHasScrolled   bool
	BoundaryHit       bool
	boundaryTicksLeft int
}

// ApplyUserScroll nudges position by delta (positive scrolls back into
// history, negative scrolls toward the bottom), clamping to [0, MaxScroll]
// and latching UserHasScrolled until the bottom is reached again.
func (s *ScrollState) ApplyUserScroll(delta int) {
	next := s.Position + delta
	if next < 0 {
		next = 0
	}
	if next > s.MaxScroll {
		next = s.MaxScroll
		s.setBoundaryHit()
	}
	s.Position = next
	s.UserHasScrolled = s.Position != 0
}

// ApplyVelocityImpulse adds momentum (e.g. from a mouse-wheel event) that
// Tick integrates and decays over subsequent frames.
func (s *ScrollState) ApplyVelocityImpulse(delta float64) {
	s.Velocity += delta
}

// Tick advances one event-loop tick: integrates velocity into position,
// decays it, clamps to bounds, and expires the boundary indicator.
// Returns true if any visible state changed (i.e. the caller should mark
// the frame dirty).
func (s *ScrollState) Tick() bool {
	changed := false

	if s.Velocity != 0 {
		delta := int(s.Velocity)
		if delta != 0 {
			s.ApplyUserScroll(delta)
			changed = true
		}
		s.Velocity *= ScrollVelocityDecay
		if s.Velocity > -0.5 && s.Velocity < 0.5 {
			s.Velocity = 0
		}
	}

	if s.Position == 0 {
		s.UserHasScrolled = false
	}

	if s.boundaryTicksLeft > 0 {
		s.boundaryTicksLeft--
		if s.boundaryTicksLeft == 0 {
			s.BoundaryHit = false
			changed = true
		}
	}

	return changed
}

// SyncMaxScroll recomputes MaxScroll from the active thread's rendered
// content-line total, clamping Position if content shrank below it.
func (s *ScrollState) SyncMaxScroll(totalContentLines, viewportHeight int) {
	max := totalContentLines - viewportHeight
	if max < 0 {
		max = 0
	}
	s.MaxScroll = max
	if s.Position > max {
		s.Position = max
	}
}

func (s *ScrollState) setBoundaryHit() {
	s.BoundaryHit = true
	s.boundaryTicksLeft = BoundaryHighlightTicks
}

// IsFollowing reports whether auto-follow (snap to bottom on new content)
// should be active: it is disabled for the duration of the UserHasScrolled
// latch.
func (s *ScrollState) IsFollowing() bool {
	return !s.UserHasScrolled
}

// TickInterval is the event loop's periodic tick cadence (§4.10: "periodic
// tick (≈100 ms)").
const TickInterval = 100 * time.Millisecond
