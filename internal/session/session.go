package session

import (
	"time"

	"github.com/spoq-dev/spoq/internal/spoqerr"
)

// State is the process-lifetime session object: skills the backend has
// injected, context-window usage, the pending permission prompt, the queued
// steering request, and the todo list. It is pure CRUD except for the
// steering state machine.
type State struct {
	skills             map[string]struct{}
	ContextTokensUsed  int
	ContextTokensLimit int
	PendingPermission  *PendingPermission
	QueuedSteering     *QueuedSteering
	Todos              []Todo
}

// New constructs an empty session State.
func New() *State {
	return &State{skills: make(map[string]struct{})}
}

// AddSkill records a skill name made available to the session.
func (s *State) AddSkill(name string) {
	s.skills[name] = struct{}{}
}

// HasSkill reports whether a skill has been recorded.
func (s *State) HasSkill(name string) bool {
	_, ok := s.skills[name]
	return ok
}

// Skills returns the recorded skill names in no particular order.
func (s *State) Skills() []string {
	out := make([]string, 0, len(s.skills))
	for name := range s.skills {
		out = append(out, name)
	}
	return out
}

// SetContextUsage updates the context-window token counters.
func (s *State) SetContextUsage(used, limit int) {
	s.ContextTokensUsed = used
	s.ContextTokensLimit = limit
}

// SetPendingPermission records a new in-flight permission prompt,
// overwriting any previous one (the backend holds at most one outstanding
// request per session).
func (s *State) SetPendingPermission(p *PendingPermission) {
	s.PendingPermission = p
}

// ClearPendingPermission resolves the in-flight permission prompt.
func (s *State) ClearPendingPermission() {
	s.PendingPermission = nil
}

// ReplaceTodos swaps in a new todo list wholesale, matching the wire
// contract's "todos_updated replaces todos" semantics.
func (s *State) ReplaceTodos(todos []Todo) {
	s.Todos = todos
}

// QueueSteering creates a new Queued steering slot. It fails with
// spoqerr.ErrSteeringActive if a steering request is already active.
func (s *State) QueueSteering(threadID, instruction string) (*QueuedSteering, error) {
	if s.QueuedSteering != nil && s.QueuedSteering.IsActive() {
		return nil, spoqerr.New(spoqerr.KindUser, "queue steering", spoqerr.ErrSteeringActive)
	}
	q := &QueuedSteering{ThreadID: threadID, Instruction: instruction, QueuedAt: time.Now(), State: SteeringQueued}
	s.QueuedSteering = q
	return q, nil
}

func (s *State) transitionSteering(to SteeringState) error {
	if s.QueuedSteering == nil {
		return spoqerr.New(spoqerr.KindClient, "steering transition", spoqerr.ErrNoQueuedSteering)
	}
	s.QueuedSteering.State = to
	return nil
}

// MarkSteeringSent transitions Queued -> Sent on a steering_queued... ack
// from the backend (named for the acknowledgment it reflects: the backend
// confirms it received the steer and is about to interrupt).
func (s *State) MarkSteeringSent() error {
	return s.transitionSteering(SteeringSent)
}

// MarkSteeringInterrupting transitions on a steering_interrupting ack.
func (s *State) MarkSteeringInterrupting() error {
	return s.transitionSteering(SteeringInterrupting)
}

// MarkSteeringResuming transitions on a steering_resuming ack.
func (s *State) MarkSteeringResuming() error {
	return s.transitionSteering(SteeringResuming)
}

// CompleteSteering resolves the steering slot successfully, returning a
// snapshot so the caller can promote the instruction to a normal user
// message, and frees the slot.
func (s *State) CompleteSteering() (*QueuedSteering, error) {
	if s.QueuedSteering == nil {
		return nil, spoqerr.New(spoqerr.KindClient, "complete steering", spoqerr.ErrNoQueuedSteering)
	}
	done := *s.QueuedSteering
	done.State = SteeringCompleted
	s.QueuedSteering = nil
	return &done, nil
}

// FailSteering resolves the steering slot with an error, returning a
// snapshot (with FailureMessage set) so the caller can render the
// instruction line with error styling in place, and frees the slot.
func (s *State) FailSteering(message string) (*QueuedSteering, error) {
	if s.QueuedSteering == nil {
		return nil, spoqerr.New(spoqerr.KindClient, "fail steering", spoqerr.ErrNoQueuedSteering)
	}
	failed := *s.QueuedSteering
	failed.State = SteeringFailed
	failed.FailureMessage = message
	s.QueuedSteering = nil
	return &failed, nil
}
