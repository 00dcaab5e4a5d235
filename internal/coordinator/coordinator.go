// Package coordinator owns the two guarded async-request state machines
// that sit between the event loop and the backend: cooperative stream
// cancellation and steering (soft-interrupt) of an active stream. Both
// are driven by server acknowledgments arriving over the control channel
// or SSE stream, never by local optimism.
package coordinator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spoq-dev/spoq/internal/cache"
	"github.com/spoq-dev/spoq/internal/session"
	"github.com/spoq-dev/spoq/internal/spoqerr"
)

// Dispatcher sends the RPCs the coordinator issues over the control
// channel (or an HTTP fallback, per spec §4.13's "C2 (or HTTP fallback)").
type Dispatcher interface {
	SendCancel(ctx context.Context, threadID string) error
	SendSteer(ctx context.Context, threadID, instruction string) error
}

// SteeringAck is the server acknowledgment kind driving the steering
// state machine forward.
type SteeringAck string

const (
	AckSteeringQueued       SteeringAck = "steering_queued"
	AckSteeringInterrupting SteeringAck = "steering_interrupting"
	AckSteeringResuming     SteeringAck = "steering_resuming"
)

// Coordinator guards cancellation and steering against duplicate or
// overlapping requests, delegating the actual state transitions to
// internal/session and internal/cache.
type Coordinator struct {
	mu sync.Mutex

	cancelInProgress bool
	activeThreadID   string
	streamActive     bool

	dispatcher Dispatcher
	cache      *cache.ThreadCache
	session    *session.State
	logger     *zap.Logger
}

// New constructs a Coordinator over the given cache/session and RPC dispatcher.
func New(threadCache *cache.ThreadCache, sessionState *session.State, dispatcher Dispatcher, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{dispatcher: dispatcher, cache: threadCache, session: sessionState, logger: logger}
}

// SetActiveStream records the thread a stream is currently open against,
// so CancelActiveStream knows what it's guarding.
func (c *Coordinator) SetActiveStream(threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeThreadID = threadID
	c.streamActive = threadID != ""
}

// ClearActiveStream marks no stream as active, without touching cancelInProgress.
func (c *Coordinator) ClearActiveStream() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streamActive = false
}

// CancelInProgress reports whether a cancel request is outstanding.
func (c *Coordinator) CancelInProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelInProgress
}

// CancelActiveStream dispatches a cancel RPC for the active thread. While a
// cancel is already in flight, or when there is no active stream or active
// thread, it dispatches nothing and returns an error wrapping
// spoqerr.ErrCancelInFlight or spoqerr.ErrNoActiveStream respectively.
func (c *Coordinator) CancelActiveStream(ctx context.Context) error {
	c.mu.Lock()
	if c.cancelInProgress {
		c.mu.Unlock()
		return spoqerr.New(spoqerr.KindClient, "cancel_active_stream", spoqerr.ErrCancelInFlight)
	}
	if !c.streamActive || c.activeThreadID == "" {
		c.mu.Unlock()
		return spoqerr.New(spoqerr.KindClient, "cancel_active_stream", spoqerr.ErrNoActiveStream)
	}
	c.cancelInProgress = true
	threadID := c.activeThreadID
	c.mu.Unlock()

	c.logger.Debug("dispatching cancel", zap.String("thread_id", threadID))
	if err := c.dispatcher.SendCancel(ctx, threadID); err != nil {
		return fmt.Errorf("dispatch cancel: %w", err)
	}
	return nil
}

// OnStreamOutcome resets cancelInProgress for the given thread regardless
// of how the stream ended (completed, cancelled, or errored) — the flag
// only ever guards a single in-flight cancel request, not the RPC's
// eventual success.
func (c *Coordinator) OnStreamOutcome(threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeThreadID == threadID {
		c.cancelInProgress = false
	}
}

// QueueSteering records a steer request and dispatches it, rejecting the
// call outright if a steering request is already active for this process.
func (c *Coordinator) QueueSteering(ctx context.Context, threadID, instruction string) error {
	if _, err := c.session.QueueSteering(threadID, instruction); err != nil {
		return err
	}
	if err := c.dispatcher.SendSteer(ctx, threadID, instruction); err != nil {
		return fmt.Errorf("dispatch steer: %w", err)
	}
	return nil
}

// HandleSteeringAck advances the steering state machine on a server
// acknowledgment arriving over the control channel.
func (c *Coordinator) HandleSteeringAck(ack SteeringAck) error {
	switch ack {
	case AckSteeringInterrupting:
		return c.session.MarkSteeringInterrupting()
	case AckSteeringResuming:
		return c.session.MarkSteeringResuming()
	case AckSteeringQueued:
		return c.session.MarkSteeringSent()
	default:
		return fmt.Errorf("coordinator: unknown steering ack %q", ack)
	}
}

// CompleteSteering finalizes a steering request: the instruction is
// promoted to a normal user message on its thread and the slot is freed.
func (c *Coordinator) CompleteSteering() error {
	queued, err := c.session.CompleteSteering()
	if err != nil {
		return err
	}
	c.cache.AppendUserMessage(queued.ThreadID, queued.Instruction)
	return nil
}

// FailSteering finalizes a steering request as failed: an inline error is
// pushed on the thread and the slot is freed.
func (c *Coordinator) FailSteering(message string) error {
	queued, err := c.session.FailSteering(message)
	if err != nil {
		return err
	}
	c.cache.PushError(queued.ThreadID, "steering_failed", message)
	return nil
}
