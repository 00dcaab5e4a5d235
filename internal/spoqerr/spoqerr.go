// Package spoqerr defines spoq's error taxonomy and propagation policy.
//
// Every error that crosses a component boundary carries a Kind so callers
// can decide retry/reauth/user-facing behavior without string matching.
package spoqerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation/retry decisions.
type Kind string

const (
	// KindNetwork covers connection failures, timeouts, and disconnects. Retryable.
	KindNetwork Kind = "network"
	// KindAuth covers unauthorized, refresh-failed, and missing-credential errors.
	KindAuth Kind = "auth"
	// KindServer covers HTTP 5xx and stream-side backend errors. Retryable after delay.
	KindServer Kind = "server"
	// KindClient covers parse errors and invalid/unknown event payloads. Not retryable.
	KindClient Kind = "client"
	// KindUser covers invalid input, permission denial, and missing configuration.
	KindUser Kind = "user"
	// KindSystem covers filesystem, permission, and resource errors.
	KindSystem Kind = "system"
)

// Error wraps an underlying error with a Kind and optional context.
type Error struct {
	Kind    Kind
	Context string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs a classified error.
func New(kind Kind, context string, err error) *Error {
	return &Error{Kind: kind, Context: context, Err: err}
}

// Retryable reports whether the error kind is generally safe to retry.
func Retryable(err error) bool {
	var classified *Error
	if !errors.As(err, &classified) {
		return false
	}
	switch classified.Kind {
	case KindNetwork, KindServer:
		return true
	default:
		return false
	}
}

// Sentinel errors surfaced by spoq's core components. Wrap these with
// fmt.Errorf("...: %w", ErrX) to preserve errors.Is matching.
var (
	// ErrStreamClosed indicates a stream channel was closed before completion.
	ErrStreamClosed = errors.New("stream closed")
	// ErrNotConnected indicates an operation required an active control-channel connection.
	ErrNotConnected = errors.New("control channel not connected")
	// ErrCancelInFlight indicates a cancel request was already in progress.
	ErrCancelInFlight = errors.New("cancel already in progress")
	// ErrUnknownEventType indicates an SSE event type has no registered parser.
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrInvalidEventPayload indicates an SSE event's JSON payload failed to parse.
	ErrInvalidEventPayload = errors.New("invalid event payload")
	// ErrMissingEventData indicates an SSE event was dispatched with no data lines.
	ErrMissingEventData = errors.New("missing event data")
	// ErrSteeringActive indicates a steering request was rejected because one is already in flight.
	ErrSteeringActive = errors.New("steering already active")
	// ErrNoActiveStream indicates an operation required an in-flight stream that does not exist.
	ErrNoActiveStream = errors.New("no active stream")
	// ErrNoQueuedSteering indicates a steering transition was requested with no steering queued.
	ErrNoQueuedSteering = errors.New("no steering queued")
)
