package tui

import (
	"github.com/spoq-dev/spoq/internal/control"
	"github.com/spoq-dev/spoq/internal/sse"
)

// appMsg is the sum type carried on the app-message channel: every variant
// a background task (stream reader, control-channel subscriber) can push
// into the event loop. Exactly one field is populated per value.
type appMsg struct {
	sseEvent    *sse.Event
	sseThreadID string
	streamEnded bool
	streamErr   error

	controlFrame *control.Incoming
	connState    *control.ConnState
	steeringAck  *steeringAckMsg
}

type steeringAckMsg struct {
	ack string
}

// tickMsg marks one periodic event-loop tick (~100ms, §4.10).
type tickMsg struct{}
