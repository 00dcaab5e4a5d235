package control

import (
	"context"

	"github.com/spoq-dev/spoq/internal/cache"
)

// Dispatcher adapts a Client's outgoing frames to the coordinator.Dispatcher
// and modesync.Syncer interfaces, so cancel/steer/mode-change all travel
// over the control channel per spec §6's "Other outgoing: cancel, steer,
// mode change." It is the primary transport; internal/backend.Client is the
// HTTP fallback used when the channel is not connected.
type Dispatcher struct {
	client *Client
}

// NewDispatcher wraps client for use as a coordinator.Dispatcher /
// modesync.Syncer.
func NewDispatcher(client *Client) *Dispatcher {
	return &Dispatcher{client: client}
}

// SendCancel implements coordinator.Dispatcher.
func (d *Dispatcher) SendCancel(_ context.Context, threadID string) error {
	return d.client.Send(Outgoing{Type: OutgoingCancel, ThreadID: threadID})
}

// SendSteer implements coordinator.Dispatcher.
func (d *Dispatcher) SendSteer(_ context.Context, threadID, instruction string) error {
	return d.client.Send(Outgoing{Type: OutgoingSteer, ThreadID: threadID, Instruction: instruction})
}

// SyncThreadMode implements modesync.Syncer's thread-mode sync leg.
func (d *Dispatcher) SyncThreadMode(_ context.Context, threadID string, mode cache.PermissionMode) error {
	return d.client.Send(Outgoing{Type: OutgoingModeChange, ThreadID: threadID, Mode: string(mode)})
}

// SyncPermissionMode implements modesync.Syncer's permission-mode sync leg.
// The control channel carries a single mode_change frame kind; spoq encodes
// both legs through it since the wire protocol does not distinguish them
// beyond the Mode field itself.
func (d *Dispatcher) SyncPermissionMode(_ context.Context, threadID string, mode cache.PermissionMode) error {
	return d.client.Send(Outgoing{Type: OutgoingModeChange, ThreadID: threadID, Mode: string(mode)})
}
