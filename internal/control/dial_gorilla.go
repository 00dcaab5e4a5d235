package control

import (
	"context"

	"github.com/gorilla/websocket"
)

// GorillaDialer dials a control channel over a real network socket using
// gorilla/websocket, the same library the igoryanba-ricochet bridge client
// uses for its websocket leg.
type GorillaDialer struct {
	Dialer *websocket.Dialer
}

// NewGorillaDialer returns a GorillaDialer backed by websocket.DefaultDialer.
func NewGorillaDialer() *GorillaDialer {
	return &GorillaDialer{Dialer: websocket.DefaultDialer}
}

// Dial implements Dialer.
func (d *GorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
