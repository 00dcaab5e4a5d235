package control

import "context"

// Conn is the minimal transport capability the control client needs: read
// one message at a time, write one message at a time, close. gorilla's
// *websocket.Conn already satisfies this; a fake implementation can stand in
// for tests without dialing a real socket, per the "dynamic dispatch over
// WS client" design note — capability interface, concrete + mock impls,
// wired at construction rather than a global.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a Conn to url. The production implementation wraps
// gorilla/websocket's DefaultDialer; tests substitute an in-memory fake.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}
