package realtime

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Connect on a session that was already disconnected,
// including one disconnected while its handshake was in flight.
var ErrClosed = errors.New("realtime session closed")

type ErrorKind string

const (
	// KindSetup covers local failures: microphone, peer connection, tracks.
	KindSetup ErrorKind = "setup"
	// KindNegotiation covers credential fetch, SDP exchange and ICE gathering.
	KindNegotiation ErrorKind = "negotiation"
)

// ConnectionError is the only error surfaced through Callbacks.OnError.
type ConnectionError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("realtime %s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsNegotiation reports whether err is a ConnectionError of KindNegotiation.
func IsNegotiation(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce) && ce.Kind == KindNegotiation
}
