//go:generate mockgen -source=signal_iface.go -destination=mocks/signal_mock.go -package=mocks

package core

import "github.com/dkeye/livesignal/internal/protocol"

// Signaler is the outbound half of a signaling connection as seen by a
// session. Send queues until the connection is ready.
type Signaler interface {
	Send(req protocol.Request) error
	Server() string
}
