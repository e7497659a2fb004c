//go:generate mockgen -source=media_iface.go -destination=mocks/media_mock.go -package=mocks

package core

import (
	"context"

	"github.com/dkeye/livesignal/internal/domain"
)

type MediaState int

const (
	MediaNew MediaState = iota
	MediaConnecting
	MediaConnected
	MediaDisconnected
	MediaFailed
	MediaClosed
)

func (s MediaState) String() string {
	switch s {
	case MediaNew:
		return "new"
	case MediaConnecting:
		return "connecting"
	case MediaConnected:
		return "connected"
	case MediaDisconnected:
		return "disconnected"
	case MediaFailed:
		return "failed"
	case MediaClosed:
		return "closed"
	}
	return "unknown"
}

// MediaStats is the subset of transport statistics the player records.
type MediaStats struct {
	BytesReceived   uint64
	PacketsReceived uint64
}

// MediaEngine performs SDP, ICE and media transport for one session.
// Blocking calls take a ctx; callbacks may fire on any goroutine.
type MediaEngine interface {
	// SetRemoteDescription applies the remote offer.
	SetRemoteDescription(ctx context.Context, sdp string) error
	// CreateAnswer builds an answer to the applied offer.
	CreateAnswer(ctx context.Context) (string, error)
	SetLocalDescription(sdp string) error
	AddICECandidate(mlineIndex uint16, candidate string) error
	// OnLocalICECandidate sets a callback for locally gathered candidates.
	OnLocalICECandidate(func(mlineIndex uint16, candidate string))
	OnStateChange(func(MediaState))
	SetSTUNServer(url string) error
	// AddTURNServer reports whether the url was accepted.
	AddTURNServer(url string) bool
	RequestStats(ctx context.Context) (MediaStats, error)
	// Close releases transport resources and drops all callbacks.
	Close() error
}

type MediaEngineFactory interface {
	NewEngine(sid domain.SessionID, target domain.TargetID, settings domain.SessionSettings) (MediaEngine, error)
}
