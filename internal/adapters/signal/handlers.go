package signal

import (
	"maps"
	"slices"
	"sync"

	"github.com/dkeye/livesignal/internal/protocol"
)

// handlers is a set of typed callbacks. Removal is by the func returned
// from add.
type handlers[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

func (h *handlers[T]) add(fn func(T)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fns == nil {
		h.fns = make(map[int]func(T))
	}
	id := h.next
	h.next++
	h.fns[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.fns, id)
		h.mu.Unlock()
	}
}

func (h *handlers[T]) emit(v T) {
	h.mu.Lock()
	ids := slices.Sorted(maps.Keys(h.fns))
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.fns[id])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (h *handlers[T]) clear() {
	h.mu.Lock()
	h.fns = nil
	h.mu.Unlock()
}

// OnPeerConnected and friends register callbacks that run on the loop.
// Each returns a func that removes the callback.
func (c *Connection) OnPeerConnected(fn func(*protocol.PeerConnected)) func() {
	return c.peerConnected.add(fn)
}

func (c *Connection) OnPeerDisconnected(fn func(*protocol.PeerDisconnected)) func() {
	return c.peerDisconnected.add(fn)
}

func (c *Connection) OnStreamStarted(fn func(*protocol.StreamStarted)) func() {
	return c.streamStarted.add(fn)
}

func (c *Connection) OnStreamStopped(fn func(*protocol.StreamStopped)) func() {
	return c.streamStopped.add(fn)
}

func (c *Connection) OnSDPOffer(fn func(*protocol.SDPOffer)) func() {
	return c.sdpOffer.add(fn)
}

func (c *Connection) OnICECandidate(fn func(*protocol.ICECandidate)) func() {
	return c.iceCandidate.add(fn)
}

func (c *Connection) OnServerLists(fn func(*protocol.InitSessionResult)) func() {
	return c.serverLists.add(fn)
}

func (c *Connection) OnResponse(fn func(*protocol.Response)) func() {
	return c.response.add(fn)
}

// OnFailure is called once when the connection fails. The error wraps
// ErrAuth when no token could be obtained.
func (c *Connection) OnFailure(fn func(error)) func() {
	return c.failure.add(fn)
}
