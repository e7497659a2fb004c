package http

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/livesignal/internal/domain"
)

type EventKind string

const (
	EventSessionCreated EventKind = "session_created"
	EventSessionEnded   EventKind = "session_ended"
	EventAuthError      EventKind = "auth_error"
	EventConnectionLost EventKind = "connection_lost"
)

type Event struct {
	At      time.Time                  `json:"at"`
	Kind    EventKind                  `json:"kind"`
	Session domain.SessionID           `json:"session_id,omitempty"`
	Target  domain.TargetID            `json:"target,omitempty"`
	Server  string                     `json:"server,omitempty"`
	Message string                     `json:"message,omitempty"`
	Stream  *domain.StreamAnnouncement `json:"stream,omitempty"`
}

// Board is a Presenter that keeps the most recent lifecycle events for
// the status API.
type Board struct {
	mu     sync.RWMutex
	events []Event
	size   int
	now    func() time.Time
}

func NewBoard(size int) *Board {
	if size <= 0 {
		size = 100
	}
	return &Board{size: size, now: time.Now}
}

func (b *Board) push(ev Event) {
	ev.At = b.now()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == b.size {
		copy(b.events, b.events[1:])
		b.events = b.events[:b.size-1]
	}
	b.events = append(b.events, ev)
}

// Events returns up to limit events, oldest first. limit <= 0 means all.
func (b *Board) Events(limit int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	from := 0
	if limit > 0 && limit < len(b.events) {
		from = len(b.events) - limit
	}
	return append([]Event(nil), b.events[from:]...)
}

func (b *Board) SessionCreated(sid domain.SessionID, target domain.TargetID, meta domain.StreamAnnouncement) {
	log.Info().
		Str("module", "adapters.http.board").
		Str("sid", string(sid)).
		Str("target", string(target)).
		Str("bearer", meta.BearerName).
		Msg("session created")
	b.push(Event{Kind: EventSessionCreated, Session: sid, Target: target, Stream: &meta})
}

func (b *Board) SessionEnded(sid domain.SessionID) {
	log.Info().Str("module", "adapters.http.board").Str("sid", string(sid)).Msg("session ended")
	b.push(Event{Kind: EventSessionEnded, Session: sid})
}

func (b *Board) AuthError(server, message string) {
	log.Error().Str("module", "adapters.http.board").Str("server", server).Str("reason", message).Msg("authentication error")
	b.push(Event{Kind: EventAuthError, Server: server, Message: message})
}

func (b *Board) ConnectionLost(server string, err error) {
	log.Error().Str("module", "adapters.http.board").Str("server", server).Err(err).Msg("connection lost")
	b.push(Event{Kind: EventConnectionLost, Server: server, Message: err.Error()})
}
