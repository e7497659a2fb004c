package app

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/livesignal/internal/domain"
)

// SessionInfo is a read-only view of a registered session.
type SessionInfo struct {
	ID     domain.SessionID          `json:"id"`
	Target domain.TargetID           `json:"target"`
	Server string                    `json:"server"`
	State  string                    `json:"state"`
	Stream domain.StreamAnnouncement `json:"stream"`
}

// SessionRegistry maps session ids to sessions. Sessions are not safe for
// concurrent use, so callers stay on the loop.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[domain.SessionID]*Session),
	}
}

// Add stores s unless its id is already registered.
func (r *SessionRegistry) Add(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID()]; ok {
		log.Debug().Str("module", "app.registry").Str("sid", string(s.ID())).Msg("session already registered")
		return false
	}
	r.sessions[s.ID()] = s
	log.Info().Str("module", "app.registry").Str("sid", string(s.ID())).Str("target", string(s.Target())).Msg("session added")
	return true
}

// Has reports whether sid is registered without logging a miss.
func (r *SessionRegistry) Has(sid domain.SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[sid]
	return ok
}

func (r *SessionRegistry) Get(sid domain.SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sid]
	if !ok {
		log.Warn().Str("module", "app.registry").Str("sid", string(sid)).Msg("unknown session")
	}
	return s, ok
}

// Remove stops and drops the session. An unknown id is logged and ignored.
func (r *SessionRegistry) Remove(sid domain.SessionID) bool {
	r.mu.Lock()
	s, ok := r.sessions[sid]
	delete(r.sessions, sid)
	r.mu.Unlock()
	if !ok {
		log.Warn().Str("module", "app.registry").Str("sid", string(sid)).Msg("remove: unknown session")
		return false
	}
	s.Stop()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("session removed")
	return true
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StopAll stops every session and empties the registry. It returns the
// ids that were stopped.
func (r *SessionRegistry) StopAll() []domain.SessionID {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[domain.SessionID]*Session)
	r.mu.Unlock()

	ids := make([]domain.SessionID, 0, len(all))
	for sid, s := range all {
		s.Stop()
		ids = append(ids, sid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	log.Info().Str("module", "app.registry").Int("count", len(ids)).Msg("all sessions stopped")
	return ids
}

// ByServer returns the ids of sessions owned by the given server.
func (r *SessionRegistry) ByServer(server string) []domain.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []domain.SessionID
	for sid, s := range r.sessions {
		if s.Server() == server {
			ids = append(ids, sid)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *SessionRegistry) Snapshot() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, SessionInfo{
			ID:     s.ID(),
			Target: s.Target(),
			Server: s.Server(),
			State:  s.State().String(),
			Stream: s.Stream(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
