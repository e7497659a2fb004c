package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/livesignal/internal/app"
	"github.com/dkeye/livesignal/internal/domain"
	"github.com/dkeye/livesignal/internal/protocol"
)

// session finds the session a routed message is for. Messages for a
// session owned by another server are treated as misses.
func (o *Orchestrator) session(conn Connection, sid domain.SessionID) (*app.Session, bool) {
	s, ok := o.registry.Get(sid)
	if !ok {
		return nil, false
	}
	if s.Server() != conn.Server() {
		log.Warn().
			Str("module", "orch").
			Str("server", conn.Server()).
			Str("owner", s.Server()).
			Str("sid", string(sid)).
			Msg("message for a session of another server")
		return nil, false
	}
	return s, true
}

func (o *Orchestrator) sdpOffer(conn Connection, ev *protocol.SDPOffer) {
	if s, ok := o.session(conn, ev.SessionID); ok {
		s.HandleOffer(ev.SDP)
	}
}

func (o *Orchestrator) iceCandidate(conn Connection, ev *protocol.ICECandidate) {
	if s, ok := o.session(conn, ev.SessionID); ok {
		s.HandleCandidate(ev.MLineIndex, ev.Candidate)
	}
}

func (o *Orchestrator) serverLists(conn Connection, ev *protocol.InitSessionResult) {
	if s, ok := o.session(conn, ev.SessionID); ok {
		s.HandleServerLists(ev.Servers)
	}
}
