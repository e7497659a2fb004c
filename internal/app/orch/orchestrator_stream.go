package orch

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/livesignal/internal/app"
	"github.com/dkeye/livesignal/internal/core"
	"github.com/dkeye/livesignal/internal/domain"
	"github.com/dkeye/livesignal/internal/protocol"
)

func (o *Orchestrator) streamStarted(conn Connection, ev *protocol.StreamStarted) {
	stream := ev.Stream
	if stream.SessionID == "" {
		stream.SessionID = ev.SessionID
	}
	logger := log.With().
		Str("module", "orch").
		Str("server", conn.Server()).
		Str("sid", string(stream.SessionID)).
		Str("subject", stream.Subject).
		Logger()

	if !domain.MatchesTarget(o.cfg.Target, stream.Subject) {
		logger.Debug().Str("filter", o.cfg.Target).Msg("stream ignored by target filter")
		return
	}
	err := o.createSession(conn, stream.Target(), stream.SessionID, stream)
	switch {
	case errors.Is(err, ErrDuplicate):
		logger.Debug().Msg("stream already has a session")
	case err != nil:
		logger.Error().Err(err).Msg("create session")
	}
}

func (o *Orchestrator) streamStopped(conn Connection, ev *protocol.StreamStopped) {
	sid := ev.Stream.SessionID
	if sid == "" {
		sid = ev.SessionID
	}
	if !o.registry.Has(sid) {
		return
	}
	if _, ok := o.session(conn, sid); ok {
		o.stopSession(sid)
	}
}

func (o *Orchestrator) createSession(conn Connection, target domain.TargetID, sid domain.SessionID, stream domain.StreamAnnouncement) error {
	if sid == "" {
		return protocol.ErrMissingField
	}
	if o.registry.Has(sid) {
		return ErrDuplicate
	}
	engine, err := o.media.NewEngine(sid, target, o.cfg.Settings)
	if err != nil {
		return err
	}
	s := app.NewSession(o.loop, conn, engine, app.SessionConfig{
		ID:            sid,
		Target:        target,
		Stream:        stream,
		Settings:      o.cfg.Settings,
		Stats:         o.cfg.Stats,
		StatsInterval: o.cfg.StatsInterval,
	})
	o.registry.Add(s)
	if err := s.Start(); err != nil {
		o.registry.Remove(sid)
		return err
	}
	o.presenter.SessionCreated(sid, target, stream)
	return nil
}

// stopSession reports false for an unknown id, which is expected when a
// stop races a stream-stopped event.
func (o *Orchestrator) stopSession(sid domain.SessionID) bool {
	if !o.registry.Remove(sid) {
		return false
	}
	o.presenter.SessionEnded(sid)
	return true
}

func (o *Orchestrator) peerConnected(ev *protocol.PeerConnected) {
	log.Debug().
		Str("module", "orch").
		Str("source", ev.Source).
		Str("subject", ev.Subject).
		Msg("peer connected")
}

func (o *Orchestrator) peerDisconnected(ev *protocol.PeerDisconnected) {
	log.Debug().
		Str("module", "orch").
		Str("source", ev.Source).
		Str("subject", ev.Subject).
		Msg("peer disconnected")
}

func (o *Orchestrator) connectionFailed(conn Connection, err error) {
	server := conn.Server()
	if errors.Is(err, core.ErrAuth) {
		o.presenter.AuthError(server, err.Error())
	} else {
		o.presenter.ConnectionLost(server, err)
	}
	for _, sid := range o.registry.ByServer(server) {
		o.stopSession(sid)
	}
	o.unbind(server)
	log.Warn().Str("module", "orch").Str("server", server).Err(err).Msg("connection dropped")
}
