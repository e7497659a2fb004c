package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/livesignal/internal/core"
	"github.com/dkeye/livesignal/internal/domain"
	"github.com/dkeye/livesignal/internal/loop"
	"github.com/dkeye/livesignal/internal/protocol"
)

type SessionState int

const (
	SessionCreated SessionState = iota
	SessionNegotiating
	SessionAnswered
	SessionActive
	SessionStopped
)

func (s SessionState) String() string {
	switch s {
	case SessionCreated:
		return "created"
	case SessionNegotiating:
		return "negotiating"
	case SessionAnswered:
		return "answered"
	case SessionActive:
		return "active"
	case SessionStopped:
		return "stopped"
	}
	return "unknown"
}

// StatsRecorder persists inbound byte counters sampled from the media engine.
type StatsRecorder interface {
	Record(sid domain.SessionID, target domain.TargetID, at time.Time, bytes uint64) error
	Release(sid domain.SessionID)
}

type SessionConfig struct {
	ID       domain.SessionID
	Target   domain.TargetID
	Stream   domain.StreamAnnouncement
	Settings domain.SessionSettings

	// Stats is sampled every StatsInterval when both are set.
	Stats         StatsRecorder
	StatsInterval time.Duration
}

// Session drives one media engine through offer/answer for a single
// server-issued session id. Every method must run on the loop.
type Session struct {
	cfg    SessionConfig
	loop   *loop.Loop
	signal core.Signaler
	engine core.MediaEngine

	ctx    context.Context
	cancel context.CancelFunc

	state   SessionState
	started bool

	// negotiation is bumped on every offer and on stop; a completion
	// carrying an older value is discarded.
	negotiation uint64
	stopStats   func() bool

	// sampling guards against overlapping stats requests.
	sampling atomic.Bool
	log      zerolog.Logger
}

func NewSession(l *loop.Loop, sig core.Signaler, engine core.MediaEngine, cfg SessionConfig) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:    cfg,
		loop:   l,
		signal: sig,
		engine: engine,
		ctx:    ctx,
		cancel: cancel,
		log: log.With().
			Str("module", "app.session").
			Str("server", sig.Server()).
			Str("sid", string(cfg.ID)).
			Str("target", string(cfg.Target)).
			Logger(),
	}
}

func (s *Session) ID() domain.SessionID              { return s.cfg.ID }
func (s *Session) Target() domain.TargetID           { return s.cfg.Target }
func (s *Session) Stream() domain.StreamAnnouncement { return s.cfg.Stream }
func (s *Session) Server() string                    { return s.signal.Server() }
func (s *Session) State() SessionState               { return s.state }

// Start wires engine callbacks and asks the server to set up the session.
func (s *Session) Start() error {
	if s.started || s.state == SessionStopped {
		return nil
	}
	s.started = true

	s.engine.OnLocalICECandidate(func(mline uint16, candidate string) {
		s.loop.Post(func() { s.sendCandidate(mline, candidate) })
	})
	s.engine.OnStateChange(func(st core.MediaState) {
		s.loop.Post(func() { s.mediaState(st) })
	})

	settings := s.cfg.Settings
	err := s.signal.Send(protocol.InitSessionRequest{
		SessionID: s.cfg.ID,
		TargetID:  s.cfg.Target,
		Settings:  &settings,
	})
	if err != nil {
		return err
	}
	if s.cfg.Stats != nil && s.cfg.StatsInterval > 0 {
		s.scheduleStats()
	}
	s.log.Info().Msg("session started")
	return nil
}

// HandleServerLists installs the STUN and TURN servers issued for this
// session. The first STUN url wins.
func (s *Session) HandleServerLists(lists protocol.ServerLists) {
	if s.state == SessionStopped {
		return
	}
	if len(lists.STUN) > 0 {
		if err := s.engine.SetSTUNServer(lists.STUN[0]); err != nil {
			s.log.Warn().Err(err).Str("url", lists.STUN[0]).Msg("stun server rejected")
		}
	}
	for _, u := range lists.TURN {
		if !s.engine.AddTURNServer(u) {
			s.log.Warn().Str("url", u).Msg("turn server rejected")
		}
	}
	s.log.Debug().Int("stun", len(lists.STUN)).Int("turn", len(lists.TURN)).Msg("server lists applied")
}

// HandleOffer starts a negotiation round. A newer offer supersedes any
// round still in flight.
func (s *Session) HandleOffer(sdp string) {
	if s.state == SessionStopped {
		return
	}
	s.state = SessionNegotiating
	s.negotiation++
	round := s.negotiation

	go func() {
		err := s.engine.SetRemoteDescription(s.ctx, sdp)
		s.loop.Post(func() { s.offerApplied(round, err) })
	}()
}

func (s *Session) offerApplied(round uint64, err error) {
	if s.stale(round) {
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("remote description rejected")
		return
	}
	go func() {
		answer, err := s.engine.CreateAnswer(s.ctx)
		s.loop.Post(func() { s.answerReady(round, answer, err) })
	}()
}

func (s *Session) answerReady(round uint64, answer string, err error) {
	if s.stale(round) {
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("create answer failed")
		return
	}
	if err := s.engine.SetLocalDescription(answer); err != nil {
		s.log.Warn().Err(err).Msg("local description rejected")
		return
	}
	err = s.signal.Send(protocol.SDPAnswerRequest{
		SessionID: s.cfg.ID,
		TargetID:  s.cfg.Target,
		SDP:       answer,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("send answer")
		return
	}
	if s.state == SessionNegotiating {
		s.state = SessionAnswered
	}
	s.log.Info().Msg("answer sent")
}

// HandleCandidate forwards a remote candidate straight to the engine,
// whatever the negotiation phase.
func (s *Session) HandleCandidate(mline uint16, candidate string) {
	if s.state == SessionStopped {
		return
	}
	if err := s.engine.AddICECandidate(mline, candidate); err != nil {
		s.log.Warn().Err(err).Uint16("mline", mline).Msg("remote candidate rejected")
	}
}

func (s *Session) sendCandidate(mline uint16, candidate string) {
	if s.state == SessionStopped {
		return
	}
	err := s.signal.Send(protocol.ICECandidateRequest{
		SessionID:  s.cfg.ID,
		TargetID:   s.cfg.Target,
		Candidate:  candidate,
		MLineIndex: mline,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("send local candidate")
	}
}

func (s *Session) mediaState(st core.MediaState) {
	if s.state == SessionStopped {
		return
	}
	s.log.Debug().Stringer("media", st).Msg("media state changed")
	switch st {
	case core.MediaConnected:
		s.state = SessionActive
		s.log.Info().Msg("media connected")
	case core.MediaFailed:
		s.log.Warn().Msg("media failed")
	}
}

func (s *Session) scheduleStats() {
	s.stopStats = s.loop.AfterFunc(s.cfg.StatsInterval, s.sampleStats)
}

func (s *Session) sampleStats() {
	if s.state == SessionStopped {
		return
	}
	s.scheduleStats()
	if !s.sampling.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.sampling.Store(false)
		st, err := s.engine.RequestStats(s.ctx)
		at := time.Now()
		s.loop.Post(func() { s.statsReady(at, st, err) })
	}()
}

func (s *Session) statsReady(at time.Time, st core.MediaStats, err error) {
	if s.state == SessionStopped {
		return
	}
	if err != nil {
		s.log.Debug().Err(err).Msg("stats unavailable")
		return
	}
	if st.BytesReceived == 0 {
		return
	}
	if err := s.cfg.Stats.Record(s.cfg.ID, s.cfg.Target, at, st.BytesReceived); err != nil {
		s.log.Warn().Err(err).Msg("record stats")
	}
}

func (s *Session) stale(round uint64) bool {
	return s.state == SessionStopped || round != s.negotiation
}

// Stop releases the engine. Calling it again is a no-op.
func (s *Session) Stop() {
	if s.state == SessionStopped {
		return
	}
	s.state = SessionStopped
	s.negotiation++
	s.cancel()
	if s.stopStats != nil {
		s.stopStats()
	}
	if s.cfg.Stats != nil {
		s.cfg.Stats.Release(s.cfg.ID)
	}
	if err := s.engine.Close(); err != nil {
		s.log.Warn().Err(err).Msg("close media engine")
	}
	s.log.Info().Msg("session stopped")
}
