// Package orch holds every signaling connection of the player and routes
// their events to sessions.
package orch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/livesignal/internal/app"
	"github.com/dkeye/livesignal/internal/core"
	"github.com/dkeye/livesignal/internal/domain"
	"github.com/dkeye/livesignal/internal/loop"
	"github.com/dkeye/livesignal/internal/protocol"
)

var (
	ErrUnknownServer  = errors.New("unknown server")
	ErrUnknownSession = errors.New("unknown session")
	ErrDuplicate      = errors.New("session already exists")
)

// Connection is what the orchestrator needs from a signaling connection.
// Callbacks registered through it must run on the loop.
type Connection interface {
	core.Signaler
	Connect(ctx context.Context) error
	Close()

	OnPeerConnected(fn func(*protocol.PeerConnected)) func()
	OnPeerDisconnected(fn func(*protocol.PeerDisconnected)) func()
	OnStreamStarted(fn func(*protocol.StreamStarted)) func()
	OnStreamStopped(fn func(*protocol.StreamStopped)) func()
	OnSDPOffer(fn func(*protocol.SDPOffer)) func()
	OnICECandidate(fn func(*protocol.ICECandidate)) func()
	OnServerLists(fn func(*protocol.InitSessionResult)) func()
	OnFailure(fn func(error)) func()
}

type Config struct {
	// Target filters announced streams by subject prefix; empty accepts all.
	Target   string
	Settings domain.SessionSettings

	Stats         app.StatsRecorder
	StatsInterval time.Duration
}

type binding struct {
	conn        Connection
	unsubscribe []func()
}

// Orchestrator owns the connections and the session registry. Its state
// lives on the loop; the exported methods hop onto it.
type Orchestrator struct {
	loop      *loop.Loop
	registry  *app.SessionRegistry
	media     core.MediaEngineFactory
	presenter core.Presenter
	cfg       Config

	conns map[string]*binding
}

func New(l *loop.Loop, media core.MediaEngineFactory, presenter core.Presenter, cfg Config) *Orchestrator {
	if presenter == nil {
		presenter = core.NopPresenter{}
	}
	return &Orchestrator{
		loop:      l,
		registry:  app.NewSessionRegistry(),
		media:     media,
		presenter: presenter,
		cfg:       cfg,
		conns:     make(map[string]*binding),
	}
}

// AddConnection subscribes to conn and starts connecting it. A server can
// only be added once while its connection is alive.
func (o *Orchestrator) AddConnection(ctx context.Context, conn Connection) error {
	var err error
	if doErr := o.loop.Do(ctx, func() { err = o.addConnection(ctx, conn) }); doErr != nil {
		return doErr
	}
	return err
}

// StartSession creates a session without waiting for a stream announcement.
func (o *Orchestrator) StartSession(ctx context.Context, server string, target domain.TargetID, sid domain.SessionID) error {
	var err error
	doErr := o.loop.Do(ctx, func() {
		b, ok := o.conns[server]
		if !ok {
			err = ErrUnknownServer
			return
		}
		err = o.createSession(b.conn, target, sid, domain.StreamAnnouncement{
			SessionID: sid,
			Subject:   string(target),
		})
	})
	if doErr != nil {
		return doErr
	}
	return err
}

func (o *Orchestrator) StopSession(ctx context.Context, sid domain.SessionID) error {
	var err error
	doErr := o.loop.Do(ctx, func() {
		if !o.stopSession(sid) {
			err = ErrUnknownSession
		}
	})
	if doErr != nil {
		return doErr
	}
	return err
}

func (o *Orchestrator) Sessions(ctx context.Context) ([]app.SessionInfo, error) {
	var out []app.SessionInfo
	err := o.loop.Do(ctx, func() { out = o.registry.Snapshot() })
	return out, err
}

// Shutdown stops every session and then closes the connections.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	return o.loop.Do(ctx, o.shutdown)
}

func (o *Orchestrator) addConnection(ctx context.Context, conn Connection) error {
	server := conn.Server()
	if _, ok := o.conns[server]; ok {
		return ErrDuplicate
	}
	b := &binding{conn: conn}
	b.unsubscribe = []func(){
		conn.OnPeerConnected(o.peerConnected),
		conn.OnPeerDisconnected(o.peerDisconnected),
		conn.OnStreamStarted(func(ev *protocol.StreamStarted) { o.streamStarted(conn, ev) }),
		conn.OnStreamStopped(func(ev *protocol.StreamStopped) { o.streamStopped(conn, ev) }),
		conn.OnSDPOffer(func(ev *protocol.SDPOffer) { o.sdpOffer(conn, ev) }),
		conn.OnICECandidate(func(ev *protocol.ICECandidate) { o.iceCandidate(conn, ev) }),
		conn.OnServerLists(func(ev *protocol.InitSessionResult) { o.serverLists(conn, ev) }),
		conn.OnFailure(func(err error) { o.connectionFailed(conn, err) }),
	}
	o.conns[server] = b

	if err := conn.Connect(ctx); err != nil {
		o.unbind(server)
		return err
	}
	log.Info().Str("module", "orch").Str("server", server).Msg("connection added")
	return nil
}

func (o *Orchestrator) unbind(server string) {
	b, ok := o.conns[server]
	if !ok {
		return
	}
	for _, un := range b.unsubscribe {
		un()
	}
	delete(o.conns, server)
}

func (o *Orchestrator) shutdown() {
	for _, sid := range o.registry.StopAll() {
		o.presenter.SessionEnded(sid)
	}
	for server, b := range o.conns {
		b.conn.Close()
		o.unbind(server)
	}
	log.Info().Str("module", "orch").Msg("shutdown complete")
}
