package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dkeye/livesignal/internal/core"
	"github.com/dkeye/livesignal/internal/core/mocks"
	"github.com/dkeye/livesignal/internal/domain"
	"github.com/dkeye/livesignal/internal/loop"
	"github.com/dkeye/livesignal/internal/protocol"
)

// fakeConn records sends and keeps the last registered handler of each kind.
type fakeConn struct {
	server     string
	connectErr error

	mu     sync.Mutex
	sent   []protocol.Request
	closed bool

	peerConnected    func(*protocol.PeerConnected)
	peerDisconnected func(*protocol.PeerDisconnected)
	streamStarted    func(*protocol.StreamStarted)
	streamStopped    func(*protocol.StreamStopped)
	sdpOffer         func(*protocol.SDPOffer)
	iceCandidate     func(*protocol.ICECandidate)
	serverLists      func(*protocol.InitSessionResult)
	failure          func(error)
	unsubscribed     int
}

func (c *fakeConn) Server() string { return c.server }

func (c *fakeConn) Send(req protocol.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, req)
	return nil
}

func (c *fakeConn) Connect(context.Context) error { return c.connectErr }

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) unsub() func() { return func() { c.unsubscribed++ } }

func (c *fakeConn) OnPeerConnected(fn func(*protocol.PeerConnected)) func() {
	c.peerConnected = fn
	return c.unsub()
}

func (c *fakeConn) OnPeerDisconnected(fn func(*protocol.PeerDisconnected)) func() {
	c.peerDisconnected = fn
	return c.unsub()
}

func (c *fakeConn) OnStreamStarted(fn func(*protocol.StreamStarted)) func() {
	c.streamStarted = fn
	return c.unsub()
}

func (c *fakeConn) OnStreamStopped(fn func(*protocol.StreamStopped)) func() {
	c.streamStopped = fn
	return c.unsub()
}

func (c *fakeConn) OnSDPOffer(fn func(*protocol.SDPOffer)) func() {
	c.sdpOffer = fn
	return c.unsub()
}

func (c *fakeConn) OnICECandidate(fn func(*protocol.ICECandidate)) func() {
	c.iceCandidate = fn
	return c.unsub()
}

func (c *fakeConn) OnServerLists(fn func(*protocol.InitSessionResult)) func() {
	c.serverLists = fn
	return c.unsub()
}

func (c *fakeConn) OnFailure(fn func(error)) func() {
	c.failure = fn
	return c.unsub()
}

func (c *fakeConn) sends() []protocol.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Request(nil), c.sent...)
}

type fixture struct {
	loop      *loop.Loop
	ctrl      *gomock.Controller
	media     *mocks.MockMediaEngineFactory
	presenter *mocks.MockPresenter
	orch      *Orchestrator
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	l := loop.New()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})

	f := &fixture{
		loop:      l,
		ctrl:      ctrl,
		media:     mocks.NewMockMediaEngineFactory(ctrl),
		presenter: mocks.NewMockPresenter(ctrl),
	}
	f.orch = New(l, f.media, f.presenter, cfg)
	return f
}

func (f *fixture) on(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, f.loop.Do(context.Background(), fn))
}

func (f *fixture) connect(t *testing.T, server string) *fakeConn {
	t.Helper()
	conn := &fakeConn{server: server}
	require.NoError(t, f.orch.AddConnection(context.Background(), conn))
	return conn
}

// expectSession prepares an engine for sid and returns it.
func (f *fixture) expectSession(sid domain.SessionID, target domain.TargetID) *mocks.MockMediaEngine {
	engine := mocks.NewMockMediaEngine(f.ctrl)
	engine.EXPECT().OnLocalICECandidate(gomock.Any())
	engine.EXPECT().OnStateChange(gomock.Any())
	f.media.EXPECT().NewEngine(sid, target, gomock.Any()).Return(engine, nil)
	f.presenter.EXPECT().SessionCreated(sid, target, gomock.Any())
	return engine
}

func started(sid domain.SessionID, subject string) *protocol.StreamStarted {
	return &protocol.StreamStarted{
		Route: protocol.Route{SessionID: sid, TargetID: domain.TargetID(subject)},
		Stream: domain.StreamAnnouncement{
			SessionID:  sid,
			Subject:    subject,
			BearerName: "Bearer 1",
		},
	}
}

func TestStreamStartedCreatesSession(t *testing.T) {
	f := newFixture(t, Config{Target: "device-4", Settings: domain.DefaultSessionSettings()})
	conn := f.connect(t, "cam.local")
	f.expectSession("S1", "device-42")

	f.on(t, func() { conn.streamStarted(started("S1", "device-42")) })

	sent := conn.sends()
	require.Len(t, sent, 1)
	req, ok := sent[0].(protocol.InitSessionRequest)
	require.True(t, ok)
	assert.Equal(t, domain.SessionID("S1"), req.SessionID)
	assert.Equal(t, domain.TargetID("device-42"), req.TargetID)

	infos, err := f.orch.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "cam.local", infos[0].Server)
	assert.Equal(t, "created", infos[0].State)
	assert.Equal(t, "Bearer 1", infos[0].Stream.BearerName)
}

func TestStreamStartedFilteredOrDuplicate(t *testing.T) {
	f := newFixture(t, Config{Target: "device-5"})
	conn := f.connect(t, "cam.local")

	f.on(t, func() { conn.streamStarted(started("S1", "device-42")) })
	assert.Empty(t, conn.sends())

	f.expectSession("S2", "DEVICE-51")
	f.on(t, func() {
		conn.streamStarted(started("S2", "DEVICE-51"))
		conn.streamStarted(started("S2", "DEVICE-51"))
	})
	assert.Len(t, conn.sends(), 1)
}

func TestStreamStoppedRemovesSession(t *testing.T) {
	f := newFixture(t, Config{})
	conn := f.connect(t, "cam.local")
	engine := f.expectSession("S1", "T1")
	f.on(t, func() { conn.streamStarted(started("S1", "T1")) })

	engine.EXPECT().Close().Return(nil)
	f.presenter.EXPECT().SessionEnded(domain.SessionID("S1"))
	f.on(t, func() {
		conn.streamStopped(&protocol.StreamStopped{Stream: domain.StreamAnnouncement{SessionID: "S1"}})
		// Second stop is a miss.
		conn.streamStopped(&protocol.StreamStopped{Route: protocol.Route{SessionID: "S1"}})
	})

	infos, err := f.orch.Sessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestStreamStoppedFromOtherServerIgnored(t *testing.T) {
	f := newFixture(t, Config{})
	conn := f.connect(t, "cam.local")
	other := f.connect(t, "other.local")
	engine := f.expectSession("S1", "T1")
	f.on(t, func() { conn.streamStarted(started("S1", "T1")) })

	f.on(t, func() {
		other.streamStopped(&protocol.StreamStopped{Stream: domain.StreamAnnouncement{SessionID: "S1"}})
	})
	infos, err := f.orch.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "cam.local", infos[0].Server)

	engine.EXPECT().Close().Return(nil)
	f.presenter.EXPECT().SessionEnded(domain.SessionID("S1"))
	f.on(t, func() {
		conn.streamStopped(&protocol.StreamStopped{Stream: domain.StreamAnnouncement{SessionID: "S1"}})
	})
	infos, err = f.orch.Sessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestPeerEventsOnlyLog(t *testing.T) {
	f := newFixture(t, Config{})
	conn := f.connect(t, "cam.local")

	// No engine or presenter calls are expected.
	f.on(t, func() {
		conn.peerConnected(&protocol.PeerConnected{Source: "client-1", Subject: "B8A44FB69350"})
		conn.peerDisconnected(&protocol.PeerDisconnected{Source: "client-1", Subject: "B8A44FB69350"})
	})
	assert.Empty(t, conn.sends())
	infos, err := f.orch.Sessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestRoutesNegotiationMessages(t *testing.T) {
	f := newFixture(t, Config{})
	conn := f.connect(t, "cam.local")
	other := f.connect(t, "other.local")
	engine := f.expectSession("S1", "T1")
	f.on(t, func() { conn.streamStarted(started("S1", "T1")) })

	applied := make(chan struct{})
	gomock.InOrder(
		engine.EXPECT().SetSTUNServer("stun://stun.local:3478").Return(nil),
		engine.EXPECT().AddTURNServer("turn://u:p@turn.local:3478").Return(true),
	)
	engine.EXPECT().AddICECandidate(uint16(0), "candidate:1").Return(nil)
	engine.EXPECT().SetRemoteDescription(gomock.Any(), "v=0").DoAndReturn(func(context.Context, string) error {
		close(applied)
		return errors.New("incompatible offer")
	})

	route := protocol.Route{SessionID: "S1", TargetID: "T1"}
	f.on(t, func() {
		conn.serverLists(&protocol.InitSessionResult{
			Route:   route,
			Servers: protocol.ServerLists{STUN: []string{"stun://stun.local:3478"}, TURN: []string{"turn://u:p@turn.local:3478"}},
		})
		conn.iceCandidate(&protocol.ICECandidate{Route: route, Candidate: "candidate:1"})
		// Same id from another server and an unknown id are both misses.
		other.iceCandidate(&protocol.ICECandidate{Route: route, Candidate: "candidate:2"})
		conn.iceCandidate(&protocol.ICECandidate{Route: protocol.Route{SessionID: "S9"}, Candidate: "candidate:3"})
		conn.sdpOffer(&protocol.SDPOffer{Route: route, SDP: "v=0"})
	})

	select {
	case <-applied:
	case <-time.After(2 * time.Second):
		t.Fatal("offer never reached the engine")
	}

	engine.EXPECT().Close().Return(nil)
	f.presenter.EXPECT().SessionEnded(domain.SessionID("S1"))
	require.NoError(t, f.orch.Shutdown(context.Background()))
}

func TestConnectionFailure(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		expect func(p *mocks.MockPresenter)
	}{
		{
			name: "auth",
			err:  fmt.Errorf("token: %w", core.ErrAuth),
			expect: func(p *mocks.MockPresenter) {
				p.EXPECT().AuthError("cam.local", "token: authentication failed")
			},
		},
		{
			name: "transport",
			err:  errors.New("control channel closed"),
			expect: func(p *mocks.MockPresenter) {
				p.EXPECT().ConnectionLost("cam.local", gomock.Any())
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			conn := f.connect(t, "cam.local")
			engine := f.expectSession("S1", "T1")
			f.on(t, func() { conn.streamStarted(started("S1", "T1")) })

			tc.expect(f.presenter)
			engine.EXPECT().Close().Return(nil)
			f.presenter.EXPECT().SessionEnded(domain.SessionID("S1"))
			f.on(t, func() { conn.failure(tc.err) })

			assert.Equal(t, 8, conn.unsubscribed)
			infos, err := f.orch.Sessions(context.Background())
			require.NoError(t, err)
			assert.Empty(t, infos)

			// The server can be added again with a fresh connection.
			f.connect(t, "cam.local")
		})
	}
}

func TestExplicitStartStop(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	assert.ErrorIs(t, f.orch.StartSession(ctx, "cam.local", "T1", "S1"), ErrUnknownServer)
	assert.ErrorIs(t, f.orch.StopSession(ctx, "S1"), ErrUnknownSession)

	conn := f.connect(t, "cam.local")
	assert.ErrorIs(t, f.orch.AddConnection(ctx, &fakeConn{server: "cam.local"}), ErrDuplicate)

	engine := f.expectSession("S1", "T1")
	require.NoError(t, f.orch.StartSession(ctx, "cam.local", "T1", "S1"))
	assert.ErrorIs(t, f.orch.StartSession(ctx, "cam.local", "T1", "S1"), ErrDuplicate)
	assert.Len(t, conn.sends(), 1)

	engine.EXPECT().Close().Return(nil)
	f.presenter.EXPECT().SessionEnded(domain.SessionID("S1"))
	require.NoError(t, f.orch.StopSession(ctx, "S1"))
	assert.ErrorIs(t, f.orch.StopSession(ctx, "S1"), ErrUnknownSession)
}

func TestShutdownClosesConnections(t *testing.T) {
	f := newFixture(t, Config{})
	conn := f.connect(t, "cam.local")
	require.NoError(t, f.orch.Shutdown(context.Background()))

	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.True(t, conn.closed)
	assert.Equal(t, 8, conn.unsubscribed)
}

func TestAddConnectionConnectError(t *testing.T) {
	f := newFixture(t, Config{})
	conn := &fakeConn{server: "cam.local", connectErr: errors.New("connect in state closed")}
	assert.Error(t, f.orch.AddConnection(context.Background(), conn))
	assert.Equal(t, 8, conn.unsubscribed)
}
