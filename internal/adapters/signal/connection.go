package signal

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/livesignal/internal/loop"
	"github.com/dkeye/livesignal/internal/protocol"
)

type State int

const (
	Unauthenticated State = iota
	AuthPending
	ControlConnecting
	Ready
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AuthPending:
		return "auth-pending"
	case ControlConnecting:
		return "control-connecting"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

type Config struct {
	Server string
	User   string
	Pass   string

	// Optional; defaults accept any TLS certificate.
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	Encoder    *protocol.Encoder
}

// Connection is one authenticated link to a signaling server. Inbound
// frames are decoded, dispatched on the loop and acknowledged on the
// channel they arrived on. Send may be called from any goroutine.
type Connection struct {
	server string
	user   string
	pass   string

	loop   *loop.Loop
	http   *http.Client
	dialer *websocket.Dialer
	enc    *protocol.Encoder
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards everything below.
	mu        sync.Mutex
	state     State
	token     protocol.Token
	queue     []protocol.Request
	control   *wsChannel
	events    *wsChannel
	helloCorr string

	peerConnected    handlers[*protocol.PeerConnected]
	peerDisconnected handlers[*protocol.PeerDisconnected]
	streamStarted    handlers[*protocol.StreamStarted]
	streamStopped    handlers[*protocol.StreamStopped]
	sdpOffer         handlers[*protocol.SDPOffer]
	iceCandidate     handlers[*protocol.ICECandidate]
	serverLists      handlers[*protocol.InitSessionResult]
	response         handlers[*protocol.Response]
	failure          handlers[error]
}

func New(l *loop.Loop, cfg Config) *Connection {
	c := &Connection{
		server: cfg.Server,
		user:   cfg.User,
		pass:   cfg.Pass,
		loop:   l,
		http:   cfg.HTTPClient,
		dialer: cfg.Dialer,
		enc:    cfg.Encoder,
		log:    log.With().Str("module", "signal.conn").Str("server", cfg.Server).Logger(),
	}
	if c.http == nil {
		c.http = defaultHTTPClient()
	}
	if c.dialer == nil {
		c.dialer = defaultDialer()
	}
	if c.enc == nil {
		c.enc = protocol.NewEncoder()
	}
	return c
}

func (c *Connection) Server() string { return c.server }

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) Token() protocol.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Connect starts authentication and returns without waiting for it.
// Progress and failure are reported through the registered callbacks.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Unauthenticated {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("connect in state %s", st)
	}
	c.state = AuthPending
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.log.Info().Msg("requesting token")
	go func() {
		tok, err := c.fetchToken(c.ctx)
		c.loop.Post(func() { c.tokenReady(tok, err) })
	}()
	return nil
}

func (c *Connection) tokenReady(tok protocol.Token, err error) {
	if err != nil {
		c.fail(err)
		return
	}

	c.mu.Lock()
	if c.state != AuthPending {
		c.mu.Unlock()
		return
	}
	c.token = tok
	c.state = ControlConnecting
	ctx := c.ctx
	c.mu.Unlock()
	c.log.Info().Time("expires", tok.ExpiresAt).Msg("got token")

	go func() {
		ws, _, err := c.dialer.DialContext(ctx, controlURL(c.server, tok.Value), nil)
		c.loop.Post(func() { c.channelOpen(controlChannel, ws, err) })
	}()
	go func() {
		header := http.Header{}
		header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.user+":"+c.pass)))
		ws, _, err := c.dialer.DialContext(ctx, eventsURL(c.server), header)
		c.loop.Post(func() { c.channelOpen(eventChannel, ws, err) })
	}()
	go func() {
		streams, err := c.fetchTargets(ctx)
		c.loop.Post(func() {
			if err != nil {
				c.log.Warn().Err(err).Msg("targets unavailable")
				return
			}
			c.log.Info().Int("count", len(streams)).Msg("received targets")
			for _, s := range streams {
				c.dispatch(nil, &protocol.StreamStarted{
					Route:  protocol.Route{SessionID: s.SessionID, TargetID: s.Target()},
					Stream: s,
				})
			}
		})
	}()
}

func (c *Connection) channelOpen(kind channelKind, ws *websocket.Conn, err error) {
	logger := c.log.With().Str("channel", kind.String()).Logger()
	if err != nil {
		c.fail(fmt.Errorf("open %s channel: %w", kind, err))
		return
	}

	c.mu.Lock()
	if c.state != ControlConnecting && c.state != Ready {
		c.mu.Unlock()
		_ = ws.Close()
		return
	}
	ch := newChannel(kind, ws)
	ctx := c.ctx
	var first []byte
	if kind == controlChannel {
		c.control = ch
		first, c.helloCorr, err = c.enc.Hello(c.token.Value)
	} else {
		c.events = ch
		first, err = protocol.StreamFilter()
	}
	if err == nil {
		err = ch.TrySend(first)
	}
	c.mu.Unlock()

	go ch.writePump(ctx, logger)
	go ch.readPump(ctx, logger,
		func(b []byte) { c.loop.Post(func() { c.handleFrame(ch, b) }) },
		func(err error) { c.loop.Post(func() { c.fail(fmt.Errorf("%s channel: %w", kind, err)) }) },
	)

	if err != nil {
		c.fail(fmt.Errorf("%s channel: %w", kind, err))
		return
	}
	logger.Info().Msg("channel open")
}

func (c *Connection) handleFrame(ch *wsChannel, raw []byte) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		c.log.Warn().Err(err).Str("channel", ch.kind.String()).Bytes("frame", raw).Msg("dropping message")
		return
	}
	if msg == nil {
		return
	}
	c.dispatch(ch, msg)
}

// dispatch fans msg out to subscribers and acknowledges requests on ch.
func (c *Connection) dispatch(ch *wsChannel, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.Hello:
		c.helloAck(ch, m)
	case *protocol.Response:
		c.response.emit(m)
	case *protocol.SDPOffer:
		c.sdpOffer.emit(m)
	case *protocol.ICECandidate:
		c.iceCandidate.emit(m)
	case *protocol.InitSessionResult:
		c.serverLists.emit(m)
	case *protocol.PeerConnected:
		c.log.Info().Str("source", m.Source).Str("subject", m.Subject).Msg("new client connected")
		c.peerConnected.emit(m)
	case *protocol.PeerDisconnected:
		c.log.Info().Str("source", m.Source).Str("subject", m.Subject).Msg("client disconnected")
		c.peerDisconnected.emit(m)
	case *protocol.StreamStarted:
		c.streamStarted.emit(m)
	case *protocol.StreamStopped:
		c.streamStopped.emit(m)
	}

	if ch == nil || !protocol.IsRequest(msg) {
		return
	}
	reply, ok, err := protocol.Reply(msg, c.Token().Value)
	if err != nil || !ok {
		c.log.Error().Err(err).Stringer("kind", msg.Kind()).Msg("compose reply")
		return
	}
	if err := ch.TrySend(reply); err != nil {
		c.log.Error().Err(err).Stringer("kind", msg.Kind()).Msg("send reply")
	}
}

// helloAck flushes everything queued before the handshake, in order, and
// opens the connection for direct sends. Only the control channel acks.
func (c *Connection) helloAck(ch *wsChannel, h *protocol.Hello) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ControlConnecting {
		return
	}
	if ch == nil || ch != c.control {
		ev := c.log.Warn()
		if ch != nil {
			ev = ev.Stringer("channel", ch.kind)
		}
		ev.Msg("hello outside control channel")
		return
	}
	if h.CorrelationID != "" && h.CorrelationID != c.helloCorr {
		c.log.Warn().Str("got", h.CorrelationID).Str("want", c.helloCorr).Msg("hello correlation mismatch")
	}
	for len(c.queue) > 0 {
		req := c.queue[0]
		if err := c.sendLocked(req); err != nil {
			c.log.Error().Err(err).Str("method", req.Method()).Int("pending", len(c.queue)).Msg("flush")
			return
		}
		c.queue = c.queue[1:]
	}
	c.queue = nil
	c.state = Ready
	c.log.Info().Msg("connection ready")
}

// Send transmits req now when the connection is ready and queues it
// otherwise.
func (c *Connection) Send(req protocol.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Ready:
		return c.sendLocked(req)
	case Closed, Failed:
		return ErrClosed
	}
	c.queue = append(c.queue, req)
	return nil
}

func (c *Connection) sendLocked(req protocol.Request) error {
	b, err := c.enc.Encode(req, c.token.Value)
	if err != nil {
		return err
	}
	return c.control.TrySend(b)
}

func (c *Connection) fail(err error) {
	c.mu.Lock()
	if c.state == Closed || c.state == Failed {
		c.mu.Unlock()
		return
	}
	c.state = Failed
	c.teardownLocked()
	c.mu.Unlock()

	c.log.Error().Err(err).Msg("connection failed")
	c.failure.emit(err)
}

// Close tears down both channels. Queued requests are discarded.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed || c.state == Failed {
		return
	}
	c.state = Closed
	c.teardownLocked()
	c.log.Info().Msg("connection closed")
}

func (c *Connection) teardownLocked() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.control != nil {
		c.control.Close()
	}
	if c.events != nil {
		c.events.Close()
	}
	c.queue = nil
}
