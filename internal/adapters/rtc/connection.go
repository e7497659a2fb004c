package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/livesignal/internal/core"
	"github.com/dkeye/livesignal/internal/domain"
)

var (
	ErrBadOffer       = errors.New("bad sdp offer")
	ErrNoOffer        = errors.New("no remote offer applied")
	ErrEngineClosed   = errors.New("media engine closed")
	ErrServersApplied = errors.New("ice servers already in use")
)

// Factory builds pion backed engines that share one API instance.
type Factory struct {
	api      *webrtc.API
	recorder *Recorder
}

// NewFactory registers H264 and Opus with NACK and RTCP report
// interceptors. recorder may be nil.
func NewFactory(recorder *Recorder) (*Factory, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}
	return &Factory{
		api:      webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(ir)),
		recorder: recorder,
	}, nil
}

func (f *Factory) NewEngine(sid domain.SessionID, target domain.TargetID, settings domain.SessionSettings) (core.MediaEngine, error) {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		api:      f.api,
		recorder: f.recorder,
		sid:      sid,
		target:   target,
		settings: settings,
		ctx:      ctx,
		cancel:   cancel,
		log: log.With().
			Str("module", "rtc.engine").
			Str("sid", string(sid)).
			Str("target", string(target)).
			Logger(),
	}, nil
}

// Engine is a receive-only peer connection. It is created when the first
// offer is applied, so ICE servers must be installed before that.
// Remote candidates that arrive earlier are held until then.
type Engine struct {
	api      *webrtc.API
	recorder *Recorder
	sid      domain.SessionID
	target   domain.TargetID
	settings domain.SessionSettings
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pc      *webrtc.PeerConnection
	stun    *webrtc.ICEServer
	turn    []webrtc.ICEServer
	pending []webrtc.ICECandidateInit
	remote  bool
	closed  bool

	cbMu    sync.Mutex
	onLocal func(uint16, string)
	onState func(core.MediaState)

	relayMu sync.Mutex
	relays  []*Relay
}

func (e *Engine) configuration() webrtc.Configuration {
	cfg := webrtc.Configuration{BundlePolicy: webrtc.BundlePolicyMaxBundle}
	if e.stun != nil {
		cfg.ICEServers = append(cfg.ICEServers, *e.stun)
	}
	cfg.ICEServers = append(cfg.ICEServers, e.turn...)
	if e.settings.ForceTURN {
		cfg.ICETransportPolicy = webrtc.ICETransportPolicyRelay
	}
	return cfg
}

func (e *Engine) peerLocked() (*webrtc.PeerConnection, error) {
	if e.pc != nil {
		return e.pc, nil
	}
	pc, err := e.api.NewPeerConnection(e.configuration())
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	kinds := []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo}
	if e.settings.AudioCodec != domain.AudioCodecNone {
		kinds = append(kinds, webrtc.RTPCodecTypeAudio)
	}
	for _, kind := range kinds {
		_, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		})
		if err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		e.log.Debug().Str("ice_state", s.String()).Msg("ICE state")
	})
	pc.OnConnectionStateChange(e.connectionState)
	pc.OnICECandidate(e.localCandidate)
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		e.track(pc, track)
	})

	e.pc = pc
	return pc, nil
}

func validateOffer(raw string) error {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		return fmt.Errorf("%w: %v", ErrBadOffer, err)
	}
	if len(desc.MediaDescriptions) == 0 {
		return fmt.Errorf("%w: no media sections", ErrBadOffer)
	}
	return nil
}

func (e *Engine) SetRemoteDescription(ctx context.Context, offer string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateOffer(offer); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	pc, err := e.peerLocked()
	if err != nil {
		return err
	}

	// A newer offer replaces one that was never answered.
	if pc.SignalingState() == webrtc.SignalingStateHaveRemoteOffer {
		if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}); err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
	}
	err = pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer})
	if err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	e.remote = true
	for _, c := range e.pending {
		if err := pc.AddICECandidate(c); err != nil {
			e.log.Warn().Err(err).Str("candidate", c.Candidate).Msg("held candidate rejected")
		}
	}
	e.pending = nil
	return nil
}

func (e *Engine) CreateAnswer(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", ErrEngineClosed
	}
	if e.pc == nil || !e.remote {
		return "", ErrNoOffer
	}
	answer, err := e.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	return answer.SDP, nil
}

func (e *Engine) SetLocalDescription(answer string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if e.pc == nil {
		return ErrNoOffer
	}
	err := e.pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer})
	if err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return nil
}

func (e *Engine) AddICECandidate(mline uint16, candidate string) error {
	// End of candidates.
	if candidate == "" {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	ci := webrtc.ICECandidateInit{Candidate: candidate, SDPMLineIndex: &mline}
	if !e.remote {
		e.pending = append(e.pending, ci)
		return nil
	}
	return e.pc.AddICECandidate(ci)
}

func (e *Engine) OnLocalICECandidate(fn func(mline uint16, candidate string)) {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	e.onLocal = fn
}

func (e *Engine) OnStateChange(fn func(core.MediaState)) {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	e.onState = fn
}

func (e *Engine) localCandidate(c *webrtc.ICECandidate) {
	// nil marks the end of gathering.
	if c == nil {
		return
	}
	ci := c.ToJSON()
	var mline uint16
	if ci.SDPMLineIndex != nil {
		mline = *ci.SDPMLineIndex
	}
	e.cbMu.Lock()
	fn := e.onLocal
	e.cbMu.Unlock()
	if fn != nil {
		fn(mline, ci.Candidate)
	}
}

func (e *Engine) connectionState(s webrtc.PeerConnectionState) {
	e.log.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
	e.cbMu.Lock()
	fn := e.onState
	e.cbMu.Unlock()
	if fn != nil {
		fn(mediaState(s))
	}
}

func mediaState(s webrtc.PeerConnectionState) core.MediaState {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return core.MediaConnecting
	case webrtc.PeerConnectionStateConnected:
		return core.MediaConnected
	case webrtc.PeerConnectionStateDisconnected:
		return core.MediaDisconnected
	case webrtc.PeerConnectionStateFailed:
		return core.MediaFailed
	case webrtc.PeerConnectionStateClosed:
		return core.MediaClosed
	}
	return core.MediaNew
}

func (e *Engine) SetSTUNServer(url string) error {
	srv, err := ICEServer(url)
	if err != nil {
		return err
	}
	if isTURN(srv) {
		return fmt.Errorf("%w: %q is not a stun url", ErrBadICEURL, url)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pc != nil {
		return ErrServersApplied
	}
	e.stun = &srv
	return nil
}

func (e *Engine) AddTURNServer(url string) bool {
	srv, err := ICEServer(url)
	if err != nil || !isTURN(srv) {
		e.log.Debug().Err(err).Str("url", url).Msg("turn url refused")
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pc != nil {
		return false
	}
	e.turn = append(e.turn, srv)
	return true
}

// RequestStats sums inbound RTP counters. Before the peer connection
// reports any, the relay counters are used.
func (e *Engine) RequestStats(ctx context.Context) (core.MediaStats, error) {
	if err := ctx.Err(); err != nil {
		return core.MediaStats{}, err
	}
	e.mu.Lock()
	pc, closed := e.pc, e.closed
	e.mu.Unlock()
	if closed {
		return core.MediaStats{}, ErrEngineClosed
	}
	if pc == nil {
		return core.MediaStats{}, nil
	}

	var st core.MediaStats
	for _, s := range pc.GetStats() {
		if in, ok := s.(webrtc.InboundRTPStreamStats); ok {
			st.BytesReceived += in.BytesReceived
			st.PacketsReceived += uint64(in.PacketsReceived)
		}
	}
	if st.BytesReceived == 0 {
		e.relayMu.Lock()
		for _, r := range e.relays {
			b, p := r.Received()
			st.BytesReceived += b
			st.PacketsReceived += p
		}
		e.relayMu.Unlock()
	}
	return st, nil
}

func (e *Engine) track(pc *webrtc.PeerConnection, track *webrtc.TrackRemote) {
	codec := track.Codec()
	logger := e.log.With().
		Str("kind", track.Kind().String()).
		Str("track_id", track.ID()).
		Str("codec", codec.MimeType).
		Logger()
	logger.Info().Msg("OnTrack received")

	relay := NewRelay(track)
	if e.recorder != nil {
		sink, err := e.recorder.Open(e.target, e.sid, codec)
		if err != nil {
			logger.Warn().Err(err).Msg("track not recorded")
		} else {
			relay.AddSink("recorder", sink)
		}
	}
	e.relayMu.Lock()
	e.relays = append(e.relays, relay)
	e.relayMu.Unlock()

	if track.Kind() == webrtc.RTPCodecTypeVideo {
		pli := []rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}}
		if err := pc.WriteRTCP(pli); err != nil {
			logger.Debug().Err(err).Msg("keyframe request")
		}
	}
	go relay.Run(e.ctx, &logger)
}

// Close tears down the peer connection; callbacks never fire afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	pc := e.pc
	e.pending = nil
	e.mu.Unlock()

	e.cbMu.Lock()
	e.onLocal, e.onState = nil, nil
	e.cbMu.Unlock()
	e.cancel()

	if pc == nil {
		return nil
	}
	if err := pc.Close(); err != nil {
		e.log.Error().Err(err).Msg("close error")
		return err
	}
	e.log.Info().Msg("closed")
	return nil
}
