package rtc

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

// rtpSource is satisfied by *webrtc.TrackRemote.
type rtpSource interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// Sink consumes the RTP packets of one remote track.
type Sink interface {
	WriteRTP(pkt *rtp.Packet) error
	Close() error
}

type sinkState int32

const (
	sinkOk sinkState = iota
	sinkDelete
)

type outSink struct {
	Sink
	state atomic.Int32 // Zero by default (sinkOk)
}

func (s *outSink) get() sinkState { return sinkState(s.state.Load()) }
func (s *outSink) markDelete()    { s.state.Store(int32(sinkDelete)) }

// Relay drains a remote track and fans its packets out to sinks.
type Relay struct {
	src rtpSource

	mu    sync.RWMutex
	sinks map[string]*outSink

	bytes   atomic.Uint64
	packets atomic.Uint64
}

func NewRelay(src rtpSource) *Relay {
	return &Relay{
		src:   src,
		sinks: make(map[string]*outSink),
	}
}

func (r *Relay) AddSink(name string, s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[name] = &outSink{Sink: s}
}

// Received returns the payload bytes and packets read so far.
func (r *Relay) Received() (bytes, packets uint64) {
	return r.bytes.Load(), r.packets.Load()
}

// Run reads until the source fails or ctx is done, then closes all sinks.
func (r *Relay) Run(ctx context.Context, logger *zerolog.Logger) {
	defer r.closeAll(logger)
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("relay ctx done")
			return
		default:
		}
		pkt, _, err := r.src.ReadRTP()
		if err != nil {
			logger.Debug().Err(err).Msg("relay read RTP stopped")
			return
		}
		r.bytes.Add(uint64(len(pkt.Payload)))
		r.packets.Add(1)
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	r.mu.RLock()
	if len(r.sinks) == 0 {
		r.mu.RUnlock()
		return
	}
	snapshot := maps.Clone(r.sinks)
	r.mu.RUnlock()

	var dirty []string
	for name, s := range snapshot {
		if s.get() == sinkDelete {
			dirty = append(dirty, name)
			continue
		}
		if err := s.WriteRTP(pkt); err != nil {
			logger.Error().
				Err(err).
				Str("sink", name).
				Msg("relay write RTP error, dropping sink")
			s.markDelete()
			dirty = append(dirty, name)
		}
	}

	if len(dirty) > 0 {
		r.cleanup(dirty, logger)
	}
}

func (r *Relay) cleanup(dirty []string, logger *zerolog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range dirty {
		if s, ok := r.sinks[name]; ok {
			closeSink(name, s, logger)
			delete(r.sinks, name)
		}
	}
}

func (r *Relay) closeAll(logger *zerolog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, s := range r.sinks {
		closeSink(name, s, logger)
		delete(r.sinks, name)
	}
}

func closeSink(name string, s *outSink, logger *zerolog.Logger) {
	if err := s.Close(); err != nil {
		logger.Warn().Err(err).Str("sink", name).Msg("close sink")
	}
}
