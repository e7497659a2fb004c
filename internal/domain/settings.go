package domain

import "errors"

type AudioCodec string

const (
	AudioCodecNone AudioCodec = "none"
	AudioCodecOpus AudioCodec = "opus"
	AudioCodecAAC  AudioCodec = "aac"
)

const (
	MinKeyframeInterval = 25
	MaxKeyframeInterval = 500
	MaxBitrateKbps      = 32000000
)

var (
	ErrUnknownAudioCodec   = errors.New("unknown audio codec")
	ErrBadKeyframeInterval = errors.New("keyframe interval out of range")
	ErrBadCompression      = errors.New("compression out of range")
	ErrBadBitrate          = errors.New("max bitrate out of range")
)

// SessionSettings are the receive preferences sent upstream with initSession
// and the local media engine policy.
type SessionSettings struct {
	AudioCodec       AudioCodec `mapstructure:"audio_codec" json:"audio_codec"`
	Adaptive         bool       `mapstructure:"adaptive" json:"adaptive"`
	MaxBitrate       int64      `mapstructure:"max_bitrate" json:"max_bitrate"` // kbps, -1 for unlimited
	Compression      int        `mapstructure:"compression" json:"compression"`
	KeyframeInterval int        `mapstructure:"keyframe_interval" json:"keyframe_interval"`
	ForceTURN        bool       `mapstructure:"force_turn" json:"force_turn"`
}

func DefaultSessionSettings() SessionSettings {
	return SessionSettings{
		AudioCodec:       AudioCodecOpus,
		MaxBitrate:       -1,
		Compression:      30,
		KeyframeInterval: 120,
	}
}

func (s SessionSettings) Validate() error {
	switch s.AudioCodec {
	case AudioCodecNone, AudioCodecOpus, AudioCodecAAC:
	default:
		return ErrUnknownAudioCodec
	}
	if s.KeyframeInterval < MinKeyframeInterval || s.KeyframeInterval > MaxKeyframeInterval {
		return ErrBadKeyframeInterval
	}
	if s.Compression < 0 || s.Compression > 100 {
		return ErrBadCompression
	}
	if s.MaxBitrate < -1 || s.MaxBitrate > MaxBitrateKbps {
		return ErrBadBitrate
	}
	return nil
}
