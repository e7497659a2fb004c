package rtc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/h264writer"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"

	"github.com/dkeye/livesignal/internal/domain"
)

var ErrUnsupportedCodec = errors.New("codec cannot be recorded")

// Recorder writes received H264 and Opus tracks to files named
// <target>-<sid>.h264 and <target>-<sid>.ogg under Dir.
type Recorder struct {
	Dir string
}

func NewRecorder(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("recording dir: %w", err)
	}
	return &Recorder{Dir: dir}, nil
}

// RecordingPath returns the file a track with the given mime type is written to.
func RecordingPath(dir string, target domain.TargetID, sid domain.SessionID, mime string) (string, error) {
	var ext string
	switch strings.ToLower(mime) {
	case strings.ToLower(webrtc.MimeTypeH264):
		ext = ".h264"
	case strings.ToLower(webrtc.MimeTypeOpus):
		ext = ".ogg"
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedCodec, mime)
	}
	stem, err := domain.FileStem(target, sid)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, stem+ext), nil
}

// Open creates the sink for one track.
func (r *Recorder) Open(target domain.TargetID, sid domain.SessionID, codec webrtc.RTPCodecParameters) (Sink, error) {
	path, err := RecordingPath(r.Dir, target, sid, codec.MimeType)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(codec.MimeType, webrtc.MimeTypeH264) {
		w, err := h264writer.New(path)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	channels := codec.Channels
	if channels == 0 {
		channels = 2
	}
	w, err := oggwriter.New(path, codec.ClockRate, channels)
	if err != nil {
		return nil, err
	}
	return w, nil
}
