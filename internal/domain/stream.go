// Package domain holds the session and stream types with their validation
// and matching rules.
package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

var ErrUnsafeName = errors.New("unsafe file name")

type (
	SessionID string
	TargetID  string
)

// StreamAnnouncement describes a remote capture source that started (or stopped)
// streaming. It is only used to decide whether a Session should exist.
type StreamAnnouncement struct {
	SessionID   SessionID `json:"session_id"`
	Subject     string    `json:"subject"`
	Source      string    `json:"source,omitempty"`
	BearerID    string    `json:"bearer_id,omitempty"`
	BearerName  string    `json:"bearer_name,omitempty"`
	SystemID    string    `json:"system_id,omitempty"`
	RecordingID string    `json:"recording_id,omitempty"`
	TriggerType string    `json:"trigger_type,omitempty"`
	Time        string    `json:"time,omitempty"`
}

// Target is the addressable id of the announced capture source.
func (a StreamAnnouncement) Target() TargetID { return TargetID(a.Subject) }

// Timestamp parses Time as RFC 3339. The zero time is returned when it is absent or invalid.
func (a StreamAnnouncement) Timestamp() time.Time {
	t, err := time.Parse(time.RFC3339, a.Time)
	if err != nil {
		return time.Time{}
	}
	return t
}

// MatchesTarget reports whether subject is accepted by filter: a case-insensitive
// prefix match over the runes of the filter. An empty filter accepts everything.
func MatchesTarget(filter, subject string) bool {
	for _, fr := range filter {
		sr, size := utf8.DecodeRuneInString(subject)
		if size == 0 || (fr != sr && !strings.EqualFold(string(fr), string(sr))) {
			return false
		}
		subject = subject[size:]
	}
	return true
}

// FileStem returns "<target>-<sid>" for naming per-session files. Ids that
// would leave the directory the file is created in are rejected.
func FileStem(target TargetID, sid SessionID) (string, error) {
	stem := fmt.Sprintf("%s-%s", target, sid)
	if strings.ContainsAny(stem, `/\`+"\x00") || filepath.Base(stem) != stem || !filepath.IsLocal(stem) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, stem)
	}
	return stem, nil
}
