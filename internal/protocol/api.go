package protocol

import (
	"encoding/json"
	"time"

	"github.com/dkeye/livesignal/internal/domain"
)

// Token is a signaling client token handed out by the auth endpoint.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

type apiRequest struct {
	APIVersion string   `json:"apiVersion"`
	Method     string   `json:"method"`
	Params     struct{} `json:"params"`
}

func TokenRequest() ([]byte, error) {
	return json.Marshal(apiRequest{APIVersion: APIVersion, Method: MethodGetToken})
}

func TargetsRequest() ([]byte, error) {
	return json.Marshal(apiRequest{APIVersion: APIVersion, Method: MethodGetTargets})
}

// DecodeToken parses the auth endpoint reply. An unparsable expiry is left
// as the zero time.
func DecodeToken(raw []byte) (Token, error) {
	var resp struct {
		Data *struct {
			Token     *string `json:"token"`
			ExpiresAt string  `json:"expiresAt"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Token{}, &ParseError{Kind: MalformedMessage, Reason: "token reply", Err: err}
	}
	if resp.Data == nil || resp.Data.Token == nil || *resp.Data.Token == "" {
		return Token{}, malformed("token reply: %v", ErrMissingField)
	}
	tok := Token{Value: *resp.Data.Token}
	if t, err := time.Parse(time.RFC3339, resp.Data.ExpiresAt); err == nil {
		tok.ExpiresAt = t
	}
	return tok, nil
}

// DecodeTargets returns the streams currently live on the server. Targets
// without a session, or already stopped or disconnected, are skipped.
func DecodeTargets(raw []byte) ([]domain.StreamAnnouncement, error) {
	var resp struct {
		Data *struct {
			Targets []json.RawMessage `json:"targets"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ParseError{Kind: MalformedMessage, Reason: "targets reply", Err: err}
	}
	if resp.Data == nil {
		return nil, malformed("targets reply: no data")
	}

	out := make([]domain.StreamAnnouncement, 0, len(resp.Data.Targets))
	for _, raw := range resp.Data.Targets {
		var t map[string]json.RawMessage
		if err := json.Unmarshal(raw, &t); err != nil {
			continue
		}
		if _, ok := t["sessionId"]; !ok {
			continue
		}
		if _, ok := t["stopped"]; ok {
			continue
		}
		if _, ok := t["disconnected"]; ok {
			continue
		}
		var s struct {
			ID         string `json:"id"`
			SessionID  string `json:"sessionId"`
			Started    string `json:"started"`
			BearerID   string `json:"bearerId"`
			BearerName string `json:"bearerName"`
		}
		if err := json.Unmarshal(raw, &s); err != nil || s.SessionID == "" {
			continue
		}
		out = append(out, domain.StreamAnnouncement{
			SessionID:  domain.SessionID(s.SessionID),
			Subject:    s.ID,
			BearerID:   s.BearerID,
			BearerName: s.BearerName,
			Time:       s.Started,
		})
	}
	return out, nil
}
