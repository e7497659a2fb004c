package protocol

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/dkeye/livesignal/internal/domain"
)

type envelope struct {
	Method        *string         `json:"method"`
	Type          *string         `json:"type"`
	Params        json.RawMessage `json:"params"`
	TargetID      string          `json:"targetId"`
	CorrelationID string          `json:"correlationId"`
	Data          json.RawMessage `json:"data"`
	TurnServers   json.RawMessage `json:"turnServers"`
	StunServers   json.RawMessage `json:"stunServers"`
}

type notifyParams struct {
	Notification *struct {
		Topic   string `json:"topic"`
		Message struct {
			Data struct {
				Event     *string `json:"event"`
				EventType string  `json:"eventType"`
			} `json:"data"`
		} `json:"message"`
	} `json:"notification"`
}

type cloudEvent struct {
	Source  string `json:"source"`
	Subject string `json:"subject"`
	Time    string `json:"time"`
	Data    struct {
		SessionID   *string `json:"sessionId"`
		TriggerType string  `json:"triggerType"`
		BearerID    string  `json:"bearerId"`
		BearerName  string  `json:"bearerName"`
		SystemID    string  `json:"systemId"`
		RecordingID string  `json:"recordingId"`
	} `json:"data"`
}

type signalingData struct {
	Type      string          `json:"type"`
	Method    string          `json:"method"`
	SessionID *string         `json:"sessionId"`
	Params    json.RawMessage `json:"params"`
}

type signalingParams struct {
	SDP           *string `json:"sdp"`
	Candidate     *string `json:"candidate"`
	SDPMLineIndex *int    `json:"sdpMLineIndex"`
}

type iceServer struct {
	URLs     []string `json:"urls"`
	Username *string  `json:"username"`
	Password *string  `json:"password"`
}

// Decode parses one raw channel payload. It returns a nil Message and a nil
// error for event notifications on a foreign topic, which are to be dropped
// silently. Any other failure is a *ParseError; no partially populated
// Message is ever returned alongside it.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "" {
			return nil, unrecognized("root is a json %s", typeErr.Value)
		}
		return nil, &ParseError{Kind: MalformedMessage, Reason: "invalid json", Err: err}
	}

	if env.Method != nil {
		if *env.Method != MethodNotify {
			return nil, unrecognized("method %q", *env.Method)
		}
		return decodeNotify(env.Params)
	}

	if env.Type == nil {
		return nil, unrecognized("no method or type")
	}

	route := Route{
		TargetID:      domain.TargetID(env.TargetID),
		CorrelationID: env.CorrelationID,
	}

	switch *env.Type {
	case TypeHello:
		return &Hello{Route: Route{CorrelationID: env.CorrelationID}}, nil
	case TypeInitSession:
		return decodeInitSession(route, &env)
	case TypeSignaling:
		return decodeSignaling(route, env.Data)
	}
	return nil, unrecognized("type %q", *env.Type)
}

func decodeNotify(raw json.RawMessage) (Message, error) {
	if len(raw) == 0 {
		return nil, malformed("notify: no params")
	}
	var p notifyParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ParseError{Kind: MalformedMessage, Reason: "notify params", Err: err}
	}
	if p.Notification == nil {
		return nil, malformed("notify: no notification")
	}
	if p.Notification.Topic != EventTopic {
		return nil, nil
	}

	data := p.Notification.Message.Data
	switch data.EventType {
	case EventPeerConnected, EventPeerDisconnected, EventStreamStarted, EventStreamStopped:
	default:
		return nil, unrecognized("event type %q", data.EventType)
	}
	if data.Event == nil {
		return nil, malformed("notify: no event")
	}

	// The event itself is a JSON document encoded as a string.
	var ev cloudEvent
	if err := json.Unmarshal([]byte(*data.Event), &ev); err != nil {
		return nil, &ParseError{Kind: MalformedMessage, Reason: "event payload", Err: err}
	}

	switch data.EventType {
	case EventPeerConnected:
		return &PeerConnected{
			Route:   Route{TargetID: domain.TargetID(ev.Subject)},
			Source:  ev.Source,
			Subject: ev.Subject,
		}, nil
	case EventPeerDisconnected:
		return &PeerDisconnected{
			Route:   Route{TargetID: domain.TargetID(ev.Subject)},
			Source:  ev.Source,
			Subject: ev.Subject,
		}, nil
	}

	if ev.Data.SessionID == nil {
		return nil, malformed("%s: no session id", data.EventType)
	}
	stream := domain.StreamAnnouncement{
		SessionID:   domain.SessionID(*ev.Data.SessionID),
		Subject:     ev.Subject,
		Source:      ev.Source,
		BearerID:    ev.Data.BearerID,
		BearerName:  ev.Data.BearerName,
		SystemID:    ev.Data.SystemID,
		RecordingID: ev.Data.RecordingID,
		TriggerType: ev.Data.TriggerType,
		Time:        ev.Time,
	}
	route := Route{SessionID: stream.SessionID, TargetID: stream.Target()}
	if data.EventType == EventStreamStopped {
		return &StreamStopped{Route: route, Stream: stream}, nil
	}
	return &StreamStarted{Route: route, Stream: stream}, nil
}

func decodeSignaling(route Route, raw json.RawMessage) (Message, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, malformed("signaling: no data")
	}
	var data signalingData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &ParseError{Kind: MalformedMessage, Reason: "signaling data", Err: err}
	}

	switch {
	case data.Type == TypeResponse:
		if data.SessionID != nil {
			route.SessionID = domain.SessionID(*data.SessionID)
		}
		return &Response{Route: route, Method: data.Method}, nil
	case data.Type == TypeRequest && data.Method == MethodSetSDPOffer:
		return decodeSDPOffer(route, &data)
	case data.Type == TypeRequest && data.Method == MethodAddICECandidate:
		return decodeICECandidate(route, &data)
	}
	return nil, unrecognized("signaling %s %q", data.Type, data.Method)
}

func decodeParams(data *signalingData) (*signalingParams, error) {
	if len(data.Params) == 0 || string(data.Params) == "null" {
		return nil, malformed("%s: no params", data.Method)
	}
	var p signalingParams
	if err := json.Unmarshal(data.Params, &p); err != nil {
		return nil, &ParseError{Kind: MalformedMessage, Reason: data.Method + " params", Err: err}
	}
	if data.SessionID == nil {
		return nil, malformed("%s: no session id", data.Method)
	}
	return &p, nil
}

func decodeSDPOffer(route Route, data *signalingData) (Message, error) {
	p, err := decodeParams(data)
	if err != nil {
		return nil, err
	}
	if p.SDP == nil {
		return nil, malformed("setSdpOffer: no sdp")
	}
	route.SessionID = domain.SessionID(*data.SessionID)
	return &SDPOffer{Route: route, SDP: *p.SDP}, nil
}

func decodeICECandidate(route Route, data *signalingData) (Message, error) {
	p, err := decodeParams(data)
	if err != nil {
		return nil, err
	}
	if p.Candidate == nil {
		return nil, malformed("addIceCandidate: no candidate")
	}
	if p.SDPMLineIndex == nil {
		return nil, malformed("addIceCandidate: no sdp line index")
	}
	if *p.SDPMLineIndex < 0 || *p.SDPMLineIndex > 0xffff {
		return nil, malformed("addIceCandidate: sdp line index %d out of range", *p.SDPMLineIndex)
	}
	route.SessionID = domain.SessionID(*data.SessionID)
	return &ICECandidate{
		Route:      route,
		Candidate:  *p.Candidate,
		MLineIndex: uint16(*p.SDPMLineIndex),
	}, nil
}

func decodeInitSession(route Route, env *envelope) (Message, error) {
	if len(env.TurnServers) == 0 || len(env.StunServers) == 0 {
		return nil, malformed("initSession: no server lists")
	}
	var data struct {
		SessionID *string `json:"sessionId"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, &ParseError{Kind: MalformedMessage, Reason: "initSession data", Err: err}
		}
	}
	if data.SessionID == nil {
		return nil, malformed("initSession: no session id")
	}

	turn, err := decodeServerList(env.TurnServers)
	if err != nil {
		return nil, err
	}
	stun, err := decodeServerList(env.StunServers)
	if err != nil {
		return nil, err
	}

	route.SessionID = domain.SessionID(*data.SessionID)
	return &InitSessionResult{
		Route:   route,
		Servers: ServerLists{STUN: stun, TURN: turn},
	}, nil
}

// decodeServerList flattens [{urls, username, password}] into urls with the
// credentials embedded. Entries that are not objects or carry no urls are skipped.
func decodeServerList(raw json.RawMessage) ([]string, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &ParseError{Kind: MalformedMessage, Reason: "server list", Err: err}
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		var srv iceServer
		if err := json.Unmarshal(e, &srv); err != nil {
			continue
		}
		for _, u := range srv.URLs {
			if u == "" {
				continue
			}
			if srv.Username != nil && srv.Password != nil {
				u = withCredentials(u, *srv.Username, *srv.Password)
			}
			out = append(out, u)
		}
	}
	return out, nil
}

func withCredentials(rawURL, user, pass string) string {
	userInfo := "://" + escapeCredential(user) + ":" + escapeCredential(pass) + "@"
	return strings.Replace(rawURL, "://", userInfo, 1)
}

func escapeCredential(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
