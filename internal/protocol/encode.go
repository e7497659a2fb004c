package protocol

import (
	"encoding/json"
	"hash/fnv"
	"strconv"

	"github.com/google/uuid"

	"github.com/dkeye/livesignal/internal/domain"
)

// Request is an outbound control-channel request. It is kept un-encoded
// until it is actually sent, so a queued request picks up the token that
// is current at flush time.
type Request interface {
	Method() string
	Routing() Route
}

type InitSessionRequest struct {
	SessionID domain.SessionID
	TargetID  domain.TargetID
	Settings  *domain.SessionSettings
}

type SDPAnswerRequest struct {
	SessionID domain.SessionID
	TargetID  domain.TargetID
	SDP       string
}

type ICECandidateRequest struct {
	SessionID  domain.SessionID
	TargetID   domain.TargetID
	Candidate  string
	MLineIndex uint16
}

func (InitSessionRequest) Method() string  { return MethodInitSession }
func (SDPAnswerRequest) Method() string    { return MethodSetSDPAnswer }
func (ICECandidateRequest) Method() string { return MethodAddICECandidate }

func (r InitSessionRequest) Routing() Route {
	return Route{SessionID: r.SessionID, TargetID: r.TargetID}
}

func (r SDPAnswerRequest) Routing() Route {
	return Route{SessionID: r.SessionID, TargetID: r.TargetID}
}

func (r ICECandidateRequest) Routing() Route {
	return Route{SessionID: r.SessionID, TargetID: r.TargetID}
}

type helloFrame struct {
	Type          string `json:"type"`
	ID            string `json:"id"`
	CorrelationID string `json:"correlationId"`
	AccessToken   string `json:"accessToken"`
}

type requestFrame struct {
	Type          string      `json:"type"`
	TargetID      string      `json:"targetId"`
	CorrelationID string      `json:"correlationId"`
	Data          requestData `json:"data"`
	AccessToken   string      `json:"accessToken"`
}

type requestData struct {
	APIVersion string `json:"apiVersion"`
	Type       string `json:"type"`
	Method     string `json:"method"`
	SessionID  string `json:"sessionId"`
	Context    string `json:"context"`
	Params     any    `json:"params"`
}

type initSessionParams struct {
	Type         string       `json:"type"`
	VideoReceive videoReceive `json:"videoReceive"`
	AudioReceive audioReceive `json:"audioReceive"`
}

type videoReceive struct {
	Adaptive         *bool  `json:"adaptive,omitempty"`
	MaxBitrateInKbps *int64 `json:"maxBitrateInKbps,omitempty"`
	Compression      *int   `json:"compression,omitempty"`
	KeyframeInterval *int   `json:"keyframeInterval,omitempty"`
}

type audioReceive struct {
	Codec string `json:"codec,omitempty"`
}

type sdpAnswerParams struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type iceCandidateParams struct {
	Candidate     string `json:"candidate"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex"`
}

type streamFilterFrame struct {
	APIVersion string `json:"apiVersion"`
	Context    string `json:"context"`
	Method     string `json:"method"`
	Params     struct {
		EventFilterList []eventFilter `json:"eventFilterList"`
	} `json:"params"`
}

type eventFilter struct {
	TopicFilter string `json:"topicFilter"`
}

// Encoder builds outbound frames. NewID supplies correlation and context
// ids; it defaults to random UUIDs.
type Encoder struct {
	NewID func() string
}

func NewEncoder() *Encoder {
	return &Encoder{NewID: uuid.NewString}
}

func (e *Encoder) id() string {
	if e.NewID == nil {
		return uuid.NewString()
	}
	return e.NewID()
}

// Hello returns the handshake frame and the correlation id it carries.
func (e *Encoder) Hello(token string) ([]byte, string, error) {
	corr := e.id()
	b, err := json.Marshal(helloFrame{
		Type:          TypeHello,
		ID:            helloID,
		CorrelationID: corr,
		AccessToken:   token,
	})
	return b, corr, err
}

// StreamFilter is sent once on the event channel to subscribe to signaling
// cloud events.
func StreamFilter() ([]byte, error) {
	var f streamFilterFrame
	f.APIVersion = APIVersion
	f.Context = "0"
	f.Method = MethodConfigure
	f.Params.EventFilterList = []eventFilter{{TopicFilter: EventTopicFilter}}
	return json.Marshal(f)
}

func (e *Encoder) Encode(req Request, token string) ([]byte, error) {
	frame := requestFrame{
		Type:          TypeSignaling,
		CorrelationID: e.id(),
		AccessToken:   token,
		Data: requestData{
			APIVersion: APIVersion,
			Type:       TypeRequest,
		},
	}

	switch r := req.(type) {
	case InitSessionRequest:
		frame.Type = TypeInitSession
		frame.Data.Context = e.id()
		frame.Data.Params = initParams(r.Settings)
	case *InitSessionRequest:
		return e.Encode(*r, token)
	case SDPAnswerRequest:
		frame.Data.Context = contentHash(r.SDP)
		frame.Data.Params = sdpAnswerParams{Type: "answer", SDP: r.SDP}
	case *SDPAnswerRequest:
		return e.Encode(*r, token)
	case ICECandidateRequest:
		frame.Data.Context = contentHash(r.Candidate)
		frame.Data.Params = iceCandidateParams{Candidate: r.Candidate, SDPMLineIndex: r.MLineIndex}
	case *ICECandidateRequest:
		return e.Encode(*r, token)
	default:
		return nil, ErrUnknownKind
	}

	route := req.Routing()
	frame.TargetID = string(route.TargetID)
	frame.Data.Method = req.Method()
	frame.Data.SessionID = string(route.SessionID)
	return json.Marshal(frame)
}

func initParams(s *domain.SessionSettings) initSessionParams {
	p := initSessionParams{Type: "live"}
	if s == nil {
		return p
	}
	if s.AudioCodec != "" && s.AudioCodec != domain.AudioCodecNone {
		p.AudioReceive.Codec = string(s.AudioCodec)
	}
	adaptive := s.Adaptive
	compression := s.Compression
	keyframe := s.KeyframeInterval
	p.VideoReceive.Adaptive = &adaptive
	p.VideoReceive.Compression = &compression
	p.VideoReceive.KeyframeInterval = &keyframe
	if s.MaxBitrate != -1 {
		bitrate := s.MaxBitrate
		p.VideoReceive.MaxBitrateInKbps = &bitrate
	}
	return p
}

// contentHash gives identical payloads identical context ids.
func contentHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return strconv.FormatUint(uint64(h.Sum32()), 10)
}
