// Package protocol encodes and decodes the JSON signaling messages exchanged
// with the live-streaming server over the control and event channels.
package protocol

import "github.com/dkeye/livesignal/internal/domain"

const (
	APIVersion = "1.0"

	EventTopic            = "tns1:WebRTC/tnsaxis:Signaling/CloudEvent"
	EventTopicFilter      = "tns1:WebRTC/tnsaxis:Signaling/tnsaxis:CloudEvent"
	EventPeerConnected    = "com.axis.webrtc.peer.connected"
	EventPeerDisconnected = "com.axis.webrtc.peer.disconnected"
	EventStreamStarted    = "com.axis.bodyworn.stream.started"
	EventStreamStopped    = "com.axis.bodyworn.stream.stopped"

	MethodNotify          = "events:notify"
	MethodConfigure       = "events:configure"
	MethodInitSession     = "initSession"
	MethodSetSDPOffer     = "setSdpOffer"
	MethodSetSDPAnswer    = "setSdpAnswer"
	MethodAddICECandidate = "addIceCandidate"
	MethodGetToken        = "getSignalingClientToken"
	MethodGetTargets      = "getTargets"

	TypeHello       = "hello"
	TypeInitSession = "initSession"
	TypeSignaling   = "signaling"
	TypeRequest     = "request"
	TypeResponse    = "response"

	helloID = "noid"
)

type Kind int

const (
	KindHello Kind = iota
	KindResponse
	KindSDPOffer
	KindICECandidate
	KindInitSession
	KindPeerConnected
	KindStreamStarted
	KindStreamStopped
	KindPeerDisconnected
)

var kindNames = [...]string{
	KindHello:            "hello",
	KindResponse:         "response",
	KindSDPOffer:         "sdp-offer",
	KindICECandidate:     "ice-candidate",
	KindInitSession:      "init-session",
	KindPeerConnected:    "peer-connected",
	KindStreamStarted:    "stream-started",
	KindStreamStopped:    "stream-stopped",
	KindPeerDisconnected: "peer-disconnected",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Route is the identity every message carries. A message with an empty
// SessionID is connection-global.
type Route struct {
	SessionID     domain.SessionID
	TargetID      domain.TargetID
	CorrelationID string
}

func (r Route) Routing() Route { return r }

// Message is one decoded protocol message. The concrete type is one of the
// structs below; switch on it or on Kind().
type Message interface {
	Kind() Kind
	Routing() Route
}

type Hello struct{ Route }

type Response struct {
	Route
	Method string
}

type SDPOffer struct {
	Route
	SDP string
}

type ICECandidate struct {
	Route
	Candidate  string
	MLineIndex uint16
}

// ServerLists are the STUN and TURN urls handed out for one session, with
// credentials already embedded in the urls.
type ServerLists struct {
	STUN []string
	TURN []string
}

type InitSessionResult struct {
	Route
	Servers ServerLists
}

type PeerConnected struct {
	Route
	Source  string
	Subject string
}

type PeerDisconnected struct {
	Route
	Source  string
	Subject string
}

type StreamStarted struct {
	Route
	Stream domain.StreamAnnouncement
}

type StreamStopped struct {
	Route
	Stream domain.StreamAnnouncement
}

func (Hello) Kind() Kind             { return KindHello }
func (Response) Kind() Kind          { return KindResponse }
func (SDPOffer) Kind() Kind          { return KindSDPOffer }
func (ICECandidate) Kind() Kind      { return KindICECandidate }
func (InitSessionResult) Kind() Kind { return KindInitSession }
func (PeerConnected) Kind() Kind     { return KindPeerConnected }
func (PeerDisconnected) Kind() Kind  { return KindPeerDisconnected }
func (StreamStarted) Kind() Kind     { return KindStreamStarted }
func (StreamStopped) Kind() Kind     { return KindStreamStopped }

// IsRequest reports whether m is a server request that must be acknowledged
// with a Response.
func IsRequest(m Message) bool {
	switch m.(type) {
	case *SDPOffer, *ICECandidate, *InitSessionResult:
		return true
	}
	return false
}
