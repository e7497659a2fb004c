package protocol

import "encoding/json"

type replyFrame struct {
	Type          string    `json:"type"`
	TargetID      string    `json:"targetId"`
	CorrelationID string    `json:"correlationId"`
	AccessToken   string    `json:"accessToken"`
	Data          replyData `json:"data"`
}

type replyData struct {
	APIVersion string   `json:"apiVersion"`
	Type       string   `json:"type"`
	SessionID  string   `json:"sessionId"`
	Context    string   `json:"context"`
	Method     string   `json:"method"`
	Data       struct{} `json:"data"`
}

// Reply builds the acknowledgement for an inbound request. ok is false for
// message kinds that are never acknowledged.
func Reply(msg Message, token string) (b []byte, ok bool, err error) {
	var method string
	switch msg.(type) {
	case *SDPOffer:
		method = MethodSetSDPOffer
	case *ICECandidate:
		method = MethodAddICECandidate
	case *InitSessionResult:
		method = MethodInitSession
	default:
		return nil, false, nil
	}

	route := msg.Routing()
	b, err = json.Marshal(replyFrame{
		Type:          TypeSignaling,
		TargetID:      string(route.TargetID),
		CorrelationID: route.CorrelationID,
		AccessToken:   token,
		Data: replyData{
			APIVersion: APIVersion,
			Type:       TypeResponse,
			SessionID:  string(route.SessionID),
			Method:     method,
		},
	})
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}
