// Package protocol defines the signaling wire format. Every frame is a JSON
// object tagged by an "id" field; unknown tags are rejected at parse time so
// the coordinator only ever sees well-formed messages.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Talk/internal/core"
)

type Type string

// Client-to-server tags.
const (
	TypeAppConfig            Type = "appConfig"
	TypeRegister             Type = "register"
	TypeCall                 Type = "call"
	TypeIncomingCallResponse Type = "incomingCallResponse"
	TypeOnIceCandidate       Type = "onIceCandidate"
	TypeStop                 Type = "stop"
	TypeCheckOnlineStatus    Type = "checkOnlineStatus"
	TypePlay                 Type = "play"
	TypeStopPlay             Type = "stopPlay"
)

// Server-to-client tags.
const (
	TypeAppConfigResponse    Type = "appConfigResponse"
	TypeRegisterResponse     Type = "registerResponse"
	TypeRegisteredUsers      Type = "registeredUsers"
	TypeIncomingCall         Type = "incomingCall"
	TypeCallResponse         Type = "callResponse"
	TypeStartCommunication   Type = "startCommunication"
	TypeIceCandidate         Type = "iceCandidate"
	TypeStopCommunication    Type = "stopCommunication"
	TypeResponseOnlineStatus Type = "responseOnlineStatus"
	TypePlayResponse         Type = "playResponse"
	TypePlayEnd              Type = "playEnd"
)

// Call responses carried in the "response" / "callResponse" fields.
const (
	ResponseAccepted = "accepted"
	ResponseRejected = "rejected"
	ResponseSkipped  = "skipped"

	CallAccept = "accept"
	CallReject = "reject"
)

// Message is a parsed client-to-server frame. Only the fields relevant to the
// tagged type are populated; Parse enforces the per-type requirements.
type Message struct {
	ID Type `json:"id"`

	// register
	Name string `json:"name,omitempty"`

	// call
	To       string `json:"to,omitempty"`
	From     string `json:"from,omitempty"`
	SDPOffer string `json:"sdpOffer,omitempty"`

	// incomingCallResponse
	CallResponse string `json:"callResponse,omitempty"`

	// onIceCandidate. Mobile clients send the candidate fields flat on the
	// message; browsers nest them in a "candidate" object.
	Candidate     json.RawMessage `json:"candidate,omitempty"`
	SDPMid        string          `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16         `json:"sdpMLineIndex,omitempty"`

	// checkOnlineStatus, play
	User string `json:"user,omitempty"`

	// appConfig: "browser" changes the shape of the ICE server list.
	ClientType string `json:"type,omitempty"`
}

// Parse decodes and validates one inbound frame.
func Parse(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("malformed message: %w", err)
	}
	if err := m.validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

func (m Message) validate() error {
	switch m.ID {
	case TypeAppConfig, TypeRegister, TypeStop, TypeStopPlay:
		// name may legitimately be empty on register; the coordinator
		// answers that with a rejection rather than a parse error.
		return nil
	case TypeCall:
		if m.To == "" {
			return fmt.Errorf("call message missing to")
		}
		if m.SDPOffer == "" {
			return fmt.Errorf("call message missing sdpOffer")
		}
	case TypeIncomingCallResponse:
		if m.From == "" {
			return fmt.Errorf("incomingCallResponse missing from")
		}
		switch m.CallResponse {
		case CallAccept:
			if m.SDPOffer == "" {
				return fmt.Errorf("incomingCallResponse accept missing sdpOffer")
			}
		case CallReject:
		default:
			return fmt.Errorf("unsupported callResponse %q", m.CallResponse)
		}
	case TypeOnIceCandidate:
		if len(m.Candidate) == 0 {
			return fmt.Errorf("onIceCandidate missing candidate")
		}
	case TypeCheckOnlineStatus:
		if m.User == "" {
			return fmt.Errorf("checkOnlineStatus missing user")
		}
	case TypePlay:
		if m.User == "" {
			return fmt.Errorf("play message missing user")
		}
		if m.SDPOffer == "" {
			return fmt.Errorf("play message missing sdpOffer")
		}
	default:
		return fmt.Errorf("unsupported message type %q", m.ID)
	}
	return nil
}

// CandidateInit mirrors the browser RTCIceCandidateInit shape.
type CandidateInit struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex"`
}

// IceCandidate extracts the candidate from an onIceCandidate message,
// accepting both the flat mobile shape and the nested browser shape.
func (m Message) IceCandidate() (core.Candidate, error) {
	if m.SDPMLineIndex != nil {
		// Flat shape: "candidate" holds the candidate string itself.
		var cand string
		if err := json.Unmarshal(m.Candidate, &cand); err != nil {
			return core.Candidate{}, fmt.Errorf("malformed flat candidate: %w", err)
		}
		return core.Candidate{
			Candidate:     cand,
			SDPMid:        m.SDPMid,
			SDPMLineIndex: *m.SDPMLineIndex,
		}, nil
	}

	var init CandidateInit
	if err := json.Unmarshal(m.Candidate, &init); err != nil {
		return core.Candidate{}, fmt.Errorf("malformed candidate object: %w", err)
	}
	if init.Candidate == "" {
		return core.Candidate{}, fmt.Errorf("candidate object missing candidate string")
	}
	return core.Candidate{
		Candidate:     init.Candidate,
		SDPMid:        init.SDPMid,
		SDPMLineIndex: init.SDPMLineIndex,
	}, nil
}
