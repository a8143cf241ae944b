package protocol

import (
	"encoding/json"

	"github.com/dkeye/Talk/internal/core"
)

// ServerMessage is an outbound frame. Builders below keep the field
// combinations per tag in one place.
type ServerMessage struct {
	ID Type `json:"id"`

	Response   string `json:"response,omitempty"`
	Message    string `json:"message,omitempty"`
	MyUsername string `json:"myUsername,omitempty"`

	From      string `json:"from,omitempty"`
	SDPAnswer string `json:"sdpAnswer,omitempty"`

	Candidate *CandidateInit `json:"candidate,omitempty"`

	Users []string `json:"users,omitempty"`

	Error string `json:"error,omitempty"`

	Params *AppConfigParams `json:"params,omitempty"`
	Result string           `json:"result,omitempty"`
}

// Encode marshals the message into a transport frame. Outbound messages are
// built from our own structs, so a marshal failure is a programming error.
func (m ServerMessage) Encode() core.Frame {
	b, err := json.Marshal(m)
	if err != nil {
		panic("protocol: unmarshalable server message: " + err.Error())
	}
	return core.Frame(b)
}

func RegisterResponse(response, message, myUsername string) ServerMessage {
	return ServerMessage{
		ID:         TypeRegisterResponse,
		Response:   response,
		Message:    message,
		MyUsername: myUsername,
	}
}

func RegisteredUsers(names []string) ServerMessage {
	return ServerMessage{ID: TypeRegisteredUsers, Users: names}
}

func IncomingCall(from string) ServerMessage {
	return ServerMessage{ID: TypeIncomingCall, From: from}
}

func CallAccepted(sdpAnswer string) ServerMessage {
	return ServerMessage{ID: TypeCallResponse, Response: ResponseAccepted, SDPAnswer: sdpAnswer}
}

func CallRejected(message string) ServerMessage {
	return ServerMessage{ID: TypeCallResponse, Response: ResponseRejected, Message: message}
}

func StartCommunication(sdpAnswer string) ServerMessage {
	return ServerMessage{ID: TypeStartCommunication, SDPAnswer: sdpAnswer}
}

func IceCandidate(c core.Candidate) ServerMessage {
	return ServerMessage{
		ID: TypeIceCandidate,
		Candidate: &CandidateInit{
			Candidate:     c.Candidate,
			SDPMid:        c.SDPMid,
			SDPMLineIndex: c.SDPMLineIndex,
		},
	}
}

func StopCommunication() ServerMessage {
	return ServerMessage{ID: TypeStopCommunication}
}

// OnlineStatus answers a checkOnlineStatus query or carries a broadcast
// status change. message names the subject user; myUsername names the
// receiving session so each client can correlate the update to itself.
func OnlineStatus(status, user, myUsername string) ServerMessage {
	return ServerMessage{
		ID:         TypeResponseOnlineStatus,
		Response:   status,
		Message:    user,
		MyUsername: myUsername,
	}
}

func PlayAccepted(sdpAnswer string) ServerMessage {
	return ServerMessage{ID: TypePlayResponse, Response: ResponseAccepted, SDPAnswer: sdpAnswer}
}

func PlayRejected(reason string) ServerMessage {
	return ServerMessage{ID: TypePlayResponse, Response: ResponseRejected, Error: reason}
}

func PlayEnd() ServerMessage {
	return ServerMessage{ID: TypePlayEnd}
}

// ErrorResponse shapes a per-message failure reply on the tag the client is
// waiting for (registerResponse, callResponse, ...).
func ErrorResponse(id Type, message string) ServerMessage {
	return ServerMessage{ID: id, Response: ResponseRejected, Message: message}
}
