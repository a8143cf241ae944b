package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegister(t *testing.T) {
	m, err := Parse([]byte(`{"id":"register","name":"alice"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeRegister, m.ID)
	assert.Equal(t, "alice", m.Name)
}

func TestParseRejectsUnknownTag(t *testing.T) {
	_, err := Parse([]byte(`{"id":"teleport"}`))
	require.Error(t, err)
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{"id":`))
	require.Error(t, err)
}

func TestParseCallRequirements(t *testing.T) {
	_, err := Parse([]byte(`{"id":"call","to":"bob"}`))
	require.Error(t, err, "missing sdpOffer")

	_, err = Parse([]byte(`{"id":"call","sdpOffer":"o"}`))
	require.Error(t, err, "missing to")

	m, err := Parse([]byte(`{"id":"call","to":"bob","sdpOffer":"o"}`))
	require.NoError(t, err)
	assert.Equal(t, "bob", m.To)
}

func TestParseIncomingCallResponse(t *testing.T) {
	_, err := Parse([]byte(`{"id":"incomingCallResponse","from":"alice","callResponse":"accept"}`))
	require.Error(t, err, "accept without sdpOffer")

	_, err = Parse([]byte(`{"id":"incomingCallResponse","from":"alice","callResponse":"maybe"}`))
	require.Error(t, err, "unsupported verdict")

	m, err := Parse([]byte(`{"id":"incomingCallResponse","from":"alice","callResponse":"reject"}`))
	require.NoError(t, err)
	assert.Equal(t, CallReject, m.CallResponse)
}

func TestIceCandidateFlatShape(t *testing.T) {
	m, err := Parse([]byte(`{"id":"onIceCandidate","candidate":"candidate:1 1 UDP 1 1.2.3.4 1234 typ host","sdpMid":"audio","sdpMLineIndex":0}`))
	require.NoError(t, err)

	c, err := m.IceCandidate()
	require.NoError(t, err)
	assert.Equal(t, "candidate:1 1 UDP 1 1.2.3.4 1234 typ host", c.Candidate)
	assert.Equal(t, "audio", c.SDPMid)
	assert.Equal(t, uint16(0), c.SDPMLineIndex)
}

func TestIceCandidateNestedShape(t *testing.T) {
	m, err := Parse([]byte(`{"id":"onIceCandidate","candidate":{"candidate":"candidate:2","sdpMid":"0","sdpMLineIndex":1}}`))
	require.NoError(t, err)

	c, err := m.IceCandidate()
	require.NoError(t, err)
	assert.Equal(t, "candidate:2", c.Candidate)
	assert.Equal(t, "0", c.SDPMid)
	assert.Equal(t, uint16(1), c.SDPMLineIndex)
}

func TestIceCandidateRejectsEmptyObject(t *testing.T) {
	m, err := Parse([]byte(`{"id":"onIceCandidate","candidate":{}}`))
	require.NoError(t, err)

	_, err = m.IceCandidate()
	require.Error(t, err)
}

func TestServerMessageOmitsEmptyFields(t *testing.T) {
	frame := StopCommunication().Encode()
	assert.JSONEq(t, `{"id":"stopCommunication"}`, string(frame))
}

func TestRegisterResponseCarriesMyUsername(t *testing.T) {
	frame := RegisterResponse(ResponseAccepted, "", "alice").Encode()

	var got map[string]any
	require.NoError(t, json.Unmarshal(frame, &got))
	assert.Equal(t, "registerResponse", got["id"])
	assert.Equal(t, "accepted", got["response"])
	assert.Equal(t, "alice", got["myUsername"])
	assert.NotContains(t, got, "message")
}

func TestAppConfigBrowserShape(t *testing.T) {
	ice := ICEConfig{
		StunURL:      "stun:stun.example.org:3478",
		TurnURL:      "turn:turn.example.org:3478",
		TurnUsername: "user",
		TurnPassword: "pass",
	}
	frame := AppConfig("browser", ice).Encode()

	var got struct {
		Params AppConfigParams `json:"params"`
		Result string          `json:"result"`
	}
	require.NoError(t, json.Unmarshal(frame, &got))
	assert.Equal(t, "SUCCESS", got.Result)

	servers := got.Params.PCConfig.ICEServers
	require.Len(t, servers, 2)
	assert.Equal(t, []string{
		"stun:stun.example.org:3478?transport=udp",
		"stun:stun.example.org:3478?transport=tcp",
	}, servers[0].URLs)

	turn := servers[1]
	require.NotNil(t, turn.Credential)
	assert.Equal(t, "pass", *turn.Credential)
	assert.Nil(t, turn.Password)
}

func TestAppConfigMobileShape(t *testing.T) {
	ice := ICEConfig{
		StunURL:      "stun:stun.example.org:3478",
		TurnURL:      "turn:turn.example.org:3478",
		TurnUsername: "user",
		TurnPassword: "pass",
	}
	frame := AppConfig("android", ice).Encode()

	var got struct {
		Params AppConfigParams `json:"params"`
	}
	require.NoError(t, json.Unmarshal(frame, &got))

	servers := got.Params.PCConfig.ICEServers
	require.Len(t, servers, 2)

	// Mobile clients require username/password on every entry, empty on STUN.
	stun := servers[0]
	require.NotNil(t, stun.Username)
	require.NotNil(t, stun.Password)
	assert.Empty(t, *stun.Username)
	assert.Nil(t, stun.Credential)

	turn := servers[1]
	require.NotNil(t, turn.Password)
	assert.Equal(t, "pass", *turn.Password)
	assert.Nil(t, turn.Credential)
}
