package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/cordbridge/internal/domain"
)

func TestRequestFrame_ChatCommand(t *testing.T) {
	f, err := requestFrame("req-2", "chan-1", domain.Command{Type: domain.CommandTyping, Action: "start"})
	require.NoError(t, err)

	assert.Equal(t, FrameTypeRequest, f.Type)
	assert.Equal(t, "chan-1", f.Method)
	cmd, err := domain.DecodeCommand(f.Params)
	require.NoError(t, err)
	assert.Equal(t, domain.CommandTyping, cmd.Type)
}

func TestRequestFrame_RawParamsPassThrough(t *testing.T) {
	raw := json.RawMessage(`"legacy text"`)
	f, err := requestFrame("req-3", "chan-1", raw)
	require.NoError(t, err)
	assert.Equal(t, raw, f.Params)
}

func TestEventFrame_MessageDelivery(t *testing.T) {
	msg := domain.Message{ID: "m1", ChannelID: "c1", Content: "hello", Author: domain.Author{ID: "u1", Username: "al"}}
	f, err := eventFrame("c1", msg, 7)
	require.NoError(t, err)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"event","event":"c1","seq":7,"payload":{
		"id":"m1","channel":"c1","timestamp":"","content":"hello",
		"author":{"id":"u1","username":"al","discriminator":"","roles":null}}}`, string(data))
}

func TestEventFrame_ChallengeHasNoSeq(t *testing.T) {
	f, err := eventFrame(EventConnectChallenge, map[string]string{"nonce": "n"}, 0)
	require.NoError(t, err)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"seq"`)
}

func TestFrame_Failed(t *testing.T) {
	ok, err := resultFrame("r1", domain.Server{ID: "g1"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		frame  Frame
		failed bool
		code   string
	}{
		{"success", ok, false, ""},
		{"error body", failureFrame("r2", ErrorShape{Code: CodeNotConnected, Message: "offline", Retryable: true}), true, CodeNotConnected},
		{"no ok flag", Frame{Type: FrameTypeResponse, ID: "r3"}, true, CodeBridge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shape, failed := tt.frame.failed()
			assert.Equal(t, tt.failed, failed)
			assert.Equal(t, tt.code, shape.Code)
		})
	}
}

func TestFailureFrame_Wire(t *testing.T) {
	data, err := json.Marshal(failureFrame("req-1", ErrorShape{Code: CodeNotConnected, Message: "offline", Retryable: true}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"res","id":"req-1","ok":false,
		"error":{"code":"not_connected","message":"offline","retryable":true}}`, string(data))

	data, err = json.Marshal(ErrorShape{Code: CodeMethodNotFound, Message: "no route"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "retryable")
}

func TestConnectParams_OmitsNilAuth(t *testing.T) {
	data, err := json.Marshal(ConnectParams{
		MinProtocol: ProtocolVersion,
		MaxProtocol: ProtocolVersion,
		Client:      ClientInfo{ID: "cordbridge-cli", Mode: ClientModeCLI},
	})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"auth"`)
}

func TestClientInfo_WantsPushes(t *testing.T) {
	assert.True(t, ClientInfo{Mode: ClientModeUI}.wantsPushes())
	assert.True(t, ClientInfo{}.wantsPushes(), "older shells send no mode")
	assert.False(t, ClientInfo{Mode: ClientModeCLI}.wantsPushes())
}
