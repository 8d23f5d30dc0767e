package routes

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/cordbridge/internal/domain"
	"github.com/soyeahso/cordbridge/internal/logging"
	"github.com/soyeahso/cordbridge/internal/remote/remotetest"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

func newTestRouter() (*Router, *remotetest.Client) {
	client := remotetest.NewClient(nil, nil)
	return NewRouter(func() Conn { return client }, testLogger()), client
}

func TestRouter_AcquireOnce(t *testing.T) {
	r, _ := newTestRouter()

	assert.True(t, r.Acquire("s1", "c1"))
	assert.False(t, r.Acquire("s1", "c1"))
	assert.True(t, r.Acquire("s1", "c2"))

	assert.Equal(t, 2, r.Count())
	assert.Equal(t, []string{"c1", "c2"}, r.List())
	assert.True(t, r.Has("c1"))
}

func TestRouter_Release(t *testing.T) {
	r, _ := newTestRouter()
	r.Acquire("s1", "c1")
	r.Acquire("s1", "c2")
	r.Acquire("s2", "c3")

	assert.True(t, r.Release("c1"))
	assert.False(t, r.Release("c1"))
	assert.Equal(t, []string{"c2"}, r.ServerChannels("s1"))

	assert.Equal(t, 1, r.ReleaseServer("s1"))
	assert.Equal(t, 0, r.ReleaseServer("s1"))
	assert.Equal(t, []string{"c3"}, r.List())

	assert.Equal(t, 1, r.ReleaseAll())
	assert.Zero(t, r.Count())
}

func TestRouter_DispatchUnknownChannel(t *testing.T) {
	r, client := newTestRouter()

	err := r.Dispatch(context.Background(), "nope", json.RawMessage(`{"type":"message","message":"x"}`))
	assert.ErrorIs(t, err, ErrNoRoute)
	assert.Empty(t, client.Calls())
}

func TestRouter_DispatchReleasedChannel(t *testing.T) {
	r, client := newTestRouter()
	r.Acquire("s1", "c1")
	r.Release("c1")

	err := r.Dispatch(context.Background(), "c1", json.RawMessage(`"hi"`))
	assert.ErrorIs(t, err, ErrNoRoute)
	assert.Empty(t, client.Calls())
}

func TestRouter_Dispatch(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []remotetest.Call
	}{
		{
			name:    "message",
			payload: `{"type":"message","message":"hello"}`,
			want:    []remotetest.Call{{Method: "send", ChannelID: "c1", Text: "hello"}},
		},
		{
			name:    "legacy string payload",
			payload: `"hello"`,
			want:    []remotetest.Call{{Method: "send", ChannelID: "c1", Text: "hello"}},
		},
		{
			name:    "typing start",
			payload: `{"type":"typing","action":"start","channel":"c1"}`,
			want:    []remotetest.Call{{Method: "typing_start", ChannelID: "c1"}},
		},
		{
			name:    "typing stop",
			payload: `{"type":"typing","action":"stop","channel":"c1"}`,
			want:    []remotetest.Call{{Method: "typing_stop", ChannelID: "c1"}},
		},
		{
			name:    "typing other action stops",
			payload: `{"type":"typing","action":"whatever"}`,
			want:    []remotetest.Call{{Method: "typing_stop", ChannelID: "c1"}},
		},
		{
			name:    "typing targets command channel",
			payload: `{"type":"typing","action":"start","channel":"c9"}`,
			want:    []remotetest.Call{{Method: "typing_start", ChannelID: "c9"}},
		},
		{name: "missing type", payload: `{"message":"hello"}`},
		{name: "unknown type", payload: `{"type":"reaction","message":"hello"}`},
		{name: "not an object", payload: `17`},
		{name: "garbage", payload: `{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, client := newTestRouter()
			r.Acquire("s1", "c1")

			err := r.Dispatch(context.Background(), "c1", json.RawMessage(tt.payload))
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, client.Calls())
				return
			}
			assert.Equal(t, tt.want, client.Calls())
		})
	}
}

func TestRouter_DispatchConnectionError(t *testing.T) {
	r, client := newTestRouter()
	client.SendErr = errors.New("rate limited")
	r.Acquire("s1", "c1")

	err := r.Dispatch(context.Background(), "c1", json.RawMessage(`{"type":"message","message":"x"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestRouter_DispatchNotConnected(t *testing.T) {
	r := NewRouter(func() Conn { return nil }, testLogger())
	r.Acquire("s1", "c1")

	err := r.Dispatch(context.Background(), "c1", json.RawMessage(`{"type":"message","message":"x"}`))
	assert.ErrorIs(t, err, domain.ErrNotConnected)

	// ignored commands never reach the connection check
	assert.NoError(t, r.Dispatch(context.Background(), "c1", json.RawMessage(`{"type":"bogus"}`)))
}
