package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/cordbridge/internal/bridge"
	"github.com/soyeahso/cordbridge/internal/config"
	"github.com/soyeahso/cordbridge/internal/domain"
	"github.com/soyeahso/cordbridge/internal/logging"
	"github.com/soyeahso/cordbridge/internal/routes"
)

const testToken = "test-token-123"

type uiCall struct {
	Method string
	Params string
}

// fakeUI records requests and answers from a per-method table.
type fakeUI struct {
	mu     sync.Mutex
	calls  []uiCall
	errors map[string]error
}

func (f *fakeUI) HandleUI(_ context.Context, method string, params json.RawMessage) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, uiCall{Method: method, Params: string(params)})
	if err, ok := f.errors[method]; ok {
		return nil, err
	}
	return map[string]any{"ok": true, "method": method}, nil
}

func (f *fakeUI) Calls() []uiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uiCall(nil), f.calls...)
}

func testServer(t *testing.T, opts ...ServerOption) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Gateway.Auth.Mode = "token"
	cfg.Gateway.Auth.Token = testToken

	srv := New(cfg.Gateway, logging.New(nil, "silent"), opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func connectRequest(token string) Frame {
	return connectAs(token, ClientModeUI)
}

func connectAs(token, mode string) Frame {
	req, _ := requestFrame("auth-req", MethodConnect, ConnectParams{
		MinProtocol: 1,
		MaxProtocol: 1,
		Client: ClientInfo{
			ID:       "test-client",
			Version:  "1.0.0",
			Platform: "linux",
			Mode:     mode,
		},
		Auth: &ConnectAuth{Token: token},
	})
	return req
}

// authenticatedConn completes the handshake as a UI and waits until the
// server has registered the client.
func authenticatedConn(t *testing.T, srv *Server, ts *httptest.Server) *websocket.Conn {
	return connectedAs(t, srv, ts, ClientModeUI)
}

func connectedAs(t *testing.T, srv *Server, ts *httptest.Server, mode string) *websocket.Conn {
	t.Helper()
	before := srv.peers.size()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))
	require.NoError(t, conn.WriteJSON(connectAs(testToken, mode)))

	var hello Frame
	require.NoError(t, conn.ReadJSON(&hello))
	require.NotNil(t, hello.OK)
	require.True(t, *hello.OK, "handshake should succeed")

	require.Eventually(t, func() bool { return srv.peers.size() > before },
		2*time.Second, 5*time.Millisecond)
	return conn
}

func call(t *testing.T, conn *websocket.Conn, id, method string, params any) Frame {
	t.Helper()
	req, err := requestFrame(id, method, params)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == FrameTypeResponse && f.ID == id {
			return f
		}
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	require.Equal(t, FrameTypeEvent, f.Type)
	return f
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	// Public endpoint only returns status
	assert.Empty(t, health.Version)
}

func TestNotFoundEndpoint(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestWebSocketHandshakeSuccess(t *testing.T) {
	_, ts := testServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))
	assert.Equal(t, FrameTypeEvent, challenge.Type)
	assert.Equal(t, EventConnectChallenge, challenge.Event)

	require.NoError(t, conn.WriteJSON(connectRequest(testToken)))

	var helloResp Frame
	require.NoError(t, conn.ReadJSON(&helloResp))
	assert.Equal(t, FrameTypeResponse, helloResp.Type)
	assert.Equal(t, "auth-req", helloResp.ID)
	require.NotNil(t, helloResp.OK)
	assert.True(t, *helloResp.OK)

	var hello HelloOK
	require.NoError(t, json.Unmarshal(helloResp.Payload, &hello))
	assert.Equal(t, ProtocolVersion, hello.Protocol)
	assert.NotEmpty(t, hello.ConnID)
	assert.Equal(t, advertisedMethods, hello.Methods)
	assert.Contains(t, hello.Events, domain.EventServerCreate)
	assert.NotContains(t, hello.Events, EventConnectChallenge)
	assert.Equal(t, maxPayload, hello.MaxPayload)
}

func TestWebSocketHandshakeRejected(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		code  string
	}{
		{"wrong token", connectRequest("wrong-token"), CodeUnauthorized},
		{"no token", connectRequest(""), CodeUnauthorized},
		{"not connect", func() Frame { f, _ := requestFrame("x", "state", nil); return f }(), CodeProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := testServer(t)
			conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
			require.NoError(t, err)
			defer conn.Close()

			var challenge Frame
			require.NoError(t, conn.ReadJSON(&challenge))
			require.NoError(t, conn.WriteJSON(tt.frame))

			var errResp Frame
			require.NoError(t, conn.ReadJSON(&errResp))
			require.NotNil(t, errResp.OK)
			assert.False(t, *errResp.OK)
			require.NotNil(t, errResp.Error)
			assert.Equal(t, tt.code, errResp.Error.Code)
		})
	}
}

func TestWebSocketRateLimited(t *testing.T) {
	srv, ts := testServer(t)
	for i := 0; i < authRateMaxFails; i++ {
		srv.authLimiter.recordFailure("127.0.0.1:1")
	}

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestWebSocketRefusals_OnlyBadCredentialsCount(t *testing.T) {
	srv, ts := testServer(t)
	handshakeWith := func(f Frame) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
		require.NoError(t, err)
		defer conn.Close()
		var challenge Frame
		require.NoError(t, conn.ReadJSON(&challenge))
		require.NoError(t, conn.WriteJSON(f))
		var resp Frame
		require.NoError(t, conn.ReadJSON(&resp))
		require.NotNil(t, resp.Error)
	}
	failures := func() int {
		srv.authLimiter.mu.Lock()
		defer srv.authLimiter.mu.Unlock()
		return len(srv.authLimiter.failures["127.0.0.1"])
	}

	notConnect, _ := requestFrame("x", domain.MethodState, nil)
	handshakeWith(notConnect)
	assert.Equal(t, 0, failures())

	handshakeWith(connectRequest("wrong-token"))
	require.Eventually(t, func() bool { return failures() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocketRPCHealth(t *testing.T) {
	srv, ts := testServer(t)
	conn := authenticatedConn(t, srv, ts)

	resp := call(t, conn, "req-2", domain.MethodHealth, nil)
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Clients)
}

func TestWebSocketForwardsToHandler(t *testing.T) {
	ui := &fakeUI{}
	srv, ts := testServer(t, WithHandler(ui))
	conn := authenticatedConn(t, srv, ts)

	resp := call(t, conn, "req-1", "chan-1", map[string]string{"type": "message", "message": "hi"})
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)

	calls := ui.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "chan-1", calls[0].Method)
	assert.JSONEq(t, `{"type":"message","message":"hi"}`, calls[0].Params)
}

func TestWebSocketHandlerErrors(t *testing.T) {
	ui := &fakeUI{errors: map[string]error{
		"nope":     fmt.Errorf("%w: nope", bridge.ErrUnknownMethod),
		"chan-1":   domain.ErrNotConnected,
		"token":    domain.ErrCredentialMissing,
		"chan-2":   errors.New("boom"),
		"chan-3":   &domain.ConnectionError{Op: "send", Err: errors.New("reset")},
		"chan-404": routes.ErrNoRoute,
	}}
	srv, ts := testServer(t, WithHandler(ui))
	conn := authenticatedConn(t, srv, ts)

	tests := []struct {
		method    string
		code      string
		retryable bool
	}{
		{"nope", CodeMethodNotFound, false},
		{"chan-404", CodeMethodNotFound, false},
		{"chan-1", CodeNotConnected, true},
		{"token", CodeInvalidParams, false},
		{"chan-2", CodeBridge, false},
		{"chan-3", CodeBridge, true},
	}
	for i, tt := range tests {
		resp := call(t, conn, fmt.Sprintf("req-%d", i), tt.method, nil)
		require.NotNil(t, resp.OK, tt.method)
		assert.False(t, *resp.OK, tt.method)
		require.NotNil(t, resp.Error, tt.method)
		assert.Equal(t, tt.code, resp.Error.Code, tt.method)
		assert.Equal(t, tt.retryable, resp.Error.Retryable, tt.method)
	}
}

func TestWebSocketNoHandler(t *testing.T) {
	srv, ts := testServer(t)
	conn := authenticatedConn(t, srv, ts)

	resp := call(t, conn, "req-1", "state", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUnavailable, resp.Error.Code)

	srv.SetHandler(&fakeUI{})
	resp = call(t, conn, "req-2", "state", nil)
	assert.True(t, *resp.OK)
}

func TestPush_Sequenced(t *testing.T) {
	srv, ts := testServer(t)
	a := authenticatedConn(t, srv, ts)
	b := authenticatedConn(t, srv, ts)

	srv.Push(domain.EventServerCreate, domain.Server{ID: "g1", Name: "Guild"})
	srv.Push("chan-1", domain.Message{ID: "m1", ChannelID: "chan-1"})

	for _, conn := range []*websocket.Conn{a, b} {
		first := readEvent(t, conn)
		assert.Equal(t, domain.EventServerCreate, first.Event)
		assert.Equal(t, int64(1), first.Seq)

		var srvSnap domain.Server
		require.NoError(t, json.Unmarshal(first.Payload, &srvSnap))
		assert.Equal(t, "g1", srvSnap.ID)

		second := readEvent(t, conn)
		assert.Equal(t, "chan-1", second.Event)
		assert.Equal(t, int64(2), second.Seq)
	}
}

func TestPush_SkipsCLIClients(t *testing.T) {
	srv, ts := testServer(t, WithHandler(&fakeUI{}))
	srv.Windows().Open(domain.WindowMain)
	cli := connectedAs(t, srv, ts, ClientModeCLI)
	ui := authenticatedConn(t, srv, ts)

	assert.Equal(t, domain.EventWindowOpen, readEvent(t, ui).Event, "window replay")
	srv.Push("chan-1", domain.Message{ID: "m1", ChannelID: "chan-1", Content: "hi"})
	ev := readEvent(t, ui)
	assert.Equal(t, "chan-1", ev.Event)

	req, err := requestFrame("req-1", domain.MethodHealth, nil)
	require.NoError(t, err)
	require.NoError(t, cli.WriteJSON(req))
	cli.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first Frame
	require.NoError(t, cli.ReadJSON(&first))
	assert.Equal(t, FrameTypeResponse, first.Type, "no replay or push reaches a CLI client")

	var health HealthResponse
	require.NoError(t, json.Unmarshal(first.Payload, &health))
	assert.Equal(t, 2, health.Clients)
}

func TestWindows(t *testing.T) {
	srv, ts := testServer(t)
	conn := authenticatedConn(t, srv, ts)
	w := srv.Windows()

	w.Open(domain.WindowMain)
	w.Open(domain.WindowMain)
	assert.True(t, w.IsOpen(domain.WindowMain))
	w.Close(domain.WindowCredential)
	w.Close(domain.WindowMain)
	assert.False(t, w.IsOpen(domain.WindowMain))

	open := readEvent(t, conn)
	assert.Equal(t, domain.EventWindowOpen, open.Event)
	assert.JSONEq(t, `{"window":"main"}`, string(open.Payload))

	closed := readEvent(t, conn)
	assert.Equal(t, domain.EventWindowClose, closed.Event)
	assert.Equal(t, open.Seq+1, closed.Seq, "repeated open and closing a closed window push nothing")
}

func TestWindows_ReplayedToNewClient(t *testing.T) {
	srv, ts := testServer(t)
	srv.Windows().Open(domain.WindowCredential)

	conn := authenticatedConn(t, srv, ts)
	ev := readEvent(t, conn)
	assert.Equal(t, domain.EventWindowOpen, ev.Event)
	assert.JSONEq(t, `{"window":"credential"}`, string(ev.Payload))
	assert.Equal(t, []string{domain.WindowCredential}, srv.Windows().List())
}

func TestDial(t *testing.T) {
	ui := &fakeUI{errors: map[string]error{"nope": bridge.ErrUnknownMethod}}
	srv, ts := testServer(t, WithHandler(ui))
	srv.Windows().Open(domain.WindowMain)

	ctx := context.Background()
	info := ClientInfo{ID: "cli", Mode: ClientModeCLI}
	c, err := Dial(ctx, wsURL(ts), ConnectAuth{Token: testToken}, info)
	require.NoError(t, err)
	defer c.Close()
	assert.NotEmpty(t, c.Hello.ConnID)

	payload, err := c.Call(ctx, "chan-1", "legacy text")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"method":"chan-1"}`, string(payload))

	_, err = c.Call(ctx, "nope", nil)
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, CodeMethodNotFound, callErr.Shape.Code)

	_, err = Dial(ctx, wsURL(ts), ConnectAuth{Token: "bad"}, info)
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, CodeUnauthorized, callErr.Shape.Code)
}

func TestURL(t *testing.T) {
	assert.Equal(t, "ws://127.0.0.1:18790/ws", URL(config.GatewayConfig{Port: 18790, Bind: "loopback"}))
	assert.Equal(t, "wss://127.0.0.1:1/ws", URL(config.GatewayConfig{Port: 1, TLS: config.GatewayTLS{Enabled: true}}))
	assert.Equal(t, "ws://10.0.0.2:5/ws", URL(config.GatewayConfig{Port: 5, Bind: "custom", CustomBindHost: "10.0.0.2"}))
}

func TestServerStart(t *testing.T) {
	cfg := config.Defaults()
	cfg.Gateway.Port = 0 // let OS pick a port
	cfg.Gateway.Auth.Token = "test-token"

	srv := New(cfg.Gateway, logging.New(nil, "silent"))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
