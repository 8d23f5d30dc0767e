package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/cordbridge/internal/config"
)

// CallError is an error response received by a dialed connection.
type CallError struct {
	Method string
	Shape  ErrorShape
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Method, e.Shape.Code, e.Shape.Message)
}

// Conn is the client side of a gateway connection, used by the CLI.
type Conn struct {
	ws    *websocket.Conn
	Hello HelloOK

	mu sync.Mutex
}

// URL returns the WebSocket URL a local client should dial for cfg.
func URL(cfg config.GatewayConfig) string {
	host := "127.0.0.1"
	if cfg.Bind == "custom" && cfg.CustomBindHost != "" && cfg.CustomBindHost != "0.0.0.0" {
		host = cfg.CustomBindHost
	}
	scheme := "ws"
	if cfg.TLS.Enabled {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: host + ":" + strconv.Itoa(cfg.Port), Path: "/ws"}
	return u.String()
}

// Dial connects to the gateway at rawURL and completes the handshake.
func Dial(ctx context.Context, rawURL string, auth ConnectAuth, info ClientInfo) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing gateway: %w", err)
	}
	c := &Conn{ws: ws}
	if err := c.handshake(ctx, auth, info); err != nil {
		ws.Close()
		return nil, err
	}
	return c, nil
}

func (c *Conn) handshake(ctx context.Context, auth ConnectAuth, info ClientInfo) error {
	c.setDeadline(ctx, handshakeTimeout)

	var challenge Frame
	if err := c.ws.ReadJSON(&challenge); err != nil {
		return fmt.Errorf("reading challenge: %w", err)
	}
	if challenge.Type != FrameTypeEvent || challenge.Event != EventConnectChallenge {
		return fmt.Errorf("expected %s, got %s %s", EventConnectChallenge, challenge.Type, challenge.Event)
	}

	payload, err := c.call(ctx, MethodConnect, ConnectParams{
		MinProtocol: ProtocolVersion,
		MaxProtocol: ProtocolVersion,
		Client:      info,
		Auth:        &auth,
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, &c.Hello)
}

// Call sends a request and waits for its response. Event frames that
// arrive first are discarded.
func (c *Conn) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.setDeadline(ctx, 30*time.Second)
	return c.call(ctx, method, params)
}

func (c *Conn) call(_ context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.New().String()
	req, err := requestFrame(id, method, params)
	if err != nil {
		return nil, err
	}
	if err := c.ws.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("sending %s: %w", method, err)
	}

	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			return nil, fmt.Errorf("waiting for %s: %w", method, err)
		}
		if f.Type != FrameTypeResponse || f.ID != id {
			continue
		}
		if shape, failed := f.failed(); failed {
			return nil, &CallError{Method: method, Shape: shape}
		}
		return f.Payload, nil
	}
}

// setDeadline applies ctx's deadline, or fallback when it has none.
func (c *Conn) setDeadline(ctx context.Context, fallback time.Duration) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(fallback)
	}
	c.ws.SetReadDeadline(deadline)
	c.ws.SetWriteDeadline(deadline)
}

// Close ends the connection with a normal close frame.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.ws.Close()
}
