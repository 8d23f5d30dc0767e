package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/cordbridge/internal/config"
	"github.com/soyeahso/cordbridge/internal/logging"
	"github.com/soyeahso/cordbridge/internal/version"
)

var ErrClientClosed = errors.New("client connection closed")

const (
	maxPayload       = 4 * 1024 * 1024
	handshakeTimeout = 10 * time.Second
)

// UIHandler serves requests from the UI. Any method the server does not
// handle itself is passed here with its raw params.
type UIHandler interface {
	HandleUI(ctx context.Context, method string, params json.RawMessage) (any, error)
}

// Server is the local HTTP + WebSocket gateway between the bridge and
// the UI process.
type Server struct {
	cfg      config.GatewayConfig
	auth     ResolvedAuth
	log      *logging.Logger
	peers    *peerSet
	windows  *Windows
	version  string
	eventSeq atomic.Int64

	mu sync.RWMutex
	ui UIHandler

	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithHandler sets the UI request handler.
func WithHandler(h UIHandler) ServerOption {
	return func(s *Server) {
		s.ui = h
	}
}

// WithAuth overrides the auth resolved from config, e.g. after filling
// in a generated token.
func WithAuth(auth ResolvedAuth) ServerOption {
	return func(s *Server) {
		s.auth = auth
	}
}

// New creates a new gateway server.
func New(cfg config.GatewayConfig, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Auth),
		log:         log.Sub("gateway"),
		peers:       newPeerSet(log.Sub("clients")),
		version:     version.Version,
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originPolicy(cfg.ControlUI.AllowedOrigins).checkUpgrade,
		},
	}
	s.windows = newWindows(s)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetHandler installs the UI request handler after construction, for
// handlers that themselves need the server.
func (s *Server) SetHandler(h UIHandler) {
	s.mu.Lock()
	s.ui = h
	s.mu.Unlock()
}

func (s *Server) handler() UIHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ui
}

// Windows returns the tracker for windows the bridge has asked the UI to show.
func (s *Server) Windows() *Windows { return s.windows }

// Push broadcasts an event to every connected UI. Each push takes the next
// sequence number, whether or not any UI is listening.
func (s *Server) Push(event string, payload any) {
	seq := s.eventSeq.Add(1)
	n, err := s.peers.broadcast(event, payload, seq)
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Msg("failed to encode push")
		return
	}
	s.log.Trace().Str("event", event).Int64("seq", seq).Int("clients", n).Msg("pushed")
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan", "auto":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Handler returns the HTTP handler with routes and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.ControlUI.AllowedOrigins)
}

// Start listens for HTTP and WebSocket connections. It blocks until ctx
// is cancelled or serving fails.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.cfg.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLS.CertPath, s.cfg.TLS.KeyPath)
		if err != nil {
			ln.Close()
			return fmt.Errorf("loading TLS certificate: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
		s.log.Info().Msg("TLS enabled")
	} else if s.cfg.Bind != "loopback" {
		s.log.Warn().Msg("TLS is not enabled, gateway credentials travel in cleartext")
	}

	s.startedAt = time.Now()
	go s.authLimiter.run(ctx.Done())

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Str("auth", s.auth.Mode).
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.peers.closeAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the configured listen address, or "" if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// handleWebSocket upgrades HTTP to WebSocket and serves the socket until
// it closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited after failed auth attempts")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	ws.SetReadLimit(maxPayload)

	p, err := s.handshake(ws)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("handshake failed")
		var refused *refusal
		if errors.As(err, &refused) && refused.Code == CodeUnauthorized {
			s.authLimiter.recordFailure(r.RemoteAddr)
		}
		ws.Close()
		return
	}

	s.peers.join(p)
	defer s.peers.leave(p)

	if p.info.wantsPushes() {
		s.windows.replay(p)
	}
	s.readLoop(r.Context(), p)
}

// refusal is a handshake rejection that was reported to the client.
type refusal struct {
	ErrorShape
}

func (e *refusal) Error() string { return e.Code + ": " + e.Message }

// refuse reports shape to the client, closes the socket normally and
// returns the refusal as an error.
func refuse(ws *websocket.Conn, reqID string, shape ErrorShape) error {
	ws.WriteJSON(failureFrame(reqID, shape))
	ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, shape.Message))
	return &refusal{shape}
}

// handshake sends the challenge, reads the connect request and answers
// it with hello-ok or a refusal.
func (s *Server) handshake(ws *websocket.Conn) (*peer, error) {
	ws.SetReadDeadline(time.Now().Add(handshakeTimeout))

	challenge, err := eventFrame(EventConnectChallenge, map[string]any{
		"nonce": uuid.NewString(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return nil, err
	}
	if err := ws.WriteJSON(challenge); err != nil {
		return nil, fmt.Errorf("sending challenge: %w", err)
	}

	var req Frame
	if err := ws.ReadJSON(&req); err != nil {
		return nil, fmt.Errorf("reading connect: %w", err)
	}
	if req.Type != FrameTypeRequest || req.Method != MethodConnect {
		return nil, refuse(ws, req.ID, ErrorShape{Code: CodeProtocol, Message: "expected connect request"})
	}

	var params ConnectParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, refuse(ws, req.ID, ErrorShape{Code: CodeInvalidParams, Message: "invalid connect params"})
	}
	if params.MaxProtocol != 0 && params.MaxProtocol < ProtocolVersion {
		return nil, refuse(ws, req.ID, ErrorShape{Code: CodeProtocol, Message: "unsupported protocol version"})
	}

	auth := Authorize(s.auth, params.Auth)
	if !auth.OK {
		return nil, refuse(ws, req.ID, ErrorShape{Code: CodeUnauthorized, Message: auth.Reason})
	}
	ws.SetReadDeadline(time.Time{})

	p := newPeer(ws, params.Client, auth.Method)
	hello, err := resultFrame(req.ID, HelloOK{
		Protocol:   ProtocolVersion,
		ConnID:     p.id,
		Version:    s.version,
		Commit:     version.Commit,
		Methods:    advertisedMethods,
		Events:     pushEvents,
		MaxPayload: maxPayload,
	})
	if err != nil {
		return nil, err
	}
	if err := ws.WriteJSON(hello); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	s.log.Info().
		Str("connId", p.id).
		Str("clientId", params.Client.ID).
		Str("clientMode", params.Client.Mode).
		Str("authMethod", auth.Method).
		Msg("client authenticated")
	return p, nil
}

// readLoop serves one peer's requests in arrival order.
func (s *Server) readLoop(ctx context.Context, p *peer) {
	for {
		f, err := p.next()
		switch {
		case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
			s.log.Debug().Str("connId", p.id).Msg("client closed connection")
			return
		case err != nil:
			s.log.Warn().Err(err).Str("connId", p.id).Msg("read error")
			return
		case f.Type != FrameTypeRequest:
			s.log.Debug().Str("connId", p.id).Str("type", f.Type).Msg("ignoring non-request frame")
		default:
			s.dispatch(ctx, p, f)
		}
	}
}
