package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/soyeahso/cordbridge/internal/bridge"
	"github.com/soyeahso/cordbridge/internal/domain"
	"github.com/soyeahso/cordbridge/internal/routes"
)

// advertisedMethods are announced in hello-ok. Channel identifiers are
// accepted as methods too and carry chat commands.
var advertisedMethods = []string{
	domain.MethodHealth,
	domain.MethodState,
	domain.MethodToken,
	domain.MethodActivateChannel,
}

// pushEvents are announced in hello-ok. Message deliveries use the
// channel identifier as the event name.
var pushEvents = []string{
	domain.EventServerCreate,
	domain.EventServerDelete,
	domain.EventServerUpdate,
	domain.EventWindowOpen,
	domain.EventWindowClose,
	domain.EventStateChanged,
	domain.EventHistoryError,
}

func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.serveHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("/", serveNotFound)
}

// dispatch answers one request. health is served by the gateway; every
// other method goes to the bridge.
func (s *Server) dispatch(ctx context.Context, p *peer, f Frame) {
	var (
		result any
		err    error
	)
	if f.Method == domain.MethodHealth {
		result = s.health()
	} else {
		result, err = s.forward(ctx, f)
	}

	if err != nil {
		shape := errorShape(err)
		s.log.Debug().Err(err).Str("method", f.Method).Str("code", shape.Code).Msg("request failed")
		err = p.fail(f.ID, shape)
	} else {
		err = p.reply(f.ID, result)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("connId", p.id).Str("method", f.Method).Msg("failed to answer request")
	}
}

var errNoHandler = errors.New("bridge not ready")

func (s *Server) forward(ctx context.Context, f Frame) (any, error) {
	ui := s.handler()
	if ui == nil {
		return nil, errNoHandler
	}
	return ui.HandleUI(ctx, f.Method, f.Params)
}

// errorShape classifies bridge errors for the UI.
func errorShape(err error) ErrorShape {
	shape := ErrorShape{Code: CodeBridge, Message: err.Error()}
	var connErr *domain.ConnectionError
	switch {
	case errors.Is(err, errNoHandler):
		shape.Code = CodeUnavailable
		shape.Retryable = true
	case errors.Is(err, bridge.ErrUnknownMethod), errors.Is(err, routes.ErrNoRoute):
		shape.Code = CodeMethodNotFound
	case errors.Is(err, domain.ErrNotConnected):
		shape.Code = CodeNotConnected
		shape.Retryable = true
	case errors.As(err, &connErr):
		shape.Retryable = true
	case errors.Is(err, domain.ErrCredentialMissing), errors.Is(err, domain.ErrMalformedCommand):
		shape.Code = CodeInvalidParams
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		shape.Code = CodeUnavailable
		shape.Retryable = true
	}
	return shape
}
