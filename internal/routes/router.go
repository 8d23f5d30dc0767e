// Package routes binds channel identifiers to command handlers that
// forward UI commands to the connection.
package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/soyeahso/cordbridge/internal/domain"
	"github.com/soyeahso/cordbridge/internal/logging"
)

// ErrNoRoute is returned by Dispatch for a channel without a route.
var ErrNoRoute = errors.New("no route for channel")

// Conn is the part of a connection the router drives.
type Conn interface {
	SendMessage(ctx context.Context, channelID, text string) error
	StartTyping(ctx context.Context, channelID string) error
	StopTyping(ctx context.Context, channelID string) error
}

// ConnFunc returns the live connection, or nil when there is none.
type ConnFunc func() Conn

// Handler executes one command for a route.
type Handler func(ctx context.Context, cmd domain.Command) error

type route struct {
	serverID string
	handle   Handler
}

// Router manages one command route per channel.
type Router struct {
	mu     sync.RWMutex
	routes map[string]route
	conn   ConnFunc
	log    *logging.Logger
}

// NewRouter creates a router that sends through conn.
func NewRouter(conn ConnFunc, log *logging.Logger) *Router {
	return &Router{
		routes: make(map[string]route),
		conn:   conn,
		log:    log.Sub("routes"),
	}
}

// Acquire registers a route for channelID. It returns false when the
// channel already has one.
func (r *Router) Acquire(serverID, channelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.routes[channelID]; ok {
		return false
	}
	r.routes[channelID] = route{serverID: serverID, handle: r.bind(channelID)}
	r.log.Debug().Str("server", serverID).Str("channel", channelID).Msg("route acquired")
	return true
}

// Release deregisters the route for channelID. It returns false when
// there was none.
func (r *Router) Release(channelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.routes[channelID]; !ok {
		return false
	}
	delete(r.routes, channelID)
	r.log.Debug().Str("channel", channelID).Msg("route released")
	return true
}

// ReleaseServer deregisters every route owned by serverID and returns
// how many were removed.
func (r *Router) ReleaseServer(serverID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, rt := range r.routes {
		if rt.serverID == serverID {
			delete(r.routes, id)
			n++
		}
	}
	if n > 0 {
		r.log.Debug().Str("server", serverID).Int("count", n).Msg("server routes released")
	}
	return n
}

// ReleaseAll deregisters every route.
func (r *Router) ReleaseAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.routes)
	r.routes = make(map[string]route)
	return n
}

// Has reports whether channelID has a route.
func (r *Router) Has(channelID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.routes[channelID]
	return ok
}

// Count returns the number of registered routes.
func (r *Router) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// List returns the routed channel IDs in sorted order.
func (r *Router) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.routes))
	for id := range r.routes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ServerChannels returns the routed channel IDs owned by serverID.
func (r *Router) ServerChannels(serverID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, rt := range r.routes {
		if rt.serverID == serverID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Dispatch decodes payload and runs it on the channel's route. Payloads
// that are not commands, or whose type is missing or unknown, are
// ignored and return nil.
func (r *Router) Dispatch(ctx context.Context, channelID string, payload json.RawMessage) error {
	r.mu.RLock()
	rt, ok := r.routes[channelID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoRoute, channelID)
	}

	cmd, err := domain.DecodeCommand(payload)
	if err != nil || !cmd.Recognized() {
		return nil
	}
	return rt.handle(ctx, cmd)
}

func (r *Router) bind(channelID string) Handler {
	return func(ctx context.Context, cmd domain.Command) error {
		conn := r.conn()
		if conn == nil {
			r.log.Warn().Str("channel", channelID).Str("type", cmd.Type).Msg("command dropped, not connected")
			return domain.ErrNotConnected
		}

		var err error
		switch cmd.Type {
		case domain.CommandMessage:
			err = conn.SendMessage(ctx, channelID, cmd.Message)
		case domain.CommandTyping:
			target := cmd.Channel
			if target == "" {
				target = channelID
			}
			if cmd.Action == domain.TypingStart {
				err = conn.StartTyping(ctx, target)
			} else {
				err = conn.StopTyping(ctx, target)
			}
		}
		if err != nil {
			r.log.Error().Err(err).Str("channel", channelID).Str("type", cmd.Type).Msg("command failed")
			return fmt.Errorf("%s on %s: %w", cmd.Type, channelID, err)
		}
		return nil
	}
}
