// Package bridge wires the connection lifecycle, the broadcaster and the
// command router to each other and to the UI.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soyeahso/cordbridge/internal/broadcast"
	"github.com/soyeahso/cordbridge/internal/domain"
	"github.com/soyeahso/cordbridge/internal/eventloop"
	"github.com/soyeahso/cordbridge/internal/hooks"
	"github.com/soyeahso/cordbridge/internal/lifecycle"
	"github.com/soyeahso/cordbridge/internal/logging"
	"github.com/soyeahso/cordbridge/internal/normalize"
	"github.com/soyeahso/cordbridge/internal/remote"
	"github.com/soyeahso/cordbridge/internal/routes"
)

// ErrUnknownMethod is returned by HandleUI for a method that is neither
// a bridge method nor a routed channel.
var ErrUnknownMethod = errors.New("unknown method")

// Executor is the loop the bridge runs on.
type Executor interface {
	eventloop.Executor
	Call(ctx context.Context, fn func()) error
}

// Windows tracks the UI windows the bridge has asked for.
type Windows interface {
	Open(kind string)
	Close(kind string)
	IsOpen(kind string) bool
}

// Config holds everything the bridge is built from.
type Config struct {
	Exec    Executor
	Store   lifecycle.CredentialStore
	Dialer  remote.Dialer
	Pusher  broadcast.Pusher
	Windows Windows
	Hooks   *hooks.Manager
	Logger  *logging.Logger

	Lifecycle    lifecycle.Options
	Format       normalize.Options
	HistoryLimit int
}

// Bridge is the explicit context object shared by every component.
type Bridge struct {
	ctx context.Context
	cfg Config
	log *logging.Logger

	lifecycle   *lifecycle.Manager
	router      *routes.Router
	broadcaster *broadcast.Broadcaster

	generation uint64
}

// StateView is the reply to a state request.
type StateView struct {
	State   string          `json:"state"`
	Retries int             `json:"retries"`
	Error   string          `json:"error,omitempty"`
	Servers []domain.Server `json:"servers"`
	Active  *domain.Channel `json:"active,omitempty"`
}

// StateChange is the payload of a state-changed event.
type StateChange struct {
	From    string `json:"from"`
	State   string `json:"state"`
	Attempt int    `json:"attempt"`
	Error   string `json:"error,omitempty"`
}

// New builds the bridge and its components. Nothing happens until Start.
func New(ctx context.Context, cfg Config) *Bridge {
	b := &Bridge{
		ctx: ctx,
		cfg: cfg,
		log: cfg.Logger.Sub("bridge"),
	}

	b.lifecycle = lifecycle.New(ctx, lifecycle.Config{
		Exec:    cfg.Exec,
		Store:   cfg.Store,
		Dialer:  cfg.Dialer,
		Hooks:   cfg.Hooks,
		Options: cfg.Lifecycle,
		Logger:  cfg.Logger,
	})
	b.router = routes.NewRouter(b.conn, cfg.Logger)
	b.broadcaster = broadcast.New(ctx, broadcast.Config{
		Exec:         cfg.Exec,
		Pusher:       cfg.Pusher,
		Router:       b.router,
		Hooks:        cfg.Hooks,
		Conn:         b.lifecycle.Client,
		WindowOpen:   func() bool { return cfg.Windows.IsOpen(domain.WindowMain) },
		Format:       cfg.Format,
		HistoryLimit: cfg.HistoryLimit,
		Logger:       cfg.Logger,
	})

	b.lifecycle.OnTransition(b.onTransition)
	b.lifecycle.OnEvent(b.onEvent)
	return b
}

func (b *Bridge) conn() routes.Conn {
	if c := b.lifecycle.Client(); c != nil {
		return c
	}
	return nil
}

// Lifecycle exposes the lifecycle manager.
func (b *Bridge) Lifecycle() *lifecycle.Manager { return b.lifecycle }

// Router exposes the command router.
func (b *Bridge) Router() *routes.Router { return b.router }

// Start kicks off the lifecycle on the loop.
func (b *Bridge) Start() {
	b.cfg.Hooks.EmitAsync(b.ctx, hooks.EventBridgeStart, nil)
	b.cfg.Exec.Post(b.lifecycle.Start)
}

// Stop drops the session and waits for the loop to process it.
func (b *Bridge) Stop(ctx context.Context) error {
	err := b.cfg.Exec.Call(ctx, b.lifecycle.Shutdown)
	b.cfg.Hooks.Emit(ctx, hooks.EventBridgeStop, nil)
	return err
}

func (b *Bridge) onEvent(ev remote.Event) {
	switch e := ev.(type) {
	case remote.Ready:
		self := ""
		if e.Self != nil {
			self = e.Self.Username
		}
		b.log.Info().Str("self", self).Int("guilds", len(e.Guilds)).Msg("session ready")
	case remote.ServerCreated:
		b.broadcaster.ServerCreated(e.Guild)
	case remote.ServerUpdated:
		b.broadcaster.ServerUpdated(e.Guild)
	case remote.ServerDeleted:
		b.broadcaster.ServerDeleted(e.GuildID)
	case remote.ChannelCreated:
		b.broadcaster.ChannelCreated(e.Channel)
	case remote.ChannelDeleted:
		b.broadcaster.ChannelDeleted(e.Channel)
	case remote.MessageReceived:
		b.broadcaster.MessageReceived(e.Message)
	case remote.Disconnected, remote.LoginError:
		// handled by the lifecycle manager
	}
}

func (b *Bridge) onTransition(t lifecycle.Transition) {
	if t.To == lifecycle.CredentialMissing || t.To == lifecycle.Idle ||
		(t.Generation != 0 && b.generation != 0 && t.Generation != b.generation) {
		b.broadcaster.Reset()
	}
	if t.Generation != 0 {
		b.generation = t.Generation
	}

	change := StateChange{From: t.From.String(), State: t.To.String(), Attempt: t.Attempt}
	if t.Err != nil {
		change.Error = t.Err.Error()
	}
	b.cfg.Pusher.Push(domain.EventStateChanged, change)

	switch t.To {
	case lifecycle.CredentialMissing:
		b.cfg.Windows.Close(domain.WindowMain)
		b.cfg.Windows.Open(domain.WindowCredential)
	case lifecycle.Connected:
		b.cfg.Windows.Close(domain.WindowCredential)
		if !b.cfg.Windows.IsOpen(domain.WindowMain) {
			b.cfg.Windows.Open(domain.WindowMain)
		}
	}
}

// HandleUI serves one request from the UI. Bridge methods run on the
// loop; anything else is treated as a channel ID and dispatched through
// its route.
func (b *Bridge) HandleUI(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case domain.MethodActivateChannel:
		var ch domain.Channel
		if err := json.Unmarshal(params, &ch); err != nil || ch.ID == "" {
			return nil, errors.New("activateChannel: invalid channel")
		}
		if err := b.cfg.Exec.Call(ctx, func() { b.broadcaster.Activate(ch) }); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	case domain.MethodToken:
		credential, err := decodeCredential(params)
		if err != nil {
			return nil, err
		}
		var submitErr error
		if err := b.cfg.Exec.Call(ctx, func() { submitErr = b.lifecycle.SubmitCredential(credential) }); err != nil {
			return nil, err
		}
		if submitErr != nil {
			return nil, submitErr
		}
		return map[string]any{"ok": true}, nil

	case domain.MethodState:
		return b.State(ctx)
	}

	if !b.router.Has(method) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	if err := b.router.Dispatch(ctx, method, params); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

// State snapshots the lifecycle and broadcast state.
func (b *Bridge) State(ctx context.Context) (StateView, error) {
	var view StateView
	err := b.cfg.Exec.Call(ctx, func() {
		view.State = b.lifecycle.State().String()
		view.Retries = b.lifecycle.Retries()
		if err := b.lifecycle.LastError(); err != nil {
			view.Error = err.Error()
		}
		view.Servers = b.broadcaster.Servers()
		if ch, ok := b.broadcaster.Active(); ok {
			view.Active = &ch
		}
	})
	return view, err
}

func decodeCredential(params json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(params, &s); err == nil {
		return s, nil
	}
	var obj struct {
		Credential string `json:"credential"`
	}
	if err := json.Unmarshal(params, &obj); err != nil {
		return "", fmt.Errorf("token: expected a string or {credential}: %w", err)
	}
	return obj.Credential, nil
}
