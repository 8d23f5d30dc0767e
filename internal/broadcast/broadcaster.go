// Package broadcast pushes server, channel and message changes to the UI
// and keeps command routes in step with the channels it has announced.
package broadcast

import (
	"context"
	"errors"
	"sort"

	"github.com/soyeahso/cordbridge/internal/domain"
	"github.com/soyeahso/cordbridge/internal/eventloop"
	"github.com/soyeahso/cordbridge/internal/hooks"
	"github.com/soyeahso/cordbridge/internal/logging"
	"github.com/soyeahso/cordbridge/internal/normalize"
	"github.com/soyeahso/cordbridge/internal/remote"
	"github.com/soyeahso/cordbridge/internal/routes"
)

// DefaultHistoryLimit is how many messages an activation backfills.
const DefaultHistoryLimit = 50

// Pusher delivers one event to the UI.
type Pusher interface {
	Push(event string, payload any)
}

// Config bundles a Broadcaster's collaborators.
type Config struct {
	Exec   eventloop.Executor
	Pusher Pusher
	Router *routes.Router
	Hooks  *hooks.Manager

	// Conn returns the live client, or nil when disconnected.
	Conn func() remote.Client

	// WindowOpen reports whether a UI window exists to receive messages.
	WindowOpen func() bool

	Format       normalize.Options
	HistoryLimit int
	Logger       *logging.Logger
}

// Broadcaster is confined to the executor goroutine; none of its methods
// may be called from anywhere else.
type Broadcaster struct {
	ctx   context.Context
	cfg   Config
	log   *logging.Logger
	limit int

	servers map[string]domain.Server
	active  *domain.Channel
}

// New creates a broadcaster with no known servers.
func New(ctx context.Context, cfg Config) *Broadcaster {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Broadcaster{
		ctx:     ctx,
		cfg:     cfg,
		log:     cfg.Logger.Sub("broadcast"),
		limit:   limit,
		servers: make(map[string]domain.Server),
	}
}

func (b *Broadcaster) selfID() string {
	c := b.cfg.Conn()
	if c == nil {
		return ""
	}
	if u := c.Self(); u != nil {
		return u.ID
	}
	return ""
}

// ServerCreated announces a guild. A guild that was already announced is
// replaced along with its routes.
func (b *Broadcaster) ServerCreated(g *remote.Guild) {
	snap := normalize.Server(g, b.selfID())
	_, replaced := b.servers[snap.ID]
	b.servers[snap.ID] = snap
	b.syncRoutes(snap)
	b.clearActiveUnless(snap)

	b.log.Info().Str("server", snap.ID).Str("name", snap.Name).Int("channels", len(snap.Channels)).Bool("replaced", replaced).Msg("server created")
	b.cfg.Pusher.Push(domain.EventServerCreate, snap)
	b.cfg.Hooks.EmitAsync(b.ctx, hooks.EventServerCreated, map[string]any{
		"server":   snap.ID,
		"name":     snap.Name,
		"channels": len(snap.Channels),
	})
}

// ServerUpdated re-derives a known guild's snapshot.
func (b *Broadcaster) ServerUpdated(g *remote.Guild) {
	if _, ok := b.servers[g.ID]; !ok {
		b.ServerCreated(g)
		return
	}
	snap := normalize.Server(g, b.selfID())
	b.servers[snap.ID] = snap
	b.syncRoutes(snap)
	b.clearActiveUnless(snap)
	b.cfg.Pusher.Push(domain.EventServerUpdate, snap.ID)
}

// ServerDeleted forgets a guild and releases all of its routes.
func (b *Broadcaster) ServerDeleted(serverID string) {
	delete(b.servers, serverID)
	released := b.cfg.Router.ReleaseServer(serverID)
	if b.active != nil && b.active.ServerID == serverID {
		b.active = nil
	}

	b.log.Info().Str("server", serverID).Int("routes", released).Msg("server deleted")
	b.cfg.Pusher.Push(domain.EventServerDelete, serverID)
	b.cfg.Hooks.EmitAsync(b.ctx, hooks.EventServerDeleted, map[string]any{"server": serverID})
}

// ChannelCreated adds a text channel to its server and acquires its route.
// Channels of unknown servers, non-text channels and channels the bridge
// cannot view are ignored.
func (b *Broadcaster) ChannelCreated(ch *remote.Channel) {
	srv, ok := b.servers[ch.GuildID()]
	if !ok {
		b.log.Debug().Str("channel", ch.ID).Msg("channel for unknown server ignored")
		return
	}
	snap, ok := normalize.Channel(ch, b.selfID())
	if !ok || !snap.Readable {
		return
	}

	channels := cloneChannels(srv.Channels)
	channels[snap.ID] = snap
	srv.Channels = channels
	b.servers[srv.ID] = srv
	b.cfg.Router.Acquire(srv.ID, snap.ID)

	b.cfg.Pusher.Push(domain.EventServerUpdate, srv.ID)
}

// ChannelDeleted removes a channel and releases its route.
func (b *Broadcaster) ChannelDeleted(ch *remote.Channel) {
	released := b.cfg.Router.Release(ch.ID)
	if b.active != nil && b.active.ID == ch.ID {
		b.active = nil
	}

	serverID := ch.GuildID()
	srv, ok := b.servers[serverID]
	if !ok {
		return
	}
	if _, present := srv.Channels[ch.ID]; present {
		channels := cloneChannels(srv.Channels)
		delete(channels, ch.ID)
		srv.Channels = channels
		b.servers[serverID] = srv
	} else if !released {
		return
	}
	b.cfg.Pusher.Push(domain.EventServerUpdate, serverID)
}

// MessageReceived delivers a live message when a window is open and the
// message belongs to the active channel, or no channel is active.
func (b *Broadcaster) MessageReceived(m *remote.Message) {
	if m.Channel == nil {
		return
	}
	channelID := m.Channel.ID

	b.cfg.Hooks.EmitAsync(b.ctx, hooks.EventMessageReceived, map[string]any{
		"channel": channelID,
		"message": m.ID,
	})

	if b.cfg.WindowOpen != nil && !b.cfg.WindowOpen() {
		return
	}
	if b.active != nil && b.active.ID != channelID {
		return
	}
	b.cfg.Pusher.Push(channelID, normalize.Message(m, b.cfg.Format))
}

// Activate focuses ch and backfills its history as one batch addressed
// to the channel. A failed fetch pushes a retryable history-error.
func (b *Broadcaster) Activate(ch domain.Channel) {
	active := ch
	b.active = &active

	client := b.cfg.Conn()
	if client == nil {
		b.historyFailed(ch.ID, domain.ErrNotConnected)
		return
	}

	var (
		raw []*remote.Message
		err error
	)
	b.cfg.Exec.Go(func() {
		raw, err = client.History(b.ctx, ch.ID, b.limit)
	}, func() {
		if err != nil {
			b.historyFailed(ch.ID, err)
			return
		}
		if len(raw) > b.limit {
			raw = raw[:b.limit]
		}
		b.cfg.Pusher.Push(ch.ID, normalize.Messages(raw, b.cfg.Format))
	})
}

func (b *Broadcaster) historyFailed(channelID string, err error) {
	fetchErr := &domain.HistoryFetchError{ChannelID: channelID, Err: err}
	b.log.Error().Err(fetchErr).Str("channel", channelID).Msg("history fetch failed")
	b.cfg.Pusher.Push(domain.EventHistoryError, domain.HistoryError{
		Channel:   channelID,
		Error:     err.Error(),
		Retryable: !errors.Is(err, context.Canceled),
	})
}

// Reset forgets every server, releases every route and clears the
// active channel. Each known server is announced as deleted.
func (b *Broadcaster) Reset() {
	ids := make([]string, 0, len(b.servers))
	for id := range b.servers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		b.cfg.Pusher.Push(domain.EventServerDelete, id)
	}
	released := b.cfg.Router.ReleaseAll()
	b.servers = make(map[string]domain.Server)
	b.active = nil

	if len(ids) > 0 || released > 0 {
		b.log.Info().Int("servers", len(ids)).Int("routes", released).Msg("broadcast state reset")
	}
}

// Servers returns the announced snapshots sorted by ID.
func (b *Broadcaster) Servers() []domain.Server {
	out := make([]domain.Server, 0, len(b.servers))
	for _, s := range b.servers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Active returns the active channel, if any.
func (b *Broadcaster) Active() (domain.Channel, bool) {
	if b.active == nil {
		return domain.Channel{}, false
	}
	return *b.active, true
}

// ChannelCount returns the number of channels across all announced servers.
func (b *Broadcaster) ChannelCount() int {
	n := 0
	for _, s := range b.servers {
		n += len(s.Channels)
	}
	return n
}

func (b *Broadcaster) syncRoutes(snap domain.Server) {
	for _, id := range b.cfg.Router.ServerChannels(snap.ID) {
		if _, keep := snap.Channels[id]; !keep {
			b.cfg.Router.Release(id)
		}
	}
	for id := range snap.Channels {
		b.cfg.Router.Acquire(snap.ID, id)
	}
}

func (b *Broadcaster) clearActiveUnless(snap domain.Server) {
	if b.active == nil || b.active.ServerID != snap.ID {
		return
	}
	if _, ok := snap.Channels[b.active.ID]; !ok {
		b.active = nil
	}
}

func cloneChannels(in map[string]domain.Channel) map[string]domain.Channel {
	out := make(map[string]domain.Channel, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
