package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/soyeahso/cordbridge/internal/remote"
)

// Library callbacks convert their payloads on the library goroutine and
// post the cache update and event to the executor.

func (c *Client) emit(fn func() remote.Event) {
	c.exec.Post(func() {
		if ev := fn(); ev != nil {
			c.handle(ev)
		}
	})
}

func (c *Client) onReady(_ *discordgo.Session, e *discordgo.Ready) {
	self := convertUser(e.User)
	guilds := make([]*remote.Guild, 0, len(e.Guilds))
	for _, g := range e.Guilds {
		guilds = append(guilds, convertGuild(g))
	}
	c.emit(func() remote.Event {
		c.mu.Lock()
		c.self = self
		c.mu.Unlock()
		c.log.Info().Str("user", self.Username).Int("guilds", len(guilds)).Msg("ready")
		return remote.Ready{Self: self, Guilds: guilds}
	})
}

func (c *Client) onGuildCreate(_ *discordgo.Session, e *discordgo.GuildCreate) {
	if e.Guild == nil || e.Unavailable {
		return
	}
	g := convertGuild(e.Guild)
	c.emit(func() remote.Event {
		c.mu.Lock()
		c.guilds[g.ID] = g
		c.mu.Unlock()
		return remote.ServerCreated{Guild: g}
	})
}

func (c *Client) onGuildUpdate(_ *discordgo.Session, e *discordgo.GuildUpdate) {
	if e.Guild == nil {
		return
	}
	update := convertGuild(e.Guild)
	c.emit(func() remote.Event {
		c.mu.Lock()
		defer c.mu.Unlock()
		g, ok := c.guilds[update.ID]
		if !ok {
			c.guilds[update.ID] = update
			return remote.ServerCreated{Guild: update}
		}
		g.Name = update.Name
		g.Icon = update.Icon
		g.OwnerID = update.OwnerID
		if len(update.Roles) > 0 {
			g.Roles = update.Roles
		}
		return remote.ServerUpdated{Guild: g}
	})
}

func (c *Client) onGuildDelete(_ *discordgo.Session, e *discordgo.GuildDelete) {
	if e.Guild == nil {
		return
	}
	id := e.ID
	c.emit(func() remote.Event {
		c.mu.Lock()
		delete(c.guilds, id)
		c.mu.Unlock()
		return remote.ServerDeleted{GuildID: id}
	})
}

func (c *Client) onChannelCreate(_ *discordgo.Session, e *discordgo.ChannelCreate) {
	if e.Channel == nil || e.GuildID == "" {
		return
	}
	guildID := e.GuildID
	ch := convertChannel(e.Channel)
	c.emit(func() remote.Event {
		c.mu.Lock()
		defer c.mu.Unlock()
		g, ok := c.guilds[guildID]
		if !ok {
			return nil
		}
		g.AddChannel(ch)
		return remote.ChannelCreated{Channel: ch}
	})
}

func (c *Client) onChannelUpdate(_ *discordgo.Session, e *discordgo.ChannelUpdate) {
	if e.Channel == nil || e.GuildID == "" {
		return
	}
	guildID := e.GuildID
	update := convertChannel(e.Channel)
	c.emit(func() remote.Event {
		c.mu.Lock()
		defer c.mu.Unlock()
		g, ok := c.guilds[guildID]
		if !ok {
			return nil
		}
		if ch, ok := g.Channels[update.ID]; ok {
			ch.Name = update.Name
			ch.Topic = update.Topic
			ch.Type = update.Type
			ch.Position = update.Position
			ch.Overwrites = update.Overwrites
		} else {
			g.AddChannel(update)
		}
		return remote.ServerUpdated{Guild: g}
	})
}

func (c *Client) onChannelDelete(_ *discordgo.Session, e *discordgo.ChannelDelete) {
	if e.Channel == nil || e.GuildID == "" {
		return
	}
	guildID, channelID := e.GuildID, e.ID
	fallback := convertChannel(e.Channel)
	c.emit(func() remote.Event {
		c.mu.Lock()
		defer c.mu.Unlock()
		g, ok := c.guilds[guildID]
		if !ok {
			return nil
		}
		ch, ok := g.Channels[channelID]
		if !ok {
			ch = fallback
			ch.Guild = g
		}
		delete(g.Channels, channelID)
		return remote.ChannelDeleted{Channel: ch}
	})
}

func (c *Client) onMessageCreate(_ *discordgo.Session, e *discordgo.MessageCreate) {
	if e.Message == nil {
		return
	}
	m := e.Message
	c.emit(func() remote.Event {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.rememberMember(m)
		return remote.MessageReceived{Message: c.message(m)}
	})
}

// rememberMember caches the author's membership from a gateway message.
// REST history carries no member, so role resolution for backfilled
// messages relies on this cache. Callers hold mu.
func (c *Client) rememberMember(m *discordgo.Message) {
	if m.Member == nil || m.Author == nil {
		return
	}
	g, ok := c.guilds[m.GuildID]
	if !ok {
		return
	}
	member := convertMember(m.Member)
	member.User = convertUser(m.Author)
	g.Members[m.Author.ID] = member
}

func (c *Client) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	c.log.Warn().Msg("gateway disconnected")
	c.emit(func() remote.Event { return remote.Disconnected{} })
}
