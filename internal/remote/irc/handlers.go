package irc

import (
	"strings"
	"time"

	"github.com/lrstanley/girc"

	"github.com/soyeahso/cordbridge/internal/remote"
)

// Synthetic role IDs derived from channel modes.
const (
	roleOp    = "irc:op"
	roleVoice = "irc:voice"
)

func (c *Client) register(conn *girc.Client) {
	conn.Handlers.Add(girc.CONNECTED, c.onConnected)
	conn.Handlers.Add(girc.JOIN, c.onJoin)
	conn.Handlers.Add(girc.PART, c.onPart)
	conn.Handlers.Add(girc.KICK, c.onKick)
	conn.Handlers.Add(girc.TOPIC, c.onTopic)
	conn.Handlers.Add(girc.RPL_TOPIC, c.onTopic)
	conn.Handlers.Add(girc.PRIVMSG, c.onPrivmsg)
	conn.Handlers.Add(cmdBATCH, c.onBatch)
}

func isSelf(cl *girc.Client, nick string) bool {
	return cl != nil && strings.EqualFold(cl.GetNick(), nick)
}

func (c *Client) onConnected(cl *girc.Client, _ girc.Event) {
	nick := cl.GetNick()
	c.log.Info().Str("nick", nick).Msg("connected to IRC")
	c.batches.reset()

	c.exec.Post(func() {
		self := &remote.User{ID: strings.ToLower(nick), Username: nick}
		c.mu.Lock()
		c.self = self
		c.guild = c.newGuild()
		c.backlog = make(map[string]*ring)
		g := c.guild
		c.mu.Unlock()

		c.handle(remote.Ready{Self: self, Guilds: []*remote.Guild{g}})
		c.handle(remote.ServerCreated{Guild: g})
	})

	for _, name := range c.opts.Channels {
		cl.Cmd.Join(name)
	}
}

func (c *Client) onJoin(cl *girc.Client, e girc.Event) {
	if e.Source == nil || len(e.Params) == 0 || !isSelf(cl, e.Source.Name) {
		return
	}
	name := e.Params[0]
	c.log.Info().Str("channel", name).Msg("joined channel")
	c.exec.Post(func() { c.joined(name) })
}

func (c *Client) joined(name string) {
	id := channelID(name)
	c.mu.Lock()
	if _, ok := c.guild.Channels[id]; ok {
		c.mu.Unlock()
		return
	}
	ch := &remote.Channel{ID: id, Name: name, Type: remote.ChannelText, Position: len(c.guild.Channels)}
	c.guild.AddChannel(ch)
	c.backlog[id] = newRing(c.opts.Backlog)
	c.mu.Unlock()

	c.handle(remote.ChannelCreated{Channel: ch})
}

func (c *Client) onPart(cl *girc.Client, e girc.Event) {
	if e.Source == nil || len(e.Params) == 0 || !isSelf(cl, e.Source.Name) {
		return
	}
	name := e.Params[0]
	c.exec.Post(func() { c.left(name) })
}

func (c *Client) onKick(cl *girc.Client, e girc.Event) {
	if len(e.Params) < 2 || !isSelf(cl, e.Params[1]) {
		return
	}
	name := e.Params[0]
	c.log.Warn().Str("channel", name).Str("reason", e.Last()).Msg("kicked from channel")
	c.exec.Post(func() { c.left(name) })
}

func (c *Client) left(name string) {
	id := channelID(name)
	c.mu.Lock()
	ch, ok := c.guild.Channels[id]
	if ok {
		delete(c.guild.Channels, id)
		delete(c.backlog, id)
	}
	c.mu.Unlock()

	if ok {
		c.handle(remote.ChannelDeleted{Channel: ch})
	}
}

// onTopic handles both TOPIC changes and the RPL_TOPIC reply on join.
func (c *Client) onTopic(_ *girc.Client, e girc.Event) {
	var name string
	switch {
	case e.Command == girc.RPL_TOPIC && len(e.Params) >= 3:
		name = e.Params[1]
	case e.Command == girc.TOPIC && len(e.Params) >= 2:
		name = e.Params[0]
	default:
		return
	}
	topic := e.Last()

	c.exec.Post(func() {
		c.mu.Lock()
		ch, ok := c.guild.Channels[channelID(name)]
		if ok {
			ch.Topic = topic
		}
		g := c.guild
		c.mu.Unlock()
		if ok {
			c.handle(remote.ServerUpdated{Guild: g})
		}
	})
}

func (c *Client) onPrivmsg(_ *girc.Client, e girc.Event) {
	if e.Source == nil || len(e.Params) == 0 {
		return
	}
	if id, ok := batchRef(e); ok && c.batches.add(id, e.Last(), hasConcat(e)) {
		return
	}
	if !e.IsFromChannel() {
		return
	}

	body := e.Last()
	if e.IsAction() {
		body = e.StripAction()
	}
	nick, target, ts := e.Source.Name, e.Params[0], e.Timestamp
	c.exec.Post(func() { c.deliver(nick, target, body, ts) })
}

func (c *Client) onBatch(_ *girc.Client, e girc.Event) {
	if len(e.Params) == 0 || len(e.Params[0]) < 2 {
		return
	}
	ref := e.Params[0]
	switch ref[0] {
	case '+':
		if len(e.Params) < 3 {
			return
		}
		c.batches.open(ref[1:], e.Params[1], e.Params[2], e.Source)
	case '-':
		target, source, body, ok := c.batches.close(ref[1:])
		if !ok || source == nil || !girc.IsValidChannel(target) {
			return
		}
		ts := e.Timestamp
		c.exec.Post(func() { c.deliver(source.Name, target, body, ts) })
	}
}

// deliver records a channel message in the backlog and emits it. It runs
// on the executor.
func (c *Client) deliver(nick, target, body string, ts time.Time) {
	author := &remote.User{ID: strings.ToLower(nick), Username: nick}
	roles := c.rolesFor(nick, target)

	c.mu.Lock()
	ch, ok := c.guild.Channels[channelID(target)]
	if !ok {
		c.mu.Unlock()
		return
	}
	msg := &remote.Message{
		ID:        newMessageID(),
		Channel:   ch,
		Author:    author,
		Member:    &remote.Member{User: author, Roles: roles},
		Content:   body,
		Timestamp: ts.UnixMilli(),
		Client:    c,
	}
	if r, ok := c.backlog[ch.ID]; ok {
		r.add(msg)
	}
	c.mu.Unlock()

	c.handle(remote.MessageReceived{Message: msg})
}

// rolesFor maps channel modes to synthetic roles, op first.
func (c *Client) rolesFor(nick, channel string) []string {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return nil
	}
	user := conn.LookupUser(nick)
	if user == nil {
		return nil
	}
	perms, ok := user.Perms.Lookup(channel)
	if !ok {
		return nil
	}
	var roles []string
	if perms.IsAdmin() {
		roles = append(roles, roleOp)
	}
	if perms.Voice {
		roles = append(roles, roleVoice)
	}
	return roles
}
