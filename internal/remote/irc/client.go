// Package irc adapts an IRC network, through github.com/lrstanley/girc,
// to the remote client contract. The network is presented as a single
// server whose channels are the ones the bridge has joined.
package irc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lrstanley/girc"

	"github.com/soyeahso/cordbridge/internal/logging"
	"github.com/soyeahso/cordbridge/internal/remote"
)

// AnonymousCredential logs in without a server or SASL password.
const AnonymousCredential = "anonymous"

const (
	capMessageTags = "message-tags"
	cmdTAGMSG      = "TAGMSG"
	tagTyping      = "+typing"
	maxLineBytes   = 400
)

var errNotConnected = errors.New("irc: not connected")

// Options configures the adapter.
type Options struct {
	Server   string
	Port     int
	Nick     string
	Channels []string
	TLS      bool
	SASL     bool
	Backlog  int
	Version  string
	Logger   *logging.Logger
}

func (o Options) port() int {
	if o.Port != 0 {
		return o.Port
	}
	if o.TLS {
		return 6697
	}
	return 6667
}

// Dialer creates IRC clients.
type Dialer struct {
	opts Options
}

// NewDialer returns a dialer for opts.
func NewDialer(opts Options) *Dialer {
	if opts.Backlog <= 0 {
		opts.Backlog = 100
	}
	return &Dialer{opts: opts}
}

// Dial implements remote.Dialer.
func (d *Dialer) Dial(exec remote.Executor, handle remote.Handler) remote.Client {
	return newClient(d.opts, exec, handle)
}

// Client is a remote.Client backed by a girc connection.
type Client struct {
	opts   Options
	exec   remote.Executor
	handle remote.Handler
	log    *logging.Logger

	mu      sync.RWMutex
	conn    *girc.Client
	guild   *remote.Guild
	self    *remote.User
	backlog map[string]*ring
	batches *batchTracker
}

func newClient(opts Options, exec remote.Executor, handle remote.Handler) *Client {
	c := &Client{
		opts:    opts,
		exec:    exec,
		handle:  handle,
		log:     opts.Logger.Sub("irc"),
		backlog: make(map[string]*ring),
		batches: newBatchTracker(),
	}
	c.guild = c.newGuild()
	return c
}

// GuildID is the server identifier the network is presented under.
func (c *Client) GuildID() string { return "irc:" + strings.ToLower(c.opts.Server) }

func (c *Client) newGuild() *remote.Guild {
	g := remote.NewGuild(c.GuildID(), c.opts.Server)
	g.Roles[g.ID] = &remote.Role{
		ID:          g.ID,
		Name:        "@everyone",
		Permissions: remote.PermissionViewChannel | remote.PermissionSendMessages | remote.PermissionReadMessageHistory,
	}
	g.Roles[roleOp] = &remote.Role{ID: roleOp, Name: "op", Color: 0xe74c3c, Position: 2}
	g.Roles[roleVoice] = &remote.Role{ID: roleVoice, Name: "voice", Color: 0x2ecc71, Position: 1}
	return g
}

func (c *Client) config(credential string) girc.Config {
	cfg := girc.Config{
		Server:  c.opts.Server,
		Port:    c.opts.port(),
		Nick:    c.opts.Nick,
		User:    c.opts.Nick,
		Name:    "cordbridge",
		SSL:     c.opts.TLS,
		Version: c.opts.Version,
		SupportedCaps: map[string][]string{
			capMessageTags: nil,
			capMultiline:   nil,
		},
	}
	if c.opts.TLS {
		cfg.TLSConfig = &tls.Config{ServerName: c.opts.Server}
	}

	credential = strings.TrimSpace(credential)
	switch {
	case credential == "" || credential == AnonymousCredential:
	case c.opts.SASL:
		cfg.SASL = &girc.SASLPlain{User: c.opts.Nick, Pass: credential}
	default:
		cfg.ServerPass = credential
	}
	return cfg
}

// Login connects and returns once registration completes.
func (c *Client) Login(ctx context.Context, credential string) error {
	_ = c.Close()

	conn := girc.New(c.config(credential))
	c.register(conn)

	ready := make(chan struct{})
	var once sync.Once
	conn.Handlers.Add(girc.CONNECTED, func(_ *girc.Client, _ girc.Event) {
		once.Do(func() { close(ready) })
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.log.Info().
		Str("server", c.opts.Server).
		Int("port", c.opts.port()).
		Str("nick", c.opts.Nick).
		Bool("tls", c.opts.TLS).
		Msg("connecting to IRC")

	done := make(chan error, 1)
	go func() {
		err := conn.Connect()
		select {
		case <-ready:
			c.connectionEnded(conn, err)
		default:
		}
		done <- err
	}()

	select {
	case <-ready:
		return nil
	case err := <-done:
		c.detach(conn)
		if err == nil {
			err = errors.New("connection closed during registration")
		}
		return fmt.Errorf("irc connect: %w", err)
	case <-ctx.Done():
		c.detach(conn)
		conn.Close()
		return ctx.Err()
	}
}

// connectionEnded reports a drop of the live connection. Connections
// closed through Close or replaced by a new Login are not reported.
func (c *Client) connectionEnded(conn *girc.Client, err error) {
	c.mu.RLock()
	live := c.conn == conn
	c.mu.RUnlock()
	if !live {
		return
	}
	c.detach(conn)
	c.log.Warn().Err(err).Msg("disconnected from IRC")
	c.exec.Post(func() { c.handle(remote.Disconnected{Err: err}) })
}

func (c *Client) detach(conn *girc.Client) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
}

func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	if conn.IsConnected() {
		conn.Quit("cordbridge shutting down")
	}
	conn.Close()
	return nil
}

func (c *Client) current() (*girc.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil || !c.conn.IsConnected() {
		return nil, errNotConnected
	}
	return c.conn, nil
}

func (c *Client) Self() *remote.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self
}

// SendMessage sends text to a joined channel, one PRIVMSG per line of at
// most maxLineBytes bytes, and echoes it back as a received message.
func (c *Client) SendMessage(_ context.Context, channelID, text string) error {
	conn, err := c.current()
	if err != nil {
		return err
	}
	target := c.channelName(channelID)
	lines := splitMessage(text, maxLineBytes)
	for _, line := range lines {
		conn.Cmd.Message(target, line)
	}
	c.log.Debug().Str("to", target).Int("lines", len(lines)).Msg("sent IRC message")

	nick := conn.GetNick()
	now := time.Now()
	c.exec.Post(func() { c.deliver(nick, target, text, now) })
	return nil
}

func (c *Client) StartTyping(_ context.Context, channelID string) error {
	return c.sendTyping(channelID, "active")
}

func (c *Client) StopTyping(_ context.Context, channelID string) error {
	return c.sendTyping(channelID, "done")
}

// sendTyping is a no-op on servers without message-tags.
func (c *Client) sendTyping(channelID, state string) error {
	conn, err := c.current()
	if err != nil {
		return err
	}
	if !conn.HasCapability(capMessageTags) {
		return nil
	}
	conn.Send(&girc.Event{
		Command: cmdTAGMSG,
		Params:  []string{c.channelName(channelID)},
		Tags:    girc.Tags{tagTyping: state},
	})
	return nil
}

// History returns messages seen since the channel was joined, newest first.
func (c *Client) History(_ context.Context, channelID string, limit int) ([]*remote.Message, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.backlog[channelID]
	if !ok {
		return nil, fmt.Errorf("irc: channel %s not joined", channelID)
	}
	return r.newest(limit), nil
}

// channelName maps a channel ID back to the name the server knows.
func (c *Client) channelName(channelID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ch, ok := c.guild.Channels[channelID]; ok {
		return ch.Name
	}
	return channelID
}

func channelID(name string) string { return strings.ToLower(name) }

func newMessageID() string { return uuid.New().String() }

// splitMessage breaks text into IRC-sized lines. Each newline starts a new
// line and lines longer than maxLen bytes are split on a rune boundary.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		for len(line) > maxLen {
			cut := maxLen
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxLen
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if line != "" {
			chunks = append(chunks, line)
		}
	}
	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}
