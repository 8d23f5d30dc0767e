// Package discord adapts github.com/bwmarrin/discordgo to the remote
// client contract.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/soyeahso/cordbridge/internal/logging"
	"github.com/soyeahso/cordbridge/internal/remote"
)

// TypingRefresh is how often an active typing indicator is renewed.
// Discord expires one after roughly ten seconds and has no stop call.
const TypingRefresh = 8 * time.Second

const intents = discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent

var errNotConnected = errors.New("discord: not connected")

// Options configures the adapter.
type Options struct {
	// Bot prefixes credentials with "Bot " unless already present.
	Bot       bool
	UserAgent string
	Logger    *logging.Logger
}

// Dialer creates Discord clients.
type Dialer struct {
	opts Options
}

// NewDialer returns a dialer for opts.
func NewDialer(opts Options) *Dialer {
	return &Dialer{opts: opts}
}

// Dial implements remote.Dialer.
func (d *Dialer) Dial(exec remote.Executor, handle remote.Handler) remote.Client {
	return &Client{
		opts:   d.opts,
		exec:   exec,
		handle: handle,
		log:    d.opts.Logger.Sub("discord"),
		guilds: make(map[string]*remote.Guild),
		typing: make(map[string]context.CancelFunc),
	}
}

// Client is a remote.Client backed by a discordgo session. The guild
// cache is written only from functions posted to the executor; the lock
// lets blocking calls read it from other goroutines.
type Client struct {
	opts   Options
	exec   remote.Executor
	handle remote.Handler
	log    *logging.Logger

	mu       sync.RWMutex
	session  *discordgo.Session
	removers []func()
	guilds   map[string]*remote.Guild
	self     *remote.User
	typing   map[string]context.CancelFunc
}

// Token returns credential in the form discordgo expects.
func (o Options) Token(credential string) string {
	credential = strings.TrimSpace(credential)
	if o.Bot && !strings.HasPrefix(credential, "Bot ") {
		return "Bot " + credential
	}
	return credential
}

func (c *Client) Login(ctx context.Context, credential string) error {
	c.teardown()

	s, err := discordgo.New(c.opts.Token(credential))
	if err != nil {
		return fmt.Errorf("discord: creating session: %w", err)
	}
	s.SyncEvents = true
	s.ShouldReconnectOnError = false
	s.StateEnabled = false
	s.Identify.Intents = intents
	if c.opts.UserAgent != "" {
		s.UserAgent = c.opts.UserAgent
	}

	removers := []func(){
		s.AddHandler(c.onReady),
		s.AddHandler(c.onGuildCreate),
		s.AddHandler(c.onGuildUpdate),
		s.AddHandler(c.onGuildDelete),
		s.AddHandler(c.onChannelCreate),
		s.AddHandler(c.onChannelUpdate),
		s.AddHandler(c.onChannelDelete),
		s.AddHandler(c.onMessageCreate),
		s.AddHandler(c.onDisconnect),
	}

	opened := make(chan error, 1)
	go func() { opened <- s.Open() }()

	select {
	case err = <-opened:
	case <-ctx.Done():
		err = ctx.Err()
		go func() {
			<-opened
			_ = s.Close()
		}()
	}
	if err != nil {
		for _, rm := range removers {
			rm()
		}
		return fmt.Errorf("discord: opening gateway: %w", err)
	}

	c.mu.Lock()
	c.session = s
	c.removers = removers
	c.mu.Unlock()
	c.log.Info().Msg("gateway session opened")
	return nil
}

func (c *Client) Close() error {
	return c.teardown()
}

func (c *Client) teardown() error {
	c.mu.Lock()
	s := c.session
	removers := c.removers
	c.session = nil
	c.removers = nil
	for id, cancel := range c.typing {
		cancel()
		delete(c.typing, id)
	}
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	for _, rm := range removers {
		rm()
	}
	return s.Close()
}

func (c *Client) current() (*discordgo.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil, errNotConnected
	}
	return c.session, nil
}

func (c *Client) Self() *remote.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self
}

func (c *Client) SendMessage(ctx context.Context, channelID, text string) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	if _, err := s.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: sending message: %w", err)
	}
	return nil
}

// StartTyping shows the indicator now and keeps renewing it until
// StopTyping or Close.
func (c *Client) StartTyping(ctx context.Context, channelID string) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	if err := s.ChannelTyping(channelID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: typing: %w", err)
	}

	refreshCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if prev, ok := c.typing[channelID]; ok {
		prev()
	}
	c.typing[channelID] = cancel
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(TypingRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-refreshCtx.Done():
				return
			case <-ticker.C:
				if err := s.ChannelTyping(channelID, discordgo.WithContext(refreshCtx)); err != nil && refreshCtx.Err() == nil {
					c.log.Debug().Err(err).Str("channel", channelID).Msg("typing refresh failed")
				}
			}
		}
	}()
	return nil
}

// StopTyping stops renewing the indicator; Discord clears it on its own.
func (c *Client) StopTyping(_ context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.typing[channelID]; ok {
		cancel()
		delete(c.typing, channelID)
	}
	return nil
}

// Typing reports whether an indicator is being renewed for channelID.
func (c *Client) Typing(channelID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.typing[channelID]
	return ok
}

func (c *Client) History(ctx context.Context, channelID string, limit int) ([]*remote.Message, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	msgs, err := s.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord: fetching messages: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*remote.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, c.message(m))
	}
	return out, nil
}

// message converts m, linking it to the cached channel. Callers hold mu.
func (c *Client) message(m *discordgo.Message) *remote.Message {
	out := &remote.Message{
		ID:        m.ID,
		Author:    convertUser(m.Author),
		Content:   m.Content,
		Timestamp: m.Timestamp.UnixMilli(),
		Client:    c,
	}
	if m.Member != nil {
		out.Member = convertMember(m.Member)
	}
	out.Channel = c.lookupChannel(m.GuildID, m.ChannelID)
	return out
}

func (c *Client) lookupChannel(guildID, channelID string) *remote.Channel {
	if g, ok := c.guilds[guildID]; ok {
		if ch, ok := g.Channels[channelID]; ok {
			return ch
		}
	}
	for _, g := range c.guilds {
		if ch, ok := g.Channels[channelID]; ok {
			return ch
		}
	}
	return &remote.Channel{ID: channelID, Type: remote.ChannelText}
}
