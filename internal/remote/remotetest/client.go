// Package remotetest provides an in-memory remote.Client for tests.
package remotetest

import (
	"context"
	"sync"

	"github.com/soyeahso/cordbridge/internal/remote"
)

// Call records one invocation of a Client method.
type Call struct {
	Method    string
	ChannelID string
	Text      string
}

// Client is a scriptable remote.Client. Its zero value is not usable;
// construct it with NewClient or through a Dialer.
type Client struct {
	mu sync.Mutex

	exec   remote.Executor
	handle remote.Handler

	self    *remote.User
	calls   []Call
	logins  []string
	closed  int
	history map[string][]*remote.Message

	// LoginErrs is consumed one entry per Login call. A nil entry or an
	// exhausted queue means success.
	LoginErrs   []error
	SendErr     error
	TypingErr   error
	HistoryErr  error
	HistoryHook func(channelID string)
}

// NewClient returns a client that delivers events through exec to handle.
func NewClient(exec remote.Executor, handle remote.Handler) *Client {
	return &Client{
		exec:    exec,
		handle:  handle,
		self:    &remote.User{ID: "self", Username: "bridge"},
		history: make(map[string][]*remote.Message),
	}
}

// SetSelf replaces the identity reported by Self.
func (c *Client) SetSelf(u *remote.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.self = u
}

// SetHistory stores the messages History returns for channelID, newest first.
func (c *Client) SetHistory(channelID string, msgs []*remote.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history[channelID] = msgs
}

// Emit delivers ev the way a real adapter does: posted to the executor.
func (c *Client) Emit(ev remote.Event) {
	c.exec.Post(func() { c.handle(ev) })
}

func (c *Client) Login(_ context.Context, credential string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logins = append(c.logins, credential)
	if len(c.LoginErrs) == 0 {
		return nil
	}
	err := c.LoginErrs[0]
	c.LoginErrs = c.LoginErrs[1:]
	return err
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *Client) Self() *remote.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self
}

func (c *Client) SendMessage(_ context.Context, channelID, text string) error {
	return c.record(Call{Method: "send", ChannelID: channelID, Text: text}, c.SendErr)
}

func (c *Client) StartTyping(_ context.Context, channelID string) error {
	return c.record(Call{Method: "typing_start", ChannelID: channelID}, c.TypingErr)
}

func (c *Client) StopTyping(_ context.Context, channelID string) error {
	return c.record(Call{Method: "typing_stop", ChannelID: channelID}, c.TypingErr)
}

func (c *Client) History(_ context.Context, channelID string, limit int) ([]*remote.Message, error) {
	c.mu.Lock()
	hook := c.HistoryHook
	err := c.HistoryErr
	msgs := c.history[channelID]
	c.calls = append(c.calls, Call{Method: "history", ChannelID: channelID})
	c.mu.Unlock()

	if hook != nil {
		hook(channelID)
	}
	if err != nil {
		return nil, err
	}
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return append([]*remote.Message(nil), msgs...), nil
}

func (c *Client) record(call Call, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	return err
}

// Calls returns a copy of the recorded calls.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Logins returns the credentials passed to Login, in order.
func (c *Client) Logins() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.logins...)
}

// Closed returns how many times Close was called.
func (c *Client) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Dialer hands out a fresh Client per Dial and remembers each one.
type Dialer struct {
	mu      sync.Mutex
	clients []*Client

	// Prepare, when set, configures each client before it is returned.
	Prepare func(*Client)
}

func (d *Dialer) Dial(exec remote.Executor, handle remote.Handler) remote.Client {
	c := NewClient(exec, handle)
	if d.Prepare != nil {
		d.Prepare(c)
	}
	d.mu.Lock()
	d.clients = append(d.clients, c)
	d.mu.Unlock()
	return c
}

// Clients returns every client dialed so far.
func (d *Dialer) Clients() []*Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Client(nil), d.clients...)
}

// Last returns the most recently dialed client, or nil.
func (d *Dialer) Last() *Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.clients) == 0 {
		return nil
	}
	return d.clients[len(d.clients)-1]
}
