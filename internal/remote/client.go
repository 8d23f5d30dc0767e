package remote

import "context"

// Client is the contract every connection adapter satisfies. Blocking
// methods must not be called from the bridge loop.
type Client interface {
	// Login connects using credential. It returns once the session is
	// established or has failed. Calling Login on a client that is already
	// connected drops the old connection first.
	Login(ctx context.Context, credential string) error

	// Close tears the connection down. Events are no longer delivered.
	Close() error

	// Self returns the connected identity, or nil before Ready.
	Self() *User

	SendMessage(ctx context.Context, channelID, text string) error
	StartTyping(ctx context.Context, channelID string) error
	StopTyping(ctx context.Context, channelID string) error

	// History returns up to limit recent messages, newest first.
	History(ctx context.Context, channelID string, limit int) ([]*Message, error)
}

// Executor runs functions on the goroutine that owns bridge state.
type Executor interface {
	Post(fn func())
}

// Handler receives client events. Clients invoke it only from functions
// they have posted to their Executor.
type Handler func(Event)

// Dialer builds a client bound to an executor and a handler. Each
// session gets its own client.
type Dialer interface {
	Dial(exec Executor, handle Handler) Client
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(exec Executor, handle Handler) Client

func (f DialerFunc) Dial(exec Executor, handle Handler) Client { return f(exec, handle) }
