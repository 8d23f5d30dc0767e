package remote

// Event is the stable union of everything a client reports. Adapters
// translate library callbacks into these values so the rest of the
// bridge never sees library event names.
type Event interface {
	eventName() string
}

// Ready is emitted once the session has identified. Guilds may be
// partial; full guilds follow as ServerCreated.
type Ready struct {
	Self   *User
	Guilds []*Guild
}

// ServerCreated is emitted when a guild becomes available.
type ServerCreated struct{ Guild *Guild }

// ServerUpdated is emitted when a guild's attributes or channel set change.
type ServerUpdated struct{ Guild *Guild }

// ServerDeleted is emitted when a guild is no longer available.
type ServerDeleted struct{ GuildID string }

// ChannelCreated is emitted for a new channel in a guild.
type ChannelCreated struct{ Channel *Channel }

// ChannelDeleted is emitted for a removed channel. Channel.Guild still
// points at the former owner.
type ChannelDeleted struct{ Channel *Channel }

// MessageReceived is emitted for every new message.
type MessageReceived struct{ Message *Message }

// Disconnected is emitted when the session drops.
type Disconnected struct{ Err error }

// LoginError is emitted when a login attempt the client started on its
// own fails.
type LoginError struct{ Err error }

func (Ready) eventName() string { return "ready" }
func (ServerCreated) eventName() string { return "server_created" }
func (ServerUpdated) eventName() string { return "server_updated" }
func (ServerDeleted) eventName() string { return "server_deleted" }
func (ChannelCreated) eventName() string { return "channel_created" }
func (ChannelDeleted) eventName() string { return "channel_deleted" }
func (MessageReceived) eventName() string { return "message_received" }
func (Disconnected) eventName() string { return "disconnected" }
func (LoginError) eventName() string { return "login_error" }

// EventName returns a stable name for logging.
func EventName(ev Event) string {
	if ev == nil {
		return ""
	}
	return ev.eventName()
}
