// Package remote is the library-neutral model of a chat connection. The
// types here are live and mutable: adapters update them in place as the
// service reports changes, channels point back at their guild, and
// messages point back at their channel. Nothing in this package may be
// handed to the UI directly; see package normalize.
package remote

// ChannelType is the kind of a remote channel.
type ChannelType int

const (
	ChannelText ChannelType = iota
	ChannelNews
	ChannelVoice
	ChannelCategory
	ChannelOther
)

func (t ChannelType) String() string {
	switch t {
	case ChannelText:
		return "text"
	case ChannelNews:
		return "news"
	case ChannelVoice:
		return "voice"
	case ChannelCategory:
		return "category"
	default:
		return "other"
	}
}

// Guild is a remote server.
type Guild struct {
	ID       string
	Name     string
	Icon     string
	OwnerID  string
	Channels map[string]*Channel
	Roles    map[string]*Role
	Members  map[string]*Member
}

// NewGuild returns a guild with its maps allocated.
func NewGuild(id, name string) *Guild {
	return &Guild{
		ID:       id,
		Name:     name,
		Channels: make(map[string]*Channel),
		Roles:    make(map[string]*Role),
		Members:  make(map[string]*Member),
	}
}

// AddChannel links ch into the guild, setting its back-reference.
func (g *Guild) AddChannel(ch *Channel) {
	ch.Guild = g
	g.Channels[ch.ID] = ch
}

// Channel is a remote channel. Guild is nil for channels outside a server.
type Channel struct {
	ID         string
	Name       string
	Topic      string
	Type       ChannelType
	Position   int
	Guild      *Guild
	Overwrites []Overwrite
}

// GuildID returns the owning guild's ID, or "" when there is none.
func (c *Channel) GuildID() string {
	if c == nil || c.Guild == nil {
		return ""
	}
	return c.Guild.ID
}

// Role is a guild role. Color is a 24-bit RGB value; 0 means unset.
type Role struct {
	ID          string
	Name        string
	Color       int
	Position    int
	Permissions Permission
}

// User is a remote account.
type User struct {
	ID            string
	Username      string
	Discriminator string
	Avatar        string
	Bot           bool
}

// Member is a user's membership in a guild. Roles is ordered as the
// service reported it.
type Member struct {
	User  *User
	Nick  string
	Roles []string
}

// Message is a remote chat message. Timestamp is milliseconds since the
// Unix epoch.
type Message struct {
	ID        string
	Channel   *Channel
	Author    *User
	Member    *Member
	Content   string
	Timestamp int64
	Client    Client
}

// AuthorRoleIDs returns the role IDs of the message author within the
// channel's guild, in member order.
func (m *Message) AuthorRoleIDs() []string {
	if m.Member != nil {
		return m.Member.Roles
	}
	if m.Author == nil || m.Channel == nil || m.Channel.Guild == nil {
		return nil
	}
	if member, ok := m.Channel.Guild.Members[m.Author.ID]; ok {
		return member.Roles
	}
	return nil
}
