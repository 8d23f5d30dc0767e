// Package domain holds the snapshot types the bridge hands to the UI.
// Every value here is plain data: no pointers back into a connection
// library, no shared maps, safe to marshal and send across the process
// boundary.
package domain

// ChannelKind classifies a channel.
type ChannelKind string

const (
	ChannelKindText     ChannelKind = "text"
	ChannelKindNews     ChannelKind = "news"
	ChannelKindVoice    ChannelKind = "voice"
	ChannelKindCategory ChannelKind = "category"
	ChannelKindOther    ChannelKind = "other"
)

// TextCapable reports whether messages can be read and sent in channels of this kind.
func (k ChannelKind) TextCapable() bool {
	return k == ChannelKindText || k == ChannelKindNews
}

// DefaultRoleColor replaces pure black role colors, which are unreadable
// on the UI's dark background.
const DefaultRoleColor = "#dcddde"

// Server is a snapshot of a remote server and its visible text channels.
type Server struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Icon     string             `json:"icon,omitempty"`
	Channels map[string]Channel `json:"channels"`
}

// ChannelIDs returns the identifiers of the server's channels.
func (s Server) ChannelIDs() []string {
	ids := make([]string, 0, len(s.Channels))
	for id := range s.Channels {
		ids = append(ids, id)
	}
	return ids
}

// Channel is a snapshot of a single text-capable channel.
type Channel struct {
	ID       string      `json:"id"`
	ServerID string      `json:"serverId,omitempty"`
	Name     string      `json:"name"`
	Topic    string      `json:"topic,omitempty"`
	Kind     ChannelKind `json:"kind"`
	Position int         `json:"position"`
	Readable bool        `json:"readable"`
}

// Role is a display role attached to a message author.
type Role struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Author is the whitelisted projection of a message author.
type Author struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar,omitempty"`
	Roles         []Role `json:"roles"`
}

// Message is a snapshot of a chat message. The channel is carried as a
// bare identifier.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel"`
	Timestamp string `json:"timestamp"`
	Author    Author `json:"author"`
	Content   string `json:"content"`
}
