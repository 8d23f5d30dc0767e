// Package normalize turns live remote objects into domain snapshots.
// Every function here is pure: inputs are never modified and outputs
// share no pointers, maps or slices with them.
package normalize

import (
	"fmt"
	"time"

	"github.com/soyeahso/cordbridge/internal/domain"
	"github.com/soyeahso/cordbridge/internal/remote"
)

// DefaultLayout is the display format for message timestamps.
const DefaultLayout = "01/02/2006 3:04 PM"

// Options controls message formatting.
type Options struct {
	Layout   string
	Location *time.Location
}

func (o Options) layout() string {
	if o.Layout == "" {
		return DefaultLayout
	}
	return o.Layout
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

// Message projects a raw message onto a snapshot. The client handle is
// dropped and the channel reference is flattened to its ID.
func Message(raw *remote.Message, opts Options) domain.Message {
	msg := domain.Message{
		ID:        raw.ID,
		Timestamp: Timestamp(raw.Timestamp, opts),
		Content:   raw.Content,
		Author:    domain.Author{Roles: []domain.Role{}},
	}
	if raw.Channel != nil {
		msg.ChannelID = raw.Channel.ID
	}
	if raw.Author != nil {
		msg.Author.ID = raw.Author.ID
		msg.Author.Username = raw.Author.Username
		msg.Author.Discriminator = raw.Author.Discriminator
		msg.Author.Avatar = raw.Author.Avatar
	}

	var roles map[string]*remote.Role
	if raw.Channel != nil && raw.Channel.Guild != nil {
		roles = raw.Channel.Guild.Roles
	}
	for _, id := range raw.AuthorRoleIDs() {
		r, ok := roles[id]
		if !ok {
			continue
		}
		msg.Author.Roles = append(msg.Author.Roles, Role(r))
	}
	return msg
}

// Messages normalizes a history page, which arrives newest first, and
// returns it oldest first.
func Messages(raw []*remote.Message, opts Options) []domain.Message {
	out := make([]domain.Message, len(raw))
	for i, m := range raw {
		out[len(raw)-1-i] = Message(m, opts)
	}
	return out
}

// Timestamp formats epoch milliseconds for display.
func Timestamp(ms int64, opts Options) string {
	return time.UnixMilli(ms).In(opts.location()).Format(opts.layout())
}

// Role converts a guild role. Pure black becomes DefaultRoleColor.
func Role(raw *remote.Role) domain.Role {
	return domain.Role{
		ID:    raw.ID,
		Name:  raw.Name,
		Color: Color(raw.Color),
	}
}

// Color renders a 24-bit RGB value as #rrggbb, remapping black.
func Color(rgb int) string {
	if rgb&0xffffff == 0 {
		return domain.DefaultRoleColor
	}
	return fmt.Sprintf("#%06x", rgb&0xffffff)
}

// Kind maps a remote channel type to its snapshot kind.
func Kind(t remote.ChannelType) domain.ChannelKind {
	switch t {
	case remote.ChannelText:
		return domain.ChannelKindText
	case remote.ChannelNews:
		return domain.ChannelKindNews
	case remote.ChannelVoice:
		return domain.ChannelKindVoice
	case remote.ChannelCategory:
		return domain.ChannelKindCategory
	default:
		return domain.ChannelKindOther
	}
}

// Channel converts a channel. ok is false for kinds that cannot carry
// text; such channels never become snapshots. Readable is evaluated
// against selfID at the time of the call.
func Channel(raw *remote.Channel, selfID string) (domain.Channel, bool) {
	kind := Kind(raw.Type)
	if !kind.TextCapable() {
		return domain.Channel{}, false
	}
	return domain.Channel{
		ID:       raw.ID,
		ServerID: raw.GuildID(),
		Name:     raw.Name,
		Topic:    raw.Topic,
		Kind:     kind,
		Position: raw.Position,
		Readable: raw.PermissionsFor(selfID).Has(remote.PermissionViewChannel),
	}, true
}

// Server converts a guild, keeping only text channels selfID can view.
func Server(raw *remote.Guild, selfID string) domain.Server {
	srv := domain.Server{
		ID:       raw.ID,
		Name:     raw.Name,
		Icon:     raw.Icon,
		Channels: make(map[string]domain.Channel, len(raw.Channels)),
	}
	for id, rc := range raw.Channels {
		ch, ok := Channel(rc, selfID)
		if !ok || !ch.Readable {
			continue
		}
		srv.Channels[id] = ch
	}
	return srv
}
