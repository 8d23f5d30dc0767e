package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/soyeahso/cordbridge/internal/remote"
)

func channelType(t discordgo.ChannelType) remote.ChannelType {
	switch t {
	case discordgo.ChannelTypeGuildText:
		return remote.ChannelText
	case discordgo.ChannelTypeGuildNews:
		return remote.ChannelNews
	case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
		return remote.ChannelVoice
	case discordgo.ChannelTypeGuildCategory:
		return remote.ChannelCategory
	default:
		return remote.ChannelOther
	}
}

func convertUser(u *discordgo.User) *remote.User {
	if u == nil {
		return nil
	}
	return &remote.User{
		ID:            u.ID,
		Username:      u.Username,
		Discriminator: u.Discriminator,
		Avatar:        u.Avatar,
		Bot:           u.Bot,
	}
}

func convertRole(r *discordgo.Role) *remote.Role {
	return &remote.Role{
		ID:          r.ID,
		Name:        r.Name,
		Color:       r.Color,
		Position:    r.Position,
		Permissions: remote.Permission(r.Permissions),
	}
}

func convertMember(m *discordgo.Member) *remote.Member {
	if m == nil {
		return nil
	}
	return &remote.Member{
		User:  convertUser(m.User),
		Nick:  m.Nick,
		Roles: append([]string(nil), m.Roles...),
	}
}

func convertChannel(c *discordgo.Channel) *remote.Channel {
	ch := &remote.Channel{
		ID:       c.ID,
		Name:     c.Name,
		Topic:    c.Topic,
		Type:     channelType(c.Type),
		Position: c.Position,
	}
	for _, ow := range c.PermissionOverwrites {
		t := remote.OverwriteRole
		if ow.Type == discordgo.PermissionOverwriteTypeMember {
			t = remote.OverwriteMember
		}
		ch.Overwrites = append(ch.Overwrites, remote.Overwrite{
			ID:    ow.ID,
			Type:  t,
			Allow: remote.Permission(ow.Allow),
			Deny:  remote.Permission(ow.Deny),
		})
	}
	return ch
}

func convertGuild(g *discordgo.Guild) *remote.Guild {
	out := remote.NewGuild(g.ID, g.Name)
	out.Icon = g.Icon
	out.OwnerID = g.OwnerID
	for _, r := range g.Roles {
		out.Roles[r.ID] = convertRole(r)
	}
	for _, m := range g.Members {
		if m.User == nil {
			continue
		}
		out.Members[m.User.ID] = convertMember(m)
	}
	for _, c := range g.Channels {
		out.AddChannel(convertChannel(c))
	}
	return out
}
