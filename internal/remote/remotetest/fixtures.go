package remotetest

import "github.com/soyeahso/cordbridge/internal/remote"

// Guild builds a guild whose @everyone role can view every channel.
func Guild(id, name string, channels ...*remote.Channel) *remote.Guild {
	g := remote.NewGuild(id, name)
	g.Roles[id] = &remote.Role{ID: id, Name: "@everyone", Permissions: remote.PermissionViewChannel | remote.PermissionSendMessages}
	for _, ch := range channels {
		g.AddChannel(ch)
	}
	return g
}

// Text returns a text channel.
func Text(id, name string) *remote.Channel {
	return &remote.Channel{ID: id, Name: name, Type: remote.ChannelText}
}

// Voice returns a voice channel.
func Voice(id, name string) *remote.Channel {
	return &remote.Channel{ID: id, Name: name, Type: remote.ChannelVoice}
}

// Message returns a message in ch from author.
func Message(id string, ch *remote.Channel, author *remote.User, content string, ts int64) *remote.Message {
	return &remote.Message{ID: id, Channel: ch, Author: author, Content: content, Timestamp: ts}
}
