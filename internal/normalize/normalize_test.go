package normalize

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/cordbridge/internal/domain"
	"github.com/soyeahso/cordbridge/internal/remote"
	"github.com/soyeahso/cordbridge/internal/remote/remotetest"
)

var utc = Options{Location: time.UTC}

func fixture() (*remote.Guild, *remote.Channel, *remote.User) {
	general := remotetest.Text("c1", "general")
	g := remotetest.Guild("s1", "S1", general, remotetest.Voice("v1", "voice-1"))
	g.Roles["red"] = &remote.Role{ID: "red", Name: "Red", Color: 0xff0000}
	g.Roles["black"] = &remote.Role{ID: "black", Name: "Shadow", Color: 0}
	author := &remote.User{ID: "u1", Username: "ana", Discriminator: "0420", Avatar: "abc", Bot: true}
	g.Members["u1"] = &remote.Member{User: author, Nick: "A", Roles: []string{"black", "missing", "red"}}
	return g, general, author
}

func TestMessage(t *testing.T) {
	_, ch, author := fixture()
	raw := remotetest.Message("m1", ch, author, "hello", time.Date(2026, 3, 4, 17, 5, 0, 0, time.UTC).UnixMilli())
	raw.Client = remotetest.NewClient(nil, nil)

	msg := Message(raw, utc)

	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "c1", msg.ChannelID)
	assert.Equal(t, "03/04/2026 5:05 PM", msg.Timestamp)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, domain.Author{
		ID:            "u1",
		Username:      "ana",
		Discriminator: "0420",
		Avatar:        "abc",
		Roles: []domain.Role{
			{ID: "black", Name: "Shadow", Color: domain.DefaultRoleColor},
			{ID: "red", Name: "Red", Color: "#ff0000"},
		},
	}, msg.Author)
}

func TestMessage_IsAcyclicJSON(t *testing.T) {
	_, ch, author := fixture()
	raw := remotetest.Message("m1", ch, author, "hi", 0)
	raw.Client = remotetest.NewClient(nil, nil)

	data, err := json.Marshal(Message(raw, utc))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "c1", decoded["channel"])
	assert.NotContains(t, decoded, "client")

	author2 := decoded["author"].(map[string]any)
	for key := range author2 {
		assert.Contains(t, []string{"id", "username", "discriminator", "avatar", "roles"}, key)
	}
}

func TestMessage_DoesNotAliasInput(t *testing.T) {
	g, ch, author := fixture()
	raw := remotetest.Message("m1", ch, author, "hi", 0)

	msg := Message(raw, utc)
	g.Roles["red"].Name = "Renamed"
	author.Username = "changed"
	g.Members["u1"].Roles[0] = "red"

	assert.Equal(t, "Red", msg.Author.Roles[1].Name)
	assert.Equal(t, "ana", msg.Author.Username)
	assert.Equal(t, "black", msg.Author.Roles[0].ID)
}

func TestMessage_MissingPieces(t *testing.T) {
	msg := Message(&remote.Message{ID: "m1", Content: "orphan"}, utc)
	assert.Empty(t, msg.ChannelID)
	assert.Empty(t, msg.Author.ID)
	assert.NotNil(t, msg.Author.Roles)
	assert.Empty(t, msg.Author.Roles)
}

func TestColor(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0x000000, domain.DefaultRoleColor},
		{0x000001, "#000001"},
		{0xff0000, "#ff0000"},
		{0x1abc9c, "#1abc9c"},
		{0xdcddde, "#dcddde"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%06x", tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, Color(tt.in))
		})
	}
}

func TestMessages_OldestFirst(t *testing.T) {
	_, ch, author := fixture()
	raw := []*remote.Message{
		remotetest.Message("m3", ch, author, "third", 3000),
		remotetest.Message("m2", ch, author, "second", 2000),
		remotetest.Message("m1", ch, author, "first", 1000),
	}

	msgs := Messages(raw, utc)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
	assert.Equal(t, "m3", msgs[2].ID)
	assert.Equal(t, "m3", raw[0].ID, "input order untouched")

	assert.Empty(t, Messages(nil, utc))
}

func TestServer_OnlyTextChannels(t *testing.T) {
	g, _, _ := fixture()

	srv := Server(g, "self")

	assert.Equal(t, "s1", srv.ID)
	assert.Equal(t, "S1", srv.Name)
	require.Len(t, srv.Channels, 1)
	assert.Contains(t, srv.Channels, "c1")
	assert.Equal(t, domain.ChannelKindText, srv.Channels["c1"].Kind)
	assert.Equal(t, "s1", srv.Channels["c1"].ServerID)
}

func TestServer_SkipsUnreadableChannels(t *testing.T) {
	g, _, _ := fixture()
	secret := remotetest.Text("c2", "secret")
	secret.Overwrites = []remote.Overwrite{{ID: "s1", Type: remote.OverwriteRole, Deny: remote.PermissionViewChannel}}
	g.AddChannel(secret)
	g.AddChannel(&remote.Channel{ID: "n1", Name: "news", Type: remote.ChannelNews})

	srv := Server(g, "self")
	assert.ElementsMatch(t, []string{"c1", "n1"}, srv.ChannelIDs())
}

func TestServer_DoesNotAliasInput(t *testing.T) {
	g, ch, _ := fixture()

	srv := Server(g, "self")
	ch.Name = "renamed"
	delete(g.Channels, "c1")
	srv.Channels["c9"] = domain.Channel{ID: "c9"}

	assert.Equal(t, "general", srv.Channels["c1"].Name)
	assert.NotContains(t, g.Channels, "c9")
}

func TestChannel(t *testing.T) {
	g, ch, _ := fixture()

	got, ok := Channel(ch, "self")
	require.True(t, ok)
	assert.True(t, got.Readable)

	_, ok = Channel(g.Channels["v1"], "self")
	assert.False(t, ok)

	_, ok = Channel(&remote.Channel{ID: "cat", Type: remote.ChannelCategory}, "self")
	assert.False(t, ok)
}

func TestTimestamp_Layout(t *testing.T) {
	ms := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli()
	assert.Equal(t, "01/02/2026 3:04 AM", Timestamp(ms, utc))
	assert.Equal(t, "2026-01-02 03:04", Timestamp(ms, Options{Layout: "2006-01-02 15:04", Location: time.UTC}))
}
