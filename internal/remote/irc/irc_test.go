package irc

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/lrstanley/girc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/cordbridge/internal/eventloop"
	"github.com/soyeahso/cordbridge/internal/logging"
	"github.com/soyeahso/cordbridge/internal/remote"
)

func testOptions() Options {
	return Options{
		Server:   "irc.example.net",
		Nick:     "bridge",
		Channels: []string{"#Go"},
		Backlog:  3,
		Logger:   logging.New(nil, "silent"),
	}
}

func newTestClient(t *testing.T, opts Options) (*Client, *[]remote.Event) {
	t.Helper()
	var events []remote.Event
	c := NewDialer(opts).Dial(eventloop.NewInline(), func(ev remote.Event) {
		events = append(events, ev)
	}).(*Client)
	return c, &events
}

func privmsg(nick, target, text string) girc.Event {
	return girc.Event{
		Source:    &girc.Source{Name: nick},
		Command:   girc.PRIVMSG,
		Params:    []string{target, text},
		Timestamp: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestOptions_Port(t *testing.T) {
	assert.Equal(t, 6667, Options{}.port())
	assert.Equal(t, 6697, Options{TLS: true}.port())
	assert.Equal(t, 7000, Options{Port: 7000, TLS: true}.port())
}

func TestConfig_Credentials(t *testing.T) {
	c, _ := newTestClient(t, testOptions())

	cfg := c.config("secret")
	assert.Equal(t, "secret", cfg.ServerPass)
	assert.Nil(t, cfg.SASL)
	assert.Contains(t, cfg.SupportedCaps, capMessageTags)

	assert.Empty(t, c.config(AnonymousCredential).ServerPass)

	opts := testOptions()
	opts.SASL = true
	opts.TLS = true
	c, _ = newTestClient(t, opts)
	cfg = c.config("secret")
	assert.Empty(t, cfg.ServerPass)
	require.NotNil(t, cfg.SASL)
	require.NotNil(t, cfg.TLSConfig)
	assert.Equal(t, "irc.example.net", cfg.TLSConfig.ServerName)
}

func TestGuild_HasSyntheticRoles(t *testing.T) {
	c, _ := newTestClient(t, testOptions())
	g := c.guild
	assert.Equal(t, "irc:irc.example.net", g.ID)
	assert.Contains(t, g.Roles, roleOp)
	assert.Contains(t, g.Roles, roleVoice)
	assert.True(t, g.Roles[g.ID].Permissions.Has(remote.PermissionViewChannel))
}

func TestJoinAndPart(t *testing.T) {
	c, events := newTestClient(t, testOptions())

	c.joined("#Go")
	c.joined("#go")
	require.Len(t, *events, 1)
	created := (*events)[0].(remote.ChannelCreated)
	assert.Equal(t, "#go", created.Channel.ID)
	assert.Equal(t, "#Go", created.Channel.Name)
	assert.Equal(t, c.GuildID(), created.Channel.GuildID())
	assert.Equal(t, "#Go", c.channelName("#go"))

	c.left("#GO")
	require.Len(t, *events, 2)
	deleted := (*events)[1].(remote.ChannelDeleted)
	assert.Same(t, created.Channel, deleted.Channel)

	c.left("#go")
	assert.Len(t, *events, 2)
}

func TestPrivmsg_DeliversAndRecords(t *testing.T) {
	c, events := newTestClient(t, testOptions())
	c.joined("#go")

	c.onPrivmsg(nil, privmsg("Ana", "#go", "hello"))
	c.onPrivmsg(nil, privmsg("Ana", "bridge", "direct message"))
	c.onPrivmsg(nil, privmsg("Ana", "#elsewhere", "not joined"))

	require.Len(t, *events, 2)
	m := (*events)[1].(remote.MessageReceived).Message
	assert.Equal(t, "hello", m.Content)
	assert.Equal(t, "ana", m.Author.ID)
	assert.Equal(t, "Ana", m.Author.Username)
	assert.Equal(t, "#go", m.Channel.ID)
	assert.NotEmpty(t, m.ID)
	assert.Same(t, c, m.Client)

	hist, err := c.History(context.Background(), "#go", 50)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Same(t, m, hist[0])
}

func TestPrivmsg_Action(t *testing.T) {
	c, events := newTestClient(t, testOptions())
	c.joined("#go")
	c.onPrivmsg(nil, privmsg("ana", "#go", "\x01ACTION waves\x01"))

	m := (*events)[1].(remote.MessageReceived).Message
	assert.Equal(t, "waves", m.Content)
}

func TestDeliver_OwnMessageIsOneMessage(t *testing.T) {
	c, events := newTestClient(t, testOptions())
	c.joined("#go")

	text := strings.Repeat("a", maxLineBytes+50) + "\nsecond line"
	require.Len(t, splitMessage(text, maxLineBytes), 3, "goes out as three PRIVMSGs")
	c.deliver("bridge", "#go", text, time.Now())

	require.Len(t, *events, 2)
	m := (*events)[1].(remote.MessageReceived).Message
	assert.Equal(t, text, m.Content)
	assert.Equal(t, "bridge", m.Author.ID)

	hist, err := c.History(context.Background(), "#go", 50)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestHistory_Backlog(t *testing.T) {
	c, _ := newTestClient(t, testOptions())
	c.joined("#go")
	for i := 1; i <= 5; i++ {
		c.onPrivmsg(nil, privmsg("ana", "#go", fmt.Sprintf("m%d", i)))
	}

	hist, err := c.History(context.Background(), "#go", 50)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "m5", hist[0].Content)
	assert.Equal(t, "m3", hist[2].Content)

	hist, err = c.History(context.Background(), "#go", 2)
	require.NoError(t, err)
	assert.Len(t, hist, 2)

	_, err = c.History(context.Background(), "#nope", 10)
	assert.Error(t, err)
}

func TestBatch_Reassembled(t *testing.T) {
	c, events := newTestClient(t, testOptions())
	c.joined("#go")
	src := &girc.Source{Name: "ana"}

	c.onBatch(nil, girc.Event{Source: src, Command: cmdBATCH, Params: []string{"+b1", capMultiline, "#go"}})
	for _, line := range []girc.Event{
		{Source: src, Command: girc.PRIVMSG, Params: []string{"#go", "first"}, Tags: girc.Tags{tagBatch: "b1"}},
		{Source: src, Command: girc.PRIVMSG, Params: []string{"#go", "sec"}, Tags: girc.Tags{tagBatch: "b1"}},
		{Source: src, Command: girc.PRIVMSG, Params: []string{"#go", "ond"}, Tags: girc.Tags{tagBatch: "b1", tagMultilineConcat: ""}},
	} {
		c.onPrivmsg(nil, line)
	}
	require.Len(t, *events, 1, "batched lines are held back")

	c.onBatch(nil, girc.Event{Command: cmdBATCH, Params: []string{"-b1"}})
	require.Len(t, *events, 2)
	assert.Equal(t, "first\nsecond", (*events)[1].(remote.MessageReceived).Message.Content)
}

func TestBatch_IgnoresOtherTypes(t *testing.T) {
	bt := newBatchTracker()
	assert.False(t, bt.open("x", "chathistory", "#go", nil))
	assert.False(t, bt.add("x", "line", false))
	_, _, _, ok := bt.close("x")
	assert.False(t, ok)
}

func TestConnected_DropsOpenBatches(t *testing.T) {
	c, events := newTestClient(t, testOptions())
	c.batches.open("stale", capMultiline, "#go", &girc.Source{Name: "ana"})
	c.batches.add("stale", "half a message", false)
	require.Equal(t, 1, c.batches.pending())

	cl := girc.New(girc.Config{Server: "irc.example.net", Nick: "bridge", User: "bridge"})
	c.onConnected(cl, girc.Event{Command: girc.CONNECTED})

	assert.Zero(t, c.batches.pending())
	require.Len(t, *events, 2)
	assert.IsType(t, remote.Ready{}, (*events)[0])
	assert.IsType(t, remote.ServerCreated{}, (*events)[1])

	c.onBatch(nil, girc.Event{Command: cmdBATCH, Params: []string{"-stale"}})
	assert.Len(t, *events, 2, "a batch from the old connection never closes into a message")
}

func TestTopic(t *testing.T) {
	c, events := newTestClient(t, testOptions())
	c.joined("#go")

	c.onTopic(nil, girc.Event{Command: girc.RPL_TOPIC, Params: []string{"bridge", "#go", "welcome"}})
	c.onTopic(nil, girc.Event{Command: girc.TOPIC, Params: []string{"#go", "new topic"}})
	c.onTopic(nil, girc.Event{Command: girc.TOPIC, Params: []string{"#other", "ignored"}})

	require.Len(t, *events, 3)
	assert.IsType(t, remote.ServerUpdated{}, (*events)[2])
	assert.Equal(t, "new topic", c.guild.Channels["#go"].Topic)
}

func TestKick_OtherUserIgnored(t *testing.T) {
	c, events := newTestClient(t, testOptions())
	c.joined("#go")
	c.onKick(nil, girc.Event{Command: girc.KICK, Params: []string{"#go", "someone", "bye"}})
	assert.Len(t, *events, 1)
}

func TestNotConnected(t *testing.T) {
	c, _ := newTestClient(t, testOptions())
	ctx := context.Background()
	assert.ErrorIs(t, c.SendMessage(ctx, "#go", "x"), errNotConnected)
	assert.ErrorIs(t, c.StartTyping(ctx, "#go"), errNotConnected)
	assert.ErrorIs(t, c.StopTyping(ctx, "#go"), errNotConnected)
	assert.Nil(t, c.Self())
	assert.NoError(t, c.Close())
}

func TestRing(t *testing.T) {
	r := newRing(2)
	assert.Empty(t, r.newest(10))

	for i := 0; i < 3; i++ {
		r.add(&remote.Message{ID: fmt.Sprint(i)})
	}
	assert.Equal(t, 2, r.count())
	got := r.newest(10)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "1", got[1].ID)

	empty := newRing(0)
	empty.add(&remote.Message{ID: "x"})
	assert.Zero(t, empty.count())
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"hello"}, splitMessage("hello", 400))
	assert.Equal(t, []string{"a", "b"}, splitMessage("a\n\nb", 400))

	long := strings.Repeat("x", 950)
	parts := splitMessage(long, 400)
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 400)
	assert.Len(t, parts[2], 150)
	assert.Equal(t, long, strings.Join(parts, ""))
}

func TestSplitMessage_Multibyte(t *testing.T) {
	euros := strings.Repeat("€", 134) // 402 bytes
	parts := splitMessage(euros, maxLineBytes)
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 399)
	assert.Len(t, parts[1], 3)
	for _, p := range parts {
		assert.True(t, utf8.ValidString(p))
	}
	assert.Equal(t, euros, strings.Join(parts, ""))
}
