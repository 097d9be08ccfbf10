package discord_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"intake-bot/internal/common/discord"
	"intake-bot/internal/common/discord/discordtest"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(channelID, userID, content string) *discordgo.Message {
	return &discordgo.Message{ID: "m1", ChannelID: channelID, Content: content, Author: &discordgo.User{ID: userID}}
}

func TestMessageWaiter_DeliversMatchingMessage(t *testing.T) {
	w := discord.NewMessageWaiter()
	done := make(chan *discordgo.Message, 1)

	go func() {
		msg, err := w.Wait(context.Background(), "c1", "u1", time.Second)
		assert.NoError(t, err)
		done <- msg
	}()

	require.Eventually(t, func() bool { return w.Pending("c1", "u1") }, time.Second, 5*time.Millisecond)

	assert.False(t, w.Deliver(message("c1", "u2", "other user")))
	assert.False(t, w.Deliver(message("c2", "u1", "other channel")))
	assert.True(t, w.Deliver(message("c1", "u1", "  RaeFan99 ")))

	msg := <-done
	assert.Equal(t, "  RaeFan99 ", msg.Content)
	assert.False(t, w.Pending("c1", "u1"))
}

func TestMessageWaiter_IgnoresBots(t *testing.T) {
	w := discord.NewMessageWaiter()
	m := message("c1", "u1", "hi")
	m.Author.Bot = true
	assert.False(t, w.Deliver(m))
}

func TestMessageWaiter_Timeout(t *testing.T) {
	w := discord.NewMessageWaiter()
	_, err := w.Wait(context.Background(), "c1", "u1", 20*time.Millisecond)
	assert.ErrorIs(t, err, discord.ErrWaitTimeout)
	assert.False(t, w.Pending("c1", "u1"))
	assert.False(t, w.Deliver(message("c1", "u1", "too late")))
}

func TestMessageWaiter_ReplacedBySecondWait(t *testing.T) {
	w := discord.NewMessageWaiter()
	first := make(chan error, 1)
	go func() {
		_, err := w.Wait(context.Background(), "c1", "u1", time.Second)
		first <- err
	}()
	require.Eventually(t, func() bool { return w.Pending("c1", "u1") }, time.Second, 5*time.Millisecond)

	go func() {
		_, _ = w.Wait(context.Background(), "c1", "u1", 50*time.Millisecond)
	}()

	select {
	case err := <-first:
		assert.ErrorIs(t, err, discord.ErrWaitReplaced)
	case <-time.After(time.Second):
		t.Fatal("first waiter was not released")
	}
}

func TestIsForbidden(t *testing.T) {
	assert.True(t, discord.IsForbidden(discordtest.RESTError(http.StatusForbidden)))
	assert.False(t, discord.IsForbidden(discordtest.RESTError(http.StatusNotFound)))
	assert.False(t, discord.IsForbidden(errors.New("boom")))
	assert.True(t, discord.IsNotFound(discordtest.RESTError(http.StatusNotFound)))
}

func TestFindMember(t *testing.T) {
	s := discordtest.NewSession()
	s.AddMember("42")

	m, err := discord.FindMember(s, "g1", "42")
	require.NoError(t, err)
	assert.Equal(t, "42", m.User.ID)

	_, err = discord.FindMember(s, "g1", "7")
	assert.ErrorIs(t, err, discord.ErrMemberMissing)
}

func TestSendDM(t *testing.T) {
	s := discordtest.NewSession()
	require.NoError(t, discord.SendDM(s, "42", "hello"))
	msgs := s.MessagesIn("dm-42")
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)

	s.DMErr = discordtest.RESTError(http.StatusForbidden)
	assert.Error(t, discord.SendDM(s, "42", "again"))
}

func TestEmbeds(t *testing.T) {
	w := discord.WelcomeEmbed()
	assert.Equal(t, "Welcome to the Team!", w.Title)
	assert.Equal(t, discord.ColorGreen, w.Color)
	assert.Contains(t, w.Footer.Text, "Management Team")

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l := discord.LogEmbed("Application Scored", "User: <@1>", at)
	assert.Equal(t, "2026-01-02T03:04:05Z", l.Timestamp)
	assert.Equal(t, "<@1>", discord.Mention("1"))
}
