package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"intake-bot/internal/common/discord"
	"intake-bot/internal/common/discord/discordtest"
	"intake-bot/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndexer struct {
	index string
	id    string
	doc   interface{}
	err   error
}

func (f *fakeIndexer) IndexDocument(_ context.Context, index, id string, doc interface{}) error {
	f.index, f.id, f.doc = index, id, doc
	return f.err
}

func TestSink_PostsAndIndexes(t *testing.T) {
	s := discordtest.NewSession()
	idx := &fakeIndexer{}
	sink := NewSink(s, "log-chan", idx, "intake-audit", logger.NewTestLogger(t))
	sink.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	sink.LogFor(context.Background(), "42", "Application Rejected", "User: <@42> | Score: 12.0")

	msgs := s.MessagesIn("log-chan")
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Embeds, 1)
	assert.Equal(t, "Application Rejected", msgs[0].Embeds[0].Title)
	assert.Equal(t, discord.ColorDarkGray, msgs[0].Embeds[0].Color)

	assert.Equal(t, "intake-audit", idx.index)
	ev, ok := idx.doc.(Event)
	require.True(t, ok)
	assert.Equal(t, idx.id, ev.ID)
	assert.Equal(t, "42", ev.UserID)
	assert.Equal(t, "User: <@42> | Score: 12.0", ev.Description)
}

func TestSink_FailuresAreSwallowed(t *testing.T) {
	s := discordtest.NewSession()
	s.SendErr["log-chan"] = errors.New("missing access")
	idx := &fakeIndexer{err: errors.New("cluster down")}
	sink := NewSink(s, "log-chan", idx, "intake-audit", logger.NewTestLogger(t))

	sink.Log(context.Background(), "Application AI Error", "User: <@1>\nError: timeout")
	assert.Empty(t, s.Messages)
	assert.Equal(t, "intake-audit", idx.index)
}

func TestSink_DisabledLegs(t *testing.T) {
	s := discordtest.NewSession()
	sink := NewSink(s, "", nil, "", logger.NewNoOpLogger())
	sink.Log(context.Background(), "Auto Verified", "x")
	assert.Empty(t, s.Messages)

	var nilSink *Sink
	nilSink.Log(context.Background(), "noop", "noop")
}
