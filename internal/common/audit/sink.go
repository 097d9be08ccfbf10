// Package audit posts pipeline events to the command log channel and mirrors
// them into the audit index.
package audit

import (
	"context"
	"time"

	"intake-bot/internal/common/discord"
	"intake-bot/internal/common/logger"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

// Indexer is satisfied by *database.ElasticsearchClient.
type Indexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UserID      string    `json:"userId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Sink struct {
	session   discord.Session
	channelID string
	indexer   Indexer
	index     string
	now       func() time.Time
	logger    logger.Logger
}

// NewSink returns a sink. An empty channel or nil indexer disables that leg.
func NewSink(session discord.Session, channelID string, indexer Indexer, index string, log logger.Logger) *Sink {
	return &Sink{
		session:   session,
		channelID: channelID,
		indexer:   indexer,
		index:     index,
		now:       time.Now,
		logger:    log.WithFields(map[string]interface{}{"component": "audit"}),
	}
}

// Log records one event. Failures are logged, never returned.
func (s *Sink) Log(ctx context.Context, title, description string) {
	s.LogFor(ctx, "", title, description)
}

// LogFor is Log with the subject user attached to the indexed document.
func (s *Sink) LogFor(ctx context.Context, userID, title, description string) {
	if s == nil {
		return
	}
	ev := Event{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		UserID:      userID,
		CreatedAt:   s.now().UTC(),
	}

	if s.session != nil && s.channelID != "" {
		_, err := s.session.ChannelMessageSendComplex(s.channelID, &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{discord.LogEmbed(title, description, ev.CreatedAt)},
		})
		if err != nil {
			s.logger.Warn("audit post failed", map[string]interface{}{"title": title, "error": err})
		}
	}

	if s.indexer != nil && s.index != "" {
		if err := s.indexer.IndexDocument(ctx, s.index, ev.ID, ev); err != nil {
			s.logger.Warn("audit index failed", map[string]interface{}{"title": title, "error": err})
		}
	}

	s.logger.Info("audit event", map[string]interface{}{"title": title, "eventId": ev.ID})
}
