// internal/workers/application/send-notification/handler.go
package sendnotification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"intake-bot/internal/common/discord"
	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

const (
	TaskType = "send-notification"
)

var (
	ErrNotificationSendFailed = errors.New("NOTIFICATION_SEND_FAILED")
	ErrUnknownTemplate        = errors.New("UNKNOWN_NOTIFICATION_TYPE")
)

// EmailSender is satisfied by *aws.SESClient.
type EmailSender interface {
	SendText(ctx context.Context, from string, to []string, subject, body string) (string, error)
}

// AlertPublisher is satisfied by *aws.SNSClient.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, topicARN, subject, message string) (string, error)
}

// Handler delivers applicant and staff notices. Delivery failures come back
// as a failed Output plus an error; callers log them and move on.
type Handler struct {
	config  *Config
	session discord.Session
	email   EmailSender
	alerts  AlertPublisher
	now     func() time.Time
	logger  logger.Logger
}

func NewHandler(config *Config, session discord.Session, email EmailSender, alerts AlertPublisher, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config:  config,
		session: session,
		email:   email,
		alerts:  alerts,
		now:     time.Now,
		logger:  logger.ForStage(log, TaskType),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// RejectionDM tells the applicant their score and the first 500 characters of the rationale.
func (h *Handler) RejectionDM(ctx context.Context, userID string, score float64, rationale string) (*Output, error) {
	return h.execute(ctx, &Input{
		NotificationType: TypeRejectionDM,
		RecipientID:      userID,
		Metadata: map[string]interface{}{
			"score":     formatScore(score),
			"rationale": truncate(rationale, 500),
		},
	})
}

// BorderlineNotice asks staff for a manual review. user is a mention or a raw id.
func (h *Handler) BorderlineNotice(ctx context.Context, user string, score float64) (*Output, error) {
	return h.execute(ctx, &Input{
		NotificationType: TypeBorderlineNotice,
		Metadata:         map[string]interface{}{"user": user, "score": formatScore(score)},
	})
}

func (h *Handler) Welcome(ctx context.Context, userID string) (*Output, error) {
	return h.execute(ctx, &Input{
		NotificationType: TypeWelcome,
		Metadata:         map[string]interface{}{"user": discord.Mention(userID)},
	})
}

func (h *Handler) AcceptedNotice(ctx context.Context, userID, robloxName string) (*Output, error) {
	if robloxName == "" {
		robloxName = "unknown"
	}
	return h.execute(ctx, &Input{
		NotificationType: TypeAcceptedNotice,
		Metadata:         map[string]interface{}{"user": discord.Mention(userID), "roblox": robloxName},
	})
}

func (h *Handler) OpsAlert(ctx context.Context, title, detail string) (*Output, error) {
	return h.execute(ctx, &Input{
		NotificationType: TypeOpsAlert,
		Metadata:         map[string]interface{}{"title": title, "detail": detail},
	})
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	tmpl, ok := templates[input.NotificationType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, input.NotificationType)
	}

	subject := renderTemplate(tmpl.Subject, input.Metadata)
	body := renderTemplate(tmpl.Body, input.Metadata)

	out := &Output{
		NotificationID: uuid.New().String(),
		Status:         StatusDisabled,
		SentAt:         h.now().UTC().Format(time.RFC3339),
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	var err error
	switch input.NotificationType {
	case TypeRejectionDM:
		err = h.sendDM(input.RecipientID, body, out)
	case TypeBorderlineNotice:
		err = h.sendChannel(h.config.ManagementChannelID, &discordgo.MessageSend{Content: body}, out)
		if emailErr := h.sendStaffEmail(ctx, subject, body, out); emailErr != nil {
			err = errors.Join(err, emailErr)
		}
	case TypeWelcome:
		err = h.sendChannel(h.config.CommsChannelID, &discordgo.MessageSend{
			Content: body,
			Embeds:  []*discordgo.MessageEmbed{discord.WelcomeEmbed()},
		}, out)
	case TypeAcceptedNotice:
		err = h.sendChannel(h.config.ManagementChannelID, &discordgo.MessageSend{Content: body}, out)
	case TypeOpsAlert:
		err = h.publishAlert(ctx, subject, body, out)
	}

	if err != nil {
		out.Status = StatusFailed
		h.logger.Warn("notification delivery failed", map[string]interface{}{
			"notificationType": input.NotificationType,
			"notificationId":   out.NotificationID,
			"error":            err,
		})
		return out, apperrors.NewNotificationSendFailedError(input.NotificationType,
			fmt.Errorf("%w: %v", ErrNotificationSendFailed, err))
	}

	h.logger.Debug("notification processed", map[string]interface{}{
		"notificationType": input.NotificationType,
		"notificationId":   out.NotificationID,
		"status":           out.Status,
	})
	return out, nil
}

func (h *Handler) sendDM(userID, body string, out *Output) error {
	if h.session == nil || userID == "" {
		return nil
	}
	if err := discord.SendDM(h.session, userID, body); err != nil {
		// closed DMs are an applicant setting, not a delivery fault
		if discord.IsForbidden(err) {
			h.logger.Info("applicant has direct messages closed", map[string]interface{}{"userId": userID})
			return nil
		}
		return err
	}
	out.Status = StatusSent
	return nil
}

func (h *Handler) sendChannel(channelID string, msg *discordgo.MessageSend, out *Output) error {
	if h.session == nil || channelID == "" {
		return nil
	}
	if _, err := h.session.ChannelMessageSendComplex(channelID, msg); err != nil {
		return fmt.Errorf("post to %s: %w", channelID, err)
	}
	out.Status = StatusSent
	return nil
}

func (h *Handler) sendStaffEmail(ctx context.Context, subject, body string, out *Output) error {
	if !h.config.EmailEnabled || h.email == nil || len(h.config.StaffEmails) == 0 {
		return nil
	}
	if _, err := h.email.SendText(ctx, h.config.FromEmail, h.config.StaffEmails, subject, stripMarkdown(body)); err != nil {
		return err
	}
	out.Status = StatusSent
	return nil
}

func (h *Handler) publishAlert(ctx context.Context, subject, body string, out *Output) error {
	if !h.config.AlertsEnabled || h.alerts == nil || h.config.TopicARN == "" {
		return nil
	}
	if _, err := h.alerts.PublishAlert(ctx, h.config.TopicARN, subject, body); err != nil {
		return err
	}
	out.Status = StatusSent
	return nil
}

// renderTemplate replaces {{key}} placeholders and drops any left unfilled.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}
	return result
}

func formatScore(score float64) string {
	return fmt.Sprintf("%.1f", score)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func stripMarkdown(s string) string {
	return strings.NewReplacer("**", "", "`", "").Replace(s)
}
