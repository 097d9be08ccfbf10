// internal/workers/application/send-notification/handler_test.go
package sendnotification

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"intake-bot/internal/common/discord/discordtest"
	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEmail struct {
	from    string
	to      []string
	subject string
	body    string
	err     error
}

func (m *mockEmail) SendText(_ context.Context, from string, to []string, subject, body string) (string, error) {
	m.from, m.to, m.subject, m.body = from, to, subject, body
	return "msg-1", m.err
}

type mockAlerts struct {
	topic, subject, message string
	calls                   int
	err                     error
}

func (m *mockAlerts) PublishAlert(_ context.Context, topic, subject, message string) (string, error) {
	m.calls++
	m.topic, m.subject, m.message = topic, subject, message
	return "alert-1", m.err
}

func testConfig() *Config {
	c := LoadConfig()
	c.CommsChannelID = "comms"
	c.ManagementChannelID = "mgmt"
	return c
}

func TestHandler_RejectionDM(t *testing.T) {
	s := discordtest.NewSession()
	h := NewHandler(testConfig(), s, nil, nil, logger.NewTestLogger(t))

	out, err := h.RejectionDM(context.Background(), "1001", 12.345, strings.Repeat("r", 700))
	require.NoError(t, err)
	assert.Equal(t, StatusSent, out.Status)
	assert.NotEmpty(t, out.NotificationID)

	msgs := s.MessagesIn("dm-1001")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "your application has not been accepted")
	assert.Contains(t, msgs[0].Content, "**Score:** 12.3")
	assert.Contains(t, msgs[0].Content, "> "+strings.Repeat("r", 500))
	assert.NotContains(t, msgs[0].Content, strings.Repeat("r", 501))
}

func TestHandler_RejectionDM_ClosedDMsAreNotAFailure(t *testing.T) {
	s := discordtest.NewSession()
	s.DMErr = discordtest.RESTError(http.StatusForbidden)
	h := NewHandler(testConfig(), s, nil, nil, logger.NewTestLogger(t))

	out, err := h.RejectionDM(context.Background(), "1001", 10, "Off-topic.")
	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, out.Status)
}

func TestHandler_BorderlineNotice(t *testing.T) {
	s := discordtest.NewSession()
	email := &mockEmail{}
	cfg := testConfig()
	cfg.EmailEnabled = true
	cfg.FromEmail = "bot@example.org"
	cfg.StaffEmails = []string{"staff@example.org"}
	h := NewHandler(cfg, s, email, nil, logger.NewTestLogger(t))

	out, err := h.BorderlineNotice(context.Background(), "<@1001>", 42)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, out.Status)

	msgs := s.MessagesIn("mgmt")
	require.Len(t, msgs, 1)
	assert.Equal(t, "🟡 Application borderline, needs manual review.\nUser: <@1001>\nScore: **42.0**", msgs[0].Content)

	assert.Equal(t, "bot@example.org", email.from)
	assert.Equal(t, []string{"staff@example.org"}, email.to)
	assert.Equal(t, "Application needs manual review", email.subject)
	assert.Contains(t, email.body, "Score: 42.0")
}

func TestHandler_BorderlineNotice_EmailFailureReported(t *testing.T) {
	s := discordtest.NewSession()
	cfg := testConfig()
	cfg.EmailEnabled = true
	cfg.StaffEmails = []string{"staff@example.org"}
	h := NewHandler(cfg, s, &mockEmail{err: errors.New("throttled")}, nil, logger.NewTestLogger(t))

	out, err := h.BorderlineNotice(context.Background(), "1001", 42)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotificationSendFailed))
	assert.ErrorIs(t, err, ErrNotificationSendFailed)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Len(t, s.MessagesIn("mgmt"), 1, "channel notice still posted")
}

func TestHandler_WelcomeAndAccepted(t *testing.T) {
	s := discordtest.NewSession()
	h := NewHandler(testConfig(), s, nil, nil, logger.NewTestLogger(t))

	_, err := h.Welcome(context.Background(), "1001")
	require.NoError(t, err)
	welcome := s.MessagesIn("comms")
	require.Len(t, welcome, 1)
	assert.Equal(t, "🎉 Please welcome <@1001> to the **Medical Department**!", welcome[0].Content)
	require.Len(t, welcome[0].Embeds, 1)

	_, err = h.AcceptedNotice(context.Background(), "1001", "")
	require.NoError(t, err)
	notice := s.MessagesIn("mgmt")
	require.Len(t, notice, 1)
	assert.Contains(t, notice[0].Content, "(`unknown`)")
}

func TestHandler_ChannelFailure(t *testing.T) {
	s := discordtest.NewSession()
	s.SendErr["comms"] = discordtest.RESTError(http.StatusInternalServerError)
	h := NewHandler(testConfig(), s, nil, nil, logger.NewTestLogger(t))

	out, err := h.Welcome(context.Background(), "1001")
	require.Error(t, err)
	assert.Equal(t, StatusFailed, out.Status)
}

func TestHandler_UnconfiguredChannelIsDisabled(t *testing.T) {
	s := discordtest.NewSession()
	h := NewHandler(LoadConfig(), s, nil, nil, logger.NewTestLogger(t))

	out, err := h.AcceptedNotice(context.Background(), "1001", "RaeFan99")
	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, out.Status)
	assert.Empty(t, s.Messages)
}

func TestHandler_OpsAlert(t *testing.T) {
	alerts := &mockAlerts{}

	h := NewHandler(testConfig(), nil, nil, alerts, logger.NewTestLogger(t))
	out, err := h.OpsAlert(context.Background(), "Scoring unavailable", "429 from provider")
	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, out.Status)
	assert.Zero(t, alerts.calls)

	cfg := testConfig()
	cfg.AlertsEnabled = true
	cfg.TopicARN = "arn:aws:sns:us-east-1:123:intake"
	h = NewHandler(cfg, nil, nil, alerts, logger.NewTestLogger(t))
	out, err = h.OpsAlert(context.Background(), "Scoring unavailable", "429 from provider")
	require.NoError(t, err)
	assert.Equal(t, StatusSent, out.Status)
	assert.Equal(t, cfg.TopicARN, alerts.topic)
	assert.Equal(t, "Scoring unavailable", alerts.subject)
	assert.Equal(t, "429 from provider", alerts.message)
}

func TestHandler_UnknownType(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, logger.NewNoOpLogger())
	_, err := h.Execute(context.Background(), &Input{NotificationType: "carrier_pigeon"})
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		data map[string]interface{}
		want string
	}{
		{name: "fills values", tmpl: "Hi {{user}}, score {{score}}", data: map[string]interface{}{"user": "<@1>", "score": "50.0"}, want: "Hi <@1>, score 50.0"},
		{name: "drops missing", tmpl: "Hi {{user}}{{missing}}!", data: map[string]interface{}{"user": "a"}, want: "Hi a!"},
		{name: "non-string value", tmpl: "{{n}}", data: map[string]interface{}{"n": 3}, want: "3"},
		{name: "unterminated placeholder kept", tmpl: "a {{b", data: nil, want: "a {{b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderTemplate(tt.tmpl, tt.data))
		})
	}
}
