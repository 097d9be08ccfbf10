// internal/workers/application/send-notification/models.go
package sendnotification

type Input struct {
	NotificationType string                 `json:"notificationType"`
	RecipientID      string                 `json:"recipientId,omitempty"` // chat user id for DMs
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"` // "sent", "failed", "disabled"
	SentAt         string `json:"sentAt"` // ISO 8601
}

// Notification types
const (
	TypeRejectionDM      = "rejection_dm"
	TypeBorderlineNotice = "borderline_notice"
	TypeWelcome          = "welcome"
	TypeAcceptedNotice   = "accepted_notice"
	TypeOpsAlert         = "ops_alert"
)

// Statuses
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

type template struct {
	Subject string
	Body    string
}

var templates = map[string]template{
	TypeRejectionDM: {
		Body: "Hello, thank you for applying to the **Medical Department**, but unfortunately your application has not been accepted.\n\n" +
			"**Score:** {{score}}\nReasoning:\n> {{rationale}}",
	},
	TypeBorderlineNotice: {
		Subject: "Application needs manual review",
		Body:    "🟡 Application borderline, needs manual review.\nUser: {{user}}\nScore: **{{score}}**",
	},
	TypeWelcome: {
		Body: "🎉 Please welcome {{user}} to the **Medical Department**!",
	},
	TypeAcceptedNotice: {
		Body: "✅ Application accepted for {{user}} (`{{roblox}}`). Roles assigned and onboarding message posted.",
	},
	TypeOpsAlert: {
		Subject: "{{title}}",
		Body:    "{{detail}}",
	},
}
