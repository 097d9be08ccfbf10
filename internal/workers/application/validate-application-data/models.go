// internal/workers/application/validate-application-data/models.go
package validateapplicationdata

import "intake-bot/internal/models"

// Source says how an answer reached the bot.
type Source string

const (
	SourceModal   Source = "modal"   // long answers; the form enforces max length
	SourceMessage Source = "message" // short answers typed into the channel
)

type Input struct {
	Question models.Question `json:"question"`
	Text     string          `json:"text"`
	Source   Source          `json:"source"`
}

type Output struct {
	Answer    string `json:"answer"`
	Truncated bool   `json:"truncated"`
}

const (
	msgRequired    = "This question requires an answer."
	msgMaxLength   = "Please keep your answer under **%d** characters."
	msgIncomplete  = "Please answer every question before submitting."
	NoResponseText = "*No response provided*"
)
