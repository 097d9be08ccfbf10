// internal/workers/application/process-application/models.go
package processapplication

import (
	"intake-bot/internal/models"
	onboardmember "intake-bot/internal/workers/application/onboard-member"
)

type Input struct {
	DiscordID string         `json:"discordId"`
	Answers   models.Answers `json:"answers"`

	// OnSubmitted runs once the answers are stored, before scoring starts.
	OnSubmitted func(runID int64) `json:"-"`
}

type Output struct {
	RunID      int64                 `json:"runId"`
	Verdict    *models.Verdict       `json:"verdict,omitempty"`
	Decision   models.DecisionKind   `json:"decision,omitempty"`
	Band       string                `json:"band,omitempty"`
	Onboarding *onboardmember.Output `json:"onboarding,omitempty"`
	// Message is the final reply shown to the applicant.
	Message string `json:"message"`
}

const (
	// SubmittedNotice is sent as soon as the run is stored.
	SubmittedNotice = "✅ Application submitted! Evaluating your responses..."
	msgAccepted     = "✅ Application accepted for %s!"
	msgBorderline   = "⚠️ Application under manual review."
	msgRejected     = "❌ Application rejected."
)
