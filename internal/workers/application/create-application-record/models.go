// internal/workers/application/create-application-record/models.go
package createapplicationrecord

import (
	"time"

	"intake-bot/internal/models"
)

type Input struct {
	DiscordID      string         `json:"discordId"`
	RobloxUsername string         `json:"robloxUsername"`
	Answers        models.Answers `json:"answers"`
}

type Output struct {
	ApplicantID int64     `json:"applicantId"`
	RunID       int64     `json:"runId"`
	SubmittedAt time.Time `json:"submittedAt"`
}
