// internal/workers/application/record-decision/models.go
package recorddecision

import (
	"time"

	"intake-bot/internal/models"
)

type Input struct {
	RunID     int64               `json:"runId"`
	DiscordID string              `json:"discordId"`
	DecidedBy string              `json:"decidedBy"`
	Decision  models.DecisionKind `json:"decision"`
	Reason    string              `json:"reason"`
}

type Output struct {
	DecisionID    int64                  `json:"decisionId"`
	Status        models.ApplicantStatus `json:"status"`
	CooldownUntil *time.Time             `json:"cooldownUntil,omitempty"`
}
