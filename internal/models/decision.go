package models

import (
	"fmt"
	"time"
)

type DecisionKind string

const (
	DecisionAccept     DecisionKind = "accept"
	DecisionBorderline DecisionKind = "borderline"
	DecisionReject     DecisionKind = "reject"
)

// DecidedByAI marks decisions made by the automatic router.
const DecidedByAI = "ai"

// DecidedByStaff formats the decider for a manual staff decision.
func DecidedByStaff(discordID string) string {
	return fmt.Sprintf("staff:%s", discordID)
}

// Decision rows are append-only.
type Decision struct {
	ID        int64        `json:"id" db:"id"`
	RunID     int64        `json:"runId" db:"run_id"`
	DecidedBy string       `json:"decidedBy" db:"decided_by"`
	Decision  DecisionKind `json:"decision" db:"decision"`
	Reason    string       `json:"reason" db:"reason"`
	CreatedAt time.Time    `json:"createdAt" db:"created_at"`
}
