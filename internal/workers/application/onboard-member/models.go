// internal/workers/application/onboard-member/models.go
package onboardmember

import (
	recorddecision "intake-bot/internal/workers/application/record-decision"
)

type Input struct {
	RunID          int64  `json:"runId"`
	DiscordID      string `json:"discordId"`
	RobloxUsername string `json:"robloxUsername"`
	Reason         string `json:"reason"`
}

type Output struct {
	Steps         []StepResult           `json:"steps"`
	RobloxID      int64                  `json:"robloxId,omitempty"`
	RobloxName    string                 `json:"robloxName,omitempty"`
	RankName      string                 `json:"rankName,omitempty"`
	MemberMissing bool                   `json:"memberMissing"`
	Decision      *recorddecision.Output `json:"decision,omitempty"`
}

// Failed lists the steps that did not complete.
func (o *Output) Failed() []string {
	var names []string
	for _, s := range o.Steps {
		if s.Outcome == OutcomeFailed {
			names = append(names, s.Name)
		}
	}
	return names
}

type StepResult struct {
	Name    string `json:"name"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

const (
	StepIdentity  = "identity"
	StepRank      = "membership_rank"
	StepLocalSync = "local_sync"
	StepNotify    = "notification"
	StepLedger    = "ledger"
)

const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)
