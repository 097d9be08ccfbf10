// internal/workers/application/check-priority-routing/models.go
package checkpriorityrouting

import "intake-bot/internal/models"

type Input struct {
	Verdict *models.Verdict `json:"verdict"`
}

type Output struct {
	Decision models.DecisionKind `json:"decision"`
	Reason   string              `json:"reason"`
	// Band names the rule that fired, for logs and audit.
	Band string `json:"band"`
}

const (
	BandSevereFlag = "severe_flag"
	BandAccept     = "accept"
	BandBorderline = "borderline"
	BandHardReject = "above_hard_reject"
	BandReject     = "reject"
)

const (
	ReasonAccept     = "Auto-accepted by AI threshold"
	ReasonBorderline = "Below auto-accept threshold but above minimum"
	maxRejectReason  = 500
)

// SevereFlags force a reject regardless of score.
var SevereFlags = map[string]struct{}{
	"toxicity":             {},
	"harassment":           {},
	"hate":                 {},
	"plagiarism_suspected": {},
	"troll":                {},
	"spam":                 {},
}
