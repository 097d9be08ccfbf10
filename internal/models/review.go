package models

import "time"

// Verdict is the normalized scoring result for one run.
type Verdict struct {
	OverallScore    float64            `json:"overall_score"`
	Verdict         string             `json:"verdict"`
	DimensionScores map[string]float64 `json:"dimension_scores,omitempty"`
	Rationale       string             `json:"rationale"`
	Flags           []string           `json:"flags"`
	Model           string             `json:"-"`
	TokensIn        int                `json:"-"`
	TokensOut       int                `json:"-"`
}

// AIReview is the persisted form of a Verdict.
type AIReview struct {
	ID        int64     `json:"id" db:"id"`
	RunID     int64     `json:"runId" db:"run_id"`
	Model     string    `json:"model" db:"model"`
	Score     float64   `json:"score" db:"score"`
	Verdict   string    `json:"verdict" db:"verdict"`
	Rationale string    `json:"rationale" db:"rationale"`
	TokensIn  int       `json:"tokensIn" db:"tokens_in"`
	TokensOut int       `json:"tokensOut" db:"tokens_out"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
