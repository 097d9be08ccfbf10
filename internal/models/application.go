// internal/models/application.go
package models

import (
	"strings"
	"time"
)

type ApplicantStatus string

const (
	ApplicantInProgress ApplicantStatus = "in_progress"
	ApplicantSubmitted  ApplicantStatus = "submitted"
	ApplicantAccepted   ApplicantStatus = "accepted"
	ApplicantRejected   ApplicantStatus = "rejected"
)

// ApplicationRun is one submission attempt. SubmittedAt is nil while the run is open.
type ApplicationRun struct {
	ID          int64      `json:"id" db:"id"`
	ApplicantID int64      `json:"applicantId" db:"applicant_id"`
	StartedAt   time.Time  `json:"startedAt" db:"started_at"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty" db:"submitted_at"`
}

type Answer struct {
	RunID        int64     `json:"runId" db:"run_id"`
	QuestionCode string    `json:"questionCode" db:"question_code"`
	Text         string    `json:"answerText" db:"answer_text"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Answers maps question code to the collected text.
type Answers map[string]string

// RobloxUsername returns the trimmed username answer, if any.
func (a Answers) RobloxUsername() string {
	return strings.TrimSpace(a[QuestionRobloxUsername])
}
