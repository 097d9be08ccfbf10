// pkg/registry/schema.go
package registry

import "intake-bot/internal/models"

// QuestionRegistry is the on-disk form of the application question set.
type QuestionRegistry struct {
	Version     string            `json:"version"`
	LastUpdated string            `json:"lastUpdated"`
	Questions   []models.Question `json:"questions"`
}

// DefaultQuestions is the question set used when no override file is configured.
func DefaultQuestions() models.QuestionSet {
	return models.QuestionSet{
		{
			Code:       models.QuestionRobloxUsername,
			Prompt:     "What is your exact Roblox username? (Case-sensitive, please double-check.)",
			Type:       models.QuestionShort,
			Required:   true,
			MinLen:     3,
			MaxLen:     32,
			OrderIndex: 0,
		},
		{
			Code:       "availability",
			Prompt:     "How many hours a week can you actively participate with the Medical Department? Be honest.",
			Type:       models.QuestionShort,
			Required:   true,
			MinLen:     1,
			MaxLen:     200,
			OrderIndex: 1,
		},
		{
			Code:       "experience",
			Prompt:     "List relevant experience: groups, roles, medical RP, or responsibilities you’ve handled.",
			Type:       models.QuestionLong,
			Required:   true,
			MinLen:     50,
			MaxLen:     1200,
			OrderIndex: 2,
		},
		{
			Code:       "communication",
			Prompt:     "Describe your communication style and how you handle conflicts.",
			Type:       models.QuestionLong,
			Required:   true,
			MinLen:     50,
			MaxLen:     1200,
			OrderIndex: 3,
		},
		{
			Code:       "policy",
			Prompt:     "Pick one MD guideline you find crucial and explain why it matters in practice.",
			Type:       models.QuestionLong,
			Required:   true,
			MinLen:     50,
			MaxLen:     1200,
			OrderIndex: 4,
		},
	}
}
