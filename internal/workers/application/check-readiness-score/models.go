// internal/workers/application/check-readiness-score/models.go
package checkreadinessscore

import "intake-bot/internal/models"

type Input struct {
	RunID   int64          `json:"runId"`
	Answers models.Answers `json:"answers"`
}

type Output struct {
	Verdict *models.Verdict `json:"verdict"`
}

// Completion is the raw text a provider returned plus its usage.
type Completion struct {
	Text      string
	Model     string
	TokensIn  int
	TokensOut int
}

// rubricRequest is the user message body sent to every provider.
type rubricRequest struct {
	Instructions string         `json:"instructions"`
	Rubric       rubric         `json:"rubric"`
	Answers      models.Answers `json:"answers"`
}

type rubric struct {
	Dimensions   map[string]string      `json:"dimensions"`
	Weights      map[string]float64     `json:"weights"`
	OutputSchema map[string]interface{} `json:"output_schema"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	ResponseFormat map[string]string `json:"response_format"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}
