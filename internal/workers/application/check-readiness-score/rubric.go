// internal/workers/application/check-readiness-score/rubric.go
package checkreadinessscore

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"intake-bot/internal/common/validation"
	"intake-bot/internal/models"
)

const systemPrompt = "You are a supportive reviewer for Medical Department applications. " +
	"Default to accepting applicants unless their answers clearly show trolling, rule-breaking, or an inability to participate. " +
	"Output only valid JSON."

const instructions = "Score this applicant using the rubric with a generous lens. " +
	"Only recommend rejection when responses are extremely poor, off-topic, or violate guidelines. " +
	"Return strict JSON (no prose)."

// RubricWeights sum to 1.
var RubricWeights = map[string]float64{
	"commitment":      0.25,
	"clarity":         0.20,
	"experience":      0.25,
	"professionalism": 0.15,
	"policy":          0.15,
}

var rubricDimensions = map[string]string{
	"commitment":      "Evidence of availability/consistency",
	"clarity":         "Clear writing and coherent reasoning",
	"experience":      "Relevant past roles/responsibility fit",
	"professionalism": "Tone, maturity, no toxicity",
	"policy":          "Understands and respects guidelines",
}

const verdictSchema = `{
	"type": "object",
	"required": ["overall_score", "verdict", "rationale", "flags"],
	"properties": {
		"overall_score": {"type": "number", "minimum": 0, "maximum": 100},
		"verdict": {"type": "string", "enum": ["accept", "borderline", "reject"]},
		"dimension_scores": {"type": "object", "additionalProperties": {"type": "number"}},
		"rationale": {"type": "string"},
		"flags": {"type": "array", "items": {"type": "string"}}
	}
}`

var schema = validation.MustCompile(verdictSchema)

// BuildPrompt returns the system text and the JSON user message for answers.
func BuildPrompt(answers models.Answers) (string, string, error) {
	dims := make(map[string]interface{}, len(RubricWeights))
	for k := range RubricWeights {
		dims[k] = 0
	}
	req := rubricRequest{
		Instructions: instructions,
		Rubric: rubric{
			Dimensions: rubricDimensions,
			Weights:    RubricWeights,
			OutputSchema: map[string]interface{}{
				"overall_score":    "number 0..100",
				"verdict":          "accept|borderline|reject",
				"dimension_scores": dims,
				"rationale":        "string",
				"flags":            []string{"optional string flags like 'toxicity' or 'plagiarism_suspected'"},
			},
		},
		Answers: answers,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", "", fmt.Errorf("marshal rubric request: %w", err)
	}
	return systemPrompt, string(body), nil
}

// ParseContent decodes provider text as a JSON object. When the first decode
// fails, surrounding whitespace, backticks and a ```json fence are stripped
// and decoding is tried once more.
func ParseContent(content string) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(content), &raw); err == nil {
		return raw, nil
	}

	cleaned := strings.TrimSpace(content)
	cleaned = strings.Trim(cleaned, "`")
	if strings.HasPrefix(strings.ToLower(cleaned), "json") {
		cleaned = cleaned[len("json"):]
	}
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("scoring response is not JSON: %w", err)
	}
	return raw, nil
}

// Normalize coerces a decoded response into a Verdict and validates it.
func Normalize(raw map[string]interface{}, maxRationale int) (*models.Verdict, error) {
	v := &models.Verdict{
		OverallScore: clampScore(toFloat(raw["overall_score"])),
		Verdict:      "reject",
		Flags:        []string{},
	}

	if s, ok := raw["verdict"].(string); ok && strings.TrimSpace(s) != "" {
		v.Verdict = strings.ToLower(strings.TrimSpace(s))
	}

	if r, ok := raw["rationale"].(string); ok {
		v.Rationale = truncate(strings.TrimSpace(r), maxRationale)
	}

	switch f := raw["flags"].(type) {
	case string:
		if s := strings.ToLower(strings.TrimSpace(f)); s != "" {
			v.Flags = append(v.Flags, s)
		}
	case []interface{}:
		for _, item := range f {
			if s, ok := item.(string); ok {
				if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
					v.Flags = append(v.Flags, s)
				}
			}
		}
	}

	if dims, ok := raw["dimension_scores"].(map[string]interface{}); ok {
		v.DimensionScores = make(map[string]float64, len(dims))
		for k, val := range dims {
			if val == nil {
				continue
			}
			v.DimensionScores[strings.ToLower(k)] = toFloat(val)
		}
	}

	result, err := schema.Validate(v)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, fmt.Errorf("scoring response failed schema: %s", strings.Join(result.GetErrorMessages(), "; "))
	}
	return v, nil
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
	case bool:
		if n {
			return 1
		}
	}
	return 0
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
