package models

type QuestionType string

const (
	QuestionShort QuestionType = "short"
	QuestionLong  QuestionType = "long"
)

// QuestionRobloxUsername is the code whose answer drives identity resolution.
const QuestionRobloxUsername = "roblox_username"

type Question struct {
	Code       string       `json:"code"`
	Prompt     string       `json:"prompt"`
	Type       QuestionType `json:"type"`
	Required   bool         `json:"required"`
	MinLen     int          `json:"min_len"`
	MaxLen     int          `json:"max_len"`
	OrderIndex int          `json:"order_index"`
}

// QuestionSet is the ordered list presented by the wizard.
type QuestionSet []Question

// Codes returns the set of known question codes.
func (qs QuestionSet) Codes() map[string]struct{} {
	out := make(map[string]struct{}, len(qs))
	for _, q := range qs {
		out[q.Code] = struct{}{}
	}
	return out
}

func (qs QuestionSet) Lookup(code string) (Question, bool) {
	for _, q := range qs {
		if q.Code == code {
			return q, true
		}
	}
	return Question{}, false
}
