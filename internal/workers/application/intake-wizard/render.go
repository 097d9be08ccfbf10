// internal/workers/application/intake-wizard/render.go
package intakewizard

import (
	"fmt"
	"strings"

	validateapplicationdata "intake-bot/internal/workers/application/validate-application-data"
	"intake-bot/internal/models"

	"github.com/bwmarrin/discordgo"
)

const (
	headerText     = "**Medical Department Application**"
	reviewIntro    = "Here is a summary of your responses. If you need to make major changes, you can restart `/apply` before submitting."
	reviewTitle    = "Application Review"
	reviewSubtitle = "Please look over your responses before submitting."

	msgAlreadySubmitted = "Your application has already been submitted."
	msgQuestionMismatch = "That answer is for a different question. Press the button to continue."

	labelStart      = "Start Application"
	labelNext       = "Next Question"
	labelSubmit     = "Submit Application"
	labelSubmitting = "Submitting..."
	labelSubmitted  = "Submitted"
	labelExpired    = "Expired"

	modalTitleMax       = 45
	modalPlaceholderMax = 100
	fieldNameMax        = 256
)

// PendingWarning reminds the applicant to request to join the group first.
func PendingWarning(groupURL string) string {
	group := "Medical Department Roblox group"
	if groupURL != "" {
		group = fmt.Sprintf("[%s](%s)", group, groupURL)
	}
	return fmt.Sprintf("⚠️ **Reminder:** Ensure you have a pending join request for the %s.", group)
}

// ProgressBar renders ten cells for answered/total.
func ProgressBar(answered, total int) string {
	if total <= 0 {
		return "[██████████] (0/0)"
	}
	filled := int(float64(answered)/float64(total)*10 + 0.5)
	if filled < 0 {
		filled = 0
	}
	if filled > 10 {
		filled = 10
	}
	return fmt.Sprintf("[%s%s] (%d/%d)", strings.Repeat("█", filled), strings.Repeat("░", 10-filled), answered, total)
}

// QuestionText renders a question answered by typing in the channel.
func QuestionText(q models.Question, index, total int) string {
	return fmt.Sprintf("%s\nProgress: %s\n\n**Question %d of %d**\n%s\n\n_Type your answer in this channel._",
		headerText, ProgressBar(index, total), index+1, total, q.Prompt)
}

func (m *Machine) content() string {
	var body string
	switch m.state.Phase {
	case PhaseReview:
		body = "Review your answers in the summary below, then press **Submit Application** when you're ready."
	case PhaseSubmitting:
		body = "Submitting your responses for review… please wait."
	case PhaseCompleted:
		body = "Your application has been submitted. You may close this window."
	case PhaseAbandoned:
		body = "This application timed out. Run `/apply` to start again."
	default:
		if m.state.Index == 0 {
			body = "Press **Start Application** to answer the first question.\n\n" + PendingWarning(m.config.GroupURL)
		} else {
			body = "Click **Next Question** to continue."
		}
	}
	return fmt.Sprintf("%s\nProgress: %s\n\n%s", headerText, ProgressBar(m.state.Index, len(m.questions)), body)
}

func (m *Machine) button() Button {
	switch m.state.Phase {
	case PhaseReview:
		return Button{Label: labelSubmit, Style: discordgo.SuccessButton}
	case PhaseSubmitting:
		return Button{Label: labelSubmitting, Style: discordgo.SecondaryButton, Disabled: true}
	case PhaseCompleted:
		return Button{Label: labelSubmitted, Style: discordgo.SecondaryButton, Disabled: true}
	case PhaseAbandoned:
		return Button{Label: labelExpired, Style: discordgo.SecondaryButton, Disabled: true}
	}
	if m.state.Index == 0 {
		return Button{Label: labelStart, Style: discordgo.SuccessButton}
	}
	return Button{Label: labelNext, Style: discordgo.PrimaryButton}
}

func (m *Machine) refresh() RefreshMessage {
	return RefreshMessage{Content: m.content(), Button: m.button()}
}

func (m *Machine) review() ShowReview {
	fields := make([]ReviewField, 0, len(m.questions))
	for _, q := range m.questions {
		fields = append(fields, ReviewField{
			Name:  clip(q.Prompt, fieldNameMax, ""),
			Value: escapeMarkdown(m.validator.Preview(m.state.Answers[q.Code])),
		})
	}
	return ShowReview{Content: reviewIntro, Title: reviewTitle, Intro: reviewSubtitle, Fields: fields}
}

func (m *Machine) modalFor(q models.Question) *Modal {
	if q.Type != models.QuestionLong {
		return nil
	}
	maxLen := q.MaxLen
	if maxLen <= 0 {
		maxLen = m.config.ModalMaxLen
	}
	minLen := 0
	if q.MinLen > 0 && q.MinLen < maxLen {
		minLen = q.MinLen
	}
	return &Modal{
		Title:       clip(q.Prompt, modalTitleMax, "..."),
		Label:       "Your Answer",
		Placeholder: clip(q.Prompt, modalPlaceholderMax, "..."),
		MinLength:   minLen,
		MaxLength:   maxLen,
	}
}

// clip cuts s to limit runes, replacing the tail with suffix when it does.
func clip(s string, limit int, suffix string) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-len([]rune(suffix))]) + suffix
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "~", `\~`, "`", "\\`", "|", `\|`, ">", `\>`,
)

// escapeMarkdown keeps applicant text from being rendered as formatting.
// The placeholder for an empty answer is already formatted and passes through.
func escapeMarkdown(s string) string {
	if s == validateapplicationdata.NoResponseText {
		return s
	}
	return markdownEscaper.Replace(s)
}
