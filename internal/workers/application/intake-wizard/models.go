// internal/workers/application/intake-wizard/models.go
package intakewizard

import (
	validateapplicationdata "intake-bot/internal/workers/application/validate-application-data"
	"intake-bot/internal/models"

	"github.com/bwmarrin/discordgo"
)

type Phase string

const (
	PhaseIntro      Phase = "intro"
	PhaseQuestion   Phase = "question"
	PhaseReview     Phase = "review"
	PhaseSubmitting Phase = "submitting"
	PhaseCompleted  Phase = "completed"
	PhaseAbandoned  Phase = "abandoned"
)

// Terminal reports whether no further event can change the session.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseAbandoned
}

// State is a snapshot of one wizard session. Index is the question being
// asked while in PhaseQuestion and the question count once in review.
type State struct {
	Phase   Phase          `json:"phase"`
	Index   int            `json:"index"`
	Answers models.Answers `json:"answers"`
}

// Event is something the applicant or the pipeline did.
type Event interface {
	isEvent()
}

// Press is a click on the session's single button.
type Press struct {
	Actor string
}

// Answered carries the text collected for the current question.
type Answered struct {
	Actor  string
	Code   string
	Text   string
	Source validateapplicationdata.Source
}

// TimedOut fires when a typed answer did not arrive within the idle timeout.
type TimedOut struct{}

type PipelineSucceeded struct{}

type PipelineFailed struct {
	Err error
}

func (Press) isEvent()             {}
func (Answered) isEvent()          {}
func (TimedOut) isEvent()          {}
func (PipelineSucceeded) isEvent() {}
func (PipelineFailed) isEvent()    {}

// Effect is an instruction for the chat adapter.
type Effect interface {
	isEffect()
}

// Button describes the session's single call-to-action.
type Button struct {
	Label    string
	Style    discordgo.ButtonStyle
	Disabled bool
}

// RefreshMessage rewrites the wizard message.
type RefreshMessage struct {
	Content string
	Button  Button
}

// PresentQuestion asks a question. Long questions carry a Modal; short ones
// are answered by the applicant's next message in the channel.
type PresentQuestion struct {
	Question models.Question
	Index    int
	Modal    *Modal
}

// Modal is the one-shot form used for long answers.
type Modal struct {
	Title       string
	Label       string
	Placeholder string
	MinLength   int
	MaxLength   int
}

// ReviewField is one answer on the review card.
type ReviewField struct {
	Name  string
	Value string
}

// ShowReview sends the review card once per session.
type ShowReview struct {
	Content string
	Title   string
	Intro   string
	Fields  []ReviewField
}

// Notify is an ephemeral reply to the actor.
type Notify struct {
	Text string
}

// RunPipeline hands a frozen copy of the answers to the submission pipeline.
type RunPipeline struct {
	Answers models.Answers
}

// EndSession releases the session.
type EndSession struct {
	Reason Phase
}

func (RefreshMessage) isEffect()  {}
func (PresentQuestion) isEffect() {}
func (ShowReview) isEffect()      {}
func (Notify) isEffect()          {}
func (RunPipeline) isEffect()     {}
func (EndSession) isEffect()      {}
