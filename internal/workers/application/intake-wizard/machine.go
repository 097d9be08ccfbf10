// internal/workers/application/intake-wizard/machine.go
package intakewizard

import (
	"context"
	"errors"

	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"
	validateapplicationdata "intake-bot/internal/workers/application/validate-application-data"
)

const (
	TaskType = "intake-wizard"
)

var (
	ErrEmptyQuestionSet = errors.New("EMPTY_QUESTION_SET")
)

// Machine is the wizard for one applicant. It performs no I/O: Handle
// returns the effects for the caller to carry out. Callers serialize
// events per session.
type Machine struct {
	config    *Config
	questions models.QuestionSet
	owner     string
	state     State
	reviewed  bool
	validator *validateapplicationdata.Handler
	logger    logger.Logger
}

func NewMachine(config *Config, questions models.QuestionSet, owner string, log logger.Logger) (*Machine, error) {
	if config == nil {
		config = LoadConfig()
	}
	if len(questions) == 0 {
		return nil, ErrEmptyQuestionSet
	}
	return &Machine{
		config:    config,
		questions: questions,
		owner:     owner,
		state:     State{Phase: PhaseIntro, Answers: make(models.Answers, len(questions))},
		validator: validateapplicationdata.NewHandler(&validateapplicationdata.Config{PreviewLength: config.PreviewLength}, log),
		logger:    logger.ForStage(log, TaskType).With(map[string]interface{}{"discordId": owner}),
	}, nil
}

func (m *Machine) Owner() string { return m.owner }

// State returns a copy of the current state.
func (m *Machine) State() State {
	answers := make(models.Answers, len(m.state.Answers))
	for k, v := range m.state.Answers {
		answers[k] = v
	}
	return State{Phase: m.state.Phase, Index: m.state.Index, Answers: answers}
}

// Intro renders the message shown when the session opens.
func (m *Machine) Intro() RefreshMessage {
	return m.refresh()
}

// Current returns the question awaiting an answer, if any.
func (m *Machine) Current() (models.Question, bool) {
	if m.state.Phase != PhaseQuestion || m.state.Index >= len(m.questions) {
		return models.Question{}, false
	}
	return m.questions[m.state.Index], true
}

// Handle applies ev and returns the new state and the effects to perform.
func (m *Machine) Handle(ev Event) (State, []Effect) {
	before := m.state.Phase
	var effects []Effect

	switch e := ev.(type) {
	case Press:
		effects = m.onPress(e)
	case Answered:
		effects = m.onAnswered(e)
	case TimedOut:
		effects = m.onTimeout()
	case PipelineSucceeded:
		effects = m.onPipelineDone(nil)
	case PipelineFailed:
		effects = m.onPipelineDone(e.Err)
	}

	if m.state.Phase != before {
		m.logger.Debug("wizard transition", map[string]interface{}{
			"from":  string(before),
			"to":    string(m.state.Phase),
			"index": m.state.Index,
		})
	}
	return m.State(), effects
}

func (m *Machine) notOwner(actor string) []Effect {
	err := apperrors.NewNotSessionOwnerError(m.owner, actor)
	return []Effect{Notify{Text: apperrors.UserMessage(err)}}
}

func (m *Machine) onPress(e Press) []Effect {
	if e.Actor != m.owner {
		return m.notOwner(e.Actor)
	}

	switch m.state.Phase {
	case PhaseIntro:
		m.state.Phase = PhaseQuestion
		m.state.Index = 0
		return []Effect{m.present()}
	case PhaseQuestion:
		// a question that was dismissed or failed validation is asked again
		return []Effect{m.present()}
	case PhaseReview:
		if err := validateapplicationdata.Complete(m.questions, m.state.Answers); err != nil {
			return []Effect{Notify{Text: apperrors.UserMessage(err)}}
		}
		m.state.Phase = PhaseSubmitting
		return []Effect{m.refresh(), RunPipeline{Answers: m.State().Answers}}
	case PhaseSubmitting:
		return nil
	case PhaseCompleted:
		return []Effect{Notify{Text: msgAlreadySubmitted}}
	case PhaseAbandoned:
		return []Effect{Notify{Text: apperrors.UserMessage(apperrors.NewSessionTimeoutError(""))}}
	}
	return nil
}

func (m *Machine) present() PresentQuestion {
	q := m.questions[m.state.Index]
	return PresentQuestion{Question: q, Index: m.state.Index, Modal: m.modalFor(q)}
}

func (m *Machine) onAnswered(e Answered) []Effect {
	if e.Actor != m.owner {
		return m.notOwner(e.Actor)
	}
	q, ok := m.Current()
	if !ok {
		// late modal or message after the wizard moved on
		return nil
	}
	if e.Code != q.Code {
		return []Effect{Notify{Text: msgQuestionMismatch}}
	}

	out, err := m.validator.Execute(context.Background(), &validateapplicationdata.Input{
		Question: q,
		Text:     e.Text,
		Source:   e.Source,
	})
	if err != nil {
		return []Effect{Notify{Text: apperrors.UserMessage(err)}, m.refresh()}
	}

	m.state.Answers[q.Code] = out.Answer
	m.state.Index++
	if m.state.Index < len(m.questions) {
		return []Effect{m.refresh()}
	}

	m.state.Phase = PhaseReview
	m.state.Index = len(m.questions)
	effects := []Effect{m.refresh()}
	if !m.reviewed {
		m.reviewed = true
		effects = append(effects, m.review())
	}
	return effects
}

func (m *Machine) onTimeout() []Effect {
	q, ok := m.Current()
	if !ok {
		return nil
	}
	m.state.Phase = PhaseAbandoned
	return []Effect{
		m.refresh(),
		Notify{Text: apperrors.UserMessage(apperrors.NewSessionTimeoutError(q.Code))},
		EndSession{Reason: PhaseAbandoned},
	}
}

func (m *Machine) onPipelineDone(err error) []Effect {
	if m.state.Phase != PhaseSubmitting {
		return nil
	}
	if err == nil {
		m.state.Phase = PhaseCompleted
		return []Effect{m.refresh(), EndSession{Reason: PhaseCompleted}}
	}

	m.state.Phase = PhaseReview
	m.logger.Warn("submission failed, back to review", map[string]interface{}{"error": err})
	return []Effect{m.refresh(), Notify{Text: apperrors.UserMessage(err)}}
}
