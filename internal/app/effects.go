// internal/app/effects.go
package app

import (
	"context"
	"errors"

	"intake-bot/internal/common/discord"
	"intake-bot/internal/models"
	intakewizard "intake-bot/internal/workers/application/intake-wizard"
	processapplication "intake-bot/internal/workers/application/process-application"
	validateapplicationdata "intake-bot/internal/workers/application/validate-application-data"

	"github.com/bwmarrin/discordgo"
)

const (
	sourceModal   = validateapplicationdata.SourceModal
	sourceMessage = validateapplicationdata.SourceMessage
)

func buttonRow(sessionID string, b intakewizard.Button) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    b.Label,
				Style:    b.Style,
				Disabled: b.Disabled,
				CustomID: nextID(sessionID),
			},
		}},
	}
}

func modalResponse(sessionID string, p intakewizard.PresentQuestion) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: modalID(sessionID, p.Question.Code),
			Title:    p.Modal.Title,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    answerInputID,
						Label:       p.Modal.Label,
						Style:       discordgo.TextInputParagraph,
						Placeholder: p.Modal.Placeholder,
						Required:    true,
						MinLength:   p.Modal.MinLength,
						MaxLength:   p.Modal.MaxLength,
					},
				}},
			},
		},
	}
}

func reviewParams(r intakewizard.ShowReview) *discordgo.WebhookParams {
	embed := &discordgo.MessageEmbed{Title: r.Title, Description: r.Intro}
	for _, f := range r.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value})
	}
	return &discordgo.WebhookParams{Content: r.Content, Embeds: []*discordgo.MessageEmbed{embed}}
}

// primaryFirst moves the effect that answers the interaction to the front:
// an interaction's first reply must update the wizard or open a modal.
func primaryFirst(effects []intakewizard.Effect) []intakewizard.Effect {
	for idx, eff := range effects {
		switch eff.(type) {
		case intakewizard.PresentQuestion, intakewizard.RefreshMessage:
			if idx == 0 {
				return effects
			}
			ordered := make([]intakewizard.Effect, 0, len(effects))
			ordered = append(ordered, eff)
			ordered = append(ordered, effects[:idx]...)
			return append(ordered, effects[idx+1:]...)
		}
	}
	return effects
}

// perform carries out effects for sess, which must be locked. i is the
// interaction that caused them; it is nil for timer and pipeline events,
// which edit the wizard through the owner's latest interaction.
func (a *App) perform(sess *session, i *discordgo.Interaction, effects []intakewizard.Effect) {
	responded := i == nil
	respond := func(resp *discordgo.InteractionResponse) {
		responded = true
		if err := a.deps.Session.InteractionRespond(i, resp); err != nil {
			a.logger.Warn("interaction reply failed", map[string]interface{}{"sessionId": sess.id, "error": err})
		}
	}
	if i != nil {
		effects = primaryFirst(effects)
	}

	for _, eff := range effects {
		switch e := eff.(type) {
		case intakewizard.PresentQuestion:
			if responded {
				continue
			}
			if e.Modal != nil {
				respond(modalResponse(sess.id, e))
				continue
			}
			respond(&discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseUpdateMessage,
				Data: &discordgo.InteractionResponseData{
					Content:    intakewizard.QuestionText(e.Question, e.Index, len(a.deps.Questions)),
					Components: []discordgo.MessageComponent{},
				},
			})
			go a.awaitAnswer(sess, e.Question)

		case intakewizard.RefreshMessage:
			components := buttonRow(sess.id, e.Button)
			if !responded {
				respond(&discordgo.InteractionResponse{
					Type: discordgo.InteractionResponseUpdateMessage,
					Data: &discordgo.InteractionResponseData{Content: e.Content, Components: components},
				})
				continue
			}
			content := e.Content
			a.editResponse(sess.last, &discordgo.WebhookEdit{Content: &content, Components: &components})

		case intakewizard.Notify:
			if !responded {
				respond(&discordgo.InteractionResponse{
					Type: discordgo.InteractionResponseChannelMessageWithSource,
					Data: &discordgo.InteractionResponseData{Content: e.Text, Flags: discordgo.MessageFlagsEphemeral},
				})
				continue
			}
			target := i
			if target == nil {
				target = sess.last
			}
			a.followup(target, &discordgo.WebhookParams{Content: e.Text})

		case intakewizard.ShowReview:
			a.followup(sess.last, reviewParams(e))

		case intakewizard.RunPipeline:
			go a.runPipeline(sess, e.Answers)

		case intakewizard.EndSession:
			a.sessions.end(sess)
			a.logger.Info("session ended", map[string]interface{}{
				"sessionId": sess.id,
				"discordId": sess.userID,
				"reason":    string(e.Reason),
			})
		}
	}

	if !responded {
		// nothing to show; acknowledge so the client stops spinning
		respond(&discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate})
	}
}

// awaitAnswer collects a typed answer for q or times the session out.
func (a *App) awaitAnswer(sess *session, q models.Question) {
	msg, err := a.deps.Waiter.Wait(sess.ctx, sess.channelID, sess.userID, a.config.Wizard.IdleTimeout)
	if err != nil && !errors.Is(err, discord.ErrWaitTimeout) {
		// replaced by a newer wait, or the session ended
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !a.sessions.current(sess) {
		return
	}

	var ev intakewizard.Event = intakewizard.TimedOut{}
	if err == nil {
		if delErr := a.deps.Session.ChannelMessageDelete(msg.ChannelID, msg.ID); delErr != nil {
			a.logger.Debug("could not remove typed answer", map[string]interface{}{"error": delErr})
		}
		ev = intakewizard.Answered{Actor: sess.userID, Code: q.Code, Text: msg.Content, Source: sourceMessage}
	}
	_, effects := sess.machine.Handle(ev)
	a.perform(sess, nil, effects)
}

// runPipeline submits answers outside the session lock. Results for a
// session that was replaced in the meantime are dropped.
func (a *App) runPipeline(sess *session, answers models.Answers) {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.PipelineTimeout)
	defer cancel()

	fields := map[string]interface{}{"sessionId": sess.id, "discordId": sess.userID}
	out, err := a.deps.Pipeline.Execute(ctx, &processapplication.Input{
		DiscordID: sess.userID,
		Answers:   answers,
		OnSubmitted: func(int64) {
			a.followup(sess.lastInteraction(), &discordgo.WebhookParams{
				Content: processapplication.SubmittedNotice + "\n\n" + intakewizard.PendingWarning(a.config.Wizard.GroupURL),
			})
		},
	})

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !a.sessions.current(sess) {
		a.logger.Info("discarding result for a replaced session", fields)
		return
	}

	var ev intakewizard.Event = intakewizard.PipelineSucceeded{}
	if err != nil {
		a.errs.HandleInteractionError(err, fields)
		ev = intakewizard.PipelineFailed{Err: err}
	}
	_, effects := sess.machine.Handle(ev)
	a.perform(sess, nil, effects)

	if err == nil && out != nil && out.Message != "" {
		a.followup(sess.last, &discordgo.WebhookParams{Content: out.Message})
	}
}
