// internal/app/interactions.go
package app

import (
	"context"
	"strings"

	"intake-bot/internal/common/discord"
	"intake-bot/internal/common/metrics"
	intakewizard "intake-bot/internal/workers/application/intake-wizard"
	verifyidentity "intake-bot/internal/workers/application/verify-identity"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

const (
	prefixNext  = "apply:next:"
	prefixModal = "apply:modal:"

	answerInputID = "answer"

	msgSessionExpired = "This application session has expired. Run `/apply` to start again."
	msgSetupFailed    = "The bot is still starting up. Please try again in a minute."
	msgNoAnswer       = "No answer was received. Please try again."
)

func nextID(sessionID string) string { return prefixNext + sessionID }

func modalID(sessionID, code string) string { return prefixModal + sessionID + ":" + code }

// parseModalID splits "apply:modal:<sid>:<code>".
func parseModalID(customID string) (sessionID, code string, ok bool) {
	rest, found := strings.CutPrefix(customID, prefixModal)
	if !found {
		return "", "", false
	}
	sessionID, code, ok = strings.Cut(rest, ":")
	return sessionID, code, ok && sessionID != "" && code != ""
}

// HandleInteraction dispatches one interaction.
func (a *App) HandleInteraction(ctx context.Context, i *discordgo.Interaction) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if err := a.Bootstrap(ctx); err != nil {
			a.logger.Error("bootstrap failed", map[string]interface{}{"error": err})
			a.respondEphemeral(i, msgSetupFailed)
			return
		}
		data := i.ApplicationCommandData()
		switch data.Name {
		case CommandApply:
			a.apply(ctx, i)
		case CommandVerify:
			a.verify(ctx, i, data)
		}
	case discordgo.InteractionMessageComponent:
		a.press(i)
	case discordgo.InteractionModalSubmit:
		a.modalSubmit(i)
	}
}

func (a *App) apply(ctx context.Context, i *discordgo.Interaction) {
	userID := discord.InteractionUserID(i)
	fields := map[string]interface{}{"discordId": userID, "command": CommandApply}

	ctx, cancel := context.WithTimeout(ctx, a.config.CommandTimeout)
	defer cancel()

	if err := a.deps.Gateway.CheckEligible(ctx, userID); err != nil {
		a.respondEphemeral(i, a.errs.HandleInteractionError(err, fields))
		return
	}
	if err := a.deps.Gateway.EnsureApplicantRow(ctx, userID); err != nil {
		a.respondEphemeral(i, a.errs.HandleInteractionError(err, fields))
		return
	}

	m, err := intakewizard.NewMachine(a.config.Wizard, a.deps.Questions, userID, a.logger)
	if err != nil {
		a.respondEphemeral(i, a.errs.HandleInteractionError(err, fields))
		return
	}

	sess := newSession(uuid.New().String(), userID, i.ChannelID, m, i)
	if old := a.sessions.start(sess); old != nil {
		a.logger.Info("previous session replaced", map[string]interface{}{"discordId": userID, "sessionId": old.id})
	}
	metrics.ApplicationsStarted.Inc()

	intro := m.Intro()
	err = a.deps.Session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    intro.Content,
			Components: buttonRow(sess.id, intro.Button),
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		a.logger.Warn("failed to open wizard", map[string]interface{}{"discordId": userID, "error": err})
		a.sessions.end(sess)
	}
}

func (a *App) press(i *discordgo.Interaction) {
	data := i.MessageComponentData()
	sessionID, ok := strings.CutPrefix(data.CustomID, prefixNext)
	if !ok {
		return
	}
	sess, ok := a.sessions.get(sessionID)
	if !ok {
		a.respondEphemeral(i, msgSessionExpired)
		return
	}

	actor := discord.InteractionUserID(i)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if actor == sess.userID {
		sess.last = i
	}
	_, effects := sess.machine.Handle(intakewizard.Press{Actor: actor})
	a.perform(sess, i, effects)
}

func (a *App) modalSubmit(i *discordgo.Interaction) {
	data := i.ModalSubmitData()
	sessionID, code, ok := parseModalID(data.CustomID)
	if !ok {
		return
	}
	sess, ok := a.sessions.get(sessionID)
	if !ok {
		a.respondEphemeral(i, msgSessionExpired)
		return
	}
	text, ok := modalValue(data)
	if !ok {
		a.respondEphemeral(i, msgNoAnswer)
		return
	}

	actor := discord.InteractionUserID(i)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if actor == sess.userID {
		sess.last = i
	}
	_, effects := sess.machine.Handle(intakewizard.Answered{
		Actor:  actor,
		Code:   code,
		Text:   text,
		Source: sourceModal,
	})
	a.perform(sess, i, effects)
}

func modalValue(data discordgo.ModalSubmitInteractionData) (string, bool) {
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok && input.CustomID == answerInputID {
				return input.Value, true
			}
		}
	}
	return "", false
}

func (a *App) verify(ctx context.Context, i *discordgo.Interaction, data discordgo.ApplicationCommandInteractionData) {
	userID := discord.InteractionUserID(i)
	if a.deps.Verifier == nil {
		a.respondEphemeral(i, msgSetupFailed)
		return
	}

	var username string
	for _, opt := range data.Options {
		if opt.Name == optionUsername && opt.Type == discordgo.ApplicationCommandOptionString {
			username = strings.TrimSpace(opt.StringValue())
		}
	}

	if err := a.deps.Session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		a.logger.Warn("failed to defer verify reply", map[string]interface{}{"discordId": userID, "error": err})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.CommandTimeout)
	defer cancel()

	out, err := a.deps.Verifier.Execute(ctx, &verifyidentity.Input{DiscordID: userID, RobloxUsername: username})
	var msg string
	switch {
	case out != nil && out.Message != "":
		msg = out.Message
		if err != nil {
			a.errs.HandleInteractionError(err, map[string]interface{}{"discordId": userID, "command": CommandVerify})
		}
	case err != nil:
		msg = a.errs.HandleInteractionError(err, map[string]interface{}{"discordId": userID, "command": CommandVerify})
	}
	a.editResponse(i, &discordgo.WebhookEdit{Content: &msg})
}

func (a *App) respondEphemeral(i *discordgo.Interaction, text string) {
	err := a.deps.Session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: text, Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		a.logger.Warn("interaction reply failed", map[string]interface{}{"error": err})
	}
}

func (a *App) editResponse(i *discordgo.Interaction, edit *discordgo.WebhookEdit) {
	if i == nil {
		return
	}
	if _, err := a.deps.Session.InteractionResponseEdit(i, edit); err != nil {
		// tokens expire after fifteen minutes
		a.logger.Warn("interaction edit failed", map[string]interface{}{"error": err})
	}
}

func (a *App) followup(i *discordgo.Interaction, params *discordgo.WebhookParams) {
	if i == nil {
		return
	}
	params.Flags |= discordgo.MessageFlagsEphemeral
	if _, err := a.deps.Session.FollowupMessageCreate(i, true, params); err != nil {
		a.logger.Warn("followup failed", map[string]interface{}{"error": err})
	}
}
