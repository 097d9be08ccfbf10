// internal/app/app_test.go
package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"intake-bot/internal/common/discord"
	"intake-bot/internal/common/discord/discordtest"
	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"
	intakewizard "intake-bot/internal/workers/application/intake-wizard"
	processapplication "intake-bot/internal/workers/application/process-application"
	verifyidentity "intake-bot/internal/workers/application/verify-identity"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	owner     = "1001"
	channelID = "chan-1"
	waitFor   = 2 * time.Second
	tick      = 5 * time.Millisecond

	experienceText = "Two years running shifts in a hospital RP group."
)

func testQuestions() models.QuestionSet {
	return models.QuestionSet{
		{Code: models.QuestionRobloxUsername, Prompt: "What is your exact Roblox username?", Type: models.QuestionShort, Required: true, MinLen: 3, MaxLen: 32},
		{Code: "experience", Prompt: "List relevant experience.", Type: models.QuestionLong, Required: true, MinLen: 10, MaxLen: 200},
	}
}

type fakeGateway struct {
	mu       sync.Mutex
	eligible error
	ensured  []string
}

func (f *fakeGateway) CheckEligible(context.Context, string) error { return f.eligible }

func (f *fakeGateway) EnsureApplicantRow(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, id)
	return nil
}

type fakePipeline struct {
	mu       sync.Mutex
	inputs   []*processapplication.Input
	release  chan struct{}
	returned chan struct{}
	out      *processapplication.Output
	err      error
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		returned: make(chan struct{}, 8),
		out:      &processapplication.Output{RunID: 31, Decision: models.DecisionAccept, Message: "✅ Application accepted for <@1001>!"},
	}
}

func (f *fakePipeline) Execute(_ context.Context, in *processapplication.Input) (*processapplication.Output, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	release := f.release
	out, err := f.out, f.err
	f.mu.Unlock()

	if in.OnSubmitted != nil {
		in.OnSubmitted(31)
	}
	if release != nil {
		<-release
	}
	defer func() { f.returned <- struct{}{} }()
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakePipeline) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

type fakeVerifier struct {
	input *verifyidentity.Input
	out   *verifyidentity.Output
	err   error
}

func (f *fakeVerifier) Execute(_ context.Context, in *verifyidentity.Input) (*verifyidentity.Output, error) {
	f.input = in
	return f.out, f.err
}

type fixture struct {
	app      *App
	session  *discordtest.Session
	waiter   *discord.MessageWaiter
	gateway  *fakeGateway
	pipeline *fakePipeline
	verifier *fakeVerifier
	schema   int
}

func newFixture(t *testing.T, configure ...func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		session:  discordtest.NewSession(),
		waiter:   discord.NewMessageWaiter(),
		gateway:  &fakeGateway{},
		pipeline: newFakePipeline(),
		verifier: &fakeVerifier{},
	}
	cfg := LoadConfig()
	cfg.AppID = "42"
	cfg.GuildID = "guild"
	for _, fn := range configure {
		fn(cfg)
	}

	a, err := New(cfg, Deps{
		Session:   f.session,
		Waiter:    f.waiter,
		Questions: testQuestions(),
		Gateway:   f.gateway,
		Pipeline:  f.pipeline,
		Verifier:  f.verifier,
		Schema: func(context.Context) error {
			f.schema++
			return nil
		},
	}, logger.NewTestLogger(t))
	require.NoError(t, err)
	f.app = a
	return f
}

func member(user string) *discordgo.Member {
	return &discordgo.Member{User: &discordgo.User{ID: user}}
}

func command(name, user string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        "cmd-" + name,
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: channelID,
		Member:    member(user),
		Data:      discordgo.ApplicationCommandInteractionData{Name: name, Options: opts},
	}
}

func press(customID, user string) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        "press",
		Type:      discordgo.InteractionMessageComponent,
		ChannelID: channelID,
		Member:    member(user),
		Data:      discordgo.MessageComponentInteractionData{CustomID: customID, ComponentType: discordgo.ButtonComponent},
	}
}

func modalSubmit(customID, user, value string) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        "modal",
		Type:      discordgo.InteractionModalSubmit,
		ChannelID: channelID,
		Member:    member(user),
		Data: discordgo.ModalSubmitInteractionData{
			CustomID: customID,
			Components: []discordgo.MessageComponent{
				&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: answerInputID, Value: value},
				}},
			},
		},
	}
}

func lastResponse(t *testing.T, s *discordtest.Session) *discordgo.InteractionResponse {
	t.Helper()
	responses := s.ResponsesSnapshot()
	require.NotEmpty(t, responses)
	return responses[len(responses)-1].Response
}

func buttonOf(t *testing.T, components []discordgo.MessageComponent) discordgo.Button {
	t.Helper()
	require.Len(t, components, 1)
	row, ok := components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 1)
	b, ok := row.Components[0].(discordgo.Button)
	require.True(t, ok)
	return b
}

func lastEditButton(t *testing.T, s *discordtest.Session) discordgo.Button {
	t.Helper()
	edits := s.EditsSnapshot()
	require.NotEmpty(t, edits)
	last := edits[len(edits)-1].Edit
	require.NotNil(t, last.Components)
	return buttonOf(t, *last.Components)
}

func hasEditLabel(s *discordtest.Session, label string) bool {
	for _, e := range s.EditsSnapshot() {
		if e.Edit.Components == nil || len(*e.Edit.Components) == 0 {
			continue
		}
		row, ok := (*e.Edit.Components)[0].(discordgo.ActionsRow)
		if !ok || len(row.Components) == 0 {
			continue
		}
		if b, ok := row.Components[0].(discordgo.Button); ok && b.Label == label {
			return true
		}
	}
	return false
}

func hasFollowup(s *discordtest.Session, text string) bool {
	for _, got := range s.FollowupTexts() {
		if got == text {
			return true
		}
	}
	return false
}

// open runs /apply and returns the session id carried by the wizard button.
func (f *fixture) open(t *testing.T) string {
	t.Helper()
	f.app.HandleInteraction(context.Background(), command(CommandApply, owner))
	resp := lastResponse(t, f.session)
	require.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	b := buttonOf(t, resp.Data.Components)
	sid, ok := strings.CutPrefix(b.CustomID, prefixNext)
	require.True(t, ok, b.CustomID)
	return sid
}

// toReview answers both questions.
func (f *fixture) toReview(t *testing.T, sid string) {
	t.Helper()
	f.app.HandleInteraction(context.Background(), press(nextID(sid), owner))
	require.Eventually(t, func() bool { return f.waiter.Pending(channelID, owner) }, waitFor, tick)
	require.True(t, f.waiter.Deliver(&discordgo.Message{
		ID:        "typed-1",
		ChannelID: channelID,
		Content:   "  RaeFan99 ",
		Author:    &discordgo.User{ID: owner},
	}))
	require.Eventually(t, func() bool { return len(f.session.EditsSnapshot()) >= 1 }, waitFor, tick)

	f.app.HandleInteraction(context.Background(), press(nextID(sid), owner))
	f.app.HandleInteraction(context.Background(), modalSubmit(modalID(sid, "experience"), owner, experienceText))
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(nil, Deps{}, logger.NewNoOpLogger())
	assert.ErrorIs(t, err, ErrMissingDependency)

	_, err = New(nil, Deps{
		Session:  discordtest.NewSession(),
		Gateway:  &fakeGateway{},
		Pipeline: newFakePipeline(),
	}, logger.NewNoOpLogger())
	assert.ErrorIs(t, err, ErrMissingDependency, "an empty question set cannot run a wizard")
}

func TestApply_OpensWizard(t *testing.T) {
	f := newFixture(t)
	sid := f.open(t)

	resp := lastResponse(t, f.session)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	assert.Contains(t, resp.Data.Content, "Progress: [░░░░░░░░░░] (0/2)")
	b := buttonOf(t, resp.Data.Components)
	assert.Equal(t, "Start Application", b.Label)
	assert.Equal(t, discordgo.SuccessButton, b.Style)

	assert.NotEmpty(t, sid)
	assert.Equal(t, 1, f.app.Sessions().Len())
	assert.Equal(t, []string{owner}, f.gateway.ensured)
	assert.Len(t, f.session.Commands, 2, "commands are registered before the first command runs")
	assert.Equal(t, 1, f.schema)
}

func TestApply_CooldownBlocks(t *testing.T) {
	f := newFixture(t)
	f.gateway.eligible = apperrors.NewCooldownActiveError(26 * time.Hour)

	f.app.HandleInteraction(context.Background(), command(CommandApply, owner))

	resp := lastResponse(t, f.session)
	assert.Equal(t, "You must wait **1d 2h** before applying again.", resp.Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	assert.Equal(t, 0, f.app.Sessions().Len())
	assert.Empty(t, f.gateway.ensured)
}

func TestWizard_FullFlow(t *testing.T) {
	f := newFixture(t)
	sid := f.open(t)

	// short question is typed into the channel
	f.app.HandleInteraction(context.Background(), press(nextID(sid), owner))
	resp := lastResponse(t, f.session)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
	assert.Contains(t, resp.Data.Content, "**Question 1 of 2**\nWhat is your exact Roblox username?")
	assert.Empty(t, resp.Data.Components)

	require.Eventually(t, func() bool { return f.waiter.Pending(channelID, owner) }, waitFor, tick)
	require.True(t, f.waiter.Deliver(&discordgo.Message{
		ID: "typed-1", ChannelID: channelID, Content: "RaeFan99", Author: &discordgo.User{ID: owner},
	}))
	require.Eventually(t, func() bool { return len(f.session.EditsSnapshot()) == 1 }, waitFor, tick)
	edit := f.session.EditsSnapshot()[0].Edit
	assert.Contains(t, *edit.Content, "(1/2)")
	assert.Equal(t, "Next Question", lastEditButton(t, f.session).Label)
	assert.Equal(t, []string{channelID + "/typed-1"}, f.session.DeletedSnapshot())

	// long question opens a modal
	f.app.HandleInteraction(context.Background(), press(nextID(sid), owner))
	resp = lastResponse(t, f.session)
	require.Equal(t, discordgo.InteractionResponseModal, resp.Type)
	assert.Equal(t, modalID(sid, "experience"), resp.Data.CustomID)
	assert.Equal(t, "List relevant experience.", resp.Data.Title)

	f.app.HandleInteraction(context.Background(), modalSubmit(modalID(sid, "experience"), owner, experienceText))
	resp = lastResponse(t, f.session)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
	assert.Equal(t, "Submit Application", buttonOf(t, resp.Data.Components).Label)

	followups := f.session.FollowupsSnapshot()
	require.Len(t, followups, 1)
	require.Len(t, followups[0].Params.Embeds, 1)
	review := followups[0].Params.Embeds[0]
	assert.Equal(t, "Application Review", review.Title)
	require.Len(t, review.Fields, 2)
	assert.Equal(t, "RaeFan99", review.Fields[0].Value)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, followups[0].Params.Flags)

	// submit
	f.app.HandleInteraction(context.Background(), press(nextID(sid), owner))
	resp = lastResponse(t, f.session)
	submitting := buttonOf(t, resp.Data.Components)
	assert.Equal(t, "Submitting...", submitting.Label)
	assert.True(t, submitting.Disabled)

	require.Eventually(t, func() bool { return f.app.Sessions().Len() == 0 }, waitFor, tick)
	assert.Equal(t, 1, f.pipeline.calls())
	assert.Equal(t, models.Answers{
		models.QuestionRobloxUsername: "RaeFan99",
		"experience":                  experienceText,
	}, f.pipeline.inputs[0].Answers)

	submitted := lastEditButton(t, f.session)
	assert.Equal(t, "Submitted", submitted.Label)
	assert.True(t, submitted.Disabled)
	assert.True(t, hasFollowup(f.session, processapplication.SubmittedNotice+"\n\n"+intakewizard.PendingWarning("")))
	require.Eventually(t, func() bool { return hasFollowup(f.session, "✅ Application accepted for <@1001>!") }, waitFor, tick)
}

func TestWizard_OtherUserCannotDrive(t *testing.T) {
	f := newFixture(t)
	sid := f.open(t)

	f.app.HandleInteraction(context.Background(), press(nextID(sid), "2002"))

	resp := lastResponse(t, f.session)
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	assert.Equal(t, "This isn’t your application.", resp.Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	assert.False(t, f.waiter.Pending(channelID, "2002"))
	assert.False(t, f.waiter.Pending(channelID, owner), "the owner's wizard did not advance")
}

func TestWizard_UnknownSessionHasExpired(t *testing.T) {
	f := newFixture(t)

	f.app.HandleInteraction(context.Background(), press(nextID("gone"), owner))
	assert.Equal(t, msgSessionExpired, lastResponse(t, f.session).Data.Content)

	f.app.HandleInteraction(context.Background(), modalSubmit(modalID("gone", "experience"), owner, experienceText))
	assert.Equal(t, msgSessionExpired, lastResponse(t, f.session).Data.Content)
}

func TestWizard_ModalValidationFailureStaysOnQuestion(t *testing.T) {
	f := newFixture(t)
	sid := f.open(t)
	f.app.HandleInteraction(context.Background(), press(nextID(sid), owner))
	require.Eventually(t, func() bool { return f.waiter.Pending(channelID, owner) }, waitFor, tick)
	f.waiter.Deliver(&discordgo.Message{ID: "typed-1", ChannelID: channelID, Content: "RaeFan99", Author: &discordgo.User{ID: owner}})
	require.Eventually(t, func() bool { return len(f.session.EditsSnapshot()) == 1 }, waitFor, tick)

	f.app.HandleInteraction(context.Background(), modalSubmit(modalID(sid, "experience"), owner, "too short"))

	resp := lastResponse(t, f.session)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type, "the wizard is refreshed before the notice")
	assert.Equal(t, "Next Question", buttonOf(t, resp.Data.Components).Label)
	assert.Equal(t, []string{"Please provide at least **10** characters."}, f.session.FollowupTexts())
}

func TestWizard_IdleTimeoutAbandons(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Wizard.IdleTimeout = 30 * time.Millisecond })
	sid := f.open(t)

	f.app.HandleInteraction(context.Background(), press(nextID(sid), owner))
	require.Eventually(t, func() bool { return f.app.Sessions().Len() == 0 }, waitFor, tick)

	expired := lastEditButton(t, f.session)
	assert.Equal(t, "Expired", expired.Label)
	assert.True(t, expired.Disabled)
	assert.True(t, hasFollowup(f.session, "⏰ Application timed out. Please restart with `/apply`."))

	f.app.HandleInteraction(context.Background(), press(nextID(sid), owner))
	assert.Equal(t, msgSessionExpired, lastResponse(t, f.session).Data.Content, "a timed out wizard must be restarted")
	assert.Zero(t, f.pipeline.calls())
}

func TestWizard_PipelineFailureReturnsToReview(t *testing.T) {
	f := newFixture(t)
	f.pipeline.err = apperrors.NewScoringUnavailableError(errors.New("upstream 503"))
	sid := f.open(t)
	f.toReview(t, sid)

	f.app.HandleInteraction(context.Background(), press(nextID(sid), owner))
	require.Eventually(t, func() bool { return hasFollowup(f.session, "AI review failed: upstream 503") }, waitFor, tick)

	again := lastEditButton(t, f.session)
	assert.Equal(t, "Submit Application", again.Label)
	assert.False(t, again.Disabled)
	assert.Equal(t, 1, f.app.Sessions().Len())

	f.pipeline.mu.Lock()
	f.pipeline.err = nil
	f.pipeline.mu.Unlock()
	f.app.HandleInteraction(context.Background(), press(nextID(sid), owner))
	require.Eventually(t, func() bool { return f.app.Sessions().Len() == 0 }, waitFor, tick)
	assert.Equal(t, 2, f.pipeline.calls())
}

func TestWizard_DoubleSubmitRunsOnce(t *testing.T) {
	f := newFixture(t)
	f.pipeline.release = make(chan struct{})
	sid := f.open(t)
	f.toReview(t, sid)

	f.app.HandleInteraction(context.Background(), press(nextID(sid), owner))
	f.app.HandleInteraction(context.Background(), press(nextID(sid), owner))

	resp := lastResponse(t, f.session)
	assert.Equal(t, discordgo.InteractionResponseDeferredMessageUpdate, resp.Type, "second press is only acknowledged")

	close(f.pipeline.release)
	require.Eventually(t, func() bool { return f.app.Sessions().Len() == 0 }, waitFor, tick)
	assert.Equal(t, 1, f.pipeline.calls())
}

func TestApply_ReplacesSessionAndDropsLateResult(t *testing.T) {
	f := newFixture(t)
	f.pipeline.release = make(chan struct{})
	first := f.open(t)
	f.toReview(t, first)
	f.app.HandleInteraction(context.Background(), press(nextID(first), owner))
	require.Eventually(t, func() bool { return f.pipeline.calls() == 1 }, waitFor, tick)

	second := f.open(t)
	require.NotEqual(t, first, second)
	assert.Equal(t, 1, f.app.Sessions().Len())

	close(f.pipeline.release)
	select {
	case <-f.pipeline.returned:
	case <-time.After(waitFor):
		t.Fatal("pipeline never returned")
	}
	assert.Never(t, func() bool { return hasEditLabel(f.session, "Submitted") }, 100*time.Millisecond, tick)
	assert.Equal(t, 1, f.app.Sessions().Len(), "the new session survives the old result")

	f.app.HandleInteraction(context.Background(), press(nextID(first), owner))
	assert.Equal(t, msgSessionExpired, lastResponse(t, f.session).Data.Content)
}

func TestVerify_LinksAccount(t *testing.T) {
	f := newFixture(t)
	f.verifier.out = &verifyidentity.Output{Message: "Successfully verified as RaeFan99!"}

	f.app.HandleInteraction(context.Background(), command(CommandVerify, owner,
		&discordgo.ApplicationCommandInteractionDataOption{
			Name:  optionUsername,
			Type:  discordgo.ApplicationCommandOptionString,
			Value: " RaeFan99 ",
		}))

	resp := lastResponse(t, f.session)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, resp.Type)
	assert.Equal(t, &verifyidentity.Input{DiscordID: owner, RobloxUsername: "RaeFan99"}, f.verifier.input)

	edits := f.session.EditsSnapshot()
	require.Len(t, edits, 1)
	assert.Equal(t, "Successfully verified as RaeFan99!", *edits[0].Edit.Content)
}

func TestVerify_ErrorWithoutMessage(t *testing.T) {
	f := newFixture(t)
	f.verifier.err = errors.New("boom")

	f.app.HandleInteraction(context.Background(), command(CommandVerify, owner,
		&discordgo.ApplicationCommandInteractionDataOption{Name: optionUsername, Type: discordgo.ApplicationCommandOptionString, Value: "x"}))

	edits := f.session.EditsSnapshot()
	require.Len(t, edits, 1)
	assert.Equal(t, "Sorry, something went wrong running that command.", *edits[0].Edit.Content)
}

func TestBootstrap_RunsOnceAndRetriesFailure(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.app.deps.Schema = func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("connection refused")
		}
		return nil
	}

	f.app.HandleInteraction(context.Background(), command(CommandApply, owner))
	assert.Equal(t, msgSetupFailed, lastResponse(t, f.session).Data.Content)
	assert.Empty(t, f.session.Commands)

	f.app.HandleInteraction(context.Background(), command(CommandApply, owner))
	f.app.HandleInteraction(context.Background(), command(CommandApply, "2002"))
	assert.Equal(t, 2, calls)
	assert.Len(t, f.session.Commands, 2)
	assert.Equal(t, 2, f.app.Sessions().Len())
}

func TestParseModalID(t *testing.T) {
	tests := []struct {
		in       string
		wantSID  string
		wantCode string
		wantOK   bool
	}{
		{in: "apply:modal:abc:experience", wantSID: "abc", wantCode: "experience", wantOK: true},
		{in: "apply:modal:abc:", wantOK: false},
		{in: "apply:modal:abc", wantOK: false},
		{in: "apply:next:abc", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			sid, code, ok := parseModalID(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantSID, sid)
				assert.Equal(t, tt.wantCode, code)
			}
		})
	}
}

func TestPrimaryFirst(t *testing.T) {
	notify := intakewizard.Notify{Text: "x"}
	refresh := intakewizard.RefreshMessage{Content: "y"}
	got := primaryFirst([]intakewizard.Effect{notify, refresh})
	assert.Equal(t, []intakewizard.Effect{refresh, notify}, got)

	only := []intakewizard.Effect{notify}
	assert.Equal(t, only, primaryFirst(only))
}
