// internal/workers/application/check-priority-routing/handler_test.go
package checkpriorityrouting

import (
	"context"
	"strings"
	"testing"

	"intake-bot/internal/common/config"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		name    string
		verdict models.Verdict
		want    models.DecisionKind
		band    string
	}{
		{name: "accept verdict with low score", verdict: models.Verdict{OverallScore: 10, Verdict: "accept"}, want: models.DecisionAccept, band: BandAccept},
		{name: "score at auto accept", verdict: models.Verdict{OverallScore: 55, Verdict: "reject"}, want: models.DecisionAccept, band: BandAccept},
		{name: "score just below auto accept", verdict: models.Verdict{OverallScore: 54.9, Verdict: "reject"}, want: models.DecisionBorderline, band: BandBorderline},
		{name: "score at borderline min", verdict: models.Verdict{OverallScore: 30, Verdict: "reject"}, want: models.DecisionBorderline, band: BandBorderline},
		{name: "borderline verdict with low score", verdict: models.Verdict{OverallScore: 5, Verdict: "borderline"}, want: models.DecisionBorderline, band: BandBorderline},
		{name: "between hard reject and borderline", verdict: models.Verdict{OverallScore: 25, Verdict: "reject"}, want: models.DecisionBorderline, band: BandHardReject},
		{name: "score at hard reject", verdict: models.Verdict{OverallScore: 20, Verdict: "reject"}, want: models.DecisionBorderline, band: BandHardReject},
		{name: "below hard reject", verdict: models.Verdict{OverallScore: 19.9, Verdict: "reject"}, want: models.DecisionReject, band: BandReject},
		{name: "severe flag beats accept", verdict: models.Verdict{OverallScore: 95, Verdict: "accept", Flags: []string{"spam"}}, want: models.DecisionReject, band: BandSevereFlag},
		{name: "severe flag any case", verdict: models.Verdict{OverallScore: 60, Flags: []string{"Plagiarism_Suspected"}}, want: models.DecisionReject, band: BandSevereFlag},
		{name: "mild flag ignored", verdict: models.Verdict{OverallScore: 60, Flags: []string{"short_answers"}}, want: models.DecisionAccept, band: BandAccept},
		{name: "uppercase verdict", verdict: models.Verdict{OverallScore: 0, Verdict: "ACCEPT"}, want: models.DecisionAccept, band: BandAccept},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.verdict
			out := Route(LoadConfig(), &v)
			assert.Equal(t, tt.want, out.Decision)
			assert.Equal(t, tt.band, out.Band)
		})
	}
}

func TestRoute_Reasons(t *testing.T) {
	accept := Route(LoadConfig(), &models.Verdict{OverallScore: 80})
	assert.Equal(t, "Auto-accepted by AI threshold", accept.Reason)

	border := Route(LoadConfig(), &models.Verdict{OverallScore: 40})
	assert.Equal(t, "Below auto-accept threshold but above minimum", border.Reason)

	rationale := strings.Repeat("x", 800)
	rej := Route(LoadConfig(), &models.Verdict{OverallScore: 3, Rationale: rationale})
	assert.Len(t, rej.Reason, 500)
}

func TestFromApplication(t *testing.T) {
	c := FromApplication(config.ApplicationConfig{AutoAcceptThreshold: 70, BorderlineMin: 30, HardRejectThreshold: 20})
	assert.Equal(t, 70.0, c.AutoAcceptThreshold)
	assert.Equal(t, 30.0, c.BorderlineMin)
	assert.Equal(t, 20.0, c.HardRejectThreshold)

	out := Route(c, &models.Verdict{OverallScore: 60})
	assert.Equal(t, models.DecisionBorderline, out.Decision)
}

func TestFromApplication_ZeroHardRejectIsKept(t *testing.T) {
	c := FromApplication(config.ApplicationConfig{AutoAcceptThreshold: 55, BorderlineMin: 30, HardRejectThreshold: 0})
	assert.Equal(t, 0.0, c.HardRejectThreshold)

	out := Route(c, &models.Verdict{OverallScore: 10, Verdict: "reject"})
	assert.Equal(t, models.DecisionBorderline, out.Decision)
	assert.Equal(t, BandHardReject, out.Band)
}

func TestHandler_Execute(t *testing.T) {
	h := NewHandler(nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Verdict: &models.Verdict{OverallScore: 60, Verdict: "accept"}})
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAccept, out.Decision)

	_, err = h.Execute(context.Background(), &Input{})
	assert.ErrorIs(t, err, ErrPriorityRoutingFailed)
}
