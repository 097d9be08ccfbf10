// internal/workers/application/check-priority-routing/handler.go
package checkpriorityrouting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/metrics"
	"intake-bot/internal/models"
)

const (
	TaskType = "check-priority-routing"
)

var (
	ErrPriorityRoutingFailed = errors.New("PRIORITY_ROUTING_FAILED")
)

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config: config,
		logger: logger.ForStage(log, TaskType),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if input == nil || input.Verdict == nil {
		return nil, fmt.Errorf("%w: missing verdict", ErrPriorityRoutingFailed)
	}

	out := Route(h.config, input.Verdict)
	metrics.Decisions.WithLabelValues(string(out.Decision)).Inc()

	h.logger.Info("routing decided", map[string]interface{}{
		"score":    input.Verdict.OverallScore,
		"verdict":  input.Verdict.Verdict,
		"flags":    input.Verdict.Flags,
		"decision": string(out.Decision),
		"band":     out.Band,
	})
	return out, nil
}

// Route maps a verdict to exactly one decision. It never fails.
func Route(c *Config, v *models.Verdict) *Output {
	verdict := strings.ToLower(v.Verdict)

	switch {
	case HasSevereFlag(v.Flags):
		return reject(v, BandSevereFlag)
	case verdict == string(models.DecisionAccept) || v.OverallScore >= c.AutoAcceptThreshold:
		return &Output{Decision: models.DecisionAccept, Reason: ReasonAccept, Band: BandAccept}
	case v.OverallScore >= c.BorderlineMin || verdict == string(models.DecisionBorderline):
		return &Output{Decision: models.DecisionBorderline, Reason: ReasonBorderline, Band: BandBorderline}
	case v.OverallScore >= c.HardRejectThreshold:
		return &Output{Decision: models.DecisionBorderline, Reason: ReasonBorderline, Band: BandHardReject}
	default:
		return reject(v, BandReject)
	}
}

func HasSevereFlag(flags []string) bool {
	for _, f := range flags {
		if _, ok := SevereFlags[strings.ToLower(f)]; ok {
			return true
		}
	}
	return false
}

func reject(v *models.Verdict, band string) *Output {
	reason := v.Rationale
	if r := []rune(reason); len(r) > maxRejectReason {
		reason = string(r[:maxRejectReason])
	}
	return &Output{Decision: models.DecisionReject, Reason: reason, Band: band}
}
