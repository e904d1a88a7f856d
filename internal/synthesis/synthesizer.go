package synthesis

import (
	"context"

	"github.com/hyperjump/kangae/internal/budget"
	"github.com/hyperjump/kangae/internal/config"
	"github.com/hyperjump/kangae/internal/generate"
	"github.com/hyperjump/kangae/internal/metrics"
	"github.com/hyperjump/kangae/internal/models"
	"github.com/hyperjump/kangae/pkg/utils"
	"go.uber.org/zap"
)

// snippetChars bounds raw model output in logs.
const snippetChars = 500

// Completer is the generation contract; *generate.Chain satisfies it.
type Completer interface {
	Complete(ctx context.Context, p generate.Prompt) (*generate.Completion, error)
}

// Synthesizer budgets items, asks the model for a synthesis and enforces its shape.
type Synthesizer struct {
	budgeter       *budget.Budgeter
	chain          Completer
	maxTokens      int
	temperature    float64
	repairMaxChars int
	metrics        *metrics.Collector
	logger         *zap.Logger
}

// New creates a synthesizer from the synthesis settings.
func New(cfg *config.SynthesisConfig, chain Completer, collector *metrics.Collector, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{
		budgeter:       budget.New(cfg),
		chain:          chain,
		maxTokens:      cfg.MaxTokens,
		temperature:    cfg.TemperatureOrDefault(),
		repairMaxChars: cfg.RepairMaxChars,
		metrics:        collector,
		logger:         logger.With(zap.String("component", "synthesis")),
	}
}

// Synthesize returns a validated result, or the sentinel fallback when neither the first
// answer nor the single repair attempt validates. Only the first upstream call can fail
// the request.
func (s *Synthesizer) Synthesize(ctx context.Context, items []models.InputItem, guidance string) (*models.SynthesisResponse, error) {
	if len(items) == 0 {
		return nil, models.NewClientError("items are required")
	}
	kept, stats := s.budgeter.Apply(items)
	if len(kept) == 0 {
		return nil, models.NewClientError("items are required")
	}
	if stats.Truncated {
		s.metrics.IncTruncation()
		s.logger.Info("synthesis input truncated",
			zap.Int("items_before", stats.ItemsBefore),
			zap.Int("items_after", stats.ItemsAfter),
			zap.Int("chars_before", stats.CharsBefore),
			zap.Int("chars_after", stats.CharsAfter))
	}

	first, err := s.chain.Complete(ctx, s.prompt(BuildPrompt(kept, guidance)))
	if err != nil {
		return nil, err
	}
	result, verr := Validate(ExtractObject(first.Text))
	if verr == nil {
		s.metrics.IncSynthesis(metrics.OutcomeOK)
		return &models.SynthesisResponse{SynthesisResult: *result, Model: first.Model, Truncation: &stats}, nil
	}
	s.logger.Warn("synthesis output invalid, attempting repair", zap.String("model", first.Model), zap.Error(verr))

	repaired, err := s.chain.Complete(ctx, s.prompt(BuildRepairPrompt(first.Text, s.repairMaxChars)))
	if err != nil {
		s.logger.Warn("repair call failed",
			zap.String("original", utils.TruncateRunes(first.Text, snippetChars)),
			zap.Error(err))
		return s.fallback(first.Model, &stats), nil
	}

	result, verr = Validate(ExtractObject(repaired.Text))
	if verr != nil {
		s.logger.Warn("repaired output still invalid",
			zap.String("original", utils.TruncateRunes(first.Text, snippetChars)),
			zap.String("repaired", utils.TruncateRunes(repaired.Text, snippetChars)),
			zap.Error(verr))
		return s.fallback(repaired.Model, &stats), nil
	}

	s.metrics.IncSynthesis(metrics.OutcomeRepaired)
	return &models.SynthesisResponse{SynthesisResult: *result, Model: repaired.Model, Truncation: &stats}, nil
}

func (s *Synthesizer) prompt(user string) generate.Prompt {
	return generate.Prompt{
		System:      SystemPrompt,
		User:        user,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}
}

func (s *Synthesizer) fallback(model string, stats *models.TruncationStats) *models.SynthesisResponse {
	s.metrics.IncSynthesis(metrics.OutcomeFallback)
	resp := models.FallbackSynthesis()
	resp.Model = model
	resp.Truncation = stats
	return &resp
}
