// Package embedding turns text into vectors through the inference provider and
// normalizes whatever tensor shape comes back.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/hyperjump/kangae/internal/config"
	"github.com/hyperjump/kangae/internal/gateway"
	"github.com/hyperjump/kangae/internal/models"
	"github.com/hyperjump/kangae/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions is the vector length, or 0 until the first successful call.
	Dimensions() int
	Model() string
	Close() error
}

// HFEmbedder calls the feature-extraction pipeline of the configured embedding model.
type HFEmbedder struct {
	poster      gateway.Poster
	baseURL     string
	model       string
	token       string
	batchSize   int
	maxChars    int
	concurrency int
	dims        atomic.Int64
	logger      *zap.Logger
}

// NewHFEmbedder builds an embedder from the provider settings.
func NewHFEmbedder(cfg *config.HFConfig, poster gateway.Poster, logger *zap.Logger) *HFEmbedder {
	return &HFEmbedder{
		poster:      poster,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.EmbeddingModel,
		token:       cfg.Token,
		batchSize:   cfg.EmbedBatchSize,
		maxChars:    cfg.EmbedMaxChars,
		concurrency: cfg.EmbedConcurrency,
		logger:      logger.With(zap.String("component", "embedder")),
	}
}

// URL is the feature-extraction endpoint for the configured model.
func (e *HFEmbedder) URL() string {
	return fmt.Sprintf("%s/%s/pipeline/feature-extraction", e.baseURL, e.model)
}

// EmbedTexts sends texts unchanged in a single request and returns one vector per text.
func (e *HFEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, models.NewClientError("texts are required")
	}
	if e.token == "" {
		return nil, models.NewConfigurationError("HF_TOKEN not configured")
	}
	if e.model == "" {
		return nil, models.NewConfigurationError("HF_EMBEDDING_MODEL not configured")
	}

	resp, err := e.poster.Post(ctx, e.URL(), e.token, map[string]any{"inputs": texts})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, models.NewProtocolError(
			fmt.Sprintf("HF embeddings failed for %s. %s", e.model, models.ModelHint), resp.Status, resp.Text)
	}

	vectors, err := Normalize(resp.JSON, len(texts))
	if err != nil {
		e.logger.Warn("unusable embeddings payload",
			zap.Int("inputs", len(texts)),
			zap.String("body", utils.TruncateRunes(resp.Text, 500)),
			zap.Error(err))
		return nil, &models.Error{
			Kind:    models.KindUpstreamProtocol,
			Message: fmt.Sprintf("HF embeddings failed for %s. %s", e.model, models.ModelHint),
			Status:  resp.Status,
			Cause:   err,
		}
	}
	e.dims.Store(int64(len(vectors[0])))
	return vectors, nil
}

// EmbedBatch trims each text to the configured length and embeds in batches,
// running up to the configured number of batches at once. Output order matches input.
func (e *HFEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, models.NewClientError("texts are required")
	}

	prepared := make([]string, len(texts))
	for i, t := range texts {
		prepared[i] = prepareText(t, e.maxChars)
	}

	size := e.batchSize
	if size <= 0 {
		size = len(prepared)
	}
	out := make([][]float32, len(prepared))

	g, gctx := errgroup.WithContext(ctx)
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for start := 0; start < len(prepared); start += size {
		end := min(start+size, len(prepared))
		g.Go(func() error {
			vectors, err := e.EmbedTexts(gctx, prepared[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vectors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Embed returns the vector for a single text.
func (e *HFEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimensions returns the length of the last vectors seen.
func (e *HFEmbedder) Dimensions() int {
	return int(e.dims.Load())
}

// Model returns the embedding model id.
func (e *HFEmbedder) Model() string {
	return e.model
}

// Close is a no-op; the gateway owns the connections.
func (e *HFEmbedder) Close() error {
	return nil
}

// prepareText trims whitespace and bounds the text to maxChars code points.
// Empty texts become a single space so the provider never sees an empty input.
func prepareText(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	if maxChars > 0 {
		text = utils.TruncateRunes(text, maxChars)
	}
	if text == "" {
		return " "
	}
	return text
}
