// Package generate runs chat completions against an ordered list of candidate models.
package generate

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hyperjump/kangae/internal/config"
	"github.com/hyperjump/kangae/internal/gateway"
	"github.com/hyperjump/kangae/internal/metrics"
	"github.com/hyperjump/kangae/internal/models"
	"go.uber.org/zap"
)

// notFoundMarker in a response body means the endpoint does not serve the model.
const notFoundMarker = "not found"

// Prompt is one chat request.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Completion is the text produced by the first candidate that answered.
type Completion struct {
	Text  string
	Model string
}

// Chain tries candidates in order, moving on only when a model is not served.
type Chain struct {
	poster     gateway.Poster
	url        string
	token      string
	candidates []string
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// NewChain builds a chain over cfg.TextModelCandidates().
func NewChain(cfg *config.HFConfig, poster gateway.Poster, collector *metrics.Collector, logger *zap.Logger) *Chain {
	return &Chain{
		poster:     poster,
		url:        strings.TrimRight(cfg.RouterBaseURL, "/") + "/chat/completions",
		token:      cfg.Token,
		candidates: cfg.TextModelCandidates(),
		metrics:    collector,
		logger:     logger.With(zap.String("component", "generate")),
	}
}

// Candidates returns the models in the order they are tried.
func (c *Chain) Candidates() []string {
	return append([]string(nil), c.candidates...)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

// Complete returns the first non-empty completion. 400, 401 and 403 stop the chain, as does
// any other non-2xx that is not a not-found answer. A 2xx body mentioning "not found" falls
// through only when no completion text can be extracted from it; a 2xx with text is always
// accepted, so a model that writes "not found" in its answer is not skipped. When every
// candidate is skipped the error names the last one tried.
func (c *Chain) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	if c.token == "" {
		return nil, models.NewConfigurationError("HF_TOKEN not configured")
	}
	if len(c.candidates) == 0 {
		return nil, models.NewConfigurationError("HF_TEXT_MODEL not configured")
	}

	var lastErr error
	for _, model := range c.candidates {
		text, skipErr, err := c.try(ctx, model, p)
		if err != nil {
			return nil, err
		}
		if skipErr != nil {
			c.metrics.IncFallthrough(model)
			c.logger.Warn("model not served, trying next candidate", zap.String("model", model), zap.Int("status", skipErr.Status))
			lastErr = skipErr
			continue
		}
		return &Completion{Text: text, Model: model}, nil
	}
	return nil, lastErr
}

// try sends one request. It returns either text, a skip error for a model that is not
// served, or a hard error that ends the chain.
func (c *Chain) try(ctx context.Context, model string, p Prompt) (string, *models.Error, error) {
	var messages []chatMessage
	if p.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: p.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: p.User})

	resp, err := c.poster.Post(ctx, c.url, c.token, chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	})
	if err != nil {
		return "", nil, err
	}

	notFound := strings.Contains(strings.ToLower(resp.Text), notFoundMarker)

	switch {
	case resp.Status == http.StatusBadRequest || resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden:
		return "", nil, hardError(model, resp)
	case resp.Status == http.StatusNotFound:
		return "", models.NewModelUnavailableError(model, resp.Status), nil
	case !resp.OK():
		if notFound {
			return "", models.NewModelUnavailableError(model, resp.Status), nil
		}
		return "", nil, hardError(model, resp)
	}

	text := strings.TrimSpace(ExtractText(resp.JSON))
	if text != "" {
		return text, nil, nil
	}
	if notFound {
		return "", models.NewModelUnavailableError(model, resp.Status), nil
	}
	return "", nil, models.NewProtocolError(fmt.Sprintf("HF text response empty for %s", model), resp.Status, "")
}

func hardError(model string, resp *gateway.Response) error {
	return models.NewProtocolError(
		fmt.Sprintf("HF generation failed for %s. %s", model, models.ModelHint), resp.Status, resp.Text)
}

// ExtractText pulls generated text out of a chat completion or a text-generation payload.
func ExtractText(body any) string {
	switch v := body.(type) {
	case map[string]any:
		if choices, ok := v["choices"].([]any); ok && len(choices) > 0 {
			if choice, ok := choices[0].(map[string]any); ok {
				if msg, ok := choice["message"].(map[string]any); ok {
					if s, ok := msg["content"].(string); ok {
						return s
					}
				}
				if s, ok := choice["text"].(string); ok {
					return s
				}
			}
		}
		if s, ok := v["generated_text"].(string); ok {
			return s
		}
	case []any:
		if len(v) == 0 {
			return ""
		}
		switch first := v[0].(type) {
		case map[string]any:
			if s, ok := first["generated_text"].(string); ok {
				return s
			}
		case string:
			return first
		}
	case string:
		return v
	}
	return ""
}
