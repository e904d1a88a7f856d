// Package gateway performs the single JSON POST every upstream call goes through.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/hyperjump/kangae/internal/metrics"
	"github.com/hyperjump/kangae/internal/models"
	"github.com/hyperjump/kangae/pkg/utils"
	"go.uber.org/zap"
)

const (
	// MaxTextChars bounds Response.Text.
	MaxTextChars = 2000
	// maxBodyBytes caps how much of an upstream body is read. Token-level embedding
	// tensors for a full batch can run to tens of megabytes.
	maxBodyBytes = 64 << 20
)

// Response is the outcome of one POST. Non-2xx statuses are returned here, not as errors.
type Response struct {
	Status int
	// JSON is the decoded body, or nil when the body is not JSON.
	JSON any
	// Text is the raw body bounded to MaxTextChars characters.
	Text string
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Poster is the contract the embedding and generation clients depend on.
type Poster interface {
	Post(ctx context.Context, url, token string, payload any) (*Response, error)
}

// Client posts JSON with a per-call timeout and retries exactly once on transport failure.
type Client struct {
	http    *retryablehttp.Client
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewClient returns a gateway client. timeout bounds each attempt.
func NewClient(timeout time.Duration, logger *zap.Logger, collector *metrics.Collector) *Client {
	logger = logger.With(zap.String("component", "gateway"))

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Timeout: timeout}
	rc.RetryMax = 1
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 500 * time.Millisecond
	rc.CheckRetry = transportOnlyPolicy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveledLogger{logger.Sugar()}

	return &Client{http: rc, logger: logger, metrics: collector}
}

// transportOnlyPolicy retries when no response arrived at all. HTTP statuses are
// policy decisions for the caller and are never retried here.
func transportOnlyPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return err != nil, nil
}

// Post sends payload as JSON to url with a bearer token. Caller cancellation is not
// propagated; an issued call ends only on completion, timeout or transport failure.
func (c *Client) Post(ctx context.Context, url, token string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		req.Header.Set(middleware.RequestIDHeader, reqID)
	}

	kind := kindOf(url)
	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		c.metrics.ObserveUpstream(kind, 0, elapsed)
		c.logger.Warn("upstream call failed", zap.String("url", url), zap.Duration("duration", elapsed), zap.Error(err))
		return nil, models.NewTransportError(fmt.Sprintf("upstream request to %s failed", url), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.metrics.ObserveUpstream(kind, 0, elapsed)
		return nil, models.NewTransportError(fmt.Sprintf("failed to read response from %s", url), err)
	}

	c.metrics.ObserveUpstream(kind, resp.StatusCode, elapsed)
	c.logger.Info("upstream call",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", elapsed),
	)

	out := &Response{
		Status: resp.StatusCode,
		Text:   utils.TruncateRunes(string(raw), MaxTextChars),
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err == nil {
		out.JSON = decoded
	}
	return out, nil
}

func kindOf(url string) string {
	switch {
	case strings.Contains(url, "/chat/completions"):
		return "chat"
	case strings.Contains(url, "feature-extraction"):
		return "embed"
	default:
		return "other"
	}
}

// leveledLogger routes retryablehttp's logs through zap.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
