package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kangae/internal/generate"
	"github.com/hyperjump/kangae/internal/models"
	"github.com/hyperjump/kangae/internal/synthesis"
	"github.com/hyperjump/kangae/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var smokeTexts = []string{"hello world", "test sentence"}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Server is warm."})
}

func (s *Server) handleDebugSecret(w http.ResponseWriter, r *http.Request) {
	secret := strings.TrimSpace(s.config.Auth.SharedSecret)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"expected_len": len(secret),
		"expected_fp":  SecretFingerprint(secret),
	})
}

func (s *Server) handleDebugHF(w http.ResponseWriter, r *http.Request) {
	hf := s.config.HF
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"token_set":            hf.Token != "",
		"provider":             hf.Provider,
		"embedding_model":      hf.EmbeddingModel,
		"text_model":           hf.TextModel,
		"text_model_fallbacks": hf.TextModelFallbacks,
	})
}

type smokeCheck struct {
	OK      bool        `json:"ok"`
	Model   string      `json:"model,omitempty"`
	Preview interface{} `json:"preview,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// handleHFSmoke exercises both upstreams at once. Failures are reported per check,
// never as a request error.
func (s *Server) handleHFSmoke(w http.ResponseWriter, r *http.Request) {
	if s.config.HF.Token == "" {
		s.respondErr(w, models.NewConfigurationError("HF_TOKEN not configured"))
		return
	}
	var embed, gen smokeCheck
	var g errgroup.Group
	g.Go(func() error {
		vectors, err := s.deps.Embedder.EmbedTexts(r.Context(), smokeTexts)
		if err != nil {
			embed = smokeCheck{Error: err.Error()}
			return nil
		}
		preview := vectors[0]
		if len(preview) > 5 {
			preview = preview[:5]
		}
		embed = smokeCheck{OK: true, Preview: preview}
		return nil
	})
	g.Go(func() error {
		out, err := s.deps.Chain.Complete(r.Context(), generate.Prompt{
			System:      synthesis.SystemPrompt,
			User:        "Say hello in one sentence.",
			MaxTokens:   30,
			Temperature: 0.3,
		})
		if err != nil {
			gen = smokeCheck{Error: err.Error()}
			return nil
		}
		gen = smokeCheck{OK: true, Model: out.Model, Preview: utils.TruncateRunes(out.Text, 120)}
		return nil
	})
	_ = g.Wait()

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"provider":        s.config.HF.Provider,
		"embedding_model": s.config.HF.EmbeddingModel,
		"text_model":      s.config.HF.TextModel,
		"embedding":       embed,
		"generation":      gen,
	})
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req models.EmbedRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.logger.Debug("embed request", zap.Int("texts", len(req.Texts)))
	vectors, err := s.deps.Embedder.EmbedTexts(r.Context(), req.Texts)
	if err != nil {
		s.logFailure(r.Context(), "embed", err)
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.EmbedResponse{Vectors: vectors, Model: s.deps.Embedder.Model()})
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req models.SynthesizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.logger.Debug("synthesize request", zap.Int("items", len(req.Items)), zap.Bool("guided", req.Prompt != ""))
	resp, err := s.deps.Synthesizer.Synthesize(r.Context(), req.Items, req.Prompt)
	if err != nil {
		s.logFailure(r.Context(), "synthesize", err)
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req models.UpsertRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.deps.Index.Upsert(r.Context(), req.Items)
	if err != nil {
		s.logFailure(r.Context(), "upsert", err)
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	var req models.IDsRequest
	if !s.decode(w, r, &req) {
		return
	}
	items, err := s.deps.Index.Get(r.Context(), &req)
	if err != nil {
		s.logFailure(r.Context(), "get", err)
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req models.IDsRequest
	if !s.decode(w, r, &req) {
		return
	}
	n, err := s.deps.Index.Delete(r.Context(), &req)
	if err != nil {
		s.logFailure(r.Context(), "delete", err)
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if !s.decode(w, r, &query) {
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.deps.Index.Search(r.Context(), &query)
	if err != nil {
		s.logFailure(r.Context(), "search", err)
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	var query models.SimilarQuery
	if !s.decode(w, r, &query) {
		return
	}
	response, err := s.deps.Index.Similar(r.Context(), &query)
	if err != nil {
		s.logFailure(r.Context(), "similar", err)
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// logFailure logs server-side failures; caller mistakes stay at debug.
func (s *Server) logFailure(ctx context.Context, op string, err error) {
	fields := []zap.Field{zap.String("request_id", middleware.GetReqID(ctx)), zap.Error(err)}
	if models.IsKind(err, models.KindClient) {
		s.logger.Debug(op+" rejected", fields...)
		return
	}
	s.logger.Error(op+" failed", fields...)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps typed errors to their status; anything else is a 500.
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	var e *models.Error
	if errors.As(err, &e) {
		s.respondError(w, e.HTTPStatus(), e.Error())
		return
	}
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

// writeError is respondError for middleware, which has no *Server.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
