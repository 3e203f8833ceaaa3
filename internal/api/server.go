// Package api exposes the pipeline over HTTP. It is a thin layer: every
// handler delegates to the pipeline or the store and maps outcomes onto the
// response envelope; no pipeline logic lives here.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/newswire/internal/model"
	"github.com/sells-group/newswire/internal/pipeline"
	"github.com/sells-group/newswire/internal/store"
)

// Server wires pipeline operations to HTTP routes.
type Server struct {
	store    store.Store
	pipeline *pipeline.Pipeline
}

// NewServer creates a Server.
func NewServer(st store.Store, p *pipeline.Pipeline) *Server {
	return &Server{store: st, pipeline: p}
}

// Router builds the chi router with CORS enabled for browser consumers.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/articles", s.handleListArticles)
		r.Get("/articles/{id}", s.handleGetArticle)
		r.Post("/crawl", s.handleCrawl)
		r.Post("/articles/{id}/fetch", s.handleFetch)
		r.Post("/articles/{id}/translate", s.handleTranslate)
		r.Post("/articles/{id}/fetch-and-translate", s.handleFetchAndTranslate)
		r.Post("/articles/{id}/polish", s.handlePolish)
	})
	return r
}

// envelope is the response shape consumers expect: code 0 on success,
// non-zero with a message otherwise.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		zap.L().Warn("api: write response", zap.Error(err))
	}
}

// writeStageError maps the pipeline error taxonomy onto HTTP statuses:
// not-found and not-ready are caller errors, everything else is a stage
// failure.
func writeStageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, envelope{Code: 1, Message: "article not found"})
	case errors.Is(err, pipeline.ErrNotReady):
		writeJSON(w, http.StatusBadRequest, envelope{Code: 1, Message: "article not ready: run the prerequisite stage first"})
	default:
		zap.L().Error("api: stage failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, envelope{Code: 1, Message: "stage failed"})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Code: 0, Data: map[string]string{"status": "ok"}})
}

type articlePage struct {
	List     []model.Article `json:"list"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	keyword := q.Get("keyword")
	status := model.Status(q.Get("status"))
	page := intParam(q.Get("page"), 1)
	pageSize := intParam(q.Get("page_size"), 10)

	var articles []model.Article
	var err error
	if keyword != "" {
		articles, err = s.store.Search(r.Context(), keyword)
	} else {
		articles, err = s.store.List(r.Context(), model.ArticleFilter{Status: status, Limit: 1000})
	}
	if err != nil {
		writeStageError(w, err)
		return
	}
	if articles == nil {
		articles = []model.Article{}
	}

	total := len(articles)
	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	writeJSON(w, http.StatusOK, envelope{Code: 0, Data: articlePage{
		List:     articles[start:end],
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}})
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	article, err := s.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Code: 0, Data: article})
}

// handleCrawl ingests the listing and backfills translated titles so the
// list view is readable immediately; body translation still happens in the
// translate stage.
func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	inserted, err := s.pipeline.IngestWithTitles(r.Context())
	if err != nil {
		writeStageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Code:    0,
		Message: "crawl complete",
		Data:    map[string]int{"count": inserted},
	})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	s.runStage(w, r, s.pipeline.FetchContent, "content fetched")
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	s.runStage(w, r, s.pipeline.Translate, "translated")
}

func (s *Server) handlePolish(w http.ResponseWriter, r *http.Request) {
	s.runStage(w, r, s.pipeline.Polish, "polished")
}

func (s *Server) handleFetchAndTranslate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	article, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		writeStageError(w, err)
		return
	}

	// Fetch only when the source body is still missing.
	if article.BodySource == "" {
		if err := s.pipeline.FetchContent(r.Context(), id); err != nil {
			writeStageError(w, err)
			return
		}
	}

	if err := s.pipeline.Translate(r.Context(), id); err != nil {
		writeStageError(w, err)
		return
	}

	s.respondWithArticle(w, r.Context(), id, "processed")
}

// runStage executes one pipeline stage for the path's article ID and
// responds with the refreshed record.
func (s *Server) runStage(w http.ResponseWriter, r *http.Request, stage func(context.Context, string) error, message string) {
	id := chi.URLParam(r, "id")
	if err := stage(r.Context(), id); err != nil {
		writeStageError(w, err)
		return
	}
	s.respondWithArticle(w, r.Context(), id, message)
}

func (s *Server) respondWithArticle(w http.ResponseWriter, ctx context.Context, id, message string) {
	article, err := s.store.GetByID(ctx, id)
	if err != nil {
		writeStageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Code: 0, Message: message, Data: article})
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
