// Package web serves the chat application: a small browser UI plus the JSON
// endpoints it calls for retrieval and analysis.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/thaidata-cloud/lexrag/internal/domain"
	logpkg "github.com/thaidata-cloud/lexrag/internal/logger"
	"github.com/thaidata-cloud/lexrag/internal/metrics"
	chiTransport "github.com/thaidata-cloud/lexrag/internal/transport/chi"
	chatuc "github.com/thaidata-cloud/lexrag/internal/usecase/chat"
)

//go:embed static/index.html
var staticFS embed.FS

// ChatService is the assistant flow behind the UI endpoints.
type ChatService interface {
	Search(ctx context.Context, question string) ([]domain.Passage, error)
	Analyze(ctx context.Context, question string, passages []domain.Passage) (chatuc.Answer, error)
}

// UpstreamChecker reports whether the retrieval API is reachable and healthy.
type UpstreamChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server is the chat application HTTP server.
type Server struct {
	chat     ChatService
	upstream UpstreamChecker
	logger   *zap.Logger
}

// NewServer creates the chat app server. upstream may be nil; healthz then
// reports only the app process itself.
func NewServer(chat ChatService, upstream UpstreamChecker, logger *zap.Logger) *Server {
	return &Server{chat: chat, upstream: upstream, logger: logger}
}

// Router builds the app router with the standard middleware chain.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEvent(s.logger))
	r.Use(metrics.Middleware("app"))

	r.Get("/", s.IndexHandler)
	r.Post("/search", s.SearchHandler)
	r.Post("/analyze", s.AnalyzeHandler)
	r.Get("/healthz", s.HealthzHandler)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// IndexHandler serves the chat UI.
func (s *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Results []domain.Passage `json:"results"`
}

// SearchHandler handles POST /search: proxy the question to the retrieval API.
func (s *Server) SearchHandler(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	passages, err := s.chat.Search(r.Context(), req.Query)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	if passages == nil {
		passages = []domain.Passage{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: passages})
}

type analyzeRequest struct {
	Query   string           `json:"query"`
	Results []domain.Passage `json:"results"`
}

type analyzeResponse struct {
	Answer   string           `json:"answer"`
	Passages []domain.Passage `json:"passages"`
}

// AnalyzeHandler handles POST /analyze: generate an answer grounded in the
// passages the client got from an earlier search.
func (s *Server) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	answer, err := s.chat.Analyze(r.Context(), req.Query, req.Results)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Answer:   answer.Text,
		Passages: answer.Passages,
	})
}

// HealthzHandler handles GET /healthz. It includes the retrieval API's
// health, so a degraded upstream shows here before users hit search.
func (s *Server) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	if s.upstream != nil {
		if err := s.upstream.HealthCheck(r.Context()); err != nil {
			logpkg.FromContext(r.Context()).Warn("upstream unhealthy", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"api":    err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContext(r.Context())
	logger.Warn("chat error", zap.Error(err))

	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "กรุณาระบุคำถาม")
	case errors.Is(err, domain.ErrNoPassages):
		writeError(w, http.StatusBadRequest, "ไม่มีผลการค้นหาสำหรับวิเคราะห์")
	case errors.Is(err, domain.ErrModelNotReady):
		writeError(w, http.StatusServiceUnavailable, "ไม่สามารถโหลดโมเดล AI ได้")
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		writeError(w, http.StatusServiceUnavailable, "ไม่สามารถเชื่อมต่อกับ API ได้")
	default:
		logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
