package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-field-extractor/internal/domain/model"
	"telegram-field-extractor/internal/usecase"
)

// Server exposes health, metrics and a read-only view of the request log.
type Server struct {
	stats  usecase.StatsUseCase
	apiKey string
	log    *zerolog.Logger
	router chi.Router
	server *http.Server
}

func NewServer(stats usecase.StatsUseCase, apiKey string, logger *zerolog.Logger) *Server {
	compLog := logger.With().Str("component", "AdminHTTP").Logger()
	s := &Server{stats: stats, apiKey: apiKey, log: &compLog}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware, Timeout(10*time.Second))
		r.Get("/requests", s.handleListRequests)
		r.Get("/stats", s.handleStats)
	})
	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start blocks serving on port until Shutdown is called.
func (s *Server) Start(port int) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Int("port", port).Msg("admin HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// authMiddleware provides simple Bearer token authentication for the admin API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("Admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}

		if tokenParts[1] != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	reqs, err := s.stats.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list requests failed")
		http.Error(w, "Failed to list requests", http.StatusInternalServerError)
		return
	}
	out := make([]requestView, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, newRequestView(req))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats.Totals(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("request stats failed")
		http.Error(w, "Failed to get stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type requestView struct {
	ID         string             `json:"id"`
	ChatID     int64              `json:"chat_id"`
	SenderID   int64              `json:"sender_id"`
	Kind       string             `json:"kind"`
	Command    string             `json:"command,omitempty"`
	Document   *model.DocumentRef `json:"document,omitempty"`
	Status     string             `json:"status"`
	Attempts   int                `json:"attempts"`
	ErrorKind  string             `json:"error_kind,omitempty"`
	LastError  string             `json:"last_error,omitempty"`
	Count      int                `json:"count"`
	CreatedAt  time.Time          `json:"created_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
}

func newRequestView(r *model.Request) requestView {
	return requestView{
		ID:         r.ID,
		ChatID:     r.ChatID,
		SenderID:   r.SenderID,
		Kind:       r.Kind.String(),
		Command:    r.Command,
		Document:   r.Payload,
		Status:     string(r.Status),
		Attempts:   r.Attempts,
		ErrorKind:  string(r.ErrorKind),
		LastError:  r.LastError,
		Count:      r.Count,
		CreatedAt:  r.CreatedAt,
		FinishedAt: r.FinishedAt,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
