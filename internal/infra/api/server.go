// File: internal/infra/api/server.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"giftcode-redemption/internal/config"
	"giftcode-redemption/internal/domain"
	"giftcode-redemption/internal/domain/model"
	"giftcode-redemption/internal/domain/ports/repository"
	"giftcode-redemption/internal/usecase"
)

// Server is the admin HTTP surface: code submission, batch redemption,
// batch progress, and registry inspection. All mutating routes sit behind
// bearer auth.
type Server struct {
	queue    *usecase.WorkQueue
	codes    repository.CodeRepository
	removals usecase.RemovalScheduler
	store    *ProgressStore
	auth     *AuthManager
	log      *zerolog.Logger
	srv      *http.Server
	port     int
}

func NewServer(
	cfg config.AdminConfig,
	queue *usecase.WorkQueue,
	codes repository.CodeRepository,
	removals usecase.RemovalScheduler,
	store *ProgressStore,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "AdminAPI").Logger()
	return &Server{
		queue:    queue,
		codes:    codes,
		removals: removals,
		store:    store,
		auth:     NewAuthManager(cfg.JWTSecret, cfg.TokenTTL),
		log:      &l,
		port:     cfg.Port,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID)
	r.Use(Recover(s.log))
	r.Use(RequestLog(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/v1/auth/token", s.handleToken)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.RequireAdmin)
		r.Post("/api/v1/codes", s.handleSubmitCode)
		r.Get("/api/v1/codes", s.handleListCodes)
		r.Delete("/api/v1/codes/{code}", s.handleDeleteCode)
		r.Post("/api/v1/redeem", s.handleRedeem)
		r.Get("/api/v1/batches/{id}", s.handleBatchStatus)
	})
	return r
}

func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Int("port", s.port).Msg("admin API listening")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// --- Handlers ---

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	token, err := s.auth.Exchange(req.Secret)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleSubmitCode registers a new code and queues its validation probe.
func (s *Server) handleSubmitCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	id, err := s.queue.Enqueue(&usecase.QueueItem{
		Kind:   usecase.KindValidate,
		Code:   code,
		Source: "admin",
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "queue unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"queue_id": id, "code": code})
}

func (s *Server) handleListCodes(w http.ResponseWriter, r *http.Request) {
	statuses := []model.CodeStatus{model.CodeStatusPending, model.CodeStatusValidated, model.CodeStatusInvalid}
	if q := r.URL.Query().Get("status"); q != "" {
		statuses = statuses[:0]
		for _, s := range strings.Split(q, ",") {
			statuses = append(statuses, model.CodeStatus(strings.TrimSpace(s)))
		}
	}

	codes, err := s.codes.ListByStatus(r.Context(), nil, statuses...)
	if err != nil {
		s.log.Error().Err(err).Msg("list codes failed")
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	type codeView struct {
		Code      string    `json:"code"`
		Status    string    `json:"status"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}
	out := make([]codeView, 0, len(codes))
	for _, c := range codes {
		out = append(out, codeView{c.Code, string(c.Status), c.CreatedAt, c.UpdatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"codes": out})
}

// handleDeleteCode invalidates a code locally and schedules its removal from
// the shared registry.
func (s *Server) handleDeleteCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if _, err := s.codes.FindByCode(r.Context(), nil, code); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown code")
			return
		}
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	changed, err := s.codes.UpdateStatus(r.Context(), nil, code, model.CodeStatusInvalid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if changed {
		s.removals.ScheduleRemoval(code)
		s.log.Info().Str("code", code).Msg("code invalidated by operator")
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": code, "status": "invalid"})
}

// handleRedeem accepts a batch of codes and group ids and queues one
// serialized batch run.
func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Codes    []string `json:"codes"`
		GroupIDs []string `json:"group_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if len(req.Codes) == 0 || len(req.GroupIDs) == 0 {
		writeError(w, http.StatusBadRequest, "codes and group_ids are required")
		return
	}

	batchID := ulid.Make().String()
	_, err := s.queue.Enqueue(&usecase.QueueItem{
		Kind:     usecase.KindRedeem,
		Codes:    req.Codes,
		GroupIDs: req.GroupIDs,
		BatchID:  batchID,
		Source:   "admin",
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "queue unavailable")
		return
	}
	s.store.Register(batchID)
	writeJSON(w, http.StatusAccepted, map[string]string{"batch_id": batchID})
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown batch")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
