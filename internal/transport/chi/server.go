// Package chi exposes the HTTP API consumed by the CLI, web and chat
// front-ends: note processing, storage, semantic search and task discovery.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cortexnotes/cortex/internal/domain"
	healthuc "github.com/cortexnotes/cortex/internal/usecase/health"
	notesuc "github.com/cortexnotes/cortex/internal/usecase/notes"
	processuc "github.com/cortexnotes/cortex/internal/usecase/process"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// TaskLister enumerates the configured task names.
type TaskLister interface {
	Tasks() []string
}

// Server implements the HTTP API.
type Server struct {
	process       *processuc.Service
	notes         *notesuc.Service
	health        *healthuc.Service
	tasks         TaskLister
	defaultSource processuc.EmbedSource
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. defaultSource selects what gets
// embedded when a process request stores its result without an explicit
// embed_source.
func NewServer(
	process *processuc.Service,
	notes *notesuc.Service,
	health *healthuc.Service,
	tasks TaskLister,
	defaultSource processuc.EmbedSource,
	logger *zap.Logger,
) *Server {
	s := &Server{
		process:       process,
		notes:         notes,
		health:        health,
		tasks:         tasks,
		defaultSource: defaultSource,
		logger:        logger,
	}
	s.errorHandlers = []errorHandler{
		missingInputHandler,
		sentinelHandler(domain.ErrUnknownTask, http.StatusBadRequest, CodeUnknownTask),
		sentinelHandler(domain.ErrInputTooLarge, http.StatusBadRequest, CodeInputTooLarge),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusBadRequest, CodeDimensionMismatch),
		sentinelHandler(domain.ErrDuplicateID, http.StatusConflict, CodeDuplicateID),
		sentinelHandler(domain.ErrBackendTimeout, http.StatusGatewayTimeout, CodeBackendTimeout),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusBadGateway, CodeBackendUnavailable),
		sentinelHandler(domain.ErrAuthRejected, http.StatusBadGateway, CodeAuthRejected),
		sentinelHandler(domain.ErrInvalidResponse, http.StatusBadGateway, CodeInvalidResponse),
		sentinelHandler(domain.ErrCancelled, http.StatusBadGateway, CodeBackendUnavailable),
		sentinelHandler(domain.ErrStorageFailure, http.StatusInternalServerError, CodeStorageFailure),
	}
	return s
}

// Routes registers all API routes on the router.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/process", s.ProcessNote)
		r.Post("/notes", s.StoreNote)
		r.Post("/search", s.SearchNotes)
		r.Get("/tasks", s.ListTasks)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// ProcessNote handles POST /api/v1/process.
//
// Backend failures are reported inside the 200 response body: the result
// carries success=false and the error string. Only caller mistakes (bad body,
// unknown task, missing inputs) map to 4xx.
func (s *Server) ProcessNote(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Note text is required")
		return
	}
	if req.Task == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Task name is required")
		return
	}

	source := s.defaultSource
	switch req.EmbedSource {
	case "":
	case string(processuc.EmbedOutput):
		source = processuc.EmbedOutput
	case string(processuc.EmbedNote):
		source = processuc.EmbedNote
	default:
		writeError(w, http.StatusBadRequest, CodeBadRequest, "embed_source must be output or note")
		return
	}

	note := domain.NewNote(req.ID, req.Text, req.Metadata)
	result, err := s.process.Process(r.Context(), note, req.Task, processuc.Options{
		StoreResult: req.StoreResult,
		Source:      source,
		Replace:     req.Replace,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// StoreNote handles POST /api/v1/notes.
func (s *Server) StoreNote(w http.ResponseWriter, r *http.Request) {
	var req StoreNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	id, err := s.notes.Store(r.Context(), req.Text, req.Metadata)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, StoreNoteResponse{NoteID: id})
}

// SearchNotes handles POST /api/v1/search.
func (s *Server) SearchNotes(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.K < 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "k must not be negative")
		return
	}

	hits, err := s.notes.Search(r.Context(), req.Query, req.K, req.Filters)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if hits == nil {
		hits = []notesuc.SearchHit{}
	}

	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}

// ListTasks handles GET /api/v1/tasks.
func (s *Server) ListTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, TasksResponse{Tasks: s.tasks.Tasks()})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrUnknownTask,
		domain.ErrMissingInput,
		domain.ErrInputTooLarge,
		domain.ErrDimensionMismatch,
		domain.ErrDuplicateID,
		domain.ErrBackendTimeout,
		domain.ErrBackendUnavailable,
		domain.ErrAuthRejected,
		domain.ErrInvalidResponse,
		domain.ErrCancelled,
		domain.ErrStorageFailure,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// missingInputHandler names the missing template keys when available.
func missingInputHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrMissingInput) {
		return false
	}
	var mie *domain.MissingInputError
	if errors.As(err, &mie) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":         CodeMissingInput,
			"message":      msg,
			"task":         mie.Task,
			"missing_keys": mie.Keys,
		})
		return true
	}
	writeError(w, http.StatusBadRequest, CodeMissingInput, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
