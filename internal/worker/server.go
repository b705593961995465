package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-formula/internal/batch"
	"github.com/aescanero/dago-node-formula/internal/store"
)

// maxBodyBytes caps a /trading-formula request body.
const maxBodyBytes = 4 << 20

// Server serves the batch endpoint, stored results and health checks.
// redisClient and results may be nil when streams are disabled.
type Server struct {
	port        int
	redisClient redis.Cmdable
	service     *batch.Service
	results     *store.ResultStore
	logger      *zap.Logger
	server      *http.Server
}

// NewServer creates a new HTTP server
func NewServer(port int, redisClient redis.Cmdable, service *batch.Service, results *store.ResultStore, logger *zap.Logger) *Server {
	return &Server{
		port:        port,
		redisClient: redisClient,
		service:     service,
		results:     results,
		logger:      logger,
	}
}

// Handler returns the request router
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /trading-formula", s.handleTradingFormula)
	mux.HandleFunc("GET /results/{id}", s.handleResult)
	mux.HandleFunc("DELETE /results/{id}", s.handleDeleteResult)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	return mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("starting http server", zap.Int("port", s.port))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("stopping http server")
	return s.server.Shutdown(ctx)
}

// ErrorResponse is the body of a request-level failure
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleTradingFormula evaluates a JSON array of cases
func (s *Server) handleTradingFormula(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.respondJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error()})
		return
	}

	s.logger.Info("data sent for evaluation", zap.Int("bytes", len(body)))

	outcomes, err := s.service.EvaluateJSON(r.Context(), body)
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	s.respondJSON(w, http.StatusOK, outcomes)
}

// handleResult returns a stored stream result
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "result storage is disabled"})
		return
	}

	id := r.PathValue("id")
	result, err := s.results.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
		s.logger.Error("failed to load result", zap.String("request_id", id), zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to load result"})
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

// handleDeleteResult discards a stored stream result
func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "result storage is disabled"})
		return
	}

	id := r.PathValue("id")
	ok, err := s.results.Exists(r.Context(), id)
	if err == nil && ok {
		err = s.results.Delete(r.Context(), id)
	}
	if err != nil {
		s.logger.Error("failed to delete result", zap.String("request_id", id), zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to delete result"})
		return
	}
	if !ok {
		s.respondJSON(w, http.StatusNotFound, ErrorResponse{Error: store.ErrNotFound.Error()})
		return
	}

	s.logger.Info("deleted result", zap.String("request_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"evaluator": "healthy"}

	if s.redisClient == nil {
		checks["redis"] = "disabled"
		s.respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Checks: checks})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		checks["redis"] = fmt.Sprintf("unhealthy: %v", err)
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Checks: checks,
		})
		return
	}
	checks["redis"] = "healthy"

	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "healthy",
		Checks: checks,
	})
}

// handleReady handles the /ready endpoint
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.redisClient != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.redisClient.Ping(ctx).Err(); err != nil {
			s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status: "not ready",
			})
			return
		}
	}

	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ready",
	})
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}
