package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nftstake/crypto"
	"nftstake/indexer"
	"nftstake/native/common"
	"nftstake/native/custody"
	"nftstake/native/staking"
)

const maxRequestBytes = 1 << 16

// History is the read side of the unstake index.
type History interface {
	ByUser(user crypto.Address, limit int) ([]indexer.UnstakeRecord, error)
	TotalPoints(user crypto.Address) (uint64, error)
	ByAsset(asset crypto.Address) ([]indexer.UnstakeRecord, error)
	LockEvents(asset crypto.Address) ([]indexer.LockEvent, error)
}

// ServerConfig wires the HTTP surface to the ledger.
type ServerConfig struct {
	Engine  *staking.Engine
	Custody *custody.Engine
	// State is the committed view used for read-only lookups.
	State     custody.State
	History   History
	RateLimit RateLimit
	Logger    *slog.Logger
}

// Server serves the staking HTTP API.
type Server struct {
	engine  *staking.Engine
	custody *custody.Engine
	state   custody.State
	history History
	limiter *RateLimiter
	logger  *slog.Logger
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil || cfg.Custody == nil || cfg.State == nil {
		return nil, errors.New("rpc: engine, custody and state are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:  cfg.Engine,
		custody: cfg.Custody,
		state:   cfg.State,
		history: cfg.History,
		logger:  logger,
	}
	if cfg.RateLimit.RequestsPerMinute > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit, logger)
	}
	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(s.accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		if s.limiter != nil {
			v1.Use(s.limiter.Middleware)
		}
		v1.Post("/unstake", s.handleUnstake)
		v1.Get("/users/{address}", s.handleUser)
		v1.Get("/users/{address}/history", s.handleHistory)
		v1.Get("/stakes/{asset}/preview", s.handlePreview)
		v1.Get("/stakes/{asset}/history", s.handleAssetHistory)
	})
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", RequestIDFrom(r.Context()))
	})
}

// statusFor maps ledger errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrModulePaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, staking.ErrPolicy):
		return http.StatusConflict
	case errors.Is(err, staking.ErrDerivation):
		return http.StatusBadRequest
	case errors.Is(err, staking.ErrCustodyRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: RequestIDFrom(r.Context()),
	}})
}

func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", RequestIDFrom(r.Context()))
		message = http.StatusText(status)
	}
	writeError(w, r, status, staking.ErrorClass(err), message)
}
