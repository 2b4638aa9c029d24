package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/cme-volume-scraper/internal/config"
	"github.com/JakeFAU/cme-volume-scraper/internal/metrics"
	"github.com/JakeFAU/cme-volume-scraper/internal/scrape"
	"github.com/JakeFAU/cme-volume-scraper/internal/volume"
)

// AppName is reported by /status.
const AppName = "cme-volume-scraper"

var availableEndpoints = []string{"/", "/scrape", "/view", "/api/readings", "/health", "/status", "/metrics"}

// Scraper is the slice of scrape.Service the handlers depend on.
type Scraper interface {
	Run(ctx context.Context) (scrape.Outcome, error)
	Extract(ctx context.Context) (volume.Extraction, error)
	Recent(ctx context.Context, limit int) ([]volume.Reading, error)
}

// IDGenerator yields request identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Server wires HTTP handlers to the scrape service.
type Server struct {
	router  chi.Router
	scraper Scraper
	idGen   IDGenerator
	clock   volume.Clock
	cfg     config.Config
	version string
	started time.Time
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	scraper Scraper,
	idGen IDGenerator,
	clock volume.Clock,
	cfg config.Config,
	version string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		scraper: scraper,
		idGen:   idGen,
		clock:   clock,
		cfg:     cfg,
		version: version,
		started: clock.Now(),
		logger:  logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/", s.home)
	r.Get("/view", s.view)
	r.With(s.apiKeyMiddleware).Get("/scrape", s.scrape)
	r.Get("/api/readings", s.listReadings)
	r.Get("/health", s.health)
	r.Get("/status", s.status)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.NotFound(s.notFound)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type scrapeResponse struct {
	OK        bool            `json:"ok"`
	Data      *volume.Reading `json:"data,omitempty"`
	Inserted  *bool           `json:"inserted,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	out, err := s.scraper.Run(r.Context())
	if err != nil {
		s.logger.Warn("scrape failed", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, scrapeResponse{
			Error:     err.Error(),
			Timestamp: s.clock.Now(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, scrapeResponse{
		OK:        true,
		Data:      &out.Reading,
		Inserted:  &out.Inserted,
		Timestamp: s.clock.Now(),
	})
}

type readingsResponse struct {
	OK       bool             `json:"ok"`
	Count    int              `json:"count"`
	Readings []volume.Reading `json:"readings"`
}

func (s *Server) listReadings(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, s.cfg.API.RecentLimit, s.cfg.API.MaxLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	readings, err := s.scraper.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("list readings failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list readings")
		return
	}
	if readings == nil {
		readings = []volume.Reading{}
	}
	s.writeJSON(w, http.StatusOK, readingsResponse{OK: true, Count: len(readings), Readings: readings})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	now := s.clock.Now()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": now,
		"uptime":    now.Sub(s.started).Truncate(time.Second).String(),
	})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "OK",
		"app":        AppName,
		"version":    s.version,
		"go_version": runtime.Version(),
		"timestamp":  s.clock.Now(),
	})
}

func (s *Server) notFound(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusNotFound, map[string]any{
		"ok":                  false,
		"error":               "Endpoint not found",
		"available_endpoints": availableEndpoints,
	})
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	limStr := r.URL.Query().Get("limit")
	if limStr == "" {
		return def, nil
	}
	val, err := strconv.Atoi(limStr)
	if err != nil || val <= 0 {
		return 0, errors.New("invalid limit")
	}
	if maxLimit > 0 && val > maxLimit {
		val = maxLimit
	}
	return val, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{"ok": false, "error": msg, "timestamp": s.clock.Now()})
}
