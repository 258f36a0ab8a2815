// Package api exposes extraction and billing-cycle previews over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aqlanhadi/fatura/billing"
	"github.com/aqlanhadi/fatura/extractor"
	"github.com/aqlanhadi/fatura/extractor/common"
	"github.com/aqlanhadi/fatura/importer"
	"github.com/aqlanhadi/fatura/reference"
	"github.com/sirupsen/logrus"
)

// Config holds the API server configuration
type Config struct {
	Port string
	// MaxUploadBytes bounds the in-memory part of multipart uploads.
	MaxUploadBytes int64
	Table          *reference.Table
	Logger         logrus.FieldLogger
}

// DefaultConfig returns the default API configuration
func DefaultConfig() Config {
	return Config{
		Port:           ":8080",
		MaxUploadBytes: 32 << 20,
	}
}

// Server represents the HTTP API server
type Server struct {
	config Config
	mux    *http.ServeMux
	log    logrus.FieldLogger
	now    func() time.Time
}

// New creates a new API server with the given configuration
func New(cfg Config) *Server {
	if cfg.Table == nil {
		cfg.Table = reference.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
		log:    log.WithField("component", "api"),
		now:    time.Now,
	}
	s.registerRoutes()
	return s
}

// registerRoutes sets up the API endpoints
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/extract", s.handleExtract)
	s.mux.HandleFunc("/cycle", s.handleCycle)
	s.mux.HandleFunc("/health", s.handleHealth)
}

// Handler returns the http.Handler for the server
// This allows the server to be used with custom http.Server configurations
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the HTTP server (blocking)
func (s *Server) Start() error {
	s.log.WithField("addr", s.config.Port).Info("starting server")
	return http.ListenAndServe(s.config.Port, s.mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// extractResponse is the extraction result, plus the statement cycle of each
// candidate when billing days were given.
type extractResponse struct {
	extractor.Result
	Cycles []billing.Cycle `json:"cycles,omitempty"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	log := s.log.WithField("remote", r.RemoteAddr)

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		log.WithError(err).Warn("could not parse multipart form")
		writeError(w, http.StatusBadRequest, "could not parse multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not get uploaded file: "+err.Error())
		return
	}
	defer file.Close()

	cfg, withCycles, err := cycleConfigFrom(r.FormValue("close_day"), r.FormValue("due_day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := extractor.ProcessReader(file, header.Filename, extractor.Options{
		Password: r.FormValue("password"),
		Table:    s.config.Table,
	})
	if err != nil {
		log.WithError(err).WithField("file", header.Filename).Info("extraction failed")
		writeExtractError(w, err)
		return
	}

	response := extractResponse{Result: result}
	if withCycles {
		response.Cycles, err = importer.Cycles(cfg, result.Candidates)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	log.WithFields(logrus.Fields{
		"file":       header.Filename,
		"format":     result.Format,
		"candidates": len(result.Candidates),
		"warnings":   len(result.Warnings),
	}).Info("extracted")
	writeJSON(w, http.StatusOK, response)
}

// handleCycle answers GET /cycle?close=&due=&date=. date defaults to today.
func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	cfg, ok, err := cycleConfigFrom(query.Get("close"), query.Get("due"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "close and due are required")
		return
	}

	date := s.now()
	if raw := query.Get("date"); raw != "" {
		date, err = common.ParseISODate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	cycle, err := billing.Compute(cfg, date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}

// cycleConfigFrom parses optional billing days. ok is false when both are empty.
func cycleConfigFrom(closeDay, dueDay string) (cfg billing.CycleConfig, ok bool, err error) {
	if closeDay == "" && dueDay == "" {
		return cfg, false, nil
	}
	if cfg.CloseDay, err = strconv.Atoi(closeDay); err != nil {
		return cfg, false, errors.New("close day must be a number")
	}
	if cfg.DueDay, err = strconv.Atoi(dueDay); err != nil {
		return cfg, false, errors.New("due day must be a number")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, false, err
	}
	return cfg, true, nil
}

func writeExtractError(w http.ResponseWriter, err error) {
	var fe *extractor.FormatError
	if !errors.As(err, &fe) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusUnprocessableEntity
	if fe.Kind == extractor.KindUnsupported {
		status = http.StatusUnsupportedMediaType
	}
	writeJSON(w, status, map[string]string{
		"error": fe.Error(),
		"kind":  fe.Kind.String(),
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
