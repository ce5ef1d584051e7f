package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/audiolibrelab/reelcapture/internal/capture"
	"github.com/audiolibrelab/reelcapture/internal/config"
	"github.com/audiolibrelab/reelcapture/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	defaultRingRadius = 48.0
	maxRingRadius     = 512.0
	ringStrokeWidth   = 8.0
)

// Server represents the web server for controlling ReelCapture
type Server struct {
	service    service.Service
	configFile string
	port       string
	httpServer *http.Server
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	Status        string              `json:"status"`
	Message       string              `json:"message,omitempty"`
	Session       service.Status      `json:"session"`
	Config        *ResolvedConfigInfo `json:"resolved_config"`
	ActiveProfile string              `json:"active_profile"`
	LastError     string              `json:"last_error,omitempty"`
}

// ResolvedConfigInfo contains configuration information for the UI
type ResolvedConfigInfo struct {
	ActiveProfile      string  `json:"active_profile"`
	OutputDir          string  `json:"output_dir"`
	MaxDurationSeconds float64 `json:"max_duration_seconds"`
	TickIntervalMs     int     `json:"tick_interval_ms"`
	RetainRedo         bool    `json:"retain_redo"`
}

// GenericResponse represents a generic API response
type GenericResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// NextResponse carries the capture handed over for editing
type NextResponse struct {
	GenericResponse
	Capture *service.CaptureRecord `json:"capture"`
}

// CapturesResponse represents the JSON response for captures endpoint
type CapturesResponse struct {
	Captures        []service.CaptureInfo `json:"captures"`
	TotalCount      int                   `json:"total_count"`
	OutputDirectory string                `json:"output_directory"`
}

// ProfilesResponse lists the profiles of the config file
type ProfilesResponse struct {
	Profiles      []string `json:"profiles"`
	ActiveProfile string   `json:"active_profile"`
}

// ProfileSelectRequest represents a request to switch profile
type ProfileSelectRequest struct {
	Profile string `json:"profile"`
}

// New creates a new web server instance around a service
func New(svc service.Service, configFile, port string) *Server {
	if port == "" {
		port = svc.GetConfig().Server.Port
	}

	s := &Server{
		service:    svc,
		configFile: configFile,
		port:       port,
	}
	s.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/", s.handleIndex)

	r.Route("/api", func(r chi.Router) {
		r.Route("/record", func(r chi.Router) {
			r.Post("/start", s.handleAction("start", s.service.StartRecording, "Recording started"))
			r.Post("/toggle", s.handleToggle)
			r.Post("/undo", s.handleAction("undo", s.service.Undo, "Segment undone"))
			r.Post("/redo", s.handleAction("redo", s.service.Redo, "Segment restored"))
			r.Post("/stop", s.handleAction("stop", s.service.StopRecording, "Recording stopped"))
			r.Post("/next", s.handleNext)
			r.Post("/upload", s.handleUpload)
		})

		r.Get("/status", s.handleStatus)
		r.Get("/ring.svg", s.handleRing)
		r.Get("/captures", s.handleCaptures)
		r.Get("/captures/{id}", s.handleCapture)

		r.Get("/config/profiles", s.handleProfiles)
		r.Post("/config/select", s.handleSelectProfile)
	})

	return r
}

// Start starts the web server and blocks until it is shut down
func (s *Server) Start() error {
	localIP := getLocalIP()

	slog.Info("Starting ReelCapture Web Server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and closes
// the service.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.service.Close()
	if err != nil {
		return fmt.Errorf("web server shutdown failed: %w", err)
	}
	slog.Info("Web server stopped")
	return nil
}

// handleIndex serves a minimal page with the live progress ring
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>ReelCapture</title>
</head>
<body>
    <h1>ReelCapture</h1>
    <img id="ring" src="/api/ring.svg" alt="progress">
    <h2>API Endpoints:</h2>
    <ul>
        <li>POST /api/record/{start,toggle,undo,redo,stop,next,upload}</li>
        <li>GET /api/status</li>
        <li>GET /api/ring.svg</li>
        <li>GET /api/captures</li>
    </ul>
    <script>setInterval(function () { document.getElementById("ring").src = "/api/ring.svg?t=" + Date.now(); }, 250);</script>
</body>
</html>`

// handleAction adapts a parameterless service transition to a handler
func (s *Server) handleAction(operation string, action func() error, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := action(); err != nil {
			s.sendServiceError(w, err, "operation", operation)
			return
		}
		s.sendJSON(w, http.StatusOK, GenericResponse{Success: true, Message: message})
	}
}

// handleToggle pauses or resumes and reports which one happened
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	phase, err := s.service.Toggle()
	if err != nil {
		s.sendServiceError(w, err, "operation", "toggle")
		return
	}

	var message string
	switch phase {
	case capture.PhasePaused:
		message = "Recording paused"
	case capture.PhaseFinished:
		message = "Maximum length reached, recording finished"
	default:
		message = "Recording resumed"
	}
	s.sendJSON(w, http.StatusOK, GenericResponse{Success: true, Message: message})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.Next()
	if err != nil {
		s.sendServiceError(w, err, "operation", "next")
		return
	}
	s.sendJSON(w, http.StatusOK, NextResponse{
		GenericResponse: GenericResponse{Success: true, Message: "Capture ready for editing"},
		Capture:         record,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	captures, err := s.service.Upload()
	if err != nil {
		s.sendServiceError(w, err, "operation", "upload")
		return
	}
	s.sendJSON(w, http.StatusOK, s.capturesResponse(captures))
}

// handleStatus returns the current status and session info
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.service.GetStatus()
	cfg := s.service.GetConfig()

	response := StatusResponse{
		Status:        string(status.Phase),
		Message:       statusMessage(status),
		Session:       status,
		Config:        resolvedConfigInfo(cfg),
		ActiveProfile: cfg.Profile,
		LastError:     s.service.GetLastError(),
	}
	s.sendJSON(w, http.StatusOK, response)
}

// handleRing renders the segmented progress ring as SVG
func (s *Server) handleRing(w http.ResponseWriter, r *http.Request) {
	radius := defaultRingRadius
	if v := r.URL.Query().Get("radius"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 || parsed > maxRingRadius {
			s.sendErrorResponse(w, http.StatusBadRequest,
				fmt.Sprintf("radius must be a number between 0 and %.0f", maxRingRadius),
				"radius", v)
			return
		}
		radius = parsed
	}

	ring := s.service.GetRing(radius)

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(renderRingSVG(ring)))
}

func (s *Server) handleCaptures(w http.ResponseWriter, r *http.Request) {
	captures, err := s.service.ListCaptures()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list captures: %v", err), "operation", "list_captures")
		return
	}
	s.sendJSON(w, http.StatusOK, s.capturesResponse(captures))
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := s.service.GetCapture(id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrCaptureNotFound) {
			status = http.StatusNotFound
		}
		s.sendErrorResponse(w, status, err.Error(), "capture_id", id)
		return
	}
	s.sendJSON(w, http.StatusOK, record)
}

// handleProfiles returns available configuration profiles
func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := config.ListProfiles(s.configFile)
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to read profiles: %v", err), "operation", "list_profiles")
		return
	}
	s.sendJSON(w, http.StatusOK, ProfilesResponse{
		Profiles:      profiles,
		ActiveProfile: s.service.GetConfig().Profile,
	})
}

// handleSelectProfile switches the service to another profile and makes it
// the active one in the config file
func (s *Server) handleSelectProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileSelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Invalid JSON request body", "operation", "select_profile")
		return
	}
	if strings.TrimSpace(req.Profile) == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "Profile name is required", "operation", "select_profile")
		return
	}

	if err := s.service.LoadProfile(req.Profile); err != nil {
		s.sendServiceError(w, err, "profile", req.Profile, "operation", "select_profile")
		return
	}

	if err := config.UpdateActiveConfig(s.configFile, req.Profile); err != nil {
		// The profile is loaded; only persisting the choice failed.
		slog.Warn("Failed to persist active profile", "profile", req.Profile, "error", err)
	}

	s.sendJSON(w, http.StatusOK, GenericResponse{
		Success: true,
		Message: fmt.Sprintf("Profile '%s' loaded", req.Profile),
	})
}

func (s *Server) capturesResponse(captures []service.CaptureInfo) CapturesResponse {
	if captures == nil {
		captures = []service.CaptureInfo{}
	}
	return CapturesResponse{
		Captures:        captures,
		TotalCount:      len(captures),
		OutputDirectory: s.service.GetConfig().Output.Directory,
	}
}

func resolvedConfigInfo(cfg *config.Config) *ResolvedConfigInfo {
	return &ResolvedConfigInfo{
		ActiveProfile:      cfg.Profile,
		OutputDir:          cfg.Output.Directory,
		MaxDurationSeconds: cfg.Recording.MaxDurationSeconds,
		TickIntervalMs:     cfg.Recording.TickIntervalMs,
		RetainRedo:         cfg.Recording.RetainRedo,
	}
}

func statusMessage(status service.Status) string {
	switch status.Phase {
	case capture.PhaseIdle:
		return "Ready to record"
	case capture.PhaseRecording:
		return fmt.Sprintf("Recording %s", status.Elapsed)
	case capture.PhasePaused:
		return fmt.Sprintf("Paused at %s, %d segment(s)", status.Elapsed, len(status.Segments))
	case capture.PhaseFinished:
		return fmt.Sprintf("Capture finished, %s recorded", capture.FormatTime(status.TotalElapsedSeconds))
	default:
		return ""
	}
}

// sendServiceError maps service errors to HTTP status codes
func (s *Server) sendServiceError(w http.ResponseWriter, err error, logContext ...interface{}) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, service.ErrCaptureNotFound):
		status = http.StatusNotFound
	}
	s.sendErrorResponse(w, status, err.Error(), logContext...)
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	s.sendJSON(w, statusCode, GenericResponse{Success: false, Error: errorMsg})
}

func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
