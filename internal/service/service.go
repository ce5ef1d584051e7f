package service

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/reelcapture/internal/capture"
	"github.com/audiolibrelab/reelcapture/internal/config"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidTransition is returned when an action is not allowed in the
	// current recording phase.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrCaptureNotFound is returned when no stored capture matches an ID.
	ErrCaptureNotFound = errors.New("capture not found")
)

const captureExt = ".yaml"

// Service represents the core ReelCapture service interface
type Service interface {
	// Recording operations
	StartRecording() error
	TogglePause() error
	Toggle() (capture.Phase, error)
	Undo() error
	Redo() error
	StopRecording() error
	GetStatus() Status
	GetRing(radius float64) capture.Ring

	// Hand-off operations
	Next() (*CaptureRecord, error)
	Upload() ([]CaptureInfo, error)

	// Capture operations
	ListCaptures() ([]CaptureInfo, error)
	GetCapture(id string) (*CaptureRecord, error)

	// Configuration operations
	LoadProfile(profile string) error
	GetConfig() *config.Config

	GetLastError() string
	Close()
}

// Status is the state reported to control surfaces.
type Status struct {
	capture.State

	Elapsed        string             `json:"elapsed"`
	Visibility     capture.Visibility `json:"visibility"`
	CanUndo        bool               `json:"can_undo"`
	CanRedo        bool               `json:"can_redo"`
	SessionID      string             `json:"session_id,omitempty"`
	LastCaptureID  string             `json:"last_capture_id,omitempty"`
	UploadRequests int                `json:"upload_requests"`
}

// CaptureRecord is the ledger of a capture as stored on disk.
type CaptureRecord struct {
	ID                 string            `json:"id" yaml:"id"`
	CreatedAt          time.Time         `json:"created_at" yaml:"created_at"`
	MaxDurationSeconds float64           `json:"max_duration_seconds" yaml:"max_duration_seconds"`
	TotalSeconds       float64           `json:"total_seconds" yaml:"total_seconds"`
	Duration           string            `json:"duration" yaml:"duration"`
	Finished           bool              `json:"finished" yaml:"finished"`
	Segments           []capture.Segment `json:"segments" yaml:"segments"`
}

// CaptureInfo describes a stored capture file
type CaptureInfo struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	CreatedAt    time.Time `json:"created_at"`
	SegmentCount int       `json:"segment_count"`
	TotalSeconds float64   `json:"total_seconds"`
	Duration     string    `json:"duration"`
	Finished     bool      `json:"finished"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	ModTime      time.Time `json:"mod_time"`
	ModTimeHuman string    `json:"mod_time_human"`
	DetailURL    string    `json:"detail_url"`
}

// Option customises a service instance.
type Option func(*ReelCaptureService)

// WithClock replaces the wall clock used by the recording tracker.
func WithClock(clock capture.Clock) Option {
	return func(s *ReelCaptureService) {
		s.clock = clock
	}
}

// ReelCaptureService is the main service implementation
type ReelCaptureService struct {
	mu         sync.RWMutex
	cfg        *config.Config
	configFile string
	clock      capture.Clock
	controls   *capture.Controls

	// Session bookkeeping, written from tracker callbacks
	captureMu      sync.Mutex
	outputDir      string
	sessionID      string
	sessionStart   time.Time
	lastCaptureID  string
	nextRecord     *CaptureRecord
	nextErr        error
	uploadRequests int

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a new ReelCapture service instance
func New(cfg *config.Config, configFile string, opts ...Option) Service {
	s := &ReelCaptureService{
		cfg:        cfg,
		configFile: configFile,
		clock:      capture.RealClock{},
		outputDir:  cfg.Output.Directory,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.controls = s.newControls(cfg)
	return s
}

func (s *ReelCaptureService) newControls(cfg *config.Config) *capture.Controls {
	tracker := capture.NewTracker(capture.Options{
		MaxDuration:  cfg.MaxDuration(),
		TickInterval: cfg.TickInterval(),
		RetainRedo:   cfg.Recording.RetainRedo,
		Clock:        s.clock,
		Callbacks: capture.Callbacks{
			OnRecordingStart: s.onRecordingStart,
			OnCapture:        s.onCapture,
			OnNext:           s.onNext,
			OnUpload:         s.onUpload,
		},
	})
	return capture.NewControls(tracker, nil)
}

func (s *ReelCaptureService) getControls() *capture.Controls {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.controls
}

// StartRecording begins a new session (IDLE/FINISHED -> RECORDING)
func (s *ReelCaptureService) StartRecording() error {
	c := s.getControls()
	if !c.Start() {
		return s.rejected("start", c)
	}
	s.clearLastError()
	return nil
}

// TogglePause pauses a running session or resumes a paused one
func (s *ReelCaptureService) TogglePause() error {
	_, err := s.Toggle()
	return err
}

// Toggle is TogglePause returning the phase the session ended up in
func (s *ReelCaptureService) Toggle() (capture.Phase, error) {
	c := s.getControls()
	phase, ok := c.Toggle()
	if !ok {
		return phase, s.rejected("toggle pause", c)
	}
	return phase, nil
}

// Undo drops the last committed segment
func (s *ReelCaptureService) Undo() error {
	c := s.getControls()
	if !c.Undo() {
		return s.rejected("undo", c)
	}
	return nil
}

// Redo restores the last undone segment
func (s *ReelCaptureService) Redo() error {
	c := s.getControls()
	if !c.Redo() {
		return s.rejected("redo", c)
	}
	return nil
}

// StopRecording finishes the current session and stores the capture
func (s *ReelCaptureService) StopRecording() error {
	c := s.getControls()
	if !c.Stop() {
		return s.rejected("stop", c)
	}
	return nil
}

// Next hands the current capture over for editing. A paused session is
// stored first so the record on disk matches what is handed over.
func (s *ReelCaptureService) Next() (*CaptureRecord, error) {
	c := s.getControls()

	s.captureMu.Lock()
	s.nextRecord = nil
	s.nextErr = nil
	s.captureMu.Unlock()

	if !c.Next() {
		return nil, s.rejected("continue", c)
	}

	s.captureMu.Lock()
	record, err := s.nextRecord, s.nextErr
	s.captureMu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("failed to store capture: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("no capture to continue with")
	}
	return record, nil
}

// Upload opens the capture gallery. It is only available before recording.
func (s *ReelCaptureService) Upload() ([]CaptureInfo, error) {
	c := s.getControls()
	if !c.Upload() {
		return nil, s.rejected("upload", c)
	}
	return s.ListCaptures()
}

// GetStatus returns the current recording state and the controls to show
func (s *ReelCaptureService) GetStatus() Status {
	state := s.getControls().Tracker().Snapshot()

	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	status := Status{
		State:          state,
		Elapsed:        state.Elapsed(),
		Visibility:     capture.VisibilityFor(state.Phase),
		CanUndo:        state.Phase == capture.PhasePaused && len(state.Segments) > 0,
		CanRedo:        state.Phase == capture.PhasePaused && len(state.Undone) > 0,
		LastCaptureID:  s.lastCaptureID,
		UploadRequests: s.uploadRequests,
	}
	if state.Phase != capture.PhaseIdle {
		status.SessionID = s.sessionID
	}
	return status
}

// GetRing returns the progress ring geometry for the current state
func (s *ReelCaptureService) GetRing(radius float64) capture.Ring {
	return capture.RingFor(s.getControls().Tracker().Snapshot(), radius)
}

// LoadProfile loads a new configuration profile. It is refused while a
// session is in progress.
func (s *ReelCaptureService) LoadProfile(profile string) error {
	newCfg, err := config.LoadWithProfile(s.configFile, profile)
	if err != nil {
		return fmt.Errorf("failed to load profile '%s': %w", profile, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	phase := s.controls.Tracker().Phase()
	if phase == capture.PhaseRecording || phase == capture.PhasePaused {
		return fmt.Errorf("%w: cannot switch profile while %s", ErrInvalidTransition, phase)
	}

	s.controls.Tracker().Close()

	s.captureMu.Lock()
	s.outputDir = newCfg.Output.Directory
	s.captureMu.Unlock()

	s.cfg = newCfg
	s.controls = s.newControls(newCfg)
	slog.Info("Profile loaded", "profile", newCfg.Profile, "max_duration", newCfg.MaxDuration())
	return nil
}

// GetConfig returns the current configuration
func (s *ReelCaptureService) GetConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Close stops the progress tick of the current tracker
func (s *ReelCaptureService) Close() {
	s.getControls().Tracker().Close()
}

// ListCaptures returns all stored captures, newest first
func (s *ReelCaptureService) ListCaptures() ([]CaptureInfo, error) {
	dir := s.captureDir()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create captures directory: %w", err)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read captures directory: %w", err)
	}

	var captures []CaptureInfo
	for _, file := range files {
		if file.IsDir() || strings.ToLower(filepath.Ext(file.Name())) != captureExt {
			continue
		}

		filePath := filepath.Join(dir, file.Name())
		info, err := file.Info()
		if err != nil {
			slog.Warn("Failed to get file info", "file", file.Name(), "error", err)
			continue
		}

		record, err := readRecord(filePath)
		if err != nil {
			slog.Warn("Skipping unreadable capture", "file", file.Name(), "error", err)
			continue
		}

		captures = append(captures, CaptureInfo{
			ID:           record.ID,
			Path:         filePath,
			CreatedAt:    record.CreatedAt,
			SegmentCount: len(record.Segments),
			TotalSeconds: record.TotalSeconds,
			Duration:     record.Duration,
			Finished:     record.Finished,
			Size:         info.Size(),
			SizeHuman:    formatBytes(info.Size()),
			ModTime:      info.ModTime(),
			ModTimeHuman: info.ModTime().Format("2006-01-02 15:04:05"),
			DetailURL:    fmt.Sprintf("/api/captures/%s", record.ID),
		})
	}

	// Sort by modification time (newest first)
	sort.Slice(captures, func(i, j int) bool {
		return captures[i].ModTime.After(captures[j].ModTime)
	})

	return captures, nil
}

// GetCapture loads a stored capture by ID
func (s *ReelCaptureService) GetCapture(id string) (*CaptureRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrCaptureNotFound, id)
	}

	record, err := readRecord(filepath.Join(s.captureDir(), id+captureExt))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCaptureNotFound, id)
		}
		return nil, err
	}
	return record, nil
}

// Tracker callbacks. They run after the tracker has released its lock and
// never touch s.mu, which may be held by the caller of the transition.

func (s *ReelCaptureService) onRecordingStart() {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()
	s.sessionID = uuid.NewString()
	s.sessionStart = s.clock.Now()
	slog.Info("Recording started", "session_id", s.sessionID)
}

func (s *ReelCaptureService) onCapture(state capture.State) {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	if len(state.Segments) == 0 {
		slog.Info("Discarding empty capture", "session_id", s.sessionID)
		return
	}

	record, err := s.saveLocked(state)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to store capture: %v", err))
		return
	}
	s.lastCaptureID = record.ID
	slog.Info("Capture finished", "capture_id", record.ID, "segments", len(record.Segments), "duration", record.Duration)
}

func (s *ReelCaptureService) onNext(state capture.State) {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	record, err := s.saveLocked(state)
	if err != nil {
		s.nextErr = err
		s.setLastError(fmt.Sprintf("Failed to store capture: %v", err))
		return
	}
	s.nextRecord = record
	slog.Info("Continuing with capture", "capture_id", record.ID, "finished", record.Finished)
}

func (s *ReelCaptureService) onUpload() {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()
	s.uploadRequests++
	slog.Debug("Upload requested", "requests", s.uploadRequests)
}

// saveLocked writes the session ledger to <dir>/<session id>.yaml. Saving
// the same session again overwrites the file.
func (s *ReelCaptureService) saveLocked(state capture.State) (*CaptureRecord, error) {
	if s.sessionID == "" {
		s.sessionID = uuid.NewString()
		s.sessionStart = s.clock.Now()
	}

	record := &CaptureRecord{
		ID:                 s.sessionID,
		CreatedAt:          s.sessionStart,
		MaxDurationSeconds: state.MaxDurationSeconds,
		TotalSeconds:       state.TotalElapsedSeconds,
		Duration:           capture.FormatTime(state.TotalElapsedSeconds),
		Finished:           state.Phase == capture.PhaseFinished,
		Segments:           state.Segments,
	}

	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create captures directory: %w", err)
	}

	data, err := yaml.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal capture: %w", err)
	}

	path := filepath.Join(s.outputDir, record.ID+captureExt)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write capture %s: %w", path, err)
	}

	return record, nil
}

func (s *ReelCaptureService) captureDir() string {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()
	return s.outputDir
}

func (s *ReelCaptureService) rejected(action string, c *capture.Controls) error {
	err := fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, c.Tracker().Phase())
	s.setLastError(err.Error())
	return err
}

func readRecord(path string) (*CaptureRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var record CaptureRecord
	if err := yaml.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse capture %s: %w", path, err)
	}
	return &record, nil
}

// GetLastError returns the last error message (thread-safe)
func (s *ReelCaptureService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe)
func (s *ReelCaptureService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (s *ReelCaptureService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
