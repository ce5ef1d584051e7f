package service

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/audiolibrelab/reelcapture/internal/capture"
	"github.com/audiolibrelab/reelcapture/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) capture.Ticker {
	return fakeTicker{c: make(chan time.Time)}
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeTicker struct{ c chan time.Time }

func (t fakeTicker) C() <-chan time.Time { return t.c }
func (t fakeTicker) Stop()               {}

func newTestService(t *testing.T) (Service, *fakeClock, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Output.Directory = t.TempDir()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := New(cfg, "", WithClock(clock))
	t.Cleanup(svc.Close)
	return svc, clock, cfg
}

func TestService_RecordAndStore(t *testing.T) {
	svc, clock, cfg := newTestService(t)

	require.NoError(t, svc.StartRecording())
	clock.Advance(6 * time.Second)
	require.NoError(t, svc.TogglePause())

	status := svc.GetStatus()
	assert.Equal(t, capture.PhasePaused, status.Phase)
	assert.True(t, status.CanUndo)
	assert.False(t, status.CanRedo)
	assert.True(t, status.Visibility.Secondary)
	assert.Equal(t, "0:06", status.Elapsed)
	assert.NotEmpty(t, status.SessionID)

	require.NoError(t, svc.TogglePause())
	clock.Advance(3 * time.Second)
	require.NoError(t, svc.StopRecording())

	status = svc.GetStatus()
	assert.Equal(t, capture.PhaseFinished, status.Phase)
	require.NotEmpty(t, status.LastCaptureID)
	assert.Equal(t, status.SessionID, status.LastCaptureID)

	_, err := os.Stat(filepath.Join(cfg.Output.Directory, status.LastCaptureID+".yaml"))
	require.NoError(t, err)

	record, err := svc.GetCapture(status.LastCaptureID)
	require.NoError(t, err)
	assert.True(t, record.Finished)
	assert.Len(t, record.Segments, 2)
	assert.InDelta(t, 9.0, record.TotalSeconds, 1e-6)
	assert.Equal(t, "0:09", record.Duration)
	assert.InDelta(t, 60.0, record.MaxDurationSeconds, 1e-9)

	captures, err := svc.ListCaptures()
	require.NoError(t, err)
	require.Len(t, captures, 1)
	assert.Equal(t, record.ID, captures[0].ID)
	assert.Equal(t, 2, captures[0].SegmentCount)
	assert.Equal(t, "/api/captures/"+record.ID, captures[0].DetailURL)
}

func TestService_UndoRedo(t *testing.T) {
	svc, clock, _ := newTestService(t)

	require.NoError(t, svc.StartRecording())
	clock.Advance(12 * time.Second)
	require.NoError(t, svc.TogglePause())

	require.NoError(t, svc.Undo())
	status := svc.GetStatus()
	assert.Empty(t, status.Segments)
	assert.True(t, status.CanRedo)
	assert.InDelta(t, 0.0, status.TotalElapsedSeconds, 1e-9)

	err := svc.Undo()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, svc.Redo())
	status = svc.GetStatus()
	require.Len(t, status.Segments, 1)
	assert.InDelta(t, 20.0, status.Segments[0].EndPercent, 1e-6)
	assert.InDelta(t, 12.0, status.TotalElapsedSeconds, 1e-6)
}

func TestService_ToggleReportsPhase(t *testing.T) {
	svc, clock, _ := newTestService(t)

	require.NoError(t, svc.StartRecording())
	clock.Advance(5 * time.Second)

	phase, err := svc.Toggle()
	require.NoError(t, err)
	assert.Equal(t, capture.PhasePaused, phase)

	phase, err = svc.Toggle()
	require.NoError(t, err)
	assert.Equal(t, capture.PhaseRecording, phase)

	clock.Advance(60 * time.Second)
	phase, err = svc.Toggle()
	require.NoError(t, err)
	assert.Equal(t, capture.PhaseFinished, phase, "pausing at the limit finishes the session")

	phase, err = svc.Toggle()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, capture.PhaseFinished, phase)
}

func TestService_InvalidTransitions(t *testing.T) {
	svc, _, _ := newTestService(t)

	for name, action := range map[string]func() error{
		"toggle": svc.TogglePause,
		"undo":   svc.Undo,
		"redo":   svc.Redo,
		"stop":   svc.StopRecording,
	} {
		t.Run(name, func(t *testing.T) {
			err := action()
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Contains(t, err.Error(), string(capture.PhaseIdle))
		})
	}

	_, err := svc.Next()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NotEmpty(t, svc.GetLastError())

	require.NoError(t, svc.StartRecording())
	assert.Empty(t, svc.GetLastError(), "start should clear the last error")

	err = svc.StartRecording()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestService_NextStoresPausedSession(t *testing.T) {
	svc, clock, _ := newTestService(t)

	require.NoError(t, svc.StartRecording())
	clock.Advance(4 * time.Second)
	require.NoError(t, svc.TogglePause())

	record, err := svc.Next()
	require.NoError(t, err)
	assert.False(t, record.Finished)
	assert.Len(t, record.Segments, 1)
	assert.Equal(t, capture.PhasePaused, svc.GetStatus().Phase, "next must not change the phase")

	stored, err := svc.GetCapture(record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.Segments, stored.Segments)

	require.NoError(t, svc.StopRecording())
	finished, err := svc.Next()
	require.NoError(t, err)
	assert.Equal(t, record.ID, finished.ID, "a session keeps its capture ID")
	assert.True(t, finished.Finished)

	captures, err := svc.ListCaptures()
	require.NoError(t, err)
	assert.Len(t, captures, 1)
}

func TestService_NextReportsStoreFailure(t *testing.T) {
	cfg := config.Default()
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0644))
	cfg.Output.Directory = filepath.Join(blocker, "captures")

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := New(cfg, "", WithClock(clock))
	t.Cleanup(svc.Close)

	require.NoError(t, svc.StartRecording())
	clock.Advance(3 * time.Second)
	require.NoError(t, svc.TogglePause())

	record, err := svc.Next()
	require.Error(t, err)
	assert.Nil(t, record)
	assert.Contains(t, err.Error(), "failed to store capture")
	assert.Contains(t, err.Error(), "failed to create captures directory")
	assert.NotEmpty(t, svc.GetLastError())
}

func TestService_Upload(t *testing.T) {
	svc, clock, _ := newTestService(t)

	captures, err := svc.Upload()
	require.NoError(t, err)
	assert.Empty(t, captures)
	assert.Equal(t, 1, svc.GetStatus().UploadRequests)

	require.NoError(t, svc.StartRecording())
	_, err = svc.Upload()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	clock.Advance(2 * time.Second)
	require.NoError(t, svc.StopRecording())

	// Upload is an idle-only affordance, so a finished session hides it.
	_, err = svc.Upload()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 1, svc.GetStatus().UploadRequests)
}

func TestService_EmptyCaptureNotStored(t *testing.T) {
	svc, _, _ := newTestService(t)

	require.NoError(t, svc.StartRecording())
	require.NoError(t, svc.StopRecording())

	status := svc.GetStatus()
	assert.Equal(t, capture.PhaseFinished, status.Phase)
	assert.Empty(t, status.LastCaptureID)

	captures, err := svc.ListCaptures()
	require.NoError(t, err)
	assert.Empty(t, captures)
}

func TestService_GetCaptureNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetCapture("../../etc/passwd")
	assert.ErrorIs(t, err, ErrCaptureNotFound)

	_, err = svc.GetCapture("4b1c3f0e-52a4-4c55-9a2e-0d3c1f0b7a11")
	assert.ErrorIs(t, err, ErrCaptureNotFound)
}

func TestService_ListCapturesSkipsForeignFiles(t *testing.T) {
	svc, clock, cfg := newTestService(t)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Output.Directory, "notes.txt"), []byte("hello"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Output.Directory, "broken.yaml"), []byte("segments: [[["), 0644))

	require.NoError(t, svc.StartRecording())
	clock.Advance(time.Second)
	require.NoError(t, svc.StopRecording())

	captures, err := svc.ListCaptures()
	require.NoError(t, err)
	require.Len(t, captures, 1)
	assert.Equal(t, svc.GetStatus().LastCaptureID, captures[0].ID)
}

func TestService_GetRing(t *testing.T) {
	svc, clock, _ := newTestService(t)

	require.NoError(t, svc.StartRecording())
	clock.Advance(15 * time.Second)

	ring := svc.GetRing(50)
	assert.Empty(t, ring.Committed)
	require.NotNil(t, ring.Live)
	assert.InDelta(t, 50.0, ring.Live.Start.X, 1e-9)
	assert.InDelta(t, 0.0, ring.Live.Start.Y, 1e-9)
	assert.InDelta(t, 100.0, ring.Live.End.X, 1e-9)
	assert.InDelta(t, 50.0, ring.Live.End.Y, 1e-9)
}

func TestService_LoadProfile(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "reelcapture.yaml")
	content := `
active_config: default
configs:
  default:
    output:
      directory: ` + filepath.Join(dir, "captures") + `
  story:
    recording:
      max_duration_seconds: 15
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	cfg, err := config.LoadWithProfile(configFile, "")
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := New(cfg, configFile, WithClock(clock))
	t.Cleanup(svc.Close)

	require.NoError(t, svc.StartRecording())
	err = svc.LoadProfile("story")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, "default", svc.GetConfig().Profile)

	clock.Advance(time.Second)
	require.NoError(t, svc.StopRecording())

	require.NoError(t, svc.LoadProfile("story"))
	assert.Equal(t, "story", svc.GetConfig().Profile)

	status := svc.GetStatus()
	assert.Equal(t, capture.PhaseIdle, status.Phase)
	assert.InDelta(t, 15.0, status.MaxDurationSeconds, 1e-9)

	assert.Error(t, svc.LoadProfile("missing"))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2*1024*1024))
}
