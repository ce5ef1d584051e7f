package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/audiolibrelab/reelcapture/internal/capture"
	"github.com/audiolibrelab/reelcapture/internal/config"
	"github.com/audiolibrelab/reelcapture/internal/service"
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

const testConfig = `
active_config: default
configs:
  default:
    output:
      directory: %s
  story:
    recording:
      max_duration_seconds: 15
`

func newTestServer(t *testing.T) (*Server, *fakeClock) {
	t.Helper()
	dir := t.TempDir()
	configFile := filepath.Join(dir, "reelcapture.yaml")
	content := strings.Replace(testConfig, "%s", filepath.Join(dir, "captures"), 1)
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	cfg, err := config.LoadWithProfile(configFile, "")
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := service.New(cfg, configFile, service.WithClock(clock))
	t.Cleanup(svc.Close)

	return New(svc, configFile, "0"), clock
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestRecordFlow(t *testing.T) {
	s, clock := newTestServer(t)
	h := s.Router()

	rr := do(t, h, http.MethodPost, "/api/record/start", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[GenericResponse](t, rr).Success)

	clock.Advance(6 * time.Second)
	rr = do(t, h, http.MethodPost, "/api/record/toggle", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Recording paused", decode[GenericResponse](t, rr).Message)

	rr = do(t, h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rr.Code)
	status := decode[StatusResponse](t, rr)
	assert.Equal(t, "PAUSED", status.Status)
	assert.Equal(t, "0:06", status.Session.Elapsed)
	assert.Len(t, status.Session.Segments, 1)
	assert.True(t, status.Session.Visibility.Secondary)
	assert.Equal(t, "default", status.ActiveProfile)
	require.NotNil(t, status.Config)
	assert.InDelta(t, 60.0, status.Config.MaxDurationSeconds, 1e-9)

	rr = do(t, h, http.MethodPost, "/api/record/undo", "")
	require.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, h, http.MethodPost, "/api/record/redo", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/record/toggle", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Recording resumed", decode[GenericResponse](t, rr).Message)

	clock.Advance(4 * time.Second)
	rr = do(t, h, http.MethodPost, "/api/record/stop", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/record/next", "")
	require.Equal(t, http.StatusOK, rr.Code)
	next := decode[NextResponse](t, rr)
	require.NotNil(t, next.Capture)
	assert.True(t, next.Capture.Finished)
	assert.Len(t, next.Capture.Segments, 2)

	rr = do(t, h, http.MethodGet, "/api/captures", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[CapturesResponse](t, rr)
	require.Equal(t, 1, list.TotalCount)
	assert.Equal(t, next.Capture.ID, list.Captures[0].ID)

	rr = do(t, h, http.MethodGet, "/api/captures/"+next.Capture.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	record := decode[service.CaptureRecord](t, rr)
	assert.InDelta(t, 10.0, record.TotalSeconds, 1e-6)
}

func TestToggleReportsResultingPhase(t *testing.T) {
	s, clock := newTestServer(t)
	h := s.Router()

	do(t, h, http.MethodPost, "/api/record/start", "")
	clock.Advance(60 * time.Second)

	rr := do(t, h, http.MethodPost, "/api/record/toggle", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Maximum length reached, recording finished", decode[GenericResponse](t, rr).Message)

	rr = do(t, h, http.MethodGet, "/api/status", "")
	assert.Equal(t, "FINISHED", decode[StatusResponse](t, rr).Status)
}

func TestInvalidTransitionIsConflict(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()

	for _, path := range []string{"/api/record/toggle", "/api/record/undo", "/api/record/redo", "/api/record/stop", "/api/record/next"} {
		rr := do(t, h, http.MethodPost, path, "")
		assert.Equal(t, http.StatusConflict, rr.Code, path)
		resp := decode[GenericResponse](t, rr)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "invalid transition")
	}

	rr := do(t, h, http.MethodGet, "/api/status", "")
	assert.NotEmpty(t, decode[StatusResponse](t, rr).LastError)
}

func TestUpload(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()

	rr := do(t, h, http.MethodPost, "/api/record/upload", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[CapturesResponse](t, rr)
	assert.Equal(t, 0, list.TotalCount)
	assert.NotNil(t, list.Captures)

	do(t, h, http.MethodPost, "/api/record/start", "")
	rr = do(t, h, http.MethodPost, "/api/record/upload", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()

	rr := do(t, h, http.MethodGet, "/api/record/start", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestCaptureNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()

	rr := do(t, h, http.MethodGet, "/api/captures/4b1c3f0e-52a4-4c55-9a2e-0d3c1f0b7a11", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/captures/not-an-id", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRingSVG(t *testing.T) {
	s, clock := newTestServer(t)
	h := s.Router()

	rr := do(t, h, http.MethodGet, "/api/ring.svg", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/svg+xml", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), `class="track"`)
	assert.NotContains(t, rr.Body.String(), "<path")

	do(t, h, http.MethodPost, "/api/record/start", "")
	clock.Advance(15 * time.Second)
	do(t, h, http.MethodPost, "/api/record/toggle", "")
	do(t, h, http.MethodPost, "/api/record/toggle", "")
	clock.Advance(15 * time.Second)

	rr = do(t, h, http.MethodGet, "/api/ring.svg?radius=50", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Equal(t, 1, strings.Count(body, `class="committed"`))
	assert.Equal(t, 1, strings.Count(body, `class="live"`))
	assert.Contains(t, body, `d="M 50.000 0.000 A 50.000 50.000 0 0 1 100.000 50.000"`)

	rr = do(t, h, http.MethodGet, "/api/ring.svg?radius=-1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRenderRingSVG_Full(t *testing.T) {
	ring := capture.Ring{
		Radius:    10,
		Center:    capture.Point{X: 10, Y: 10},
		Committed: []capture.Arc{capture.ArcFor(capture.Segment{StartPercent: 0, EndPercent: 100}, 10, capture.Point{X: 10, Y: 10})},
		Full:      true,
	}

	svg := renderRingSVG(ring)
	assert.Equal(t, 2, strings.Count(svg, "<circle"))
	assert.NotContains(t, svg, "<path")
}

func TestProfiles(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()

	rr := do(t, h, http.MethodGet, "/api/config/profiles", "")
	require.Equal(t, http.StatusOK, rr.Code)
	profiles := decode[ProfilesResponse](t, rr)
	assert.Equal(t, []string{"default", "story"}, profiles.Profiles)
	assert.Equal(t, "default", profiles.ActiveProfile)

	rr = do(t, h, http.MethodPost, "/api/config/select", `{"profile":"story"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/api/status", "")
	status := decode[StatusResponse](t, rr)
	assert.Equal(t, "story", status.ActiveProfile)
	assert.InDelta(t, 15.0, status.Session.MaxDurationSeconds, 1e-9)

	rr = do(t, h, http.MethodPost, "/api/config/select", `{"profile":""}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/config/select", `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStartAndShutdown(t *testing.T) {
	s, _ := newTestServer(t)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown may win the race against ListenAndServe; Start then returns
	// immediately with http.ErrServerClosed, which it reports as nil.
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
