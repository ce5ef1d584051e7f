package capture

import (
	"log/slog"
	"sync"
	"time"
)

// Phase represents the current state of a recording session
type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhaseRecording Phase = "RECORDING"
	PhasePaused    Phase = "PAUSED"
	PhaseFinished  Phase = "FINISHED"
)

const (
	DefaultMaxDuration  = 60 * time.Second
	DefaultTickInterval = 100 * time.Millisecond

	// minSpan is the shortest segment worth committing, in percent.
	minSpan = 1e-9
)

// Callbacks are the events a Tracker fires. Any of them may be nil.
// They run on the goroutine that caused the transition, after the
// tracker's lock has been released, so they may call back into the tracker.
type Callbacks struct {
	OnCapture              func(State)
	OnUpload               func()
	OnNext                 func(State)
	OnRecordingStart       func()
	OnTogglePause          func(paused bool)
	OnRecordingStateChange func(recording bool)
}

// Options configures a Tracker.
type Options struct {
	MaxDuration  time.Duration
	TickInterval time.Duration

	// RetainRedo keeps the redo buffer when a new segment is committed
	// after an undo. By default the buffer is cleared.
	RetainRedo bool

	Clock     Clock
	Callbacks Callbacks
}

// State is a point-in-time copy of the tracker.
type State struct {
	Phase                      Phase     `json:"phase" yaml:"phase"`
	Segments                   []Segment `json:"segments" yaml:"segments"`
	Undone                     []Segment `json:"undone" yaml:"undone"`
	TotalElapsedSeconds        float64   `json:"total_elapsed_seconds" yaml:"total_elapsed_seconds"`
	LiveProgressPercent        float64   `json:"live_progress_percent" yaml:"live_progress_percent"`
	CurrentSegmentStartPercent float64   `json:"current_segment_start_percent" yaml:"current_segment_start_percent"`
	MaxDurationSeconds         float64   `json:"max_duration_seconds" yaml:"max_duration_seconds"`
}

// Elapsed formats the live progress as "m:ss".
func (s State) Elapsed() string {
	return FormatTime(s.LiveProgressPercent / 100 * s.MaxDurationSeconds)
}

// Tracker is the segmented recording state machine. It owns the session
// ledger and the progress tick that runs while recording.
type Tracker struct {
	opts  Options
	clock Clock

	mu               sync.Mutex
	phase            Phase
	ledger           Ledger
	totalElapsed     float64
	segmentStart     float64
	segmentStartedAt time.Time
	live             float64
	tick             *tickRun
	closed           bool
}

type tickRun struct {
	ticker Ticker
	stop   chan struct{}
	done   chan struct{}
}

// NewTracker creates an idle tracker.
func NewTracker(opts Options) *Tracker {
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultMaxDuration
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}

	return &Tracker{
		opts:  opts,
		clock: opts.Clock,
		phase: PhaseIdle,
	}
}

// MaxDuration returns the configured session length.
func (t *Tracker) MaxDuration() time.Duration {
	return t.opts.MaxDuration
}

// Phase returns the current phase.
func (t *Tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Start begins a new session from IDLE or FINISHED, discarding any
// previous ledger.
func (t *Tracker) Start() bool {
	t.mu.Lock()
	if t.closed || (t.phase != PhaseIdle && t.phase != PhaseFinished) {
		t.mu.Unlock()
		return false
	}

	t.ledger.Reset()
	t.totalElapsed = 0
	t.segmentStart = 0
	t.live = 0
	t.segmentStartedAt = t.clock.Now()
	t.phase = PhaseRecording
	t.startTickLocked()
	t.mu.Unlock()

	slog.Debug("Recording started", "max_duration", t.opts.MaxDuration)

	cb := t.opts.Callbacks
	if cb.OnRecordingStart != nil {
		cb.OnRecordingStart()
	}
	if cb.OnRecordingStateChange != nil {
		cb.OnRecordingStateChange(true)
	}
	return true
}

// PauseResume closes the in-flight segment when recording and opens a new
// one when paused.
func (t *Tracker) PauseResume() bool {
	_, ok := t.Toggle()
	return ok
}

// Toggle is PauseResume reporting the phase the transition left the tracker
// in. Pausing at the maximum duration finishes the session instead.
func (t *Tracker) Toggle() (Phase, bool) {
	t.mu.Lock()
	switch t.phase {
	case PhaseRecording:
		now := t.clock.Now()
		t.live = t.progressAtLocked(now)
		if t.live >= 100 {
			run, state := t.finishLocked(now)
			t.mu.Unlock()
			waitTick(run)
			t.emitFinished(state, true)
			return PhaseFinished, true
		}

		t.commitLocked(Segment{StartPercent: t.segmentStart, EndPercent: t.live})
		t.segmentStart = t.live
		t.phase = PhasePaused
		run := t.cancelTickLocked()
		total := t.totalElapsed
		t.mu.Unlock()

		waitTick(run)
		slog.Debug("Recording paused", "total_elapsed", total)
		t.emitToggle(true)
		return PhasePaused, true

	case PhasePaused:
		t.segmentStart = t.live
		t.segmentStartedAt = t.clock.Now()
		t.phase = PhaseRecording
		t.startTickLocked()
		t.mu.Unlock()

		slog.Debug("Recording resumed")
		t.emitToggle(false)
		return PhaseRecording, true

	default:
		phase := t.phase
		t.mu.Unlock()
		return phase, false
	}
}

// Stop finishes the session, committing the in-flight segment if it has
// any length. It fires OnCapture once per session.
func (t *Tracker) Stop() bool {
	t.mu.Lock()
	if t.phase != PhaseRecording && t.phase != PhasePaused {
		t.mu.Unlock()
		return false
	}
	wasRecording := t.phase == PhaseRecording
	run, state := t.finishLocked(t.clock.Now())
	t.mu.Unlock()

	waitTick(run)
	t.emitFinished(state, wasRecording)
	return true
}

// Undo removes the last committed segment while paused and keeps it for redo.
func (t *Tracker) Undo() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != PhasePaused {
		return false
	}
	seg, ok := t.ledger.Undo()
	if !ok {
		return false
	}

	t.totalElapsed = t.ledger.TotalSeconds(t.opts.MaxDuration)

	t.live = 0
	if last, ok := t.ledger.Last(); ok {
		t.live = last.EndPercent
	}
	t.segmentStart = t.live

	slog.Debug("Segment undone", "segment", seg, "remaining", t.ledger.Len())
	return true
}

// Redo restores the most recently undone segment. It is only honoured while
// paused; a recording in flight owns the end of the timeline.
func (t *Tracker) Redo() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != PhasePaused {
		return false
	}
	seg, ok := t.ledger.Redo()
	if !ok {
		return false
	}

	t.totalElapsed = t.ledger.TotalSeconds(t.opts.MaxDuration)
	t.live = seg.EndPercent
	t.segmentStart = t.live

	slog.Debug("Segment redone", "segment", seg, "committed", t.ledger.Len())
	return true
}

// Next hands the current session to OnNext. It does not change state.
func (t *Tracker) Next() bool {
	t.mu.Lock()
	if t.phase != PhasePaused && t.phase != PhaseFinished {
		t.mu.Unlock()
		return false
	}
	state := t.snapshotLocked(t.clock.Now())
	t.mu.Unlock()

	if t.opts.Callbacks.OnNext != nil {
		t.opts.Callbacks.OnNext(state)
	}
	return true
}

// Upload forwards to OnUpload. Only available before recording starts.
func (t *Tracker) Upload() bool {
	t.mu.Lock()
	idle := t.phase == PhaseIdle
	t.mu.Unlock()

	if !idle {
		return false
	}
	if t.opts.Callbacks.OnUpload != nil {
		t.opts.Callbacks.OnUpload()
	}
	return true
}

// Refresh recomputes the live progress and stops the session once it
// reaches 100%. The progress tick calls it on every interval.
func (t *Tracker) Refresh() {
	t.refresh(nil)
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(t.clock.Now())
}

// Close cancels the progress tick. A closed tracker cannot be started again.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	run := t.cancelTickLocked()
	t.mu.Unlock()

	waitTick(run)
}

func (t *Tracker) refresh(run *tickRun) {
	t.mu.Lock()
	if t.phase != PhaseRecording || (run != nil && t.tick != run) {
		t.mu.Unlock()
		return
	}

	now := t.clock.Now()
	t.live = t.progressAtLocked(now)
	if t.live < 100 {
		t.mu.Unlock()
		return
	}

	slog.Debug("Maximum duration reached, stopping")
	own, state := t.finishLocked(now)
	t.mu.Unlock()

	// The tick loop cannot wait for itself.
	if run == nil {
		waitTick(own)
	}
	t.emitFinished(state, true)
}

func (t *Tracker) progressAtLocked(now time.Time) float64 {
	elapsed := now.Sub(t.segmentStartedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return clampPercent((t.totalElapsed + elapsed) / t.opts.MaxDuration.Seconds() * 100)
}

func (t *Tracker) commitLocked(seg Segment) {
	if seg.Span() <= minSpan {
		return
	}
	t.ledger.Commit(seg)
	if !t.opts.RetainRedo {
		t.ledger.ClearRedo()
	}
	t.totalElapsed = t.ledger.TotalSeconds(t.opts.MaxDuration)
}

func (t *Tracker) finishLocked(now time.Time) (*tickRun, State) {
	if t.phase == PhaseRecording {
		t.live = t.progressAtLocked(now)
		t.commitLocked(Segment{StartPercent: t.segmentStart, EndPercent: t.live})
		t.segmentStart = t.live
	}
	t.phase = PhaseFinished
	run := t.cancelTickLocked()
	return run, t.snapshotLocked(now)
}

func (t *Tracker) snapshotLocked(now time.Time) State {
	live := t.live
	if t.phase == PhaseRecording {
		live = t.progressAtLocked(now)
	}
	return State{
		Phase:                      t.phase,
		Segments:                   t.ledger.Committed(),
		Undone:                     t.ledger.Undone(),
		TotalElapsedSeconds:        t.totalElapsed,
		LiveProgressPercent:        live,
		CurrentSegmentStartPercent: t.segmentStart,
		MaxDurationSeconds:         t.opts.MaxDuration.Seconds(),
	}
}

func (t *Tracker) startTickLocked() {
	run := &tickRun{
		ticker: t.clock.NewTicker(t.opts.TickInterval),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	t.tick = run

	go func() {
		defer close(run.done)
		defer run.ticker.Stop()

		for {
			select {
			case <-run.stop:
				return
			case <-run.ticker.C():
				t.refresh(run)
			}
		}
	}()
}

// cancelTickLocked signals the running tick loop to exit. The caller waits
// for it with waitTick once the lock is released.
func (t *Tracker) cancelTickLocked() *tickRun {
	run := t.tick
	if run == nil {
		return nil
	}
	t.tick = nil
	close(run.stop)
	return run
}

func waitTick(run *tickRun) {
	if run != nil {
		<-run.done
	}
}

func (t *Tracker) emitToggle(paused bool) {
	cb := t.opts.Callbacks
	if cb.OnTogglePause != nil {
		cb.OnTogglePause(paused)
	}
	if cb.OnRecordingStateChange != nil {
		cb.OnRecordingStateChange(!paused)
	}
}

func (t *Tracker) emitFinished(state State, wasRecording bool) {
	slog.Debug("Recording finished", "segments", len(state.Segments), "total_elapsed", state.TotalElapsedSeconds)

	cb := t.opts.Callbacks
	if wasRecording && cb.OnRecordingStateChange != nil {
		cb.OnRecordingStateChange(false)
	}
	if cb.OnCapture != nil {
		cb.OnCapture(state)
	}
}
