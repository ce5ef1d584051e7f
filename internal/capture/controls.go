package capture

// Visibility says which affordances a capture screen should show.
type Visibility struct {
	Record    bool `json:"record"`
	Secondary bool `json:"secondary"`
	Upload    bool `json:"upload"`
}

// VisibilityFor derives the visible controls from a phase. Undo, redo and
// next are secondary controls and only make sense once something has been
// recorded and the camera is not rolling.
func VisibilityFor(phase Phase) Visibility {
	return Visibility{
		Record:    phase != PhaseFinished,
		Secondary: phase == PhasePaused || phase == PhaseFinished,
		Upload:    phase == PhaseIdle,
	}
}

// Controls binds button presses to tracker transitions.
type Controls struct {
	tracker       *Tracker
	onPauseNotify func(paused bool)
}

// NewControls wraps a tracker. onPauseNotify receives pause-state changes
// raised outside the tracker (for example a parent page losing focus).
func NewControls(tracker *Tracker, onPauseNotify func(paused bool)) *Controls {
	return &Controls{tracker: tracker, onPauseNotify: onPauseNotify}
}

// Tracker returns the underlying state machine.
func (c *Controls) Tracker() *Tracker       { return c.tracker }

// Record is the main capture button: it starts a session when idle or
// finished and toggles pause otherwise.
func (c *Controls) Record() bool {
	switch c.tracker.Phase() {
	case PhaseIdle, PhaseFinished:
		return c.tracker.Start()
	default:
		return c.tracker.PauseResume()
	}
}

func (c *Controls) Start() bool             { return c.tracker.Start() }
func (c *Controls) TogglePauseResume() bool { return c.tracker.PauseResume() }
func (c *Controls) Toggle() (Phase, bool)   { return c.tracker.Toggle() }
func (c *Controls) Undo() bool              { return c.tracker.Undo() }
func (c *Controls) Redo() bool              { return c.tracker.Redo() }
func (c *Controls) Next() bool              { return c.tracker.Next() }
func (c *Controls) Stop() bool              { return c.tracker.Stop() }
func (c *Controls) Upload() bool            { return c.tracker.Upload() }

// NotifyPaused passes an externally observed pause state through. When the
// outside world pauses a running session the tracker is paused too.
func (c *Controls) NotifyPaused(paused bool) {
	if paused && c.tracker.Phase() == PhaseRecording {
		c.tracker.PauseResume()
	}
	if c.onPauseNotify != nil {
		c.onPauseNotify(paused)
	}
}

// Visibility returns the visible affordances for the current phase.
func (c *Controls) Visibility() Visibility {
	return VisibilityFor(c.tracker.Phase())
}

// CanUndo reports whether the undo control would do anything.
func (c *Controls) CanUndo() bool {
	s := c.tracker.Snapshot()
	return s.Phase == PhasePaused && len(s.Segments) > 0
}

// CanRedo reports whether the redo control would do anything.
func (c *Controls) CanRedo() bool {
	s := c.tracker.Snapshot()
	return s.Phase == PhasePaused && len(s.Undone) > 0
}
