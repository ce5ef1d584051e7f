package tui

import "time"

// TickMsg asks the model to refresh the session status.
type TickMsg struct {
	Time time.Time
}

// ClearErrorMsg clears a transient error after a timeout.
type ClearErrorMsg struct{}
