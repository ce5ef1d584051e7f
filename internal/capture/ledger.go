package capture

import "time"

// Segment is one continuous recording interval in progress units (0-100).
type Segment struct {
	StartPercent float64 `json:"start_percent" yaml:"start_percent"`
	EndPercent   float64 `json:"end_percent" yaml:"end_percent"`
}

// Span returns the segment length in percent.
func (s Segment) Span() float64 {
	return s.EndPercent - s.StartPercent
}

// Duration returns the recorded seconds the segment represents.
func (s Segment) Duration(maxDuration time.Duration) float64 {
	return s.Span() / 100 * maxDuration.Seconds()
}

// Ledger holds the committed segments and the redo buffer.
// A segment is in exactly one of the two stacks.
type Ledger struct {
	committed []Segment
	undone    []Segment
}

// Commit appends a segment to the committed stack.
func (l *Ledger) Commit(seg Segment) {
	l.committed = append(l.committed, seg)
}

// Undo moves the last committed segment onto the redo stack.
func (l *Ledger) Undo() (Segment, bool) {
	if len(l.committed) == 0 {
		return Segment{}, false
	}
	seg := l.committed[len(l.committed)-1]
	l.committed = l.committed[:len(l.committed)-1]
	l.undone = append(l.undone, seg)
	return seg, true
}

// Redo moves the most recently undone segment back onto the committed stack.
// Committed segments recorded past its start since the undo are displaced,
// so the committed timeline stays contiguous.
func (l *Ledger) Redo() (Segment, bool) {
	if len(l.undone) == 0 {
		return Segment{}, false
	}
	seg := l.undone[len(l.undone)-1]
	l.undone = l.undone[:len(l.undone)-1]

	kept := l.committed[:0]
	for _, c := range l.committed {
		if c.StartPercent >= seg.StartPercent-minSpan {
			continue
		}
		if c.EndPercent > seg.StartPercent {
			c.EndPercent = seg.StartPercent
		}
		kept = append(kept, c)
	}
	l.committed = append(kept, seg)
	return seg, true
}

// ClearRedo drops the redo buffer.
func (l *Ledger) ClearRedo() {
	l.undone = nil
}

// Reset empties both stacks.
func (l *Ledger) Reset() {
	l.committed = nil
	l.undone = nil
}

// Last returns the most recently committed segment.
func (l *Ledger) Last() (Segment, bool) {
	if len(l.committed) == 0 {
		return Segment{}, false
	}
	return l.committed[len(l.committed)-1], true
}

func (l *Ledger) Len() int     { return len(l.committed) }
func (l *Ledger) RedoLen() int { return len(l.undone) }

// Committed returns a copy of the committed segments in chronological order.
func (l *Ledger) Committed() []Segment {
	out := make([]Segment, len(l.committed))
	copy(out, l.committed)
	return out
}

// Undone returns a copy of the redo buffer, oldest first.
func (l *Ledger) Undone() []Segment {
	out := make([]Segment, len(l.undone))
	copy(out, l.undone)
	return out
}

// TotalSeconds sums the committed segment durations.
func (l *Ledger) TotalSeconds(maxDuration time.Duration) float64 {
	var total float64
	for _, seg := range l.committed {
		total += seg.Duration(maxDuration)
	}
	return total
}
