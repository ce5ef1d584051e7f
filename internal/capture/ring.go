package capture

// Ring is the derived geometry of the circular progress indicator.
type Ring struct {
	Radius    float64 `json:"radius"`
	Center    Point   `json:"center"`
	Committed []Arc   `json:"committed"`
	Live      *Arc    `json:"live,omitempty"`

	// Full is set when the committed arcs cover the whole circle; a single
	// SVG arc cannot draw a closed circle.
	Full bool `json:"full"`
}

// RingFor lays out one arc per committed segment plus the in-flight arc
// while recording.
func RingFor(state State, radius float64) Ring {
	center := Point{X: radius, Y: radius}
	ring := Ring{Radius: radius, Center: center}

	var covered float64
	for _, seg := range state.Segments {
		ring.Committed = append(ring.Committed, ArcFor(seg, radius, center))
		covered += seg.Span()
	}
	ring.Full = covered >= 100-1e-9

	if state.Phase == PhaseRecording && state.LiveProgressPercent > state.CurrentSegmentStartPercent {
		live := ArcFor(Segment{
			StartPercent: state.CurrentSegmentStartPercent,
			EndPercent:   state.LiveProgressPercent,
		}, radius, center)
		ring.Live = &live
	}

	return ring
}
