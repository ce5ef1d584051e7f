package capture

import (
	"fmt"
	"math"
)

// Point is a position in screen coordinates (y grows downward).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Arc describes one segment of the progress ring.
type Arc struct {
	Start    Point `json:"start"`
	End      Point `json:"end"`
	LargeArc bool  `json:"large_arc"`
}

// ArcFor maps a segment onto a circle of the given radius around center.
// 0% sits at 12 o'clock and percentages grow clockwise.
func ArcFor(seg Segment, radius float64, center Point) Arc {
	start := clampPercent(seg.StartPercent)
	end := clampPercent(seg.EndPercent)
	if end < start {
		end = start
	}

	return Arc{
		Start:    pointAt(start, radius, center),
		End:      pointAt(end, radius, center),
		LargeArc: end-start > 50,
	}
}

// Path returns the SVG path data for the arc, always swept clockwise.
func (a Arc) Path(radius float64) string {
	large := 0
	if a.LargeArc {
		large = 1
	}
	return fmt.Sprintf("M %.3f %.3f A %.3f %.3f 0 %d 1 %.3f %.3f",
		a.Start.X, a.Start.Y, radius, radius, large, a.End.X, a.End.Y)
}

func pointAt(percent, radius float64, center Point) Point {
	angle := percent/100*2*math.Pi - math.Pi/2
	return Point{
		X: center.X + radius*math.Cos(angle),
		Y: center.Y + radius*math.Sin(angle),
	}
}

func clampPercent(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
