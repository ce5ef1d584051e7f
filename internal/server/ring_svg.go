package server

import (
	"fmt"
	"strings"

	"github.com/audiolibrelab/reelcapture/internal/capture"
)

const (
	trackColor     = "#3a3a3a"
	committedColor = "#ff2d55"
	liveColor      = "#ffffff"
)

// renderRingSVG draws the track, the committed arcs and the live arc.
func renderRingSVG(ring capture.Ring) string {
	pad := ringStrokeWidth / 2
	size := 2*ring.Radius + ringStrokeWidth

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="%.3f %.3f %.3f %.3f">`,
		size, size, -pad, -pad, size, size)
	b.WriteString("\n")

	fmt.Fprintf(&b, `  <circle class="track" cx="%.3f" cy="%.3f" r="%.3f" fill="none" stroke="%s" stroke-width="%.1f"/>`,
		ring.Center.X, ring.Center.Y, ring.Radius, trackColor, ringStrokeWidth)
	b.WriteString("\n")

	if ring.Full {
		// A closed circle has identical endpoints, which an arc path cannot draw.
		fmt.Fprintf(&b, `  <circle class="committed" cx="%.3f" cy="%.3f" r="%.3f" fill="none" stroke="%s" stroke-width="%.1f"/>`,
			ring.Center.X, ring.Center.Y, ring.Radius, committedColor, ringStrokeWidth)
		b.WriteString("\n")
	} else {
		for _, arc := range ring.Committed {
			writeArc(&b, "committed", arc, ring.Radius, committedColor)
		}
	}

	if ring.Live != nil {
		writeArc(&b, "live", *ring.Live, ring.Radius, liveColor)
	}

	b.WriteString("</svg>\n")
	return b.String()
}

func writeArc(b *strings.Builder, class string, arc capture.Arc, radius float64, color string) {
	fmt.Fprintf(b, `  <path class="%s" d="%s" fill="none" stroke="%s" stroke-width="%.1f"/>`,
		class, arc.Path(radius), color, ringStrokeWidth)
	b.WriteString("\n")
}
