package capture

import (
	"fmt"
	"math"
)

// FormatTime renders a duration in seconds as "m:ss".
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
