package countdown

import (
	"fmt"
	"math"
)

// RingView renders a snapshot as a circular progress stroke.
type RingView struct {
	Radius        float64 `json:"radius"`
	Circumference float64 `json:"circumference"`
	DashOffset    float64 `json:"dashOffset"`
	Level         Level   `json:"level"`
	Label         string  `json:"label"`
}

// BarView renders a snapshot as a linear progress bar.
type BarView struct {
	WidthPercent float64 `json:"widthPercent"`
	Level        Level   `json:"level"`
	Label        string  `json:"label"`
}

// Ring computes the stroke offset for a ring of the given radius. A full
// ring (offset 0) means all time remains.
func Ring(s Snapshot, radius float64) RingView {
	circ := 2 * math.Pi * radius
	return RingView{
		Radius:        radius,
		Circumference: circ,
		DashOffset:    circ * (1 - s.Percent/100),
		Level:         s.Level,
		Label:         label(s.Left),
	}
}

// Bar computes the bar width for a snapshot.
func Bar(s Snapshot) BarView {
	return BarView{
		WidthPercent: math.Max(0, math.Min(100, s.Percent)),
		Level:        s.Level,
		Label:        label(s.Left),
	}
}

func label(left int) string {
	return fmt.Sprintf("%d:%02d", left/60, left%60)
}
