package session

import (
	"math"

	"github.com/claude/repcoach/internal/models"
)

// SuggestedWeight proposes the next starting weight for an exercise from the
// user's last recorded performance. No history means no suggestion (0).
//
// Rep target cleared (>= 10): progressive overload, +2.5 kg snapped to the
// half-kilo grid. Within range (>= 8): hold. Below range: deload by 1.25 kg,
// floored at zero. The deload step stays on the quarter-kilo grid since
// 1.25 kg microplates are the smallest increment users load.
func SuggestedWeight(h *models.ExerciseHistory) float64 {
	if h == nil {
		return 0
	}

	switch {
	case h.LastReps >= 10:
		return roundToHalf(h.LastWeight + 2.5)
	case h.LastReps >= 8:
		return h.LastWeight
	default:
		return math.Max(0, h.LastWeight-1.25)
	}
}

// BrzyckiOneRM estimates a one-rep max from a weight/reps pair.
func BrzyckiOneRM(weight float64, reps int) float64 {
	if reps >= 37 {
		return weight
	}
	return weight * 36 / float64(37-reps)
}

func roundToHalf(x float64) float64 {
	return math.Round(x*2) / 2
}
