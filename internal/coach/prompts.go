package coach

import (
	"fmt"
	"time"

	"github.com/claude/repcoach/internal/session"
)

// eventPrompt turns a workout event into the user-turn message sent to the
// model.
func eventPrompt(ev session.CoachEvent) string {
	switch ev.Kind {
	case session.EventWorkoutStart:
		return fmt.Sprintf(
			"I'm starting my %q workout now. Give me a short pump-up message.",
			ev.WorkoutName)
	case session.EventExerciseStart:
		return fmt.Sprintf(
			"Exercise %d of %d: %s, %d sets of %s reps. Any quick technique cue? You may look up my history for it.",
			ev.ExerciseIndex, ev.TotalExercises, ev.ExerciseName, ev.TotalSets, ev.TargetReps)
	case session.EventSetComplete:
		return fmt.Sprintf(
			"Just finished set %d of %d on %s: %d reps at %.1f kg. React in one short sentence.",
			ev.SetNumber, ev.TotalSets, ev.ExerciseName, ev.Reps, ev.Weight)
	case session.EventRestEnd:
		return "Rest is over, back to work. One short line to get me moving."
	case session.EventWorkoutComplete:
		return fmt.Sprintf(
			"Workout %q done: %d exercises, %d sets, in %s. Short congratulation please.",
			ev.WorkoutName, ev.TotalExercises, ev.TotalSets, ev.Duration.Round(time.Second))
	case session.EventNewRecord:
		return fmt.Sprintf(
			"NEW PERSONAL RECORD on %s: %.1f kg x %d reps! Celebrate with me, one sentence.",
			ev.ExerciseName, ev.Weight, ev.Reps)
	default:
		return fmt.Sprintf("Workout event: %s. React in one short sentence.", ev.Kind)
	}
}

// fallbackLine is what the user sees when the model is unreachable.
func fallbackLine(kind session.CoachEventKind) string {
	switch kind {
	case session.EventWorkoutStart:
		return "Let's get after it. Strong session ahead!"
	case session.EventExerciseStart:
		return "New exercise. Set up, brace, and own every rep."
	case session.EventSetComplete:
		return "Set logged. Nice work, shake it out."
	case session.EventRestEnd:
		return "Rest's up. Back under the bar!"
	case session.EventWorkoutComplete:
		return "Workout complete. Great job showing up today!"
	case session.EventNewRecord:
		return "That's a new personal record. Huge!"
	default:
		return "Keep pushing!"
	}
}
