package belt

import "time"

// StepState marks where a color sits relative to the student's current rank.
type StepState string

const (
	StepAchieved StepState = "achieved"
	StepCurrent  StepState = "current"
	StepNext     StepState = "next"
	StepUpcoming StepState = "upcoming"
)

// PathStep is one color of a progression path as seen by a given student.
type PathStep struct {
	Color   Color     `json:"color"`
	State   StepState `json:"state"`
	Stripes int       `json:"stripes,omitempty"`
}

// Progression lays out the student's category path. Colors before the current
// one are achieved, the current one carries its stripes, and the color after
// it is marked next only when Evaluate offers that color as of asOf. An
// unknown category or an off-path belt yields nil.
func Progression(s Student, asOf time.Time) []PathStep {
	path, ok := Path(s.Category)
	if !ok {
		return nil
	}
	idx := indexOf(s.Category, s.CurrentRank.Color)
	if idx < 0 {
		return nil
	}

	var offered Color
	if next, ok := NextRank(s, asOf); ok && next.Color != s.CurrentRank.Color {
		offered = next.Color
	}

	steps := make([]PathStep, len(path))
	for i, c := range path {
		step := PathStep{Color: c, State: StepUpcoming}
		switch {
		case i < idx:
			step.State = StepAchieved
		case i == idx:
			step.State = StepCurrent
			step.Stripes = s.CurrentRank.Stripes
		case c == offered:
			step.State = StepNext
		}
		steps[i] = step
	}
	return steps
}
