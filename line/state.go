// Copyright (c) 2023 BVK Chaitanya

package line

type State int

const (
	Created State = iota
	Placing
	Monitoring
	Reconciling
	Accounted
	Released

	// Interrupted lines stopped before accounting because their context was
	// canceled. Their orders may still rest at the venue.
	Interrupted

	// Failed lines could not be placed because no quote was available.
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Placing:
		return "placing"
	case Monitoring:
		return "monitoring"
	case Reconciling:
		return "reconciling"
	case Accounted:
		return "accounted"
	case Released:
		return "released"
	case Interrupted:
		return "interrupted"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// IsFinal returns true if no further transitions are possible.
func (s State) IsFinal() bool {
	return s == Released || s == Interrupted || s == Failed
}
