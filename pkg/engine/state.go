package engine

// State is the robot's top-level behavior state.
type State int

const (
	// StateIdle: awake or dozing in place, waiting for a reason to act.
	StateIdle State = iota
	// StateSearching: sweeping for a person.
	StateSearching
	// StateTracking: a face is in frame but not yet classified or
	// reached.
	StateTracking
	// StateFamiliarStay: interacting with a confirmed familiar person.
	StateFamiliarStay
	// StateStrangerObserve: startled flinch away from an unwanted
	// contact.
	StateStrangerObserve
	// StateShocked: warily watching a confirmed stranger.
	StateShocked
	// StateReturning: retracing the action history back to origin.
	StateReturning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StateTracking:
		return "tracking"
	case StateFamiliarStay:
		return "familiar_stay"
	case StateStrangerObserve:
		return "stranger_observe"
	case StateShocked:
		return "shocked"
	case StateReturning:
		return "returning"
	default:
		return "unknown"
	}
}
