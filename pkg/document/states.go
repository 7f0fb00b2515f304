package document

// State is the lifecycle position of a fiscal document. Transitions are
// monotonic: once terminal, only an explicit operator reset moves a failed
// document back to draft.
type State string

const (
	StateDraft     State = "draft"
	StateQueued    State = "queued"
	StateInFlight  State = "in_flight"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

var allowedTransitions = map[State][]State{
	// draft -> failed covers a payload build or transition error inside
	// the detector, the only path that skips queued.
	StateDraft: {StateQueued, StateFailed},
	// queued -> failed covers a request publish that errors after the
	// queued write already went through.
	StateQueued:   {StateInFlight, StateFailed},
	StateInFlight: {StateCompleted, StateFailed},
	// operator reset for resubmission
	StateFailed: {StateDraft},
}

func CanTransition(from, to State) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
