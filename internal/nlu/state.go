package nlu

// State is the per-language lifecycle tag. It only ever advances
// Training -> InProcess -> Done; there is no way back.
type State uint8

const (
	// StateTraining accumulates intents and entities.
	StateTraining State = iota
	// StateInProcess is held only inside the synchronous EndLoading
	// transition. Observing it anywhere else is a caller bug.
	StateInProcess
	// StateDone serves parses from the trained model.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateTraining:
		return "training"
	case StateInProcess:
		return "in_process"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// langEntry holds one language's state plus whichever payload the state
// implies: the accumulating train data while Training, the trained
// model once Done.
type langEntry struct {
	state State
	data  TrainData
	model TrainedModel
}
