package workflow

// State is a job's pipeline stage.
type State string

const (
	StateQueued          State = "QUEUED"
	StateGeneratingTTS   State = "GENERATING_TTS"
	StateTranscribing    State = "TRANSCRIBING"
	StateSearchingVideo  State = "SEARCHING_VIDEO"
	StateGeneratingVideo State = "GENERATING_VIDEO"
	StateProcessingVideo State = "PROCESSING_VIDEO"
	StateCompleted       State = "COMPLETED"
	StateFailed          State = "FAILED"
)

// happyPath maps each non-terminal state to its single valid successor.
var happyPath = map[State]State{
	StateQueued:          StateGeneratingTTS,
	StateGeneratingTTS:   StateTranscribing,
	StateTranscribing:    StateSearchingVideo,
	StateSearchingVideo:  StateGeneratingVideo,
	StateGeneratingVideo: StateProcessingVideo,
	StateProcessingVideo: StateCompleted,
}

// progressByState is the fixed state → percent table used when an update
// does not carry an explicit override.
var progressByState = map[State]int{
	StateQueued:          0,
	StateGeneratingTTS:   10,
	StateTranscribing:    30,
	StateSearchingVideo:  45,
	StateGeneratingVideo: 60,
	StateProcessingVideo: 80,
	StateCompleted:       100,
}

// Terminal reports whether the state ends a workflow.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ValidTransition reports whether from → to follows the transition graph:
// the happy path in order, or FAILED from any non-terminal state.
func ValidTransition(from, to State) bool {
	if to == StateFailed {
		return !from.Terminal()
	}
	return happyPath[from] == to
}
