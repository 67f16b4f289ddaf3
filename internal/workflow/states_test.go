package workflow

import "testing"

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateQueued, StateGeneratingTTS, true},
		{StateGeneratingTTS, StateTranscribing, true},
		{StateTranscribing, StateSearchingVideo, true},
		{StateSearchingVideo, StateGeneratingVideo, true},
		{StateGeneratingVideo, StateProcessingVideo, true},
		{StateProcessingVideo, StateCompleted, true},

		// FAILED from any non-terminal state.
		{StateQueued, StateFailed, true},
		{StateTranscribing, StateFailed, true},
		{StateProcessingVideo, StateFailed, true},

		// Skips and reversals.
		{StateQueued, StateTranscribing, false},
		{StateTranscribing, StateGeneratingTTS, false},
		{StateQueued, StateCompleted, false},

		// Nothing leaves a terminal state.
		{StateCompleted, StateFailed, false},
		{StateFailed, StateFailed, false},
		{StateCompleted, StateGeneratingTTS, false},
		{StateFailed, StateQueued, false},
	}

	for _, tt := range tests {
		if got := ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []State{StateQueued, StateGeneratingTTS, StateTranscribing, StateSearchingVideo, StateGeneratingVideo, StateProcessingVideo} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []State{StateCompleted, StateFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}
