package workflow

import (
	"context"
	"testing"

	"storyreel/internal/recordstore"
)

func newTestTracker(t *testing.T) (*Tracker, recordstore.Store) {
	t.Helper()

	store, err := recordstore.NewJSONFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONFileStore() error = %v", err)
	}
	tr, err := NewTracker(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("NewTracker() error = %v", err)
	}
	return tr, store
}

func TestCreateWorkflow(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	rec, err := tr.CreateWorkflow(ctx, "job-1", map[string]string{"source": "test"})
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	if rec.CurrentState != StateQueued {
		t.Errorf("state = %s, want %s", rec.CurrentState, StateQueued)
	}
	if rec.Progress != 0 {
		t.Errorf("progress = %d, want 0", rec.Progress)
	}
	if len(rec.Transitions) != 1 || rec.Transitions[0].To != StateQueued {
		t.Errorf("creation transition = %+v", rec.Transitions)
	}

	if _, err := tr.CreateWorkflow(ctx, "job-1", nil); err == nil {
		t.Error("duplicate CreateWorkflow() should fail")
	}
}

func TestHappyPathTransitions(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	if _, err := tr.CreateWorkflow(ctx, "job-1", nil); err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}

	steps := []struct {
		state    State
		progress int
	}{
		{StateGeneratingTTS, 10},
		{StateTranscribing, 30},
		{StateSearchingVideo, 45},
		{StateGeneratingVideo, 60},
		{StateProcessingVideo, 80},
		{StateCompleted, 100},
	}

	for _, step := range steps {
		if err := tr.UpdateState(ctx, "job-1", step.state, UpdateOptions{}); err != nil {
			t.Fatalf("UpdateState(%s) error = %v", step.state, err)
		}
		rec, err := tr.Get(ctx, "job-1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if rec.Progress != step.progress {
			t.Errorf("progress at %s = %d, want %d", step.state, rec.Progress, step.progress)
		}
	}

	rec, _ := tr.Get(ctx, "job-1")
	// Creation entry plus six stage transitions.
	if len(rec.Transitions) != 7 {
		t.Errorf("transition log entries = %d, want 7", len(rec.Transitions))
	}
	if rec.CompletedAt == nil {
		t.Error("CompletedAt not set at COMPLETED")
	}
}

func TestInvalidTransitionsRejected(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	tests := []struct {
		name string
		from []State // path walked before the attempt
		to   State
	}{
		{"skip a stage", nil, StateTranscribing},
		{"backwards", []State{StateGeneratingTTS, StateTranscribing}, StateGeneratingTTS},
		{"out of terminal completed", []State{StateGeneratingTTS, StateTranscribing, StateSearchingVideo, StateGeneratingVideo, StateProcessingVideo, StateCompleted}, StateGeneratingTTS},
		{"failed from terminal", []State{StateGeneratingTTS, StateFailed}, StateFailed},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobID := string(rune('a' + i))
			if _, err := tr.CreateWorkflow(ctx, jobID, nil); err != nil {
				t.Fatalf("CreateWorkflow() error = %v", err)
			}
			for _, s := range tt.from {
				if err := tr.UpdateState(ctx, jobID, s, UpdateOptions{}); err != nil {
					t.Fatalf("setup UpdateState(%s) error = %v", s, err)
				}
			}
			if err := tr.UpdateState(ctx, jobID, tt.to, UpdateOptions{}); err == nil {
				t.Errorf("UpdateState(%s) should have failed", tt.to)
			}
		})
	}
}

func TestFailureKeepsProgress(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	if _, err := tr.CreateWorkflow(ctx, "job-1", nil); err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	for _, s := range []State{StateGeneratingTTS, StateTranscribing, StateSearchingVideo} {
		if err := tr.UpdateState(ctx, "job-1", s, UpdateOptions{}); err != nil {
			t.Fatalf("UpdateState(%s) error = %v", s, err)
		}
	}

	if err := tr.UpdateState(ctx, "job-1", StateFailed, UpdateOptions{Err: "no provider reachable"}); err != nil {
		t.Fatalf("UpdateState(FAILED) error = %v", err)
	}

	rec, err := tr.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Progress != 45 {
		t.Errorf("progress after failure = %d, want 45", rec.Progress)
	}
	if rec.Error != "no provider reachable" {
		t.Errorf("error = %q", rec.Error)
	}
	// Completed stage records survive the failure.
	if stage, ok := rec.Stages[StateGeneratingTTS]; !ok || stage.Status != StageCompleted {
		t.Errorf("GENERATING_TTS stage after failure = %+v", stage)
	}
}

func TestProgressOverride(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	if _, err := tr.CreateWorkflow(ctx, "job-1", nil); err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	p := 17
	if err := tr.UpdateState(ctx, "job-1", StateGeneratingTTS, UpdateOptions{Progress: &p}); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	rec, _ := tr.Get(ctx, "job-1")
	if rec.Progress != 17 {
		t.Errorf("progress = %d, want 17", rec.Progress)
	}
}

func TestCompleteWorkflowArchival(t *testing.T) {
	tr, store := newTestTracker(t)
	ctx := context.Background()

	if _, err := tr.CreateWorkflow(ctx, "job-1", nil); err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	if err := tr.UpdateState(ctx, "job-1", StateFailed, UpdateOptions{Err: "boom"}); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}

	if err := tr.CompleteWorkflow(ctx, "job-1"); err != nil {
		t.Fatalf("CompleteWorkflow() error = %v", err)
	}
	// Idempotent second call.
	if err := tr.CompleteWorkflow(ctx, "job-1"); err != nil {
		t.Fatalf("second CompleteWorkflow() error = %v", err)
	}

	// Active collection is empty, history holds the record.
	active, err := store.List(ctx, recordstore.CollectionWorkflowsActive)
	if err != nil {
		t.Fatalf("List(active) error = %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active records after archival = %d, want 0", len(active))
	}

	// Get still answers from history.
	rec, err := tr.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get() after archival error = %v", err)
	}
	if rec.CurrentState != StateFailed || rec.Error != "boom" {
		t.Errorf("archived record = %+v", rec)
	}
}

func TestGetHistory(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	terminalStates := []State{StateFailed, StateCompleted, StateFailed}
	for i, terminal := range terminalStates {
		jobID := string(rune('a' + i))
		if _, err := tr.CreateWorkflow(ctx, jobID, nil); err != nil {
			t.Fatalf("CreateWorkflow() error = %v", err)
		}
		if terminal == StateCompleted {
			for _, s := range []State{StateGeneratingTTS, StateTranscribing, StateSearchingVideo, StateGeneratingVideo, StateProcessingVideo, StateCompleted} {
				if err := tr.UpdateState(ctx, jobID, s, UpdateOptions{}); err != nil {
					t.Fatalf("UpdateState() error = %v", err)
				}
			}
		} else {
			if err := tr.UpdateState(ctx, jobID, StateFailed, UpdateOptions{Err: "x"}); err != nil {
				t.Fatalf("UpdateState() error = %v", err)
			}
		}
		if err := tr.CompleteWorkflow(ctx, jobID); err != nil {
			t.Fatalf("CompleteWorkflow() error = %v", err)
		}
	}

	all, err := tr.GetHistory(ctx, 0, 0, "")
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("history records = %d, want 3", len(all))
	}

	failed, err := tr.GetHistory(ctx, 0, 0, StateFailed)
	if err != nil {
		t.Fatalf("GetHistory(FAILED) error = %v", err)
	}
	if len(failed) != 2 {
		t.Errorf("failed records = %d, want 2", len(failed))
	}

	limited, err := tr.GetHistory(ctx, 1, 0, "")
	if err != nil {
		t.Fatalf("GetHistory(limit=1) error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited records = %d, want 1", len(limited))
	}

	offEnd, err := tr.GetHistory(ctx, 10, 99, "")
	if err != nil {
		t.Fatalf("GetHistory(offset=99) error = %v", err)
	}
	if len(offEnd) != 0 {
		t.Errorf("off-end records = %d, want 0", len(offEnd))
	}
}

func TestTrackerRecoversActiveRecords(t *testing.T) {
	tr, store := newTestTracker(t)
	ctx := context.Background()

	if _, err := tr.CreateWorkflow(ctx, "job-1", nil); err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	if err := tr.UpdateState(ctx, "job-1", StateGeneratingTTS, UpdateOptions{}); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}

	tr2, err := NewTracker(ctx, store, nil)
	if err != nil {
		t.Fatalf("NewTracker() reload error = %v", err)
	}
	rec, err := tr2.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get() after reload error = %v", err)
	}
	if rec.CurrentState != StateGeneratingTTS {
		t.Errorf("recovered state = %s, want %s", rec.CurrentState, StateGeneratingTTS)
	}
}
