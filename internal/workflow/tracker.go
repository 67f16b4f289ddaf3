// Package workflow owns per-job lifecycle state: the state machine, stage
// timings, the transition log, and history archival.
package workflow

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"storyreel/internal/pkg/errors"
	"storyreel/internal/pkg/logger"
	"storyreel/internal/recordstore"
)

// Tracker drives workflow records. Active records are cached in memory and
// written through to the record store on every mutation; a failed durable
// write is logged but never aborts in-memory progress.
type Tracker struct {
	store recordstore.Store
	log   *logger.Logger

	mu     sync.Mutex
	active map[string]*Record
}

func NewTracker(ctx context.Context, store recordstore.Store, log *logger.Logger) (*Tracker, error) {
	if log == nil {
		log = logger.NewDefault()
	}
	t := &Tracker{
		store:  store,
		log:    log.WithComponent("workflow"),
		active: make(map[string]*Record),
	}

	// Recover active records left behind by a previous process.
	docs, err := store.List(ctx, recordstore.CollectionWorkflowsActive)
	if err != nil {
		return nil, err
	}
	for key, raw := range docs {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			t.log.Warn("skipping unreadable workflow record", "job_id", key, "error", err.Error())
			continue
		}
		t.active[rec.JobID] = &rec
	}
	if len(t.active) > 0 {
		t.log.Info("recovered active workflow records", "count", len(t.active))
	}
	return t, nil
}

// UpdateOptions carries the optional parts of a state update.
type UpdateOptions struct {
	// Progress overrides the fixed state → percent table when non-nil.
	Progress *int
	Details  string
	Err      string
}

// CreateWorkflow initializes a record at QUEUED with progress 0.
func (t *Tracker) CreateWorkflow(ctx context.Context, jobID string, metadata map[string]string) (*Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.active[jobID]; ok {
		return nil, errors.AlreadyExists("workflow", jobID)
	}

	now := time.Now().UTC()
	rec := &Record{
		JobID:        jobID,
		CurrentState: StateQueued,
		Progress:     0,
		Metadata:     metadata,
		StartedAt:    now,
		UpdatedAt:    now,
		Transitions:  []Transition{{To: StateQueued, At: now}},
		Stages: map[State]*StageRecord{
			StateQueued: {Status: StageInProgress, StartedAt: now},
		},
	}
	t.active[jobID] = rec
	t.persist(ctx, recordstore.CollectionWorkflowsActive, jobID, rec)
	return rec.clone(), nil
}

// UpdateState moves a record to newState: it closes the previous stage,
// opens a new one, appends a transition-log entry with the time spent in
// the previous state, and recomputes progress.
func (t *Tracker) UpdateState(ctx context.Context, jobID string, newState State, opts UpdateOptions) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.active[jobID]
	if !ok {
		return errors.NotFound("workflow", jobID)
	}
	if !ValidTransition(rec.CurrentState, newState) {
		return errors.Newf(errors.CodeConflict, "invalid transition %s -> %s", rec.CurrentState, newState)
	}

	now := time.Now().UTC()
	prev := rec.CurrentState

	// Close the stage we are leaving.
	var elapsed int64
	if stage, ok := rec.Stages[prev]; ok && stage.Status == StageInProgress {
		elapsed = now.Sub(stage.StartedAt).Milliseconds()
		stage.CompletedAt = &now
		stage.DurationMs = elapsed
		if newState == StateFailed {
			stage.Status = StageFailed
			stage.Error = opts.Err
		} else {
			stage.Status = StageCompleted
		}
	}

	rec.CurrentState = newState
	rec.UpdatedAt = now
	rec.Transitions = append(rec.Transitions, Transition{
		From:       prev,
		To:         newState,
		At:         now,
		DurationMs: elapsed,
		Details:    opts.Details,
	})

	switch {
	case newState == StateCompleted:
		rec.Progress = 100
		rec.CompletedAt = &now
		rec.Stages[newState] = &StageRecord{Status: StageCompleted, StartedAt: now, CompletedAt: &now}
	case newState == StateFailed:
		// Progress stays where it was; completed stage records survive.
		rec.Error = opts.Err
		rec.CompletedAt = &now
		rec.Stages[newState] = &StageRecord{Status: StageFailed, StartedAt: now, CompletedAt: &now, Error: opts.Err}
	default:
		if opts.Progress != nil {
			rec.Progress = *opts.Progress
		} else if pct, ok := progressByState[newState]; ok {
			rec.Progress = pct
		}
		rec.Stages[newState] = &StageRecord{Status: StageInProgress, StartedAt: now}
	}

	t.persist(ctx, recordstore.CollectionWorkflowsActive, jobID, rec)
	return nil
}

// Get returns a copy of a record, looking in the active set first and the
// history second.
func (t *Tracker) Get(ctx context.Context, jobID string) (*Record, error) {
	t.mu.Lock()
	rec, ok := t.active[jobID]
	if ok {
		defer t.mu.Unlock()
		return rec.clone(), nil
	}
	t.mu.Unlock()

	var archived Record
	err := t.store.Get(ctx, recordstore.CollectionWorkflowsHistory, jobID, &archived)
	if err == recordstore.ErrNotFound {
		return nil, errors.NotFound("workflow", jobID)
	}
	if err != nil {
		return nil, err
	}
	return &archived, nil
}

// CompleteWorkflow archives a record: it moves from the active set to the
// durable history store. Calling it again after archival is a no-op.
func (t *Tracker) CompleteWorkflow(ctx context.Context, jobID string) error {
	t.mu.Lock()
	rec, ok := t.active[jobID]
	if !ok {
		t.mu.Unlock()
		// Already archived (or never existed): idempotent no-op.
		return nil
	}
	delete(t.active, jobID)
	archived := rec.clone()
	t.mu.Unlock()

	if err := t.store.Put(ctx, recordstore.CollectionWorkflowsHistory, jobID, archived); err != nil {
		t.log.Error("failed to archive workflow record",
			"job_id", jobID,
			"error", err.Error(),
		)
		return errors.Persistence("workflow.archive", err)
	}
	if err := t.store.Delete(ctx, recordstore.CollectionWorkflowsActive, jobID); err != nil {
		t.log.Warn("failed to remove active workflow record after archival",
			"job_id", jobID,
			"error", err.Error(),
		)
	}
	return nil
}

// GetHistory reads archived records newest-first, optionally filtered to
// COMPLETED-only or FAILED-only.
func (t *Tracker) GetHistory(ctx context.Context, limit, offset int, status State) ([]*Record, error) {
	docs, err := t.store.List(ctx, recordstore.CollectionWorkflowsHistory)
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(docs))
	for key, raw := range docs {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			t.log.Warn("skipping unreadable history record", "job_id", key, "error", err.Error())
			continue
		}
		if status != "" && rec.CurrentState != status {
			continue
		}
		records = append(records, &rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})

	if offset >= len(records) {
		return []*Record{}, nil
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}

func (t *Tracker) persist(ctx context.Context, collection, key string, value any) {
	if err := t.store.Put(ctx, collection, key, value); err != nil {
		// Durable-write failures never abort in-memory progress; the
		// record risks being stale across a restart.
		t.log.Error("failed to persist workflow record",
			"collection", collection,
			"key", key,
			"error", err.Error(),
		)
	}
}
