package workflow

import "time"

// StageStatus is the status of one stage record.
type StageStatus string

const (
	StageInProgress StageStatus = "IN_PROGRESS"
	StageCompleted  StageStatus = "COMPLETED"
	StageFailed     StageStatus = "FAILED"
)

// StageRecord tracks the time a job spent in one state.
type StageRecord struct {
	Status      StageStatus `json:"status"`
	StartedAt   time.Time   `json:"startedAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	DurationMs  int64       `json:"durationMs,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// Transition is one entry of the ordered transition log. The creation entry
// has an empty From.
type Transition struct {
	From       State     `json:"from,omitempty"`
	To         State     `json:"to"`
	At         time.Time `json:"at"`
	DurationMs int64     `json:"durationMs,omitempty"`
	Details    string    `json:"details,omitempty"`
}

// Record is the per-job lifecycle document. Mutated only by the tracker on
// behalf of the orchestrator; every mutation is persisted immediately.
type Record struct {
	JobID        string                 `json:"jobId"`
	CurrentState State                  `json:"currentState"`
	Progress     int                    `json:"progress"`
	Metadata     map[string]string      `json:"metadata,omitempty"`
	Error        string                 `json:"error,omitempty"`
	StartedAt    time.Time              `json:"startedAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
	CompletedAt  *time.Time             `json:"completedAt,omitempty"`
	Transitions  []Transition           `json:"transitions"`
	Stages       map[State]*StageRecord `json:"stages"`
}

// clone returns a deep copy so callers never share the tracker's memory.
func (r *Record) clone() *Record {
	cp := *r
	cp.Transitions = append([]Transition(nil), r.Transitions...)
	cp.Stages = make(map[State]*StageRecord, len(r.Stages))
	for s, st := range r.Stages {
		stCopy := *st
		cp.Stages[s] = &stCopy
	}
	if r.Metadata != nil {
		cp.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
