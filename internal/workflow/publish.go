package workflow

import (
	"context"
	"time"

	"storyreel/internal/pkg/errors"
	"storyreel/internal/recordstore"
)

// PublishState tracks a downstream publish/upload action for one channel,
// decoupled from the main workflow machine.
type PublishState string

const (
	PublishPending        PublishState = "PENDING"
	PublishAuthenticating PublishState = "AUTHENTICATING"
	PublishUploading      PublishState = "UPLOADING"
	PublishUploaded       PublishState = "UPLOADED"
	PublishFailed         PublishState = "FAILED"
)

var publishNext = map[PublishState]PublishState{
	PublishPending:        PublishAuthenticating,
	PublishAuthenticating: PublishUploading,
	PublishUploading:      PublishUploaded,
}

// ValidPublishTransition mirrors ValidTransition for the publish machine:
// the upload path in order, or FAILED from any non-terminal state.
func ValidPublishTransition(from, to PublishState) bool {
	if to == PublishFailed {
		return from != PublishUploaded && from != PublishFailed
	}
	return publishNext[from] == to
}

// PublishRecord is the per-(job, channel) publish document.
type PublishRecord struct {
	JobID     string       `json:"jobId"`
	Channel   string       `json:"channel"`
	State     PublishState `json:"state"`
	Error     string       `json:"error,omitempty"`
	StartedAt time.Time    `json:"startedAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func publishKey(jobID, channel string) string {
	return jobID + ":" + channel
}

// StartPublish initializes a publish record at PENDING.
func (t *Tracker) StartPublish(ctx context.Context, jobID, channel string) (*PublishRecord, error) {
	key := publishKey(jobID, channel)

	var existing PublishRecord
	err := t.store.Get(ctx, recordstore.CollectionPublishStates, key, &existing)
	if err == nil {
		return nil, errors.AlreadyExists("publish", key)
	}
	if err != recordstore.ErrNotFound {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &PublishRecord{
		JobID:     jobID,
		Channel:   channel,
		State:     PublishPending,
		StartedAt: now,
		UpdatedAt: now,
	}
	t.persist(ctx, recordstore.CollectionPublishStates, key, rec)
	return rec, nil
}

// UpdatePublishState advances a publish record along its machine.
func (t *Tracker) UpdatePublishState(ctx context.Context, jobID, channel string, newState PublishState, errMsg string) error {
	key := publishKey(jobID, channel)

	var rec PublishRecord
	err := t.store.Get(ctx, recordstore.CollectionPublishStates, key, &rec)
	if err == recordstore.ErrNotFound {
		return errors.NotFound("publish", key)
	}
	if err != nil {
		return err
	}
	if !ValidPublishTransition(rec.State, newState) {
		return errors.Newf(errors.CodeConflict, "invalid publish transition %s -> %s", rec.State, newState)
	}

	rec.State = newState
	rec.UpdatedAt = time.Now().UTC()
	if newState == PublishFailed {
		rec.Error = errMsg
	}
	t.persist(ctx, recordstore.CollectionPublishStates, key, &rec)
	return nil
}

// GetPublish returns the publish record for one (job, channel) pair.
func (t *Tracker) GetPublish(ctx context.Context, jobID, channel string) (*PublishRecord, error) {
	var rec PublishRecord
	err := t.store.Get(ctx, recordstore.CollectionPublishStates, publishKey(jobID, channel), &rec)
	if err == recordstore.ErrNotFound {
		return nil, errors.NotFound("publish", publishKey(jobID, channel))
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
