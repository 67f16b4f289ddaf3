// Package publisher pushes a rendered artifact to a named channel
// destination, tracking the attempt through the per-(job, channel) publish
// machine and reporting the outcome as events.
package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storyreel/internal/model"
	"storyreel/internal/orchestrator"
	"storyreel/internal/pkg/errors"
	"storyreel/internal/pkg/logger"
	"storyreel/internal/ports"
	"storyreel/internal/webhook"
	"storyreel/internal/workflow"
)

type Deps struct {
	Tracker  *workflow.Tracker
	Storage  ports.StorageProvider
	Webhooks *webhook.Service
	Log      *logger.Logger
}

type Publisher struct {
	tracker  *workflow.Tracker
	sp       ports.StorageProvider
	webhooks *webhook.Service
	log      *logger.Logger
}

func New(d Deps) *Publisher {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Publisher{
		tracker:  d.Tracker,
		sp:       d.Storage,
		webhooks: d.Webhooks,
		log:      log.WithComponent("publisher"),
	}
}

// ChannelKey is the storage key a published artifact lands on.
func ChannelKey(channel, jobID string) string {
	return "channels/" + channel + "/" + jobID + ".mp4"
}

// Publish copies a job's rendered artifact to the channel destination. Each
// (job, channel) pair publishes at most once; a second call answers
// ALREADY_EXISTS.
func (p *Publisher) Publish(ctx context.Context, jobID, channel string) (*workflow.PublishRecord, error) {
	rec, err := p.tracker.StartPublish(ctx, jobID, channel)
	if err != nil {
		return nil, err
	}

	log := p.log.WithJobID(jobID).WithFields(map[string]any{"channel": channel})

	if err := p.run(ctx, jobID, channel, log); err != nil {
		if uerr := p.tracker.UpdatePublishState(ctx, jobID, channel, workflow.PublishFailed, err.Error()); uerr != nil {
			log.Warn("failed to mark publish failed", "error", uerr.Error())
		}
		p.emit(ctx, jobID, channel, model.EventPublishFailed, err.Error())
		log.Error("publish failed", "error", err.Error())
		return nil, err
	}

	p.emit(ctx, jobID, channel, model.EventPublishCompleted, "")
	log.Info("publish completed", "key", ChannelKey(channel, jobID))
	return p.tracker.GetPublish(ctx, rec.JobID, rec.Channel)
}

func (p *Publisher) run(ctx context.Context, jobID, channel string, log *logger.Logger) error {
	// Authentication here means confirming the artifact is reachable on
	// the storage provider before any upload starts.
	if err := p.tracker.UpdatePublishState(ctx, jobID, channel, workflow.PublishAuthenticating, ""); err != nil {
		return err
	}
	exists, err := p.sp.ExistsObject(ctx, orchestrator.ArtifactKey(jobID))
	if err != nil {
		return fmt.Errorf("artifact check: %w", err)
	}
	if !exists {
		return errors.NotFound("artifact", jobID)
	}

	if err := p.tracker.UpdatePublishState(ctx, jobID, channel, workflow.PublishUploading, ""); err != nil {
		return err
	}
	rc, contentType, size, err := p.sp.GetObject(ctx, orchestrator.ArtifactKey(jobID))
	if err != nil {
		return fmt.Errorf("artifact read: %w", err)
	}
	defer rc.Close()

	if _, err := p.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   ChannelKey(channel, jobID),
		ContentType: contentType,
		Reader:      rc,
		Size:        size,
	}); err != nil {
		return fmt.Errorf("channel upload: %w", err)
	}

	return p.tracker.UpdatePublishState(ctx, jobID, channel, workflow.PublishUploaded, "")
}

func (p *Publisher) emit(ctx context.Context, jobID, channel string, eventType model.EventType, errMsg string) {
	if p.webhooks == nil {
		return
	}
	p.webhooks.Trigger(ctx, model.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data: model.EventData{
			JobID:     jobID,
			ChannelID: channel,
			Error:     errMsg,
		},
	})
}
