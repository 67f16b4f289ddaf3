// Package orchestrator composes the job queue, the workflow tracker, the
// provider fallback resolver and the webhook subsystem into the single
// render worker that drains jobs one at a time.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"storyreel/internal/fallback"
	"storyreel/internal/model"
	"storyreel/internal/pkg/logger"
	"storyreel/internal/ports"
	"storyreel/internal/provider/renderengine"
	"storyreel/internal/provider/transcribe"
	"storyreel/internal/queue"
	"storyreel/internal/webhook"
	"storyreel/internal/workflow"
)

// Status values reported for a job.
const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

type Deps struct {
	Queue       queue.Queue
	Tracker     *workflow.Tracker
	Webhooks    *webhook.Service
	Resolver    *fallback.Resolver
	Transcriber transcribe.Transcriber
	Engine      renderengine.Engine
	Storage     ports.StorageProvider

	TempDir       string
	DefaultVoice  string
	PaddingBackMs int
	VisualRetries int
	VisualTimeout time.Duration

	Log *logger.Logger
}

type Orchestrator struct {
	queue       queue.Queue
	tracker     *workflow.Tracker
	webhooks    *webhook.Service
	resolver    *fallback.Resolver
	transcriber transcribe.Transcriber
	engine      renderengine.Engine
	storage     ports.StorageProvider

	tempDir       string
	defaultVoice  string
	paddingBackMs int
	visualRetries int
	visualTimeout time.Duration

	log *logger.Logger

	// pending holds ids of jobs that are queued or in flight, so Status
	// can answer "processing" for either without scanning the queue.
	mu      sync.Mutex
	pending map[string]struct{}
}

func New(d Deps) *Orchestrator {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	if d.VisualTimeout <= 0 {
		d.VisualTimeout = 2 * time.Minute
	}
	return &Orchestrator{
		queue:         d.Queue,
		tracker:       d.Tracker,
		webhooks:      d.Webhooks,
		resolver:      d.Resolver,
		transcriber:   d.Transcriber,
		engine:        d.Engine,
		storage:       d.Storage,
		tempDir:       d.TempDir,
		defaultVoice:  d.DefaultVoice,
		paddingBackMs: d.PaddingBackMs,
		visualRetries: d.VisualRetries,
		visualTimeout: d.VisualTimeout,
		log:           log.WithComponent("orchestrator"),
		pending:       make(map[string]struct{}),
	}
}

// Enqueue accepts a job, creates its workflow record at QUEUED and appends
// it to the queue tail. The worker goroutine (started once via Run) picks
// it up in arrival order.
func (o *Orchestrator) Enqueue(ctx context.Context, scenes []model.SceneInput, cfg model.RenderConfig, callbackURL string, metadata map[string]string) (string, error) {
	job := &model.RenderJob{
		ID:          uuid.NewString(),
		Scenes:      scenes,
		Config:      cfg,
		CallbackURL: callbackURL,
		Metadata:    metadata,
		EnqueuedAt:  time.Now().UTC(),
	}

	if _, err := o.tracker.CreateWorkflow(ctx, job.ID, metadata); err != nil {
		return "", err
	}

	o.mu.Lock()
	o.pending[job.ID] = struct{}{}
	o.mu.Unlock()

	if err := o.queue.Push(ctx, job); err != nil {
		o.mu.Lock()
		delete(o.pending, job.ID)
		o.mu.Unlock()

		_ = o.tracker.UpdateState(ctx, job.ID, workflow.StateFailed, workflow.UpdateOptions{Err: err.Error()})
		_ = o.tracker.CompleteWorkflow(ctx, job.ID)
		return "", err
	}

	o.log.Info("job enqueued", "job_id", job.ID, "scenes", len(scenes))
	return job.ID, nil
}

// Run is the single worker loop. It blocks on the queue head and processes
// jobs strictly in order; one job's failure never halts the loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.Info("render worker started")
	for {
		select {
		case <-ctx.Done():
			o.log.Info("render worker stopping")
			return ctx.Err()
		default:
		}

		job, err := o.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				o.log.Info("render worker stopping")
				return ctx.Err()
			}
			o.log.Warn("queue pop error, retrying", "error", err.Error())
			time.Sleep(1 * time.Second)
			continue
		}

		jobCtx := logger.ContextWithJobID(ctx, job.ID)
		jobLog := o.log.WithJobID(job.ID)

		jobLog.Info("processing job")
		startTime := time.Now()

		if err := o.processJob(jobCtx, job); err != nil {
			jobLog.Error("job failed",
				"error", err.Error(),
				"duration_ms", time.Since(startTime).Milliseconds(),
			)
		} else {
			jobLog.Info("job completed",
				"duration_ms", time.Since(startTime).Milliseconds(),
			)
		}

		o.mu.Lock()
		delete(o.pending, job.ID)
		o.mu.Unlock()
	}
}

// Status reports a job's coarse state: "processing" while the job is
// queued or in flight, "ready" once the artifact exists in durable
// storage, and "failed" otherwise. A job id that never existed also
// reports "failed"; the workflow history record carries the detail.
func (o *Orchestrator) Status(ctx context.Context, jobID string) string {
	o.mu.Lock()
	_, inFlight := o.pending[jobID]
	o.mu.Unlock()
	if inFlight {
		return StatusProcessing
	}

	exists, err := o.storage.ExistsObject(ctx, ArtifactKey(jobID))
	if err != nil {
		o.log.Warn("artifact existence check failed", "job_id", jobID, "error", err.Error())
	}
	if exists {
		return StatusReady
	}
	return StatusFailed
}

// ArtifactKey is the storage key of a job's rendered output.
func ArtifactKey(jobID string) string {
	return "renders/" + jobID + ".mp4"
}
