package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"storyreel/internal/model"
	"storyreel/internal/pkg/logger"
	"storyreel/internal/ports"
	"storyreel/internal/provider/renderengine"
	"storyreel/internal/provider/visual"
	"storyreel/internal/workflow"
)

// processJob runs the full pipeline for one job. Temp files live under a
// per-job directory and are removed on success and on failure alike; the
// only durable output is the artifact in object storage plus the workflow
// record.
func (o *Orchestrator) processJob(ctx context.Context, job *model.RenderJob) (err error) {
	log := o.log.WithJobID(job.ID)

	workDir := filepath.Join(o.tempDir, "jobs", job.ID)
	if mkErr := os.MkdirAll(workDir, 0o755); mkErr != nil {
		failErr := fmt.Errorf("create work dir: %w", mkErr)
		o.failJob(ctx, job, failErr)
		return failErr
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			log.Warn("failed to remove work dir", "dir", workDir, "error", rmErr.Error())
		}
	}()

	scenes, err := o.acquireScenes(ctx, job, workDir)
	if err != nil {
		o.failJob(ctx, job, err)
		return err
	}

	if err := o.transition(ctx, job.ID, workflow.StateGeneratingVideo, "scene assets acquired"); err != nil {
		o.failJob(ctx, job, err)
		return err
	}
	if err := o.transition(ctx, job.ID, workflow.StateProcessingVideo, ""); err != nil {
		o.failJob(ctx, job, err)
		return err
	}

	outputPath, err := o.render(ctx, job, scenes, workDir)
	if err != nil {
		wrapped := fmt.Errorf("render: %w", err)
		o.failJob(ctx, job, wrapped)
		return wrapped
	}

	if err := o.persistArtifact(ctx, job.ID, outputPath); err != nil {
		wrapped := fmt.Errorf("persist artifact: %w", err)
		o.failJob(ctx, job, wrapped)
		return wrapped
	}

	if err := o.transition(ctx, job.ID, workflow.StateCompleted, ""); err != nil {
		o.failJob(ctx, job, err)
		return err
	}
	if err := o.tracker.CompleteWorkflow(ctx, job.ID); err != nil {
		log.Warn("workflow archival failed", "error", err.Error())
	}

	o.emit(ctx, job, model.EventVideoCompleted, "")
	return nil
}

// acquireScenes produces per-scene audio, captions and a downloaded clip.
// The workflow state advances the first time each phase is entered; later
// scenes run under the state already reached.
func (o *Orchestrator) acquireScenes(ctx context.Context, job *model.RenderJob, workDir string) ([]model.SceneAssets, error) {
	log := o.log.WithJobID(job.ID)

	voice := job.Config.VoiceID
	if voice == "" {
		voice = o.defaultVoice
	}
	padding := job.Config.PaddingBackMs
	if padding == 0 {
		padding = o.paddingBackMs
	}

	if err := o.transition(ctx, job.ID, workflow.StateGeneratingTTS, ""); err != nil {
		return nil, err
	}

	var excludeIDs []string
	assets := make([]model.SceneAssets, 0, len(job.Scenes))

	for i, scene := range job.Scenes {
		sceneLog := log.WithFields(map[string]any{"scene": i})

		audio, providerName, err := o.resolver.Synthesize(ctx, scene.Text, voice)
		if err != nil {
			return nil, fmt.Errorf("scene %d speech: %w", i, err)
		}
		sceneLog.Info("speech synthesized",
			"provider", providerName,
			"duration_s", audio.DurationSeconds,
		)

		audioPath := filepath.Join(workDir, fmt.Sprintf("scene_%d.wav", i))
		if err := os.WriteFile(audioPath, audio.Data, 0o644); err != nil {
			return nil, fmt.Errorf("scene %d write audio: %w", i, err)
		}

		if i == 0 {
			if err := o.transition(ctx, job.ID, workflow.StateTranscribing, ""); err != nil {
				return nil, err
			}
		}
		captions, err := o.transcriber.Transcribe(ctx, audioPath)
		if err != nil {
			// No fallback on this axis: the job fails here.
			return nil, fmt.Errorf("scene %d transcription: %w", i, err)
		}

		minDuration := audio.DurationSeconds
		if i == len(job.Scenes)-1 {
			minDuration += float64(padding) / 1000.0
		}

		if i == 0 {
			if err := o.transition(ctx, job.ID, workflow.StateSearchingVideo, ""); err != nil {
				return nil, err
			}
		}
		asset, source, err := o.findAsset(ctx, sceneLog, visual.FindRequest{
			SearchTerms:        scene.SearchTerms,
			MinDurationSeconds: minDuration,
			ExcludeIDs:         excludeIDs,
			Orientation:        job.Config.Orientation,
			ImagePrompt:        scene.ImagePrompt,
			VideoPrompt:        scene.VideoPrompt,
		})
		if err != nil {
			return nil, fmt.Errorf("scene %d visual: %w", i, err)
		}
		excludeIDs = append(excludeIDs, asset.ID)

		videoPath := filepath.Join(workDir, fmt.Sprintf("scene_%d.mp4", i))
		if err := visual.Download(ctx, asset.URL, videoPath, o.visualTimeout); err != nil {
			return nil, fmt.Errorf("scene %d download: %w", i, err)
		}

		assets = append(assets, model.SceneAssets{
			AudioPath:     audioPath,
			AudioDuration: audio.DurationSeconds,
			Captions:      captions,
			VideoPath:     videoPath,
			VideoID:       asset.ID,
			VideoSource:   source,
		})
	}

	return assets, nil
}

// findAsset resolves the scene's visual provider and calls it with a
// bounded per-attempt timeout, retrying a limited number of times before
// giving up. The provider choice is re-resolved on every attempt so "both"
// mode can flip between generative providers.
func (o *Orchestrator) findAsset(ctx context.Context, log *logger.Logger, req visual.FindRequest) (model.VisualAsset, string, error) {
	var lastErr error

	for attempt := 0; attempt <= o.visualRetries; attempt++ {
		finder, err := o.resolver.PickVisual()
		if err != nil {
			return model.VisualAsset{}, "", err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, o.visualTimeout)
		asset, err := finder.FindAsset(attemptCtx, req)
		cancel()
		if err == nil {
			return asset, finder.Name(), nil
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < o.visualRetries {
			log.Warn("visual acquisition failed, retrying",
				"provider", finder.Name(),
				"attempt", attempt+1,
				"error", err.Error(),
			)
		}
	}
	return model.VisualAsset{}, "", lastErr
}

// render picks the composition path. A single-scene job whose clip came
// from stock footage takes the cheap overlay path; everything else goes
// through the full composition call.
func (o *Orchestrator) render(ctx context.Context, job *model.RenderJob, scenes []model.SceneAssets, workDir string) (string, error) {
	outputPath := filepath.Join(workDir, "output.mp4")

	if len(scenes) == 1 && scenes[0].VideoSource == "pexels" {
		return o.engine.Combine(ctx, renderengine.CombineRequest{
			VideoPath:  scenes[0].VideoPath,
			AudioPath:  scenes[0].AudioPath,
			Captions:   scenes[0].Captions,
			OutputPath: outputPath,
		})
	}

	engineScenes := make([]renderengine.Scene, 0, len(scenes))
	for _, s := range scenes {
		engineScenes = append(engineScenes, renderengine.Scene{
			AudioPath: s.AudioPath,
			VideoPath: s.VideoPath,
			Captions:  s.Captions,
		})
	}
	return o.engine.Render(ctx, renderengine.RenderRequest{
		JobID:      job.ID,
		Scenes:     engineScenes,
		Music:      job.Config.Music,
		Config:     job.Config,
		OutputPath: outputPath,
	})
}

// persistArtifact copies the rendered output into durable object storage
// under the job's stable key.
func (o *Orchestrator) persistArtifact(ctx context.Context, jobID, outputPath string) error {
	f, err := os.Open(outputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	_, err = o.storage.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   ArtifactKey(jobID),
		ContentType: "video/mp4",
		Reader:      f,
		Size:        info.Size(),
	})
	return err
}

// failJob moves the workflow to FAILED with the reason, archives it, and
// emits the failure event. Best effort throughout: the worker loop goes on
// to the next job regardless.
func (o *Orchestrator) failJob(ctx context.Context, job *model.RenderJob, cause error) {
	if err := o.tracker.UpdateState(ctx, job.ID, workflow.StateFailed, workflow.UpdateOptions{
		Err: cause.Error(),
	}); err != nil {
		o.log.Warn("failed to mark workflow failed", "job_id", job.ID, "error", err.Error())
	}
	if err := o.tracker.CompleteWorkflow(ctx, job.ID); err != nil {
		o.log.Warn("failed to archive failed workflow", "job_id", job.ID, "error", err.Error())
	}
	o.emit(ctx, job, model.EventVideoFailed, cause.Error())
}

func (o *Orchestrator) transition(ctx context.Context, jobID string, state workflow.State, details string) error {
	return o.tracker.UpdateState(ctx, jobID, state, workflow.UpdateOptions{Details: details})
}

// emit fans the outcome event out to webhook subscribers, and additionally
// posts it once, unsigned, to the job's own callback URL when one was
// supplied at enqueue time.
func (o *Orchestrator) emit(ctx context.Context, job *model.RenderJob, eventType model.EventType, errMsg string) {
	event := model.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data: model.EventData{
			JobID: job.ID,
			Error: errMsg,
		},
	}

	if o.webhooks != nil {
		o.webhooks.Trigger(ctx, event)
	}
	if job.CallbackURL != "" {
		o.postCallback(ctx, job.CallbackURL, event)
	}
}

func (o *Orchestrator) postCallback(ctx context.Context, url string, event model.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		o.log.Warn("callback marshal failed", "job_id", event.Data.JobID, "error", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		o.log.Warn("callback request failed", "job_id", event.Data.JobID, "error", err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		o.log.Warn("callback delivery failed",
			"job_id", event.Data.JobID,
			"url", url,
			"error", err.Error(),
		)
		return
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		o.log.Warn("callback delivery rejected",
			"job_id", event.Data.JobID,
			"url", url,
			"status", res.StatusCode,
		)
	}
}
