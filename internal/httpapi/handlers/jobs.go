package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"storyreel/internal/httpkit"
	"storyreel/internal/model"
	"storyreel/internal/orchestrator"
	"storyreel/internal/pkg/errors"
)

type CreateJobRequest struct {
	Scenes      []SceneRequest     `json:"scenes" validate:"required,min=1,dive"`
	Config      model.RenderConfig `json:"config"`
	CallbackURL string             `json:"callbackUrl" validate:"omitempty,url"`
	Metadata    map[string]string  `json:"metadata"`
}

type SceneRequest struct {
	Text        string   `json:"text" validate:"required"`
	SearchTerms []string `json:"searchTerms" validate:"required,min=1"`
	ImagePrompt string   `json:"imagePrompt"`
	VideoPrompt string   `json:"videoPrompt"`
}

// PostJob accepts a render request, enqueues it and answers immediately
// with the job id. Rendering happens asynchronously.
func (h *Handler) PostJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	var req CreateJobRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, string(errors.CodeValidation), "invalid json body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.WriteErr(w, 400, string(errors.CodeValidation), "invalid request", validationDetails(err))
		return
	}

	if req.Config.Orientation == "" {
		req.Config.Orientation = model.OrientationPortrait
	}

	scenes := make([]model.SceneInput, 0, len(req.Scenes))
	for _, s := range req.Scenes {
		scenes = append(scenes, model.SceneInput{
			Text:        s.Text,
			SearchTerms: s.SearchTerms,
			ImagePrompt: s.ImagePrompt,
			VideoPrompt: s.VideoPrompt,
		})
	}

	jobID, err := h.orch.Enqueue(ctx, scenes, req.Config, req.CallbackURL, req.Metadata)
	if err != nil {
		log.Error("enqueue failed", "error", err.Error())
		httpkit.WriteError(w, err)
		return
	}

	httpkit.WriteJSON(w, 201, map[string]any{
		"jobId":  jobID,
		"status": orchestrator.StatusProcessing,
	})
}

// GetJob reports a job's coarse status plus its workflow record when one
// exists. An unknown id still answers 200 with status "failed".
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")

	body := map[string]any{
		"jobId":  jobID,
		"status": h.orch.Status(ctx, jobID),
	}

	if rec, err := h.tracker.Get(ctx, jobID); err == nil {
		body["workflow"] = rec
	}

	httpkit.WriteJSON(w, 200, body)
}

// GetArtifact streams the rendered video from object storage.
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")

	rc, contentType, size, err := h.sp.GetObject(ctx, orchestrator.ArtifactKey(jobID))
	if err != nil {
		httpkit.WriteErr(w, 404, string(errors.CodeNotFound), "artifact not found", map[string]any{"jobId": jobID})
		return
	}
	defer rc.Close()

	if contentType == "" {
		contentType = "video/mp4"
	}
	w.Header().Set("Content-Type", contentType)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(200)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.FromContext(ctx).Warn("artifact stream interrupted", "job_id", jobID, "error", err.Error())
	}
}
