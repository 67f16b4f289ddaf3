package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storyreel/internal/httpkit"
	"storyreel/internal/pkg/errors"
)

type PublishRequest struct {
	Channel string `json:"channel" validate:"required,min=1,max=64"`
}

// PostPublish pushes a completed job's artifact to a channel destination.
// The copy runs synchronously; generative rendering is the slow part, not
// this.
func (h *Handler) PostPublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")

	var req PublishRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, string(errors.CodeValidation), "invalid json body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.WriteErr(w, 400, string(errors.CodeValidation), "invalid request", validationDetails(err))
		return
	}

	rec, err := h.publisher.Publish(ctx, jobID, req.Channel)
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}
	httpkit.WriteJSON(w, 201, rec)
}

// GetPublish reports the publish record for one (job, channel) pair.
func (h *Handler) GetPublish(w http.ResponseWriter, r *http.Request) {
	rec, err := h.tracker.GetPublish(r.Context(),
		chi.URLParam(r, "jobId"), chi.URLParam(r, "channel"))
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}
	httpkit.WriteJSON(w, 200, rec)
}
