package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"storyreel/internal/httpkit"
	"storyreel/internal/model"
	"storyreel/internal/pkg/errors"
	"storyreel/internal/webhook"
)

type RegisterWebhookRequest struct {
	URL    string   `json:"url" validate:"required,url"`
	Events []string `json:"events" validate:"required,min=1,dive,oneof=video.completed video.failed publish.completed publish.failed"`
	Secret string   `json:"secret" validate:"required,min=8"`
}

type UpdateWebhookRequest struct {
	URL    *string  `json:"url" validate:"omitempty,url"`
	Events []string `json:"events" validate:"omitempty,min=1,dive,oneof=video.completed video.failed publish.completed publish.failed"`
	Secret *string  `json:"secret" validate:"omitempty,min=8"`
	Active *bool    `json:"active"`
}

// WebhookResponse is the public view of a registration. The signing secret
// is write-only through the API.
type WebhookResponse struct {
	ID        string            `json:"id"`
	URL       string            `json:"url"`
	Events    []model.EventType `json:"events"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"createdAt"`
}

func webhookView(reg *webhook.Registration) WebhookResponse {
	return WebhookResponse{
		ID:        reg.ID,
		URL:       reg.URL,
		Events:    reg.Events,
		Active:    reg.Active,
		CreatedAt: reg.CreatedAt,
	}
}

func (h *Handler) PostWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterWebhookRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, string(errors.CodeValidation), "invalid json body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.WriteErr(w, 400, string(errors.CodeValidation), "invalid request", validationDetails(err))
		return
	}

	events := make([]model.EventType, 0, len(req.Events))
	for _, e := range req.Events {
		events = append(events, model.EventType(e))
	}

	reg, err := h.webhooks.Register(ctx, req.URL, events, req.Secret)
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}
	httpkit.WriteJSON(w, 201, webhookView(reg))
}

func (h *Handler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	regs := h.webhooks.List(r.Context())
	views := make([]WebhookResponse, 0, len(regs))
	for _, reg := range regs {
		views = append(views, webhookView(reg))
	}
	httpkit.WriteJSON(w, 200, map[string]any{"webhooks": views})
}

func (h *Handler) GetWebhook(w http.ResponseWriter, r *http.Request) {
	reg, err := h.webhooks.Get(r.Context(), chi.URLParam(r, "webhookId"))
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}
	httpkit.WriteJSON(w, 200, webhookView(reg))
}

func (h *Handler) PatchWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UpdateWebhookRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, string(errors.CodeValidation), "invalid json body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.WriteErr(w, 400, string(errors.CodeValidation), "invalid request", validationDetails(err))
		return
	}

	upd := webhook.RegistrationUpdate{
		URL:    req.URL,
		Secret: req.Secret,
		Active: req.Active,
	}
	if req.Events != nil {
		events := make([]model.EventType, 0, len(req.Events))
		for _, e := range req.Events {
			events = append(events, model.EventType(e))
		}
		upd.Events = events
	}

	reg, err := h.webhooks.Update(ctx, chi.URLParam(r, "webhookId"), upd)
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}
	httpkit.WriteJSON(w, 200, webhookView(reg))
}

func (h *Handler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.webhooks.Delete(r.Context(), chi.URLParam(r, "webhookId")); err != nil {
		httpkit.WriteError(w, err)
		return
	}
	w.WriteHeader(204)
}

// ListFailedDeliveries exposes the pending retry backlog.
func (h *Handler) ListFailedDeliveries(w http.ResponseWriter, r *http.Request) {
	httpkit.WriteJSON(w, 200, map[string]any{
		"failedDeliveries": h.webhooks.ListFailed(r.Context()),
	})
}

// RetryFailedDeliveries forces an immediate retry pass, including records
// that already exhausted their schedule.
func (h *Handler) RetryFailedDeliveries(w http.ResponseWriter, r *http.Request) {
	retried, resolved := h.webhooks.RetryAll(r.Context())
	httpkit.WriteJSON(w, 200, map[string]any{
		"retried":  retried,
		"resolved": resolved,
	})
}

func validationDetails(err error) map[string]any {
	details := map[string]any{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details[fe.Namespace()] = fe.Tag()
		}
	}
	return details
}
