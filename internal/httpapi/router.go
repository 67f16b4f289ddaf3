// Package httpapi wires the public HTTP surface.
package httpapi

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"storyreel/internal/httpapi/handlers"
	"storyreel/internal/httpkit"
	"storyreel/internal/pkg/logger"
	"storyreel/internal/pkg/middleware"
)

type Deps = handlers.Deps

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))

	allowedOrigins := envCSV("CORS_ALLOWED_ORIGINS", []string{
		"http://localhost:8081",
		"http://localhost:5173",
	})
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAgeSeconds:    600,
	}))

	h := handlers.New(d)

	// ---- HEALTH ----
	r.Get("/health", h.Health)

	// ---- JOBS ----
	r.Post("/jobs", h.PostJob)
	r.Get("/jobs/{jobId}", h.GetJob)
	r.Get("/jobs/{jobId}/artifact", h.GetArtifact)
	r.Post("/jobs/{jobId}/publish", h.PostPublish)
	r.Get("/jobs/{jobId}/publish/{channel}", h.GetPublish)

	// ---- WORKFLOWS ----
	r.Get("/workflows/history", h.GetWorkflowHistory)

	// ---- WEBHOOKS ----
	r.Post("/webhooks", h.PostWebhook)
	r.Get("/webhooks", h.ListWebhooks)
	r.Get("/webhooks/failed-deliveries", h.ListFailedDeliveries)
	r.Post("/webhooks/failed-deliveries/retry", h.RetryFailedDeliveries)
	r.Get("/webhooks/{webhookId}", h.GetWebhook)
	r.Patch("/webhooks/{webhookId}", h.PatchWebhook)
	r.Put("/webhooks/{webhookId}", h.PatchWebhook)
	r.Delete("/webhooks/{webhookId}", h.DeleteWebhook)

	return r
}

func envCSV(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
