package handlers

import (
	"net/http"

	"storyreel/internal/httpkit"
)

// Health reports liveness plus the configured storage provider. The
// process is single-binary: if this handler answers, the queue worker and
// webhook retry worker are running in the same process.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httpkit.WriteJSON(w, 200, map[string]any{
		"status":  "ok",
		"service": "storyreel-api",
		"version": "0.1.0",
		"storage": h.sp.Provider(),
	})
}
