package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"storyreel/internal/httpkit"
	"storyreel/internal/pkg/errors"
	"storyreel/internal/workflow"
)

// GetWorkflowHistory lists archived workflow records newest-first. The
// status filter accepts COMPLETED or FAILED.
func (h *Handler) GetWorkflowHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	offset := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}

	var status workflow.State
	switch raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))); raw {
	case "":
	case string(workflow.StateCompleted), string(workflow.StateFailed):
		status = workflow.State(raw)
	default:
		httpkit.WriteErr(w, 400, string(errors.CodeValidation),
			"status must be COMPLETED or FAILED", map[string]any{"status": raw})
		return
	}

	records, err := h.tracker.GetHistory(ctx, limit, offset, status)
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}

	httpkit.WriteJSON(w, 200, map[string]any{
		"records": records,
		"limit":   limit,
		"offset":  offset,
	})
}
