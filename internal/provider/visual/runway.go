package visual

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storyreel/internal/model"
)

// Runway generates a clip from the scene's prompt. Generation is
// asynchronous: create a task, then poll until it settles.
type Runway struct {
	baseURL      string
	apiKey       string
	client       *http.Client
	pollInterval time.Duration
}

func NewRunway(baseURL, apiKey string, timeout time.Duration) *Runway {
	return &Runway{
		baseURL:      baseURL,
		apiKey:       apiKey,
		client:       &http.Client{Timeout: timeout},
		pollInterval: 5 * time.Second,
	}
}

func (r *Runway) Name() string     { return "runway" }
func (r *Runway) Configured() bool { return r.apiKey != "" }

func (r *Runway) FindAsset(ctx context.Context, req FindRequest) (model.VisualAsset, error) {
	prompt := req.VideoPrompt
	if prompt == "" {
		prompt = strings.Join(req.SearchTerms, ", ")
	}

	ratio := "1280:720"
	width, height := 1280, 720
	if req.Orientation == model.OrientationPortrait {
		ratio = "720:1280"
		width, height = 720, 1280
	}

	body, err := json.Marshal(map[string]any{
		"model":       "gen4_turbo",
		"promptText":  prompt,
		"ratio":       ratio,
		"duration":    int(req.MinDurationSeconds) + 1,
	})
	if err != nil {
		return model.VisualAsset{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.baseURL+"/v1/text_to_video", bytes.NewReader(body))
	if err != nil {
		return model.VisualAsset{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	httpReq.Header.Set("X-Runway-Version", "2024-11-06")

	res, err := r.client.Do(httpReq)
	if err != nil {
		return model.VisualAsset{}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return model.VisualAsset{}, fmt.Errorf("runway http %d", res.StatusCode)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(res, &created); err != nil {
		return model.VisualAsset{}, fmt.Errorf("runway decode: %w", err)
	}

	url, err := r.poll(ctx, created.ID)
	if err != nil {
		return model.VisualAsset{}, err
	}

	return model.VisualAsset{
		ID:     "runway-" + created.ID,
		URL:    url,
		Width:  width,
		Height: height,
	}, nil
}

func (r *Runway) poll(ctx context.Context, taskID string) (string, error) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			r.baseURL+"/v1/tasks/"+taskID, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
		req.Header.Set("X-Runway-Version", "2024-11-06")

		res, err := r.client.Do(req)
		if err != nil {
			return "", err
		}

		var task struct {
			Status  string   `json:"status"`
			Output  []string `json:"output"`
			Failure string   `json:"failure"`
		}
		err = decodeJSON(res, &task)
		res.Body.Close()
		if err != nil {
			return "", fmt.Errorf("runway poll decode: %w", err)
		}

		switch task.Status {
		case "SUCCEEDED":
			if len(task.Output) == 0 {
				return "", fmt.Errorf("runway task %s succeeded without output", taskID)
			}
			return task.Output[0], nil
		case "FAILED":
			return "", fmt.Errorf("runway task %s failed: %s", taskID, task.Failure)
		}
	}
}
