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

// Luma is the second generative provider.
type Luma struct {
	baseURL      string
	apiKey       string
	client       *http.Client
	pollInterval time.Duration
}

func NewLuma(baseURL, apiKey string, timeout time.Duration) *Luma {
	return &Luma{
		baseURL:      baseURL,
		apiKey:       apiKey,
		client:       &http.Client{Timeout: timeout},
		pollInterval: 5 * time.Second,
	}
}

func (l *Luma) Name() string     { return "luma" }
func (l *Luma) Configured() bool { return l.apiKey != "" }

func (l *Luma) FindAsset(ctx context.Context, req FindRequest) (model.VisualAsset, error) {
	prompt := req.VideoPrompt
	if prompt == "" {
		prompt = strings.Join(req.SearchTerms, ", ")
	}

	aspect := "16:9"
	width, height := 1280, 720
	if req.Orientation == model.OrientationPortrait {
		aspect = "9:16"
		width, height = 720, 1280
	}

	body, err := json.Marshal(map[string]any{
		"model":        "ray-2",
		"prompt":       prompt,
		"aspect_ratio": aspect,
	})
	if err != nil {
		return model.VisualAsset{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		l.baseURL+"/dream-machine/v1/generations", bytes.NewReader(body))
	if err != nil {
		return model.VisualAsset{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+l.apiKey)

	res, err := l.client.Do(httpReq)
	if err != nil {
		return model.VisualAsset{}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return model.VisualAsset{}, fmt.Errorf("luma http %d", res.StatusCode)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(res, &created); err != nil {
		return model.VisualAsset{}, fmt.Errorf("luma decode: %w", err)
	}

	url, err := l.poll(ctx, created.ID)
	if err != nil {
		return model.VisualAsset{}, err
	}

	return model.VisualAsset{
		ID:     "luma-" + created.ID,
		URL:    url,
		Width:  width,
		Height: height,
	}, nil
}

func (l *Luma) poll(ctx context.Context, generationID string) (string, error) {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			l.baseURL+"/dream-machine/v1/generations/"+generationID, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+l.apiKey)

		res, err := l.client.Do(req)
		if err != nil {
			return "", err
		}

		var gen struct {
			State         string `json:"state"`
			FailureReason string `json:"failure_reason"`
			Assets        struct {
				Video string `json:"video"`
			} `json:"assets"`
		}
		err = decodeJSON(res, &gen)
		res.Body.Close()
		if err != nil {
			return "", fmt.Errorf("luma poll decode: %w", err)
		}

		switch gen.State {
		case "completed":
			if gen.Assets.Video == "" {
				return "", fmt.Errorf("luma generation %s completed without video", generationID)
			}
			return gen.Assets.Video, nil
		case "failed":
			return "", fmt.Errorf("luma generation %s failed: %s", generationID, gen.FailureReason)
		}
	}
}
