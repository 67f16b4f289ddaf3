// Package renderengine wraps the composition/rendering collaborator.
package renderengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"storyreel/internal/model"
)

// Scene is one fully-acquired scene handed to the engine.
type Scene struct {
	AudioPath string          `json:"audioPath"`
	VideoPath string          `json:"videoPath"`
	Captions  []model.Caption `json:"captions"`
}

type RenderRequest struct {
	JobID      string             `json:"jobId"`
	Scenes     []Scene            `json:"scenes"`
	Music      string             `json:"music,omitempty"`
	Config     model.RenderConfig `json:"config"`
	OutputPath string             `json:"outputPath"`
}

// CombineRequest is the fast path: one pre-acquired clip overlaid with the
// narration audio and captions, no full composition pass.
type CombineRequest struct {
	VideoPath  string          `json:"videoPath"`
	AudioPath  string          `json:"audioPath"`
	Captions   []model.Caption `json:"captions"`
	OutputPath string          `json:"outputPath"`
}

// Engine is the render collaborator contract.
type Engine interface {
	Render(ctx context.Context, req RenderRequest) (string, error)
	Combine(ctx context.Context, req CombineRequest) (string, error)
}

// HTTPClient talks to the render engine service.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Render(ctx context.Context, req RenderRequest) (string, error) {
	return c.post(ctx, "/render", req)
}

func (c *HTTPClient) Combine(ctx context.Context, req CombineRequest) (string, error) {
	return c.post(ctx, "/combine", req)
}

func (c *HTTPClient) post(ctx context.Context, path string, spec any) (string, error) {
	body, err := json.Marshal(spec)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("render engine http %d", res.StatusCode)
	}

	var out struct {
		OutputPath string `json:"outputPath"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("render engine decode: %w", err)
	}
	return out.OutputPath, nil
}
