// Package visual holds the visual-asset acquisition contract and the HTTP
// clients behind it: two generative providers (runway, luma) and the pexels
// stock-footage baseline.
package visual

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"storyreel/internal/model"
)

// FindRequest describes what a scene needs from an acquisition call.
type FindRequest struct {
	SearchTerms []string
	// MinDurationSeconds is derived from the scene's audio length; the
	// provider must return a clip at least this long (the render engine
	// trims or loops to fit).
	MinDurationSeconds float64
	// ExcludeIDs is the per-job exclusion set so a clip is never reused
	// within one job.
	ExcludeIDs  []string
	Orientation model.Orientation
	ImagePrompt string
	VideoPrompt string
}

// Finder is one visual-asset provider.
type Finder interface {
	Name() string
	Configured() bool
	FindAsset(ctx context.Context, req FindRequest) (model.VisualAsset, error)
}

func decodeJSON(res *http.Response, out any) error {
	return json.NewDecoder(res.Body).Decode(out)
}

func excluded(id string, excludeIDs []string) bool {
	for _, e := range excludeIDs {
		if e == id {
			return true
		}
	}
	return false
}

// Download fetches an asset's media to dst with a bounded timeout.
func Download(ctx context.Context, url, dst string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("asset download http %d", res.StatusCode)
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, res.Body); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}
