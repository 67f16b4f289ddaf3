package visual

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storyreel/internal/model"
)

// Pexels is the stock-footage baseline provider.
type Pexels struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewPexels(baseURL, apiKey string, timeout time.Duration) *Pexels {
	return &Pexels{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *Pexels) Name() string     { return "pexels" }
func (p *Pexels) Configured() bool { return p.apiKey != "" }

type pexelsVideoFile struct {
	Link   string `json:"link"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type pexelsVideo struct {
	ID         int               `json:"id"`
	Duration   float64           `json:"duration"`
	VideoFiles []pexelsVideoFile `json:"video_files"`
}

func (p *Pexels) FindAsset(ctx context.Context, req FindRequest) (model.VisualAsset, error) {
	q := url.Values{}
	q.Set("query", strings.Join(req.SearchTerms, " "))
	q.Set("per_page", "20")
	if req.Orientation != "" {
		q.Set("orientation", string(req.Orientation))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.baseURL+"/videos/search?"+q.Encode(), nil)
	if err != nil {
		return model.VisualAsset{}, err
	}
	httpReq.Header.Set("Authorization", p.apiKey)

	res, err := p.client.Do(httpReq)
	if err != nil {
		return model.VisualAsset{}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return model.VisualAsset{}, fmt.Errorf("pexels http %d", res.StatusCode)
	}

	var out struct {
		Videos []pexelsVideo `json:"videos"`
	}
	if err := decodeJSON(res, &out); err != nil {
		return model.VisualAsset{}, fmt.Errorf("pexels decode: %w", err)
	}

	for _, v := range out.Videos {
		id := strconv.Itoa(v.ID)
		if v.Duration < req.MinDurationSeconds || excluded(id, req.ExcludeIDs) {
			continue
		}
		file := bestFile(v.VideoFiles, req.Orientation)
		if file == nil {
			continue
		}
		return model.VisualAsset{
			ID:     id,
			URL:    file.Link,
			Width:  file.Width,
			Height: file.Height,
		}, nil
	}

	return model.VisualAsset{}, fmt.Errorf("pexels: no video matched %q (min %.1fs)",
		strings.Join(req.SearchTerms, " "), req.MinDurationSeconds)
}

// bestFile prefers the largest file matching the requested orientation.
func bestFile(files []pexelsVideoFile, orientation model.Orientation) *pexelsVideoFile {
	var best *pexelsVideoFile
	for i := range files {
		f := &files[i]
		if f.Width == 0 || f.Height == 0 {
			continue
		}
		portrait := f.Height > f.Width
		if orientation == model.OrientationPortrait && !portrait {
			continue
		}
		if orientation == model.OrientationLandscape && portrait {
			continue
		}
		if best == nil || f.Width*f.Height > best.Width*best.Height {
			best = f
		}
	}
	return best
}
