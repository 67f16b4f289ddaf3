package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Piper is the last-resort offline provider: a self-hosted piper HTTP
// wrapper that never needs credentials or a network route outside the host.
type Piper struct {
	baseURL string
	client  *http.Client
}

func NewPiper(baseURL string, timeout time.Duration) *Piper {
	return &Piper{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *Piper) Name() string     { return "piper" }
func (p *Piper) Configured() bool { return p.baseURL != "" }

func (p *Piper) Generate(ctx context.Context, text, voiceID string) (Audio, error) {
	body, err := json.Marshal(map[string]any{
		"text":  text,
		"voice": voiceID,
	})
	if err != nil {
		return Audio{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return Audio{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return Audio{}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return Audio{}, fmt.Errorf("piper http %d: %s", res.StatusCode, msg)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return Audio{}, err
	}

	duration, err := wavDuration(data)
	if err != nil {
		return Audio{}, fmt.Errorf("piper audio: %w", err)
	}
	return Audio{Data: data, DurationSeconds: duration}, nil
}
