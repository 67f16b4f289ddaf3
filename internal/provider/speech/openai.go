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

// OpenAI is the secondary hosted synthesis provider. The API streams raw
// WAV bytes, so the duration is derived from the file header.
type OpenAI struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewOpenAI(baseURL, apiKey string, timeout time.Duration) *OpenAI {
	return &OpenAI{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (o *OpenAI) Name() string     { return "openai" }
func (o *OpenAI) Configured() bool { return o.apiKey != "" }

func (o *OpenAI) Generate(ctx context.Context, text, voiceID string) (Audio, error) {
	if voiceID == "" {
		voiceID = "alloy"
	}
	body, err := json.Marshal(map[string]any{
		"model":           "tts-1",
		"input":           text,
		"voice":           voiceID,
		"response_format": "wav",
	})
	if err != nil {
		return Audio{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return Audio{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	res, err := o.client.Do(req)
	if err != nil {
		return Audio{}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return Audio{}, fmt.Errorf("openai http %d: %s", res.StatusCode, msg)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return Audio{}, err
	}

	duration, err := wavDuration(data)
	if err != nil {
		return Audio{}, fmt.Errorf("openai audio: %w", err)
	}
	return Audio{Data: data, DurationSeconds: duration}, nil
}
