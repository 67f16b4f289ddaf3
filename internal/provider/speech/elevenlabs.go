package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ElevenLabs is the primary hosted synthesis provider.
type ElevenLabs struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewElevenLabs(baseURL, apiKey string, timeout time.Duration) *ElevenLabs {
	return &ElevenLabs{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (e *ElevenLabs) Name() string     { return "elevenlabs" }
func (e *ElevenLabs) Configured() bool { return e.apiKey != "" }

func (e *ElevenLabs) Generate(ctx context.Context, text, voiceID string) (Audio, error) {
	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": "eleven_multilingual_v2",
	})
	if err != nil {
		return Audio{}, err
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s/with-timestamps", e.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Audio{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	res, err := e.client.Do(req)
	if err != nil {
		return Audio{}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return Audio{}, fmt.Errorf("elevenlabs http %d: %s", res.StatusCode, msg)
	}

	var out struct {
		AudioBase64 string `json:"audio_base64"`
		Alignment   struct {
			CharacterEndTimes []float64 `json:"character_end_times_seconds"`
		} `json:"alignment"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return Audio{}, fmt.Errorf("elevenlabs decode: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(out.AudioBase64)
	if err != nil {
		return Audio{}, fmt.Errorf("elevenlabs audio decode: %w", err)
	}

	duration := 0.0
	if n := len(out.Alignment.CharacterEndTimes); n > 0 {
		duration = out.Alignment.CharacterEndTimes[n-1]
	}
	return Audio{Data: data, DurationSeconds: duration}, nil
}
