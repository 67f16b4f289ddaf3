// Package transcribe wraps the transcription collaborator. There is no
// fallback here: if the audio cannot be transcribed the job fails.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"storyreel/internal/model"
)

func decodeJSON(r io.Reader, out any) error {
	return json.NewDecoder(r).Decode(out)
}

// Transcriber turns a synthesized audio file into ordered timed captions.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]model.Caption, error)
}

// WhisperClient talks to a whisper-compatible transcription server.
type WhisperClient struct {
	baseURL string
	client  *http.Client
}

func NewWhisperClient(baseURL string, timeout time.Duration) *WhisperClient {
	return &WhisperClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (w *WhisperClient) Transcribe(ctx context.Context, audioPath string) ([]model.Caption, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return nil, err
	}
	if err := mw.WriteField("timestamp_granularities[]", "word"); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		w.baseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("whisper http %d: %s", res.StatusCode, msg)
	}

	var out struct {
		Words []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	}
	if err := decodeJSON(res.Body, &out); err != nil {
		return nil, fmt.Errorf("whisper decode: %w", err)
	}

	captions := make([]model.Caption, 0, len(out.Words))
	for _, w := range out.Words {
		captions = append(captions, model.Caption{
			Text:    w.Word,
			StartMs: int(w.Start * 1000),
			EndMs:   int(w.End * 1000),
		})
	}
	return captions, nil
}
