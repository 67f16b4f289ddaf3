package model

import "time"

// Orientation is the target aspect ratio of the rendered video.
type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// SceneInput is one narrated segment of a job. Immutable once accepted.
type SceneInput struct {
	Text        string   `json:"text"`
	SearchTerms []string `json:"searchTerms"`
	ImagePrompt string   `json:"imagePrompt,omitempty"`
	VideoPrompt string   `json:"videoPrompt,omitempty"`
}

// RenderConfig carries the per-job rendering options.
type RenderConfig struct {
	Orientation     Orientation `json:"orientation"`
	VoiceID         string      `json:"voiceId,omitempty"`
	Music           string      `json:"music,omitempty"`
	CaptionPosition string      `json:"captionPosition,omitempty"`
	// PaddingBackMs extends the required duration of the final scene so the
	// video does not cut off on the last spoken word.
	PaddingBackMs int `json:"paddingBackMs,omitempty"`
}

// RenderJob is one accepted request to produce a video. It is owned by the
// queue until it reaches a terminal state and is immutable after acceptance.
type RenderJob struct {
	ID          string            `json:"id"`
	Scenes      []SceneInput      `json:"scenes"`
	Config      RenderConfig      `json:"config"`
	CallbackURL string            `json:"callbackUrl,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	EnqueuedAt  time.Time         `json:"enqueuedAt"`
}

// Caption is one timed transcript fragment.
type Caption struct {
	Text    string `json:"text"`
	StartMs int    `json:"startMs"`
	EndMs   int    `json:"endMs"`
}

// VisualAsset describes an acquired clip before download.
type VisualAsset struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// SceneAssets collects everything produced for one scene during the pipeline.
type SceneAssets struct {
	AudioPath     string
	AudioDuration float64 // seconds
	Captions      []Caption
	VideoPath     string
	VideoID       string
	VideoSource   string // provider that supplied the clip
}
