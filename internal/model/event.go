package model

import "time"

// EventType identifies a job-outcome notification.
type EventType string

const (
	EventVideoCompleted   EventType = "video.completed"
	EventVideoFailed      EventType = "video.failed"
	EventPublishCompleted EventType = "publish.completed"
	EventPublishFailed    EventType = "publish.failed"
)

// EventData is the outcome payload attached to an event.
type EventData struct {
	JobID     string `json:"jobId"`
	ChannelID string `json:"channelId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Event is an immutable job-outcome notification fanned out to webhook
// subscribers. The JSON shape below is the webhook wire format.
type Event struct {
	ID        string    `json:"eventId"`
	Type      EventType `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
}
