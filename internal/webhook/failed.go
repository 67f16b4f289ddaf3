package webhook

import (
	"time"

	"storyreel/internal/model"
)

// backoffSchedule is indexed by completed attempts: the first retry runs
// immediately, later ones wait longer. Capped at MaxAttempts total tries.
var backoffSchedule = []time.Duration{
	0,
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	60 * time.Minute,
}

// MaxAttempts is the total delivery budget for one (event, registration)
// pair. Once exhausted, only a manual retry can re-arm the record.
const MaxAttempts = 5

// DeliveryAttempt records one HTTP POST try.
type DeliveryAttempt struct {
	Attempt     int        `json:"attempt"`
	At          time.Time  `json:"at"`
	Success     bool       `json:"success"`
	StatusCode  int        `json:"statusCode,omitempty"`
	Error       string     `json:"error,omitempty"`
	NextRetryAt *time.Time `json:"nextRetryAt,omitempty"`
}

// FailedDelivery tracks an (event, registration) pair whose delivery has
// failed at least once. Deleted on eventual success; retained indefinitely
// once MaxAttemptsReached.
type FailedDelivery struct {
	EventID            string            `json:"eventId"`
	WebhookID          string            `json:"webhookId"`
	Event              model.Event       `json:"event"`
	Attempts           []DeliveryAttempt `json:"attempts"`
	CreatedAt          time.Time         `json:"createdAt"`
	LastAttemptAt      time.Time         `json:"lastAttemptAt"`
	NextRetryAt        *time.Time        `json:"nextRetryAt,omitempty"`
	MaxAttemptsReached bool              `json:"maxAttemptsReached"`
}

// key identifies the record in the failed-deliveries collection. Event id
// first so an operator listing the directory sees deliveries grouped by
// event.
func (f *FailedDelivery) key() string {
	return f.EventID + ":" + f.WebhookID
}

// clone returns an independent copy for use outside the service lock.
func (f *FailedDelivery) clone() *FailedDelivery {
	out := *f
	out.Attempts = append([]DeliveryAttempt(nil), f.Attempts...)
	if f.NextRetryAt != nil {
		next := *f.NextRetryAt
		out.NextRetryAt = &next
	}
	return &out
}

// nextBackoff returns the wait before the next attempt, given how many
// attempts have already been made. Index 0 (immediate) belongs to the
// initial delivery at trigger time.
func nextBackoff(attemptsMade int) time.Duration {
	if attemptsMade < 0 {
		attemptsMade = 0
	}
	if attemptsMade >= len(backoffSchedule) {
		attemptsMade = len(backoffSchedule) - 1
	}
	return backoffSchedule[attemptsMade]
}
