package webhook

import (
	"testing"
	"time"
)

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		attemptsMade int
		want         time.Duration
	}{
		{0, 0},
		{1, 1 * time.Minute},
		{2, 5 * time.Minute},
		{3, 15 * time.Minute},
		{4, 60 * time.Minute},
		// Clamped at the schedule tail.
		{5, 60 * time.Minute},
		{100, 60 * time.Minute},
		{-1, 0},
	}

	for _, tt := range tests {
		if got := nextBackoff(tt.attemptsMade); got != tt.want {
			t.Errorf("nextBackoff(%d) = %v, want %v", tt.attemptsMade, got, tt.want)
		}
	}
}

func TestFailedDeliveryKey(t *testing.T) {
	fd := &FailedDelivery{EventID: "ev-1", WebhookID: "wh-2"}
	if got := fd.key(); got != "ev-1:wh-2" {
		t.Errorf("key() = %q, want %q", got, "ev-1:wh-2")
	}
}
