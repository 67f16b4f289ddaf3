package webhook

import (
	"time"

	"storyreel/internal/model"
)

// Registration is one operator-registered webhook endpoint.
type Registration struct {
	ID        string            `json:"id"`
	URL       string            `json:"url"`
	Events    []model.EventType `json:"events"`
	Secret    string            `json:"secret"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"createdAt"`
}

// clone returns an independent copy. Everything handed across the lock
// boundary (handlers, delivery goroutines) gets a clone, never the stored
// pointer.
func (r *Registration) clone() *Registration {
	out := *r
	out.Events = append([]model.EventType(nil), r.Events...)
	return &out
}

// Subscribed reports whether the registration wants events of this type.
func (r *Registration) Subscribed(t model.EventType) bool {
	for _, e := range r.Events {
		if e == t {
			return true
		}
	}
	return false
}

// RegistrationUpdate carries the mutable fields of a registration; nil
// fields are left untouched.
type RegistrationUpdate struct {
	URL    *string
	Events []model.EventType
	Secret *string
	Active *bool
}
