// Package webhook owns registration, signed delivery, and retry of
// outbound event notifications. Events arrive opaque: the subsystem knows
// nothing about the pipeline that produced them.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"storyreel/internal/model"
	"storyreel/internal/pkg/errors"
	"storyreel/internal/pkg/logger"
	"storyreel/internal/recordstore"
)

// registrationsKey is the single document holding all registrations.
const registrationsKey = "registrations"

type Deps struct {
	Store           recordstore.Store
	DeliveryTimeout time.Duration
	Log             *logger.Logger
}

// Service is the webhook delivery subsystem.
type Service struct {
	store   recordstore.Store
	client  *http.Client
	timeout time.Duration
	log     *logger.Logger

	mu     sync.Mutex
	regs   []*Registration
	failed map[string]*FailedDelivery
}

func NewService(ctx context.Context, d Deps) (*Service, error) {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	timeout := d.DeliveryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Service{
		store:   d.Store,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		log:     log.WithComponent("webhook"),
		failed:  make(map[string]*FailedDelivery),
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// load restores registrations and pending failed deliveries so retries
// survive a process restart.
func (s *Service) load(ctx context.Context) error {
	var regs []*Registration
	err := s.store.Get(ctx, recordstore.CollectionWebhooks, registrationsKey, &regs)
	if err != nil && err != recordstore.ErrNotFound {
		return err
	}
	s.regs = regs

	docs, err := s.store.List(ctx, recordstore.CollectionFailedDeliveries)
	if err != nil {
		return err
	}
	for key, raw := range docs {
		var fd FailedDelivery
		if err := json.Unmarshal(raw, &fd); err != nil {
			s.log.Warn("skipping unreadable failed-delivery record", "key", key, "error", err.Error())
			continue
		}
		s.failed[fd.key()] = &fd
	}
	if len(s.failed) > 0 {
		s.log.Info("recovered failed-delivery records", "count", len(s.failed))
	}
	return nil
}

// Register creates a registration with an unguessable id and persists it
// immediately. Registrations default to active.
func (s *Service) Register(ctx context.Context, url string, events []model.EventType, secret string) (*Registration, error) {
	reg := &Registration{
		ID:        uuid.NewString(),
		URL:       url,
		Events:    events,
		Secret:    secret,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.regs = append(s.regs, reg)
	err := s.persistRegistrationsLocked(ctx)
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return reg.clone(), nil
}

// List returns copies of all registrations.
func (s *Service) List(ctx context.Context) []*Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Registration, 0, len(s.regs))
	for _, r := range s.regs {
		out = append(out, r.clone())
	}
	return out
}

// Get returns a copy of one registration by id.
func (s *Service) Get(ctx context.Context, id string) (*Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.regs {
		if r.ID == id {
			return r.clone(), nil
		}
	}
	return nil, errors.NotFound("webhook", id)
}

// Update mutates a registration in place.
func (s *Service) Update(ctx context.Context, id string, upd RegistrationUpdate) (*Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.regs {
		if r.ID != id {
			continue
		}
		if upd.URL != nil {
			r.URL = *upd.URL
		}
		if upd.Events != nil {
			r.Events = upd.Events
		}
		if upd.Secret != nil {
			r.Secret = *upd.Secret
		}
		if upd.Active != nil {
			r.Active = *upd.Active
		}
		if err := s.persistRegistrationsLocked(ctx); err != nil {
			return nil, err
		}
		return r.clone(), nil
	}
	return nil, errors.NotFound("webhook", id)
}

// Delete removes a registration.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.regs {
		if r.ID == id {
			s.regs = append(s.regs[:i], s.regs[i+1:]...)
			return s.persistRegistrationsLocked(ctx)
		}
	}
	return errors.NotFound("webhook", id)
}

func (s *Service) persistRegistrationsLocked(ctx context.Context) error {
	if err := s.store.Put(ctx, recordstore.CollectionWebhooks, registrationsKey, s.regs); err != nil {
		return errors.Persistence("webhook.registrations", err)
	}
	return nil
}

// Trigger fans the event out to every active registration subscribed to
// its type. Deliveries run concurrently and independently; Trigger returns
// once every first attempt has settled.
func (s *Service) Trigger(ctx context.Context, event model.Event) {
	s.mu.Lock()
	var targets []Registration
	for _, r := range s.regs {
		if r.Active && r.Subscribed(event.Type) {
			targets = append(targets, *r.clone())
		}
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, reg := range targets {
		wg.Add(1)
		go func(reg Registration) {
			defer wg.Done()
			s.attempt(ctx, event, reg)
		}(reg)
	}
	wg.Wait()
}

// attempt runs one delivery try for (event, registration). The HTTP call
// runs against a snapshot of the registration; the shared failed-delivery
// record is read and updated only under the lock, so concurrent attempts
// on the same pair serialize their bookkeeping. Returns a copy of the
// record if the pair is still failing, nil once delivered.
func (s *Service) attempt(ctx context.Context, event model.Event, reg Registration) *FailedDelivery {
	status, err := s.deliver(ctx, event, reg)
	now := time.Now().UTC()
	key := event.ID + ":" + reg.ID

	s.mu.Lock()
	fd := s.failed[key]
	attemptNo := 1
	if fd != nil {
		attemptNo = len(fd.Attempts) + 1
	}

	attempt := DeliveryAttempt{
		Attempt:    attemptNo,
		At:         now,
		Success:    err == nil,
		StatusCode: status,
	}

	if err == nil {
		delete(s.failed, key)
		s.mu.Unlock()

		if fd != nil {
			s.deleteRecord(ctx, key)
		}
		s.log.Debug("webhook delivered",
			"webhook_id", reg.ID,
			"event_id", event.ID,
			"attempt", attemptNo,
		)
		return nil
	}
	attempt.Error = err.Error()

	if fd == nil {
		fd = &FailedDelivery{
			EventID:   event.ID,
			WebhookID: reg.ID,
			Event:     event,
			CreatedAt: now,
		}
		s.failed[key] = fd
	}

	fd.LastAttemptAt = now
	if attemptNo >= MaxAttempts {
		fd.MaxAttemptsReached = true
		fd.NextRetryAt = nil
	} else {
		next := now.Add(nextBackoff(attemptNo))
		fd.NextRetryAt = &next
		attempt.NextRetryAt = &next
	}
	fd.Attempts = append(fd.Attempts, attempt)
	snapshot := fd.clone()
	s.mu.Unlock()

	s.log.Warn("webhook delivery failed",
		"webhook_id", reg.ID,
		"event_id", event.ID,
		"attempt", attemptNo,
		"status", status,
		"max_attempts_reached", snapshot.MaxAttemptsReached,
		"error", err.Error(),
	)

	if perr := s.store.Put(ctx, recordstore.CollectionFailedDeliveries, key, snapshot); perr != nil {
		s.log.Error("failed to persist failed-delivery record",
			"key", key,
			"error", perr.Error(),
		)
	}
	return snapshot
}

// deliver serializes the event, signs the exact bytes, and POSTs them.
// Any transport error or non-2xx response is a failure.
func (s *Service) deliver(ctx context.Context, event model.Event, reg Registration) (int, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reg.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(payload, reg.Secret))
	req.Header.Set(EventHeader, string(event.Type))

	res, err := s.client.Do(req)
	if err != nil {
		return 0, errors.Delivery(reg.ID, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res.StatusCode, errors.Newf(errors.CodeDelivery, "webhook http %d", res.StatusCode)
	}
	return res.StatusCode, nil
}

// resolveKey drops a failed-delivery record whose registration is gone.
func (s *Service) resolveKey(ctx context.Context, key string) {
	s.mu.Lock()
	delete(s.failed, key)
	s.mu.Unlock()
	s.deleteRecord(ctx, key)
}

func (s *Service) deleteRecord(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, recordstore.CollectionFailedDeliveries, key); err != nil {
		s.log.Error("failed to delete resolved failed-delivery record",
			"key", key,
			"error", err.Error(),
		)
	}
}

// ListFailed returns copies of all failed-delivery records, exhausted
// ones included.
func (s *Service) ListFailed(ctx context.Context) []*FailedDelivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*FailedDelivery, 0, len(s.failed))
	for _, fd := range s.failed {
		out = append(out, fd.clone())
	}
	return out
}

// RetryPending re-attempts every non-exhausted record whose NextRetryAt
// has elapsed as of asOf. Returns the records resolved by this pass.
func (s *Service) RetryPending(ctx context.Context, asOf time.Time) []*FailedDelivery {
	s.mu.Lock()
	var due []*FailedDelivery
	for _, fd := range s.failed {
		if fd.MaxAttemptsReached || fd.NextRetryAt == nil {
			continue
		}
		if !fd.NextRetryAt.After(asOf) {
			due = append(due, fd.clone())
		}
	}
	s.mu.Unlock()

	var resolved []*FailedDelivery
	for _, fd := range due {
		reg, err := s.Get(ctx, fd.WebhookID)
		if err != nil {
			// Registration deleted since the failure; drop the record.
			s.resolveKey(ctx, fd.key())
			continue
		}
		if still := s.attempt(ctx, fd.Event, *reg); still == nil {
			resolved = append(resolved, fd)
		}
	}
	return resolved
}

// RetryAll force-retries every failed record, exhausted ones included.
// This is the manual retry trigger: it ignores NextRetryAt and re-arms
// exhausted records for one more attempt.
func (s *Service) RetryAll(ctx context.Context) (retried, resolved int) {
	s.mu.Lock()
	records := make([]*FailedDelivery, 0, len(s.failed))
	for _, fd := range s.failed {
		records = append(records, fd.clone())
	}
	s.mu.Unlock()

	for _, fd := range records {
		reg, err := s.Get(ctx, fd.WebhookID)
		if err != nil {
			s.resolveKey(ctx, fd.key())
			continue
		}
		s.mu.Lock()
		if cur, ok := s.failed[fd.key()]; ok {
			cur.MaxAttemptsReached = false
		}
		s.mu.Unlock()
		retried++
		if still := s.attempt(ctx, fd.Event, *reg); still == nil {
			resolved++
		}
	}
	return retried, resolved
}

// RunRetryWorker periodically scans for due retries until ctx is canceled.
// The scan interval is independent of the backoff schedule, so a due retry
// may wait up to one interval past its NextRetryAt.
func (s *Service) RunRetryWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("webhook retry worker started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("webhook retry worker stopped")
			return
		case now := <-ticker.C:
			s.RetryPending(ctx, now.UTC())
		}
	}
}
