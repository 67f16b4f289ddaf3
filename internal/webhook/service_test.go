package webhook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"storyreel/internal/model"
	"storyreel/internal/recordstore"
)

func newTestService(t *testing.T) (*Service, recordstore.Store) {
	t.Helper()

	store, err := recordstore.NewJSONFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONFileStore() error = %v", err)
	}
	svc, err := NewService(context.Background(), Deps{
		Store:           store,
		DeliveryTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc, store
}

func testEvent(id string, typ model.EventType) model.Event {
	return model.Event{
		ID:        id,
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Data:      model.EventData{JobID: "job-1"},
	}
}

func TestRegistrationCRUD(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "https://example.com/hook", []model.EventType{model.EventVideoCompleted}, "secret-12345")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if reg.ID == "" || !reg.Active {
		t.Errorf("unexpected registration: %+v", reg)
	}

	if got := len(svc.List(ctx)); got != 1 {
		t.Fatalf("List() len = %d, want 1", got)
	}

	inactive := false
	upd, err := svc.Update(ctx, reg.ID, RegistrationUpdate{Active: &inactive})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if upd.Active {
		t.Error("Update() did not deactivate")
	}

	// A fresh service over the same store sees the persisted state.
	svc2, err := NewService(ctx, Deps{Store: store})
	if err != nil {
		t.Fatalf("NewService() reload error = %v", err)
	}
	regs := svc2.List(ctx)
	if len(regs) != 1 || regs[0].Active {
		t.Errorf("reloaded registrations = %+v", regs)
	}

	if err := svc.Delete(ctx, reg.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, reg.ID); err == nil {
		t.Error("Get() after delete should fail")
	}
}

func TestTriggerDeliversSignedPayload(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var mu sync.Mutex
	var gotBody []byte
	var gotSig, gotEvent string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotBody = body
		gotSig = r.Header.Get(SignatureHeader)
		gotEvent = r.Header.Get(EventHeader)
		mu.Unlock()
		w.WriteHeader(200)
	}))
	defer srv.Close()

	secret := "delivery-secret"
	if _, err := svc.Register(ctx, srv.URL, []model.EventType{model.EventVideoCompleted}, secret); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	svc.Trigger(ctx, testEvent("ev-1", model.EventVideoCompleted))

	mu.Lock()
	defer mu.Unlock()
	if gotEvent != string(model.EventVideoCompleted) {
		t.Errorf("event header = %q", gotEvent)
	}
	if !VerifySignature(gotBody, gotSig, secret) {
		t.Error("delivered payload does not verify against its signature")
	}
	if len(svc.ListFailed(ctx)) != 0 {
		t.Error("successful delivery left a failed-delivery record")
	}
}

func TestTriggerSkipsUnsubscribedAndInactive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(200)
	}))
	defer srv.Close()

	// Subscribed to a different event type.
	if _, err := svc.Register(ctx, srv.URL, []model.EventType{model.EventPublishCompleted}, "secret-12345"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	// Subscribed but deactivated.
	reg, err := svc.Register(ctx, srv.URL, []model.EventType{model.EventVideoFailed}, "secret-12345")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	inactive := false
	if _, err := svc.Update(ctx, reg.ID, RegistrationUpdate{Active: &inactive}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	svc.Trigger(ctx, testEvent("ev-1", model.EventVideoFailed))

	if calls != 0 {
		t.Errorf("delivery calls = %d, want 0", calls)
	}
}

// A subscriber that answers 500 three times and then 200 sees exactly four
// attempts, and the failed-delivery record is deleted on the success.
func TestRetryUntilEventualSuccess(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n <= 3 {
			w.WriteHeader(500)
			return
		}
		w.WriteHeader(200)
	}))
	defer srv.Close()

	if _, err := svc.Register(ctx, srv.URL, []model.EventType{model.EventVideoCompleted}, "secret-12345"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	svc.Trigger(ctx, testEvent("ev-retry", model.EventVideoCompleted))

	failed := svc.ListFailed(ctx)
	if len(failed) != 1 {
		t.Fatalf("failed records after trigger = %d, want 1", len(failed))
	}
	if failed[0].NextRetryAt == nil {
		t.Fatal("first failure has no NextRetryAt")
	}

	// Walk the backoff schedule far enough to cover every pending wait.
	asOf := time.Now().UTC()
	for i := 0; i < 3; i++ {
		asOf = asOf.Add(2 * time.Hour)
		svc.RetryPending(ctx, asOf)
	}

	mu.Lock()
	total := attempts
	mu.Unlock()
	if total != 4 {
		t.Errorf("delivery attempts = %d, want 4", total)
	}
	if got := len(svc.ListFailed(ctx)); got != 0 {
		t.Errorf("failed records after success = %d, want 0", got)
	}

	// The durable record is gone too.
	docs, err := store.List(ctx, recordstore.CollectionFailedDeliveries)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("durable failed-delivery records = %d, want 0", len(docs))
	}
}

func TestMaxAttemptsReached(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(500)
	}))
	defer srv.Close()

	if _, err := svc.Register(ctx, srv.URL, []model.EventType{model.EventVideoFailed}, "secret-12345"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	svc.Trigger(ctx, testEvent("ev-dead", model.EventVideoFailed))

	asOf := time.Now().UTC()
	for i := 0; i < 10; i++ {
		asOf = asOf.Add(2 * time.Hour)
		svc.RetryPending(ctx, asOf)
	}

	mu.Lock()
	total := attempts
	mu.Unlock()
	if total != MaxAttempts {
		t.Errorf("delivery attempts = %d, want %d", total, MaxAttempts)
	}

	failed := svc.ListFailed(ctx)
	if len(failed) != 1 {
		t.Fatalf("failed records = %d, want 1", len(failed))
	}
	fd := failed[0]
	if !fd.MaxAttemptsReached {
		t.Error("record not marked maxAttemptsReached")
	}
	if fd.NextRetryAt != nil {
		t.Error("exhausted record still scheduled")
	}
	if len(fd.Attempts) != MaxAttempts {
		t.Errorf("recorded attempts = %d, want %d", len(fd.Attempts), MaxAttempts)
	}

	// Manual retry re-arms exhausted records for one more try.
	retried, resolved := svc.RetryAll(ctx)
	if retried != 1 || resolved != 0 {
		t.Errorf("RetryAll() = (%d, %d), want (1, 0)", retried, resolved)
	}
	mu.Lock()
	total = attempts
	mu.Unlock()
	if total != MaxAttempts+1 {
		t.Errorf("attempts after manual retry = %d, want %d", total, MaxAttempts+1)
	}
}

// One failing subscriber never blocks delivery to the others, and each
// (event, registration) pair retries independently.
func TestFanOutIndependence(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer okSrv.Close()
	badSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
	}))
	defer badSrv.Close()

	if _, err := svc.Register(ctx, okSrv.URL, []model.EventType{model.EventVideoCompleted}, "secret-12345"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	bad, err := svc.Register(ctx, badSrv.URL, []model.EventType{model.EventVideoCompleted}, "secret-12345")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	svc.Trigger(ctx, testEvent("ev-fan", model.EventVideoCompleted))

	failed := svc.ListFailed(ctx)
	if len(failed) != 1 {
		t.Fatalf("failed records = %d, want 1", len(failed))
	}
	if failed[0].WebhookID != bad.ID {
		t.Errorf("failed record webhook = %s, want %s", failed[0].WebhookID, bad.ID)
	}
}

func TestFailedDeliveriesSurviveRestart(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	if _, err := svc.Register(ctx, srv.URL, []model.EventType{model.EventVideoCompleted}, "secret-12345"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	svc.Trigger(ctx, testEvent("ev-restart", model.EventVideoCompleted))

	svc2, err := NewService(ctx, Deps{Store: store})
	if err != nil {
		t.Fatalf("NewService() reload error = %v", err)
	}
	failed := svc2.ListFailed(ctx)
	if len(failed) != 1 || failed[0].EventID != "ev-restart" {
		t.Errorf("reloaded failed records = %+v", failed)
	}
}

// Handler-side updates and in-flight fan-outs touch the same registration;
// deliveries must run against a snapshot, never the stored record.
func TestUpdateDuringFanOut(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer srv.Close()

	reg, err := svc.Register(ctx, srv.URL, []model.EventType{model.EventVideoCompleted}, "secret-12345")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			secret := fmt.Sprintf("rotated-secret-%02d", i)
			if _, err := svc.Update(ctx, reg.ID, RegistrationUpdate{Secret: &secret}); err != nil {
				t.Errorf("Update() error = %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			svc.Trigger(ctx, testEvent(fmt.Sprintf("ev-rot-%02d", i), model.EventVideoCompleted))
		}
	}()
	wg.Wait()

	if got := len(svc.ListFailed(ctx)); got != 0 {
		t.Errorf("failed records = %d, want 0", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "https://example.com/hook", []model.EventType{model.EventVideoCompleted}, "secret-12345")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := svc.Get(ctx, reg.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	got.URL = "https://tampered.example.com"
	got.Events[0] = model.EventPublishFailed

	again, err := svc.Get(ctx, reg.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if again.URL != "https://example.com/hook" {
		t.Errorf("stored URL mutated through Get() result: %s", again.URL)
	}
	if again.Events[0] != model.EventVideoCompleted {
		t.Errorf("stored events mutated through Get() result: %v", again.Events)
	}
}

// Manual retries, the scheduled retry pass, and backlog listings can all
// run at once against the same failed-delivery record.
func TestConcurrentRetryAndList(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	if _, err := svc.Register(ctx, srv.URL, []model.EventType{model.EventVideoCompleted}, "secret-12345"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	svc.Trigger(ctx, testEvent("ev-contended", model.EventVideoCompleted))

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			svc.RetryAll(ctx)
		}
	}()
	go func() {
		defer wg.Done()
		asOf := time.Now().UTC()
		for i := 0; i < 20; i++ {
			asOf = asOf.Add(2 * time.Hour)
			svc.RetryPending(ctx, asOf)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			for _, fd := range svc.ListFailed(ctx) {
				_ = len(fd.Attempts)
			}
		}
	}()
	wg.Wait()

	failed := svc.ListFailed(ctx)
	if len(failed) != 1 {
		t.Fatalf("failed records = %d, want 1", len(failed))
	}

	// Listings are copies: mutating one must not touch the stored record.
	failed[0].MaxAttemptsReached = false
	failed[0].Attempts = nil
	again := svc.ListFailed(ctx)
	if len(again) != 1 || len(again[0].Attempts) == 0 {
		t.Errorf("stored record mutated through ListFailed() result: %+v", again)
	}
}
