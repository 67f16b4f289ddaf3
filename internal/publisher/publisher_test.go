package publisher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"storyreel/internal/orchestrator"
	"storyreel/internal/ports"
	"storyreel/internal/recordstore"
	"storyreel/internal/workflow"
)

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (m *memStorage) Provider() string { return "mem" }

func (m *memStorage) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Reader)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	m.mu.Lock()
	m.objects[in.ObjectKey] = data
	m.mu.Unlock()
	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: int64(len(data))}, nil
}

func (m *memStorage) GetObject(ctx context.Context, key string) (io.ReadCloser, string, int64, error) {
	m.mu.Lock()
	data, ok := m.objects[key]
	m.mu.Unlock()
	if !ok {
		return nil, "", 0, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), "video/mp4", int64(len(data)), nil
}

func (m *memStorage) DeleteObject(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *memStorage) ExistsObject(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	_, ok := m.objects[key]
	m.mu.Unlock()
	return ok, nil
}

func newTestPublisher(t *testing.T) (*Publisher, *workflow.Tracker, *memStorage) {
	t.Helper()

	store, err := recordstore.NewJSONFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONFileStore() error = %v", err)
	}
	tracker, err := workflow.NewTracker(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("NewTracker() error = %v", err)
	}
	storage := newMemStorage()
	return New(Deps{Tracker: tracker, Storage: storage}), tracker, storage
}

func TestPublishCopiesArtifactToChannel(t *testing.T) {
	pub, tracker, storage := newTestPublisher(t)
	ctx := context.Background()

	storage.objects[orchestrator.ArtifactKey("job-1")] = []byte("mp4-data")

	rec, err := pub.Publish(ctx, "job-1", "youtube")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if rec.State != workflow.PublishUploaded {
		t.Errorf("state = %s, want %s", rec.State, workflow.PublishUploaded)
	}

	got, ok := storage.objects[ChannelKey("youtube", "job-1")]
	if !ok {
		t.Fatal("artifact not copied to channel key")
	}
	if string(got) != "mp4-data" {
		t.Errorf("channel object = %q", got)
	}

	// Tracker agrees.
	stored, err := tracker.GetPublish(ctx, "job-1", "youtube")
	if err != nil {
		t.Fatalf("GetPublish() error = %v", err)
	}
	if stored.State != workflow.PublishUploaded {
		t.Errorf("stored state = %s, want UPLOADED", stored.State)
	}
}

func TestPublishMissingArtifactFails(t *testing.T) {
	pub, tracker, _ := newTestPublisher(t)
	ctx := context.Background()

	if _, err := pub.Publish(ctx, "job-x", "youtube"); err == nil {
		t.Fatal("Publish() of a missing artifact should fail")
	}

	rec, err := tracker.GetPublish(ctx, "job-x", "youtube")
	if err != nil {
		t.Fatalf("GetPublish() error = %v", err)
	}
	if rec.State != workflow.PublishFailed {
		t.Errorf("state = %s, want %s", rec.State, workflow.PublishFailed)
	}
	if rec.Error == "" {
		t.Error("failed record has no error")
	}
}

func TestPublishSameChannelTwiceRejected(t *testing.T) {
	pub, _, storage := newTestPublisher(t)
	ctx := context.Background()

	storage.objects[orchestrator.ArtifactKey("job-1")] = []byte("mp4-data")

	if _, err := pub.Publish(ctx, "job-1", "youtube"); err != nil {
		t.Fatalf("first Publish() error = %v", err)
	}
	if _, err := pub.Publish(ctx, "job-1", "youtube"); err == nil {
		t.Error("second Publish() to the same channel should fail")
	}
	// A different channel is fine.
	if _, err := pub.Publish(ctx, "job-1", "tiktok"); err != nil {
		t.Errorf("Publish() to another channel error = %v", err)
	}
}
