package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// JSONFileStore lays records out as <root>/<collection>/<key>.json.
// Writes go through a temp file plus rename so a crash mid-write never
// leaves a truncated document behind.
type JSONFileStore struct {
	root string
	mu   sync.Mutex
}

func NewJSONFileStore(root string) (*JSONFileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("jsonfile: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: create root: %w", err)
	}
	return &JSONFileStore{root: root}, nil
}

func (s *JSONFileStore) Put(ctx context.Context, collection, key string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: marshal %s/%s: %w", collection, key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("jsonfile: create collection dir: %w", err)
	}

	dst := s.path(collection, key)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("jsonfile: write %s/%s: %w", collection, key, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("jsonfile: rename %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *JSONFileStore) Get(ctx context.Context, collection, key string, out any) error {
	s.mu.Lock()
	data, err := os.ReadFile(s.path(collection, key))
	s.mu.Unlock()

	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("jsonfile: read %s/%s: %w", collection, key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("jsonfile: unmarshal %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *JSONFileStore) Delete(ctx context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(collection, key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("jsonfile: delete %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *JSONFileStore) List(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, collection)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("jsonfile: list %s: %w", collection, err)
	}

	out := make(map[string]json.RawMessage, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("jsonfile: read %s/%s: %w", collection, name, err)
		}
		out[strings.TrimSuffix(name, ".json")] = json.RawMessage(data)
	}
	return out, nil
}

func (s *JSONFileStore) Close() error { return nil }

func (s *JSONFileStore) path(collection, key string) string {
	// Keys are uuids or (jobID, channel) pairs; sanitize separators anyway.
	key = strings.ReplaceAll(key, string(os.PathSeparator), "_")
	return filepath.Join(s.root, collection, key+".json")
}
