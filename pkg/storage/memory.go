package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStorage keeps uploaded objects in process. It backs the memory store
// driver and tests.
type MemoryStorage struct {
	mu      sync.Mutex
	baseURL string
	objects map[string][]byte

	// FailDelete makes Delete return an error, for exercising post-commit failures.
	FailDelete bool
}

func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{
		baseURL: baseURL,
		objects: make(map[string][]byte),
	}
}

func (s *MemoryStorage) Upload(ctx context.Context, r io.Reader, key, mimetype string) (string, error) {
	if _, err := ResourceType(mimetype); err != nil {
		return "", err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data

	return s.baseURL + "/" + key, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, key, mimetype string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailDelete {
		return fmt.Errorf("storage unavailable")
	}
	delete(s.objects, key)
	return nil
}

// Has reports whether an object is stored under key.
func (s *MemoryStorage) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}
