package memory

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

type object struct {
	data        []byte
	contentType string
}

type memStorage struct {
	mu      sync.RWMutex
	objects map[string]object
}

// NewStorage creates an in-memory asset storage. Useful for tests and
// local development; contents vanish on restart.
func NewStorage() *memStorage {
	return &memStorage{objects: make(map[string]object)}
}

func (s *memStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: data, contentType: contentType}
	return nil
}

func (s *memStorage) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("asset %s not found", key)
	}
	return "memory://" + key, nil
}

// Get returns the stored object bytes and content type, for tests.
func (s *memStorage) Get(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	return obj.data, obj.contentType, true
}
