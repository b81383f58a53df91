package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/personaldrive/semidx/internal/semerr"
)

// MemoryStore is an in-memory Store for tests and local development. Presigned
// URLs are fake but stable; Put seeds content directly.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Put stores content under key. Tests use this in place of a real client PUT.
func (m *MemoryStore) Put(key string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), content...)
}

// PresignPut returns a fake upload URL.
func (m *MemoryStore) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("memory://upload/%s?expires=%d", key, int(expiry.Seconds())), nil
}

// PresignGet returns a fake download URL. The key must exist.
func (m *MemoryStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return "", semerr.Newf(semerr.KindNotFound, "object not found: %s", key)
	}
	return fmt.Sprintf("memory://download/%s?expires=%d", key, int(expiry.Seconds())), nil
}

// Download returns the stored content.
func (m *MemoryStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.objects[key]
	if !ok {
		return nil, semerr.Newf(semerr.KindNotFound, "object not found: %s", key)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

// Delete removes the object if present.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Len reports the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
