package blob

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/campusvault/internal/common"
)

// MemoryStore keeps blobs in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// PutErr, when set, fails every Put.
	PutErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}}
}

func (m *MemoryStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if m.PutErr != nil {
		return "", m.PutErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	return key, nil
}

func (m *MemoryStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

func (m *MemoryStore) PresignGet(_ context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; !ok {
		return "", common.ErrorNotFound
	}
	return "memory://" + path, nil
}

// Has reports whether path is stored.
func (m *MemoryStore) Has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
