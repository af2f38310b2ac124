package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

var ErrObjectNotFound = errors.New("object not found")

type storedObject struct {
	contentType string
	content     []byte
}

// Memory is an ObjectStore kept in process memory, for development and tests.
type Memory struct {
	mu      sync.RWMutex
	base    string
	objects map[string]storedObject
}

func NewMemory(publicBase string) *Memory {
	return &Memory{base: publicBase, objects: make(map[string]storedObject)}
}

func (m *Memory) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	m.mu.Lock()
	m.objects[key] = storedObject{contentType: contentType, content: data}
	m.mu.Unlock()

	return publicURL(m.base, "reports", key)
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Has reports whether key is currently stored.
func (m *Memory) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}
