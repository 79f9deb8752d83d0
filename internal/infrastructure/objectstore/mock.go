package objectstore

import (
	"context"
	"fmt"
	"sync"
)

// MockStore is an in-memory Store for testing.
type MockStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// Hooks for test assertions
	PutCalled   bool
	LastPutName string

	// Error injection
	PutErr   error
	FetchErr error
}

var _ Store = (*MockStore)(nil)

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{objects: make(map[string][]byte)}
}

// Seed stores data under a URI directly, bypassing Put.
func (m *MockStore) Seed(uri string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[uri] = data
}

func (m *MockStore) Put(_ context.Context, objectName string, _ string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalled = true
	m.LastPutName = objectName
	if m.PutErr != nil {
		return "", m.PutErr
	}
	uri := "gs://mock-bucket/" + objectName
	copied := make([]byte, len(data))
	copy(copied, data)
	m.objects[uri] = copied
	return uri, nil
}

func (m *MockStore) Fetch(_ context.Context, uri string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	data, ok := m.objects[uri]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", uri)
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}
