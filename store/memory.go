package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process DocumentStore for tests and examples. The
// mutex stands in for the backend's atomicity guarantee; it is not a model
// for multi-instance deployments.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]Document
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Document)}
}

// Get implements DocumentStore.
func (s *MemoryStore) Get(_ context.Context, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: doc.ID, Version: doc.Version, Fields: doc.Clone()}, nil
}

// Put implements DocumentStore.
func (s *MemoryStore) Put(_ context.Context, id string, expectedVersion int64, fields map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return 0, ErrNotFound
	}
	if doc.Version != expectedVersion {
		return 0, ErrVersionMismatch
	}

	next := Document{ID: id, Version: doc.Version + 1, Fields: Document{Fields: fields}.Clone()}
	s.docs[id] = next
	return next.Version, nil
}

// Create implements DocumentStore.
func (s *MemoryStore) Create(_ context.Context, id string, fields map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; ok {
		return 0, ErrExists
	}
	s.docs[id] = Document{ID: id, Version: 1, Fields: Document{Fields: fields}.Clone()}
	return 1, nil
}

// MemoryBaseline is an in-process last-valid-auth cell for tests and examples.
type MemoryBaseline struct {
	mu sync.Mutex
	t  *time.Time
}

// NewMemoryBaseline returns an empty baseline cell.
func NewMemoryBaseline() *MemoryBaseline {
	return &MemoryBaseline{}
}

// LastValidAuthMoment returns the stored moment, nil when never written.
func (b *MemoryBaseline) LastValidAuthMoment(context.Context) (*time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.t == nil {
		return nil, nil
	}
	t := *b.t
	return &t, nil
}

// RecordValidAuthMoment stores t.
func (b *MemoryBaseline) RecordValidAuthMoment(_ context.Context, t time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.t = &t
	return nil
}
