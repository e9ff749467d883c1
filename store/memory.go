package store

import (
	"context"
	"sync"

	"github.com/Ceapa-git/anidle/core/document"
)

// Memory is an in-process Store. Documents are kept in insertion order.
type Memory struct {
	mu          sync.RWMutex
	collections map[string][]document.Object
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{collections: make(map[string][]document.Object)}
}

// FindOne returns the first document matching filter.
func (m *Memory) FindOne(_ context.Context, collection string, filter document.Object) (document.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, doc := range m.collections[collection] {
		if matches(doc, filter) {
			return clone(doc), nil
		}
	}
	return nil, ErrNotFound
}

// InsertOne stores a copy of doc, adding an _id when it has none.
func (m *Memory) InsertOne(_ context.Context, collection string, doc document.Object) (document.ObjectID, error) {
	stored := clone(doc)
	id, ok := stored["_id"].(document.ObjectID)
	if !ok {
		id = document.NewObjectID()
		stored["_id"] = id
	}

	m.mu.Lock()
	m.collections[collection] = append(m.collections[collection], stored)
	m.mu.Unlock()

	return id, nil
}

// Count returns the number of documents matching filter.
func (m *Memory) Count(_ context.Context, collection string, filter document.Object) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, doc := range m.collections[collection] {
		if matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

// EnsureCollection creates the collection when it does not exist.
func (m *Memory) EnsureCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = nil
	}
	return nil
}

// Collections returns the names of the collections created so far.
func (m *Memory) Collections() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	return names
}

func (m *Memory) Ping(context.Context) error  { return nil }
func (m *Memory) Close(context.Context) error { return nil }

func matches(doc, filter document.Object) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || !document.Equal(got, want) {
			return false
		}
	}
	return true
}

func clone(obj document.Object) document.Object {
	out := make(document.Object, len(obj))
	for k, v := range obj {
		out[k] = cloneDoc(v)
	}
	return out
}

func cloneDoc(doc document.Document) document.Document {
	switch d := doc.(type) {
	case document.Object:
		return clone(d)
	case document.Array:
		out := make(document.Array, len(d))
		for i, v := range d {
			out[i] = cloneDoc(v)
		}
		return out
	default:
		return d
	}
}
