package toggle

import (
	"context"
	"sync"

	"github.com/vidtube/backend/internal/models"
)

type edgeKey struct {
	subject string
	object  string
	kind    models.EdgeKind
}

// MemoryStore is a Store backed by a mutex-guarded map.
type MemoryStore struct {
	mu    sync.Mutex
	edges map[edgeKey]models.Edge
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{edges: make(map[edgeKey]models.Edge)}
}

// Insert writes the edge unless present.
func (s *MemoryStore) Insert(_ context.Context, edge models.Edge) (bool, error) {
	key := edgeKey{subject: edge.SubjectID, object: edge.ObjectID, kind: edge.Kind}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.edges[key]; ok {
		return false, nil
	}
	s.edges[key] = edge
	return true, nil
}

// Delete removes the edge if present.
func (s *MemoryStore) Delete(_ context.Context, subjectID, objectID string, kind models.EdgeKind) (bool, error) {
	key := edgeKey{subject: subjectID, object: objectID, kind: kind}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.edges[key]; !ok {
		return false, nil
	}
	delete(s.edges, key)
	return true, nil
}

// Has reports whether the edge exists.
func (s *MemoryStore) Has(subjectID, objectID string, kind models.EdgeKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.edges[edgeKey{subject: subjectID, object: objectID, kind: kind}]
	return ok
}

// Len returns the number of stored edges.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.edges)
}
