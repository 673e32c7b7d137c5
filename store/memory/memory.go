// Package memory is an in-process vector store for development and tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/a-h/vectorserver/store"
)

func New() *Store {
	return &Store{
		namespaces: make(map[string]map[string]store.Vector),
	}
}

type Store struct {
	m          sync.RWMutex
	namespaces map[string]map[string]store.Vector
}

func (s *Store) Upsert(ctx context.Context, namespace string, v store.Vector) error {
	s.m.Lock()
	defer s.m.Unlock()
	vectors, ok := s.namespaces[namespace]
	if !ok {
		vectors = make(map[string]store.Vector)
		s.namespaces[namespace] = vectors
	}
	vectors[v.ID] = store.Vector{
		ID:       v.ID,
		Values:   slices.Clone(v.Values),
		Metadata: maps.Clone(v.Metadata),
	}
	return nil
}

func (s *Store) Query(ctx context.Context, args store.QueryArgs) (matches []store.Match, err error) {
	s.m.RLock()
	defer s.m.RUnlock()
	for _, v := range s.namespaces[args.Namespace] {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		score, err := store.Cosine(args.Values, v.Values)
		if err != nil {
			return nil, err
		}
		m := store.Match{
			ID:    v.ID,
			Score: score,
		}
		if args.IncludeMetadata {
			m.Metadata = maps.Clone(v.Metadata)
		}
		matches = append(matches, m)
	}
	return store.TopK(matches, args.TopK), nil
}

// Len returns the number of vectors in the namespace.
func (s *Store) Len(namespace string) int {
	s.m.RLock()
	defer s.m.RUnlock()
	return len(s.namespaces[namespace])
}

var _ store.Store = (*Store)(nil)
