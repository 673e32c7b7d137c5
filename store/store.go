// Package store defines the vector store used by the HTTP handlers, and
// the helpers shared by the local implementations.
package store

import (
	"context"
	"errors"
)

// Vector is a single embedding and the metadata stored alongside it.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

type QueryArgs struct {
	// Namespace partitions the index. The empty string is the default namespace.
	Namespace       string
	Values          []float32
	TopK            int
	IncludeMetadata bool
}

// Match is a query result. Higher scores are more similar.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

type Store interface {
	// Upsert inserts the vector, or replaces an existing vector with the same ID
	// in the namespace.
	Upsert(ctx context.Context, namespace string, v Vector) error
	// Query returns at most args.TopK matches in ranked order.
	Query(ctx context.Context, args QueryArgs) ([]Match, error)
}

var ErrDimensionMismatch = errors.New("store: dimension mismatch")
