package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/a-h/vectorserver/store"
	"github.com/rqlite/gorqlite"
)

func New(conn *gorqlite.Connection) *Queries {
	return &Queries{
		conn: conn,
		now:  time.Now,
	}
}

// Queries stores vectors in rqlite. Similarity is computed with the
// sqlite-vec extension, which must be loaded by the rqlite server.
type Queries struct {
	conn *gorqlite.Connection
	now  func() time.Time
}

type VectorID struct {
	Namespace string
	ID        string
}

func (v VectorID) String() string {
	return fmt.Sprintf("%s:%s", v.Namespace, v.ID)
}

func (q *Queries) Upsert(ctx context.Context, namespace string, v store.Vector) (err error) {
	metadataJSON, err := json.Marshal(v.Metadata)
	if err != nil {
		return fmt.Errorf("db: failed to marshal metadata: %w", err)
	}
	embeddingJSON, err := json.Marshal(v.Values)
	if err != nil {
		return fmt.Errorf("db: failed to marshal embedding: %w", err)
	}
	now := q.now().UTC()
	stmt := gorqlite.ParameterizedStatement{
		Query: `insert into vector (namespace, id, metadata, embedding, created_at, last_updated_at)
values (?, ?, ?, ?, ?, ?)
on conflict(namespace, id) do update
set
    metadata = excluded.metadata,
    embedding = excluded.embedding,
    last_updated_at = excluded.last_updated_at
`,
		Arguments: []any{namespace, v.ID, string(metadataJSON), string(embeddingJSON), now, now},
	}
	if _, err = q.conn.WriteOneParameterizedContext(ctx, stmt); err != nil {
		return fmt.Errorf("db: upsert %s failed: %w", VectorID{Namespace: namespace, ID: v.ID}, err)
	}
	return nil
}

func (q *Queries) Query(ctx context.Context, args store.QueryArgs) (matches []store.Match, err error) {
	inputEmbeddingJSON, err := json.Marshal(args.Values)
	if err != nil {
		return nil, fmt.Errorf("db: failed to marshal input embedding: %w", err)
	}
	stmt := gorqlite.ParameterizedStatement{
		Query: `select
  id,
  metadata,
  1.0 - vec_distance_cosine(embedding, ?) as score
from vector
where namespace = ?
order by score desc, id asc
limit ?`,
		Arguments: []any{string(inputEmbeddingJSON), args.Namespace, args.TopK},
	}
	result, err := q.conn.QueryOneParameterizedContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("db: query failed: %w", err)
	}
	for result.Next() {
		var m store.Match
		var metadataJSON string
		if err = result.Scan(&m.ID, &metadataJSON, &m.Score); err != nil {
			return nil, fmt.Errorf("db: scan failed: %w", err)
		}
		if args.IncludeMetadata {
			if err = json.Unmarshal([]byte(metadataJSON), &m.Metadata); err != nil {
				return nil, fmt.Errorf("db: failed to unmarshal metadata of %q: %w", m.ID, err)
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

var _ store.Store = (*Queries)(nil)
