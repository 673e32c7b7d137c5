// Package sqlite is an embedded vector store using the pure Go SQLite driver.
// Similarity is computed by scanning every vector in the namespace.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/a-h/vectorserver/store"
	_ "modernc.org/sqlite"
)

const schema = `create table if not exists vector (
  namespace text not null,
  id text not null,
  metadata text not null,
  embedding blob not null,
  last_updated_at text not null,
  primary key (namespace, id)
);`

// Open opens, or creates, the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New creates the schema in db if required.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("sqlite: create schema failed: %w", err)
	}
	return &Store{
		db:  db,
		now: time.Now,
	}, nil
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Upsert(ctx context.Context, namespace string, v store.Vector) error {
	metadataJSON, err := json.Marshal(v.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `insert into vector (namespace, id, metadata, embedding, last_updated_at)
values (?, ?, ?, ?, ?)
on conflict(namespace, id) do update
set
    metadata = excluded.metadata,
    embedding = excluded.embedding,
    last_updated_at = excluded.last_updated_at`,
		namespace, v.ID, string(metadataJSON), store.EncodeEmbedding(v.Values), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite: upsert failed: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, args store.QueryArgs) (matches []store.Match, err error) {
	rows, err := s.db.QueryContext(ctx, `select id, metadata, embedding from vector where namespace = ?`, args.Namespace)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query failed: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, metadataJSON string
		var embedding []byte
		if err = rows.Scan(&id, &metadataJSON, &embedding); err != nil {
			return nil, fmt.Errorf("sqlite: scan failed: %w", err)
		}
		values, err := store.DecodeEmbedding(embedding)
		if err != nil {
			return nil, err
		}
		score, err := store.Cosine(args.Values, values)
		if err != nil {
			return nil, fmt.Errorf("sqlite: vector %q: %w", id, err)
		}
		m := store.Match{ID: id, Score: score}
		if args.IncludeMetadata {
			if err = json.Unmarshal([]byte(metadataJSON), &m.Metadata); err != nil {
				return nil, fmt.Errorf("sqlite: failed to unmarshal metadata of %q: %w", id, err)
			}
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: query failed: %w", err)
	}
	return store.TopK(matches, args.TopK), nil
}

var _ store.Store = (*Store)(nil)
