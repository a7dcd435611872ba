// Package docstore is a small document-store abstraction with interchangeable
// backends (PostgreSQL JSONB, MongoDB, Firestore and an in-memory store).
//
// Documents are addressed by (collection, key). Structs stored through a Store
// must carry identical json, bson and firestore tags so every backend sees the
// same field names; query filters refer to those names.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carelink/carelink/internal/platform/apperr"
)

// ErrNotFound is returned by Get and Update when no document exists at the key.
var ErrNotFound = errors.New("docstore: document not found")

// Filter is an equality predicate on a top-level document field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents of one collection. Results are ordered by document
// key, ascending unless Descending is set. StartAfter is the key of the last
// document of the previous page. Limit <= 0 means no limit.
type Query struct {
	Filters    []Filter
	Limit      int
	StartAfter string
	Descending bool
}

// Where appends an equality filter and returns the query for chaining.
func (q Query) Where(field string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Value: value})
	return q
}

// Snapshot is one document returned by a query.
type Snapshot interface {
	Key() string
	DataTo(dst any) error
}

// Store is the document store consumed by the domain repositories.
type Store interface {
	Get(ctx context.Context, collection, key string, dst any) error
	Set(ctx context.Context, collection, key string, doc any) error
	Update(ctx context.Context, collection, key string, fields map[string]any) error
	Query(ctx context.Context, collection string, q Query) ([]Snapshot, error)
	Close(ctx context.Context) error
}

// Unavailable wraps a backend failure as apperr.ErrStoreUnavailable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, apperr.ErrStoreUnavailable, err)
}

// IsNotFound reports whether err means the document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// WithTimeout bounds every store call by d. A call that exceeds the deadline
// fails with apperr.ErrStoreUnavailable instead of blocking the request.
func WithTimeout(s Store, d time.Duration) Store {
	if d <= 0 {
		return s
	}
	return &timeoutStore{next: s, timeout: d}
}

type timeoutStore struct {
	next    Store
	timeout time.Duration
}

func (t *timeoutStore) bound(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	err := fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, apperr.ErrStoreUnavailable) {
		return Unavailable(op, err)
	}
	return err
}

func (t *timeoutStore) Get(ctx context.Context, collection, key string, dst any) error {
	return t.bound(ctx, "get", func(ctx context.Context) error {
		return t.next.Get(ctx, collection, key, dst)
	})
}

func (t *timeoutStore) Set(ctx context.Context, collection, key string, doc any) error {
	return t.bound(ctx, "set", func(ctx context.Context) error {
		return t.next.Set(ctx, collection, key, doc)
	})
}

func (t *timeoutStore) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	return t.bound(ctx, "update", func(ctx context.Context) error {
		return t.next.Update(ctx, collection, key, fields)
	})
}

func (t *timeoutStore) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	var out []Snapshot
	err := t.bound(ctx, "query", func(ctx context.Context) error {
		var err error
		out, err = t.next.Query(ctx, collection, q)
		return err
	})
	return out, err
}

func (t *timeoutStore) Close(ctx context.Context) error {
	return t.next.Close(ctx)
}
