package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore maps logical collections to top-level Firestore collections with
// the document key as the document ID.
type Firestore struct {
	client *firestore.Client
}

func NewFirestore(ctx context.Context, projectID string) (*Firestore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Firestore{client: client}, nil
}

func (f *Firestore) Get(ctx context.Context, collection, key string, dst any) error {
	snap, err := f.client.Collection(collection).Doc(key).Get(ctx)
	if err != nil {
		return classifyFirestore("get", err)
	}
	return snap.DataTo(dst)
}

func (f *Firestore) Set(ctx context.Context, collection, key string, doc any) error {
	if _, err := f.client.Collection(collection).Doc(key).Set(ctx, doc); err != nil {
		return classifyFirestore("set", err)
	}
	return nil
}

func (f *Firestore) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	if _, err := f.client.Collection(collection).Doc(key).Update(ctx, firestoreUpdates(fields)); err != nil {
		return classifyFirestore("update", err)
	}
	return nil
}

func (f *Firestore) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	fq := f.client.Collection(collection).Query
	for _, flt := range q.Filters {
		fq = fq.Where(flt.Field, "==", flt.Value)
	}
	dir := firestore.Asc
	if q.Descending {
		dir = firestore.Desc
	}
	fq = fq.OrderBy(firestore.DocumentID, dir)
	if q.StartAfter != "" {
		fq = fq.StartAfter(q.StartAfter)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}

	iter := fq.Documents(ctx)
	defer iter.Stop()

	var out []Snapshot
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, classifyFirestore("query", err)
		}
		out = append(out, firestoreSnapshot{doc: doc})
	}
	return out, nil
}

func (f *Firestore) Close(context.Context) error {
	return f.client.Close()
}

// firestoreUpdates converts a field map into field-path updates in a stable order.
func firestoreUpdates(fields map[string]any) []firestore.Update {
	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	updates := make([]firestore.Update, 0, len(paths))
	for _, p := range paths {
		updates = append(updates, firestore.Update{Path: p, Value: fields[p]})
	}
	return updates
}

func classifyFirestore(op string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return ErrNotFound
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.ResourceExhausted:
		return Unavailable(op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

type firestoreSnapshot struct {
	doc *firestore.DocumentSnapshot
}

func (s firestoreSnapshot) Key() string { return s.doc.Ref.ID }

func (s firestoreSnapshot) DataTo(dst any) error { return s.doc.DataTo(dst) }
