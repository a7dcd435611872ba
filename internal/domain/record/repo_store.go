package record

import (
	"context"
	"fmt"
	"time"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/docstore"
)

type storeRepo struct{ store docstore.Store }

func NewStoreRepo(store docstore.Store) Repository { return &storeRepo{store: store} }

// ListByPatient filters only on patientId. isActive is left to the caller so
// the raw page size stays observable.
func (r *storeRepo) ListByPatient(ctx context.Context, patientID string, limit int, after string) ([]*MedicalRecord, error) {
	q := docstore.Query{Limit: limit, StartAfter: after, Descending: true}.Where("patientId", patientID)
	snaps, err := r.store.Query(ctx, Collection, q)
	if err != nil {
		return nil, err
	}
	out := make([]*MedicalRecord, 0, len(snaps))
	for _, s := range snaps {
		var rec MedicalRecord
		if err := s.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", s.Key(), err)
		}
		rec.ID = s.Key()
		out = append(out, &rec)
	}
	return out, nil
}

func (r *storeRepo) Get(ctx context.Context, id string) (*MedicalRecord, error) {
	var rec MedicalRecord
	if err := r.store.Get(ctx, Collection, id, &rec); err != nil {
		if docstore.IsNotFound(err) {
			return nil, fmt.Errorf("record %s: %w", id, apperr.ErrNotFound)
		}
		return nil, err
	}
	rec.ID = id
	return &rec, nil
}

func (r *storeRepo) Save(ctx context.Context, rec *MedicalRecord) error {
	return r.store.Set(ctx, Collection, rec.ID, rec)
}

func (r *storeRepo) Deactivate(ctx context.Context, id string, at time.Time) error {
	err := r.store.Update(ctx, Collection, id, map[string]any{
		"isActive":      false,
		"deactivatedAt": at,
	})
	if docstore.IsNotFound(err) {
		return fmt.Errorf("record %s: %w", id, apperr.ErrNotFound)
	}
	return err
}
