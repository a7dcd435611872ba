package grant

import (
	"context"
	"fmt"
	"time"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/docstore"
)

type storeRepo struct{ store docstore.Store }

func NewStoreRepo(store docstore.Store) Repository { return &storeRepo{store: store} }

func (r *storeRepo) Get(ctx context.Context, doctorID, patientID string) (*Grant, error) {
	key := Key(doctorID, patientID)
	var g Grant
	if err := r.store.Get(ctx, Collection, key, &g); err != nil {
		if docstore.IsNotFound(err) {
			return nil, fmt.Errorf("grant %s: %w", key, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &g, nil
}

func (r *storeRepo) Save(ctx context.Context, g *Grant) error {
	return r.store.Set(ctx, Collection, g.Reference(), g)
}

func (r *storeRepo) MarkRevoked(ctx context.Context, doctorID, patientID string, at time.Time) error {
	key := Key(doctorID, patientID)
	err := r.store.Update(ctx, Collection, key, map[string]any{
		"status":    StatusRevoked,
		"revokedAt": at,
	})
	if docstore.IsNotFound(err) {
		return fmt.Errorf("grant %s: %w", key, apperr.ErrGrantNotFound)
	}
	return err
}

func (r *storeRepo) listActive(ctx context.Context, field, id string) ([]*Grant, error) {
	snaps, err := r.store.Query(ctx, Collection, docstore.Query{}.
		Where(field, id).
		Where("status", StatusActive))
	if err != nil {
		return nil, err
	}
	out := make([]*Grant, 0, len(snaps))
	for _, s := range snaps {
		var g Grant
		if err := s.DataTo(&g); err != nil {
			return nil, fmt.Errorf("decode grant %s: %w", s.Key(), err)
		}
		out = append(out, &g)
	}
	return out, nil
}

func (r *storeRepo) ListActiveByPatient(ctx context.Context, patientID string) ([]*Grant, error) {
	return r.listActive(ctx, "patientId", patientID)
}

func (r *storeRepo) ListActiveByDoctor(ctx context.Context, doctorID string) ([]*Grant, error) {
	return r.listActive(ctx, "doctorId", doctorID)
}
