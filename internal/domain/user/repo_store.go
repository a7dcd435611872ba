package user

import (
	"context"
	"fmt"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/docstore"
)

type storeRepo struct{ store docstore.Store }

func NewStoreRepo(store docstore.Store) Repository { return &storeRepo{store: store} }

func (r *storeRepo) Get(ctx context.Context, userID string) (*User, error) {
	var u User
	if err := r.store.Get(ctx, Collection, userID, &u); err != nil {
		if docstore.IsNotFound(err) {
			return nil, fmt.Errorf("user %s: %w", userID, apperr.ErrNotFound)
		}
		return nil, err
	}
	if u.ID == "" {
		u.ID = userID
	}
	return &u, nil
}

func (r *storeRepo) Save(ctx context.Context, u *User) error {
	return r.store.Set(ctx, Collection, u.ID, u)
}

func (r *storeRepo) doctorsWithCode(ctx context.Context, code string, limit int) ([]docstore.Snapshot, error) {
	q := docstore.Query{Limit: limit}.
		Where("doctorCode", code).
		Where("role", RoleDoctor)
	return r.store.Query(ctx, Collection, q)
}

// FindDoctorByCode resolves a doctor code to the doctor holding it.
func (r *storeRepo) FindDoctorByCode(ctx context.Context, code string) (*User, error) {
	snaps, err := r.doctorsWithCode(ctx, code, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, apperr.ErrDoctorNotFound
	}
	var u User
	if err := snaps[0].DataTo(&u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", snaps[0].Key(), err)
	}
	if u.ID == "" {
		u.ID = snaps[0].Key()
	}
	return &u, nil
}

func (r *storeRepo) DoctorCodeExists(ctx context.Context, code string) (bool, error) {
	snaps, err := r.doctorsWithCode(ctx, code, 1)
	if err != nil {
		return false, err
	}
	return len(snaps) > 0, nil
}
