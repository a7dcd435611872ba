package user

import "context"

type Repository interface {
	Get(ctx context.Context, userID string) (*User, error)
	Save(ctx context.Context, u *User) error
	FindDoctorByCode(ctx context.Context, code string) (*User, error)
	DoctorCodeExists(ctx context.Context, code string) (bool, error)
}
