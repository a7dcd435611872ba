package grant

import (
	"context"
	"time"
)

type Repository interface {
	// Get returns apperr.ErrNotFound when no grant exists for the pair.
	Get(ctx context.Context, doctorID, patientID string) (*Grant, error)
	Save(ctx context.Context, g *Grant) error
	MarkRevoked(ctx context.Context, doctorID, patientID string, at time.Time) error
	ListActiveByPatient(ctx context.Context, patientID string) ([]*Grant, error)
	ListActiveByDoctor(ctx context.Context, doctorID string) ([]*Grant, error)
}
