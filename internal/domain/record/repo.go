package record

import (
	"context"
	"time"
)

type Repository interface {
	// ListByPatient returns at most limit records of patientID, newest key
	// first, starting after the record with key after.
	ListByPatient(ctx context.Context, patientID string, limit int, after string) ([]*MedicalRecord, error)
	Get(ctx context.Context, id string) (*MedicalRecord, error)
	Save(ctx context.Context, r *MedicalRecord) error
	Deactivate(ctx context.Context, id string, at time.Time) error
}
