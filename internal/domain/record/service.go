package record

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/grant"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/pkg/pagination"
)

// Page is one page of a patient's records.
//
// HasMore reports whether the store returned a full raw page. Inactive
// records are filtered after the store limit, so a page may hold fewer than
// the requested size, or nothing at all, while HasMore is still true.
type Page struct {
	Records    []*MedicalRecord
	NextCursor string
	HasMore    bool
}

type Service struct {
	records Repository
	limits  pagination.Limits
	logger  zerolog.Logger
	now     func() time.Time
	newID   func() (uuid.UUID, error)
}

func NewService(records Repository, limits pagination.Limits, logger zerolog.Logger) *Service {
	return &Service{
		records: records,
		limits:  limits,
		logger:  logger.With().Str("component", "records").Logger(),
		now:     time.Now,
		newID:   uuid.NewV7,
	}
}

// Limits is the page size policy used by ListRecords.
func (s *Service) Limits() pagination.Limits { return s.limits }

func (s *Service) pageSize(n int) int {
	def, max := s.limits.Default, s.limits.Max
	if def <= 0 {
		def = pagination.DefaultLimit
	}
	if max <= 0 {
		max = pagination.MaxLimit
	}
	if n <= 0 {
		n = def
	}
	if n > max {
		n = max
	}
	return n
}

// ListRecords returns one page of patientID's records. Within the page,
// records are ordered by visit date, newest first; across pages the order
// follows record creation.
func (s *Service) ListRecords(ctx context.Context, patientID, cursor string, pageSize int, includeInactive bool) (*Page, error) {
	if patientID == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "patient id is required")
	}
	after, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, apperr.New(apperr.KindInvalidInput, "invalid cursor")
	}
	size := s.pageSize(pageSize)

	raw, err := s.records.ListByPatient(ctx, patientID, size, after)
	if err != nil {
		return nil, err
	}

	page := &Page{HasMore: len(raw) == size, Records: make([]*MedicalRecord, 0, len(raw))}
	if page.HasMore {
		page.NextCursor = pagination.EncodeCursor(raw[len(raw)-1].ID)
	}
	for _, r := range raw {
		if r.IsActive || includeInactive {
			page.Records = append(page.Records, r)
		}
	}
	sort.SliceStable(page.Records, func(i, j int) bool {
		return page.Records[i].SortTime().After(page.Records[j].SortTime())
	})
	return page, nil
}

// CreateRecord writes a record for the patient of g, authored by g's doctor.
// g must come from the authorization guard.
func (s *Service) CreateRecord(ctx context.Context, g *grant.Grant, in NewRecord) (*MedicalRecord, error) {
	if g == nil || !g.IsActive() {
		return nil, apperr.ErrNotAuthorized
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("record id: %w", err)
	}

	rec := &MedicalRecord{
		ID:              id.String(),
		PatientID:       g.PatientID,
		DoctorID:        g.DoctorID,
		DoctorName:      g.DoctorName,
		VisitDate:       in.VisitDate,
		Diagnosis:       in.Diagnosis,
		Symptoms:        in.Symptoms,
		Medicines:       in.Medicines,
		PrescribedTests: in.PrescribedTests,
		FollowUpNotes:   in.FollowUpNotes,
		CreatedAt:       s.now().UTC(),
		IsActive:        true,
	}
	if err := s.records.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}
	s.logger.Info().
		Str("event", "record_created").
		Str("record_id", rec.ID).
		Str("patient_id", rec.PatientID).
		Str("doctor_id", rec.DoctorID).
		Msg("medical record created")
	return rec, nil
}

// DeactivateRecord soft deletes a record of g's patient that g's doctor
// wrote. Deactivating an inactive record is a no-op.
func (s *Service) DeactivateRecord(ctx context.Context, g *grant.Grant, recordID string) error {
	if g == nil || !g.IsActive() {
		return apperr.ErrNotAuthorized
	}
	rec, err := s.records.Get(ctx, recordID)
	if err != nil {
		return err
	}
	if rec.PatientID != g.PatientID {
		return fmt.Errorf("record %s: %w", recordID, apperr.ErrNotFound)
	}
	if rec.DoctorID != g.DoctorID {
		return apperr.New(apperr.KindNotAuthorized, "only the authoring doctor can remove a record")
	}
	if !rec.IsActive {
		return nil
	}
	if err := s.records.Deactivate(ctx, recordID, s.now().UTC()); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return fmt.Errorf("deactivate record: %w", err)
	}
	s.logger.Info().
		Str("event", "record_deactivated").
		Str("record_id", recordID).
		Str("doctor_id", g.DoctorID).
		Msg("medical record deactivated")
	return nil
}
