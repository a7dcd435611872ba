package grant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/doctorcode"
	"github.com/carelink/carelink/internal/domain/user"
	"github.com/carelink/carelink/internal/platform/apperr"
)

// DoctorDirectory resolves a doctor code to the doctor holding it.
type DoctorDirectory interface {
	FindDoctorByCode(ctx context.Context, code string) (*user.User, error)
}

// ProfileReader loads user profiles.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*user.User, error)
}

// Service is the access grant ledger.
type Service struct {
	grants   Repository
	doctors  DoctorDirectory
	profiles ProfileReader
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(grants Repository, doctors DoctorDirectory, profiles ProfileReader, logger zerolog.Logger) *Service {
	return &Service{
		grants:   grants,
		doctors:  doctors,
		profiles: profiles,
		logger:   logger.With().Str("component", "grant_ledger").Logger(),
		now:      time.Now,
	}
}

// CreateGrant shares patientID's profile with the doctor holding code. The
// code format is checked before anything is read from the store. A revoked
// grant for the same pair is reactivated in place.
func (s *Service) CreateGrant(ctx context.Context, patientID, code string) (*Summary, error) {
	code = doctorcode.Normalize(code)
	if !doctorcode.ValidateFormat(code) {
		return nil, apperr.ErrInvalidCodeFormat
	}
	if patientID == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "patient id is required")
	}
	if !referenceable(patientID) {
		return nil, apperr.New(apperr.KindInvalidInput, "patient id cannot contain "+keySeparator)
	}

	doctor, err := s.doctors.FindDoctorByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !referenceable(doctor.ID) {
		return nil, apperr.New(apperr.KindInvalidInput, "doctor id cannot be used in a share reference")
	}

	existing, err := s.grants.Get(ctx, doctor.ID, patientID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.IsActive() {
		return nil, apperr.ErrAlreadyShared
	}

	g := &Grant{
		PatientID:   patientID,
		DoctorID:    doctor.ID,
		DoctorCode:  code,
		DoctorName:  doctor.DisplayName,
		PatientName: s.patientName(ctx, patientID),
		Status:      StatusActive,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.grants.Save(ctx, g); err != nil {
		return nil, fmt.Errorf("save grant: %w", err)
	}

	event := "grant_created"
	if existing != nil {
		event = "grant_reactivated"
	}
	s.logger.Info().
		Str("event", event).
		Str("grant_key", g.Reference()).
		Str("patient_id", patientID).
		Str("doctor_id", doctor.ID).
		Str("doctor_code", code).
		Msg("profile shared")

	sum := g.Summary()
	return &sum, nil
}

// patientName is a display nicety; a missing profile leaves it blank.
func (s *Service) patientName(ctx context.Context, patientID string) string {
	if s.profiles == nil {
		return ""
	}
	p, err := s.profiles.GetProfile(ctx, patientID)
	if err != nil {
		s.logger.Debug().Err(err).Str("patient_id", patientID).Msg("patient profile unavailable for grant")
		return ""
	}
	return p.DisplayName
}

// ListGrantsForPatient returns the patient's active grants, newest first.
func (s *Service) ListGrantsForPatient(ctx context.Context, patientID string) ([]Summary, error) {
	grants, err := s.grants.ListActiveByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return summaries(grants), nil
}

// ListGrantsForDoctor returns the patients actively sharing with doctorID, newest first.
func (s *Service) ListGrantsForDoctor(ctx context.Context, doctorID string) ([]Summary, error) {
	grants, err := s.grants.ListActiveByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return summaries(grants), nil
}

func summaries(grants []*Grant) []Summary {
	sort.SliceStable(grants, func(i, j int) bool {
		return grants[i].CreatedAt.After(grants[j].CreatedAt)
	})
	out := make([]Summary, 0, len(grants))
	for _, g := range grants {
		out = append(out, g.Summary())
	}
	return out
}

// RevokeGrant revokes the grant between patientID and doctorID. Revoking an
// already revoked grant succeeds without writing.
func (s *Service) RevokeGrant(ctx context.Context, patientID, doctorID string) error {
	g, err := s.grants.Get(ctx, doctorID, patientID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.ErrGrantNotFound
	}
	if err != nil {
		return err
	}
	if !g.IsActive() {
		return nil
	}
	if err := s.grants.MarkRevoked(ctx, doctorID, patientID, s.now().UTC()); err != nil {
		return fmt.Errorf("revoke grant: %w", err)
	}
	s.logger.Info().
		Str("event", "grant_revoked").
		Str("grant_key", g.Reference()).
		Str("patient_id", patientID).
		Str("doctor_id", doctorID).
		Msg("profile share revoked")
	return nil
}
