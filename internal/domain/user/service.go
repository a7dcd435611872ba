package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/doctorcode"
	"github.com/carelink/carelink/internal/platform/apperr"
)

const maxDisplayNameLen = 120

// CodeGenerator produces a doctor code that no other doctor holds.
type CodeGenerator interface {
	GenerateUnique(ctx context.Context) (string, error)
}

type Service struct {
	users  Repository
	codes  CodeGenerator
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(users Repository, codes CodeGenerator, logger zerolog.Logger) *Service {
	return &Service{users: users, codes: codes, logger: logger, now: time.Now}
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.New(apperr.KindInvalidInput, "display name is required")
	}
	if len(name) > maxDisplayNameLen {
		return "", apperr.New(apperr.KindInvalidInput, "display name is too long")
	}
	return name, nil
}

// existing returns the stored user or nil when none exists yet.
func (s *Service) existing(ctx context.Context, userID string) (*User, error) {
	u, err := s.users.Get(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// RegisterDoctor creates the caller's doctor profile and assigns a doctor
// code. Registering again returns the stored profile; the code never changes.
func (s *Service) RegisterDoctor(ctx context.Context, userID, displayName string) (*User, error) {
	if userID == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "user id is required")
	}
	name, err := cleanName(displayName)
	if err != nil {
		return nil, err
	}

	u, err := s.existing(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u != nil {
		if !u.IsDoctor() {
			return nil, apperr.New(apperr.KindInvalidInput, "account is registered as a patient")
		}
		if u.DoctorCode != "" {
			return u, nil
		}
	}

	code, err := s.codes.GenerateUnique(ctx)
	if err != nil {
		return nil, fmt.Errorf("assign doctor code: %w", err)
	}

	now := s.now().UTC()
	if u == nil {
		u = &User{ID: userID, Role: RoleDoctor, CreatedAt: now}
	}
	u.DisplayName = name
	u.DoctorCode = code
	u.UpdatedAt = now
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Str("doctor_code", code).Msg("doctor registered")
	return u, nil
}

// RegisterPatient creates the caller's patient profile, or updates the
// display name of an existing one.
func (s *Service) RegisterPatient(ctx context.Context, userID, displayName string) (*User, error) {
	if userID == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "user id is required")
	}
	name, err := cleanName(displayName)
	if err != nil {
		return nil, err
	}

	u, err := s.existing(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if u == nil {
		u = &User{ID: userID, Role: RolePatient, CreatedAt: now}
	} else if !u.IsPatient() {
		return nil, apperr.New(apperr.KindInvalidInput, "account is registered as a doctor")
	}
	u.DisplayName = name
	u.UpdatedAt = now
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*User, error) {
	return s.users.Get(ctx, userID)
}

// FindDoctorByCode normalizes and validates code before any lookup.
func (s *Service) FindDoctorByCode(ctx context.Context, code string) (*User, error) {
	code = doctorcode.Normalize(code)
	if !doctorcode.ValidateFormat(code) {
		return nil, apperr.ErrInvalidCodeFormat
	}
	return s.users.FindDoctorByCode(ctx, code)
}
