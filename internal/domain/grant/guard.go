package grant

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/apperr"
)

// Guard decides whether a doctor may read a patient's data.
type Guard struct {
	grants Repository
	logger zerolog.Logger
}

func NewGuard(grants Repository, logger zerolog.Logger) *Guard {
	return &Guard{grants: grants, logger: logger.With().Str("component", "grant_guard").Logger()}
}

// Authorize returns the active grant addressed by ref if it belongs to
// doctorID. A reference naming another doctor is refused before the store is
// read. A stored grant for a different doctor, or a revoked one, both yield
// apperr.ErrNotAuthorized.
func (g *Guard) Authorize(ctx context.Context, doctorID, ref string) (*Grant, error) {
	refDoctor, patientID, err := ParseReference(ref)
	if err != nil {
		return nil, err
	}
	if doctorID == "" || refDoctor != doctorID {
		g.deny(doctorID, ref, "reference names another doctor")
		return nil, apperr.ErrNotAuthorized
	}

	grant, err := g.grants.Get(ctx, refDoctor, patientID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}

	if grant.DoctorID != doctorID {
		g.deny(doctorID, ref, "stored grant belongs to another doctor")
		return nil, apperr.ErrNotAuthorized
	}
	if !grant.IsActive() {
		g.deny(doctorID, ref, "grant revoked")
		return nil, apperr.ErrNotAuthorized
	}
	return grant, nil
}

func (g *Guard) deny(doctorID, ref, reason string) {
	g.logger.Warn().
		Str("event", "access_denied").
		Str("doctor_id", doctorID).
		Str("reference", ref).
		Str("reason", reason).
		Msg("grant check failed")
}
