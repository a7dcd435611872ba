package grant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/user"
	"github.com/carelink/carelink/internal/platform/apperr"
)

// -- Mock Repository --

type mockGrantRepo struct {
	grants  map[string]*Grant
	err     error
	gets    int
	saves   int
	revokes int
	lists   int
}

func newMockGrantRepo() *mockGrantRepo {
	return &mockGrantRepo{grants: make(map[string]*Grant)}
}

func (m *mockGrantRepo) calls() int { return m.gets + m.saves + m.revokes + m.lists }

func (m *mockGrantRepo) Get(_ context.Context, doctorID, patientID string) (*Grant, error) {
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	g, ok := m.grants[Key(doctorID, patientID)]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *mockGrantRepo) Save(_ context.Context, g *Grant) error {
	m.saves++
	if m.err != nil {
		return m.err
	}
	cp := *g
	m.grants[g.Reference()] = &cp
	return nil
}

func (m *mockGrantRepo) MarkRevoked(_ context.Context, doctorID, patientID string, at time.Time) error {
	m.revokes++
	g, ok := m.grants[Key(doctorID, patientID)]
	if !ok {
		return apperr.ErrGrantNotFound
	}
	g.Status = StatusRevoked
	g.RevokedAt = &at
	return nil
}

func (m *mockGrantRepo) list(match func(*Grant) bool) []*Grant {
	m.lists++
	var out []*Grant
	for _, g := range m.grants {
		if g.IsActive() && match(g) {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out
}

func (m *mockGrantRepo) ListActiveByPatient(_ context.Context, patientID string) ([]*Grant, error) {
	return m.list(func(g *Grant) bool { return g.PatientID == patientID }), nil
}

func (m *mockGrantRepo) ListActiveByDoctor(_ context.Context, doctorID string) ([]*Grant, error) {
	return m.list(func(g *Grant) bool { return g.DoctorID == doctorID }), nil
}

type fakeDirectory struct {
	doctors map[string]*user.User
	lookups int
}

func (f *fakeDirectory) FindDoctorByCode(_ context.Context, code string) (*user.User, error) {
	f.lookups++
	if d, ok := f.doctors[code]; ok {
		return d, nil
	}
	return nil, apperr.ErrDoctorNotFound
}

func (f *fakeDirectory) GetProfile(_ context.Context, userID string) (*user.User, error) {
	if userID == "U2" {
		return &user.User{ID: "U2", Role: user.RolePatient, DisplayName: "Pat Doe"}, nil
	}
	return nil, apperr.ErrNotFound
}

func newTestService() (*Service, *mockGrantRepo, *fakeDirectory) {
	repo := newMockGrantRepo()
	dir := &fakeDirectory{doctors: map[string]*user.User{
		"DR-BATO-4821": {ID: "U1", Role: user.RoleDoctor, DisplayName: "Dr. Ada", DoctorCode: "DR-BATO-4821"},
		"DR-ZUKE-1000": {ID: "U3", Role: user.RoleDoctor, DisplayName: "Dr. Zed", DoctorCode: "DR-ZUKE-1000"},
	}}
	svc := NewService(repo, dir, dir, zerolog.Nop())
	return svc, repo, dir
}

func TestService_CreateGrant(t *testing.T) {
	svc, repo, _ := newTestService()
	sum, err := svc.CreateGrant(context.Background(), "U2", "DR-BATO-4821")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.DoctorName != "Dr. Ada" || sum.DoctorID != "U1" || sum.Reference != "U1_U2" {
		t.Errorf("unexpected summary %+v", sum)
	}
	if sum.PatientName != "Pat Doe" {
		t.Errorf("expected patient name, got %q", sum.PatientName)
	}
	g := repo.grants["U1_U2"]
	if g == nil || g.Status != StatusActive || g.DoctorCode != "DR-BATO-4821" || g.RevokedAt != nil {
		t.Errorf("unexpected stored grant %+v", g)
	}
}

func TestService_CreateGrant_MalformedCodeTouchesNothing(t *testing.T) {
	svc, repo, dir := newTestService()
	_, err := svc.CreateGrant(context.Background(), "U2", "DR-12-AB")
	if !errors.Is(err, apperr.ErrInvalidCodeFormat) {
		t.Fatalf("expected ErrInvalidCodeFormat, got %v", err)
	}
	if repo.calls() != 0 || dir.lookups != 0 {
		t.Errorf("expected no store calls, got repo=%d directory=%d", repo.calls(), dir.lookups)
	}
}

func TestService_CreateGrant_NormalizesCode(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.CreateGrant(context.Background(), "U2", "  dr-bato-4821 "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestService_CreateGrant_DoctorNotFound(t *testing.T) {
	svc, repo, _ := newTestService()
	_, err := svc.CreateGrant(context.Background(), "U2", "DR-MIXA-9999")
	if !errors.Is(err, apperr.ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
	if repo.saves != 0 {
		t.Error("nothing should be written for an unknown doctor")
	}
}

func TestService_CreateGrant_RejectsUnreferenceableIDs(t *testing.T) {
	svc, repo, dir := newTestService()
	dir.doctors["DR-KAPO-2000"] = &user.User{ID: "U_4", Role: user.RoleDoctor, DoctorCode: "DR-KAPO-2000"}

	if _, err := svc.CreateGrant(context.Background(), "U_2", "DR-BATO-4821"); apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Errorf("patient id with separator: expected invalid input, got %v", err)
	}
	if _, err := svc.CreateGrant(context.Background(), "U2", "DR-KAPO-2000"); apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Errorf("doctor id with separator: expected invalid input, got %v", err)
	}
	if repo.saves != 0 {
		t.Error("no grant should be written")
	}
}

func TestService_CreateGrant_AlreadyShared(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.CreateGrant(ctx, "U2", "DR-BATO-4821"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.CreateGrant(ctx, "U2", "DR-BATO-4821")
	if !errors.Is(err, apperr.ErrAlreadyShared) {
		t.Fatalf("expected ErrAlreadyShared, got %v", err)
	}
	if repo.saves != 1 {
		t.Errorf("expected 1 save, got %d", repo.saves)
	}
}

func TestService_CreateGrant_ReactivatesSameKey(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	if _, err := svc.CreateGrant(ctx, "U2", "DR-BATO-4821"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.RevokeGrant(ctx, "U2", "U1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	later := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return later }
	if _, err := svc.CreateGrant(ctx, "U2", "DR-BATO-4821"); err != nil {
		t.Fatalf("re-share failed: %v", err)
	}
	if len(repo.grants) != 1 {
		t.Fatalf("expected a single grant document, got %d", len(repo.grants))
	}
	g := repo.grants["U1_U2"]
	if !g.IsActive() || g.RevokedAt != nil || !g.CreatedAt.Equal(later) {
		t.Errorf("expected fresh active grant, got %+v", g)
	}
}

func TestService_CreateGrant_StoreUnavailable(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.err = apperr.ErrStoreUnavailable
	_, err := svc.CreateGrant(context.Background(), "U2", "DR-BATO-4821")
	if !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestService_RevokeGrant(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	if err := svc.RevokeGrant(ctx, "U2", "U1"); !errors.Is(err, apperr.ErrGrantNotFound) {
		t.Fatalf("expected ErrGrantNotFound, got %v", err)
	}

	if _, err := svc.CreateGrant(ctx, "U2", "DR-BATO-4821"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.RevokeGrant(ctx, "U2", "U1"); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := svc.RevokeGrant(ctx, "U2", "U1"); err != nil {
		t.Fatalf("second revoke should be a no-op success: %v", err)
	}
	if repo.revokes != 1 {
		t.Errorf("expected one status write, got %d", repo.revokes)
	}
	g := repo.grants["U1_U2"]
	if g.Status != StatusRevoked || g.RevokedAt == nil {
		t.Errorf("expected revoked grant with timestamp, got %+v", g)
	}
}

func TestService_ListGrants(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	if _, err := svc.CreateGrant(ctx, "U2", "DR-BATO-4821"); err != nil {
		t.Fatal(err)
	}
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	if _, err := svc.CreateGrant(ctx, "U2", "DR-ZUKE-1000"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateGrant(ctx, "U4", "DR-BATO-4821"); err != nil {
		t.Fatal(err)
	}

	mine, err := svc.ListGrantsForPatient(ctx, "U2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mine) != 2 || mine[0].DoctorID != "U3" || mine[1].DoctorID != "U1" {
		t.Errorf("expected newest first [U3 U1], got %+v", mine)
	}

	if err := svc.RevokeGrant(ctx, "U2", "U1"); err != nil {
		t.Fatal(err)
	}
	patients, err := svc.ListGrantsForDoctor(ctx, "U1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(patients) != 1 || patients[0].PatientID != "U4" {
		t.Errorf("expected only U4 after revoke, got %+v", patients)
	}
}

func TestService_AuditEventsCarryGrantKey(t *testing.T) {
	var buf bytes.Buffer
	_, repo, dir := newTestService()
	svc := NewService(repo, dir, dir, zerolog.New(&buf))
	ctx := context.Background()

	if _, err := svc.CreateGrant(ctx, "U2", "DR-BATO-4821"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.RevokeGrant(ctx, "U2", "U1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.CreateGrant(ctx, "U2", "DR-BATO-4821"); err != nil {
		t.Fatalf("re-share: %v", err)
	}

	seen := map[string]string{}
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var line map[string]any
		if err := dec.Decode(&line); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		if ev, ok := line["event"].(string); ok {
			key, _ := line["grant_key"].(string)
			seen[ev] = key
		}
	}
	for _, ev := range []string{"grant_created", "grant_revoked", "grant_reactivated"} {
		if seen[ev] != "U1_U2" {
			t.Errorf("%s: expected grant_key U1_U2, got %q", ev, seen[ev])
		}
	}
}
