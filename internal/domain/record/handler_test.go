package record

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/domain/grant"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/pkg/pagination"
)

type fakeGuard struct {
	grant *grant.Grant
	calls int
}

func (f *fakeGuard) Authorize(_ context.Context, doctorID, ref string) (*grant.Grant, error) {
	f.calls++
	if f.grant == nil || doctorID != f.grant.DoctorID || ref != f.grant.Reference() {
		return nil, apperr.ErrNotAuthorized
	}
	return f.grant, nil
}

func newTestHandler() (*Handler, *mockRecordRepo, *echo.Echo) {
	svc, repo := newTestService()
	return NewHandler(svc, &fakeGuard{grant: activeGrant()}), repo, echo.New()
}

func newAuthedRequest(method, target, body, userID, role string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req.WithContext(auth.WithIdentity(req.Context(), userID, role))
}

func TestHandler_ListOwnRecords(t *testing.T) {
	h, repo, e := newTestHandler()
	seedFive(repo)

	rec := httptest.NewRecorder()
	c := e.NewContext(newAuthedRequest(http.MethodGet, "/api/v1/records?limit=2", "", "U2", auth.RolePatient), rec)
	if err := h.ListOwnRecords(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var resp pagination.Response[MedicalRecord]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.HasMore || resp.NextCursor == nil {
		t.Errorf("expected more pages, got %s", rec.Body.String())
	}
	if len(resp.Data) != 1 || resp.Data[0].ID != "r5" {
		t.Errorf("expected only active r5 on the first page, got %s", rec.Body.String())
	}
}

func TestHandler_ListSharedRecords(t *testing.T) {
	h, repo, e := newTestHandler()
	seedFive(repo)

	rec := httptest.NewRecorder()
	c := e.NewContext(newAuthedRequest(http.MethodGet, "/?include_inactive=true", "", "U1", auth.RoleDoctor), rec)
	c.SetParamNames("ref")
	c.SetParamValues("U1_U2")
	if err := h.ListSharedRecords(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp pagination.Response[MedicalRecord]
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Data) != 5 || resp.HasMore || resp.NextCursor != nil {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_ListSharedRecords_Forbidden(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(newAuthedRequest(http.MethodGet, "/", "", "U3", auth.RoleDoctor), httptest.NewRecorder())
	c.SetParamNames("ref")
	c.SetParamValues("U1_U2")

	he, ok := h.ListSharedRecords(c).(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", he)
	}
}

func TestHandler_CreateAndDeactivateRecord(t *testing.T) {
	h, repo, e := newTestHandler()

	body := `{"diagnosis":"Flu","symptoms":["fever"],"visit_date":"2026-03-03T10:00:00Z"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(newAuthedRequest(http.MethodPost, "/", body, "U1", auth.RoleDoctor), rec)
	c.SetParamNames("ref")
	c.SetParamValues("U1_U2")
	if err := h.CreateRecord(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var created MedicalRecord
	json.Unmarshal(rec.Body.Bytes(), &created)
	if created.ID == "" || created.VisitDate == nil || created.PatientID != "U2" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(newAuthedRequest(http.MethodDelete, "/", "", "U1", auth.RoleDoctor), rec)
	c.SetParamNames("ref", "id")
	c.SetParamValues("U1_U2", created.ID)
	if err := h.DeactivateRecord(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if repo.records[created.ID].IsActive {
		t.Error("record still active")
	}
}

func TestHandler_CreateRecord_Invalid(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(newAuthedRequest(http.MethodPost, "/", `{"symptoms":["fever"]}`, "U1", auth.RoleDoctor), httptest.NewRecorder())
	c.SetParamNames("ref")
	c.SetParamValues("U1_U2")

	he, ok := h.CreateRecord(c).(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", he)
	}
}
