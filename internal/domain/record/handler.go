package record

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/domain/grant"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/pkg/pagination"
)

// Authorizer checks a doctor's share reference.
type Authorizer interface {
	Authorize(ctx context.Context, doctorID, ref string) (*grant.Grant, error)
}

type Handler struct {
	svc   *Service
	guard Authorizer
}

func NewHandler(svc *Service, guard Authorizer) *Handler {
	return &Handler{svc: svc, guard: guard}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/records", h.ListOwnRecords, auth.RequireRole(auth.RolePatient))

	doctor := auth.RequireRole(auth.RoleDoctor)
	api.GET("/shares/:ref/records", h.ListSharedRecords, doctor)
	api.POST("/shares/:ref/records", h.CreateRecord, doctor)
	api.DELETE("/shares/:ref/records/:id", h.DeactivateRecord, doctor)
}

func (h *Handler) list(c echo.Context, patientID string) error {
	p := pagination.FromContext(c, h.svc.Limits())
	includeInactive, _ := strconv.ParseBool(c.QueryParam("include_inactive"))
	page, err := h.svc.ListRecords(c.Request().Context(), patientID, p.Cursor, p.Limit, includeInactive)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(page.Records, page.NextCursor, page.HasMore))
}

func (h *Handler) ListOwnRecords(c echo.Context) error {
	return h.list(c, auth.UserIDFromContext(c.Request().Context()))
}

func (h *Handler) authorize(c echo.Context) (*grant.Grant, error) {
	ctx := c.Request().Context()
	g, err := h.guard.Authorize(ctx, auth.UserIDFromContext(ctx), c.Param("ref"))
	if err != nil {
		return nil, apperr.HTTPError(err)
	}
	return g, nil
}

func (h *Handler) ListSharedRecords(c echo.Context) error {
	g, err := h.authorize(c)
	if err != nil {
		return err
	}
	return h.list(c, g.PatientID)
}

func (h *Handler) CreateRecord(c echo.Context) error {
	g, err := h.authorize(c)
	if err != nil {
		return err
	}
	var in NewRecord
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rec, err := h.svc.CreateRecord(c.Request().Context(), g, in)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) DeactivateRecord(c echo.Context) error {
	g, err := h.authorize(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeactivateRecord(c.Request().Context(), g, c.Param("id")); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
