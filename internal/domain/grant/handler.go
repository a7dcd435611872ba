package grant

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
)

type Handler struct {
	svc      *Service
	guard    *Guard
	profiles ProfileReader
}

func NewHandler(svc *Service, guard *Guard, profiles ProfileReader) *Handler {
	return &Handler{svc: svc, guard: guard, profiles: profiles}
}

// RegisterRoutes mounts the grant endpoints. shareLimit runs only on share
// creation, where a caller could otherwise probe doctor codes.
func (h *Handler) RegisterRoutes(api *echo.Group, shareLimit ...echo.MiddlewareFunc) {
	patient := auth.RequireRole(auth.RolePatient)
	doctor := auth.RequireRole(auth.RoleDoctor)

	api.POST("/grants", h.CreateGrant, append([]echo.MiddlewareFunc{patient}, shareLimit...)...)
	api.DELETE("/grants/:doctorId", h.RevokeGrant, patient)
	api.GET("/grants", h.ListGrants, auth.RequireRole(auth.RolePatient, auth.RoleDoctor))

	api.DELETE("/shares/:ref", h.RevokeShare, doctor)
	api.GET("/shares/:ref/profile", h.GetSharedProfile, doctor)
}

type createGrantRequest struct {
	DoctorCode string `json:"doctor_code"`
}

type listResponse struct {
	Data  []Summary `json:"data"`
	Total int       `json:"total"`
}

func (h *Handler) CreateGrant(c echo.Context) error {
	var req createGrantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	sum, err := h.svc.CreateGrant(ctx, auth.UserIDFromContext(ctx), req.DoctorCode)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, sum)
}

func (h *Handler) ListGrants(c echo.Context) error {
	ctx := c.Request().Context()
	uid := auth.UserIDFromContext(ctx)

	var (
		items []Summary
		err   error
	)
	if auth.RoleFromContext(ctx) == auth.RoleDoctor {
		items, err = h.svc.ListGrantsForDoctor(ctx, uid)
	} else {
		items, err = h.svc.ListGrantsForPatient(ctx, uid)
	}
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, listResponse{Data: items, Total: len(items)})
}

func (h *Handler) RevokeGrant(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.svc.RevokeGrant(ctx, auth.UserIDFromContext(ctx), c.Param("doctorId")); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RevokeShare lets a doctor drop a patient who shared with them.
func (h *Handler) RevokeShare(c echo.Context) error {
	ctx := c.Request().Context()
	g, err := h.guard.Authorize(ctx, auth.UserIDFromContext(ctx), c.Param("ref"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	if err := h.svc.RevokeGrant(ctx, g.PatientID, g.DoctorID); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetSharedProfile(c echo.Context) error {
	ctx := c.Request().Context()
	g, err := h.guard.Authorize(ctx, auth.UserIDFromContext(ctx), c.Param("ref"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	p, err := h.profiles.GetProfile(ctx, g.PatientID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}
