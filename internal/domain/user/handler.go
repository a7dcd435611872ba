package user

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/doctors", h.RegisterDoctor, auth.RequireRole(auth.RoleDoctor))
	api.POST("/patients", h.RegisterPatient, auth.RequireRole(auth.RolePatient))
	api.GET("/me", h.Me)
}

type registerRequest struct {
	DisplayName string `json:"display_name"`
}

func (h *Handler) RegisterDoctor(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	u, err := h.svc.RegisterDoctor(ctx, auth.UserIDFromContext(ctx), req.DisplayName)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	u, err := h.svc.RegisterPatient(ctx, auth.UserIDFromContext(ctx), req.DisplayName)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	u, err := h.svc.GetProfile(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, u)
}
