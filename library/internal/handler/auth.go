package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Astemirdum/library-management/library/internal/job"
	"github.com/Astemirdum/library-management/library/internal/model"
	md "github.com/Astemirdum/library-management/pkg/middleware"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// Register is public for the user role. Creating an admin needs an admin bearer token.
func (h *Handler) Register(c echo.Context) error {
	var req model.RegisterRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if req.Role == model.RoleAdmin && !h.isAdminRequest(c) {
		return echo.NewHTTPError(http.StatusForbidden, "only admins can register admins")
	}
	resp, err := h.auth.RegisterUser(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c echo.Context) error {
	var req model.LoginRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	resp, err := h.auth.Login(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ExpireReservations runs one sweep on demand.
func (h *Handler) ExpireReservations(c echo.Context) error {
	n, err := h.sweeper.Run(c.Request().Context())
	if err != nil {
		if errors.Is(err, job.ErrAlreadyRunning) || errors.Is(err, job.ErrLocked) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, model.ExpireReservationsResponse{
		ExpiredCount: n,
		Message:      fmt.Sprintf("Expired %d reservations", n),
	})
}

func (h *Handler) isAdminRequest(c echo.Context) bool {
	token, ok := strings.CutPrefix(c.Request().Header.Get(md.AuthorizationHeader), "Bearer ")
	if !ok || h.tokens == nil {
		return false
	}
	claims, err := h.tokens.Parse(token)
	if err != nil {
		return false
	}
	return claims.Profile.IsAdmin()
}
