package handler

import (
	"net/http"

	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CreateLoan lends a book. Only admins may lend on behalf of another user.
func (h *Handler) CreateLoan(c echo.Context) error {
	p, userID, err := caller(c)
	if err != nil {
		return err
	}
	var req model.CreateLoanRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	switch {
	case req.UserID == uuid.Nil:
		req.UserID = userID
	case req.UserID != userID && !p.IsAdmin():
		return echo.NewHTTPError(http.StatusForbidden, "you can only create loans for yourself")
	}
	loan, err := h.lending.CreateLoan(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, loan)
}

func (h *Handler) ReturnLoan(c echo.Context) error {
	p, userID, err := caller(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req model.ReturnLoanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	if !p.IsAdmin() {
		loan, err := h.lending.GetLoan(ctx, id)
		if err != nil {
			return h.httpError(err)
		}
		if loan.UserID != userID {
			return echo.NewHTTPError(http.StatusForbidden, "you can only return your own loans")
		}
	}
	loan, err := h.lending.ReturnLoan(ctx, id, req.ReturnDate)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) MyLoans(c echo.Context) error {
	_, userID, err := caller(c)
	if err != nil {
		return err
	}
	loans, err := h.lending.GetUserLoans(c.Request().Context(), userID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}
