package handler

import (
	"net/http"

	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/labstack/echo/v4"
)

func (h *Handler) CreateReservation(c echo.Context) error {
	_, userID, err := caller(c)
	if err != nil {
		return err
	}
	var req model.CreateReservationRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	req.UserID = userID
	res, err := h.lending.CreateReservation(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) CancelReservation(c echo.Context) error {
	_, userID, err := caller(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	res, err := h.lending.CancelReservation(c.Request().Context(), id, userID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) FulfillReservation(c echo.Context) error {
	_, userID, err := caller(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req model.FulfillReservationRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	loan, err := h.lending.FulfillReservation(c.Request().Context(), id, userID, req.LoanDueDate)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, loan)
}

func (h *Handler) MyReservations(c echo.Context) error {
	_, userID, err := caller(c)
	if err != nil {
		return err
	}
	list, err := h.lending.GetUserReservations(c.Request().Context(), userID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}
