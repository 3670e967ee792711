package finance

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/actua/clinic/internal/platform/auth"
	"github.com/actua/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/finance/incomes", h.RegisterIncome)
	api.GET("/finance/incomes", h.ListIncomes)
	api.GET("/finance/recorded-appointments", h.RecordedAppointments)
	api.POST("/finance/mark-cotizada", h.MarkCotizada)

	api.POST("/finance/expenses", h.AddExpense)
	api.GET("/finance/expenses", h.ListExpenses)
	api.DELETE("/finance/transactions/:id", h.DeleteTransaction)

	api.GET("/finance/balance", h.Balance)

	api.GET("/config/finance", h.GetConfig)
	api.PUT("/config/finance", h.UpdateConfig, auth.RequireGroup(auth.GroupAdmin))
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

type appointmentRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
}

func bindAppointmentID(c echo.Context) (uuid.UUID, error) {
	var req appointmentRequest
	if err := c.Bind(&req); err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.AppointmentID == uuid.Nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "appointment_id is required")
	}
	return req.AppointmentID, nil
}

func (h *Handler) RegisterIncome(c echo.Context) error {
	id, err := bindAppointmentID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	t, err := h.svc.RegisterIncome(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) RecordedAppointments(c echo.Context) error {
	ctx := c.Request().Context()
	ids, err := h.svc.RecordedAppointments(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"appointment_ids": ids})
}

func (h *Handler) MarkCotizada(c echo.Context) error {
	id, err := bindAppointmentID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	a, err := h.svc.MarkCotizada(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) AddExpense(c echo.Context) error {
	var in ExpenseInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	t, err := h.svc.AddExpense(ctx, in, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ListExpenses(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	txs, total, err := h.svc.ListExpenses(ctx, auth.UserIDFromContext(ctx),
		c.QueryParam("period"), pg.Limit, pg.Offset)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(txs, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListIncomes(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	txs, total, err := h.svc.ListIncomes(ctx, auth.UserIDFromContext(ctx),
		c.QueryParam("period"), pg.Limit, pg.Offset)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(txs, total, pg.Limit, pg.Offset))
}

func (h *Handler) DeleteTransaction(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	if err := h.svc.DeleteTransaction(ctx, id, auth.UserIDFromContext(ctx)); err != nil {
		return mapErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Balance(c echo.Context) error {
	ctx := c.Request().Context()
	b, err := h.svc.Balance(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) GetConfig(c echo.Context) error {
	cfg, err := h.svc.GetConfig(c.Request().Context())
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) UpdateConfig(c echo.Context) error {
	var in Config
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cfg, err := h.svc.UpdateConfig(c.Request().Context(), &in)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, cfg)
}
