package appointment

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
	api.GET("/appointments", h.List)
	api.POST("/appointments", h.Create)
	api.GET("/appointments/:id", h.Get)
	api.PUT("/appointments/:id", h.Update)
	api.DELETE("/appointments/:id", h.Delete)

	api.POST("/appointments/reminders", h.SendReminders)

	api.GET("/patients/:id/appointments", h.ListByPatient)
	api.GET("/workers/:id/appointments", h.ListForWorker)
	api.POST("/workers/:id/appointments", h.CreateForWorker)

	api.GET("/config/appointment-price", h.GetPriceConfig)
	api.PUT("/config/appointment-price", h.UpdatePriceConfig, auth.RequireGroup(auth.GroupAdmin))
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrWorkerNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "worker not found")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	appts, total, err := h.svc.List(ctx, auth.UserIDFromContext(ctx), auth.GroupsFromContext(ctx),
		c.QueryParam("filter_type"), pg.Limit, pg.Offset)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, pg.Limit, pg.Offset))
}

func (h *Handler) Create(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	a, err := h.svc.Create(ctx, in, auth.UserIDFromContext(ctx), auth.GroupsFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	a, err := h.svc.Get(ctx, id, auth.UserIDFromContext(ctx), auth.GroupsFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	a, err := h.svc.Update(ctx, id, in, auth.UserIDFromContext(ctx), auth.GroupsFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.Delete(ctx, id, auth.UserIDFromContext(ctx), auth.GroupsFromContext(ctx)); err != nil {
		return mapErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	appts, total, err := h.svc.ListByPatient(ctx, id, auth.UserIDFromContext(ctx),
		auth.GroupsFromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListForWorker(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	appts, total, err := h.svc.ListForWorker(ctx, id, auth.UserIDFromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, pg.Limit, pg.Offset))
}

func (h *Handler) CreateForWorker(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	a, err := h.svc.CreateForWorker(ctx, id, in, auth.UserIDFromContext(ctx), auth.GroupsFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusCreated, a)
}

type remindersRequest struct {
	AppointmentIDs []uuid.UUID `json:"appointment_ids"`
}

func (h *Handler) SendReminders(c echo.Context) error {
	var req remindersRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	results, err := h.svc.SendReminders(ctx, req.AppointmentIDs, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"resultados": results})
}

func (h *Handler) GetPriceConfig(c echo.Context) error {
	cfg, err := h.svc.GetPriceConfig(c.Request().Context())
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, cfg)
}

type priceConfigRequest struct {
	BasePrice float64 `json:"base_price"`
}

func (h *Handler) UpdatePriceConfig(c echo.Context) error {
	var req priceConfigRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cfg, err := h.svc.UpdatePriceConfig(c.Request().Context(), req.BasePrice)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, cfg)
}
