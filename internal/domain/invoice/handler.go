package invoice

import (
	"errors"
	"net/http"
	"strconv"

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
	api.GET("/invoices", h.List)
	api.POST("/invoices", h.Create)
	api.GET("/invoices/:id", h.Get)
	api.GET("/invoices/:id/pdf", h.DownloadPDF)
	api.DELETE("/invoices/:id", h.Delete)

	api.GET("/patients/:id/invoices", h.ListByPatient)

	api.GET("/config/invoice-numbering", h.GetNumberingConfig)
	api.PUT("/config/invoice-numbering", h.UpdateNumberingConfig, auth.RequireGroup(auth.GroupAdmin))
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "invoice not found")
	case errors.Is(err, ErrNotCotizada), errors.Is(err, ErrAlreadyInvoiced),
		errors.Is(err, ErrNoIssuerProfile):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
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

type createRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.AppointmentID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "appointment_id is required")
	}

	ctx := c.Request().Context()
	invoices, err := h.svc.CreateFromAppointment(ctx, req.AppointmentID,
		auth.UserIDFromContext(ctx), auth.GroupsFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusCreated, invoices)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	invoices, total, err := h.svc.List(ctx, auth.UserIDFromContext(ctx),
		c.QueryParam("filter_type"), c.QueryParam("fecha"), pg.Limit, pg.Offset)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(invoices, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	inv, err := h.svc.Get(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func intQuery(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return n, nil
}

func (h *Handler) ListByPatient(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var filter PatientFilter
	if filter.Year, err = intQuery(c, "year"); err != nil {
		return err
	}
	if filter.Month, err = intQuery(c, "month"); err != nil {
		return err
	}
	if filter.Day, err = intQuery(c, "day"); err != nil {
		return err
	}

	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	invoices, total, err := h.svc.ListByPatient(ctx, id, auth.UserIDFromContext(ctx),
		filter, pg.Limit, pg.Offset)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(invoices, total, pg.Limit, pg.Offset))
}

func (h *Handler) DownloadPDF(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	rc, meta, err := h.svc.OpenPDF(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+meta.FileName+`"`)
	return c.Stream(http.StatusOK, "application/pdf", rc)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.Delete(ctx, id, auth.UserIDFromContext(ctx)); err != nil {
		return mapErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetNumberingConfig(c echo.Context) error {
	cfg, err := h.svc.GetNumberingConfig(c.Request().Context())
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, cfg)
}

type numberingRequest struct {
	StartNumber int `json:"start_number"`
}

func (h *Handler) UpdateNumberingConfig(c echo.Context) error {
	var req numberingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cfg, err := h.svc.UpdateNumberingConfig(c.Request().Context(), req.StartNumber)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, cfg)
}
