package worker

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/actua/clinic/internal/domain/account"
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
	admin := api.Group("", auth.RequireGroup(auth.GroupAdmin))
	admin.GET("/workers", h.List)
	admin.POST("/workers", h.Create)
	admin.GET("/workers/:id", h.Get)
	admin.PUT("/workers/:id", h.Update)
	admin.DELETE("/workers/:id", h.Delete)

	// Both admins and the worker's own account reach these.
	api.GET("/workers/by-user/:userID", h.GetByUser)
	api.POST("/workers/:id/time-registers", h.UploadTimeRegister)
	api.GET("/workers/:id/time-registers", h.ListTimeRegisters)
	api.GET("/workers/:id/time-registers/:regID", h.DownloadTimeRegister)
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, account.ErrNotFound):
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

	workers, total, err := h.svc.List(ctx, auth.UserIDFromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(workers, total, pg.Limit, pg.Offset))
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	w, err := h.svc.Create(ctx, in, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	w, err := h.svc.Get(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) GetByUser(c echo.Context) error {
	userID, err := pathID(c, "userID")
	if err != nil {
		return err
	}
	w, err := h.svc.GetByUser(c.Request().Context(), userID)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	w, err := h.svc.Update(ctx, id, in, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, w)
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

// ---- time-register PDFs ----

func (h *Handler) UploadTimeRegister(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	ctx := c.Request().Context()
	reg, err := h.svc.UploadTimeRegister(ctx, id, fh.Filename, src, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusCreated, reg)
}

func (h *Handler) ListTimeRegisters(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	byAdmin, _ := strconv.ParseBool(c.QueryParam("by_admin"))
	pg := pagination.FromContext(c)

	ctx := c.Request().Context()
	regs, total, err := h.svc.ListTimeRegisters(ctx, id, byAdmin, auth.UserIDFromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(regs, total, pg.Limit, pg.Offset))
}

func (h *Handler) DownloadTimeRegister(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	regID, err := pathID(c, "regID")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	rc, meta, err := h.svc.OpenTimeRegister(ctx, id, regID, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+meta.FileName+`"`)
	return c.Stream(http.StatusOK, "application/pdf", rc)
}
