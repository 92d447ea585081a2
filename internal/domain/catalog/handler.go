package catalog

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medlab/medlab/internal/platform/apperror"
	"github.com/medlab/medlab/internal/platform/auth"
	"github.com/medlab/medlab/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the catalog endpoints. public is unauthenticated;
// api sits behind the JWT middleware.
func (h *Handler) RegisterRoutes(api *echo.Group, public *echo.Group) {
	public.GET("/services", h.PublicServices)

	types := api.Group("/analysis-types")
	types.GET("", h.List)
	types.GET("/:id", h.Get)

	manage := types.Group("", auth.RequireCapability(auth.CapManageCatalog))
	manage.POST("", h.Create)
	manage.PUT("/:id", h.Update)
	manage.POST("/:id/deactivate", h.Deactivate)
}

func (h *Handler) PublicServices(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.PublicServices(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return apperror.Validation("invalid request body")
	}
	t, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	t, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return apperror.Validation("invalid request body")
	}
	t, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Deactivate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	if err := h.svc.Deactivate(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	activeOnly := false
	if v := c.QueryParam("active"); v != "" {
		activeOnly, _ = strconv.ParseBool(v)
	}
	items, total, err := h.svc.List(c.Request().Context(), activeOnly, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
