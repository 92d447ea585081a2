package analysis

import (
	"net/http"

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

// RegisterRoutes mounts the analysis endpoints behind the JWT middleware,
// including the per-patient listing under /patients.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	analyses := api.Group("/analyses")

	analyses.GET("", h.List)
	analyses.GET("/dashboard_stats", h.Dashboard)
	analyses.GET("/by_status", h.ByStatus)
	analyses.GET("/type_stats", h.TypeStats, auth.RequireCapability(auth.CapViewStatistics))
	analyses.GET("/:id", h.Get)

	write := analyses.Group("", auth.RequireCapability(auth.CapCreateAnalysis))
	write.POST("", h.Create)
	write.PUT("/:id", h.Update)

	analyses.POST("/:id/set_status", h.SetStatus, auth.RequireCapability(auth.CapSetStatus))

	api.GET("/patients/:id/analyses", h.ListByPatient)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return apperror.Validation("invalid request body")
	}
	ident, _ := auth.IdentityFromContext(c.Request().Context())
	a, err := h.svc.Create(c.Request().Context(), ident, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	ident, _ := auth.IdentityFromContext(c.Request().Context())
	a, err := h.svc.Get(c.Request().Context(), ident, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return apperror.Validation("invalid request body")
	}
	a, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var in SetStatusInput
	if err := c.Bind(&in); err != nil {
		return apperror.Validation("invalid request body")
	}
	ident, _ := auth.IdentityFromContext(c.Request().Context())
	a, err := h.svc.SetStatus(c.Request().Context(), ident, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, key := range []string{"status", "type_id", "collected_after", "collected_before"} {
		if v := c.QueryParam(key); v != "" {
			params[key] = v
		}
	}
	ident, _ := auth.IdentityFromContext(c.Request().Context())
	items, total, err := h.svc.List(c.Request().Context(), ident, params, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	pg := pagination.FromContext(c)
	ident, _ := auth.IdentityFromContext(c.Request().Context())
	items, total, err := h.svc.ListByPatient(c.Request().Context(), ident, patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Dashboard(c echo.Context) error {
	ident, _ := auth.IdentityFromContext(c.Request().Context())
	st, err := h.svc.Dashboard(c.Request().Context(), ident)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) ByStatus(c echo.Context) error {
	status := c.QueryParam("status")
	if status == "" {
		return apperror.Validation("status query parameter is required")
	}
	pg := pagination.FromContext(c)
	ident, _ := auth.IdentityFromContext(c.Request().Context())
	items, total, err := h.svc.ByStatus(c.Request().Context(), ident, status, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) TypeStats(c echo.Context) error {
	stats, err := h.svc.TypeStats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
