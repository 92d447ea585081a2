package patient

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

// RegisterRoutes mounts the patient endpoints behind the JWT middleware.
// The per-patient analysis listing is registered by the analysis handler.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	patients := api.Group("/patients")

	staff := patients.Group("", auth.RequireCapability(auth.CapViewAnyRecord))
	staff.GET("", h.List)
	staff.GET("/stats", h.Stats, auth.RequireCapability(auth.CapViewStatistics))

	manage := patients.Group("", auth.RequireCapability(auth.CapManagePatients))
	manage.POST("", h.Create)
	manage.PUT("/:id", h.Update)

	// Read is open to every role; ownership is enforced in the service.
	patients.GET("/me", h.Me)
	patients.GET("/:id", h.Get)
}

func (h *Handler) Create(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return apperror.Validation("invalid request body")
	}
	ident, _ := auth.IdentityFromContext(c.Request().Context())
	created, err := h.svc.Create(c.Request().Context(), ident, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	ident, _ := auth.IdentityFromContext(c.Request().Context())
	p, err := h.svc.Get(c.Request().Context(), ident, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Me returns the patient record linked to the caller's portal account.
func (h *Handler) Me(c echo.Context) error {
	ident, _ := auth.IdentityFromContext(c.Request().Context())
	p, err := h.svc.Own(c.Request().Context(), ident)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return apperror.Validation("invalid request body")
	}
	ident, _ := auth.IdentityFromContext(c.Request().Context())
	p, err := h.svc.Update(c.Request().Context(), ident, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, key := range []string{"q", "gender", "born_after", "born_before"} {
		if v := c.QueryParam(key); v != "" {
			params[key] = v
		}
	}
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Stats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}
