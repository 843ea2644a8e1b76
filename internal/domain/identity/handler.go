package identity

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinic/booking/internal/platform/auth"
	"github.com/clinic/booking/pkg/pagination"
)

type Handler struct {
	svc *Service
	dir Directory
}

// NewHandler serves the directory endpoints. dir is used for single-account
// reads and may be a CachedDirectory; it defaults to svc.
func NewHandler(svc *Service, dir Directory) *Handler {
	if dir == nil {
		dir = svc
	}
	return &Handler{svc: svc, dir: dir}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors", h.ListDoctors)
	api.GET("/accounts/me", h.Me)
}

// doctorView omits the email from the public listing.
type doctorView struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "directory unavailable")
	}
	views := make([]doctorView, 0, len(items))
	for _, a := range items {
		views = append(views, doctorView{ID: a.ID.String(), DisplayName: a.DisplayName})
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg))
}

func (h *Handler) Me(c echo.Context) error {
	id, err := auth.ActorID(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	a, err := h.dir.GetAccount(c.Request().Context(), id)
	if errors.Is(err, ErrAccountNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "account not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "directory unavailable")
	}
	return c.JSON(http.StatusOK, a)
}
