package processor

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the Service as a Pub/Sub push endpoint.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/", h.Push)
}

// Push responds with a plain-text status body; push subscriptions retry on
// anything but 2xx.
func (h *Handler) Push(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return c.String(http.StatusInternalServerError, "Error: "+err.Error())
	}
	res := h.svc.Process(c.Request().Context(), body)
	return c.String(res.StatusCode(), res.Body)
}
