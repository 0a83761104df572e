package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/safilab/labsync/internal/platform/publish"
	"github.com/safilab/labsync/pkg/pagination"
)

// Handler exposes the façade over HTTP for the presentation shell.
type Handler struct {
	svc     *Service
	journal *publish.Journal
}

func NewHandler(svc *Service, journal *publish.Journal) *Handler {
	return &Handler{svc: svc, journal: journal}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:id", h.GetPatient)
	api.PUT("/patients", h.SavePatient)
	api.POST("/patients", h.SavePatient)
	api.DELETE("/patients/:id", h.DeletePatient)
	api.POST("/patients/:id/report", h.GenerateReport)
	api.GET("/patients/:id/qr", h.GetQR)
	api.POST("/patients/:id/email", h.SendEmail)
	api.POST("/patients/:id/whatsapp", h.SendWhatsApp)
	api.POST("/patients/:id/folder", h.OpenFolder)
	api.GET("/dashboard", h.Dashboard)
	api.GET("/publishes", h.ListPublishes)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items := h.svc.List(c.Request().Context())
	total := len(items)
	start := pg.Offset
	if start > total {
		start = total
	}
	end := start + pg.Limit
	if end > total {
		end = total
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items[start:end], total, pg.Limit, pg.Offset))
}

func (h *Handler) GetPatient(c echo.Context) error {
	d, err := h.svc.Detail(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) SavePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Save(c.Request().Context(), &p); err != nil {
		if errors.Is(err, ErrMissingID) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"saved": true})
}

func (h *Handler) DeletePatient(c echo.Context) error {
	err := h.svc.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GenerateReport(c echo.Context) error {
	outcome := h.svc.Generate(c.Request().Context(), c.Param("id"))
	status := http.StatusOK
	if !outcome.Success {
		status = http.StatusBadGateway
	}
	return c.JSON(status, outcome)
}

func (h *Handler) GetQR(c echo.Context) error {
	data, err := h.svc.QRData(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"qr": data})
}

func (h *Handler) SendEmail(c echo.Context) error {
	res := h.svc.NotifyEmail(c.Request().Context(), c.Param("id"))
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) SendWhatsApp(c echo.Context) error {
	res := h.svc.NotifyWhatsApp(c.Request().Context(), c.Param("id"))
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) OpenFolder(c echo.Context) error {
	if err := h.svc.OpenFolder(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Dashboard(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"url": h.svc.DashboardURL()})
}

func (h *Handler) ListPublishes(c echo.Context) error {
	if h.journal == nil {
		return c.JSON(http.StatusOK, []publish.Entry{})
	}
	pg := pagination.FromContext(c)
	entries, err := h.journal.Recent(c.Request().Context(), pg.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	streak, err := h.journal.FailureStreak(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"entries":        entries,
		"failure_streak": streak,
	})
}
