package export

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parcelpost/parcelpost/internal/platform/httpx"
)

// Handler manages export endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers export routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices.csv", h.exportCSV)
	r.Get("/invoices.json", h.exportJSON)
	r.Get("/summary", h.summary)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.CSV(r.Context())
	if err != nil {
		h.logger.Error("export csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="invoices.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) exportJSON(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.JSON(r.Context())
	if err != nil {
		h.logger.Error("export json", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="invoices.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.BuildReport(r.Context())
	if err != nil {
		h.logger.Error("export summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report.Summary)
}
