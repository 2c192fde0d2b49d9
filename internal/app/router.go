package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parcelpost/parcelpost/internal/export"
	"github.com/parcelpost/parcelpost/internal/invoicing"
	"github.com/parcelpost/parcelpost/internal/masterdata"
	"github.com/parcelpost/parcelpost/internal/observability"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	InvoicingHandler  *invoicing.Handler
	MasterDataHandler *masterdata.Handler
	ExportHandler     *export.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with ParcelPost defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.InvoicingHandler != nil {
			r.Route("/invoices", params.InvoicingHandler.MountRoutes)
		}
		if params.MasterDataHandler != nil {
			params.MasterDataHandler.MountRoutes(r)
		}
		if params.ExportHandler != nil {
			r.Route("/exports", params.ExportHandler.MountRoutes)
		}
	})

	return r
}
