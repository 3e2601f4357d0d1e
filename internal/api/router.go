package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tradepoll/delivery-service/internal/api/handler"
	apimw "github.com/tradepoll/delivery-service/internal/api/middleware"
	"github.com/tradepoll/delivery-service/internal/domain"
	"github.com/tradepoll/delivery-service/internal/pending"
	"github.com/tradepoll/delivery-service/internal/queue"
	"github.com/tradepoll/delivery-service/internal/service"
	"github.com/tradepoll/delivery-service/internal/storage"
)

// Deps bundles everything the router needs. The struct keeps NewRouter's
// signature stable while the pipeline grows.
type Deps struct {
	Polls     *service.PollService
	Uploads   *service.UploadService
	AnnounceQ *queue.FIFO[domain.AnnounceJob]
	SendQ     *queue.FIFO[domain.SendJob]
	Pending   *pending.Set
	Store     *storage.Store
	Registry  prometheus.Gatherer
	Logger    *zap.Logger
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)           // recover panics, return 500
	r.Use(chimw.RealIP)              // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(12<<20)) // screenshot uploads included
	r.Use(apimw.CorrelationID)       // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(d.Logger))

	// --- handler instances ---
	ph := handler.NewPollHandler(d.Polls, d.Logger)
	uh := handler.NewUploadHandler(d.Uploads, d.Logger)
	mh := handler.NewMetricsHandler(d.AnnounceQ, d.SendQ, d.Pending)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))

	// Tokenised upload page used from the chat link. No auth beyond the
	// single-use token itself.
	r.Get("/upload/{token}", uh.ShowForm)
	r.Post("/upload/{token}", uh.SubmitProof)

	// Stored screenshots, served read-only.
	r.Handle("/uploads/*", http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(d.Store.Root()))))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/polls", ph.Create)
		r.Get("/polls", ph.List)
		r.Get("/polls/{id}", ph.GetByID)

		r.Post("/polls/{id}/options/{optionID}/artifact", uh.AttachArtifact)
		r.Post("/polls/{id}/options/{optionID}/responses", ph.RecordResponse)
		r.Post("/polls/{id}/options/{optionID}/confirm", ph.Confirm)

		// JSON metrics snapshot
		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
