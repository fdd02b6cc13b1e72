// Package web serves the dashboard HTTP API, the status page and /metrics.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
	"github.com/ecoledger/carbon-dashboard/internal/config"
	"github.com/ecoledger/carbon-dashboard/internal/consumption"
	"github.com/ecoledger/carbon-dashboard/internal/metrics"
	"github.com/ecoledger/carbon-dashboard/internal/publish"
	"github.com/ecoledger/carbon-dashboard/internal/report"
)

// maxBodyBytes caps JSON request bodies. Imports use maxUploadBytes.
const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 32 << 20
)

// Options wires the server to its collaborators. Metrics and Publisher may be
// nil.
type Options struct {
	Addr      string
	Records   *consumption.Service
	Schedules *report.ScheduleStore
	Metrics   *metrics.Metrics
	Publisher publish.Publisher
	CORS      config.CORSConfig
}

// Server serves the HTTP API.
type Server struct {
	httpServer *http.Server
	records    *consumption.Service
	schedules  *report.ScheduleStore
	calc       *carbon.Memo
	metrics    *metrics.Metrics
	publisher  publish.Publisher
	logger     zerolog.Logger
	started    time.Time
	now        func() time.Time
}

// New creates a Server. Call Serve or ListenAndServe to start it.
func New(opts Options, logger zerolog.Logger) *Server {
	s := &Server{
		records:   opts.Records,
		schedules: opts.Schedules,
		calc:      carbon.NewMemo(opts.Records.Table()),
		metrics:   opts.Metrics,
		publisher: opts.Publisher,
		logger:    logger.With().Str("component", "web").Logger(),
		now:       time.Now,
	}
	s.started = s.now()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Metrics.Registry, promhttp.HandlerOpts{
			Registry: opts.Metrics.Registry,
		}))
	}

	mux.HandleFunc("GET /api/factors", s.handleFactors)
	mux.HandleFunc("POST /api/calculate", s.handleCalculate)

	mux.HandleFunc("GET /api/records", s.handleListRecords)
	mux.HandleFunc("POST /api/records", s.handleCreateRecord)
	mux.HandleFunc("POST /api/records/import", s.handleImport)
	mux.HandleFunc("GET /api/records/{id}", s.handleGetRecord)
	mux.HandleFunc("PUT /api/records/{id}", s.handleUpdateRecord)
	mux.HandleFunc("DELETE /api/records/{id}", s.handleDeleteRecord)

	mux.HandleFunc("GET /api/dashboards", s.handleDashboardNames)
	mux.HandleFunc("GET /api/dashboards/{name}", s.handleDashboard)

	mux.HandleFunc("GET /api/schedules", s.handleListSchedules)
	mux.HandleFunc("POST /api/schedules", s.handleCreateSchedule)
	mux.HandleFunc("GET /api/schedules/{id}", s.handleGetSchedule)
	mux.HandleFunc("PUT /api/schedules/{id}", s.handleUpdateSchedule)
	mux.HandleFunc("DELETE /api/schedules/{id}", s.handleDeleteSchedule)
	mux.HandleFunc("GET /api/schedules/{id}/deliveries", s.handleDeliveries)

	mux.HandleFunc("GET /api/reports", s.handleReport)

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.middleware(mux, opts.CORS),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("starting HTTP server")
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
