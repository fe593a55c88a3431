// Package api exposes the tender pipeline over HTTP and MCP.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/kalambet/tenderscope/internal/quality"
	"github.com/kalambet/tenderscope/internal/search"
	"github.com/kalambet/tenderscope/internal/tender"
)

// Name is reported by the root endpoint and the MCP server.
const Name = "tenderscope"

const (
	defaultSearchLimit  = 5
	defaultTendersLimit = 50
	defaultLogsLimit    = 100
	maxLogsLimit        = 1000
	maxSearchBodySize   = 64 << 10
)

// Pipeline is the subset of the pipeline service the API layer drives.
type Pipeline interface {
	Ingest(ctx context.Context, r io.Reader, filename string) (tender.IngestionResult, error)
	Validate(ctx context.Context) (quality.Report, error)
	Health(ctx context.Context) (tender.HealthSnapshot, error)
	QualityLogs(ctx context.Context, limit int) ([]tender.QualityLog, error)
	Search(ctx context.Context, query string, k int) ([]search.Result, error)
	Tenders(ctx context.Context, limit int) ([]tender.Tender, error)
	Reset(ctx context.Context) error
}

// Deps holds the HTTP handler dependencies. Zero limits select defaults.
type Deps struct {
	Pipeline            Pipeline
	Logger              *slog.Logger
	Version             string
	MaxUploadBytes      int64
	MaxSearchLimit      int
	IngestRatePerMinute int
}

func (d *Deps) defaults() {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Version == "" {
		d.Version = "dev"
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 32 << 20
	}
	if d.MaxSearchLimit <= 0 {
		d.MaxSearchLimit = 100
	}
	if d.IngestRatePerMinute <= 0 {
		d.IngestRatePerMinute = 30
	}
}

// NewHandler returns the HTTP API. Every route is served both at the root
// and under /api.
func NewHandler(deps Deps) http.Handler {
	deps.defaults()

	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(deps.IngestRatePerMinute)), deps.IngestRatePerMinute)

	routes := func(r chi.Router) {
		r.Get("/", handleRoot(deps))
		r.Get("/health", handleHealth)
		r.With(rateLimit(limiter)).Post("/ingest", handleIngest(deps))
		r.Post("/validate", handleValidate(deps))
		r.Get("/pipeline-health", handlePipelineHealth(deps))
		r.Get("/data-quality", handleDataQuality(deps))
		r.Post("/search", handleSearch(deps))
		r.Get("/tenders", handleTenders(deps))
		r.Post("/reset", handleReset(deps))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)

	r.Route("/api", routes)
	r.Group(routes)

	return r
}
