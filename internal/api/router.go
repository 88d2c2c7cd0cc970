package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"cargoledger/internal/bootstrap/logging"
	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/ports"
	"cargoledger/internal/usecase/ingest"
)

const defaultMaxUploadBytes = 32 << 20

// LedgerService is what the HTTP layer needs from the ingest use case.
type LedgerService interface {
	IngestFile(ctx context.Context, input ingest.IngestFileInput) (ingest.IngestResult, error)
	ListUploads(ctx context.Context, kind manifest.Kind) ([]ingest.UploadSummary, error)
	GetUpload(ctx context.Context, uploadID string) (manifest.Upload, error)
	Summary(ctx context.Context, uploadID string) (ingest.ComparisonSummary, error)
	ReportRows(ctx context.Context, uploadID string, filter ports.RowFilter) ([]ports.ReportRow, error)
	Compare(ctx context.Context, uploadID string) (ingest.Comparison, error)
	DeleteUpload(ctx context.Context, input ingest.DeleteUploadInput) (ingest.DeleteUploadResult, error)
	MasterList(ctx context.Context, input ingest.MasterListInput) ([]manifest.MasterEntry, error)
	MasterSheet(ctx context.Context, input ingest.MasterListInput) (ingest.Sheet, error)
}

type Handler struct {
	svc            LedgerService
	maxUploadBytes int64
	allowedOrigins []string
}

func NewHandler(svc LedgerService, maxUploadMB int64) *Handler {
	maxBytes := maxUploadMB << 20
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &Handler{svc: svc, maxUploadBytes: maxBytes}
}

// AllowOrigins enables CORS for the given browser origins.
func (h *Handler) AllowOrigins(origins ...string) *Handler {
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			h.allowedOrigins = append(h.allowedOrigins, origin)
		}
	}
	return h
}

// Routes mounts the API under /api.
func (h *Handler) Routes(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(ctx))
	if len(h.allowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: h.allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"*"},
			ExposedHeaders: []string{middleware.RequestIDHeader},
		}).Handler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/uploads/{uploadID}", func(r chi.Router) {
			r.Get("/", h.getUpload)
			r.Delete("/", h.deleteUpload)
			r.Get("/rows", h.reportRows)
			r.Get("/comparison", h.comparison)
		})
		r.Route("/{kind}", func(r chi.Router) {
			r.Post("/uploads", h.createUpload)
			r.Get("/uploads", h.listUploads)
			r.Get("/master", h.masterList)
			r.Get("/master/export", h.masterExport)
		})
	})
	return r
}

// requestLogger logs each request through the context logger taken from ctx.
func requestLogger(ctx context.Context) func(http.Handler) http.Handler {
	base := logging.WithComponent(ctx, "api")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			attrs := append(logging.Attrs(base), slog.String("request_id", middleware.GetReqID(r.Context())))
			reqCtx := logging.WithAttrs(logging.WithLogger(r.Context(), logging.Logger(base)), attrs...)

			next.ServeHTTP(ww, r.WithContext(reqCtx))

			logging.Info(
				reqCtx,
				"http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
