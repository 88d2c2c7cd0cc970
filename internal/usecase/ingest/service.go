package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"cargoledger/internal/bootstrap/logging"
	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/errs"
	"cargoledger/internal/ports"
)

var (
	errRepositoryRequired = errors.New("manifest repository is required")
	errUnitOfWorkRequired = errors.New("unit of work is required")
	errParserRequired     = errors.New("manifest parser is required")
	errUploadIDRequired   = errors.New("upload id is required")
	errFilenameRequired   = errors.New("filename is required")
)

const (
	defaultBatchSize    = 1000
	defaultMaxRetries   = 3
	defaultRetryInitial = 200 * time.Millisecond
)

// Options tunes master list writes.
type Options struct {
	BatchSize    int
	MaxRetries   int
	RetryInitial time.Duration
	OrphanPolicy ports.OrphanPolicy
}

// Service reconciles uploads into the master list. Ingestion, deletion and
// reset are serialized so at most one mutation is in flight.
type Service struct {
	repo     ports.ManifestRepository
	uow      ports.UnitOfWork
	cache    ports.Cache
	notifier ports.Notifier
	parser   ports.ManifestParser
	shapes   manifest.Shapes
	opts     Options
	now      func() time.Time

	mu sync.Mutex
}

// Deps groups the collaborators of Service. Cache and Notifier are optional.
type Deps struct {
	Repo     ports.ManifestRepository
	UoW      ports.UnitOfWork
	Cache    ports.Cache
	Notifier ports.Notifier
	Parser   ports.ManifestParser
	Shapes   manifest.Shapes
}

func NewService(deps Deps, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = defaultRetryInitial
	}
	if opts.OrphanPolicy == "" {
		opts.OrphanPolicy = ports.OrphanPolicyNull
	}
	shapes := deps.Shapes
	if len(shapes) == 0 {
		shapes = manifest.DefaultShapes()
	}
	return &Service{
		repo:     deps.Repo,
		uow:      deps.UoW,
		cache:    deps.Cache,
		notifier: deps.Notifier,
		parser:   deps.Parser,
		shapes:   shapes,
		opts:     opts,
		now:      time.Now,
	}
}

// Shape returns the active shape for kind.
func (s *Service) Shape(kind manifest.Kind) (manifest.Shape, error) {
	return s.shapes.For(kind)
}

type IngestFileInput struct {
	Kind       manifest.Kind
	Filename   string
	Payload    []byte
	UploadDate time.Time
}

type IngestRowsInput struct {
	Kind       manifest.Kind
	Filename   string
	Rows       []manifest.Row
	UploadDate time.Time
}

type IngestResult struct {
	Upload           manifest.Upload
	ItemsAdded       int
	ItemsUpdated     int
	AttemptedAdds    int
	AttemptedUpdates int
	SkippedRows      int
	Comparison       ComparisonSummary
}

type ComparisonSummary struct {
	UploadID         string    `json:"upload_id" yaml:"upload_id"`
	PreviousUploadID string    `json:"previous_upload_id,omitempty" yaml:"previous_upload_id,omitempty"`
	TotalRows        int       `json:"total_rows" yaml:"total_rows"`
	NewItems         int       `json:"new_items" yaml:"new_items"`
	RemovedItems     int       `json:"removed_items" yaml:"removed_items"`
	NewlyReleased    int       `json:"newly_released" yaml:"newly_released"`
	ComputedAt       time.Time `json:"computed_at" yaml:"computed_at"`
}

type Comparison struct {
	Upload        manifest.Upload
	Previous      *manifest.Upload
	NewItems      []manifest.Row
	RemovedItems  []manifest.Row
	NewlyReleased []manifest.Row
	Summary       ComparisonSummary
}

type UploadSummary struct {
	Upload  manifest.Upload
	Summary ComparisonSummary
}

type MasterListInput struct {
	Kind    manifest.Kind
	Release ports.RowFilter
	Search  string
	Limit   int
	Offset  int
}

type DeleteUploadInput struct {
	UploadID string
	// Policy overrides the configured orphan policy when set.
	Policy ports.OrphanPolicy
}

type DeleteUploadResult struct {
	Upload manifest.Upload
	Policy ports.OrphanPolicy
	ports.DeleteResult
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	return nil
}

func (s *Service) deleteCacheBestEffort(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		logging.Warn(ctx, "cache delete failed", slog.String("key", key), slog.Any("err", errs.Loggable(err)))
	}
}

func (s *Service) setCacheBestEffort(ctx context.Context, key string, value string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, 0); err != nil {
		logging.Warn(ctx, "cache set failed", slog.String("key", key), slog.Any("err", errs.Loggable(err)))
	}
}

func comparisonCacheKey(uploadID string) string {
	return "comparison:" + uploadID
}
