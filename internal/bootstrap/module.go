package bootstrap

import (
	"context"
	"log/slog"
	"os"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"cargoledger/internal/bootstrap/config"
	"cargoledger/internal/bootstrap/database"
	"cargoledger/internal/bootstrap/logging"
	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/errs"
	cacheinfra "cargoledger/internal/infrastructure/cache"
	"cargoledger/internal/infrastructure/notify"
	sqliterepo "cargoledger/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "cargoledger/internal/infrastructure/persistence/sqlite/uow"
	"cargoledger/internal/infrastructure/spreadsheet"
	"cargoledger/internal/ports"
	"cargoledger/internal/usecase/ingest"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideLogger),
	fx.Provide(provideDatabase),
	fx.Provide(provideShapes),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewManifestRepository,
			fx.As(new(ports.ManifestRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(
		fx.Annotate(
			spreadsheet.NewParser,
			fx.As(new(ports.ManifestParser)),
		),
	),
	fx.Provide(provideNotifier),
	fx.Provide(provideIngestService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithComponent(p.Ctx, "bootstrap.fx")
	return config.Load(ctx, p.ConfigFile)
}

func provideLogger(cfg config.Config) (*slog.Logger, error) {
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, errs.Wrap(err, "build logger")
	}
	return logger.With(slog.String("app", cfg.App.Name)), nil
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithComponent(ctx, "bootstrap.fx")

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideShapes(cfg config.Config) (manifest.Shapes, error) {
	shapes, err := ingest.LoadShapes(cfg.Ingest.Profile)
	if err != nil {
		return nil, errs.Wrapf(err, "load manifest profile %s", cfg.Ingest.Profile)
	}
	return shapes, nil
}

// provideNotifier connects to NATS when configured. A broker that cannot be
// reached degrades to no notifications.
func provideNotifier(lc fx.Lifecycle, ctx context.Context, cfg config.Config) ports.Notifier {
	if cfg.NATS.URL == "" {
		return notify.Noop{}
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.fx")
	publisher, err := notify.Connect(logCtx, cfg.NATS.URL, cfg.NATS.SubjectPrefix)
	if err != nil {
		logging.Warn(logCtx, "nats unavailable, ingestion events disabled", slog.Any("err", errs.Loggable(err)))
		return notify.Noop{}
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return publisher.Close()
		},
	})
	return publisher
}

type ingestParams struct {
	fx.In

	Config   config.Config
	Repo     ports.ManifestRepository
	UoW      ports.UnitOfWork
	Cache    ports.Cache
	Parser   ports.ManifestParser
	Notifier ports.Notifier
	Shapes   manifest.Shapes
}

func provideIngestService(p ingestParams) (*ingest.Service, error) {
	policy, err := ingest.ParseOrphanPolicy(p.Config.Ingest.OrphanPolicy)
	if err != nil {
		return nil, err
	}
	return ingest.NewService(ingest.Deps{
		Repo:     p.Repo,
		UoW:      p.UoW,
		Cache:    p.Cache,
		Notifier: p.Notifier,
		Parser:   p.Parser,
		Shapes:   p.Shapes,
	}, ingest.Options{
		BatchSize:    p.Config.Ingest.BatchSize,
		MaxRetries:   p.Config.Ingest.MaxRetries,
		RetryInitial: p.Config.Ingest.RetryInitial,
		OrphanPolicy: policy,
	}), nil
}

func provideApp(cfg config.Config, db *gorm.DB, logger *slog.Logger) *App {
	return &App{
		Config: cfg,
		DB:     db,
		Logger: logger,
	}
}
