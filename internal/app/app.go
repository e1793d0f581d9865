package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sundayezeilo/linksnap/internal/auth"
	"github.com/sundayezeilo/linksnap/internal/blob"
	"github.com/sundayezeilo/linksnap/internal/config"
	"github.com/sundayezeilo/linksnap/internal/idgen"
	"github.com/sundayezeilo/linksnap/internal/metrics"
	"github.com/sundayezeilo/linksnap/internal/server"
	"github.com/sundayezeilo/linksnap/internal/shortener"
	"github.com/sundayezeilo/linksnap/internal/users"
	"github.com/sundayezeilo/linksnap/migrations"
	"github.com/sundayezeilo/linksnap/sluggen"
)

// App holds the application dependencies and configuration.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Server *server.Server
	stores Stores
}

// Stores are the persistence backends selected by STORE_DRIVER.
type Stores struct {
	Links shortener.Repository
	Users users.Repository
	Blobs blob.Storage
	close []func() error
}

// Close releases every backend.
func (s Stores) Close() error {
	var errs []error
	for i := len(s.close) - 1; i >= 0; i-- {
		errs = append(errs, s.close[i]())
	}
	return errors.Join(errs...)
}

// MemoryStores keeps everything in process memory.
func MemoryStores() Stores {
	return Stores{
		Links: shortener.NewMemoryRepository(),
		Users: users.NewMemoryRepository(),
		Blobs: blob.NewMemoryStorage(),
	}
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := NewLogger(cfg.App)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	logger.Info("starting application",
		zap.String("env", cfg.App.Environment),
		zap.String("version", cfg.Observability.ServiceVersion),
		zap.String("store", cfg.Store.Driver),
	)

	stores, err := OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open stores: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Observability.MetricsEnabled {
		m = metrics.New(cfg.Observability.ServiceName)
	}

	srv := Wire(cfg, logger, stores, m)

	logger.Info("application initialized",
		zap.String("port", cfg.Server.Port),
		zap.String("base_url", cfg.Server.BaseURL),
	)

	return &App{Config: cfg, Logger: logger, Server: srv, stores: stores}, nil
}

// Wire builds services and handlers on top of stores and returns the
// server routing to them.
func Wire(cfg *config.Config, logger *zap.Logger, stores Stores, m *metrics.Metrics) *server.Server {
	reserved := shortener.NewReservedSet(cfg.Server.BasePath)
	logger.Debug("reserved path segments", zap.Strings("names", reserved.Names()))

	publicURL := cfg.Blob.PublicURL
	if publicURL == "" {
		publicURL = cfg.Server.BaseURL
	}
	blobs := blob.NewService(blob.ServiceConfig{
		Storage:   stores.Blobs,
		IDs:       idgen.New(idgen.V7),
		PublicURL: publicURL,
		MaxBytes:  cfg.Blob.MaxBytes,
		Logger:    logger.Named("blob"),
		Metrics:   m,
	})

	links := shortener.NewService(stores.Links, &shortener.ServiceConfig{
		SlugGenerator: sluggen.New(cfg.Links.SlugGenerator),
		SlugLength:    cfg.Links.SlugLength,
		Reserved:      reserved,
		Blobs:         blobs,
		Logger:        logger.Named("shortener"),
		Metrics:       m,
	})

	tokens := auth.New(auth.Config{
		Secret:  cfg.Auth.JWTSecret,
		TTL:     cfg.Auth.TokenTTL,
		Issuer:  cfg.Observability.ServiceName,
		Require: cfg.Auth.RequireToken,
	})
	var issuer users.TokenIssuer
	if cfg.Auth.JWTSecret != "" {
		issuer = tokens
	}

	accounts := users.NewService(stores.Users, &users.ServiceConfig{
		IDs:    idgen.New(idgen.V4),
		Logger: logger.Named("users"),
	})

	return server.New(cfg, logger, server.Deps{
		Links: shortener.NewHandler(shortener.HandlerConfig{
			Service:    links,
			Logger:     logger.Named("shortener"),
			BaseURL:    cfg.Server.BaseURL,
			Authorizer: tokens,
			BlobURLs:   blobs,
			Reserved:   reserved,
			Metrics:    m,
		}),
		Users:      users.NewHandler(accounts, issuer, logger.Named("users")),
		Blobs:      blob.NewHandler(blobs, tokens, logger.Named("blob")),
		Metrics:    m,
		LinkStore:  links,
		UserStore:  accounts,
		Background: links,
	})
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown closes the stores and flushes the logger.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	err := a.stores.Close()
	if err != nil {
		a.Logger.Error("failed to close stores", zap.Error(err))
	}
	_ = a.Logger.Sync()
	return err
}

// NewLogger builds a JSON logger, or a console logger in development.
func NewLogger(cfg config.AppConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Environment == "development" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("env", cfg.Environment)), nil
}

// OpenStores opens the backends named by cfg.Store.Driver. With postgres,
// links and users live in the database and uploaded files in the bolt file.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Stores, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return MemoryStores(), nil

	case config.DriverBolt:
		db, err := openBolt(cfg.Store.BoltPath, logger)
		if err != nil {
			return Stores{}, err
		}
		stores, err := boltStores(db)
		if err != nil {
			_ = db.Close()
			return Stores{}, err
		}
		return stores, nil

	case config.DriverPostgres:
		if err := migrations.Up(cfg.Database.URL()); err != nil {
			return Stores{}, fmt.Errorf("failed to migrate database: %w", err)
		}
		pool, err := connectDatabase(ctx, cfg, logger)
		if err != nil {
			return Stores{}, fmt.Errorf("failed to connect to database: %w", err)
		}
		db, err := openBolt(cfg.Store.BoltPath, logger)
		if err != nil {
			pool.Close()
			return Stores{}, err
		}
		blobs, err := blob.NewBoltStorage(db)
		if err != nil {
			_ = db.Close()
			pool.Close()
			return Stores{}, err
		}
		return Stores{
			Links: shortener.NewPostgresRepository(pool),
			Users: users.NewPostgresRepository(pool),
			Blobs: blobs,
			close: []func() error{
				func() error { pool.Close(); return nil },
				db.Close,
			},
		}, nil

	default:
		return Stores{}, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openBolt(path string, logger *zap.Logger) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt file %s: %w", path, err)
	}
	logger.Info("bolt store opened", zap.String("path", path))
	return db, nil
}

func boltStores(db *bolt.DB) (Stores, error) {
	links, err := shortener.NewBoltRepository(db)
	if err != nil {
		return Stores{}, err
	}
	accounts, err := users.NewBoltRepository(db)
	if err != nil {
		return Stores{}, err
	}
	blobs, err := blob.NewBoltStorage(db)
	if err != nil {
		return Stores{}, err
	}
	return Stores{
		Links: links,
		Users: accounts,
		Blobs: blobs,
		close: []func() error{db.Close},
	}, nil
}

// connectDatabase establishes a connection to the PostgreSQL database.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		zap.String("host", cfg.Database.Host),
		zap.String("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Name),
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")
	return pool, nil
}
