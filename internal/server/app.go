// Package server initializes and runs the auth server: it opens storage,
// applies migrations, builds the services and runs the REST and gRPC
// servers plus the expiry sweeper until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dmitrijs2005/hotelauth/internal/logging"
	"github.com/dmitrijs2005/hotelauth/internal/server/config"
	"github.com/dmitrijs2005/hotelauth/internal/server/httpapi"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/memory"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/repomanager"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/hotelauth/internal/server/grpc"
)

const dbConnectAttempts = 5

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   *redis.Client
	stack   *Stack
	limiter httpapi.Limiter
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, m, err := openStorage(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{
		config: c,
		logger: logger,
		db:     db,
		stack:  NewStack(db, m, c, logger),
	}

	if c.RedisURL != "" {
		rc, err := httpapi.OpenRedis(ctx, c.RedisURL)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		app.redis = rc
		app.limiter = httpapi.NewRedisLimiter(rc, c.RateLimit, c.RateWindow)
	} else if c.RateLimit > 0 {
		app.limiter = httpapi.NewMemoryLimiter(c.RateLimit, c.RateWindow)
	}

	return app, nil
}

// openStorage returns the database and repositories selected by the DSN:
// "memory://" keeps everything in process, anything else is Postgres.
func openStorage(ctx context.Context, c *config.Config, logger logging.Logger) (*sql.DB, repomanager.RepositoryManager, error) {
	if c.DatabaseDSN == memory.DSN {
		logger.Warn(ctx, "using in-memory storage, all data is lost on exit")
		db, err := memory.OpenTxDB()
		if err != nil {
			return nil, nil, err
		}
		return db, memory.NewManager(nil), nil
	}

	db, err := connectPostgres(ctx, c.DatabaseDSN, logger)
	if err != nil {
		return nil, nil, err
	}
	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return db, m, nil
}

func connectPostgres(ctx context.Context, dsn string, logger logging.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, db.PingContext(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(dbConnectAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn(ctx, "database not ready, retrying", "error", err, "retry_in", next)
		}),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.stack.Sessions)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.HTTPAddr, app.logger, app.stack.HTTPServices(), app.limiter)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.stack.Sweeper.Run(ctx, app.config.SweepInterval)
	}()

	wg.Wait()

	app.close()
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(context.Background(), "close redis", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "close db", "error", err)
	}
}
