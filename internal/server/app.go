// Package server wires the gateway together: database and migrations, token
// authenticator and deny-list, per-user storage factory, album registry,
// metrics and the HTTP API. Run serves until SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/photogate/internal/cryptox"
	"github.com/dmitrijs2005/photogate/internal/logging"
	"github.com/dmitrijs2005/photogate/internal/server/albums"
	"github.com/dmitrijs2005/photogate/internal/server/auth"
	"github.com/dmitrijs2005/photogate/internal/server/config"
	"github.com/dmitrijs2005/photogate/internal/server/httpapi"
	"github.com/dmitrijs2005/photogate/internal/server/metrics"
	"github.com/dmitrijs2005/photogate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/photogate/internal/server/services"
	"github.com/dmitrijs2005/photogate/internal/server/storage"
	"github.com/redis/go-redis/v9"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   *redis.Client
	server  *httpapi.Server
	metrics *metrics.Metrics
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	vault, err := cryptox.NewVaultFromHex(c.CredentialsKey)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("credentials key: %w", err)
	}

	app := &App{config: c, logger: logger, db: db, metrics: metrics.New()}

	var denylist auth.Denylist = auth.NewMemoryDenylist()
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		denylist = auth.NewRedisDenylist(app.redis)
	}

	tokens, err := auth.NewAuthenticator([]byte(c.SecretKey), c.AccessTokenValidityDuration, auth.WithDenylist(denylist))
	if err != nil {
		app.close()
		return nil, err
	}

	userService := services.NewUserService(db, rm, tokens, vault)
	registry := newRegistry(c, logger, app.metrics)
	if c.RegistryLegacyWrites {
		logger.Warn(ctx, "album registry writes are unconditional; concurrent uploads may lose albums")
	}

	deps := httpapi.Deps{
		Users:          userService,
		Gallery:        services.NewGalleryService(registry),
		Tokens:         tokens,
		Stores:         storage.NewFactory(userService, vault),
		Metrics:        app.metrics,
		Logger:         logger,
		BaseURL:        c.PublicBaseURL,
		SetupPath:      c.SetupPath,
		AllowedOrigins: c.AllowedOrigins(),
	}

	if c.S3PublicBucket != "" {
		public, err := storage.NewRootStore(ctx, c)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("public store: %w", err)
		}
		deps.PublicStore = public
	}

	app.server = httpapi.NewServer(c.HTTPAddr, httpapi.NewRouter(deps), logger, c.ReadTimeout, c.WriteTimeout)
	return app, nil
}

// newRegistry builds the album registry. Conditional writes are the default;
// RegistryLegacyWrites is for stores that reject conditional PUT headers.
func newRegistry(c *config.Config, logger logging.Logger, m *metrics.Metrics) *albums.Registry {
	opts := []albums.Option{
		albums.WithLogger(logger),
		albums.WithRetryHook(m.RecordRegistryRetry),
	}
	if c.RegistryLegacyWrites {
		opts = append(opts, albums.WithLegacyWrites())
	}
	return albums.NewRegistry(opts...)
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

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) close() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(context.Background(), "redis close", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(context.Background(), "db close", "error", err)
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.close()
	app.logger.Info(context.Background(), "App stopped")
}
