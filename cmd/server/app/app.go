// Package app contains the main entrypoint for the server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/starquake/quizdocs/internal/config"
	"github.com/starquake/quizdocs/internal/db"
	"github.com/starquake/quizdocs/internal/logging"
	"github.com/starquake/quizdocs/internal/server"
	"github.com/starquake/quizdocs/internal/store"
	"github.com/starquake/quizdocs/internal/store/redisstore"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Run parses the configuration, opens the configured document store and serves HTTP until ctx is canceled.
// If ln is nil Run listens on the configured host and port.
func Run(
	ctx context.Context,
	getenv func(string) string,
	stdout io.Writer,
	ln net.Listener,
) error {
	cfg, logger, err := setup(getenv, stdout)
	if err != nil {
		return err
	}

	stores, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		msg := "error opening store"
		logger.Error(ctx, msg, logging.ErrAttr(err))

		return fmt.Errorf("%s: %w", msg, err)
	}
	defer func() {
		if closeErr := closeStores(); closeErr != nil {
			logger.Error(ctx, "error closing store", logging.ErrAttr(closeErr))
		}
	}()

	if ln == nil {
		listenConfig := &net.ListenConfig{}
		ln, err = listenConfig.Listen(ctx, "tcp", net.JoinHostPort(cfg.Host, cfg.Port))
		if err != nil {
			return fmt.Errorf("error listening on %s:%s: %w", cfg.Host, cfg.Port, err)
		}
	}

	httpServer := &http.Server{
		ReadHeaderTimeout: readHeaderTimeout,
		Handler:           server.NewServer(logger, stores),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(gCtx, "listening on "+ln.Addr().String(),
			logging.String("addr", ln.Addr().String()),
			logging.String("store", cfg.StoreDriver),
		)
		if serveErr := httpServer.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("error listening and serving: %w", serveErr)
		}

		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		// make a new context for the Shutdown
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			return fmt.Errorf("error shutting down server: %w", shutdownErr)
		}
		logger.Info(shutdownCtx, "server stopped")

		return nil
	})

	if err = g.Wait(); err != nil {
		logger.Error(ctx, "server error", logging.ErrAttr(err))

		return err
	}

	return nil
}

// Migrate applies the SQLite schema migrations. The Redis store has no schema, so there is nothing to do for it.
func Migrate(ctx context.Context, getenv func(string) string, stdout io.Writer) error {
	cfg, logger, err := setup(getenv, stdout)
	if err != nil {
		return err
	}

	if cfg.StoreDriver != config.StoreDriverSQLite {
		logger.Info(ctx, "store has no schema to migrate", logging.String("store", cfg.StoreDriver))

		return nil
	}

	conn, err := db.Open(ctx, cfg.DBURI, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
	if err != nil {
		return fmt.Errorf("error opening database connection: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Error(ctx, "error closing database connection", logging.ErrAttr(closeErr))
		}
	}()

	version, err := db.Migrate(ctx, conn)
	if err != nil {
		msg := "error migrating database"
		logger.Error(ctx, msg, logging.ErrAttr(err))

		return fmt.Errorf("%s: %w", msg, err)
	}
	logger.Info(ctx, "database migrated", logging.Any("version", version))

	return nil
}

func setup(getenv func(string) string, stdout io.Writer) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Parse(getenv)
	if err != nil {
		msg := "error parsing config"
		logging.NewLogger(stdout).Error(context.Background(), msg, logging.ErrAttr(err))

		return nil, nil, fmt.Errorf("%s: %w", msg, err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing log level: %w", err)
	}

	return cfg, logging.NewLoggerWithLevel(stdout, level), nil
}

// openStores connects to the configured document store. The returned function releases the connection.
func openStores(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*store.Stores, func() error, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()

			return nil, nil, fmt.Errorf("error connecting to redis: %w", err)
		}

		return redisstore.New(client, logger), client.Close, nil
	default:
		conn, err := db.Open(ctx, cfg.DBURI, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening database connection: %w", err)
		}

		if _, err = db.Migrate(ctx, conn); err != nil {
			_ = conn.Close()

			return nil, nil, fmt.Errorf("error migrating database: %w", err)
		}

		return store.New(conn, logger), conn.Close, nil
	}
}
