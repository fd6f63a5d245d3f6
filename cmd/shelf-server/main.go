// Command shelf-server starts the reference catalog backend and its development identity provider.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/and161185/bookshelf/internal/config"
	"github.com/and161185/bookshelf/internal/limiter"
	"github.com/and161185/bookshelf/internal/logging"
	"github.com/and161185/bookshelf/internal/metrics"
	"github.com/and161185/bookshelf/internal/migrate"
	"github.com/and161185/bookshelf/internal/model"
	"github.com/and161185/bookshelf/internal/repository"
	"github.com/and161185/bookshelf/internal/repository/memory"
	"github.com/and161185/bookshelf/internal/repository/postgres"
	"github.com/and161185/bookshelf/internal/server/httpapi"
	"github.com/and161185/bookshelf/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

type storage struct {
	books repository.BookRepository
	users repository.UserRepository
	lim   limiter.Limiter
	ping  func(context.Context) error
	close func()
}

func openStorage(ctx context.Context, cfg *config.Server) (*storage, error) {
	policy := limiter.Policy{Window: cfg.LoginWindow, MaxFails: cfg.LoginMaxFails, BlockFor: cfg.LoginBlockFor}
	if cfg.Storage == "memory" {
		return &storage{
			books: memory.NewBookRepo(),
			users: memory.NewUserRepo(),
			lim:   limiter.NewMemory(policy),
			close: func() {},
		}, nil
	}

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		return nil, err
	}
	db, err := postgres.New(ctx, cfg.DSN, 0)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return &storage{
		books: postgres.NewBookRepo(db),
		users: postgres.NewUserRepo(db),
		lim:   limiter.NewPG(db.Pool, policy),
		ping:  db.Ping,
		close: db.Close,
	}, nil
}

// main loads configuration, prepares storage and serves HTTP until SIGINT/SIGTERM.
func main() {
	cfgPath := flag.String("config", "", "YAML config file (default $"+config.PathEnv+")")
	addr := flag.String("addr", "", "listen address, overrides config")
	flag.Parse()

	cfg, err := config.LoadServer(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}
	defer st.close()

	authSvc := service.NewAuthService(st.users, []byte(cfg.JWTKey), cfg.AccessTTL, cfg.Realm, st.lim)
	if cfg.SeedAdmin != "" {
		if err := authSvc.SeedAdmin(ctx, cfg.SeedAdmin, model.RoleAdmin); err != nil {
			logger.Fatal("seed admin", zap.Error(err))
		}
	}
	bookSvc := service.NewBookService(st.books)

	opts := []httpapi.Option{httpapi.WithMetrics(metrics.New())}
	if st.ping != nil {
		opts = append(opts, httpapi.WithHealthCheck(st.ping))
	}
	api := httpapi.New(httpapi.Config{Realm: cfg.Realm, ClientID: cfg.ClientID}, bookSvc, authSvc, logger, opts...)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			st.close()
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
