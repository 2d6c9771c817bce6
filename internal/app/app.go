package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/trunov/convo/cmd/migrate"
	"github.com/trunov/convo/internal/artifact"
	"github.com/trunov/convo/internal/cache"
	"github.com/trunov/convo/internal/config"
	"github.com/trunov/convo/internal/processor"
	"github.com/trunov/convo/internal/queue"
	"github.com/trunov/convo/internal/r2"
	"github.com/trunov/convo/internal/redisholder"
	"github.com/trunov/convo/internal/repository/storage"
	"github.com/trunov/convo/internal/transport/handler"
	"github.com/trunov/convo/internal/transport/router"
	use_case "github.com/trunov/convo/internal/use-case"
)

type App struct {
	HttpServer *http.Server

	shutdownTimeout time.Duration
	closers         []func()
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{shutdownTimeout: cfg.Server.ShutdownTimeout}

	reencoder := processor.New(processor.Options{
		JPEGQuality: cfg.Converter.JPEGQuality,
		WebPQuality: cfg.Converter.WebPQuality,
		MaxPixels:   cfg.Converter.MaxPixels,
	})

	var holder *redisholder.Holder
	if cfg.Artifacts.Backend == "redis" || cfg.Jobs.Enabled {
		h, err := redisholder.Build(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		holder = h
		a.closers = append(a.closers, func() { _ = holder.Close() })
	}

	ttl := artifact.EffectiveTTL(cfg.Artifacts.TTL)

	var store artifact.Store
	switch cfg.Artifacts.Backend {
	case "redis":
		store = cache.NewCache(cfg.Artifacts.Namespace, holder, ttl)
	case "memory", "":
		store = artifact.NewMemoryStore(cfg.Artifacts.MaxEntries, ttl)
	default:
		a.Close()
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Artifacts.Backend)
	}

	artifacts := artifact.NewManager(store, ttl, cfg.Artifacts.URLPrefix)
	uc := use_case.New(reencoder, artifacts)

	if cfg.Jobs.Enabled {
		if err := migrate.Migrate(cfg.Database.DSN, migrate.Migrations); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}

		repo, err := storage.New(ctx, cfg.Database.DSN)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, repo.Close)

		r2Storage, err := r2.NewStorage(&cfg.R2)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, r2Storage.Close)

		producer := queue.Init(ctx, holder, cfg.Jobs, r2Storage, reencoder, repo)
		uc.WithJobs(repo, r2Storage, producer)
	}

	h := handler.New(uc, cfg)
	r := router.NewRouter(h)

	a.HttpServer = &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

// Run serves until ctx is done, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("component", "app").Str("addr", a.HttpServer.Addr).Msg("starting server")
		errCh <- a.HttpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		a.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Str("component", "app").Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	err := a.HttpServer.Shutdown(shutdownCtx)
	a.Close()
	return err
}

// Close releases backing resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
