// Package control assembles the thinking stack from configuration and
// manages its lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/config"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/core/domain"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/budget"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/cache"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/provider"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/resilience"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/storage"
	storagememory "github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/storage/memory"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/storage/postgres"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/thinking/engine"
	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/thinking/scheduler"
)

// App owns every component of the thinking stack.
type App struct {
	cfg      *config.AppConfig
	engine   *engine.Engine
	registry *resilience.Registry
	coord    *cache.Coordinator
	tracker  *budget.Tracker
	db       *postgres.DB
	server   *http.Server
	group    *errgroup.Group
	log      *slog.Logger
}

// NewApp wires all components from configuration. Breaker and cache
// registries are owned here and injected downward; nothing is ambient.
func NewApp(cfg *config.AppConfig) (*App, error) {
	log := slog.Default()

	// 1. Storage
	var repo storage.ConversationRepository
	var db *postgres.DB
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		repo = postgres.NewConversationRepo(db)
		log.Info("Using PostgreSQL conversation storage")
	} else {
		repo = storagememory.NewRepository()
		log.Info("Using in-memory conversation storage")
	}

	// 2. Cache backend + coordinator
	backend, err := buildCacheBackend(cfg.Cache)
	if err != nil {
		return nil, err
	}
	coord := cache.NewCoordinator(backend, cfg.Cache.TTL, log)

	// 3. Resilience stack
	registry := resilience.NewRegistry(cfg.Resilience.Breaker)
	exec := resilience.NewCallExecutor(registry, resilience.ExecutorConfig{
		Breaker:      cfg.Resilience.Breaker,
		Retry:        cfg.Resilience.Retry,
		Hedge:        cfg.Resilience.Hedge,
		CallDeadline: cfg.Resilience.CallDeadline,
	})

	// 4. Upstream provider
	gen, err := buildProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	// 5. Budget + scheduler + engine
	tracker := budget.NewTracker(cfg.Budget)

	engineCfg := cfg.Thinking.Engine
	engineCfg.Params = domain.GenParams{
		Model:       cfg.Provider.Model,
		Temperature: cfg.Thinking.Temperature,
		MaxTokens:   cfg.Thinking.MaxTokens,
	}

	sched := scheduler.New(gen, exec, coord, engine.HeuristicEvaluator{}, cfg.Thinking.Scheduler, log)
	eng, err := engine.New(sched, nil, repo, tracker, registry, cfg.Thinking.Scheduler.Fanout, engineCfg, log)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		engine:   eng,
		registry: registry,
		coord:    coord,
		tracker:  tracker,
		db:       db,
		log:      log,
	}, nil
}

func buildCacheBackend(cfg config.CacheConfig) (cache.Backend, error) {
	switch cfg.Backend {
	case "memory", "":
		return cache.NewMemory(cfg.Memory), nil
	case "redis":
		return cache.NewRedis(cfg.Redis)
	case "badger":
		return cache.NewBadger(cfg.Badger)
	case "layered":
		// Memory in front; redis if configured, badger otherwise.
		var outer cache.Backend
		var err error
		if cfg.Redis.URL != "" {
			outer, err = cache.NewRedis(cfg.Redis)
		} else {
			outer, err = cache.NewBadger(cfg.Badger)
		}
		if err != nil {
			return nil, err
		}
		return cache.NewLayered(cache.NewMemory(cfg.Memory), outer, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func buildProvider(cfg provider.Config) (provider.Generator, error) {
	switch cfg.Type {
	case "openai", "":
		return provider.NewOpenAI(cfg), nil
	case "mock":
		return provider.NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

// Engine exposes the refinement engine.
func (a *App) Engine() *engine.Engine { return a.engine }

// Status is a point-in-time operational snapshot.
type Status struct {
	Breakers []resilience.BreakerSnapshot
	Cache    cache.Stats
	Budget   budget.UsageStats
}

// Status reports breaker, cache, and budget state.
func (a *App) Status() Status {
	return Status{
		Breakers: a.registry.Snapshot(),
		Cache:    a.coord.Stats(),
		Budget:   a.tracker.Usage(),
	}
}

// Start launches the health/metrics listener.
func (a *App) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if a.db != nil {
			if err := a.db.Health(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.group, _ = errgroup.WithContext(ctx)
	a.group.Go(func() error {
		a.log.Info("Health listener started", "port", a.cfg.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	return nil
}

// Stop shuts everything down gracefully.
func (a *App) Stop(ctx context.Context) error {
	var firstErr error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := a.group.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.coord.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
