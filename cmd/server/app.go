package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Lixing-Zhang/warehouse-pos/internal/backend"
	"github.com/Lixing-Zhang/warehouse-pos/internal/composer"
	"github.com/Lixing-Zhang/warehouse-pos/internal/config"
	"github.com/Lixing-Zhang/warehouse-pos/internal/events"
	"github.com/Lixing-Zhang/warehouse-pos/internal/handlers"
	"github.com/Lixing-Zhang/warehouse-pos/internal/middleware"
	"github.com/Lixing-Zhang/warehouse-pos/internal/repository"
	"github.com/Lixing-Zhang/warehouse-pos/internal/service"
	"github.com/Lixing-Zhang/warehouse-pos/internal/session"
)

const sweepInterval = time.Minute

// app holds the wired dependencies of the server
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	checks map[string]handlers.Checker

	orderService *service.OrderService
	stockService *service.StockService

	closers []func()
}

// newApp connects to every configured dependency. Close releases them.
func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{
		cfg:    cfg,
		log:    log,
		checks: make(map[string]handlers.Checker),
	}

	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout,
		backend.WithToken(cfg.Backend.Token),
		backend.WithLogger(log),
	)

	stock, err := a.stockRepository(ctx, client)
	if err != nil {
		a.Close()
		return nil, err
	}

	store, err := a.sessionStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	publisher, err := a.publisher()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.orderService = service.NewOrderService(client, stock, client, store, publisher, composer.Options{
		DefaultTerminalID: cfg.Composer.DefaultTerminalID,
		StockCheckTimeout: cfg.Composer.StockCheckTimeout,
		SubmitTimeout:     cfg.Composer.SubmitTimeout,
		Logger:            log,
	})
	a.stockService = service.NewStockService(stock)
	return a, nil
}

func (a *app) stockRepository(ctx context.Context, client *backend.Client) (repository.StockRepository, error) {
	switch a.cfg.Stock.Source {
	case config.StockSourcePostgres:
		pool, err := repository.OpenPool(ctx, a.cfg.Stock.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("stock database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.checks["postgres"] = pool.Ping
		a.log.Info("checking stock against postgres")
		return repository.NewPostgresStockRepository(pool), nil
	case config.StockSourceMemory:
		a.log.Warn("using seeded in-memory stock, not for production")
		return repository.NewSeededStockRepository(), nil
	default:
		return client, nil
	}
}

func (a *app) sessionStore(ctx context.Context) (session.Store, error) {
	if a.cfg.Session.Store == config.SessionStoreRedis {
		store, err := session.NewRedisStore(a.cfg.Session.RedisURL, a.cfg.Session.TTL)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		a.closers = append(a.closers, func() { store.Close() })
		a.checks["redis"] = store.Ping
		a.log.Info("storing sessions in redis", "ttl", a.cfg.Session.TTL)
		return store, nil
	}

	store := session.NewMemoryStore(a.cfg.Session.TTL)
	sweepCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if n := store.Sweep(); n > 0 {
					a.log.Debug("expired sessions removed", "count", n)
				}
			}
		}
	}()
	a.closers = append(a.closers, cancel)
	return store, nil
}

func (a *app) publisher() (events.Publisher, error) {
	if a.cfg.Events.RabbitMQURL == "" {
		a.log.Info("order events disabled, RABBITMQ_URL not set")
		return events.Noop{}, nil
	}

	p, err := events.NewRabbitMQPublisher(a.cfg.Events.RabbitMQURL, a.cfg.Events.Exchange, a.log)
	if err != nil {
		return nil, fmt.Errorf("order events: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := p.Close(); err != nil {
			a.log.Warn("failed to close rabbitmq publisher", "error", err)
		}
	})
	a.log.Info("publishing order events", "exchange", a.cfg.Events.Exchange)
	return p, nil
}

// Close releases dependencies in reverse order. It is safe to call twice.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Router builds the HTTP routes
func (a *app) Router() http.Handler {
	healthHandler := handlers.NewHealthHandler(a.log, a.checks)
	orderHandler := handlers.NewOrderHandler(a.orderService, a.log)
	stockHandler := handlers.NewStockHandler(a.stockService, a.log)

	r := chi.NewRouter()

	// Apply middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(a.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", middleware.APIKeyHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Register health check endpoint
	r.Get("/health", healthHandler.ServeHTTP)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(a.cfg.Auth))

		orderHandler.Routes(r)
		r.Get("/stock", stockHandler.GetStock)
	})

	return r
}
