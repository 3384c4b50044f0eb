package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"options_go/internal/domain"
	"options_go/internal/engine"
	"options_go/internal/event"
	"options_go/internal/execution"
	"options_go/internal/infra"
	"options_go/internal/infra/cache"
	"options_go/internal/infra/feed"
	"options_go/internal/infra/storage"
	"options_go/internal/server"
	"options_go/internal/service"
	"options_go/internal/strategy"
)

// lastRateKey persists the most recent polled rate across restarts.
const lastRateKey = "last_rate"

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Storage   *storage.Storage
	Redis     *cache.RedisCache // nil when no redis_addr is configured or it is unreachable
	Metrics   *infra.Metrics
	Service   *service.PricingService
	Sequencer *engine.Sequencer
	Publisher *event.Publisher
	Paper     *execution.PaperExecution
	Server    *server.Server

	feed  domain.SpotWorker
	rates *infra.RateClient
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and builds every component without starting any goroutine.
func (b *Bootstrap) Initialize(configPath string) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))
	slog.Info("Bootstrapping options engine", slog.String("version", cfg.App.Version))

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("Database initialized", slog.String("path", cfg.Storage.Path))

	// 4. Optional fast tier
	var fast domain.PricingRepository
	if cfg.Storage.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		rc, err := cache.NewRedisCache(ctx, cfg.Storage.RedisAddr, "", 0, time.Duration(cfg.Storage.RedisTTLSec)*time.Second)
		cancel()
		if err != nil {
			slog.Warn("Redis unavailable, using SQLite only", slog.Any("error", err))
		} else {
			b.Redis = rc
			fast = rc
			slog.Info("Redis cache connected", slog.String("addr", cfg.Storage.RedisAddr))
		}
	}
	repo := storage.NewTiered(fast, store)

	// 5. Pricing service
	b.Metrics = infra.GlobalMetrics
	b.Service = service.NewPricingService(service.OptionsFromConfig(cfg), repo, b.Metrics)

	// 6. Book, strategy and sequencer
	positions, err := cfg.Positions()
	if err != nil {
		return err
	}
	symbol := cfg.Book.Symbol
	if symbol == "" {
		symbol = cfg.Feed.Symbol
	}
	var strat strategy.Strategy
	if len(positions) > 0 && symbol != "" {
		strat = strategy.NewDeltaHedgeStrategy(symbol, cfg.Book.HedgeBand)
	}
	b.Sequencer = engine.NewSequencer(engine.Config{
		InboxSize:   1024,
		Symbol:      symbol,
		Positions:   positions,
		InitialRate: b.restoreRate(cfg.Market.Rate),
		DumpPath:    filepath.Join(cfg.Logging.Dir, "panic_dump.json"),
	}, b.Service, strat, b.Metrics, nil)
	if strat != nil {
		b.Paper = execution.NewPaperExecution(cfg.Book.FeeRate)
		b.Sequencer.SetExecutor(b.Paper)
	}
	b.Publisher = event.NewPublisher(b.Sequencer.Inbox())

	// 7. HTTP API
	checks := map[string]server.Pinger{"database": store}
	if b.Redis != nil {
		checks["redis"] = b.Redis
	}
	handler := server.NewHandler(b.Service, b.Metrics, b.Sequencer, checks).WithDefaults(cfg.Market)
	b.Server = server.NewServer(cfg.Server.Addr, handler.Router())

	return nil
}

// restoreRate returns the persisted rate when there is one.
func (b *Bootstrap) restoreRate(fallback float64) float64 {
	m, err := b.Storage.LoadConfigMap()
	if err != nil {
		slog.Warn("Failed to load stored settings", slog.Any("error", err))
		return fallback
	}
	v, ok := m[lastRateKey]
	if !ok {
		return fallback
	}
	r, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("Ignoring malformed stored rate", slog.String("value", v))
		return fallback
	}
	slog.Info("Restored risk-free rate", slog.Float64("rate", r))
	return r
}

// Run starts the sequencer, the gateways and the HTTP server, and blocks until ctx
// is cancelled or the server fails.
func (b *Bootstrap) Run(ctx context.Context) error {
	cfg := b.Config
	event.Warmup()

	// Start Sequencer in its own goroutine (The Hotpath Loop)
	go b.Sequencer.Run(ctx)

	if cfg.Feed.Enabled {
		b.feed = feed.NewWorker(cfg.Feed.WSURL, cfg.Feed.Symbol, b.Publisher, b.Metrics)
		if err := b.feed.Connect(ctx); err != nil {
			slog.Error("Failed to connect spot feed", slog.Any("error", err))
		}
	}

	if cfg.Rates.Enabled {
		b.rates = infra.NewRateClient(b.Publisher, cfg.Rates.URL, cfg.Rates.PollIntervalSec)
		b.rates.OnUpdate(func(r decimal.Decimal) {
			if err := b.Storage.SaveConfig(lastRateKey, r.String()); err != nil {
				slog.Warn("Failed to persist rate", slog.Any("error", err))
			}
		})
		if err := b.rates.Start(ctx); err != nil {
			slog.Error("Failed to start rate client", slog.Any("error", err))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Server.Start()
	}()

	slog.InfoContext(ctx, "Options engine operational", slog.String("addr", cfg.Server.Addr))

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

// Shutdown stops the gateways, drains HTTP and closes the stores.
func (b *Bootstrap) Shutdown(ctx context.Context) error {
	var errs []error
	if b.feed != nil {
		b.feed.Disconnect()
	}
	if b.rates != nil {
		b.rates.Stop()
	}
	if b.Server != nil {
		if err := b.Server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
