package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcoot/duelsync-go/internal/api"
	"github.com/mcoot/duelsync-go/internal/config"
	"github.com/mcoot/duelsync-go/internal/dependencies/clock"
	"github.com/mcoot/duelsync-go/internal/dependencies/random"
	"github.com/mcoot/duelsync-go/internal/eventloop"
	"github.com/mcoot/duelsync-go/internal/services/directory"
	"github.com/mcoot/duelsync-go/internal/services/gameplay"
	"github.com/mcoot/duelsync-go/internal/services/session"
	"github.com/mcoot/duelsync-go/internal/services/tick"
	"github.com/mcoot/duelsync-go/internal/storage"
	"github.com/mcoot/duelsync-go/internal/storage/memory"
	redisstorage "github.com/mcoot/duelsync-go/internal/storage/redis"
	"github.com/mcoot/duelsync-go/internal/web/ws"
)

// Storage type constants
const (
	StorageTypeMemory = config.StorageTypeMemory
	StorageTypeRedis  = config.StorageTypeRedis
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Loop      *eventloop.Loop
	Directory *directory.Directory
	Registry  *session.Registry
	Gameplay  *gameplay.Handler
	WebSocket *ws.Server

	// Router serves /ws and /api/v1
	Router http.Handler

	logger        *slog.Logger
	sweepInterval time.Duration
	sweepTimer    clock.Timer
	stopped       bool

	stopLoop      context.CancelFunc
	stopDirectory context.CancelFunc
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// TickPeriod is the nominal time between simulation passes (optional)
	TickPeriod time.Duration
	// MaxSpeed caps client velocity; zero disables the cap
	MaxSpeed float64
	// IdleTimeout evicts sessions with no open connection; zero never evicts
	IdleTimeout time.Duration
	// SweepInterval is how often eviction runs when IdleTimeout is set
	SweepInterval time.Duration
	// AllowedOrigins is passed to the websocket origin check
	AllowedOrigins []string
}

// ConfigFrom maps environment settings onto a factory Config
func ConfigFrom(cfg config.Config, logger *slog.Logger) Config {
	out := Config{
		Logger:         logger,
		StorageType:    cfg.StorageType,
		TickPeriod:     cfg.TickPeriod(),
		MaxSpeed:       cfg.MaxSpeed,
		IdleTimeout:    cfg.SessionIdleTimeout,
		SweepInterval:  cfg.SweepInterval,
		AllowedOrigins: cfg.AllowedOrigins,
	}
	if cfg.StorageType == StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		redisCfg.SessionTTL = cfg.RecordTTL
		out.RedisConfig = &redisCfg
	}
	return out
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	return newWithDependencies(store, clock.New(), random.New(), cfg), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, cfg Config) *App {
	logger := cfg.Logger
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = tick.PeriodForRate(tick.DefaultRate)
	}

	var policy session.EvictionPolicy = session.NeverEvict{}
	if cfg.IdleTimeout > 0 {
		policy = session.IdleTimeout{Timeout: cfg.IdleTimeout}
	}

	loop := eventloop.New(logger, eventloop.DefaultQueueSize)
	dir := directory.New(store, directory.Config{}, logger)
	registry := session.NewRegistry(clk, rnd, loop, session.Config{
		TickPeriod:    cfg.TickPeriod,
		Policy:        policy,
		ProgressEvery: progressEvery(cfg.TickPeriod),
	}, logger)
	gameplayHandler := gameplay.NewHandler(registry, clk, dir, gameplay.Config{MaxSpeed: cfg.MaxSpeed}, logger)
	wsServer := ws.NewServer(loop, gameplayHandler, ws.Config{AllowedOrigins: cfg.AllowedOrigins}, logger)

	router := api.NewRouter(api.RouterConfig{
		Logger:    logger,
		Directory: dir,
		WebSocket: wsServer,
	})

	app := &App{
		Storage:   store,
		Clock:     clk,
		Random:    rnd,
		Loop:      loop,
		Directory: dir,
		Registry:  registry,
		Gameplay:  gameplayHandler,
		WebSocket: wsServer,
		Router:    router,
		logger:    logger.With(slog.String("component", "app")),
	}
	if cfg.IdleTimeout > 0 {
		app.sweepInterval = cfg.SweepInterval
	}
	return app
}

// Start runs the event loop and directory writer in the background and schedules eviction sweeps
func (a *App) Start() {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	dirCtx, stopDirectory := context.WithCancel(context.Background())
	a.stopLoop = stopLoop
	a.stopDirectory = stopDirectory

	go a.Loop.Run(loopCtx)
	go a.Directory.Run(dirCtx)

	if a.sweepInterval > 0 {
		a.Loop.Do(a.scheduleSweep)
	}
}

// scheduleSweep arms the next eviction sweep. It runs as a loop turn.
func (a *App) scheduleSweep() {
	if a.stopped {
		return
	}
	a.sweepTimer = a.Clock.AfterFunc(a.sweepInterval, func() {
		a.Loop.Do(func() {
			if a.stopped {
				return
			}
			if evicted := a.Registry.Sweep(a.Clock.Now()); len(evicted) > 0 {
				a.logger.Info("idle sessions evicted", slog.Int("count", len(evicted)))
			}
			a.scheduleSweep()
		})
	})
}

// Shutdown closes every websocket, stops all tick runners, then stops the event loop and drains
// pending directory writes. The HTTP server should already be shut down.
func (a *App) Shutdown(ctx context.Context) error {
	a.WebSocket.Shutdown()

	err := a.Loop.Call(ctx, func() {
		a.stopped = true
		if a.sweepTimer != nil {
			a.sweepTimer.Stop()
		}
		a.Registry.Shutdown()
	})
	if err != nil && !errors.Is(err, eventloop.ErrStopped) {
		a.logger.Warn("session shutdown incomplete", slog.String("error", err.Error()))
	}

	if a.stopLoop != nil {
		a.stopLoop()
		select {
		case <-a.Loop.Done():
		case <-ctx.Done():
			return fmt.Errorf("stop event loop: %w", ctx.Err())
		}
	}

	if a.stopDirectory != nil {
		a.stopDirectory()
		select {
		case <-a.Directory.Done():
		case <-ctx.Done():
			return fmt.Errorf("drain directory: %w", ctx.Err())
		}
	}

	if closer, ok := a.Storage.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close storage: %w", err)
		}
	}
	return nil
}

// progressEvery is the number of passes in roughly one second of play
func progressEvery(period time.Duration) uint64 {
	if n := uint64(time.Second / period); n > 0 {
		return n
	}
	return 1
}
