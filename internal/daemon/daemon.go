package daemon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/studyquest/studyquest/internal/api"
	"github.com/studyquest/studyquest/internal/app/engagement"
	"github.com/studyquest/studyquest/internal/app/jobs"
	"github.com/studyquest/studyquest/internal/app/progress"
	"github.com/studyquest/studyquest/internal/domain"
	"github.com/studyquest/studyquest/internal/health"
	"github.com/studyquest/studyquest/internal/infra/genai"
	"github.com/studyquest/studyquest/internal/infra/mongo"
	"github.com/studyquest/studyquest/internal/infra/postgres"
	"github.com/studyquest/studyquest/internal/infra/rediscache"
	"github.com/studyquest/studyquest/internal/infra/sqlite"
	"github.com/studyquest/studyquest/internal/security"
)

// backend is what every store driver provides.
type backend interface {
	domain.ProgressStore
	domain.SnapshotScanner
	domain.HistoryLog
	domain.Pinger
	io.Closer
}

// Daemon is the studyquest server runtime. It wires together all services.
type Daemon struct {
	Config    Config
	Store     backend
	Progress  domain.ProgressStore // Store, or the Redis cache in front of it
	Engine    *engagement.Engine
	Workspace *progress.StoreWorkspace
	Service   *progress.Service
	Tokens    *security.Tokens
	Scheduler *jobs.Scheduler
	Health    *health.Checker
	Server    *api.Server

	closers []io.Closer
	cancel  context.CancelFunc
}

// New loads configuration and creates a Daemon.
func New(ctx context.Context) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(ctx context.Context, cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	d := &Daemon{Config: cfg}

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	d.Store = store
	d.Progress = store
	d.closers = append(d.closers, store)

	d.Health = health.NewChecker(parseDuration(cfg.Telemetry.HealthInterval, health.DefaultInterval)).
		AddPinger("store:"+cfg.Store.Driver, store)
	if cfg.Store.Driver == DriverSQLite {
		d.Health.AddDataDir(cfg.Store.Dir)
	}

	if cfg.Redis.Enabled {
		rdb, err := rediscache.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			d.Close()
			return nil, err
		}
		cache := rediscache.New(rdb, store, parseDuration(cfg.Redis.TTL, rediscache.DefaultTTL))
		d.Progress = cache
		d.closers = append(d.closers, rdb)
		d.Health.AddPinger("redis", cache)
	}

	d.Engine = cfg.NewEngine()

	// Progress service
	ws := progress.NewStoreWorkspace(d.Progress, d.Engine.NewSnapshot)
	d.Workspace = ws
	opts := []progress.Option{progress.WithHistory(store)}
	ai := genai.New(genai.Config{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: parseDuration(cfg.AI.Timeout, 60*time.Second),
	})
	if ai.IsConfigured() {
		opts = append(opts, progress.WithGenerator(ai))
	}
	d.Service = progress.NewService(d.Engine, ws, opts...)

	// Identity
	secret := cfg.Auth.Secret
	if secret == "" {
		secret, err = security.LoadOrCreateSecret(studyquestHome())
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("load token secret: %w", err)
		}
	}
	d.Tokens, err = security.NewTokens(secret, parseDuration(cfg.Auth.TokenTTL, security.DefaultTokenTTL))
	if err != nil {
		d.Close()
		return nil, err
	}

	if cfg.Jobs.Enabled {
		d.Scheduler = jobs.NewScheduler(d.Engine, store, ws)
	}

	d.Server = api.NewServer(d.Service, d.Tokens)
	d.Server.SetChecker(d.Health)
	if cfg.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}

	log.WithFields(log.Fields{
		"driver":    cfg.Store.Driver,
		"redis":     cfg.Redis.Enabled,
		"ai":        ai.IsConfigured(),
		"jobs":      cfg.Jobs.Enabled,
		"goal":      cfg.Engine.DailyGoalPolicy,
		"time_zone": d.Engine.Location().String(),
	}).Info("daemon initialized")
	return d, nil
}

// openStore connects the configured backend.
func openStore(ctx context.Context, cfg StoreConfig) (backend, error) {
	switch cfg.Driver {
	case DriverPostgres:
		s, err := postgres.Open(ctx, cfg.PostgresDSN, cfg.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return s, nil
	case DriverMongo:
		s, err := mongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("open mongo: %w", err)
		}
		return s, nil
	default:
		dir := cfg.Dir
		if dir == "" {
			dir = studyquestHome()
		}
		db, err := sqlite.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return db, nil
	}
}

// Serve starts the background services and the HTTP server, and blocks
// until ctx is cancelled or a termination signal arrives.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Health checker (always runs)
	go d.Health.Run(ctx)

	if d.Scheduler != nil {
		if err := d.Scheduler.Start(ctx, d.Config.Jobs.RolloverSpec); err != nil {
			return err
		}
	}

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	d.Server.SetVersion(Version)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute, // quiz generation can be slow
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-sigCh:
			log.Info("shutdown signal received")
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		if d.Scheduler != nil {
			d.Scheduler.Stop()
		}
		cancel()
	}()

	log.WithField("addr", "http://"+addr).Info("studyquest serving")
	if d.Config.Telemetry.Prometheus {
		log.WithField("url", "http://"+addr+"/metrics").Info("metrics enabled")
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		cancel()
		<-done
		return err
	}
	<-done
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			log.WithError(err).Warn("close failed")
		}
	}
	d.closers = nil
}

// Version is set by the CLI from the build version.
var Version = "dev"

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
