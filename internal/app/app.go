package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/restreamer/internal/config"
	"github.com/MrSnakeDoc/restreamer/internal/discovery"
	"github.com/MrSnakeDoc/restreamer/internal/engine/ffmpeg"
	"github.com/MrSnakeDoc/restreamer/internal/httpserver"
	"github.com/MrSnakeDoc/restreamer/internal/httpserver/deps"
	"github.com/MrSnakeDoc/restreamer/internal/index"
	"github.com/MrSnakeDoc/restreamer/internal/logger"
	"github.com/MrSnakeDoc/restreamer/internal/metrics"
	"github.com/MrSnakeDoc/restreamer/internal/orchestrator"
	"github.com/MrSnakeDoc/restreamer/internal/redis"
	"github.com/MrSnakeDoc/restreamer/internal/scheduler"
	"github.com/MrSnakeDoc/restreamer/internal/sources/relays"
	"github.com/MrSnakeDoc/restreamer/internal/store"
	filestore "github.com/MrSnakeDoc/restreamer/internal/store/file"
	redisstore "github.com/MrSnakeDoc/restreamer/internal/store/redis"
	"github.com/MrSnakeDoc/restreamer/internal/utils"
	"github.com/MrSnakeDoc/restreamer/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	engine      *ffmpeg.Engine
	orch        *orchestrator.Orchestrator
	syncer      *scheduler.IdentitySyncer
	reloader    *scheduler.ConfigReloader
	advertiser  *discovery.Advertiser
}

func New() (*App, error) {
	return NewWithConfig(config.Load())
}

// NewWithConfig builds the daemon from an already loaded environment
// configuration. The relays file is read once here for its global
// settings; relays themselves are loaded when Run starts the reloader.
func NewWithConfig(cfg *config.Config) (*App, error) {
	fc, err := relays.NewLoader(cfg.ConfigFile).Load()
	if err != nil {
		return nil, err
	}
	cfg.Resolve(fc.Settings())

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	if _, ok := logger.ParseLevel(cfg.LogLevel); !ok {
		loggerClient.Warn("unknown log level, using info",
			logger.String("log_level", cfg.LogLevel))
	}

	// Identity record: Redis when configured (fail fast if unreachable),
	// a local file otherwise.
	var redisClient *goredis.Client
	var identityStore store.IdentityStore
	if cfg.RedisAddr != "" {
		redisClient, err = redis.New(context.Background(), redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
		}, loggerClient)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		identityStore = redisstore.NewStore(redisClient)
	} else {
		identityStore = filestore.NewStore(cfg.StateFile)
	}
	loggerClient.Info("identity record ready",
		logger.String("backend", identityStore.Backend()))

	m := metrics.New()
	relayIndex := index.NewRelayIndex()

	eng, err := ffmpeg.New(ffmpeg.Options{
		BinPath:  cfg.FFmpegPath,
		PoolSize: cfg.WorkerPoolSize,
		Logger:   loggerClient.With(logger.String("component", "ffmpeg")),
	})
	if err != nil {
		if redisClient != nil {
			utils.MustClose(redisClient, loggerClient, "redis")
		}
		return nil, err
	}

	orch := orchestrator.New(orchestrator.Options{
		Engine:       eng,
		RestartDelay: cfg.RestartDelay,
		Index:        relayIndex,
		Recorder:     m,
		Logger:       loggerClient.With(logger.String("component", "orchestrator")),
	})

	syncer := scheduler.NewIdentitySyncer(identityStore, loggerClient, m)
	reloader := scheduler.NewConfigReloader(
		cfg.ConfigFile,
		syncer,
		orch,
		loggerClient,
		cfg.ReloadInterval,
		make(chan struct{}, 1),
	).WithRecorder(m)

	var advertiser *discovery.Advertiser
	switch {
	case !cfg.SSDPEnabled:
		loggerClient.Info("SSDP discovery disabled")
	case *cfg.LoopbackOnly:
		loggerClient.Info("loopback-only mode, SSDP discovery disabled")
	default:
		advertiser, err = discovery.New(discovery.Options{
			DeviceIDFile: cfg.DeviceIDFile,
			Port:         cfg.ListenPort,
			Interval:     cfg.SSDPInterval,
			Logger:       loggerClient.With(logger.String("component", "ssdp")),
		})
		if err != nil {
			loggerClient.Warn("SSDP discovery unavailable", logger.Error(err))
			advertiser = nil
		}
	}

	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedHosts: cfg.AllowedHosts,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		CORSOrigin:   cfg.CORSOrigin,
		RateLimit: deps.RateLimit{
			Burst:     cfg.RateLimitBurst,
			PerMinute: cfg.RateLimitPerMinute,
		},
		Relays:   relayIndex,
		Changes:  orch,
		Ready:    orch.Ready,
		Backlog:  orch.Backlog,
		Reloader: reloader,
		Store:    identityStore,
		Metrics:  m.Handler(),
	}

	server := httpserver.New(cfg.ListenAddr(), loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		engine:      eng,
		orch:        orch,
		syncer:      syncer,
		reloader:    reloader,
		advertiser:  advertiser,
	}, nil
}

// Run serves until SIGINT or SIGTERM. SIGHUP reloads the relays file.
func (a *App) Run() error {
	a.logger.Infof("🚀 Starting restreamer v%s on %s", version.Version, a.cfg.ListenAddr())
	a.logger.Infof("restreamer %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-hup:
				if !a.reloader.Trigger() {
					a.logger.Info("reload already queued")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	ln, err := net.Listen("tcp", a.cfg.ListenAddr())
	if err != nil {
		a.closeResources()
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.ListenAddr(), err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs every component on ln until ctx is done, then shuts down
// in reverse order and persists the final identity record.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	defer a.closeResources()

	// The initial load queues the first model before the loop starts,
	// so the orchestrator never runs without a model.
	if err := a.reloader.Start(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to start config reloader: %w", err)
	}
	a.logger.Info("config reloader started",
		logger.Duration("interval", a.cfg.ReloadInterval))

	orchCtx, stopOrch := context.WithCancel(context.Background())
	defer stopOrch()
	go func() {
		if err := a.orch.Run(orchCtx); err != nil {
			a.logger.Error("orchestrator stopped", logger.Error(err))
		}
	}()

	if a.advertiser != nil {
		if err := a.advertiser.Start(ctx); err != nil {
			a.logger.Warn("failed to start SSDP discovery", logger.Error(err))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Serve(ln); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
		a.logger.Error("shutting down after server failure", logger.Error(runErr))
	}

	a.reloader.Stop()
	if a.advertiser != nil {
		a.advertiser.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	stopOrch()
	select {
	case <-a.orch.Done():
	case <-shutdownCtx.Done():
		a.logger.Warn("orchestrator did not stop in time")
	}

	if ids := a.orch.Identities(); len(ids) > 0 {
		if err := a.syncer.Sync(shutdownCtx, ids); err != nil {
			a.logger.Error("failed to save identity record on exit", logger.Error(err))
		}
	}

	a.logger.Info("✅ restreamer stopped cleanly")
	return runErr
}

func (a *App) closeResources() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.engine.Shutdown(ctx); err != nil {
		a.logger.Warn("relays did not stop on interrupt", logger.Error(err))
	}
	a.engine.Close()
	if a.redisClient != nil {
		utils.MustClose(a.redisClient, a.logger, "redis")
	}
	_ = a.logger.Sync()
}
