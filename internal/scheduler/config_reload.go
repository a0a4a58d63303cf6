package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/restreamer/internal/domain"
	"github.com/MrSnakeDoc/restreamer/internal/identity"
	"github.com/MrSnakeDoc/restreamer/internal/logger"
	"github.com/MrSnakeDoc/restreamer/internal/sources/relays"
)

// ModelTarget receives every reconciled configuration.
type ModelTarget interface {
	Replace(model *domain.ConfigModel) error
}

// ReloadRecorder is notified of every load attempt.
type ReloadRecorder interface {
	ReloadFinished(err error)
}

// ConfigReloader loads the relays file, reconciles it against the durable
// identity record and hands the result to the orchestrator.
type ConfigReloader struct {
	loader        *relays.Loader
	mapper        *relays.Mapper
	reconciler    *identity.Reconciler
	identities    *IdentitySyncer
	target        ModelTarget
	rec           ReloadRecorder
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}

	// mu serializes loads so the identity record is never read by one
	// load while another writes it.
	mu sync.Mutex
}

// NewConfigReloader creates a reloader. interval <= 0 disables periodic
// reloads; manualTrigger may be nil.
func NewConfigReloader(
	configFile string,
	identities *IdentitySyncer,
	target ModelTarget,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *ConfigReloader {
	return &ConfigReloader{
		loader:        relays.NewLoader(configFile),
		mapper:        relays.NewMapper(),
		reconciler:    identity.NewReconciler(),
		identities:    identities,
		target:        target,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// WithRecorder attaches load telemetry.
func (cr *ConfigReloader) WithRecorder(rec ReloadRecorder) *ConfigReloader {
	cr.rec = rec
	return cr
}

// Start performs the initial load, which must succeed, then serves
// periodic and manual reloads until Stop or ctx is done.
func (cr *ConfigReloader) Start(ctx context.Context) error {
	if err := cr.Reload(ctx); err != nil {
		return fmt.Errorf("initial load failed: %w", err)
	}

	var tick <-chan time.Time
	var ticker *time.Ticker
	if cr.interval > 0 {
		ticker = time.NewTicker(cr.interval)
		tick = ticker.C
	}

	go func() {
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-tick:
				cr.reloadKeepingLastGood(ctx)
			case <-cr.manualTrigger:
				cr.logger.Info("manual reload triggered")
				cr.reloadKeepingLastGood(ctx)
			case <-cr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (cr *ConfigReloader) Stop() {
	cr.stopOnce.Do(func() { close(cr.stopCh) })
}

// Trigger queues a reload. It reports false when one is already queued.
func (cr *ConfigReloader) Trigger() bool {
	if cr.manualTrigger == nil {
		return false
	}
	select {
	case cr.manualTrigger <- struct{}{}:
		return true
	default:
		return false
	}
}

func (cr *ConfigReloader) reloadKeepingLastGood(ctx context.Context) {
	if err := cr.Reload(ctx); err != nil {
		cr.logger.Error("reload failed, keeping current configuration",
			logger.Error(err))
	}
}

// Reload runs one load: parse, map, reconcile, persist identities and
// publish the model.
func (cr *ConfigReloader) Reload(ctx context.Context) (err error) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if cr.rec != nil {
		defer func() { cr.rec.ReloadFinished(err) }()
	}

	cr.logger.Info("loading relays", logger.String("file", cr.loader.Path()))

	fc, err := cr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load relays: %w", err)
	}

	res, err := cr.mapper.Map(fc)
	for _, d := range res.Dropped {
		cr.logger.Warn("dropping relay entry",
			logger.Int("position", d.Position),
			logger.String("source", d.Source),
			logger.String("reason", d.Reason))
	}
	if err != nil {
		return fmt.Errorf("failed to map relays: %w", err)
	}

	prior, err := cr.identities.Prior(ctx)
	if err != nil {
		return err
	}

	model, dups := cr.reconciler.Reconcile(res.Candidates, prior)
	for _, d := range dups {
		cr.logger.Warn("dropping duplicate relay",
			logger.Int("position", d.Position),
			logger.String("source", d.Relay.Source),
			logger.String("kept_id", d.KeptID))
	}

	// Ids that cannot be recorded would be regenerated by the next load,
	// so the model is only applied once the record is written.
	if err := cr.identities.Sync(ctx, model.Identities()); err != nil {
		cr.logger.Error("failed to persist identities", logger.Error(err))
		return err
	}

	if err := cr.target.Replace(model); err != nil {
		return fmt.Errorf("failed to apply configuration: %w", err)
	}

	cr.logger.Info("relays loaded",
		logger.Int("count", model.Len()),
		logger.Int("dropped", len(res.Dropped)+len(dups)))
	return nil
}
