// Package orchestrator supervises relay sessions. A single event loop owns
// the configuration model, the live relays and the restart timers; every
// other goroutine talks to it by posting events.
package orchestrator

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/MrSnakeDoc/restreamer/internal/domain"
	"github.com/MrSnakeDoc/restreamer/internal/engine"
	"github.com/MrSnakeDoc/restreamer/internal/index"
	"github.com/MrSnakeDoc/restreamer/internal/logger"
)

var (
	ErrStopped        = errors.New("orchestrator stopped")
	ErrAlreadyRunning = errors.New("orchestrator already running")
)

type Options struct {
	Engine engine.Engine
	// Clock drives restart timers; the wall clock when nil.
	Clock clock.Clock
	// RestartDelay defaults to DefaultRestartDelay.
	RestartDelay time.Duration
	// Index receives a snapshot after every batch of events.
	Index    *index.RelayIndex
	Recorder Recorder
	Logger   logger.Logger
}

type Orchestrator struct {
	index   *index.RelayIndex
	rec     Recorder
	log     logger.Logger
	mailbox *mailbox

	// Loop-owned.
	model    *domain.ConfigModel
	registry *SessionRegistry
	restarts *RestartScheduler

	running atomic.Bool
	ready   atomic.Bool
	done    chan struct{}
	final   []domain.Identity
}

func New(opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	if opts.Index == nil {
		opts.Index = index.NewRelayIndex()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	o := &Orchestrator{
		index:   opts.Index,
		rec:     opts.Recorder,
		log:     opts.Logger,
		mailbox: newMailbox(),
		model:   domain.NewConfigModel(),
		done:    make(chan struct{}),
	}
	o.restarts = newRestartScheduler(opts.Clock, opts.RestartDelay, o.mailbox.post, o.rec, o.log)
	o.registry = newSessionRegistry(opts.Engine, o.model, o.restarts, o.mailbox.post, o.rec, o.log)
	return o
}

// Post schedules change to be applied on the loop. It never blocks and
// fails only once the orchestrator has stopped. Changes posted before Run
// are applied when the loop starts.
func (o *Orchestrator) Post(change domain.ConfigChange) error {
	return o.mailbox.post(changeEvent{change: change})
}

// Replace schedules a swap of the configuration model for model, which
// must not be modified afterwards.
func (o *Orchestrator) Replace(model *domain.ConfigModel) error {
	return o.mailbox.post(replaceEvent{model: model})
}

// Run executes the event loop until ctx is done, then stops every relay
// and disarms every pending restart.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(o.done)

	o.publish()
	o.ready.Store(true)
	o.log.Info("orchestrator started")

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return nil
		case <-o.mailbox.notify:
			for _, ev := range o.mailbox.drain() {
				ev.apply(o)
			}
			o.publish()
		}
	}
}

func (o *Orchestrator) shutdown() {
	o.ready.Store(false)
	if dropped := o.mailbox.close(); len(dropped) > 0 {
		o.log.Warn("dropping unprocessed events", logger.Int("count", len(dropped)))
	}

	o.registry.StopAll()
	o.final = o.model.Identities()
	o.publish()
	o.log.Info("orchestrator stopped")
}

// Ready reports whether the loop is running.
func (o *Orchestrator) Ready() bool {
	return o.ready.Load()
}

// Done is closed once Run has returned.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// Identities returns the durable identity record of the last
// configuration, or nil while Run has not returned.
func (o *Orchestrator) Identities() []domain.Identity {
	select {
	case <-o.done:
		return o.final
	default:
		return nil
	}
}

// Backlog is the number of posted events not yet taken by the loop.
func (o *Orchestrator) Backlog() int {
	return o.mailbox.len()
}

func (o *Orchestrator) apply(change domain.ConfigChange) {
	for _, id := range slices.Sorted(maps.Keys(change)) {
		delta := change[id]
		rel, ok := o.model.Get(id)
		if !ok {
			o.log.Warn("config change for unknown relay", logger.String("relay", id))
			continue
		}
		if delta.Empty() || *delta.Enabled == rel.Enabled {
			continue
		}

		rel.Enabled = *delta.Enabled
		_ = o.model.Set(rel)
		o.rec.ChangeApplied(id, rel.Enabled)
		o.log.Info("relay toggled",
			logger.String("relay", id),
			logger.Bool("enabled", rel.Enabled))

		if rel.Enabled {
			o.registry.Start(id)
		} else {
			o.registry.Stop(id)
		}
	}
}

// replace installs next. Relays gone from next are stopped, relays whose
// enabled flag differs from the running model are started or stopped, and
// untouched relays keep their sessions.
func (o *Orchestrator) replace(next *domain.ConfigModel) {
	prev := make(map[string]domain.Relay, o.model.Len())
	for _, rel := range o.model.Relays() {
		prev[rel.ID] = rel
		if _, kept := next.Get(rel.ID); !kept {
			o.registry.Stop(rel.ID)
		}
	}

	o.model.Replace(next)

	var added, removed int
	for _, rel := range o.model.Relays() {
		old, existed := prev[rel.ID]
		if !existed {
			added++
		}
		switch {
		case !rel.Enabled:
			o.registry.Stop(rel.ID)
		case !existed || !old.Enabled:
			o.registry.Start(rel.ID)
		}
	}
	removed = len(prev) + added - o.model.Len()

	o.log.Info("configuration applied",
		logger.Int("relays", o.model.Len()),
		logger.Int("added", added),
		logger.Int("removed", removed))
}

func (o *Orchestrator) publish() {
	rels := o.model.Relays()
	views := make([]domain.RelayView, 0, len(rels))
	var running, pending, stopped int
	for _, rel := range rels {
		state := o.registry.State(rel.ID)
		switch state {
		case domain.Running:
			running++
		case domain.RestartPending:
			pending++
		default:
			stopped++
		}
		views = append(views, domain.RelayView{
			ID:          rel.ID,
			Source:      rel.Source,
			Description: rel.Description,
			HasKey:      rel.HasKey(),
			Enabled:     rel.Enabled,
			State:       state,
		})
	}
	o.index.Update(views)
	o.rec.StateCounts(running, pending, stopped)
}

type changeEvent struct {
	change domain.ConfigChange
}

func (e changeEvent) apply(o *Orchestrator) { o.apply(e.change) }

type replaceEvent struct {
	model *domain.ConfigModel
}

func (e replaceEvent) apply(o *Orchestrator) { o.replace(e.model) }

type failureEvent struct {
	id      string
	session *session
	err     error
}

func (e failureEvent) apply(o *Orchestrator) { o.registry.handleFailure(e.id, e.session, e.err) }

type restartEvent struct {
	id    string
	token uint64
}

func (e restartEvent) apply(o *Orchestrator) {
	if !o.restarts.fire(e.id, e.token) {
		o.log.Debug("ignoring cancelled restart", logger.String("relay", e.id))
		return
	}
	o.log.Info("restarting relay", logger.String("relay", e.id))
	o.registry.Start(e.id)
}
