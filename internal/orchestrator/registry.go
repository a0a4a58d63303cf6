package orchestrator

import (
	"github.com/MrSnakeDoc/restreamer/internal/domain"
	"github.com/MrSnakeDoc/restreamer/internal/engine"
	"github.com/MrSnakeDoc/restreamer/internal/logger"
)

// session pairs a relay id with the engine handle serving it. Failure
// reports carry the session pointer so a report from a replaced handle
// can be told apart from one about the current handle.
type session struct {
	id    string
	relay engine.Relay
}

// SessionRegistry owns the live relay handles. It is only used from the
// event loop and takes no locks.
type SessionRegistry struct {
	engine   engine.Engine
	model    *domain.ConfigModel
	restarts *RestartScheduler
	post     func(event) error
	log      logger.Logger
	rec      Recorder
	live     map[string]*session
}

func newSessionRegistry(
	eng engine.Engine,
	model *domain.ConfigModel,
	restarts *RestartScheduler,
	post func(event) error,
	rec Recorder,
	log logger.Logger,
) *SessionRegistry {
	return &SessionRegistry{
		engine:   eng,
		model:    model,
		restarts: restarts,
		post:     post,
		log:      log,
		rec:      rec,
		live:     make(map[string]*session),
	}
}

// Start creates and starts the relay of id. It does nothing unless the
// relay is configured, enabled and not already running. A relay the
// engine refuses to start is handed to the restart scheduler.
func (r *SessionRegistry) Start(id string) {
	rel, ok := r.model.Get(id)
	if !ok {
		r.log.Error("start requested for unknown relay", logger.String("relay", id))
		return
	}
	if !rel.Enabled {
		r.log.Debug("relay disabled, not starting", logger.String("relay", id))
		return
	}
	if _, running := r.live[id]; running {
		r.log.Error("relay already running", logger.String("relay", id))
		return
	}

	r.restarts.Cancel(id)

	s := &session{id: id}
	s.relay = r.engine.New(rel.Source, rel.Target, func(err error) {
		_ = r.post(failureEvent{id: id, session: s, err: err})
	})

	if err := s.relay.Start(); err != nil {
		_ = s.relay.Close()
		r.log.Warn("failed to start relay",
			logger.String("relay", id),
			logger.String("source", rel.Source),
			logger.Error(err))
		r.rec.RelayFailed(id)
		r.restarts.Schedule(id)
		return
	}

	r.live[id] = s
	r.rec.RelayStarted(id)
	r.log.Info("relay started",
		logger.String("relay", id),
		logger.String("source", rel.Source))
}

// Stop cancels a pending restart of id and releases its relay. Stopping
// a stopped relay is a no-op.
func (r *SessionRegistry) Stop(id string) {
	r.restarts.Cancel(id)

	s, ok := r.live[id]
	if !ok {
		return
	}
	delete(r.live, id)
	r.release(s)
	r.log.Info("relay stopped", logger.String("relay", id))
}

// StopAll releases every relay and disarms every pending restart.
func (r *SessionRegistry) StopAll() {
	r.restarts.CancelAll()
	for id := range r.live {
		r.Stop(id)
	}
}

func (r *SessionRegistry) handleFailure(id string, s *session, err error) {
	if cur, ok := r.live[id]; !ok || cur != s {
		r.log.Debug("ignoring failure of a replaced relay", logger.String("relay", id))
		return
	}

	delete(r.live, id)
	r.release(s)
	r.rec.RelayFailed(id)
	r.log.Warn("relay failed",
		logger.String("relay", id),
		logger.Error(err))
	r.restarts.Schedule(id)
}

func (r *SessionRegistry) release(s *session) {
	if err := s.relay.Close(); err != nil {
		r.log.Warn("failed to close relay",
			logger.String("relay", s.id),
			logger.Error(err))
	}
}

func (r *SessionRegistry) State(id string) domain.SessionState {
	switch {
	case r.live[id] != nil:
		return domain.Running
	case r.restarts.Pending(id):
		return domain.RestartPending
	default:
		return domain.Stopped
	}
}

func (r *SessionRegistry) Running() int {
	return len(r.live)
}
