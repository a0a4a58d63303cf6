package orchestrator

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/MrSnakeDoc/restreamer/internal/logger"
)

// DefaultRestartDelay is the fixed wait between a relay failure and its
// restart.
const DefaultRestartDelay = 5 * time.Second

type pendingRestart struct {
	timer *clock.Timer
	token uint64
}

// RestartScheduler keeps at most one armed restart timer per relay. A
// timer never touches loop state itself: it posts a restartEvent carrying
// its token, and the loop drops the event if the entry was cancelled or
// re-armed in the meantime.
type RestartScheduler struct {
	clock   clock.Clock
	delay   time.Duration
	post    func(event) error
	log     logger.Logger
	rec     Recorder
	pending map[string]pendingRestart
	next    uint64
}

func newRestartScheduler(clk clock.Clock, delay time.Duration, post func(event) error, rec Recorder, log logger.Logger) *RestartScheduler {
	return &RestartScheduler{
		clock:   clk,
		delay:   delay,
		post:    post,
		log:     log,
		rec:     rec,
		pending: make(map[string]pendingRestart),
	}
}

// Schedule arms a restart for id. A second Schedule while one is pending
// is ignored.
func (s *RestartScheduler) Schedule(id string) bool {
	if _, ok := s.pending[id]; ok {
		s.log.Debug("restart already pending", logger.String("relay", id))
		return false
	}

	s.next++
	token := s.next
	timer := s.clock.AfterFunc(s.delay, func() {
		_ = s.post(restartEvent{id: id, token: token})
	})
	s.pending[id] = pendingRestart{timer: timer, token: token}

	s.rec.RestartScheduled(id)
	s.log.Info("relay restart scheduled",
		logger.String("relay", id),
		logger.Duration("delay", s.delay))
	return true
}

// Cancel disarms the pending restart of id, if any.
func (s *RestartScheduler) Cancel(id string) bool {
	p, ok := s.pending[id]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(s.pending, id)
	s.log.Debug("relay restart cancelled", logger.String("relay", id))
	return true
}

func (s *RestartScheduler) CancelAll() {
	for id := range s.pending {
		s.Cancel(id)
	}
}

func (s *RestartScheduler) Pending(id string) bool {
	_, ok := s.pending[id]
	return ok
}

func (s *RestartScheduler) Len() int {
	return len(s.pending)
}

// fire consumes the entry armed with token. It reports false for a late
// timer whose entry was cancelled or replaced.
func (s *RestartScheduler) fire(id string, token uint64) bool {
	p, ok := s.pending[id]
	if !ok || p.token != token {
		return false
	}
	delete(s.pending, id)
	return true
}
