// Package ffmpeg implements the relay engine on top of an external ffmpeg
// process per relay. Streams are copied without transcoding; the process
// exit is awaited on a bounded worker pool.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	ffmpeg_go "github.com/u2takey/ffmpeg-go"

	"github.com/MrSnakeDoc/restreamer/internal/engine"
	"github.com/MrSnakeDoc/restreamer/internal/logger"
)

const (
	DefaultBinary = "ffmpeg"

	// killGrace is how long a relay gets to flush after an interrupt
	// before it is killed.
	killGrace = 3 * time.Second
	// waitDelay bounds how long an exited process's stderr may be held
	// open by its children.
	waitDelay  = time.Second
	stderrTail = 1024
)

var (
	ErrClosed         = errors.New("relay closed")
	ErrAlreadyStarted = errors.New("relay already started")
	ErrExited         = errors.New("ffmpeg exited")
)

type Options struct {
	// BinPath is the ffmpeg executable; DefaultBinary when empty.
	BinPath string
	// PoolSize bounds the number of supervised relays; <= 0 means
	// unbounded.
	PoolSize int
	Logger   logger.Logger
}

// Engine starts one ffmpeg process per relay.
type Engine struct {
	binPath string
	pool    *ants.Pool
	log     logger.Logger

	mu   sync.Mutex
	live map[*relay]struct{}
}

var _ engine.Engine = (*Engine)(nil)

func New(opts Options) (*Engine, error) {
	bin := opts.BinPath
	if bin == "" {
		bin = DefaultBinary
	}
	pool, err := ants.NewPool(opts.PoolSize,
		ants.WithNonblocking(true),
		ants.WithLogger(newAntsLogger(opts.Logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create relay pool: %w", err)
	}
	return &Engine{
		binPath: bin,
		pool:    pool,
		log:     opts.Logger,
		live:    make(map[*relay]struct{}),
	}, nil
}

// Close releases the supervision pool. Relays still running keep their
// processes; call Shutdown first.
func (e *Engine) Close() {
	e.pool.Release()
}

// Shutdown interrupts every relay process still alive and waits for them
// to exit. Processes still alive when ctx is done are killed, and an error
// reports how many were.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	relays := make([]*relay, 0, len(e.live))
	for r := range e.live {
		relays = append(relays, r)
	}
	e.mu.Unlock()

	for _, r := range relays {
		_ = r.Close()
	}

	var killed int
	for _, r := range relays {
		select {
		case <-r.done:
			continue
		default:
		}
		select {
		case <-r.done:
		case <-ctx.Done():
			r.kill()
			<-r.done
			killed++
		}
	}
	if killed > 0 {
		e.log.Warn("killed relays that ignored the interrupt", logger.Int("count", killed))
		return fmt.Errorf("killed %d ffmpeg processes after %w", killed, ctx.Err())
	}
	return nil
}

func (e *Engine) track(r *relay) {
	e.mu.Lock()
	e.live[r] = struct{}{}
	e.mu.Unlock()
}

func (e *Engine) untrack(r *relay) {
	e.mu.Lock()
	delete(e.live, r)
	e.mu.Unlock()
}

func (e *Engine) New(source, target string, onFailure func(error)) engine.Relay {
	return &relay{
		engine:    e,
		source:    source,
		target:    target,
		onFailure: onFailure,
		done:      make(chan struct{}),
	}
}

// Args returns the ffmpeg arguments used to relay source to target.
func Args(source, target string) []string {
	in := ffmpeg_go.KwArgs{"loglevel": "error"}
	if strings.HasPrefix(strings.ToLower(source), "rtsp://") {
		in["rtsp_transport"] = "tcp"
	}
	out := ffmpeg_go.KwArgs{"c": "copy"}
	if f := OutputFormat(target); f != "" {
		out["f"] = f
	}
	return ffmpeg_go.Input(source, in).Output(target, out).GetArgs()
}

// OutputFormat picks the container for a target URL. Unknown schemes let
// ffmpeg guess.
func OutputFormat(target string) string {
	scheme, _, ok := strings.Cut(target, "://")
	if !ok {
		return ""
	}
	switch strings.ToLower(scheme) {
	case "rtmp", "rtmps":
		return "flv"
	case "srt", "udp", "tcp":
		return "mpegts"
	case "rtsp":
		return "rtsp"
	default:
		return ""
	}
}

type relay struct {
	engine    *Engine
	source    string
	target    string
	onFailure func(error)

	mu     sync.Mutex
	cmd    *exec.Cmd
	closed bool
	once   sync.Once
	stderr tail
	done   chan struct{}
}

func (r *relay) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.cmd != nil {
		return ErrAlreadyStarted
	}

	// The compiled command of ffmpeg-go logs its full command line, which
	// carries stream keys, so only the argument builder is used.
	cmd := exec.Command(r.engine.binPath, Args(r.source, r.target)...)
	cmd.Stderr = &r.stderr
	cmd.WaitDelay = waitDelay
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	r.cmd = cmd

	r.engine.track(r)
	if err := r.engine.pool.Submit(r.wait); err != nil {
		r.engine.untrack(r)
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		r.cmd = nil
		return fmt.Errorf("failed to supervise ffmpeg: %w", err)
	}
	return nil
}

func (r *relay) wait() {
	err := r.cmd.Wait()
	r.engine.untrack(r)
	close(r.done)

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}

	if err == nil {
		err = ErrExited
	}
	if msg := r.stderr.String(); msg != "" {
		err = fmt.Errorf("%w: %s", err, msg)
	}
	r.once.Do(func() { r.onFailure(err) })
}

// Close interrupts the process and kills it if it has not exited after
// killGrace. It does not wait.
func (r *relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	cmd := r.cmd
	r.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return cmd.Process.Kill()
	}
	go func() {
		select {
		case <-r.done:
		case <-time.After(killGrace):
			_ = cmd.Process.Kill()
		}
	}()
	return nil
}

func (r *relay) kill() {
	r.mu.Lock()
	cmd := r.cmd
	r.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// tail keeps the last stderrTail bytes written to it.
type tail struct {
	mu  sync.Mutex
	buf []byte
}

func (t *tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - stderrTail; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
