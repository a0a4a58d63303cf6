// Package enginetest provides an in-memory relay engine for tests.
package enginetest

import (
	"errors"
	"sync"

	"github.com/MrSnakeDoc/restreamer/internal/engine"
)

var ErrSimulated = errors.New("simulated relay failure")

// Engine records every relay it creates.
type Engine struct {
	mu        sync.Mutex
	relays    []*Relay
	startErrs map[string]error // by source
}

func New() *Engine {
	return &Engine{startErrs: make(map[string]error)}
}

// FailStarts makes Start return err for relays of source until cleared
// with a nil err.
func (e *Engine) FailStarts(source string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		delete(e.startErrs, source)
		return
	}
	e.startErrs[source] = err
}

func (e *Engine) New(source, target string, onFailure func(error)) engine.Relay {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := &Relay{Source: source, Target: target, onFailure: onFailure, startErr: e.startErrs[source]}
	e.relays = append(e.relays, r)
	return r
}

// Created returns every relay created for source, oldest first.
func (e *Engine) Created(source string) []*Relay {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*Relay
	for _, r := range e.relays {
		if r.Source == source {
			out = append(out, r)
		}
	}
	return out
}

// Live returns started relays that were not closed, for any source.
func (e *Engine) Live() []*Relay {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*Relay
	for _, r := range e.relays {
		if r.Started() && !r.Closed() {
			out = append(out, r)
		}
	}
	return out
}

// LiveFor is Live filtered by source.
func (e *Engine) LiveFor(source string) []*Relay {
	var out []*Relay
	for _, r := range e.Live() {
		if r.Source == source {
			out = append(out, r)
		}
	}
	return out
}

// Relay is a fake relay whose failure is triggered by the test.
type Relay struct {
	Source string
	Target string

	onFailure func(error)
	startErr  error

	mu      sync.Mutex
	started bool
	closed  bool
	failed  bool
}

func (r *Relay) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	r.started = true
	return nil
}

func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Fail simulates the relay dying on its own. It honours the engine
// contract: nothing is reported after Close or twice.
func (r *Relay) Fail() {
	r.mu.Lock()
	if r.closed || r.failed || !r.started {
		r.mu.Unlock()
		return
	}
	r.failed = true
	cb := r.onFailure
	r.mu.Unlock()
	cb(ErrSimulated)
}

// FailIgnoringClose reports a failure even if Close already ran, which
// models a failure that raced with Close inside a real engine.
func (r *Relay) FailIgnoringClose() {
	r.mu.Lock()
	cb := r.onFailure
	r.failed = true
	r.mu.Unlock()
	cb(ErrSimulated)
}

func (r *Relay) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func (r *Relay) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
