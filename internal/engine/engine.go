// Package engine defines the contract of the media relay engine the
// orchestrator drives. The engine moves bytes from a source URL to a
// target URL and reports failure asynchronously.
package engine

// Relay is one restream created by an Engine.
//
// Start launches it. Close stops it and releases its resources; it does
// not wait for the underlying process to exit. After Close returns the
// failure callback is never invoked.
type Relay interface {
	Start() error
	Close() error
}

// Engine creates relays. onFailure is invoked at most once per relay,
// from an arbitrary goroutine, when a started relay stops on its own.
type Engine interface {
	New(source, target string, onFailure func(error)) Relay
}
