package index

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/restreamer/internal/domain"
)

// RelayIndex is the read model of the orchestrator. The event loop
// publishes a full snapshot after every batch of work; HTTP handlers only
// ever read from here.
type RelayIndex struct {
	mu         sync.RWMutex
	views      []domain.RelayView // ConfigModel order
	byID       map[string]int     // ID -> position in views
	counts     map[domain.SessionState]int
	lastUpdate time.Time
}

// NewRelayIndex creates an empty index
func NewRelayIndex() *RelayIndex {
	return &RelayIndex{
		byID:   make(map[string]int),
		counts: make(map[domain.SessionState]int),
	}
}

// Update replaces the snapshot
func (idx *RelayIndex) Update(views []domain.RelayView) {
	byID := make(map[string]int, len(views))
	counts := make(map[domain.SessionState]int, 3)
	rows := make([]domain.RelayView, len(views))
	copy(rows, views)
	for i, v := range rows {
		byID[v.ID] = i
		counts[v.State]++
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.views = rows
	idx.byID = byID
	idx.counts = counts
	idx.lastUpdate = time.Now()
}

// List returns every relay in configuration order
func (idx *RelayIndex) List() []domain.RelayView {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]domain.RelayView, len(idx.views))
	copy(out, idx.views)
	return out
}

// Get retrieves a relay by ID
func (idx *RelayIndex) Get(id string) (domain.RelayView, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	i, ok := idx.byID[id]
	if !ok {
		return domain.RelayView{}, false
	}
	return idx.views[i], true
}

// Has reports whether id is part of the published configuration
func (idx *RelayIndex) Has(id string) bool {
	_, ok := idx.Get(id)
	return ok
}

// Count returns the number of relays in the index
func (idx *RelayIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.views)
}

// CountByState returns how many relays are in state
func (idx *RelayIndex) CountByState(state domain.SessionState) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.counts[state]
}

// GetLastUpdate returns the timestamp of the last published snapshot
func (idx *RelayIndex) GetLastUpdate() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastUpdate
}
