package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateID  = errors.New("duplicate relay id")
	ErrUnknownRelay = errors.New("unknown relay id")
	ErrEmptyID      = errors.New("empty relay id")
)

// ConfigModel is the ordered, authoritative record of configured relays.
// The keys of relays and the entries of order are always the same set.
//
// ConfigModel is not safe for concurrent use; it is owned by the
// orchestrator event loop.
type ConfigModel struct {
	relays map[string]Relay
	order  []string
}

func NewConfigModel() *ConfigModel {
	return &ConfigModel{relays: make(map[string]Relay)}
}

// Add appends a relay at the end of the ordering sequence.
func (m *ConfigModel) Add(r Relay) error {
	if r.ID == "" {
		return ErrEmptyID
	}
	if _, ok := m.relays[r.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
	}
	m.relays[r.ID] = r
	m.order = append(m.order, r.ID)
	return nil
}

func (m *ConfigModel) Get(id string) (Relay, bool) {
	r, ok := m.relays[id]
	return r, ok
}

// Set replaces every field of an existing relay, keeping its position.
func (m *ConfigModel) Set(r Relay) error {
	if _, ok := m.relays[r.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRelay, r.ID)
	}
	m.relays[r.ID] = r
	return nil
}

func (m *ConfigModel) Remove(id string) bool {
	if _, ok := m.relays[id]; !ok {
		return false
	}
	delete(m.relays, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

func (m *ConfigModel) Len() int {
	return len(m.order)
}

// IDs returns a copy of the ordering sequence.
func (m *ConfigModel) IDs() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Relays returns relays in ordering-sequence order.
func (m *ConfigModel) Relays() []Relay {
	out := make([]Relay, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.relays[id])
	}
	return out
}

// Replace makes m an independent copy of other.
func (m *ConfigModel) Replace(other *ConfigModel) {
	m.relays = make(map[string]Relay, len(other.relays))
	for id, r := range other.relays {
		m.relays[id] = r
	}
	m.order = other.IDs()
}

// Identities projects the model onto the durable identity record shape.
func (m *ConfigModel) Identities() []Identity {
	out := make([]Identity, 0, len(m.order))
	for _, id := range m.order {
		r := m.relays[id]
		out = append(out, Identity{ID: r.ID, Source: r.Source, Target: r.Target})
	}
	return out
}
