package domain

// Delta is a sparse update of the mutable fields of one relay.
// A nil field means "leave unchanged".
type Delta struct {
	Enabled *bool
}

func (d Delta) Empty() bool {
	return d.Enabled == nil
}

// ConfigChange maps relay ids to the delta to apply to each of them.
// It is the unit of mutation crossing from the HTTP boundary to the
// event loop.
type ConfigChange map[string]Delta

// EnableChange builds the single-id change the control surface emits.
func EnableChange(id string, enabled bool) ConfigChange {
	return ConfigChange{id: {Enabled: &enabled}}
}
