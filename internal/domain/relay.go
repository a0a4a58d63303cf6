package domain

// Relay is one configured restreaming definition (source -> target).
type Relay struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is the stable external identifier. It survives reloads and
	// process restarts through the durable identity record.
	ID string

	// Source is the URL media is pulled from.
	Source string

	// Target is the fully resolved URL media is pushed to.
	Target string

	// ─────────────────────────────
	// Presentation
	// ─────────────────────────────

	Description string

	// Key is the credential used to resolve Target from the default
	// target template. It is never exposed by the control surface.
	Key string

	// ─────────────────────────────
	// Mutable through ConfigChange
	// ─────────────────────────────

	Enabled bool
}

// Endpoint is the natural de-duplication key of a relay.
type Endpoint struct {
	Source string
	Target string
}

func (r Relay) Endpoint() Endpoint {
	return Endpoint{Source: r.Source, Target: r.Target}
}

// HasKey reports whether a credential is configured.
func (r Relay) HasKey() bool {
	return r.Key != ""
}

// Identity is one entry of the durable identity record.
type Identity struct {
	ID     string `yaml:"id" json:"id"`
	Source string `yaml:"source" json:"source"`
	Target string `yaml:"target" json:"target"`
}

func (i Identity) Endpoint() Endpoint {
	return Endpoint{Source: i.Source, Target: i.Target}
}
