package domain

// SessionState is the runtime state of a relay's session.
type SessionState int

const (
	Stopped SessionState = iota
	Running
	RestartPending
)

func (s SessionState) String() string {
	switch s {
	case Running:
		return "running"
	case RestartPending:
		return "restart_pending"
	default:
		return "stopped"
	}
}

// RelayView is the read-only row published for the HTTP boundary.
type RelayView struct {
	ID          string
	Source      string
	Description string
	HasKey      bool
	Enabled     bool
	State       SessionState
}
