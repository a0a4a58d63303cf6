package deps

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/restreamer/internal/domain"
	"github.com/MrSnakeDoc/restreamer/internal/index"
	"github.com/MrSnakeDoc/restreamer/internal/logger"
	"github.com/MrSnakeDoc/restreamer/internal/store"
)

// ChangePoster hands validated changes to the event loop.
type ChangePoster interface {
	Post(change domain.ConfigChange) error
}

// ReloadTrigger queues a relays file reload; false means one is queued.
type ReloadTrigger interface {
	Trigger() bool
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time    // for testing, defaults to time.Now
	AllowedHosts []string            // Host headers allowed on /api
	AllowedCIDRS []string            // IPs allowed on /api and probes
	TrustProxy   bool                // true if running behind a trusted reverse proxy
	CORSOrigin   string              // Access-Control-Allow-Origin value
	RateLimit    RateLimit           // applied to mutating routes
	Relays       *index.RelayIndex   // read model published by the orchestrator
	Changes      ChangePoster        // orchestrator mailbox
	Ready        func() bool         // orchestrator loop running
	Backlog      func() int          // events posted but not yet applied, optional
	Reloader     ReloadTrigger       // nil disables POST /api/reload
	Store        store.IdentityStore // durable identity record, for /infra
	Metrics      http.Handler        // nil disables GET /metrics
}

type RateLimit struct {
	Burst     int
	PerMinute int
}
