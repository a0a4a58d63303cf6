package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/restreamer/internal/httpserver/deps"
	"github.com/MrSnakeDoc/restreamer/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/restreamer/internal/httpserver/mw"
)

func init() { Register("probes", registerProbes) }

func registerProbes(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))

	restricted := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	restricted.Get("/readyz", handlers.Readyz(d))
	restricted.Get("/infra", handlers.Infra(d))
	if d.Metrics != nil {
		restricted.Method("GET", "/metrics", d.Metrics)
	}
}
