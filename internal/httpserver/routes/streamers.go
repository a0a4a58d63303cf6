package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/restreamer/internal/httpserver/deps"
	"github.com/MrSnakeDoc/restreamer/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/restreamer/internal/httpserver/mw"
)

func init() { Register("streamers", registerStreamers) }

func registerStreamers(r chi.Router, d deps.Deps) {
	r.Route("/api/streamers", func(r chi.Router) {
		r.Use(
			mw.JSONNoStore,
			mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
			mw.EnforceHost(d.AllowedHosts, d.Logger),
		)
		r.Get("/", handlers.ListStreamers(d))
		r.Options("/{id}", handlers.Preflight)
		r.With(mutationLimit(d)).Patch("/{id}", handlers.PatchStreamer(d))
	})
}

func mutationLimit(d deps.Deps) Middleware {
	return mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.RateLimit.Burst,
		RefillPerIPPerMin: d.RateLimit.PerMinute,
		MaxEntries:        1024,
		TrustProxy:        d.TrustProxy,
		Now:               d.TimeNow,
	})
}
