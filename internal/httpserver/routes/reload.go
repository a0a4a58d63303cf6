package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/restreamer/internal/httpserver/deps"
	"github.com/MrSnakeDoc/restreamer/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/restreamer/internal/httpserver/mw"
)

func init() { Register("reload", registerReload) }

func registerReload(r chi.Router, d deps.Deps) {
	if d.Reloader == nil {
		return
	}
	r.With(
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
		mw.EnforceHost(d.AllowedHosts, d.Logger),
		mutationLimit(d),
	).Post("/api/reload", handlers.Reload(d))
}
