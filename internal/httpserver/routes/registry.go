package routes

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/restreamer/internal/httpserver/deps"
	"github.com/MrSnakeDoc/restreamer/internal/logger"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type group struct {
	name string
	reg  Registrar
	mws  []Middleware
}

var groups []group

// Register adds a named route group, mounted behind mws. Names must be
// unique; registration happens from init so a clash is a build defect.
func Register(name string, reg Registrar, mws ...Middleware) {
	for _, g := range groups {
		if g.name == name {
			panic(fmt.Sprintf("routes: group %q registered twice", name))
		}
	}
	groups = append(groups, group{name: name, reg: reg, mws: mws})
}

// RegisterAll mounts every group on r and returns their names in mount
// order.
func RegisterAll(r chi.Router, d deps.Deps) []string {
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		target := r
		if len(g.mws) > 0 {
			target = r.With(g.mws...)
		}
		g.reg(target, d)
		names = append(names, g.name)
	}
	if d.Logger != nil {
		d.Logger.Debug("routes mounted", logger.Strings("groups", names))
	}
	return names
}
