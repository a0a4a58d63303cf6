// Package identity assigns stable identifiers to freshly loaded relays.
//
// A relay file carries no id field. Ids are matched against the durable
// identity record of the previous successful load by (source, target)
// pair; unmatched relays get a new uuid. The record is then rewritten by
// the caller, so identity is "last successful load wins".
package identity

import (
	"github.com/google/uuid"

	"github.com/MrSnakeDoc/restreamer/internal/domain"
)

// Duplicate is a candidate dropped because an earlier one in file order
// already uses its (source, target) pair.
type Duplicate struct {
	Relay    domain.Relay
	KeptID   string
	Position int // 0-based index in the candidate list
}

type Reconciler struct {
	newID func() string
}

func NewReconciler() *Reconciler {
	return &Reconciler{newID: uuid.NewString}
}

// NewReconcilerWithIDs is used by tests to make generated ids predictable.
func NewReconcilerWithIDs(gen func() string) *Reconciler {
	return &Reconciler{newID: gen}
}

// Reconcile builds a ConfigModel from candidates, reusing ids from prior.
// The first candidate of a duplicated pair wins.
func (rc *Reconciler) Reconcile(candidates []domain.Relay, prior []domain.Identity) (*domain.ConfigModel, []Duplicate) {
	known := make(map[domain.Endpoint]string, len(prior))
	for _, p := range prior {
		if p.ID == "" {
			continue
		}
		if _, ok := known[p.Endpoint()]; !ok {
			known[p.Endpoint()] = p.ID
		}
	}

	model := domain.NewConfigModel()
	accepted := make(map[domain.Endpoint]string, len(candidates))
	var dups []Duplicate

	for i, c := range candidates {
		ep := c.Endpoint()
		if keptID, ok := accepted[ep]; ok {
			dups = append(dups, Duplicate{Relay: c, KeptID: keptID, Position: i})
			continue
		}

		id, ok := known[ep]
		if !ok {
			id = rc.freshID(model)
		}
		c.ID = id
		if err := model.Add(c); err != nil {
			// Two prior entries can only collide on id if the record was
			// edited by hand; fall back to a fresh id.
			c.ID = rc.freshID(model)
			_ = model.Add(c)
		}
		accepted[ep] = c.ID
	}

	return model, dups
}

func (rc *Reconciler) freshID(model *domain.ConfigModel) string {
	for {
		id := rc.newID()
		if _, taken := model.Get(id); !taken && id != "" {
			return id
		}
	}
}
