package scheduler

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/restreamer/internal/domain"
	"github.com/MrSnakeDoc/restreamer/internal/logger"
	"github.com/MrSnakeDoc/restreamer/internal/store"
)

// IdentityRecorder is notified of every successful identity write.
type IdentityRecorder interface {
	IdentitiesSaved(n int)
}

// IdentitySyncer writes the durable identity record. It is used after
// every successful load and once more on ordinary exit.
type IdentitySyncer struct {
	store  store.IdentityStore
	logger logger.Logger
	rec    IdentityRecorder
}

func NewIdentitySyncer(st store.IdentityStore, log logger.Logger, rec IdentityRecorder) *IdentitySyncer {
	return &IdentitySyncer{
		store:  st,
		logger: log,
		rec:    rec,
	}
}

// Prior reads the record left by the previous successful load.
func (is *IdentitySyncer) Prior(ctx context.Context) ([]domain.Identity, error) {
	ids, err := is.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity record from %s store: %w", is.store.Backend(), err)
	}
	return ids, nil
}

// Sync replaces the record with identities.
func (is *IdentitySyncer) Sync(ctx context.Context, identities []domain.Identity) error {
	if err := is.store.Save(ctx, identities); err != nil {
		return fmt.Errorf("failed to write identity record to %s store: %w", is.store.Backend(), err)
	}
	if is.rec != nil {
		is.rec.IdentitiesSaved(len(identities))
	}

	is.logger.Debug("identity record written",
		logger.String("backend", is.store.Backend()),
		logger.Int("count", len(identities)))
	return nil
}
