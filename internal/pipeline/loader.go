package pipeline

import (
	"context"

	"github.com/couchcryptid/erowatch-service/internal/domain"
)

// MultiLoader fans a batch out to several loaders in order and stops at the
// first failure. Put idempotent loaders first: a failed batch is retried from
// the start.
type MultiLoader []BatchLoader

// LoadBatch implements BatchLoader.
func (ml MultiLoader) LoadBatch(ctx context.Context, measurements []domain.Measurement) error {
	for _, l := range ml {
		if err := l.LoadBatch(ctx, measurements); err != nil {
			return err
		}
	}
	return nil
}
