package bound

import (
	"context"

	"github.com/kailas-cloud/examharvest/internal/domain/lookup"
)

// Looker performs a single-key lookup.
type Looker interface {
	Lookup(ctx context.Context, key string) lookup.Outcome
}
