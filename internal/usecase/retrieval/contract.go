package retrieval

import (
	"context"

	domcat "github.com/kailas-cloud/skurag/internal/domain/catalog"
)

// Source loads the ordered catalog.
type Source interface {
	Load(ctx context.Context) ([]domcat.Record, error)
}
