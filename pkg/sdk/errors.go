package skurag

import "github.com/kailas-cloud/skurag/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrSchema            = domain.ErrSchema
	ErrEmptyCatalog      = domain.ErrEmptyCatalog
	ErrEncoding          = domain.ErrEncoding
	ErrDimensionMismatch = domain.ErrDimensionMismatch
	ErrInvalidArgument   = domain.ErrInvalidArgument
	ErrIndexNotReady     = domain.ErrIndexNotReady
)
