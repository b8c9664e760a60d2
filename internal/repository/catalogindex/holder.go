package catalogindex

import (
	"sync/atomic"

	"github.com/kailas-cloud/skurag/internal/domain"
	"github.com/kailas-cloud/skurag/internal/domain/catalog"
)

// Holder publishes a fully built index to concurrent readers.
// Replacements are swapped in whole; readers never see a partial index.
type Holder struct {
	current atomic.Pointer[Flat]
}

// NewHolder creates a holder serving idx (may be nil until the first Swap).
func NewHolder(idx *Flat) *Holder {
	h := &Holder{}
	if idx != nil {
		h.current.Store(idx)
	}
	return h
}

// Swap publishes idx and returns the previous index.
func (h *Holder) Swap(idx *Flat) *Flat {
	return h.current.Swap(idx)
}

// Current returns the published index or nil.
func (h *Holder) Current() *Flat {
	return h.current.Load()
}

// Search delegates to the published index.
func (h *Holder) Search(query []float32, k int) (catalog.Result, error) {
	idx := h.current.Load()
	if idx == nil {
		return nil, domain.ErrIndexNotReady
	}
	return idx.Search(query, k)
}

// Len returns the size of the published index, 0 if none.
func (h *Holder) Len() int {
	if idx := h.current.Load(); idx != nil {
		return idx.Len()
	}
	return 0
}

// Ready reports whether an index has been published.
func (h *Holder) Ready() bool {
	return h.current.Load() != nil
}
