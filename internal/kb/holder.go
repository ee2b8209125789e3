package kb

import "sync/atomic"

// Holder owns the active snapshot. Readers call Load once per query and work
// on that snapshot; Swap installs a replacement without blocking them.
type Holder struct {
	current atomic.Pointer[KnowledgeBase]
}

// NewHolder returns a Holder with k installed. k may be nil.
func NewHolder(k *KnowledgeBase) *Holder {
	h := &Holder{}
	if k != nil {
		h.current.Store(k)
	}
	return h
}

// Load returns the active snapshot, or nil when none was ever installed.
func (h *Holder) Load() *KnowledgeBase {
	return h.current.Load()
}

// Swap installs k and returns the previous snapshot.
func (h *Holder) Swap(k *KnowledgeBase) *KnowledgeBase {
	return h.current.Swap(k)
}

// Match runs query against the active snapshot. Without a snapshot the
// result is NotFound.
func (h *Holder) Match(query string, threshold float64) MatchResult {
	k := h.Load()
	if k == nil {
		return NotFound()
	}
	return k.Match(query, threshold)
}
