// Package freeindex implements the free-block selection structure (C3): an
// address-sorted view over every FREE block, used to pick a block for a new
// allocation. Grounded on the teacher's region allocator, which scans a
// singly-linked free list for the first block of adequate size; this
// version keeps that same address-ordered scan as the default Strategy but
// expresses it as a pluggable func so a best-fit policy can be swapped in,
// per spec.md §4.3 and §9's tie-break note.
package freeindex

import "github.com/vireoheap/mmapheap/internal/registry"

// Strategy selects one candidate from a slice of free blocks all known to
// be at least size bytes, or nil if candidates is empty (no block fits).
// Candidates are always presented in address order.
type Strategy func(candidates []*registry.Block, size uintptr) *registry.Block

// FirstFitByAddress returns the lowest-addressed candidate. This is the
// required default policy: deterministic layouts, simple to reproduce in
// tests.
func FirstFitByAddress(candidates []*registry.Block, size uintptr) *registry.Block {
	if len(candidates) == 0 {
		return nil
	}
	return candidates[0]
}

// BestFit returns the smallest candidate that still satisfies size,
// breaking ties by address. An alternative strategy permitted by spec.md
// §4.3 but never the default.
func BestFit(candidates []*registry.Block, size uintptr) *registry.Block {
	var best *registry.Block
	for _, b := range candidates {
		if best == nil || b.Size < best.Size {
			best = b
		}
	}
	return best
}

// Index maintains an address-sorted slice of every FREE block. Insert and
// Remove keep it sorted; PickFit scans it linearly, collecting every block
// of sufficient size, and lets the Strategy choose among them. The source this is grounded on
// does the same linear scan over its free list, so this mirrors that
// complexity rather than the O(log n) target spec.md reserves for C2.
type Index struct {
	blocks   []*registry.Block
	strategy Strategy
}

// New returns an empty free index using FirstFitByAddress.
func New() *Index {
	return &Index{strategy: FirstFitByAddress}
}

// NewWithStrategy returns an empty free index using the given Strategy.
func NewWithStrategy(s Strategy) *Index {
	return &Index{strategy: s}
}

// Insert adds block to the index. block must be FREE and not already
// present.
func (idx *Index) Insert(block *registry.Block) {
	i := idx.search(block.Addr)
	idx.blocks = append(idx.blocks, nil)
	copy(idx.blocks[i+1:], idx.blocks[i:])
	idx.blocks[i] = block
}

// Remove drops block from the index. A no-op if block is not present.
func (idx *Index) Remove(block *registry.Block) {
	i := idx.search(block.Addr)
	if i < len(idx.blocks) && idx.blocks[i] == block {
		idx.blocks = append(idx.blocks[:i], idx.blocks[i+1:]...)
	}
}

// PickFit returns a free block of at least size bytes chosen by the
// index's strategy, or nil if none qualifies.
func (idx *Index) PickFit(size uintptr) *registry.Block {
	candidates := make([]*registry.Block, 0, len(idx.blocks))
	for _, b := range idx.blocks {
		if b.Size >= size {
			candidates = append(candidates, b)
		}
	}
	return idx.strategy(candidates, size)
}

// Len reports how many free blocks are currently indexed.
func (idx *Index) Len() int {
	return len(idx.blocks)
}

func (idx *Index) search(addr uintptr) int {
	lo, hi := 0, len(idx.blocks)
	for lo < hi {
		mid := (lo + hi) / 2
		if idx.blocks[mid].Addr < addr {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
