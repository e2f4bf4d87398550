// Package heap composes the block registry (C2) and free index (C3) into
// the heap manager (C4): allocate/free with splitting and coalescing,
// page-alignment enforcement, and a debug consistency check. Grounded on
// the teacher's region allocator's Allocate/Deallocate pair, which drives
// the same split-on-alloc, coalesce-on-free algorithm over its own
// registry/free-list pair.
package heap

import (
	"fmt"

	"github.com/vireoheap/mmapheap/internal/diag"
	"github.com/vireoheap/mmapheap/internal/freeindex"
	"github.com/vireoheap/mmapheap/internal/pageutil"
	"github.com/vireoheap/mmapheap/internal/registry"
)

// Heap is the single per-process bookkeeping structure over the reserved
// region. It is not safe for concurrent use on its own; the dispatcher
// serializes access with its own lock, per spec.md §5.
type Heap struct {
	Base     uintptr
	Capacity uintptr

	reg  *registry.Registry
	free *freeindex.Index
}

// New creates a heap using the default first-fit-by-address policy.
func New() *Heap {
	return &Heap{reg: registry.New(), free: freeindex.New()}
}

// NewWithStrategy creates a heap using an alternative free-block selection
// strategy (spec.md §9's pluggable tie-break note).
func NewWithStrategy(s freeindex.Strategy) *Heap {
	return &Heap{reg: registry.New(), free: freeindex.NewWithStrategy(s)}
}

// Init seeds the heap with a single FREE block spanning [base, base+capacity).
// base and capacity must already be page-aligned; Init does not round them.
func (h *Heap) Init(base, capacity uintptr) error {
	if !pageutil.IsAligned(base) || !pageutil.IsAligned(capacity) || capacity == 0 {
		return diag.New(diag.ConfigInvalid, "heap init requires page-aligned, nonzero bounds (base=%#x capacity=%d)", base, capacity)
	}

	h.Base = base
	h.Capacity = capacity

	whole := h.reg.Init(base, capacity)
	h.free.Insert(whole)

	return nil
}

// Allocate reserves a block of exactly size bytes, splitting a larger free
// block if necessary. size must already be a page-aligned multiple; the
// dispatcher is responsible for rounding. Returns nil if no free block is
// large enough (OUT_OF_MEMORY, per spec.md §7).
func (h *Heap) Allocate(size uintptr) *registry.Block {
	victim := h.free.PickFit(size)
	if victim == nil {
		return nil
	}

	if victim.Size > size {
		head, tail := h.reg.Split(victim, size)
		h.free.Remove(victim)
		h.free.Insert(tail)
		victim = head
	} else {
		h.free.Remove(victim)
	}

	victim.State = registry.InUse

	return victim
}

// Free returns block to the heap, coalescing with FREE neighbors. block
// must be IN_USE and known to the registry; callers that violate this
// invariant get undefined results, matching spec.md §4.4.3's precondition.
func (h *Heap) Free(block *registry.Block) {
	block.State = registry.Free

	if pred := h.reg.Predecessor(block); pred != nil && pred.State == registry.Free {
		h.free.Remove(pred)
		block = h.reg.Merge(pred, block)
	}

	if succ := h.reg.Successor(block); succ != nil && succ.State == registry.Free {
		h.free.Remove(succ)
		block = h.reg.Merge(block, succ)
	}

	h.free.Insert(block)
}

// Walk calls fn for every live block in address order, stopping early if
// fn returns false. Exposes registry.Registry.Walk for callers (the
// profiler's sampler, the dispatcher's Stats) that only see the Heap, not
// its internal registry.
func (h *Heap) Walk(fn func(*registry.Block) bool) {
	h.reg.Walk(fn)
}

// FindContaining locates the block owning addr, or nil if addr falls
// outside every tracked block (which should not happen for an address
// known to lie within the region).
func (h *Heap) FindContaining(addr uintptr) *registry.Block {
	return h.reg.FindContaining(addr)
}

// CheckInvariants walks the registry in address order and verifies
// spec.md §3's invariants 1-3: full tiling, page alignment, no two
// adjacent FREE blocks, and that capacity is exactly accounted for. It
// does not check invariant 4: whether the free index holds exactly the
// FREE blocks is not compared.
// Intended for debug builds (config.Snapshot.DebugHeapCheck); callers must
// hold the dispatcher's heap lock while calling this, since it reads
// shared structure.
func (h *Heap) CheckInvariants() error {
	var (
		total    uintptr
		expected = h.Base
		prevFree bool
		first    = true
	)

	var walkErr error
	h.reg.Walk(func(b *registry.Block) bool {
		if b.Addr != expected {
			walkErr = fmt.Errorf("gap or overlap at %#x, expected %#x", b.Addr, expected)
			return false
		}
		if !pageutil.IsAligned(b.Addr) || !pageutil.IsAligned(b.Size) || b.Size == 0 {
			walkErr = fmt.Errorf("block at %#x not page-aligned (size=%d)", b.Addr, b.Size)
			return false
		}
		if !first && prevFree && b.State == registry.Free {
			walkErr = fmt.Errorf("adjacent FREE blocks at %#x", b.Addr)
			return false
		}

		total += b.Size
		expected = b.Addr + b.Size
		prevFree = b.State == registry.Free
		first = false

		return true
	})
	if walkErr != nil {
		return walkErr
	}

	if total != h.Capacity {
		return fmt.Errorf("tiling invariant violated: total %d != capacity %d", total, h.Capacity)
	}
	if expected != h.Base+h.Capacity {
		return fmt.Errorf("registry does not cover the full region: ends at %#x, want %#x", expected, h.Base+h.Capacity)
	}

	return nil
}
