// Package dispatch implements the per-call router (C6): first-use
// initialization, address-range classification, and forwarding between
// the file-backed heap and the host allocator. Grounded on
// original_source/src/mmap_allocator.c's mmap_malloc/mmap_calloc/
// mmap_realloc/mmap_reallocarray/mmap_free routing and its LOADED/FAILED
// status latch, re-expressed with Go's sync primitives the way the
// teacher's singleton-handle packages do (a package-level instance guarded
// by sync.Once rather than C's function-local static initialization).
package dispatch

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/vireoheap/mmapheap/internal/config"
	"github.com/vireoheap/mmapheap/internal/diag"
	"github.com/vireoheap/mmapheap/internal/heap"
	"github.com/vireoheap/mmapheap/internal/hostalloc"
	"github.com/vireoheap/mmapheap/internal/mapper"
	"github.com/vireoheap/mmapheap/internal/pageutil"
	"github.com/vireoheap/mmapheap/internal/profiler"
	"github.com/vireoheap/mmapheap/internal/region"
	"github.com/vireoheap/mmapheap/internal/registry"
)

// Status mirrors spec.md §4.6.1's process-wide status, transitioning
// monotonically UNLOADED -> {LOADED, FAILED} exactly once.
type Status int32

const (
	Unloaded Status = iota
	Loaded
	Failed
)

// Dispatcher is the process-wide singleton routing every public call.
// Construct one with New for tests; production code goes through Default,
// which lazily creates and reuses a single instance (spec.md §9's
// "value owned by the library's module" design note).
type Dispatcher struct {
	status int32 // atomic Status

	mu     sync.Mutex
	region region.Region
	hp     *heap.Heap
	mp     *mapper.Mapper
	host   *hostalloc.Allocator
	cfg    *config.Snapshot
	prof   *profiler.Profiler

	initOnce sync.Once
}

var (
	singleton     *Dispatcher
	singletonOnce sync.Once
)

// Default returns the process-wide dispatcher, creating it on first call.
func Default() *Dispatcher {
	singletonOnce.Do(func() {
		singleton = New()
	})
	return singleton
}

// New returns a fresh, uninitialized dispatcher. Exported for tests that
// want an isolated instance rather than the process-wide singleton.
func New() *Dispatcher {
	return &Dispatcher{host: hostalloc.New()}
}

// Status reports the dispatcher's current status without forcing
// initialization.
func (d *Dispatcher) Status() Status {
	return Status(atomic.LoadInt32(&d.status))
}

// ensureInit performs spec.md §4.6.1's first-use initialization exactly
// once, latching Loaded or Failed. Every public entry point calls this,
// directly or through Alloc/Realloc, before touching heap state; Free(nil)
// and an overflowing AllocZeroed/ReallocArray return before reaching it.
func (d *Dispatcher) ensureInit() {
	d.initOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			diag.Logf("init: %v", err)
			atomic.StoreInt32(&d.status, int32(Failed))
			return
		}

		base, err := region.Reserve(cfg.HeapSize)
		if err != nil {
			diag.Logf("init: %v", err)
			atomic.StoreInt32(&d.status, int32(Failed))
			return
		}

		d.region = region.Region{Base: base, Capacity: cfg.HeapSize}
		d.hp = heap.New()
		if err := d.hp.Init(base, cfg.HeapSize); err != nil {
			diag.Logf("init: %v", err)
			atomic.StoreInt32(&d.status, int32(Failed))
			return
		}

		d.mp = mapper.New(cfg.NamingTemplate)
		d.cfg = cfg

		if cfg.ProfilePath != "" {
			p, err := profiler.New(cfg.ProfilePath, cfg.ProfileFreq, d)
			if err != nil {
				diag.Logf("init: profiler disabled: %v", err)
			} else {
				d.prof = p
				d.prof.Start()
			}
		}

		atomic.StoreInt32(&d.status, int32(Loaded))
	})
}

// Alloc implements alloc(n): routes to the file-backed heap when loaded
// and n meets the threshold, otherwise forwards to the host allocator.
func (d *Dispatcher) Alloc(n uintptr) unsafe.Pointer {
	d.ensureInit()

	if d.Status() != Loaded || n == 0 || n < d.cfg.MinBlockSize {
		return d.host.Alloc(n)
	}

	return d.allocBacked(n)
}

func (d *Dispatcher) allocBacked(n uintptr) unsafe.Pointer {
	size := pageutil.CeilToPage(n)

	d.mu.Lock()
	block := d.hp.Allocate(size)
	d.mu.Unlock()

	if block == nil {
		diag.Logf("alloc: %v", diag.New(diag.OutOfMemory, "no free block of at least %d bytes", size))
		return nil
	}

	if err := d.mp.MapBacked(block.Addr, block.Size, d.cfg.NamingTemplate); err != nil {
		d.mu.Lock()
		d.hp.Free(block)
		d.mu.Unlock()

		diag.Logf("alloc: %v", err)
		return nil
	}

	d.checkDebugInvariants()

	return unsafe.Pointer(block.Addr)
}

// AllocZeroed implements alloc_zeroed(count, elem_size): alloc(count*elem_size)
// followed by zeroing the returned range. Overflow in the product fails
// with OVERFLOW, mirroring ReallocArray's contract.
func (d *Dispatcher) AllocZeroed(count, elemSize uintptr) unsafe.Pointer {
	n, ok := mulOverflows(count, elemSize)
	if !ok {
		diag.Logf("alloc_zeroed: %v", diag.New(diag.Overflow, "count=%d * elem_size=%d overflows", count, elemSize))
		return nil
	}

	ptr := d.Alloc(n)
	if ptr == nil || n == 0 {
		return ptr
	}

	data := unsafe.Slice((*byte)(ptr), n)
	for i := range data {
		data[i] = 0
	}

	return ptr
}

// Free implements free(p): a no-op for nil, a forward to the host
// allocator for addresses outside the region, and an unmap-then-free for
// addresses the heap owns.
func (d *Dispatcher) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	d.ensureInit()

	addr := uintptr(ptr)
	if d.Status() != Loaded || !d.region.Contains(addr) {
		d.host.Free(ptr)
		return
	}

	d.mu.Lock()
	block := d.hp.FindContaining(addr)
	if block == nil || block.Addr != addr || block.State != registry.InUse {
		d.mu.Unlock()
		diag.Logf("free: %v", diag.New(diag.UnknownAddress, "address %#x is not a live allocation", addr))
		return
	}

	if err := d.mp.Unmap(block.Addr, block.Size); err != nil {
		d.mu.Unlock()
		diag.Logf("free: %v", err)
		return // leave block IN_USE: it is still mapped, so a retry is safe
	}

	d.hp.Free(block)
	d.mu.Unlock()

	d.checkDebugInvariants()
}

// Realloc implements realloc(p, n) per spec.md §4.6.2's routing table,
// preferring the single-copy migration path noted as the recommended
// resolution of the source's host-realloc-then-copy double move.
func (d *Dispatcher) Realloc(ptr unsafe.Pointer, n uintptr) unsafe.Pointer {
	if ptr == nil {
		return d.Alloc(n)
	}

	d.ensureInit()

	addr := uintptr(ptr)
	if d.Status() != Loaded || !d.region.Contains(addr) {
		return d.reallocHostOwned(ptr, n)
	}

	return d.reallocHeapOwned(ptr, addr, n)
}

func (d *Dispatcher) reallocHostOwned(ptr unsafe.Pointer, n uintptr) unsafe.Pointer {
	if d.Status() != Loaded || n < d.cfg.MinBlockSize {
		return d.host.Realloc(ptr, n)
	}

	// n crosses the threshold: migrate straight into the heap instead of
	// calling host-realloc first and copying a second time.
	oldSize := d.host.Size(ptr)

	newPtr := d.allocBacked(n)
	if newPtr == nil {
		return nil
	}

	copySize := oldSize
	if n < copySize {
		copySize = n
	}
	if copySize > 0 {
		copy(unsafe.Slice((*byte)(newPtr), copySize), unsafe.Slice((*byte)(ptr), copySize))
	}

	d.host.Free(ptr)

	return newPtr
}

func (d *Dispatcher) reallocHeapOwned(ptr unsafe.Pointer, addr, n uintptr) unsafe.Pointer {
	d.mu.Lock()
	block := d.hp.FindContaining(addr)
	if block == nil || block.Addr != addr || block.State != registry.InUse {
		d.mu.Unlock()
		diag.Logf("realloc: %v", diag.New(diag.UnknownAddress, "address %#x is not a live allocation", addr))
		return nil
	}

	if block.Size >= pageutil.CeilToPage(n) {
		d.mu.Unlock()
		return ptr // no shrink in place, per spec.md §4.6.2
	}
	oldSize := block.Size
	d.mu.Unlock()

	newPtr := d.allocBacked(n)
	if newPtr == nil {
		return nil
	}

	copy(unsafe.Slice((*byte)(newPtr), oldSize), unsafe.Slice((*byte)(ptr), oldSize))

	d.Free(ptr)

	return newPtr
}

// ReallocArray implements realloc_array(p, n, count) as realloc(p, n*count)
// with overflow detection on the product, per spec.md §4.6.2.
func (d *Dispatcher) ReallocArray(ptr unsafe.Pointer, n, count uintptr) unsafe.Pointer {
	size, ok := mulOverflows(n, count)
	if !ok {
		diag.Logf("realloc_array: %v", diag.New(diag.Overflow, "n=%d * count=%d overflows", n, count))
		return nil
	}

	return d.Realloc(ptr, size)
}

const maxUintptr = ^uintptr(0)

// mulOverflows returns a*b and whether the product fits in a uintptr.
func mulOverflows(a, b uintptr) (uintptr, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > maxUintptr/b {
		return 0, false
	}
	return a * b, true
}

// Stats is a point-in-time summary of heap and host-allocator activity,
// the supplemental counters SPEC_FULL.md §6 adds to the public API
// alongside the five forwarding entry points, grounded on the teacher's
// allocator.AllocatorStats shape.
type Stats struct {
	Status     Status
	LiveBlocks int
	FreeBlocks int
	BytesInUse uintptr
	BytesFree  uintptr
	HostAllocs uint64
	HostFrees  uint64
	HostLive   int
}

// Stats reports the current counters. It forces initialization if it has
// not already happened; if initialization failed, the heap counters are
// zero alongside the Failed status.
func (d *Dispatcher) Stats() Stats {
	d.ensureInit()

	d.mu.Lock()
	defer d.mu.Unlock()

	stats := Stats{Status: d.Status()}

	if d.hp != nil {
		d.hp.Walk(func(b *registry.Block) bool {
			if b.State == registry.InUse {
				stats.LiveBlocks++
				stats.BytesInUse += b.Size
			} else {
				stats.FreeBlocks++
				stats.BytesFree += b.Size
			}
			return true
		})
	}

	hs := d.host.Stats()
	stats.HostAllocs = hs.Allocations
	stats.HostFrees = hs.Frees
	stats.HostLive = hs.Live

	return stats
}

// checkDebugInvariants runs the consistency check when the dispatcher was
// configured with ENV_MMAP_DEBUG_HEAP_CHECK, logging any violation rather
// than propagating it — this is an assertion for development, not a path
// the public API can fail through.
func (d *Dispatcher) checkDebugInvariants() {
	if d.cfg == nil || !d.cfg.DebugHeapCheck {
		return
	}

	d.mu.Lock()
	err := d.hp.CheckInvariants()
	d.mu.Unlock()

	if err != nil {
		diag.Logf("debug heap check: %v", err)
	}
}

// Sample implements profiler.Source, snapshotting the heap and host
// allocator under the dispatcher's lock.
func (d *Dispatcher) Sample() profiler.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := profiler.Snapshot{Timestamp: time.Now()}

	if d.hp != nil {
		d.hp.Walk(func(b *registry.Block) bool {
			if b.State == registry.InUse {
				snap.LiveBlocks++
				snap.BytesInUse += b.Size
			} else {
				snap.FreeBlocks++
				snap.BytesFree += b.Size
			}
			return true
		})
	}

	hs := d.host.Stats()
	snap.HostAllocs = hs.Allocations
	snap.HostFrees = hs.Frees

	return snap
}

// CheckInvariants runs the debug consistency check (spec.md §4.4.4) under
// the heap lock. A no-op returning nil before initialization completes.
func (d *Dispatcher) CheckInvariants() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.hp == nil {
		return nil
	}
	return d.hp.CheckInvariants()
}
