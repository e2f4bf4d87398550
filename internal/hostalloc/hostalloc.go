// Package hostalloc stands in for "the platform's default allocation
// library" that spec.md treats as an opaque external collaborator. Go has
// no addressable malloc/free, so this package plays that role by handing
// out unsafe.Pointers backed by GC-managed slices and remembering each
// slice's size so Free/Realloc can recover it — the same tracked-slice
// technique the teacher's system allocator used, trimmed to only what the
// dispatcher needs from a host allocator.
package hostalloc

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// Allocator is a drop-in stand-in for the host's malloc/free/realloc.
type Allocator struct {
	mu      sync.RWMutex
	slices  map[unsafe.Pointer][]byte
	alloced uint64
	freed   uint64
}

// New returns a ready-to-use host allocator.
func New() *Allocator {
	return &Allocator{slices: make(map[unsafe.Pointer][]byte)}
}

// Alloc returns size bytes of GC-managed memory, or nil for a zero-size
// request.
func (a *Allocator) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	buf := make([]byte, size)
	ptr := unsafe.Pointer(&buf[0])

	a.mu.Lock()
	a.slices[ptr] = buf
	a.mu.Unlock()

	atomic.AddUint64(&a.alloced, 1)

	return ptr
}

// Free releases a pointer previously returned by Alloc or Realloc. Freeing
// nil or an unknown pointer is a no-op.
func (a *Allocator) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	a.mu.Lock()
	_, known := a.slices[ptr]
	delete(a.slices, ptr)
	a.mu.Unlock()

	if known {
		atomic.AddUint64(&a.freed, 1)
	}
}

// Size returns the size of a previously allocated block, or 0 if ptr is
// unknown to this allocator.
func (a *Allocator) Size(ptr unsafe.Pointer) uintptr {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return uintptr(len(a.slices[ptr]))
}

// Realloc grows or shrinks a block, copying the overlapping prefix, exactly
// like libc realloc. A nil ptr behaves like Alloc.
func (a *Allocator) Realloc(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer {
	if ptr == nil {
		return a.Alloc(newSize)
	}

	if newSize == 0 {
		a.Free(ptr)
		return nil
	}

	oldSize := a.Size(ptr)

	newPtr := a.Alloc(newSize)
	if newPtr == nil {
		return nil
	}

	copySize := oldSize
	if newSize < copySize {
		copySize = newSize
	}

	if copySize > 0 {
		dst := unsafe.Slice((*byte)(newPtr), copySize)
		src := unsafe.Slice((*byte)(ptr), copySize)
		copy(dst, src)
	}

	a.Free(ptr)

	return newPtr
}

// Stats reports cumulative allocation/free counts for diagnostics.
type Stats struct {
	Allocations uint64
	Frees       uint64
	Live        int
}

func (a *Allocator) Stats() Stats {
	a.mu.RLock()
	live := len(a.slices)
	a.mu.RUnlock()

	return Stats{
		Allocations: atomic.LoadUint64(&a.alloced),
		Frees:       atomic.LoadUint64(&a.freed),
		Live:        live,
	}
}
