// Package mmapheap is a large-object allocator that backs allocations
// above a configurable threshold with file-mapped virtual memory instead
// of the host's process heap, letting working sets exceed physical RAM at
// the cost of page-fault latency. Smaller requests fall through to the
// host allocator. See internal/dispatch for the routing and internal/heap
// for the block bookkeeping; this file is the thin, documented entry
// point spec.md §1 calls out as a deliberately "out of scope" forwarding
// layer, grounded on the teacher's cmd-level wrappers that do nothing but
// call into internal packages.
package mmapheap

import (
	"unsafe"

	"github.com/vireoheap/mmapheap/internal/dispatch"
)

// Alloc returns a pointer to at least size bytes of zero-value-uninitialized
// memory, or nil on failure. Requests at or above the configured threshold
// (ENV_MMAP_ALLOCATOR_MIN_BSIZE) are backed by a dedicated mapped file;
// smaller requests come from the host allocator.
func Alloc(size uintptr) unsafe.Pointer {
	return dispatch.Default().Alloc(size)
}

// AllocZeroed returns a pointer to count*elemSize bytes, zeroed, or nil if
// the product overflows or the allocation fails.
func AllocZeroed(count, elemSize uintptr) unsafe.Pointer {
	return dispatch.Default().AllocZeroed(count, elemSize)
}

// Realloc resizes the allocation at ptr to size bytes, preserving its
// contents up to the smaller of the old and new sizes. A nil ptr behaves
// like Alloc. Shrinking a file-backed allocation returns the same pointer
// unchanged (no in-place unmap); growing may return a different pointer.
func Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	return dispatch.Default().Realloc(ptr, size)
}

// ReallocArray is Realloc(ptr, size*count) with overflow checking on the
// product; it returns nil rather than wrapping on overflow.
func ReallocArray(ptr unsafe.Pointer, size, count uintptr) unsafe.Pointer {
	return dispatch.Default().ReallocArray(ptr, size, count)
}

// Free releases a pointer previously returned by Alloc, AllocZeroed,
// Realloc, or ReallocArray. Freeing nil is a no-op.
func Free(ptr unsafe.Pointer) {
	dispatch.Default().Free(ptr)
}

// Stats reports a point-in-time summary of heap and host-allocator
// activity. Forces initialization if it has not already happened.
func Stats() dispatch.Stats {
	return dispatch.Default().Stats()
}
