//go:build unix

package region

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/vireoheap/mmapheap/internal/diag"
	"github.com/vireoheap/mmapheap/internal/pageutil"
)

// Reserve acquires a capacity-byte virtual range with no physical pages
// committed. It is backed by an anonymous, PROT_NONE mapping with
// MAP_NORESERVE — the closest POSIX equivalent of a placeholder mapping
// whose sub-ranges mapper.MapBacked later replaces via MAP_FIXED, per
// spec.md §4.1. capacity must already be page-aligned; the returned base
// is page-aligned by construction (mmap never returns a misaligned
// address).
func Reserve(capacity uintptr) (uintptr, error) {
	if capacity == 0 || !pageutil.IsAligned(capacity) {
		return 0, diag.New(diag.RegionReserveFailed, "capacity %d is not page aligned", capacity)
	}

	data, err := unix.Mmap(-1, 0, int(capacity), unix.PROT_NONE,
		unix.MAP_ANON|unix.MAP_PRIVATE|unix.MAP_NORESERVE)
	if err != nil {
		return 0, diag.New(diag.RegionReserveFailed, "mmap reservation failed: %v", err)
	}

	return uintptr(unsafe.Pointer(unsafe.SliceData(data))), nil
}

// Dispose releases the entire reservation. Only used by tests; the
// production dispatcher never tears
// down the region, per spec.md §3's process-lifetime lifecycle.
func Dispose(base, capacity uintptr) error {
	data := unsafe.Slice((*byte)(unsafe.Pointer(base)), capacity)
	return unix.Munmap(data)
}
