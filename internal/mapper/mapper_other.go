//go:build !linux

package mapper

import "github.com/vireoheap/mmapheap/internal/diag"

// MapBacked is unimplemented outside Linux: placing a mapping at an exact
// address via MAP_FIXED through a raw syscall is not portable across the
// BSDs and Darwin's libSystem-mediated syscall surface without per-platform
// assembly the teacher's corpus has no precedent for.
func (m *Mapper) MapBacked(addr, size uintptr, template string) error {
	return diag.New(diag.MappingFailed, "file-backed mapping is only implemented on linux")
}

// Unmap is unimplemented outside Linux, for the same reason as MapBacked.
func (m *Mapper) Unmap(addr, size uintptr) error {
	return diag.New(diag.MappingFailed, "file-backed mapping is only implemented on linux")
}
