// Package region reserves the single contiguous virtual-address range that
// backs the entire heap (spec.md §4.1, component C1). The reservation
// itself never commits physical pages; individual page-aligned sub-ranges
// are later replaced with real file-backed mappings by internal/mapper.
package region

import "github.com/vireoheap/mmapheap/internal/diag"

// ErrUnsupportedPlatform is returned by Reserve on platforms without a
// placeholder-mapping equivalent.
var ErrUnsupportedPlatform = &diag.Error{
	Kind:    diag.RegionReserveFailed,
	Message: "platform does not support region reservation",
	Caller:  "region.Reserve",
}

// Region describes the reserved virtual-address range. It is immutable
// after Reserve returns.
type Region struct {
	Base     uintptr
	Capacity uintptr
}

// Contains reports whether addr falls within [Base, Base+Capacity).
func (r Region) Contains(addr uintptr) bool {
	return addr >= r.Base && addr < r.Base+r.Capacity
}
