// Package pageutil provides page-size detection and alignment helpers shared
// by the region reservation, heap manager and dispatcher.
package pageutil

import "golang.org/x/sys/unix"

// Size is the host page size in bytes, detected once at package init.
var Size = uintptr(unix.Getpagesize())

// CeilToPage rounds size up to the next multiple of the page size.
func CeilToPage(size uintptr) uintptr {
	return (size + Size - 1) &^ (Size - 1)
}

// IsAligned reports whether addr is a multiple of the page size.
func IsAligned(addr uintptr) bool {
	return addr&(Size-1) == 0
}
