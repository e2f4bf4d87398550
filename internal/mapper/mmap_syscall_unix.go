//go:build linux

package mapper

import "golang.org/x/sys/unix"

// mmapFixed installs a mapping at exactly addr. golang.org/x/sys/unix's
// Mmap wrapper never exposes an address hint, so MAP_FIXED placement goes
// through the raw syscall directly, the way the teacher's
// internal/runtime/asyncio zero-copy file code drops to unix.Syscall6 for
// operations its higher-level wrapper doesn't cover.
func mmapFixed(fd int, addr, length uintptr, prot, flags int) error {
	r1, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, length,
		uintptr(prot), uintptr(flags), uintptr(fd), 0)
	if errno != 0 {
		return errno
	}
	if r1 != addr {
		// The kernel honored MAP_FIXED by definition or failed outright;
		// a mismatch here means flags were wrong, not a runtime fault.
		_, _, _ = unix.Syscall(unix.SYS_MUNMAP, r1, length, 0)
		return unix.EINVAL
	}

	return nil
}
