//go:build linux

package mapper

import (
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/vireoheap/mmapheap/internal/diag"
)

// MapBacked installs a read-write shared mapping of a fresh size-byte
// temporary file at addr, replacing whatever placeholder mapping the
// region reservation left there. The steps follow spec.md §4.5.1: create
// an uniquely named file, unlink it immediately (its inode stays alive as
// long as the fd or the mapping references it), extend it to size,
// mmap MAP_FIXED over addr, then close the descriptor.
func (m *Mapper) MapBacked(addr, size uintptr, template string) error {
	fd, err := m.createAnonymousFile(template)
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return diag.New(diag.MappingFailed, "ftruncate to %d bytes failed: %v", size, err)
	}

	if err := mmapFixed(fd, addr, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_FIXED); err != nil {
		return diag.New(diag.MappingFailed, "mmap MAP_FIXED at %#x failed: %v", addr, err)
	}

	return nil
}

// Unmap removes the file-backed mapping at (addr, size) and replaces it
// with a PROT_NONE placeholder so the range remains part of the reserved
// region (spec.md §4.5.2) and available for a future MapBacked call.
func (m *Mapper) Unmap(addr, size uintptr) error {
	if err := mmapFixed(-1, addr, size, unix.PROT_NONE,
		unix.MAP_ANON|unix.MAP_PRIVATE|unix.MAP_FIXED|unix.MAP_NORESERVE); err != nil {
		return diag.New(diag.MappingFailed, "restoring placeholder mapping at %#x failed: %v", addr, err)
	}

	return nil
}

// createAnonymousFile creates a uniquely-named file from template in the
// mapper's temp directory, unlinks it immediately, and returns its open
// descriptor. Collisions (a name already in use) are retried on a fresh
// random name, per spec.md §4.5.3.
func (m *Mapper) createAnonymousFile(template string) (int, error) {
	var lastErr error

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name, err := fillTemplate(template)
		if err != nil {
			return -1, err
		}

		path := filepath.Join(m.tmpDir, name)

		fd, err := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, 0o600)
		if err != nil {
			if err == unix.EEXIST {
				lastErr = err
				continue
			}
			return -1, diag.New(diag.MappingFailed, "creating backing file %q failed: %v", path, err)
		}

		if err := unix.Unlink(path); err != nil {
			unix.Close(fd)
			return -1, diag.New(diag.MappingFailed, "unlinking backing file %q failed: %v", path, err)
		}

		return fd, nil
	}

	return -1, diag.New(diag.MappingFailed, "could not create a unique backing file after %d attempts: %v", maxNameAttempts, lastErr)
}
