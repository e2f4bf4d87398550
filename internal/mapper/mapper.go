// Package mapper implements the file-backed mapper (C5): for a block
// already carved out by the heap manager, install a uniquely-named
// temporary file mapping over its address range, and later replace that
// mapping with a placeholder so the range stays reserved for reuse.
// Grounded on spec.md §4.5 and the create-unlink-truncate-map sequence in
// original_source/src/mmap_allocator.c's mmap_maptemp/mmap_unmap helpers,
// expressed with golang.org/x/sys/unix the way the teacher's
// internal/runtime/asyncio zero-copy file code does.
package mapper

import "os"

const maxNameAttempts = 8

// Mapper installs and removes file-backed mappings within a region already
// reserved by internal/region. It carries no per-block state of its own
// (spec.md §3: "the mapper does not keep an external table"); every
// operation is keyed by the caller-supplied (addr, size).
type Mapper struct {
	tmpDir string
	tmpl   string
}

// New returns a Mapper that creates backing files in os.TempDir(). Each
// MapBacked call names its file from the template passed to that call
// (spec.md §4.5.3: the template's trailing run of 'X' characters is
// replaced with random characters on each call); the tmpl given here is
// stored but MapBacked does not read it.
func New(tmpl string) *Mapper {
	return &Mapper{tmpDir: os.TempDir(), tmpl: tmpl}
}
