// Command mmapheap-smoke is the sole binary artifact over this allocator
// (spec.md §6: "the system is a library... a tiny smoke test executable
// that populates a container using this allocator is the only binary
// artifact"). It fills a slice-like container through mmapheap.AllocZeroed,
// verifies round-trip content, grows it past its initial capacity via
// Realloc, and reports what it saw. Grounded on
// original_source/mmaptest/test.cpp's vector-fill smoke test and the
// teacher's flag-based cmd/orizon-profile/main.go CLI style.
package main

import (
	"flag"
	"fmt"
	"os"
	"unsafe"

	"github.com/vireoheap/mmapheap"
)

func main() {
	var (
		count   = flag.Int("count", 16, "number of int64 elements to populate")
		grow    = flag.Int("grow", 32, "element count to grow to via realloc")
		verbose = flag.Bool("verbose", false, "print each element as it is written")
	)
	flag.Parse()

	if *count <= 0 || *grow < *count {
		fmt.Fprintln(os.Stderr, "mmapheap-smoke: -count must be positive and -grow must not be smaller than -count")
		os.Exit(2)
	}

	const elemSize = unsafe.Sizeof(int64(0))

	ptr := mmapheap.AllocZeroed(uintptr(*count), elemSize)
	if ptr == nil {
		fmt.Fprintln(os.Stderr, "mmapheap-smoke: allocation failed")
		os.Exit(1)
	}

	vec := unsafe.Slice((*int64)(ptr), *count)
	for i := range vec {
		vec[i] = int64(i)
		if *verbose {
			fmt.Printf("vec[%d] = %d\n", i, vec[i])
		}
	}

	grown := mmapheap.Realloc(ptr, uintptr(*grow)*elemSize)
	if grown == nil {
		fmt.Fprintln(os.Stderr, "mmapheap-smoke: realloc failed")
		os.Exit(1)
	}

	grownVec := unsafe.Slice((*int64)(grown), *grow)
	for i := 0; i < *count; i++ {
		if grownVec[i] != int64(i) {
			fmt.Fprintf(os.Stderr, "mmapheap-smoke: content mismatch at %d: got %d want %d\n", i, grownVec[i], i)
			os.Exit(1)
		}
	}
	for i := *count; i < *grow; i++ {
		grownVec[i] = int64(i)
	}

	fmt.Printf("populated %d elements, grew to %d, round-trip verified\n", *count, *grow)

	mmapheap.Free(grown)
}
