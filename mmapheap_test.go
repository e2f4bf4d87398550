package mmapheap

import (
	"testing"
	"unsafe"
)

// These exercise the public API against the default configuration, where
// the 2 GiB threshold means every allocation here is small enough
// to route to the host allocator. internal/dispatch and internal/heap
// carry the file-backed-path coverage with a heap sized for testing.

func TestAllocFreeRoundTrip(t *testing.T) {
	ptr := Alloc(64)
	if ptr == nil {
		t.Fatal("Alloc returned nil")
	}

	data := unsafe.Slice((*byte)(ptr), 64)
	for i := range data {
		data[i] = byte(i)
	}
	for i := range data {
		if data[i] != byte(i) {
			t.Fatalf("byte %d = %d, want %d", i, data[i], byte(i))
		}
	}

	Free(ptr)
}

func TestAllocZeroedIsZero(t *testing.T) {
	ptr := AllocZeroed(8, 8)
	if ptr == nil {
		t.Fatal("AllocZeroed returned nil")
	}

	data := unsafe.Slice((*byte)(ptr), 64)
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}

	Free(ptr)
}

func TestReallocGrow(t *testing.T) {
	ptr := Alloc(16)
	data := unsafe.Slice((*byte)(ptr), 16)
	for i := range data {
		data[i] = 0xCD
	}

	grown := Realloc(ptr, 128)
	if grown == nil {
		t.Fatal("Realloc returned nil")
	}

	grownData := unsafe.Slice((*byte)(grown), 16)
	for i := range grownData {
		if grownData[i] != 0xCD {
			t.Fatalf("prefix byte %d = %#x, want 0xcd", i, grownData[i])
		}
	}

	Free(grown)
}

func TestReallocArrayOverflowReturnsNil(t *testing.T) {
	const huge = ^uintptr(0)
	if got := ReallocArray(nil, huge, 2); got != nil {
		t.Fatal("ReallocArray should return nil on overflow")
	}
}

func TestFreeNilIsNoop(t *testing.T) {
	Free(nil)
}
