package dispatch

import (
	"testing"
	"unsafe"

	"github.com/vireoheap/mmapheap/internal/config"
)

const (
	testPage      = 4096
	testHeapSize  = 16 * testPage
	testThreshold = testPage
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()

	t.Setenv(config.EnvHeapSize, itoa(testHeapSize))
	t.Setenv(config.EnvMinBlockSize, itoa(testThreshold))

	d := New()
	d.ensureInit()

	if d.Status() != Loaded {
		t.Fatalf("test dispatcher failed to initialize: status=%v", d.Status())
	}

	return d
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := make([]byte, 0, 20)
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestRoutingBelowThreshold(t *testing.T) {
	d := newTestDispatcher(t)

	ptr := d.Alloc(testThreshold / 2)
	if ptr == nil {
		t.Fatal("small alloc should succeed via host allocator")
	}
	if d.region.Contains(uintptr(ptr)) {
		t.Fatal("sub-threshold allocation should not land inside the heap region")
	}
	d.Free(ptr)
}

func TestBasicAllocateFree(t *testing.T) {
	d := newTestDispatcher(t)

	ptr := d.Alloc(2 * testPage)
	if ptr == nil {
		t.Fatal("Alloc failed")
	}
	if uintptr(ptr) != d.region.Base {
		t.Fatalf("first allocation should land at the region base, got %#x want %#x", ptr, d.region.Base)
	}

	d.Free(ptr)

	if err := d.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
}

func TestRoundTripContent(t *testing.T) {
	d := newTestDispatcher(t)

	ptr := d.Alloc(4 * testPage)
	if ptr == nil {
		t.Fatal("Alloc failed")
	}

	data := unsafe.Slice((*byte)(ptr), 4*testPage)
	for i := range data {
		data[i] = byte(i % 251)
	}
	for i := range data {
		if data[i] != byte(i%251) {
			t.Fatalf("content mismatch at byte %d", i)
		}
	}

	d.Free(ptr)
}

func TestReallocGrowPreservesPrefix(t *testing.T) {
	d := newTestDispatcher(t)

	ptr := d.Alloc(testPage)
	data := unsafe.Slice((*byte)(ptr), testPage)
	for i := range data {
		data[i] = 0xAB
	}

	grown := d.Realloc(ptr, 3*testPage)
	if grown == nil {
		t.Fatal("Realloc failed")
	}

	newData := unsafe.Slice((*byte)(grown), testPage)
	for i := range newData {
		if newData[i] != 0xAB {
			t.Fatalf("prefix byte %d = %#x, want 0xAB", i, newData[i])
		}
	}

	d.Free(grown)
}

func TestReallocNoShrinkInPlace(t *testing.T) {
	d := newTestDispatcher(t)

	ptr := d.Alloc(4 * testPage)
	shrunk := d.Realloc(ptr, testPage)

	if shrunk != ptr {
		t.Fatalf("shrinking realloc should return the same pointer, got %#x want %#x", shrunk, ptr)
	}

	d.Free(ptr)
}

func TestAllocZeroedZeroesContent(t *testing.T) {
	d := newTestDispatcher(t)

	ptr := d.AllocZeroed(2, testPage)
	if ptr == nil {
		t.Fatal("AllocZeroed failed")
	}

	data := unsafe.Slice((*byte)(ptr), 2*testPage)
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d = %#x, want 0", i, b)
		}
	}

	d.Free(ptr)
}

func TestReallocArrayOverflow(t *testing.T) {
	d := newTestDispatcher(t)

	if got := d.ReallocArray(nil, maxUintptr, 2); got != nil {
		t.Fatal("ReallocArray should report overflow as nil")
	}
}

func TestExhaustion(t *testing.T) {
	d := newTestDispatcher(t)

	whole := d.Alloc(testHeapSize)
	if whole == nil {
		t.Fatal("allocating the entire heap should succeed")
	}

	if got := d.Alloc(testPage); got != nil {
		t.Fatal("allocation after exhaustion should return nil")
	}

	d.Free(whole)
}

func TestFreeNilIsNoop(t *testing.T) {
	d := newTestDispatcher(t)
	d.Free(nil)
}

func TestFreeUnknownAddressIsNoop(t *testing.T) {
	d := newTestDispatcher(t)

	bogus := unsafe.Pointer(d.region.Base + testPage)
	d.Free(bogus) // address inside the region but never allocated; must not panic
}

func TestStatsReflectsLiveAllocations(t *testing.T) {
	d := newTestDispatcher(t)

	a := d.Alloc(2 * testPage)
	b := d.Alloc(3 * testPage)

	stats := d.Stats()
	if stats.Status != Loaded {
		t.Fatalf("Status = %v, want Loaded", stats.Status)
	}
	if stats.LiveBlocks != 2 || stats.BytesInUse != 5*testPage {
		t.Fatalf("unexpected stats after two allocations: %+v", stats)
	}

	d.Free(a)
	d.Free(b)

	stats = d.Stats()
	if stats.LiveBlocks != 0 || stats.BytesInUse != 0 {
		t.Fatalf("unexpected stats after freeing everything: %+v", stats)
	}
}

func TestDebugHeapCheckDoesNotPanicOnHealthyHeap(t *testing.T) {
	t.Setenv(config.EnvHeapSize, itoa(testHeapSize))
	t.Setenv(config.EnvMinBlockSize, itoa(testThreshold))
	t.Setenv(config.EnvDebugHeapChk, "1")

	d := New()
	d.ensureInit()

	a := d.Alloc(testPage)
	d.Free(a)
}
