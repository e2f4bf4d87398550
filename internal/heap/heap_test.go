package heap

import (
	"testing"

	"github.com/vireoheap/mmapheap/internal/registry"
)

const (
	p = 4096
	c = 16 * p
)

func newHeap(t *testing.T) *Heap {
	t.Helper()
	h := New()
	if err := h.Init(0, c); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return h
}

func TestBasicAllocateFree(t *testing.T) {
	h := newHeap(t)

	a := h.Allocate(2 * p)
	if a == nil || a.Addr != 0 || a.Size != 2*p {
		t.Fatalf("a = %+v, want addr 0 size %d", a, 2*p)
	}

	h.Free(a)

	if err := h.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
	if h.reg.Head().Size != c || h.reg.Head().State != registry.Free {
		t.Fatalf("expected single free block of size %d after free, got %+v", c, h.reg.Head())
	}
}

func TestSplit(t *testing.T) {
	h := newHeap(t)

	a := h.Allocate(2 * p)
	b := h.Allocate(3 * p)

	if a.Addr != 0 {
		t.Fatalf("a.Addr = %#x, want 0", a.Addr)
	}
	if b.Addr != 2*p {
		t.Fatalf("b.Addr = %#x, want %#x", b.Addr, 2*p)
	}

	tail := h.reg.Successor(b)
	if tail == nil || tail.Size != 11*p || tail.State != registry.Free {
		t.Fatalf("tail = %+v, want free block of size %d", tail, 11*p)
	}
}

func TestCoalesceBothSides(t *testing.T) {
	h := newHeap(t)

	a := h.Allocate(2 * p)
	b := h.Allocate(3 * p)

	h.Free(a)
	h.Free(b)

	if err := h.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
	if h.reg.Head().Addr != 0 || h.reg.Head().Size != c {
		t.Fatalf("expected single block spanning region, got %+v", h.reg.Head())
	}
}

func TestNonAdjacentFreeNoMerge(t *testing.T) {
	h := newHeap(t)

	a := h.Allocate(p)
	b := h.Allocate(p)
	cBlk := h.Allocate(p)

	h.Free(a)
	h.Free(cBlk)

	if err := h.CheckInvariants(); err != nil {
		t.Fatal(err)
	}

	var sizes []uintptr
	var states []registry.State
	h.reg.Walk(func(blk *registry.Block) bool {
		sizes = append(sizes, blk.Size)
		states = append(states, blk.State)
		return true
	})

	// c coalesces with the free tail after it; a has no free neighbor.
	want := []uintptr{p, p, 14 * p}
	if len(sizes) != len(want) {
		t.Fatalf("got %d blocks, want %d: sizes=%v", len(sizes), len(want), sizes)
	}
	for i, s := range want {
		if sizes[i] != s {
			t.Fatalf("block %d size = %d, want %d (sizes=%v)", i, sizes[i], s, sizes)
		}
	}
	if states[1] != registry.InUse {
		t.Fatalf("middle block should remain IN_USE (b), got %v", states[1])
	}
	if h.reg.FindContaining(p) != b {
		t.Fatal("second block should still be b")
	}
}

func TestIdempotentFreeThenAlloc(t *testing.T) {
	h := newHeap(t)

	a := h.Allocate(4 * p)
	h.Free(a)
	b := h.Allocate(4 * p)

	if a.Addr != b.Addr {
		t.Fatalf("alloc-free-alloc should return the same address under first-fit, got %#x then %#x", a.Addr, b.Addr)
	}
}

func TestFitMonotonicity(t *testing.T) {
	h := newHeap(t)
	if h.Allocate(10*p) == nil {
		t.Fatal("alloc(10p) should succeed on an empty heap")
	}

	h2 := newHeap(t)
	if h2.Allocate(4*p) == nil {
		t.Fatal("alloc(4p) should also succeed on an empty heap")
	}
}

func TestExhaustion(t *testing.T) {
	h := newHeap(t)

	if h.Allocate(c) == nil {
		t.Fatal("allocating the whole region should succeed")
	}
	if h.Allocate(p) != nil {
		t.Fatal("allocation after exhaustion should return nil")
	}
}

func TestAllocRoundsNoneHereButRejectsBadInit(t *testing.T) {
	h := New()
	if err := h.Init(1, p); err == nil {
		t.Fatal("Init with unaligned base should fail")
	}
}
