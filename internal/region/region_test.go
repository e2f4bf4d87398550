package region

import "testing"

func TestContains(t *testing.T) {
	r := Region{Base: 0x1000, Capacity: 0x2000}

	cases := []struct {
		addr uintptr
		want bool
	}{
		{0x0fff, false},
		{0x1000, true},
		{0x2fff, true},
		{0x3000, false},
	}

	for _, c := range cases {
		if got := r.Contains(c.addr); got != c.want {
			t.Errorf("Contains(%#x) = %v, want %v", c.addr, got, c.want)
		}
	}
}

func TestReserveAndDispose(t *testing.T) {
	const capacity = 16 * 1024 * 1024

	base, err := Reserve(capacity)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if base == 0 {
		t.Fatal("Reserve returned zero base")
	}

	r := Region{Base: base, Capacity: capacity}
	if !r.Contains(base) {
		t.Error("region does not contain its own base")
	}
	if r.Contains(base + capacity) {
		t.Error("region contains its own end (should be exclusive)")
	}

	if err := Dispose(base, capacity); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
}

func TestReserveRejectsUnaligned(t *testing.T) {
	if _, err := Reserve(1); err == nil {
		t.Fatal("expected error for unaligned capacity")
	}
}
