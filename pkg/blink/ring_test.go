package blink

import "testing"

func TestRing_OverwritesOldest(t *testing.T) {
	r := NewRing[int](4)
	for i := 0; i < 6; i++ {
		r.Push(i)
	}

	if r.Len() != 4 || r.Cap() != 4 {
		t.Fatalf("Len/Cap = %d/%d, want 4/4", r.Len(), r.Cap())
	}
	if r.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", r.Dropped())
	}
	got := r.Drain()
	want := []int{2, 3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Drain() = %v, want %v", got, want)
		}
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after Drain", r.Len())
	}

	r.Push(9)
	if got := r.Drain(); len(got) != 1 || got[0] != 9 {
		t.Errorf("Drain() = %v, want [9]", got)
	}
}
