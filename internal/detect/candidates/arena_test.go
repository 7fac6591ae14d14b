package candidates

import (
	"errors"
	"slices"
	"testing"
)

func TestArena_AppendKeepsTimeOrder(t *testing.T) {
	a := NewArena(5)
	for _, tm := range []int{0, 1, 3} {
		a.Append(tm)
	}

	if got := a.Live(); !slices.Equal(got, []int{0, 1, 3}) {
		t.Errorf("Live() = %v, want [0 1 3]", got)
	}
	if a.Len() != 3 {
		t.Errorf("Len() = %d, want 3", a.Len())
	}
	if !a.Node(1).Alive() || a.Node(2).Alive() {
		t.Error("alive flags do not match appended candidates")
	}
}

func TestArena_SlotsCoverZeroToN(t *testing.T) {
	a := NewArena(3)
	if a.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", a.Size())
	}
	a.Append(0)
	a.Append(3)
	if !a.Node(3).Alive() {
		t.Error("last changepoint time n is not a live slot")
	}

	defer func() {
		if recover() == nil {
			t.Error("Append(n+1) did not panic")
		}
	}()
	a.Append(4)
}

func TestArena_AppendOutOfOrderPanics(t *testing.T) {
	a := NewArena(5)
	a.Append(2)

	defer func() {
		if recover() == nil {
			t.Error("Append() out of order did not panic")
		}
	}()
	a.Append(1)
}

func TestArena_ObserveBuildsSegment(t *testing.T) {
	a := NewArena(3)
	a.Append(0)

	n := a.Node(0)
	if n.Seg != nil {
		t.Fatal("fresh candidate must not carry statistics")
	}
	n.Observe(1)
	n.Observe(2)
	if n.Seg == nil || n.Seg.Len() != 2 {
		t.Fatalf("segment length = %v, want 2", n.Seg)
	}
}

func TestArena_PruneReleasesState(t *testing.T) {
	a := NewArena(6)
	for tm := 0; tm <= 4; tm++ {
		a.Append(tm)
		a.Node(tm).Observe(float64(tm))
	}

	removed := a.Prune(func(n *Node) bool { return n.T%2 == 1 })
	if removed != 2 {
		t.Errorf("Prune() removed %d, want 2", removed)
	}
	if got := a.Live(); !slices.Equal(got, []int{0, 2, 4}) {
		t.Errorf("Live() = %v, want [0 2 4]", got)
	}
	for _, tm := range []int{1, 3} {
		n := a.Node(tm)
		if n.Alive() || n.Seg != nil {
			t.Errorf("pruned node %d still holds state", tm)
		}
	}
	if a.Peak() != 5 {
		t.Errorf("Peak() = %d, want 5", a.Peak())
	}
}

func TestArena_EachStopsOnError(t *testing.T) {
	a := NewArena(4)
	for tm := 0; tm < 4; tm++ {
		a.Append(tm)
	}

	stop := errors.New("stop")
	var visited []int
	err := a.Each(func(n *Node) error {
		visited = append(visited, n.T)
		if n.T == 1 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("Each() error = %v, want stop", err)
	}
	if !slices.Equal(visited, []int{0, 1}) {
		t.Errorf("visited = %v, want [0 1]", visited)
	}
}

func TestArena_ReleaseIsIdempotent(t *testing.T) {
	a := NewArena(3)
	a.Append(0)
	a.Node(0).Observe(1)

	a.Release()
	a.Release()

	if !a.Released() {
		t.Fatal("Released() = false after Release")
	}
	if a.Len() != 0 {
		t.Errorf("Len() = %d after Release, want 0", a.Len())
	}
	if a.Node(0).Seg != nil {
		t.Error("Release() left segment statistics behind")
	}
}
