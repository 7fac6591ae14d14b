// Package candidates holds the live "last changepoint" candidates of a solve
// in an arena indexed by time 0..n. Slot 0 stands before the series: it is
// the first candidate, and the backward walk over a solution ends there.
package candidates

import (
	"fmt"

	"github.com/HerbHall/capa/internal/detect/robust"
)

// Node is one candidate changepoint at time T. Its segment covers T+1..now.
type Node struct {
	T       int
	Seg     *robust.Segment // nil until the first observation after T
	SegCost float64         // cost of Seg at the last evaluation
	alive   bool
}

// Observe extends the node's segment with the next observation.
func (n *Node) Observe(x float64) {
	if n.Seg == nil {
		n.Seg = robust.NewSegment(x)
		return
	}
	n.Seg.Extend(x)
}

// Alive reports whether the node is still a candidate.
func (n *Node) Alive() bool {
	return n.alive
}

// Arena owns every node of one solve. Pruning is a flag flip, teardown a
// single pass over the slots.
type Arena struct {
	nodes    []Node
	live     []int // ascending time order
	peak     int
	released bool
}

// NewArena allocates one slot per changepoint time 0..n of a series of
// length n.
func NewArena(n int) *Arena {
	nodes := make([]Node, n+1)
	for i := range nodes {
		nodes[i].T = i
	}
	return &Arena{
		nodes: nodes,
		live:  make([]int, 0, 16),
	}
}

// Size returns the series length the arena was built for.
func (a *Arena) Size() int {
	return len(a.nodes) - 1
}

// Append makes time t a live candidate with fresh statistics. Candidates
// must be appended in increasing time order.
func (a *Arena) Append(t int) {
	if t < 0 || t > a.Size() {
		panic(fmt.Sprintf("candidates: append %d outside [0, %d]", t, a.Size()))
	}
	if n := len(a.live); n > 0 && a.live[n-1] >= t {
		panic(fmt.Sprintf("candidates: append %d after %d", t, a.live[n-1]))
	}
	node := &a.nodes[t]
	node.Seg = nil
	node.SegCost = 0
	node.alive = true
	a.live = append(a.live, t)
	if len(a.live) > a.peak {
		a.peak = len(a.live)
	}
}

// Node returns the slot for time t, live or not.
func (a *Arena) Node(t int) *Node {
	return &a.nodes[t]
}

// Each visits live candidates in ascending time order. The first error
// returned by fn stops the scan.
func (a *Arena) Each(fn func(*Node) error) error {
	for _, t := range a.live {
		if err := fn(&a.nodes[t]); err != nil {
			return err
		}
	}
	return nil
}

// Prune removes every live candidate for which dominated returns true and
// releases its cached statistics. It returns the number of nodes removed.
func (a *Arena) Prune(dominated func(*Node) bool) int {
	kept := a.live[:0]
	removed := 0
	for _, t := range a.live {
		node := &a.nodes[t]
		if dominated(node) {
			node.alive = false
			node.Seg = nil
			removed++
			continue
		}
		kept = append(kept, t)
	}
	a.live = kept
	return removed
}

// Len returns the number of live candidates.
func (a *Arena) Len() int {
	return len(a.live)
}

// Live returns a copy of the live candidate times.
func (a *Arena) Live() []int {
	out := make([]int, len(a.live))
	copy(out, a.live)
	return out
}

// Peak returns the largest number of simultaneously live candidates.
func (a *Arena) Peak() int {
	return a.peak
}

// Release drops every node's statistics. Safe to call more than once.
func (a *Arena) Release() {
	if a.released {
		return
	}
	for i := range a.nodes {
		a.nodes[i].Seg = nil
		a.nodes[i].alive = false
	}
	a.live = a.live[:0]
	a.released = true
}

// Released reports whether Release has run.
func (a *Arena) Released() bool {
	return a.released
}
