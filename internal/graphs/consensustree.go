package graphs

import (
	"fmt"
)

const (
	NoEdge      = -1 // missing half-edge index (e.g. Next of a tip)
	NoScaler    = -1 // scaler slot of tips
	FullSupport = 1.0
)

// Split accepted for reconstruction, with the number of trees containing it
type SplitSupport struct {
	Split   Split
	Support uint32
}

// Pairwise compatible splits a consensus tree is built from. MaxSupport is the
// number of trees the support counts are relative to.
type SplitSystem struct {
	Splits     []SplitSupport
	MaxSupport uint32
}

func (sys *SplitSystem) Len() int {
	return len(sys.Splits)
}

// Fraction of trees supporting split i
func (sys *SplitSystem) Frequency(i int) float64 {
	if sys.MaxSupport == 0 {
		return FullSupport
	}
	return float64(sys.Splits[i].Support) / float64(sys.MaxSupport)
}

// One side of an edge. A vertex is the cycle of half-edges reachable through
// Next; Back is the half-edge on the other end of the edge. Split is the set of
// taxa on the vertex's side of the edge pointing away from the vertex towards
// the root, Support the fraction of trees containing the edge above the
// vertex.
type HalfEdge struct {
	Next  int
	Back  int
	Split Split

	Support      float64
	Label        string // tip label (tips only)
	NodeIndex    int
	CLVIndex     int
	PMatrixIndex int
	ScalerIndex  int
}

// Unrooted tree stored as an arena of half-edges. Tips are the half-edges
// with Next == NoEdge. Root is a half-edge of an inner vertex.
type ConsensusTree struct {
	Edges []HalfEdge
	Root  int
	Taxa  *TaxonTable
}

// Builds the unrooted tree displaying exactly the splits of sys (plus all
// trivial splits). An empty system gives the star tree. Returns an error
// wrapping ErrInvalidSplit if the splits do not fit in one tree, which means
// sys was not produced by a correct selection.
func BuildConsensusTree(sys *SplitSystem, taxa *TaxonTable) (*ConsensusTree, error) {
	n := taxa.Len()
	if n < MinTaxa {
		return nil, fmt.Errorf("%w, %d < %d", ErrTooFewTaxa, n, MinTaxa)
	}
	ct := &ConsensusTree{
		Edges: make([]HalfEdge, 0, 2*(2*n-3)+n),
		Taxa:  taxa,
	}
	for i, ss := range sys.Splits {
		if ss.Split.NTaxa() != n {
			return nil, fmt.Errorf("%w, split %d is over %d taxa, expected %d",
				ErrSplitLength, i, ss.Split.NTaxa(), n)
		}
		if c := ss.Split.Count(); c < 2 || c > n-2 {
			return nil, fmt.Errorf("%w, split %d (%s) is trivial or degenerate",
				ErrInvalidSplit, i, ss.Split)
		}
	}
	if sys.Len() == 0 {
		ct.buildStar(n)
	} else if err := ct.buildFromSplits(sys, n); err != nil {
		return nil, err
	}
	if err := ct.buildTips(ct.Root); err != nil {
		return nil, err
	}
	if err := ct.buildTips(ct.Edges[ct.Root].Back); err != nil {
		return nil, err
	}
	ct.assignIndices()
	return ct, nil
}

// one inner vertex (on the side of the complement of taxon 0) joined to every
// tip
func (ct *ConsensusTree) buildStar(n int) {
	first := SplitOf(n, 0)
	root := ct.newHalfEdge(first.Complement(), FullSupport)
	tip := ct.newHalfEdge(first, FullSupport)
	ct.link(root, tip)
	ct.Root = root
	for i := 1; i < n; i++ {
		ct.createNode(root, SplitOf(n, i), FullSupport)
	}
}

func (ct *ConsensusTree) buildFromSplits(sys *SplitSystem, n int) error {
	nSplits := sys.Len()
	first := sys.Splits[0].Split
	root := ct.newHalfEdge(first.Clone(), sys.Frequency(0))
	other := ct.newHalfEdge(first.Complement(), sys.Frequency(0))
	ct.link(root, other)
	ct.Root = root
	for i := 1; i < nSplits+n; i++ {
		var s Split
		support := FullSupport
		if i < nSplits {
			s = sys.Splits[i].Split.Clone()
			support = sys.Frequency(i)
		} else {
			s = SplitOf(n, i-nSplits)
		}
		side := ct.rootSide(s)
		if side == NoEdge {
			s = s.Complement()
			side = ct.rootSide(s)
		}
		if side == NoEdge {
			return fmt.Errorf("%w, splits are incompatible: %s conflicts with %s",
				ErrInvalidSplit, s, first)
		}
		parent := ct.findSplitNode(s, side)
		if parent == NoEdge {
			return fmt.Errorf("%w, no vertex found for split %s", ErrInvalidSplit, s)
		}
		if ct.Edges[parent].Split.Equal(s) {
			return fmt.Errorf("%w, duplicate split %s", ErrInvalidSplit, s)
		}
		if c := ct.crossingChild(parent, s); c != NoEdge {
			return fmt.Errorf("%w, splits are incompatible: %s conflicts with %s",
				ErrInvalidSplit, s, ct.Edges[c].Split)
		}
		ct.createNode(parent, s, support)
	}
	return nil
}

// root half-edge whose side contains s, or NoEdge
func (ct *ConsensusTree) rootSide(s Split) int {
	switch root := ct.Root; {
	case s.SubsplitOf(ct.Edges[root].Split):
		return root
	case s.SubsplitOf(ct.Edges[ct.Edges[root].Back].Split):
		return ct.Edges[root].Back
	default:
		return NoEdge
	}
}

// Descends from h to the vertex with the smallest split containing s. Returns
// NoEdge if s is not a subsplit of h's split.
func (ct *ConsensusTree) findSplitNode(s Split, h int) int {
	if !s.SubsplitOf(ct.Edges[h].Split) {
		return NoEdge
	}
	for x := ct.Edges[h].Next; x != h; x = ct.Edges[x].Next {
		if found := ct.findSplitNode(s, ct.Edges[x].Back); found != NoEdge {
			return found
		}
	}
	return h
}

// child of the vertex of parent whose split overlaps s without being nested in
// it, or NoEdge. s itself is never nested in a child (findSplitNode descends).
func (ct *ConsensusTree) crossingChild(parent int, s Split) int {
	for x := ct.Edges[parent].Next; x != parent; x = ct.Edges[x].Next {
		if sub := ct.Edges[x].Back; !Compatible(ct.Edges[sub].Split, s) {
			return sub
		}
	}
	return NoEdge
}

func (ct *ConsensusTree) newHalfEdge(s Split, support float64) int {
	ct.Edges = append(ct.Edges, HalfEdge{
		Next:         len(ct.Edges),
		Back:         NoEdge,
		Split:        s,
		Support:      support,
		NodeIndex:    NoEdge,
		CLVIndex:     NoEdge,
		PMatrixIndex: NoEdge,
		ScalerIndex:  NoScaler,
	})
	return len(ct.Edges) - 1
}

func (ct *ConsensusTree) link(h1, h2 int) {
	ct.Edges[h1].Back = h2
	ct.Edges[h2].Back = h1
}

// Creates a new vertex for s and hangs it below the vertex of parent
func (ct *ConsensusTree) createNode(parent int, s Split, support float64) int {
	child := ct.newHalfEdge(s, support)
	ct.connect(parent, child, true)
	return child
}

// Connects the vertex of child below the vertex of parent. If child is already
// attached somewhere, its half-edge is moved out of the old ring. With rehome
// set, every branch of parent whose split is contained in child's split is
// moved below child, keeping the vertex splits laminar.
func (ct *ConsensusTree) connect(parent, child int, rehome bool) {
	var h int
	if back := ct.Edges[child].Back; back != NoEdge {
		h = back
		aux := h
		for ct.Edges[aux].Next != h {
			aux = ct.Edges[aux].Next
		}
		ct.Edges[aux].Next = ct.Edges[h].Next
	} else {
		h = ct.newHalfEdge(ct.Edges[parent].Split, ct.Edges[parent].Support)
	}
	if rehome {
		for aux := ct.Edges[parent].Next; aux != parent; {
			next := ct.Edges[aux].Next
			if sub := ct.Edges[aux].Back; ct.Edges[sub].Split.SubsplitOf(ct.Edges[child].Split) {
				ct.connect(child, sub, false)
			}
			aux = next
		}
	}
	ct.Edges[h].Split = ct.Edges[parent].Split
	ct.Edges[h].Support = ct.Edges[parent].Support
	ct.Edges[h].Next = ct.Edges[parent].Next
	ct.Edges[parent].Next = h
	ct.link(h, child)
}

// labels every tip reachable from h (without crossing back over h's edge)
func (ct *ConsensusTree) buildTips(h int) error {
	if ct.Edges[h].Next == h {
		id, err := ct.Edges[h].Split.TipIndex()
		if err != nil {
			return err
		}
		ct.Edges[h].Label = ct.Taxa.Label(id)
		ct.Edges[h].NodeIndex = id
		ct.Edges[h].Next = NoEdge
		return nil
	}
	for x := ct.Edges[h].Next; x != h; x = ct.Edges[x].Next {
		if err := ct.buildTips(ct.Edges[x].Back); err != nil {
			return err
		}
	}
	return nil
}

type indexCounter struct {
	clv, node, scaler int
}

// Numbers the tree in post-order from Root. Tips keep their taxon id; inner
// vertices get consecutive node indices (one per half-edge) and one CLV and
// scaler slot per vertex, starting after the tips. Every edge gets the pmatrix
// slot of its lower end.
func (ct *ConsensusTree) assignIndices() {
	n := ct.Taxa.Len()
	c := &indexCounter{clv: n, node: n}
	root := ct.Root
	ct.assignSubtree(ct.Edges[root].Back, c)
	for x := ct.Edges[root].Next; x != root; x = ct.Edges[x].Next {
		ct.assignSubtree(ct.Edges[x].Back, c)
	}
	ct.assignVertex(root, c)
	ct.Edges[root].PMatrixIndex = ct.Edges[ct.Edges[root].Back].PMatrixIndex
}

func (ct *ConsensusTree) assignSubtree(h int, c *indexCounter) {
	e := &ct.Edges[h]
	if e.Next == NoEdge {
		e.CLVIndex = e.NodeIndex
		e.PMatrixIndex = e.NodeIndex
		e.ScalerIndex = NoScaler
		return
	}
	for x := e.Next; x != h; x = ct.Edges[x].Next {
		ct.assignSubtree(ct.Edges[x].Back, c)
	}
	ct.assignVertex(h, c)
	ct.Edges[h].PMatrixIndex = ct.Edges[h].CLVIndex
}

// indexes the ring of h (h first); pmatrix slots of the downward half-edges
// come from the already numbered children
func (ct *ConsensusTree) assignVertex(h int, c *indexCounter) {
	x := h
	for {
		e := &ct.Edges[x]
		e.NodeIndex = c.node
		e.CLVIndex = c.clv
		e.ScalerIndex = c.scaler
		if x != h {
			e.PMatrixIndex = ct.Edges[e.Back].PMatrixIndex
		}
		c.node++
		if x = e.Next; x == h {
			break
		}
	}
	c.clv++
	c.scaler++
}

func (ct *ConsensusTree) IsTip(h int) bool {
	return ct.Edges[h].Next == NoEdge
}

// Number of half-edges in the ring of h
func (ct *ConsensusTree) Degree(h int) int {
	if ct.IsTip(h) {
		return 1
	}
	d := 1
	for x := ct.Edges[h].Next; x != h; x = ct.Edges[x].Next {
		d++
	}
	return d
}

// True if every inner vertex has degree 3
func (ct *ConsensusTree) Resolved() bool {
	for _, h := range ct.InnerVertices() {
		if ct.Degree(h) != 3 {
			return false
		}
	}
	return true
}

// Visits one half-edge per vertex in post-order, starting from the vertex
// of Root. prev is the half-edge through which the vertex was entered (NoEdge
// for the root vertex).
func (ct *ConsensusTree) PostOrder(f func(h, prev int)) {
	root := ct.Root
	ct.postOrder(ct.Edges[root].Back, f)
	for x := ct.Edges[root].Next; x != root; x = ct.Edges[x].Next {
		ct.postOrder(ct.Edges[x].Back, f)
	}
	f(root, NoEdge)
}

func (ct *ConsensusTree) postOrder(h int, f func(h, prev int)) {
	if !ct.IsTip(h) {
		for x := ct.Edges[h].Next; x != h; x = ct.Edges[x].Next {
			ct.postOrder(ct.Edges[x].Back, f)
		}
	}
	f(h, ct.Edges[h].Back)
}

// Tip half-edges ordered by taxon id
func (ct *ConsensusTree) Tips() []int {
	tips := make([]int, ct.Taxa.Len())
	for h := range ct.Edges {
		if ct.IsTip(h) {
			tips[ct.Edges[h].NodeIndex] = h
		}
	}
	return tips
}

// Root half-edge of every inner vertex
func (ct *ConsensusTree) InnerVertices() []int {
	inner := make([]int, 0)
	ct.PostOrder(func(h, prev int) {
		if !ct.IsTip(h) {
			inner = append(inner, h)
		}
	})
	return inner
}

// Normalized splits of the internal edges
func (ct *ConsensusTree) Splits() []Split {
	splits := make([]Split, 0)
	ct.PostOrder(func(h, prev int) {
		if prev == NoEdge || ct.IsTip(h) || ct.IsTip(prev) {
			return
		}
		splits = append(splits, ct.Edges[h].Split.Normalize())
	})
	return splits
}
