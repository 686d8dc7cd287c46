package graphs

import (
	"fmt"

	"github.com/evolbioinfo/gotree/tree"
)

// Returns the normalized non-trivial splits induced by the internal edges of
// tre, with tips resolved through taxa. Each bipartition is reported once, so
// a degree-2 root does not produce a duplicate. Returns an error if a tip label
// is unknown, repeated, or if some taxon is missing from tre.
func SplitsFromTree(tre *tree.Tree, taxa *TaxonTable) ([]Split, error) {
	n := taxa.Len()
	x := &extractor{
		taxa:   taxa,
		seen:   NewSplit(n),
		splits: make([]Split, 0, max(n-3, 0)),
		keys:   make(map[string]bool),
	}
	if _, err := x.leafset(tre.Root(), nil); err != nil {
		return nil, err
	}
	if c := x.seen.Count(); c != n {
		return nil, fmt.Errorf("%w, tree has %d of %d taxa", ErrMissingTaxa, c, n)
	}
	return x.splits, nil
}

type extractor struct {
	taxa   *TaxonTable
	seen   Split           // tips visited so far
	splits []Split         // result
	keys   map[string]bool // splits already emitted
}

// Post-order over the subtree of cur pointing away from prev. Returns the taxa
// below cur.
func (x *extractor) leafset(cur, prev *tree.Node) (Split, error) {
	below := NewSplit(x.taxa.Len())
	if cur.Tip() {
		id, err := x.taxa.ID(cur.Name())
		if err != nil {
			return below, err
		}
		if x.seen.Test(id) {
			return below, fmt.Errorf("tree %w (%s)", ErrMulTree, cur.Name())
		}
		x.seen.Set(id)
		below.Set(id)
	}
	for _, child := range cur.Neigh() {
		if child == prev {
			continue
		}
		childSet, err := x.leafset(child, cur)
		if err != nil {
			return below, err
		}
		below.Union(childSet)
		if !child.Tip() {
			x.add(childSet)
		}
	}
	return below, nil
}

func (x *extractor) add(s Split) {
	s = s.Normalize()
	if c := s.Count(); c < 2 || c > s.NTaxa()-2 {
		return
	}
	key := s.Key()
	if x.keys[key] {
		return
	}
	x.keys[key] = true
	x.splits = append(x.splits, s)
}
