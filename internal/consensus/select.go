package consensus

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/google/btree"

	gr "github.com/jsdoublel/consense/internal/graphs"
	sh "github.com/jsdoublel/consense/internal/splithash"
)

var ErrIncompatibleSplits = errors.New("incompatible majority splits")

const btreeDegree = 32

// Splits a resolved unrooted tree on nTaxa taxa can have
func MaxSplits(nTaxa int) int {
	return max(nTaxa-3, 0)
}

// Selects the consensus split system from the split counts of treeCount trees.
// Splits with support >= thrSupport are always accepted; splits below
// minSupport are removed from tab. The splits in between are then added in
// order of decreasing support (ties broken by Split.Compare) whenever they are
// compatible with every split accepted so far, until the system is fully
// resolved. tab should not be reused afterwards.
func SelectSplits(tab *sh.Table, treeCount int, thresh Threshold) (*gr.SplitSystem, error) {
	if err := thresh.Validate(); err != nil {
		return nil, err
	}
	minSupport, thrSupport := thresh.Supports(treeCount)
	maxSplits := MaxSplits(tab.NTaxa())
	sys := &gr.SplitSystem{
		Splits:     make([]gr.SplitSupport, 0, maxSplits),
		MaxSupport: uint32(treeCount),
	}
	tab.Prune(func(e *sh.Entry) bool {
		if e.Support >= thrSupport {
			sys.Splits = append(sys.Splits, gr.SplitSupport{Split: e.Split, Support: e.Support})
			return false
		}
		return e.Support >= minSupport
	})
	slices.SortFunc(sys.Splits, compareSupport)
	if err := checkMajority(sys, maxSplits); err != nil {
		return nil, err
	}
	if minSupport < thrSupport {
		extendMajority(tab, sys, maxSplits)
	}
	return sys, nil
}

// Majority splits are pairwise compatible for any input; a conflict means the
// counts are wrong.
func checkMajority(sys *gr.SplitSystem, maxSplits int) error {
	if sys.Len() > maxSplits {
		return fmt.Errorf("%w, %d majority splits but at most %d fit in a tree",
			ErrIncompatibleSplits, sys.Len(), maxSplits)
	}
	for i := range sys.Len() {
		for j := i + 1; j < sys.Len(); j++ {
			if !gr.Compatible(sys.Splits[i].Split, sys.Splits[j].Split) {
				return fmt.Errorf("%w, %s and %s", ErrIncompatibleSplits,
					sys.Splits[i].Split, sys.Splits[j].Split)
			}
		}
	}
	return nil
}

// candidate split ordered by decreasing support
type candidate struct {
	*sh.Entry
}

func (c candidate) Less(than btree.Item) bool {
	return compareSupport(
		gr.SplitSupport{Split: c.Split, Support: c.Support},
		gr.SplitSupport{Split: than.(candidate).Split, Support: than.(candidate).Support},
	) < 0
}

func compareSupport(a, b gr.SplitSupport) int {
	if c := cmp.Compare(b.Support, a.Support); c != 0 {
		return c
	}
	return a.Split.Compare(b.Split)
}

// greedy MRE extension over the entries left in tab
func extendMajority(tab *sh.Table, sys *gr.SplitSystem, maxSplits int) {
	queue := btree.New(btreeDegree)
	for e := range tab.All() {
		queue.ReplaceOrInsert(candidate{e})
	}
	queue.Ascend(func(item btree.Item) bool {
		if sys.Len() >= maxSplits {
			return false
		}
		c := item.(candidate)
		for _, accepted := range sys.Splits {
			if !gr.Compatible(c.Split, accepted.Split) {
				return true
			}
		}
		sys.Splits = append(sys.Splits, gr.SplitSupport{Split: c.Split, Support: c.Support})
		return true
	})
}
