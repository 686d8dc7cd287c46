// Package implementing split-frequency consensus (strict, majority rule, and
// extended majority rule) of unrooted trees
package consensus

import (
	"errors"
	"fmt"
	"io"

	"github.com/evolbioinfo/gotree/tree"

	gr "github.com/jsdoublel/consense/internal/graphs"
	pr "github.com/jsdoublel/consense/internal/prep"
	sh "github.com/jsdoublel/consense/internal/splithash"
)

var ErrNoTrees = errors.New("no trees")

type Result struct {
	Tree       *gr.ConsensusTree // consensus tree
	Splits     *gr.SplitSystem   // splits displayed by Tree
	Taxa       *gr.TaxonTable    // taxa of the reference (first) tree
	TreeCount  int               // number of trees read
	MinSupport uint32            // minimum support a split needed to be considered
	ThrSupport uint32            // support above which splits were accepted unconditionally
}

// Builds the consensus tree of all trees in the stream. Every tree must be on
// the taxa set of the first one. Errors returned come from the input (bad
// threshold, parse errors, label mismatches), except for those wrapping
// gr.ErrInvalidSplit or ErrIncompatibleSplits, which indicate a bug.
func Consensus(trees pr.TreeStream, thresh Threshold) (*Result, error) {
	if err := thresh.Validate(); err != nil {
		return nil, err
	}
	pr.Logger.Println("reading trees")
	taxa, tab, treeCount, err := countSplits(trees)
	if err != nil {
		return nil, err
	}
	pr.Logger.Printf("%d trees on %d taxa read, containing %d unique splits\n", treeCount, taxa.Len(), tab.Len())
	minSupport, thrSupport := thresh.Supports(treeCount)
	pr.Logger.Printf("selecting splits (threshold %s, min support %d)\n", thresh, minSupport)
	sys, err := SelectSplits(tab, treeCount, thresh)
	if err != nil {
		return nil, err
	}
	pr.Logger.Printf("%d splits selected, building consensus tree\n", sys.Len())
	ct, err := gr.BuildConsensusTree(sys, taxa)
	if err != nil {
		return nil, err
	}
	if ct.Resolved() {
		pr.Logger.Println("consensus tree is fully resolved")
	} else {
		pr.Logger.Printf("consensus tree has %d of %d possible internal edges\n", sys.Len(), MaxSplits(taxa.Len()))
	}
	return &Result{
		Tree:       ct,
		Splits:     sys,
		Taxa:       taxa,
		TreeCount:  treeCount,
		MinSupport: minSupport,
		ThrSupport: thrSupport,
	}, nil
}

// Opens file and builds its consensus tree. The threshold is checked before the
// file is touched.
func ConsensusFromFile(path string, format pr.Format, thresh Threshold) (*Result, error) {
	if err := thresh.Validate(); err != nil {
		return nil, err
	}
	tf, err := pr.OpenTreeStream(path, format)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := tf.Close(); err != nil {
			pr.Logger.Printf("could not close file %s, %s", path, err)
		}
	}()
	res, err := Consensus(tf, thresh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// Reads every tree of the stream, building the taxon table from the first one,
// and counts the trees containing each split.
func countSplits(trees pr.TreeStream) (*gr.TaxonTable, *sh.Table, int, error) {
	first, err := trees.Next()
	if errors.Is(err, io.EOF) {
		return nil, nil, 0, fmt.Errorf("%w, %w", pr.ErrInvalidFile, ErrNoTrees)
	} else if err != nil {
		return nil, nil, 0, err
	}
	taxa, err := gr.NewTaxonTable(first)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%s : %w", treeLabel(trees, 1), err)
	}
	tab := sh.New(taxa.Len())
	treeCount := 0
	for tre := first; ; {
		treeCount++
		if err := addTree(tab, tre, taxa); err != nil {
			return nil, nil, 0, fmt.Errorf("%s : %w", treeLabel(trees, treeCount), err)
		}
		tre, err = trees.Next()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, nil, 0, err
		}
	}
	return taxa, tab, treeCount, nil
}

// "tree i", followed by the tree's name for streams that have names (nexus)
func treeLabel(trees pr.TreeStream, i int) string {
	if named, ok := trees.(interface{ Names() []string }); ok {
		if names := named.Names(); i <= len(names) && names[i-1] != "" {
			return fmt.Sprintf("tree %d (%s)", i, names[i-1])
		}
	}
	return fmt.Sprintf("tree %d", i)
}

func addTree(tab *sh.Table, tre *tree.Tree, taxa *gr.TaxonTable) error {
	splits, err := gr.SplitsFromTree(tre, taxa)
	if err != nil {
		return err
	}
	for _, s := range splits {
		if _, err := tab.Insert(s); err != nil {
			return err
		}
	}
	return nil
}
