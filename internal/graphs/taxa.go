package graphs

import (
	"errors"
	"fmt"

	"github.com/evolbioinfo/gotree/tree"
)

var (
	ErrTipNameMismatch = errors.New("tip name mismatch! maybe the trees are not on the same taxa set?")
	ErrMulTree         = errors.New("contains duplicate labels")
	ErrMissingTaxa     = errors.New("missing taxa")
	ErrTooFewTaxa      = errors.New("too few taxa")
)

const MinTaxa = 3

// Stable mapping between tip labels and taxon ids, built once from the
// reference (first) tree
type TaxonTable struct {
	labels []string       // id to label
	ids    map[string]int // label to id
}

// Builds the label table from the tips of tre, in the order they appear in
// the newick string (left to right).
func NewTaxonTable(tre *tree.Tree) (*TaxonTable, error) {
	labels := make([]string, 0)
	tre.PreOrder(func(cur, prev *tree.Node, e *tree.Edge) (keep bool) {
		if cur.Tip() {
			labels = append(labels, cur.Name())
		}
		return true
	})
	return NewTaxonTableFromLabels(labels)
}

func NewTaxonTableFromLabels(labels []string) (*TaxonTable, error) {
	if len(labels) < MinTaxa {
		return nil, fmt.Errorf("%w, %d < %d", ErrTooFewTaxa, len(labels), MinTaxa)
	}
	ids := make(map[string]int, len(labels))
	for i, l := range labels {
		if _, ok := ids[l]; ok {
			return nil, fmt.Errorf("reference tree %w (%s)", ErrMulTree, l)
		}
		ids[l] = i
	}
	return &TaxonTable{labels: labels, ids: ids}, nil
}

// Number of taxa
func (tt *TaxonTable) Len() int {
	return len(tt.labels)
}

// Id of label; returns an error wrapping ErrTipNameMismatch if label is not in
// the table
func (tt *TaxonTable) ID(label string) (int, error) {
	id, ok := tt.ids[label]
	if !ok {
		return -1, fmt.Errorf("%w, %s not in reference tree", ErrTipNameMismatch, label)
	}
	return id, nil
}

func (tt *TaxonTable) Label(id int) string {
	return tt.labels[id]
}

func (tt *TaxonTable) Labels() []string {
	return tt.labels
}
