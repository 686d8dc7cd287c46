// Package containing the structs and functions related to splits and trees
// used in consense, such as bipartitions, the taxon table, and the
// consensus tree built from a split system
package graphs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

var (
	ErrInvalidSplit = errors.New("invalid split")
	ErrSplitLength  = errors.New("split length mismatch")
)

// Bipartition of the taxa [0, n). Taxa with their bit set are on one side of
// the edge, the rest are on the other. A split and its complement describe the
// same edge; Normalize picks the orientation where taxon 0 is unset.
type Split struct {
	bits *bitset.BitSet
}

// Makes an empty split over nTaxa taxa
func NewSplit(nTaxa int) Split {
	return Split{bits: bitset.New(uint(nTaxa))}
}

// Makes a split over nTaxa taxa with the given taxa set
func SplitOf(nTaxa int, taxa ...int) Split {
	s := NewSplit(nTaxa)
	for _, t := range taxa {
		s.bits.Set(uint(t))
	}
	return s
}

// Number of taxa the split is defined over
func (s Split) NTaxa() int {
	return int(s.bits.Len())
}

func (s Split) Set(taxon int) Split {
	s.bits.Set(uint(taxon))
	return s
}

func (s Split) Test(taxon int) bool {
	return s.bits.Test(uint(taxon))
}

// Adds all taxa of other into s (in place)
func (s Split) Union(other Split) {
	s.bits.InPlaceUnion(other.bits)
}

func (s Split) Clone() Split {
	return Split{bits: s.bits.Clone()}
}

// Number of taxa on the set side
func (s Split) Count() int {
	return int(s.bits.Count())
}

// Split isolating a single taxon
func (s Split) Trivial() bool {
	return s.Count() == 1
}

// Split with one side empty
func (s Split) Degenerate() bool {
	c := s.Count()
	return c == 0 || c == s.NTaxa()
}

// Returns the other side of the bipartition; bits past NTaxa stay clear.
func (s Split) Complement() Split {
	return Split{bits: s.bits.Complement()}
}

// Returns s oriented so that taxon 0 is not set. The result shares no memory
// with s.
func (s Split) Normalize() Split {
	if s.bits.Test(0) {
		return s.Complement()
	}
	return s.Clone()
}

func (s Split) Normalized() bool {
	return !s.bits.Test(0)
}

// True if every taxon of s is also in parent
func (s Split) SubsplitOf(parent Split) bool {
	return parent.bits.IsSuperSet(s.bits)
}

// Two splits are compatible when at least one of the four intersections
// a∩b, a∩¬b, ¬a∩b, ¬a∩¬b is empty, i.e., they can be edges of the same tree.
func Compatible(a, b Split) bool {
	switch {
	case a.bits.IntersectionCardinality(b.bits) == 0:
		return true
	case a.SubsplitOf(b):
		return true
	case b.SubsplitOf(a):
		return true
	default:
		return a.bits.UnionCardinality(b.bits) == a.bits.Len()
	}
}

func (s Split) Equal(other Split) bool {
	return s.bits.Equal(other.bits)
}

// Underlying 64 bit words, lowest taxa first. Callers must not modify them.
func (s Split) Words() []uint64 {
	return s.bits.Bytes()
}

// Appends the words of s to b as little endian bytes
func (s Split) AppendBytes(b []byte) []byte {
	for _, w := range s.Words() {
		b = binary.LittleEndian.AppendUint64(b, w)
	}
	return b
}

// Map key identifying the exact orientation of s
func (s Split) Key() string {
	return string(s.AppendBytes(nil))
}

// Orders splits lexicographically by their words from the highest word down.
func (s Split) Compare(other Split) int {
	w1, w2 := s.Words(), other.Words()
	if len(w1) != len(w2) {
		return len(w1) - len(w2)
	}
	for i := len(w1) - 1; i >= 0; i-- {
		switch {
		case w1[i] < w2[i]:
			return -1
		case w1[i] > w2[i]:
			return 1
		}
	}
	return 0
}

// Taxon id of a trivial split
func (s Split) TipIndex() (int, error) {
	if c := s.Count(); c != 1 {
		return -1, fmt.Errorf("%w, trivial split has %d taxa set", ErrInvalidSplit, c)
	}
	i, _ := s.bits.NextSet(0)
	return int(i), nil
}

// Ids of the taxa on the set side, in increasing order
func (s Split) Taxa() []int {
	taxa := make([]int, 0, s.Count())
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		taxa = append(taxa, int(i))
	}
	return taxa
}

// Bit string with taxon 0 first, e.g. "01100" (for printing/testing)
func (s Split) String() string {
	var sb strings.Builder
	for i := range s.NTaxa() {
		if s.Test(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Returns both sides of the split as label lists, "B,C|A,D,E"
func (s Split) Format(taxa *TaxonTable) string {
	var in, out []string
	for i := range s.NTaxa() {
		if s.Test(i) {
			in = append(in, taxa.Label(i))
		} else {
			out = append(out, taxa.Label(i))
		}
	}
	return strings.Join(in, ",") + "|" + strings.Join(out, ",")
}
