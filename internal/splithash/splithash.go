// Package implementing the hash table used to count how many trees contain
// each split
package splithash

import (
	"fmt"
	"iter"

	metro "github.com/dgryski/go-metro"

	gr "github.com/jsdoublel/consense/internal/graphs"
)

const (
	SizeFactor = 10 // default buckets per taxon
	maxLoad    = 2  // entries per bucket before the table grows

	seed = 0x5851f42d4c957f2d
)

// Normalized split and the number of trees it was seen in
type Entry struct {
	Split   gr.Split
	Support uint32

	hash uint64
	next *Entry
}

// Chained hash table keyed by normalized splits. Not safe for concurrent use.
type Table struct {
	buckets []*Entry
	count   int
	nTaxa   int
	buf     []byte // scratch space for hashing
}

// Makes a table for splits over nTaxa taxa, with SizeFactor * nTaxa buckets
func New(nTaxa int) *Table {
	return NewSize(nTaxa, SizeFactor*nTaxa)
}

func NewSize(nTaxa, size int) *Table {
	return &Table{
		buckets: make([]*Entry, max(size, 1)),
		nTaxa:   nTaxa,
	}
}

// Number of entries
func (t *Table) Len() int {
	return t.count
}

func (t *Table) NTaxa() int {
	return t.nTaxa
}

func (t *Table) hash(s gr.Split) uint64 {
	t.buf = s.AppendBytes(t.buf[:0])
	return metro.Hash64(t.buf, seed)
}

func (t *Table) bucket(h uint64) int {
	return int(h % uint64(len(t.buckets)))
}

// Normalizes s and increments the support of its entry, creating the entry
// with support 1 on first sighting. Returns the entry.
func (t *Table) Insert(s gr.Split) (*Entry, error) {
	if s.NTaxa() != t.nTaxa {
		return nil, fmt.Errorf("%w, split over %d taxa inserted in table over %d",
			gr.ErrSplitLength, s.NTaxa(), t.nTaxa)
	}
	s = s.Normalize()
	h := t.hash(s)
	b := t.bucket(h)
	for e := t.buckets[b]; e != nil; e = e.next {
		if e.hash == h && e.Split.Equal(s) {
			e.Support++
			return e, nil
		}
	}
	e := &Entry{Split: s, Support: 1, hash: h, next: t.buckets[b]}
	t.buckets[b] = e
	t.count++
	if t.count > maxLoad*len(t.buckets) {
		t.grow()
	}
	return e, nil
}

// Entry of s (in either orientation), or nil
func (t *Table) Lookup(s gr.Split) *Entry {
	if s.NTaxa() != t.nTaxa {
		return nil
	}
	s = s.Normalize()
	h := t.hash(s)
	for e := t.buckets[t.bucket(h)]; e != nil; e = e.next {
		if e.hash == h && e.Split.Equal(s) {
			return e
		}
	}
	return nil
}

// Unlinks entry from its chain. Returns false if entry is not in the table.
func (t *Table) Remove(entry *Entry) bool {
	b := t.bucket(entry.hash)
	for ptr := &t.buckets[b]; *ptr != nil; ptr = &(*ptr).next {
		if *ptr == entry {
			*ptr = entry.next
			entry.next = nil
			t.count--
			return true
		}
	}
	return false
}

// Removes every entry for which keep returns false
func (t *Table) Prune(keep func(*Entry) bool) {
	for b := range t.buckets {
		ptr := &t.buckets[b]
		for e := *ptr; e != nil; e = *ptr {
			if keep(e) {
				ptr = &e.next
				continue
			}
			*ptr = e.next
			e.next = nil
			t.count--
		}
	}
}

// Iterates over all entries in no particular order. The table must not be
// modified during iteration.
func (t *Table) All() iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		for _, head := range t.buckets {
			for e := head; e != nil; e = e.next {
				if !yield(e) {
					return
				}
			}
		}
	}
}

func (t *Table) grow() {
	old := t.buckets
	t.buckets = make([]*Entry, 2*len(old))
	for _, head := range old {
		for e := head; e != nil; {
			next := e.next
			b := t.bucket(e.hash)
			e.next = t.buckets[b]
			t.buckets[b] = e
			e = next
		}
	}
}
