package consensus

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var ErrInvalidThreshold = errors.New("invalid consensus threshold")

const (
	Strict   Threshold = 1.0
	Majority Threshold = 0.5
	MRE      Threshold = 0.0

	// absorbs float error in threshold * tree count (e.g. 0.7 * 10)
	supportEpsilon = 1e-9
)

// Fraction of trees a split must appear in to be accepted: 1.0 is strict
// consensus, 0.5 majority rule, and anything below that extends the majority
// rule tree greedily (MRE).
type Threshold float64

func ParseThreshold(f float64) (Threshold, error) {
	t := Threshold(f)
	if err := t.Validate(); err != nil {
		return 0, err
	}
	return t, nil
}

func (thresh Threshold) Validate() error {
	if math.IsNaN(float64(thresh)) || thresh < 0 || thresh > 1 {
		return fmt.Errorf("%w (%s), should be in range [0.0,1.0]", ErrInvalidThreshold, thresh)
	}
	return nil
}

// Implements flag.Value
func (thresh *Threshold) Set(s string) error {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%w, %q is not a number", ErrInvalidThreshold, s)
	}
	t, err := ParseThreshold(f)
	if err != nil {
		return err
	}
	*thresh = t
	return nil
}

func (thresh Threshold) String() string {
	return strconv.FormatFloat(float64(thresh), 'f', -1, 64)
}

// Returns the minimum support for a split to be considered at all, and the
// support above which splits are accepted without any compatibility check.
//
//	minSupport = ceil(threshold * treeCount)
//	thrSupport = minSupport                if threshold > 0.5
//	           = floor(treeCount / 2) + 1  otherwise
//
// Above 0.5 both are at least a strict majority of the trees, even when the
// product lands within supportEpsilon of treeCount / 2.
func (thresh Threshold) Supports(treeCount int) (minSupport, thrSupport uint32) {
	minSupport = uint32(max(math.Ceil(float64(thresh)*float64(treeCount)-supportEpsilon), 0))
	majority := uint32(treeCount/2 + 1)
	if thresh > Majority {
		minSupport = max(minSupport, majority)
		thrSupport = minSupport
	} else {
		thrSupport = majority
	}
	return
}
