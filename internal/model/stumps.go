package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Stump is a depth-1 regression tree: one feature, one threshold, two leaf
// values.
type Stump struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      float64 `json:"left"`
	Right     float64 `json:"right"`
}

func (s Stump) predict(x []float64) float64 {
	if x[s.Feature] <= s.Threshold {
		return s.Left
	}
	return s.Right
}

// BoostedStumps is gradient boosting over depth-1 stumps with a fixed round
// count and shrinkage. Depth 1 keeps fitting deterministic and fast while
// still capturing the dominant nonlinearities.
type BoostedStumps struct {
	Base      float64 `json:"base"`
	Shrinkage float64 `json:"shrinkage"`
	Rounds    int     `json:"rounds"`
	Stumps    []Stump `json:"stumps"`
	Dims      int     `json:"dims"`
}

func NewBoostedStumps() *BoostedStumps {
	return &BoostedStumps{
		Shrinkage: 0.1,
		Rounds:    100,
	}
}

func (b *BoostedStumps) Algorithm() string { return AlgorithmBoostedStumps }

func (b *BoostedStumps) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 || len(x) != len(y) {
		return errors.New("boosted stumps: empty or mismatched training set")
	}
	b.Dims = len(x[0])

	var sum float64
	for _, v := range y {
		sum += v
	}
	b.Base = sum / float64(len(y))

	resid := make([]float64, len(y))
	for i, v := range y {
		resid[i] = v - b.Base
	}

	b.Stumps = b.Stumps[:0]
	for round := 0; round < b.Rounds; round++ {
		stump, ok := bestStump(x, resid)
		if !ok {
			break
		}
		for i, row := range x {
			resid[i] -= b.Shrinkage * stump.predict(row)
		}
		b.Stumps = append(b.Stumps, stump)
	}
	return nil
}

func (b *BoostedStumps) Predict(x []float64) (float64, error) {
	if b.Dims == 0 {
		return 0, errors.New("boosted stumps: not fitted")
	}
	if len(x) != b.Dims {
		return 0, fmt.Errorf("boosted stumps: feature length %d does not match trained length %d", len(x), b.Dims)
	}
	pred := b.Base
	for _, s := range b.Stumps {
		pred += b.Shrinkage * s.predict(x)
	}
	return pred, nil
}

func (b *BoostedStumps) Marshal() ([]byte, error) { return json.Marshal(b) }

// bestStump finds the single split minimizing residual SSE. Candidates are
// midpoints between adjacent distinct values per feature; prefix sums make
// each feature scan linear after the sort.
func bestStump(x [][]float64, resid []float64) (Stump, bool) {
	n := len(x)
	dims := len(x[0])

	var total float64
	for _, r := range resid {
		total += r
	}

	best := Stump{}
	bestSSE := math.Inf(1)
	found := false

	idx := make([]int, n)
	for f := 0; f < dims; f++ {
		for i := range idx {
			idx[i] = i
		}
		sort.Slice(idx, func(a, c int) bool { return x[idx[a]][f] < x[idx[c]][f] })

		var leftSum, leftSq float64
		var totalSq float64
		for _, r := range resid {
			totalSq += r * r
		}

		for pos := 0; pos < n-1; pos++ {
			r := resid[idx[pos]]
			leftSum += r
			leftSq += r * r

			cur, next := x[idx[pos]][f], x[idx[pos+1]][f]
			if cur == next {
				continue
			}

			leftN := float64(pos + 1)
			rightN := float64(n - pos - 1)
			rightSum := total - leftSum
			rightSq := totalSq - leftSq

			// SSE around each side's mean, without recomputing means per split.
			sse := (leftSq - leftSum*leftSum/leftN) + (rightSq - rightSum*rightSum/rightN)
			if sse < bestSSE {
				bestSSE = sse
				best = Stump{
					Feature:   f,
					Threshold: (cur + next) / 2,
					Left:      leftSum / leftN,
					Right:     rightSum / rightN,
				}
				found = true
			}
		}
	}
	return best, found
}
