// Copyright 2025 Certen Protocol
//
// Gas-bounded batcher: binary search over prefix lengths to find the
// longest queued prefix whose submitted cost fits a configured ceiling.
package queue

import (
	"fmt"
	"log"

	"github.com/circle-free/optimistic-roll-in/pkg/merkle"
	"github.com/circle-free/optimistic-roll-in/pkg/rollinerr"
)

// Estimator reports the submission cost (e.g. gas) of sending blobs as a
// single batch that ends at finalState, given the append proof that would
// accompany it. It must be monotonic in len(blobs) for the batcher's binary
// search to be correct (P6).
type Estimator func(blobs [][]byte, finalState [32]byte, proof merkle.AppendProof) (uint64, error)

// Batcher selects the longest affordable prefix of a queue, per §4.6.
type Batcher struct {
	ceiling uint64
	logger  *log.Logger
}

// NewBatcher builds a batcher bounded by ceiling (e.g. a gas limit).
func NewBatcher(ceiling uint64) *Batcher {
	return &Batcher{
		ceiling: ceiling,
		logger:  log.New(log.Writer(), "[Batcher] ", log.LstdFlags),
	}
}

// SelectPrefix returns the length of the longest prefix of n queued
// elements whose cost fits the ceiling, memoising estimator calls made
// during the binary search. finalStateAt(k) and proofAt(k) must describe
// the batch formed by the first k elements. If even a single element
// exceeds the ceiling, it returns ErrBudgetExceeded.
func (b *Batcher) SelectPrefix(blobs [][]byte, finalStateAt func(k int) [32]byte, proofAt func(k int) (merkle.AppendProof, error), estimate Estimator) (int, error) {
	n := len(blobs)
	if n == 0 {
		return 0, nil
	}

	memo := make(map[int]uint64, n)
	cost := func(k int) (uint64, error) {
		if c, ok := memo[k]; ok {
			return c, nil
		}
		proof, err := proofAt(k)
		if err != nil {
			return 0, fmt.Errorf("building append proof for prefix %d: %w", k, err)
		}
		c, err := estimate(blobs[:k], finalStateAt(k), proof)
		if err != nil {
			return 0, fmt.Errorf("estimating cost for prefix %d: %w", k, err)
		}
		memo[k] = c
		return c, nil
	}

	c1, err := cost(1)
	if err != nil {
		return 0, err
	}
	if c1 > b.ceiling {
		return 0, fmt.Errorf("%w: single queued element costs %d, ceiling is %d", rollinerr.ErrBudgetExceeded, c1, b.ceiling)
	}

	lo, hi, best := 1, n, 1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		c, err := cost(mid)
		if err != nil {
			return 0, err
		}
		if c <= b.ceiling {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	b.logger.Printf("selected prefix of %d/%d queued elements (cost ceiling %d)", best, n, b.ceiling)
	return best, nil
}
