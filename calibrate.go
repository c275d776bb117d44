// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package disksort

import "math"

const (
	// maxSamples is the size of the calibrator's sample pool.
	maxSamples = 100
	// resampleInterval is the number of appended records between
	// samples once the pool is full.
	resampleInterval = 250000
	// initialThreshold is the spill threshold used before the first
	// sample is taken.
	initialThreshold = 500000
)

// A calibrator maintains the spill threshold of a session: the
// number of records that may be buffered in memory before they are
// spilled to disk. The threshold is derived from the mean serialized
// size of a pool of sampled records, so that larger records are
// spilled sooner.
//
// The pool is seeded with the first maxSamples records. After that,
// every resampleInterval records the oldest sample is replaced by a
// fresh one. The pool is therefore not the largest sizes ever
// observed, but a slowly refreshed window of them.
type calibrator struct {
	itemSize float64
	// rows is the number of reference-sized records the session may
	// buffer.
	rows float64

	samples   []int
	threshold int
}

func newCalibrator(budget int64, itemSize, workers int) *calibrator {
	return &calibrator{
		itemSize:  float64(itemSize),
		rows:      float64(budget) / float64(itemSize) / float64(workers),
		samples:   make([]int, 0, maxSamples),
		threshold: initialThreshold,
	}
}

// Wants tells whether the record appended after n others should be
// sampled.
func (c *calibrator) wants(n int64) bool {
	return len(c.samples) < maxSamples || n%resampleInterval == 0
}

// Observe adds a sample of the provided size to the pool, evicting
// the oldest sample if the pool is full, and recomputes the
// threshold.
func (c *calibrator) observe(size int) {
	if len(c.samples) == maxSamples {
		copy(c.samples, c.samples[1:])
		c.samples = c.samples[:maxSamples-1]
	}
	c.samples = append(c.samples, size)
	var sum int
	for _, s := range c.samples {
		sum += s
	}
	ratio := 1.0
	if mean := float64(sum) / float64(len(c.samples)); mean > 0 {
		ratio = math.Min(c.itemSize/mean, 1)
	}
	c.threshold = int(math.Floor(ratio * c.rows))
	if c.threshold < 1 {
		c.threshold = 1
	}
}
