// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package disksort

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestCalibratorSeed(t *testing.T) {
	c := newCalibrator(60*1000, 60, 1)
	expect.EQ(t, c.threshold, initialThreshold)
	for n := int64(0); n < maxSamples; n++ {
		if !c.wants(n) {
			t.Fatalf("calibrator does not want sample %d", n)
		}
		c.observe(30)
	}
	// Records smaller than the reference size do not raise the
	// threshold beyond the budget.
	expect.EQ(t, c.threshold, 1000)
	for _, n := range []int64{100, 101, resampleInterval - 1, resampleInterval + 1} {
		if c.wants(n) {
			t.Errorf("calibrator wants sample %d", n)
		}
	}
	for _, n := range []int64{resampleInterval, 2 * resampleInterval} {
		if !c.wants(n) {
			t.Errorf("calibrator does not want sample %d", n)
		}
	}
}

func TestCalibratorRatio(t *testing.T) {
	c := newCalibrator(60*1000, 60, 1)
	c.observe(120)
	expect.EQ(t, c.threshold, 500)
	c.observe(240)
	// Mean is 180: 1000*60/180.
	expect.EQ(t, c.threshold, 333)

	c = newCalibrator(60*1000, 60, 4)
	c.observe(60)
	expect.EQ(t, c.threshold, 250)

	c = newCalibrator(60, 60, 1)
	c.observe(6000)
	expect.EQ(t, c.threshold, 1)

	c = newCalibrator(600, 60, 1)
	c.observe(0)
	expect.EQ(t, c.threshold, 10)
}

func TestCalibratorEvictsOldest(t *testing.T) {
	c := newCalibrator(60*1000, 60, 1)
	c.observe(6000)
	for i := 1; i < maxSamples; i++ {
		c.observe(60)
	}
	// Mean is (6000+99*60)/100 = 119.4.
	expect.EQ(t, c.threshold, 502)
	// Replacing the oldest sample removes the large one, even though
	// it is the largest in the pool.
	c.observe(60)
	expect.EQ(t, len(c.samples), maxSamples)
	expect.EQ(t, c.threshold, 1000)
}
