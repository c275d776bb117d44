// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package defaultsize holds the reference constants used to derive
// disksort's default memory budget. They are configurable by flag.
package defaultsize

import "flag"

var (
	// ItemSize is the reference serialized record size, in bytes.
	ItemSize int
	// Rows is the number of records of size ItemSize that a single
	// sort process may hold in memory. ItemSize*Rows is the default
	// memory budget per process.
	Rows int
)

func init() {
	flag.IntVar(&ItemSize, "disksort-item-size", 60,
		"reference serialized record size, in bytes, used to calibrate sort memory")
	flag.IntVar(&Rows, "disksort-rows", 2500000,
		"number of reference-sized records held in memory per sort process")
}
