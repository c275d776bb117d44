// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package disksort

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/disksort/codec"
	"github.com/grailbio/disksort/internal/defaultsize"
	"github.com/grailbio/disksort/runio"
)

// Options configures a sort session.
type Options struct {
	// WorkingDir is the directory in which run files and disk lists
	// are created. It must exist and be writable. Required.
	WorkingDir string

	// Budget is the number of bytes of memory the session's record
	// buffer may use, shared among Workers sessions. The default is
	// ItemSize times the reference row count (flag -disksort-rows).
	Budget int64

	// ItemSize is the reference serialized record size, in bytes,
	// against which observed record sizes are compared. The default
	// is given by flag -disksort-item-size.
	ItemSize int

	// Workers is the number of sessions sharing the host's budget.
	// Defaults to 1.
	Workers int

	// Codec encodes records in run files, and measures record sizes
	// for calibration. Its encoding may not contain newlines.
	// Defaults to codec.JSON.
	Codec codec.Codec

	// ListCodec encodes records in disk lists returned by NextGroup.
	// Defaults to codec.Gob.
	ListCodec codec.Codec

	// Compression is applied to run files and disk lists.
	Compression runio.Compression

	// Storage is the filesystem used for run files and disk lists.
	// Defaults to runio.Files.
	Storage runio.Storage
}

// withDefaults returns a copy of the options with defaults filled
// in, or an error of kind errors.Invalid if the options are invalid.
func (o Options) withDefaults() (Options, error) {
	if o.WorkingDir == "" {
		return o, errors.E(errors.Invalid, "disksort: no working directory")
	}
	if o.ItemSize == 0 {
		o.ItemSize = defaultsize.ItemSize
	}
	if o.ItemSize <= 0 {
		return o, errors.E(errors.Invalid, fmt.Sprintf("disksort: invalid item size %d", o.ItemSize))
	}
	if o.Budget == 0 {
		o.Budget = int64(o.ItemSize) * int64(defaultsize.Rows)
	}
	if o.Budget <= 0 {
		return o, errors.E(errors.Invalid, fmt.Sprintf("disksort: invalid budget %d", o.Budget))
	}
	if o.Workers == 0 {
		o.Workers = 1
	}
	if o.Workers < 0 {
		return o, errors.E(errors.Invalid, fmt.Sprintf("disksort: invalid worker count %d", o.Workers))
	}
	if o.Codec == nil {
		o.Codec = codec.JSON
	}
	if o.ListCodec == nil {
		o.ListCodec = codec.Gob
	}
	if o.Storage == nil {
		o.Storage = runio.Files
	}
	return o, nil
}
