// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command disksort sorts and groups newline-delimited JSON records
// that may not fit in memory. Each input line is a JSON array whose
// first element is the record's grouping key. Each output line is a
// JSON array of the records in one group.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/grailbio/disksort"
	"github.com/grailbio/disksort/codec"
	"github.com/grailbio/disksort/runio"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: disksort [flags] input output

Disksort sorts the JSON records in input by their fields and writes
one line per group of records sharing a first field to output. With
-workers=N, records are partitioned by key among N concurrent sort
sessions, and group i is written to output-i.

Flags:
`)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	log.AddFlags()
	log.SetFlags(0)
	log.SetPrefix("disksort: ")
	must.Func = log.Fatal
	var (
		dir       = flag.String("dir", os.TempDir(), "working directory for run files and disk lists")
		budget    = flag.Int64("budget", 0, "memory budget in bytes shared by all workers (0: default)")
		workers   = flag.Int("workers", 1, "number of concurrent sort sessions")
		listCodec = flag.String("listcodec", "gob", "codec for on-disk groups: json or gob")
		compress  = flag.String("compress", "none", "compression for run files and disk lists: none, zstd, or lz4")
		onDisk    = flag.Bool("ondisk", false, "buffer groups on disk instead of in memory")
	)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
	}
	c, err := codec.Lookup(*listCodec)
	must.Nil(err)
	comp, err := runio.ParseCompression(*compress)
	must.Nil(err)
	must.Truef(*workers > 0, "invalid worker count %d", *workers)

	j := &job{
		Input:  flag.Arg(0),
		Output: flag.Arg(1),
		OnDisk: *onDisk,
		Options: disksort.Options{
			WorkingDir:  *dir,
			Budget:      *budget,
			Workers:     *workers,
			ListCodec:   c,
			Compression: comp,
		},
	}
	stats, err := j.Run(context.Background())
	must.Nil(err)
	log.Printf("done: %s", stats)
}
