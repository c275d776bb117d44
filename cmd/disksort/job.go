// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/disksort"
	"github.com/grailbio/disksort/codec"
	"github.com/grailbio/disksort/record"
	"github.com/grailbio/disksort/stats"
	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/errgroup"
)

// shardSeed is the murmur3 seed used to partition keys among
// workers.
const shardSeed = 0x5f3759df

// A job sorts the records in an input file, partitioned among
// Options.Workers sessions, and writes their groups to output files.
type job struct {
	Input, Output string
	// OnDisk buffers each group in a disk list before it is written.
	OnDisk  bool
	Options disksort.Options
}

// shard returns the worker responsible for record r. Records that
// share a key are assigned to the same worker.
func shard(r record.Record, n int) (int, error) {
	if n == 1 {
		return 0, nil
	}
	p, err := codec.JSON.Encode(record.Record{r.Key()})
	if err != nil {
		return 0, err
	}
	return int(murmur3.Sum32WithSeed(p, shardSeed) % uint32(n)), nil
}

func (j *job) outputPath(shard int) string {
	if j.Options.Workers == 1 {
		return j.Output
	}
	return fmt.Sprintf("%s-%d", j.Output, shard)
}

// Run runs the job and returns the sum of the sessions' counters.
func (j *job) Run(ctx context.Context) (stats.Values, error) {
	n := j.Options.Workers
	if n <= 0 {
		n = 1
		j.Options.Workers = 1
	}
	sorters := make([]*disksort.Sorter, n)
	for i := range sorters {
		var err error
		if sorters[i], err = disksort.New(j.Options); err != nil {
			return nil, err
		}
	}
	g, ctx := errgroup.WithContext(ctx)
	inputs := make([]chan record.Record, n)
	for i := range inputs {
		inputs[i] = make(chan record.Record, 1024)
	}
	g.Go(func() error {
		defer func() {
			for _, c := range inputs {
				close(c)
			}
		}()
		return j.read(ctx, inputs)
	})
	for i := range sorters {
		i := i
		g.Go(func() error {
			if err := j.sort(ctx, sorters[i], inputs[i], j.outputPath(i)); err != nil {
				if derr := sorters[i].Discard(context.Background()); derr != nil {
					log.Error.Printf("shard %d: discard: %v", i, derr)
				}
				return errors.E(err, fmt.Sprintf("shard %d", i))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	total := make(stats.Values)
	for i, s := range sorters {
		log.Debug.Printf("shard %d: %s", i, s.Stats())
		total.Add(s.Stats())
	}
	return total, nil
}

// read decodes records from the input file and sends each to its
// worker's channel.
func (j *job) read(ctx context.Context, inputs []chan record.Record) (err error) {
	f, err := file.Open(ctx, j.Input)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	r := bufio.NewReader(f.Reader(ctx))
	for line := 1; ; line++ {
		p, err := r.ReadBytes('\n')
		if err == io.EOF && len(p) == 0 {
			return nil
		}
		if err != nil && err != io.EOF {
			return err
		}
		if len(p) > 0 && p[len(p)-1] == '\n' {
			p = p[:len(p)-1]
		}
		if len(p) == 0 {
			continue
		}
		rec, err := codec.JSON.Decode(p)
		if err != nil {
			return errors.E(err, fmt.Sprintf("%s:%d", j.Input, line))
		}
		i, err := shard(rec, len(inputs))
		if err != nil {
			return err
		}
		select {
		case inputs[i] <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// sort appends every record received on in to the session, then
// writes the session's groups to the output path.
func (j *job) sort(ctx context.Context, s *disksort.Sorter, in <-chan record.Record, path string) (err error) {
	for r := range in {
		if err := s.Append(ctx, r); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f.Writer(ctx))
	for {
		g, err := s.NextGroup(ctx, j.OnDisk)
		if err == disksort.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := writeGroup(ctx, w, g); err != nil {
			return err
		}
	}
	return w.Flush()
}

// writeGroup writes a group as a single JSON array of records,
// followed by a newline. The group is consumed.
func writeGroup(ctx context.Context, w *bufio.Writer, g record.Group) error {
	if err := w.WriteByte('['); err != nil {
		return err
	}
	for i := 0; ; i++ {
		r, err := g.Next(ctx)
		if err == record.EOF {
			break
		}
		if err != nil {
			return err
		}
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		p, err := codec.JSON.Encode(r)
		if err != nil {
			return err
		}
		if _, err := w.Write(p); err != nil {
			return err
		}
	}
	_, err := w.WriteString("]\n")
	return err
}
