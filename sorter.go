// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package disksort

import (
	"context"
	"expvar"
	"fmt"

	"github.com/grailbio/base/data"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/disksort/disklist"
	"github.com/grailbio/disksort/record"
	"github.com/grailbio/disksort/runio"
	"github.com/grailbio/disksort/sortio"
	"github.com/grailbio/disksort/stats"
)

// EOF is returned by NextGroup when all groups have been returned.
var EOF = record.EOF

var (
	totalSpills       = expvar.NewInt("disksortspills")
	totalSpillRecords = expvar.NewInt("disksortspillrecords")
)

type state int

const (
	writing state = iota
	reading
	exhausted
)

func (s state) String() string {
	switch s {
	case writing:
		return "writing"
	case reading:
		return "reading"
	case exhausted:
		return "exhausted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// A Sorter is an external sort session. Records are appended with
// Append; once appending is complete, sorted groups of records are
// retrieved with NextGroup. A Sorter is not safe for concurrent use.
type Sorter struct {
	opts     Options
	runOpts  runio.Options
	listOpts disklist.Options

	state state
	// err is a sticky error that fails the session.
	err error

	count int64
	buf   sortio.Buffer
	cal   *calibrator

	// runs holds the paths of the run files written so far.
	runs []string
	// readers holds the readers of every run, once reading has begun.
	readers []*runio.Reader
	merge   sortio.Reader
	// head is the first record of the next group.
	head record.Record

	stats        stats.Set
	appended     *stats.Counter
	spills       *stats.Counter
	spillRecords *stats.Counter
	spillBytes   *stats.Counter
	groups       *stats.Counter
	samples      *stats.Counter
	threshold    *stats.Counter
}

// New returns a new sort session configured by the provided options.
func New(opts Options) (*Sorter, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	s := &Sorter{
		opts: opts,
		runOpts: runio.Options{
			Storage:     opts.Storage,
			Codec:       opts.Codec,
			Compression: opts.Compression,
			Format:      runio.Lines,
		},
		listOpts: disklist.Options{
			Storage:     opts.Storage,
			Codec:       opts.ListCodec,
			Compression: opts.Compression,
		},
		cal: newCalibrator(opts.Budget, opts.ItemSize, opts.Workers),
	}
	s.appended = s.stats.Counter("append")
	s.spills = s.stats.Counter("spill")
	s.spillRecords = s.stats.Counter("spillrecords")
	s.spillBytes = s.stats.Counter("spillbytes")
	s.groups = s.stats.Counter("groups")
	s.samples = s.stats.Counter("samples")
	s.threshold = s.stats.Counter("threshold")
	s.threshold.Set(int64(s.cal.threshold))
	return s, nil
}

// Threshold returns the number of buffered records at which the
// session currently spills to disk. The threshold is recalibrated as
// records are appended; it is exposed for diagnostics only.
func (s *Sorter) Threshold() int {
	return s.cal.threshold
}

// Stats returns a snapshot of the session's counters: the number of
// records appended, spills (one per run file), records and encoded
// bytes spilled, groups returned, size samples taken, and the current
// spill threshold.
func (s *Sorter) Stats() stats.Values {
	return s.stats.Snapshot()
}

// Append adds a record to the session. Append normalizes the record
// (see record.Normalize); records with unsupported values are
// rejected with an error of kind errors.Invalid. If the buffer
// reaches the spill threshold, it is written to a new run file; the
// storage errors of a failed spill are returned unmodified and fail
// the session. Append fails with an error of kind
// errors.Precondition once NextGroup has been called.
func (s *Sorter) Append(ctx context.Context, r record.Record) error {
	if s.state != writing {
		return errors.E(errors.Precondition, fmt.Sprintf("disksort: append to %s session", s.state))
	}
	if s.err != nil {
		return s.err
	}
	r, err := record.Normalize(r)
	if err != nil {
		return err
	}
	if s.cal.wants(s.count) {
		p, err := s.opts.Codec.Encode(r)
		if err != nil {
			return err
		}
		prev := s.cal.threshold
		s.cal.observe(len(p))
		s.samples.Add(1)
		if s.cal.threshold != prev {
			s.threshold.Set(int64(s.cal.threshold))
			log.Debug.Printf("disksort: max number of items in memory: %d", s.cal.threshold)
		}
	}
	s.buf.Push(r)
	s.count++
	s.appended.Add(1)
	if s.count%int64(s.cal.threshold) == 0 {
		return s.spill(ctx)
	}
	return nil
}

// spill drains the buffer in sorted order to a new run file.
func (s *Sorter) spill(ctx context.Context) error {
	w, err := runio.Create(ctx, runio.NewPath(s.opts.WorkingDir, runio.RunPrefix), s.runOpts)
	if err != nil {
		s.buf.Reset()
		s.err = err
		return err
	}
	if err = s.buf.DrainTo(w); err == nil {
		err = w.Close()
	}
	if err != nil {
		if derr := w.Discard(ctx); derr != nil {
			log.Error.Printf("disksort: discard failed run %s: %v", w.Path(), derr)
		}
		s.err = err
		return err
	}
	s.runs = append(s.runs, w.Path())
	s.spills.Add(1)
	s.spillRecords.Add(int64(w.Count()))
	s.spillBytes.Add(w.Size())
	totalSpills.Add(1)
	totalSpillRecords.Add(int64(w.Count()))
	log.Debug.Printf("disksort: spilled %d records (%s) to %s", w.Count(), data.Size(w.Size()), w.Path())
	return nil
}

// NextGroup returns the next group of records: a maximal run of
// records, in sort order, that share a grouping key. If onDisk is
// true, the group is stored in a new disklist.List in the working
// directory; otherwise it is a *record.Buffer.
//
// The first call to NextGroup ends the writing phase: buffered
// records are spilled to a last run, and all runs are merged. NextGroup
// returns EOF once every record has been returned in a group, and on
// every call thereafter. A session to which no records were appended
// returns EOF immediately without creating any files.
func (s *Sorter) NextGroup(ctx context.Context, onDisk bool) (record.Group, error) {
	if s.err != nil {
		return nil, s.err
	}
	switch s.state {
	case writing:
		if err := s.startMerge(ctx); err != nil {
			s.err = err
			return nil, err
		}
		if s.state == exhausted {
			return nil, EOF
		}
	case exhausted:
		return nil, EOF
	}

	var (
		group record.Group
		list  *disklist.List
	)
	if onDisk {
		var err error
		if list, err = disklist.New(ctx, s.opts.WorkingDir, s.listOpts); err != nil {
			s.err = err
			return nil, err
		}
		group = list
	} else {
		group = record.NewBuffer()
	}
	fail := func(err error) error {
		s.err = err
		if list != nil {
			if derr := list.Discard(ctx); derr != nil {
				log.Error.Printf("disksort: discard %s: %v", list.Path(), derr)
			}
		}
		return err
	}
	first := s.head
	rec := first
	for {
		if err := group.Append(ctx, rec); err != nil {
			return nil, fail(err)
		}
		var err error
		rec, err = s.merge.Read(ctx)
		if err == EOF {
			s.state = exhausted
			s.head = nil
			break
		}
		if err != nil {
			return nil, fail(err)
		}
		if !record.KeyEqual(first, rec) {
			s.head = rec
			break
		}
	}
	s.groups.Add(1)
	return group, nil
}

// startMerge ends the writing phase. It spills any buffered records,
// opens every run, and reads the first record of the merge.
func (s *Sorter) startMerge(ctx context.Context) error {
	s.state = reading
	if s.buf.Len() > 0 {
		if err := s.spill(ctx); err != nil {
			return err
		}
	}
	if len(s.runs) == 0 {
		s.state = exhausted
		return nil
	}
	readers := make([]sortio.Reader, len(s.runs))
	s.readers = make([]*runio.Reader, 0, len(s.runs))
	for i, path := range s.runs {
		r, err := runio.Open(ctx, path, s.runOpts)
		if err != nil {
			return err
		}
		readers[i] = r
		s.readers = append(s.readers, r)
	}
	var err error
	if s.merge, err = sortio.NewMergeReader(ctx, readers); err != nil {
		return err
	}
	s.head, err = s.merge.Read(ctx)
	if err == EOF {
		s.state = exhausted
		return nil
	}
	return err
}

// Discard disposes of the session: buffered records are dropped, and
// every run file that has not yet been read to completion is
// removed. Discard is needed only when a session is abandoned before
// NextGroup returns EOF. The session is exhausted afterwards.
func (s *Sorter) Discard(ctx context.Context) error {
	s.buf.Reset()
	s.head = nil
	s.state = exhausted
	var err error
	opened := make(map[string]bool, len(s.readers))
	for _, r := range s.readers {
		opened[r.Path()] = true
		if derr := r.Discard(ctx); derr != nil && err == nil {
			err = derr
		}
	}
	for _, path := range s.runs {
		if opened[path] {
			continue
		}
		if derr := s.opts.Storage.Remove(ctx, path); derr != nil && err == nil {
			err = derr
		}
	}
	s.runs, s.readers = nil, nil
	return err
}
