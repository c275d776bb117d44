// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package disklist implements an ephemeral, append-then-iterate list
// of records stored on disk. Lists are used in place of in-memory
// slices when a sequence of records is too large to hold in memory.
//
// A List has two phases. While writing, records are appended to a
// backing file. The first read closes the file and reopens it for
// sequential reading; from then on, appends fail. When the last
// record has been read, the backing file is removed.
package disklist

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/disksort/codec"
	"github.com/grailbio/disksort/record"
	"github.com/grailbio/disksort/runio"
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

// Options configures a List.
type Options struct {
	// Storage is the filesystem backing the list; runio.Files is
	// used if nil.
	Storage runio.Storage
	// Codec encodes records; codec.Gob is used if nil.
	Codec codec.Codec
	// Compression is applied to the backing file.
	Compression runio.Compression
}

func (o Options) runio() runio.Options {
	opts := runio.Options{
		Storage:     o.Storage,
		Codec:       o.Codec,
		Compression: o.Compression,
		Format:      runio.Frames,
	}
	if opts.Codec == nil {
		opts.Codec = codec.Gob
	}
	return opts
}

// List is an ephemeral on-disk list of records. List implements
// record.Group. Lists are not safe for concurrent use.
type List struct {
	path  string
	opts  runio.Options
	state state
	len   int

	w *runio.Writer
	r *runio.Reader
	// err is the first storage or decoding error; it fails the list.
	err error

	// head is the first record of the next group, if one has been
	// read ahead by NextGroup.
	head    record.Record
	hasHead bool
}

// New creates a new, empty list backed by a uniquely named file in
// directory dir.
func New(ctx context.Context, dir string, opts Options) (*List, error) {
	l := &List{
		path: runio.NewPath(dir, runio.ListPrefix),
		opts: opts.runio(),
	}
	var err error
	if l.w, err = runio.Create(ctx, l.path, l.opts); err != nil {
		return nil, err
	}
	return l, nil
}

// Path returns the path of the list's backing file.
func (l *List) Path() string { return l.path }

// Len returns the number of records ever appended to the list.
func (l *List) Len() int { return l.len }

// Append normalizes a record (see record.Normalize) and appends it
// to the list. Append fails with an error of kind
// errors.Precondition once the list has been read from.
func (l *List) Append(_ context.Context, r record.Record) error {
	if l.state != writing {
		return errors.E(errors.Precondition, fmt.Sprintf("disklist: append to %s list", l.state))
	}
	if l.err != nil {
		return l.err
	}
	r, err := record.Normalize(r)
	if err != nil {
		return err
	}
	if err := l.w.Write(r); err != nil {
		if !errors.Is(errors.Invalid, err) {
			l.err = err
		}
		return err
	}
	l.len++
	return nil
}

// Next returns the next record in the list. The first call to Next
// switches the list irreversibly into reading mode. Next returns
// record.EOF after the last record has been read; the backing file
// has then been removed.
func (l *List) Next(ctx context.Context) (record.Record, error) {
	if l.hasHead {
		r := l.head
		l.head, l.hasHead = nil, false
		return r, nil
	}
	return l.next(ctx)
}

func (l *List) next(ctx context.Context) (record.Record, error) {
	if l.err != nil {
		return nil, l.err
	}
	switch l.state {
	case writing:
		if err := l.w.Close(); err != nil {
			l.err = err
			return nil, err
		}
		r, err := runio.Open(ctx, l.path, l.opts)
		if err != nil {
			l.err = err
			return nil, err
		}
		l.w, l.r = nil, r
		l.state = reading
	case exhausted:
		return nil, record.EOF
	}
	r, err := l.r.Read(ctx)
	switch {
	case err == record.EOF:
		l.state = exhausted
	case err != nil:
		l.err = err
	}
	return r, err
}

// NextGroup returns the next maximal run of records that share a
// grouping key. NextGroup does not sort: it assumes that records
// were appended in group order. NextGroup returns record.EOF once
// all records have been returned.
func (l *List) NextGroup(ctx context.Context) (*record.Buffer, error) {
	first, err := l.Next(ctx)
	if err != nil {
		return nil, err
	}
	group := record.NewBuffer(first)
	for {
		r, err := l.next(ctx)
		if err == record.EOF {
			return group, nil
		}
		if err != nil {
			return nil, err
		}
		if !record.KeyEqual(first, r) {
			l.head, l.hasHead = r, true
			return group, nil
		}
		if err := group.Append(ctx, r); err != nil {
			return nil, err
		}
	}
}

// Discard releases the list's backing file without reading the
// remaining records. The list is exhausted afterwards, and a list
// that failed keeps returning its error. Discard is a no-op on
// exhausted lists.
func (l *List) Discard(ctx context.Context) error {
	prev := l.state
	l.state = exhausted
	l.head, l.hasHead = nil, false
	switch {
	case prev == writing && l.w != nil:
		err := l.w.Discard(ctx)
		l.w = nil
		return err
	case prev == reading:
		return l.r.Discard(ctx)
	}
	return nil
}
