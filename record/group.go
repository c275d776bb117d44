// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package record

import (
	"context"

	"github.com/grailbio/base/errors"
)

// EOF is the error returned by record iterators when no more
// records are available. EOF is a sentinel: it signals graceful
// exhaustion. Iterators that terminate unexpectedly return a
// different error.
var EOF = errors.New("EOF")

// A Group is an appendable, iterable sequence of records. Groups
// are produced by grouping iterators, which fill them with a maximal
// run of records sharing a key. Groups are implemented both in
// memory (Buffer) and on disk (disklist.List); grouping logic
// depends only on this interface.
type Group interface {
	// Append adds a record to the end of the group.
	Append(ctx context.Context, r Record) error
	// Len returns the number of records ever appended to the group.
	Len() int
	// Next returns the next record in the group, or EOF when the
	// group is exhausted.
	Next(ctx context.Context) (Record, error)
}

// Buffer is an in-memory Group.
type Buffer struct {
	recs []Record
	off  int
}

// NewBuffer returns a Buffer containing the provided records.
func NewBuffer(recs ...Record) *Buffer {
	return &Buffer{recs: recs}
}

// Append implements Group.
func (b *Buffer) Append(_ context.Context, r Record) error {
	b.recs = append(b.recs, r)
	return nil
}

// Len implements Group.
func (b *Buffer) Len() int { return len(b.recs) }

// Next implements Group. Next returns EOF once every record has
// been returned.
func (b *Buffer) Next(context.Context) (Record, error) {
	if b.off == len(b.recs) {
		return nil, EOF
	}
	r := b.recs[b.off]
	b.off++
	return r, nil
}

// Records returns the records stored in the buffer, regardless of
// how many have been consumed by Next.
func (b *Buffer) Records() []Record {
	return b.recs
}
