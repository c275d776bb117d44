// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package sortio provides facilities for sorting records in memory
// and merging sorted record streams.
package sortio

import (
	"container/heap"
	"context"

	"github.com/grailbio/disksort/record"
)

// A Reader is a stateful stream of records. Read returns record.EOF
// when no more records are available.
type Reader interface {
	Read(ctx context.Context) (record.Record, error)
}

// A RecordWriter consumes records; it is implemented by
// runio.Writer.
type RecordWriter interface {
	Write(r record.Record) error
}

// recordHeap is a min-heap of records under record.Compare.
type recordHeap []record.Record

func (h recordHeap) Len() int           { return len(h) }
func (h recordHeap) Less(i, j int) bool { return record.Less(h[i], h[j]) }
func (h recordHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *recordHeap) Push(x interface{}) {
	*h = append(*h, x.(record.Record))
}

func (h *recordHeap) Pop() interface{} {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return r
}

// A Buffer accumulates records in a min-heap, so that they may be
// drained in sorted order.
type Buffer struct {
	heap recordHeap
}

// Push adds a record to the buffer in O(log n) time.
func (b *Buffer) Push(r record.Record) {
	heap.Push(&b.heap, r)
}

// Len returns the number of records in the buffer.
func (b *Buffer) Len() int { return len(b.heap) }

// DrainTo pops every record from the buffer in ascending order and
// writes it to w. The buffer is empty when DrainTo returns, even if
// writing failed.
func (b *Buffer) DrainTo(w RecordWriter) error {
	defer b.Reset()
	for len(b.heap) > 0 {
		if err := w.Write(heap.Pop(&b.heap).(record.Record)); err != nil {
			return err
		}
	}
	return nil
}

// Reset discards all records in the buffer.
func (b *Buffer) Reset() {
	b.heap = nil
}

// A head is a reader together with its current (smallest unread)
// record.
type head struct {
	rec    record.Record
	reader Reader
	// index is the position of the reader in the list passed to
	// NewMergeReader. Ties between equal records are broken by index
	// so that merges are deterministic.
	index int
}

// headHeap implements a heap of heads, ordered by their current
// record.
type headHeap []*head

func (h headHeap) Len() int { return len(h) }
func (h headHeap) Less(i, j int) bool {
	if c := record.Compare(h[i].rec, h[j].rec); c != 0 {
		return c < 0
	}
	return h[i].index < h[j].index
}
func (h headHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *headHeap) Push(x interface{}) {
	*h = append(*h, x.(*head))
}

func (h *headHeap) Pop() interface{} {
	old := *h
	n := len(old)
	elem := old[n-1]
	*h = old[:n-1]
	return elem
}

// mergeReader merges multiple (sorted) readers into a single sorted
// reader.
type mergeReader struct {
	err  error
	heap headHeap
}

// NewMergeReader returns a Reader that lazily merges the provided
// readers, which must already be sorted. The merge holds one record
// per open reader: each Read pops the smallest head and advances
// exactly the reader it came from.
func NewMergeReader(ctx context.Context, readers []Reader) (Reader, error) {
	m := &mergeReader{heap: make(headHeap, 0, len(readers))}
	for i := range readers {
		rec, err := readers[i].Read(ctx)
		switch {
		case err == record.EOF:
			// No data. Skip.
		case err != nil:
			return nil, err
		default:
			m.heap = append(m.heap, &head{rec: rec, reader: readers[i], index: i})
		}
	}
	heap.Init(&m.heap)
	return m, nil
}

// Read implements Reader.
func (m *mergeReader) Read(ctx context.Context) (record.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.heap) == 0 {
		m.err = record.EOF
		return nil, m.err
	}
	top := m.heap[0]
	rec := top.rec
	next, err := top.reader.Read(ctx)
	switch {
	case err == record.EOF:
		heap.Remove(&m.heap, 0)
	case err != nil:
		m.err = err
		return nil, err
	default:
		top.rec = next
		heap.Fix(&m.heap, 0)
	}
	return rec, nil
}
