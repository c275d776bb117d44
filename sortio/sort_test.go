// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package sortio

import (
	"context"
	"sort"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/disksort/record"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

// sliceReader reads records from a slice.
type sliceReader struct {
	recs []record.Record
	err  error
}

func (s *sliceReader) Read(ctx context.Context) (record.Record, error) {
	if len(s.recs) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, record.EOF
	}
	r := s.recs[0]
	s.recs = s.recs[1:]
	return r, nil
}

type sliceWriter []record.Record

func (s *sliceWriter) Write(r record.Record) error {
	*s = append(*s, r)
	return nil
}

func fuzzRecords(fz *fuzz.Fuzzer, n int) []record.Record {
	recs := make([]record.Record, n)
	for i := range recs {
		var (
			key int64
			val string
		)
		fz.Fuzz(&key)
		fz.Fuzz(&val)
		recs[i] = record.Record{key % 100, val}
	}
	return recs
}

func isSorted(recs []record.Record) bool {
	return sort.SliceIsSorted(recs, func(i, j int) bool { return record.Less(recs[i], recs[j]) })
}

func TestBuffer(t *testing.T) {
	fz := fuzz.NewWithSeed(31415)
	var b Buffer
	recs := fuzzRecords(fz, 1000)
	for _, r := range recs {
		b.Push(r)
	}
	expect.EQ(t, b.Len(), len(recs))
	var out sliceWriter
	assert.NoError(t, b.DrainTo(&out))
	expect.EQ(t, b.Len(), 0)
	expect.EQ(t, len(out), len(recs))
	if !isSorted(out) {
		t.Error("buffer did not drain in sorted order")
	}
}

type failWriter struct{ n int }

var errWrite = errors.New("write failed")

func (f *failWriter) Write(record.Record) error {
	if f.n == 0 {
		return errWrite
	}
	f.n--
	return nil
}

func TestBufferDrainError(t *testing.T) {
	var b Buffer
	for i := 0; i < 10; i++ {
		b.Push(record.Record{int64(i)})
	}
	if err := b.DrainTo(&failWriter{n: 3}); err != errWrite {
		t.Errorf("got %v, want %v", err, errWrite)
	}
	expect.EQ(t, b.Len(), 0)
}

func TestMergeReader(t *testing.T) {
	fz := fuzz.NewWithSeed(12345)
	const (
		N = 1000
		M = 50
	)
	readers := make([]Reader, M)
	var all []record.Record
	for i := range readers {
		recs := fuzzRecords(fz, N)
		sort.Slice(recs, func(i, j int) bool { return record.Less(recs[i], recs[j]) })
		all = append(all, recs...)
		readers[i] = &sliceReader{recs: recs}
	}
	// Include an empty reader.
	readers = append(readers, &sliceReader{})

	ctx := context.Background()
	m, err := NewMergeReader(ctx, readers)
	assert.NoError(t, err)
	var out []record.Record
	for {
		r, err := m.Read(ctx)
		if err == record.EOF {
			break
		}
		assert.NoError(t, err)
		out = append(out, r)
	}
	if got, want := len(out), N*M; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if !isSorted(out) {
		t.Error("merge not sorted")
	}
	sort.SliceStable(all, func(i, j int) bool { return record.Less(all[i], all[j]) })
	for i := range out {
		if record.Compare(out[i], all[i]) != 0 {
			t.Fatalf("record %d: got %v, want %v", i, out[i], all[i])
		}
	}
	if _, err := m.Read(ctx); err != record.EOF {
		t.Errorf("got %v, want EOF", err)
	}
}

func TestMergeReaderError(t *testing.T) {
	ctx := context.Background()
	errRead := errors.New("read failed")
	readers := []Reader{
		&sliceReader{recs: []record.Record{{int64(1)}, {int64(3)}}},
		&sliceReader{recs: []record.Record{{int64(2)}}, err: errRead},
	}
	m, err := NewMergeReader(ctx, readers)
	assert.NoError(t, err)
	r, err := m.Read(ctx)
	assert.NoError(t, err)
	expect.EQ(t, r, record.Record{int64(1)})
	if _, err := m.Read(ctx); err != errRead {
		t.Errorf("got %v, want %v", err, errRead)
	}
	if _, err := m.Read(ctx); err != errRead {
		t.Errorf("got %v, want sticky %v", err, errRead)
	}

	_, err = NewMergeReader(ctx, []Reader{&sliceReader{err: errRead}})
	if err != errRead {
		t.Errorf("got %v, want %v", err, errRead)
	}
}
