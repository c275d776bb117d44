// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package runio

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/disksort/codec"
	"github.com/grailbio/disksort/record"
)

// Format is the on-disk framing of encoded records.
type Format int

const (
	// Lines stores one encoded record per line. The codec's output
	// must not contain newlines. Sorted runs use Lines.
	Lines Format = iota
	// Frames stores length-prefixed, checksummed records, and
	// admits any codec output. Disk lists use Frames.
	Frames
)

// Options configures file writers and readers. The same options
// must be used to read a file as were used to write it.
type Options struct {
	// Storage is the filesystem. Files is used if nil.
	Storage Storage
	// Codec encodes records. codec.JSON is used if nil.
	Codec codec.Codec
	// Compression is applied to the whole file.
	Compression Compression
	// Format is the record framing.
	Format Format
}

func (o Options) storage() Storage {
	if o.Storage == nil {
		return Files
	}
	return o.Storage
}

func (o Options) codec() codec.Codec {
	if o.Codec == nil {
		return codec.JSON
	}
	return o.Codec
}

// A Writer writes records to a new file.
type Writer struct {
	path   string
	opts   Options
	codec  codec.Codec
	file   io.WriteCloser
	comp   io.WriteCloser
	buf    *bufio.Writer
	frames frameWriter

	count  int
	size   int64
	closed bool
}

// Create creates a new file at path for writing records.
func Create(ctx context.Context, path string, opts Options) (*Writer, error) {
	f, err := opts.storage().Create(ctx, path)
	if err != nil {
		return nil, err
	}
	comp, err := opts.Compression.writer(f)
	if err != nil {
		fileio.CloseAndReport(f, &err)
		return nil, err
	}
	w := &Writer{
		path:  path,
		opts:  opts,
		codec: opts.codec(),
		file:  f,
		comp:  comp,
		buf:   bufio.NewWriter(comp),
	}
	return w, nil
}

// Path returns the path of the file being written.
func (w *Writer) Path() string { return w.path }

// Count returns the number of records written.
func (w *Writer) Count() int { return w.count }

// Size returns the number of encoded bytes written, before
// compression.
func (w *Writer) Size() int64 { return w.size }

// Write encodes and appends a record to the file.
func (w *Writer) Write(r record.Record) error {
	p, err := w.codec.Encode(r)
	if err != nil {
		return err
	}
	var n int
	switch w.opts.Format {
	case Lines:
		if bytes.IndexByte(p, '\n') >= 0 {
			return errors.E(errors.Invalid, fmt.Sprintf("runio: %s: encoded record contains a newline", w.path))
		}
		if n, err = w.buf.Write(p); err != nil {
			return err
		}
		if err = w.buf.WriteByte('\n'); err != nil {
			return err
		}
		n++
	case Frames:
		if n, err = w.frames.write(w.buf, p); err != nil {
			return err
		}
	default:
		return errors.E(errors.Invalid, fmt.Sprintf("runio: invalid format %d", w.opts.Format))
	}
	w.count++
	w.size += int64(n)
	return nil
}

// Close flushes buffered records and closes the file. The file is
// complete and may be opened for reading once Close returns without
// error. Close is a no-op after the first call.
func (w *Writer) Close() (err error) {
	if w.closed {
		return nil
	}
	w.closed = true
	defer fileio.CloseAndReport(w.file, &err)
	defer fileio.CloseAndReport(w.comp, &err)
	return w.buf.Flush()
}

// Discard closes and removes the file. It is used to clean up after
// a failed write; close errors are not reported.
func (w *Writer) Discard(ctx context.Context) error {
	if err := w.Close(); err != nil {
		log.Debug.Printf("runio: discard %s: %v", w.path, err)
	}
	return w.opts.storage().Remove(ctx, w.path)
}

// A Reader is a lazy, non-restartable stream of records read from a
// file. When the last record has been read, the Reader closes and
// removes its file as part of returning record.EOF: reaching the end
// of the stream is the only thing required to release it.
type Reader struct {
	path  string
	opts  Options
	codec codec.Codec
	file  io.ReadCloser
	src   *sourceReader
	comp  io.ReadCloser
	buf   *bufio.Reader

	err      error
	released bool
}

// Open opens the file at path for reading.
func Open(ctx context.Context, path string, opts Options) (*Reader, error) {
	f, err := opts.storage().Open(ctx, path)
	if err != nil {
		return nil, err
	}
	src := &sourceReader{r: f}
	comp, err := opts.Compression.reader(src)
	if err != nil {
		err = src.classify(path, err)
		fileio.CloseAndReport(f, &err)
		return nil, err
	}
	return &Reader{
		path:  path,
		opts:  opts,
		codec: opts.codec(),
		file:  f,
		src:   src,
		comp:  comp,
		buf:   bufio.NewReader(comp),
	}, nil
}

// sourceReader remembers the first error returned by the underlying
// file, so that storage errors can be told apart from errors in
// decoding the data read from it.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF && s.err == nil {
		s.err = err
	}
	return n, err
}

// classify returns storage errors unmodified. Any other error arose
// from malformed data and is returned with kind errors.Integrity.
func (s *sourceReader) classify(path string, err error) error {
	if err == nil || err == io.EOF || s.err != nil || errors.Is(errors.Integrity, err) {
		return err
	}
	return errors.E(errors.Integrity, fmt.Sprintf("runio: %s", path), err)
}

// Path returns the path of the file being read.
func (r *Reader) Path() string { return r.path }

// Read returns the next record in the file. Read returns record.EOF
// after the last record has been read and the file removed; errors
// closing or removing the file are returned instead of EOF. Malformed
// data yields an error of kind errors.Integrity. Errors are sticky.
func (r *Reader) Read(ctx context.Context) (record.Record, error) {
	if r.err != nil {
		return nil, r.err
	}
	p, err := r.next()
	if err == io.EOF {
		if err = r.release(ctx); err != nil {
			r.err = err
			return nil, err
		}
		r.err = record.EOF
		return nil, r.err
	}
	if err != nil {
		r.err = err
		return nil, err
	}
	rec, err := r.codec.Decode(p)
	if err != nil {
		r.err = errors.E(errors.Integrity, fmt.Sprintf("runio: %s", r.path), err)
		return nil, r.err
	}
	return rec, nil
}

// next returns the next encoded record, or io.EOF at a clean end of
// file.
func (r *Reader) next() ([]byte, error) {
	switch r.opts.Format {
	case Lines:
		p, err := r.buf.ReadBytes('\n')
		switch {
		case err == io.EOF && len(p) == 0:
			return nil, io.EOF
		case err == io.EOF:
			return nil, errors.E(errors.Integrity, fmt.Sprintf("runio: %s: truncated record", r.path))
		case err != nil:
			return nil, r.src.classify(r.path, err)
		}
		return p[:len(p)-1], nil
	case Frames:
		p, err := readFrame(r.buf)
		if err != nil && err != io.EOF && errors.Is(errors.Integrity, err) {
			err = errors.E(errors.Integrity, fmt.Sprintf("runio: %s", r.path), err)
		}
		return p, r.src.classify(r.path, err)
	}
	return nil, errors.E(errors.Invalid, fmt.Sprintf("runio: invalid format %d", r.opts.Format))
}

// Discard closes and removes the file without reading the remaining
// records. Subsequent reads return record.EOF. Discard is a no-op
// once the reader has been released.
func (r *Reader) Discard(ctx context.Context) error {
	if r.err == nil {
		r.err = record.EOF
	}
	return r.release(ctx)
}

func (r *Reader) release(ctx context.Context) (err error) {
	if r.released {
		return nil
	}
	r.released = true
	fileio.CloseAndReport(r.comp, &err)
	fileio.CloseAndReport(r.file, &err)
	if rerr := r.opts.storage().Remove(ctx, r.path); rerr != nil && err == nil {
		err = rerr
	}
	return err
}
