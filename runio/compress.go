// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package runio

import (
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression is the block compression applied to files.
type Compression int

const (
	// NoCompression stores records as encoded.
	NoCompression Compression = iota
	// Zstd compresses files with zstandard.
	Zstd
	// LZ4 compresses files with lz4 frames.
	LZ4
)

// ParseCompression returns the compression named by s: "none"
// (or ""), "zstd", or "lz4".
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return NoCompression, nil
	case "zstd":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	}
	return NoCompression, errors.E(errors.Invalid, fmt.Sprintf("runio: unknown compression %q", s))
}

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

// writer wraps w with a compressing writer. Closing the returned
// writer flushes compressed data to w but does not close w.
func (c Compression) writer(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case NoCompression:
		return nopWriteCloser{w}, nil
	case Zstd:
		return zstd.NewWriter(w)
	case LZ4:
		return lz4.NewWriter(w), nil
	}
	return nil, errors.E(errors.Invalid, fmt.Sprintf("runio: invalid compression %v", c))
}

// reader wraps r with a decompressing reader. Closing the returned
// reader releases decompression state but does not close r.
func (c Compression) reader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case NoCompression:
		return io.NopCloser(r), nil
	case Zstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return zstdReader{dec}, nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	}
	return nil, errors.E(errors.Invalid, fmt.Sprintf("runio: invalid compression %v", c))
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type zstdReader struct{ dec *zstd.Decoder }

func (z zstdReader) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z zstdReader) Close() error {
	z.dec.Close()
	return nil
}
