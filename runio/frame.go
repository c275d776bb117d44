// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package runio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/grailbio/base/errors"
)

// maxFrameSize bounds the payload of a single frame, so that a
// corrupted length cannot trigger a huge allocation.
const maxFrameSize = 1 << 30

// A frame is a uvarint payload length, the payload, and the
// little-endian IEEE CRC-32 of the payload.
type frameWriter struct {
	hdr [binary.MaxVarintLen64 + 4]byte
}

func (f *frameWriter) write(w *bufio.Writer, p []byte) (int, error) {
	n := binary.PutUvarint(f.hdr[:], uint64(len(p)))
	if _, err := w.Write(f.hdr[:n]); err != nil {
		return 0, err
	}
	if _, err := w.Write(p); err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint32(f.hdr[:4], crc32.ChecksumIEEE(p))
	if _, err := w.Write(f.hdr[:4]); err != nil {
		return 0, err
	}
	return n + len(p) + 4, nil
}

// readFrame reads the next frame payload from r. It returns io.EOF
// if r is exhausted at a frame boundary. Truncated frames and
// checksum mismatches yield errors of kind errors.Integrity; other
// errors, including malformed lengths, are classified by the Reader.
func readFrame(r *bufio.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	switch {
	case err == io.EOF:
		return nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		return nil, errors.E(errors.Integrity, "truncated frame header")
	case err != nil:
		return nil, err
	case n > maxFrameSize:
		return nil, errors.E(errors.Integrity, fmt.Sprintf("frame size %d exceeds limit", n))
	}
	p := make([]byte, n+4)
	if _, err := io.ReadFull(r, p); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.E(errors.Integrity, "truncated frame")
		}
		return nil, err
	}
	p, sum := p[:n], binary.LittleEndian.Uint32(p[n:])
	if got := crc32.ChecksumIEEE(p); got != sum {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("computed checksum %x but expected checksum %x", got, sum))
	}
	return p, nil
}
