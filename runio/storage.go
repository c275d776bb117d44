// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package runio provides I/O for the files that back disksort's
// sorted runs and disk lists. Files are written once, read once,
// and removed by the reader when it reaches the end of the file.
package runio

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/grailbio/base/file"
)

// Storage is the filesystem used to create, read, and remove run
// and list files. Storage errors are returned to callers unmodified.
type Storage interface {
	// Create returns a writer for a new file at the provided path.
	// The file is complete once the returned writer is closed.
	Create(ctx context.Context, path string) (io.WriteCloser, error)
	// Open returns a reader for the file at the provided path.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Remove removes the file at the provided path.
	Remove(ctx context.Context, path string) error
}

// Files is the default Storage. It is implemented by package
// github.com/grailbio/base/file, and thus supports any path scheme
// registered there.
var Files Storage = fileStorage{}

type fileStorage struct{}

func (fileStorage) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	return &fileWriter{Writer: f.Writer(ctx), file: f, ctx: ctx}, nil
}

func (fileStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return &fileReader{Reader: f.Reader(ctx), file: f, ctx: ctx}, nil
}

func (fileStorage) Remove(ctx context.Context, path string) error {
	return file.Remove(ctx, path)
}

// fileWriter and fileReader adapt a file.File to the io interfaces.
// The context is retained because file.File.Close requires one.
type fileWriter struct {
	io.Writer
	file file.File
	ctx  context.Context
}

func (w *fileWriter) Close() error {
	return w.file.Close(w.ctx)
}

type fileReader struct {
	io.Reader
	file file.File
	ctx  context.Context
}

func (r *fileReader) Close() error {
	return r.file.Close(r.ctx)
}

// Prefixes of generated file names.
const (
	RunPrefix  = "SORT"
	ListPrefix = "LIST"
)

// NewPath returns a new, globally unique path in directory dir. The
// file name is formed from the prefix and a random UUID, so that
// concurrent sessions that share a directory never collide.
func NewPath(dir, prefix string) string {
	return file.Join(dir, prefix+"_"+uuid.New().String()+".data")
}
