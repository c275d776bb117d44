// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/disksort"
	"github.com/grailbio/disksort/codec"
	"github.com/grailbio/disksort/record"
	"github.com/grailbio/disksort/runio"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func writeInput(t *testing.T, path string, n int) {
	t.Helper()
	rnd := rand.New(rand.NewSource(1))
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[%q, %d]\n", fmt.Sprintf("key%03d", rnd.Intn(200)), rnd.Intn(1000))
	}
	// Blank lines are ignored.
	b.WriteString("\n")
	assert.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

// readGroups reads the groups in an output file.
func readGroups(t *testing.T, path string) [][]record.Record {
	t.Helper()
	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()
	var groups [][]record.Record
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		rec, err := codec.JSON.Decode(scan.Bytes())
		assert.NoError(t, err)
		group := make([]record.Record, len(rec))
		for i := range rec {
			group[i] = record.Record(rec[i].([]interface{}))
		}
		groups = append(groups, group)
	}
	assert.NoError(t, scan.Err())
	return groups
}

func TestJob(t *testing.T) {
	const N = 5000
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	work := filepath.Join(dir, "work")
	assert.NoError(t, os.Mkdir(work, 0755))
	input := filepath.Join(dir, "input.json")
	writeInput(t, input, N)

	for _, workers := range []int{1, 3} {
		for _, onDisk := range []bool{false, true} {
			output := filepath.Join(dir, fmt.Sprintf("output-%d-%v", workers, onDisk))
			j := &job{
				Input:  input,
				Output: output,
				OnDisk: onDisk,
				Options: disksort.Options{
					WorkingDir:  work,
					Budget:      60 * 500,
					Workers:     workers,
					Compression: runio.Zstd,
				},
			}
			stats, err := j.Run(context.Background())
			assert.NoError(t, err)
			expect.EQ(t, stats["append"], int64(N))
			if stats["spill"] < 2 {
				t.Errorf("expected spills, got %v", stats)
			}

			var (
				total int
				keys  = make(map[string]bool)
			)
			for i := 0; i < workers; i++ {
				path := output
				if workers > 1 {
					path = fmt.Sprintf("%s-%d", output, i)
				}
				var prev record.Record
				for _, g := range readGroups(t, path) {
					key := g[0][0].(string)
					if keys[key] {
						t.Errorf("key %s appears in more than one group", key)
					}
					keys[key] = true
					for _, r := range g {
						if prev != nil && record.Less(r, prev) {
							t.Errorf("%s: %v sorted after %v", path, r, prev)
						}
						if !record.KeyEqual(r, g[0]) {
							t.Errorf("%s: %v in group %s", path, r, key)
						}
						prev = r
						total++
					}
				}
			}
			expect.EQ(t, total, N)
			infos, err := os.ReadDir(work)
			assert.NoError(t, err)
			expect.EQ(t, len(infos), 0)
		}
	}
}

func TestShard(t *testing.T) {
	for _, n := range []int{1, 2, 7} {
		for i := 0; i < 100; i++ {
			a, err := shard(record.Record{int64(i), "a"}, n)
			assert.NoError(t, err)
			b, err := shard(record.Record{float64(i), "b", true}, n)
			assert.NoError(t, err)
			expect.EQ(t, a, b)
			if a < 0 || a >= n {
				t.Fatalf("shard %d out of range [0, %d)", a, n)
			}
		}
	}
}
