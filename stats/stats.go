// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package stats provides the counters maintained by sort sessions.
// Counters are grouped into sets that can be snapshotted, and
// snapshots from several sessions can be summed.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// Values is a snapshot of a set of counters.
type Values map[string]int64

// Add adds the values in w to v. Counters absent from v are
// created.
func (v Values) Add(w Values) {
	for k, n := range w {
		v[k] += n
	}
}

// String returns an abbreviated string with the values in this
// snapshot sorted by key.
func (v Values) String() string {
	keys := make([]string, 0, len(v))
	for key := range v {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for i, key := range keys {
		keys[i] = fmt.Sprintf("%s:%d", key, v[key])
	}
	return strings.Join(keys, " ")
}

// A Counter is a named integer counter. Counters may be read
// concurrently with updates.
type Counter struct {
	name string
	val  int64
}

// Name returns the counter's name.
func (c *Counter) Name() string { return c.name }

// Add increments the counter by delta.
func (c *Counter) Add(delta int64) {
	atomic.AddInt64(&c.val, delta)
}

// Set sets the counter's value.
func (c *Counter) Set(val int64) {
	atomic.StoreInt64(&c.val, val)
}

// Get returns the counter's current value.
func (c *Counter) Get() int64 {
	return atomic.LoadInt64(&c.val)
}

// A Set is a collection of counters. Counters are defined with
// Counter before use; a Set is not safe for concurrent definition.
type Set struct {
	counters []*Counter
}

// Counter returns the counter with the provided name, creating it if
// it does not already exist.
func (s *Set) Counter(name string) *Counter {
	for _, c := range s.counters {
		if c.name == name {
			return c
		}
	}
	c := &Counter{name: name}
	s.counters = append(s.counters, c)
	return c
}

// Snapshot returns the current values of all counters in the set.
func (s *Set) Snapshot() Values {
	v := make(Values, len(s.counters))
	for _, c := range s.counters {
		v[c.name] = c.Get()
	}
	return v
}
