// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package record

import (
	"context"
	"math"
	"sort"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func mustNormalize(t *testing.T, r Record) Record {
	t.Helper()
	n, err := Normalize(r)
	assert.NoError(t, err)
	return n
}

func TestCompare(t *testing.T) {
	ordered := []Record{
		{},
		{nil},
		{false},
		{true},
		{int64(-3)},
		{int64(1)},
		{int64(1), nil},
		{int64(1), "a"},
		{1.5},
		{int64(2)},
		{""},
		{"a"},
		{"ab"},
		{"b"},
		{[]interface{}{}},
		{[]interface{}{int64(1)}},
		{[]interface{}{int64(1), "x"}},
		{[]interface{}{int64(2)}},
	}
	for i := range ordered {
		for j := range ordered {
			var want int
			switch {
			case i < j:
				want = -1
			case i > j:
				want = 1
			}
			if got := Compare(ordered[i], ordered[j]); got != want {
				t.Errorf("Compare(%v, %v): got %v, want %v", ordered[i], ordered[j], got, want)
			}
		}
	}
}

func TestCompareNumbers(t *testing.T) {
	expect.EQ(t, Compare(Record{int64(2)}, Record{2.0}), 0)
	expect.EQ(t, Compare(Record{int64(2)}, Record{2.5}), -1)
	expect.EQ(t, Compare(Record{3.25}, Record{int64(3)}), 1)
	if !KeyEqual(Record{int64(7), "x"}, Record{7.0, "y"}) {
		t.Error("expected numerically equal keys to be equal")
	}
	if KeyEqual(Record{int64(7)}, Record{"7"}) {
		t.Error("keys of different kinds compared equal")
	}
	if !KeyEqual(Record{}, Record{nil, int64(1)}) {
		t.Error("empty record should have a nil key")
	}
}

func TestCompareLargeNumbers(t *testing.T) {
	const p53 = 1 << 53
	// Both integers round to the same float64.
	expect.EQ(t, Compare(Record{int64(p53)}, Record{float64(p53)}), 0)
	expect.EQ(t, Compare(Record{int64(p53 + 1)}, Record{float64(p53)}), 1)
	expect.EQ(t, Compare(Record{float64(p53)}, Record{int64(p53 + 1)}), -1)
	expect.EQ(t, Compare(Record{int64(math.MaxInt64)}, Record{float64(math.MaxInt64)}), -1)
	expect.EQ(t, Compare(Record{int64(math.MinInt64)}, Record{float64(math.MinInt64)}), 0)
	expect.EQ(t, Compare(Record{int64(math.MinInt64)}, Record{-1e19}), 1)
	expect.EQ(t, Compare(Record{int64(-3)}, Record{-2.5}), -1)
	expect.EQ(t, Compare(Record{int64(-2)}, Record{-2.5}), 1)

	recs := []Record{{float64(p53)}, {int64(p53 + 1)}, {int64(p53)}, {int64(p53 - 1)}}
	sort.SliceStable(recs, func(i, j int) bool { return Less(recs[i], recs[j]) })
	want := []Record{{int64(p53 - 1)}, {float64(p53)}, {int64(p53)}, {int64(p53 + 1)}}
	expect.EQ(t, recs, want)
}

func TestSortRecords(t *testing.T) {
	recs := []Record{
		{int64(3), "c"},
		{int64(1), "z"},
		{int64(2), "b"},
		{int64(1), "a"},
	}
	sort.Slice(recs, func(i, j int) bool { return Less(recs[i], recs[j]) })
	want := []Record{
		{int64(1), "a"},
		{int64(1), "z"},
		{int64(2), "b"},
		{int64(3), "c"},
	}
	expect.EQ(t, recs, want)
}

func TestNormalize(t *testing.T) {
	r := mustNormalize(t, Record{1, int8(2), uint32(3), float32(0.5), "s", Record{4, []interface{}{true}}, nil})
	want := Record{int64(1), int64(2), int64(3), 0.5, "s", []interface{}{int64(4), []interface{}{true}}, nil}
	expect.EQ(t, r, want)
	assert.NoError(t, Check(r))

	for _, bad := range []Record{
		{math.NaN()},
		{math.Inf(1)},
		{map[string]int{}},
		{uint64(math.MaxUint64)},
		{[]interface{}{struct{}{}}},
		{"\xff"},
		{int64(1), []interface{}{"ok", "\xfe"}},
	} {
		_, err := Normalize(bad)
		if !errors.Is(errors.Invalid, err) {
			t.Errorf("%v: expected invalid error, got %v", bad, err)
		}
	}
}

func TestCheck(t *testing.T) {
	if err := Check(Record{1}); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected unnormalized int to be rejected, got %v", err)
	}
	if err := Check(Record{[]interface{}{int64(1), 2}}); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected unnormalized nested int to be rejected, got %v", err)
	}
	if err := Check(Record{"\xff"}); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected invalid UTF-8 to be rejected, got %v", err)
	}
	assert.NoError(t, Check(Record{int64(1), 2.5, "x", "\u00e9", []interface{}{nil, false}}))
}

func TestBuffer(t *testing.T) {
	ctx := context.Background()
	var g Group = NewBuffer()
	for i := 0; i < 3; i++ {
		assert.NoError(t, g.Append(ctx, Record{int64(i)}))
	}
	expect.EQ(t, g.Len(), 3)
	for i := 0; i < 3; i++ {
		r, err := g.Next(ctx)
		assert.NoError(t, err)
		expect.EQ(t, r, Record{int64(i)})
	}
	for i := 0; i < 2; i++ {
		if _, err := g.Next(ctx); err != EOF {
			t.Errorf("got %v, want EOF", err)
		}
	}
	expect.EQ(t, g.Len(), 3)
}
