// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package record defines the unit of data sorted by disksort: an
// ordered sequence of fields with a total order, whose first field
// is the grouping key.
package record

import (
	"bytes"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/grailbio/base/errors"
)

// A Record is an ordered sequence of fields. Records are ordered
// lexicographically by their fields; the first field is the
// record's grouping key.
//
// Fields may be nil, bools, integers, floats, strings, or lists of
// such values. Records should be normalized (see Normalize) before
// they are compared, so that integers are int64s, floats are
// float64s, and lists are []interface{}.
type Record []interface{}

// Key returns the record's grouping key, or nil if the record has
// no fields.
func (r Record) Key() interface{} {
	if len(r) == 0 {
		return nil
	}
	return r[0]
}

// KeyEqual tells whether records r and s share a grouping key.
func KeyEqual(r, s Record) bool {
	return compareValue(r.Key(), s.Key()) == 0
}

// Less tells whether r sorts strictly before s.
func Less(r, s Record) bool {
	return Compare(r, s) < 0
}

// Compare returns -1, 0 or 1 depending on whether r sorts before,
// equal to, or after s. Compare panics if either record contains
// unsupported values; use Check to validate records first.
func Compare(r, s Record) int {
	return compareList([]interface{}(r), []interface{}(s))
}

// Kind ranks of field values. Values of different kinds are ordered
// by their rank.
const (
	rankNil = iota
	rankBool
	rankNumber
	rankString
	rankList
)

func rank(v interface{}) int {
	switch v.(type) {
	case nil:
		return rankNil
	case bool:
		return rankBool
	case int64, float64:
		return rankNumber
	case string:
		return rankString
	case []interface{}, Record:
		return rankList
	}
	panic(fmt.Sprintf("record: unsupported value %v of type %T", v, v))
}

func compareValue(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case rankNil:
		return 0
	case rankBool:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case rankNumber:
		return compareNumber(a, b)
	case rankString:
		return bytes.Compare([]byte(a.(string)), []byte(b.(string)))
	default:
		return compareList(asList(a), asList(b))
	}
}

func compareNumber(a, b interface{}) int {
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		case float64:
			return compareIntFloat(x, y)
		}
	case float64:
		switch y := b.(type) {
		case int64:
			return -compareIntFloat(y, x)
		case float64:
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	panic(fmt.Sprintf("record: %T and %T are not numbers", a, b))
}

// compareIntFloat compares i and f exactly, without rounding i to
// the nearest float64.
func compareIntFloat(i int64, f float64) int {
	switch {
	case f < math.MinInt64:
		return 1
	case f >= -math.MinInt64:
		return -1
	}
	t := math.Trunc(f)
	switch ti := int64(t); {
	case i < ti:
		return -1
	case i > ti:
		return 1
	case f > t:
		return -1
	case f < t:
		return 1
	}
	return 0
}

func compareList(a, b []interface{}) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareValue(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func asList(v interface{}) []interface{} {
	if r, ok := v.(Record); ok {
		return []interface{}(r)
	}
	return v.([]interface{})
}

// Normalize returns a copy of r in which all field values have
// their canonical representation: integers become int64, floats
// become float64, and lists become []interface{}. Normalize returns
// an error of kind errors.Invalid if r contains an unsupported value,
// a NaN or infinite float, or a string that is not valid UTF-8.
func Normalize(r Record) (Record, error) {
	if r == nil {
		return nil, nil
	}
	out := make(Record, len(r))
	for i := range r {
		v, err := normalizeValue(r[i])
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("record: field %d", i), err)
		}
		out[i] = v
	}
	return out, nil
}

// Check returns an error of kind errors.Invalid if r is not a
// normalized record.
func Check(r Record) error {
	for i := range r {
		if err := checkValue(r[i]); err != nil {
			return errors.E(errors.Invalid, fmt.Sprintf("record: field %d", i), err)
		}
	}
	return nil
}

func checkValue(v interface{}) error {
	switch x := v.(type) {
	case nil, bool, int64:
		return nil
	case string:
		return checkString(x)
	case float64:
		_, err := checkFloat(x)
		return err
	case []interface{}:
		for i := range x {
			if err := checkValue(x[i]); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("value of type %T is not normalized", v)
}

func normalizeValue(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", x)
		}
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", x)
		}
		return int64(x), nil
	case float32:
		return checkFloat(float64(x))
	case float64:
		return checkFloat(x)
	case string:
		if err := checkString(x); err != nil {
			return nil, err
		}
		return x, nil
	case Record:
		return normalizeList([]interface{}(x))
	case []interface{}:
		return normalizeList(x)
	}
	return nil, fmt.Errorf("unsupported value of type %T", v)
}

func normalizeList(l []interface{}) (interface{}, error) {
	out := make([]interface{}, len(l))
	for i := range l {
		v, err := normalizeValue(l[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Strings must be valid UTF-8 so that they survive a JSON round
// trip unchanged.
func checkString(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("string %q is not valid UTF-8", s)
	}
	return nil
}

func checkFloat(f float64) (interface{}, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("float %v has no total order", f)
	}
	return f, nil
}
