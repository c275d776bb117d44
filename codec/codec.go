// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package codec provides serialization of records for spill files
// and disk lists. A Codec must be deterministic and must round-trip
// every record exactly with respect to record.Compare.
package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/disksort/record"
)

// A Codec encodes and decodes single records.
type Codec interface {
	// Encode returns the encoded representation of r.
	Encode(r record.Record) ([]byte, error)
	// Decode decodes a record previously encoded by Encode.
	// Decoding errors have kind errors.Integrity.
	Decode(p []byte) (record.Record, error)
}

// Lookup returns the codec with the provided name: "json" or "gob".
func Lookup(name string) (Codec, error) {
	switch name {
	case "json":
		return JSON, nil
	case "gob":
		return Gob, nil
	}
	return nil, errors.E(errors.Invalid, fmt.Sprintf("codec: unknown codec %q", name))
}

// JSON encodes records as compact JSON arrays. Its output never
// contains newlines, so it is suitable for newline-delimited
// storage.
var JSON Codec = jsonCodec{}

type jsonCodec struct{}

func (jsonCodec) Encode(r record.Record) ([]byte, error) {
	if r == nil {
		r = record.Record{}
	}
	p, err := json.Marshal([]interface{}(r))
	if err != nil {
		return nil, errors.E(errors.Invalid, "codec: json encode", err)
	}
	return p, nil
}

func (jsonCodec) Decode(p []byte) (record.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(p))
	dec.UseNumber()
	var v []interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, errors.E(errors.Integrity, "codec: json decode", err)
	}
	for i := range v {
		var err error
		if v[i], err = fromJSON(v[i]); err != nil {
			return nil, errors.E(errors.Integrity, "codec: json decode", err)
		}
	}
	return record.Record(v), nil
}

// fromJSON converts decoded JSON values to their normalized record
// representation. Numbers without a fraction or exponent become
// int64s; all others become float64s.
func fromJSON(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case json.Number:
		s := string(x)
		if !strings.ContainsAny(s, ".eE") {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n, nil
			}
		}
		return strconv.ParseFloat(s, 64)
	case []interface{}:
		for i := range x {
			var err error
			if x[i], err = fromJSON(x[i]); err != nil {
				return nil, err
			}
		}
		return x, nil
	case nil, bool, string:
		return x, nil
	}
	return nil, fmt.Errorf("unsupported JSON value of type %T", v)
}

// Gob encodes records using encoding/gob. Each record is encoded as
// a self-contained gob stream, so records may be decoded
// independently.
var Gob Codec = gobCodec{}

func init() {
	gob.Register([]interface{}{})
}

type gobCodec struct{}

func (gobCodec) Encode(r record.Record) ([]byte, error) {
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode([]interface{}(r)); err != nil {
		return nil, errors.E(errors.Invalid, "codec: gob encode", err)
	}
	return b.Bytes(), nil
}

func (gobCodec) Decode(p []byte) (record.Record, error) {
	var v []interface{}
	if err := gob.NewDecoder(bytes.NewReader(p)).Decode(&v); err != nil {
		return nil, errors.E(errors.Integrity, "codec: gob decode", err)
	}
	return record.Record(v), nil
}
