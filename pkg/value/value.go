// Copyright The OpenTelemetry Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package value implements the polymorphic telemetry Value model: a tagged
// sum of Null/Bool/Int64/Double/String/Bytes/Regex/DateTime/Array/Map with
// conversion, equality, ordering and JSON projection.
package value

import (
	"fmt"
	"regexp"
	"sort"
	"time"
)

// Kind identifies which variant of Value a given instance holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindDouble
	KindString
	KindBytes
	KindRegex
	KindDateTime
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt64:
		return "Int64"
	case KindDouble:
		return "Double"
	case KindString:
		return "String"
	case KindBytes:
		return "Bytes"
	case KindRegex:
		return "Regex"
	case KindDateTime:
		return "DateTime"
	case KindArray:
		return "Array"
	case KindMap:
		return "Map"
	default:
		return "Unknown"
	}
}

// MapView is the read interface an associative Value exposes. It mirrors
// what a Rust engine would model as a borrowed trait object: the
// record owns the underlying storage, Value is a read view over it.
type MapView interface {
	Get(key string) (Value, bool)
	Len() int
	// Range calls fn for every key/value pair. Iteration order is
	// unspecified; Map equality does not depend on it.
	Range(fn func(key string, v Value) bool)
}

// mapOfValues is the concrete MapView backing NewMap.
type mapOfValues map[string]Value

func (m mapOfValues) Get(key string) (Value, bool) { v, ok := m[key]; return v, ok }
func (m mapOfValues) Len() int                     { return len(m) }
func (m mapOfValues) Range(fn func(string, Value) bool) {
	for k, v := range m {
		if !fn(k, v) {
			return
		}
	}
}

// Value is the polymorphic telemetry value. It is implemented as a tagged
// struct (rather than an interface-per-variant) because, unlike the arrow
// column-level Value built from an interface type, telemetry
// values are small and copied freely between expression evaluation frames.
type Value struct {
	kind Kind

	b     bool
	i     int64
	d     float64
	s     string // String, Regex (pattern source)
	bytes []byte
	t     time.Time
	arr   []Value
	m     MapView
}

func Null() Value                 { return Value{kind: KindNull} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func Int64(i int64) Value         { return Value{kind: KindInt64, i: i} }
func Double(d float64) Value      { return Value{kind: KindDouble, d: d} }
func String(s string) Value       { return Value{kind: KindString, s: s} }
func Bytes(b []byte) Value        { return Value{kind: KindBytes, bytes: b} }
func DateTime(t time.Time) Value  { return Value{kind: KindDateTime, t: t} }
func Array(vs []Value) Value      { return Value{kind: KindArray, arr: vs} }
func MapValue(m MapView) Value    { return Value{kind: KindMap, m: m} }
func NewMap(m map[string]Value) Value {
	return Value{kind: KindMap, m: mapOfValues(m)}
}

// Regex stores the compiled pattern alongside its source text; String-form
// comparisons always use the source text.
func Regex(source string) (Value, error) {
	if _, err := regexp.Compile(source); err != nil {
		return Value{}, err
	}
	return Value{kind: KindRegex, s: source}, nil
}

func MustRegex(source string) Value {
	v, err := Regex(source)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) AsBool() bool   { return v.b }
func (v Value) AsInt64() int64 { return v.i }
func (v Value) AsDouble() float64 { return v.d }
func (v Value) AsString() string  { return v.s }
func (v Value) AsBytes() []byte   { return v.bytes }
func (v Value) AsTime() time.Time { return v.t }
func (v Value) AsArray() []Value  { return v.arr }
func (v Value) AsMap() MapView    { return v.m }

// AsMutableMap returns the underlying map[string]Value backing a Value built
// by NewMap, aliasing (not copying) it so in-place mutation is visible
// through every Value that still references it. It returns ok=false for
// Values built via MapValue(custom MapView) or for non-Map kinds, since
// those are not guaranteed to be backed by a plain Go map.
func AsMutableMap(v Value) (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	m, ok := v.m.(mapOfValues)
	if !ok {
		return nil, false
	}
	return map[string]Value(m), true
}

// sortedKeys returns the map's keys sorted for deterministic JSON
// projection; it does not affect equality (map equality is key-set based).
func sortedKeys(m MapView) []string {
	keys := make([]string, 0, m.Len())
	m.Range(func(k string, _ Value) bool {
		keys = append(keys, k)
		return true
	})
	sort.Strings(keys)
	return keys
}

func (v Value) String() string {
	var sb stringsBuilder
	_ = v.WriteString(&sb)
	return sb.String()
}

// WriteString implements callback-based stringification, avoiding an
// convert_to_string: chunks are written to w rather than built as one
// intermediate allocation.
func (v Value) WriteString(w chunkWriter) error {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		if v.b {
			_, err := w.WriteString("true")
			return err
		}
		_, err := w.WriteString("false")
		return err
	case KindInt64:
		_, err := w.WriteString(fmt.Sprintf("%d", v.i))
		return err
	case KindDouble:
		_, err := w.WriteString(formatDouble(v.d))
		return err
	case KindString:
		_, err := w.WriteString(v.s)
		return err
	case KindBytes:
		_, err := w.WriteString(string(v.bytes))
		return err
	case KindRegex:
		_, err := w.WriteString(v.s)
		return err
	case KindDateTime:
		_, err := w.WriteString(formatDateTime(v.t))
		return err
	case KindArray, KindMap:
		s, err := toJSON(v)
		if err != nil {
			return err
		}
		_, err = w.WriteString(s)
		return err
	default:
		return fmt.Errorf("value: unknown kind %v", v.kind)
	}
}

// chunkWriter is the minimal sink convert_to_string writes into.
type chunkWriter interface {
	WriteString(s string) (int, error)
}

type stringsBuilder struct{ buf []byte }

func (s *stringsBuilder) WriteString(str string) (int, error) {
	s.buf = append(s.buf, str...)
	return len(str), nil
}
func (s *stringsBuilder) String() string { return string(s.buf) }

func formatDouble(d float64) string {
	return fmt.Sprintf("%g", d)
}

// formatDateTime renders RFC3339 with automatic sub-second precision (no
// trailing zero fraction digits), UTC when the original offset is zero.
func formatDateTime(t time.Time) string {
	if t.Nanosecond() == 0 {
		return t.Format(time.RFC3339)
	}
	return t.Format(time.RFC3339Nano)
}
