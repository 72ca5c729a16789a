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

package expr

import (
	"github.com/open-telemetry/otap-dataflow-core/pkg/value"
)

// Accessor is a resolved path of map-key selectors, e.g. attributes.k2
// lowers to Accessor{Path: []string{"attributes", "k2"}}.
type Accessor struct {
	Path []string
}

func NewAccessor(path ...string) Accessor { return Accessor{Path: append([]string(nil), path...)} }

func (a Accessor) IsEmpty() bool { return len(a.Path) == 0 }

func (a Accessor) String() string {
	s := ""
	for i, p := range a.Path {
		if i > 0 {
			s += "."
		}
		s += p
	}
	return s
}

// Record is the mutable source map an expression tree reads from and
// writes to while evaluating over one telemetry item.
type Record interface {
	Get(path []string) (value.Value, bool)
	Set(path []string, v value.Value) error
	Delete(path []string) bool
	// Root returns the whole record projected as a map Value, used by
	// Source(accessor) when the accessor has no selectors.
	Root() value.Value
}

// MapRecord is a Record backed by nested map[string]value.Value, the
// concrete type records flow through in the record-set executor (component
// D) and in tests.
type MapRecord struct {
	Fields map[string]value.Value
}

func NewMapRecord(fields map[string]value.Value) *MapRecord {
	if fields == nil {
		fields = map[string]value.Value{}
	}
	return &MapRecord{Fields: fields}
}

func (r *MapRecord) Root() value.Value {
	return value.NewMap(r.Fields)
}

func (r *MapRecord) Get(path []string) (value.Value, bool) {
	if len(path) == 0 {
		return r.Root(), true
	}
	cur := r.Fields
	for i, key := range path {
		v, ok := cur[key]
		if !ok {
			return value.Value{}, false
		}
		if i == len(path)-1 {
			return v, true
		}
		m, ok := asNestedMap(v)
		if !ok {
			return value.Value{}, false
		}
		cur = m
	}
	return value.Value{}, false
}

func (r *MapRecord) Set(path []string, v value.Value) error {
	if len(path) == 0 {
		return nil
	}
	cur := r.Fields
	for i, key := range path[:len(path)-1] {
		next, ok := cur[key]
		if !ok {
			m := map[string]value.Value{}
			cur[key] = value.NewMap(m)
			cur = m
			continue
		}
		m, ok := asNestedMap(next)
		if !ok {
			m = map[string]value.Value{}
			cur[key] = value.NewMap(m)
		}
		cur = m
		_ = i
	}
	cur[path[len(path)-1]] = v
	return nil
}

func (r *MapRecord) Delete(path []string) bool {
	if len(path) == 0 {
		return false
	}
	cur := r.Fields
	for _, key := range path[:len(path)-1] {
		next, ok := cur[key]
		if !ok {
			return false
		}
		m, ok := asNestedMap(next)
		if !ok {
			return false
		}
		cur = m
	}
	last := path[len(path)-1]
	if _, ok := cur[last]; !ok {
		return false
	}
	delete(cur, last)
	return true
}

// asNestedMap returns the mutable backing map for a nested Map value,
// aliasing it so writes through Set are visible from every reference to
// that nested map (MapRecord only ever builds nested maps via value.NewMap).
func asNestedMap(v value.Value) (map[string]value.Value, bool) {
	return value.AsMutableMap(v)
}
