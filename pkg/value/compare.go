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

package value

import (
	"math"
	"strings"

	"github.com/open-telemetry/otap-dataflow-core/pkg/werror"
)

// EqualValues reports whether left and right hold the same value.
//
// Null is reflexive only with Null. Arrays compare element-wise and
// order-sensitively. Maps compare by key-set equality with value equality;
// map keys always compare case-sensitively, even when ci requests
// case-insensitive comparison elsewhere — this is a documented anomaly
//, not a bug, and this implementation does not silently "fix" it.
func EqualValues(left, right Value, ci bool) bool {
	if left.kind == KindNull || right.kind == KindNull {
		return left.kind == KindNull && right.kind == KindNull
	}

	switch {
	case left.kind == KindArray && right.kind == KindArray:
		return equalArrays(left.arr, right.arr, ci)
	case left.kind == KindMap && right.kind == KindMap:
		return equalMaps(left.m, right.m, ci)
	case left.kind == KindArray || left.kind == KindMap:
		lj, err := toJSON(left)
		if err != nil {
			return false
		}
		return equalStrings(lj, ConvertToString(right), ci)
	case right.kind == KindArray || right.kind == KindMap:
		rj, err := toJSON(right)
		if err != nil {
			return false
		}
		return equalStrings(ConvertToString(left), rj, ci)
	case left.kind == KindRegex:
		return equalStrings(left.s, ConvertToString(right), ci)
	case right.kind == KindRegex:
		return equalStrings(ConvertToString(left), right.s, ci)
	default:
		return equalPrimitives(left, right, ci)
	}
}

func equalArrays(a, b []Value, ci bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !EqualValues(a[i], b[i], ci) {
			return false
		}
	}
	return true
}

// equalMaps compares key-set equality with value equality. Keys always
// compare case-sensitively, irrespective of ci.
func equalMaps(a, b MapView, ci bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Len() != b.Len() {
		return false
	}
	equal := true
	a.Range(func(k string, av Value) bool {
		bv, ok := b.Get(k)
		if !ok || !EqualValues(av, bv, ci) {
			equal = false
			return false
		}
		return true
	})
	return equal
}

func equalStrings(a, b string, ci bool) bool {
	if ci {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// equalPrimitives coerces both sides to the widest applicable type, using
// the same widening rule as CompareValues, then compares.
func equalPrimitives(left, right Value, ci bool) bool {
	if left.kind == KindString || right.kind == KindString {
		return equalStrings(ConvertToString(left), ConvertToString(right), ci)
	}
	if left.kind == KindBool && right.kind == KindBool {
		return left.b == right.b
	}
	if ld, ok := ConvertToDouble(left); ok && math.IsNaN(ld) {
		return false
	}
	if rd, ok := ConvertToDouble(right); ok && math.IsNaN(rd) {
		return false
	}
	c, err := CompareValues(left, right)
	if err != nil {
		return false
	}
	return c == 0
}

// CompareValues orders two values under a widening coercion rule:
// if either side is DateTime, both are coerced to DateTime; else if either
// side is Double, both are coerced to Double; otherwise both are coerced to
// Int64. Double equality/ordering uses Go's native operators, so NaN
// compares false to everything; this is a deliberate, documented choice
// rather than a silent special case.
func CompareValues(left, right Value) (int, error) {
	if left.kind == KindDateTime || right.kind == KindDateTime {
		lt, ok1 := ConvertToDateTime(left)
		rt, ok2 := ConvertToDateTime(right)
		if !ok1 || !ok2 {
			return 0, &werror.TypeMismatchError{Message: "cannot coerce to DateTime for comparison"}
		}
		switch {
		case lt.t.Equal(rt.t):
			return 0, nil
		case lt.t.Before(rt.t):
			return -1, nil
		default:
			return 1, nil
		}
	}

	if left.kind == KindDouble || right.kind == KindDouble {
		ld, ok1 := ConvertToDouble(left)
		rd, ok2 := ConvertToDouble(right)
		if !ok1 || !ok2 {
			return 0, &werror.TypeMismatchError{Message: "cannot coerce to Double for comparison"}
		}
		switch {
		case ld == rd:
			return 0, nil
		case ld < rd:
			return -1, nil
		case ld > rd:
			return 1, nil
		default:
			// NaN: not equal, not less, not greater. Reported as unordered
			// via 0 so callers
			// relying on compare_values(x,x)==0 for non-NaN x are unaffected.
			return 0, nil
		}
	}

	li, ok1 := ConvertToInteger(left)
	ri, ok2 := ConvertToInteger(right)
	if !ok1 || !ok2 {
		return 0, &werror.TypeMismatchError{Message: "cannot coerce to Int64 for comparison"}
	}
	switch {
	case li == ri:
		return 0, nil
	case li < ri:
		return -1, nil
	default:
		return 1, nil
	}
}
