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

import "unicode/utf8"

// Length returns the character count for string,
// element count for array and map, Null for any other type.
func Length(v Value) Value {
	switch v.kind {
	case KindString:
		return Int64(int64(utf8.RuneCountInString(v.s)))
	case KindArray:
		return Int64(int64(len(v.arr)))
	case KindMap:
		if v.m == nil {
			return Int64(0)
		}
		return Int64(int64(v.m.Len()))
	default:
		return Null()
	}
}
