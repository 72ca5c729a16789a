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
	"strconv"
	"strings"
)

// ConvertToBool converts v to a bool, reporting whether the conversion is defined.
func ConvertToBool(v Value) (bool, bool) {
	switch v.kind {
	case KindBool:
		return v.b, true
	case KindInt64:
		return v.i != 0, true
	case KindDouble:
		return v.d != 0.0, true
	case KindString:
		s := strings.ToLower(v.s)
		if s == "true" {
			return true, true
		}
		if s == "false" {
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}

// ConvertToInteger converts v to an int64, reporting whether the conversion is defined.
func ConvertToInteger(v Value) (int64, bool) {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindInt64:
		return v.i, true
	case KindDouble:
		return int64(v.d), true
	case KindString:
		i, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// ConvertToDouble converts v to a float64, reporting whether the conversion is defined.
func ConvertToDouble(v Value) (float64, bool) {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindInt64:
		return float64(v.i), true
	case KindDouble:
		return v.d, true
	case KindString:
		d, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, false
		}
		return d, true
	default:
		return 0, false
	}
}

// ConvertToDateTime converts v to a DateTime value. Only
// DateTime converts to itself; every other kind fails.
func ConvertToDateTime(v Value) (Value, bool) {
	if v.kind == KindDateTime {
		return v, true
	}
	return Value{}, false
}

// ConvertToString renders v as its canonical string form.
func ConvertToString(v Value) string {
	return v.String()
}
