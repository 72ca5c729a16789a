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
	"bytes"
	"encoding/json"
)

// toJSON renders a Value as compact canonical JSON, used as the "string
// form" of array/map values for cross-type comparisons.
func toJSON(v Value) (string, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
		return nil
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case KindInt64:
		b, err := json.Marshal(v.i)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	case KindDouble:
		b, err := json.Marshal(v.d)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	case KindString, KindRegex:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	case KindBytes:
		b, err := json.Marshal(v.bytes)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	case KindDateTime:
		b, err := json.Marshal(formatDateTime(v.t))
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case KindMap:
		buf.WriteByte('{')
		keys := sortedKeys(v.m)
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vv, _ := v.m.Get(k)
			if err := writeJSON(buf, vv); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		buf.WriteString("null")
		return nil
	}
}

// ToJSON is the exported form of the canonical JSON projection used by
// Convert(target_type=String) over array/map values.
func ToJSON(v Value) (string, error) { return toJSON(v) }
