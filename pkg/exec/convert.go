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

// Package exec is the record-set executor: it runs a compiled expr.Pipeline
// over OTLP log records, decoding/re-encoding via pdata the way the
// teacher's otlp_to_arrow.go / arrow_to_otlp.go bridge OTLP protos to and
// from its Arrow representation, except the intermediate form here is a
// expr.MapRecord rather than an Arrow record batch.
package exec

import (
	"go.opentelemetry.io/collector/pdata/pcommon"

	"github.com/open-telemetry/otap-dataflow-core/pkg/value"
)

// pdataToValue projects a pcommon.Value into this repo's Value model.
func pdataToValue(v pcommon.Value) value.Value {
	switch v.Type() {
	case pcommon.ValueTypeEmpty:
		return value.Null()
	case pcommon.ValueTypeStr:
		return value.String(v.Str())
	case pcommon.ValueTypeBool:
		return value.Bool(v.Bool())
	case pcommon.ValueTypeInt:
		return value.Int64(v.Int())
	case pcommon.ValueTypeDouble:
		return value.Double(v.Double())
	case pcommon.ValueTypeBytes:
		return value.Bytes(append([]byte(nil), v.Bytes().AsRaw()...))
	case pcommon.ValueTypeMap:
		return pdataMapToValue(v.Map())
	case pcommon.ValueTypeSlice:
		sl := v.Slice()
		out := make([]value.Value, sl.Len())
		for i := 0; i < sl.Len(); i++ {
			out[i] = pdataToValue(sl.At(i))
		}
		return value.Array(out)
	default:
		return value.Null()
	}
}

func pdataMapToValue(m pcommon.Map) value.Value {
	out := make(map[string]value.Value, m.Len())
	m.Range(func(k string, v pcommon.Value) bool {
		out[k] = pdataToValue(v)
		return true
	})
	return value.NewMap(out)
}

// valueToPdata writes v into dest, a freshly obtained pcommon.Value slot
// (e.g. from Map.PutEmpty or Slice.AppendEmpty).
func valueToPdata(v value.Value, dest pcommon.Value) {
	switch v.Kind() {
	case value.KindNull:
		// dest was just obtained from PutEmpty/AppendEmpty and defaults to
		// ValueTypeEmpty; leaving it untouched is the correct encoding of Null.
	case value.KindBool:
		dest.SetBool(v.AsBool())
	case value.KindInt64:
		dest.SetInt(v.AsInt64())
	case value.KindDouble:
		dest.SetDouble(v.AsDouble())
	case value.KindString, value.KindRegex, value.KindDateTime:
		dest.SetStr(v.String())
	case value.KindBytes:
		dest.SetEmptyBytes().FromRaw(v.AsBytes())
	case value.KindArray:
		sl := dest.SetEmptySlice()
		for _, item := range v.AsArray() {
			valueToPdata(item, sl.AppendEmpty())
		}
	case value.KindMap:
		m := dest.SetEmptyMap()
		mv := v.AsMap()
		if mv != nil {
			mv.Range(func(k string, item value.Value) bool {
				valueToPdata(item, m.PutEmpty(k))
				return true
			})
		}
	}
}

// valueToPdataMap replaces dest's contents with the key/value pairs of v,
// which must be value.KindMap (non-Map values are ignored: attribute
// rewrites that turn a map into a scalar have nowhere to go in OTLP).
func valueToPdataMap(v value.Value, dest pcommon.Map) {
	dest.Clear()
	if v.Kind() != value.KindMap {
		return
	}
	mv := v.AsMap()
	if mv == nil {
		return
	}
	mv.Range(func(k string, item value.Value) bool {
		valueToPdata(item, dest.PutEmpty(k))
		return true
	})
}
