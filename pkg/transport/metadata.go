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

package transport

import "github.com/apache/arrow-go/v18/arrow"

// ColumnEncodingKey is the Arrow field-metadata key a receiver inspects to
// know how to invert an id/parent_id column before use.
const ColumnEncodingKey = "encoding"

type ColumnEncoding string

const (
	EncodingPlain       ColumnEncoding = "plain"
	EncodingDelta       ColumnEncoding = "delta"
	EncodingQuasiDelta  ColumnEncoding = "quasi_delta"
)

// WithColumnEncoding returns a copy of field with its encoding metadata set,
// preserving any metadata already present (mirrors the teacher's pattern of
// cloning a Field rather than mutating shared schema objects in place —
// see update_field_encoding_metadata in column_encoding.rs).
func WithColumnEncoding(field arrow.Field, enc ColumnEncoding) arrow.Field {
	md := field.Metadata
	keys := append(append([]string(nil), md.Keys()...), ColumnEncodingKey)
	vals := append(append([]string(nil), md.Values()...), string(enc))
	field.Metadata = arrow.NewMetadata(keys, vals)
	return field
}

// ColumnEncodingOf reads back the encoding metadata set by
// WithColumnEncoding, defaulting to EncodingPlain when absent.
func ColumnEncodingOf(field arrow.Field) ColumnEncoding {
	if idx := field.Metadata.FindKey(ColumnEncodingKey); idx >= 0 {
		return ColumnEncoding(field.Metadata.Values()[idx])
	}
	return EncodingPlain
}
