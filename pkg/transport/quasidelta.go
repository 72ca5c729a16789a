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

import "sort"

// AttributeRow is one row of an attribute table (LogAttrs/SpanAttrs/...):
// the quasi-delta sort key is (Type, Key, Value), the payload being delta
// encoded is ParentID.
type AttributeRow struct {
	Type     uint8
	Key      string
	Value    string
	ParentID uint64
}

// SortAttributeRows returns the permutation that sorts rows by
// (Type, Key, Value, ParentID), the key the quasi-delta encoding assumes:
// rows sharing the same type/key/value are adjacent, so parent_id within
// that run can be delta encoded the same way a plain id column is.
func SortAttributeRows(rows []AttributeRow) []int {
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		ra, rb := rows[idx[i]], rows[idx[j]]
		if ra.Type != rb.Type {
			return ra.Type < rb.Type
		}
		if ra.Key != rb.Key {
			return ra.Key < rb.Key
		}
		if ra.Value != rb.Value {
			return ra.Value < rb.Value
		}
		return ra.ParentID < rb.ParentID
	})
	return idx
}

// QuasiDeltaEncode delta-encodes ParentID within each consecutive run of
// matching (Type, Key, Value) in rows (rows must already be sorted by
// SortAttributeRows' permutation). Within a run the first parent_id is
// stored absolute; every subsequent one is stored as the difference from
// the previous row's parent_id, so a table where the same attribute
// key/value repeats across many consecutive parents (e.g. "level"="info"
// on every record) compresses to mostly-small deltas.
func QuasiDeltaEncode(rows []AttributeRow) []uint64 {
	out := make([]uint64, len(rows))
	for i, row := range rows {
		if i == 0 || !sameGroup(rows[i-1], row) {
			out[i] = row.ParentID
			continue
		}
		out[i] = row.ParentID - rows[i-1].ParentID
	}
	return out
}

// QuasiDeltaDecode inverts QuasiDeltaEncode given the same sorted rows
// (with ParentID left at its encoded value) by walking each run and
// accumulating deltas back into absolute parent ids.
func QuasiDeltaDecode(rows []AttributeRow, encoded []uint64) []uint64 {
	out := make([]uint64, len(rows))
	for i := range rows {
		if i == 0 || !sameGroup(rows[i-1], rows[i]) {
			out[i] = encoded[i]
			continue
		}
		out[i] = out[i-1] + encoded[i]
	}
	return out
}

func sameGroup(a, b AttributeRow) bool {
	return a.Type == b.Type && a.Key == b.Key && a.Value == b.Value
}
