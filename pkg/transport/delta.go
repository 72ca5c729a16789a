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

// Package transport implements the OTel-Arrow wire optimizations applied to
// ID columns before IPC serialization: delta encoding of a root payload's id
// column, quasi-delta encoding of an attribute table's parent_id column, and
// the column-metadata bookkeeping ("encoding": "plain"/"delta"/"quasi_delta")
// a receiver needs to invert them. Grounded on
// rust/otel-arrow-rust/src/encode/column_encoding.rs (see
// _examples/original_source) — the teacher's Go code never implemented this
// layer, so the encode/decode shape here follows the Rust original directly
// while the Go idiom (explicit slices, no unsafe buffer pushes) follows the
// rest of this repo.
package transport

// DeltaEncode replaces a sorted id column with a same-length "did this row's
// id change from the previous row" buffer, and returns an indirection table
// mapping each original id to its new, densely packed sequential value (the
// teacher calls this remappings). ids must already be sorted ascending.
//
// This compresses well in transport (mostly-zero buffer) and is reversible:
// DeltaDecode reconstructs the same dense sequential ids DeltaEncode's
// remap table assigns, not the original (possibly sparse) ids; the original
// ids never need to survive the round trip because every reference to them
// (parent_id columns in child tables) is remapped through remap at the same
// time.
func DeltaEncode(ids []uint64) (deltas []uint64, remap map[uint64]uint64) {
	deltas = make([]uint64, len(ids))
	remap = make(map[uint64]uint64, len(ids))
	if len(ids) == 0 {
		return deltas, remap
	}

	var curr uint64
	var havePrev bool
	var prev uint64
	remap[ids[0]] = 0
	for i, id := range ids {
		switch {
		case !havePrev:
			deltas[i] = 0
			prev, havePrev = id, true
		case id == prev:
			deltas[i] = 0
		default:
			deltas[i] = 1
			curr++
			remap[id] = curr
			prev = id
		}
	}
	return deltas, remap
}

// DeltaDecode inverts DeltaEncode's delta buffer back into the dense
// sequential id sequence: a 0 repeats the previous id, a 1 advances to the
// next sequential id.
func DeltaDecode(deltas []uint64) []uint64 {
	ids := make([]uint64, len(deltas))
	var curr uint64
	for i, d := range deltas {
		if i > 0 && d != 0 {
			curr++
		}
		ids[i] = curr
	}
	return ids
}
