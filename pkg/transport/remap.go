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

// RemapParentIDs rewrites every id in parentIDs through remap (the
// indirection table DeltaEncode returned for the parent table's own id
// column), leaving ids with no entry untouched. This is the
// ParentIdRemapping step: once a root table's id column is delta-encoded
// and densely renumbered, every child table's parent_id column has to be
// rewritten to point at the new ids.
func RemapParentIDs(parentIDs []uint64, remap map[uint64]uint64) []uint64 {
	out := make([]uint64, len(parentIDs))
	for i, id := range parentIDs {
		if newID, ok := remap[id]; ok {
			out[i] = newID
		} else {
			out[i] = id
		}
	}
	return out
}
