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

// Package reindex merges several OTel-Arrow batch groups (e.g. several
// incoming BatchArrowRecords a batch processor decided to combine into one
// outgoing request) into a single contiguous, non-overlapping id space per
// root payload type, remapping every child table's parent_id column to
// match. Grounded directly on
// rust/otap-dataflow/crates/pdata/src/otap/transform/reindex.rs (see
// _examples/original_source); this repo has no Go equivalent to adapt, so
// the algorithm (chunk sorted ids into consecutive runs, compute a signed
// per-run offset, apply it, remap children through the same offsets) is
// translated from the Rust original into concrete Go types rather than its
// const-generic multi-batch-store abstraction.
package reindex

import (
	"sort"

	"github.com/open-telemetry/otap-dataflow-core/pkg/werror"
)

// MaxUint16Items is the largest id-space size the reindexer allows in a
// single merged group: the size of a 16-bit id space (ids 0..65535).
const MaxUint16Items = 1 << 16

// BatchGroup is one root-payload batch plus the parent_id columns of its
// related child tables (attributes, events, links, exemplars, ...), keyed
// by child payload-type name.
type BatchGroup struct {
	RootIDs  []uint64
	Children map[string][]uint64
}

// IdMapping is a contiguous run of original ids and the signed offset that
// renumbers them starting from the running total passed into
// CreateMappings.
type IdMapping struct {
	StartID, EndID uint64
	Offset         uint64
	Positive       bool
}

// CreateMappings chunks sortedIDs into consecutive runs (adjacent
// duplicates and ids exactly one apart stay in the same run) and assigns
// each run a signed offset so its ids become sequential starting at
// offset. Returns the mappings and the next offset a subsequent call
// should start from.
func CreateMappings(sortedIDs []uint64, offset uint64) ([]IdMapping, uint64) {
	if len(sortedIDs) == 0 {
		return nil, offset
	}

	var mappings []IdMapping
	current := offset
	start, end := sortedIDs[0], sortedIDs[0]

	flush := func() {
		var off uint64
		positive := true
		if start <= current {
			off = current - start
		} else {
			off = start - current
			positive = false
		}
		mappings = append(mappings, IdMapping{StartID: start, EndID: end, Offset: off, Positive: positive})
		var newEnd uint64
		if positive {
			newEnd = end + off
		} else {
			newEnd = end - off
		}
		current = newEnd + 1
	}

	for i := 1; i < len(sortedIDs); i++ {
		id := sortedIDs[i]
		if id == end || id == end+1 {
			end = id
			continue
		}
		flush()
		start, end = id, id
	}
	flush()
	return mappings, current
}

// ApplyMappings rewrites sortedIDs in place, scanning the mapping list in
// order alongside the (already sorted) id slice the way the original
// scans a sorted buffer once rather than looking up each id individually.
func ApplyMappings(sortedIDs []uint64, mappings []IdMapping) {
	pos := 0
	for _, m := range mappings {
		if pos >= len(sortedIDs) {
			break
		}
		if sortedIDs[pos] < m.StartID {
			continue
		}
		end := pos
		for end < len(sortedIDs) && sortedIDs[end] <= m.EndID {
			end++
		}
		for i := pos; i < end; i++ {
			if m.Positive {
				sortedIDs[i] += m.Offset
			} else {
				sortedIDs[i] -= m.Offset
			}
		}
		pos = end
	}
}

// SortToIndices returns the permutation that sorts ids ascending.
func SortToIndices(ids []uint64) []int {
	idx := make([]int, len(ids))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return ids[idx[a]] < ids[idx[b]] })
	return idx
}

func take(src []uint64, indices []int) []uint64 {
	out := make([]uint64, len(indices))
	for i, idx := range indices {
		out[i] = src[idx]
	}
	return out
}

func untake(sortedValues []uint64, indices []int) []uint64 {
	out := make([]uint64, len(sortedValues))
	for i, idx := range indices {
		out[idx] = sortedValues[i]
	}
	return out
}

// applyMappingsToColumn sorts ids, applies mappings (computed from a
// possibly different but id-range-compatible column), and restores the
// original row order — used for both the root id column the mappings were
// derived from and every child parent_id column that references it.
func applyMappingsToColumn(ids []uint64, mappings []IdMapping) []uint64 {
	indices := SortToIndices(ids)
	sorted := take(ids, indices)
	ApplyMappings(sorted, mappings)
	return untake(sorted, indices)
}

// Reindex merges groups (already in the order they should appear in the
// combined output) into one contiguous id space per root payload, in
// place. signal names the telemetry signal for TooManyItemsError
// reporting; childTypes lists which Children keys carry a parent_id column
// that must be remapped alongside the root ids.
func Reindex(signal string, groups []BatchGroup, childTypes []string) error {
	var total int
	for _, g := range groups {
		total += len(g.RootIDs)
	}
	if total > MaxUint16Items {
		return werror.Wrap(&werror.TooManyItemsError{Signal: signal, Count: total, Max: MaxUint16Items})
	}

	var offset uint64
	for i := range groups {
		g := &groups[i]
		if len(g.RootIDs) == 0 {
			continue
		}
		indices := SortToIndices(g.RootIDs)
		sortedRoot := take(g.RootIDs, indices)
		mappings, newOffset := CreateMappings(sortedRoot, offset)
		offset = newOffset
		ApplyMappings(sortedRoot, mappings)
		g.RootIDs = untake(sortedRoot, indices)

		for _, ct := range childTypes {
			if col, ok := g.Children[ct]; ok && len(col) > 0 {
				g.Children[ct] = applyMappingsToColumn(col, mappings)
			}
		}
	}
	return nil
}
