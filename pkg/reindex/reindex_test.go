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

package reindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMappingsSingleRun(t *testing.T) {
	mappings, next := CreateMappings([]uint64{3, 4, 4, 5}, 0)
	require.Len(t, mappings, 1)
	assert.Equal(t, uint64(3), mappings[0].StartID)
	assert.Equal(t, uint64(5), mappings[0].EndID)
	assert.Equal(t, uint64(3), next)
}

func TestCreateMappingsMultipleRunsCarryOffset(t *testing.T) {
	// two disjoint runs: {3,4,5} and {10,11}; starting offset 0 packs them
	// into {0,1,2} and {3,4}.
	mappings, next := CreateMappings([]uint64{3, 4, 5, 10, 11}, 0)
	require.Len(t, mappings, 2)

	sorted := []uint64{3, 4, 5, 10, 11}
	ApplyMappings(sorted, mappings)
	assert.Equal(t, []uint64{0, 1, 2, 3, 4}, sorted)
	assert.Equal(t, uint64(5), next)
}

func TestReindexMergesDisjointGroupsContiguously(t *testing.T) {
	groups := []BatchGroup{
		{
			RootIDs: []uint64{0, 1, 2},
			Children: map[string][]uint64{
				"log_attrs": {0, 0, 1, 2},
			},
		},
		{
			RootIDs: []uint64{0, 1},
			Children: map[string][]uint64{
				"log_attrs": {0, 1, 1},
			},
		},
	}

	err := Reindex("logs", groups, []string{"log_attrs"})
	require.NoError(t, err)

	assert.Equal(t, []uint64{0, 1, 2}, groups[0].RootIDs)
	assert.Equal(t, []uint64{0, 0, 1, 2}, groups[0].Children["log_attrs"])

	// second group's ids must not collide with the first group's [0,2] range.
	assert.Equal(t, []uint64{3, 4}, groups[1].RootIDs)
	assert.Equal(t, []uint64{3, 4, 4}, groups[1].Children["log_attrs"])
}

func TestReindexPreservesRowOrderWithinGroup(t *testing.T) {
	groups := []BatchGroup{
		{RootIDs: []uint64{5, 1, 3}},
	}
	err := Reindex("logs", groups, nil)
	require.NoError(t, err)

	// row order is preserved; only the values are densely renumbered.
	assert.Equal(t, 3, len(groups[0].RootIDs))
	assert.Equal(t, []uint64{2, 0, 1}, groups[0].RootIDs)
	seen := map[uint64]bool{}
	for _, id := range groups[0].RootIDs {
		seen[id] = true
	}
	assert.Len(t, seen, 3)
}

func TestReindexRejectsTooManyItems(t *testing.T) {
	ids := make([]uint64, MaxUint16Items+1)
	for i := range ids {
		ids[i] = uint64(i)
	}
	groups := []BatchGroup{{RootIDs: ids}}

	err := Reindex("logs", groups, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many items")
}
