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

package condense

import (
	"context"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-telemetry/otap-dataflow-core/pkg/node"
	"github.com/open-telemetry/otap-dataflow-core/pkg/transport"
)

// buildLogAttrs constructs a plain (non-quasi-delta) LogAttrs record from
// parallel rows, mirroring the columns decodeRows expects.
func buildLogAttrs(t *testing.T, rows []row) arrow.Record {
	t.Helper()
	parentIDs := make([]uint64, len(rows))
	for i, r := range rows {
		parentIDs[i] = r.parentID
	}
	rec, err := buildRecord(memory.NewGoAllocator(), rows, parentIDs, transport.EncodingPlain)
	require.NoError(t, err)
	return rec
}

func strRow(parentID uint64, key, val string) row {
	return row{parentID: parentID, key: key, kind: KindStr, strVal: val}
}
func intRow(parentID uint64, key string, val int64) row {
	return row{parentID: parentID, key: key, kind: KindInt, intVal: val}
}
func boolRow(parentID uint64, key string, val bool) row {
	return row{parentID: parentID, key: key, kind: KindBool, boolVal: val}
}

func tokensFor(t *testing.T, rec arrow.Record, parentID uint64, key string) []string {
	t.Helper()
	rows, _, err := decodeRows(rec)
	require.NoError(t, err)
	for _, r := range rows {
		if r.parentID == parentID && r.key == key {
			return strings.Split(r.strVal, ";")
		}
	}
	return nil
}

func TestCondenseAllKeysNoSourceOrExclude(t *testing.T) {
	cfg := Config{DestinationKey: "condensed", Delimiter: ";"}
	rec := buildLogAttrs(t, []row{
		strRow(1, "attr1", "value1"),
		intRow(1, "attr2", 42),
		boolRow(1, "attr3", true),
	})

	out, changed, dropped, err := condenseRecord(cfg, memory.NewGoAllocator(), rec)
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, 0, dropped)
	assert.Equal(t, int64(1), out.NumRows())

	got := tokensFor(t, out, 1, "condensed")
	assert.ElementsMatch(t, []string{"attr1=value1", "attr2=42", "attr3=true"}, got)
}

func TestCondenseWithSourceKeysPreservesRest(t *testing.T) {
	cfg := Config{DestinationKey: "condensed", Delimiter: ";", SourceKeys: []string{"attr1", "attr2"}}
	rec := buildLogAttrs(t, []row{
		strRow(1, "attr1", "v1"),
		intRow(1, "attr2", 42),
		boolRow(1, "attr3", true),
	})

	out, changed, _, err := condenseRecord(cfg, memory.NewGoAllocator(), rec)
	require.NoError(t, err)
	require.True(t, changed)

	rows, _, err := decodeRows(out)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var sawCondensed, sawPreserved bool
	for _, r := range rows {
		switch r.key {
		case "condensed":
			sawCondensed = true
			assert.ElementsMatch(t, []string{"attr1=v1", "attr2=42"}, strings.Split(r.strVal, ";"))
		case "attr3":
			sawPreserved = true
			assert.True(t, r.boolVal)
		}
	}
	assert.True(t, sawCondensed)
	assert.True(t, sawPreserved)
}

func TestCondenseDropsStaleDestinationKeyRow(t *testing.T) {
	cfg := Config{DestinationKey: "condensed", Delimiter: ";"}
	rec := buildLogAttrs(t, []row{
		strRow(1, "condensed", "stale"),
		strRow(1, "attr1", "v1"),
	})

	out, changed, dropped, err := condenseRecord(cfg, memory.NewGoAllocator(), rec)
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, 1, dropped)

	rows, _, err := decodeRows(out)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "condensed", rows[0].key)
	assert.Equal(t, "attr1=v1", rows[0].strVal)
}

func TestCondenseFastPathReturnsInputUnchanged(t *testing.T) {
	cfg := Config{DestinationKey: "condensed", Delimiter: ";", ExcludeKeys: []string{"attr1"}}
	rec := buildLogAttrs(t, []row{strRow(1, "attr1", "v1")})

	out, changed, dropped, err := condenseRecord(cfg, memory.NewGoAllocator(), rec)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 0, dropped)
	assert.Same(t, rec, out)
}

func TestCondenseRoundTripsQuasiDeltaEncoding(t *testing.T) {
	rows := []row{
		strRow(5, "level", "info"),
		strRow(5, "attr1", "v1"),
		strRow(6, "level", "info"),
	}
	attrRows := make([]transport.AttributeRow, len(rows))
	for i, r := range rows {
		attrRows[i] = transport.AttributeRow{Type: uint8(r.kind), Key: r.key, Value: stringifyValue(r), ParentID: r.parentID}
	}
	perm := transport.SortAttributeRows(attrRows)
	sortedRows := make([]row, len(rows))
	sortedAttr := make([]transport.AttributeRow, len(rows))
	for i, idx := range perm {
		sortedRows[i] = rows[idx]
		sortedAttr[i] = attrRows[idx]
	}
	encoded := transport.QuasiDeltaEncode(sortedAttr)
	rec, err := buildRecord(memory.NewGoAllocator(), sortedRows, encoded, transport.EncodingQuasiDelta)
	require.NoError(t, err)

	cfg := Config{DestinationKey: "condensed", Delimiter: ";", SourceKeys: []string{"attr1"}}
	out, changed, _, err := condenseRecord(cfg, memory.NewGoAllocator(), rec)
	require.NoError(t, err)
	require.True(t, changed)

	decodedOut, enc, err := decodeRows(out)
	require.NoError(t, err)
	assert.Equal(t, transport.EncodingQuasiDelta, enc)

	byParent := map[uint64][]string{}
	for _, r := range decodedOut {
		byParent[r.parentID] = append(byParent[r.parentID], r.key)
	}
	assert.Contains(t, byParent[5], "condensed")
	assert.Contains(t, byParent[5], "level")
	assert.Contains(t, byParent[6], "level")
}

func TestProcessorPassesThroughNonArrowPayload(t *testing.T) {
	cfg := Config{DestinationKey: "condensed", Delimiter: ";"}
	p, err := New(cfg, nil)
	require.NoError(t, err)

	out := make(chan node.Message, 1)
	effects := node.NewEffectHandler(nil, map[string]chan node.Message{outPort: out})
	msg := node.DataMessage(node.Payload{Signal: node.SignalLogs, Bytes: []byte("not arrow")}, nil)

	require.NoError(t, p.Process(context.Background(), msg, effects))
	require.Len(t, out, 1)
	got := <-out
	assert.Equal(t, []byte("not arrow"), got.PData.Bytes)
}

func TestProcessorReportsDropsViaCallback(t *testing.T) {
	cfg := Config{DestinationKey: "condensed", Delimiter: ";"}
	p, err := New(cfg, nil)
	require.NoError(t, err)

	var drops int
	p.OnDrops = func(n int) { drops += n }

	rec := buildLogAttrs(t, []row{
		strRow(1, "condensed", "stale"),
		strRow(1, "attr1", "v1"),
	})
	out := make(chan node.Message, 1)
	effects := node.NewEffectHandler(nil, map[string]chan node.Message{outPort: out})
	msg := node.DataMessage(node.Payload{Signal: node.SignalLogs, Arrow: &node.ArrowBatchGroup{Tables: map[string]any{logAttrsTable: rec}}}, nil)

	require.NoError(t, p.Process(context.Background(), msg, effects))
	assert.Equal(t, 1, drops)
	require.Len(t, out, 1)
}
