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
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/open-telemetry/otap-dataflow-core/pkg/arrowbuilder"
	"github.com/open-telemetry/otap-dataflow-core/pkg/config"
	"github.com/open-telemetry/otap-dataflow-core/pkg/transport"
)

// dictConfig governs how aggressively key/str columns dictionary-encode;
// shared across every buildRecord call so a later reconfigure-driven
// tightening (e.g. config.WithUint8MaxDictIndex for low-cardinality
// deployments) only needs to replace this one value.
var dictConfig = config.DefaultConfig()

// row is one decoded LogAttrs entry with parent_id already widened to
// uint64 and, if the batch arrived quasi-delta encoded, already inverted
// back to an absolute value.
type row struct {
	parentID uint64
	key      string
	kind     ValueKind
	strVal   string
	intVal   int64
	dblVal   float64
	boolVal  bool
}

func stringifyValue(r row) string {
	switch r.kind {
	case KindInt:
		return strconv.FormatInt(r.intVal, 10)
	case KindDouble:
		return strconv.FormatFloat(r.dblVal, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(r.boolVal)
	default:
		return r.strVal
	}
}

// decodeRows reads every LogAttrs row out of rec, inverting the quasi-delta
// parent_id encoding (pkg/transport) if the field metadata says it was
// applied, so the classification step always sees absolute parent ids.
func decodeRows(rec arrow.Record) ([]row, transport.ColumnEncoding, error) {
	n := int(rec.NumRows())

	rawParentIDs, err := extractUintColumn(rec, colParentID)
	if err != nil {
		return nil, transport.EncodingPlain, err
	}
	keys, err := extractStringColumn(rec, colKey)
	if err != nil {
		return nil, transport.EncodingPlain, err
	}
	kinds, err := extractUint8Column(rec, colType)
	if err != nil {
		return nil, transport.EncodingPlain, err
	}
	strs, err := extractOptionalStringColumn(rec, colStr, n)
	if err != nil {
		return nil, transport.EncodingPlain, err
	}
	ints, err := extractOptionalIntColumn(rec, colInt, n)
	if err != nil {
		return nil, transport.EncodingPlain, err
	}
	dbls, err := extractOptionalDoubleColumn(rec, colDouble, n)
	if err != nil {
		return nil, transport.EncodingPlain, err
	}
	bools, err := extractOptionalBoolColumn(rec, colBool, n)
	if err != nil {
		return nil, transport.EncodingPlain, err
	}

	rows := make([]row, n)
	for i := 0; i < n; i++ {
		rows[i] = row{
			parentID: rawParentIDs[i],
			key:      keys[i],
			kind:     ValueKind(kinds[i]),
			strVal:   strs.values[i],
			intVal:   ints.values[i],
			dblVal:   dbls.values[i],
			boolVal:  bools.values[i],
		}
	}

	parentIdx, err := requireColumn(rec, colParentID)
	if err != nil {
		return nil, transport.EncodingPlain, err
	}
	enc := transport.ColumnEncodingOf(rec.Schema().Fields()[parentIdx])
	if enc == transport.EncodingQuasiDelta {
		attrRows := make([]transport.AttributeRow, n)
		for i, r := range rows {
			attrRows[i] = transport.AttributeRow{Type: uint8(r.kind), Key: r.key, Value: stringifyValue(r), ParentID: r.parentID}
		}
		decoded := transport.QuasiDeltaDecode(attrRows, rawParentIDs)
		for i := range rows {
			rows[i].parentID = decoded[i]
		}
	}
	return rows, enc, nil
}

// buildRecord renders rows (parentIDs already encoded per enc, aligned
// positionally with rows) back into an Arrow record via the adaptive
// dictionary builders, tagging the parent_id field with enc so a
// downstream reader knows how to invert it.
func buildRecord(mem memory.Allocator, rows []row, parentIDs []uint64, enc transport.ColumnEncoding) (arrow.Record, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	parentBuilder := arrowbuilder.NewUint32Builder(mem)
	keyBuilder := arrowbuilder.NewStringBuilder(mem, arrowbuilder.ArrayOptions{Dictionary: dictConfig.DictionaryOptions()})
	typeBuilder := arrowbuilder.NewUint8Builder(mem)
	strBuilder := arrowbuilder.NewStringBuilder(mem, arrowbuilder.ArrayOptions{Dictionary: dictConfig.DictionaryOptions(), Optional: true})
	intBuilder := arrowbuilder.NewInt64Builder(mem)
	dblBuilder := arrowbuilder.NewFloat64Builder(mem)
	boolBuilder := arrowbuilder.NewBoolBuilder(mem)

	for i, r := range rows {
		parentBuilder.Append(uint32(parentIDs[i]))
		keyBuilder.Append(r.key)
		typeBuilder.Append(uint8(r.kind))
		switch r.kind {
		case KindStr:
			strBuilder.Append(r.strVal)
			intBuilder.AppendNull()
			dblBuilder.AppendNull()
			boolBuilder.AppendNull()
		case KindInt:
			strBuilder.AppendNull()
			intBuilder.Append(r.intVal)
			dblBuilder.AppendNull()
			boolBuilder.AppendNull()
		case KindDouble:
			strBuilder.AppendNull()
			intBuilder.AppendNull()
			dblBuilder.Append(r.dblVal)
			boolBuilder.AppendNull()
		case KindBool:
			strBuilder.AppendNull()
			intBuilder.AppendNull()
			dblBuilder.AppendNull()
			boolBuilder.Append(r.boolVal)
		}
	}

	parentArr := parentBuilder.Finish()
	keyArr, _, err := keyBuilder.Finish()
	if err != nil {
		return nil, err
	}
	typeArr := typeBuilder.Finish()
	strArr, _, err := strBuilder.Finish()
	if err != nil {
		return nil, err
	}
	intArr := intBuilder.Finish()
	dblArr := dblBuilder.Finish()
	boolArr := boolBuilder.Finish()

	parentField := transport.WithColumnEncoding(arrow.Field{Name: colParentID, Type: parentArr.DataType()}, enc)
	fields := []arrow.Field{
		parentField,
		{Name: colKey, Type: keyArr.DataType()},
		{Name: colType, Type: typeArr.DataType()},
		{Name: colStr, Type: strArr.DataType(), Nullable: true},
		{Name: colInt, Type: intArr.DataType(), Nullable: true},
		{Name: colDouble, Type: dblArr.DataType(), Nullable: true},
		{Name: colBool, Type: boolArr.DataType(), Nullable: true},
	}
	schema := arrow.NewSchema(fields, nil)
	cols := []arrow.Array{parentArr, keyArr, typeArr, strArr, intArr, dblArr, boolArr}
	return array.NewRecord(schema, cols, int64(len(rows))), nil
}

// condenseRecord applies cfg's classify/group/rebuild algorithm to rec,
// returning the input unchanged (changed=false) when nothing was
// condensed or dropped — the fast path spec.md requires.
func condenseRecord(cfg Config, mem memory.Allocator, rec arrow.Record) (out arrow.Record, changed bool, droppedCount int, err error) {
	rows, parentEncoding, err := decodeRows(rec)
	if err != nil {
		return nil, false, 0, err
	}

	var groupOrder []uint64
	groupSeen := map[uint64]bool{}
	tokens := map[uint64][]string{}
	var preserved []row
	var condensedCount int

	for _, r := range rows {
		if r.key == cfg.DestinationKey {
			droppedCount++
			continue
		}
		if cfg.selectable(r.key) {
			condensedCount++
			if !groupSeen[r.parentID] {
				groupSeen[r.parentID] = true
				groupOrder = append(groupOrder, r.parentID)
			}
			tokens[r.parentID] = append(tokens[r.parentID], r.key+"="+stringifyValue(r))
			continue
		}
		preserved = append(preserved, r)
	}

	if condensedCount == 0 && droppedCount == 0 {
		return rec, false, 0, nil
	}

	combined := make([]row, 0, len(groupOrder)+len(preserved))
	for _, pid := range groupOrder {
		combined = append(combined, row{
			parentID: pid,
			key:      cfg.DestinationKey,
			kind:     KindStr,
			strVal:   strings.Join(tokens[pid], cfg.Delimiter),
		})
	}
	combined = append(combined, preserved...)

	var rebuilt arrow.Record
	if parentEncoding == transport.EncodingQuasiDelta {
		attrRows := make([]transport.AttributeRow, len(combined))
		for i, r := range combined {
			attrRows[i] = transport.AttributeRow{Type: uint8(r.kind), Key: r.key, Value: stringifyValue(r), ParentID: r.parentID}
		}
		perm := transport.SortAttributeRows(attrRows)
		sortedRows := make([]row, len(combined))
		sortedAttr := make([]transport.AttributeRow, len(combined))
		for i, idx := range perm {
			sortedRows[i] = combined[idx]
			sortedAttr[i] = attrRows[idx]
		}
		encoded := transport.QuasiDeltaEncode(sortedAttr)
		rebuilt, err = buildRecord(mem, sortedRows, encoded, transport.EncodingQuasiDelta)
	} else {
		absolute := make([]uint64, len(combined))
		for i, r := range combined {
			absolute[i] = r.parentID
		}
		rebuilt, err = buildRecord(mem, combined, absolute, transport.EncodingPlain)
	}
	if err != nil {
		return nil, false, 0, err
	}
	return rebuilt, true, droppedCount, nil
}
