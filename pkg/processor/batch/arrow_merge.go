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

package batch

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/open-telemetry/otap-dataflow-core/pkg/arrowbuilder"
	"github.com/open-telemetry/otap-dataflow-core/pkg/node"
	"github.com/open-telemetry/otap-dataflow-core/pkg/otel/constants"
	"github.com/open-telemetry/otap-dataflow-core/pkg/reindex"
	"github.com/open-telemetry/otap-dataflow-core/pkg/transport"
	"github.com/open-telemetry/otap-dataflow-core/pkg/werror"
)

// logsTable and idColumn reuse the teacher's own OTel-Arrow column-naming
// constants; log_attrs/parent_id have no equivalent there (the teacher's
// schema keeps attributes in a shared attrs_id-linked table, not a
// per-signal LogAttrs child table), so those two stay local.
const (
	logsTable      = constants.Logs
	logAttrsTable  = "log_attrs"
	idColumn       = constants.ID
	parentIDColumn = "parent_id"
)

// mergeArrowFragments combines several pending OTel-Arrow batch-group
// fragments into one, first passing the Logs table's id column and the
// LogAttrs table's parent_id column through pkg/reindex so the combined
// group has one contiguous, disjoint id range per fragment instead of
// several colliding ones, then concatenating every other column as-is.
func mergeArrowFragments(mem memory.Allocator, fragments []*node.ArrowBatchGroup) (*node.ArrowBatchGroup, error) {
	if len(fragments) == 0 {
		return nil, nil
	}
	if len(fragments) == 1 {
		return fragments[0], nil
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	groups := make([]reindex.BatchGroup, len(fragments))
	logsRecords := make([]arrow.Record, len(fragments))
	attrRecords := make([]arrow.Record, len(fragments))

	for i, frag := range fragments {
		logsRec, ok := frag.Tables[logsTable].(arrow.Record)
		if !ok {
			return nil, werror.Wrap(&werror.ColumnNotFoundError{Column: logsTable})
		}
		logsRecords[i] = logsRec

		ids, err := extractUint64Column(logsRec, idColumn)
		if err != nil {
			return nil, err
		}
		group := reindex.BatchGroup{RootIDs: ids, Children: map[string][]uint64{}}

		if attrRec, ok := frag.Tables[logAttrsTable].(arrow.Record); ok {
			attrRecords[i] = attrRec
			parentIDs, err := extractUint64Column(attrRec, parentIDColumn)
			if err != nil {
				return nil, err
			}
			group.Children[logAttrsTable] = parentIDs
		}
		groups[i] = group
	}

	if err := reindex.Reindex("logs", groups, []string{logAttrsTable}); err != nil {
		return nil, err
	}

	mergedLogs := make([]arrow.Record, len(fragments))
	mergedAttrs := make([]arrow.Record, 0, len(fragments))
	for i := range fragments {
		rec, err := replaceUint32Column(mem, logsRecords[i], idColumn, groups[i].RootIDs, transport.EncodingPlain)
		if err != nil {
			return nil, err
		}
		mergedLogs[i] = rec

		if attrRecords[i] != nil {
			attrRec, err := replaceUint32Column(mem, attrRecords[i], parentIDColumn, groups[i].Children[logAttrsTable], transport.EncodingPlain)
			if err != nil {
				return nil, err
			}
			mergedAttrs = append(mergedAttrs, attrRec)
		}
	}

	logsOut, err := concatRecords(mem, mergedLogs)
	if err != nil {
		return nil, err
	}
	merged := &node.ArrowBatchGroup{
		BatchID: fragments[len(fragments)-1].BatchID,
		Tables:  map[string]any{logsTable: logsOut},
	}
	if len(mergedAttrs) > 0 {
		attrsOut, err := concatRecords(mem, mergedAttrs)
		if err != nil {
			return nil, err
		}
		merged.Tables[logAttrsTable] = attrsOut
	}
	return merged, nil
}

func columnIndex(rec arrow.Record, name string) (int, bool) {
	for i, f := range rec.Schema().Fields() {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}

func extractUint64Column(rec arrow.Record, name string) ([]uint64, error) {
	idx, ok := columnIndex(rec, name)
	if !ok {
		return nil, werror.Wrap(&werror.ColumnNotFoundError{Column: name})
	}
	col, ok := rec.Column(idx).(*array.Uint32)
	if !ok {
		return nil, werror.Wrap(&werror.ColumnDataTypeMismatchError{Column: name, Expected: "uint32", Actual: rec.Column(idx).DataType().Name()})
	}
	out := make([]uint64, col.Len())
	for i := 0; i < col.Len(); i++ {
		out[i] = uint64(col.Value(i))
	}
	return out, nil
}

// replaceUint32Column rebuilds rec with column name replaced by newValues
// (rendered through an arrowbuilder.Uint32Builder) and its field metadata
// updated to record enc.
func replaceUint32Column(mem memory.Allocator, rec arrow.Record, name string, newValues []uint64, enc transport.ColumnEncoding) (arrow.Record, error) {
	idx, ok := columnIndex(rec, name)
	if !ok {
		return nil, werror.Wrap(&werror.ColumnNotFoundError{Column: name})
	}

	b := arrowbuilder.NewUint32Builder(mem)
	for _, v := range newValues {
		b.Append(uint32(v))
	}
	newCol := b.Finish()

	fields := rec.Schema().Fields()
	newFields := make([]arrow.Field, len(fields))
	copy(newFields, fields)
	newFields[idx] = transport.WithColumnEncoding(newFields[idx], enc)
	newSchema := arrow.NewSchema(newFields, rec.Schema().Metadata())

	cols := make([]arrow.Array, rec.NumCols())
	for i := 0; i < int(rec.NumCols()); i++ {
		if i == idx {
			cols[i] = newCol
		} else {
			cols[i] = rec.Column(i)
		}
	}
	return array.NewRecord(newSchema, cols, rec.NumRows()), nil
}

// concatRecords stitches same-schema records into one, column by column.
func concatRecords(mem memory.Allocator, records []arrow.Record) (arrow.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if len(records) == 1 {
		return records[0], nil
	}

	schema := records[0].Schema()
	numCols := int(records[0].NumCols())
	cols := make([]arrow.Array, numCols)
	var totalRows int64
	for _, r := range records {
		totalRows += r.NumRows()
	}

	for c := 0; c < numCols; c++ {
		parts := make([]arrow.Array, len(records))
		for i, r := range records {
			parts[i] = r.Column(c)
		}
		merged, err := array.Concatenate(parts, mem)
		if err != nil {
			return nil, werror.Wrap(err)
		}
		cols[c] = merged
	}
	return array.NewRecord(schema, cols, totalRows), nil
}
