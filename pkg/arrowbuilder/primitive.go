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

package arrowbuilder

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Uint16Builder is a plain (non-adaptive) builder for id/parent_id columns
// that the transport layer has not (yet) delta-encoded.
type Uint16Builder struct{ b *array.Uint16Builder }

func NewUint16Builder(mem memory.Allocator) *Uint16Builder {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Uint16Builder{b: array.NewUint16Builder(mem)}
}
func (b *Uint16Builder) Append(v uint16) { b.b.Append(v) }
func (b *Uint16Builder) AppendNull()     { b.b.AppendNull() }
func (b *Uint16Builder) Finish() arrow.Array {
	defer b.b.Release()
	return b.b.NewUint16Array()
}

// Uint32Builder is Uint16Builder's wider sibling; it backs the uint32
// id/parent_id columns written by the batch processor's Arrow merge and by
// the condense processor.
type Uint32Builder struct{ b *array.Uint32Builder }

func NewUint32Builder(mem memory.Allocator) *Uint32Builder {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Uint32Builder{b: array.NewUint32Builder(mem)}
}
func (b *Uint32Builder) Append(v uint32) { b.b.Append(v) }
func (b *Uint32Builder) AppendNull()     { b.b.AppendNull() }
func (b *Uint32Builder) Finish() arrow.Array {
	defer b.b.Release()
	return b.b.NewUint32Array()
}

// Int64Builder and Float64Builder back condense's LogAttrs int/double
// value columns.
type Int64Builder struct{ b *array.Int64Builder }

func NewInt64Builder(mem memory.Allocator) *Int64Builder {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Int64Builder{b: array.NewInt64Builder(mem)}
}
func (b *Int64Builder) Append(v int64) { b.b.Append(v) }
func (b *Int64Builder) AppendNull()    { b.b.AppendNull() }
func (b *Int64Builder) Finish() arrow.Array {
	defer b.b.Release()
	return b.b.NewInt64Array()
}

type Float64Builder struct{ b *array.Float64Builder }

func NewFloat64Builder(mem memory.Allocator) *Float64Builder {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Float64Builder{b: array.NewFloat64Builder(mem)}
}
func (b *Float64Builder) Append(v float64) { b.b.Append(v) }
func (b *Float64Builder) AppendNull()      { b.b.AppendNull() }
func (b *Float64Builder) Finish() arrow.Array {
	defer b.b.Release()
	return b.b.NewFloat64Array()
}

type BoolBuilder struct{ b *array.BooleanBuilder }

func NewBoolBuilder(mem memory.Allocator) *BoolBuilder {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &BoolBuilder{b: array.NewBooleanBuilder(mem)}
}
func (b *BoolBuilder) Append(v bool) { b.b.Append(v) }
func (b *BoolBuilder) AppendNull()   { b.b.AppendNull() }
func (b *BoolBuilder) Finish() arrow.Array {
	defer b.b.Release()
	return b.b.NewBooleanArray()
}

// Uint8Builder backs the u8-index form of a dictionary directly when a
// caller needs raw index bytes rather than StringBuilder's higher-level
// adaptive behavior (e.g. the condense processor's LogAttrs type column).
type Uint8Builder struct{ b *array.Uint8Builder }

func NewUint8Builder(mem memory.Allocator) *Uint8Builder {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Uint8Builder{b: array.NewUint8Builder(mem)}
}
func (b *Uint8Builder) Append(v uint8) { b.b.Append(v) }
func (b *Uint8Builder) AppendNull()    { b.b.AppendNull() }
func (b *Uint8Builder) Finish() arrow.Array {
	defer b.b.Release()
	return b.b.NewUint8Array()
}
