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

// Package arrowbuilder implements the adaptive Arrow column builders the
// OTel-Arrow encoding relies on: a string/binary column starts out
// dictionary-encoded with the narrowest index width (uint8) and transparently
// upgrades to a wider index width, then to a plain (non-dictionary) array,
// as the number of distinct values grows past what the current index width
// can address. This generalizes the teacher's
// pkg/otel/common/arrow/dictionary.go wrapper (which only dispatches
// Append calls across an already-chosen builder type) into the full
// upgrade state machine.
package arrowbuilder

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/open-telemetry/otap-dataflow-core/pkg/werror"
)

// DictionaryOptions configures the maximum cardinality before a column
// gives up on dictionary encoding entirely. A non-nil DictionaryOptions
// always starts at the uint8 index width; callers that never want
// dictionary encoding pass nil DictionaryOptions.
//
//   - MaxCardinality: once the number of distinct values observed exceeds
//     this, the builder upgrades to the next index width, or to Native once
//     uint16 is exhausted.
type DictionaryOptions struct {
	MaxCardinality uint64
}

const (
	maxUint8Cardinality  = 1<<8 - 1
	maxUint16Cardinality = 1<<16 - 1
)

func (o *DictionaryOptions) maxFor(width indexWidth) uint64 {
	max := uint64(maxUint16Cardinality)
	switch width {
	case indexWidthU8:
		max = maxUint8Cardinality
	case indexWidthU16:
		max = maxUint16Cardinality
	}
	if o != nil && o.MaxCardinality > 0 && o.MaxCardinality < max {
		return o.MaxCardinality
	}
	return max
}

type indexWidth int

const (
	indexWidthU8 indexWidth = iota
	indexWidthU16
	indexWidthNative
)

// ArrayOptions mirrors the original_source AdaptiveArrayBuilder's
// ArrayOptions: Optional means the builder starts Uninitialized and is
// allowed to produce no column at all if every appended value equals the
// zero value and DefaultValuesOptional is set.
type ArrayOptions struct {
	Dictionary             *DictionaryOptions
	Optional               bool
	DefaultValuesOptional  bool
}

// StringBuilder is an adaptive dictionary-encoded string column builder. It
// starts in one of Uninitialized / DictionaryU8 / DictionaryU16 / Native and
// only ever moves forward through that sequence, matching the teacher's
// "never downgrade" dictionary-index policy.
type StringBuilder struct {
	mem     memory.Allocator
	opts    ArrayOptions
	width   indexWidth
	started bool

	distinct map[string]struct{}
	values   []string // retained so an upgrade can replay every prior append
	nulls    []bool
	rows     int
}

func NewStringBuilder(mem memory.Allocator, opts ArrayOptions) *StringBuilder {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	width := indexWidthNative
	if opts.Dictionary != nil {
		width = indexWidthU8
	}
	return &StringBuilder{
		mem:      mem,
		opts:     opts,
		width:    width,
		distinct: map[string]struct{}{},
	}
}

// Append adds a value, lazily initializing the builder on first use and
// upgrading the index width in place if the new value pushes distinct
// cardinality past the current width's limit.
func (b *StringBuilder) Append(s string) {
	b.started = true
	b.values = append(b.values, s)
	b.nulls = append(b.nulls, false)
	b.rows++
	b.track(s)
}

func (b *StringBuilder) AppendNull() {
	b.started = true
	b.values = append(b.values, "")
	b.nulls = append(b.nulls, true)
	b.rows++
}

func (b *StringBuilder) track(s string) {
	if b.width == indexWidthNative {
		return
	}
	if _, ok := b.distinct[s]; ok {
		return
	}
	b.distinct[s] = struct{}{}
	if uint64(len(b.distinct)) > b.opts.Dictionary.maxFor(b.width) {
		b.upgrade()
	}
}

// upgrade moves the builder to the next wider representation. Because
// values/nulls are retained verbatim, "upgrading" is just reinterpreting
// the same recorded rows under a wider index width or as a plain array —
// there is no data loss and no need to touch an already-built arrow.Array.
func (b *StringBuilder) upgrade() {
	switch b.width {
	case indexWidthU8:
		b.width = indexWidthU16
	case indexWidthU16:
		b.width = indexWidthNative
	}
}

// IsProduced reports whether Finish will emit a column at all: an Optional
// builder that was never appended to, or whose only appends were nulls (or
// nulls and the default "" value, when DefaultValuesOptional is set),
// produces nothing, mirroring the teacher's "don't materialize an all-
// default optional column" behavior.
func (b *StringBuilder) IsProduced() bool {
	if !b.opts.Optional {
		return true
	}
	for i, s := range b.values {
		if b.nulls[i] {
			continue
		}
		if s != "" || !b.opts.DefaultValuesOptional {
			return true
		}
	}
	return false
}

// Finish builds the final arrow.Array for this column: a
// dictionary<uint8|uint16, utf8> while the distinct-value count stayed
// within width, or a plain utf8 array once upgraded to Native.
func (b *StringBuilder) Finish() (arrow.Array, ColumnEncoding, error) {
	if b.width == indexWidthNative {
		sb := array.NewStringBuilder(b.mem)
		defer sb.Release()
		for i, s := range b.values {
			if b.nulls[i] {
				sb.AppendNull()
				continue
			}
			sb.Append(s)
		}
		return sb.NewStringArray(), EncodingPlain, nil
	}

	indexType := arrow.PrimitiveTypes.Uint8
	if b.width == indexWidthU16 {
		indexType = arrow.PrimitiveTypes.Uint16
	}
	dt := &arrow.DictionaryType{IndexType: indexType, ValueType: arrow.BinaryTypes.String}
	db := array.NewDictionaryBuilder(b.mem, dt)
	defer db.Release()
	sdb, ok := db.(*array.BinaryDictionaryBuilder)
	if !ok {
		return nil, EncodingPlain, werror.Wrap(&werror.UnsupportedDictionaryKeyTypeError{KeyType: indexType.String()})
	}
	for i, s := range b.values {
		if b.nulls[i] {
			sdb.AppendNull()
			continue
		}
		if err := sdb.AppendString(s); err != nil {
			return nil, EncodingPlain, werror.Wrap(err)
		}
	}
	return sdb.NewDictionaryArray(), EncodingDictionary, nil
}

// ColumnEncoding records which physical shape Finish chose, information the
// transport layer's field-metadata update (pkg/transport) consumes.
type ColumnEncoding int

const (
	EncodingPlain ColumnEncoding = iota
	EncodingDictionary
)

func (c ColumnEncoding) String() string {
	if c == EncodingDictionary {
		return "dictionary"
	}
	return "plain"
}
