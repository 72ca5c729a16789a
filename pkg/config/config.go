/*
 * Copyright The OpenTelemetry Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package config holds the shared build-time knob the adaptive Arrow
// builders consult: how aggressively to dictionary encode. Generalized
// from the teacher's dictionary-index Config (InitIndexSize/LimitIndexSize
// pair), collapsed to a single MaxDictIndex cap since
// pkg/arrowbuilder.DictionaryOptions only ever needs an upper bound — the
// adaptive builders always start at the narrowest width and widen, so a
// separate "initial" width has no effect here. The teacher's Config.Zstd
// flag has no home here: zstd compression is a per-output decision made by
// the debug processor's own Output.Compress field, not a builder-wide one.
package config

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/open-telemetry/otap-dataflow-core/pkg/arrowbuilder"
)

type BuildConfig struct {
	Pool memory.Allocator

	// MaxDictIndex caps how many distinct values a dictionary-encoded
	// column tolerates before arrowbuilder upgrades it to a wider index
	// (or to a plain, non-dictionary array once uint16 is exhausted).
	// Zero disables dictionary encoding entirely.
	MaxDictIndex uint64

	// Stats enables per-flush row-count logging, consulted by the
	// condense processor's Debug-level logging.
	Stats bool
}

type Option func(*BuildConfig)

// DefaultConfig returns the same dictionary-sizing default the teacher
// shipped: a Go allocator, uint16-wide dictionary indexes, stats off.
func DefaultConfig() *BuildConfig {
	return &BuildConfig{
		Pool:         memory.NewGoAllocator(),
		MaxDictIndex: math.MaxUint16,
	}
}

func New(opts ...Option) *BuildConfig {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// DictionaryOptions adapts this config into the arrowbuilder.DictionaryOptions
// value an arrowbuilder.ArrayOptions carries, or nil when dictionary encoding
// is disabled.
func (c *BuildConfig) DictionaryOptions() *arrowbuilder.DictionaryOptions {
	if c == nil || c.MaxDictIndex == 0 {
		return nil
	}
	return &arrowbuilder.DictionaryOptions{MaxCardinality: c.MaxDictIndex}
}

// WithAllocator sets the allocator used by every builder this config feeds.
func WithAllocator(allocator memory.Allocator) Option {
	return func(cfg *BuildConfig) {
		cfg.Pool = allocator
	}
}

// WithNoDictionary disables dictionary encoding for every column this
// config feeds; builders fall straight to their plain, native array form.
func WithNoDictionary() Option {
	return func(cfg *BuildConfig) {
		cfg.MaxDictIndex = 0
	}
}

// WithUint8MaxDictIndex caps dictionary-encoded columns to a uint8 index.
func WithUint8MaxDictIndex() Option {
	return func(cfg *BuildConfig) {
		cfg.MaxDictIndex = math.MaxUint8
	}
}

// WithUint16MaxDictIndex caps dictionary-encoded columns to a uint16 index.
func WithUint16MaxDictIndex() Option {
	return func(cfg *BuildConfig) {
		cfg.MaxDictIndex = math.MaxUint16
	}
}

// WithStats turns on Debug-level column/row statistics logging.
func WithStats() Option {
	return func(cfg *BuildConfig) {
		cfg.Stats = true
	}
}
