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

package config

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigMatchesTeacherDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, uint64(math.MaxUint16), cfg.MaxDictIndex)
	assert.False(t, cfg.Stats)
	require.NotNil(t, cfg.Pool)
}

func TestWithNoDictionaryDisablesDictionaryOptions(t *testing.T) {
	cfg := New(WithNoDictionary())
	assert.Nil(t, cfg.DictionaryOptions())
}

func TestWithUint8MaxDictIndexNarrowsCap(t *testing.T) {
	cfg := New(WithUint8MaxDictIndex())
	opts := cfg.DictionaryOptions()
	require.NotNil(t, opts)
	assert.Equal(t, uint64(math.MaxUint8), opts.MaxCardinality)
}

func TestWithStatsEnablesStatsFlag(t *testing.T) {
	cfg := New(WithStats())
	assert.True(t, cfg.Stats)
}

func TestNilConfigDictionaryOptionsIsNil(t *testing.T) {
	var cfg *BuildConfig
	assert.Nil(t, cfg.DictionaryOptions())
}
