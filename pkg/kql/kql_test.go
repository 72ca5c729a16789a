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

package kql

import (
	"testing"

	"github.com/open-telemetry/otap-dataflow-core/pkg/expr"
	"github.com/open-telemetry/otap-dataflow-core/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runPipeline(t *testing.T, p *expr.Pipeline, rec *expr.MapRecord) bool {
	t.Helper()
	ctx := expr.NewEvalContext(p, rec, nil)
	for _, de := range p.Exprs {
		drop, err := de.Apply(ctx)
		require.NoError(t, err)
		if drop {
			return true
		}
	}
	return false
}

func TestWhereExtendProjectKeep(t *testing.T) {
	p, err := Compile("source | where true | extend a = 1 | project-keep a", nil, "")
	require.NoError(t, err)

	rec := expr.NewMapRecord(map[string]value.Value{
		"a": value.Int64(0),
		"b": value.String("x"),
	})
	dropped := runPipeline(t, p, rec)
	require.False(t, dropped)

	root, ok := rec.Get(nil)
	require.True(t, ok)
	m, ok := value.AsMutableMap(root)
	require.True(t, ok)
	assert.Equal(t, 1, len(m))
	assert.Equal(t, int64(1), m["a"].AsInt64())
}

func TestWhereFalseDrops(t *testing.T) {
	p, err := Compile("source | where false", nil, "")
	require.NoError(t, err)

	rec := expr.NewMapRecord(map[string]value.Value{"a": value.Int64(1)})
	dropped := runPipeline(t, p, rec)
	assert.True(t, dropped)
}

func TestWhereComparisonAgainstField(t *testing.T) {
	p, err := Compile(`source | where a > 5`, nil, "")
	require.NoError(t, err)

	low := expr.NewMapRecord(map[string]value.Value{"a": value.Int64(3)})
	assert.True(t, runPipeline(t, p, low))

	high := expr.NewMapRecord(map[string]value.Value{"a": value.Int64(9)})
	assert.False(t, runPipeline(t, p, high))
}

func TestProjectAwayRemovesKey(t *testing.T) {
	p, err := Compile("source | project-away b", nil, "")
	require.NoError(t, err)

	rec := expr.NewMapRecord(map[string]value.Value{"a": value.Int64(1), "b": value.String("x")})
	require.False(t, runPipeline(t, p, rec))

	root, _ := rec.Get(nil)
	m, _ := value.AsMutableMap(root)
	assert.Equal(t, 1, len(m))
	_, hasB := m["b"]
	assert.False(t, hasB)
}

func TestDefaultSourceMapKeyResolvesBareIdentifier(t *testing.T) {
	p, err := Compile("source | where k2 == \"v\"", nil, "attributes")
	require.NoError(t, err)

	rec := expr.NewMapRecord(map[string]value.Value{
		"attributes": value.NewMap(map[string]value.Value{"k2": value.String("v")}),
	})
	assert.False(t, runPipeline(t, p, rec))

	rec2 := expr.NewMapRecord(map[string]value.Value{
		"attributes": value.NewMap(map[string]value.Value{"k2": value.String("other")}),
	})
	assert.True(t, runPipeline(t, p, rec2))
}

func TestFunctionCallsLowerCorrectly(t *testing.T) {
	p, err := Compile(`source | extend n = length(s) | project-keep n`, nil, "")
	require.NoError(t, err)

	rec := expr.NewMapRecord(map[string]value.Value{"s": value.String("hello")})
	require.False(t, runPipeline(t, p, rec))

	root, _ := rec.Get(nil)
	m, _ := value.AsMutableMap(root)
	assert.Equal(t, int64(5), m["n"].AsInt64())
}

func TestConditionalFunction(t *testing.T) {
	p, err := Compile(`source | extend x = iff(a > 0, "pos", "nonpos")`, nil, "")
	require.NoError(t, err)

	rec := expr.NewMapRecord(map[string]value.Value{"a": value.Int64(5)})
	require.False(t, runPipeline(t, p, rec))
	root, _ := rec.Get(nil)
	m, _ := value.AsMutableMap(root)
	assert.Equal(t, "pos", m["x"].AsString())
}
