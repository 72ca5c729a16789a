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

package expr

import (
	"testing"

	"github.com/open-telemetry/otap-dataflow-core/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticResolutionImpliesEvaluationAgreement(t *testing.T) {
	p := NewPipeline(nil, nil)
	e := &LogicalExpr{Op: OpAnd,
		Left:  &StaticExpr{Val: value.Bool(true)},
		Right: &StaticExpr{Val: value.Bool(true)},
	}
	r, ok := e.TryResolveStatic(p)
	require.True(t, ok)

	records := []Record{
		NewMapRecord(map[string]value.Value{}),
		NewMapRecord(map[string]value.Value{"a": value.Int64(999)}),
	}
	for _, rec := range records {
		ctx := NewEvalContext(p, rec, nil)
		v, err := e.Evaluate(ctx)
		require.NoError(t, err)
		assert.True(t, value.EqualValues(v, r.Value, false))
	}
}

func TestCoalesceResolvesToFirstNonNullType(t *testing.T) {
	p := NewPipeline(nil, nil)
	c := &CoalesceExpr{List: []Expression{
		&StaticExpr{Val: value.Null()},
		&StaticExpr{Val: value.Int64(5)},
		&StaticExpr{Val: value.String("x")},
	}}
	typ, ok := c.TryResolveValueType(p)
	require.True(t, ok)
	assert.Equal(t, value.KindInt64, typ)

	r, ok := c.TryResolveStatic(p)
	require.True(t, ok)
	assert.Equal(t, int64(5), r.Value.AsInt64())
}

func TestCoalesceAllNullResolvesToNull(t *testing.T) {
	p := NewPipeline(nil, nil)
	c := &CoalesceExpr{List: []Expression{
		&StaticExpr{Val: value.Null()},
		&StaticExpr{Val: value.Null()},
	}}
	r, ok := c.TryResolveStatic(p)
	require.True(t, ok)
	assert.True(t, r.Value.IsNull())
}

func TestNegateTypeMismatch(t *testing.T) {
	p := NewPipeline(nil, nil)
	n := &NegateExpr{Inner: &StaticExpr{Val: value.String("x")}}
	ctx := NewEvalContext(p, NewMapRecord(nil), nil)
	_, err := n.Evaluate(ctx)
	require.Error(t, err)
}

func TestConditionalStaticTypeWithDynamicCond(t *testing.T) {
	p := NewPipeline(nil, nil)
	cond := &SourceExpr{Accessor: NewAccessor("flag")}
	c := &ConditionalExpr{
		Cond:  cond,
		True:  &StaticExpr{Val: value.Int64(1)},
		False: &StaticExpr{Val: value.Int64(2)},
	}
	typ, ok := c.TryResolveValueType(p)
	require.True(t, ok)
	assert.Equal(t, value.KindInt64, typ)
}

func TestSourceWithNoSelectorsResolvesMapType(t *testing.T) {
	p := NewPipeline(nil, nil)
	s := &SourceExpr{}
	typ, ok := s.TryResolveValueType(p)
	require.True(t, ok)
	assert.Equal(t, value.KindMap, typ)
}

func TestSetTransformAndRetainKeys(t *testing.T) {
	p := NewPipeline(nil, nil)
	rec := NewMapRecord(map[string]value.Value{"a": value.Int64(0), "b": value.String("x")})
	ctx := NewEvalContext(p, rec, nil)

	set := &SetTransform{Destination: NewAccessor("a"), Value: &StaticExpr{Val: value.Int64(1)}}
	drop, err := set.Apply(ctx)
	require.NoError(t, err)
	assert.False(t, drop)

	keep := &RemoveMapKeysTransform{Keys: []KeySelector{{Pattern: "a"}}, Retain: true}
	_, err = keep.Apply(ctx)
	require.NoError(t, err)

	v, ok := rec.Get(nil)
	require.True(t, ok)
	m, ok := value.AsMutableMap(v)
	require.True(t, ok)
	assert.Equal(t, 1, len(m))
	assert.Equal(t, int64(1), m["a"].AsInt64())
}

func TestKeySelectorGlob(t *testing.T) {
	s := ParseKeySelector("http.*")
	assert.True(t, s.IsGlob)
	assert.True(t, s.Matches("http.method"))
	assert.False(t, s.Matches("db.name"))
}
