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

package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullEquality(t *testing.T) {
	assert.True(t, EqualValues(Null(), Null(), false))
	assert.False(t, EqualValues(Null(), Int64(0), false))
	assert.False(t, EqualValues(String(""), Null(), false))
}

func TestArrayEqualityOrderSensitive(t *testing.T) {
	a := Array([]Value{Int64(1), Int64(2)})
	b := Array([]Value{Int64(2), Int64(1)})
	c := Array([]Value{Int64(1), Int64(2)})
	assert.True(t, EqualValues(a, c, false))
	assert.False(t, EqualValues(a, b, false))
}

func TestMapEqualityKeySetAndCaseSensitiveKeys(t *testing.T) {
	a := NewMap(map[string]Value{"K": Int64(1)})
	b := NewMap(map[string]Value{"k": Int64(1)})
	// documented anomaly: map keys always compare case-sensitively, even
	// when the caller asks for case-insensitive comparison.
	assert.False(t, EqualValues(a, b, true))

	c := NewMap(map[string]Value{"K": Int64(1)})
	assert.True(t, EqualValues(a, c, false))
}

func TestCompareValuesReflexiveAndAntisymmetric(t *testing.T) {
	cases := []struct {
		l, r Value
	}{
		{Int64(3), Int64(7)},
		{Double(1.5), Int64(2)},
		{DateTime(time.Unix(100, 0)), DateTime(time.Unix(50, 0))},
	}
	for _, c := range cases {
		cmp, err := CompareValues(c.l, c.l)
		require.NoError(t, err)
		assert.Equal(t, 0, cmp)

		fwd, err := CompareValues(c.l, c.r)
		require.NoError(t, err)
		rev, err := CompareValues(c.r, c.l)
		require.NoError(t, err)
		assert.Equal(t, -fwd, rev)
	}
}

func TestCompareValuesCoercionWidening(t *testing.T) {
	cmp, err := CompareValues(Int64(2), Double(2.5))
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = CompareValues(String("10"), Int64(9))
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)
}

func TestCompareValuesTypeMismatch(t *testing.T) {
	_, err := CompareValues(String("not-a-number"), Int64(1))
	require.Error(t, err)
}

func TestStringFormOfCompoundValues(t *testing.T) {
	arr := Array([]Value{Int64(1), String("x")})
	assert.Equal(t, `[1,"x"]`, arr.String())

	m := NewMap(map[string]Value{"a": Int64(1)})
	assert.Equal(t, `{"a":1}`, m.String())

	b := Bool(true)
	assert.Equal(t, "true", b.String())
}

func TestRegexComparesAgainstPatternText(t *testing.T) {
	r := MustRegex(`^abc$`)
	assert.True(t, EqualValues(r, String(`^abc$`), false))
}

func TestLength(t *testing.T) {
	assert.Equal(t, Int64(3), Length(String("abc")))
	assert.Equal(t, Int64(2), Length(Array([]Value{Int64(1), Int64(2)})))
	assert.Equal(t, Int64(1), Length(NewMap(map[string]Value{"a": Int64(1)})))
	assert.Equal(t, Null(), Length(Int64(5)))
}

func TestConvertToBool(t *testing.T) {
	b, ok := ConvertToBool(String("TRUE"))
	require.True(t, ok)
	assert.True(t, b)

	_, ok = ConvertToBool(String("nope"))
	assert.False(t, ok)

	b, ok = ConvertToBool(Int64(0))
	require.True(t, ok)
	assert.False(t, b)
}

func TestDateTimeStringForm(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	dt := DateTime(ts)
	assert.Equal(t, "2024-01-02T03:04:05Z", dt.String())
}
