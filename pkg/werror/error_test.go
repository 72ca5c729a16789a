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

package werror

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWError(t *testing.T) {
	t.Parallel()

	err := Level1a()
	require.True(t, strings.Contains(err.Error(), "Level1a:"))
	require.True(t, strings.Contains(err.Error(), "Level2:"))
	require.True(t, strings.Contains(err.Error(), "{id=1}"))
	require.True(t, strings.HasSuffix(err.Error(), "->test error"))
	require.ErrorIs(t, err, ErrTest)

	err = Level1b()
	require.True(t, strings.Contains(err.Error(), "{id=2}"))
}

var ErrTest = errors.New("test error")

func Level1a() error {
	return Wrap(Level2(1))
}

func Level1b() error {
	return Wrap(Level2(2))
}

func Level2(id int) error {
	return WrapWithContext(ErrTest, map[string]interface{}{"id": id})
}
