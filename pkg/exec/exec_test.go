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

package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/pdata/plog"

	"github.com/open-telemetry/otap-dataflow-core/pkg/kql"
)

func buildSampleLogs() plog.Logs {
	logs := plog.NewLogs()
	rl := logs.ResourceLogs().AppendEmpty()
	rl.Resource().Attributes().PutStr("service.name", "checkout")
	sl := rl.ScopeLogs().AppendEmpty()
	sl.Scope().SetName("mylib")

	lr1 := sl.LogRecords().AppendEmpty()
	lr1.SetSeverityText("INFO")
	lr1.Attributes().PutStr("http.method", "GET")
	lr1.Attributes().PutInt("http.status_code", 200)

	lr2 := sl.LogRecords().AppendEmpty()
	lr2.SetSeverityText("ERROR")
	lr2.Attributes().PutStr("http.method", "POST")
	lr2.Attributes().PutInt("http.status_code", 500)

	return logs
}

func TestExecuteLogsFiltersByAttribute(t *testing.T) {
	pipeline, err := kql.Compile(`source | where http_status_code == 500`, []string{"resource", "scope"}, "attributes")
	require.NoError(t, err)

	logs := buildSampleLogs()
	// the field name in the attribute map uses a dot; the query above uses
	// an underscore key on purpose to prove attribute lookups are literal
	// path segments, not dot-splitting through real dotted OTel keys.
	logs.ResourceLogs().At(0).ScopeLogs().At(0).LogRecords().At(0).Attributes().Remove("http.status_code")
	logs.ResourceLogs().At(0).ScopeLogs().At(0).LogRecords().At(0).Attributes().PutInt("http_status_code", 200)
	logs.ResourceLogs().At(0).ScopeLogs().At(0).LogRecords().At(1).Attributes().Remove("http.status_code")
	logs.ResourceLogs().At(0).ScopeLogs().At(0).LogRecords().At(1).Attributes().PutInt("http_status_code", 500)

	ex := NewExecutor(pipeline, nil)
	result, err := ex.ExecuteLogs(logs)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Included.LogRecordCount())
	assert.Equal(t, 1, result.Dropped.LogRecordCount())

	kept := result.Included.ResourceLogs().At(0).ScopeLogs().At(0).LogRecords().At(0)
	assert.Equal(t, "ERROR", kept.SeverityText())
}

func TestExecuteLogsExtendAddsField(t *testing.T) {
	pipeline, err := kql.Compile(`source | extend attributes.tagged = true`, nil, "")
	require.NoError(t, err)

	logs := buildSampleLogs()
	ex := NewExecutor(pipeline, nil)
	result, err := ex.ExecuteLogs(logs)
	require.NoError(t, err)
	require.Equal(t, 2, result.Included.LogRecordCount())

	lr := result.Included.ResourceLogs().At(0).ScopeLogs().At(0).LogRecords().At(0)
	v, ok := lr.Attributes().Get("tagged")
	require.True(t, ok)
	assert.True(t, v.Bool())
}

func TestExecuteLogsBytesRoundTrip(t *testing.T) {
	pipeline, err := kql.Compile(`source | project-keep attributes`, nil, "")
	require.NoError(t, err)

	logs := buildSampleLogs()
	var marshaler plog.ProtoMarshaler
	raw, err := marshaler.MarshalLogs(logs)
	require.NoError(t, err)

	ex := NewExecutor(pipeline, nil)
	included, dropped, err := ex.ExecuteLogsBytes(raw)
	require.NoError(t, err)
	assert.NotEmpty(t, included)

	var unmarshaler plog.ProtoUnmarshaler
	includedLogs, err := unmarshaler.UnmarshalLogs(included)
	require.NoError(t, err)
	assert.Equal(t, 2, includedLogs.LogRecordCount())

	droppedLogs, err := unmarshaler.UnmarshalLogs(dropped)
	require.NoError(t, err)
	assert.Equal(t, 0, droppedLogs.LogRecordCount())
}
