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

package kqlfilter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/pdata/plog"

	"github.com/open-telemetry/otap-dataflow-core/pkg/exec"
	"github.com/open-telemetry/otap-dataflow-core/pkg/node"
)

func marshalLogs(t *testing.T, severity string) []byte {
	t.Helper()
	logs := plog.NewLogs()
	rl := logs.ResourceLogs().AppendEmpty()
	sl := rl.ScopeLogs().AppendEmpty()
	lr := sl.LogRecords().AppendEmpty()
	lr.SetSeverityText(severity)
	var m plog.ProtoMarshaler
	b, err := m.MarshalLogs(logs)
	require.NoError(t, err)
	return b
}

func countRecords(t *testing.T, b []byte) int {
	t.Helper()
	var u plog.ProtoUnmarshaler
	logs, err := u.UnmarshalLogs(b)
	require.NoError(t, err)
	n := 0
	rls := logs.ResourceLogs()
	for i := 0; i < rls.Len(); i++ {
		sls := rls.At(i).ScopeLogs()
		for j := 0; j < sls.Len(); j++ {
			n += sls.At(j).LogRecords().Len()
		}
	}
	return n
}

func effectsFor(out chan node.Message) *node.EffectHandler {
	return node.NewEffectHandler(nil, map[string]chan node.Message{outPort: out})
}

func TestKQLFilterDropsNonMatchingRecords(t *testing.T) {
	cfg := Config{Query: `source | where severity_text == "ERROR"`}
	p, err := New(cfg, nil, nil)
	require.NoError(t, err)

	out := make(chan node.Message, 1)
	effects := effectsFor(out)
	msg := node.DataMessage(node.Payload{Signal: node.SignalLogs, Bytes: marshalLogs(t, "INFO")}, nil)

	require.NoError(t, p.Process(context.Background(), msg, effects))
	require.Len(t, out, 1)
	got := <-out
	assert.Equal(t, 0, countRecords(t, got.PData.Bytes))
}

func TestKQLFilterKeepsMatchingRecords(t *testing.T) {
	cfg := Config{Query: `source | where severity_text == "ERROR"`}
	p, err := New(cfg, nil, nil)
	require.NoError(t, err)

	out := make(chan node.Message, 1)
	effects := effectsFor(out)
	msg := node.DataMessage(node.Payload{Signal: node.SignalLogs, Bytes: marshalLogs(t, "ERROR")}, nil)

	require.NoError(t, p.Process(context.Background(), msg, effects))
	require.Len(t, out, 1)
	got := <-out
	assert.Equal(t, 1, countRecords(t, got.PData.Bytes))
}

func TestKQLFilterRejectsNonLogsSignal(t *testing.T) {
	cfg := Config{Query: `source | where severity_text == "ERROR"`}
	p, err := New(cfg, nil, nil)
	require.NoError(t, err)

	var nackReason string
	p.NackUpstream = func(_ node.Frame, _ node.CallData, reason string) { nackReason = reason }

	out := make(chan node.Message, 1)
	effects := effectsFor(out)
	ctx := node.NewContext().Push(node.Frame{NodeID: "caller", Interests: node.InterestNacks})
	msg := node.DataMessage(node.Payload{Signal: node.SignalMetrics}, ctx)

	assert.Error(t, p.Process(context.Background(), msg, effects))
	assert.Empty(t, out)
	assert.Contains(t, nackReason, "non-logs signal")
}

func TestKQLFilterReconfigureKeepsPreviousPipelineOnCompileError(t *testing.T) {
	cfg := Config{Query: `source | where severity_text == "ERROR"`}
	p, err := New(cfg, nil, nil)
	require.NoError(t, err)
	originalID := p.PipelineID()

	badCfg := Config{Query: `this is not valid kql (((`}
	tick := node.ControlMessage(node.Control{Kind: node.ControlConfig, Config: badCfg})
	require.NoError(t, p.Process(context.Background(), tick, nil))

	assert.Equal(t, originalID, p.PipelineID())
}

func TestKQLFilterReconfigureSkipsRecompileWhenUnchanged(t *testing.T) {
	cfg := Config{Query: `source | where severity_text == "ERROR"`}
	p, err := New(cfg, nil, nil)
	require.NoError(t, err)
	originalID := p.PipelineID()

	same := node.ControlMessage(node.Control{Kind: node.ControlConfig, Config: cfg})
	require.NoError(t, p.Process(context.Background(), same, nil))

	assert.Equal(t, originalID, p.PipelineID())
}

func TestRegistrySharedAcrossConstructionAndReconfigure(t *testing.T) {
	reg := exec.NewRegistry()
	cfg := Config{Query: `source | where severity_text == "ERROR"`}
	p, err := New(cfg, reg, nil)
	require.NoError(t, err)

	_, ok := reg.Get(p.PipelineID())
	assert.True(t, ok)

	newCfg := Config{Query: `source | where severity_text == "WARN"`}
	tick := node.ControlMessage(node.Control{Kind: node.ControlConfig, Config: newCfg})
	require.NoError(t, p.Process(context.Background(), tick, nil))

	_, ok = reg.Get(p.PipelineID())
	assert.True(t, ok)
}
