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

package debug

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/pdata/plog"

	"github.com/open-telemetry/otap-dataflow-core/pkg/node"
)

func marshalLogsWith(t *testing.T, severity, eventName string) []byte {
	t.Helper()
	logs := plog.NewLogs()
	rl := logs.ResourceLogs().AppendEmpty()
	sl := rl.ScopeLogs().AppendEmpty()
	lr := sl.LogRecords().AppendEmpty()
	lr.SetSeverityText(severity)
	if eventName != "" {
		lr.Attributes().PutStr("event.name", eventName)
	}
	var m plog.ProtoMarshaler
	b, err := m.MarshalLogs(logs)
	require.NoError(t, err)
	return b
}

func effectsFor(out chan node.Message, extra map[string]chan node.Message) *node.EffectHandler {
	ports := map[string]chan node.Message{outPort: out}
	for k, v := range extra {
		ports[k] = v
	}
	return node.NewEffectHandler(nil, ports)
}

func TestDebugForwardsPayloadUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	cfg := Config{Verbosity: VerbosityBasic, Output: Output{Kind: OutputFile, FilePath: path}}
	p, err := New(cfg, nil)
	require.NoError(t, err)
	defer p.Close()

	out := make(chan node.Message, 1)
	effects := effectsFor(out, nil)
	bytes := marshalLogsWith(t, "INFO", "")
	msg := node.DataMessage(node.Payload{Signal: node.SignalLogs, Bytes: bytes}, nil)

	require.NoError(t, p.Process(context.Background(), msg, effects))
	require.Len(t, out, 1)
	got := <-out
	assert.Equal(t, bytes, got.PData.Bytes)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "records=1")
}

func TestDebugNormalVerbosityIncludesSeverity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	cfg := Config{Verbosity: VerbosityNormal, Mode: ModeSignal, Output: Output{Kind: OutputFile, FilePath: path}}
	p, err := New(cfg, nil)
	require.NoError(t, err)
	defer p.Close()

	out := make(chan node.Message, 1)
	effects := effectsFor(out, nil)
	msg := node.DataMessage(node.Payload{Signal: node.SignalLogs, Bytes: marshalLogsWith(t, "WARN", "")}, nil)
	require.NoError(t, p.Process(context.Background(), msg, effects))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "severity=WARN")
}

func TestDebugExcludeFilterDropsMatchingRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	cfg := Config{
		Verbosity: VerbosityNormal,
		Mode:      ModeSignal,
		Output:    Output{Kind: OutputFile, FilePath: path},
		Filters:   []FilterRule{{Action: FilterExclude, SeverityText: "DEBUG"}},
	}
	p, err := New(cfg, nil)
	require.NoError(t, err)
	defer p.Close()

	out := make(chan node.Message, 1)
	effects := effectsFor(out, nil)
	msg := node.DataMessage(node.Payload{Signal: node.SignalLogs, Bytes: marshalLogsWith(t, "DEBUG", "")}, nil)
	require.NoError(t, p.Process(context.Background(), msg, effects))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, string(contents))
	// the message still flows downstream even though rendering was suppressed.
	require.Len(t, out, 1)
}

func TestDebugIncludeFilterOnlyMatchingRendered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	cfg := Config{
		Verbosity: VerbosityNormal,
		Mode:      ModeSignal,
		Output:    Output{Kind: OutputFile, FilePath: path},
		Filters:   []FilterRule{{Action: FilterInclude, SeverityText: "ERROR"}},
	}
	p, err := New(cfg, nil)
	require.NoError(t, err)
	defer p.Close()

	out := make(chan node.Message, 2)
	effects := effectsFor(out, nil)

	require.NoError(t, p.Process(context.Background(), node.DataMessage(node.Payload{Signal: node.SignalLogs, Bytes: marshalLogsWith(t, "INFO", "")}, nil), effects))
	require.NoError(t, p.Process(context.Background(), node.DataMessage(node.Payload{Signal: node.SignalLogs, Bytes: marshalLogsWith(t, "ERROR", "")}, nil), effects))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(contents), "severity=INFO")
	assert.Contains(t, string(contents), "severity=ERROR")
}

func TestDebugSignalsRestrictsRenderedSignals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	cfg := Config{
		Verbosity: VerbosityBasic,
		Output:    Output{Kind: OutputFile, FilePath: path},
		Signals:   []node.Signal{node.SignalMetrics},
	}
	p, err := New(cfg, nil)
	require.NoError(t, err)
	defer p.Close()

	out := make(chan node.Message, 1)
	effects := effectsFor(out, nil)
	msg := node.DataMessage(node.Payload{Signal: node.SignalLogs, Bytes: marshalLogsWith(t, "INFO", "")}, nil)
	require.NoError(t, p.Process(context.Background(), msg, effects))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, string(contents))
}

func TestDebugOutportsDuplicatesMessage(t *testing.T) {
	cfg := Config{
		Verbosity: VerbosityBasic,
		Output:    Output{Kind: OutputOutports, Ports: []string{"tap"}},
	}
	p, err := New(cfg, nil)
	require.NoError(t, err)
	defer p.Close()

	out := make(chan node.Message, 1)
	tap := make(chan node.Message, 1)
	effects := effectsFor(out, map[string]chan node.Message{"tap": tap})
	msg := node.DataMessage(node.Payload{Signal: node.SignalLogs, Bytes: marshalLogsWith(t, "INFO", "")}, nil)

	require.NoError(t, p.Process(context.Background(), msg, effects))
	assert.Len(t, out, 1)
	assert.Len(t, tap, 1)
}

func TestDebugDetailedModePushesAckNackFrame(t *testing.T) {
	cfg := Config{Verbosity: VerbosityDetailed, Output: Output{Kind: OutputConsole}}
	p, err := New(cfg, nil)
	require.NoError(t, err)
	defer p.Close()

	out := make(chan node.Message, 1)
	effects := effectsFor(out, nil)
	ctx := node.NewContext()
	msg := node.DataMessage(node.Payload{Signal: node.SignalLogs, Bytes: marshalLogsWith(t, "INFO", "")}, ctx)

	require.NoError(t, p.Process(context.Background(), msg, effects))
	assert.Equal(t, 1, ctx.Depth())

	frame, ok := ctx.FindInterested(node.InterestAcks)
	require.True(t, ok)
	assert.Equal(t, "debug", frame.NodeID)
	assert.NotZero(t, frame.CallData[0])
}

func TestDebugReportsAckLatencyViaCallback(t *testing.T) {
	cfg := Config{Verbosity: VerbosityDetailed, Output: Output{Kind: OutputConsole}}
	p, err := New(cfg, nil)
	require.NoError(t, err)
	defer p.Close()

	var reportedOK bool
	var reportedLatency time.Duration
	p.OnLatency = func(ok bool, latency time.Duration, reason string) {
		reportedOK = ok
		reportedLatency = latency
	}

	cd := stampNow()
	time.Sleep(time.Millisecond)
	ack := node.ControlMessage(node.Control{Kind: node.ControlAck, Ack: node.Ack{CallData: cd}})
	require.NoError(t, p.Process(context.Background(), ack, nil))

	assert.True(t, reportedOK)
	assert.Greater(t, reportedLatency, time.Duration(0))
}

func TestDebugReconfigureSwapsVerbosity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	cfg := Config{Verbosity: VerbosityBasic, Output: Output{Kind: OutputFile, FilePath: path}}
	p, err := New(cfg, nil)
	require.NoError(t, err)
	defer p.Close()

	newCfg := Config{Verbosity: VerbosityNormal, Mode: ModeSignal, Output: Output{Kind: OutputFile, FilePath: path}}
	reconfig := node.ControlMessage(node.Control{Kind: node.ControlConfig, Config: newCfg})
	require.NoError(t, p.Process(context.Background(), reconfig, nil))

	out := make(chan node.Message, 1)
	effects := effectsFor(out, nil)
	msg := node.DataMessage(node.Payload{Signal: node.SignalLogs, Bytes: marshalLogsWith(t, "ERROR", "")}, nil)
	require.NoError(t, p.Process(context.Background(), msg, effects))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "severity=ERROR")
}

func TestDebugZapSamplingDropsBeyondThereafter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	cfg := Config{
		Verbosity: VerbosityBasic,
		Output:    Output{Kind: OutputFile, FilePath: path},
		Sampling:  Sampling{Mode: SamplingZap, Initial: 1, Thereafter: 1000, Interval: time.Minute},
	}
	p, err := New(cfg, nil)
	require.NoError(t, err)
	defer p.Close()

	out := make(chan node.Message, 10)
	effects := effectsFor(out, nil)
	for i := 0; i < 5; i++ {
		msg := node.DataMessage(node.Payload{Signal: node.SignalLogs, Bytes: marshalLogsWith(t, "INFO", "")}, nil)
		require.NoError(t, p.Process(context.Background(), msg, effects))
	}

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := 0
	for _, b := range contents {
		if b == '\n' {
			lines++
		}
	}
	assert.Less(t, lines, 5)
}
