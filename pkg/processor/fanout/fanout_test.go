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

package fanout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-telemetry/otap-dataflow-core/pkg/node"
)

func newTestNode(t *testing.T, cfg Config) (*Processor, map[string]chan node.Message) {
	t.Helper()
	ports := map[string]chan node.Message{}
	for _, d := range cfg.Destinations {
		ports[d.Port] = make(chan node.Message, 4)
	}
	p, err := New(cfg, nil, nil)
	require.NoError(t, err)
	return p, ports
}

func effectsFor(ports map[string]chan node.Message) *node.EffectHandler {
	return node.NewEffectHandler(nil, ports)
}

func callerContext() *node.Context {
	return node.NewContext().Push(node.Frame{NodeID: "caller", Interests: node.InterestAcks | node.InterestNacks})
}

func TestConfigValidateDefaultsFirstDestinationPrimary(t *testing.T) {
	cfg := Config{Destinations: []Destination{{Port: "a"}, {Port: "b"}}}
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Destinations[0].Primary)
}

func TestConfigValidateRejectsDuplicatePorts(t *testing.T) {
	cfg := Config{Destinations: []Destination{{Port: "a"}, {Port: "a"}}}
	assert.Error(t, cfg.Validate())
}

func TestConfigValidateRejectsFallbackCycle(t *testing.T) {
	cfg := Config{Destinations: []Destination{
		{Port: "a", Primary: true},
		{Port: "b", FallbackFor: "c"},
		{Port: "c", FallbackFor: "b"},
	}}
	assert.Error(t, cfg.Validate())
}

func TestConfigValidateRejectsPrimaryAsFallback(t *testing.T) {
	cfg := Config{Destinations: []Destination{
		{Port: "a", Primary: true, FallbackFor: "b"},
		{Port: "b"},
	}}
	assert.Error(t, cfg.Validate())
}

func TestFanoutAwaitAllBothAckProducesOneUpstreamAck(t *testing.T) {
	cfg := Config{
		Mode:     ModeParallel,
		AwaitAck: AwaitAll,
		Destinations: []Destination{
			{Port: "a", Primary: true},
			{Port: "b"},
		},
	}
	p, ports := newTestNode(t, cfg)
	effects := effectsFor(ports)

	var acks, nacks int
	p.AckUpstream = func(node.Frame, node.CallData, string) { acks++ }
	p.NackUpstream = func(node.Frame, node.CallData, string) { nacks++ }

	ctx := context.Background()
	msg := node.DataMessage(node.Payload{Signal: node.SignalLogs}, callerContext())
	require.NoError(t, p.Process(ctx, msg, effects))
	require.Len(t, p.inflight, 1)

	var reqID uint64
	for id := range p.inflight {
		reqID = id
	}

	require.NoError(t, p.Process(ctx, node.ControlMessage(node.Control{Kind: node.ControlAck, Ack: node.Ack{CallData: node.CallData{reqID, 0}}}), effects))
	assert.Equal(t, 0, acks)
	require.NoError(t, p.Process(ctx, node.ControlMessage(node.Control{Kind: node.ControlAck, Ack: node.Ack{CallData: node.CallData{reqID, 1}}}), effects))
	assert.Equal(t, 1, acks)
	assert.Equal(t, 0, nacks)
	assert.Empty(t, p.inflight)
}

func TestFanoutAwaitAllBothNackCombinesReasonsIntoOneUpstreamNack(t *testing.T) {
	cfg := Config{
		Mode:     ModeParallel,
		AwaitAck: AwaitAll,
		Destinations: []Destination{
			{Port: "a", Primary: true},
			{Port: "b"},
		},
	}
	p, ports := newTestNode(t, cfg)
	effects := effectsFor(ports)

	var nacks int
	var reason string
	p.AckUpstream = func(node.Frame, node.CallData, string) { t.Fatal("unexpected ack") }
	p.NackUpstream = func(_ node.Frame, _ node.CallData, r string) { nacks++; reason = r }

	ctx := context.Background()
	msg := node.DataMessage(node.Payload{Signal: node.SignalLogs}, callerContext())
	require.NoError(t, p.Process(ctx, msg, effects))

	var reqID uint64
	for id := range p.inflight {
		reqID = id
	}

	require.NoError(t, p.Process(ctx, node.ControlMessage(node.Control{Kind: node.ControlNack, Nack: node.Nack{CallData: node.CallData{reqID, 0}, Reason: "a down"}}), effects))
	require.NoError(t, p.Process(ctx, node.ControlMessage(node.Control{Kind: node.ControlNack, Nack: node.Nack{CallData: node.CallData{reqID, 1}, Reason: "b down"}}), effects))

	assert.Equal(t, 1, nacks)
	assert.Contains(t, reason, "a down")
	assert.Contains(t, reason, "b down")
}

func TestFanoutFallbackChainPromotesThroughToSuccess(t *testing.T) {
	cfg := Config{
		Mode:     ModeSequential,
		AwaitAck: AwaitPrimary,
		Destinations: []Destination{
			{Port: "a", Primary: true},
			{Port: "b", FallbackFor: "a"},
			{Port: "c", FallbackFor: "b"},
		},
	}
	p, ports := newTestNode(t, cfg)
	effects := effectsFor(ports)

	var acked bool
	var nackCount int
	p.AckUpstream = func(node.Frame, node.CallData, string) { acked = true }
	p.NackUpstream = func(node.Frame, node.CallData, string) { nackCount++ }

	ctx := context.Background()
	msg := node.DataMessage(node.Payload{Signal: node.SignalLogs}, callerContext())
	require.NoError(t, p.Process(ctx, msg, effects))

	var reqID uint64
	for id := range p.inflight {
		reqID = id
	}

	// a nacks -> promotes b.
	require.NoError(t, p.Process(ctx, node.ControlMessage(node.Control{Kind: node.ControlNack, Nack: node.Nack{CallData: node.CallData{reqID, 0}}}), effects))
	assert.False(t, acked)

	// b nacks -> promotes c.
	require.NoError(t, p.Process(ctx, node.ControlMessage(node.Control{Kind: node.ControlNack, Nack: node.Nack{CallData: node.CallData{reqID, 1}}}), effects))
	assert.False(t, acked)

	// c acks -> chain (and the whole request, since AwaitPrimary) completes.
	require.NoError(t, p.Process(ctx, node.ControlMessage(node.Control{Kind: node.ControlAck, Ack: node.Ack{CallData: node.CallData{reqID, 2}}}), effects))
	assert.True(t, acked)
	assert.Equal(t, 0, nackCount)
	assert.Empty(t, p.inflight)
}

func TestFanoutAwaitNoneAcksImmediately(t *testing.T) {
	cfg := Config{
		Mode:     ModeParallel,
		AwaitAck: AwaitNone,
		Destinations: []Destination{
			{Port: "a", Primary: true},
		},
	}
	p, ports := newTestNode(t, cfg)
	effects := effectsFor(ports)

	acked := false
	p.AckUpstream = func(node.Frame, node.CallData, string) { acked = true }

	ctx := context.Background()
	msg := node.DataMessage(node.Payload{Signal: node.SignalLogs}, callerContext())
	require.NoError(t, p.Process(ctx, msg, effects))
	assert.True(t, acked)
}

func TestFanoutTimeoutTreatedAsNack(t *testing.T) {
	cfg := Config{
		Mode:                 ModeParallel,
		AwaitAck:             AwaitPrimary,
		TimeoutCheckInterval: time.Millisecond,
		Destinations: []Destination{
			{Port: "a", Primary: true, Timeout: time.Nanosecond},
		},
	}
	p, ports := newTestNode(t, cfg)
	effects := effectsFor(ports)

	nacked := false
	p.NackUpstream = func(node.Frame, node.CallData, string) { nacked = true }

	ctx := context.Background()
	msg := node.DataMessage(node.Payload{Signal: node.SignalLogs}, callerContext())
	require.NoError(t, p.Process(ctx, msg, effects))

	time.Sleep(time.Millisecond)
	p.checkTimeouts(ctx, effects)
	assert.True(t, nacked)
}
