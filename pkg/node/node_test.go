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

package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextFindInterested(t *testing.T) {
	c := NewContext()
	c.Push(Frame{NodeID: "a", Interests: InterestReturnData})
	c.Push(Frame{NodeID: "b", Interests: InterestAcks, CallData: CallData{7, 0}})
	c.Push(Frame{NodeID: "c", Interests: InterestReturnData})

	f, ok := c.FindInterested(InterestAcks)
	require.True(t, ok)
	assert.Equal(t, "b", f.NodeID)
	assert.Equal(t, uint64(7), f.CallData[0])
	assert.Equal(t, 1, c.Depth()) // "c" popped looking, "a" remains
}

func TestContextFindInterestedExhausted(t *testing.T) {
	c := NewContext()
	c.Push(Frame{NodeID: "a", Interests: InterestReturnData})
	_, ok := c.FindInterested(InterestNacks)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Depth())
}

type echoProcessor struct {
	out chan Message
}

func (p *echoProcessor) Name() string { return "echo" }
func (p *echoProcessor) Process(ctx context.Context, msg Message, effects *EffectHandler) error {
	if msg.IsControl {
		return nil
	}
	return effects.SendMessage(ctx, "out", msg)
}

func TestNodeRunForwardsAndShutsDown(t *testing.T) {
	inbound := make(chan Message, 4)
	out := make(chan Message, 4)
	n := NewNode(&echoProcessor{out: out}, inbound, map[string]chan Message{"out": out}, nil)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- n.Run(runCtx) }()

	inbound <- DataMessage(Payload{Signal: SignalLogs, Bytes: []byte("x")}, NewContext())
	select {
	case got := <-out:
		assert.Equal(t, []byte("x"), got.PData.Bytes)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forwarded message")
	}

	inbound <- ControlMessage(Control{Kind: ControlShutdown, Reason: "test done"})
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("node did not shut down")
	}
}
