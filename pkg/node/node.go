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
	"time"

	"go.uber.org/zap"

	"github.com/open-telemetry/otap-dataflow-core/pkg/werror"
)

// Processor is the interface every pipeline stage (fan-out, batch, condense,
// the KQL filter, debug) implements. Process runs to completion for one
// Message before the scheduler delivers the next one to this node — there
// is no concurrent re-entry, matching the single-threaded cooperative model
// the rest of the node graph assumes.
type Processor interface {
	Process(ctx context.Context, msg Message, effects *EffectHandler) error
	Name() string
}

// OutPort is a named downstream channel a node sends Messages to.
type OutPort struct {
	Name string
	Ch   chan Message
}

// EffectHandler is the side-effect surface a Processor uses instead of
// touching channels or timers directly, so the scheduler can observe every
// suspension point (send, ack/nack wait, timer registration).
type EffectHandler struct {
	logger   *zap.Logger
	outPorts map[string]chan Message
	timers   []*time.Ticker
}

func NewEffectHandler(logger *zap.Logger, outPorts map[string]chan Message) *EffectHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EffectHandler{logger: logger, outPorts: outPorts}
}

// SendMessage delivers msg on the named out port. It is the framework's one
// blocking suspension point for forward data flow: the goroutine running
// this node's Scheduler loop parks here if the downstream channel is full,
// cooperatively yielding to other runnable work via the channel send/select
// itself rather than a manual yield call.
func (h *EffectHandler) SendMessage(ctx context.Context, port string, msg Message) error {
	ch, ok := h.outPorts[port]
	if !ok {
		return werror.Wrap(&werror.InternalError{Message: "unknown out port " + port})
	}
	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return werror.Wrap(ctx.Err())
	}
}

// SendMessageNonBlocking attempts SendMessage without waiting, reporting
// false if the destination's buffer is full. Used by fan-out's Parallel
// delivery mode, which must not let one slow destination stall the others.
func (h *EffectHandler) SendMessageNonBlocking(port string, msg Message) (bool, error) {
	ch, ok := h.outPorts[port]
	if !ok {
		return false, werror.Wrap(&werror.InternalError{Message: "unknown out port " + port})
	}
	select {
	case ch <- msg:
		return true, nil
	default:
		return false, nil
	}
}

// NotifyAck pops the Context stack looking for the nearest frame interested
// in acks, and returns it (already popped) so the caller can act on its
// CallData. ok is false if no frame in the stack wants acks, meaning the
// ack is fully absorbed here.
func (h *EffectHandler) NotifyAck(ctx *Context) (Frame, bool) {
	return ctx.FindInterested(InterestAcks)
}

// NotifyNack is NotifyAck's nack counterpart.
func (h *EffectHandler) NotifyNack(ctx *Context) (Frame, bool) {
	return ctx.FindInterested(InterestNacks)
}

// StartPeriodicTimer registers a ticker that delivers a TimerTick control
// Message to sink every interval. The ticker is owned by the EffectHandler
// and stopped when the node shuts down.
func (h *EffectHandler) StartPeriodicTimer(interval time.Duration, sink chan<- Message) *time.Ticker {
	t := time.NewTicker(interval)
	h.timers = append(h.timers, t)
	go func() {
		for range t.C {
			sink <- ControlMessage(Control{Kind: ControlTimerTick})
		}
	}()
	return t
}

func (h *EffectHandler) StopTimers() {
	for _, t := range h.timers {
		t.Stop()
	}
}

func (h *EffectHandler) Logger() *zap.Logger { return h.logger }

// Node binds a Processor to its inbound channel and out ports and runs the
// single-threaded Scheduler loop for it.
type Node struct {
	Processor Processor
	Inbound   chan Message
	Effects   *EffectHandler
	logger    *zap.Logger
}

func NewNode(p Processor, inbound chan Message, outPorts map[string]chan Message, logger *zap.Logger) *Node {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Node{
		Processor: p,
		Inbound:   inbound,
		Effects:   NewEffectHandler(logger, outPorts),
		logger:    logger,
	}
}

// Run drives the cooperative scheduler loop: pull one Message off Inbound,
// hand it to Process, repeat, until ctx is cancelled or a Shutdown control
// message is observed. Every iteration processes exactly one message to
// completion — this is the "single-threaded cooperative" model the rest of
// the framework assumes, so Processor implementations never need their own
// locking.
func (n *Node) Run(ctx context.Context) error {
	log := n.logger.With(zap.String("node", n.Processor.Name()))
	defer n.Effects.StopTimers()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-n.Inbound:
			if !ok {
				return nil
			}
			if msg.IsControl && msg.Control.Kind == ControlShutdown {
				if err := n.Processor.Process(ctx, msg, n.Effects); err != nil {
					log.Warn("process error", zap.Error(err))
				}
				log.Info("node shutting down", zap.String("reason", msg.Control.Reason))
				return nil
			}
			if err := n.Processor.Process(ctx, msg, n.Effects); err != nil {
				log.Warn("process error", zap.Error(err))
			}
		}
	}
}
