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
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/open-telemetry/otap-dataflow-core/pkg/node"
	"github.com/open-telemetry/otap-dataflow-core/pkg/werror"
)

type endpointStatus int

const (
	statusPendingSend endpointStatus = iota
	statusInFlight
	statusAcked
	statusNacked
)

type endpointState struct {
	dest     Destination
	status   endpointStatus
	deadline time.Time
}

// request is the in-flight bookkeeping for one dispatched payload: per-
// endpoint status/deadline, which origin slot each endpoint belongs to, and
// whether each origin slot's chain has finished (and with what outcome).
type request struct {
	payload     node.Payload
	ctx         *node.Context
	endpoints   []*endpointState
	originOf    map[int]string
	queue       []int // Sequential mode: remaining non-fallback indices to send
	chainDone   map[string]bool
	chainOK     map[string]bool
	chainReason map[string]error
	completed   bool
}

// UpstreamNotifier delivers an ack/nack for the Frame this fan-out request
// popped off its originating Context. Routing that notification to the
// concrete node identified by frame.NodeID is graph-wiring glue outside
// pkg/node's scope (it has no NodeID->inbound-channel registry), so it is
// injected here the same way the condense processor injects its dropped-
// attribute counter — keeping this processor decoupled from that collaborator.
type UpstreamNotifier func(frame node.Frame, callData node.CallData, reason string)

// Processor is the fan-out processor: it clones an inbound payload out to
// every configured non-fallback destination, tracks each destination's
// delivery outcome (including fallback promotion on nack/timeout), and
// reports a single upstream ack/nack per request according to AwaitAck.
type Processor struct {
	cfg       Config
	fallbacks map[string][]int

	inflight  map[uint64]*request
	nextReqID uint64

	AckUpstream  UpstreamNotifier
	NackUpstream UpstreamNotifier

	// TimerSink is this processor's own node's Inbound channel: the
	// destination for the lazily-started timeout ticker's TimerTick
	// messages, so they flow back through the normal Node.Run -> Process
	// path. Left nil (e.g. in unit tests), timeout checking must be driven
	// manually via checkTimeouts.
	TimerSink chan node.Message

	timerOnce sync.Once
	log       *zap.Logger
}

func New(cfg Config, timerSink chan node.Message, log *zap.Logger) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		cfg:       cfg,
		fallbacks: cfg.fallbacksForOrigin(),
		inflight:  make(map[uint64]*request),
		TimerSink: timerSink,
		log:       log,
	}, nil
}

func (p *Processor) Name() string { return "fanout" }

func (p *Processor) Process(ctx context.Context, msg node.Message, effects *node.EffectHandler) error {
	if msg.IsControl {
		return p.processControl(ctx, msg, effects)
	}
	return p.dispatch(ctx, msg, effects)
}

func (p *Processor) processControl(ctx context.Context, msg node.Message, effects *node.EffectHandler) error {
	switch msg.Control.Kind {
	case node.ControlConfig:
		return p.reconfigure(msg.Control.Config)
	case node.ControlTimerTick:
		p.checkTimeouts(ctx, effects)
		return nil
	case node.ControlAck:
		return p.handleOutcome(ctx, effects, msg.Control.Ack.CallData, true, "")
	case node.ControlNack:
		return p.handleOutcome(ctx, effects, msg.Control.Nack.CallData, false, msg.Control.Nack.Reason)
	default:
		return nil
	}
}

func (p *Processor) reconfigure(cfg any) error {
	newCfg, ok := cfg.(Config)
	if !ok {
		return werror.Wrap(&werror.InvalidUserConfigError{Message: "fan-out config must be a fanout.Config"})
	}
	if err := newCfg.Validate(); err != nil {
		return err
	}
	p.cfg = newCfg
	p.fallbacks = newCfg.fallbacksForOrigin()
	return nil
}

// rootOrigin walks a destination's FallbackFor chain back to the
// non-fallback destination that started it — the key every endpoint in one
// fallback chain shares for AwaitAll/AwaitPrimary bookkeeping.
func (p *Processor) rootOrigin(port string) string {
	byPort := make(map[string]Destination, len(p.cfg.Destinations))
	for _, d := range p.cfg.Destinations {
		byPort[d.Port] = d
	}
	cur := port
	for {
		d, ok := byPort[cur]
		if !ok || d.FallbackFor == "" {
			return cur
		}
		cur = d.FallbackFor
	}
}

func (p *Processor) dispatch(ctx context.Context, msg node.Message, effects *node.EffectHandler) error {
	p.nextReqID++
	reqID := p.nextReqID

	req := &request{
		payload:   msg.PData,
		ctx:       msg.Ctx,
		endpoints:   make([]*endpointState, len(p.cfg.Destinations)),
		originOf:    make(map[int]string, len(p.cfg.Destinations)),
		chainDone:   make(map[string]bool),
		chainOK:     make(map[string]bool),
		chainReason: make(map[string]error),
	}
	var nonFallback []int
	for i, d := range p.cfg.Destinations {
		req.endpoints[i] = &endpointState{dest: d}
		if d.FallbackFor == "" {
			req.originOf[i] = d.Port
			nonFallback = append(nonFallback, i)
		} else {
			req.originOf[i] = p.rootOrigin(d.Port)
		}
	}
	p.inflight[reqID] = req

	if p.TimerSink != nil && p.cfg.TimeoutCheckInterval > 0 && p.anyTimeoutConfigured() {
		p.timerOnce.Do(func() {
			effects.StartPeriodicTimer(p.cfg.TimeoutCheckInterval, p.TimerSink)
		})
	}

	switch p.cfg.Mode {
	case ModeSequential:
		if len(nonFallback) > 0 {
			p.send(ctx, reqID, req, nonFallback[0], effects)
			req.queue = nonFallback[1:]
		}
	default: // ModeParallel
		for _, i := range nonFallback {
			p.send(ctx, reqID, req, i, effects)
		}
	}

	if p.cfg.AwaitAck == AwaitNone {
		p.notifyUpstream(req, true, "")
	}
	return nil
}

func (p *Processor) anyTimeoutConfigured() bool {
	for _, d := range p.cfg.Destinations {
		if d.Timeout > 0 {
			return true
		}
	}
	return false
}

func (p *Processor) send(ctx context.Context, reqID uint64, req *request, idx int, effects *node.EffectHandler) {
	ep := req.endpoints[idx]
	ep.status = statusInFlight
	if ep.dest.Timeout > 0 {
		ep.deadline = time.Now().Add(ep.dest.Timeout)
	}

	callData := node.CallData{reqID, uint64(idx)}
	frameCtx := node.NewContext()
	if req.ctx != nil {
		frameCtx = req.ctx.Clone()
	}
	frameCtx.Push(node.Frame{NodeID: "fanout", Interests: node.InterestAcks | node.InterestNacks, CallData: callData})

	outMsg := node.DataMessage(req.payload, frameCtx)
	var err error
	if p.cfg.Mode == ModeParallel {
		_, err = effects.SendMessageNonBlocking(ep.dest.Port, outMsg)
	} else {
		err = effects.SendMessage(ctx, ep.dest.Port, outMsg)
	}
	if err != nil {
		p.log.Warn("fanout send failed", zap.String("port", ep.dest.Port), zap.Error(err))
	}
}

func decodeCallData(cd node.CallData) (reqID uint64, idx int) {
	return cd[0], int(cd[1])
}

func (p *Processor) handleOutcome(ctx context.Context, effects *node.EffectHandler, cd node.CallData, acked bool, reason string) error {
	reqID, idx := decodeCallData(cd)
	req, ok := p.inflight[reqID]
	if !ok || req.completed || idx < 0 || idx >= len(req.endpoints) {
		return nil
	}
	ep := req.endpoints[idx]
	origin := req.originOf[idx]

	if acked {
		ep.status = statusAcked
		req.chainDone[origin] = true
		req.chainOK[origin] = true
	} else {
		ep.status = statusNacked
		if fallbackIdx, found := p.nextFallback(req, ep.dest.Port); found {
			req.endpoints[fallbackIdx].status = statusPendingSend
			p.send(ctx, reqID, req, fallbackIdx, effects)
		} else {
			req.chainDone[origin] = true
			req.chainOK[origin] = false
			req.chainReason[origin] = werror.Wrap(&werror.InternalError{
				Message: fmt.Sprintf("%s: %s", ep.dest.Port, reason),
			})
		}
	}

	// Sequential mode only holds one non-fallback origin's chain active at
	// a time; once that chain is fully resolved (acked, or nacked with no
	// remaining fallback), the next queued origin is promoted to InFlight.
	if req.chainDone[origin] {
		p.advanceSequential(ctx, reqID, req, effects)
	}
	p.maybeComplete(req)
	if req.completed {
		delete(p.inflight, reqID)
	}
	return nil
}

func (p *Processor) nextFallback(req *request, failedPort string) (int, bool) {
	for _, i := range p.fallbacks[failedPort] {
		if req.endpoints[i].status == statusPendingSend {
			return i, true
		}
	}
	return 0, false
}

// advanceSequential promotes the next queued non-fallback destination to
// InFlight once the previously active origin's chain has fully resolved
// (acked, or nacked with its fallback chain exhausted) — a nack that still
// has a pending fallback keeps that origin active instead of advancing.
func (p *Processor) advanceSequential(ctx context.Context, reqID uint64, req *request, effects *node.EffectHandler) {
	if p.cfg.Mode != ModeSequential || len(req.queue) == 0 {
		return
	}
	next := req.queue[0]
	req.queue = req.queue[1:]
	p.send(ctx, reqID, req, next, effects)
}

func (p *Processor) maybeComplete(req *request) {
	if req.completed || p.cfg.AwaitAck == AwaitNone {
		return
	}

	switch p.cfg.AwaitAck {
	case AwaitPrimary:
		primary := p.cfg.Destinations[p.cfg.primaryIndex()]
		if done := req.chainDone[primary.Port]; done {
			req.completed = true
			p.notifyUpstream(req, req.chainOK[primary.Port], "primary destination chain exhausted")
		}
	case AwaitAll:
		allDone := true
		anyFailed := false
		for _, d := range p.cfg.Destinations {
			if d.FallbackFor != "" {
				continue
			}
			if !req.chainDone[d.Port] {
				allDone = false
				break
			}
			if !req.chainOK[d.Port] {
				anyFailed = true
			}
		}
		if !allDone {
			return
		}
		req.completed = true
		if anyFailed {
			p.notifyUpstream(req, false, combinedFailureReason(req).Error())
		} else {
			p.notifyUpstream(req, true, "")
		}
	}
}

// combinedFailureReason folds every origin's recorded failure into one
// error via multierr, so an AwaitAll nack's reason names every exhausted
// chain instead of just whichever origin's failure the map iteration
// happened to observe first.
func combinedFailureReason(req *request) error {
	var combined error
	for _, err := range req.chainReason {
		combined = multierr.Append(combined, err)
	}
	if combined == nil {
		combined = werror.Wrap(&werror.InternalError{Message: "destination chain exhausted with no fallback"})
	}
	return combined
}

func (p *Processor) notifyUpstream(req *request, acked bool, reason string) {
	if req.ctx == nil {
		return
	}
	if acked {
		frame, ok := req.ctx.FindInterested(node.InterestAcks)
		if ok && p.AckUpstream != nil {
			p.AckUpstream(frame, frame.CallData, "")
		}
		return
	}
	frame, ok := req.ctx.FindInterested(node.InterestNacks)
	if ok && p.NackUpstream != nil {
		p.NackUpstream(frame, frame.CallData, reason)
	}
}

// checkTimeouts walks every in-flight request's InFlight endpoints; any
// whose deadline has passed is treated exactly like a nack (fallback
// promotion or chain failure).
func (p *Processor) checkTimeouts(ctx context.Context, effects *node.EffectHandler) {
	now := time.Now()
	for reqID, req := range p.inflight {
		for idx, ep := range req.endpoints {
			if ep.status != statusInFlight || ep.deadline.IsZero() || now.Before(ep.deadline) {
				continue
			}
			_ = p.handleOutcome(ctx, effects, node.CallData{reqID, uint64(idx)}, false, "timeout")
		}
	}
}
