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

	"go.uber.org/zap"

	"github.com/open-telemetry/otap-dataflow-core/pkg/exec"
	"github.com/open-telemetry/otap-dataflow-core/pkg/kql"
	"github.com/open-telemetry/otap-dataflow-core/pkg/node"
	"github.com/open-telemetry/otap-dataflow-core/pkg/werror"
)

const outPort = "output"

// UpstreamNotifier delivers a terminal ack/nack for the Frame this filter
// popped off the inbound message's Context — the same decoupling pattern
// component I's fan-out processor uses for the same reason: pkg/node has
// no NodeID->inbound-channel registry to route an ack/nack through
// directly.
type UpstreamNotifier func(frame node.Frame, callData node.CallData, reason string)

// Processor is the KQL filter: it runs a compiled query pipeline over
// decoded OTLP logs and re-emits the records that survive.
type Processor struct {
	cfg        Config
	registry   *exec.Registry
	pipelineID int
	executor   *exec.Executor

	AckUpstream  UpstreamNotifier
	NackUpstream UpstreamNotifier

	log *zap.Logger
}

func New(cfg Config, registry *exec.Registry, log *zap.Logger) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = exec.NewRegistry()
	}
	if log == nil {
		log = zap.NewNop()
	}
	pipeline, err := kql.Compile(cfg.Query, cfg.BridgeOptions.Attached, cfg.BridgeOptions.DefaultKey)
	if err != nil {
		return nil, werror.WrapWithMsg(err, "compiling kql filter query")
	}
	return &Processor{
		cfg:        cfg,
		registry:   registry,
		pipelineID: registry.Register(pipeline),
		executor:   exec.NewExecutor(pipeline, log),
		log:        log,
	}, nil
}

func (p *Processor) Name() string { return "kqlfilter" }

// PipelineID is the opaque id this filter's currently-active pipeline is
// registered under.
func (p *Processor) PipelineID() int { return p.pipelineID }

func (p *Processor) Process(ctx context.Context, msg node.Message, effects *node.EffectHandler) error {
	if msg.IsControl {
		return p.processControl(msg)
	}
	return p.filter(ctx, msg, effects)
}

func (p *Processor) processControl(msg node.Message) error {
	if msg.Control.Kind != node.ControlConfig {
		return nil
	}
	newCfg, ok := msg.Control.Config.(Config)
	if !ok {
		return werror.Wrap(&werror.InvalidUserConfigError{Message: "kql filter config must be a kqlfilter.Config"})
	}
	if err := newCfg.Validate(); err != nil {
		return err
	}
	if p.cfg.Equal(newCfg) {
		return nil
	}

	pipeline, err := kql.Compile(newCfg.Query, newCfg.BridgeOptions.Attached, newCfg.BridgeOptions.DefaultKey)
	if err != nil {
		p.log.Warn("kql filter recompile failed, keeping previous pipeline",
			zap.Int("pipeline_id", p.pipelineID), zap.Error(err))
		return nil
	}

	p.registry.Forget(p.pipelineID)
	p.pipelineID = p.registry.Register(pipeline)
	p.executor = exec.NewExecutor(pipeline, p.log)
	p.cfg = newCfg
	return nil
}

func (p *Processor) filter(ctx context.Context, msg node.Message, effects *node.EffectHandler) error {
	if msg.PData.Signal != node.SignalLogs {
		err := werror.Wrap(&werror.InternalError{Message: "kql filter invoked for a non-logs signal"})
		p.notify(msg, false, err.Error())
		return err
	}

	included, _, err := p.executor.ExecuteLogsBytes(msg.PData.Bytes)
	if err != nil {
		p.log.Warn("kql filter execution failed, nacking", zap.Error(err))
		p.notify(msg, false, err.Error())
		return nil
	}

	p.notify(msg, true, "")
	return effects.SendMessage(ctx, outPort, node.DataMessage(node.Payload{Signal: node.SignalLogs, Bytes: included}, msg.Ctx))
}

// notify pops the nearest ack/nack-interested frame off msg's Context and
// delivers the outcome through the matching injected callback; it is a
// no-op if msg carries no Context or nothing up the stack asked to be
// notified.
func (p *Processor) notify(msg node.Message, ok bool, reason string) {
	if msg.Ctx == nil {
		return
	}
	if ok {
		frame, found := msg.Ctx.FindInterested(node.InterestAcks)
		if found && p.AckUpstream != nil {
			p.AckUpstream(frame, frame.CallData, reason)
		}
		return
	}
	frame, found := msg.Ctx.FindInterested(node.InterestNacks)
	if found && p.NackUpstream != nil {
		p.NackUpstream(frame, frame.CallData, reason)
	}
}
