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

package batch

import (
	"context"
	"sync"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/open-telemetry/otap-dataflow-core/pkg/node"
	"github.com/open-telemetry/otap-dataflow-core/pkg/werror"
)

const outPort = "output"

// Processor accumulates Logs requests (OTLP bytes or OTel-Arrow batch
// groups) into one pending fragment and emits full batches sized according
// to Config.Sizer, carrying any undersized remainder forward to merge with
// whatever arrives next. Requests/Bytes sizers flush the whole pending
// fragment at once; Items splits it at leaf granularity via splitLogs,
// preserving resource/scope hierarchy across the split.
type Processor struct {
	cfg Config
	mu  sync.Mutex

	pendingLogs    plog.Logs
	pendingCount   int // SizerItems: leaf count. SizerRequests: request count.
	pendingBytes   int
	pendingArrow   []*node.ArrowBatchGroup
	havePendingLog bool

	mem *memory.GoAllocator
	log *zap.Logger

	// TimerSink is this node's own Inbound channel, the destination for
	// the periodic flush-on-timeout ticker. Nil in unit tests that drive
	// flushing manually via a ControlTimerTick message.
	TimerSink chan node.Message
	timerOnce sync.Once
}

func New(cfg Config, timerSink chan node.Message, log *zap.Logger) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		cfg:         cfg,
		pendingLogs: plog.NewLogs(),
		mem:         memory.NewGoAllocator(),
		TimerSink:   timerSink,
		log:         log,
	}, nil
}

func (p *Processor) Name() string { return "batch" }

func (p *Processor) Process(ctx context.Context, msg node.Message, effects *node.EffectHandler) error {
	if p.cfg.Timeout > 0 && p.TimerSink != nil {
		p.timerOnce.Do(func() {
			effects.StartPeriodicTimer(p.cfg.Timeout, p.TimerSink)
		})
	}
	if msg.IsControl {
		return p.processControl(ctx, msg, effects)
	}
	return p.ingest(ctx, msg, effects)
}

func (p *Processor) processControl(ctx context.Context, msg node.Message, effects *node.EffectHandler) error {
	switch msg.Control.Kind {
	case node.ControlConfig:
		return p.reconfigure(msg.Control.Config)
	case node.ControlTimerTick:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.flushAll(ctx, effects)
	case node.ControlShutdown:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.flushAll(ctx, effects)
	default:
		return nil
	}
}

func (p *Processor) reconfigure(cfg any) error {
	newCfg, ok := cfg.(Config)
	if !ok {
		return werror.Wrap(&werror.InvalidUserConfigError{Message: "batch config must be a batch.Config"})
	}
	if err := newCfg.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	p.cfg = newCfg
	p.mu.Unlock()
	return nil
}

func (p *Processor) ingest(ctx context.Context, msg node.Message, effects *node.EffectHandler) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if msg.PData.Arrow != nil {
		return p.ingestArrow(ctx, msg, effects)
	}
	return p.ingestBytes(ctx, msg, effects)
}

func (p *Processor) ingestArrow(ctx context.Context, msg node.Message, effects *node.EffectHandler) error {
	p.pendingArrow = append(p.pendingArrow, msg.PData.Arrow)
	if p.cfg.Sizer == SizerRequests && len(p.pendingArrow) < p.cfg.SendBatchSize {
		return nil
	}
	return p.flushArrow(ctx, effects)
}

func (p *Processor) flushArrow(ctx context.Context, effects *node.EffectHandler) error {
	if len(p.pendingArrow) == 0 {
		return nil
	}
	merged, err := mergeArrowFragments(p.mem, p.pendingArrow)
	if err != nil {
		return err
	}
	p.pendingArrow = nil
	return effects.SendMessage(ctx, outPort, node.DataMessage(node.Payload{Signal: node.SignalLogs, Arrow: merged}, nil))
}

func (p *Processor) ingestBytes(ctx context.Context, msg node.Message, effects *node.EffectHandler) error {
	var unmarshaler plog.ProtoUnmarshaler
	logs, err := unmarshaler.UnmarshalLogs(msg.PData.Bytes)
	if err != nil {
		return werror.Wrap(&werror.PdataConversionError{Message: "decoding OTLP logs: " + err.Error()})
	}

	if p.havePendingLog {
		logs = mergePending(p.pendingLogs, logs)
	}

	switch p.cfg.Sizer {
	case SizerItems:
		return p.flushByItems(ctx, effects, logs)
	case SizerBytes:
		return p.accumulateByBytes(ctx, effects, logs)
	default: // SizerRequests
		return p.accumulateByRequests(ctx, effects, logs)
	}
}

func (p *Processor) flushByItems(ctx context.Context, effects *node.EffectHandler, logs plog.Logs) error {
	full, pending, pendingCount := splitLogs(logs, p.cfg.SendBatchSize)
	for _, batch := range full {
		if err := p.emitLogs(ctx, effects, batch); err != nil {
			return err
		}
	}
	p.pendingLogs = pending
	p.pendingCount = pendingCount
	p.havePendingLog = pendingCount > 0
	return nil
}

func (p *Processor) accumulateByRequests(ctx context.Context, effects *node.EffectHandler, logs plog.Logs) error {
	p.pendingLogs = logs
	p.pendingCount++
	p.havePendingLog = true
	if p.pendingCount < p.cfg.SendBatchSize {
		return nil
	}
	return p.flushPendingLogs(ctx, effects)
}

func (p *Processor) accumulateByBytes(ctx context.Context, effects *node.EffectHandler, logs plog.Logs) error {
	var marshaler plog.ProtoMarshaler
	size := marshaler.LogsSize(logs)

	p.pendingLogs = logs
	p.pendingBytes = size
	p.havePendingLog = true
	if size < p.cfg.SendBatchSize {
		return nil
	}
	return p.flushPendingLogs(ctx, effects)
}

func (p *Processor) flushPendingLogs(ctx context.Context, effects *node.EffectHandler) error {
	if !p.havePendingLog {
		return nil
	}
	batch := p.pendingLogs
	p.pendingLogs = plog.NewLogs()
	p.pendingCount = 0
	p.pendingBytes = 0
	p.havePendingLog = false
	return p.emitLogs(ctx, effects, batch)
}

// flushAll drains both the pending OTLP-bytes fragment and any pending
// Arrow fragments on a TimerTick or Shutdown. Both are attempted even if
// the first fails, so a broken Arrow merge never silently swallows a
// still-floatable pending-logs flush (or vice versa); multierr combines
// whatever failures occurred into the single error this call reports.
func (p *Processor) flushAll(ctx context.Context, effects *node.EffectHandler) error {
	var combined error
	if err := p.flushPendingLogs(ctx, effects); err != nil {
		combined = multierr.Append(combined, err)
	}
	if err := p.flushArrow(ctx, effects); err != nil {
		combined = multierr.Append(combined, err)
	}
	return combined
}

func (p *Processor) emitLogs(ctx context.Context, effects *node.EffectHandler, logs plog.Logs) error {
	if countLogRecords(logs) == 0 {
		return nil
	}
	var marshaler plog.ProtoMarshaler
	out, err := marshaler.MarshalLogs(logs)
	if err != nil {
		return werror.Wrap(&werror.PdataConversionError{Message: "encoding batched logs: " + err.Error()})
	}
	return effects.SendMessage(ctx, outPort, node.DataMessage(node.Payload{Signal: node.SignalLogs, Bytes: out}, nil))
}
