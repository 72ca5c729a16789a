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
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/open-telemetry/otap-dataflow-core/pkg/node"
	"github.com/open-telemetry/otap-dataflow-core/pkg/transport"
	"github.com/open-telemetry/otap-dataflow-core/pkg/werror"
)

// LatencyObserved is invoked in Detailed mode every time a previously
// tagged send's ack/nack comes back, carrying the elapsed round trip. It
// is the same injected-callback shape component I's fan-out processor and
// component L's kqlfilter use for upstream notification, here repurposed
// for test observability since debug itself has no further upstream
// relay obligation (unlike fan-out, it owns no multi-destination request
// state to complete).
type LatencyObserved func(ok bool, latency time.Duration, reason string)

// Processor renders a line about every Payload it sees and forwards it
// unchanged. Console/file output goes through a zap core built specially
// for this processor so reconfiguring Sampling genuinely swaps zapcore's
// own sampling core rather than a hand-rolled counter; Outports output
// duplicates the raw message onto named ports in addition to the normal
// downstream send.
type Processor struct {
	mu  sync.Mutex
	cfg Config

	renderLog *zap.Logger
	file      *os.File

	OnLatency LatencyObserved

	log *zap.Logger
}

const outPort = "output"

func New(cfg Config, log *zap.Logger) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Processor{cfg: cfg, log: log}
	if err := p.rebuild(); err != nil {
		return nil, err
	}
	return p, nil
}

// rebuild (re)opens the console/file sink and (re)wraps it in a sampling
// core matching p.cfg.Sampling. Called at construction and whenever a
// Config control message changes the output target or sampling policy.
func (p *Processor) rebuild() error {
	if p.file != nil {
		_ = p.file.Close()
		p.file = nil
	}

	var encoder zapcore.WriteSyncer
	switch p.cfg.Output.Kind {
	case OutputFile:
		f, err := os.OpenFile(p.cfg.Output.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return werror.Wrap(&werror.InternalError{Message: "opening debug output file: " + err.Error()})
		}
		p.file = f
		encoder = zapcore.AddSync(f)
	default:
		encoder = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewProductionEncoderConfig()), encoder, zapcore.DebugLevel)
	if p.cfg.Sampling.Mode == SamplingZap {
		interval := p.cfg.Sampling.Interval
		if interval <= 0 {
			interval = time.Second
		}
		core = zapcore.NewSamplerWithOptions(core, interval, p.cfg.Sampling.Initial, p.cfg.Sampling.Thereafter)
	}
	p.renderLog = zap.New(core)
	return nil
}

func (p *Processor) Name() string { return "debug" }

func (p *Processor) Process(ctx context.Context, msg node.Message, effects *node.EffectHandler) error {
	if msg.IsControl {
		return p.processControl(msg)
	}
	return p.observe(ctx, msg, effects)
}

func (p *Processor) processControl(msg node.Message) error {
	switch msg.Control.Kind {
	case node.ControlConfig:
		newCfg, ok := msg.Control.Config.(Config)
		if !ok {
			return werror.Wrap(&werror.InvalidUserConfigError{Message: "debug config must be a debug.Config"})
		}
		if err := newCfg.Validate(); err != nil {
			return err
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		p.cfg = newCfg
		return p.rebuild()
	case node.ControlAck:
		p.reportLatency(msg.Control.Ack.CallData, true, "")
		return nil
	case node.ControlNack:
		p.reportLatency(msg.Control.Nack.CallData, false, msg.Control.Nack.Reason)
		return nil
	default:
		return nil
	}
}

func (p *Processor) observe(ctx context.Context, msg node.Message, effects *node.EffectHandler) error {
	p.mu.Lock()
	cfg := p.cfg
	renderLog := p.renderLog
	p.mu.Unlock()

	r := render(cfg.Mode, msg.PData)
	if cfg.shouldRender(r) {
		line := summarize(cfg.Verbosity, r)
		renderLog.Debug(line)
		if cfg.Output.Compress && cfg.Output.Kind == OutputFile {
			if _, err := transport.Compress(transport.Zstd, []byte(line)); err != nil {
				p.log.Warn("debug output compression failed", zap.Error(err))
			}
		}
	}

	if cfg.Verbosity == VerbosityDetailed && msg.Ctx != nil {
		msg.Ctx.Push(node.Frame{
			NodeID:    p.Name(),
			Interests: node.InterestAcks | node.InterestNacks,
			CallData:  stampNow(),
		})
	}

	if cfg.Output.Kind == OutputOutports {
		for _, port := range cfg.Output.Ports {
			if _, err := effects.SendMessageNonBlocking(port, msg); err != nil {
				p.log.Warn("debug outport send failed", zap.String("port", port), zap.Error(err))
			}
		}
	}

	return effects.SendMessage(ctx, outPort, msg)
}

// stampNow records the send-time microsecond timestamp as calldata. The
// source wording describes it as split across two 64-bit calldata words
// ("the subscription carries the send-time microseconds as two 64-bit
// words of calldata; on ack/nack pop they are recombined") — a legacy of
// a narrower native word size. node.CallData words are already 64 bits
// wide, so one microsecond timestamp fits entirely in word0; word1 is
// kept reserved (zero) rather than split for no reason, and reportLatency
// only ever reads word0 back.
func stampNow() node.CallData {
	return node.CallData{uint64(time.Now().UnixMicro())}
}

func (p *Processor) reportLatency(cd node.CallData, ok bool, reason string) {
	sent := time.UnixMicro(int64(cd[0]))
	latency := time.Since(sent)
	if ok {
		p.log.Debug("ack latency", zap.Duration("latency", latency))
	} else {
		p.log.Debug("nack latency", zap.Duration("latency", latency), zap.String("reason", reason))
	}
	if p.OnLatency != nil {
		p.OnLatency(ok, latency, reason)
	}
}

func summarize(v Verbosity, r rendered) string {
	switch v {
	case VerbosityBasic:
		return fmt.Sprintf("signal=%s records=%d", r.signal, r.logRecords)
	case VerbosityNormal:
		return fmt.Sprintf("signal=%s resource_logs=%d scope_logs=%d records=%d severity=%s",
			r.signal, r.resourceLogs, r.scopeLogs, r.logRecords, r.severityText)
	default:
		return fmt.Sprintf("signal=%s resource_logs=%d scope_logs=%d records=%d severity=%s event=%s body=%q attrs=%v",
			r.signal, r.resourceLogs, r.scopeLogs, r.logRecords, r.severityText, r.eventName, r.firstBody, r.attributes)
	}
}

func (p *Processor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}
