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

package condense

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/open-telemetry/otap-dataflow-core/pkg/node"
	"github.com/open-telemetry/otap-dataflow-core/pkg/werror"
)

const (
	outPort       = "output"
	logAttrsTable = "log_attrs"
)

// DroppedCounter is invoked with the number of stale destination-key rows
// a batch dropped, the same injected-callback decoupling pattern fan-out
// (component I) uses for its upstream ack/nack delivery: the processor
// reports a count without owning wherever that count is aggregated.
type DroppedCounter func(n int)

// Processor is the condense-attributes processor: it rewrites a LogAttrs
// Arrow table in place, folding condensed keys into one delimited string
// under the configured destination key, leaving every other table in the
// batch group untouched.
type Processor struct {
	cfg     Config
	mem     memory.Allocator
	log     *zap.Logger
	OnDrops DroppedCounter
}

func New(cfg Config, log *zap.Logger) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{cfg: cfg, mem: memory.NewGoAllocator(), log: log}, nil
}

func (p *Processor) Name() string { return "condense" }

func (p *Processor) Process(ctx context.Context, msg node.Message, effects *node.EffectHandler) error {
	if msg.IsControl {
		return p.processControl(msg)
	}
	return p.transform(ctx, msg, effects)
}

func (p *Processor) processControl(msg node.Message) error {
	if msg.Control.Kind != node.ControlConfig {
		return nil
	}
	newCfg, ok := msg.Control.Config.(Config)
	if !ok {
		return werror.Wrap(&werror.InvalidUserConfigError{Message: "condense config must be a condense.Config"})
	}
	if err := newCfg.Validate(); err != nil {
		return err
	}
	p.cfg = newCfg
	return nil
}

func (p *Processor) transform(ctx context.Context, msg node.Message, effects *node.EffectHandler) error {
	group := msg.PData.Arrow
	if group == nil {
		return effects.SendMessage(ctx, outPort, msg)
	}

	rec, ok := group.Tables[logAttrsTable].(arrow.Record)
	if !ok {
		return effects.SendMessage(ctx, outPort, msg)
	}

	rebuilt, changed, dropped, err := condenseRecord(p.cfg, p.mem, rec)
	if err != nil {
		return err
	}
	if dropped > 0 {
		p.log.Warn("condense dropped stale destination-key rows", zap.Int("count", dropped), zap.String("destination_key", p.cfg.DestinationKey))
		if p.OnDrops != nil {
			p.OnDrops(dropped)
		}
	}
	if dictConfig.Stats {
		p.log.Debug("condense rebuilt record", zap.Int64("rows_in", rec.NumRows()), zap.Int64("rows_out", rebuilt.NumRows()))
	}
	if !changed {
		return effects.SendMessage(ctx, outPort, msg)
	}

	tables := make(map[string]any, len(group.Tables))
	for k, v := range group.Tables {
		tables[k] = v
	}
	tables[logAttrsTable] = rebuilt
	out := node.Payload{Signal: msg.PData.Signal, Arrow: &node.ArrowBatchGroup{BatchID: group.BatchID, Tables: tables}}
	return effects.SendMessage(ctx, outPort, node.DataMessage(out, msg.Ctx))
}
