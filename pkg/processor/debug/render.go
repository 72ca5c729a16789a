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
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/plog"

	"github.com/open-telemetry/otap-dataflow-core/pkg/node"
)

// rendered is the decoded view of one message used both for filter
// matching and for producing the verbosity-appropriate summary line. For
// an Arrow payload (no decoded OTLP bytes available) only signal is
// populated and record/attribute fields stay at their zero values, so
// attribute/event/severity filter predicates simply never match.
type rendered struct {
	signal       node.Signal
	resourceLogs int
	scopeLogs    int
	logRecords   int
	eventName    string
	severityText string
	attributes   map[string]string
	firstBody    string
}

// render decodes enough of a Payload to drive filtering and verbosity
// output. For Mode == ModeBatch it summarizes the whole request; for
// ModeSignal it reports on the first log record only, which is what the
// filter predicates (event name, severity text, attribute) key off of.
func render(mode Mode, p node.Payload) rendered {
	r := rendered{signal: p.Signal, attributes: map[string]string{}}
	if p.Signal != node.SignalLogs || len(p.Bytes) == 0 {
		return r
	}
	var u plog.ProtoUnmarshaler
	logs, err := u.UnmarshalLogs(p.Bytes)
	if err != nil {
		return r
	}
	r.resourceLogs = logs.ResourceLogs().Len()
	first := true
	rls := logs.ResourceLogs()
	for i := 0; i < rls.Len(); i++ {
		sls := rls.At(i).ScopeLogs()
		r.scopeLogs += sls.Len()
		for j := 0; j < sls.Len(); j++ {
			lrs := sls.At(j).LogRecords()
			r.logRecords += lrs.Len()
			if mode == ModeBatch {
				continue
			}
			for k := 0; k < lrs.Len() && first; k++ {
				lr := lrs.At(k)
				r.severityText = lr.SeverityText()
				r.firstBody = lr.Body().AsString()
				lr.Attributes().Range(func(k string, v pcommon.Value) bool {
					r.attributes[k] = v.AsString()
					return true
				})
				if ev, ok := lr.Attributes().Get("event.name"); ok {
					r.eventName = ev.AsString()
				}
				first = false
			}
		}
	}
	return r
}
