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

package exec

import (
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.uber.org/zap"

	"github.com/open-telemetry/otap-dataflow-core/pkg/expr"
	"github.com/open-telemetry/otap-dataflow-core/pkg/value"
	"github.com/open-telemetry/otap-dataflow-core/pkg/werror"
)

// Executor runs a compiled pipeline over one record at a time, logging one
// diagnostic line per applied DataExpression at debug level and a warning
// when a step fails. A failing step ends the record's execution with an
// error, and ExecuteLogs/ExecuteLogsBytes return that first error for the
// whole batch.
type Executor struct {
	Pipeline *expr.Pipeline
	log      *zap.Logger
}

func NewExecutor(pipeline *expr.Pipeline, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{Pipeline: pipeline, log: log}
}

// ExecuteRecord runs every DataExpression in order against rec, stopping
// (and reporting drop=true) at the first one that discards the record.
// Attached carries read-only context (resource/scope attributes) available
// to AttachedExpr leaves.
func (e *Executor) ExecuteRecord(rec expr.Record, attached map[string]value.Value) (bool, error) {
	ctx := expr.NewEvalContext(e.Pipeline, rec, attached)
	for i, de := range e.Pipeline.Exprs {
		drop, err := de.Apply(ctx)
		if err != nil {
			e.log.Warn("data expression failed",
				zap.Int("step", i),
				zap.String("loc", de.Location().String()),
				zap.Error(err))
			return false, werror.WrapWithMsg(err, "executing pipeline step")
		}
		e.log.Debug("data expression applied", zap.Int("step", i), zap.Bool("drop", drop))
		if drop {
			return true, nil
		}
	}
	return false, nil
}

// LogsResult is the outcome of running a pipeline over a batch of OTLP
// logs: included holds records that survived, dropped holds records a
// Discard removed (kept, not discarded, for callers that want to route
// dropped telemetry to a side channel instead of losing it silently).
type LogsResult struct {
	Included plog.Logs
	Dropped  plog.Logs
}

// ExecuteLogsBytes decodes an OTLP ExportLogsServiceRequest-shaped proto
// buffer, runs the pipeline over each log record (the record-set executor's
// "source" holds its attributes, body, severity_text and severity_number),
// with resource/scope attributes available as attached context, and
// re-encodes the surviving and dropped records separately.
func (e *Executor) ExecuteLogsBytes(otlpBytes []byte) ([]byte, []byte, error) {
	var unmarshaler plog.ProtoUnmarshaler
	logs, err := unmarshaler.UnmarshalLogs(otlpBytes)
	if err != nil {
		return nil, nil, werror.Wrap(&werror.PdataConversionError{Message: "decoding OTLP logs: " + err.Error()})
	}

	result, err := e.ExecuteLogs(logs)
	if err != nil {
		return nil, nil, err
	}

	var marshaler plog.ProtoMarshaler
	included, err := marshaler.MarshalLogs(result.Included)
	if err != nil {
		return nil, nil, werror.Wrap(&werror.PdataConversionError{Message: "encoding included logs: " + err.Error()})
	}
	dropped, err := marshaler.MarshalLogs(result.Dropped)
	if err != nil {
		return nil, nil, werror.Wrap(&werror.PdataConversionError{Message: "encoding dropped logs: " + err.Error()})
	}
	return included, dropped, nil
}

// ExecuteLogs is ExecuteLogsBytes without the proto codec step, for callers
// that already hold decoded plog.Logs (e.g. a receiver that never
// serializes between stages).
func (e *Executor) ExecuteLogs(logs plog.Logs) (LogsResult, error) {
	included := plog.NewLogs()
	dropped := plog.NewLogs()

	rls := logs.ResourceLogs()
	for i := 0; i < rls.Len(); i++ {
		rl := rls.At(i)
		resourceAttrs := pdataMapToValue(rl.Resource().Attributes())

		sls := rl.ScopeLogs()
		for j := 0; j < sls.Len(); j++ {
			sl := sls.At(j)
			scopeAttrs := pdataMapToValue(sl.Scope().Attributes())

			recs := sl.LogRecords()
			for k := 0; k < recs.Len(); k++ {
				lr := recs.At(k)

				fields := map[string]value.Value{
					"severity_text":   value.String(lr.SeverityText()),
					"severity_number": value.Int64(int64(lr.SeverityNumber())),
					"body":            pdataToValue(lr.Body()),
					"attributes":      pdataMapToValue(lr.Attributes()),
				}
				rec := expr.NewMapRecord(fields)

				attached := map[string]value.Value{
					"resource": resourceAttrs,
					"scope":    scopeAttrs,
				}

				drop, err := e.ExecuteRecord(rec, attached)
				if err != nil {
					return LogsResult{}, err
				}

				dest := included
				if drop {
					dest = dropped
				}
				appendLogRecord(dest, rl, sl, lr, rec)
			}
		}
	}

	return LogsResult{Included: included, Dropped: dropped}, nil
}

// appendLogRecord copies lr (with attributes/body rewritten from rec, the
// pipeline's mutated source map) into the matching resource/scope group of
// dest, grouping the way the teacher's ArrowRecordsToOtlpLogs groups rows
// back into ResourceLogs/ScopeLogs by resource and scope identity.
func appendLogRecord(dest plog.Logs, srcRL plog.ResourceLogs, srcSL plog.ScopeLogs, lr plog.LogRecord, rec *expr.MapRecord) {
	rls := dest.ResourceLogs()
	var rl plog.ResourceLogs
	found := false
	for i := 0; i < rls.Len(); i++ {
		if ResourceEqual(rls.At(i).Resource(), srcRL.Resource()) {
			rl = rls.At(i)
			found = true
			break
		}
	}
	if !found {
		rl = rls.AppendEmpty()
		srcRL.Resource().CopyTo(rl.Resource())
		rl.SetSchemaUrl(srcRL.SchemaUrl())
	}

	sls := rl.ScopeLogs()
	var sl plog.ScopeLogs
	found = false
	for i := 0; i < sls.Len(); i++ {
		if sls.At(i).Scope().Name() == srcSL.Scope().Name() && sls.At(i).Scope().Version() == srcSL.Scope().Version() {
			sl = sls.At(i)
			found = true
			break
		}
	}
	if !found {
		sl = sls.AppendEmpty()
		srcSL.Scope().CopyTo(sl.Scope())
		sl.SetSchemaUrl(srcSL.SchemaUrl())
	}

	out := sl.LogRecords().AppendEmpty()
	lr.CopyTo(out)
	if attrs, ok := rec.Fields["attributes"]; ok {
		valueToPdataMap(attrs, out.Attributes())
	}
	if body, ok := rec.Fields["body"]; ok {
		valueToPdata(body, out.Body())
	}
	if sevText, ok := rec.Fields["severity_text"]; ok && sevText.Kind() == value.KindString {
		out.SetSeverityText(sevText.AsString())
	}
}

// ResourceEqual compares two Resources by their attribute set; it is a
// simpler identity than the teacher's common.ResourceId hash but serves the
// same grouping purpose for the modest batch sizes a pipeline stage handles
// at once.
func ResourceEqual(a, b pcommon.Resource) bool {
	am, bm := a.Attributes(), b.Attributes()
	if am.Len() != bm.Len() {
		return false
	}
	equal := true
	am.Range(func(k string, v pcommon.Value) bool {
		bv, ok := bm.Get(k)
		if !ok || bv.AsString() != v.AsString() {
			equal = false
			return false
		}
		return true
	})
	return equal
}
