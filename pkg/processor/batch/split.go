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
	"go.opentelemetry.io/collector/pdata/plog"

	"github.com/open-telemetry/otap-dataflow-core/pkg/exec"
)

// countLogRecords is the Items sizer: every LogRecord across every
// ResourceLogs/ScopeLogs group.
func countLogRecords(logs plog.Logs) int {
	n := 0
	rls := logs.ResourceLogs()
	for i := 0; i < rls.Len(); i++ {
		sls := rls.At(i).ScopeLogs()
		for j := 0; j < sls.Len(); j++ {
			n += sls.At(j).LogRecords().Len()
		}
	}
	return n
}

// mergePending splices pending's resource/scope/leaf hierarchy to the front
// of incoming's matching groups (by resource and scope identity), falling
// back to prepending pending's whole group when no match exists, so older
// data is always emitted ahead of newer data in the eventual split output.
func mergePending(pending, incoming plog.Logs) plog.Logs {
	unspliced := plog.NewResourceLogsSlice()
	prl := pending.ResourceLogs()
	for i := 0; i < prl.Len(); i++ {
		pRL := prl.At(i)
		matched := false
		irl := incoming.ResourceLogs()
		for j := 0; j < irl.Len(); j++ {
			if exec.ResourceEqual(pRL.Resource(), irl.At(j).Resource()) {
				spliceScopeLogsToFront(pRL, irl.At(j))
				matched = true
				break
			}
		}
		if !matched {
			pRL.CopyTo(unspliced.AppendEmpty())
		}
	}

	result := plog.NewLogs()
	tmp := plog.NewResourceLogsSlice()
	unspliced.MoveAndAppendTo(tmp)
	incoming.ResourceLogs().MoveAndAppendTo(tmp)
	tmp.MoveAndAppendTo(result.ResourceLogs())
	return result
}

func scopeEqual(a, b plog.ScopeLogs) bool {
	return a.Scope().Name() == b.Scope().Name() && a.Scope().Version() == b.Scope().Version()
}

func spliceScopeLogsToFront(pendingRL, targetRL plog.ResourceLogs) {
	unspliced := plog.NewScopeLogsSlice()
	psl := pendingRL.ScopeLogs()
	for i := 0; i < psl.Len(); i++ {
		pSL := psl.At(i)
		matched := false
		tsl := targetRL.ScopeLogs()
		for j := 0; j < tsl.Len(); j++ {
			if scopeEqual(pSL, tsl.At(j)) {
				spliceLogRecordsToFront(pSL, tsl.At(j))
				matched = true
				break
			}
		}
		if !matched {
			pSL.CopyTo(unspliced.AppendEmpty())
		}
	}

	tmp := plog.NewScopeLogsSlice()
	unspliced.MoveAndAppendTo(tmp)
	targetRL.ScopeLogs().MoveAndAppendTo(tmp)
	tmp.MoveAndAppendTo(targetRL.ScopeLogs())
}

func spliceLogRecordsToFront(pendingSL, targetSL plog.ScopeLogs) {
	tmp := plog.NewLogRecordSlice()
	pendingSL.LogRecords().MoveAndAppendTo(tmp)
	targetSL.LogRecords().MoveAndAppendTo(tmp)
	tmp.MoveAndAppendTo(targetSL.LogRecords())
}

// splitLogs greedily packs in's leaves into batches of at most maxLeaves,
// preserving resource/scope hierarchy: within one output batch each source
// scope group appears once, and a scope group with more leaves than the
// room left continues in the next batch under a copy of its resource and
// scope. The final, possibly undersized batch is returned
// separately as the new pending fragment.
func splitLogs(in plog.Logs, maxLeaves int) (full []plog.Logs, pending plog.Logs, pendingCount int) {
	if maxLeaves <= 0 {
		return []plog.Logs{in}, plog.NewLogs(), 0
	}

	current := plog.NewLogs()
	var currentRL plog.ResourceLogs
	var currentSL plog.ScopeLogs
	haveRL, haveSL := false, false
	count := 0

	flush := func() {
		full = append(full, current)
		current = plog.NewLogs()
		haveRL, haveSL = false, false
		count = 0
	}

	rls := in.ResourceLogs()
	for i := 0; i < rls.Len(); i++ {
		rl := rls.At(i)
		haveRL = false
		sls := rl.ScopeLogs()
		for j := 0; j < sls.Len(); j++ {
			sl := sls.At(j)
			haveSL = false
			lrs := sl.LogRecords()
			for k := 0; k < lrs.Len(); k++ {
				if !haveRL {
					currentRL = current.ResourceLogs().AppendEmpty()
					rl.Resource().CopyTo(currentRL.Resource())
					currentRL.SetSchemaUrl(rl.SchemaUrl())
					haveRL = true
				}
				if !haveSL {
					currentSL = currentRL.ScopeLogs().AppendEmpty()
					sl.Scope().CopyTo(currentSL.Scope())
					currentSL.SetSchemaUrl(sl.SchemaUrl())
					haveSL = true
				}
				lrs.At(k).CopyTo(currentSL.LogRecords().AppendEmpty())
				count++
				if count == maxLeaves {
					flush()
				}
			}
		}
	}

	return full, current, count
}
