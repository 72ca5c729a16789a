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

package kql

import "github.com/open-telemetry/otap-dataflow-core/pkg/expr"

// Compile parses and lowers a KQL-tabular query into a pipeline ready for
// the record-set executor. The pipeline carries no constants pool of its
// own; folding against a shared constants pool, if any, happens downstream.
func Compile(queryText string, attached []string, defaultKey string) (*expr.Pipeline, error) {
	state := NewParserState(queryText, attached, defaultKey)
	exprs, err := Parse(state)
	if err != nil {
		return nil, err
	}
	return expr.NewPipeline(nil, exprs), nil
}
