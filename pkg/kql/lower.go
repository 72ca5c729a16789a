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

import (
	"strings"

	"github.com/open-telemetry/otap-dataflow-core/pkg/expr"
)

// lowerOps turns the parsed tabular pipeline into an ordered list of
// DataExpression. `where` always lowers to Discard wrapping Not(predicate),
// never the other way round, so downstream readers can assume one fixed
// convention for what Discard means.
func lowerOps(state *ParserState, ops []tabularOp) ([]expr.DataExpression, error) {
	out := make([]expr.DataExpression, 0, len(ops))
	root := expr.Accessor{}

	for _, op := range ops {
		switch op.name {
		case "where":
			out = append(out, &expr.DiscardTransform{
				Loc:       op.loc,
				Predicate: &expr.LogicalExpr{Loc: op.loc, Op: expr.OpNot, Right: asLogical(op.predicate)},
			})

		case "extend":
			for _, item := range op.assigns {
				if item.dest == "" {
					return nil, &SyntaxError{Line: op.loc.Line, Col: op.loc.Column, Message: "extend requires a destination name"}
				}
				if err := state.markExtended(item.dest); err != nil {
					return nil, err
				}
				out = append(out, &expr.SetTransform{
					Loc:         op.loc,
					Destination: expr.NewAccessor(strings.Split(item.dest, ".")...),
					Value:       item.value,
				})
			}

		case "project":
			// project with assignments behaves like extend followed by a
			// keep-only-these-keys projection; bare accessors just narrow.
			var keep []KeySelector
			for _, item := range op.assigns {
				if item.dest != "" {
					if err := state.markExtended(item.dest); err != nil {
						return nil, err
					}
					out = append(out, &expr.SetTransform{
						Loc:         op.loc,
						Destination: expr.NewAccessor(strings.Split(item.dest, ".")...),
						Value:       item.value,
					})
					keep = append(keep, KeySelector{Pattern: rootKey(item.dest)})
				} else if se, ok := item.value.(*expr.SourceExpr); ok && len(se.Accessor.Path) > 0 {
					keep = append(keep, KeySelector{Pattern: se.Accessor.Path[0]})
				}
			}
			out = append(out, &expr.RemoveMapKeysTransform{Loc: op.loc, Target: root, Keys: keep, Retain: true})

		case "project-keep", "project-away":
			retain := op.name == "project-keep"
			simple, full, err := classifySelectors(op.selectors)
			if err != nil {
				return nil, err
			}
			if len(full) == 0 {
				out = append(out, &expr.RemoveMapKeysTransform{Loc: op.loc, Target: root, Keys: simple, Retain: retain})
			} else {
				accessors := make([]expr.Accessor, 0, len(simple)+len(full))
				for _, s := range simple {
					accessors = append(accessors, expr.NewAccessor(s.Pattern))
				}
				accessors = append(accessors, full...)
				out = append(out, &expr.ReduceMapTransform{Loc: op.loc, Target: root, Accessors: accessors, Retain: retain})
			}
		}
	}
	return out, nil
}

// classifySelectors splits project-keep/project-away selectors into the
// simple map-key case (including glob patterns) handled by
// RemoveMapKeysTransform and the full-dotted-accessor-path case downgraded
// to ReduceMapTransform.
func classifySelectors(sels []string) (simple []KeySelector, full []expr.Accessor, err error) {
	for _, raw := range sels {
		if strings.Contains(raw, ".") {
			full = append(full, expr.NewAccessor(strings.Split(raw, ".")...))
			continue
		}
		simple = append(simple, ParseKeySelector(raw))
	}
	return simple, full, nil
}

func rootKey(dotted string) string {
	if i := strings.IndexByte(dotted, '.'); i >= 0 {
		return dotted[:i]
	}
	return dotted
}

// markExtended checks a destination's root segment; extend targets are not
// variables so this only guards against a destination accidentally
// shadowing a declared variable name.
func (s *ParserState) markExtended(dotted string) error {
	root := rootKey(dotted)
	if s.IsVariable(root) {
		return &SyntaxError{Message: "extend destination " + dotted + " collides with a declared variable " + root}
	}
	return nil
}
