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

package expr

import (
	"path"
	"strings"

	"github.com/open-telemetry/otap-dataflow-core/pkg/value"
	"github.com/open-telemetry/otap-dataflow-core/pkg/werror"
)

// DataExpression is a pipeline-level expression: Transform
// mutates the record in place; Discard decides whether to drop it.
type DataExpression interface {
	Location() Loc
	// Apply mutates ctx.Source as needed and returns drop=true when the
	// record should be removed from the output set.
	Apply(ctx *EvalContext) (drop bool, err error)
}

// SetTransform implements KQL `extend k = e`: destination = Source.selectors
// ("k"), value = e. Destination must be a source accessor, not
// a variable.
type SetTransform struct {
	Loc         Loc
	Destination Accessor
	Value       Expression
}

func (t *SetTransform) Location() Loc { return t.Loc }
func (t *SetTransform) Apply(ctx *EvalContext) (bool, error) {
	v, err := t.Value.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	if err := ctx.Source.Set(t.Destination.Path, v); err != nil {
		return false, werror.Wrap(err)
	}
	return false, nil
}

// DiscardTransform drops the record when Predicate evaluates (after
// bool-conversion) to true. KQL `where predicate` is lowered to
// Discard.with_predicate(Not(predicate)) at lowering time — see pkg/kql —
// so the convention here is "Discard removes matches", consistently, never
// mixed with the opposite convention.
type DiscardTransform struct {
	Loc       Loc
	Predicate Expression
}

func (t *DiscardTransform) Location() Loc { return t.Loc }
func (t *DiscardTransform) Apply(ctx *EvalContext) (bool, error) {
	v, err := t.Predicate.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	b, ok := value.ConvertToBool(v)
	if !ok {
		return false, &werror.TypeMismatchError{Location: t.Loc, Message: "discard predicate is not boolean-convertible"}
	}
	return b, nil
}

// KeySelector is either a literal Key or a glob KeyPattern (containing
// "*").
type KeySelector struct {
	Pattern string
	IsGlob  bool
}

func (s KeySelector) Matches(key string) bool {
	if !s.IsGlob {
		return s.Pattern == key
	}
	ok, err := path.Match(s.Pattern, key)
	return err == nil && ok
}

// RemoveMapKeysTransform implements the simple-key-path case of project /
// project-keep / project-away: Retain keeps only the listed keys (or
// matching patterns), Remove drops them.
type RemoveMapKeysTransform struct {
	Loc      Loc
	Target   Accessor // usually the root source map
	Keys     []KeySelector
	Retain   bool // true = RemoveMapKeysExpression::Retain, false = ::Remove
}

func (t *RemoveMapKeysTransform) Location() Loc { return t.Loc }
func (t *RemoveMapKeysTransform) Apply(ctx *EvalContext) (bool, error) {
	root, ok := ctx.Source.Get(t.Target.Path)
	if !ok || root.Kind() != value.KindMap {
		return false, nil
	}
	m, ok := value.AsMutableMap(root)
	if !ok {
		return false, nil
	}
	for k := range m {
		matched := false
		for _, sel := range t.Keys {
			if sel.Matches(k) {
				matched = true
				break
			}
		}
		if matched != t.Retain {
			delete(m, k)
		}
	}
	return false, nil
}

// ReduceMapTransform is the downgraded form of project used when selectors
// are full accessor paths rather than simple map keys. It edits the map at
// Target in place using only each accessor's first path segment: Retain
// keeps every top-level key that is some accessor's first segment (the whole
// nested value, not just the accessed path); otherwise only single-segment
// accessors are removed and multi-segment ones are ignored.
type ReduceMapTransform struct {
	Loc       Loc
	Target    Accessor
	Accessors []Accessor
	Retain    bool
}

func (t *ReduceMapTransform) Location() Loc { return t.Loc }
func (t *ReduceMapTransform) Apply(ctx *EvalContext) (bool, error) {
	root, ok := ctx.Source.Get(t.Target.Path)
	if !ok || root.Kind() != value.KindMap {
		return false, nil
	}
	m, ok := value.AsMutableMap(root)
	if !ok {
		return false, nil
	}

	if t.Retain {
		keep := map[string]bool{}
		for _, a := range t.Accessors {
			if len(a.Path) > 0 {
				keep[a.Path[0]] = true
			}
		}
		for k := range m {
			if !keep[k] {
				delete(m, k)
			}
		}
		return false, nil
	}

	for _, a := range t.Accessors {
		if len(a.Path) == 1 {
			delete(m, a.Path[0])
		}
	}
	return false, nil
}

// ParseKeySelector turns a project-keep/project-away literal into a
// KeySelector: patterns containing "*" become KeyPattern, otherwise Key.
func ParseKeySelector(literal string) KeySelector {
	return KeySelector{Pattern: literal, IsGlob: strings.Contains(literal, "*")}
}
