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

// Package expr implements the expression tree: scalar,
// logical, transform and data expressions, with static resolution and
// constant folding over a pipeline-level constants pool.
package expr

import (
	"github.com/open-telemetry/otap-dataflow-core/pkg/value"
	"github.com/open-telemetry/otap-dataflow-core/pkg/werror"
)

// Loc is an alias so callers need not import werror directly for spans.
type Loc = werror.QueryLocation

// ResolvedStatic is what TryResolveStatic returns: either a reference into
// the pipeline's constant pool (Reference) or a value computed during
// folding (owned). Preserving this distinction avoids cloning large
// constants.
type ResolvedStatic struct {
	Value       value.Value
	IsReference bool
	ConstantID  int
}

// EvalContext is the per-record evaluation environment: the mutable source
// record, read-only attached data, and a fresh per-record variable scope.
type EvalContext struct {
	Pipeline  *Pipeline
	Source    Record
	Attached  map[string]value.Value
	Variables map[string]value.Value
}

func NewEvalContext(p *Pipeline, source Record, attached map[string]value.Value) *EvalContext {
	return &EvalContext{
		Pipeline:  p,
		Source:    source,
		Attached:  attached,
		Variables: map[string]value.Value{},
	}
}

// Expression is the common interface every scalar/logical/transform/data
// expression node implements.
type Expression interface {
	Location() Loc
	// TryResolveValueType returns the statically known result type of this
	// expression, if any, without evaluating it over a record.
	TryResolveValueType(p *Pipeline) (value.Kind, bool)
	// TryResolveStatic returns the compile-time constant value of this
	// expression, if it can be determined without a record.
	TryResolveStatic(p *Pipeline) (ResolvedStatic, bool)
	// Evaluate computes the expression's value over one record.
	Evaluate(ctx *EvalContext) (value.Value, error)
}

// Pipeline is an ordered sequence of DataExpression plus a constants pool.
// It is immutable after compilation.
type Pipeline struct {
	Constants []value.Value
	Exprs     []DataExpression
}

func NewPipeline(constants []value.Value, exprs []DataExpression) *Pipeline {
	return &Pipeline{Constants: constants, Exprs: exprs}
}

// ---- Static / constant leaves ----

// StaticExpr resolves to the value it was built with.
type StaticExpr struct {
	Loc Loc
	Val value.Value
}

func (e *StaticExpr) Location() Loc { return e.Loc }
func (e *StaticExpr) TryResolveValueType(*Pipeline) (value.Kind, bool) {
	return e.Val.Kind(), true
}
func (e *StaticExpr) TryResolveStatic(*Pipeline) (ResolvedStatic, bool) {
	return ResolvedStatic{Value: e.Val}, true
}
func (e *StaticExpr) Evaluate(*EvalContext) (value.Value, error) { return e.Val, nil }

// ConstantRefExpr stores only the constant_id; resolution borrows from the
// pipeline's constants pool.
type ConstantRefExpr struct {
	Loc  Loc
	ID   int
	Type value.Kind
}

func (e *ConstantRefExpr) Location() Loc { return e.Loc }
func (e *ConstantRefExpr) TryResolveValueType(*Pipeline) (value.Kind, bool) {
	return e.Type, true
}
func (e *ConstantRefExpr) TryResolveStatic(p *Pipeline) (ResolvedStatic, bool) {
	if e.ID < 0 || e.ID >= len(p.Constants) {
		return ResolvedStatic{}, false
	}
	return ResolvedStatic{Value: p.Constants[e.ID], IsReference: true, ConstantID: e.ID}, true
}
func (e *ConstantRefExpr) Evaluate(ctx *EvalContext) (value.Value, error) {
	if e.ID < 0 || e.ID >= len(ctx.Pipeline.Constants) {
		return value.Value{}, &werror.InternalError{Message: "constant id out of range"}
	}
	return ctx.Pipeline.Constants[e.ID], nil
}

// ConstantCopyExpr stores the inlined value for cases where a reference
// into the constants pool cannot be kept.
type ConstantCopyExpr struct {
	Loc Loc
	ID  int
	Val value.Value
}

func (e *ConstantCopyExpr) Location() Loc { return e.Loc }
func (e *ConstantCopyExpr) TryResolveValueType(*Pipeline) (value.Kind, bool) {
	return e.Val.Kind(), true
}
func (e *ConstantCopyExpr) TryResolveStatic(*Pipeline) (ResolvedStatic, bool) {
	return ResolvedStatic{Value: e.Val, ConstantID: e.ID}, true
}
func (e *ConstantCopyExpr) Evaluate(*EvalContext) (value.Value, error) { return e.Val, nil }

// ---- Source / Attached / Variable ----

// SourceExpr reads from the mutable record at runtime. Its resolved type is
// Map iff the accessor has no selectors.
type SourceExpr struct {
	Loc      Loc
	Accessor Accessor
}

func (e *SourceExpr) Location() Loc { return e.Loc }
func (e *SourceExpr) TryResolveValueType(*Pipeline) (value.Kind, bool) {
	if e.Accessor.IsEmpty() {
		return value.KindMap, true
	}
	return 0, false
}
func (e *SourceExpr) TryResolveStatic(*Pipeline) (ResolvedStatic, bool) { return ResolvedStatic{}, false }
func (e *SourceExpr) Evaluate(ctx *EvalContext) (value.Value, error) {
	v, ok := ctx.Source.Get(e.Accessor.Path)
	if !ok {
		return value.Null(), nil
	}
	return v, nil
}

// AttachedExpr reads read-only attached context (e.g. Resource,
// InstrumentationScope). Never statically resolvable.
type AttachedExpr struct {
	Loc      Loc
	Name     string
	Accessor Accessor
}

func (e *AttachedExpr) Location() Loc { return e.Loc }
func (e *AttachedExpr) TryResolveValueType(*Pipeline) (value.Kind, bool) { return 0, false }
func (e *AttachedExpr) TryResolveStatic(*Pipeline) (ResolvedStatic, bool) {
	return ResolvedStatic{}, false
}
func (e *AttachedExpr) Evaluate(ctx *EvalContext) (value.Value, error) {
	root, ok := ctx.Attached[e.Name]
	if !ok {
		return value.Null(), nil
	}
	if e.Accessor.IsEmpty() {
		return root, nil
	}
	cur := root
	for _, key := range e.Accessor.Path {
		if cur.Kind() != value.KindMap || cur.AsMap() == nil {
			return value.Null(), nil
		}
		next, ok := cur.AsMap().Get(key)
		if !ok {
			return value.Null(), nil
		}
		cur = next
	}
	return cur, nil
}

// VariableExpr is a per-record-scoped mutable slot, allocated fresh per
// query execution.
type VariableExpr struct {
	Loc      Loc
	Name     string
	Accessor Accessor
}

func (e *VariableExpr) Location() Loc { return e.Loc }
func (e *VariableExpr) TryResolveValueType(*Pipeline) (value.Kind, bool) { return 0, false }
func (e *VariableExpr) TryResolveStatic(*Pipeline) (ResolvedStatic, bool) {
	return ResolvedStatic{}, false
}
func (e *VariableExpr) Evaluate(ctx *EvalContext) (value.Value, error) {
	v, ok := ctx.Variables[e.Name]
	if !ok {
		return value.Null(), nil
	}
	if e.Accessor.IsEmpty() {
		return v, nil
	}
	cur := v
	for _, key := range e.Accessor.Path {
		if cur.Kind() != value.KindMap || cur.AsMap() == nil {
			return value.Null(), nil
		}
		next, ok := cur.AsMap().Get(key)
		if !ok {
			return value.Null(), nil
		}
		cur = next
	}
	return cur, nil
}

// SetVariable assigns a value to a variable slot in ctx.
func (ctx *EvalContext) SetVariable(name string, v value.Value) {
	ctx.Variables[name] = v
}
