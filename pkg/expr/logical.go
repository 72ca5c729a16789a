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
	"github.com/open-telemetry/otap-dataflow-core/pkg/value"
	"github.com/open-telemetry/otap-dataflow-core/pkg/werror"
)

// LogicalOp enumerates the logical expression variants.
type LogicalOp int

const (
	OpNot LogicalOp = iota
	OpAnd
	OpOr
	OpEqual
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
)

// LogicalExpr yields bool. Not/And/Or operate on bool-convertible operands;
// Equal/NotEqual use equal_values; the ordering ops use compare_values.
type LogicalExpr struct {
	Loc   Loc
	Op    LogicalOp
	Left  Expression // unused for Not
	Right Expression
	// CaseInsensitive applies to Equal/NotEqual only.
	CaseInsensitive bool
}

func (e *LogicalExpr) Location() Loc                                  { return e.Loc }
func (e *LogicalExpr) TryResolveValueType(*Pipeline) (value.Kind, bool) { return value.KindBool, true }

func (e *LogicalExpr) TryResolveStatic(p *Pipeline) (ResolvedStatic, bool) {
	if e.Op == OpNot {
		r, ok := e.Right.TryResolveStatic(p)
		if !ok {
			return ResolvedStatic{}, false
		}
		b, convOk := value.ConvertToBool(r.Value)
		if !convOk {
			return ResolvedStatic{}, false
		}
		return ResolvedStatic{Value: value.Bool(!b)}, true
	}

	l, lok := e.Left.TryResolveStatic(p)
	r, rok := e.Right.TryResolveStatic(p)

	// Short-circuit And/Or when one side alone decides the outcome.
	if e.Op == OpAnd {
		if lok {
			if b, ok := value.ConvertToBool(l.Value); ok && !b {
				return ResolvedStatic{Value: value.Bool(false)}, true
			}
		}
		if rok {
			if b, ok := value.ConvertToBool(r.Value); ok && !b {
				return ResolvedStatic{Value: value.Bool(false)}, true
			}
		}
	}
	if e.Op == OpOr {
		if lok {
			if b, ok := value.ConvertToBool(l.Value); ok && b {
				return ResolvedStatic{Value: value.Bool(true)}, true
			}
		}
		if rok {
			if b, ok := value.ConvertToBool(r.Value); ok && b {
				return ResolvedStatic{Value: value.Bool(true)}, true
			}
		}
	}

	if !lok || !rok {
		return ResolvedStatic{}, false
	}

	v, err := e.apply(l.Value, r.Value)
	if err != nil {
		return ResolvedStatic{}, false
	}
	return ResolvedStatic{Value: v}, true
}

func (e *LogicalExpr) Evaluate(ctx *EvalContext) (value.Value, error) {
	if e.Op == OpNot {
		r, err := e.Right.Evaluate(ctx)
		if err != nil {
			return value.Value{}, err
		}
		b, ok := value.ConvertToBool(r)
		if !ok {
			return value.Value{}, &werror.TypeMismatchError{Location: e.Loc, Message: "Not requires a boolean-convertible operand"}
		}
		return value.Bool(!b), nil
	}

	if e.Op == OpAnd {
		l, err := e.Left.Evaluate(ctx)
		if err != nil {
			return value.Value{}, err
		}
		lb, ok := value.ConvertToBool(l)
		if ok && !lb {
			return value.Bool(false), nil
		}
		r, err := e.Right.Evaluate(ctx)
		if err != nil {
			return value.Value{}, err
		}
		rb, ok2 := value.ConvertToBool(r)
		if !ok || !ok2 {
			return value.Value{}, &werror.TypeMismatchError{Location: e.Loc, Message: "And requires boolean-convertible operands"}
		}
		return value.Bool(lb && rb), nil
	}

	if e.Op == OpOr {
		l, err := e.Left.Evaluate(ctx)
		if err != nil {
			return value.Value{}, err
		}
		lb, ok := value.ConvertToBool(l)
		if ok && lb {
			return value.Bool(true), nil
		}
		r, err := e.Right.Evaluate(ctx)
		if err != nil {
			return value.Value{}, err
		}
		rb, ok2 := value.ConvertToBool(r)
		if !ok || !ok2 {
			return value.Value{}, &werror.TypeMismatchError{Location: e.Loc, Message: "Or requires boolean-convertible operands"}
		}
		return value.Bool(lb || rb), nil
	}

	l, err := e.Left.Evaluate(ctx)
	if err != nil {
		return value.Value{}, err
	}
	r, err := e.Right.Evaluate(ctx)
	if err != nil {
		return value.Value{}, err
	}
	out, err := e.apply(l, r)
	if err != nil {
		return value.Value{}, werror.Wrap(err)
	}
	return out, nil
}

func (e *LogicalExpr) apply(l, r value.Value) (value.Value, error) {
	switch e.Op {
	case OpEqual:
		return value.Bool(value.EqualValues(l, r, e.CaseInsensitive)), nil
	case OpNotEqual:
		return value.Bool(!value.EqualValues(l, r, e.CaseInsensitive)), nil
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		c, err := value.CompareValues(l, r)
		if err != nil {
			return value.Value{}, err
		}
		switch e.Op {
		case OpGreaterThan:
			return value.Bool(c > 0), nil
		case OpGreaterThanOrEqual:
			return value.Bool(c >= 0), nil
		case OpLessThan:
			return value.Bool(c < 0), nil
		default:
			return value.Bool(c <= 0), nil
		}
	default:
		return value.Value{}, &werror.InternalError{Message: "unreachable logical op"}
	}
}

// ScalarAsLogical wraps a scalar expression so it can be used where a
// logical expression is expected: it yields the scalar's convert_to_bool.
type ScalarAsLogical struct {
	Scalar Expression
}

func (e *ScalarAsLogical) Location() Loc { return e.Scalar.Location() }
func (e *ScalarAsLogical) TryResolveValueType(*Pipeline) (value.Kind, bool) {
	return value.KindBool, true
}
func (e *ScalarAsLogical) TryResolveStatic(p *Pipeline) (ResolvedStatic, bool) {
	r, ok := e.Scalar.TryResolveStatic(p)
	if !ok {
		return ResolvedStatic{}, false
	}
	b, ok := value.ConvertToBool(r.Value)
	if !ok {
		return ResolvedStatic{}, false
	}
	return ResolvedStatic{Value: value.Bool(b)}, true
}
func (e *ScalarAsLogical) Evaluate(ctx *EvalContext) (value.Value, error) {
	v, err := e.Scalar.Evaluate(ctx)
	if err != nil {
		return value.Value{}, err
	}
	b, ok := value.ConvertToBool(v)
	if !ok {
		return value.Value{}, &werror.TypeMismatchError{Location: e.Location(), Message: "scalar is not boolean-convertible"}
	}
	return value.Bool(b), nil
}
