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

// NegateExpr negates a resolved int or double value; any other type raises
// TypeMismatch.
type NegateExpr struct {
	Loc   Loc
	Inner Expression
}

func (e *NegateExpr) Location() Loc { return e.Loc }
func (e *NegateExpr) TryResolveValueType(p *Pipeline) (value.Kind, bool) {
	return e.Inner.TryResolveValueType(p)
}
func (e *NegateExpr) TryResolveStatic(p *Pipeline) (ResolvedStatic, bool) {
	inner, ok := e.Inner.TryResolveStatic(p)
	if !ok {
		return ResolvedStatic{}, false
	}
	v, err := negate(inner.Value)
	if err != nil {
		return ResolvedStatic{}, false
	}
	return ResolvedStatic{Value: v}, true
}
func (e *NegateExpr) Evaluate(ctx *EvalContext) (value.Value, error) {
	v, err := e.Inner.Evaluate(ctx)
	if err != nil {
		return value.Value{}, err
	}
	out, err := negate(v)
	if err != nil {
		return value.Value{}, werror.Wrap(err)
	}
	return out, nil
}

func negate(v value.Value) (value.Value, error) {
	switch v.Kind() {
	case value.KindInt64:
		return value.Int64(-v.AsInt64()), nil
	case value.KindDouble:
		return value.Double(-v.AsDouble()), nil
	default:
		return value.Value{}, &werror.TypeMismatchError{Location: Loc{}, Message: "negate requires int or double, got " + v.Kind().String()}
	}
}

// LengthExpr resolves to Int64 length for string/array/map, Null otherwise.
type LengthExpr struct {
	Loc   Loc
	Inner Expression
}

func (e *LengthExpr) Location() Loc { return e.Loc }
func (e *LengthExpr) TryResolveValueType(*Pipeline) (value.Kind, bool) { return value.KindInt64, true }
func (e *LengthExpr) TryResolveStatic(p *Pipeline) (ResolvedStatic, bool) {
	inner, ok := e.Inner.TryResolveStatic(p)
	if !ok {
		return ResolvedStatic{}, false
	}
	return ResolvedStatic{Value: value.Length(inner.Value)}, true
}
func (e *LengthExpr) Evaluate(ctx *EvalContext) (value.Value, error) {
	v, err := e.Inner.Evaluate(ctx)
	if err != nil {
		return value.Value{}, err
	}
	return value.Length(v), nil
}

// ConvertExpr applies the conversion corresponding to TargetType.
type ConvertExpr struct {
	Loc        Loc
	TargetType value.Kind
	Inner      Expression
}

func (e *ConvertExpr) Location() Loc { return e.Loc }
func (e *ConvertExpr) TryResolveValueType(*Pipeline) (value.Kind, bool) { return e.TargetType, true }
func (e *ConvertExpr) TryResolveStatic(p *Pipeline) (ResolvedStatic, bool) {
	inner, ok := e.Inner.TryResolveStatic(p)
	if !ok {
		return ResolvedStatic{}, false
	}
	v, err := convertTo(e.TargetType, inner.Value)
	if err != nil {
		return ResolvedStatic{}, false
	}
	return ResolvedStatic{Value: v}, true
}
func (e *ConvertExpr) Evaluate(ctx *EvalContext) (value.Value, error) {
	v, err := e.Inner.Evaluate(ctx)
	if err != nil {
		return value.Value{}, err
	}
	out, err := convertTo(e.TargetType, v)
	if err != nil {
		return value.Value{}, werror.Wrap(err)
	}
	return out, nil
}

func convertTo(target value.Kind, v value.Value) (value.Value, error) {
	switch target {
	case value.KindBool:
		b, ok := value.ConvertToBool(v)
		if !ok {
			return value.Value{}, &werror.TypeMismatchError{Message: "cannot convert to bool"}
		}
		return value.Bool(b), nil
	case value.KindInt64:
		i, ok := value.ConvertToInteger(v)
		if !ok {
			return value.Value{}, &werror.TypeMismatchError{Message: "cannot convert to int64"}
		}
		return value.Int64(i), nil
	case value.KindDouble:
		d, ok := value.ConvertToDouble(v)
		if !ok {
			return value.Value{}, &werror.TypeMismatchError{Message: "cannot convert to double"}
		}
		return value.Double(d), nil
	case value.KindDateTime:
		dt, ok := value.ConvertToDateTime(v)
		if !ok {
			return value.Value{}, &werror.TypeMismatchError{Message: "cannot convert to datetime"}
		}
		return dt, nil
	case value.KindString:
		return value.String(value.ConvertToString(v)), nil
	default:
		return value.Value{}, &werror.TypeMismatchError{Message: "unsupported conversion target"}
	}
}

// CoalesceExpr resolves to the leftmost non-null expression in List. If all
// are statically known and all null, it resolves to Null. If an unknown
// (non-statically-resolvable) expression lies before a non-null one, static
// resolution is blocked.
type CoalesceExpr struct {
	Loc  Loc
	List []Expression
}

func (e *CoalesceExpr) Location() Loc { return e.Loc }

func (e *CoalesceExpr) TryResolveValueType(p *Pipeline) (value.Kind, bool) {
	for _, item := range e.List {
		if t, ok := item.TryResolveValueType(p); ok && t != value.KindNull {
			return t, true
		}
	}
	return 0, false
}

func (e *CoalesceExpr) TryResolveStatic(p *Pipeline) (ResolvedStatic, bool) {
	for _, item := range e.List {
		r, ok := item.TryResolveStatic(p)
		if !ok {
			return ResolvedStatic{}, false
		}
		if !r.Value.IsNull() {
			return r, true
		}
	}
	return ResolvedStatic{Value: value.Null()}, true
}

func (e *CoalesceExpr) Evaluate(ctx *EvalContext) (value.Value, error) {
	for _, item := range e.List {
		v, err := item.Evaluate(ctx)
		if err != nil {
			return value.Value{}, err
		}
		if !v.IsNull() {
			return v, nil
		}
	}
	return value.Null(), nil
}

// ConditionalExpr picks True or False statically when Cond is statically
// known; when both branches statically resolve to the same type, the
// conditional's type is that type even with a dynamic Cond.
type ConditionalExpr struct {
	Loc         Loc
	Cond        Expression
	True, False Expression
}

func (e *ConditionalExpr) Location() Loc { return e.Loc }

func (e *ConditionalExpr) TryResolveValueType(p *Pipeline) (value.Kind, bool) {
	tt, tok := e.True.TryResolveValueType(p)
	ft, fok := e.False.TryResolveValueType(p)
	if tok && fok && tt == ft {
		return tt, true
	}
	return 0, false
}

func (e *ConditionalExpr) TryResolveStatic(p *Pipeline) (ResolvedStatic, bool) {
	cond, ok := e.Cond.TryResolveStatic(p)
	if ok {
		b, convOk := value.ConvertToBool(cond.Value)
		if !convOk {
			return ResolvedStatic{}, false
		}
		if b {
			return e.True.TryResolveStatic(p)
		}
		return e.False.TryResolveStatic(p)
	}
	return ResolvedStatic{}, false
}

func (e *ConditionalExpr) Evaluate(ctx *EvalContext) (value.Value, error) {
	cond, err := e.Cond.Evaluate(ctx)
	if err != nil {
		return value.Value{}, err
	}
	b, ok := value.ConvertToBool(cond)
	if !ok {
		return value.Value{}, &werror.TypeMismatchError{Location: e.Loc, Message: "conditional requires a boolean-convertible condition"}
	}
	if b {
		return e.True.Evaluate(ctx)
	}
	return e.False.Evaluate(ctx)
}
