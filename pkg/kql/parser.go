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
	"strconv"
	"strings"

	"github.com/open-telemetry/otap-dataflow-core/pkg/expr"
	"github.com/open-telemetry/otap-dataflow-core/pkg/value"
)

// tabularOp is one pipe-delimited stage of the query, before lowering.
type tabularOp struct {
	name string
	loc  expr.Loc
	// extend/project assignment items
	assigns []assignItem
	// project-keep/project-away selector items
	selectors []string
	// where predicate
	predicate expr.Expression
}

type assignItem struct {
	dest  string // dotted destination path, empty if item is a bare accessor
	value expr.Expression
}

type parser struct {
	state  *ParserState
	lex    *lexer
	tok    token
}

// Parse lowers a KQL-tabular query into an ordered list of DataExpression.
// state tracks declared variables / attached names / default source map key
// for this query.
func Parse(state *ParserState) ([]expr.DataExpression, error) {
	p := &parser{state: state, lex: newLexer(state.QueryText)}
	if err := p.advance(); err != nil {
		return nil, err
	}

	// Leading `identifier` names the source table; consumed and discarded.
	if p.tok.kind != tokIdent {
		return nil, &SyntaxError{Line: p.tok.line, Col: p.tok.col, Message: "expected source identifier"}
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	var ops []tabularOp
	for p.tok.kind == tokPipe {
		if err := p.advance(); err != nil {
			return nil, err
		}
		op, err := p.parseOp()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if p.tok.kind != tokEOF {
		return nil, &SyntaxError{Line: p.tok.line, Col: p.tok.col, Message: "unexpected trailing input"}
	}

	return lowerOps(state, ops)
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if p.tok.kind != k {
		return token{}, &SyntaxError{Line: p.tok.line, Col: p.tok.col, Message: "expected " + what}
	}
	t := p.tok
	return t, p.advance()
}

func (p *parser) parseOp() (tabularOp, error) {
	ident, err := p.expect(tokIdent, "operator name")
	if err != nil {
		return tabularOp{}, err
	}
	name := strings.ToLower(ident.text)
	// `project-keep` / `project-away` arrive as single idents: the lexer
	// treats '-' as part of an identifier (isIdentPart allows '-').
	loc := expr.Loc{Line: ident.line, Column: ident.col}

	switch name {
	case "where":
		predicate, err := p.parseExpr()
		if err != nil {
			return tabularOp{}, err
		}
		return tabularOp{name: name, loc: loc, predicate: predicate}, nil
	case "extend", "project":
		items, err := p.parseAssignList()
		if err != nil {
			return tabularOp{}, err
		}
		return tabularOp{name: name, loc: loc, assigns: items}, nil
	case "project-keep", "project-away":
		sels, err := p.parseSelectorList()
		if err != nil {
			return tabularOp{}, err
		}
		return tabularOp{name: name, loc: loc, selectors: sels}, nil
	default:
		return tabularOp{}, &SyntaxError{Line: ident.line, Col: ident.col, Message: "unknown operator " + ident.text}
	}
}

func (p *parser) parseAssignList() ([]assignItem, error) {
	var items []assignItem
	for {
		item, err := p.parseAssignOrAccessor()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.tok.kind != tokComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (p *parser) parseAssignOrAccessor() (assignItem, error) {
	if p.tok.kind != tokIdent {
		return assignItem{}, &SyntaxError{Line: p.tok.line, Col: p.tok.col, Message: "expected identifier"}
	}
	first := p.tok
	dest := first.text
	if err := p.advance(); err != nil {
		return assignItem{}, err
	}
	// accumulate dotted path for bare-accessor form, e.g. `resource.name`
	for p.tok.kind == tokDot {
		if err := p.advance(); err != nil {
			return assignItem{}, err
		}
		part, err := p.expect(tokIdent, "identifier after '.'")
		if err != nil {
			return assignItem{}, err
		}
		dest += "." + part.text
	}
	if p.tok.kind == tokAssign {
		if err := p.advance(); err != nil {
			return assignItem{}, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return assignItem{}, err
		}
		return assignItem{dest: dest, value: val}, nil
	}
	// bare accessor: project/extend item with no assignment
	return assignItem{dest: "", value: p.accessorExpr(strings.Split(dest, "."), expr.Loc{Line: first.line, Column: first.col})}, nil
}

func (p *parser) parseSelectorList() ([]string, error) {
	var sels []string
	for {
		sel, err := p.parseSelector()
		if err != nil {
			return nil, err
		}
		sels = append(sels, sel)
		if p.tok.kind != tokComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return sels, nil
}

func (p *parser) parseSelector() (string, error) {
	if p.tok.kind == tokString {
		s := p.tok.text
		return s, p.advance()
	}
	var sb strings.Builder
	for {
		switch p.tok.kind {
		case tokIdent:
			sb.WriteString(p.tok.text)
		case tokStar:
			sb.WriteString("*")
		case tokDot:
			sb.WriteString(".")
		default:
			if sb.Len() == 0 {
				return "", &SyntaxError{Line: p.tok.line, Col: p.tok.col, Message: "expected selector"}
			}
			return sb.String(), nil
		}
		if err := p.advance(); err != nil {
			return "", err
		}
	}
}

// ---- expression parsing (Pratt-style precedence climbing) ----

func (p *parser) parseExpr() (expr.Expression, error) { return p.parseOr() }

func (p *parser) parseOr() (expr.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOr {
		loc := expr.Loc{Line: p.tok.line, Column: p.tok.col}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &expr.LogicalExpr{Loc: loc, Op: expr.OpOr, Left: asLogical(left), Right: asLogical(right)}
	}
	return left, nil
}

func (p *parser) parseAnd() (expr.Expression, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokAnd {
		loc := expr.Loc{Line: p.tok.line, Column: p.tok.col}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &expr.LogicalExpr{Loc: loc, Op: expr.OpAnd, Left: asLogical(left), Right: asLogical(right)}
	}
	return left, nil
}

func (p *parser) parseEquality() (expr.Expression, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokEq || p.tok.kind == tokNeq {
		op := expr.OpEqual
		if p.tok.kind == tokNeq {
			op = expr.OpNotEqual
		}
		loc := expr.Loc{Line: p.tok.line, Column: p.tok.col}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &expr.LogicalExpr{Loc: loc, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseRelational() (expr.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	ops := map[tokenKind]expr.LogicalOp{
		tokLt: expr.OpLessThan, tokLte: expr.OpLessThanOrEqual,
		tokGt: expr.OpGreaterThan, tokGte: expr.OpGreaterThanOrEqual,
	}
	for {
		op, ok := ops[p.tok.kind]
		if !ok {
			return left, nil
		}
		loc := expr.Loc{Line: p.tok.line, Column: p.tok.col}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &expr.LogicalExpr{Loc: loc, Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (expr.Expression, error) {
	if p.tok.kind == tokNot {
		loc := expr.Loc{Line: p.tok.line, Column: p.tok.col}
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &expr.LogicalExpr{Loc: loc, Op: expr.OpNot, Right: asLogical(inner)}, nil
	}
	if p.tok.kind == tokMinus {
		loc := expr.Loc{Line: p.tok.line, Column: p.tok.col}
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &expr.NegateExpr{Loc: loc, Inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (expr.Expression, error) {
	loc := expr.Loc{Line: p.tok.line, Column: p.tok.col}
	switch p.tok.kind {
	case tokNumber:
		text := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if strings.Contains(text, ".") {
			d, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &SyntaxError{Line: loc.Line, Col: loc.Column, Message: "invalid number literal " + text}
			}
			return &expr.StaticExpr{Loc: loc, Val: value.Double(d)}, nil
		}
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, &SyntaxError{Line: loc.Line, Col: loc.Column, Message: "invalid number literal " + text}
		}
		return &expr.StaticExpr{Loc: loc, Val: value.Int64(i)}, nil
	case tokString:
		s := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &expr.StaticExpr{Loc: loc, Val: value.String(s)}, nil
	case tokTrue:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &expr.StaticExpr{Loc: loc, Val: value.Bool(true)}, nil
	case tokFalse:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &expr.StaticExpr{Loc: loc, Val: value.Bool(false)}, nil
	case tokNull:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &expr.StaticExpr{Loc: loc, Val: value.Null()}, nil
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case tokIdent:
		return p.parseIdentOrCall()
	default:
		return nil, &SyntaxError{Line: loc.Line, Col: loc.Column, Message: "unexpected token in expression"}
	}
}

func (p *parser) parseIdentOrCall() (expr.Expression, error) {
	first := p.tok
	loc := expr.Loc{Line: first.line, Column: first.col}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind == tokLParen {
		return p.parseCall(first.text, loc)
	}
	path := []string{first.text}
	for p.tok.kind == tokDot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		part, err := p.expect(tokIdent, "identifier after '.'")
		if err != nil {
			return nil, err
		}
		path = append(path, part.text)
	}
	return p.accessorExpr(path, loc), nil
}

func (p *parser) parseCall(name string, loc expr.Loc) (expr.Expression, error) {
	if err := p.advance(); err != nil { // consume '('
		return nil, err
	}
	var args []expr.Expression
	if p.tok.kind != tokRParen {
		for {
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.tok.kind != tokComma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return buildCall(strings.ToLower(name), loc, args)
}

func buildCall(name string, loc expr.Loc, args []expr.Expression) (expr.Expression, error) {
	oneArg := func() (expr.Expression, error) {
		if len(args) != 1 {
			return nil, &SyntaxError{Line: loc.Line, Col: loc.Column, Message: name + "() takes exactly one argument"}
		}
		return args[0], nil
	}
	switch name {
	case "length", "strlen":
		a, err := oneArg()
		if err != nil {
			return nil, err
		}
		return &expr.LengthExpr{Loc: loc, Inner: a}, nil
	case "tostring":
		a, err := oneArg()
		if err != nil {
			return nil, err
		}
		return &expr.ConvertExpr{Loc: loc, TargetType: value.KindString, Inner: a}, nil
	case "toint", "tolong":
		a, err := oneArg()
		if err != nil {
			return nil, err
		}
		return &expr.ConvertExpr{Loc: loc, TargetType: value.KindInt64, Inner: a}, nil
	case "todouble", "toreal":
		a, err := oneArg()
		if err != nil {
			return nil, err
		}
		return &expr.ConvertExpr{Loc: loc, TargetType: value.KindDouble, Inner: a}, nil
	case "tobool":
		a, err := oneArg()
		if err != nil {
			return nil, err
		}
		return &expr.ConvertExpr{Loc: loc, TargetType: value.KindBool, Inner: a}, nil
	case "todatetime":
		a, err := oneArg()
		if err != nil {
			return nil, err
		}
		return &expr.ConvertExpr{Loc: loc, TargetType: value.KindDateTime, Inner: a}, nil
	case "coalesce":
		if len(args) == 0 {
			return nil, &SyntaxError{Line: loc.Line, Col: loc.Column, Message: "coalesce() requires at least one argument"}
		}
		return &expr.CoalesceExpr{Loc: loc, List: args}, nil
	case "iff", "iif":
		if len(args) != 3 {
			return nil, &SyntaxError{Line: loc.Line, Col: loc.Column, Message: "iff() takes exactly three arguments"}
		}
		return &expr.ConditionalExpr{Loc: loc, Cond: asLogical(args[0]), True: args[1], False: args[2]}, nil
	default:
		return nil, &SyntaxError{Line: loc.Line, Col: loc.Column, Message: "unknown function " + name}
	}
}

func asLogical(e expr.Expression) expr.Expression {
	if _, ok := e.(*expr.LogicalExpr); ok {
		return e
	}
	return &expr.ScalarAsLogical{Scalar: e}
}

// accessorExpr resolves a dotted identifier path into Variable / Attached /
// Source, applying the parser state's default source map key when the
// first segment names neither a declared variable nor an attached context.
func (p *parser) accessorExpr(path []string, loc expr.Loc) expr.Expression {
	first := path[0]
	rest := path[1:]
	switch {
	case p.state.IsVariable(first):
		return &expr.VariableExpr{Loc: loc, Name: first, Accessor: expr.Accessor{Path: rest}}
	case p.state.IsAttached(first):
		return &expr.AttachedExpr{Loc: loc, Name: first, Accessor: expr.Accessor{Path: rest}}
	case first == "source":
		return &expr.SourceExpr{Loc: loc, Accessor: expr.Accessor{Path: rest}}
	case p.state.DefaultKey != "":
		full := append([]string{p.state.DefaultKey}, path...)
		return &expr.SourceExpr{Loc: loc, Accessor: expr.Accessor{Path: full}}
	default:
		return &expr.SourceExpr{Loc: loc, Accessor: expr.Accessor{Path: path}}
	}
}
