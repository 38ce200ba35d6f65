package parser

import (
	"strconv"
	"strings"

	"github.com/graphqlite/graphqlite/pkg/cypher/ast"
	"github.com/graphqlite/graphqlite/pkg/cypher/token"
)

// Expression precedence, low to high (spec §4.2):
//   OR < AND < NOT < comparison < string ops < additive < multiplicative < unary '-' < postfix

func (p *parser) parseExpr() (ast.Expr, error) { return p.parseOr() }

func (p *parser) parseOr() (ast.Expr, error) {
	left, err := p.parseXor()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("OR") {
		pos := p.pos_()
		p.advance()
		right, err := p.parseXor()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Pos: pos, Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseXor() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("XOR") {
		pos := p.pos_()
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Pos: pos, Op: "XOR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("AND") {
		pos := p.pos_()
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Pos: pos, Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (ast.Expr, error) {
	if p.atKeyword("NOT") {
		pos := p.pos_()
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Pos: pos, Op: "NOT", Operand: operand}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{"=": true, "<>": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseStringOp()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == token.Eq || p.cur().Kind == token.Lt || p.cur().Kind == token.Gt || (p.cur().Kind == token.Operator && comparisonOps[p.cur().Value]) {
		op := p.cur().Value
		if !comparisonOps[op] {
			break
		}
		pos := p.pos_()
		p.advance()
		right, err := p.parseStringOp()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Pos: pos, Op: op, Left: left, Right: right}
	}
	return left, nil
}

// parseStringOp handles STARTS WITH, ENDS WITH, CONTAINS, IN, IS NULL, IS NOT NULL, =~.
func (p *parser) parseStringOp() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.atKeyword("STARTS"):
			pos := p.pos_()
			p.advance()
			if _, err := p.expectKeyword("WITH"); err != nil {
				return nil, err
			}
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Pos: pos, Op: "STARTS WITH", Left: left, Right: right}
		case p.atKeyword("ENDS"):
			pos := p.pos_()
			p.advance()
			if _, err := p.expectKeyword("WITH"); err != nil {
				return nil, err
			}
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Pos: pos, Op: "ENDS WITH", Left: left, Right: right}
		case p.atKeyword("CONTAINS"):
			pos := p.pos_()
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Pos: pos, Op: "CONTAINS", Left: left, Right: right}
		case p.atKeyword("IN"):
			pos := p.pos_()
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Pos: pos, Op: "IN", Left: left, Right: right}
		case p.atKeyword("IS"):
			pos := p.pos_()
			p.advance()
			negate := false
			if p.atKeyword("NOT") {
				negate = true
				p.advance()
			}
			if _, err := p.expectKeyword("NULL"); err != nil {
				return nil, err
			}
			left = &ast.IsNullCheck{Pos: pos, Operand: left, Negate: negate}
		case p.atOp("=~"):
			pos := p.pos_()
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Pos: pos, Op: "=~", Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

func (p *parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.atOp("+") || p.atOp("-") {
		op := p.cur().Value
		pos := p.pos_()
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Pos: pos, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.atOp("*") || p.atOp("/") || p.atOp("%") || p.atOp("^") {
		op := p.cur().Value
		pos := p.pos_()
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Pos: pos, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (ast.Expr, error) {
	if p.atOp("-") {
		pos := p.pos_()
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Pos: pos, Op: "-", Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix handles property access `.key` and index access `[expr]` chained onto a primary.
func (p *parser) parsePostfix() (ast.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at(token.Dot):
			pos := p.pos_()
			p.advance()
			key, _, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			e = &ast.PropertyAccess{Pos: pos, Target: e, Key: key}
		case p.at(token.LBracket):
			pos := p.pos_()
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectOp("]"); err != nil {
				return nil, err
			}
			e = &ast.IndexAccess{Pos: pos, Target: e, Index: idx}
		default:
			return e, nil
		}
	}
}

func (p *parser) parsePrimary() (ast.Expr, error) {
	pos := p.pos_()
	switch {
	case p.at(token.Integer):
		text := p.cur().Value
		p.advance()
		base := 10
		clean := text
		if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
			base = 16
			clean = text[2:]
		}
		v, err := strconv.ParseInt(clean, base, 64)
		if err != nil {
			return nil, p.errorf("invalid integer literal %q", text)
		}
		return &ast.Literal{Pos: pos, Kind: ast.LitInteger, Int: v}, nil
	case p.at(token.Decimal):
		text := p.cur().Value
		p.advance()
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, p.errorf("invalid decimal literal %q", text)
		}
		return &ast.Literal{Pos: pos, Kind: ast.LitFloat, Flt: v}, nil
	case p.at(token.String):
		text := p.cur().Value
		p.advance()
		return &ast.Literal{Pos: pos, Kind: ast.LitString, Str: text}, nil
	case p.atKeyword("TRUE"):
		p.advance()
		return &ast.Literal{Pos: pos, Kind: ast.LitBool, Bool: true}, nil
	case p.atKeyword("FALSE"):
		p.advance()
		return &ast.Literal{Pos: pos, Kind: ast.LitBool, Bool: false}, nil
	case p.atKeyword("NULL"):
		p.advance()
		return &ast.Literal{Pos: pos, Kind: ast.LitNull}, nil
	case p.at(token.Parameter):
		name := p.cur().Value
		p.advance()
		return &ast.Parameter{Pos: pos, Name: name}, nil
	case p.atKeyword("CASE"):
		return p.parseCaseExpr()
	case p.atKeyword("REDUCE"):
		return p.parseReduce()
	case p.atKeyword("EXISTS"):
		return p.parseExistsPredicate()
	case p.at(token.LParen):
		return p.parseParenExprOrPattern()
	case p.at(token.LBracket):
		return p.parseListLiteralOrComprehension()
	case p.at(token.LBrace):
		entries, err := p.parsePropertyMap()
		if err != nil {
			return nil, err
		}
		return &ast.MapLiteral{Pos: pos, Entries: entries}, nil
	case p.at(token.Identifier):
		return p.parseIdentOrFuncCall()
	default:
		return nil, p.errorf("unexpected token %q in expression", p.cur().Text)
	}
}

func (p *parser) parseCaseExpr() (ast.Expr, error) {
	pos := p.pos_()
	p.advance() // CASE
	ce := &ast.CaseExpr{Pos: pos}
	if !p.atKeyword("WHEN") {
		test, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Test = test
	}
	for p.atKeyword("WHEN") {
		whenPos := p.pos_()
		p.advance()
		when, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKeyword("THEN"); err != nil {
			return nil, err
		}
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Whens = append(ce.Whens, ast.CaseWhen{Pos: whenPos, When: when, Then: then})
	}
	if p.atKeyword("ELSE") {
		p.advance()
		def, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Default = def
	}
	if _, err := p.expectKeyword("END"); err != nil {
		return nil, err
	}
	return ce, nil
}

func (p *parser) parseReduce() (ast.Expr, error) {
	pos := p.pos_()
	p.advance() // REDUCE
	if _, err := p.expectOp("("); err != nil {
		return nil, err
	}
	acc, _, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp("="); err != nil {
		return nil, err
	}
	init, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(","); err != nil {
		return nil, err
	}
	variable, _, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("IN"); err != nil {
		return nil, err
	}
	src, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp("|"); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return &ast.Reduce{Pos: pos, Accumulator: acc, Init: init, Variable: variable, Source: src, Body: body}, nil
}

func (p *parser) parseExistsPredicate() (ast.Expr, error) {
	pos := p.pos_()
	p.advance() // EXISTS
	if _, err := p.expectOp("("); err != nil {
		return nil, err
	}
	// EXISTS(n.prop) is a property-existence check; EXISTS((a)-->(b)) is a pattern predicate.
	if p.at(token.LParen) {
		path, err := p.parsePathPattern()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return &ast.PatternPredicate{Pos: pos, Path: path}, nil
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return &ast.FuncCall{Pos: pos, Name: "EXISTS", Args: []ast.Expr{e}}, nil
}

// parseParenExprOrPattern disambiguates `(expr)` from a bare pattern used as a boolean predicate,
// e.g. `WHERE (a)-->(b)`: when looksLikePathPattern finds a '-' or '<' right after the matching
// ')', the tokens are parsed as a path pattern, otherwise as a parenthesized expression.
func (p *parser) parseParenExprOrPattern() (ast.Expr, error) {
	if p.looksLikePathPattern() {
		pos := p.pos_()
		path, err := p.parsePathPattern()
		if err != nil {
			return nil, err
		}
		return &ast.PatternPredicate{Pos: pos, Path: path}, nil
	}
	p.advance() // '('
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return e, nil
}

// looksLikePathPattern peeks past the matching ')' to see whether a '-' or '<' relationship arrow
// follows, which only happens in a genuine path pattern, never a parenthesized expression.
func (p *parser) looksLikePathPattern() bool {
	depth := 0
	for i := p.pos; i < len(p.toks); i++ {
		t := p.toks[i]
		switch {
		case t.IsOp("("):
			depth++
		case t.IsOp(")"):
			depth--
			if depth == 0 {
				if i+1 < len(p.toks) {
					nxt := p.toks[i+1]
					return nxt.IsOp("-") || nxt.IsOp("<")
				}
				return false
			}
		case t.Kind == token.EOF:
			return false
		}
	}
	return false
}

func (p *parser) parseListLiteralOrComprehension() (ast.Expr, error) {
	pos := p.pos_()
	p.advance() // '['
	if p.looksLikeComprehension() {
		variable, _, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKeyword("IN"); err != nil {
			return nil, err
		}
		src, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		lc := &ast.ListComprehension{Pos: pos, Variable: variable, Source: src}
		if p.atKeyword("WHERE") {
			p.advance()
			where, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			lc.Where = where
		}
		if p.atOp("|") {
			p.advance()
			proj, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			lc.Proj = proj
		}
		if _, err := p.expectOp("]"); err != nil {
			return nil, err
		}
		return lc, nil
	}

	list := &ast.ListLiteral{Pos: pos}
	if !p.at(token.RBracket) {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			list.Elements = append(list.Elements, e)
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expectOp("]"); err != nil {
		return nil, err
	}
	return list, nil
}

// looksLikeComprehension detects `identifier IN` immediately inside the just-opened '['.
func (p *parser) looksLikeComprehension() bool {
	if !p.at(token.Identifier) {
		return false
	}
	if p.pos+1 >= len(p.toks) {
		return false
	}
	return p.toks[p.pos+1].IsKeyword("IN")
}

func (p *parser) parseIdentOrFuncCall() (ast.Expr, error) {
	pos := p.pos_()
	name, _, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	for p.at(token.Dot) {
		p.advance()
		part, _, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		name += "." + part
	}
	if !p.at(token.LParen) {
		return &ast.Ident{Pos: pos, Name: name}, nil
	}
	p.advance() // '('
	fc := &ast.FuncCall{Pos: pos, Name: name}
	if p.atKeyword("DISTINCT") {
		fc.Distinct = true
		p.advance()
	}
	if p.atOp("*") && nameIsCount(name) {
		p.advance()
		fc.Args = []ast.Expr{&ast.Ident{Pos: pos, Name: "*"}}
	} else if !p.at(token.RParen) {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			fc.Args = append(fc.Args, e)
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return fc, nil
}

func nameIsCount(name string) bool {
	return strings.EqualFold(name, "count")
}
