// Package parser implements a recursive-descent/precedence-climbing parser over the token stream
// produced by pkg/cypher/scanner, building the AST defined in pkg/cypher/ast (spec §4.2).
//
// On any syntax error the parser returns a nil *ast.Query and a single error carrying the
// offending token's text and source location — never a partial tree, per spec §4.2's error
// recovery rule.
package parser

import (
	"fmt"

	"github.com/graphqlite/graphqlite/pkg/cypher/ast"
	"github.com/graphqlite/graphqlite/pkg/cypher/scanner"
	"github.com/graphqlite/graphqlite/pkg/cypher/token"
	"github.com/graphqlite/graphqlite/pkg/errs"
)

// Parse scans and parses src, returning the query AST or the first error encountered.
func Parse(src string) (*ast.Query, error) {
	toks, err := lexAll(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if !p.at(token.EOF) {
		return nil, p.errorf("unexpected trailing input")
	}
	return q, nil
}

func lexAll(src string) ([]token.Token, error) {
	s := scanner.New(src)
	var toks []token.Token
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks, nil
		}
	}
}

type parser struct {
	toks []token.Token
	pos  int
}

func (p *parser) cur() token.Token  { return p.toks[p.pos] }
func (p *parser) at(k token.Kind) bool { return p.cur().Kind == k }
func (p *parser) atKeyword(kw string) bool { return p.cur().IsKeyword(kw) }
func (p *parser) atOp(op string) bool      { return p.cur().IsOp(op) }

func (p *parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) pos_() ast.Pos {
	t := p.cur()
	return ast.Pos{Line: t.Line, Column: t.Column, Length: len(t.Text)}
}

func (p *parser) errorf(format string, args ...any) error {
	t := p.cur()
	msg := fmt.Sprintf(format, args...)
	return errs.AtToken(errs.Parse, errs.Pos{Line: t.Line, Col: t.Column}, t.Text, "%s", msg)
}

func (p *parser) expectKeyword(kw string) (ast.Pos, error) {
	if !p.atKeyword(kw) {
		return ast.Pos{}, p.errorf("expected %s, got %q", kw, p.cur().Text)
	}
	pos := p.pos_()
	p.advance()
	return pos, nil
}

func (p *parser) expectOp(op string) (ast.Pos, error) {
	if !p.atOp(op) {
		return ast.Pos{}, p.errorf("expected %q, got %q", op, p.cur().Text)
	}
	pos := p.pos_()
	p.advance()
	return pos, nil
}

func (p *parser) expectIdent() (string, ast.Pos, error) {
	if !p.at(token.Identifier) && !p.at(token.BackquotedIdent) {
		return "", ast.Pos{}, p.errorf("expected identifier, got %q", p.cur().Text)
	}
	t := p.cur()
	p.advance()
	return t.Value, ast.Pos{Line: t.Line, Column: t.Column, Length: len(t.Text)}, nil
}

// ---- Query / single query / clauses ----

func (p *parser) parseQuery() (*ast.Query, error) {
	startPos := p.pos_()
	first, err := p.parseSingleQuery()
	if err != nil {
		return nil, err
	}
	q := &ast.Query{Pos: startPos, First: first}
	for p.atKeyword("UNION") {
		unionPos := p.pos_()
		p.advance()
		all := false
		if p.atKeyword("ALL") {
			all = true
			p.advance()
		}
		sq, err := p.parseSingleQuery()
		if err != nil {
			return nil, err
		}
		q.Unions = append(q.Unions, ast.UnionPart{Pos: unionPos, All: all, Query: sq})
	}
	return q, nil
}

func (p *parser) parseSingleQuery() (*ast.SingleQuery, error) {
	startPos := p.pos_()
	sq := &ast.SingleQuery{Pos: startPos}
	for {
		if p.atKeyword("UNION") || p.at(token.EOF) || p.at(token.Semi) {
			break
		}
		clause, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		sq.Clauses = append(sq.Clauses, clause)
		if _, isReturn := clause.(*ast.ReturnClause); isReturn {
			break
		}
	}
	return sq, nil
}

func (p *parser) parseClause() (ast.Clause, error) {
	switch {
	case p.atKeyword("OPTIONAL"):
		return p.parseMatchClause()
	case p.atKeyword("MATCH"):
		return p.parseMatchClause()
	case p.atKeyword("CREATE"):
		return p.parseCreateClause()
	case p.atKeyword("MERGE"):
		return p.parseMergeClause()
	case p.atKeyword("SET"):
		return p.parseSetClause()
	case p.atKeyword("REMOVE"):
		return p.parseRemoveClause()
	case p.atKeyword("DELETE"):
		return p.parseDeleteClause(false)
	case p.atKeyword("DETACH"):
		p.advance()
		if _, err := p.expectKeyword("DELETE"); err != nil {
			return nil, err
		}
		return p.parseDeleteClause(true)
	case p.atKeyword("WITH"):
		return p.parseWithClause()
	case p.atKeyword("RETURN"):
		return p.parseReturnClause()
	case p.atKeyword("UNWIND"):
		return p.parseUnwindClause()
	case p.atKeyword("CALL"):
		return p.parseCallClause()
	default:
		return nil, p.errorf("unexpected token %q, expected a clause keyword", p.cur().Text)
	}
}

func (p *parser) parseMatchClause() (ast.Clause, error) {
	pos := p.pos_()
	optional := false
	if p.atKeyword("OPTIONAL") {
		optional = true
		p.advance()
	}
	if _, err := p.expectKeyword("MATCH"); err != nil {
		return nil, err
	}
	pattern, err := p.parsePattern()
	if err != nil {
		return nil, err
	}
	var where ast.Expr
	if p.atKeyword("WHERE") {
		p.advance()
		where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return &ast.MatchClause{Pos: pos, Optional: optional, Pattern: pattern, Where: where}, nil
}

func (p *parser) parseCreateClause() (ast.Clause, error) {
	pos := p.pos_()
	p.advance() // CREATE
	pattern, err := p.parsePattern()
	if err != nil {
		return nil, err
	}
	return &ast.CreateClause{Pos: pos, Pattern: pattern}, nil
}

func (p *parser) parseMergeClause() (ast.Clause, error) {
	pos := p.pos_()
	p.advance() // MERGE
	path, err := p.parsePathPattern()
	if err != nil {
		return nil, err
	}
	mc := &ast.MergeClause{Pos: pos, Path: path}
	for p.atKeyword("ON") {
		p.advance()
		switch {
		case p.atKeyword("CREATE"):
			p.advance()
			items, err := p.parseSetItems()
			if err != nil {
				return nil, err
			}
			mc.OnCreate = append(mc.OnCreate, items...)
		case p.atKeyword("MATCH"):
			p.advance()
			items, err := p.parseSetItems()
			if err != nil {
				return nil, err
			}
			mc.OnMatch = append(mc.OnMatch, items...)
		default:
			return nil, p.errorf("expected CREATE or MATCH after ON")
		}
	}
	return mc, nil
}

func (p *parser) parseSetClause() (ast.Clause, error) {
	pos := p.pos_()
	p.advance() // SET
	items, err := p.parseSetItems()
	if err != nil {
		return nil, err
	}
	return &ast.SetClause{Pos: pos, Items: items}, nil
}

func (p *parser) parseSetItems() ([]ast.SetItem, error) {
	var items []ast.SetItem
	for {
		item, err := p.parseSetItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *parser) parseSetItem() (ast.SetItem, error) {
	pos := p.pos_()
	name, _, err := p.expectIdent()
	if err != nil {
		return ast.SetItem{}, err
	}
	switch {
	case p.at(token.Colon):
		var labels []string
		for p.at(token.Colon) {
			p.advance()
			lbl, _, err := p.expectIdent()
			if err != nil {
				return ast.SetItem{}, err
			}
			labels = append(labels, lbl)
		}
		return ast.SetItem{Pos: pos, Variable: name, Labels: labels, AddLabels: true}, nil
	case p.at(token.Dot):
		p.advance()
		prop, _, err := p.expectIdent()
		if err != nil {
			return ast.SetItem{}, err
		}
		if _, err := p.expectOp("="); err != nil {
			return ast.SetItem{}, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return ast.SetItem{}, err
		}
		return ast.SetItem{Pos: pos, Variable: name, Property: prop, Value: val}, nil
	default:
		return ast.SetItem{}, p.errorf("expected '.' or ':' after %q in SET item", name)
	}
}

func (p *parser) parseRemoveClause() (ast.Clause, error) {
	pos := p.pos_()
	p.advance() // REMOVE
	var items []ast.RemoveItem
	for {
		itemPos := p.pos_()
		name, _, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		switch {
		case p.at(token.Colon):
			var labels []string
			for p.at(token.Colon) {
				p.advance()
				lbl, _, err := p.expectIdent()
				if err != nil {
					return nil, err
				}
				labels = append(labels, lbl)
			}
			items = append(items, ast.RemoveItem{Pos: itemPos, Variable: name, Labels: labels})
		case p.at(token.Dot):
			p.advance()
			prop, _, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			items = append(items, ast.RemoveItem{Pos: itemPos, Variable: name, Property: prop})
		default:
			return nil, p.errorf("expected '.' or ':' after %q in REMOVE item", name)
		}
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	return &ast.RemoveClause{Pos: pos, Items: items}, nil
}

func (p *parser) parseDeleteClause(detach bool) (ast.Clause, error) {
	pos := p.pos_()
	p.advance() // DELETE
	var vars []string
	for {
		name, _, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		vars = append(vars, name)
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	return &ast.DeleteClause{Pos: pos, Detach: detach, Variables: vars}, nil
}

func (p *parser) parseWithClause() (ast.Clause, error) {
	pos := p.pos_()
	p.advance() // WITH
	distinct := false
	if p.atKeyword("DISTINCT") {
		distinct = true
		p.advance()
	}
	items, err := p.parseProjectionItems()
	if err != nil {
		return nil, err
	}
	wc := &ast.WithClause{Pos: pos, Distinct: distinct, Items: items}
	if p.atKeyword("WHERE") {
		p.advance()
		wc.Where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if err := p.parseOrderSkipLimit(&wc.OrderBy, &wc.Skip, &wc.Limit); err != nil {
		return nil, err
	}
	return wc, nil
}

func (p *parser) parseReturnClause() (ast.Clause, error) {
	pos := p.pos_()
	p.advance() // RETURN
	distinct := false
	if p.atKeyword("DISTINCT") {
		distinct = true
		p.advance()
	}
	items, err := p.parseProjectionItems()
	if err != nil {
		return nil, err
	}
	rc := &ast.ReturnClause{Pos: pos, Distinct: distinct, Items: items}
	if err := p.parseOrderSkipLimit(&rc.OrderBy, &rc.Skip, &rc.Limit); err != nil {
		return nil, err
	}
	return rc, nil
}

func (p *parser) parseOrderSkipLimit(order *[]ast.OrderItem, skip, limit *ast.Expr) error {
	if p.atKeyword("ORDER") {
		p.advance()
		if _, err := p.expectKeyword("BY"); err != nil {
			return err
		}
		for {
			itemPos := p.pos_()
			e, err := p.parseExpr()
			if err != nil {
				return err
			}
			desc := false
			if p.atKeyword("DESC") {
				desc = true
				p.advance()
			} else if p.atKeyword("ASC") {
				p.advance()
			}
			*order = append(*order, ast.OrderItem{Pos: itemPos, Expr: e, Descending: desc})
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
	}
	if p.atKeyword("SKIP") {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return err
		}
		*skip = e
	}
	if p.atKeyword("LIMIT") {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return err
		}
		*limit = e
	}
	return nil
}

func (p *parser) parseProjectionItems() ([]ast.ProjectionItem, error) {
	var items []ast.ProjectionItem
	for {
		itemPos := p.pos_()
		if p.atOp("*") {
			p.advance()
			items = append(items, ast.ProjectionItem{Pos: itemPos, Star: true})
		} else {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			alias := ""
			if p.atKeyword("AS") {
				p.advance()
				name, _, err := p.expectIdent()
				if err != nil {
					return nil, err
				}
				alias = name
			}
			items = append(items, ast.ProjectionItem{Pos: itemPos, Expr: e, Alias: alias})
		}
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *parser) parseUnwindClause() (ast.Clause, error) {
	pos := p.pos_()
	p.advance() // UNWIND
	src, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	name, _, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	return &ast.UnwindClause{Pos: pos, Source: src, Variable: name}, nil
}

func (p *parser) parseCallClause() (ast.Clause, error) {
	pos := p.pos_()
	p.advance() // CALL
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
	if _, err := p.expectOp("("); err != nil {
		return nil, err
	}
	var args []ast.Expr
	if !p.at(token.RParen) {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, e)
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
	cc := &ast.CallClause{Pos: pos, Name: name, Args: args}
	if p.atKeyword("YIELD") {
		p.advance()
		for {
			n, _, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			cc.Yield = append(cc.Yield, n)
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
	}
	return cc, nil
}
