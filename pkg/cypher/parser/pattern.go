package parser

import (
	"strconv"

	"github.com/graphqlite/graphqlite/pkg/cypher/ast"
	"github.com/graphqlite/graphqlite/pkg/cypher/token"
)

// parsePattern parses `path (, path)*` (spec §4.2).
func (p *parser) parsePattern() (*ast.Pattern, error) {
	pos := p.pos_()
	pat := &ast.Pattern{Pos: pos}
	for {
		path, err := p.parsePathPattern()
		if err != nil {
			return nil, err
		}
		pat.Paths = append(pat.Paths, path)
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	return pat, nil
}

// parsePathPattern parses `[var =] [shortestPath(] node_pattern (rel_pattern node_pattern)* [)]`.
func (p *parser) parsePathPattern() (*ast.PathPattern, error) {
	pos := p.pos_()
	path := &ast.PathPattern{Pos: pos}

	if p.at(token.Identifier) && p.peekIsAssign() {
		name, _, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		path.Variable = name
		if _, err := p.expectOp("="); err != nil {
			return nil, err
		}
	}

	if p.atKeyword("SHORTESTPATH") {
		p.advance()
		path.ShortestPath = true
		if _, err := p.expectOp("("); err != nil {
			return nil, err
		}
		if err := p.parsePathBody(path); err != nil {
			return nil, err
		}
		if _, err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return path, nil
	}

	if err := p.parsePathBody(path); err != nil {
		return nil, err
	}
	return path, nil
}

// peekIsAssign reports whether the current identifier is immediately followed by '=', i.e. this
// is a named-path binding (`p = (a)-->(b)`) rather than the start of a node pattern.
func (p *parser) peekIsAssign() bool {
	if p.pos+1 >= len(p.toks) {
		return false
	}
	return p.toks[p.pos+1].IsOp("=")
}

func (p *parser) parsePathBody(path *ast.PathPattern) error {
	first, err := p.parseNodePattern()
	if err != nil {
		return err
	}
	path.Nodes = append(path.Nodes, first)
	for p.atOp("-") || p.atOp("<") {
		rel, err := p.parseRelPattern()
		if err != nil {
			return err
		}
		path.Rels = append(path.Rels, rel)
		node, err := p.parseNodePattern()
		if err != nil {
			return err
		}
		path.Nodes = append(path.Nodes, node)
	}
	return nil
}

func (p *parser) parseNodePattern() (*ast.NodePattern, error) {
	pos := p.pos_()
	if _, err := p.expectOp("("); err != nil {
		return nil, err
	}
	n := &ast.NodePattern{Pos: pos}
	if p.at(token.Identifier) {
		name, _, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		n.Variable = name
	}
	for p.at(token.Colon) {
		p.advance()
		lbl, _, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		n.Labels = append(n.Labels, lbl)
	}
	if p.at(token.LBrace) {
		props, err := p.parsePropertyMap()
		if err != nil {
			return nil, err
		}
		n.Properties = props
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return n, nil
}

// parseRelPattern parses one of: -[...]->  <-[...]-  -[...]-
func (p *parser) parseRelPattern() (*ast.RelPattern, error) {
	pos := p.pos_()
	rel := &ast.RelPattern{Pos: pos, MinHops: 1, MaxHops: 1}

	leftArrow := false
	if p.atOp("<") {
		leftArrow = true
		p.advance()
	}
	if _, err := p.expectOp("-"); err != nil {
		return nil, err
	}
	hasBracket := p.at(token.LBracket)
	if hasBracket {
		p.advance()
		if p.at(token.Identifier) {
			name, _, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			rel.Variable = name
		}
		if p.at(token.Colon) {
			p.advance()
			for {
				t, _, err := p.expectIdent()
				if err != nil {
					return nil, err
				}
				rel.Types = append(rel.Types, t)
				if p.atOp("|") {
					p.advance()
					continue
				}
				break
			}
		}
		if p.atOp("*") {
			p.advance()
			rel.VarLength = true
			rel.MinHops, rel.MaxHops = 1, -1
			if p.at(token.Integer) {
				min, err := strconv.Atoi(p.cur().Value)
				if err != nil {
					return nil, p.errorf("invalid hop count %q", p.cur().Text)
				}
				p.advance()
				rel.MinHops = min
				rel.MaxHops = min
			}
			if p.atOp("..") {
				p.advance()
				rel.MaxHops = -1
				if p.at(token.Integer) {
					max, err := strconv.Atoi(p.cur().Value)
					if err != nil {
						return nil, p.errorf("invalid hop count %q", p.cur().Text)
					}
					p.advance()
					rel.MaxHops = max
				}
			}
		}
		if p.at(token.LBrace) {
			props, err := p.parsePropertyMap()
			if err != nil {
				return nil, err
			}
			rel.Properties = props
		}
		if _, err := p.expectOp("]"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expectOp("-"); err != nil {
		return nil, err
	}
	rightArrow := false
	if p.atOp(">") {
		rightArrow = true
		p.advance()
	}

	switch {
	case leftArrow && !rightArrow:
		rel.Direction = ast.DirLeft
	case rightArrow && !leftArrow:
		rel.Direction = ast.DirRight
	default:
		rel.Direction = ast.DirBoth
	}
	return rel, nil
}

func (p *parser) parsePropertyMap() ([]ast.PropertyEntry, error) {
	if _, err := p.expectOp("{"); err != nil {
		return nil, err
	}
	var entries []ast.PropertyEntry
	if !p.at(token.RBrace) {
		for {
			pos := p.pos_()
			key, _, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectOp(":"); err != nil {
				return nil, err
			}
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			entries = append(entries, ast.PropertyEntry{Pos: pos, Key: key, Value: val})
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return entries, nil
}
