// Package scanner implements the hand-written Cypher scanner (spec §4.1): characters to tokens,
// the keyword table, string/number lexing, and error location tracking.
//
// Contract (spec §4.1): a Scanner is single-threaded and bound to one input string for its whole
// lifetime — construct it with New, call Next repeatedly until it returns an EOF token, and treat
// any returned error as sticky: once Next returns an error, every subsequent call returns EOF.
package scanner

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/graphqlite/graphqlite/pkg/cypher/token"
	"github.com/graphqlite/graphqlite/pkg/errs"
)

// Scanner tokenizes a single Cypher query string.
type Scanner struct {
	src    string
	pos    int // byte offset of the next unread rune
	line   int
	col    int
	failed bool
}

// New binds a Scanner to src. The byte stream is assumed to be UTF-8, per spec §4.1.
func New(src string) *Scanner {
	return &Scanner{src: src, line: 1, col: 1}
}

func (s *Scanner) peekByte() (byte, bool) {
	if s.pos >= len(s.src) {
		return 0, false
	}
	return s.src[s.pos], true
}

func (s *Scanner) peekAt(off int) (byte, bool) {
	if s.pos+off >= len(s.src) {
		return 0, false
	}
	return s.src[s.pos+off], true
}

func (s *Scanner) advance() (rune, int) {
	if s.pos >= len(s.src) {
		return 0, 0
	}
	r, size := utf8.DecodeRuneInString(s.src[s.pos:])
	s.pos += size
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return r, size
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
func isAlphaNum(b byte) bool { return isAlpha(b) || isDigit(b) }

// Next returns the next token. After an error or at end of input it returns an EOF token forever.
func (s *Scanner) Next() (token.Token, error) {
	if s.failed {
		return token.Token{Kind: token.EOF, Line: s.line, Column: s.col}, nil
	}
	s.skipTrivia()

	startLine, startCol := s.line, s.col
	b, ok := s.peekByte()
	if !ok {
		return token.Token{Kind: token.EOF, Line: startLine, Column: startCol}, nil
	}

	switch {
	case isDigit(b):
		return s.scanNumber(startLine, startCol)
	case b == '"' || b == '\'':
		return s.scanString(startLine, startCol, b)
	case b == '`':
		return s.scanBackquoted(startLine, startCol)
	case b == '$':
		return s.scanParameter(startLine, startCol)
	case isAlpha(b):
		return s.scanWord(startLine, startCol)
	default:
		return s.scanOperatorOrPunct(startLine, startCol)
	}
}

func (s *Scanner) skipTrivia() {
	for {
		b, ok := s.peekByte()
		if !ok {
			return
		}
		switch {
		case b == ' ' || b == '\t' || b == '\r' || b == '\n':
			s.advance()
		case b == '/' && peekIs(s, 1, '/'):
			for {
				b, ok := s.peekByte()
				if !ok || b == '\n' {
					break
				}
				s.advance()
			}
		default:
			return
		}
	}
}

func peekIs(s *Scanner, off int, want byte) bool {
	b, ok := s.peekAt(off)
	return ok && b == want
}

func (s *Scanner) fail(err error) (token.Token, error) {
	s.failed = true
	return token.Token{Kind: token.EOF, Line: s.line, Column: s.col}, err
}

func (s *Scanner) scanNumber(line, col int) (token.Token, error) {
	start := s.pos
	isHex := false
	if peekIs(s, 0, '0') && (peekIs(s, 1, 'x') || peekIs(s, 1, 'X')) {
		isHex = true
		s.advance()
		s.advance()
		for {
			b, ok := s.peekByte()
			if !ok || !isHexDigit(b) {
				break
			}
			s.advance()
		}
	} else {
		for {
			b, ok := s.peekByte()
			if !ok || !isDigit(b) {
				break
			}
			s.advance()
		}
	}

	isDecimal := false
	if !isHex {
		if peekIs(s, 0, '.') {
			if b, ok := s.peekAt(1); ok && isDigit(b) {
				isDecimal = true
				s.advance() // '.'
				for {
					b, ok := s.peekByte()
					if !ok || !isDigit(b) {
						break
					}
					s.advance()
				}
			}
		}
		if b, ok := s.peekByte(); ok && (b == 'e' || b == 'E') {
			save := s.pos
			s.advance()
			if b2, ok := s.peekByte(); ok && (b2 == '+' || b2 == '-') {
				s.advance()
			}
			if b3, ok := s.peekByte(); ok && isDigit(b3) {
				isDecimal = true
				for {
					b, ok := s.peekByte()
					if !ok || !isDigit(b) {
						break
					}
					s.advance()
				}
			} else {
				s.pos = save // not actually an exponent; back off
			}
		}
	}

	text := s.src[start:s.pos]
	if isDecimal {
		return token.Token{Kind: token.Decimal, Value: text, Text: text, Line: line, Column: col}, nil
	}

	tok := token.Token{Kind: token.Integer, Value: text, Text: text, Line: line, Column: col}
	base := 10
	check := text
	if isHex {
		base = 16
		check = text[2:]
	}
	if _, err := strconv.ParseInt(check, base, 64); err != nil {
		return s.fail(errs.At(errs.Scanner, errs.Pos{Line: line, Col: col}, "integer literal overflow: %s", text))
	}
	return tok, nil
}

func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func (s *Scanner) scanString(line, col int, quote byte) (token.Token, error) {
	start := s.pos
	s.advance() // opening quote
	var sb strings.Builder
	for {
		b, ok := s.peekByte()
		if !ok {
			return s.fail(errs.At(errs.Scanner, errs.Pos{Line: line, Col: col}, "unterminated string literal"))
		}
		if b == quote {
			s.advance()
			break
		}
		if b == '\\' {
			s.advance()
			esc, ok := s.peekByte()
			if !ok {
				return s.fail(errs.At(errs.Scanner, errs.Pos{Line: line, Col: col}, "unterminated string literal"))
			}
			switch esc {
			case 'n':
				sb.WriteByte('\n')
				s.advance()
			case 'r':
				sb.WriteByte('\r')
				s.advance()
			case 't':
				sb.WriteByte('\t')
				s.advance()
			case 'b':
				sb.WriteByte('\b')
				s.advance()
			case 'f':
				sb.WriteByte('\f')
				s.advance()
			case '\\':
				sb.WriteByte('\\')
				s.advance()
			case '"':
				sb.WriteByte('"')
				s.advance()
			case '\'':
				sb.WriteByte('\'')
				s.advance()
			case 'u':
				s.advance()
				if r, ok := s.scanUnicodeEscape(); ok {
					sb.WriteRune(r)
				} else {
					sb.WriteString(`\u`)
				}
			default:
				// Invalid escapes are preserved literally, per spec §4.1.
				sb.WriteByte('\\')
				r, _ := s.advance()
				sb.WriteRune(r)
			}
			continue
		}
		r, _ := s.advance()
		sb.WriteRune(r)
	}
	text := s.src[start:s.pos]
	return token.Token{Kind: token.String, Value: sb.String(), Text: text, Line: line, Column: col}, nil
}

func (s *Scanner) scanUnicodeEscape() (rune, bool) {
	if s.pos+4 > len(s.src) {
		return 0, false
	}
	hex := s.src[s.pos : s.pos+4]
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, false
	}
	for i := 0; i < 4; i++ {
		s.advance()
	}
	return rune(v), true
}

func (s *Scanner) scanBackquoted(line, col int) (token.Token, error) {
	start := s.pos
	s.advance() // opening backtick
	var sb strings.Builder
	for {
		b, ok := s.peekByte()
		if !ok {
			return s.fail(errs.At(errs.Scanner, errs.Pos{Line: line, Col: col}, "unterminated backquoted identifier"))
		}
		if b == '`' {
			s.advance()
			break
		}
		r, _ := s.advance()
		sb.WriteRune(r)
	}
	text := s.src[start:s.pos]
	return token.Token{Kind: token.BackquotedIdent, Value: sb.String(), Text: text, Line: line, Column: col}, nil
}

func (s *Scanner) scanParameter(line, col int) (token.Token, error) {
	start := s.pos
	s.advance() // '$'
	nameStart := s.pos
	for {
		b, ok := s.peekByte()
		if !ok || !isAlphaNum(b) {
			break
		}
		s.advance()
	}
	if s.pos == nameStart {
		return s.fail(errs.At(errs.Scanner, errs.Pos{Line: line, Col: col}, "expected parameter name after '$'"))
	}
	text := s.src[start:s.pos]
	return token.Token{Kind: token.Parameter, Value: s.src[nameStart:s.pos], Text: text, Line: line, Column: col}, nil
}

func (s *Scanner) scanWord(line, col int) (token.Token, error) {
	start := s.pos
	for {
		b, ok := s.peekByte()
		if !ok || !isAlphaNum(b) {
			break
		}
		s.advance()
	}
	text := s.src[start:s.pos]
	if kw, ok := token.Lookup(text); ok {
		return token.Token{Kind: token.Keyword, Value: kw, Text: text, Line: line, Column: col}, nil
	}
	return token.Token{Kind: token.Identifier, Value: text, Text: text, Line: line, Column: col}, nil
}

// multiCharOperators is checked longest-first so e.g. "<=" is not split into "<" then "=".
var multiCharOperators = []string{"<>", "!=", "<=", ">=", "..", "::", "+=", "=~"}

func (s *Scanner) scanOperatorOrPunct(line, col int) (token.Token, error) {
	for _, op := range multiCharOperators {
		if strings.HasPrefix(s.src[s.pos:], op) {
			for range op {
				s.advance()
			}
			return token.Token{Kind: token.Operator, Value: op, Text: op, Line: line, Column: col}, nil
		}
	}

	b, _ := s.peekByte()
	r, _ := s.advance()
	kind, ok := singleCharKind(b)
	if !ok {
		return s.fail(errs.At(errs.Scanner, errs.Pos{Line: line, Col: col}, "unknown character %q", r))
	}
	text := string(r)
	return token.Token{Kind: kind, Value: text, Text: text, Line: line, Column: col}, nil
}

func singleCharKind(b byte) (token.Kind, bool) {
	switch b {
	case '(':
		return token.LParen, true
	case ')':
		return token.RParen, true
	case '[':
		return token.LBracket, true
	case ']':
		return token.RBracket, true
	case '{':
		return token.LBrace, true
	case '}':
		return token.RBrace, true
	case ',':
		return token.Comma, true
	case '.':
		return token.Dot, true
	case ':':
		return token.Colon, true
	case ';':
		return token.Semi, true
	case '+':
		return token.Plus, true
	case '-':
		return token.Minus, true
	case '*':
		return token.Star, true
	case '/':
		return token.Slash, true
	case '%':
		return token.Percent, true
	case '^':
		return token.Caret, true
	case '=':
		return token.Eq, true
	case '<':
		return token.Lt, true
	case '>':
		return token.Gt, true
	case '|':
		return token.Pipe, true
	case '!':
		return token.Bang, true
	case '$':
		return token.Dollar, true
	default:
		return 0, false
	}
}
