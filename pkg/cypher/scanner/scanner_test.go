package scanner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphqlite/graphqlite/pkg/cypher/token"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	s := New(src)
	var toks []token.Token
	for {
		tok, err := s.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func TestScansKeywordsCaseInsensitively(t *testing.T) {
	toks := scanAll(t, "match (n) return n")
	require.Equal(t, token.Keyword, toks[0].Kind)
	require.Equal(t, "MATCH", toks[0].Value)
	require.True(t, toks[4].IsKeyword("RETURN"))
}

func TestScansIntegerDecimalAndOverflow(t *testing.T) {
	toks := scanAll(t, "1 2.5 0x1F 1e10")
	require.Equal(t, token.Integer, toks[0].Kind)
	require.Equal(t, token.Decimal, toks[1].Kind)
	require.Equal(t, token.Integer, toks[2].Kind)
	require.Equal(t, token.Decimal, toks[3].Kind)

	s := New("99999999999999999999999999")
	_, err := s.Next()
	require.Error(t, err)
}

func TestScansStringEscapes(t *testing.T) {
	toks := scanAll(t, `"hi\nthere" 'it\'s'`)
	require.Equal(t, "hi\nthere", toks[0].Value)
	require.Equal(t, "it's", toks[1].Value)
}

func TestScansParameterAndBackquotedIdent(t *testing.T) {
	toks := scanAll(t, "$name `odd ident`")
	require.Equal(t, token.Parameter, toks[0].Kind)
	require.Equal(t, "name", toks[0].Value)
	require.Equal(t, token.BackquotedIdent, toks[1].Kind)
	require.Equal(t, "odd ident", toks[1].Value)
}

func TestScansMultiCharOperatorsLongestMatchFirst(t *testing.T) {
	toks := scanAll(t, "<= <> != >= a.b..c x::y")
	require.Equal(t, "<=", toks[0].Value)
	require.Equal(t, "<>", toks[1].Value)
	require.Equal(t, "!=", toks[2].Value)
	require.Equal(t, ">=", toks[3].Value)
}

func TestSkipsLineCommentsAndWhitespace(t *testing.T) {
	toks := scanAll(t, "MATCH // a comment\n  (n)")
	require.Equal(t, token.Keyword, toks[0].Kind)
	require.Equal(t, token.LParen, toks[1].Kind)
}

func TestErrorStateIsSticky(t *testing.T) {
	s := New(`"unterminated`)
	_, err := s.Next()
	require.Error(t, err)
	tok, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, token.EOF, tok.Kind)
}

func TestUnknownCharacterIsAnError(t *testing.T) {
	s := New("@")
	_, err := s.Next()
	require.Error(t, err)
}
