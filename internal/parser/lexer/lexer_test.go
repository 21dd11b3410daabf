package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/cyq/internal/parser/token"
)

func tokenTypes(input string) []token.Type {
	l := New(input)
	var out []token.Type
	for {
		tok := l.NextToken()
		out = append(out, tok.Type)
		if tok.Type == token.EOF {
			return out
		}
	}
}

func TestLexerMatchReturnClause(t *testing.T) {
	types := tokenTypes("MATCH (n:Person)-[r:KNOWS]->(m) RETURN n.name")
	require.Equal(t, []token.Type{
		token.MATCH, token.LPAREN, token.IDENT, token.COLON, token.IDENT, token.RPAREN,
		token.DASH, token.LBRACKET, token.IDENT, token.COLON, token.IDENT, token.RBRACKET, token.ARROW_R,
		token.LPAREN, token.IDENT, token.RPAREN,
		token.RETURN, token.IDENT, token.DOT, token.IDENT,
		token.EOF,
	}, types)
}

func TestLexerBacktickIdentifier(t *testing.T) {
	l := New("`weird name`")
	tok := l.NextToken()
	require.Equal(t, token.IDENT, tok.Type)
	require.Equal(t, "weird name", tok.Literal)
}

func TestLexerStringEscapes(t *testing.T) {
	l := New(`"a\nb"`)
	tok := l.NextToken()
	require.Equal(t, token.STRING, tok.Type)
	require.Equal(t, "a\nb", tok.Literal)
}

func TestLexerNumbers(t *testing.T) {
	l := New("42 3.14 1e10")
	tok := l.NextToken()
	require.Equal(t, token.INT, tok.Type)
	require.Equal(t, "42", tok.Literal)

	tok = l.NextToken()
	require.Equal(t, token.FLOAT, tok.Type)
	require.Equal(t, "3.14", tok.Literal)

	tok = l.NextToken()
	require.Equal(t, token.FLOAT, tok.Type)
	require.Equal(t, "1e10", tok.Literal)
}

func TestLexerPositionTracking(t *testing.T) {
	l := New("MATCH\n(n)")
	tok := l.NextToken() // MATCH at line 1
	require.Equal(t, 1, tok.Pos.Line)

	l.NextToken() // (
	tok = l.NextToken() // n, on line 2
	require.Equal(t, 2, tok.Pos.Line)
}

func TestLexerNotEqualIsIllegal(t *testing.T) {
	l := New("a != b")
	l.NextToken() // a
	tok := l.NextToken()
	require.Equal(t, token.ILLEGAL, tok.Type)
	require.Equal(t, "!=", tok.Literal)
}
