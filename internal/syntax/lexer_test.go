package syntax_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlscope/internal/syntax"
	"github.com/leapstack-labs/sqlscope/pkg/dialect"
	_ "github.com/leapstack-labs/sqlscope/pkg/dialects/mysql"
	_ "github.com/leapstack-labs/sqlscope/pkg/dialects/postgres"
	"github.com/leapstack-labs/sqlscope/pkg/token"
)

func tokenTypes(toks []token.Token) []token.TokenType {
	out := make([]token.TokenType, 0, len(toks))
	for _, t := range toks {
		out = append(out, t.Type)
	}
	return out
}

func TestTokenizeSelect(t *testing.T) {
	pg := dialect.MustGet("postgres")
	toks := syntax.Tokenize("SELECT id, name FROM users WHERE id = 42", pg)

	assert.Equal(t, []token.TokenType{
		token.SELECT, token.IDENT, token.COMMA, token.IDENT,
		token.FROM, token.IDENT, token.WHERE, token.IDENT,
		token.EQ, token.NUMBER, token.EOF,
	}, tokenTypes(toks))
	assert.Equal(t, "users", toks[5].Literal)
	assert.Equal(t, "42", toks[9].Literal)
}

func TestTokenizePositions(t *testing.T) {
	pg := dialect.MustGet("postgres")
	toks := syntax.Tokenize("SELECT a\nFROM t", pg)

	require.Len(t, toks, 5)
	assert.Equal(t, 1, toks[0].Pos.Line)
	assert.Equal(t, 1, toks[0].Pos.Column)
	assert.Equal(t, 2, toks[2].Pos.Line) // FROM
	assert.Equal(t, 1, toks[2].Pos.Column)
	assert.Equal(t, 9, toks[2].Pos.Offset)
}

func TestTokenizeQuotedIdentifiers(t *testing.T) {
	pg := dialect.MustGet("postgres")
	my := dialect.MustGet("mysql-8.0")

	toks := syntax.Tokenize(`"Order Details"`, pg)
	require.Equal(t, token.IDENT, toks[0].Type)
	assert.Equal(t, `"Order Details"`, toks[0].Literal)

	toks = syntax.Tokenize("`Order Details`", my)
	require.Equal(t, token.IDENT, toks[0].Type)
	assert.Equal(t, "`Order Details`", toks[0].Literal)

	// MySQL treats double quotes as string delimiters.
	toks = syntax.Tokenize(`"hello"`, my)
	assert.Equal(t, token.STRING, toks[0].Type)

	// Backticks mean nothing to Postgres.
	toks = syntax.Tokenize("`x`", pg)
	assert.Equal(t, token.ILLEGAL, toks[0].Type)
}

func TestTokenizeBindParams(t *testing.T) {
	pg := dialect.MustGet("postgres")
	my := dialect.MustGet("mysql-8.0")

	toks := syntax.Tokenize("$1", pg)
	require.Equal(t, token.BINDVAR, toks[0].Type)
	assert.Equal(t, "$1", toks[0].Literal)

	toks = syntax.Tokenize("?", my)
	assert.Equal(t, token.BINDVAR, toks[0].Type)

	// Dollar parameters are a Postgres-family feature.
	toks = syntax.Tokenize("$1", my)
	assert.Equal(t, token.ILLEGAL, toks[0].Type)
}

func TestTokenizeCastOperator(t *testing.T) {
	pg := dialect.MustGet("postgres")
	my := dialect.MustGet("mysql-8.0")

	toks := syntax.Tokenize("x::text", pg)
	assert.Equal(t, []token.TokenType{
		token.IDENT, token.DCOLON, token.IDENT, token.EOF,
	}, tokenTypes(toks))

	toks = syntax.Tokenize("x::text", my)
	assert.Equal(t, token.ILLEGAL, toks[1].Type)
}

func TestTokenizeComments(t *testing.T) {
	pg := dialect.MustGet("postgres")
	my := dialect.MustGet("mysql-8.0")

	toks := syntax.Tokenize("SELECT 1 -- trailing\n+ 2 /* block */ + 3", pg)
	assert.Equal(t, []token.TokenType{
		token.SELECT, token.NUMBER, token.PLUS, token.NUMBER,
		token.PLUS, token.NUMBER, token.EOF,
	}, tokenTypes(toks))

	toks = syntax.Tokenize("SELECT 1 # mysql comment\n+ 2", my)
	assert.Equal(t, []token.TokenType{
		token.SELECT, token.NUMBER, token.PLUS, token.NUMBER, token.EOF,
	}, tokenTypes(toks))
}

func TestTokenizeStrings(t *testing.T) {
	pg := dialect.MustGet("postgres")

	toks := syntax.Tokenize("'it''s'", pg)
	require.Equal(t, token.STRING, toks[0].Type)
	assert.Equal(t, "'it''s'", toks[0].Literal)
}

func TestTokenizeNumbers(t *testing.T) {
	pg := dialect.MustGet("postgres")

	for _, input := range []string{"42", "3.14", "1e10", "2.5E-3"} {
		toks := syntax.Tokenize(input, pg)
		require.Equal(t, token.NUMBER, toks[0].Type, "input %q", input)
		assert.Equal(t, input, toks[0].Literal)
	}
}

func TestTokenizeOperators(t *testing.T) {
	pg := dialect.MustGet("postgres")
	toks := syntax.Tokenize("<= >= <> != = || ;", pg)

	assert.Equal(t, []token.TokenType{
		token.LE, token.GE, token.NE, token.NE, token.EQ,
		token.DPIPE, token.SEMI, token.EOF,
	}, tokenTypes(toks))
}
