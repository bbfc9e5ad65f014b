package lowering_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlscope/internal/syntax"
	"github.com/leapstack-labs/sqlscope/pkg/dialect"
	_ "github.com/leapstack-labs/sqlscope/pkg/dialects/mysql"
	_ "github.com/leapstack-labs/sqlscope/pkg/dialects/postgres"
	"github.com/leapstack-labs/sqlscope/pkg/ir"
	"github.com/leapstack-labs/sqlscope/pkg/lowering"
)

func lower(t *testing.T, dialectName, sql string) *lowering.Result {
	t.Helper()
	d := dialect.MustGet(dialectName)
	root, err := syntax.NewParser(d).Parse(context.Background(), sql)
	require.NoError(t, err)
	res := lowering.Lower(root, d)
	require.NotNil(t, res)
	return res
}

func onlySelect(t *testing.T, res *lowering.Result) *ir.SelectStmt {
	t.Helper()
	require.Len(t, res.Statements, 1)
	stmt, ok := res.Statements[0].(*ir.SelectStmt)
	require.True(t, ok, "expected *ir.SelectStmt, got %T", res.Statements[0])
	return stmt
}

func TestLowerSimpleSelect(t *testing.T) {
	res := lower(t, "postgres", "SELECT id, name AS n FROM public.users u WHERE active = true")
	assert.Equal(t, lowering.OutcomeSuccess, res.Outcome)
	assert.Empty(t, res.Diagnostics)

	core := onlySelect(t, res).Body.Left
	require.Len(t, core.Items, 2)
	assert.Equal(t, "id", core.Items[0].Expr.(*ir.ColumnRef).Column)
	assert.Equal(t, "n", core.Items[1].Alias)

	table := core.From.First.(*ir.TableName)
	assert.Equal(t, "public", table.Schema)
	assert.Equal(t, "users", table.Name)
	assert.Equal(t, "u", table.Alias)
	assert.Equal(t, "u", table.EffectiveName())

	where := core.Where.(*ir.BinaryExpr)
	assert.Equal(t, ir.BinaryOp("="), where.Op)
	assert.Equal(t, ir.LiteralBool, where.Right.(*ir.Literal).Type)
}

func TestLowerIdentifierNormalization(t *testing.T) {
	// Unquoted identifiers fold to lowercase on Postgres; quoted ones
	// keep their case.
	res := lower(t, "postgres", `SELECT ID, "ID" FROM Users`)
	core := onlySelect(t, res).Body.Left
	assert.Equal(t, "id", core.Items[0].Expr.(*ir.ColumnRef).Column)
	assert.Equal(t, "ID", core.Items[1].Expr.(*ir.ColumnRef).Column)
	assert.Equal(t, "users", core.From.First.(*ir.TableName).Name)

	// MySQL preserves identifier case.
	res = lower(t, "mysql-8.0", "SELECT ID FROM Users")
	core = onlySelect(t, res).Body.Left
	assert.Equal(t, "ID", core.Items[0].Expr.(*ir.ColumnRef).Column)
	assert.Equal(t, "Users", core.From.First.(*ir.TableName).Name)
}

func TestLowerLimitNormalization(t *testing.T) {
	// The three limit spellings converge on the same IR pair.
	pgRes := lower(t, "postgres", "SELECT a FROM t LIMIT 10 OFFSET 5")
	myRes := lower(t, "mysql-8.0", "SELECT a FROM t LIMIT 5, 10")

	for _, res := range []*lowering.Result{pgRes, myRes} {
		lo := onlySelect(t, res).Body.Left.Limit
		require.NotNil(t, lo)
		assert.Equal(t, "10", lo.Limit.(*ir.Literal).Value)
		assert.Equal(t, "5", lo.Offset.(*ir.Literal).Value)
	}
	assert.Equal(t, lowering.OutcomeSuccess, pgRes.Outcome)
	assert.Equal(t, lowering.OutcomeSuccess, myRes.Outcome)

	bare := lower(t, "postgres", "SELECT a FROM t LIMIT 10")
	lo := onlySelect(t, bare).Body.Left.Limit
	require.NotNil(t, lo)
	assert.Nil(t, lo.Offset)
}

func TestLowerLimitCommaOnPostgresDegrades(t *testing.T) {
	res := lower(t, "postgres", "SELECT a FROM t LIMIT 5, 10")
	assert.Equal(t, lowering.OutcomePartial, res.Outcome)
	require.NotEmpty(t, res.Diagnostics)
	assert.Equal(t, lowering.CodeUnsupportedFeature, res.Diagnostics[0].Code)
	assert.Contains(t, res.Diagnostics[0].Message, "postgres")
}

func TestLowerCommaJoinBecomesCross(t *testing.T) {
	res := lower(t, "postgres", "SELECT 1 FROM a, b JOIN c ON b.x = c.x")
	core := onlySelect(t, res).Body.Left
	require.Len(t, core.From.Joins, 2)
	assert.Equal(t, ir.JoinCross, core.From.Joins[0].Kind)
	assert.Equal(t, ir.JoinInner, core.From.Joins[1].Kind)
	assert.NotNil(t, core.From.Joins[1].Condition)

	items := core.From.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].EffectiveName())
	assert.Equal(t, "c", items[2].EffectiveName())
}

func TestLowerJoinVariants(t *testing.T) {
	res := lower(t, "postgres",
		"SELECT 1 FROM a LEFT JOIN b ON a.x = b.x FULL OUTER JOIN c USING (x) NATURAL JOIN d")
	core := onlySelect(t, res).Body.Left
	require.Len(t, core.From.Joins, 3)
	assert.Equal(t, ir.JoinLeft, core.From.Joins[0].Kind)
	assert.Equal(t, ir.JoinFull, core.From.Joins[1].Kind)
	assert.Equal(t, []string{"x"}, core.From.Joins[1].Using)
	assert.True(t, core.From.Joins[2].Natural)
	assert.Equal(t, lowering.OutcomeSuccess, res.Outcome)
}

func TestLowerFullJoinOnMySQLDegrades(t *testing.T) {
	res := lower(t, "mysql-8.0", "SELECT 1 FROM a FULL OUTER JOIN b ON a.x = b.x")
	assert.Equal(t, lowering.OutcomePartial, res.Outcome)
	require.NotEmpty(t, res.Diagnostics)
	assert.Equal(t, lowering.CodeUnsupportedFeature, res.Diagnostics[0].Code)
}

func TestLowerCTE(t *testing.T) {
	res := lower(t, "postgres",
		"WITH RECURSIVE nums (n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM nums) SELECT n FROM nums")
	stmt := onlySelect(t, res)
	require.NotNil(t, stmt.With)
	assert.True(t, stmt.With.Recursive)
	require.Len(t, stmt.With.CTEs, 1)
	assert.Equal(t, "nums", stmt.With.CTEs[0].Name)
	assert.Equal(t, []string{"n"}, stmt.With.CTEs[0].Columns)
	require.NotNil(t, stmt.With.CTEs[0].Select)
	assert.Equal(t, lowering.OutcomeSuccess, res.Outcome)
}

func TestLowerCTEOnMySQL57Degrades(t *testing.T) {
	res := lower(t, "mysql-5.7", "WITH x AS (SELECT 1) SELECT * FROM x")
	assert.Equal(t, lowering.OutcomePartial, res.Outcome)

	// The IR is still produced so resolution can proceed.
	stmt := onlySelect(t, res)
	require.NotNil(t, stmt.With)

	found := false
	for _, d := range res.Diagnostics {
		if d.Code == lowering.CodeUnsupportedFeature && strings.Contains(d.Message, "mysql-5.7") {
			found = true
		}
	}
	assert.True(t, found, "expected an unsupported-feature diagnostic naming the dialect")
}

func TestLowerWindowFunctionOnMySQL57Degrades(t *testing.T) {
	res := lower(t, "mysql-5.7", "SELECT row_number() OVER (ORDER BY id) FROM t")
	assert.Equal(t, lowering.OutcomePartial, res.Outcome)

	call := onlySelect(t, res).Body.Left.Items[0].Expr.(*ir.FuncCall)
	require.NotNil(t, call.Over)
	require.Len(t, call.Over.OrderBy, 1)
}

func TestLowerSetOpsRightNested(t *testing.T) {
	res := lower(t, "postgres", "SELECT a FROM t1 UNION ALL SELECT a FROM t2 EXCEPT SELECT a FROM t3")
	body := onlySelect(t, res).Body

	// Flattened left to right: t1 UNION ALL (t2 EXCEPT t3) in right-nested
	// form preserving the original pairing order.
	assert.Equal(t, ir.SetOpUnionAll, body.Op)
	require.NotNil(t, body.Right)
	assert.Equal(t, ir.SetOpExcept, body.Right.Op)
	require.NotNil(t, body.Right.Right)
	assert.Equal(t, ir.SetOpNone, body.Right.Right.Op)
}

func TestLowerStarsAndQualifiedStar(t *testing.T) {
	res := lower(t, "postgres", "SELECT *, u.* FROM users u")
	core := onlySelect(t, res).Body.Left
	require.Len(t, core.Items, 2)
	assert.True(t, core.Items[0].Star)
	assert.Equal(t, "u", core.Items[1].TableStar)
}

func TestLowerPredicates(t *testing.T) {
	res := lower(t, "postgres",
		"SELECT 1 FROM t WHERE a NOT IN (1, 2) AND b IS NOT NULL AND c BETWEEN 1 AND 10")
	core := onlySelect(t, res).Body.Left

	var in *ir.InExpr
	var is *ir.IsExpr
	var between *ir.BetweenExpr
	var walk func(e ir.Expr)
	walk = func(e ir.Expr) {
		switch v := e.(type) {
		case *ir.BinaryExpr:
			walk(v.Left)
			walk(v.Right)
		case *ir.InExpr:
			in = v
		case *ir.IsExpr:
			is = v
		case *ir.BetweenExpr:
			between = v
		}
	}
	walk(core.Where)

	require.NotNil(t, in)
	assert.True(t, in.Not)
	assert.Len(t, in.List, 2)
	require.NotNil(t, is)
	assert.True(t, is.Not)
	assert.Equal(t, "NULL", is.Value)
	require.NotNil(t, between)
	assert.Equal(t, "1", between.Low.(*ir.Literal).Value)
	assert.Equal(t, "10", between.High.(*ir.Literal).Value)
	assert.Equal(t, lowering.OutcomeSuccess, res.Outcome)
}

func TestLowerStringAndBindParams(t *testing.T) {
	res := lower(t, "postgres", "SELECT 1 FROM t WHERE name = 'O''Brien' AND id = $2")
	core := onlySelect(t, res).Body.Left

	and := core.Where.(*ir.BinaryExpr)
	left := and.Left.(*ir.BinaryExpr)
	assert.Equal(t, "O'Brien", left.Right.(*ir.Literal).Value)

	right := and.Right.(*ir.BinaryExpr)
	assert.Equal(t, 2, right.Right.(*ir.BindParam).Index)
}

func TestLowerCastForms(t *testing.T) {
	res := lower(t, "postgres", "SELECT CAST(a AS text), b::integer FROM t")
	core := onlySelect(t, res).Body.Left
	assert.Equal(t, "text", core.Items[0].Expr.(*ir.CastExpr).TypeName)
	assert.Equal(t, "integer", core.Items[1].Expr.(*ir.CastExpr).TypeName)
}

func TestLowerInsert(t *testing.T) {
	res := lower(t, "postgres",
		"INSERT INTO users (id, name) VALUES (1, 'ann'), (2, 'bob') RETURNING id")
	require.Len(t, res.Statements, 1)
	stmt := res.Statements[0].(*ir.InsertStmt)

	assert.Equal(t, "users", stmt.Target.Name)
	assert.Equal(t, []string{"id", "name"}, stmt.Columns)
	require.Len(t, stmt.Rows, 2)
	assert.Len(t, stmt.Rows[0], 2)
	require.Len(t, stmt.Returning, 1)
	assert.Equal(t, lowering.OutcomeSuccess, res.Outcome)
}

func TestLowerReturningOnMySQLDegrades(t *testing.T) {
	res := lower(t, "mysql-8.0", "DELETE FROM t WHERE id = 1 RETURNING id")
	assert.Equal(t, lowering.OutcomePartial, res.Outcome)
	require.NotEmpty(t, res.Diagnostics)
	assert.Equal(t, lowering.CodeUnsupportedFeature, res.Diagnostics[0].Code)
}

func TestLowerUpdateAndDelete(t *testing.T) {
	res := lower(t, "postgres", "UPDATE users SET name = 'x' WHERE id = 1; DELETE FROM logs WHERE old")
	require.Len(t, res.Statements, 2)

	up := res.Statements[0].(*ir.UpdateStmt)
	require.Len(t, up.Set, 1)
	assert.Equal(t, "name", up.Set[0].Column)
	require.NotNil(t, up.Where)

	del := res.Statements[1].(*ir.DeleteStmt)
	assert.Equal(t, "logs", del.Target.Name)
}

func TestLowerDDL(t *testing.T) {
	cases := []struct {
		sql     string
		kind    ir.DDLKind
		mutates bool
	}{
		{"CREATE TABLE t (id int)", ir.DDLCreateTable, true},
		{"DROP TABLE t", ir.DDLDropTable, true},
		{"ALTER TABLE t ADD COLUMN x int", ir.DDLAlterTable, true},
		{"TRUNCATE t", ir.DDLTruncate, false},
		{"CREATE INDEX i ON t (x)", ir.DDLCreateIndex, true},
	}
	for _, tc := range cases {
		res := lower(t, "postgres", tc.sql)
		require.Len(t, res.Statements, 1, "sql %q", tc.sql)
		ddl := res.Statements[0].(*ir.DDLStmt)
		assert.Equal(t, tc.kind, ddl.Kind, "sql %q", tc.sql)
		assert.Equal(t, tc.mutates, ddl.MutatesSchema(), "sql %q", tc.sql)
	}
}

func TestLowerDerivedTableWithoutAlias(t *testing.T) {
	res := lower(t, "postgres", "SELECT 1 FROM (SELECT a FROM t)")
	assert.Equal(t, lowering.OutcomePartial, res.Outcome)

	found := false
	for _, d := range res.Diagnostics {
		if d.Code == lowering.CodeMissingAlias {
			found = true
		}
	}
	assert.True(t, found)
}

func TestLowerSyntaxErrorsDegradeToPartial(t *testing.T) {
	res := lower(t, "postgres", "SELECT a FROM ")
	assert.Equal(t, lowering.OutcomePartial, res.Outcome)

	core := onlySelect(t, res).Body.Left
	require.NotNil(t, core.From)
	_, unknown := core.From.First.(*ir.UnknownSource)
	assert.True(t, unknown)
	assert.NotEmpty(t, res.ErrorRegions())
}

func TestLowerDanglingDotDiagnosticIsZeroWidth(t *testing.T) {
	res := lower(t, "postgres", "SELECT u. FROM users u")
	assert.Equal(t, lowering.OutcomePartial, res.Outcome)

	core := onlySelect(t, res).Body.Left
	require.Len(t, core.Items, 1)
	_, unknown := core.Items[0].Expr.(*ir.UnknownExpr)
	assert.True(t, unknown)

	regions := res.ErrorRegions()
	require.NotEmpty(t, regions)
	for _, r := range regions {
		assert.Zero(t, r.Len(), "dangling dot must report on the recovery leaf, got span %d..%d", r.Start.Offset, r.End.Offset)
	}
}

func TestLowerUnparsableStatementFails(t *testing.T) {
	res := lower(t, "postgres", "FROB the database")
	assert.Equal(t, lowering.OutcomeFailed, res.Outcome)
	require.Len(t, res.Statements, 1)
	_, unknown := res.Statements[0].(*ir.UnknownStmt)
	assert.True(t, unknown)
}

func TestLowerMixedStatementsArePartial(t *testing.T) {
	res := lower(t, "postgres", "SELECT 1; FROB the database")
	assert.Equal(t, lowering.OutcomePartial, res.Outcome)
	require.Len(t, res.Statements, 2)
}

func TestLowerEmptyDocument(t *testing.T) {
	res := lower(t, "postgres", "   ")
	assert.Equal(t, lowering.OutcomeSuccess, res.Outcome)
	assert.Empty(t, res.Statements)
}

func TestLowerDepthLimit(t *testing.T) {
	sql := "SELECT " + strings.Repeat("(", 300) + "1" + strings.Repeat(")", 300)
	d := dialect.MustGet("postgres")
	root, err := syntax.NewParser(d).Parse(context.Background(), sql)
	require.NoError(t, err)

	res := lowering.New(d, lowering.WithMaxDepth(50)).Lower(root)
	assert.Equal(t, lowering.OutcomeFailed, res.Outcome)
	require.NotEmpty(t, res.Diagnostics)
	assert.Equal(t, lowering.CodeDepthExceeded, res.Diagnostics[0].Code)
}

func TestLowerNilTreeFails(t *testing.T) {
	res := lowering.Lower(nil, dialect.MustGet("postgres"))
	assert.Equal(t, lowering.OutcomeFailed, res.Outcome)
}

func TestLowerStatementAt(t *testing.T) {
	sql := "SELECT 1; DELETE FROM t"
	res := lower(t, "postgres", sql)
	require.Len(t, res.Statements, 2)

	first := res.Statements[0]
	assert.Same(t, first, res.StatementAt(3))
	_, isDelete := res.StatementAt(len(sql) - 1).(*ir.DeleteStmt)
	assert.True(t, isDelete)
}

func TestLowerSpansPreserved(t *testing.T) {
	sql := "SELECT id FROM users"
	res := lower(t, "postgres", sql)
	stmt := onlySelect(t, res)

	span := stmt.GetSpan()
	assert.Equal(t, 0, span.Start.Offset)
	assert.Equal(t, len(sql), span.End.Offset)

	table := stmt.Body.Left.From.First.(*ir.TableName)
	assert.Equal(t, cstTextAt(sql, table.GetSpan().Start.Offset, table.GetSpan().End.Offset), "users")
}

func cstTextAt(text string, start, end int) string {
	if start < 0 || end > len(text) || start > end {
		return ""
	}
	return text[start:end]
}
