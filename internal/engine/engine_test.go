package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlscope/pkg/completion"
	_ "github.com/leapstack-labs/sqlscope/pkg/dialects/mysql"
	_ "github.com/leapstack-labs/sqlscope/pkg/dialects/postgres"
	"github.com/leapstack-labs/sqlscope/pkg/lowering"
	"github.com/leapstack-labs/sqlscope/pkg/schema"
)

func testTables() []*schema.Table {
	return []*schema.Table{
		{
			Schema: "public", Name: "users", Kind: schema.KindTable,
			Columns: []schema.Column{
				{Name: "id", DataType: "bigint", Position: 1},
				{Name: "email", DataType: "text", Nullable: true, Position: 2},
			},
			PrimaryKey: []string{"id"},
		},
		{
			Schema: "public", Name: "orders", Kind: schema.KindTable,
			Columns: []schema.Column{
				{Name: "id", DataType: "bigint", Position: 1},
				{Name: "user_id", DataType: "bigint", Position: 2},
			},
			PrimaryKey: []string{"id"},
		},
	}
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	cache := schema.NewCache(&schema.StaticFetcher{Tables: testTables()})
	return New(cache)
}

func cursor(n int) *int { return &n }

func TestAnalyzeSuccess(t *testing.T) {
	e := testEngine(t)
	res, err := e.Analyze(context.Background(), Request{
		DocID:   "a.sql",
		Version: 1,
		Text:    "SELECT u.email FROM users u WHERE u.id = $1",
		Dialect: "postgres",
	})
	require.NoError(t, err)

	assert.Equal(t, lowering.OutcomeSuccess, res.Outcome)
	assert.Empty(t, res.Diagnostics)
	assert.Len(t, res.Statements, 1)
	assert.Equal(t, 1, res.Version)
	assert.False(t, res.SchemaDegraded)
	assert.Nil(t, res.Context)
}

func TestAnalyzeUnknownDialect(t *testing.T) {
	e := testEngine(t)
	_, err := e.Analyze(context.Background(), Request{Text: "SELECT 1", Dialect: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestAnalyzeWithoutCache(t *testing.T) {
	e := New(nil)
	res, err := e.Analyze(context.Background(), Request{
		Text:    "SELECT whatever FROM anything",
		Dialect: "postgres",
	})
	require.NoError(t, err)
	assert.Equal(t, lowering.OutcomeSuccess, res.Outcome)
	assert.Empty(t, res.Diagnostics)
}

func TestCompletionAfterFrom(t *testing.T) {
	e := testEngine(t)
	sql := "SELECT id FROM "
	res, err := e.Analyze(context.Background(), Request{
		Text:    sql,
		Dialect: "postgres",
		Cursor:  cursor(len(sql)),
	})
	require.NoError(t, err)

	require.NotNil(t, res.Context)
	assert.Equal(t, completion.ExpectTableOrSchema, res.Context.Kind)
	var names []string
	for _, c := range res.Candidates {
		names = append(names, c.Label)
	}
	assert.Contains(t, names, "users")
	assert.Contains(t, names, "orders")
}

func TestCompletionPrefixFromText(t *testing.T) {
	e := testEngine(t)
	sql := "SELECT id FROM us"
	res, err := e.Analyze(context.Background(), Request{
		Text:    sql,
		Dialect: "postgres",
		Cursor:  cursor(len(sql)),
	})
	require.NoError(t, err)

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "users", res.Candidates[0].Label)
}

func TestCompletionIndeterminateFallsBackToKeywords(t *testing.T) {
	e := testEngine(t)
	res, err := e.Analyze(context.Background(), Request{
		Text:    "SELEC * FROM t ",
		Dialect: "postgres",
		Cursor:  cursor(6),
	})
	require.NoError(t, err)

	assert.Equal(t, lowering.OutcomeFailed, res.Outcome)
	require.NotNil(t, res.Context)
	assert.Equal(t, completion.Indeterminate, res.Context.Kind)
	assert.NotEmpty(t, res.Candidates)
}

func TestHoverOnColumn(t *testing.T) {
	e := testEngine(t)
	sql := "SELECT u.email FROM users u"
	res, err := e.Analyze(context.Background(), Request{
		Text:    sql,
		Dialect: "postgres",
		Cursor:  cursor(len("SELECT u.em")),
	})
	require.NoError(t, err)

	require.NotNil(t, res.Hover)
	assert.Equal(t, "u.email", res.Hover.Title)
	assert.Contains(t, res.Hover.Detail, "text")
}

func TestHoverOnTable(t *testing.T) {
	e := testEngine(t)
	sql := "SELECT id FROM users"
	res, err := e.Analyze(context.Background(), Request{
		Text:    sql,
		Dialect: "postgres",
		Cursor:  cursor(len(sql) - 2),
	})
	require.NoError(t, err)

	require.NotNil(t, res.Hover)
	assert.Equal(t, "public.users", res.Hover.Title)
	assert.Contains(t, res.Hover.Detail, "2 columns")
}

func TestHoverOnFunction(t *testing.T) {
	e := testEngine(t)
	sql := "SELECT count(*) FROM users"
	res, err := e.Analyze(context.Background(), Request{
		Text:    sql,
		Dialect: "postgres",
		Cursor:  cursor(len("SELECT cou")),
	})
	require.NoError(t, err)

	require.NotNil(t, res.Hover)
	assert.Contains(t, res.Hover.Title, "count")
}

func TestSemanticDiagnosticsMerged(t *testing.T) {
	e := testEngine(t)
	res, err := e.Analyze(context.Background(), Request{
		Text:    "SELECT id FROM users, orders",
		Dialect: "postgres",
	})
	require.NoError(t, err)

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, lowering.Code("ambiguous-column"), res.Diagnostics[0].Code)
}

func TestDDLInvalidatesCache(t *testing.T) {
	var fetches atomic.Int64
	cache := schema.NewCache(schema.FetcherFunc(func(ctx context.Context) (*schema.Snapshot, error) {
		fetches.Add(1)
		return schema.NewSnapshot(testTables(), nil), nil
	}))
	e := New(cache)

	_, err := e.Analyze(context.Background(), Request{Text: "SELECT id FROM users", Dialect: "postgres"})
	require.NoError(t, err)
	require.EqualValues(t, 1, fetches.Load())

	_, err = e.Analyze(context.Background(), Request{Text: "ALTER TABLE users ADD COLUMN phone text", Dialect: "postgres"})
	require.NoError(t, err)

	// The invalidated entry forces a fresh fetch on the next request.
	_, err = e.Analyze(context.Background(), Request{Text: "SELECT id FROM users", Dialect: "postgres"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, fetches.Load())
}

func TestSchemaDegradedOnFetchFailure(t *testing.T) {
	cache := schema.NewCache(schema.FetcherFunc(func(ctx context.Context) (*schema.Snapshot, error) {
		return nil, assert.AnError
	}))
	e := New(cache)

	res, err := e.Analyze(context.Background(), Request{Text: "SELECT id FROM users", Dialect: "postgres"})
	require.NoError(t, err)
	assert.True(t, res.SchemaDegraded)
	// No unknown-table noise while the catalog is unavailable.
	assert.Empty(t, res.Diagnostics)
}

func TestStaleVersionStillReturns(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	_, err := e.Analyze(ctx, Request{DocID: "d", Version: 5, Text: "SELECT 1", Dialect: "postgres"})
	require.NoError(t, err)

	res, err := e.Analyze(ctx, Request{DocID: "d", Version: 3, Text: "SELECT 2", Dialect: "postgres"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Version)
}

func TestConcurrentDocuments(t *testing.T) {
	e := testEngine(t)
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := e.Analyze(context.Background(), Request{
				DocID:   string(rune('a' + n%8)),
				Version: n,
				Text:    "SELECT u.email FROM users u JOIN orders o ON o.user_id = u.id",
				Dialect: "postgres",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestMySQLDialectSelection(t *testing.T) {
	e := testEngine(t)
	res, err := e.Analyze(context.Background(), Request{
		Text:    "WITH t AS (SELECT 1) SELECT * FROM t",
		Dialect: "mysql-5.7",
	})
	require.NoError(t, err)
	assert.Equal(t, lowering.OutcomePartial, res.Outcome)

	res, err = e.Analyze(context.Background(), Request{
		Text:    "WITH t AS (SELECT 1) SELECT * FROM t",
		Dialect: "mysql-8.0",
	})
	require.NoError(t, err)
	assert.Equal(t, lowering.OutcomeSuccess, res.Outcome)
}

func TestForget(t *testing.T) {
	e := testEngine(t)
	_, err := e.Analyze(context.Background(), Request{DocID: "gone", Version: 1, Text: "SELECT 1", Dialect: "postgres"})
	require.NoError(t, err)
	e.Forget("gone")

	e.mu.Lock()
	_, ok := e.docs["gone"]
	e.mu.Unlock()
	assert.False(t, ok)
}
