package catalog

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlscope/internal/testutil"
	"github.com/leapstack-labs/sqlscope/pkg/schema"
)

func expectIntrospection(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "table_type"}).
			AddRow("users", "BASE TABLE").
			AddRow("active_users", "VIEW"))
	mock.ExpectQuery("information_schema.columns").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable", "column_default", "ordinal_position"}).
			AddRow("users", "id", "bigint", "NO", nil, 1).
			AddRow("users", "email", "text", "YES", "''", 2).
			AddRow("active_users", "id", "bigint", "YES", nil, 1))
	mock.ExpectQuery("PRIMARY").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name"}).
			AddRow("users", "id"))
	mock.ExpectQuery("information_schema.routines").
		WillReturnRows(sqlmock.NewRows([]string{"routine_name", "routine_type", "data_type"}).
			AddRow("user_count", "FUNCTION", "bigint"))
}

func verifySnapshot(t *testing.T, snap *schema.Snapshot, schemaName string) {
	t.Helper()
	tables := snap.Tables()
	require.Len(t, tables, 2)

	users, ok := snap.Table(schemaName, "users", schemaName)
	require.True(t, ok)
	assert.Equal(t, schema.KindTable, users.Kind)
	require.Len(t, users.Columns, 2)
	assert.Equal(t, "id", users.Columns[0].Name)
	assert.False(t, users.Columns[0].Nullable)
	assert.Equal(t, "''", users.Columns[1].Default)
	assert.True(t, users.IsPrimaryKey("id"))

	view, ok := snap.Table(schemaName, "active_users", schemaName)
	require.True(t, ok)
	assert.Equal(t, schema.KindView, view.Kind)

	routines := snap.Routines("user_count")
	require.Len(t, routines, 1)
	assert.Equal(t, schema.KindFunction, routines[0].Kind)
	assert.Equal(t, "bigint", routines[0].ReturnType)
}

func TestPostgresFetch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	expectIntrospection(mock)

	f := NewPostgresFetcher(db, testutil.NewTestLogger(t))
	snap, err := f.Fetch(context.Background())
	require.NoError(t, err)

	verifySnapshot(t, snap, "public")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLFetch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	expectIntrospection(mock)

	f := NewMySQLFetcher(db, testutil.NewTestLogger(t), "shop")
	snap, err := f.Fetch(context.Background())
	require.NoError(t, err)

	verifySnapshot(t, snap, "shop")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFetchQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("information_schema.tables").WillReturnError(assert.AnError)

	f := NewPostgresFetcher(db, testutil.NewTestLogger(t))
	_, err = f.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query tables")
}

func TestPostgresFetchMultipleSchemas(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	expectIntrospection(mock)
	expectIntrospection(mock)

	f := NewPostgresFetcher(db, testutil.NewTestLogger(t), "public", "sales")
	snap, err := f.Fetch(context.Background())
	require.NoError(t, err)

	assert.Len(t, snap.Tables(), 4)
	assert.Equal(t, []string{"public", "sales"}, snap.Schemas())
}

func TestPostgresDSN(t *testing.T) {
	dsn := postgresDSN(Config{
		Host: "db.internal", Port: 5433, Database: "shop",
		Username: "app", Password: "secret",
		Options: map[string]string{"sslmode": "require"},
	})
	assert.Equal(t, "host=db.internal port=5433 dbname=shop sslmode=require user=app password=secret", dsn)

	assert.Equal(t, "host=localhost port=5432 dbname=shop sslmode=disable", postgresDSN(Config{Database: "shop"}))
}

func TestMySQLDSN(t *testing.T) {
	dsn := mysqlDSN(Config{Host: "db.internal", Port: 3307, Database: "shop", Username: "app", Password: "secret"})
	assert.Equal(t, "app:secret@tcp(db.internal:3307)/shop", dsn)

	assert.Equal(t, "tcp(localhost:3306)/shop", mysqlDSN(Config{Database: "shop"}))
}
