package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	_ "github.com/go-sql-driver/mysql" // database/sql driver
	"github.com/leapstack-labs/sqlscope/pkg/schema"
)

// MySQLFetcher introspects a MySQL catalog. MySQL has no separate schema
// level below the database, so the database name doubles as the schema.
type MySQLFetcher struct {
	db      *sql.DB
	schemas []string
	logger  *slog.Logger
}

// NewMySQLFetcher wraps an existing connection.
func NewMySQLFetcher(db *sql.DB, logger *slog.Logger, schemas ...string) *MySQLFetcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &MySQLFetcher{db: db, schemas: schemas, logger: logger}
}

// OpenMySQL connects to MySQL and returns a fetcher over it.
func OpenMySQL(ctx context.Context, cfg Config, logger *slog.Logger) (*MySQLFetcher, error) {
	db, err := sql.Open("mysql", mysqlDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	schemas := cfg.Schemas
	if len(schemas) == 0 {
		schemas = []string{cfg.Database}
	}
	return NewMySQLFetcher(db, logger, schemas...), nil
}

func mysqlDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	cred := cfg.Username
	if cfg.Password != "" {
		cred += ":" + cfg.Password
	}
	if cred != "" {
		cred += "@"
	}
	return fmt.Sprintf("%stcp(%s:%d)/%s", cred, host, port, cfg.Database)
}

// Close releases the underlying connection.
func (f *MySQLFetcher) Close() error {
	return f.db.Close()
}

// Fetch implements schema.Fetcher.
func (f *MySQLFetcher) Fetch(ctx context.Context) (*schema.Snapshot, error) {
	b := newBuilder()
	for _, name := range f.schemas {
		if err := f.fetchSchema(ctx, b, name); err != nil {
			return nil, err
		}
	}
	snap := b.snapshot()
	f.logger.Debug("fetched mysql catalog",
		slog.Int("tables", len(snap.Tables())),
		slog.Int("schemas", len(f.schemas)))
	return snap, nil
}

func (f *MySQLFetcher) fetchSchema(ctx context.Context, b *builder, name string) error {
	const tablesQuery = `
		SELECT table_name, table_type
		FROM information_schema.tables
		WHERE table_schema = ?
		ORDER BY table_name`
	rows, err := f.db.QueryContext(ctx, tablesQuery, name)
	if err != nil {
		return fmt.Errorf("query tables for schema %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var tableName, tableType string
		if err := rows.Scan(&tableName, &tableType); err != nil {
			return fmt.Errorf("scan table row: %w", err)
		}
		b.table(name, tableName, tableType)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate tables: %w", err)
	}

	const columnsQuery = `
		SELECT table_name, column_name, data_type, is_nullable, column_default, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = ?
		ORDER BY table_name, ordinal_position`
	cols, err := f.db.QueryContext(ctx, columnsQuery, name)
	if err != nil {
		return fmt.Errorf("query columns for schema %s: %w", name, err)
	}
	defer func() { _ = cols.Close() }()
	for cols.Next() {
		var tableName string
		var col schema.Column
		var nullable string
		var def sql.NullString
		if err := cols.Scan(&tableName, &col.Name, &col.DataType, &nullable, &def, &col.Position); err != nil {
			return fmt.Errorf("scan column row: %w", err)
		}
		col.Nullable = nullable == "YES"
		col.Default = def.String
		b.column(name, tableName, col)
	}
	if err := cols.Err(); err != nil {
		return fmt.Errorf("iterate columns: %w", err)
	}

	const pkQuery = `
		SELECT table_name, column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND constraint_name = 'PRIMARY'
		ORDER BY table_name, ordinal_position`
	pks, err := f.db.QueryContext(ctx, pkQuery, name)
	if err != nil {
		return fmt.Errorf("query primary keys for schema %s: %w", name, err)
	}
	defer func() { _ = pks.Close() }()
	for pks.Next() {
		var tableName, column string
		if err := pks.Scan(&tableName, &column); err != nil {
			return fmt.Errorf("scan primary key row: %w", err)
		}
		b.primaryKey(name, tableName, column)
	}
	if err := pks.Err(); err != nil {
		return fmt.Errorf("iterate primary keys: %w", err)
	}

	const routinesQuery = `
		SELECT routine_name, routine_type, COALESCE(data_type, '')
		FROM information_schema.routines
		WHERE routine_schema = ?
		ORDER BY routine_name`
	funcs, err := f.db.QueryContext(ctx, routinesQuery, name)
	if err != nil {
		return fmt.Errorf("query routines for schema %s: %w", name, err)
	}
	defer func() { _ = funcs.Close() }()
	for funcs.Next() {
		var r schema.Routine
		var kind string
		if err := funcs.Scan(&r.Name, &kind, &r.ReturnType); err != nil {
			return fmt.Errorf("scan routine row: %w", err)
		}
		r.Schema = name
		r.Kind = schema.KindFunction
		if kind == "PROCEDURE" {
			r.Kind = schema.KindProcedure
		}
		b.routine(&r)
	}
	return funcs.Err()
}
