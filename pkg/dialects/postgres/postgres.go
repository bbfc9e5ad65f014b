// Package postgres registers the PostgreSQL dialect.
package postgres

import "github.com/leapstack-labs/sqlscope/pkg/dialect"

// Name is the registered dialect name.
const Name = "postgres"

func init() {
	dialect.Register(New())
}

// New builds the PostgreSQL dialect.
func New() *dialect.Dialect {
	return dialect.New(Name, dialect.FamilyPostgres).
		DefaultSchema("public").
		Features(
			dialect.FeatureCTE,
			dialect.FeatureRecursiveCTE,
			dialect.FeatureWindowFunctions,
			dialect.FeatureReturning,
			dialect.FeatureLateral,
			dialect.FeatureFullOuterJoin,
			dialect.FeatureIlike,
			dialect.FeatureCastOperator,
			dialect.FeatureDistinctOn,
			dialect.FeatureDollarParams,
			dialect.FeatureOnConflict,
		).
		Keywords(
			"SELECT", "FROM", "WHERE", "GROUP", "BY", "HAVING", "ORDER",
			"LIMIT", "OFFSET", "AS", "ON", "USING", "JOIN", "INNER", "LEFT",
			"RIGHT", "FULL", "CROSS", "OUTER", "NATURAL", "LATERAL", "UNION",
			"INTERSECT", "EXCEPT", "ALL", "DISTINCT", "WITH", "RECURSIVE",
			"INSERT", "INTO", "VALUES", "UPDATE", "SET", "DELETE",
			"RETURNING", "CONFLICT", "AND", "OR", "NOT", "IN", "IS", "NULL",
			"LIKE", "ILIKE", "BETWEEN", "EXISTS", "CASE", "WHEN", "THEN",
			"ELSE", "END", "ASC", "DESC", "NULLS", "FIRST", "LAST", "CAST",
			"OVER", "PARTITION", "WINDOW", "FILTER", "CREATE", "TABLE",
			"VIEW", "MATERIALIZED", "INDEX", "ALTER", "DROP", "TRUNCATE",
		).
		DataTypes(
			"SMALLINT", "INTEGER", "BIGINT", "NUMERIC", "REAL",
			"DOUBLE PRECISION", "SERIAL", "BIGSERIAL", "MONEY", "CHAR",
			"VARCHAR", "TEXT", "BYTEA", "BOOLEAN", "DATE", "TIME",
			"TIMESTAMP", "TIMESTAMPTZ", "INTERVAL", "UUID", "JSON", "JSONB",
			"ARRAY", "INET", "CIDR",
		).
		Reserved(
			"select", "from", "where", "group", "having", "order", "limit",
			"offset", "join", "union", "intersect", "except", "table", "with",
			"and", "or", "not", "in", "is", "null", "like", "between", "as",
			"user", "order", "check", "column", "constraint", "default",
		).
		Function("count", dialect.FunctionDoc{
			Kind:        dialect.FuncAggregate,
			Signature:   "count(expr | *) -> bigint",
			Description: "Number of input rows, or of rows where expr is not NULL.",
		}).
		Function("sum", dialect.FunctionDoc{
			Kind:        dialect.FuncAggregate,
			Signature:   "sum(expr) -> numeric",
			Description: "Sum of expr across all non-NULL input values.",
		}).
		Function("avg", dialect.FunctionDoc{
			Kind:        dialect.FuncAggregate,
			Signature:   "avg(expr) -> numeric",
			Description: "Arithmetic mean of all non-NULL input values.",
		}).
		Function("min", dialect.FunctionDoc{
			Kind:        dialect.FuncAggregate,
			Signature:   "min(expr)",
			Description: "Minimum value of expr across all non-NULL input values.",
		}).
		Function("max", dialect.FunctionDoc{
			Kind:        dialect.FuncAggregate,
			Signature:   "max(expr)",
			Description: "Maximum value of expr across all non-NULL input values.",
		}).
		Function("array_agg", dialect.FunctionDoc{
			Kind:        dialect.FuncAggregate,
			Signature:   "array_agg(expr) -> array",
			Description: "Input values collected into an array.",
		}).
		Function("string_agg", dialect.FunctionDoc{
			Kind:        dialect.FuncAggregate,
			Signature:   "string_agg(expr, delimiter) -> text",
			Description: "Non-NULL input values concatenated with the delimiter.",
		}).
		Function("json_agg", dialect.FunctionDoc{
			Kind:        dialect.FuncAggregate,
			Signature:   "json_agg(expr) -> json",
			Description: "Input values aggregated as a JSON array.",
		}).
		Function("row_number", dialect.FunctionDoc{
			Kind:        dialect.FuncWindow,
			Signature:   "row_number() over (...) -> bigint",
			Description: "Number of the current row within its partition, counting from 1.",
		}).
		Function("rank", dialect.FunctionDoc{
			Kind:        dialect.FuncWindow,
			Signature:   "rank() over (...) -> bigint",
			Description: "Rank of the current row with gaps.",
		}).
		Function("dense_rank", dialect.FunctionDoc{
			Kind:        dialect.FuncWindow,
			Signature:   "dense_rank() over (...) -> bigint",
			Description: "Rank of the current row without gaps.",
		}).
		Function("lag", dialect.FunctionDoc{
			Kind:        dialect.FuncWindow,
			Signature:   "lag(expr [, offset [, default]]) over (...)",
			Description: "Value of expr evaluated at a preceding row in the partition.",
		}).
		Function("lead", dialect.FunctionDoc{
			Kind:        dialect.FuncWindow,
			Signature:   "lead(expr [, offset [, default]]) over (...)",
			Description: "Value of expr evaluated at a following row in the partition.",
		}).
		Function("coalesce", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "coalesce(value, ...)",
			Description: "First argument that is not NULL.",
		}).
		Function("nullif", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "nullif(value1, value2)",
			Description: "NULL if the arguments are equal, otherwise value1.",
		}).
		Function("now", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "now() -> timestamptz",
			Description: "Current date and time at the start of the transaction.",
		}).
		Function("date_trunc", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "date_trunc(field, source) -> timestamp",
			Description: "source truncated to the precision named by field.",
		}).
		Function("to_char", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "to_char(value, format) -> text",
			Description: "Value formatted according to the format string.",
		}).
		Function("substring", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "substring(string [from int] [for int]) -> text",
			Description: "Substring of string.",
		}).
		Function("lower", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "lower(string) -> text",
			Description: "string with all characters lowercased.",
		}).
		Function("upper", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "upper(string) -> text",
			Description: "string with all characters uppercased.",
		}).
		Function("jsonb_build_object", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "jsonb_build_object(key, value, ...) -> jsonb",
			Description: "JSON object built from alternating key and value arguments.",
		}).
		Function("generate_series", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "generate_series(start, stop [, step]) -> setof",
			Description: "Series of values from start to stop.",
		}).
		Build()
}
