// Package mysql registers the MySQL dialect family. Versions 5.7 and 8.0
// share one configuration base and differ only in feature flags: 8.0 adds
// common table expressions and window functions.
package mysql

import "github.com/leapstack-labs/sqlscope/pkg/dialect"

// Registered dialect names.
const (
	Name57 = "mysql-5.7"
	Name80 = "mysql-8.0"
)

func init() {
	dialect.Register(New57())
	dialect.Register(New80())
}

// New57 builds the MySQL 5.7 dialect.
func New57() *dialect.Dialect {
	return base(Name57).Build()
}

// New80 builds the MySQL 8.0 dialect.
func New80() *dialect.Dialect {
	return base(Name80).
		Features(
			dialect.FeatureCTE,
			dialect.FeatureRecursiveCTE,
			dialect.FeatureWindowFunctions,
		).
		Keywords("WITH", "RECURSIVE", "OVER", "PARTITION", "WINDOW").
		Function("row_number", dialect.FunctionDoc{
			Kind:        dialect.FuncWindow,
			Signature:   "row_number() over (...) -> bigint",
			Description: "Number of the current row within its partition, starting at 1.",
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
			Description: "Value of expr from a preceding row in the partition.",
		}).
		Function("lead", dialect.FunctionDoc{
			Kind:        dialect.FuncWindow,
			Signature:   "lead(expr [, offset [, default]]) over (...)",
			Description: "Value of expr from a following row in the partition.",
		}).
		Build()
}

func base(name string) *dialect.Builder {
	return dialect.New(name, dialect.FamilyMySQL).
		Features(
			dialect.FeatureLimitCommaOffset,
			dialect.FeatureOnDuplicateKey,
		).
		Keywords(
			"SELECT", "FROM", "WHERE", "GROUP", "BY", "HAVING", "ORDER",
			"LIMIT", "OFFSET", "AS", "ON", "USING", "JOIN", "INNER", "LEFT",
			"RIGHT", "CROSS", "OUTER", "NATURAL", "UNION", "ALL", "DISTINCT",
			"INSERT", "INTO", "VALUES", "UPDATE", "SET", "DELETE", "AND",
			"OR", "NOT", "IN", "IS", "NULL", "LIKE", "BETWEEN", "EXISTS",
			"CASE", "WHEN", "THEN", "ELSE", "END", "ASC", "DESC", "CAST",
			"CREATE", "TABLE", "VIEW", "INDEX", "ALTER", "DROP", "TRUNCATE",
			"DUPLICATE", "KEY", "IGNORE", "REPLACE", "STRAIGHT_JOIN",
		).
		DataTypes(
			"TINYINT", "SMALLINT", "MEDIUMINT", "INT", "BIGINT", "DECIMAL",
			"FLOAT", "DOUBLE", "BIT", "CHAR", "VARCHAR", "TINYTEXT", "TEXT",
			"MEDIUMTEXT", "LONGTEXT", "BINARY", "VARBINARY", "BLOB", "JSON",
			"DATE", "TIME", "DATETIME", "TIMESTAMP", "YEAR", "ENUM",
		).
		Reserved(
			"select", "from", "where", "group", "having", "order", "limit",
			"join", "union", "insert", "update", "delete", "table", "by",
			"and", "or", "not", "in", "is", "null", "like", "between", "as",
		).
		Function("count", dialect.FunctionDoc{
			Kind:        dialect.FuncAggregate,
			Signature:   "count(expr | *) -> bigint",
			Description: "Number of rows, or of non-NULL values of expr.",
		}).
		Function("sum", dialect.FunctionDoc{
			Kind:        dialect.FuncAggregate,
			Signature:   "sum(expr) -> numeric",
			Description: "Sum of expr over all input rows.",
		}).
		Function("avg", dialect.FunctionDoc{
			Kind:        dialect.FuncAggregate,
			Signature:   "avg(expr) -> numeric",
			Description: "Average of expr over all input rows.",
		}).
		Function("min", dialect.FunctionDoc{
			Kind:        dialect.FuncAggregate,
			Signature:   "min(expr)",
			Description: "Minimum value of expr.",
		}).
		Function("max", dialect.FunctionDoc{
			Kind:        dialect.FuncAggregate,
			Signature:   "max(expr)",
			Description: "Maximum value of expr.",
		}).
		Function("group_concat", dialect.FunctionDoc{
			Kind:        dialect.FuncAggregate,
			Signature:   "group_concat([DISTINCT] expr [ORDER BY ...] [SEPARATOR sep]) -> text",
			Description: "Concatenated non-NULL values from the group.",
		}).
		Function("concat", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "concat(str1, str2, ...) -> text",
			Description: "Concatenation of its arguments; NULL if any argument is NULL.",
		}).
		Function("coalesce", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "coalesce(value, ...)",
			Description: "First non-NULL argument.",
		}).
		Function("ifnull", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "ifnull(expr, alt)",
			Description: "expr if it is not NULL, otherwise alt.",
		}).
		Function("now", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "now() -> datetime",
			Description: "Current date and time.",
		}).
		Function("date_format", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "date_format(date, format) -> text",
			Description: "Date formatted according to the format string.",
		}).
		Function("substring", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "substring(str, pos [, len]) -> text",
			Description: "Substring of str starting at pos.",
		}).
		Function("lower", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "lower(str) -> text",
			Description: "str with all characters lowercased.",
		}).
		Function("upper", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "upper(str) -> text",
			Description: "str with all characters uppercased.",
		}).
		Function("json_extract", dialect.FunctionDoc{
			Kind:        dialect.FuncScalar,
			Signature:   "json_extract(json, path, ...) -> json",
			Description: "Data from a JSON document at the given paths.",
		})
}
