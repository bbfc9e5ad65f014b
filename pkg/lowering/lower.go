package lowering

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/sqlscope/pkg/cst"
	"github.com/leapstack-labs/sqlscope/pkg/dialect"
	"github.com/leapstack-labs/sqlscope/pkg/ir"
)

// DefaultMaxDepth bounds CST nesting. Trees deeper than this fail lowering
// outright rather than risking stack exhaustion on adversarial input.
const DefaultMaxDepth = 200

// Lowerer lowers concrete syntax trees for one dialect.
type Lowerer struct {
	d        *dialect.Dialect
	maxDepth int
}

// Option configures a Lowerer.
type Option func(*Lowerer)

// WithMaxDepth overrides the CST nesting bound.
func WithMaxDepth(n int) Option {
	return func(l *Lowerer) {
		if n > 0 {
			l.maxDepth = n
		}
	}
}

// New creates a Lowerer for the given dialect.
func New(d *dialect.Dialect, opts ...Option) *Lowerer {
	l := &Lowerer{d: d, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lower converts a parsed document into IR. It never returns nil; a tree
// that cannot be lowered yields a Result with OutcomeFailed.
func (l *Lowerer) Lower(root *cst.Node) *Result {
	res := &Result{}
	if root == nil || root.Kind != cst.KindSource {
		res.Outcome = OutcomeFailed
		return res
	}
	if root.Depth() > l.maxDepth {
		res.Outcome = OutcomeFailed
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Severity: SeverityError,
			Code:     CodeDepthExceeded,
			Message:  fmt.Sprintf("statement nesting exceeds the limit of %d", l.maxDepth),
			Span:     root.Span,
		})
		return res
	}

	p := &pass{d: l.d}
	for _, child := range root.Children {
		if child.Kind == cst.KindKeyword {
			continue
		}
		res.Statements = append(res.Statements, p.statement(child))
	}
	res.Diagnostics = p.diags
	res.Outcome = p.outcome(res.Statements)
	return res
}

// Lower is a convenience wrapper using default options.
func Lower(root *cst.Node, d *dialect.Dialect) *Result {
	return New(d).Lower(root)
}

// pass carries the per-run state of one lowering.
type pass struct {
	d        *dialect.Dialect
	diags    []Diagnostic
	degraded bool
}

func (p *pass) outcome(stmts []ir.Statement) Outcome {
	if len(stmts) == 0 {
		if p.degraded {
			return OutcomeFailed
		}
		return OutcomeSuccess
	}
	usable := false
	for _, s := range stmts {
		if _, unknown := s.(*ir.UnknownStmt); !unknown {
			usable = true
			break
		}
	}
	switch {
	case !usable:
		return OutcomeFailed
	case p.degraded:
		return OutcomePartial
	default:
		return OutcomeSuccess
	}
}

func (p *pass) report(sev Severity, code Code, n *cst.Node, format string, args ...any) {
	p.degraded = true
	p.diags = append(p.diags, Diagnostic{
		Severity: sev,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Span:     n.Span,
	})
}

// requireFeature reports an unsupported-feature diagnostic when the dialect
// lacks f. The construct is still lowered so downstream layers see it.
func (p *pass) requireFeature(f dialect.Feature, n *cst.Node, what string) {
	if !p.d.Supports(f) {
		p.report(SeverityWarning, CodeUnsupportedFeature, n,
			"%s is not supported by %s", what, p.d.Name)
	}
}

func (p *pass) statement(n *cst.Node) ir.Statement {
	switch n.Kind {
	case cst.KindSelectStmt, cst.KindSetOp, cst.KindParenExpr:
		return p.selectStmt(n)
	case cst.KindInsertStmt:
		return p.insertStmt(n)
	case cst.KindUpdateStmt:
		return p.updateStmt(n)
	case cst.KindDeleteStmt:
		return p.deleteStmt(n)
	case cst.KindDDLStmt:
		return p.ddlStmt(n)
	case cst.KindError:
		p.report(SeverityError, CodeSyntaxError, n, "unparsable statement")
		return &ir.UnknownStmt{NodeInfo: info(n), Reason: "unparsable statement"}
	default:
		p.report(SeverityError, CodeUnknownConstruct, n, "unexpected %s at statement level", n.Kind)
		return &ir.UnknownStmt{NodeInfo: info(n), Reason: n.Kind}
	}
}

// selectStmt lowers a select core, a parenthesized select, or a set
// operation chain, together with any WITH prefix.
func (p *pass) selectStmt(n *cst.Node) *ir.SelectStmt {
	stmt := &ir.SelectStmt{NodeInfo: info(n)}
	if with := findWith(n); with != nil {
		stmt.With = p.withClause(with)
	}
	stmt.Body = p.selectBody(n)
	return stmt
}

// findWith locates the with clause on the statement or, for set operations,
// on the leftmost operand.
func findWith(n *cst.Node) *cst.Node {
	for {
		if w := n.Field("with"); w != nil {
			return w
		}
		left := n.Field("left")
		if left == nil {
			return nil
		}
		n = left
	}
}

func (p *pass) withClause(n *cst.Node) *ir.WithClause {
	p.requireFeature(dialect.FeatureCTE, n, "WITH clause")
	w := &ir.WithClause{NodeInfo: info(n)}
	if hasKeyword(n, "RECURSIVE") {
		p.requireFeature(dialect.FeatureRecursiveCTE, n, "WITH RECURSIVE")
		w.Recursive = true
	}
	for _, c := range n.FieldAll("cte") {
		cte := &ir.CTE{NodeInfo: info(c)}
		cte.Name = p.identText(c.Field("name"))
		for _, col := range c.FieldAll("column") {
			cte.Columns = append(cte.Columns, p.identText(col))
		}
		if q := c.Field("query"); q != nil && !q.IsError() {
			cte.Select = p.selectStmt(q)
		} else {
			p.report(SeverityError, CodeSyntaxError, c, "common table expression %q has no query", cte.Name)
		}
		w.CTEs = append(w.CTEs, cte)
	}
	return w
}

// selectBody flattens the left-associated set-operation chain into the
// right-nested IR body.
func (p *pass) selectBody(n *cst.Node) *ir.SelectBody {
	cores, ops := p.flattenSetOps(n)
	if len(cores) == 0 {
		return &ir.SelectBody{NodeInfo: info(n), Left: &ir.SelectCore{NodeInfo: info(n)}}
	}

	body := &ir.SelectBody{NodeInfo: cores[len(cores)-1].NodeInfo, Left: cores[len(cores)-1]}
	for i := len(ops) - 1; i >= 0; i-- {
		body = &ir.SelectBody{
			NodeInfo: cores[i].NodeInfo,
			Left:     cores[i],
			Op:       ops[i],
			Right:    body,
		}
	}
	body.Span = n.Span
	return body
}

func (p *pass) flattenSetOps(n *cst.Node) ([]*ir.SelectCore, []ir.SetOpType) {
	switch n.Kind {
	case cst.KindSetOp:
		leftCores, leftOps := p.flattenSetOps(n.Field("left"))
		op := ir.SetOpUnion
		switch {
		case hasKeyword(n, "INTERSECT"):
			op = ir.SetOpIntersect
		case hasKeyword(n, "EXCEPT"):
			op = ir.SetOpExcept
		case hasKeyword(n, "ALL"):
			op = ir.SetOpUnionAll
		}
		rightCores, rightOps := p.flattenSetOps(n.Field("right"))
		cores := append(leftCores, rightCores...)
		ops := append(leftOps, op)
		return cores, append(ops, rightOps...)
	case cst.KindParenExpr:
		for _, c := range n.Children {
			if c.Kind == cst.KindSelectStmt || c.Kind == cst.KindSetOp {
				return p.flattenSetOps(c)
			}
		}
		return nil, nil
	case cst.KindSelectStmt:
		return []*ir.SelectCore{p.selectCore(n)}, nil
	default:
		return nil, nil
	}
}

func (p *pass) selectCore(n *cst.Node) *ir.SelectCore {
	core := &ir.SelectCore{NodeInfo: info(n)}
	core.Distinct = hasKeyword(n, "DISTINCT")
	if len(n.FieldAll("distinct_on")) > 0 {
		p.requireFeature(dialect.FeatureDistinctOn, n, "DISTINCT ON")
	}

	if list := n.Field("select_list"); list != nil {
		for _, item := range list.FieldAll("item") {
			core.Items = append(core.Items, p.selectItem(item))
		}
		for i, c := range list.Children {
			if c.IsError() && list.Fields[i] == "" {
				p.report(SeverityError, CodeSyntaxError, c, "incomplete select list")
			}
		}
	}

	if from := n.Field("from"); from != nil {
		core.From = p.sourceClause(from)
	}
	if where := n.Field("where"); where != nil {
		core.Where = p.expr(where.Field("expr"))
	}
	if group := n.Field("group_by"); group != nil {
		for _, e := range group.FieldAll("expr") {
			core.GroupBy = append(core.GroupBy, p.expr(e))
		}
	}
	if having := n.Field("having"); having != nil {
		core.Having = p.expr(having.Field("expr"))
	}
	if order := n.Field("order_by"); order != nil {
		core.OrderBy = p.orderItems(order)
	}
	core.Limit = p.limitOffset(n)
	return core
}

func (p *pass) orderItems(n *cst.Node) []*ir.OrderItem {
	var items []*ir.OrderItem
	for _, item := range n.FieldAll("item") {
		items = append(items, &ir.OrderItem{
			NodeInfo: info(item),
			Expr:     p.expr(item.Field("expr")),
			Desc:     hasKeyword(item, "DESC"),
		})
	}
	return items
}

// limitOffset normalizes the dialect limit spellings: `LIMIT count`,
// `LIMIT count OFFSET offset` and MySQL's `LIMIT offset, count` all produce
// the same pair.
func (p *pass) limitOffset(n *cst.Node) *ir.LimitOffset {
	limit := n.Field("limit")
	offset := n.Field("offset")
	if limit == nil && offset == nil {
		return nil
	}

	lo := &ir.LimitOffset{}
	if limit != nil {
		lo.NodeInfo = info(limit)
		if count := limit.Field("count"); count != nil {
			lo.Limit = p.expr(count)
		}
		if off := limit.Field("offset"); off != nil {
			// Comma spelling.
			p.requireFeature(dialect.FeatureLimitCommaOffset, limit, "LIMIT offset, count")
			lo.Offset = p.expr(off)
		}
	}
	if offset != nil {
		if !lo.Span.IsValid() {
			lo.NodeInfo = info(offset)
		} else {
			lo.Span = lo.Span.Union(offset.Span)
		}
		lo.Offset = p.expr(offset.Field("expr"))
	}
	return lo
}

func (p *pass) selectItem(n *cst.Node) *ir.SelectItem {
	item := &ir.SelectItem{NodeInfo: info(n)}

	if n.IsError() {
		item.Expr = p.unknownExpr(n, "incomplete projection")
		return item
	}
	if len(n.ChildrenOfKind(cst.KindStar)) > 0 {
		item.Star = true
		return item
	}
	// Qualified star: a column_reference child holding qualifier + star.
	for _, ref := range n.ChildrenOfKind(cst.KindColumnRef) {
		if len(ref.ChildrenOfKind(cst.KindStar)) > 0 {
			quals := ref.FieldAll("qualifier")
			if len(quals) > 0 {
				item.TableStar = p.identText(quals[len(quals)-1])
			}
			return item
		}
	}

	item.Expr = p.expr(n.Field("expr"))
	if alias := n.Field("alias"); alias != nil {
		item.Alias = p.identText(alias)
	}
	return item
}

func (p *pass) sourceClause(n *cst.Node) *ir.SourceClause {
	clause := &ir.SourceClause{NodeInfo: info(n)}
	clause.First = p.sourceItem(n.Field("source"))

	for _, j := range n.FieldAll("join") {
		clause.Joins = append(clause.Joins, p.join(j))
	}
	return clause
}

func (p *pass) join(n *cst.Node) *ir.Join {
	j := &ir.Join{NodeInfo: info(n), Kind: ir.JoinInner}
	switch {
	case hasKeyword(n, "LEFT"):
		j.Kind = ir.JoinLeft
	case hasKeyword(n, "RIGHT"):
		j.Kind = ir.JoinRight
	case hasKeyword(n, "FULL"):
		p.requireFeature(dialect.FeatureFullOuterJoin, n, "FULL OUTER JOIN")
		j.Kind = ir.JoinFull
	case hasKeyword(n, "CROSS"), !hasKeyword(n, "JOIN"):
		// Explicit CROSS JOIN, or a comma join (no JOIN keyword at all).
		j.Kind = ir.JoinCross
	}
	j.Natural = hasKeyword(n, "NATURAL")
	j.Right = p.sourceItem(n.Field("source"))

	if cond := n.Field("condition"); cond != nil {
		switch cond.Kind {
		case cst.KindJoinCondition:
			j.Condition = p.expr(cond.Field("expr"))
		case cst.KindUsingClause:
			for _, col := range cond.FieldAll("column") {
				j.Using = append(j.Using, p.identText(col))
			}
		}
	}
	return j
}

func (p *pass) sourceItem(n *cst.Node) ir.SourceItem {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case cst.KindTableRef:
		return p.tableName(n)
	case cst.KindDerivedTable:
		if hasKeyword(n, "LATERAL") {
			p.requireFeature(dialect.FeatureLateral, n, "LATERAL")
		}
		d := &ir.DerivedTable{NodeInfo: info(n)}
		if q := n.Field("query"); q != nil && !q.IsError() {
			d.Select = p.selectStmt(q)
		} else {
			p.report(SeverityError, CodeSyntaxError, n, "derived table has no query")
		}
		if alias := n.Field("alias"); alias != nil && !alias.IsError() {
			d.Alias = p.identText(alias)
		} else {
			p.report(SeverityError, CodeMissingAlias, n, "derived table requires an alias")
		}
		return d
	case cst.KindError:
		p.report(SeverityError, CodeSyntaxError, n, "expected a table name")
		return &ir.UnknownSource{NodeInfo: info(n), Reason: "expected a table name"}
	default:
		p.report(SeverityError, CodeUnknownConstruct, n, "unexpected %s in source clause", n.Kind)
		return &ir.UnknownSource{NodeInfo: info(n), Reason: n.Kind}
	}
}

// tableName lowers a table_reference node. With two name parts the first is
// the schema; MySQL treats it as the database, which maps the same way.
func (p *pass) tableName(n *cst.Node) *ir.TableName {
	t := &ir.TableName{NodeInfo: info(n)}
	names := n.FieldAll("name")
	parts := make([]string, 0, len(names))
	for _, name := range names {
		if name.IsError() {
			p.report(SeverityError, CodeSyntaxError, n, "incomplete table name")
			continue
		}
		parts = append(parts, p.identText(name))
	}
	switch len(parts) {
	case 0:
	case 1:
		t.Name = parts[0]
	default:
		t.Schema = parts[len(parts)-2]
		t.Name = parts[len(parts)-1]
	}
	if alias := n.Field("alias"); alias != nil && !alias.IsError() {
		t.Alias = p.identText(alias)
	}
	return t
}

func (p *pass) insertStmt(n *cst.Node) ir.Statement {
	stmt := &ir.InsertStmt{NodeInfo: info(n)}
	if target, ok := p.sourceItem(n.Field("target")).(*ir.TableName); ok {
		stmt.Target = target
	}
	for _, col := range n.FieldAll("column") {
		stmt.Columns = append(stmt.Columns, p.identText(col))
	}
	if values := n.Field("values"); values != nil {
		for _, row := range values.FieldAll("row") {
			var exprs []ir.Expr
			for _, v := range row.FieldAll("value") {
				exprs = append(exprs, p.expr(v))
			}
			stmt.Rows = append(stmt.Rows, exprs)
		}
	}
	if q := n.Field("query"); q != nil {
		stmt.Select = p.selectStmt(q)
	}
	stmt.Returning = p.returning(n)
	p.reportErrors(n)
	return stmt
}

func (p *pass) updateStmt(n *cst.Node) ir.Statement {
	stmt := &ir.UpdateStmt{NodeInfo: info(n)}
	if target, ok := p.sourceItem(n.Field("target")).(*ir.TableName); ok {
		stmt.Target = target
	}
	if set := n.Field("set"); set != nil {
		for _, a := range set.FieldAll("assignment") {
			assign := &ir.Assignment{NodeInfo: info(a)}
			if col := a.Field("column"); col != nil && col.Kind == cst.KindColumnRef {
				parts := col.FieldAll("part")
				if len(parts) > 0 && !parts[len(parts)-1].IsError() {
					assign.Column = p.identText(parts[len(parts)-1])
				}
			}
			if assign.Column == "" {
				p.report(SeverityError, CodeSyntaxError, a, "assignment has no target column")
			}
			assign.Value = p.expr(a.Field("value"))
			stmt.Set = append(stmt.Set, assign)
		}
	}
	if from := n.Field("from"); from != nil {
		stmt.From = p.sourceClause(from)
	}
	if where := n.Field("where"); where != nil {
		stmt.Where = p.expr(where.Field("expr"))
	}
	stmt.Returning = p.returning(n)
	p.reportErrors(n)
	return stmt
}

func (p *pass) deleteStmt(n *cst.Node) ir.Statement {
	stmt := &ir.DeleteStmt{NodeInfo: info(n)}
	if target, ok := p.sourceItem(n.Field("target")).(*ir.TableName); ok {
		stmt.Target = target
	}
	if using := n.Field("using"); using != nil {
		clause := &ir.SourceClause{NodeInfo: info(using)}
		for i, src := range using.FieldAll("source") {
			if i == 0 {
				clause.First = p.sourceItem(src)
				continue
			}
			clause.Joins = append(clause.Joins, &ir.Join{
				NodeInfo: info(src),
				Kind:     ir.JoinCross,
				Right:    p.sourceItem(src),
			})
		}
		stmt.Using = clause
	}
	if where := n.Field("where"); where != nil {
		stmt.Where = p.expr(where.Field("expr"))
	}
	stmt.Returning = p.returning(n)
	p.reportErrors(n)
	return stmt
}

func (p *pass) returning(n *cst.Node) []*ir.SelectItem {
	ret := n.Field("returning")
	if ret == nil {
		return nil
	}
	p.requireFeature(dialect.FeatureReturning, ret, "RETURNING")
	var items []*ir.SelectItem
	if list := ret.Field("list"); list != nil {
		for _, item := range list.FieldAll("item") {
			items = append(items, p.selectItem(item))
		}
	}
	return items
}

// reportErrors surfaces error nodes attached directly to a statement node
// that no clause lowering visited.
func (p *pass) reportErrors(n *cst.Node) {
	for i, c := range n.Children {
		if c.IsError() && n.Fields[i] == "" {
			p.report(SeverityError, CodeSyntaxError, c, "unparsable region")
		}
	}
}

func (p *pass) ddlStmt(n *cst.Node) ir.Statement {
	stmt := &ir.DDLStmt{NodeInfo: info(n), Kind: ir.DDLOther}
	verb := ""
	object := ""
	for _, c := range n.ChildrenOfKind(cst.KindKeyword) {
		up := strings.ToUpper(c.Text)
		switch up {
		case "CREATE", "ALTER", "DROP", "TRUNCATE":
			verb = up
		case "TABLE", "VIEW", "INDEX":
			object = up
		}
	}
	switch {
	case verb == "CREATE" && object == "TABLE":
		stmt.Kind = ir.DDLCreateTable
	case verb == "CREATE" && object == "VIEW":
		stmt.Kind = ir.DDLCreateView
	case verb == "CREATE" && object == "INDEX":
		stmt.Kind = ir.DDLCreateIndex
	case verb == "ALTER" && object == "TABLE":
		stmt.Kind = ir.DDLAlterTable
	case verb == "DROP" && object == "TABLE":
		stmt.Kind = ir.DDLDropTable
	case verb == "DROP" && object == "VIEW":
		stmt.Kind = ir.DDLDropView
	case verb == "TRUNCATE":
		stmt.Kind = ir.DDLTruncate
	}
	if target := n.Field("target"); target != nil {
		stmt.Target = p.tableName(target)
	}
	return stmt
}

func (p *pass) expr(n *cst.Node) ir.Expr {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case cst.KindLiteral:
		return p.literal(n)
	case cst.KindBindVar:
		return p.bindParam(n)
	case cst.KindColumnRef:
		return p.columnRef(n)
	case cst.KindBinaryExpr:
		return p.binaryExpr(n)
	case cst.KindUnaryExpr:
		return p.unaryExpr(n)
	case cst.KindParenExpr:
		return p.expr(n.Field("expr"))
	case cst.KindFuncCall:
		return p.funcCall(n)
	case cst.KindCaseExpr:
		return p.caseExpr(n)
	case cst.KindCastExpr:
		return p.castExpr(n)
	case cst.KindSubquery:
		return p.subquery(n, false)
	case cst.KindExistsExpr:
		if sub := n.Field("subquery"); sub != nil && !sub.IsError() {
			return p.subquery(sub, true)
		}
		return p.unknownExpr(n, "EXISTS without subquery")
	case cst.KindInExpr:
		return p.inExpr(n)
	case cst.KindBetween:
		return p.betweenExpr(n)
	case cst.KindIsExpr:
		return p.isExpr(n)
	case cst.KindError:
		return p.unknownExpr(n, "unparsable expression")
	default:
		return p.unknownExpr(n, n.Kind)
	}
}

func (p *pass) unknownExpr(n *cst.Node, reason string) ir.Expr {
	p.report(SeverityError, CodeSyntaxError, n, "cannot interpret expression: %s", reason)
	return &ir.UnknownExpr{NodeInfo: info(n), Reason: reason}
}

func (p *pass) literal(n *cst.Node) *ir.Literal {
	lit := &ir.Literal{NodeInfo: info(n)}
	text := n.Text
	switch {
	case strings.HasPrefix(text, "'"):
		lit.Type = ir.LiteralString
		lit.Value = unquote(text, '\'')
	case strings.HasPrefix(text, `"`):
		// MySQL double-quoted string.
		lit.Type = ir.LiteralString
		lit.Value = unquote(text, '"')
	case strings.EqualFold(text, "true"), strings.EqualFold(text, "false"):
		lit.Type = ir.LiteralBool
		lit.Value = strings.ToUpper(text)
	case strings.EqualFold(text, "null"):
		lit.Type = ir.LiteralNull
		lit.Value = "NULL"
	default:
		lit.Type = ir.LiteralNumber
		lit.Value = text
	}
	return lit
}

func (p *pass) bindParam(n *cst.Node) *ir.BindParam {
	b := &ir.BindParam{NodeInfo: info(n)}
	if strings.HasPrefix(n.Text, "$") {
		if idx, err := strconv.Atoi(n.Text[1:]); err == nil {
			b.Index = idx
		}
	}
	return b
}

func (p *pass) columnRef(n *cst.Node) ir.Expr {
	parts := n.FieldAll("part")
	var names []string
	for _, part := range parts {
		if part.IsError() {
			// The missing part is a zero-width recovery leaf; anchor the
			// diagnostic there rather than over the whole reference.
			p.report(SeverityError, CodeSyntaxError, part, "incomplete column reference")
			return &ir.UnknownExpr{NodeInfo: info(n), Reason: "incomplete column reference"}
		}
		names = append(names, p.identText(part))
	}
	ref := &ir.ColumnRef{NodeInfo: info(n)}
	switch len(names) {
	case 0:
		return p.unknownExpr(n, "empty column reference")
	case 1:
		ref.Column = names[0]
	default:
		// schema qualifiers beyond the table are not tracked on columns.
		ref.Table = names[len(names)-2]
		ref.Column = names[len(names)-1]
	}
	return ref
}

func (p *pass) binaryExpr(n *cst.Node) ir.Expr {
	op := ir.BinaryOp(strings.ToUpper(n.Field("operator").Text))
	if op == "ILIKE" || op == "NOT ILIKE" {
		p.requireFeature(dialect.FeatureIlike, n, "ILIKE")
	}
	return &ir.BinaryExpr{
		NodeInfo: info(n),
		Left:     p.expr(n.Field("left")),
		Op:       op,
		Right:    p.expr(n.Field("right")),
	}
}

func (p *pass) unaryExpr(n *cst.Node) ir.Expr {
	op := "NOT"
	if opNode := n.Field("operator"); opNode != nil {
		op = opNode.Text
	}
	return &ir.UnaryExpr{
		NodeInfo: info(n),
		Op:       strings.ToUpper(op),
		Expr:     p.expr(n.Field("operand")),
	}
}

func (p *pass) funcCall(n *cst.Node) ir.Expr {
	call := &ir.FuncCall{NodeInfo: info(n)}
	call.Name = strings.ToLower(p.identText(n.Field("name")))

	if args := n.Field("args"); args != nil {
		call.Distinct = hasKeyword(args, "DISTINCT")
		call.Star = len(args.ChildrenOfKind(cst.KindStar)) > 0
		for _, arg := range args.FieldAll("arg") {
			call.Args = append(call.Args, p.expr(arg))
		}
	}
	if over := n.Field("over"); over != nil {
		p.requireFeature(dialect.FeatureWindowFunctions, over, "window functions")
		call.Over = p.windowSpec(over.Field("spec"))
	}
	return call
}

func (p *pass) windowSpec(n *cst.Node) *ir.WindowSpec {
	if n == nil {
		return &ir.WindowSpec{}
	}
	spec := &ir.WindowSpec{NodeInfo: info(n)}
	for _, e := range n.FieldAll("partition") {
		spec.PartitionBy = append(spec.PartitionBy, p.expr(e))
	}
	if order := n.Field("order_by"); order != nil {
		spec.OrderBy = p.orderItems(order)
	}
	return spec
}

func (p *pass) caseExpr(n *cst.Node) ir.Expr {
	c := &ir.CaseExpr{NodeInfo: info(n)}
	if operand := n.Field("operand"); operand != nil {
		c.Operand = p.expr(operand)
	}
	for _, when := range n.FieldAll("when") {
		c.Whens = append(c.Whens, &ir.WhenClause{
			NodeInfo:  info(when),
			Condition: p.expr(when.Field("condition")),
			Result:    p.expr(when.Field("result")),
		})
	}
	if els := n.Field("else"); els != nil {
		c.Else = p.expr(els)
	}
	return c
}

func (p *pass) castExpr(n *cst.Node) ir.Expr {
	c := &ir.CastExpr{NodeInfo: info(n), Expr: p.expr(n.Field("expr"))}
	if t := n.Field("type"); t != nil && !t.IsError() {
		c.TypeName = strings.ToLower(t.Text)
	} else {
		p.report(SeverityError, CodeSyntaxError, n, "cast has no target type")
	}
	return c
}

func (p *pass) subquery(n *cst.Node, exists bool) ir.Expr {
	sub := &ir.Subquery{NodeInfo: info(n), Exists: exists}
	if q := n.Field("query"); q != nil {
		sub.Select = p.selectStmt(q)
	} else {
		p.report(SeverityError, CodeSyntaxError, n, "subquery has no query")
	}
	return sub
}

func (p *pass) inExpr(n *cst.Node) ir.Expr {
	e := &ir.InExpr{NodeInfo: info(n)}
	e.Expr = p.expr(n.Field("expr"))
	e.Not = n.Field("not") != nil
	if sub := n.Field("subquery"); sub != nil {
		if s, ok := p.subquery(sub, false).(*ir.Subquery); ok {
			e.Subquery = s
		}
	} else if list := n.Field("list"); list != nil {
		if list.IsError() {
			p.report(SeverityError, CodeSyntaxError, n, "IN has no value list")
		} else {
			for _, v := range list.FieldAll("value") {
				e.List = append(e.List, p.expr(v))
			}
		}
	}
	return e
}

func (p *pass) betweenExpr(n *cst.Node) ir.Expr {
	return &ir.BetweenExpr{
		NodeInfo: info(n),
		Expr:     p.expr(n.Field("expr")),
		Not:      n.Field("not") != nil,
		Low:      p.expr(n.Field("low")),
		High:     p.expr(n.Field("high")),
	}
}

func (p *pass) isExpr(n *cst.Node) ir.Expr {
	e := &ir.IsExpr{NodeInfo: info(n)}
	e.Expr = p.expr(n.Field("expr"))
	e.Not = hasKeyword(n, "NOT")
	if v := n.Field("value"); v != nil && !v.IsError() {
		e.Value = strings.ToUpper(v.Text)
	} else {
		p.report(SeverityError, CodeSyntaxError, n, "IS has no right-hand value")
	}
	return e
}

// identText returns the normalized identifier text of a leaf: quoted
// identifiers are unquoted with case preserved, unquoted ones follow the
// dialect's normalization rule.
func (p *pass) identText(n *cst.Node) string {
	if n == nil || n.IsError() {
		return ""
	}
	text := n.Text
	if len(text) >= 2 {
		switch text[0] {
		case '"':
			return unquote(text, '"')
		case '`':
			return unquote(text, '`')
		}
	}
	return p.d.NormalizeName(text)
}

// unquote strips surrounding quote characters and un-doubles embedded ones.
func unquote(text string, quote byte) string {
	q := string(quote)
	if len(text) >= 2 && text[0] == quote && text[len(text)-1] == quote {
		text = text[1 : len(text)-1]
	}
	return strings.ReplaceAll(text, q+q, q)
}

// hasKeyword reports whether n has a direct keyword child with the given
// word, case insensitive.
func hasKeyword(n *cst.Node, word string) bool {
	for _, c := range n.Children {
		if c.Kind == cst.KindKeyword && strings.EqualFold(c.Text, word) {
			return true
		}
	}
	return false
}

func info(n *cst.Node) ir.NodeInfo {
	return ir.NodeInfo{Span: n.Span}
}
