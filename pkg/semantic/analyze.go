package semantic

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlscope/pkg/dialect"
	"github.com/leapstack-labs/sqlscope/pkg/ir"
	"github.com/leapstack-labs/sqlscope/pkg/lowering"
	"github.com/leapstack-labs/sqlscope/pkg/schema"
	"github.com/leapstack-labs/sqlscope/pkg/token"
)

// Analysis is the result of semantic analysis over one document.
type Analysis struct {
	Diagnostics []lowering.Diagnostic

	scopes []*Scope
	refs   []ResolvedRef
	tables []TableRef
}

// ResolvedRef pairs a column reference with its resolution.
type ResolvedRef struct {
	Ref *ir.ColumnRef
	Res Resolution
}

// TableRef records where a source was referenced in the text.
type TableRef struct {
	Span   token.Span
	Source *Source
}

// Analyze builds scopes for every statement and resolves all column
// references. snap may be nil when no catalog is configured; resolution
// then works purely on aliases and projections.
func Analyze(stmts []ir.Statement, snap *schema.Snapshot, d *dialect.Dialect) *Analysis {
	az := &analyzer{snap: snap, d: d, out: &Analysis{}}
	for _, stmt := range stmts {
		az.statement(stmt)
	}
	return az.out
}

// ScopeAt returns the innermost scope containing the offset, or nil.
func (a *Analysis) ScopeAt(offset int) *Scope {
	var best *Scope
	for _, sc := range a.scopes {
		if !sc.Span.ContainsInclusive(offset) {
			continue
		}
		// Ties go to the later scope: children are recorded after their
		// parents, and a core scope can share its statement's span.
		if best == nil || sc.Span.Len() <= best.Span.Len() {
			best = sc
		}
	}
	return best
}

// ResolutionAt returns the resolved column reference at the offset.
func (a *Analysis) ResolutionAt(offset int) (ResolvedRef, bool) {
	for _, r := range a.refs {
		if r.Ref.Span.ContainsInclusive(offset) {
			return r, true
		}
	}
	return ResolvedRef{}, false
}

// TableRefAt returns the source reference at the offset.
func (a *Analysis) TableRefAt(offset int) (TableRef, bool) {
	for _, r := range a.tables {
		if r.Span.ContainsInclusive(offset) {
			return r, true
		}
	}
	return TableRef{}, false
}

// References returns every resolved column reference in document order.
func (a *Analysis) References() []ResolvedRef {
	return a.refs
}

type analyzer struct {
	snap *schema.Snapshot
	d    *dialect.Dialect
	out  *Analysis
}

func (az *analyzer) report(sev lowering.Severity, code lowering.Code, span token.Span, format string, args ...any) {
	az.out.Diagnostics = append(az.out.Diagnostics, lowering.Diagnostic{
		Severity: sev,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Span:     span,
	})
}

func (az *analyzer) statement(stmt ir.Statement) {
	switch s := stmt.(type) {
	case *ir.SelectStmt:
		az.analyzeSelect(s, nil)
	case *ir.InsertStmt:
		az.insert(s)
	case *ir.UpdateStmt:
		az.update(s)
	case *ir.DeleteStmt:
		az.delete(s)
	}
}

// analyzeSelect builds the statement scope (holding CTEs) and one child
// scope per set-operation core. It returns the statement scope and the
// projection of the first core, which is the output shape of the whole
// statement.
func (az *analyzer) analyzeSelect(stmt *ir.SelectStmt, parent *Scope) (*Scope, []ColumnInfo, bool) {
	scope := newScope(parent, stmt.Span)
	az.out.scopes = append(az.out.scopes, scope)

	if stmt.With != nil {
		az.withClause(stmt.With, scope)
	}

	var projection []ColumnInfo
	complete := false
	first := true
	for body := stmt.Body; body != nil; body = body.Right {
		if body.Left == nil {
			continue
		}
		coreScope := az.core(body.Left, scope)
		if first {
			projection, complete = az.projection(body.Left, coreScope)
			first = false
		}
	}
	return scope, projection, complete
}

func (az *analyzer) withClause(w *ir.WithClause, scope *Scope) {
	for _, cte := range w.CTEs {
		if cte.Name == "" {
			continue
		}
		key := strings.ToLower(cte.Name)
		if _, exists := scope.ctes[key]; exists {
			az.report(lowering.SeverityError, CodeDuplicateAlias, cte.Span,
				"duplicate common table expression name %q", cte.Name)
		}
		src := &Source{Name: cte.Name, Kind: SourceCTE, Span: cte.Span}
		if w.Recursive {
			// The CTE is visible inside its own body with an unverified
			// column set.
			scope.ctes[key] = src
		}
		if cte.Select != nil {
			_, cols, complete := az.analyzeSelect(cte.Select, scope)
			src.Columns = cols
			src.Complete = complete
		}
		if len(cte.Columns) > 0 {
			// An explicit column list renames the projection.
			named := make([]ColumnInfo, len(cte.Columns))
			for i, name := range cte.Columns {
				named[i] = ColumnInfo{Name: name}
				if i < len(src.Columns) {
					named[i].DataType = src.Columns[i].DataType
					named[i].Nullable = src.Columns[i].Nullable
				}
			}
			src.Columns = named
			src.Complete = true
		}
		scope.ctes[key] = src
	}
}

// core builds the scope of one SELECT core and resolves its expressions.
func (az *analyzer) core(core *ir.SelectCore, parent *Scope) *Scope {
	sc := newScope(parent, core.Span)
	az.out.scopes = append(az.out.scopes, sc)

	if core.From != nil {
		az.registerSources(sc, core.From)
		// Join conditions resolve after every source is registered: an ON
		// clause may reference any table of the clause.
		for _, j := range core.From.Joins {
			az.expr(sc, j.Condition)
		}
	}

	for _, item := range core.Items {
		az.expr(sc, item.Expr)
	}
	az.expr(sc, core.Where)
	for _, e := range core.GroupBy {
		az.expr(sc, e)
	}
	az.expr(sc, core.Having)
	for _, o := range core.OrderBy {
		az.expr(sc, o.Expr)
	}
	if core.Limit != nil {
		az.expr(sc, core.Limit.Limit)
		az.expr(sc, core.Limit.Offset)
	}
	return sc
}

func (az *analyzer) registerSources(sc *Scope, clause *ir.SourceClause) {
	for _, item := range clause.Items() {
		src := az.buildSource(sc, item)
		if src == nil {
			continue
		}
		if src.Name != "" {
			if _, dup := sc.SourceNamed(src.Name); dup {
				az.report(lowering.SeverityError, CodeDuplicateAlias, src.Span,
					"duplicate table alias %q", src.Name)
			}
		}
		sc.Sources = append(sc.Sources, src)
	}
}

func (az *analyzer) buildSource(sc *Scope, item ir.SourceItem) *Source {
	switch s := item.(type) {
	case *ir.TableName:
		return az.tableSource(sc, s)
	case *ir.DerivedTable:
		src := &Source{Name: s.Alias, Kind: SourceDerived, Span: s.Span}
		if s.Select != nil {
			_, cols, complete := az.analyzeSelect(s.Select, sc.Parent)
			src.Columns = cols
			src.Complete = complete
		}
		return src
	case *ir.UnknownSource:
		return &Source{Kind: SourceUnknown, Span: s.Span}
	default:
		return nil
	}
}

func (az *analyzer) tableSource(sc *Scope, t *ir.TableName) *Source {
	src := &Source{Name: t.EffectiveName(), Span: t.Span}

	// CTEs shadow catalog tables, but only for unqualified references.
	if t.Schema == "" {
		if cte, ok := sc.CTE(t.Name); ok {
			src.Kind = SourceCTE
			src.Columns = cte.Columns
			src.Complete = cte.Complete
			az.out.tables = append(az.out.tables, TableRef{Span: t.Span, Source: src})
			return src
		}
	}

	if az.snap != nil {
		if tbl, ok := az.snap.Table(t.Schema, t.Name, az.d.DefaultSchema); ok {
			src.Table = tbl
			src.Kind = SourceTable
			if tbl.Kind == schema.KindView {
				src.Kind = SourceView
			}
			src.Complete = true
			for _, c := range tbl.Columns {
				src.Columns = append(src.Columns, ColumnInfo{
					Name:     c.Name,
					DataType: c.DataType,
					Nullable: c.Nullable,
					Primary:  tbl.IsPrimaryKey(c.Name),
				})
			}
			az.out.tables = append(az.out.tables, TableRef{Span: t.Span, Source: src})
			return src
		}
		if !az.snap.Empty() {
			az.report(lowering.SeverityWarning, CodeUnknownTable, t.Span,
				"table %q not found in the catalog", t.Qualified())
		}
	}
	src.Kind = SourceUnknown
	az.out.tables = append(az.out.tables, TableRef{Span: t.Span, Source: src})
	return src
}

// projection computes the output columns of one core. The boolean reports
// whether the set is complete, which requires complete sources behind any
// star expansion.
func (az *analyzer) projection(core *ir.SelectCore, sc *Scope) ([]ColumnInfo, bool) {
	var out []ColumnInfo
	complete := true
	for _, item := range core.Items {
		switch {
		case item.Star:
			out = append(out, sc.AllColumns()...)
			for _, src := range sc.Sources {
				if !src.Complete {
					complete = false
				}
			}
		case item.TableStar != "":
			if src, ok := sc.SourceNamed(item.TableStar); ok {
				out = append(out, src.Columns...)
				if !src.Complete {
					complete = false
				}
			} else {
				complete = false
			}
		default:
			name := item.Alias
			if name == "" {
				name = exprName(item.Expr)
			}
			if name == "" {
				complete = false
				continue
			}
			col := ColumnInfo{Name: name, DataType: exprType(item.Expr)}
			if ref, ok := item.Expr.(*ir.ColumnRef); ok {
				// Carry the catalog type through the projection.
				if res, _ := resolve(sc, ref.Table, ref.Column); res.Kind == Resolved && res.Column != nil {
					col.DataType = res.Column.DataType
					col.Nullable = res.Column.Nullable
				}
			}
			out = append(out, col)
		}
	}
	return out, complete
}

// exprName derives the implicit output name of a projection expression.
func exprName(e ir.Expr) string {
	switch v := e.(type) {
	case *ir.ColumnRef:
		return v.Column
	case *ir.FuncCall:
		return v.Name
	case *ir.CastExpr:
		return exprName(v.Expr)
	default:
		return ""
	}
}

func exprType(e ir.Expr) string {
	if cast, ok := e.(*ir.CastExpr); ok {
		return cast.TypeName
	}
	return ""
}

func (az *analyzer) insert(stmt *ir.InsertStmt) {
	sc := newScope(nil, stmt.Span)
	az.out.scopes = append(az.out.scopes, sc)

	var target *Source
	if stmt.Target != nil {
		target = az.tableSource(sc, stmt.Target)
		sc.Sources = append(sc.Sources, target)
	}
	if target != nil && target.Complete {
		for _, col := range stmt.Columns {
			if _, ok := target.Column(col); !ok {
				az.report(lowering.SeverityWarning, CodeUnknownColumn, stmt.Span,
					"column %q does not exist in %q", col, target.Name)
			}
		}
	}
	for _, row := range stmt.Rows {
		for _, e := range row {
			az.expr(sc, e)
		}
	}
	if stmt.Select != nil {
		az.analyzeSelect(stmt.Select, nil)
	}
	for _, item := range stmt.Returning {
		az.expr(sc, item.Expr)
	}
}

func (az *analyzer) update(stmt *ir.UpdateStmt) {
	sc := newScope(nil, stmt.Span)
	az.out.scopes = append(az.out.scopes, sc)

	var target *Source
	if stmt.Target != nil {
		target = az.tableSource(sc, stmt.Target)
		sc.Sources = append(sc.Sources, target)
	}
	if stmt.From != nil {
		az.registerSources(sc, stmt.From)
	}
	for _, assign := range stmt.Set {
		if target != nil && target.Complete && assign.Column != "" {
			if _, ok := target.Column(assign.Column); !ok {
				az.report(lowering.SeverityWarning, CodeUnknownColumn, assign.Span,
					"column %q does not exist in %q", assign.Column, target.Name)
			}
		}
		az.expr(sc, assign.Value)
	}
	az.expr(sc, stmt.Where)
	for _, item := range stmt.Returning {
		az.expr(sc, item.Expr)
	}
}

func (az *analyzer) delete(stmt *ir.DeleteStmt) {
	sc := newScope(nil, stmt.Span)
	az.out.scopes = append(az.out.scopes, sc)

	if stmt.Target != nil {
		sc.Sources = append(sc.Sources, az.tableSource(sc, stmt.Target))
	}
	if stmt.Using != nil {
		az.registerSources(sc, stmt.Using)
	}
	az.expr(sc, stmt.Where)
	for _, item := range stmt.Returning {
		az.expr(sc, item.Expr)
	}
}

func (az *analyzer) expr(sc *Scope, e ir.Expr) {
	switch v := e.(type) {
	case nil:
	case *ir.ColumnRef:
		az.columnRef(sc, v)
	case *ir.BinaryExpr:
		az.expr(sc, v.Left)
		az.expr(sc, v.Right)
	case *ir.UnaryExpr:
		az.expr(sc, v.Expr)
	case *ir.FuncCall:
		for _, arg := range v.Args {
			az.expr(sc, arg)
		}
		if v.Over != nil {
			for _, p := range v.Over.PartitionBy {
				az.expr(sc, p)
			}
			for _, o := range v.Over.OrderBy {
				az.expr(sc, o.Expr)
			}
		}
	case *ir.Subquery:
		if v.Select != nil {
			az.analyzeSelect(v.Select, sc)
		}
	case *ir.CaseExpr:
		az.expr(sc, v.Operand)
		for _, w := range v.Whens {
			az.expr(sc, w.Condition)
			az.expr(sc, w.Result)
		}
		az.expr(sc, v.Else)
	case *ir.CastExpr:
		az.expr(sc, v.Expr)
	case *ir.InExpr:
		az.expr(sc, v.Expr)
		for _, item := range v.List {
			az.expr(sc, item)
		}
		if v.Subquery != nil {
			az.expr(sc, v.Subquery)
		}
	case *ir.BetweenExpr:
		az.expr(sc, v.Expr)
		az.expr(sc, v.Low)
		az.expr(sc, v.High)
	case *ir.IsExpr:
		az.expr(sc, v.Expr)
	}
}

func (az *analyzer) columnRef(sc *Scope, ref *ir.ColumnRef) {
	res, verified := resolve(sc, ref.Table, ref.Column)
	az.out.refs = append(az.out.refs, ResolvedRef{Ref: ref, Res: res})

	switch res.Kind {
	case Ambiguous:
		names := make([]string, len(res.Candidates))
		for i, c := range res.Candidates {
			names[i] = c.Name
		}
		az.report(lowering.SeverityError, CodeAmbiguousColumn, ref.Span,
			"column %q is ambiguous: present in %s", ref.Column, strings.Join(names, ", "))
	case Unknown:
		if !verified {
			return
		}
		if ref.Table != "" {
			if res.Source != nil {
				az.report(lowering.SeverityWarning, CodeUnknownColumn, ref.Span,
					"column %q does not exist in %q", ref.Column, ref.Table)
			} else {
				az.report(lowering.SeverityWarning, CodeUnknownTable, ref.Span,
					"unknown table or alias %q", ref.Table)
			}
		} else {
			az.report(lowering.SeverityWarning, CodeUnknownColumn, ref.Span,
				"column %q does not match any visible source", ref.Column)
		}
	}
}

// resolve finds the source of a column reference. The second return value
// reports whether the answer is authoritative: false means some visible
// source had an incomplete column set, so a miss must not be diagnosed.
func resolve(sc *Scope, table, column string) (Resolution, bool) {
	if table != "" {
		outer := false
		for s := sc; s != nil; s = s.Parent {
			src, ok := s.SourceNamed(table)
			if !ok {
				outer = true
				continue
			}
			if col, found := src.Column(column); found {
				return Resolution{Kind: Resolved, Source: src, Column: col, Outer: outer}, true
			}
			if !src.Complete {
				return Resolution{Kind: Resolved, Source: src, Outer: outer}, false
			}
			return Resolution{Kind: Unknown, Source: src, Outer: outer}, true
		}
		return Resolution{Kind: Unknown}, true
	}

	outer := false
	verified := true
	for s := sc; s != nil; s = s.Parent {
		var matches []*Source
		for _, src := range s.Sources {
			if _, ok := src.Column(column); ok {
				matches = append(matches, src)
			}
			if !src.Complete {
				verified = false
			}
		}
		switch {
		case len(matches) > 1:
			return Resolution{Kind: Ambiguous, Candidates: matches, Outer: outer}, true
		case len(matches) == 1:
			col, _ := matches[0].Column(column)
			return Resolution{Kind: Resolved, Source: matches[0], Column: col, Outer: outer}, true
		}
		outer = true
	}
	return Resolution{Kind: Unknown}, verified
}
