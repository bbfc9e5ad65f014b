package syntax

import (
	"context"
	"strings"

	"github.com/leapstack-labs/sqlscope/pkg/cst"
	"github.com/leapstack-labs/sqlscope/pkg/dialect"
	"github.com/leapstack-labs/sqlscope/pkg/token"
)

// Parser produces concrete syntax trees for one dialect. It is error
// tolerant: malformed regions become error nodes and parsing continues at
// the next statement or clause boundary, so analysis layers always receive
// a tree covering the full document.
type Parser struct {
	d *dialect.Dialect
}

// NewParser creates a parser for the given dialect.
func NewParser(d *dialect.Dialect) *Parser {
	return &Parser{d: d}
}

// Parse implements cst.Parser.
func (p *Parser) Parse(ctx context.Context, text string) (*cst.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := &run{d: p.d, toks: Tokenize(text, p.d)}
	root := cst.New(cst.KindSource, token.Span{})

	for !r.at(token.EOF) {
		start := r.idx
		switch {
		case r.at(token.SEMI):
			r.advance()
		case r.atStatementStart():
			root.Append(r.statement())
		default:
			root.Append(r.errorUntil(token.SEMI))
		}
		// Tolerant parsing must still make progress on any input.
		if r.idx == start {
			r.advance()
		}
	}
	return root, nil
}

// Expression binding powers, loosest first.
const (
	precLowest = iota
	precOr
	precAnd
	precNot
	precCompare // = != < > <= >= IS IN BETWEEN LIKE ILIKE
	precConcat  // ||
	precAdd     // + -
	precMul     // * / %
)

type run struct {
	d    *dialect.Dialect
	toks []token.Token
	idx  int
}

func (r *run) cur() token.Token {
	if r.idx >= len(r.toks) {
		return r.toks[len(r.toks)-1] // EOF
	}
	return r.toks[r.idx]
}

func (r *run) peek() token.Token {
	if r.idx+1 >= len(r.toks) {
		return r.toks[len(r.toks)-1]
	}
	return r.toks[r.idx+1]
}

func (r *run) at(types ...token.TokenType) bool {
	cur := r.cur().Type
	for _, t := range types {
		if cur == t {
			return true
		}
	}
	return false
}

func (r *run) advance() token.Token {
	tok := r.cur()
	if r.idx < len(r.toks)-1 {
		r.idx++
	}
	return tok
}

// keyword consumes the current token and appends it to parent as a keyword
// leaf. Callers check the token type first.
func (r *run) keyword(parent *cst.Node) {
	tok := r.advance()
	parent.Append(cst.Leaf(cst.KindKeyword, tok.Span(), tok.Literal))
}

// keywordIf consumes a keyword leaf when the current token matches.
func (r *run) keywordIf(parent *cst.Node, t token.TokenType) bool {
	if !r.at(t) {
		return false
	}
	r.keyword(parent)
	return true
}

// errorLeaf returns a zero-width error node at the current token. Used
// where something was expected but not found; the zero-width span lets the
// completion layer land on the gap.
func (r *run) errorLeaf() *cst.Node {
	pos := r.cur().Pos
	return cst.New(cst.KindError, token.Span{Start: pos, End: pos})
}

// errorUntil consumes tokens up to (not including) any of the stop types or
// EOF, wrapping them in an error node.
func (r *run) errorUntil(stops ...token.TokenType) *cst.Node {
	node := r.errorLeaf()
	for !r.at(token.EOF) && !r.at(stops...) {
		tok := r.advance()
		node.Span = node.Span.Union(tok.Span())
	}
	return node
}

func (r *run) atStatementStart() bool {
	switch r.cur().Type {
	case token.WITH, token.SELECT, token.LPAREN,
		token.INSERT, token.UPDATE, token.DELETE,
		token.CREATE, token.ALTER, token.DROP, token.TRUNCATE:
		return true
	}
	return false
}

func (r *run) statement() *cst.Node {
	var with *cst.Node
	if r.at(token.WITH) {
		with = r.withClause()
	}

	switch r.cur().Type {
	case token.SELECT, token.LPAREN:
		return r.selectStatement(with)
	case token.INSERT:
		return r.insertStatement(with)
	case token.UPDATE:
		return r.updateStatement(with)
	case token.DELETE:
		return r.deleteStatement(with)
	case token.CREATE, token.ALTER, token.DROP, token.TRUNCATE:
		return r.ddlStatement()
	default:
		node := r.errorUntil(token.SEMI)
		if with != nil {
			wrapped := cst.New(cst.KindError, token.Span{})
			wrapped.Append(with)
			wrapped.Span = wrapped.Span.Union(node.Span)
			return wrapped
		}
		return node
	}
}

func (r *run) withClause() *cst.Node {
	node := cst.New(cst.KindWithClause, token.Span{})
	r.keyword(node) // WITH
	r.keywordIf(node, token.RECURSIVE)

	for {
		node.AppendField("cte", r.cte())
		if !r.at(token.COMMA) {
			break
		}
		r.advance()
	}
	return node
}

func (r *run) cte() *cst.Node {
	node := cst.New(cst.KindCTE, token.Span{})

	if r.at(token.IDENT) {
		node.AppendField("name", r.identifier())
	} else {
		node.AppendField("name", r.errorLeaf())
	}

	if r.at(token.LPAREN) {
		r.advance()
		for r.at(token.IDENT) {
			node.AppendField("column", r.identifier())
			if !r.at(token.COMMA) {
				break
			}
			r.advance()
		}
		r.expect(node, token.RPAREN)
	}

	r.keywordIf(node, token.AS)
	if r.at(token.LPAREN) {
		r.advance()
		node.AppendField("query", r.selectStatement(nil))
		r.expect(node, token.RPAREN)
	} else {
		node.AppendField("query", r.errorUntil(token.COMMA, token.SEMI))
	}
	return node
}

// expect consumes the expected token, or records a zero-width error node
// without consuming anything.
func (r *run) expect(parent *cst.Node, t token.TokenType) {
	if r.at(t) {
		tok := r.advance()
		parent.Span = parent.Span.Union(tok.Span())
		return
	}
	parent.Append(r.errorLeaf())
}

// selectStatement parses a select core and any trailing set operations,
// left associative.
func (r *run) selectStatement(with *cst.Node) *cst.Node {
	left := r.selectOperand(with)

	for r.at(token.UNION, token.INTERSECT, token.EXCEPT) {
		op := cst.New(cst.KindSetOp, token.Span{})
		op.AppendField("left", left)
		r.keyword(op) // UNION | INTERSECT | EXCEPT
		r.keywordIf(op, token.ALL)
		r.keywordIf(op, token.DISTINCT)
		op.AppendField("right", r.selectOperand(nil))
		left = op
	}
	return left
}

func (r *run) selectOperand(with *cst.Node) *cst.Node {
	if r.at(token.LPAREN) {
		r.advance()
		inner := r.selectStatement(nil)
		node := cst.New(cst.KindParenExpr, token.Span{})
		if with != nil {
			node.AppendField("with", with)
		}
		node.Append(inner)
		r.expect(node, token.RPAREN)
		return node
	}
	return r.selectCore(with)
}

func (r *run) selectCore(with *cst.Node) *cst.Node {
	node := cst.New(cst.KindSelectStmt, token.Span{})
	if with != nil {
		node.AppendField("with", with)
	}

	if !r.keywordIf(node, token.SELECT) {
		node.Append(r.errorUntil(token.SEMI))
		return node
	}

	if r.keywordIf(node, token.DISTINCT) {
		// DISTINCT ON (...) keeps its expressions under the select node.
		if r.at(token.ON) {
			r.keyword(node)
			if r.at(token.LPAREN) {
				r.advance()
				for {
					node.AppendField("distinct_on", r.expr(precLowest))
					if !r.at(token.COMMA) {
						break
					}
					r.advance()
				}
				r.expect(node, token.RPAREN)
			}
		}
	} else {
		r.keywordIf(node, token.ALL)
	}

	node.AppendField("select_list", r.selectList())

	if r.at(token.FROM) {
		node.AppendField("from", r.fromClause())
	}
	if r.at(token.WHERE) {
		node.AppendField("where", r.whereClause())
	}
	if r.at(token.GROUP) {
		node.AppendField("group_by", r.groupByClause())
	}
	if r.at(token.HAVING) {
		node.AppendField("having", r.havingClause())
	}
	if r.at(token.ORDER) {
		node.AppendField("order_by", r.orderByClause())
	}
	if r.at(token.LIMIT) {
		node.AppendField("limit", r.limitClause())
	}
	if r.at(token.OFFSET) {
		node.AppendField("offset", r.offsetClause())
	}
	return node
}

func (r *run) selectList() *cst.Node {
	node := cst.New(cst.KindSelectList, token.Span{})

	if r.atClauseBoundary() {
		// SELECT with nothing projected yet.
		node.Append(r.errorLeaf())
		return node
	}

	for {
		node.AppendField("item", r.selectItem())
		if !r.at(token.COMMA) {
			break
		}
		r.advance()
		if r.atClauseBoundary() {
			// Trailing comma: the next item is still to be typed.
			node.AppendField("item", r.errorLeaf())
			break
		}
	}
	return node
}

func (r *run) atClauseBoundary() bool {
	switch r.cur().Type {
	case token.FROM, token.WHERE, token.GROUP, token.HAVING, token.ORDER,
		token.LIMIT, token.OFFSET, token.UNION, token.INTERSECT,
		token.EXCEPT, token.SEMI, token.EOF, token.RPAREN, token.RETURNING:
		return true
	}
	return false
}

func (r *run) selectItem() *cst.Node {
	node := cst.New(cst.KindSelectItem, token.Span{})

	if r.at(token.STAR) {
		tok := r.advance()
		node.Append(cst.Leaf(cst.KindStar, tok.Span(), "*"))
		return node
	}

	// table.* and schema.table.*
	if r.at(token.IDENT) && r.peek().Type == token.DOT {
		if n, ok := r.tryQualifiedStar(); ok {
			node.Append(n)
			return node
		}
	}

	node.AppendField("expr", r.expr(precLowest))

	if r.keywordIf(node, token.AS) {
		if r.at(token.IDENT) {
			node.AppendField("alias", r.identifier())
		} else {
			node.AppendField("alias", r.errorLeaf())
		}
	} else if r.at(token.IDENT) {
		node.AppendField("alias", r.identifier())
	}
	return node
}

// tryQualifiedStar parses ident(.ident)*.* without consuming anything on
// failure.
func (r *run) tryQualifiedStar() (*cst.Node, bool) {
	save := r.idx
	node := cst.New(cst.KindColumnRef, token.Span{})

	for r.at(token.IDENT) && r.peek().Type == token.DOT {
		node.AppendField("qualifier", r.identifier())
		r.advance() // DOT
		if r.at(token.STAR) {
			tok := r.advance()
			node.Append(cst.Leaf(cst.KindStar, tok.Span(), "*"))
			return node, true
		}
	}
	r.idx = save
	return nil, false
}

func (r *run) fromClause() *cst.Node {
	node := cst.New(cst.KindFromClause, token.Span{})
	r.keyword(node) // FROM

	node.AppendField("source", r.sourceItem())

	for {
		switch {
		case r.at(token.COMMA):
			join := cst.New(cst.KindJoin, token.Span{})
			tok := r.advance()
			join.Span = join.Span.Union(tok.Span())
			join.AppendField("source", r.sourceItem())
			node.AppendField("join", join)
		case r.at(token.NATURAL, token.JOIN, token.INNER, token.LEFT,
			token.RIGHT, token.FULL, token.CROSS):
			node.AppendField("join", r.join())
		default:
			return node
		}
	}
}

func (r *run) join() *cst.Node {
	node := cst.New(cst.KindJoin, token.Span{})

	r.keywordIf(node, token.NATURAL)
	switch r.cur().Type {
	case token.INNER, token.CROSS:
		r.keyword(node)
	case token.LEFT, token.RIGHT, token.FULL:
		r.keyword(node)
		r.keywordIf(node, token.OUTER)
	}
	if !r.keywordIf(node, token.JOIN) {
		node.Append(r.errorLeaf())
		return node
	}

	node.AppendField("source", r.sourceItem())

	switch r.cur().Type {
	case token.ON:
		cond := cst.New(cst.KindJoinCondition, token.Span{})
		r.keyword(cond)
		cond.AppendField("expr", r.expr(precLowest))
		node.AppendField("condition", cond)
	case token.USING:
		using := cst.New(cst.KindUsingClause, token.Span{})
		r.keyword(using)
		if r.at(token.LPAREN) {
			r.advance()
			for r.at(token.IDENT) {
				using.AppendField("column", r.identifier())
				if !r.at(token.COMMA) {
					break
				}
				r.advance()
			}
			r.expect(using, token.RPAREN)
		}
		node.AppendField("condition", using)
	}
	return node
}

func (r *run) sourceItem() *cst.Node {
	lateral := r.at(token.LATERAL)

	if lateral || r.at(token.LPAREN) {
		node := cst.New(cst.KindDerivedTable, token.Span{})
		if lateral {
			r.keyword(node)
		}
		if r.at(token.LPAREN) {
			r.advance()
			node.AppendField("query", r.selectStatement(nil))
			r.expect(node, token.RPAREN)
		} else {
			node.AppendField("query", r.errorLeaf())
		}
		r.aliasSuffix(node)
		return node
	}

	if !r.at(token.IDENT) {
		return r.errorLeaf()
	}

	node := cst.New(cst.KindTableRef, token.Span{})
	node.AppendField("name", r.identifier())
	for r.at(token.DOT) && r.peek().Type == token.IDENT {
		r.advance()
		node.AppendField("name", r.identifier())
	}
	if r.at(token.DOT) {
		// Qualifier typed, table name still missing.
		r.advance()
		node.AppendField("name", r.errorLeaf())
	}
	r.aliasSuffix(node)
	return node
}

func (r *run) aliasSuffix(node *cst.Node) {
	if r.keywordIf(node, token.AS) {
		if r.at(token.IDENT) {
			node.AppendField("alias", r.identifier())
		} else {
			node.AppendField("alias", r.errorLeaf())
		}
		return
	}
	if r.at(token.IDENT) {
		node.AppendField("alias", r.identifier())
	}
}

func (r *run) whereClause() *cst.Node {
	node := cst.New(cst.KindWhereClause, token.Span{})
	r.keyword(node) // WHERE
	node.AppendField("expr", r.expr(precLowest))
	return node
}

func (r *run) groupByClause() *cst.Node {
	node := cst.New(cst.KindGroupByClause, token.Span{})
	r.keyword(node) // GROUP
	if !r.keywordIf(node, token.BY) {
		node.Append(r.errorLeaf())
		return node
	}
	for {
		node.AppendField("expr", r.expr(precLowest))
		if !r.at(token.COMMA) {
			break
		}
		r.advance()
	}
	return node
}

func (r *run) havingClause() *cst.Node {
	node := cst.New(cst.KindHavingClause, token.Span{})
	r.keyword(node) // HAVING
	node.AppendField("expr", r.expr(precLowest))
	return node
}

func (r *run) orderByClause() *cst.Node {
	node := cst.New(cst.KindOrderByClause, token.Span{})
	r.keyword(node) // ORDER
	if !r.keywordIf(node, token.BY) {
		node.Append(r.errorLeaf())
		return node
	}
	for {
		item := cst.New(cst.KindOrderItem, token.Span{})
		item.AppendField("expr", r.expr(precLowest))
		if !r.keywordIf(item, token.ASC) {
			r.keywordIf(item, token.DESC)
		}
		if r.keywordIf(item, token.NULLS) {
			// FIRST and LAST lex as plain identifiers.
			if r.at(token.IDENT) {
				r.keyword(item)
			}
		}
		node.AppendField("item", item)
		if !r.at(token.COMMA) {
			break
		}
		r.advance()
	}
	return node
}

func (r *run) limitClause() *cst.Node {
	node := cst.New(cst.KindLimitClause, token.Span{})
	r.keyword(node) // LIMIT

	first := r.expr(precLowest)
	if r.at(token.COMMA) {
		// MySQL: LIMIT offset, count.
		r.advance()
		node.AppendField("offset", first)
		node.AppendField("count", r.expr(precLowest))
		return node
	}
	node.AppendField("count", first)
	return node
}

func (r *run) offsetClause() *cst.Node {
	node := cst.New(cst.KindOffsetClause, token.Span{})
	r.keyword(node) // OFFSET
	node.AppendField("expr", r.expr(precLowest))
	return node
}

func (r *run) returningClause() *cst.Node {
	node := cst.New(cst.KindReturningClause, token.Span{})
	r.keyword(node) // RETURNING
	node.AppendField("list", r.selectList())
	return node
}

func (r *run) insertStatement(with *cst.Node) *cst.Node {
	node := cst.New(cst.KindInsertStmt, token.Span{})
	if with != nil {
		node.AppendField("with", with)
	}
	r.keyword(node) // INSERT
	if !r.keywordIf(node, token.INTO) {
		node.Append(r.errorLeaf())
	}

	node.AppendField("target", r.sourceItem())

	if r.at(token.LPAREN) {
		r.advance()
		for r.at(token.IDENT) {
			node.AppendField("column", r.identifier())
			if !r.at(token.COMMA) {
				break
			}
			r.advance()
		}
		r.expect(node, token.RPAREN)
	}

	switch r.cur().Type {
	case token.VALUES:
		values := cst.New(cst.KindValuesClause, token.Span{})
		r.keyword(values)
		for r.at(token.LPAREN) {
			row := cst.New(cst.KindArgList, token.Span{})
			r.advance()
			for !r.at(token.RPAREN, token.EOF, token.SEMI) {
				row.AppendField("value", r.expr(precLowest))
				if !r.at(token.COMMA) {
					break
				}
				r.advance()
			}
			r.expect(row, token.RPAREN)
			values.AppendField("row", row)
			if !r.at(token.COMMA) {
				break
			}
			r.advance()
		}
		node.AppendField("values", values)
	case token.SELECT, token.WITH, token.LPAREN:
		node.AppendField("query", r.statement())
	default:
		node.Append(r.errorUntil(token.SEMI, token.RETURNING))
	}

	// ON DUPLICATE KEY UPDATE / ON CONFLICT tails are consumed without
	// structure; the IR does not model upserts.
	if r.at(token.ON) {
		node.Append(r.errorUntil(token.RETURNING, token.SEMI))
	}

	if r.at(token.RETURNING) {
		node.AppendField("returning", r.returningClause())
	}
	return node
}

func (r *run) updateStatement(with *cst.Node) *cst.Node {
	node := cst.New(cst.KindUpdateStmt, token.Span{})
	if with != nil {
		node.AppendField("with", with)
	}
	r.keyword(node) // UPDATE

	node.AppendField("target", r.sourceItem())

	if r.keywordIf(node, token.SET) {
		set := cst.New(cst.KindSetClause, token.Span{})
		for {
			assign := cst.New(cst.KindAssignment, token.Span{})
			if r.at(token.IDENT) {
				assign.AppendField("column", r.columnRef())
			} else {
				assign.AppendField("column", r.errorLeaf())
			}
			if r.at(token.EQ) {
				r.advance()
				assign.AppendField("value", r.expr(precLowest))
			} else {
				assign.AppendField("value", r.errorLeaf())
			}
			set.AppendField("assignment", assign)
			if !r.at(token.COMMA) {
				break
			}
			r.advance()
		}
		node.AppendField("set", set)
	} else {
		node.Append(r.errorLeaf())
	}

	if r.at(token.FROM) {
		node.AppendField("from", r.fromClause())
	}
	if r.at(token.WHERE) {
		node.AppendField("where", r.whereClause())
	}
	if r.at(token.RETURNING) {
		node.AppendField("returning", r.returningClause())
	}
	return node
}

func (r *run) deleteStatement(with *cst.Node) *cst.Node {
	node := cst.New(cst.KindDeleteStmt, token.Span{})
	if with != nil {
		node.AppendField("with", with)
	}
	r.keyword(node) // DELETE
	if !r.keywordIf(node, token.FROM) {
		node.Append(r.errorLeaf())
	}

	node.AppendField("target", r.sourceItem())

	if r.at(token.USING) {
		using := cst.New(cst.KindUsingClause, token.Span{})
		r.keyword(using)
		using.AppendField("source", r.sourceItem())
		for r.at(token.COMMA) {
			r.advance()
			using.AppendField("source", r.sourceItem())
		}
		node.AppendField("using", using)
	}
	if r.at(token.WHERE) {
		node.AppendField("where", r.whereClause())
	}
	if r.at(token.RETURNING) {
		node.AppendField("returning", r.returningClause())
	}
	return node
}

// ddlStatement parses DDL coarsely: verb, object kind and target name. The
// body (column definitions, options) is consumed without structure since
// only the mutation signal and target matter downstream.
func (r *run) ddlStatement() *cst.Node {
	node := cst.New(cst.KindDDLStmt, token.Span{})
	r.keyword(node) // CREATE | ALTER | DROP | TRUNCATE

	// Modifiers and object kind: OR REPLACE, UNIQUE, TEMPORARY and
	// friends lex as identifiers and are consumed until a known object
	// keyword or a name shows up.
	for r.at(token.OR, token.IDENT) && !r.atObjectName() {
		r.keyword(node)
	}
	switch r.cur().Type {
	case token.TABLE, token.VIEW, token.INDEX:
		r.keyword(node)
	}
	// IF [NOT] EXISTS; IF lexes as a plain identifier.
	if r.at(token.IDENT) && strings.EqualFold(r.cur().Literal, "if") {
		r.keyword(node)
		r.keywordIf(node, token.NOT)
		r.keywordIf(node, token.EXISTS)
	}
	if r.at(token.IDENT) {
		target := cst.New(cst.KindTableRef, token.Span{})
		target.AppendField("name", r.identifier())
		for r.at(token.DOT) && r.peek().Type == token.IDENT {
			r.advance()
			target.AppendField("name", r.identifier())
		}
		node.AppendField("target", target)
	}

	// Consume the remainder of the statement, tracking parens so a SEMI
	// inside a definition body does not end the statement early.
	depth := 0
	for !r.at(token.EOF) {
		if depth == 0 && r.at(token.SEMI) {
			break
		}
		tok := r.advance()
		switch tok.Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			if depth > 0 {
				depth--
			}
		}
		node.Span = node.Span.Union(tok.Span())
	}
	return node
}

// atObjectName reports whether the current identifier is followed by
// something that makes it look like the DDL target rather than a modifier.
func (r *run) atObjectName() bool {
	if !r.at(token.IDENT) {
		return false
	}
	switch r.peek().Type {
	case token.IDENT, token.TABLE, token.VIEW, token.INDEX:
		return false
	}
	return true
}

func (r *run) identifier() *cst.Node {
	tok := r.advance()
	return cst.Leaf(cst.KindIdentifier, tok.Span(), tok.Literal)
}

// columnRef parses ident(.ident)* into a column reference node.
func (r *run) columnRef() *cst.Node {
	node := cst.New(cst.KindColumnRef, token.Span{})
	node.AppendField("part", r.identifier())
	for r.at(token.DOT) {
		r.advance()
		if r.at(token.IDENT) {
			node.AppendField("part", r.identifier())
		} else {
			// Dangling dot: "t." with the column still to be typed.
			node.AppendField("part", r.errorLeaf())
			break
		}
	}
	return node
}

// expr parses an expression with operator precedence climbing.
func (r *run) expr(minPrec int) *cst.Node {
	left := r.unary()

	for {
		prec, ok := r.infixPrec()
		if !ok || prec < minPrec {
			return left
		}
		left = r.infix(left, prec)
	}
}

func (r *run) infixPrec() (int, bool) {
	switch r.cur().Type {
	case token.OR:
		return precOr, true
	case token.AND:
		return precAnd, true
	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE,
		token.LIKE, token.ILIKE, token.IS, token.IN, token.BETWEEN:
		return precCompare, true
	case token.NOT:
		// NOT IN, NOT LIKE, NOT BETWEEN, NOT ILIKE
		switch r.peek().Type {
		case token.IN, token.LIKE, token.ILIKE, token.BETWEEN:
			return precCompare, true
		}
		return 0, false
	case token.DPIPE:
		return precConcat, true
	case token.PLUS, token.MINUS:
		return precAdd, true
	case token.STAR, token.SLASH, token.PERCENT:
		return precMul, true
	}
	return 0, false
}

func (r *run) infix(left *cst.Node, prec int) *cst.Node {
	negated := false
	if r.at(token.NOT) {
		negated = true
		r.advance()
	}

	switch r.cur().Type {
	case token.IS:
		return r.isExpr(left)
	case token.IN:
		return r.inExpr(left, negated)
	case token.BETWEEN:
		return r.betweenExpr(left, negated)
	}

	op := r.advance()
	node := cst.New(cst.KindBinaryExpr, token.Span{})
	node.AppendField("left", left)
	opText := op.Literal
	if negated {
		opText = "NOT " + opText
	}
	node.AppendField("operator", cst.Leaf(cst.KindKeyword, op.Span(), opText))
	node.AppendField("right", r.expr(prec+1))
	return node
}

func (r *run) isExpr(left *cst.Node) *cst.Node {
	node := cst.New(cst.KindIsExpr, token.Span{})
	node.AppendField("expr", left)
	r.keyword(node) // IS
	r.keywordIf(node, token.NOT)
	switch r.cur().Type {
	case token.NULL, token.TRUE, token.FALSE:
		tok := r.advance()
		node.AppendField("value", cst.Leaf(cst.KindLiteral, tok.Span(), tok.Literal))
	default:
		node.AppendField("value", r.errorLeaf())
	}
	return node
}

func (r *run) inExpr(left *cst.Node, negated bool) *cst.Node {
	node := cst.New(cst.KindInExpr, token.Span{})
	node.AppendField("expr", left)
	if negated {
		node.AppendField("not", cst.Leaf(cst.KindKeyword, r.cur().Span(), "NOT"))
	}
	r.keyword(node) // IN

	if !r.at(token.LPAREN) {
		node.AppendField("list", r.errorLeaf())
		return node
	}
	r.advance()
	if r.at(token.SELECT, token.WITH) {
		sub := cst.New(cst.KindSubquery, token.Span{})
		sub.AppendField("query", r.statement())
		node.AppendField("subquery", sub)
	} else {
		list := cst.New(cst.KindArgList, token.Span{})
		for !r.at(token.RPAREN, token.EOF, token.SEMI) {
			list.AppendField("value", r.expr(precLowest))
			if !r.at(token.COMMA) {
				break
			}
			r.advance()
		}
		node.AppendField("list", list)
	}
	r.expect(node, token.RPAREN)
	return node
}

func (r *run) betweenExpr(left *cst.Node, negated bool) *cst.Node {
	node := cst.New(cst.KindBetween, token.Span{})
	node.AppendField("expr", left)
	if negated {
		node.AppendField("not", cst.Leaf(cst.KindKeyword, r.cur().Span(), "NOT"))
	}
	r.keyword(node) // BETWEEN
	// Bounds parse above AND so the connective is not taken as a logical
	// operator.
	node.AppendField("low", r.expr(precCompare+1))
	if r.at(token.AND) {
		r.advance()
		node.AppendField("high", r.expr(precCompare+1))
	} else {
		node.AppendField("high", r.errorLeaf())
	}
	return node
}

func (r *run) unary() *cst.Node {
	switch r.cur().Type {
	case token.NOT:
		node := cst.New(cst.KindUnaryExpr, token.Span{})
		r.keyword(node)
		node.AppendField("operand", r.expr(precNot+1))
		return r.castSuffix(node)
	case token.MINUS, token.PLUS:
		node := cst.New(cst.KindUnaryExpr, token.Span{})
		tok := r.advance()
		node.AppendField("operator", cst.Leaf(cst.KindKeyword, tok.Span(), tok.Literal))
		node.AppendField("operand", r.expr(precMul+1))
		return r.castSuffix(node)
	case token.EXISTS:
		node := cst.New(cst.KindExistsExpr, token.Span{})
		r.keyword(node)
		if r.at(token.LPAREN) {
			r.advance()
			sub := cst.New(cst.KindSubquery, token.Span{})
			sub.AppendField("query", r.statement())
			node.AppendField("subquery", sub)
			r.expect(node, token.RPAREN)
		} else {
			node.AppendField("subquery", r.errorLeaf())
		}
		return node
	}
	return r.castSuffix(r.primary())
}

// castSuffix wraps expr in cast nodes for each trailing :: type.
func (r *run) castSuffix(expr *cst.Node) *cst.Node {
	for r.at(token.DCOLON) {
		node := cst.New(cst.KindCastExpr, token.Span{})
		node.AppendField("expr", expr)
		r.keyword(node) // ::
		if r.at(token.IDENT) {
			node.AppendField("type", r.identifier())
		} else {
			node.AppendField("type", r.errorLeaf())
		}
		expr = node
	}
	return expr
}

func (r *run) primary() *cst.Node {
	switch r.cur().Type {
	case token.NUMBER, token.STRING, token.TRUE, token.FALSE, token.NULL:
		tok := r.advance()
		return cst.Leaf(cst.KindLiteral, tok.Span(), tok.Literal)
	case token.BINDVAR:
		tok := r.advance()
		return cst.Leaf(cst.KindBindVar, tok.Span(), tok.Literal)
	case token.CAST:
		return r.castCall()
	case token.CASE:
		return r.caseExpr()
	case token.LPAREN:
		return r.parenOrSubquery()
	case token.IDENT:
		if r.peek().Type == token.LPAREN {
			return r.funcCall()
		}
		return r.columnRef()
	// Aggregate-style keywords that double as functions.
	case token.LEFT, token.RIGHT:
		if r.peek().Type == token.LPAREN {
			return r.funcCall()
		}
	}
	// Not a valid expression start. Emit an error node over the single
	// token (or the gap, at a clause boundary) and keep going.
	if r.atClauseBoundary() || r.at(token.COMMA) {
		return r.errorLeaf()
	}
	tok := r.advance()
	node := cst.New(cst.KindError, tok.Span())
	node.Text = tok.Literal
	return node
}

func (r *run) castCall() *cst.Node {
	node := cst.New(cst.KindCastExpr, token.Span{})
	r.keyword(node) // CAST
	if !r.at(token.LPAREN) {
		node.Append(r.errorLeaf())
		return node
	}
	r.advance()
	node.AppendField("expr", r.expr(precLowest))
	if r.keywordIf(node, token.AS) {
		if r.at(token.IDENT) {
			node.AppendField("type", r.typeName())
		} else {
			node.AppendField("type", r.errorLeaf())
		}
	} else {
		node.Append(r.errorLeaf())
	}
	r.expect(node, token.RPAREN)
	return node
}

// typeName parses a type name with an optional (p[, s]) suffix.
func (r *run) typeName() *cst.Node {
	node := r.identifier()
	if r.at(token.LPAREN) {
		r.advance()
		for r.at(token.NUMBER) {
			tok := r.advance()
			node.Span = node.Span.Union(tok.Span())
			if !r.at(token.COMMA) {
				break
			}
			r.advance()
		}
		if r.at(token.RPAREN) {
			tok := r.advance()
			node.Span = node.Span.Union(tok.Span())
		}
	}
	return node
}

func (r *run) caseExpr() *cst.Node {
	node := cst.New(cst.KindCaseExpr, token.Span{})
	r.keyword(node) // CASE

	if !r.at(token.WHEN) {
		node.AppendField("operand", r.expr(precLowest))
	}
	for r.at(token.WHEN) {
		when := cst.New(cst.KindWhenClause, token.Span{})
		r.keyword(when)
		when.AppendField("condition", r.expr(precLowest))
		if r.keywordIf(when, token.THEN) {
			when.AppendField("result", r.expr(precLowest))
		} else {
			when.AppendField("result", r.errorLeaf())
		}
		node.AppendField("when", when)
	}
	if r.keywordIf(node, token.ELSE) {
		node.AppendField("else", r.expr(precLowest))
	}
	if !r.keywordIf(node, token.END) {
		node.Append(r.errorLeaf())
	}
	return node
}

func (r *run) parenOrSubquery() *cst.Node {
	r.advance() // LPAREN
	if r.at(token.SELECT, token.WITH) {
		node := cst.New(cst.KindSubquery, token.Span{})
		node.AppendField("query", r.statement())
		r.expect(node, token.RPAREN)
		return node
	}
	node := cst.New(cst.KindParenExpr, token.Span{})
	node.AppendField("expr", r.expr(precLowest))
	r.expect(node, token.RPAREN)
	return node
}

func (r *run) funcCall() *cst.Node {
	node := cst.New(cst.KindFuncCall, token.Span{})
	tok := r.advance()
	node.AppendField("name", cst.Leaf(cst.KindIdentifier, tok.Span(), tok.Literal))

	r.advance() // LPAREN
	args := cst.New(cst.KindArgList, token.Span{})
	args.Span = token.Span{Start: r.cur().Pos, End: r.cur().Pos}

	r.keywordIf(args, token.DISTINCT)
	switch {
	case r.at(token.RPAREN):
		// no arguments
	case r.at(token.STAR):
		star := r.advance()
		args.Append(cst.Leaf(cst.KindStar, star.Span(), "*"))
	default:
		for !r.at(token.RPAREN, token.EOF, token.SEMI) {
			args.AppendField("arg", r.expr(precLowest))
			if !r.at(token.COMMA) {
				break
			}
			r.advance()
			if r.at(token.RPAREN) {
				// Trailing comma: the next argument is still to be typed.
				args.AppendField("arg", r.errorLeaf())
			}
		}
	}
	node.AppendField("args", args)
	r.expect(node, token.RPAREN)

	if r.at(token.OVER) {
		node.AppendField("over", r.overClause())
	}
	return node
}

func (r *run) overClause() *cst.Node {
	node := cst.New(cst.KindOverClause, token.Span{})
	r.keyword(node) // OVER

	if !r.at(token.LPAREN) {
		node.Append(r.errorLeaf())
		return node
	}
	r.advance()

	spec := cst.New(cst.KindWindowSpec, token.Span{})
	spec.Span = token.Span{Start: r.cur().Pos, End: r.cur().Pos}
	if r.keywordIf(spec, token.PARTITION) {
		if r.keywordIf(spec, token.BY) {
			for {
				spec.AppendField("partition", r.expr(precLowest))
				if !r.at(token.COMMA) {
					break
				}
				r.advance()
			}
		}
	}
	if r.at(token.ORDER) {
		spec.AppendField("order_by", r.orderByClause())
	}
	// Frame clauses (ROWS/RANGE ...) are consumed without structure.
	for !r.at(token.RPAREN, token.EOF, token.SEMI) {
		tok := r.advance()
		spec.Span = spec.Span.Union(tok.Span())
	}
	node.AppendField("spec", spec)
	r.expect(node, token.RPAREN)
	return node
}
