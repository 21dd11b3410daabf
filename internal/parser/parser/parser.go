// Package parser implements a recursive-descent/Pratt parser for the query
// language, producing an ast.Statement from a token
// stream.
package parser

import (
	"strconv"

	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/parser/ast"
	"github.com/dreamware/cyq/internal/parser/lexer"
	"github.com/dreamware/cyq/internal/parser/token"
)

// Operator precedence levels, lowest to highest.
const (
	_ int = iota
	LOWEST
	OR_PREC
	XOR_PREC
	AND_PREC
	NOT_PREC
	COMPARE
	STRPRED // STARTS WITH / ENDS WITH / CONTAINS / IN
	SUM     // + -
	PRODUCT // * / %
	POWER   // ^
	PREFIX  // unary - / NOT
	CALL    // function()
	INDEX   // .property
)

var precedences = map[token.Type]int{
	token.OR:       OR_PREC,
	token.XOR:      XOR_PREC,
	token.AND:      AND_PREC,
	token.EQ:       COMPARE,
	token.NEQ:      COMPARE,
	token.LT:       COMPARE,
	token.GT:       COMPARE,
	token.LTE:      COMPARE,
	token.GTE:      COMPARE,
	token.IS:       COMPARE,
	token.STARTS:   STRPRED,
	token.ENDS:     STRPRED,
	token.CONTAINS: STRPRED,
	token.IN:       STRPRED,
	token.PLUS:     SUM,
	token.DASH:     SUM,
	token.ASTERISK: PRODUCT,
	token.SLASH:    PRODUCT,
	token.PERCENT:  PRODUCT,
	token.CARET:    POWER,
	token.LPAREN:   CALL,
	token.DOT:      INDEX,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser consumes a token stream and builds an AST for one statement.
type Parser struct {
	l      *lexer.Lexer
	errors []*cyqerr.Error

	curToken  token.Token
	peekToken token.Token

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn
}

// New creates a Parser reading from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	p.prefixParseFns = make(map[token.Type]prefixParseFn)
	p.registerPrefix(token.IDENT, p.parseIdentifierOrCall)
	p.registerPrefix(token.PARAM, p.parseParameter)
	p.registerPrefix(token.INT, p.parseIntLiteral)
	p.registerPrefix(token.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.TRUE_KW, p.parseBoolLiteral)
	p.registerPrefix(token.FALSE_KW, p.parseBoolLiteral)
	p.registerPrefix(token.NULL_KW, p.parseNullLiteral)
	p.registerPrefix(token.NOT, p.parsePrefixExpression)
	p.registerPrefix(token.DASH, p.parsePrefixExpression)
	p.registerPrefix(token.PLUS, p.parsePrefixExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(token.LBRACKET, p.parseListLiteral)
	p.registerPrefix(token.LBRACE, p.parseMapLiteral)
	p.registerPrefix(token.CASE, p.parseCaseExpression)
	p.registerPrefix(token.EXISTS, p.parseExistsExpression)
	p.registerPrefix(token.ASTERISK, p.parseStarExpression)

	p.infixParseFns = make(map[token.Type]infixParseFn)
	for _, t := range []token.Type{
		token.PLUS, token.DASH, token.ASTERISK, token.SLASH, token.PERCENT, token.CARET,
		token.EQ, token.NEQ, token.LT, token.GT, token.LTE, token.GTE,
		token.AND, token.OR, token.XOR, token.IN,
	} {
		p.registerInfix(t, p.parseInfixExpression)
	}
	p.registerInfix(token.DOT, p.parsePropertyAccess)
	p.registerInfix(token.IS, p.parseIsNull)
	p.registerInfix(token.STARTS, func(left ast.Expression) ast.Expression {
		return p.parseStringPredicateInfix(left, ast.StartsWith, token.WITH)
	})
	p.registerInfix(token.ENDS, func(left ast.Expression) ast.Expression {
		return p.parseStringPredicateInfix(left, ast.EndsWith, token.WITH)
	})
	p.registerInfix(token.CONTAINS, func(left ast.Expression) ast.Expression {
		return p.parseStringPredicateInfix(left, ast.ContainsStr, token.ILLEGAL)
	})

	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) registerPrefix(t token.Type, fn prefixParseFn) { p.prefixParseFns[t] = fn }
func (p *Parser) registerInfix(t token.Type, fn infixParseFn)   { p.infixParseFns[t] = fn }

// Errors returns every error accumulated during parsing.
func (p *Parser) Errors() []*cyqerr.Error { return p.errors }

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
	for p.peekToken.Type == token.COMMENT {
		p.peekToken = p.l.NextToken()
	}
}

func (p *Parser) curTokenIs(t token.Type) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t token.Type) bool { return p.peekToken.Type == t }

// advanceIfAt reports whether t is the current clause boundary, advancing
// onto it when it is only one token ahead. It also accepts curToken
// already being t, which happens when t is the very first token of the
// whole statement (New primes curToken to it directly, unlike every other
// clause transition where curToken trails one token behind).
func (p *Parser) advanceIfAt(t token.Type) bool {
	if p.curTokenIs(t) {
		return true
	}
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	return false
}

func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekError(t token.Type) {
	msg := "expected next token to be " + t.String() + ", got " + p.peekToken.Type.String() + " instead"
	if p.peekToken.Type == token.ILLEGAL && p.peekToken.Literal == "!=" {
		msg = "unsupported operator \"!=\"; use <> for inequality"
	}
	p.errors = append(p.errors, cyqerr.New(cyqerr.KindParser, msg).At(cyqerr.Position{
		Line: p.peekToken.Pos.Line, Column: p.peekToken.Pos.Column,
	}))
}

func (p *Parser) errorf(format string, args ...any) {
	p.errors = append(p.errors, cyqerr.Newf(cyqerr.KindParser, format, args...).At(cyqerr.Position{
		Line: p.curToken.Pos.Line, Column: p.curToken.Pos.Column,
	}))
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curToken.Type]; ok {
		return pr
	}
	return LOWEST
}

// ParseStatement parses exactly one top-level statement.
func (p *Parser) ParseStatement() (ast.Statement, error) {
	var stmt ast.Statement
	switch p.curToken.Type {
	case token.CREATE:
		stmt = p.parseCreateTable()
	case token.ALTER:
		stmt = p.parseAlterTable()
	case token.DROP:
		stmt = p.parseDrop()
	case token.COMMENT_KW:
		stmt = p.parseCommentOn()
	case token.INSTALL:
		stmt = p.parseInstallExtension()
	case token.UNINSTALL:
		stmt = p.parseUninstallExtension()
	case token.COPY:
		stmt = p.parseCopyFrom()
	default:
		q := p.parseRegularQuery()
		stmt = &ast.RegularQueryStmt{Query: q}
	}
	p.checkTrailingTokens()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return stmt, nil
}

// checkTrailingTokens reports an error if anything other than EOF or a
// statement-terminating semicolon remains unconsumed, catching both
// garbage after a complete statement and constructs (like "!=") that stop
// expression parsing without themselves producing an error.
func (p *Parser) checkTrailingTokens() {
	if p.peekTokenIs(token.EOF) || p.peekTokenIs(token.SEMICOLON) {
		return
	}
	if p.peekToken.Type == token.ILLEGAL && p.peekToken.Literal == "!=" {
		p.errors = append(p.errors, cyqerr.New(cyqerr.KindParser,
			"unsupported operator \"!=\"; use <> for inequality").At(cyqerr.Position{
			Line: p.peekToken.Pos.Line, Column: p.peekToken.Pos.Column,
		}))
		return
	}
	p.errorf("unexpected token %s after statement", p.peekToken.Type)
}

// -----------------------------------------------------------------------
// Query statements
// -----------------------------------------------------------------------

func (p *Parser) parseRegularQuery() *ast.RegularQuery {
	rq := &ast.RegularQuery{First: p.parseSingleQuery()}
	for p.peekTokenIs(token.UNION) {
		p.nextToken() // consume UNION
		u := ast.UnionClause{}
		if p.peekTokenIs(token.ALL) {
			p.nextToken()
			u.All = true
		}
		p.nextToken()
		u.Query = p.parseSingleQuery()
		rq.Unions = append(rq.Unions, u)
	}
	return rq
}

func (p *Parser) parseSingleQuery() *ast.SingleQuery {
	sq := &ast.SingleQuery{}
	for {
		rc := p.parseReadingClauses()
		sq.ReadingParts = append(sq.ReadingParts, rc...)
		if p.advanceIfAt(token.WITH) {
			with := p.parseWithClause()
			sq.Parts = append(sq.Parts, ast.QueryPart{ReadingParts: sq.ReadingParts, With: with})
			sq.ReadingParts = nil
			switch p.peekToken.Type {
			case token.MATCH, token.OPTIONAL, token.UNWIND, token.LOAD, token.CALL:
				p.nextToken()
			}
			continue
		}
		break
	}
	for p.advanceIfAt(token.SET) {
		if sq.Set == nil {
			sq.Set = &ast.SetClause{}
		}
		sq.Set.Items = append(sq.Set.Items, p.parseSetItems()...)
	}
	if p.advanceIfAt(token.RETURN) {
		sq.Return = p.parseReturnClause()
	}
	return sq
}

// parseSetItems parses the comma-separated assignments of one SET
// keyword: "target = value, target = value". The target is parsed at
// comparison precedence so the '=' reads as the assignment separator, not
// an equality operator inside the target.
func (p *Parser) parseSetItems() []ast.SetItem {
	var items []ast.SetItem
	for {
		p.nextToken()
		target := p.parseExpression(COMPARE)
		if !p.expectPeek(token.EQ) {
			return items
		}
		p.nextToken()
		value := p.parseExpression(LOWEST)
		items = append(items, ast.SetItem{Target: target, Value: value})
		if !p.peekTokenIs(token.COMMA) {
			return items
		}
		p.nextToken()
	}
}

// parseReadingClauses consumes a run of MATCH/OPTIONAL MATCH/UNWIND/LOAD
// CSV/CALL clauses, stopping at WITH, RETURN, UNION, or EOF. curToken must
// already be sitting on the first clause's leading keyword (or on a
// non-reading-clause token, in which case it returns immediately).
func (p *Parser) parseReadingClauses() []ast.ReadingClause {
	var out []ast.ReadingClause
	for {
		switch p.curToken.Type {
		case token.MATCH, token.OPTIONAL:
			out = append(out, p.parseMatchClause())
		case token.UNWIND:
			out = append(out, p.parseUnwindClause())
		case token.LOAD:
			out = append(out, p.parseLoadCSVClause())
		case token.CALL:
			out = append(out, p.parseCallClause())
		default:
			return out
		}
		switch p.peekToken.Type {
		case token.MATCH, token.OPTIONAL, token.UNWIND, token.LOAD, token.CALL:
			p.nextToken()
		default:
			return out
		}
	}
}

func (p *Parser) parseMatchClause() *ast.MatchClause {
	m := &ast.MatchClause{}
	if p.curTokenIs(token.OPTIONAL) {
		m.Optional = true
		if !p.expectPeek(token.MATCH) {
			return m
		}
	}
	p.nextToken() // move past MATCH onto the pattern's opening '('
	m.Pattern = append(m.Pattern, p.parsePatternElement())
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		m.Pattern = append(m.Pattern, p.parsePatternElement())
	}
	if p.peekTokenIs(token.WHERE) {
		p.nextToken()
		p.nextToken()
		m.Where = p.parseExpression(LOWEST)
	}
	return m
}

func (p *Parser) parseUnwindClause() *ast.UnwindClause {
	p.nextToken()
	u := &ast.UnwindClause{List: p.parseExpression(LOWEST)}
	if !p.expectPeek(token.AS) {
		return u
	}
	if !p.expectPeek(token.IDENT) {
		return u
	}
	u.As = p.curToken.Literal
	return u
}

func (p *Parser) parseLoadCSVClause() *ast.LoadCSVClause {
	l := &ast.LoadCSVClause{}
	if !p.expectPeek(token.CSV) {
		return l
	}
	if p.peekTokenIs(token.WITH) {
		p.nextToken()
		if p.expectPeek(token.HEADERS) {
			l.WithHeaders = true
		}
	}
	if !p.expectPeek(token.FROM) {
		return l
	}
	p.nextToken()
	l.From = p.parseExpression(LOWEST)
	if !p.expectPeek(token.AS) {
		return l
	}
	if !p.expectPeek(token.IDENT) {
		return l
	}
	l.As = p.curToken.Literal
	return l
}

func (p *Parser) parseCallClause() *ast.CallClause {
	c := &ast.CallClause{}
	if !p.expectPeek(token.IDENT) {
		return c
	}
	c.Function = p.curToken.Literal
	if !p.expectPeek(token.LPAREN) {
		return c
	}
	if !p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		c.Args = append(c.Args, p.parseExpression(LOWEST))
		for p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			c.Args = append(c.Args, p.parseExpression(LOWEST))
		}
	}
	if !p.expectPeek(token.RPAREN) {
		return c
	}
	if p.peekTokenIs(token.YIELD) {
		p.nextToken()
		p.nextToken()
		c.Yield = append(c.Yield, p.curToken.Literal)
		for p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			c.Yield = append(c.Yield, p.curToken.Literal)
		}
	}
	return c
}

func (p *Parser) parseProjectionItems() []ast.ProjectionItem {
	var items []ast.ProjectionItem
	items = append(items, p.parseProjectionItem())
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		items = append(items, p.parseProjectionItem())
	}
	return items
}

func (p *Parser) parseProjectionItem() ast.ProjectionItem {
	expr := p.parseExpression(LOWEST)
	item := ast.ProjectionItem{Expr: expr}
	if p.peekTokenIs(token.AS) {
		p.nextToken()
		if p.expectPeek(token.IDENT) {
			item.Alias = p.curToken.Literal
		}
	}
	return item
}

func (p *Parser) parseOrderBySkipLimit() ([]ast.SortItem, ast.Expression, ast.Expression) {
	var order []ast.SortItem
	var skip, limit ast.Expression
	if p.peekTokenIs(token.ORDER) {
		p.nextToken()
		if !p.expectPeek(token.BY) {
			return order, skip, limit
		}
		p.nextToken()
		order = append(order, p.parseSortItem())
		for p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			order = append(order, p.parseSortItem())
		}
	}
	if p.peekTokenIs(token.SKIP) {
		p.nextToken()
		p.nextToken()
		skip = p.parseExpression(LOWEST)
	}
	if p.peekTokenIs(token.LIMIT) {
		p.nextToken()
		p.nextToken()
		limit = p.parseExpression(LOWEST)
	}
	return order, skip, limit
}

func (p *Parser) parseSortItem() ast.SortItem {
	expr := p.parseExpression(LOWEST)
	item := ast.SortItem{Expr: expr}
	switch p.peekToken.Type {
	case token.ASC:
		p.nextToken()
	case token.DESC:
		p.nextToken()
		item.Descending = true
	}
	return item
}

func (p *Parser) parseWithClause() *ast.WithClause {
	w := &ast.WithClause{}
	if p.peekTokenIs(token.DISTINCT) {
		p.nextToken()
		w.Distinct = true
	}
	p.nextToken()
	w.Items = p.parseProjectionItems()
	if p.peekTokenIs(token.WHERE) {
		p.nextToken()
		p.nextToken()
		w.Where = p.parseExpression(LOWEST)
	}
	w.OrderBy, w.Skip, w.Limit = p.parseOrderBySkipLimit()
	return w
}

func (p *Parser) parseReturnClause() *ast.ReturnClause {
	r := &ast.ReturnClause{}
	if p.peekTokenIs(token.DISTINCT) {
		p.nextToken()
		r.Distinct = true
	}
	p.nextToken()
	r.Items = p.parseProjectionItems()
	r.OrderBy, r.Skip, r.Limit = p.parseOrderBySkipLimit()
	return r
}

// -----------------------------------------------------------------------
// Patterns
// -----------------------------------------------------------------------

func (p *Parser) parsePatternElement() *ast.PatternElement {
	pe := &ast.PatternElement{}
	if p.curTokenIs(token.IDENT) && p.peekTokenIs(token.EQ) {
		pe.Variable = p.curToken.Literal
		p.nextToken() // =
		p.nextToken() // (
	}
	pe.Start = p.parseNodePattern()
	for p.peekTokenIs(token.DASH) || p.peekTokenIs(token.ARROW_L) {
		p.nextToken()
		rel := p.parseRelPattern()
		p.nextToken()
		node := p.parseNodePattern()
		pe.Chain = append(pe.Chain, ast.RelChainLink{Rel: rel, Node: node})
	}
	return pe
}

func (p *Parser) parseNodePattern() *ast.NodePattern {
	n := &ast.NodePattern{}
	if !p.curTokenIs(token.LPAREN) {
		p.errorf("expected '(' to start a node pattern, got %s", p.curToken.Type)
		return n
	}
	p.nextToken()
	if p.curTokenIs(token.IDENT) {
		n.Variable = p.curToken.Literal
		p.nextToken()
	}
	for p.curTokenIs(token.COLON) {
		p.nextToken()
		n.Labels = append(n.Labels, p.curToken.Literal)
		p.nextToken()
	}
	if p.curTokenIs(token.LBRACE) {
		n.Properties = p.parseMapLiteral().(*ast.MapLiteral)
		p.nextToken()
	}
	if !p.curTokenIs(token.RPAREN) {
		p.errorf("expected ')' to close a node pattern, got %s", p.curToken.Type)
	}
	return n
}

// parseRelPattern parses "-[alias:TYPE*lo..hi {props}]->" or its mirror,
// starting with curToken on the leading '-' or '<-'.
func (p *Parser) parseRelPattern() *ast.RelPattern {
	r := &ast.RelPattern{Direction: ast.DirEither}
	if p.curTokenIs(token.ARROW_L) {
		r.Direction = ast.DirLeft
		p.nextToken()
	} else {
		p.nextToken() // consume leading DASH
	}
	if p.curTokenIs(token.LBRACKET) {
		p.nextToken()
		if p.curTokenIs(token.IDENT) {
			r.Variable = p.curToken.Literal
			p.nextToken()
		}
		if p.curTokenIs(token.COLON) {
			p.nextToken()
			r.Types = append(r.Types, p.curToken.Literal)
			p.nextToken()
			for p.curTokenIs(token.PIPE) {
				p.nextToken()
				r.Types = append(r.Types, p.curToken.Literal)
				p.nextToken()
			}
		}
		if p.curTokenIs(token.ASTERISK) {
			r.VarLength = p.parseVarLengthBound()
		}
		if p.curTokenIs(token.LBRACE) {
			r.Properties = p.parseMapLiteral().(*ast.MapLiteral)
			p.nextToken()
		}
		if !p.curTokenIs(token.RBRACKET) {
			p.errorf("expected ']' to close a relationship pattern, got %s", p.curToken.Type)
		}
		p.nextToken()
	}
	if p.curTokenIs(token.ARROW_R) {
		r.Direction = ast.DirRight
	} else if p.curTokenIs(token.DASH) {
		// direction stays whatever it was set to by the opening side
	}
	return r
}

// parseVarLengthBound parses "*", "*3", "*2..5", "*..4", "*3.." starting
// with curToken on the ASTERISK.
func (p *Parser) parseVarLengthBound() ast.VarLengthBound {
	b := ast.VarLengthBound{Set: true, Lo: 1, Hi: -1}
	if p.peekTokenIs(token.INT) {
		p.nextToken()
		n, _ := strconv.Atoi(p.curToken.Literal)
		b.Lo, b.Hi = n, n
	}
	if p.peekTokenIs(token.DOTDOT) {
		p.nextToken()
		b.Hi = -1
		if p.peekTokenIs(token.INT) {
			p.nextToken()
			n, _ := strconv.Atoi(p.curToken.Literal)
			b.Hi = n
		}
	}
	p.nextToken()
	return b
}

// -----------------------------------------------------------------------
// Expressions (Pratt parser)
// -----------------------------------------------------------------------

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.errorf("no prefix parse function for %s found", p.curToken.Type)
		return nil
	}
	left := prefix()

	for !p.peekTokenIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseIdentifierOrCall() ast.Expression {
	ident := &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	if p.peekTokenIs(token.LPAREN) {
		return p.parseFunctionCall(ident.Value)
	}
	return ident
}

func (p *Parser) parseFunctionCall(name string) ast.Expression {
	fc := &ast.FunctionCall{Name: name}
	p.nextToken() // (
	if p.peekTokenIs(token.DISTINCT) {
		p.nextToken()
		fc.Distinct = true
	}
	if p.peekTokenIs(token.ASTERISK) {
		p.nextToken()
		fc.Star = true
		if !p.expectPeek(token.RPAREN) {
			return fc
		}
		return fc
	}
	if !p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		fc.Args = append(fc.Args, p.parseExpression(LOWEST))
		for p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			fc.Args = append(fc.Args, p.parseExpression(LOWEST))
		}
	}
	p.expectPeek(token.RPAREN)
	return fc
}

func (p *Parser) parseParameter() ast.Expression {
	return &ast.Parameter{Name: p.curToken.Literal}
}

func (p *Parser) parseIntLiteral() ast.Expression {
	return &ast.Literal{Token: p.curToken, Kind: ast.LitInt, Raw: p.curToken.Literal}
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	return &ast.Literal{Token: p.curToken, Kind: ast.LitFloat, Raw: p.curToken.Literal}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.Literal{Token: p.curToken, Kind: ast.LitString, Raw: p.curToken.Literal}
}

func (p *Parser) parseBoolLiteral() ast.Expression {
	return &ast.Literal{Token: p.curToken, Kind: ast.LitBool, Raw: p.curToken.Literal}
}

func (p *Parser) parseNullLiteral() ast.Expression {
	return &ast.Literal{Token: p.curToken, Kind: ast.LitNull, Raw: "NULL"}
}

// parseStarExpression handles the bare "*" projection item in RETURN/WITH
// (distinct from the PRODUCT infix "*" and from count(*), which is parsed
// separately inside parseFunctionCall).
func (p *Parser) parseStarExpression() ast.Expression {
	return &ast.StarExpr{}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	op := p.curToken.Type
	p.nextToken()
	operand := p.parseExpression(PREFIX)
	return &ast.UnaryExpr{Op: op, Operand: operand}
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	exp := p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return exp
}

func (p *Parser) parseListLiteral() ast.Expression {
	l := &ast.ListLiteral{}
	if p.peekTokenIs(token.RBRACKET) {
		p.nextToken()
		return l
	}
	p.nextToken()
	l.Elements = append(l.Elements, p.parseExpression(LOWEST))
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		l.Elements = append(l.Elements, p.parseExpression(LOWEST))
	}
	p.expectPeek(token.RBRACKET)
	return l
}

func (p *Parser) parseMapLiteral() ast.Expression {
	m := &ast.MapLiteral{}
	if p.peekTokenIs(token.RBRACE) {
		p.nextToken()
		return m
	}
	p.nextToken()
	k, v := p.parseMapEntry()
	m.Keys = append(m.Keys, k)
	m.Values = append(m.Values, v)
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		k, v := p.parseMapEntry()
		m.Keys = append(m.Keys, k)
		m.Values = append(m.Values, v)
	}
	p.expectPeek(token.RBRACE)
	return m
}

func (p *Parser) parseMapEntry() (string, ast.Expression) {
	key := p.curToken.Literal
	if !p.expectPeek(token.COLON) {
		return key, nil
	}
	p.nextToken()
	return key, p.parseExpression(LOWEST)
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expr := &ast.BinaryExpr{Op: p.curToken.Type, Left: left}
	prec := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(prec)
	return expr
}

func (p *Parser) parsePropertyAccess(left ast.Expression) ast.Expression {
	if !p.expectPeek(token.IDENT) {
		return left
	}
	return &ast.PropertyAccess{Base: left, Property: p.curToken.Literal}
}

func (p *Parser) parseIsNull(left ast.Expression) ast.Expression {
	n := &ast.IsNullExpr{Operand: left}
	if p.peekTokenIs(token.NOT) {
		p.nextToken()
		n.Negated = true
	}
	p.expectPeek(token.NULL_KW)
	return n
}

func (p *Parser) parseStringPredicateInfix(left ast.Expression, kind ast.StringPredicateKind, skipTo token.Type) ast.Expression {
	if skipTo != token.ILLEGAL {
		p.expectPeek(skipTo)
	}
	prec := STRPRED
	p.nextToken()
	right := p.parseExpression(prec)
	return &ast.StringPredicateExpr{Kind: kind, Left: left, Right: right}
}

func (p *Parser) parseCaseExpression() ast.Expression {
	c := &ast.CaseExpr{}
	if !p.peekTokenIs(token.WHEN) {
		p.nextToken()
		c.Test = p.parseExpression(LOWEST)
	}
	for p.peekTokenIs(token.WHEN) {
		p.nextToken()
		p.nextToken()
		cond := p.parseExpression(LOWEST)
		if !p.expectPeek(token.THEN) {
			break
		}
		p.nextToken()
		res := p.parseExpression(LOWEST)
		c.Whens = append(c.Whens, ast.CaseWhen{Condition: cond, Result: res})
	}
	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		p.nextToken()
		c.Else = p.parseExpression(LOWEST)
	}
	p.expectPeek(token.END)
	return c
}

func (p *Parser) parseExistsExpression() ast.Expression {
	e := &ast.ExistsExpr{}
	if !p.expectPeek(token.LBRACE) {
		return e
	}
	if !p.expectPeek(token.MATCH) {
		return e
	}
	p.nextToken()
	e.Pattern = append(e.Pattern, p.parsePatternElement())
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		e.Pattern = append(e.Pattern, p.parsePatternElement())
	}
	if p.peekTokenIs(token.WHERE) {
		p.nextToken()
		p.nextToken()
		e.Where = p.parseExpression(LOWEST)
	}
	p.expectPeek(token.RBRACE)
	return e
}

// -----------------------------------------------------------------------
// DDL and COPY statements
// -----------------------------------------------------------------------

func (p *Parser) parseCreateTable() *ast.CreateTableStmt {
	c := &ast.CreateTableStmt{}
	switch p.peekToken.Type {
	case token.NODE:
		p.nextToken()
	case token.REL:
		p.nextToken()
		c.IsRelTable = true
	default:
		p.errorf("expected NODE or REL after CREATE, got %s", p.peekToken.Type)
		return c
	}
	if !p.expectPeek(token.TABLE) {
		return c
	}
	if p.peekTokenIs(token.IF) {
		p.nextToken()
		if !p.expectPeek(token.NOT) || !p.expectPeek(token.EXISTS) {
			return c
		}
		c.IfNotExists = true
	}
	if !p.expectPeek(token.IDENT) {
		return c
	}
	c.Name = p.curToken.Literal
	if !p.expectPeek(token.LPAREN) {
		return c
	}
	for {
		p.nextToken()
		if c.IsRelTable && p.curTokenIs(token.FROM) {
			p.nextToken()
			c.FromLabel = p.curToken.Literal
			if !p.expectPeek(token.TO) {
				return c
			}
			p.nextToken()
			c.ToLabel = p.curToken.Literal
		} else if p.curTokenIs(token.PRIMARY) {
			// Trailing "PRIMARY KEY(col)" constraint form.
			if !p.expectPeek(token.KEY) || !p.expectPeek(token.LPAREN) {
				return c
			}
			p.nextToken()
			keyCol := p.curToken.Literal
			p.expectPeek(token.RPAREN)
			for i := range c.Columns {
				if c.Columns[i].Name == keyCol {
					c.Columns[i].IsPrimary = true
				}
			}
		} else {
			col := ast.ColumnDef{Name: p.curToken.Literal}
			p.nextToken()
			col.TypeName = p.curToken.Literal
			// A parameterized type like DECIMAL(p, s) keeps its args as part
			// of the type name's source text.
			if p.peekTokenIs(token.LPAREN) {
				p.nextToken()
				args := ""
				for !p.curTokenIs(token.RPAREN) {
					p.nextToken()
					if !p.curTokenIs(token.RPAREN) {
						args += p.curToken.Literal
					}
				}
				col.TypeName += "(" + args + ")"
			}
			if p.peekTokenIs(token.PRIMARY) {
				p.nextToken()
				p.expectPeek(token.KEY)
				col.IsPrimary = true
			}
			c.Columns = append(c.Columns, col)
		}
		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}
	p.expectPeek(token.RPAREN)
	return c
}

func (p *Parser) parseAlterTable() *ast.AlterTableStmt {
	a := &ast.AlterTableStmt{}
	if !p.expectPeek(token.TABLE) {
		return a
	}
	if !p.expectPeek(token.IDENT) {
		return a
	}
	a.Table = p.curToken.Literal
	switch p.peekToken.Type {
	case token.ADD:
		p.nextToken()
		p.expectPeek(token.COLUMN)
		p.nextToken()
		col := ast.ColumnDef{Name: p.curToken.Literal}
		p.nextToken()
		col.TypeName = p.curToken.Literal
		a.Add = &col
	case token.DROP:
		p.nextToken()
		p.expectPeek(token.COLUMN)
		p.nextToken()
		a.Drop = p.curToken.Literal
	case token.RENAME:
		p.nextToken()
		p.expectPeek(token.COLUMN)
		p.nextToken()
		from := p.curToken.Literal
		p.expectPeek(token.TO)
		p.nextToken()
		a.Rename = &ast.RenameColumn{From: from, To: p.curToken.Literal}
	default:
		p.errorf("expected ADD, DROP or RENAME after ALTER TABLE %s, got %s", a.Table, p.peekToken.Type)
	}
	return a
}

func (p *Parser) parseDrop() *ast.DropStmt {
	d := &ast.DropStmt{}
	if p.peekTokenIs(token.SEQUENCE) {
		p.nextToken()
	} else if !p.expectPeek(token.TABLE) {
		return d
	}
	if p.peekTokenIs(token.IF) {
		p.nextToken()
		if !p.expectPeek(token.EXISTS) {
			return d
		}
		d.IfExists = true
	}
	if !p.expectPeek(token.IDENT) {
		return d
	}
	d.Name = p.curToken.Literal
	return d
}

func (p *Parser) parseCommentOn() *ast.CommentOnStmt {
	c := &ast.CommentOnStmt{}
	if !p.expectPeek(token.ON) {
		return c
	}
	if !p.expectPeek(token.TABLE) {
		return c
	}
	if !p.expectPeek(token.IDENT) {
		return c
	}
	c.Table = p.curToken.Literal
	if !p.expectPeek(token.IS) {
		return c
	}
	if !p.expectPeek(token.STRING) {
		return c
	}
	c.Comment = p.curToken.Literal
	return c
}

func (p *Parser) parseInstallExtension() *ast.InstallExtensionStmt {
	i := &ast.InstallExtensionStmt{}
	if !p.expectPeek(token.EXTENSION) {
		return i
	}
	if !p.expectPeek(token.IDENT) {
		return i
	}
	i.Name = p.curToken.Literal
	return i
}

func (p *Parser) parseUninstallExtension() *ast.UninstallExtensionStmt {
	u := &ast.UninstallExtensionStmt{}
	if !p.expectPeek(token.EXTENSION) {
		return u
	}
	if !p.expectPeek(token.IDENT) {
		return u
	}
	u.Name = p.curToken.Literal
	return u
}

func (p *Parser) parseCopyFrom() *ast.CopyFromStmt {
	c := &ast.CopyFromStmt{}
	if !p.expectPeek(token.IDENT) {
		return c
	}
	c.Table = p.curToken.Literal
	if !p.expectPeek(token.FROM) {
		return c
	}
	if !p.expectPeek(token.STRING) {
		return c
	}
	c.Path = p.curToken.Literal
	if p.peekTokenIs(token.WITH) {
		p.nextToken()
		if p.expectPeek(token.HEADERS) {
			c.Headers = true
		}
	}
	if p.peekTokenIs(token.LPAREN) {
		p.nextToken()
		c.Options = p.parseCopyOptions()
	}
	return c
}

// parseCopyOptions parses the parenthesized option list of COPY FROM:
// (HEADER=true, DELIM=',', IGNORE_ERRORS=true). Keys are identifiers or
// keywords; values are strings, numbers, or booleans, recorded textually
// for the loader to interpret.
func (p *Parser) parseCopyOptions() map[string]string {
	opts := map[string]string{}
	for {
		p.nextToken()
		if p.curTokenIs(token.RPAREN) || p.curTokenIs(token.EOF) {
			return opts
		}
		key := p.curToken.Literal
		if !p.expectPeek(token.EQ) {
			return opts
		}
		p.nextToken()
		opts[key] = p.curToken.Literal
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
			continue
		}
		if !p.expectPeek(token.RPAREN) {
			return opts
		}
		return opts
	}
}
