// Package ast defines the Abstract Syntax Tree nodes for the query
// language: the statement variants (RegularQuery, CreateTable, CopyFrom,
// Drop, CommentOn, InstallExtension, UninstallExtension), the clause and
// pattern nodes under them, and the expression hierarchy.
package ast

import (
	"strings"

	"github.com/dreamware/cyq/internal/parser/token"
)

// Node is implemented by every AST node.
type Node interface {
	TokenLiteral() string
	String() string
}

// Statement is implemented by every top-level statement variant.
type Statement interface {
	Node
	statementNode()
}

// Expression is implemented by every expression node.
type Expression interface {
	Node
	expressionNode()
}

// -----------------------------------------------------------------------
// Top-level statements
// -----------------------------------------------------------------------

// RegularQuery is a sequence of SingleQuery joined by UNION [ALL].
type RegularQuery struct {
	First   *SingleQuery
	Unions  []UnionClause
}

type UnionClause struct {
	All   bool
	Query *SingleQuery
}

func (r *RegularQuery) statementNode()     {}
func (r *RegularQuery) TokenLiteral() string { return "MATCH" }
func (r *RegularQuery) String() string {
	var sb strings.Builder
	sb.WriteString(r.First.String())
	for _, u := range r.Unions {
		sb.WriteString(" UNION ")
		if u.All {
			sb.WriteString("ALL ")
		}
		sb.WriteString(u.Query.String())
	}
	return sb.String()
}

// SingleQuery is zero or more QueryPart (reading clauses + WITH), then
// reading clauses, optional updating clauses, then RETURN.
type SingleQuery struct {
	Parts        []QueryPart
	ReadingParts []ReadingClause
	Set          *SetClause    // nil unless the query updates properties
	Return       *ReturnClause // nil for a query ending without RETURN (e.g. a bare SET)
}

func (s *SingleQuery) TokenLiteral() string { return "MATCH" }
func (s *SingleQuery) String() string {
	var sb strings.Builder
	for _, p := range s.Parts {
		sb.WriteString(p.String())
		sb.WriteString(" ")
	}
	for _, r := range s.ReadingParts {
		sb.WriteString(r.String())
		sb.WriteString(" ")
	}
	if s.Set != nil {
		sb.WriteString(s.Set.String())
		sb.WriteString(" ")
	}
	if s.Return != nil {
		sb.WriteString(s.Return.String())
	}
	return sb.String()
}

// SetClause is one or more "SET target = value" assignments; repeated SET
// keywords in source accumulate into a single clause.
type SetClause struct {
	Items []SetItem
}

// SetItem assigns Value to Target, a property access on an in-scope node
// or relationship variable.
type SetItem struct {
	Target Expression
	Value  Expression
}

func (s *SetClause) TokenLiteral() string { return "SET" }
func (s *SetClause) String() string {
	parts := make([]string, len(s.Items))
	for i, it := range s.Items {
		parts[i] = it.Target.String() + " = " + it.Value.String()
	}
	return "SET " + strings.Join(parts, ", ")
}

// QueryPart is a run of reading clauses terminated by a WITH.
type QueryPart struct {
	ReadingParts []ReadingClause
	With         *WithClause
}

func (q QueryPart) String() string {
	var sb strings.Builder
	for _, r := range q.ReadingParts {
		sb.WriteString(r.String())
		sb.WriteString(" ")
	}
	sb.WriteString(q.With.String())
	return sb.String()
}

// ReadingClause is implemented by MATCH, UNWIND, LOAD CSV, and CALL.
type ReadingClause interface {
	Node
	readingClauseNode()
}

// MatchClause binds a graph pattern, optionally with a WHERE filter.
type MatchClause struct {
	Optional bool
	Pattern  []*PatternElement
	Where    Expression // nil if absent
}

func (m *MatchClause) readingClauseNode()  {}
func (m *MatchClause) TokenLiteral() string { return "MATCH" }
func (m *MatchClause) String() string {
	var sb strings.Builder
	if m.Optional {
		sb.WriteString("OPTIONAL ")
	}
	sb.WriteString("MATCH ")
	parts := make([]string, len(m.Pattern))
	for i, p := range m.Pattern {
		parts[i] = p.String()
	}
	sb.WriteString(strings.Join(parts, ", "))
	if m.Where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(m.Where.String())
	}
	return sb.String()
}

// UnwindClause expands a list expression into one row per element.
type UnwindClause struct {
	List Expression
	As   string
}

func (u *UnwindClause) readingClauseNode()  {}
func (u *UnwindClause) TokenLiteral() string { return "UNWIND" }
func (u *UnwindClause) String() string {
	return "UNWIND " + u.List.String() + " AS " + u.As
}

// LoadCSVClause reads rows from a CSV source into scope.
type LoadCSVClause struct {
	WithHeaders bool
	From        Expression
	As          string
}

func (l *LoadCSVClause) readingClauseNode()  {}
func (l *LoadCSVClause) TokenLiteral() string { return "LOAD" }
func (l *LoadCSVClause) String() string {
	s := "LOAD CSV"
	if l.WithHeaders {
		s += " WITH HEADERS"
	}
	return s + " FROM " + l.From.String() + " AS " + l.As
}

// CallClause invokes a table function, optionally yielding named columns.
type CallClause struct {
	Function string
	Args     []Expression
	Yield    []string
}

func (c *CallClause) readingClauseNode()  {}
func (c *CallClause) TokenLiteral() string { return "CALL" }
func (c *CallClause) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	s := "CALL " + c.Function + "(" + strings.Join(args, ", ") + ")"
	if len(c.Yield) > 0 {
		s += " YIELD " + strings.Join(c.Yield, ", ")
	}
	return s
}

// ProjectionItem is one expression (optionally aliased) in a RETURN/WITH
// clause.
type ProjectionItem struct {
	Expr  Expression
	Alias string // empty if not aliased
}

func (p ProjectionItem) String() string {
	if p.Alias == "" {
		return p.Expr.String()
	}
	return p.Expr.String() + " AS " + p.Alias
}

// SortItem is one ORDER BY term.
type SortItem struct {
	Expr       Expression
	Descending bool
}

func (s SortItem) String() string {
	if s.Descending {
		return s.Expr.String() + " DESC"
	}
	return s.Expr.String() + " ASC"
}

// WithClause projects and optionally filters/limits the current scope
// before the rest of the query continues.
type WithClause struct {
	Distinct  bool
	Items     []ProjectionItem
	Where     Expression
	OrderBy   []SortItem
	Skip      Expression
	Limit     Expression
}

func (w *WithClause) TokenLiteral() string { return "WITH" }
func (w *WithClause) String() string {
	parts := make([]string, len(w.Items))
	for i, it := range w.Items {
		parts[i] = it.String()
	}
	s := "WITH "
	if w.Distinct {
		s += "DISTINCT "
	}
	s += strings.Join(parts, ", ")
	if w.Where != nil {
		s += " WHERE " + w.Where.String()
	}
	return s
}

// ReturnClause is the terminal projection of a SingleQuery.
type ReturnClause struct {
	Distinct bool
	Items    []ProjectionItem
	OrderBy  []SortItem
	Skip     Expression
	Limit    Expression
}

func (r *ReturnClause) TokenLiteral() string { return "RETURN" }
func (r *ReturnClause) String() string {
	parts := make([]string, len(r.Items))
	for i, it := range r.Items {
		parts[i] = it.String()
	}
	s := "RETURN "
	if r.Distinct {
		s += "DISTINCT "
	}
	return s + strings.Join(parts, ", ")
}

// -----------------------------------------------------------------------
// Graph patterns
// -----------------------------------------------------------------------

// PatternElement is a NodePattern followed by zero or more
// (RelPattern, NodePattern) chains.
type PatternElement struct {
	Variable string // alias bound to the whole path, empty if none
	Start    *NodePattern
	Chain    []RelChainLink
}

type RelChainLink struct {
	Rel  *RelPattern
	Node *NodePattern
}

func (p *PatternElement) TokenLiteral() string { return "(" }
func (p *PatternElement) String() string {
	var sb strings.Builder
	sb.WriteString(p.Start.String())
	for _, link := range p.Chain {
		sb.WriteString(link.Rel.String())
		sb.WriteString(link.Node.String())
	}
	return sb.String()
}

// NodePattern is "(alias:Label {props})".
type NodePattern struct {
	Variable   string
	Labels     []string
	Properties *MapLiteral // nil if absent
}

func (n *NodePattern) TokenLiteral() string { return "(" }
func (n *NodePattern) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(n.Variable)
	for _, l := range n.Labels {
		sb.WriteString(":")
		sb.WriteString(l)
	}
	if n.Properties != nil {
		sb.WriteString(" ")
		sb.WriteString(n.Properties.String())
	}
	sb.WriteString(")")
	return sb.String()
}

// RelDirection is the arrow direction of a RelPattern.
type RelDirection uint8

const (
	DirEither RelDirection = iota
	DirRight               // -[...]->
	DirLeft                // <-[...]-
)

// VarLengthBound is the optional *lo..hi bound on a RelPattern.
type VarLengthBound struct {
	Set bool
	Lo  int
	Hi  int // -1 means unbounded
}

// RelPattern is "-[alias:TYPE*lo..hi {props}]->" or its mirror image.
type RelPattern struct {
	Variable   string
	Types      []string
	Direction  RelDirection
	VarLength  VarLengthBound
	Properties *MapLiteral
}

func (r *RelPattern) TokenLiteral() string { return "-" }
func (r *RelPattern) String() string {
	var sb strings.Builder
	if r.Direction == DirLeft {
		sb.WriteString("<-")
	} else {
		sb.WriteString("-")
	}
	sb.WriteString("[")
	sb.WriteString(r.Variable)
	for i, t := range r.Types {
		if i == 0 {
			sb.WriteString(":")
		} else {
			sb.WriteString("|")
		}
		sb.WriteString(t)
	}
	if r.VarLength.Set {
		sb.WriteString("*")
	}
	sb.WriteString("]")
	if r.Direction == DirRight {
		sb.WriteString("->")
	} else {
		sb.WriteString("-")
	}
	return sb.String()
}

// -----------------------------------------------------------------------
// Expressions
// -----------------------------------------------------------------------

// Identifier is a plain variable or function name reference.
type Identifier struct {
	Token token.Token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) String() string       { return i.Value }

// PropertyAccess is "expr.property".
type PropertyAccess struct {
	Base     Expression
	Property string
}

func (p *PropertyAccess) expressionNode()      {}
func (p *PropertyAccess) TokenLiteral() string { return "." }
func (p *PropertyAccess) String() string       { return p.Base.String() + "." + p.Property }

// Literal is a typed literal value, typed per its source form.
type Literal struct {
	Token token.Token
	Kind  LiteralKind
	Raw   string // the source text, re-parsed by the binder per target type
}

type LiteralKind uint8

const (
	LitInt LiteralKind = iota
	LitFloat
	LitString
	LitBool
	LitNull
)

func (l *Literal) expressionNode()      {}
func (l *Literal) TokenLiteral() string { return l.Token.Literal }
func (l *Literal) String() string       { return l.Raw }

// ListLiteral is "[e1, e2, ...]".
type ListLiteral struct {
	Elements []Expression
}

func (l *ListLiteral) expressionNode()      {}
func (l *ListLiteral) TokenLiteral() string { return "[" }
func (l *ListLiteral) String() string {
	parts := make([]string, len(l.Elements))
	for i, e := range l.Elements {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// MapLiteral is "{k: v, k: v}", used both as a standalone expression and
// as a NodePattern/RelPattern's inline property map.
type MapLiteral struct {
	Keys   []string
	Values []Expression
}

func (m *MapLiteral) expressionNode()      {}
func (m *MapLiteral) TokenLiteral() string { return "{" }
func (m *MapLiteral) String() string {
	parts := make([]string, len(m.Keys))
	for i := range m.Keys {
		parts[i] = m.Keys[i] + ": " + m.Values[i].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// StarExpr is the bare "*" projection item, expanded by the binder to
// every variable currently in scope.
type StarExpr struct{}

func (s *StarExpr) expressionNode()      {}
func (s *StarExpr) TokenLiteral() string { return "*" }
func (s *StarExpr) String() string       { return "*" }

// Parameter is "$name", resolved against the query's bound parameter set.
type Parameter struct {
	Name string
}

func (p *Parameter) expressionNode()      {}
func (p *Parameter) TokenLiteral() string { return "$" }
func (p *Parameter) String() string       { return "$" + p.Name }

// BinaryExpr covers arithmetic, comparison and logical binary operators.
type BinaryExpr struct {
	Op       token.Type
	Left     Expression
	Right    Expression
}

func (b *BinaryExpr) expressionNode()      {}
func (b *BinaryExpr) TokenLiteral() string { return b.Op.String() }
func (b *BinaryExpr) String() string {
	return "(" + b.Left.String() + " " + b.Op.String() + " " + b.Right.String() + ")"
}

// UnaryExpr covers unary negation and NOT.
type UnaryExpr struct {
	Op      token.Type
	Operand Expression
}

func (u *UnaryExpr) expressionNode()      {}
func (u *UnaryExpr) TokenLiteral() string { return u.Op.String() }
func (u *UnaryExpr) String() string       { return "(" + u.Op.String() + u.Operand.String() + ")" }

// IsNullExpr is "expr IS [NOT] NULL".
type IsNullExpr struct {
	Operand Expression
	Negated bool
}

func (n *IsNullExpr) expressionNode()      {}
func (n *IsNullExpr) TokenLiteral() string { return "IS" }
func (n *IsNullExpr) String() string {
	if n.Negated {
		return n.Operand.String() + " IS NOT NULL"
	}
	return n.Operand.String() + " IS NULL"
}

// StringPredicateKind names STARTS WITH / ENDS WITH / CONTAINS.
type StringPredicateKind uint8

const (
	StartsWith StringPredicateKind = iota
	EndsWith
	ContainsStr
)

// StringPredicateExpr is "expr (STARTS WITH|ENDS WITH|CONTAINS) expr".
type StringPredicateExpr struct {
	Kind  StringPredicateKind
	Left  Expression
	Right Expression
}

func (s *StringPredicateExpr) expressionNode()      {}
func (s *StringPredicateExpr) TokenLiteral() string { return "STARTS" }
func (s *StringPredicateExpr) String() string {
	names := [...]string{"STARTS WITH", "ENDS WITH", "CONTAINS"}
	return s.Left.String() + " " + names[s.Kind] + " " + s.Right.String()
}

// FunctionCall is a named function invocation, with an optional DISTINCT
// flag for aggregations.
type FunctionCall struct {
	Name     string
	Args     []Expression
	Distinct bool
	Star     bool // count(*)
}

func (f *FunctionCall) expressionNode()      {}
func (f *FunctionCall) TokenLiteral() string { return f.Name }
func (f *FunctionCall) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	inner := strings.Join(args, ", ")
	if f.Star {
		inner = "*"
	}
	prefix := ""
	if f.Distinct {
		prefix = "DISTINCT "
	}
	return f.Name + "(" + prefix + inner + ")"
}

// CaseExpr is a generic or simple CASE expression.
type CaseExpr struct {
	Test       Expression // nil for a generic CASE WHEN cond THEN ...
	Whens      []CaseWhen
	Else       Expression // nil if absent
}

type CaseWhen struct {
	Condition Expression
	Result    Expression
}

func (c *CaseExpr) expressionNode()      {}
func (c *CaseExpr) TokenLiteral() string { return "CASE" }
func (c *CaseExpr) String() string {
	var sb strings.Builder
	sb.WriteString("CASE ")
	if c.Test != nil {
		sb.WriteString(c.Test.String())
		sb.WriteString(" ")
	}
	for _, w := range c.Whens {
		sb.WriteString("WHEN ")
		sb.WriteString(w.Condition.String())
		sb.WriteString(" THEN ")
		sb.WriteString(w.Result.String())
		sb.WriteString(" ")
	}
	if c.Else != nil {
		sb.WriteString("ELSE ")
		sb.WriteString(c.Else.String())
		sb.WriteString(" ")
	}
	sb.WriteString("END")
	return sb.String()
}

// ExistsExpr is an existential subquery, "EXISTS { MATCH ... }".
type ExistsExpr struct {
	Pattern []*PatternElement
	Where   Expression
}

func (e *ExistsExpr) expressionNode()      {}
func (e *ExistsExpr) TokenLiteral() string { return "EXISTS" }
func (e *ExistsExpr) String() string       { return "EXISTS { ... }" }

// -----------------------------------------------------------------------
// DDL and other non-query statements
// -----------------------------------------------------------------------

// ColumnDef is one property declaration in a CREATE TABLE.
type ColumnDef struct {
	Name      string
	TypeName  string // resolved against the logical type grammar by the binder
	IsPrimary bool
}

// CreateTableStmt covers both "CREATE NODE TABLE" and "CREATE REL TABLE".
type CreateTableStmt struct {
	IsRelTable  bool
	IfNotExists bool
	Name        string
	Columns     []ColumnDef

	// Rel-table only:
	FromLabel string
	ToLabel   string
}

func (c *CreateTableStmt) statementNode()     {}
func (c *CreateTableStmt) TokenLiteral() string { return "CREATE" }
func (c *CreateTableStmt) String() string       { return "CREATE TABLE " + c.Name }

// DropStmt drops a table or sequence.
type DropStmt struct {
	Name     string
	IfExists bool
}

func (d *DropStmt) statementNode()     {}
func (d *DropStmt) TokenLiteral() string { return "DROP" }
func (d *DropStmt) String() string       { return "DROP TABLE " + d.Name }

// AlterTableStmt covers ADD/DROP/RENAME COLUMN.
type AlterTableStmt struct {
	Table  string
	Add    *ColumnDef // nil unless this is ADD COLUMN
	Drop   string     // nonempty for DROP COLUMN
	Rename *RenameColumn
}

type RenameColumn struct {
	From, To string
}

func (a *AlterTableStmt) statementNode()     {}
func (a *AlterTableStmt) TokenLiteral() string { return "ALTER" }
func (a *AlterTableStmt) String() string       { return "ALTER TABLE " + a.Table }

// CommentOnStmt attaches a comment to a table, surfaced by SHOW_TABLES.
type CommentOnStmt struct {
	Table   string
	Comment string
}

func (c *CommentOnStmt) statementNode()     {}
func (c *CommentOnStmt) TokenLiteral() string { return "COMMENT" }
func (c *CommentOnStmt) String() string       { return "COMMENT ON TABLE " + c.Table }

// CopyFromStmt bulk-loads a table from one or more CSV files; the path
// may be a glob pattern, in which case every matched file must share one
// detected format.
type CopyFromStmt struct {
	Table   string
	Path    string
	Headers bool
	// Options holds the parenthesized option list (HEADER, PARALLEL,
	// DELIM, ESCAPE, QUOTE, IGNORE_ERRORS), keys as written, values as
	// their literal text.
	Options map[string]string
}

func (c *CopyFromStmt) statementNode()     {}
func (c *CopyFromStmt) TokenLiteral() string { return "COPY" }
func (c *CopyFromStmt) String() string       { return "COPY " + c.Table + " FROM " + c.Path }

// InstallExtensionStmt / UninstallExtensionStmt are named as statement
// variants of the statement grammar.
type InstallExtensionStmt struct{ Name string }

func (i *InstallExtensionStmt) statementNode()     {}
func (i *InstallExtensionStmt) TokenLiteral() string { return "INSTALL" }
func (i *InstallExtensionStmt) String() string       { return "INSTALL " + i.Name }

type UninstallExtensionStmt struct{ Name string }

func (u *UninstallExtensionStmt) statementNode()     {}
func (u *UninstallExtensionStmt) TokenLiteral() string { return "UNINSTALL" }
func (u *UninstallExtensionStmt) String() string       { return "UNINSTALL " + u.Name }

// RegularQueryStmt wraps a RegularQuery so it satisfies Statement,
// distinguishing a plain query from the DDL/COPY statement variants.
type RegularQueryStmt struct {
	Query *RegularQuery
}

func (r *RegularQueryStmt) statementNode()     {}
func (r *RegularQueryStmt) TokenLiteral() string { return r.Query.TokenLiteral() }
func (r *RegularQueryStmt) String() string       { return r.Query.String() }
