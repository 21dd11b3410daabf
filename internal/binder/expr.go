package binder

import (
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/parser/ast"
	"github.com/dreamware/cyq/internal/parser/token"
	"github.com/dreamware/cyq/internal/types"
)

// ExprKind tags a BoundExpr's variant's tagged-variant
// redesign note (the same flat-enum shape internal/types uses for
// LogicalType.Kind).
type ExprKind uint8

const (
	KindVar ExprKind = iota
	KindProperty
	KindLiteral
	KindParameter
	KindBinary
	KindUnary
	KindIsNull
	KindStringPredicate
	KindFunctionCall
	KindCase
	KindList
	KindMap
	KindExists
)

// BoundExpr is a type-resolved expression tree. Every node in the source
// AST's expression hierarchy has exactly one BoundExpr counterpart here;
// the Kind tag plus the subset of fields it uses stand in for a type
// hierarchy (the same tagged-variant shape applies equally
// to expression trees as to physical operators).
type BoundExpr struct {
	Kind ExprKind
	Type types.LogicalType

	// Unknown marks an expression whose type cannot be statically
	// resolved (a $parameter, whose value arrives at execution time, or
	// a NULL literal). Binary/unary/comparison type checks are skipped
	// against an Unknown operand rather than rejected.
	Unknown bool

	// KindVar
	Var string

	// KindProperty
	Base     *BoundExpr
	Property string

	// KindLiteral
	LitKind ast.LiteralKind
	Raw     string

	// KindParameter
	Param string

	// KindBinary / KindUnary
	Op    token.Type
	Left  *BoundExpr
	Right *BoundExpr

	// KindUnary / KindIsNull operand
	Operand *BoundExpr
	Negated bool

	// KindStringPredicate
	StrPredKind ast.StringPredicateKind

	// KindFunctionCall
	FuncName    string
	Args        []*BoundExpr
	Distinct    bool
	IsAggregate bool

	// KindCase
	CaseTest  *BoundExpr
	CaseWhens []BoundCaseWhen
	CaseElse  *BoundExpr

	// KindList
	Elements []*BoundExpr

	// KindMap
	MapKeys   []string
	MapValues []*BoundExpr

	// KindExists: the pattern's own query graph plus optional WHERE,
	// retained so the planner can build a semi-join subplan for it
	// instead of only type-checking it (the planner treats EXISTS
	// as a correlated subquery, not a bare boolean).
	ExistsGraph *QueryGraph
	ExistsWhere *BoundExpr
}

type BoundCaseWhen struct {
	Condition *BoundExpr
	Result    *BoundExpr
}

// ContainsAggregate reports whether e or any descendant is an aggregate
// function call, used to enforce the "aggregation must be at the root of
// its projection expression tree" rule.
func (e *BoundExpr) ContainsAggregate() bool {
	if e == nil {
		return false
	}
	if e.Kind == KindFunctionCall && e.IsAggregate {
		return true
	}
	switch e.Kind {
	case KindBinary:
		return e.Left.ContainsAggregate() || e.Right.ContainsAggregate()
	case KindUnary, KindIsNull:
		return e.Operand.ContainsAggregate()
	case KindStringPredicate:
		return e.Left.ContainsAggregate() || e.Right.ContainsAggregate()
	case KindProperty:
		return e.Base.ContainsAggregate()
	case KindFunctionCall:
		for _, a := range e.Args {
			if a.ContainsAggregate() {
				return true
			}
		}
	case KindCase:
		if e.CaseTest.ContainsAggregate() || e.CaseElse.ContainsAggregate() {
			return true
		}
		for _, w := range e.CaseWhens {
			if w.Condition.ContainsAggregate() || w.Result.ContainsAggregate() {
				return true
			}
		}
	case KindList:
		for _, el := range e.Elements {
			if el.ContainsAggregate() {
				return true
			}
		}
	case KindMap:
		for _, v := range e.MapValues {
			if v.ContainsAggregate() {
				return true
			}
		}
	}
	return false
}

// numericRank orders the numeric Kinds by widening precedence; implicit
// casts exist only among numeric types, widening.
// There is no library-provided numeric lattice in the example pack for an
// embedded type system this shape, so this is a direct, small table.
func numericRank(k types.Kind) int {
	switch k {
	case types.INT8, types.UINT8:
		return 1
	case types.INT16, types.UINT16:
		return 2
	case types.INT32, types.UINT32:
		return 3
	case types.INT64, types.UINT64:
		return 4
	case types.INT128:
		return 5
	case types.DECIMAL:
		return 6
	case types.FLOAT:
		return 7
	case types.DOUBLE:
		return 8
	default:
		return 0
	}
}

func widenNumeric(a, b types.LogicalType) types.LogicalType {
	if a.Equal(b) {
		return a
	}
	if numericRank(a.Kind) >= numericRank(b.Kind) {
		return a
	}
	return b
}

// resolveBinary applies the arithmetic/comparison
// compatibility rules: DATE/TIMESTAMP +/- INTERVAL yields the temporal
// operand's type, DATE - DATE yields INTERVAL, arithmetic on INTERNAL_ID
// is forbidden outright, numeric operands widen, STRING '+' concatenates,
// comparisons and boolean connectives yield BOOL, and IN checks the right
// operand is a LIST.
func resolveBinary(op token.Type, left, right *BoundExpr) (types.LogicalType, error) {
	lt, rt := left.Type, right.Type

	if lt.Kind == types.INTERNAL_ID || rt.Kind == types.INTERNAL_ID {
		if isArithmetic(op) {
			return types.LogicalType{}, cyqerr.Newf(cyqerr.KindBinder,
				"arithmetic on INTERNAL_ID is not permitted")
		}
	}

	switch op {
	case token.AND, token.OR, token.XOR:
		if lt.Kind != types.BOOL || rt.Kind != types.BOOL {
			return types.LogicalType{}, cyqerr.Newf(cyqerr.KindBinder,
				"%s requires BOOL operands, got %s and %s", op, lt, rt)
		}
		return types.Bool(), nil

	case token.EQ, token.NEQ, token.LT, token.GT, token.LTE, token.GTE:
		if !comparable(lt, rt) {
			return types.LogicalType{}, cyqerr.Newf(cyqerr.KindBinder,
				"cannot compare %s with %s", lt, rt)
		}
		return types.Bool(), nil

	case token.IN:
		if rt.Kind != types.LIST && rt.Kind != types.ARRAY {
			return types.LogicalType{}, cyqerr.Newf(cyqerr.KindBinder,
				"IN requires a list on the right, got %s", rt)
		}
		return types.Bool(), nil

	case token.PLUS:
		if lt.Kind == types.DATE && rt.Kind == types.INTERVAL {
			return lt, nil
		}
		if lt.Kind == types.TIMESTAMP && rt.Kind == types.INTERVAL {
			return lt, nil
		}
		if lt.Kind == types.INTERVAL && rt.Kind == types.DATE {
			return rt, nil
		}
		if lt.Kind == types.INTERVAL && rt.Kind == types.TIMESTAMP {
			return rt, nil
		}
		if lt.Kind == types.STRING && rt.Kind == types.STRING {
			return types.Str(), nil
		}
		return arithmeticResult(lt, rt)

	case token.DASH:
		if lt.Kind == types.DATE && rt.Kind == types.DATE {
			return types.Interval(), nil
		}
		if (lt.Kind == types.DATE || lt.Kind == types.TIMESTAMP) && rt.Kind == types.INTERVAL {
			return lt, nil
		}
		return arithmeticResult(lt, rt)

	case token.ASTERISK, token.SLASH, token.PERCENT, token.CARET:
		return arithmeticResult(lt, rt)

	default:
		return types.LogicalType{}, cyqerr.Newf(cyqerr.KindBinder, "unsupported operator %s", op)
	}
}

func isArithmetic(op token.Type) bool {
	switch op {
	case token.PLUS, token.DASH, token.ASTERISK, token.SLASH, token.PERCENT, token.CARET:
		return true
	default:
		return false
	}
}

func arithmeticResult(lt, rt types.LogicalType) (types.LogicalType, error) {
	if !lt.IsNumeric() || !rt.IsNumeric() {
		return types.LogicalType{}, cyqerr.Newf(cyqerr.KindBinder,
			"arithmetic requires numeric operands, got %s and %s", lt, rt)
	}
	return widenNumeric(lt, rt), nil
}

// comparable permits same-kind comparisons, numeric-to-numeric widening
// comparisons, and DATE/TIMESTAMP mutual comparison.
func comparable(a, b types.LogicalType) bool {
	if a.Equal(b) {
		return true
	}
	if a.IsNumeric() && b.IsNumeric() {
		return true
	}
	temporal := func(k types.Kind) bool { return k == types.DATE || k == types.TIMESTAMP }
	return temporal(a.Kind) && temporal(b.Kind)
}
