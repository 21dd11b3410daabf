// Package planner turns a bound query (internal/binder) into a logical
// plan tree ready for the vectorized operators in internal/exec.
package planner

import (
	"github.com/dreamware/cyq/internal/binder"
	"github.com/dreamware/cyq/internal/catalog"
)

// Kind tags a Plan node's variant, the same flat-enum-plus-struct shape
// internal/binder uses for BoundExpr and internal/types uses for
// LogicalType.Kind.
type Kind uint8

const (
	KindScanNodeID Kind = iota
	KindScanProperty
	KindExtend
	KindFilter
	KindProjection
	KindHashJoin
	KindSet
	KindCopyNode
	KindRelBatchInsert
	KindUnwind
	KindLoadCSV
	KindCall
	KindDDL
	KindUnion
	KindSort
)

func (k Kind) String() string {
	switch k {
	case KindScanNodeID:
		return "SCAN_NODE_ID"
	case KindScanProperty:
		return "SCAN_PROPERTY"
	case KindExtend:
		return "EXTEND"
	case KindFilter:
		return "FILTER"
	case KindProjection:
		return "PROJECTION"
	case KindHashJoin:
		return "HASH_JOIN"
	case KindSet:
		return "SET"
	case KindCopyNode:
		return "COPY_NODE"
	case KindRelBatchInsert:
		return "REL_BATCH_INSERT"
	case KindUnwind:
		return "UNWIND"
	case KindLoadCSV:
		return "LOAD_CSV"
	case KindCall:
		return "CALL"
	case KindDDL:
		return "DDL"
	case KindUnion:
		return "UNION"
	case KindSort:
		return "SORT"
	default:
		return "UNKNOWN"
	}
}

// Plan is one node of the logical plan tree. Only the fields relevant to
// Kind are populated; the rest stay zero, the same tagged-variant shape as
// binder.BoundExpr.
type Plan struct {
	Kind     Kind
	Children []*Plan

	// Schema is every variable or "var.prop" column this plan node (and
	// everything below it) has materialized, used during filter pushdown
	// to decide whether a referenced property needs a ScanProperty first.
	Schema []string

	// Cost is not set by Enumerate and stays zero; the running estimated
	// total lives in candidate.cost.
	Cost float64

	// KindScanNodeID
	NodeVar  string
	LabelIDs []int32

	// KindScanProperty
	Base     string // node or rel variable this property hangs off
	Property string
	IsRel    bool

	// KindExtend
	RelVar      string
	RelLabelIDs []int32
	Direction   catalog.Direction
	FromVar     string
	ToVar       string
	VarLength   bool
	VarLenLo    int
	VarLenHi    int // -1 means unbounded

	// KindFilter
	Predicate *binder.BoundExpr

	// KindProjection
	Items    []binder.BoundProjectionItem
	Distinct bool
	OrderBy  []binder.BoundSortItem
	Skip     *binder.BoundExpr
	Limit    *binder.BoundExpr

	// KindHashJoin
	JoinKey string

	// KindSet
	SetItems []binder.BoundSetItem

	// KindCopyNode / KindRelBatchInsert / DDL: reuse the bound form
	// directly, these are idempotent one-shot operators over the catalog
	// and storage layer rather than vectorized pipelines in their own
	// right.
	Unwind  *binder.BoundUnwind
	LoadCSV *binder.BoundLoadCSV
	Call    *binder.BoundCall
	DDL     *binder.BoundDDL

	// KindUnion
	All bool
}

// Encode renders the pattern-matching core of a plan in a compact prefix
// form for tests and EXPLAIN-style debugging: S(var) for a node-id scan,
// E(var) for an extend producing var, HJ(key){build}{probe} for a hash
// join, F{...} for a filter. Projections, property scans, and sorts pass
// through to their input, so the encoding captures join order alone.
func (p *Plan) Encode() string {
	switch p.Kind {
	case KindScanNodeID:
		return "S(" + p.NodeVar + ")"
	case KindExtend:
		return "E(" + p.ToVar + ")" + p.Children[0].Encode()
	case KindHashJoin:
		return "HJ(" + p.JoinKey + "){" + p.Children[0].Encode() + "}{" + p.Children[1].Encode() + "}"
	case KindFilter:
		return "F{" + p.Children[0].Encode() + "}"
	default:
		if len(p.Children) == 1 {
			return p.Children[0].Encode()
		}
		return p.Kind.String()
	}
}

func hasColumn(schema []string, col string) bool {
	for _, s := range schema {
		if s == col {
			return true
		}
	}
	return false
}
