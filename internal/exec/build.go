package exec

import (
	"github.com/dreamware/cyq/internal/binder"
	"github.com/dreamware/cyq/internal/cast"
	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/planner"
	"github.com/dreamware/cyq/internal/types"
)

// Env bundles the catalog and storage-layer seams Build threads through
// the operator tree (see Store/BulkLoader/CSVSource/WarningsSource); a
// caller not yet wired to internal/storage can pass test fakes.
type Env struct {
	Cat      *catalog.Catalog
	Store    Store
	Loader   BulkLoader
	CSV      CSVSource
	Warnings WarningsSource
}

// Build translates a logical plan tree (internal/planner) into the
// operator tree that runs it; the planner's tree is lowered one-for-one,
// with no further rewriting at this stage.
func Build(plan *planner.Plan, env Env) (Operator, error) {
	switch plan.Kind {
	case planner.KindScanNodeID:
		return NewScanNodeID(env.Store, plan.NodeVar, plan.LabelIDs), nil

	case planner.KindScanProperty:
		child, err := Build(plan.Children[0], env)
		if err != nil {
			return nil, err
		}
		labelID, ok := resolveVarLabel(env.Cat, plan.Children[0], plan.Base, plan.IsRel)
		if !ok {
			return nil, cyqerr.Newf(cyqerr.KindRuntime, "cannot resolve label for variable %q", plan.Base)
		}
		prop, err := propertyOf(env.Cat, labelID, plan.IsRel, plan.Property)
		if err != nil {
			return nil, err
		}
		outName := plan.Base + "." + plan.Property
		return NewScanProperty(child, env.Store, labelID, prop.Ordinal, plan.IsRel, plan.Base, outName, prop.Type), nil

	case planner.KindExtend:
		child, err := Build(plan.Children[0], env)
		if err != nil {
			return nil, err
		}
		ex := NewExtend(child, env.Store, plan.RelLabelIDs, plan.Direction, plan.FromVar, plan.RelVar, plan.ToVar)
		if plan.VarLength {
			ex.SetVarLength(plan.VarLenLo, plan.VarLenHi)
		}
		return ex, nil

	case planner.KindFilter:
		child, err := Build(plan.Children[0], env)
		if err != nil {
			return nil, err
		}
		return NewFilter(child, plan.Predicate), nil

	case planner.KindProjection:
		child, err := Build(plan.Children[0], env)
		if err != nil {
			return nil, err
		}
		return NewProjection(child, plan.Items, plan.Distinct), nil

	case planner.KindHashJoin:
		build, err := Build(plan.Children[0], env)
		if err != nil {
			return nil, err
		}
		probe, err := Build(plan.Children[1], env)
		if err != nil {
			return nil, err
		}
		return NewHashJoin(build, probe, plan.JoinKey), nil

	case planner.KindSort:
		child, err := Build(plan.Children[0], env)
		if err != nil {
			return nil, err
		}
		return NewSort(child, plan.OrderBy, plan.Skip, plan.Limit), nil

	case planner.KindUnion:
		left, err := Build(plan.Children[0], env)
		if err != nil {
			return nil, err
		}
		right, err := Build(plan.Children[1], env)
		if err != nil {
			return nil, err
		}
		return NewUnion(left, right, plan.All), nil

	case planner.KindUnwind:
		var child Operator
		var err error
		if len(plan.Children) > 0 {
			child, err = Build(plan.Children[0], env)
			if err != nil {
				return nil, err
			}
		} else {
			child = &singleRow{}
		}
		return NewUnwind(child, plan.Unwind.List, plan.Unwind.As, unwindElemType(plan.Unwind.List)), nil

	case planner.KindLoadCSV:
		var child Operator
		var err error
		if len(plan.Children) > 0 {
			child, err = Build(plan.Children[0], env)
			if err != nil {
				return nil, err
			}
		} else {
			child = &singleRow{}
		}
		return NewLoadCSV(child, env.CSV, plan.LoadCSV.From, plan.LoadCSV.WithHeaders, plan.LoadCSV.As), nil

	case planner.KindCall:
		return NewCall(env.Cat, env.Warnings, plan.Call.Function, plan.Call.Yield), nil

	case planner.KindDDL:
		return buildDDL(env.Cat, plan.DDL)

	case planner.KindCopyNode:
		return buildCopy(env, plan.DDL, false)

	case planner.KindRelBatchInsert:
		return buildCopy(env, plan.DDL, true)

	case planner.KindSet:
		child, err := Build(plan.Children[0], env)
		if err != nil {
			return nil, err
		}
		targets := make([]SetTarget, len(plan.SetItems))
		for i, it := range plan.SetItems {
			targets[i] = SetTarget{
				Var:      it.Var,
				Property: it.Property,
				IsRel:    it.IsRel,
				LabelID:  it.LabelID,
				Ordinal:  it.Ordinal,
				Type:     it.Type,
				Value:    it.Value,
			}
		}
		return NewSet(child, env.Store, targets), nil

	default:
		return nil, cyqerr.Newf(cyqerr.KindRuntime, "unhandled plan kind %s", plan.Kind)
	}
}

// singleRow is the degenerate child UNWIND/LOAD CSV use when they open a
// query (e.g. `UNWIND [1, 2, 3] AS x` with no preceding MATCH): it yields
// exactly one empty row, the identity element for per-row expansion.
type singleRow struct{ done bool }

func (s *singleRow) Schema() []string { return nil }

func (s *singleRow) Next(ctx *ExecContext, out *DataChunk) (bool, error) {
	if s.done {
		return false, nil
	}
	s.done = true
	fresh := &DataChunk{Selection: types.NewSequentialSelection(1), Count: 1}
	*out = *fresh
	return true, nil
}

// unwindElemType returns the element type UNWIND's output column should
// carry: a LIST-typed expression's element type, or the expression's own
// type when it isn't a list (UNWIND of a single non-list value behaves as a
// one-element list).
func unwindElemType(e *binder.BoundExpr) types.LogicalType {
	if e.Type.Kind == types.LIST && e.Type.Elem != nil {
		return *e.Type.Elem
	}
	return e.Type
}

// resolveVarLabel walks plan looking for the SCAN_NODE_ID or EXTEND node
// that introduces varName, returning the label id it belongs to. isRel
// selects whether varName is expected to be a rel variable (bound by
// EXTEND's RelVar) or a node variable (bound by SCAN_NODE_ID's NodeVar or
// EXTEND's ToVar, whose label is derived from the rel table's endpoint for
// the walked direction).
func resolveVarLabel(cat *catalog.Catalog, plan *planner.Plan, varName string, isRel bool) (int32, bool) {
	if plan == nil {
		return 0, false
	}
	switch plan.Kind {
	case planner.KindScanNodeID:
		if !isRel && plan.NodeVar == varName && len(plan.LabelIDs) > 0 {
			return plan.LabelIDs[0], true
		}
	case planner.KindExtend:
		if isRel && plan.RelVar == varName && len(plan.RelLabelIDs) > 0 {
			return plan.RelLabelIDs[0], true
		}
		if !isRel && plan.ToVar == varName && len(plan.RelLabelIDs) > 0 {
			rel, ok := cat.RelTableByID(plan.RelLabelIDs[0])
			if !ok {
				break
			}
			if plan.Direction == catalog.Fwd {
				return rel.DstLabel, true
			}
			return rel.SrcLabel, true
		}
	}
	for _, c := range plan.Children {
		if id, ok := resolveVarLabel(cat, c, varName, isRel); ok {
			return id, ok
		}
	}
	return 0, false
}

// propertyOf looks up property by name against the node or rel table named
// by labelID.
func propertyOf(cat *catalog.Catalog, labelID int32, isRel bool, property string) (catalog.Property, error) {
	var tableName string
	if isRel {
		rel, ok := cat.RelTableByID(labelID)
		if !ok {
			return catalog.Property{}, cyqerr.Newf(cyqerr.KindRuntime, "unknown rel label %d", labelID)
		}
		tableName = rel.Name
	} else {
		node, ok := cat.NodeTableByID(labelID)
		if !ok {
			return catalog.Property{}, cyqerr.Newf(cyqerr.KindRuntime, "unknown node label %d", labelID)
		}
		tableName = node.Name
	}
	prop, ok := cat.GetProperty(tableName, property)
	if !ok {
		return catalog.Property{}, cyqerr.Newf(cyqerr.KindRuntime, "table %s has no property %q", tableName, property)
	}
	return prop, nil
}

// buildDDL dispatches a KindDDL plan node to the matching DDLOperator
// factory based on which BoundDDL field is populated.
func buildDDL(cat *catalog.Catalog, ddl *binder.BoundDDL) (Operator, error) {
	switch {
	case ddl.CreateTable != nil:
		return NewCreateTable(cat, ddl.CreateTable), nil
	case ddl.Drop != nil:
		return NewDrop(cat, ddl.Drop), nil
	case ddl.AlterTable != nil:
		return NewAlterTable(cat, ddl.AlterTable), nil
	case ddl.CommentOn != nil:
		return NewCommentOn(cat, ddl.CommentOn), nil
	case ddl.Install != nil:
		return NewInstallExtension(cat, ddl.Install), nil
	case ddl.Uninstall != nil:
		return NewUninstallExtension(cat, ddl.Uninstall), nil
	default:
		return nil, cyqerr.Newf(cyqerr.KindRuntime, "empty DDL statement")
	}
}

// buildCopy builds the COPY FROM pipeline: a CopyScan reading the source
// CSV typed against the destination table's declared columns, feeding a
// CopyNode or RelBatchInsert per isRel.
func buildCopy(env Env, ddl *binder.BoundDDL, isRel bool) (Operator, error) {
	cf := ddl.CopyFrom
	if cf == nil {
		return nil, cyqerr.Newf(cyqerr.KindRuntime, "COPY FROM plan node missing its bound statement")
	}
	opts := copyCastOptions(cf.Options)
	if isRel {
		rel, ok := env.Cat.RelTable(cf.Table)
		if !ok {
			return nil, cyqerr.Newf(cyqerr.KindRuntime, "unknown rel table %q", cf.Table)
		}
		// The first two CSV fields are the endpoint tables' primary-key
		// values; the loader resolves them to internal offsets against the
		// endpoint primary-key indexes. SERIAL endpoints carry offsets
		// directly.
		fromType, toType := types.InternalID(), types.InternalID()
		if src, ok := env.Cat.NodeTableByID(rel.SrcLabel); ok {
			if pk := src.PrimaryKey(); pk.Type.Kind != types.SERIAL {
				fromType = pk.Type
			}
		}
		if dst, ok := env.Cat.NodeTableByID(rel.DstLabel); ok {
			if pk := dst.PrimaryKey(); pk.Type.Kind != types.SERIAL {
				toType = pk.Type
			}
		}
		cols := append([]catalog.Property{
			{Name: "from", Type: fromType},
			{Name: "to", Type: toType},
		}, rel.Properties...)
		scan := NewCopyScan(env.CSV, cf.Path, cf.Headers, cols, opts)
		return NewRelBatchInsert(scan, env.Loader, rel.LabelID, catalog.Fwd), nil
	}
	node, ok := env.Cat.NodeTable(cf.Table)
	if !ok {
		return nil, cyqerr.Newf(cyqerr.KindRuntime, "unknown node table %q", cf.Table)
	}
	scan := NewCopyScan(env.CSV, cf.Path, cf.Headers, node.Properties, opts)
	return NewCopyNode(scan, env.Loader, node.LabelID), nil
}

// copyCastOptions maps a COPY statement's validated option list onto the
// cast layer's dialect options.
func copyCastOptions(bound map[string]string) cast.Options {
	return cast.FromCopyOptions(bound)
}
