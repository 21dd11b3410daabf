package binder

import (
	"strconv"
	"strings"

	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/parser/ast"
	"github.com/dreamware/cyq/internal/types"
)

// BoundDDL is a bound non-query statement. Exactly one field is set,
// mirroring the ast.Statement DDL/COPY variants.
type BoundDDL struct {
	CreateTable *BoundCreateTable
	Drop        *BoundDrop
	AlterTable  *BoundAlterTable
	CommentOn   *BoundCommentOn
	CopyFrom    *BoundCopyFrom
	Install     *BoundInstallExtension
	Uninstall   *BoundInstallExtension
}

type BoundCreateTable struct {
	IsRelTable bool
	Name       string
	Properties []catalog.Property
	FromLabel  int32
	ToLabel    int32
	Multi      catalog.Multiplicity
	OnConflict catalog.ConflictAction
}

type BoundDrop struct {
	Name       string
	OnConflict catalog.ConflictAction
}

type BoundAlterTable struct {
	Table  string
	Add    *catalog.Property
	Drop   string
	Rename *ast.RenameColumn
}

type BoundCommentOn struct {
	Table   string
	Comment string
}

type BoundCopyFrom struct {
	Table   string
	Path    string
	Headers bool
	// Options carries the validated option list with upper-cased keys.
	Options map[string]string
}

// copyOptionKeys is the closed set of COPY FROM options.
var copyOptionKeys = map[string]bool{
	"HEADER": true, "PARALLEL": true, "DELIM": true,
	"ESCAPE": true, "QUOTE": true, "IGNORE_ERRORS": true,
}

type BoundInstallExtension struct {
	Name string
}

func (b *Binder) bindDDL(stmt ast.Statement) (*BoundDDL, error) {
	switch v := stmt.(type) {
	case *ast.CreateTableStmt:
		return b.bindCreateTable(v)
	case *ast.DropStmt:
		drop := &BoundDrop{Name: v.Name}
		if v.IfExists {
			drop.OnConflict = catalog.OnConflictDoNothing
		}
		return &BoundDDL{Drop: drop}, nil
	case *ast.AlterTableStmt:
		return b.bindAlterTable(v)
	case *ast.CommentOnStmt:
		return &BoundDDL{CommentOn: &BoundCommentOn{Table: v.Table, Comment: v.Comment}}, nil
	case *ast.CopyFromStmt:
		if !b.cat.ContainsNodeLabel(v.Table) && !b.cat.ContainsRelLabel(v.Table) {
			return nil, cyqerr.Newf(cyqerr.KindBinder, "COPY FROM: unknown table %q", v.Table)
		}
		bound := &BoundCopyFrom{Table: v.Table, Path: v.Path, Headers: v.Headers}
		if len(v.Options) > 0 {
			bound.Options = make(map[string]string, len(v.Options))
			for k, val := range v.Options {
				key := strings.ToUpper(k)
				if !copyOptionKeys[key] {
					return nil, cyqerr.Newf(cyqerr.KindBinder, "COPY FROM: unknown option %q", k)
				}
				bound.Options[key] = val
				if key == "HEADER" && strings.EqualFold(val, "true") {
					bound.Headers = true
				}
			}
		}
		return &BoundDDL{CopyFrom: bound}, nil
	case *ast.InstallExtensionStmt:
		return &BoundDDL{Install: &BoundInstallExtension{Name: v.Name}}, nil
	case *ast.UninstallExtensionStmt:
		return &BoundDDL{Uninstall: &BoundInstallExtension{Name: v.Name}}, nil
	default:
		return nil, cyqerr.Newf(cyqerr.KindInternal, "unhandled statement type %T", stmt)
	}
}

func (b *Binder) bindCreateTable(c *ast.CreateTableStmt) (*BoundDDL, error) {
	props, err := b.bindColumnDefs(c.Columns)
	if err != nil {
		return nil, err
	}
	out := &BoundCreateTable{IsRelTable: c.IsRelTable, Name: c.Name, Properties: props}
	if c.IfNotExists {
		out.OnConflict = catalog.OnConflictDoNothing
	}
	if c.IsRelTable {
		from, ok := b.cat.NodeLabelID(c.FromLabel)
		if !ok {
			return nil, cyqerr.Newf(cyqerr.KindBinder, "CREATE REL TABLE: unknown FROM table %q", c.FromLabel)
		}
		to, ok := b.cat.NodeLabelID(c.ToLabel)
		if !ok {
			return nil, cyqerr.Newf(cyqerr.KindBinder, "CREATE REL TABLE: unknown TO table %q", c.ToLabel)
		}
		out.FromLabel, out.ToLabel = from, to
		out.Multi = catalog.ManyToMany
	}
	return &BoundDDL{CreateTable: out}, nil
}

func (b *Binder) bindAlterTable(a *ast.AlterTableStmt) (*BoundDDL, error) {
	out := &BoundAlterTable{Table: a.Table, Drop: a.Drop, Rename: a.Rename}
	if a.Add != nil {
		t, err := parseTypeName(a.Add.TypeName)
		if err != nil {
			return nil, err
		}
		out.Add = &catalog.Property{Name: a.Add.Name, Type: t, IsPrimary: a.Add.IsPrimary}
	}
	return &BoundDDL{AlterTable: out}, nil
}

func (b *Binder) bindColumnDefs(cols []ast.ColumnDef) ([]catalog.Property, error) {
	out := make([]catalog.Property, len(cols))
	for i, c := range cols {
		t, err := parseTypeName(c.TypeName)
		if err != nil {
			return nil, err
		}
		out[i] = catalog.Property{Name: c.Name, Type: t, IsPrimary: c.IsPrimary}
	}
	return out, nil
}

// parseTypeName resolves a CREATE/ALTER TABLE column type name, per the
// logical type grammar: scalar names match
// directly, DECIMAL/ARRAY/LIST take a parenthesized argument list (the
// source text the parser preserved verbatim in ColumnDef.TypeName).
func parseTypeName(name string) (types.LogicalType, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	base, args := upper, ""
	if i := strings.IndexByte(upper, '('); i >= 0 && strings.HasSuffix(upper, ")") {
		base, args = upper[:i], upper[i+1:len(upper)-1]
	}

	switch base {
	case "BOOL", "BOOLEAN":
		return types.Bool(), nil
	case "INT8":
		return types.Int8(), nil
	case "INT16":
		return types.Int16(), nil
	case "INT32", "INT":
		return types.Int32(), nil
	case "INT64":
		return types.Int64(), nil
	case "INT128":
		return types.Int128(), nil
	case "UINT8":
		return types.UInt8(), nil
	case "UINT16":
		return types.UInt16(), nil
	case "UINT32":
		return types.UInt32(), nil
	case "UINT64":
		return types.UInt64(), nil
	case "FLOAT":
		return types.Float(), nil
	case "DOUBLE":
		return types.Double(), nil
	case "DATE":
		return types.Date(), nil
	case "INTERVAL":
		return types.Interval(), nil
	case "STRING":
		return types.Str(), nil
	case "BLOB":
		return types.Blob(), nil
	case "UUID":
		return types.UUIDType(), nil
	case "SERIAL":
		return types.Serial(), nil
	case "INTERNAL_ID":
		return types.InternalID(), nil
	case "TIMESTAMP":
		return types.Timestamp(types.TimestampSec), nil
	case "TIMESTAMP_MS":
		return types.Timestamp(types.TimestampMs), nil
	case "TIMESTAMP_NS":
		return types.Timestamp(types.TimestampNs), nil
	case "TIMESTAMP_TZ":
		return types.Timestamp(types.TimestampTz), nil
	case "DECIMAL":
		p, s, err := parseDecimalArgs(args)
		if err != nil {
			return types.LogicalType{}, err
		}
		return types.Decimal(p, s), nil
	default:
		return types.LogicalType{}, cyqerr.Newf(cyqerr.KindBinder, "unknown column type %q", name)
	}
}

func parseDecimalArgs(args string) (uint8, uint8, error) {
	parts := strings.Split(args, ",")
	if len(parts) != 2 {
		return 0, 0, cyqerr.Newf(cyqerr.KindBinder, "DECIMAL requires (precision,scale), got %q", args)
	}
	p, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, cyqerr.Newf(cyqerr.KindBinder, "invalid DECIMAL precision %q", parts[0])
	}
	s, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, cyqerr.Newf(cyqerr.KindBinder, "invalid DECIMAL scale %q", parts[1])
	}
	return uint8(p), uint8(s), nil
}
