package exec

import (
	"fmt"

	"github.com/dreamware/cyq/internal/binder"
	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/types"
)

// DDLOperator runs one idempotent one-shot statement (CREATE/DROP/ALTER:
// "idempotent one-shot operators that execute against the catalog and
// append a single string result row") and yields exactly one row with a
// single "message" column describing what happened, the way a DDL command
// in an interactive shell reports itself.
type DDLOperator struct {
	run  func() (string, error)
	done bool
}

func (d *DDLOperator) Schema() []string { return []string{"message"} }

func (d *DDLOperator) Next(ctx *ExecContext, out *DataChunk) (bool, error) {
	if d.done {
		return false, nil
	}
	d.done = true
	msg, err := d.run()
	if err != nil {
		return false, err
	}
	fresh := NewDataChunk([]string{"message"}, []types.LogicalType{types.Str()}, 1)
	fresh.Vectors[0].AppendBytes(0, []byte(msg))
	fresh.Selection = types.NewSequentialSelection(1)
	fresh.Count = 1
	*out = *fresh
	return true, nil
}

// NewCreateTable builds the CREATE_NODE_TABLE / CREATE_REL_TABLE operator.
func NewCreateTable(cat *catalog.Catalog, ddl *binder.BoundCreateTable) *DDLOperator {
	return &DDLOperator{run: func() (string, error) {
		var err error
		if ddl.IsRelTable {
			err = cat.CreateRelTable(ddl.Name, ddl.FromLabel, ddl.ToLabel, ddl.Multi, ddl.Properties, ddl.OnConflict)
		} else {
			err = cat.CreateNodeTable(ddl.Name, ddl.Properties, ddl.OnConflict)
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Table %s has been created.", ddl.Name), nil
	}}
}

// NewDrop builds the DROP TABLE / DROP SEQUENCE operator.
func NewDrop(cat *catalog.Catalog, ddl *binder.BoundDrop) *DDLOperator {
	return &DDLOperator{run: func() (string, error) {
		if err := cat.DropTable(ddl.Name, ddl.OnConflict); err != nil {
			if err := cat.DropSequence(ddl.Name, ddl.OnConflict); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("%s has been dropped.", ddl.Name), nil
	}}
}

// NewAlterTable builds the ALTER TABLE ADD/DROP/RENAME COLUMN operator.
func NewAlterTable(cat *catalog.Catalog, ddl *binder.BoundAlterTable) *DDLOperator {
	return &DDLOperator{run: func() (string, error) {
		switch {
		case ddl.Add != nil:
			if err := cat.AddColumn(ddl.Table, *ddl.Add); err != nil {
				return "", err
			}
			return fmt.Sprintf("Column %s has been added to table %s.", ddl.Add.Name, ddl.Table), nil
		case ddl.Drop != "":
			if err := cat.DropColumn(ddl.Table, ddl.Drop); err != nil {
				return "", err
			}
			return fmt.Sprintf("Column %s has been dropped from table %s.", ddl.Drop, ddl.Table), nil
		case ddl.Rename != nil:
			if err := cat.RenameColumn(ddl.Table, ddl.Rename.From, ddl.Rename.To); err != nil {
				return "", err
			}
			return fmt.Sprintf("Column %s has been renamed to %s.", ddl.Rename.From, ddl.Rename.To), nil
		default:
			return fmt.Sprintf("Table %s has been altered.", ddl.Table), nil
		}
	}}
}

// NewCommentOn builds the COMMENT ON TABLE operator.
func NewCommentOn(cat *catalog.Catalog, ddl *binder.BoundCommentOn) *DDLOperator {
	return &DDLOperator{run: func() (string, error) {
		if err := cat.CommentOnTable(ddl.Table, ddl.Comment); err != nil {
			return "", err
		}
		return fmt.Sprintf("Comment has been added to table %s.", ddl.Table), nil
	}}
}

// NewInstallExtension builds the INSTALL operator.
func NewInstallExtension(cat *catalog.Catalog, ddl *binder.BoundInstallExtension) *DDLOperator {
	return &DDLOperator{run: func() (string, error) {
		if err := cat.InstallExtension(ddl.Name); err != nil {
			return "", err
		}
		return fmt.Sprintf("Extension: %s has been installed.", ddl.Name), nil
	}}
}

// NewUninstallExtension builds the UNINSTALL operator.
func NewUninstallExtension(cat *catalog.Catalog, ddl *binder.BoundInstallExtension) *DDLOperator {
	return &DDLOperator{run: func() (string, error) {
		if err := cat.UninstallExtension(ddl.Name); err != nil {
			return "", err
		}
		return fmt.Sprintf("Extension: %s has been uninstalled.", ddl.Name), nil
	}}
}
