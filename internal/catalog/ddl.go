package catalog

import (
	"github.com/dreamware/cyq/internal/cyqerr"
)

// CreateNodeTable registers a new node table
// Exactly one property must be marked primary; property ordinals are
// assigned in the order given and are stable thereafter (the append-only
// invariant).
func (c *Catalog) CreateNodeTable(name string, props []Property, onConflict ConflictAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.nodeTables[name]; exists {
		if onConflict == OnConflictDoNothing {
			return nil
		}
		return tableExistsErr(name)
	}
	if _, exists := c.relTables[name]; exists {
		return tableExistsErr(name)
	}

	primaryOrdinal, err := requireSinglePrimaryKey(props)
	if err != nil {
		return err
	}

	labelID := c.nextNodeLabel
	c.nextNodeLabel++
	schema := &NodeTableSchema{
		Name:           name,
		LabelID:        labelID,
		Properties:     assignOrdinals(props),
		primaryOrdinal: primaryOrdinal,
	}
	c.nodeTables[name] = schema
	c.nodeByID[labelID] = schema
	return nil
}

// CreateRelTable registers a new relationship table with its endpoint node
// labels and multiplicity.
func (c *Catalog) CreateRelTable(name string, srcLabel, dstLabel int32, multi Multiplicity, props []Property, onConflict ConflictAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.relTables[name]; exists {
		if onConflict == OnConflictDoNothing {
			return nil
		}
		return tableExistsErr(name)
	}
	if _, exists := c.nodeTables[name]; exists {
		return tableExistsErr(name)
	}
	if _, ok := c.nodeByID[srcLabel]; !ok {
		return cyqerr.Newf(cyqerr.KindBinder, "unknown source node label %d for rel table %q", srcLabel, name)
	}
	if _, ok := c.nodeByID[dstLabel]; !ok {
		return cyqerr.Newf(cyqerr.KindBinder, "unknown destination node label %d for rel table %q", dstLabel, name)
	}

	labelID := c.nextRelLabel
	c.nextRelLabel++
	schema := &RelTableSchema{
		Name:       name,
		LabelID:    labelID,
		SrcLabel:   srcLabel,
		DstLabel:   dstLabel,
		Multi:      multi,
		Properties: assignOrdinals(props),
	}
	c.relTables[name] = schema
	c.relByID[labelID] = schema
	return nil
}

// DropTable removes a node or rel table
func (c *Catalog) DropTable(name string, onConflict ConflictAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.nodeTables[name]; ok {
		delete(c.nodeTables, name)
		delete(c.nodeByID, t.LabelID)
		return nil
	}
	if t, ok := c.relTables[name]; ok {
		delete(c.relTables, name)
		delete(c.relByID, t.LabelID)
		return nil
	}
	if onConflict == OnConflictDoNothing {
		return nil
	}
	return tableMissingErr(name)
}

// CreateSequence registers a named monotonic counter starting at 0, used
// by SERIAL columns.
func (c *Catalog) CreateSequence(name string, onConflict ConflictAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.sequences[name]; exists {
		if onConflict == OnConflictDoNothing {
			return nil
		}
		return cyqerr.Newf(cyqerr.KindBinder, "sequence %q already exists", name)
	}
	c.sequences[name] = 0
	return nil
}

// DropSequence removes a named sequence.
func (c *Catalog) DropSequence(name string, onConflict ConflictAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.sequences[name]; !exists {
		if onConflict == OnConflictDoNothing {
			return nil
		}
		return cyqerr.Newf(cyqerr.KindBinder, "sequence %q does not exist", name)
	}
	delete(c.sequences, name)
	return nil
}

// NextSequenceValue increments and returns the next value of the named
// sequence.
func (c *Catalog) NextSequenceValue(name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.sequences[name]
	if !ok {
		return 0, cyqerr.Newf(cyqerr.KindBinder, "sequence %q does not exist", name)
	}
	c.sequences[name] = v + 1
	return v, nil
}

// AddColumn appends a property to an existing node or rel table. Ordinals
// are never reused's append-only invariant —
// of the schema surface: ALTER TABLE ADD
// COLUMN.
func (c *Catalog) AddColumn(table string, prop Property) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.nodeTables[table]; ok {
		prop.Ordinal = len(t.Properties)
		t.Properties = append(t.Properties, prop)
		return nil
	}
	if t, ok := c.relTables[table]; ok {
		prop.Ordinal = len(t.Properties)
		t.Properties = append(t.Properties, prop)
		return nil
	}
	return tableMissingErr(table)
}

// DropColumn removes a property from a table. Supplemented from
// the schema invariants: dropping the primary key column is rejected.
func (c *Catalog) DropColumn(table, column string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	props, setter, ok := c.lookupProperties(table)
	if !ok {
		return tableMissingErr(table)
	}
	idx := -1
	for i, p := range *props {
		if p.Name == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return cyqerr.Newf(cyqerr.KindBinder, "column %q does not exist on table %q", column, table)
	}
	if (*props)[idx].IsPrimary {
		return cyqerr.Newf(cyqerr.KindBinder, "cannot drop primary key column %q on table %q", column, table)
	}
	setter(append(append([]Property{}, (*props)[:idx]...), (*props)[idx+1:]...))
	return nil
}

// RenameColumn renames a property, preserving its ordinal and primary-key
// status.
func (c *Catalog) RenameColumn(table, oldName, newName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	props, setter, ok := c.lookupProperties(table)
	if !ok {
		return tableMissingErr(table)
	}
	updated := append([]Property{}, *props...)
	found := false
	for i, p := range updated {
		if p.Name == oldName {
			updated[i].Name = newName
			found = true
			break
		}
	}
	if !found {
		return cyqerr.Newf(cyqerr.KindBinder, "column %q does not exist on table %q", oldName, table)
	}
	setter(updated)
	return nil
}

// lookupProperties returns a pointer-like view (read slice + setter) over
// a node or rel table's property list, so Add/Drop/RenameColumn share one
// lookup across both table kinds.
func (c *Catalog) lookupProperties(table string) (*[]Property, func([]Property), bool) {
	if t, ok := c.nodeTables[table]; ok {
		return &t.Properties, func(p []Property) { t.Properties = p }, true
	}
	if t, ok := c.relTables[table]; ok {
		return &t.Properties, func(p []Property) { t.Properties = p }, true
	}
	return nil, nil, false
}

// CommentOnTable sets a table's comment, surfaced by SHOW_TABLES
// (backing the COMMENT ON TABLE statement
// variant, which names the statement but not its semantics).
func (c *Catalog) CommentOnTable(table, comment string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.nodeTables[table]; ok {
		t.Comment = comment
		return nil
	}
	if t, ok := c.relTables[table]; ok {
		t.Comment = comment
		return nil
	}
	return tableMissingErr(table)
}

// InstallExtension marks name as installed, idempotently.
func (c *Catalog) InstallExtension(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.extensions[name] = true
	return nil
}

// UninstallExtension removes name from the installed set. Uninstalling an
// extension that was never installed is not an error.
func (c *Catalog) UninstallExtension(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.extensions, name)
	return nil
}

// ExtensionInstalled reports whether name is currently installed.
func (c *Catalog) ExtensionInstalled(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.extensions[name]
}

func requireSinglePrimaryKey(props []Property) (int, error) {
	idx := -1
	for i, p := range props {
		if p.IsPrimary {
			if idx >= 0 {
				return 0, cyqerr.New(cyqerr.KindBinder, "a table may have only one primary key property")
			}
			idx = i
		}
	}
	if idx < 0 {
		return 0, cyqerr.New(cyqerr.KindBinder, "a table must declare exactly one primary key property")
	}
	return idx, nil
}

func assignOrdinals(props []Property) []Property {
	out := make([]Property, len(props))
	for i, p := range props {
		p.Ordinal = i
		out[i] = p
	}
	return out
}
