package catalog

import (
	"encoding/json"

	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// The catalog file is JSON: schemas are small, mutated only by DDL, and
// read once at open, so a readable encoding beats a binary one.

type persistedType struct {
	Kind      types.Kind       `json:"kind"`
	Precision uint8            `json:"precision,omitempty"`
	Scale     uint8            `json:"scale,omitempty"`
	TsRes     uint8            `json:"tsRes,omitempty"`
	Length    uint32           `json:"length,omitempty"`
	Elem      *persistedType   `json:"elem,omitempty"`
	Key       *persistedType   `json:"key,omitempty"`
	Value     *persistedType   `json:"value,omitempty"`
	Fields    []persistedField `json:"fields,omitempty"`
	Table     string           `json:"table,omitempty"`
}

type persistedField struct {
	Name string        `json:"name"`
	Type persistedType `json:"type"`
}

type persistedProperty struct {
	Name      string        `json:"name"`
	Type      persistedType `json:"type"`
	Ordinal   int           `json:"ordinal"`
	IsPrimary bool          `json:"isPrimary,omitempty"`
}

type persistedNodeTable struct {
	Name       string              `json:"name"`
	LabelID    int32               `json:"labelId"`
	Comment    string              `json:"comment,omitempty"`
	Properties []persistedProperty `json:"properties"`
}

type persistedRelTable struct {
	Name       string              `json:"name"`
	LabelID    int32               `json:"labelId"`
	SrcLabel   int32               `json:"srcLabel"`
	DstLabel   int32               `json:"dstLabel"`
	Multi      uint8               `json:"multiplicity"`
	Comment    string              `json:"comment,omitempty"`
	Properties []persistedProperty `json:"properties"`
}

type persistedCatalog struct {
	NodeTables    []persistedNodeTable `json:"nodeTables"`
	RelTables     []persistedRelTable  `json:"relTables"`
	Sequences     map[string]int64     `json:"sequences,omitempty"`
	Extensions    []string             `json:"extensions,omitempty"`
	NextNodeLabel int32                `json:"nextNodeLabel"`
	NextRelLabel  int32                `json:"nextRelLabel"`
}

func typeToPersisted(t types.LogicalType) persistedType {
	p := persistedType{
		Kind:      t.Kind,
		Precision: t.Precision,
		Scale:     t.Scale,
		TsRes:     uint8(t.TsRes),
		Length:    t.Length,
		Table:     t.Table,
	}
	if t.Elem != nil {
		e := typeToPersisted(*t.Elem)
		p.Elem = &e
	}
	if t.Key != nil {
		k := typeToPersisted(*t.Key)
		p.Key = &k
	}
	if t.Value != nil {
		v := typeToPersisted(*t.Value)
		p.Value = &v
	}
	for _, f := range t.Fields {
		p.Fields = append(p.Fields, persistedField{Name: f.Name, Type: typeToPersisted(f.Type)})
	}
	return p
}

func typeFromPersisted(p persistedType) types.LogicalType {
	t := types.LogicalType{
		Kind:      p.Kind,
		Precision: p.Precision,
		Scale:     p.Scale,
		TsRes:     types.TimestampResolution(p.TsRes),
		Length:    p.Length,
		Table:     p.Table,
	}
	if p.Elem != nil {
		e := typeFromPersisted(*p.Elem)
		t.Elem = &e
	}
	if p.Key != nil {
		k := typeFromPersisted(*p.Key)
		t.Key = &k
	}
	if p.Value != nil {
		v := typeFromPersisted(*p.Value)
		t.Value = &v
	}
	for _, f := range p.Fields {
		t.Fields = append(t.Fields, types.StructField{Name: f.Name, Type: typeFromPersisted(f.Type)})
	}
	return t
}

func propsToPersisted(props []Property) []persistedProperty {
	out := make([]persistedProperty, len(props))
	for i, p := range props {
		out[i] = persistedProperty{Name: p.Name, Type: typeToPersisted(p.Type), Ordinal: p.Ordinal, IsPrimary: p.IsPrimary}
	}
	return out
}

func propsFromPersisted(props []persistedProperty) []Property {
	out := make([]Property, len(props))
	for i, p := range props {
		out[i] = Property{Name: p.Name, Type: typeFromPersisted(p.Type), Ordinal: p.Ordinal, IsPrimary: p.IsPrimary}
	}
	return out
}

// Serialize encodes the whole catalog for the database's catalog file.
func (c *Catalog) Serialize() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p := persistedCatalog{
		Sequences:     c.sequences,
		NextNodeLabel: c.nextNodeLabel,
		NextRelLabel:  c.nextRelLabel,
	}
	for _, t := range c.nodeTables {
		p.NodeTables = append(p.NodeTables, persistedNodeTable{
			Name: t.Name, LabelID: t.LabelID, Comment: t.Comment,
			Properties: propsToPersisted(t.Properties),
		})
	}
	for _, t := range c.relTables {
		p.RelTables = append(p.RelTables, persistedRelTable{
			Name: t.Name, LabelID: t.LabelID, SrcLabel: t.SrcLabel, DstLabel: t.DstLabel,
			Multi: uint8(t.Multi), Comment: t.Comment,
			Properties: propsToPersisted(t.Properties),
		})
	}
	for name := range c.extensions {
		p.Extensions = append(p.Extensions, name)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, cyqerr.Wrap(err, cyqerr.KindInternal, "serializing catalog")
	}
	return data, nil
}

// Deserialize restores a catalog written by Serialize.
func Deserialize(data []byte) (*Catalog, error) {
	var p persistedCatalog
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, cyqerr.Wrap(err, cyqerr.KindIO, "reading catalog file")
	}
	c := New()
	for _, t := range p.NodeTables {
		schema := &NodeTableSchema{
			Name: t.Name, LabelID: t.LabelID, Comment: t.Comment,
			Properties: propsFromPersisted(t.Properties),
		}
		for i, prop := range schema.Properties {
			if prop.IsPrimary {
				schema.primaryOrdinal = i
			}
		}
		c.nodeTables[t.Name] = schema
		c.nodeByID[t.LabelID] = schema
	}
	for _, t := range p.RelTables {
		schema := &RelTableSchema{
			Name: t.Name, LabelID: t.LabelID, SrcLabel: t.SrcLabel, DstLabel: t.DstLabel,
			Multi: Multiplicity(t.Multi), Comment: t.Comment,
			Properties: propsFromPersisted(t.Properties),
		}
		c.relTables[t.Name] = schema
		c.relByID[t.LabelID] = schema
	}
	for k, v := range p.Sequences {
		c.sequences[k] = v
	}
	for _, e := range p.Extensions {
		c.extensions[e] = true
	}
	c.nextNodeLabel = p.NextNodeLabel
	c.nextRelLabel = p.NextRelLabel
	return c, nil
}
