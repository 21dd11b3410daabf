package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/cyq/internal/types"
)

func newPersonProps() []Property {
	return []Property{
		{Name: "id", Type: types.Int64(), IsPrimary: true},
		{Name: "name", Type: types.Str()},
	}
}

func TestCreateNodeTableAssignsOrdinalsAndLabel(t *testing.T) {
	c := New()
	require.NoError(t, c.CreateNodeTable("Person", newPersonProps(), Fail))

	require.True(t, c.ContainsNodeLabel("Person"))
	id, ok := c.NodeLabelID("Person")
	require.True(t, ok)
	require.EqualValues(t, 0, id)

	schema, ok := c.NodeTable("Person")
	require.True(t, ok)
	require.Equal(t, "id", schema.PrimaryKey().Name)
	require.Equal(t, 0, schema.Properties[0].Ordinal)
	require.Equal(t, 1, schema.Properties[1].Ordinal)
}

func TestCreateNodeTableRequiresExactlyOnePrimaryKey(t *testing.T) {
	c := New()
	err := c.CreateNodeTable("Bad", []Property{{Name: "a", Type: types.Int32()}}, Fail)
	require.Error(t, err)

	err = c.CreateNodeTable("Bad2", []Property{
		{Name: "a", Type: types.Int32(), IsPrimary: true},
		{Name: "b", Type: types.Int32(), IsPrimary: true},
	}, Fail)
	require.Error(t, err)
}

func TestCreateTableConflictActions(t *testing.T) {
	c := New()
	require.NoError(t, c.CreateNodeTable("Person", newPersonProps(), Fail))

	err := c.CreateNodeTable("Person", newPersonProps(), Fail)
	require.Error(t, err)

	err = c.CreateNodeTable("Person", newPersonProps(), OnConflictDoNothing)
	require.NoError(t, err)
}

func TestCreateRelTableAdjacency(t *testing.T) {
	c := New()
	require.NoError(t, c.CreateNodeTable("Person", newPersonProps(), Fail))
	personID, _ := c.NodeLabelID("Person")

	require.NoError(t, c.CreateRelTable("Knows", personID, personID, ManyToMany, nil, Fail))
	relID, ok := c.RelLabelID("Knows")
	require.True(t, ok)

	require.True(t, c.AdjacencyExists(relID, personID, personID))
	adjacent := c.RelsAdjacentToNodeLabel(personID, Fwd)
	require.Contains(t, adjacent, relID)

	single, err := c.IsSingleMultiplicity(relID, Fwd)
	require.NoError(t, err)
	require.False(t, single)
}

func TestSingleMultiplicityDirections(t *testing.T) {
	require.True(t, OneToOne.IsSingle(Fwd))
	require.True(t, OneToOne.IsSingle(Bwd))
	require.True(t, OneToMany.IsSingle(Bwd))
	require.False(t, OneToMany.IsSingle(Fwd))
	require.True(t, ManyToOne.IsSingle(Fwd))
	require.False(t, ManyToOne.IsSingle(Bwd))
	require.False(t, ManyToMany.IsSingle(Fwd))
}

func TestAddDropRenameColumn(t *testing.T) {
	c := New()
	require.NoError(t, c.CreateNodeTable("Person", newPersonProps(), Fail))

	require.NoError(t, c.AddColumn("Person", Property{Name: "age", Type: types.Int32()}))
	schema, _ := c.NodeTable("Person")
	require.Len(t, schema.Properties, 3)
	require.Equal(t, 2, schema.Properties[2].Ordinal)

	err := c.DropColumn("Person", "id")
	require.Error(t, err, "dropping the primary key must fail")

	require.NoError(t, c.DropColumn("Person", "age"))
	schema, _ = c.NodeTable("Person")
	require.Len(t, schema.Properties, 2)

	require.NoError(t, c.RenameColumn("Person", "name", "fullName"))
	schema, _ = c.NodeTable("Person")
	_, found := findProperty(schema.Properties, "fullName")
	require.True(t, found)
}

func TestSequences(t *testing.T) {
	c := New()
	require.NoError(t, c.CreateSequence("person_id_seq", Fail))

	v0, err := c.NextSequenceValue("person_id_seq")
	require.NoError(t, err)
	require.EqualValues(t, 0, v0)

	v1, err := c.NextSequenceValue("person_id_seq")
	require.NoError(t, err)
	require.EqualValues(t, 1, v1)

	require.NoError(t, c.DropSequence("person_id_seq", Fail))
	_, err = c.NextSequenceValue("person_id_seq")
	require.Error(t, err)
}

func TestCommentOnTableSurfacedByListTables(t *testing.T) {
	c := New()
	require.NoError(t, c.CreateNodeTable("Person", newPersonProps(), Fail))
	require.NoError(t, c.CommentOnTable("Person", "people in the graph"))

	tables := c.ListTables()
	require.Len(t, tables, 1)
	require.Equal(t, "people in the graph", tables[0].Comment)
	require.Equal(t, "NODE", tables[0].Type)
}

func TestDropTableConflictActions(t *testing.T) {
	c := New()
	require.Error(t, c.DropTable("Missing", Fail))
	require.NoError(t, c.DropTable("Missing", OnConflictDoNothing))
}
