package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnBuilder_Types(t *testing.T) {
	b := NewColumnBuilder("score", TypeFloat)
	b.AppendFloat(1.5)
	b.AppendNull()
	b.AppendFloat(-2.25)
	col := b.Build()

	require.Equal(t, 3, col.Len())
	assert.False(t, col.IsNull(0))
	assert.True(t, col.IsNull(1))

	v, ok := col.Float(0)
	require.True(t, ok)
	assert.Equal(t, 1.5, v)

	_, ok = col.Float(1)
	assert.False(t, ok)

	assert.True(t, col.Field.Nullable)
}

func TestColumnBuilder_NoNulls(t *testing.T) {
	b := NewColumnBuilder("id", TypeInteger)
	b.AppendInt(1)
	b.AppendInt(2)
	col := b.Build()

	assert.False(t, col.Field.Nullable)
	assert.False(t, col.IsNull(0))
}

func TestColumn_FloatWidening(t *testing.T) {
	ib := NewColumnBuilder("count", TypeInteger)
	ib.AppendInt(42)
	intCol := ib.Build()

	v, ok := intCol.Float(0)
	require.True(t, ok)
	assert.Equal(t, 42.0, v)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tb := NewColumnBuilder("created", TypeDatetime)
	tb.AppendTime(ts)
	timeCol := tb.Build()

	v, ok = timeCol.Float(0)
	require.True(t, ok)
	assert.Equal(t, float64(ts.UnixNano()), v)
}

func TestColumn_Compare_NullsLast(t *testing.T) {
	b := NewColumnBuilder("v", TypeInteger)
	b.AppendInt(5)
	b.AppendNull()
	b.AppendInt(3)
	col := b.Build()

	assert.Greater(t, col.Compare(0, 2), 0)
	assert.Less(t, col.Compare(2, 0), 0)
	// Null sorts after any value.
	assert.Less(t, col.Compare(0, 1), 0)
	assert.Greater(t, col.Compare(1, 0), 0)
	assert.Equal(t, 0, col.Compare(1, 1))
}

func TestColumn_Label(t *testing.T) {
	b := NewColumnBuilder("when", TypeDatetime)
	b.AppendTime(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	col := b.Build()
	assert.Equal(t, "2024-03-01T12:00:00Z", col.Label(0))

	fb := NewColumnBuilder("f", TypeFloat)
	fb.AppendFloat(2.5)
	fb.AppendNull()
	fcol := fb.Build()
	assert.Equal(t, "2.5", fcol.Label(0))
	assert.Equal(t, "", fcol.Label(1))
}

func TestNew_Validation(t *testing.T) {
	a := NewColumnBuilder("a", TypeInteger)
	a.AppendInt(1)
	b := NewColumnBuilder("b", TypeInteger)
	b.AppendInt(1)
	b.AppendInt(2)

	_, err := New("bad", []*Column{a.Build(), b.Build()})
	assert.Error(t, err, "ragged columns must be rejected")

	c1 := NewColumnBuilder("x", TypeInteger)
	c1.AppendInt(1)
	c2 := NewColumnBuilder("x", TypeInteger)
	c2.AppendInt(2)
	_, err = New("dup", []*Column{c1.Build(), c2.Build()})
	assert.Error(t, err, "duplicate column names must be rejected")
}

func TestDataset_Accessors(t *testing.T) {
	b := NewColumnBuilder("region", TypeString)
	b.AppendString("NA")
	b.AppendString("EU")

	ds, err := New("sales", []*Column{b.Build()})
	require.NoError(t, err)

	assert.Equal(t, "sales", ds.Name())
	assert.NotEmpty(t, ds.Version())
	assert.Equal(t, 2, ds.Rows())

	col, ok := ds.Column("region")
	require.True(t, ok)
	assert.Equal(t, "NA", col.Label(0))

	_, ok = ds.Column("missing")
	assert.False(t, ok)

	schema := ds.Schema()
	assert.Equal(t, []string{"region"}, schema.Names())
}

func TestDataset_VersionsDiffer(t *testing.T) {
	mk := func() *Dataset {
		b := NewColumnBuilder("v", TypeInteger)
		b.AppendInt(1)
		ds, err := New("d", []*Column{b.Build()})
		require.NoError(t, err)
		return ds
	}
	assert.NotEqual(t, mk().Version(), mk().Version())
}
