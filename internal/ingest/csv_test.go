package ingest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismview/prism/internal/dataset"
)

func newTestLoader() *Loader {
	return NewLoader(nil, zerolog.Nop())
}

func TestLoad_TypeInference(t *testing.T) {
	csv := strings.Join([]string{
		"id,price,active,created,label",
		"1,9.99,true,2024-01-01T10:00:00Z,alpha",
		"2,12.50,false,2024-01-02T10:00:00Z,beta",
		"3,0.25,true,2024-01-03T10:00:00Z,gamma",
	}, "\n")

	ds, err := newTestLoader().Load("orders", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, "orders", ds.Name())
	assert.Equal(t, 3, ds.Rows())

	expect := map[string]dataset.ColumnType{
		"id":      dataset.TypeInteger,
		"price":   dataset.TypeFloat,
		"active":  dataset.TypeBoolean,
		"created": dataset.TypeDatetime,
		"label":   dataset.TypeString,
	}
	for name, wantType := range expect {
		col, ok := ds.Column(name)
		require.True(t, ok, "missing column %s", name)
		assert.Equal(t, wantType, col.Field.Type, "column %s", name)
	}

	created, _ := ds.Column("created")
	ts, ok := created.Time(0)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), ts)
}

func TestLoad_IntegerDemotesToFloat(t *testing.T) {
	csv := "v\n1\n2\n3.5\n"
	ds, err := newTestLoader().Load("d", strings.NewReader(csv))
	require.NoError(t, err)

	col, _ := ds.Column("v")
	assert.Equal(t, dataset.TypeFloat, col.Field.Type)
	v, _ := col.Float(0)
	assert.Equal(t, 1.0, v)
}

func TestLoad_MixedBecomesString(t *testing.T) {
	csv := "v\n1\ntwo\n3\n"
	ds, err := newTestLoader().Load("d", strings.NewReader(csv))
	require.NoError(t, err)

	col, _ := ds.Column("v")
	assert.Equal(t, dataset.TypeString, col.Field.Type)
	assert.Equal(t, "1", col.Label(0))
}

func TestLoad_NullTokens(t *testing.T) {
	// A bare empty line is not a CSV record, so the empty cell is quoted.
	csv := "v\n1\n\"\"\nnull\nNA\n4\n"
	ds, err := newTestLoader().Load("d", strings.NewReader(csv))
	require.NoError(t, err)

	col, _ := ds.Column("v")
	assert.Equal(t, dataset.TypeInteger, col.Field.Type)
	assert.False(t, col.IsNull(0))
	assert.True(t, col.IsNull(1))
	assert.True(t, col.IsNull(2))
	assert.True(t, col.IsNull(3))
	assert.False(t, col.IsNull(4))
}

func TestLoad_AllNullColumnStaysString(t *testing.T) {
	csv := "a,b\n1,\n2,null\n"
	ds, err := newTestLoader().Load("d", strings.NewReader(csv))
	require.NoError(t, err)

	col, _ := ds.Column("b")
	assert.Equal(t, dataset.TypeString, col.Field.Type)
	assert.True(t, col.IsNull(0))
}

func TestLoad_RaggedRowsPadWithNulls(t *testing.T) {
	loader := NewLoader(&Options{
		Delimiter:  ',',
		NullTokens: []string{""},
	}, zerolog.Nop())

	// Trailing missing cells read as null.
	csv := "a,b\n1,x\n2\n"
	ds, err := loader.Load("d", strings.NewReader(csv))
	require.NoError(t, err)

	col, _ := ds.Column("b")
	assert.False(t, col.IsNull(0))
	assert.True(t, col.IsNull(1))
}

func TestLoad_EmptyHeaderNamesGenerated(t *testing.T) {
	csv := "a,,c\n1,2,3\n"
	ds, err := newTestLoader().Load("d", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "column_2", "c"}, ds.Schema().Names())
}

func TestLoad_EmptyInput(t *testing.T) {
	_, err := newTestLoader().Load("d", strings.NewReader(""))
	assert.Error(t, err)
}

func TestLoad_MaxRows(t *testing.T) {
	loader := NewLoader(&Options{MaxRows: 2}, zerolog.Nop())
	csv := "v\n1\n2\n3\n"
	_, err := loader.Load("d", strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row limit")
}

func TestLoadFile_Gzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metrics.csv.gz")

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("v\n10\n20\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	ds, err := newTestLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "metrics", ds.Name())
	assert.Equal(t, 2, ds.Rows())
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := newTestLoader().LoadFile("/nonexistent/file.csv")
	assert.Error(t, err)
}
