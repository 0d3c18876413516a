package dataset

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ColumnType is the declared type of a column.
type ColumnType string

const (
	TypeInteger  ColumnType = "integer"
	TypeFloat    ColumnType = "float"
	TypeString   ColumnType = "string"
	TypeBoolean  ColumnType = "boolean"
	TypeDatetime ColumnType = "datetime"
)

// Numeric reports whether the type supports arithmetic aggregation.
func (t ColumnType) Numeric() bool {
	return t == TypeInteger || t == TypeFloat
}

// Orderable reports whether values of the type have a total order.
func (t ColumnType) Orderable() bool {
	return t != TypeBoolean
}

// Field describes one column of a schema.
type Field struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable"`
}

// Schema is the ordered field list of a dataset.
type Schema struct {
	Fields []Field `json:"fields"`
}

// Field returns the schema entry for name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Column holds the values of a single field. Exactly one of the typed
// slices is populated, chosen by Field.Type. nulls marks null cells and is
// nil for columns without nulls.
type Column struct {
	Field Field

	ints    []int64
	floats  []float64
	strings []string
	bools   []bool
	times   []time.Time
	nulls   []bool
}

// Len returns the number of cells in the column.
func (c *Column) Len() int {
	switch c.Field.Type {
	case TypeInteger:
		return len(c.ints)
	case TypeFloat:
		return len(c.floats)
	case TypeString:
		return len(c.strings)
	case TypeBoolean:
		return len(c.bools)
	case TypeDatetime:
		return len(c.times)
	}
	return 0
}

// IsNull reports whether cell i is null.
func (c *Column) IsNull(i int) bool {
	return c.nulls != nil && c.nulls[i]
}

// Value returns cell i as an untyped value, or nil when null.
func (c *Column) Value(i int) interface{} {
	if c.IsNull(i) {
		return nil
	}
	switch c.Field.Type {
	case TypeInteger:
		return c.ints[i]
	case TypeFloat:
		return c.floats[i]
	case TypeString:
		return c.strings[i]
	case TypeBoolean:
		return c.bools[i]
	case TypeDatetime:
		return c.times[i]
	}
	return nil
}

// Float returns cell i widened to float64. ok is false for nulls and
// non-numeric columns. Datetimes widen to Unix nanoseconds so range windows
// and numeric comparisons work on time axes.
func (c *Column) Float(i int) (float64, bool) {
	if c.IsNull(i) {
		return 0, false
	}
	switch c.Field.Type {
	case TypeInteger:
		return float64(c.ints[i]), true
	case TypeFloat:
		return c.floats[i], true
	case TypeDatetime:
		return float64(c.times[i].UnixNano()), true
	}
	return 0, false
}

// Int returns cell i as int64 without widening.
func (c *Column) Int(i int) (int64, bool) {
	if c.IsNull(i) || c.Field.Type != TypeInteger {
		return 0, false
	}
	return c.ints[i], true
}

// Str returns cell i for string columns.
func (c *Column) Str(i int) (string, bool) {
	if c.IsNull(i) || c.Field.Type != TypeString {
		return "", false
	}
	return c.strings[i], true
}

// Bool returns cell i for boolean columns.
func (c *Column) Bool(i int) (bool, bool) {
	if c.IsNull(i) || c.Field.Type != TypeBoolean {
		return false, false
	}
	return c.bools[i], true
}

// Time returns cell i for datetime columns.
func (c *Column) Time(i int) (time.Time, bool) {
	if c.IsNull(i) || c.Field.Type != TypeDatetime {
		return time.Time{}, false
	}
	return c.times[i], true
}

// Label renders cell i for use as an axis label or table cell string.
func (c *Column) Label(i int) string {
	if c.IsNull(i) {
		return ""
	}
	switch c.Field.Type {
	case TypeInteger:
		return strconv.FormatInt(c.ints[i], 10)
	case TypeFloat:
		return strconv.FormatFloat(c.floats[i], 'g', -1, 64)
	case TypeString:
		return c.strings[i]
	case TypeBoolean:
		return strconv.FormatBool(c.bools[i])
	case TypeDatetime:
		return c.times[i].UTC().Format(time.RFC3339)
	}
	return ""
}

// Compare orders cell i against cell j with type-aware semantics.
// Nulls compare greater than any value so ascending sorts put them last;
// the table pager relies on this and flips non-null pairs for descending.
func (c *Column) Compare(i, j int) int {
	ni, nj := c.IsNull(i), c.IsNull(j)
	switch {
	case ni && nj:
		return 0
	case ni:
		return 1
	case nj:
		return -1
	}
	switch c.Field.Type {
	case TypeInteger:
		return compareOrdered(c.ints[i], c.ints[j])
	case TypeFloat:
		return compareOrdered(c.floats[i], c.floats[j])
	case TypeString:
		return compareOrdered(c.strings[i], c.strings[j])
	case TypeBoolean:
		bi, bj := c.bools[i], c.bools[j]
		if bi == bj {
			return 0
		}
		if !bi {
			return -1
		}
		return 1
	case TypeDatetime:
		ti, tj := c.times[i], c.times[j]
		if ti.Equal(tj) {
			return 0
		}
		if ti.Before(tj) {
			return -1
		}
		return 1
	}
	return 0
}

func compareOrdered[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Dataset is an immutable, versioned columnar snapshot. It is never mutated
// after construction; reloading data publishes a whole new Dataset with a
// fresh version, so concurrent queries need no locking.
type Dataset struct {
	name     string
	version  string
	cols     []*Column
	byName   map[string]int
	rows     int
	loadedAt time.Time
}

// New builds a Dataset from columns, validating that all columns have the
// same length. The version is a fresh UUID identifying this snapshot.
func New(name string, cols []*Column) (*Dataset, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("dataset %q has no columns", name)
	}
	rows := cols[0].Len()
	byName := make(map[string]int, len(cols))
	for i, col := range cols {
		if col.Len() != rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d",
				col.Field.Name, col.Len(), rows)
		}
		if _, dup := byName[col.Field.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", col.Field.Name)
		}
		byName[col.Field.Name] = i
	}
	return &Dataset{
		name:     name,
		version:  uuid.NewString(),
		cols:     cols,
		byName:   byName,
		rows:     rows,
		loadedAt: time.Now().UTC(),
	}, nil
}

// Name returns the dataset's display name.
func (d *Dataset) Name() string { return d.name }

// Version returns the immutable snapshot identifier.
func (d *Dataset) Version() string { return d.version }

// Rows returns the row count.
func (d *Dataset) Rows() int { return d.rows }

// LoadedAt returns when the snapshot was created.
func (d *Dataset) LoadedAt() time.Time { return d.loadedAt }

// Column returns the named column.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.byName[name]
	if !ok {
		return nil, false
	}
	return d.cols[i], true
}

// Columns returns all columns in schema order.
func (d *Dataset) Columns() []*Column { return d.cols }

// Schema returns the dataset's schema.
func (d *Dataset) Schema() Schema {
	fields := make([]Field, len(d.cols))
	for i, c := range d.cols {
		fields[i] = c.Field
	}
	return Schema{Fields: fields}
}
