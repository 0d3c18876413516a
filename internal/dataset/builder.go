package dataset

import (
	"fmt"
	"time"
)

// ColumnBuilder accumulates cells for one column. Builders are not safe for
// concurrent use; build the dataset on one goroutine, then publish it.
type ColumnBuilder struct {
	field   Field
	ints    []int64
	floats  []float64
	strings []string
	bools   []bool
	times   []time.Time
	nulls   []bool
	hasNull bool
	length  int
}

// NewColumnBuilder creates a builder for a column of the given type.
func NewColumnBuilder(name string, t ColumnType) *ColumnBuilder {
	return &ColumnBuilder{field: Field{Name: name, Type: t}}
}

// AppendNull appends a null cell.
func (b *ColumnBuilder) AppendNull() {
	b.appendZero()
	b.markNull()
}

func (b *ColumnBuilder) appendZero() {
	switch b.field.Type {
	case TypeInteger:
		b.ints = append(b.ints, 0)
	case TypeFloat:
		b.floats = append(b.floats, 0)
	case TypeString:
		b.strings = append(b.strings, "")
	case TypeBoolean:
		b.bools = append(b.bools, false)
	case TypeDatetime:
		b.times = append(b.times, time.Time{})
	}
	b.length++
}

func (b *ColumnBuilder) markNull() {
	if b.nulls == nil {
		b.nulls = make([]bool, b.length-1, b.length)
	}
	for len(b.nulls) < b.length-1 {
		b.nulls = append(b.nulls, false)
	}
	b.nulls = append(b.nulls, true)
	b.hasNull = true
}

func (b *ColumnBuilder) markValue() {
	if b.nulls != nil {
		b.nulls = append(b.nulls, false)
	}
}

// AppendInt appends an integer cell.
func (b *ColumnBuilder) AppendInt(v int64) {
	b.ints = append(b.ints, v)
	b.length++
	b.markValue()
}

// AppendFloat appends a float cell.
func (b *ColumnBuilder) AppendFloat(v float64) {
	b.floats = append(b.floats, v)
	b.length++
	b.markValue()
}

// AppendString appends a string cell.
func (b *ColumnBuilder) AppendString(v string) {
	b.strings = append(b.strings, v)
	b.length++
	b.markValue()
}

// AppendBool appends a boolean cell.
func (b *ColumnBuilder) AppendBool(v bool) {
	b.bools = append(b.bools, v)
	b.length++
	b.markValue()
}

// AppendTime appends a datetime cell.
func (b *ColumnBuilder) AppendTime(v time.Time) {
	b.times = append(b.times, v)
	b.length++
	b.markValue()
}

// Append appends an untyped value, checking it against the column type.
// nil appends a null.
func (b *ColumnBuilder) Append(v interface{}) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch b.field.Type {
	case TypeInteger:
		switch n := v.(type) {
		case int64:
			b.AppendInt(n)
		case int:
			b.AppendInt(int64(n))
		default:
			return fmt.Errorf("column %q: expected integer, got %T", b.field.Name, v)
		}
	case TypeFloat:
		switch n := v.(type) {
		case float64:
			b.AppendFloat(n)
		case int64:
			b.AppendFloat(float64(n))
		case int:
			b.AppendFloat(float64(n))
		default:
			return fmt.Errorf("column %q: expected float, got %T", b.field.Name, v)
		}
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("column %q: expected string, got %T", b.field.Name, v)
		}
		b.AppendString(s)
	case TypeBoolean:
		bv, ok := v.(bool)
		if !ok {
			return fmt.Errorf("column %q: expected boolean, got %T", b.field.Name, v)
		}
		b.AppendBool(bv)
	case TypeDatetime:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("column %q: expected datetime, got %T", b.field.Name, v)
		}
		b.AppendTime(t)
	default:
		return fmt.Errorf("column %q: unknown type %q", b.field.Name, b.field.Type)
	}
	return nil
}

// Len returns the number of cells appended so far.
func (b *ColumnBuilder) Len() int { return b.length }

// Build finalizes the column. The builder must not be reused afterwards.
func (b *ColumnBuilder) Build() *Column {
	field := b.field
	field.Nullable = b.hasNull
	col := &Column{
		Field:   field,
		ints:    b.ints,
		floats:  b.floats,
		strings: b.strings,
		bools:   b.bools,
		times:   b.times,
	}
	if b.hasNull {
		col.nulls = b.nulls
	}
	return col
}
