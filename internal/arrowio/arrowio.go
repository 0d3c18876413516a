// Package arrowio converts datasets to and from Arrow IPC streams.
//
// Integers map to Int64, floats to Float64, booleans to Boolean, datetimes
// to microsecond Timestamp, everything else to String. Streams are written
// in fixed-size record batches so readers can start decoding before the
// whole dataset has arrived.
package arrowio

import (
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/prismview/prism/internal/dataset"
)

// batchSize is the number of rows per IPC record batch.
const batchSize = 10000

// ArrowSchema maps a dataset schema to an Arrow schema.
func ArrowSchema(ds *dataset.Dataset) *arrow.Schema {
	schema := ds.Schema()
	fields := make([]arrow.Field, len(schema.Fields))
	for i, f := range schema.Fields {
		fields[i] = arrow.Field{
			Name:     f.Name,
			Type:     arrowType(f.Type),
			Nullable: f.Nullable,
		}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(t dataset.ColumnType) arrow.DataType {
	switch t {
	case dataset.TypeInteger:
		return arrow.PrimitiveTypes.Int64
	case dataset.TypeFloat:
		return arrow.PrimitiveTypes.Float64
	case dataset.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	case dataset.TypeDatetime:
		return arrow.FixedWidthTypes.Timestamp_us
	default:
		return arrow.BinaryTypes.String
	}
}

// WriteStream encodes a dataset as an Arrow IPC stream.
func WriteStream(w io.Writer, ds *dataset.Dataset) error {
	schema := ArrowSchema(ds)
	mem := memory.NewGoAllocator()

	writer := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	defer writer.Close()

	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	cols := ds.Columns()
	rows := ds.Rows()
	inBatch := 0

	flush := func() error {
		record := builder.NewRecord()
		defer record.Release()
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record batch: %w", err)
		}
		inBatch = 0
		return nil
	}

	for row := 0; row < rows; row++ {
		for ci, col := range cols {
			appendValue(builder.Field(ci), col, row)
		}
		inBatch++
		if inBatch >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if inBatch > 0 {
		return flush()
	}
	return nil
}

func appendValue(fb array.Builder, col *dataset.Column, row int) {
	if col.IsNull(row) {
		fb.AppendNull()
		return
	}
	switch b := fb.(type) {
	case *array.Int64Builder:
		v, _ := col.Int(row)
		b.Append(v)
	case *array.Float64Builder:
		v, _ := col.Float(row)
		b.Append(v)
	case *array.BooleanBuilder:
		v, _ := col.Bool(row)
		b.Append(v)
	case *array.TimestampBuilder:
		v, _ := col.Time(row)
		b.Append(arrow.Timestamp(v.UnixMicro()))
	case *array.StringBuilder:
		b.Append(col.Label(row))
	default:
		fb.AppendNull()
	}
}

// ReadStream decodes an Arrow IPC stream into a dataset named name.
func ReadStream(r io.Reader, name string) (*dataset.Dataset, error) {
	reader, err := ipc.NewReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("failed to open Arrow stream: %w", err)
	}
	defer reader.Release()

	schema := reader.Schema()
	builders := make([]*dataset.ColumnBuilder, schema.NumFields())
	for i := 0; i < schema.NumFields(); i++ {
		field := schema.Field(i)
		colType, err := columnType(field.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", field.Name, err)
		}
		builders[i] = dataset.NewColumnBuilder(field.Name, colType)
	}

	for reader.Next() {
		record := reader.Record()
		for ci := 0; ci < int(record.NumCols()); ci++ {
			if err := appendArray(builders[ci], record.Column(ci)); err != nil {
				return nil, fmt.Errorf("column %q: %w", schema.Field(ci).Name, err)
			}
		}
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read Arrow stream: %w", err)
	}

	cols := make([]*dataset.Column, len(builders))
	for i, b := range builders {
		cols[i] = b.Build()
	}
	return dataset.New(name, cols)
}

func columnType(t arrow.DataType) (dataset.ColumnType, error) {
	switch t.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return dataset.TypeInteger, nil
	case arrow.FLOAT32, arrow.FLOAT64:
		return dataset.TypeFloat, nil
	case arrow.BOOL:
		return dataset.TypeBoolean, nil
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return dataset.TypeDatetime, nil
	case arrow.STRING, arrow.LARGE_STRING:
		return dataset.TypeString, nil
	default:
		return "", fmt.Errorf("unsupported Arrow type %s", t)
	}
}

func appendArray(b *dataset.ColumnBuilder, arr arrow.Array) error {
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			b.AppendNull()
			continue
		}
		switch a := arr.(type) {
		case *array.Int8:
			b.AppendInt(int64(a.Value(i)))
		case *array.Int16:
			b.AppendInt(int64(a.Value(i)))
		case *array.Int32:
			b.AppendInt(int64(a.Value(i)))
		case *array.Int64:
			b.AppendInt(a.Value(i))
		case *array.Uint8:
			b.AppendInt(int64(a.Value(i)))
		case *array.Uint16:
			b.AppendInt(int64(a.Value(i)))
		case *array.Uint32:
			b.AppendInt(int64(a.Value(i)))
		case *array.Uint64:
			b.AppendInt(int64(a.Value(i)))
		case *array.Float32:
			b.AppendFloat(float64(a.Value(i)))
		case *array.Float64:
			b.AppendFloat(a.Value(i))
		case *array.Boolean:
			b.AppendBool(a.Value(i))
		case *array.Timestamp:
			unit := a.DataType().(*arrow.TimestampType).Unit
			b.AppendTime(timestampToTime(a.Value(i), unit))
		case *array.Date32:
			b.AppendTime(a.Value(i).ToTime())
		case *array.Date64:
			b.AppendTime(a.Value(i).ToTime())
		case *array.String:
			b.AppendString(a.Value(i))
		case *array.LargeString:
			b.AppendString(a.Value(i))
		default:
			return fmt.Errorf("unsupported Arrow array %T", arr)
		}
	}
	return nil
}

func timestampToTime(ts arrow.Timestamp, unit arrow.TimeUnit) time.Time {
	switch unit {
	case arrow.Second:
		return time.Unix(int64(ts), 0).UTC()
	case arrow.Millisecond:
		return time.UnixMilli(int64(ts)).UTC()
	case arrow.Microsecond:
		return time.UnixMicro(int64(ts)).UTC()
	default:
		return time.Unix(0, int64(ts)).UTC()
	}
}
