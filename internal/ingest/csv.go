// Package ingest builds dataset snapshots from delimited files.
//
// The loader reads the whole file, infers a column type from the observed
// values (integer -> float -> boolean -> datetime -> string, narrowest type
// that fits every non-null cell), then materializes typed columns. The
// resulting Dataset is immutable; publishing it is the caller's job.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/prismview/prism/internal/dataset"
)

// Options controls CSV parsing and type inference.
type Options struct {
	// Delimiter for fields. Defaults to comma.
	Delimiter rune

	// NullTokens are cell values treated as null after trimming.
	NullTokens []string

	// TimeFormats are tried in order when inferring datetime columns.
	TimeFormats []string

	// MaxRows aborts loads larger than this. Zero means unlimited.
	MaxRows int
}

// DefaultOptions returns the stock parsing options.
func DefaultOptions() *Options {
	return &Options{
		Delimiter:  ',',
		NullTokens: []string{"", "null", "NULL", "NA", "N/A"},
		TimeFormats: []string{
			time.RFC3339,
			"2006-01-02 15:04:05",
			"2006-01-02",
		},
	}
}

// Loader builds datasets from CSV sources.
type Loader struct {
	opts   *Options
	logger zerolog.Logger
}

// NewLoader creates a loader.
func NewLoader(opts *Options, logger zerolog.Logger) *Loader {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	return &Loader{
		opts:   opts,
		logger: logger.With().Str("component", "csv-loader").Logger(),
	}
}

// LoadFile reads a CSV file from disk. Files ending in .gz are decompressed
// transparently.
func (l *Loader) LoadFile(path string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	name := baseName(path)
	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read gzip header of %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
		name = baseName(strings.TrimSuffix(path, ".gz"))
	}
	return l.Load(name, r)
}

// Load reads CSV data from r. The first record is the header.
func (l *Loader) Load(name string, r io.Reader) (*dataset.Dataset, error) {
	start := time.Now()

	cr := csv.NewReader(r)
	cr.Comma = l.opts.Delimiter
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty input: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
		if header[i] == "" {
			header[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(records)+2, err)
		}
		records = append(records, rec)
		if l.opts.MaxRows > 0 && len(records) > l.opts.MaxRows {
			return nil, fmt.Errorf("input exceeds the %d row limit", l.opts.MaxRows)
		}
	}

	cols := make([]*dataset.Column, len(header))
	for i, colName := range header {
		colType := l.inferType(records, i)
		builder := dataset.NewColumnBuilder(colName, colType)
		for _, rec := range records {
			l.appendCell(builder, colType, cellAt(rec, i))
		}
		cols[i] = builder.Build()
	}

	ds, err := dataset.New(name, cols)
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("name", name).
		Int("rows", ds.Rows()).
		Int("columns", len(cols)).
		Dur("duration", time.Since(start)).
		Msg("CSV loaded")

	return ds, nil
}

// inferType scans every non-null cell of a column and returns the narrowest
// type that parses all of them. Columns with no values at all stay strings.
func (l *Loader) inferType(records [][]string, col int) dataset.ColumnType {
	canInt, canFloat, canBool, canTime := true, true, true, true
	seen := false

	for _, rec := range records {
		cell := cellAt(rec, col)
		if l.isNull(cell) {
			continue
		}
		seen = true
		if canInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				canInt = false
			}
		}
		if canFloat && !canInt {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				canFloat = false
			}
		}
		if canBool && !isBoolToken(cell) {
			canBool = false
		}
		if canTime {
			if _, ok := l.parseTime(cell); !ok {
				canTime = false
			}
		}
		if !canInt && !canFloat && !canBool && !canTime {
			return dataset.TypeString
		}
	}

	switch {
	case !seen:
		return dataset.TypeString
	case canBool:
		return dataset.TypeBoolean
	case canInt:
		return dataset.TypeInteger
	case canFloat:
		return dataset.TypeFloat
	case canTime:
		return dataset.TypeDatetime
	default:
		return dataset.TypeString
	}
}

func (l *Loader) appendCell(b *dataset.ColumnBuilder, t dataset.ColumnType, cell string) {
	if l.isNull(cell) {
		b.AppendNull()
		return
	}
	switch t {
	case dataset.TypeInteger:
		v, _ := strconv.ParseInt(cell, 10, 64)
		b.AppendInt(v)
	case dataset.TypeFloat:
		v, _ := strconv.ParseFloat(cell, 64)
		b.AppendFloat(v)
	case dataset.TypeBoolean:
		b.AppendBool(strings.EqualFold(cell, "true"))
	case dataset.TypeDatetime:
		v, _ := l.parseTime(cell)
		b.AppendTime(v)
	default:
		b.AppendString(cell)
	}
}

func (l *Loader) isNull(cell string) bool {
	cell = strings.TrimSpace(cell)
	for _, tok := range l.opts.NullTokens {
		if cell == tok {
			return true
		}
	}
	return false
}

func (l *Loader) parseTime(cell string) (time.Time, bool) {
	for _, format := range l.opts.TimeFormats {
		if t, err := time.Parse(format, cell); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isBoolToken(cell string) bool {
	return strings.EqualFold(cell, "true") || strings.EqualFold(cell, "false")
}

// cellAt tolerates ragged rows: missing trailing cells read as null.
func cellAt(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.LastIndexByte(path, '.'); i > 0 {
		path = path[:i]
	}
	return path
}
