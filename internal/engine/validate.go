package engine

import (
	"time"

	"github.com/prismview/prism/internal/dataset"
	"github.com/prismview/prism/pkg/models"
)

// validateSpec checks a chart spec against the dataset schema. It fails on
// the first problem found; the request is never partially executed.
func validateSpec(ds *dataset.Dataset, spec models.QuerySpec) error {
	schema := ds.Schema()

	if _, ok := schema.Field(spec.XField); !ok {
		return &InvalidFieldError{Field: spec.XField, Available: schema.Names()}
	}
	yField, ok := schema.Field(spec.YField)
	if !ok {
		return &InvalidFieldError{Field: spec.YField, Available: schema.Names()}
	}
	if spec.GroupByField != "" {
		if _, ok := schema.Field(spec.GroupByField); !ok {
			return &InvalidFieldError{Field: spec.GroupByField, Available: schema.Names()}
		}
	}

	if err := validateAggregation(yField, spec.Aggregation); err != nil {
		return err
	}
	return validateFilters(schema, spec.Filters)
}

// validateAggregation checks that the statistic can be computed over the
// y-field's declared type. count accepts any type; sum/avg/median need
// arithmetic; min/max additionally allow datetime, whose extrema are still
// chartable as numbers.
func validateAggregation(field dataset.Field, agg models.Aggregation) error {
	switch agg {
	case models.AggCount:
		return nil
	case models.AggSum, models.AggAvg, models.AggMedian:
		if !field.Type.Numeric() {
			return &TypeMismatchError{
				Field:    field.Name,
				Expected: "numeric type",
				Got:      string(field.Type),
				Operator: string(agg),
			}
		}
		return nil
	case models.AggMin, models.AggMax:
		if !field.Type.Numeric() && field.Type != dataset.TypeDatetime {
			return &TypeMismatchError{
				Field:    field.Name,
				Expected: "numeric or datetime type",
				Got:      string(field.Type),
				Operator: string(agg),
			}
		}
		return nil
	default:
		return &TypeMismatchError{
			Field:    field.Name,
			Expected: "one of sum, avg, count, min, max, median",
			Got:      string(agg),
			Operator: "aggregation",
		}
	}
}

// validateFilters checks that every filter references a known column with an
// operator and value compatible with the column's declared type. Numeric
// widening is permitted: an integer literal may filter a float column and
// vice versa.
func validateFilters(schema dataset.Schema, filters []models.Filter) error {
	for _, f := range filters {
		field, ok := schema.Field(f.Column)
		if !ok {
			return &InvalidFieldError{Field: f.Column, Available: schema.Names()}
		}
		if err := validateFilter(field, f); err != nil {
			return err
		}
	}
	return nil
}

func validateFilter(field dataset.Field, f models.Filter) error {
	switch f.Operator {
	case models.OpIsNull, models.OpIsNotNull:
		// Value is ignored.
		return nil

	case models.OpContains, models.OpStartsWith, models.OpEndsWith:
		if field.Type != dataset.TypeString {
			return &TypeMismatchError{
				Field:    field.Name,
				Expected: "string column",
				Got:      string(field.Type),
				Operator: string(f.Operator),
			}
		}
		if _, ok := f.Value.(string); !ok {
			return &TypeMismatchError{
				Field:    field.Name,
				Expected: "string value",
				Got:      valueTypeName(f.Value),
				Operator: string(f.Operator),
			}
		}
		return nil

	case models.OpGt, models.OpLt, models.OpGte, models.OpLte:
		switch field.Type {
		case dataset.TypeInteger, dataset.TypeFloat:
			if _, ok := numericValue(f.Value); !ok {
				return &TypeMismatchError{
					Field:    field.Name,
					Expected: "numeric value",
					Got:      valueTypeName(f.Value),
					Operator: string(f.Operator),
				}
			}
		case dataset.TypeDatetime:
			if _, ok := datetimeValue(f.Value); !ok {
				return &TypeMismatchError{
					Field:    field.Name,
					Expected: "RFC 3339 datetime value",
					Got:      valueTypeName(f.Value),
					Operator: string(f.Operator),
				}
			}
		default:
			return &TypeMismatchError{
				Field:    field.Name,
				Expected: "numeric or datetime column",
				Got:      string(field.Type),
				Operator: string(f.Operator),
			}
		}
		return nil

	case models.OpEq, models.OpNeq:
		return validateEqualityValue(field, f)

	default:
		return &TypeMismatchError{
			Field:    field.Name,
			Expected: "a supported filter operator",
			Got:      string(f.Operator),
			Operator: string(f.Operator),
		}
	}
}

func validateEqualityValue(field dataset.Field, f models.Filter) error {
	ok := false
	expected := ""
	switch field.Type {
	case dataset.TypeInteger, dataset.TypeFloat:
		expected = "numeric value"
		_, ok = numericValue(f.Value)
	case dataset.TypeString:
		expected = "string value"
		_, ok = f.Value.(string)
	case dataset.TypeBoolean:
		expected = "boolean value"
		_, ok = f.Value.(bool)
	case dataset.TypeDatetime:
		expected = "RFC 3339 datetime value"
		_, ok = datetimeValue(f.Value)
	}
	if !ok {
		return &TypeMismatchError{
			Field:    field.Name,
			Expected: expected,
			Got:      valueTypeName(f.Value),
			Operator: string(f.Operator),
		}
	}
	return nil
}

// validateTableRequest checks requested columns, the sort column, and the
// request's filters against the schema.
func validateTableRequest(ds *dataset.Dataset, req models.TableRequest) error {
	schema := ds.Schema()
	for _, name := range req.Columns {
		if _, ok := schema.Field(name); !ok {
			return &InvalidFieldError{Field: name, Available: schema.Names()}
		}
	}
	if req.SortColumn != "" {
		if _, ok := schema.Field(req.SortColumn); !ok {
			return &InvalidFieldError{Field: req.SortColumn, Available: schema.Names()}
		}
	}
	return validateFilters(schema, req.Filters)
}

// numericValue widens a JSON-decoded literal to float64.
func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// datetimeValue accepts RFC 3339 strings or time.Time literals.
func datetimeValue(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

func valueTypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, uint64:
		return "number"
	default:
		return "unsupported value"
	}
}
