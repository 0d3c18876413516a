package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismview/prism/internal/dataset"
	"github.com/prismview/prism/pkg/models"
)

func schemaDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	name := dataset.NewColumnBuilder("name", dataset.TypeString)
	amount := dataset.NewColumnBuilder("amount", dataset.TypeFloat)
	active := dataset.NewColumnBuilder("active", dataset.TypeBoolean)
	when := dataset.NewColumnBuilder("when", dataset.TypeDatetime)

	name.AppendString("a")
	amount.AppendFloat(1)
	active.AppendBool(true)
	when.AppendNull()

	ds, err := dataset.New("s", []*dataset.Column{
		name.Build(), amount.Build(), active.Build(), when.Build(),
	})
	require.NoError(t, err)
	return ds
}

func TestValidateSpec_Fields(t *testing.T) {
	ds := schemaDataset(t)

	base := models.QuerySpec{
		ChartKind:   models.ChartBar,
		XField:      "name",
		YField:      "amount",
		Aggregation: models.AggSum,
	}
	assert.NoError(t, validateSpec(ds, base))

	bad := base
	bad.XField = "ghost"
	err := validateSpec(ds, bad)
	require.Error(t, err)
	var invalid *InvalidFieldError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "ghost", invalid.Field)
	assert.Contains(t, invalid.Available, "amount")

	bad = base
	bad.GroupByField = "ghost"
	assert.Error(t, validateSpec(ds, bad))
}

func TestValidateAggregation(t *testing.T) {
	ds := schemaDataset(t)
	schema := ds.Schema()
	strField, _ := schema.Field("name")
	numField, _ := schema.Field("amount")
	timeField, _ := schema.Field("when")

	// count works on anything.
	assert.NoError(t, validateAggregation(strField, models.AggCount))

	// Arithmetic statistics need numbers.
	for _, agg := range []models.Aggregation{models.AggSum, models.AggAvg, models.AggMedian} {
		assert.NoError(t, validateAggregation(numField, agg))
		assert.Error(t, validateAggregation(strField, agg))
		assert.Error(t, validateAggregation(timeField, agg))
	}

	// min/max additionally allow datetime.
	for _, agg := range []models.Aggregation{models.AggMin, models.AggMax} {
		assert.NoError(t, validateAggregation(numField, agg))
		assert.NoError(t, validateAggregation(timeField, agg))
		assert.Error(t, validateAggregation(strField, agg))
	}

	assert.Error(t, validateAggregation(numField, models.Aggregation("mode")))
}

func TestValidateFilter_TypeRules(t *testing.T) {
	ds := schemaDataset(t)
	schema := ds.Schema()

	tests := []struct {
		name    string
		filter  models.Filter
		wantErr bool
	}{
		{"string op on string col", models.Filter{Column: "name", Operator: models.OpContains, Value: "x"}, false},
		{"string op on numeric col", models.Filter{Column: "amount", Operator: models.OpContains, Value: "x"}, true},
		{"string op with numeric value", models.Filter{Column: "name", Operator: models.OpContains, Value: 3}, true},
		{"ordered on numeric", models.Filter{Column: "amount", Operator: models.OpGt, Value: 1.5}, false},
		{"ordered with int literal", models.Filter{Column: "amount", Operator: models.OpGt, Value: 2}, false},
		{"ordered on string col", models.Filter{Column: "name", Operator: models.OpGt, Value: "a"}, true},
		{"ordered on bool col", models.Filter{Column: "active", Operator: models.OpLt, Value: true}, true},
		{"ordered datetime rfc3339", models.Filter{Column: "when", Operator: models.OpGte, Value: "2024-01-01T00:00:00Z"}, false},
		{"ordered datetime bad value", models.Filter{Column: "when", Operator: models.OpGte, Value: "yesterday"}, true},
		{"eq string", models.Filter{Column: "name", Operator: models.OpEq, Value: "a"}, false},
		{"eq string with number", models.Filter{Column: "name", Operator: models.OpEq, Value: 1}, true},
		{"eq bool", models.Filter{Column: "active", Operator: models.OpEq, Value: false}, false},
		{"eq numeric widened", models.Filter{Column: "amount", Operator: models.OpEq, Value: 3}, false},
		{"is_null ignores value", models.Filter{Column: "when", Operator: models.OpIsNull, Value: 42}, false},
		{"is_not_null", models.Filter{Column: "name", Operator: models.OpIsNotNull}, false},
		{"unknown column", models.Filter{Column: "ghost", Operator: models.OpEq, Value: "x"}, true},
		{"unknown operator", models.Filter{Column: "name", Operator: "like", Value: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFilters(schema, []models.Filter{tt.filter})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
