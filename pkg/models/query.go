package models

// ChartKind identifies the visualization a query targets.
// Categorical kinds (bar, pie) reduce via top-N folding; continuous kinds
// (line, area, scatter) reduce via deterministic systematic sampling.
type ChartKind string

const (
	ChartBar     ChartKind = "bar"
	ChartLine    ChartKind = "line"
	ChartArea    ChartKind = "area"
	ChartPie     ChartKind = "pie"
	ChartScatter ChartKind = "scatter"
)

// Categorical reports whether the chart kind renders discrete categories.
func (k ChartKind) Categorical() bool {
	return k == ChartBar || k == ChartPie
}

// Aggregation is the statistic applied to each group's y values.
type Aggregation string

const (
	AggSum    Aggregation = "sum"
	AggAvg    Aggregation = "avg"
	AggCount  Aggregation = "count"
	AggMin    Aggregation = "min"
	AggMax    Aggregation = "max"
	AggMedian Aggregation = "median"
)

// SortBy selects the axis groups are ordered on.
type SortBy string

const (
	SortByX    SortBy = "x"
	SortByY    SortBy = "y"
	SortByNone SortBy = "none"
)

// SortOrder is the direction of an explicit sort.
type SortOrder string

const (
	SortAsc     SortOrder = "asc"
	SortDesc    SortOrder = "desc"
	SortOrdNone SortOrder = "none"
)

// FilterOperator is the comparison/membership operator of a Filter.
type FilterOperator string

const (
	OpEq         FilterOperator = "equals"
	OpNeq        FilterOperator = "not_equals"
	OpGt         FilterOperator = "gt"
	OpLt         FilterOperator = "lt"
	OpGte        FilterOperator = "gte"
	OpLte        FilterOperator = "lte"
	OpContains   FilterOperator = "contains"
	OpStartsWith FilterOperator = "starts_with"
	OpEndsWith   FilterOperator = "ends_with"
	OpIsNull     FilterOperator = "is_null"
	OpIsNotNull  FilterOperator = "is_not_null"
)

// Filter is a single column predicate. Filters on a query combine with
// logical AND. Value must match the column's declared type; this is checked
// at validation time, never during the scan.
type Filter struct {
	Column   string         `json:"column"`
	Operator FilterOperator `json:"operator"`
	Value    interface{}    `json:"value,omitempty"`
}

// QuerySpec is a declarative chart request. Specs are immutable once issued.
type QuerySpec struct {
	ChartKind    ChartKind   `json:"chartKind"`
	XField       string      `json:"xField"`
	YField       string      `json:"yField"`
	Aggregation  Aggregation `json:"aggregation"`
	GroupByField string      `json:"groupByField,omitempty"`
	SortBy       SortBy      `json:"sortBy"`
	SortOrder    SortOrder   `json:"sortOrder"`
	Title        string      `json:"title"`
	Filters      []Filter    `json:"filters,omitempty"`
}

// TableRequest is a paginated raw-row request. PageSize above the engine's
// hard ceiling is clamped, never honored.
type TableRequest struct {
	Columns    []string `json:"columns,omitempty"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	SortColumn string   `json:"sortColumn,omitempty"`
	SortDesc   bool     `json:"sortDesc,omitempty"`
	Filters    []Filter `json:"filters,omitempty"`
}

// ReductionReason names the transformation that bounded a result.
type ReductionReason string

const (
	ReductionNone    ReductionReason = "none"
	ReductionSampled ReductionReason = "sampled"
	ReductionTopN    ReductionReason = "top_n"
	// ReductionBinned is reserved for histogram-style binning; no current
	// transform emits it.
	ReductionBinned ReductionReason = "aggregated_binned"
)

// ReductionInfo explains what (if anything) was omitted from a result.
// Every reduced result carries a human-readable warning; callers surface it
// so users never mistake a reduced chart for the full data.
type ReductionInfo struct {
	Reduced             bool            `json:"reduced"`
	Reason              ReductionReason `json:"reason"`
	OriginalCardinality int             `json:"originalCardinality"`
	ReturnedPoints      int             `json:"returnedPoints"`
	SampleRatio         float64         `json:"sampleRatio,omitempty"`
	TopNCutoff          *float64        `json:"topNCutoff,omitempty"`
	WarningMessage      string          `json:"warningMessage,omitempty"`
}

// Series is one aligned value vector of a chart.
type Series struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
	Color  string    `json:"color,omitempty"`
}

// ChartMeta carries display labels plus the reduction bundle.
type ChartMeta struct {
	Title          string        `json:"title"`
	XLabel         string        `json:"xLabel"`
	YLabel         string        `json:"yLabel"`
	TotalRecords   int           `json:"totalRecords"`
	DatasetVersion string        `json:"datasetVersion,omitempty"`
	Generation     uint64        `json:"generation,omitempty"`
	Stale          bool          `json:"stale,omitempty"`
	Reduction      ReductionInfo `json:"reduction"`
}

// ChartResult is a bounded, renderable chart payload.
// Invariant: len(Labels) == len(s.Values) for every series s.
type ChartResult struct {
	Labels   []string  `json:"labels"`
	Series   []Series  `json:"series"`
	Metadata ChartMeta `json:"metadata"`
}

// TablePage is one page of raw rows.
// Invariants: PageSize <= 1000, TotalPages == ceil(TotalRows/PageSize),
// Page is 0-indexed and clamped into [0, TotalPages-1] when TotalPages > 0.
type TablePage struct {
	Columns    []string        `json:"columns"`
	Rows       [][]interface{} `json:"rows"`
	TotalRows  int             `json:"totalRows"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
	Warning    string          `json:"warning,omitempty"`
}
