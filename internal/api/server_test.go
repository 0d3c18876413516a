package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismview/prism/internal/cache"
	"github.com/prismview/prism/internal/dataset"
	"github.com/prismview/prism/internal/engine"
	"github.com/prismview/prism/internal/ingest"
	"github.com/prismview/prism/internal/sequencer"
	"github.com/prismview/prism/pkg/models"
)

const salesCSV = "region,sales\nNA,50\nEU,40\nNA,30\nEU,20\nLATAM,10\n"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store := dataset.NewStore(zerolog.Nop())
	loader := ingest.NewLoader(nil, zerolog.Nop())
	rc, err := cache.New(16, zerolog.Nop())
	require.NoError(t, err)
	eng := engine.New(store, nil, rc, zerolog.Nop())
	seq := sequencer.New()

	s := NewServer(nil, store, eng, loader, seq, rc, zerolog.Nop())
	s.RegisterRoutes()
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.GetApp().Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func uploadCSV(t *testing.T, s *Server, csv string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/datasets?name=sales", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	resp, err := s.GetApp().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	resp, _ := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadyReportsDatasetState(t *testing.T) {
	s := newTestServer(t)

	_, raw := doJSON(t, s, http.MethodGet, "/ready", nil)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, false, body["dataset_loaded"])

	uploadCSV(t, s, salesCSV)

	_, raw = doJSON(t, s, http.MethodGet, "/ready", nil)
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, true, body["dataset_loaded"])
}

func TestUploadAndDescribeDataset(t *testing.T) {
	s := newTestServer(t)
	uploadCSV(t, s, salesCSV)

	resp, raw := doJSON(t, s, http.MethodGet, "/api/v1/datasets/current", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Name   string `json:"name"`
		Rows   int    `json:"rows"`
		Schema struct {
			Fields []struct {
				Name string `json:"name"`
				Type string `json:"type"`
			} `json:"fields"`
		} `json:"schema"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "sales", body.Name)
	assert.Equal(t, 5, body.Rows)
	require.Len(t, body.Schema.Fields, 2)
	assert.Equal(t, "string", body.Schema.Fields[0].Type)
	assert.Equal(t, "integer", body.Schema.Fields[1].Type)
}

func TestUploadRejectsEmptyBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/datasets", nil)
	resp, err := s.GetApp().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChartQuery(t *testing.T) {
	s := newTestServer(t)
	uploadCSV(t, s, salesCSV)

	resp, raw := doJSON(t, s, http.MethodPost, "/api/v1/query/chart", map[string]interface{}{
		"chartKind":   "bar",
		"xField":      "region",
		"yField":      "sales",
		"aggregation": "sum",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.ChartResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, []string{"NA", "EU", "LATAM"}, result.Labels)
	require.Len(t, result.Series, 1)
	assert.Equal(t, []float64{80, 60, 10}, result.Series[0].Values)
	assert.Equal(t, 5, result.Metadata.TotalRecords)
	assert.False(t, result.Metadata.Reduction.Reduced)
}

func TestChartQuery_NoDataset(t *testing.T) {
	s := newTestServer(t)

	resp, _ := doJSON(t, s, http.MethodPost, "/api/v1/query/chart", map[string]interface{}{
		"chartKind":   "bar",
		"xField":      "region",
		"yField":      "sales",
		"aggregation": "sum",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChartQuery_UnknownFieldIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	uploadCSV(t, s, salesCSV)

	resp, raw := doJSON(t, s, http.MethodPost, "/api/v1/query/chart", map[string]interface{}{
		"chartKind":   "bar",
		"xField":      "ghost",
		"yField":      "sales",
		"aggregation": "sum",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Contains(t, body["error"], "ghost")
}

func TestChartQuery_SurfaceStampsGeneration(t *testing.T) {
	s := newTestServer(t)
	uploadCSV(t, s, salesCSV)

	query := map[string]interface{}{
		"chartKind":   "bar",
		"xField":      "region",
		"yField":      "sales",
		"aggregation": "sum",
		"surface":     "chart-1",
	}

	_, raw := doJSON(t, s, http.MethodPost, "/api/v1/query/chart", query)
	var first models.ChartResult
	require.NoError(t, json.Unmarshal(raw, &first))
	assert.Equal(t, uint64(1), first.Metadata.Generation)

	_, raw = doJSON(t, s, http.MethodPost, "/api/v1/query/chart", query)
	var second models.ChartResult
	require.NoError(t, json.Unmarshal(raw, &second))
	assert.Equal(t, uint64(2), second.Metadata.Generation)
	assert.False(t, second.Metadata.Stale)
}

// A surface that re-issues before the first request resolves must see the
// earlier request carry the lower generation, whatever order the two
// complete in.
func TestChartQuery_GenerationReflectsIssueOrder(t *testing.T) {
	s := newTestServer(t)
	uploadCSV(t, s, salesCSV)

	query := map[string]interface{}{
		"chartKind":   "bar",
		"xField":      "region",
		"yField":      "sales",
		"aggregation": "sum",
		"surface":     "chart-1",
	}

	firstDone := make(chan models.ChartResult, 1)
	go func() {
		body, _ := json.Marshal(query)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/query/chart", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		var res models.ChartResult
		resp, err := s.GetApp().Test(req, -1)
		if err != nil {
			t.Error(err)
			firstDone <- res
			return
		}
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &res); err != nil {
			t.Error(err)
		}
		firstDone <- res
	}()

	// Wait until the first request has reserved its generation, then
	// re-issue on the same surface.
	require.Eventually(t, func() bool {
		return s.seq.Current("chart-1") >= 1
	}, 5*time.Second, time.Millisecond)

	_, raw := doJSON(t, s, http.MethodPost, "/api/v1/query/chart", query)
	var second models.ChartResult
	require.NoError(t, json.Unmarshal(raw, &second))

	first := <-firstDone
	assert.Equal(t, uint64(1), first.Metadata.Generation)
	assert.Equal(t, uint64(2), second.Metadata.Generation)
	assert.False(t, second.Metadata.Stale)
}

// The slow-query case pinned down: issued first, finishing last. The
// response must keep its issue-time generation and come back flagged stale
// so a max-generation client discards it.
func TestStampGeneration_SlowQueryFinishingLastIsStale(t *testing.T) {
	s := newTestServer(t)

	slowGen := s.issueGeneration("table-1")
	fastGen := s.issueGeneration("table-1")

	var fast models.ChartMeta
	s.stampGeneration(&fast, "table-1", fastGen)
	assert.Equal(t, uint64(2), fast.Generation)
	assert.False(t, fast.Stale)

	var slow models.ChartMeta
	s.stampGeneration(&slow, "table-1", slowGen)
	assert.Equal(t, uint64(1), slow.Generation)
	assert.True(t, slow.Stale)
}

func TestProgressiveQuery(t *testing.T) {
	s := newTestServer(t)

	var sb strings.Builder
	sb.WriteString("t,value\n")
	for i := 0; i < 2000; i++ {
		sb.WriteString(strconv.Itoa(i) + "," + strconv.Itoa(i) + ".5\n")
	}
	uploadCSV(t, s, sb.String())

	resp, raw := doJSON(t, s, http.MethodPost, "/api/v1/query/progressive", map[string]interface{}{
		"chartKind":   "line",
		"xField":      "t",
		"yField":      "value",
		"aggregation": "sum",
		"sortBy":      "x",
		"sortOrder":   "asc",
		"zoomLevel":   0,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.ChartResult
	require.NoError(t, json.Unmarshal(raw, &result))
	// Zoom 0 grants 20% of the 500-point line budget.
	assert.LessOrEqual(t, len(result.Labels), 101)
	assert.True(t, result.Metadata.Reduction.Reduced)
}

func TestTableQuery_ClampAndWarning(t *testing.T) {
	s := newTestServer(t)

	var sb strings.Builder
	sb.WriteString("id\n")
	for i := 0; i < 2500; i++ {
		sb.WriteString(strconv.Itoa(i) + "\n")
	}
	uploadCSV(t, s, sb.String())

	resp, raw := doJSON(t, s, http.MethodPost, "/api/v1/query/table", map[string]interface{}{
		"page":     5,
		"pageSize": 5000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page models.TablePage
	require.NoError(t, json.Unmarshal(raw, &page))
	assert.Equal(t, 1000, page.PageSize)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	assert.Len(t, page.Rows, 500)
	assert.Contains(t, page.Warning, "clamped")
}

func TestClearDataset(t *testing.T) {
	s := newTestServer(t)
	uploadCSV(t, s, salesCSV)

	resp, _ := doJSON(t, s, http.MethodDelete, "/api/v1/datasets/current", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodGet, "/api/v1/datasets/current", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportArrowRoundTrip(t *testing.T) {
	s := newTestServer(t)
	uploadCSV(t, s, salesCSV)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/datasets/current/export", nil)
	resp, err := s.GetApp().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.apache.arrow.stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	upload := httptest.NewRequest(http.MethodPost, "/api/v1/datasets?name=sales&format=arrow", bytes.NewReader(raw))
	resp2, err := s.GetApp().Test(upload, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp2.StatusCode)
}

func TestLogsEndpoint(t *testing.T) {
	s := newTestServer(t)
	resp, raw := doJSON(t, s, http.MethodGet, "/api/v1/logs?limit=10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, float64(10), body["limit"])
}

