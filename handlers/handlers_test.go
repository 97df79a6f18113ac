package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorylens/database"
	"factorylens/models"
	"factorylens/services"
	"factorylens/websocket"
)

var testNow = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

type fakeExporter struct {
	exported *models.Dataset
	err      error
}

func (f *fakeExporter) ExportDataset(_ context.Context, ds *models.Dataset) (*database.ExportResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.exported = ds
	return &database.ExportResult{BatchID: "batch-1", Seed: ds.Seed, Rows: map[string]int64{"fl_qc_records": int64(len(ds.QCRecords))}}, nil
}

func (f *fakeExporter) LatestExport(context.Context) (*database.ExportResult, error) {
	if f.exported == nil {
		return nil, nil
	}
	return &database.ExportResult{BatchID: "batch-1", Seed: f.exported.Seed}, nil
}

func setupRouter(t *testing.T, exporter Exporter) (*gin.Engine, *services.Dashboard) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dashboard, err := services.NewDashboard(services.DashboardOptions{
		Seed:     42,
		Location: time.UTC,
		Clock:    func() time.Time { return testNow },
	})
	require.NoError(t, err)

	h := New(dashboard, websocket.NewHub(nil, nil), exporter, 42, nil)
	router := gin.New()
	h.RegisterRoutes(router)
	return router, dashboard
}

func do(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t, nil)
	w := do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestGetCatalog(t *testing.T) {
	router, _ := setupRouter(t, nil)
	w := do(t, router, http.MethodGet, "/api/catalog", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Factories []models.Factory        `json:"factories"`
		Lines     []models.ProductionLine `json:"lines"`
		Recipes   []models.Recipe         `json:"recipes"`
		Tariffs   []models.Tariff         `json:"tariffs"`
	}
	decode(t, w, &body)
	assert.Len(t, body.Factories, 4)
	assert.Len(t, body.Lines, 16)
	assert.Len(t, body.Recipes, 3)
	assert.Len(t, body.Tariffs, 3)
}

func TestSelectionRoundTrip(t *testing.T) {
	router, dashboard := setupRouter(t, nil)

	w := do(t, router, http.MethodPut, "/api/selection", map[string]string{"factory_id": "member-a", "range": "30d"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "member-a", dashboard.Selection().FactoryID)
	assert.Equal(t, models.Range30d, dashboard.Selection().Range)

	w = do(t, router, http.MethodGet, "/api/selection", nil)
	var body struct {
		Selection models.Selection `json:"selection"`
	}
	decode(t, w, &body)
	assert.Equal(t, models.ShiftA, body.Selection.Shift)
	assert.Equal(t, "member-a", body.Selection.FactoryID)
}

func TestUpdateSelectionRejectsBadKeyword(t *testing.T) {
	router, dashboard := setupRouter(t, nil)

	w := do(t, router, http.MethodPut, "/api/selection", map[string]string{"shift": "Z"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid selection")
	assert.Equal(t, models.DefaultSelection(), dashboard.Selection())
}

func TestGetDashboard(t *testing.T) {
	router, _ := setupRouter(t, nil)

	w := do(t, router, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var s services.Snapshot
	decode(t, w, &s)
	assert.Equal(t, models.DefaultSelection(), s.Selection)
	assert.Greater(t, s.QC.Inspected, 0)
	assert.Len(t, s.OEE.Lines, 4)
	assert.Len(t, s.Benchmark.Factories, 4)
}

func TestQueryOverridesDoNotPersist(t *testing.T) {
	router, dashboard := setupRouter(t, nil)

	w := do(t, router, http.MethodGet, "/api/qc?factory_id=member-b&shift=B&product=B&range=today", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Selection models.Selection   `json:"selection"`
		Summary   services.QCSummary `json:"summary"`
	}
	decode(t, w, &body)
	assert.Equal(t, "member-b", body.Selection.FactoryID)
	assert.Equal(t, models.RangeToday, body.Selection.Range)
	assert.Len(t, body.Summary.Matrix, 9)
	assert.Equal(t, models.DefaultSelection(), dashboard.Selection())

	w = do(t, router, http.MethodGet, "/api/oee?range=1y", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSectionEndpoints(t *testing.T) {
	router, _ := setupRouter(t, nil)
	tests := []struct {
		path string
		keys []string
	}{
		{"/api/oee", []string{"lines", "overall", "trend"}},
		{"/api/downtime", []string{"pareto", "scatter"}},
		{"/api/energy", []string{"trend", "cost", "live"}},
		{"/api/alerts", []string{"recent", "monitor", "count"}},
		{"/api/benchmark", []string{"benchmark"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := do(t, router, http.MethodGet, tt.path, nil)
			require.Equal(t, http.StatusOK, w.Code)
			var body map[string]json.RawMessage
			decode(t, w, &body)
			for _, k := range tt.keys {
				assert.Contains(t, body, k)
			}
		})
	}
}

func TestUnknownFactoryIsEmptyNotError(t *testing.T) {
	router, _ := setupRouter(t, nil)

	w := do(t, router, http.MethodGet, "/api/oee?factory_id=nowhere", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Lines   []services.LineOEE  `json:"lines"`
		Overall services.FactoryOEE `json:"overall"`
	}
	decode(t, w, &body)
	assert.Empty(t, body.Lines)
	assert.Zero(t, body.Overall.OEE)
}

func TestResetDataset(t *testing.T) {
	router, dashboard := setupRouter(t, nil)

	w := do(t, router, http.MethodPost, "/api/dataset/reset", map[string]int64{"seed": 7})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(7), dashboard.Dataset().Seed)

	w = do(t, router, http.MethodPost, "/api/dataset/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(42), dashboard.Dataset().Seed)

	w = do(t, router, http.MethodPost, "/api/dataset/reset", "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestThresholds(t *testing.T) {
	router, dashboard := setupRouter(t, nil)

	w := do(t, router, http.MethodGet, "/api/thresholds", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"max_qc_fail_rate":0.05`)

	update := models.KPIThresholds{MaxQCFailRate: 0.1, MinPressureBar: 6.5, MaxEnergyIntensity: 0.2}
	w = do(t, router, http.MethodPut, "/api/thresholds", update)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, update, dashboard.Monitor().GetThresholds())

	w = do(t, router, http.MethodPut, "/api/thresholds", models.KPIThresholds{MaxQCFailRate: 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, update, dashboard.Monitor().GetThresholds())
}

func TestExportDisabled(t *testing.T) {
	router, _ := setupRouter(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, router, http.MethodPost, "/api/export", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, router, http.MethodGet, "/api/export", nil).Code)
}

func TestExport(t *testing.T) {
	exporter := &fakeExporter{}
	router, dashboard := setupRouter(t, exporter)

	w := do(t, router, http.MethodPost, "/api/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Same(t, dashboard.Dataset(), exporter.exported)
	assert.Contains(t, w.Body.String(), `"batch_id":"batch-1"`)

	w = do(t, router, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"seed":42`)
}

func TestExportFailure(t *testing.T) {
	router, _ := setupRouter(t, &fakeExporter{err: errors.New("connection refused")})

	w := do(t, router, http.MethodPost, "/api/export", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestSystemHealth(t *testing.T) {
	router, _ := setupRouter(t, nil)
	w := do(t, router, http.MethodGet, "/api/system/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	decode(t, w, &body)
	assert.Contains(t, body, "dataset")
	assert.Contains(t, body, "thresholds")
	assert.JSONEq(t, `{"enabled":false}`, string(body["export"]))
}
