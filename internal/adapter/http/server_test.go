package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/pollution-reports/internal/adapter/http"
	"github.com/couchcryptid/pollution-reports/internal/domain"
	"github.com/couchcryptid/pollution-reports/internal/observability"
	"github.com/couchcryptid/pollution-reports/internal/storage"
	"github.com/couchcryptid/pollution-reports/internal/store"
	"github.com/couchcryptid/pollution-reports/internal/view"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

// flakyKV fails every Set while failing is true.
type flakyKV struct {
	*storage.MemoryKV
	failing bool
}

func (f *flakyKV) Set(ctx context.Context, key, value string) error {
	if f.failing {
		return errors.New("quota exceeded")
	}
	return f.MemoryKV.Set(ctx, key, value)
}

type apiFixture struct {
	srv     *httpadapter.Server
	store   *store.Store
	kv      *flakyKV
	clock   *clockwork.FakeClock
	metrics *observability.Metrics
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(readyErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", httpadapter.Dependencies{Ready: &mockReadiness{err: readyErr}}, discardLogger())
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	logger := discardLogger()
	kv := &flakyKV{MemoryKV: storage.NewMemoryKV()}
	m := observability.NewMetricsForTesting()
	s := store.New(context.Background(), storage.NewAdapter(kv, "", logger), logger, m)
	fc := clockwork.NewFakeClock()
	renderer := view.NewRenderer(s, view.NewTable(fc, 300*time.Millisecond))

	srv := httpadapter.NewServer(":0", httpadapter.Dependencies{
		Ready:   &mockReadiness{},
		Reports: s,
		Views:   renderer,
		Metrics: m,
	}, logger)
	return &apiFixture{srv: srv, store: s, kv: kv, clock: fc, metrics: m}
}

func (f *apiFixture) do(t *testing.T, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, "/api/v1/reports", "application/json", body)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type createBody struct {
	Report domain.Report `json:"report"`
	View   view.View     `json:"view"`
}

type deleteBody struct {
	Removed bool      `json:"removed"`
	View    view.View `json:"view"`
}

type errorBody struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// --- operational endpoints ---

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("not ready yet"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAPINotMountedWithoutReports(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/summary", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- report API ---

func TestCreateReport_JSON(t *testing.T) {
	f := newAPI(t)

	rec := f.post(t, `{"place":"Center","type":"Noise","level":80,"date":"2024-01-01","comment":" loud "}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode[createBody](t, rec)
	assert.Equal(t, "loud", body.Report.Comment)
	assert.Equal(t, 80, body.Report.Level)
	assert.NotEmpty(t, body.Report.ID)

	require.Len(t, body.View.Rows, 1)
	assert.Equal(t, view.TransitionEntering, body.View.Rows[0].Transition)
	assert.Equal(t, "lvl-high", body.View.Rows[0].LevelClass)
	assert.Equal(t, "80.0", body.View.Summary.MeanText)
	assert.Equal(t, "bad", body.View.Summary.TierClass)

	assert.Len(t, f.store.List(), 1)
}

func TestCreateReport_LevelAsString(t *testing.T) {
	f := newAPI(t)
	rec := f.post(t, `{"place":"Center","type":"Air","level":"34","date":"2024-01-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 34, decode[createBody](t, rec).Report.Level)
}

func TestCreateReport_Form(t *testing.T) {
	f := newAPI(t)
	form := url.Values{"place": {"North"}, "type": {"Water"}, "level": {"12"}, "date": {"2024-03-03"}}

	rec := f.do(t, http.MethodPost, "/api/v1/reports", "application/x-www-form-urlencoded", form.Encode())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode[createBody](t, rec)
	assert.Equal(t, "North", body.Report.Place)
	assert.Equal(t, "lvl-low", body.View.Rows[0].LevelClass)
}

func TestCreateReport_ValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"level out of range", `{"place":"Center","type":"Noise","level":150,"date":"2024-01-01"}`, domain.FieldLevel},
		{"level not a number", `{"place":"Center","type":"Noise","level":"abc","date":"2024-01-01"}`, domain.FieldLevel},
		{"level missing", `{"place":"Center","type":"Noise","date":"2024-01-01"}`, domain.FieldLevel},
		{"place missing", `{"type":"Noise","level":5,"date":"2024-01-01"}`, domain.FieldPlace},
		{"type missing", `{"place":"Center","level":5,"date":"2024-01-01"}`, domain.FieldType},
		{"date missing", `{"place":"Center","type":"Noise","level":5}`, domain.FieldDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPI(t)
			rec := f.post(t, tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

			body := decode[errorBody](t, rec)
			assert.Equal(t, tt.field, body.Field)
			assert.NotEmpty(t, body.Error)
			assert.Empty(t, f.store.List())
			assert.InDelta(t, 1.0, testutil.ToFloat64(f.metrics.ValidationErrors.WithLabelValues(tt.field)), 0)
		})
	}
}

func TestCreateReport_MalformedJSON(t *testing.T) {
	f := newAPI(t)
	rec := f.post(t, `{"place":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.store.List())
}

func TestCreateReport_UnexpectedValidatorErrorNeverStores(t *testing.T) {
	logger := discardLogger()
	m := observability.NewMetricsForTesting()
	s := store.New(context.Background(), storage.NewAdapter(storage.NewMemoryKV(), "", logger), logger, m)
	srv := httpadapter.NewServer(":0", httpadapter.Dependencies{
		Reports: s,
		Views:   view.NewRenderer(s, view.NewTable(clockwork.NewFakeClock(), 300*time.Millisecond)),
		Metrics: m,
		Validate: func(domain.RawInput) (domain.ReportInput, error) {
			return domain.ReportInput{}, errors.New("validator unavailable")
		},
	}, logger)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports",
		strings.NewReader(`{"place":"Center","type":"Noise","level":80,"date":"2024-01-01"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "validator unavailable", body.Error)
	assert.Empty(t, body.Field)
	assert.Empty(t, s.List())
	assert.Equal(t, 0, testutil.CollectAndCount(m.ValidationErrors))
}

func TestCreateReport_PersistFailure(t *testing.T) {
	f := newAPI(t)
	f.kv.failing = true

	rec := f.post(t, `{"place":"Center","type":"Noise","level":80,"date":"2024-01-01"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, decode[errorBody](t, rec).Error)
	assert.Empty(t, f.store.List())
}

func TestDeleteReport(t *testing.T) {
	f := newAPI(t)
	first := decode[createBody](t, f.post(t, `{"place":"A","type":"Noise","level":10,"date":"2024-01-01"}`)).Report
	second := decode[createBody](t, f.post(t, `{"place":"B","type":"Noise","level":90,"date":"2024-01-01"}`)).Report

	rec := f.do(t, http.MethodDelete, "/api/v1/reports/"+first.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[deleteBody](t, rec)
	assert.True(t, body.Removed)
	require.Len(t, body.View.Rows, 2, "removed row lingers while it exits")
	assert.Equal(t, first.ID, body.View.Rows[0].ID)
	assert.Equal(t, view.TransitionExiting, body.View.Rows[0].Transition)
	assert.Equal(t, 1, body.View.Summary.Count)
	assert.Equal(t, "90.0", body.View.Summary.MeanText)

	f.clock.Advance(300 * time.Millisecond)
	rec = f.do(t, http.MethodGet, "/api/v1/view", "", "")
	v := decode[view.View](t, rec)
	require.Len(t, v.Rows, 1)
	assert.Equal(t, second.ID, v.Rows[0].ID)
}

func TestDeleteReport_MissingIsNoOp(t *testing.T) {
	f := newAPI(t)
	_ = f.post(t, `{"place":"A","type":"Noise","level":10,"date":"2024-01-01"}`)

	rec := f.do(t, http.MethodDelete, "/api/v1/reports/nope", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[deleteBody](t, rec)
	assert.False(t, body.Removed)
	assert.Len(t, body.View.Rows, 1)
}

func TestDeleteReport_PersistFailure(t *testing.T) {
	f := newAPI(t)
	r := decode[createBody](t, f.post(t, `{"place":"A","type":"Noise","level":10,"date":"2024-01-01"}`)).Report
	f.kv.failing = true

	rec := f.do(t, http.MethodDelete, "/api/v1/reports/"+r.ID, "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Len(t, f.store.List(), 1)
}

func TestListReports_Filtered(t *testing.T) {
	f := newAPI(t)
	_ = f.post(t, `{"place":"A","type":"Noise","level":10,"date":"2024-01-01"}`)
	_ = f.post(t, `{"place":"B","type":"Air","level":90,"date":"2024-01-01"}`)
	_ = f.post(t, `{"place":"C","type":"Noise","level":80,"date":"2024-01-01"}`)

	type listBody struct {
		Filter  domain.Filter   `json:"filter"`
		Reports []domain.Report `json:"reports"`
	}

	body := decode[listBody](t, f.do(t, http.MethodGet, "/api/v1/reports", "", ""))
	assert.Len(t, body.Reports, 3)
	assert.Equal(t, domain.AllReports, body.Filter)

	body = decode[listBody](t, f.do(t, http.MethodGet, "/api/v1/reports?type=Noise&level=high", "", ""))
	require.Len(t, body.Reports, 1)
	assert.Equal(t, "C", body.Reports[0].Place)

	body = decode[listBody](t, f.do(t, http.MethodGet, "/api/v1/reports?type=Soil", "", ""))
	assert.NotNil(t, body.Reports)
	assert.Empty(t, body.Reports)

	rec := f.do(t, http.MethodGet, "/api/v1/reports?level=extreme", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummary(t *testing.T) {
	f := newAPI(t)

	type summaryBody struct {
		Aggregate domain.Aggregation `json:"aggregate"`
		Summary   view.Summary       `json:"summary"`
	}

	empty := decode[summaryBody](t, f.do(t, http.MethodGet, "/api/v1/summary", "", ""))
	assert.Equal(t, 0, empty.Aggregate.Count)
	assert.Equal(t, "0.0", empty.Summary.MeanText)
	assert.Empty(t, empty.Summary.Recommendation)

	_ = f.post(t, `{"place":"A","type":"Noise","level":10,"date":"2024-01-01"}`)
	_ = f.post(t, `{"place":"B","type":"Air","level":90,"date":"2024-01-01"}`)

	got := decode[summaryBody](t, f.do(t, http.MethodGet, "/api/v1/summary", "", ""))
	assert.Equal(t, 2, got.Aggregate.Count)
	assert.InDelta(t, 50.0, got.Aggregate.MeanLevel, 1e-9)
	assert.Equal(t, domain.BucketMid, got.Aggregate.Tier)
	assert.Equal(t, "warn", got.Summary.TierClass)
	assert.Equal(t, domain.BucketMid.Recommendation(), got.Summary.Recommendation)
}

func TestView_FilterChange(t *testing.T) {
	f := newAPI(t)
	_ = f.post(t, `{"place":"A","type":"Noise","level":10,"date":"2024-01-01"}`)
	_ = f.post(t, `{"place":"B","type":"Air","level":90,"date":"2024-01-01"}`)

	v := decode[view.View](t, f.do(t, http.MethodGet, "/api/v1/view?type=Air", "", ""))
	require.Len(t, v.Rows, 1)
	assert.Equal(t, "B", v.Rows[0].Place)
	assert.Equal(t, view.TransitionNone, v.Rows[0].Transition)
	assert.Equal(t, 2, v.Summary.Count, "summary covers the whole collection")

	// A plain read keeps the session's filter.
	v = decode[view.View](t, f.do(t, http.MethodGet, "/api/v1/view", "", ""))
	assert.Equal(t, domain.Filter{Type: "Air", Level: domain.FilterAll}, v.Filter)
	assert.Len(t, v.Rows, 1)

	rec := f.do(t, http.MethodGet, "/api/v1/view?level=nope", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
