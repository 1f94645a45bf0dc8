//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/diligence-dashboard/internal/auth"
	"github.com/sells-group/diligence-dashboard/internal/dashboard"
	"github.com/sells-group/diligence-dashboard/internal/model"
	"github.com/sells-group/diligence-dashboard/internal/overlay"
	"github.com/sells-group/diligence-dashboard/internal/store"
)

type stubOpener struct{ body string }

func (s stubOpener) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.body)), nil
}

const routerCSV = `company_name,state,investment_grade,metrics
Acme Roofing,TX,B,"[{""metric_name"":""est_annual_revenue"",""metric"":""$5M"",""citations"":[]}]"
Beta/Roofs,OK,A,
Cedar Roofing,TX,C,"[{""metric_name"":""est_annual_revenue"",""metric"":""$12M"",""citations"":[]}]"
`

func newTestRouter(t *testing.T, opts routerOptions) (http.Handler, store.Store) {
	t.Helper()
	st := store.NewMemory()
	d, err := dashboard.New(context.Background(), dashboard.Options{
		Source: "data.csv",
		Opener: stubOpener{body: routerCSV},
		Store:  st,
	})
	require.NoError(t, err)
	d.Reload(context.Background())

	params := auth.NewStaticParameterStore(map[string]string{
		"/u": "admin",
		"/p": "secret",
	})
	return buildRouter(d, auth.NewVerifier(params, "/u", "/p"), opts), st
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeState(t *testing.T, rr *httptest.ResponseRecorder) dashboard.State {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var s dashboard.State
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &s))
	return s
}

func rowCompanies(s dashboard.State) []string {
	out := make([]string, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r.Company
	}
	return out
}

func TestRouter_Health(t *testing.T) {
	h, _ := newTestRouter(t, routerOptions{})

	rr := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))
}

func TestRouter_RequestIDReused(t *testing.T) {
	h, _ := newTestRouter(t, routerOptions{})

	id := "0b7f7a36-3c6b-4f43-9f0e-2f1f6c1f6f1a"
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, id)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, id, rr.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "not-a-uuid")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.NotEqual(t, "not-a-uuid", rr.Header().Get(requestIDHeader))
}

func TestRouter_Auth(t *testing.T) {
	h, _ := newTestRouter(t, routerOptions{})

	tests := []struct {
		name   string
		body   any
		status int
		valid  bool
		msg    string
	}{
		{"valid", auth.Credentials{Username: "admin", Password: "secret"}, http.StatusOK, true, auth.MsgSuccess},
		{"wrong password", auth.Credentials{Username: "admin", Password: "nope"}, http.StatusOK, false, auth.MsgInvalid},
		{"missing field", auth.Credentials{Username: "admin"}, http.StatusBadRequest, false, auth.MsgMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/auth", tt.body)
			assert.Equal(t, tt.status, rr.Code)

			var res auth.Result
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, tt.msg, res.Message)
		})
	}
}

func TestRouter_AuthBadBody(t *testing.T) {
	h, _ := newTestRouter(t, routerOptions{})

	req := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var res auth.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.False(t, res.Valid)
}

func TestRouter_AuthLookupFailure(t *testing.T) {
	d, err := dashboard.New(context.Background(), dashboard.Options{Opener: stubOpener{}, Store: store.NewMemory()})
	require.NoError(t, err)
	h := buildRouter(d, auth.NewVerifier(auth.NewStaticParameterStore(nil), "/u", "/p"), routerOptions{})

	rr := do(t, h, http.MethodPost, "/auth", auth.Credentials{Username: "a", Password: "b"})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var res auth.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.False(t, res.Valid)
	assert.Equal(t, auth.MsgUnavailable, res.Message)
}

func TestRouter_StateAndReload(t *testing.T) {
	h, _ := newTestRouter(t, routerOptions{})

	s := decodeState(t, do(t, h, http.MethodGet, "/api/state", nil))
	assert.True(t, s.Loaded)
	assert.Equal(t, 3, s.Total)

	s = decodeState(t, do(t, h, http.MethodPost, "/api/reload", nil))
	assert.Equal(t, 3, s.Total)
}

func TestRouter_FilterAndSort(t *testing.T) {
	h, _ := newTestRouter(t, routerOptions{})

	s := decodeState(t, do(t, h, http.MethodPut, "/api/filters/state", map[string]string{"text": "tx"}))
	assert.Equal(t, []string{"Acme Roofing", "Cedar Roofing"}, rowCompanies(s))

	s = decodeState(t, do(t, h, http.MethodPut, "/api/sort", map[string]string{
		"column":    model.MetricRevenue,
		"direction": "desc",
	}))
	assert.Equal(t, []string{"Cedar Roofing", "Acme Roofing"}, rowCompanies(s))

	s = decodeState(t, do(t, h, http.MethodPost, "/api/sort/"+model.MetricRevenue+"/toggle", nil))
	assert.Equal(t, []string{"Acme Roofing", "Cedar Roofing"}, rowCompanies(s))

	s = decodeState(t, do(t, h, http.MethodDelete, "/api/filters", nil))
	assert.Len(t, s.Rows, 3)

	s = decodeState(t, do(t, h, http.MethodPut, "/api/sort", map[string]string{"column": ""}))
	assert.Empty(t, s.Sort.Column)
	assert.Equal(t, []string{"Acme Roofing", "Beta/Roofs", "Cedar Roofing"}, rowCompanies(s))
}

func TestRouter_FilterUnknownColumn(t *testing.T) {
	h, _ := newTestRouter(t, routerOptions{})

	rr := do(t, h, http.MethodPut, "/api/filters/nope", map[string]string{"text": "x"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "error")
}

func TestRouter_OverrideAndVerify(t *testing.T) {
	h, st := newTestRouter(t, routerOptions{})

	// Company names are path-escaped by the client.
	path := "/api/overrides/Beta%2FRoofs/" + model.MetricRevenue
	s := decodeState(t, do(t, h, http.MethodPut, path, map[string]string{"value": "$7M"}))
	for _, r := range s.Rows {
		if r.Company == "Beta/Roofs" {
			assert.Equal(t, "$7M", r.Cells[model.MetricRevenue].Value)
			assert.True(t, r.Cells[model.MetricRevenue].Edited)
		}
	}

	data, err := st.Get(context.Background(), store.KeyEdited)
	require.NoError(t, err)
	assert.Contains(t, string(data), "$7M")

	s = decodeState(t, do(t, h, http.MethodPost, "/api/verified/Acme%20Roofing/state/toggle", nil))
	assert.True(t, s.Rows[0].Cells[model.FieldState].Verified)

	s = decodeState(t, do(t, h, http.MethodDelete, path, nil))
	for _, r := range s.Rows {
		if r.Company == "Beta/Roofs" {
			assert.False(t, r.Cells[model.MetricRevenue].Edited)
		}
	}

	s = decodeState(t, do(t, h, http.MethodDelete, "/api/overlay", nil))
	assert.False(t, s.Rows[0].Cells[model.FieldState].Verified)
}

func TestRouter_OverrideErrors(t *testing.T) {
	h, _ := newTestRouter(t, routerOptions{})

	rr := do(t, h, http.MethodPut, "/api/overrides/Nobody/"+model.MetricRevenue, map[string]string{"value": "x"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodPut, "/api/overrides/Acme%20Roofing/state", map[string]string{"value": "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPut, "/api/overrides/Acme%20Roofing/"+model.MetricRevenue, strings.NewReader("nope"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_EditDraft(t *testing.T) {
	h, st := newTestRouter(t, routerOptions{})
	base := "/api/overrides/Acme%20Roofing/" + model.MetricRevenue

	rr := do(t, h, http.MethodGet, base+"/draft", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var draft overlay.Draft
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &draft))
	assert.Equal(t, overlay.Draft{Company: "Acme Roofing", Field: model.MetricRevenue, Text: "$5M"}, draft)

	// Unchanged text commits nothing.
	s := decodeState(t, do(t, h, http.MethodPost, base+"/commit", map[string]string{"text": "$5M"}))
	assert.False(t, s.Rows[0].Cells[model.MetricRevenue].Edited)
	data, err := st.Get(context.Background(), store.KeyEdited)
	require.NoError(t, err)
	assert.Nil(t, data)

	s = decodeState(t, do(t, h, http.MethodPost, base+"/commit", map[string]string{"text": "$9M"}))
	assert.Equal(t, "$9M", s.Rows[0].Cells[model.MetricRevenue].Value)
	assert.True(t, s.Rows[0].Cells[model.MetricRevenue].Edited)

	rr = do(t, h, http.MethodPost, base+"/commit", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/overrides/Acme%20Roofing/state/draft", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/overrides/Nobody/"+model.MetricRevenue+"/commit", map[string]string{"text": "x"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_Columns(t *testing.T) {
	h, st := newTestRouter(t, routerOptions{})

	s := decodeState(t, do(t, h, http.MethodPost, "/api/columns/state/toggle", nil))
	for _, c := range s.Visible() {
		assert.NotEqual(t, model.FieldState, c.Key)
	}
	data, err := st.Get(context.Background(), store.KeyColumnSettings)
	require.NoError(t, err)
	assert.NotNil(t, data)

	first := s.Columns[0].Key
	s = decodeState(t, do(t, h, http.MethodPost, "/api/columns/move", map[string]int{"from": 0, "to": 2}))
	assert.Equal(t, first, s.Columns[2].Key)

	rr := do(t, h, http.MethodPost, "/api/columns/move", map[string]int{"from": 0, "to": 999})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/columns/move", map[string]int{"from": 0})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/columns/nope/toggle", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	s = decodeState(t, do(t, h, http.MethodPost, "/api/columns/reset", nil))
	assert.Equal(t, first, s.Columns[0].Key)
}

func TestRouter_ExportCSV(t *testing.T) {
	h, _ := newTestRouter(t, routerOptions{})

	decodeState(t, do(t, h, http.MethodPut, "/api/filters/state", map[string]string{"text": "OK"}))

	rr := do(t, h, http.MethodGet, "/api/export.csv", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, contentTypeCSV, rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="roofing_companies.csv"`, rr.Header().Get("Content-Disposition"))

	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "company_name,state,"))
	assert.True(t, strings.HasPrefix(lines[1], "Beta/Roofs,OK,"))
}

func TestRouter_ExportXLSX(t *testing.T) {
	h, _ := newTestRouter(t, routerOptions{ExportFilename: "companies.csv"})

	rr := do(t, h, http.MethodGet, "/api/export.xlsx", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, contentTypeXLSX, rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="companies.xlsx"`, rr.Header().Get("Content-Disposition"))

	f, err := xlsx.OpenBinary(rr.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	assert.Len(t, f.Sheets[0].Rows, 4)
}

func TestRouter_CORS(t *testing.T) {
	h, _ := newTestRouter(t, routerOptions{AllowedOrigins: []string{"https://dash.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/state", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://dash.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_StaticDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>dash</h1>"), 0o644))
	h, _ := newTestRouter(t, routerOptions{StaticDir: dir})

	rr := do(t, h, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "dash")

	rr = do(t, h, http.MethodGet, "/api/state", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestXLSXName(t *testing.T) {
	assert.Equal(t, "roofing_companies.xlsx", xlsxName("roofing_companies.csv"))
	assert.Equal(t, "out.xlsx", xlsxName("out.xlsx"))
	assert.Equal(t, "roofing_companies.xlsx", xlsxName(".csv"))
}
