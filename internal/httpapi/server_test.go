package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"transfer-planner/internal/domain"
	"transfer-planner/internal/runner"
	"transfer-planner/internal/warehouse"
)

type fakeSource struct {
	sales []warehouse.SaleRow
	stock []warehouse.StockRow
	gate  chan struct{}
}

func (f *fakeSource) FetchSales(ctx context.Context, months int) ([]warehouse.SaleRow, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return f.sales, nil
}

func (f *fakeSource) FetchStock(ctx context.Context) ([]warehouse.StockRow, error) {
	return f.stock, nil
}

type fakeRunStore struct {
	runs []domain.RunRecord
	err  error
}

func (f *fakeRunStore) Recent(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

type fakeDiagnoser struct {
	report domain.DiagnosticReport
}

func (f *fakeDiagnoser) Run(ctx context.Context) domain.DiagnosticReport { return f.report }

func sampleRows() ([]warehouse.SaleRow, []warehouse.StockRow) {
	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	sales := []warehouse.SaleRow{
		{Classification: "PRENDAS", StoreName: "CALI UNICO", Reference: "1234567", Size: "6M", Units: 4, Date: day, Range: "BEBES"},
	}
	stock := []warehouse.StockRow{
		{StoreName: "BODEGA PRINCIPAL", Reference: "1234567", Size: "6M", OnHand: 20, Range: "BEBES"},
		{StoreName: "CALI UNICO", Reference: "1234567", Size: "6M", OnHand: 1, Range: "BEBES"},
	}
	return sales, stock
}

func newTestServer(t *testing.T, src runner.DataSource) (*httptest.Server, Server) {
	t.Helper()
	outputDir := t.TempDir()
	opts := runner.Options{
		OutputDir:         outputDir,
		StoreCatalogPath:  filepath.Join(outputDir, "missing_stores.csv"),
		DeliveryTimesPath: filepath.Join(outputDir, "missing_delivery.csv"),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := Server{
		Runner:       runner.New(src, nil, opts, log),
		OutputDir:    outputDir,
		HistoryLimit: 50,
	}
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts, s
}

func getStatus(t *testing.T, ts *httptest.Server) domain.JobStatus {
	t.Helper()
	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/status = %d", resp.StatusCode)
	}
	var st domain.JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	return st
}

func waitDone(t *testing.T, ts *httptest.Server) domain.JobStatus {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		st := getStatus(t, ts)
		if !st.Running && (st.Progress > 0 || st.Error != "") {
			return st
		}
		select {
		case <-deadline:
			t.Fatalf("run did not finish, status %+v", st)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStatusIdle(t *testing.T) {
	ts, _ := newTestServer(t, &fakeSource{})
	st := getStatus(t, ts)
	if st.Running || st.Progress != 0 || st.OutputFiles == nil {
		t.Errorf("idle status = %+v", st)
	}
}

// The status payload always carries every contract field, even when
// empty, so clients can rely on key presence.
func TestStatusPayloadKeys(t *testing.T) {
	ts, _ := newTestServer(t, &fakeSource{})
	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	for _, key := range []string{"running", "progress", "stage", "error", "output_files"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("status payload missing %q key: %v", key, raw)
		}
	}
}

func TestGenerateAndDownload(t *testing.T) {
	sales, stock := sampleRows()
	ts, _ := newTestServer(t, &fakeSource{sales: sales, stock: stock})

	resp, err := http.Post(ts.URL+"/api/generate", "application/json",
		strings.NewReader(`{"meses":2,"dias_min":7,"dias_max":14,"safety_ratio":0.3}`))
	if err != nil {
		t.Fatalf("POST /api/generate: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /api/generate = %d", resp.StatusCode)
	}

	st := waitDone(t, ts)
	if st.Error != "" {
		t.Fatalf("run failed: %s", st.Error)
	}
	if len(st.OutputFiles) == 0 {
		t.Fatal("no output files reported")
	}

	dl, err := http.Get(ts.URL + "/api/download/" + st.OutputFiles[0])
	if err != nil {
		t.Fatalf("GET download: %v", err)
	}
	defer dl.Body.Close()
	if dl.StatusCode != http.StatusOK {
		t.Fatalf("GET download = %d", dl.StatusCode)
	}
	if ct := dl.Header.Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("Content-Type = %q", ct)
	}
	body, err := io.ReadAll(dl.Body)
	if err != nil {
		t.Fatalf("reading download: %v", err)
	}
	if len(body) == 0 {
		t.Error("empty workbook download")
	}
}

func TestGenerateInvalidWindow(t *testing.T) {
	ts, _ := newTestServer(t, &fakeSource{})
	resp, err := http.Post(ts.URL+"/api/generate", "application/json",
		strings.NewReader(`{"dias_min":14,"dias_max":7}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if st := getStatus(t, ts); st.Running {
		t.Error("invalid request started a run")
	}
}

func TestGenerateBadJSON(t *testing.T) {
	ts, _ := newTestServer(t, &fakeSource{})
	resp, err := http.Post(ts.URL+"/api/generate", "application/json", strings.NewReader(`{`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerateConflict(t *testing.T) {
	sales, stock := sampleRows()
	src := &fakeSource{sales: sales, stock: stock, gate: make(chan struct{})}
	ts, _ := newTestServer(t, src)

	resp, err := http.Post(ts.URL+"/api/generate", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("first POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("first POST = %d", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/api/generate", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("second POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second POST = %d, want 409", resp.StatusCode)
	}

	close(src.gate)
	waitDone(t, ts)
}

func TestDownloadRejectsTraversal(t *testing.T) {
	ts, s := newTestServer(t, &fakeSource{})
	secret := filepath.Join(filepath.Dir(s.OutputDir), "secret.txt")
	if err := os.WriteFile(secret, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(ts.URL + "/api/download/..%2Fsecret.txt")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		t.Errorf("traversal download = %d", resp.StatusCode)
	}
}

func TestDownloadMissingFile(t *testing.T) {
	ts, _ := newTestServer(t, &fakeSource{})
	resp, err := http.Get(ts.URL + "/api/download/absent.xlsx")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestReset(t *testing.T) {
	sales, stock := sampleRows()
	src := &fakeSource{sales: sales, stock: stock, gate: make(chan struct{})}
	ts, _ := newTestServer(t, src)

	resp, err := http.Post(ts.URL+"/api/generate", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/reset", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /api/reset: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("DELETE /api/reset = %d", resp.StatusCode)
	}
	close(src.gate)

	if st := getStatus(t, ts); st.Running {
		t.Errorf("status after reset = %+v", st)
	}
}

func TestRuns(t *testing.T) {
	_, s := newTestServer(t, &fakeSource{})

	recs := []domain.RunRecord{
		{ID: "b", State: domain.RunStateFailed, Error: "boom"},
		{ID: "a", State: domain.RunStateCompleted, OutputFiles: []string{"x.xlsx"}},
	}
	srv := Server{Runner: s.Runner, Runs: &fakeRunStore{runs: recs}, OutputDir: s.OutputDir, HistoryLimit: 50}
	ts2 := httptest.NewServer(srv.Router())
	defer ts2.Close()

	resp, err := http.Get(ts2.URL + "/api/runs?limit=1")
	if err != nil {
		t.Fatalf("GET /api/runs: %v", err)
	}
	defer resp.Body.Close()
	var got []domain.RunRecord
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decoding runs: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("runs = %+v", got)
	}

	resp, err = http.Get(ts2.URL + "/api/runs?limit=zero")
	if err != nil {
		t.Fatalf("GET /api/runs: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", resp.StatusCode)
	}
}

func TestRunsWithoutStore(t *testing.T) {
	ts, _ := newTestServer(t, &fakeSource{})
	resp, err := http.Get(ts.URL + "/api/runs")
	if err != nil {
		t.Fatalf("GET /api/runs: %v", err)
	}
	defer resp.Body.Close()
	var got []domain.RunRecord
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decoding runs: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("runs = %+v", got)
	}
}

func TestDiagnostics(t *testing.T) {
	_, s := newTestServer(t, &fakeSource{})
	srv := Server{
		Runner:    s.Runner,
		OutputDir: s.OutputDir,
		Checker: &fakeDiagnoser{report: domain.DiagnosticReport{
			HasFailures: true,
			Items:       []domain.DiagnosticItem{{ID: "warehouse_db", Status: domain.DiagnosticStatusFail}},
		}},
	}
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/diagnostics")
	if err != nil {
		t.Fatalf("GET /api/diagnostics: %v", err)
	}
	defer resp.Body.Close()
	var report domain.DiagnosticReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if !report.HasFailures || len(report.Items) != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, &fakeSource{})
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /healthz = %d", resp.StatusCode)
	}
}
