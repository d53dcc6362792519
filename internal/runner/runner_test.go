package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"transfer-planner/internal/domain"
	"transfer-planner/internal/warehouse"
)

type fakeSource struct {
	sales    []warehouse.SaleRow
	stock    []warehouse.StockRow
	salesErr error
	gate     chan struct{}
	started  chan struct{}
}

func (f *fakeSource) FetchSales(ctx context.Context, months int) ([]warehouse.SaleRow, error) {
	if f.started != nil {
		close(f.started)
		f.started = nil
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if f.salesErr != nil {
		return nil, f.salesErr
	}
	return f.sales, nil
}

func (f *fakeSource) FetchStock(ctx context.Context) ([]warehouse.StockRow, error) {
	return f.stock, nil
}

type fakeRecorder struct {
	recs chan domain.RunRecord
}

func (f *fakeRecorder) Record(ctx context.Context, rec domain.RunRecord) error {
	f.recs <- rec
	return nil
}

func sampleRows() ([]warehouse.SaleRow, []warehouse.StockRow) {
	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	sales := []warehouse.SaleRow{
		{Classification: "PRENDAS", StoreName: "CALI UNICO", Reference: "1234567", Size: "6M", Units: 4, Date: day, Range: "BEBES"},
		{Classification: "PRENDAS", StoreName: "CALI UNICO", Reference: "1234567", Size: "6M", Units: 2, Date: day.AddDate(0, 0, 1), Range: "BEBES"},
	}
	stock := []warehouse.StockRow{
		{StoreName: "BODEGA PRINCIPAL", Reference: "1234567", Size: "6M", OnHand: 20, Range: "BEBES"},
		{StoreName: "CALI UNICO", Reference: "1234567", Size: "6M", OnHand: 1, Range: "BEBES"},
	}
	return sales, stock
}

func newTestRunner(t *testing.T, src DataSource, hist Recorder) *Runner {
	t.Helper()
	opts := Options{
		OutputDir:         t.TempDir(),
		StoreCatalogPath:  filepath.Join(t.TempDir(), "missing_stores.csv"),
		DeliveryTimesPath: filepath.Join(t.TempDir(), "missing_delivery.csv"),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(src, hist, opts, log)
}

func waitTerminal(t *testing.T, r *Runner) domain.JobStatus {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		st := r.Status()
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

func TestRunProducesWorkbooks(t *testing.T) {
	sales, stock := sampleRows()
	src := &fakeSource{sales: sales, stock: stock}
	hist := &fakeRecorder{recs: make(chan domain.RunRecord, 1)}
	r := newTestRunner(t, src, hist)

	if err := r.Start(domain.DefaultParameters()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := waitTerminal(t, r)

	if st.Error != "" {
		t.Fatalf("run failed: %s", st.Error)
	}
	if st.Progress != 100 || st.Stage != "Completado" {
		t.Errorf("status = %+v", st)
	}
	if len(st.OutputFiles) != 2 {
		t.Fatalf("OutputFiles = %v, want plan and summary", st.OutputFiles)
	}
	for _, name := range st.OutputFiles {
		if _, err := os.Stat(filepath.Join(r.opts.OutputDir, name)); err != nil {
			t.Errorf("output file %s missing: %v", name, err)
		}
	}

	select {
	case rec := <-hist.recs:
		if rec.State != domain.RunStateCompleted {
			t.Errorf("recorded state = %s", rec.State)
		}
		if len(rec.OutputFiles) != 2 {
			t.Errorf("recorded files = %v", rec.OutputFiles)
		}
	case <-time.After(time.Second):
		t.Error("run was not recorded in history")
	}
}

func TestRunSavesIntermediates(t *testing.T) {
	sales, stock := sampleRows()
	src := &fakeSource{sales: sales, stock: stock}
	r := newTestRunner(t, src, nil)

	params := domain.DefaultParameters()
	params.SaveIntermediates = true
	if err := r.Start(params); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := waitTerminal(t, r)

	if st.Error != "" {
		t.Fatalf("run failed: %s", st.Error)
	}
	if len(st.OutputFiles) != 4 {
		t.Fatalf("OutputFiles = %v, want 4 with intermediates", st.OutputFiles)
	}
}

func TestStartWhileRunning(t *testing.T) {
	sales, stock := sampleRows()
	src := &fakeSource{sales: sales, stock: stock, gate: make(chan struct{}), started: make(chan struct{})}
	started := src.started
	r := newTestRunner(t, src, nil)

	if err := r.Start(domain.DefaultParameters()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started
	if err := r.Start(domain.DefaultParameters()); !errors.Is(err, ErrBusy) {
		t.Errorf("second Start error = %v, want ErrBusy", err)
	}
	close(src.gate)
	waitTerminal(t, r)
}

func TestRunFailure(t *testing.T) {
	src := &fakeSource{salesErr: errors.New("connection refused")}
	hist := &fakeRecorder{recs: make(chan domain.RunRecord, 1)}
	r := newTestRunner(t, src, hist)

	if err := r.Start(domain.DefaultParameters()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := waitTerminal(t, r)

	if st.Error == "" {
		t.Fatal("expected an error status")
	}
	if len(st.OutputFiles) != 0 {
		t.Errorf("failed run has output files: %v", st.OutputFiles)
	}

	rec := <-hist.recs
	if rec.State != domain.RunStateFailed || rec.Error == "" {
		t.Errorf("recorded run = %+v", rec)
	}
}

// A runner built without a warehouse connection still accepts runs and
// fails them cleanly instead of panicking.
func TestRunWithoutWarehouse(t *testing.T) {
	hist := &fakeRecorder{recs: make(chan domain.RunRecord, 1)}
	r := newTestRunner(t, nil, hist)

	if err := r.Start(domain.DefaultParameters()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := waitTerminal(t, r)

	if !strings.Contains(st.Error, "no warehouse connection") {
		t.Errorf("status error = %q", st.Error)
	}
	if len(st.OutputFiles) != 0 {
		t.Errorf("degraded run has output files: %v", st.OutputFiles)
	}

	rec := <-hist.recs
	if rec.State != domain.RunStateFailed {
		t.Errorf("recorded run state = %q", rec.State)
	}
}

func TestRunNoSales(t *testing.T) {
	src := &fakeSource{}
	r := newTestRunner(t, src, nil)

	if err := r.Start(domain.DefaultParameters()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := waitTerminal(t, r)
	if st.Error == "" {
		t.Fatal("expected a failure when the period has no sales")
	}
}

func TestResetCancelsRun(t *testing.T) {
	sales, stock := sampleRows()
	src := &fakeSource{sales: sales, stock: stock, gate: make(chan struct{}), started: make(chan struct{})}
	started := src.started
	hist := &fakeRecorder{recs: make(chan domain.RunRecord, 1)}
	r := newTestRunner(t, src, hist)

	if err := r.Start(domain.DefaultParameters()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started
	r.Reset()
	close(src.gate)

	st := r.Status()
	if st.Running || st.Progress != 0 || st.Stage != "" {
		t.Errorf("status after reset = %+v", st)
	}

	// The canceled run must not reach the history store.
	select {
	case rec := <-hist.recs:
		t.Errorf("canceled run was recorded: %+v", rec)
	case <-time.After(100 * time.Millisecond):
	}

	// A fresh run is accepted after reset.
	src2sales, src2stock := sampleRows()
	r.src = &fakeSource{sales: src2sales, stock: src2stock}
	if err := r.Start(domain.DefaultParameters()); err != nil {
		t.Fatalf("Start after reset: %v", err)
	}
	st = waitTerminal(t, r)
	if st.Error != "" {
		t.Fatalf("run after reset failed: %s", st.Error)
	}
}

func TestResetIdempotent(t *testing.T) {
	src := &fakeSource{}
	r := newTestRunner(t, src, nil)
	r.Reset()
	r.Reset()
	if st := r.Status(); st.Running {
		t.Errorf("status = %+v", st)
	}
}
