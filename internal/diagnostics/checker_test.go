package diagnostics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"transfer-planner/internal/domain"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

func itemByID(t *testing.T, report domain.DiagnosticReport, id string) domain.DiagnosticItem {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			return item
		}
	}
	t.Fatalf("no diagnostic item %q in %+v", id, report.Items)
	return domain.DiagnosticItem{}
}

func TestRunAllHealthy(t *testing.T) {
	dir := t.TempDir()
	stores := filepath.Join(dir, "stores.csv")
	if err := os.WriteFile(stores, []byte("TIENDA;TIPO\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewChecker(&fakePinger{}, Paths{
		OutputDir:         filepath.Join(dir, "output"),
		StoreCatalogPath:  stores,
		DeliveryTimesPath: filepath.Join(dir, "missing.csv"),
	})
	report := c.Run(context.Background())

	if report.HasFailures {
		t.Errorf("HasFailures = true, report %+v", report.Items)
	}
	if got := itemByID(t, report, "warehouse_db").Status; got != domain.DiagnosticStatusPass {
		t.Errorf("database status = %s", got)
	}
	if got := itemByID(t, report, "output_dir").Status; got != domain.DiagnosticStatusPass {
		t.Errorf("output dir status = %s", got)
	}
	if got := itemByID(t, report, "store_catalog").Status; got != domain.DiagnosticStatusPass {
		t.Errorf("store catalog status = %s", got)
	}
	// Missing aux files degrade gracefully and must not fail the report.
	if got := itemByID(t, report, "delivery_times").Status; got != domain.DiagnosticStatusWarn {
		t.Errorf("delivery times status = %s", got)
	}
}

func TestRunDatabaseDown(t *testing.T) {
	c := NewChecker(&fakePinger{err: errors.New("connection refused")}, Paths{
		OutputDir: t.TempDir(),
	})
	report := c.Run(context.Background())

	if !report.HasFailures {
		t.Error("HasFailures = false")
	}
	item := itemByID(t, report, "warehouse_db")
	if item.Status != domain.DiagnosticStatusFail || item.Hint == "" {
		t.Errorf("database item = %+v", item)
	}
}

func TestRunNoDatabase(t *testing.T) {
	c := NewChecker(nil, Paths{OutputDir: t.TempDir()})
	report := c.Run(context.Background())

	if got := itemByID(t, report, "warehouse_db").Status; got != domain.DiagnosticStatusFail {
		t.Errorf("database status = %s", got)
	}
}

func TestRunOutputDirNotWritable(t *testing.T) {
	c := NewCheckerForTests(
		&fakePinger{},
		Paths{OutputDir: "/srv/output"},
		os.Stat,
		func(string, os.FileMode) error { return nil },
		func(string, string) (*os.File, error) { return nil, errors.New("permission denied") },
		os.Remove,
	)
	report := c.Run(context.Background())

	item := itemByID(t, report, "output_dir")
	if item.Status != domain.DiagnosticStatusFail {
		t.Errorf("output dir status = %s", item.Status)
	}
	if !report.HasFailures {
		t.Error("HasFailures = false")
	}
}

func TestCheckAuxFileIsDirectory(t *testing.T) {
	dir := t.TempDir()
	c := NewChecker(&fakePinger{}, Paths{
		OutputDir:        filepath.Join(dir, "output"),
		StoreCatalogPath: dir,
	})
	report := c.Run(context.Background())

	if got := itemByID(t, report, "store_catalog").Status; got != domain.DiagnosticStatusFail {
		t.Errorf("store catalog status = %s", got)
	}
}
