// Package diagnostics runs startup and on-demand health checks.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"transfer-planner/internal/domain"
)

// Pinger verifies the warehouse database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Paths lists the filesystem locations the checker validates.
type Paths struct {
	OutputDir         string
	StoreCatalogPath  string
	DeliveryTimesPath string
}

// Checker validates the warehouse connection and required paths.
type Checker struct {
	db    Pinger
	paths Paths

	stat       func(string) (os.FileInfo, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies. db may be
// nil when the service runs without a warehouse connection.
func NewChecker(db Pinger, paths Paths) *Checker {
	return &Checker{
		db:         db,
		paths:      paths,
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all checks and returns a combined report.
func (c *Checker) Run(ctx context.Context) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkDatabase(ctx),
		c.checkOutputDir(c.paths.OutputDir),
		c.checkAuxFile("store_catalog", "Store catalog", c.paths.StoreCatalogPath),
		c.checkAuxFile("delivery_times", "Delivery times", c.paths.DeliveryTimesPath),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

func (c *Checker) checkDatabase(ctx context.Context) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "warehouse_db",
		Name: "Warehouse database",
	}

	if c.db == nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "No database connection configured."
		item.Hint = "Set TP_DATABASE_URL to the reporting database connection string."
		return item
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.db.Ping(pingCtx); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Database unreachable: %v", err)
		item.Hint = "Check the connection string and network access to the reporting database."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = "Database connection verified."
	return item
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "output_dir",
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set an output directory where workbooks can be written."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for workbook export."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// checkAuxFile reports on an optional planning input file. A missing
// file is a warning, not a failure: the planner falls back to built-in
// store categories and skips delivery ranking.
func (c *Checker) checkAuxFile(id, name, path string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   id,
		Name: name,
	}

	if strings.TrimSpace(path) == "" {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "No file configured."
		return item
	}

	info, err := c.stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("File not found: %s", path)
		item.Hint = "The planner will use built-in defaults for this data."
	case err != nil:
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot access file: %s", path)
		item.Hint = "Check permissions for the file."
	case info.IsDir():
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Path is a directory, expected a CSV file: %s", path)
	default:
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Found: %s", path)
	}
	return item
}

// NewCheckerForTests creates a checker with injectable dependencies.
func NewCheckerForTests(
	db Pinger,
	paths Paths,
	stat func(string) (os.FileInfo, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		db:         db,
		paths:      paths,
		stat:       stat,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}
