package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"transfer-planner/internal/config"
	"transfer-planner/internal/diagnostics"
	"transfer-planner/internal/history"
	"transfer-planner/internal/httpapi"
	"transfer-planner/internal/runner"
	"transfer-planner/internal/warehouse"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		log.Error("creating output directory", "dir", cfg.OutputDir, "error", err)
		os.Exit(1)
	}

	// The server starts even without a warehouse connection. Runs fail
	// cleanly and /api/diagnostics reports the missing database.
	var db *warehouse.DB
	if cfg.DatabaseURL == "" {
		log.Warn("no database configured, set TP_DATABASE_URL")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		opened, err := warehouse.Open(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			log.Error("connecting to warehouse database", "error", err)
		} else {
			db = opened
			defer db.Close()
		}
	}

	var src runner.DataSource
	var pinger diagnostics.Pinger
	if db != nil {
		src = db
		pinger = db
	}

	hist, err := history.Open(cfg.HistoryPath)
	if err != nil {
		log.Error("opening run history", "path", cfg.HistoryPath, "error", err)
		os.Exit(1)
	}
	defer hist.Close()

	checker := diagnostics.NewChecker(pinger, diagnostics.Paths{
		OutputDir:         cfg.OutputDir,
		StoreCatalogPath:  cfg.StoreCatalogPath,
		DeliveryTimesPath: cfg.DeliveryTimesPath,
	})
	report := checker.Run(context.Background())
	for _, item := range report.Items {
		switch item.Status {
		case "fail":
			log.Error("startup check failed", "check", item.ID, "message", item.Message)
		case "warn":
			log.Warn("startup check", "check", item.ID, "message", item.Message)
		}
	}

	run := runner.New(src, hist, runner.Options{
		OutputDir:         cfg.OutputDir,
		StoreCatalogPath:  cfg.StoreCatalogPath,
		DeliveryTimesPath: cfg.DeliveryTimesPath,
		MainWarehouse:     cfg.MainWarehouse,
	}, log)

	server := httpapi.Server{
		Runner:       run,
		Runs:         hist,
		Checker:      checker,
		OutputDir:    cfg.OutputDir,
		HistoryLimit: cfg.HistoryLimit,
	}

	log.Info("transfer planner listening", "addr", cfg.Addr, "output_dir", cfg.OutputDir)
	if err := http.ListenAndServe(cfg.Addr, server.Router()); err != nil {
		log.Error("listen", "error", err)
		os.Exit(1)
	}
}
