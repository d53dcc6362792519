// Package runner executes planning runs in the background and exposes
// their progress as pollable status snapshots.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"transfer-planner/internal/domain"
	"transfer-planner/internal/export"
	"transfer-planner/internal/planner"
	"transfer-planner/internal/process"
	"transfer-planner/internal/warehouse"
)

// ErrBusy is returned when a run is requested while one is active.
var ErrBusy = errors.New("a run is already in progress")

// StageError reports which pipeline stage a run failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// DataSource provides the raw warehouse rows a run consumes.
type DataSource interface {
	FetchSales(ctx context.Context, months int) ([]warehouse.SaleRow, error)
	FetchStock(ctx context.Context) ([]warehouse.StockRow, error)
}

// Recorder persists finished runs. May be nil when history is disabled.
type Recorder interface {
	Record(ctx context.Context, rec domain.RunRecord) error
}

// Options configures the runner.
type Options struct {
	OutputDir         string
	StoreCatalogPath  string
	DeliveryTimesPath string
	MainWarehouse     string
}

// Runner owns the single active planning run.
type Runner struct {
	src  DataSource
	hist Recorder
	opts Options
	log  *slog.Logger
	now  func() time.Time

	mu      sync.RWMutex
	status  domain.JobStatus
	running bool
	cancel  context.CancelFunc
	seq     uint64
}

func New(src DataSource, hist Recorder, opts Options, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{src: src, hist: hist, opts: opts, log: log, now: time.Now}
}

// Status returns a copy of the current run status.
func (r *Runner) Status() domain.JobStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := r.status
	st.OutputFiles = append([]string(nil), r.status.OutputFiles...)
	return st
}

// Running reports whether a run is active.
func (r *Runner) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Start launches a run in the background. Returns ErrBusy while
// another run is active.
func (r *Runner) Start(params domain.JobParameters) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrBusy
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.running = true
	r.cancel = cancel
	r.seq++
	seq := r.seq
	r.status = domain.JobStatus{Running: true, Progress: 0, Stage: "Iniciando"}
	r.mu.Unlock()

	go r.run(ctx, seq, params)
	return nil
}

// Reset cancels any active run and clears the status. Idempotent.
func (r *Runner) Reset() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.seq++
	r.running = false
	r.status = domain.JobStatus{}
	r.mu.Unlock()
}

func (r *Runner) run(ctx context.Context, seq uint64, params domain.JobParameters) {
	started := r.now()
	log := r.log.With("run", uuid.NewString()[:8])
	log.Info("planning run started",
		"months", params.Months,
		"dias_min", params.MinDays,
		"dias_max", params.MaxDays,
		"safety_ratio", params.SafetyRatio,
		"allow_seed", params.AllowSeed)

	files, err := r.execute(ctx, seq, params, log)
	finished := r.now()

	if ctx.Err() != nil {
		// Reset already cleared the status; keep quiet.
		log.Info("planning run canceled")
		return
	}

	r.mu.Lock()
	if seq != r.seq {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel = nil
	if err != nil {
		r.status = domain.JobStatus{Running: false, Progress: r.status.Progress, Stage: r.status.Stage, Error: err.Error()}
	} else {
		r.status = domain.JobStatus{Running: false, Progress: 100, Stage: "Completado", OutputFiles: files}
	}
	r.mu.Unlock()

	rec := domain.RunRecord{
		ID:         uuid.NewString(),
		StartedAt:  started,
		FinishedAt: finished,
		Parameters: params,
	}
	if err != nil {
		rec.State = domain.RunStateFailed
		rec.Error = err.Error()
		log.Error("planning run failed", "error", err)
	} else {
		rec.State = domain.RunStateCompleted
		rec.OutputFiles = files
		log.Info("planning run completed", "files", files, "elapsed", finished.Sub(started))
	}
	if r.hist != nil {
		recCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.hist.Record(recCtx, rec); err != nil {
			log.Error("recording run history", "error", err)
		}
	}
}

func (r *Runner) execute(ctx context.Context, seq uint64, params domain.JobParameters, log *slog.Logger) ([]string, error) {
	months := params.Months
	if months <= 0 {
		months = 2
	}

	if r.src == nil {
		return nil, &StageError{Stage: "loading sales", Err: errors.New("no warehouse connection")}
	}

	r.setProgress(seq, 5, "Conectando con la base de datos")
	r.setProgress(seq, 10, "Cargando ventas")
	saleRows, err := r.src.FetchSales(ctx, months)
	if err != nil {
		return nil, &StageError{Stage: "loading sales", Err: err}
	}
	r.setProgress(seq, 25, "Ventas cargadas")
	log.Info("sales loaded", "rows", len(saleRows))

	r.setProgress(seq, 30, "Procesando ventas")
	sales := process.ProcessSales(saleRows)
	if len(sales) == 0 {
		return nil, errors.New("no sales found for the selected period")
	}

	r.setProgress(seq, 40, "Cargando stock")
	stockRows, err := r.src.FetchStock(ctx)
	if err != nil {
		return nil, &StageError{Stage: "loading stock", Err: err}
	}
	r.setProgress(seq, 45, "Stock cargado")
	log.Info("stock loaded", "rows", len(stockRows))

	r.setProgress(seq, 52, "Procesando stock")
	stock := process.ProcessStock(stockRows, process.SoldReferences(sales), planner.ActiveStoreSet())
	if len(stock) == 0 {
		return nil, errors.New("no stock found for the sold references")
	}

	r.setProgress(seq, 60, "Cargando datos auxiliares")
	stores, err := planner.LoadStoreCatalog(r.opts.StoreCatalogPath)
	if err != nil {
		return nil, &StageError{Stage: "loading store catalog", Err: err}
	}
	delivery, err := planner.LoadDeliveryTimes(r.opts.DeliveryTimesPath)
	if err != nil {
		return nil, &StageError{Stage: "loading delivery times", Err: err}
	}

	r.setProgress(seq, 62, "Calculando promedios de venta")
	r.setProgress(seq, 65, "Ejecutando motor de traslados")
	result := planner.Plan(sales, stock, planner.Options{
		MainWarehouse:     r.opts.MainWarehouse,
		AllowSeed:         params.AllowSeed,
		SafetyRatio:       params.SafetyRatio,
		OriginMinCovDays:  params.MinDays,
		DestTargetCovDays: params.MaxDays,
		Stores:            stores,
		Delivery:          delivery,
	})
	log.Info("plan computed",
		"transfers", len(result.Transfers),
		"main_warehouse", result.MainWarehouse,
		"base", result.PhaseCounts[0],
		"curves", result.PhaseCounts[1],
		"drain", result.PhaseCounts[2])

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stamp := export.Timestamp(r.now())
	var files []string

	r.setProgress(seq, 90, "Generando archivo de traslados")
	planName := export.PlanFileName(stamp)
	if _, err := export.WritePlan(r.opts.OutputDir, planName, result.Transfers, result.FinalStock); err != nil {
		return nil, &StageError{Stage: "writing plan workbook", Err: err}
	}
	files = append(files, planName)

	r.setProgress(seq, 92, "Generando resumen")
	summaryName := export.SummaryFileName(stamp)
	if _, err := export.WriteSummary(r.opts.OutputDir, summaryName, result.Transfers); err != nil {
		return nil, &StageError{Stage: "writing summary workbook", Err: err}
	}
	files = append(files, summaryName)

	if params.SaveIntermediates {
		r.setProgress(seq, 96, "Guardando intermedios")
		if _, err := export.WriteSalesIntermediate(r.opts.OutputDir, sales); err != nil {
			return nil, &StageError{Stage: "writing sales intermediate", Err: err}
		}
		files = append(files, "Ventas_procesadas_intermediate.xlsx")
		if _, err := export.WriteStockIntermediate(r.opts.OutputDir, stock); err != nil {
			return nil, &StageError{Stage: "writing stock intermediate", Err: err}
		}
		files = append(files, "Stock_procesado_intermediate.xlsx")
	}

	return files, nil
}

func (r *Runner) setProgress(seq uint64, progress int, stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq != r.seq || !r.running {
		return
	}
	r.status.Progress = progress
	r.status.Stage = stage
}
