package planner

import (
	"sort"
	"strings"

	"transfer-planner/internal/process"
)

// Result is the outcome of a full planning run.
type Result struct {
	Transfers     []Transfer
	FinalStock    []process.StockLine
	MainWarehouse string
	PeriodDays    int
	PhaseCounts   [3]int
}

// Plan runs the three planning phases over cleaned sales and stock
// data and returns the executed transfers plus the resulting stock.
func Plan(sales []process.Sale, stock []process.StockLine, opts Options) *Result {
	adu := ComputeADU(sales)

	main := opts.MainWarehouse
	if main == "" {
		main = DetectMainWarehouse(stock)
	}

	b := newBoard(stock, adu, opts, main)

	b.runBaseNeeds()
	phase1 := len(b.transfers)

	if main != "" {
		b.runCurveCompletion()
	}
	phase2 := len(b.transfers) - phase1

	if main != "" {
		b.runDrain(opts.SafetyRatio)
	}
	phase3 := len(b.transfers) - phase1 - phase2

	return &Result{
		Transfers:     b.transfers,
		FinalStock:    b.snapshot(),
		MainWarehouse: main,
		PeriodDays:    adu.PeriodDays,
		PhaseCounts:   [3]int{phase1, phase2, phase3},
	}
}

// DetectMainWarehouse picks the store whose name marks it as a
// warehouse or distribution center, preferring the one with the most
// stock. Returns "" when no candidate exists.
func DetectMainWarehouse(stock []process.StockLine) string {
	totals := make(map[string]int)
	for _, line := range stock {
		upper := strings.ToUpper(line.Store)
		if strings.Contains(upper, "BODEGA") ||
			strings.Contains(upper, "CEDI") ||
			strings.Contains(upper, "PRINCIPAL") {
			totals[line.Store] += line.OnHand
		}
	}

	best := ""
	bestTotal := -1
	for store, total := range totals {
		if total > bestTotal || (total == bestTotal && store < best) {
			best = store
			bestTotal = total
		}
	}
	return best
}

// snapshot returns the current stock lines in a stable order.
func (b *board) snapshot() []process.StockLine {
	out := make([]process.StockLine, 0, len(b.lines))
	for _, line := range b.lines {
		out = append(out, *line)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Store != out[j].Store {
			return out[i].Store < out[j].Store
		}
		return out[i].SKU < out[j].SKU
	})
	return out
}
