// Package export writes planning results as Excel workbooks.
package export

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"transfer-planner/internal/planner"
	"transfer-planner/internal/process"
)

// Timestamp returns the filename timestamp for one run's outputs.
func Timestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// PlanFileName returns the main workbook name for a timestamp.
func PlanFileName(stamp string) string {
	return fmt.Sprintf("Traslados_final_%s.xlsx", stamp)
}

// SummaryFileName returns the summary workbook name for a timestamp.
func SummaryFileName(stamp string) string {
	return fmt.Sprintf("Traslados_final_resumen_%s.xlsx", stamp)
}

var transferHeader = []interface{}{
	"Fase", "Tienda origen", "Tienda destino", "Referencia", "Talla",
	"Unidades a trasladar",
	"Stock tienda origen antes traslado", "Stock tienda origen despues traslado",
	"Stock tienda destino antes traslado", "Stock tienda destino despues del traslado",
}

// WritePlan writes the main workbook: one sheet with every transfer
// and one with the resulting stock.
func WritePlan(dir, name string, transfers []planner.Transfer, finalStock []process.StockLine) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const transfersSheet = "Traslados"
	f.SetSheetName("Sheet1", transfersSheet)

	if len(transfers) == 0 {
		if err := writeRow(f, transfersSheet, 1, []interface{}{"Mensaje"}); err != nil {
			return "", err
		}
		if err := writeRow(f, transfersSheet, 2, []interface{}{"No se generaron traslados"}); err != nil {
			return "", err
		}
	} else {
		if err := writeRow(f, transfersSheet, 1, transferHeader); err != nil {
			return "", err
		}
		for i, tr := range transfers {
			row := []interface{}{
				tr.Phase, tr.Origin, tr.Destination, tr.Reference, tr.Size,
				tr.Units, tr.OriginBefore, tr.OriginAfter, tr.DestBefore, tr.DestAfter,
			}
			if err := writeRow(f, transfersSheet, i+2, row); err != nil {
				return "", err
			}
		}
	}

	const stockSheet = "Stock Final"
	if _, err := f.NewSheet(stockSheet); err != nil {
		return "", fmt.Errorf("creating stock sheet: %w", err)
	}
	if err := writeRow(f, stockSheet, 1, []interface{}{"Tienda", "SKU", "Referencia", "Talla", "Existencia"}); err != nil {
		return "", err
	}
	for i, line := range finalStock {
		row := []interface{}{line.Store, line.SKU, line.Reference, line.Size, line.OnHand}
		if err := writeRow(f, stockSheet, i+2, row); err != nil {
			return "", err
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("saving %s: %w", name, err)
	}
	return path, nil
}

// WriteSummary writes the summary workbook: units per destination
// store, per phase, and the top 50 moved references.
func WriteSummary(dir, name string, transfers []planner.Transfer) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const storeSheet = "Por Tienda"
	f.SetSheetName("Sheet1", storeSheet)
	if err := writeStoreSummary(f, storeSheet, transfers); err != nil {
		return "", err
	}

	const phaseSheet = "Por Fase"
	if _, err := f.NewSheet(phaseSheet); err != nil {
		return "", fmt.Errorf("creating phase sheet: %w", err)
	}
	if err := writePhaseSummary(f, phaseSheet, transfers); err != nil {
		return "", err
	}

	const topSheet = "Top 50 Referencias"
	if _, err := f.NewSheet(topSheet); err != nil {
		return "", fmt.Errorf("creating top sheet: %w", err)
	}
	if err := writeTopReferences(f, topSheet, transfers, 50); err != nil {
		return "", err
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("saving %s: %w", name, err)
	}
	return path, nil
}

func writeStoreSummary(f *excelize.File, sheet string, transfers []planner.Transfer) error {
	type agg struct {
		units int
		refs  map[string]bool
	}
	byStore := make(map[string]*agg)
	for _, tr := range transfers {
		a, ok := byStore[tr.Destination]
		if !ok {
			a = &agg{refs: make(map[string]bool)}
			byStore[tr.Destination] = a
		}
		a.units += tr.Units
		a.refs[tr.Reference] = true
	}

	stores := make([]string, 0, len(byStore))
	for store := range byStore {
		stores = append(stores, store)
	}
	sort.Slice(stores, func(i, j int) bool {
		if byStore[stores[i]].units != byStore[stores[j]].units {
			return byStore[stores[i]].units > byStore[stores[j]].units
		}
		return stores[i] < stores[j]
	})

	if err := writeRow(f, sheet, 1, []interface{}{"Tienda", "Total Unidades", "Referencias Unicas"}); err != nil {
		return err
	}
	for i, store := range stores {
		a := byStore[store]
		if err := writeRow(f, sheet, i+2, []interface{}{store, a.units, len(a.refs)}); err != nil {
			return err
		}
	}
	return nil
}

func writePhaseSummary(f *excelize.File, sheet string, transfers []planner.Transfer) error {
	type agg struct {
		units  int
		stores map[string]bool
		refs   map[string]bool
	}
	byPhase := make(map[string]*agg)
	for _, tr := range transfers {
		a, ok := byPhase[tr.Phase]
		if !ok {
			a = &agg{stores: make(map[string]bool), refs: make(map[string]bool)}
			byPhase[tr.Phase] = a
		}
		a.units += tr.Units
		a.stores[tr.Destination] = true
		a.refs[tr.Reference] = true
	}

	if err := writeRow(f, sheet, 1, []interface{}{"Fase", "Total Unidades", "Tiendas", "Referencias"}); err != nil {
		return err
	}
	row := 2
	for _, phase := range []string{planner.PhaseBase, planner.PhaseCurves, planner.PhaseDrain} {
		a, ok := byPhase[phase]
		if !ok {
			continue
		}
		if err := writeRow(f, sheet, row, []interface{}{phase, a.units, len(a.stores), len(a.refs)}); err != nil {
			return err
		}
		row++
	}
	return nil
}

func writeTopReferences(f *excelize.File, sheet string, transfers []planner.Transfer, limit int) error {
	type refKey struct{ ref, size string }
	type agg struct {
		units  int
		stores map[string]bool
	}
	byRef := make(map[refKey]*agg)
	for _, tr := range transfers {
		k := refKey{tr.Reference, tr.Size}
		a, ok := byRef[k]
		if !ok {
			a = &agg{stores: make(map[string]bool)}
			byRef[k] = a
		}
		a.units += tr.Units
		a.stores[tr.Destination] = true
	}

	keys := make([]refKey, 0, len(byRef))
	for k := range byRef {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if byRef[keys[i]].units != byRef[keys[j]].units {
			return byRef[keys[i]].units > byRef[keys[j]].units
		}
		if keys[i].ref != keys[j].ref {
			return keys[i].ref < keys[j].ref
		}
		return keys[i].size < keys[j].size
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}

	if err := writeRow(f, sheet, 1, []interface{}{"Referencia", "Talla", "Total Unidades", "Num Tiendas"}); err != nil {
		return err
	}
	for i, k := range keys {
		a := byRef[k]
		if err := writeRow(f, sheet, i+2, []interface{}{k.ref, k.size, a.units, len(a.stores)}); err != nil {
			return err
		}
	}
	return nil
}

// WriteSalesIntermediate writes the cleaned sales lines for debugging.
func WriteSalesIntermediate(dir string, sales []process.Sale) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Ventas"
	f.SetSheetName("Sheet1", sheet)

	header := []interface{}{"Tienda", "Fecha", "Referencia", "Talla", "SKU", "Cantidad", "Valor neto", "Rango", "IsEcom"}
	if err := writeRow(f, sheet, 1, header); err != nil {
		return "", err
	}
	for i, s := range sales {
		row := []interface{}{s.Store, s.Date.Format("2006-01-02"), s.Reference, s.Size, s.SKU, s.Units, s.NetValue, s.Range, s.IsEcom}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return "", err
		}
	}

	path := filepath.Join(dir, "Ventas_procesadas_intermediate.xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("saving sales intermediate: %w", err)
	}
	return path, nil
}

// WriteStockIntermediate writes the cleaned stock lines for debugging.
func WriteStockIntermediate(dir string, stock []process.StockLine) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Stock"
	f.SetSheetName("Sheet1", sheet)

	header := []interface{}{"Tienda", "Referencia", "Talla", "SKU", "Rango", "Existencia", "IsEcom"}
	if err := writeRow(f, sheet, 1, header); err != nil {
		return "", err
	}
	for i, l := range stock {
		row := []interface{}{l.Store, l.Reference, l.Size, l.SKU, l.Range, l.OnHand, l.IsEcom}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return "", err
		}
	}

	path := filepath.Join(dir, "Stock_procesado_intermediate.xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("saving stock intermediate: %w", err)
	}
	return path, nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing row %d of %s: %w", row, sheet, err)
	}
	return nil
}
