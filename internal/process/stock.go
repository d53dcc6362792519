package process

import (
	"math"
	"sort"
	"strings"

	"transfer-planner/internal/warehouse"
)

// StockLine is the cleaned stock position for one store and SKU.
type StockLine struct {
	Store     string
	Reference string
	Size      string
	SKU       string
	Range     string
	OnHand    int
	IsEcom    bool
}

// ProcessStock cleans raw stock rows and aggregates them to one line
// per store and SKU. Rows are kept only for whitelisted stores and for
// references that actually sold; references with the N or S prefix and
// PROMO references are dropped.
func ProcessStock(rows []warehouse.StockRow, soldRefs map[string]bool, activeStores map[string]bool) []StockLine {
	type key struct{ store, sku string }
	agg := make(map[key]*StockLine)

	for _, row := range rows {
		ref := CleanReference(row.Reference)
		if strings.HasPrefix(ref, "N") || strings.HasPrefix(ref, "S") {
			continue
		}
		if strings.Contains(strings.ToUpper(ref), "PROMO") {
			continue
		}

		store := NormalizeStoreName(row.StoreName)
		if len(activeStores) > 0 && !activeStores[store] {
			continue
		}

		if len(soldRefs) > 0 && !soldRefs[ref] {
			continue
		}

		size := NormalizeSize(row.Size)
		sku := BuildSKU(ref, size)

		k := key{store, sku}
		line, ok := agg[k]
		if !ok {
			line = &StockLine{
				Store:     store,
				Reference: ref,
				Size:      size,
				SKU:       sku,
				Range:     strings.TrimSpace(row.Range),
				IsEcom:    IsEcomStore(store, false),
			}
			agg[k] = line
		}
		line.OnHand += int(math.Round(row.OnHand))
	}

	out := make([]StockLine, 0, len(agg))
	for _, line := range agg {
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
