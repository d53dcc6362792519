package planner

import (
	"math"
	"sort"
)

// runDrain is phase 3: push residual warehouse stock to stores that
// sell it, fastest moving SKUs first, keeping back the safety share.
func (b *board) runDrain(safetyRatio float64) {
	if b.main == "" {
		return
	}
	total := b.mainTotal()
	if total <= 0 {
		return
	}

	maxDrain := drainLimit(total, safetyRatio)
	drained := 0

	for _, sku := range b.drainableSKUs() {
		if drained >= maxDrain {
			return
		}

		line, ok := b.lines[storeSKU{b.main, sku}]
		if !ok || line.OnHand <= 0 {
			continue
		}

		remaining := line.OnHand
		if budget := maxDrain - drained; budget < remaining {
			remaining = budget
		}

		for _, dest := range b.drainDestinations(sku) {
			if remaining <= 0 || drained >= maxDrain {
				break
			}
			if !b.canSeed(dest, line.Reference, sku) {
				continue
			}

			cap := MaxStockPerSKU - b.stock(dest, sku)
			if cap <= 0 {
				continue
			}

			qty := min3(cap, remaining, maxDrain-drained)
			if qty <= 0 {
				continue
			}
			if b.execute(PhaseDrain, b.main, dest, sku, qty, line.Reference, line.Size) {
				drained += qty
				remaining -= qty
			}
		}
	}
}

// drainLimit caps drained units so the safety share stays behind.
func drainLimit(total int, safetyRatio float64) int {
	if safetyRatio <= 0 {
		return total
	}
	if safetyRatio > 0.99 {
		safetyRatio = 0.99
	}
	return int(math.Floor(float64(total) * (1.0 - safetyRatio)))
}

// drainableSKUs lists warehouse SKUs with stock, highest aggregate ADU
// across all stores first.
func (b *board) drainableSKUs() []string {
	var skus []string
	for key, line := range b.lines {
		if key.store == b.main && line.OnHand > 0 {
			skus = append(skus, key.sku)
		}
	}

	sort.Slice(skus, func(i, j int) bool {
		ai, aj := b.adu.SKUTotal(skus[i]), b.adu.SKUTotal(skus[j])
		if ai != aj {
			return ai > aj
		}
		return skus[i] < skus[j]
	})
	return skus
}

// drainDestinations orders stores with sale history for a SKU by
// category, then SKU velocity at the store.
func (b *board) drainDestinations(sku string) []string {
	stores := b.adu.StoresSelling(sku)

	var out []string
	for _, store := range stores {
		if store != b.main {
			out = append(out, store)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		ri := categoryRank(b.storeCategory(out[i]))
		rj := categoryRank(b.storeCategory(out[j]))
		if ri != rj {
			return ri < rj
		}
		ai := b.adu.Get(out[i], sku)
		aj := b.adu.Get(out[j], sku)
		if ai != aj {
			return ai > aj
		}
		return out[i] < out[j]
	})
	return out
}
