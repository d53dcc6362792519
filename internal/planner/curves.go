package planner

import "sort"

// runCurveCompletion is phase 2: top up missing sizes from the main
// warehouse for references a store already carries, best stores first.
func (b *board) runCurveCompletion() {
	if b.main == "" || b.mainTotal() <= 0 {
		return
	}

	for _, store := range b.prioritizedStores() {
		if b.mainTotal() <= 0 {
			return
		}

		for _, ref := range b.referencesByVelocity(store) {
			if b.mainTotal() <= 0 {
				return
			}

			rng := b.rangeForReference(store, ref)
			if rng == "" {
				continue
			}

			for _, size := range b.candidateSizes(store, ref, rng) {
				if b.mainTotal() <= 0 {
					return
				}

				sku := ref + size
				current := b.stock(store, sku)

				units := MinPerSKUStore - current
				if cap := MaxStockPerSKU - current; cap < units {
					units = cap
				}
				if units <= 0 {
					continue
				}

				warehouseStock := b.stock(b.main, sku)
				if warehouseStock <= 0 {
					continue
				}
				if warehouseStock < units {
					units = warehouseStock
				}

				b.execute(PhaseCurves, b.main, store, sku, units, ref, size)
			}
		}
	}
}

func (b *board) mainTotal() int {
	total := 0
	for key, line := range b.lines {
		if key.store == b.main {
			total += line.OnHand
		}
	}
	return total
}

// prioritizedStores orders stores for curve completion: category A
// before B before C, then higher total ADU, then name.
func (b *board) prioritizedStores() []string {
	seen := make(map[string]bool)
	var stores []string
	for key := range b.lines {
		if key.store == b.main || seen[key.store] {
			continue
		}
		seen[key.store] = true
		stores = append(stores, key.store)
	}

	sort.Slice(stores, func(i, j int) bool {
		ri := categoryRank(b.storeCategory(stores[i]))
		rj := categoryRank(b.storeCategory(stores[j]))
		if ri != rj {
			return ri < rj
		}
		ai := b.adu.StoreTotal(stores[i])
		aj := b.adu.StoreTotal(stores[j])
		if ai != aj {
			return ai > aj
		}
		return stores[i] < stores[j]
	})
	return stores
}

// storeCategory prefers the loaded catalog over the built-in mapping.
func (b *board) storeCategory(store string) string {
	if info, ok := b.opts.Stores[normalizeKey(store)]; ok && info.Category != "" {
		return info.Category
	}
	return StoreCategory(store)
}

// referencesByVelocity lists references the store carries with stock,
// highest summed curve ADU first.
func (b *board) referencesByVelocity(store string) []string {
	seen := make(map[string]bool)
	var refs []string
	for key, line := range b.lines {
		if key.store != store || line.OnHand <= 0 || seen[line.Reference] {
			continue
		}
		seen[line.Reference] = true
		refs = append(refs, line.Reference)
	}

	refADU := func(ref string) float64 {
		var total float64
		for _, sizes := range SizeCurves {
			for _, size := range sizes {
				total += b.adu.Get(store, ref+size)
			}
		}
		return total
	}

	sort.Slice(refs, func(i, j int) bool {
		ai, aj := refADU(refs[i]), refADU(refs[j])
		if ai != aj {
			return ai > aj
		}
		return refs[i] < refs[j]
	})
	return refs
}

// rangeForReference infers BEBES or NIÑOS from the sizes the store
// already carries for the reference.
func (b *board) rangeForReference(store, ref string) string {
	present := make(map[string]bool)
	for key, line := range b.lines {
		if key.store == store && line.Reference == ref {
			present[line.Size] = true
		}
	}
	for _, rng := range []string{"BEBES", "NIÑOS"} {
		for _, size := range SizeCurves[rng] {
			if present[size] {
				return rng
			}
		}
	}
	return ""
}

// candidateSizes returns curve sizes the store sells (ADU at or above
// the threshold) but holds below the minimum, highest ADU first.
func (b *board) candidateSizes(store, ref, rng string) []string {
	type scored struct {
		size string
		adu  float64
	}

	var candidates []scored
	for _, size := range SizeCurves[rng] {
		sku := ref + size
		adu := b.adu.Get(store, sku)
		if adu < ADUMinThreshold {
			continue
		}
		if b.stock(store, sku) >= MinPerSKUStore {
			continue
		}
		candidates = append(candidates, scored{size, adu})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].adu != candidates[j].adu {
			return candidates[i].adu > candidates[j].adu
		}
		return candidates[i].size < candidates[j].size
	})

	sizes := make([]string, len(candidates))
	for i, c := range candidates {
		sizes[i] = c.size
	}
	return sizes
}
