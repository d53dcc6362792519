package planner

import (
	"math"

	"transfer-planner/internal/process"
)

// ADUTable holds average daily units per store and SKU.
type ADUTable struct {
	PeriodDays int
	values     map[storeSKU]float64
}

type storeSKU struct {
	store string
	sku   string
}

// ComputeADU derives sale velocity from cleaned sales lines. The
// period is the number of distinct sale dates in the data; without
// any dated sales it falls back to 30 days.
func ComputeADU(sales []process.Sale) *ADUTable {
	days := make(map[string]bool)
	totals := make(map[storeSKU]float64)

	for _, s := range sales {
		if !s.Date.IsZero() {
			days[s.Date.Format("2006-01-02")] = true
		}
		totals[storeSKU{s.Store, s.SKU}] += s.Units
	}

	period := len(days)
	if period == 0 {
		period = 30
	}

	values := make(map[storeSKU]float64, len(totals))
	for key, units := range totals {
		values[key] = math.Round(units/float64(period)*10000) / 10000
	}

	return &ADUTable{PeriodDays: period, values: values}
}

// Get returns the ADU for a store and SKU, zero when unknown.
func (t *ADUTable) Get(store, sku string) float64 {
	return t.values[storeSKU{store, sku}]
}

// StoreTotal returns the summed ADU across all SKUs of a store.
func (t *ADUTable) StoreTotal(store string) float64 {
	var total float64
	for key, adu := range t.values {
		if key.store == store {
			total += adu
		}
	}
	return total
}

// SKUTotal returns the summed ADU of a SKU across all stores.
func (t *ADUTable) SKUTotal(sku string) float64 {
	var total float64
	for key, adu := range t.values {
		if key.sku == sku {
			total += adu
		}
	}
	return total
}

// StoresSelling returns stores with positive ADU for a SKU.
func (t *ADUTable) StoresSelling(sku string) []string {
	var stores []string
	for key, adu := range t.values {
		if key.sku == sku && adu > 0 {
			stores = append(stores, key.store)
		}
	}
	return stores
}
