// Package planner computes inventory transfers in three phases: base
// needs, size-curve completion from the main warehouse, and a final
// warehouse drain.
package planner

import "strings"

// Per-SKU stock targets.
const (
	MinPerSKUStore = 2
	MinPerSKUEcom  = 3
	MaxStockPerSKU = 6
)

// CovBufferDays is the coverage margin an origin must keep over the
// destination before it is allowed to send.
const CovBufferDays = 1

// ADUMinThreshold is the minimum sale velocity for a size to qualify
// for curve completion: at least one sale every 20 days.
const ADUMinThreshold = 0.05

// SizeCurves lists the full size curve per product range.
var SizeCurves = map[string][]string{
	"BEBES": {"0M", "3M", "6M", "9M", "12M", "18M"},
	"NIÑOS": {"2T", "3T", "4T", "5T", "6", "8", "10", "12"},
}

// ActiveStores is the whitelist of stores the planner operates on.
var ActiveStores = []string{
	"BARRANQUILLA BUENAVISTA",
	"BARRANQUILLA PORTAL DEL PRADO",
	"BARRANQUILLA UNICO",
	"BARRANQUILLA VIVA",
	"BODEGA ECOMMERCE",
	"BODEGA PRINCIPAL",
	"BOGOTA PLAZA CENTRAL",
	"BUGA PLAZA",
	"CALI CHIPICHAPE",
	"CALI JARDIN PLAZA",
	"CALI UNICENTRO",
	"CALI UNICO",
	"CARTAGENA CARIBE PLAZA",
	"CUCUTA UNICENTRO",
	"ECOMMERCE",
	"MONTERIA ALAMEDAS",
	"NEIVA SAN PEDRO",
	"PALMIRA LLANOGRANDE",
	"POPAYAN CAMPANARIO",
	"TULUA LA HERRADURA",
}

// ActiveStoreSet returns the whitelist as a normalized lookup set.
func ActiveStoreSet() map[string]bool {
	set := make(map[string]bool, len(ActiveStores))
	for _, s := range ActiveStores {
		set[strings.ToUpper(strings.TrimSpace(s))] = true
	}
	return set
}

// storeCategories maps stores to their commercial category.
var storeCategories = map[string]string{
	"BOGOTA PLAZA CENTRAL":          "C",
	"NEIVA SAN PEDRO":               "B",
	"BARRANQUILLA BUENAVISTA":       "B",
	"BARRANQUILLA PORTAL DEL PRADO": "C",
	"BARRANQUILLA UNICO":            "A",
	"BARRANQUILLA VIVA":             "C",
	"CARTAGENA CARIBE PLAZA":        "B",
	"CUCUTA UNICENTRO":              "C",
	"MONTERIA ALAMEDAS":             "C",
	"BUGA PLAZA":                    "C",
	"CALI CHIPICHAPE":               "B",
	"CALI JARDIN PLAZA":             "A",
	"CALI UNICENTRO":                "B",
	"CALI UNICO":                    "A",
	"ECOMMERCE":                     "A",
	"PALMIRA LLANOGRANDE":           "B",
	"POPAYAN CAMPANARIO":            "C",
	"TULUA LA HERRADURA":            "C",
}

// StoreCategory returns the A/B/C category of a store, defaulting to C.
func StoreCategory(store string) string {
	if cat, ok := storeCategories[strings.ToUpper(strings.TrimSpace(store))]; ok {
		return cat
	}
	return "C"
}

func categoryRank(cat string) int {
	switch cat {
	case "A":
		return 0
	case "B":
		return 1
	case "C":
		return 2
	default:
		return 3
	}
}

// RangeForSize returns the product range a size belongs to, or "".
func RangeForSize(size string) string {
	for rng, sizes := range SizeCurves {
		for _, s := range sizes {
			if s == size {
				return rng
			}
		}
	}
	return ""
}
