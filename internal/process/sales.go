package process

import (
	"strings"
	"time"

	"transfer-planner/internal/warehouse"
)

// Sale is one cleaned sales line.
type Sale struct {
	Store     string
	Date      time.Time
	Reference string
	Size      string
	SKU       string
	Units     float64
	NetValue  float64
	Range     string
	IsEcom    bool
}

// ProcessSales cleans raw sales rows: strips padding, keeps PRENDAS
// only, normalizes reference and size, builds the SKU, drops excluded
// references and rewrites the PRINCIPAL center to ECOMMERCE.
func ProcessSales(rows []warehouse.SaleRow) []Sale {
	out := make([]Sale, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.Classification) != "PRENDAS" {
			continue
		}

		ref := CleanReference(row.Reference)
		if strings.HasPrefix(ref, "N") {
			continue
		}
		if strings.Contains(strings.ToUpper(ref), "PROMO") {
			continue
		}

		store := strings.TrimSpace(row.StoreName)
		isEcom := IsEcomStore(store, true)
		store = strings.ReplaceAll(store, "PRINCIPAL", "ECOMMERCE")

		size := NormalizeSize(row.Size)

		out = append(out, Sale{
			Store:     store,
			Date:      row.Date,
			Reference: ref,
			Size:      size,
			SKU:       BuildSKU(ref, size),
			Units:     row.Units,
			NetValue:  row.NetValue,
			Range:     strings.TrimSpace(row.Range),
			IsEcom:    isEcom,
		})
	}
	return out
}

// SoldReferences returns the set of distinct references with sales.
func SoldReferences(sales []Sale) map[string]bool {
	refs := make(map[string]bool, len(sales))
	for _, s := range sales {
		if s.Reference != "" {
			refs[s.Reference] = true
		}
	}
	return refs
}
