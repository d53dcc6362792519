package process

import (
	"testing"
	"time"

	"transfer-planner/internal/warehouse"
)

func TestCleanReference(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1484612                    ", "1484612"},
		{"  023  ", "023"},
		{"148\x004612\x1F", "1484612"},
		{"ABC\x7F123", "ABC123"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := CleanReference(tc.in); got != tc.want {
			t.Errorf("CleanReference(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeSize(t *testing.T) {
	if got := NormalizeSize("18m                 "); got != "18M" {
		t.Errorf("NormalizeSize = %q, want 18M", got)
	}
	if got := NormalizeSize("  2t "); got != "2T" {
		t.Errorf("NormalizeSize = %q, want 2T", got)
	}
}

func TestBuildSKU(t *testing.T) {
	if got := BuildSKU("1484612", "18M"); got != "148461218M" {
		t.Errorf("BuildSKU = %q", got)
	}
	if got := BuildSKU("BOLSA", ""); got != "BOLSA" {
		t.Errorf("BuildSKU with empty size = %q", got)
	}
}

func TestIsEcomStore(t *testing.T) {
	cases := []struct {
		name             string
		includePrincipal bool
		want             bool
	}{
		{"ECOMMERCE", false, true},
		{"BODEGA ECOMMERCE", false, true},
		{"TIENDA ONLINE", false, true},
		{"CALI CHIPICHAPE", false, false},
		{"PRINCIPAL", false, false},
		{"PRINCIPAL", true, true},
	}
	for _, tc := range cases {
		if got := IsEcomStore(tc.name, tc.includePrincipal); got != tc.want {
			t.Errorf("IsEcomStore(%q, %v) = %v, want %v", tc.name, tc.includePrincipal, got, tc.want)
		}
	}
}

func saleRow(store, ref, size, class string, units float64) warehouse.SaleRow {
	return warehouse.SaleRow{
		Date:           time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		StoreName:      store,
		Reference:      ref,
		Size:           size,
		Units:          units,
		Classification: class,
	}
}

func TestProcessSalesFilters(t *testing.T) {
	rows := []warehouse.SaleRow{
		saleRow("CALI CHIPICHAPE  ", "1484612   ", "18m  ", "PRENDAS", 2),
		saleRow("CALI CHIPICHAPE", "1484613", "2T", "CALZADO", 1),
		saleRow("CALI CHIPICHAPE", "N123456", "2T", "PRENDAS", 1),
		saleRow("CALI CHIPICHAPE", "REF-PROMO-1", "2T", "PRENDAS", 1),
		saleRow("PRINCIPAL", "1484612", "12M", "PRENDAS", 3),
	}

	sales := ProcessSales(rows)
	if len(sales) != 2 {
		t.Fatalf("got %d sales, want 2: %+v", len(sales), sales)
	}

	first := sales[0]
	if first.Store != "CALI CHIPICHAPE" || first.Reference != "1484612" || first.SKU != "148461218M" {
		t.Errorf("first sale = %+v", first)
	}
	if first.IsEcom {
		t.Error("physical store flagged as ecom")
	}

	second := sales[1]
	if second.Store != "ECOMMERCE" {
		t.Errorf("PRINCIPAL not rewritten: %q", second.Store)
	}
	if !second.IsEcom {
		t.Error("PRINCIPAL sale not flagged as ecom")
	}
}

func TestProcessStockAggregatesAndFilters(t *testing.T) {
	sold := map[string]bool{"1484612": true}
	active := map[string]bool{"CALI CHIPICHAPE": true, "BODEGA PRINCIPAL": true}

	rows := []warehouse.StockRow{
		{StoreName: "CALI CHIPICHAPE   ", Reference: "1484612  ", Size: "18m", Range: "BEBES", OnHand: 2},
		{StoreName: "CALI CHIPICHAPE", Reference: "1484612", Size: "18M  ", Range: "BEBES", OnHand: 3},
		{StoreName: "CALI CHIPICHAPE", Reference: "S999999", Size: "2T", OnHand: 5},
		{StoreName: "CALI CHIPICHAPE", Reference: "7777777", Size: "2T", OnHand: 5},
		{StoreName: "TIENDA CERRADA", Reference: "1484612", Size: "18M", OnHand: 9},
	}

	lines := ProcessStock(rows, sold, active)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %+v", len(lines), lines)
	}

	line := lines[0]
	if line.SKU != "148461218M" || line.OnHand != 5 {
		t.Errorf("line = %+v, want SKU 148461218M with 5 on hand", line)
	}
	if line.Range != "BEBES" {
		t.Errorf("Range = %q", line.Range)
	}
}

func TestProcessStockWithoutSoldFilter(t *testing.T) {
	rows := []warehouse.StockRow{
		{StoreName: "CALI CHIPICHAPE", Reference: "7777777", Size: "2T", OnHand: 1},
	}

	lines := ProcessStock(rows, nil, map[string]bool{"CALI CHIPICHAPE": true})
	if len(lines) != 1 {
		t.Fatalf("empty sold set must keep all references, got %d lines", len(lines))
	}
}
