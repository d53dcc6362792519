package planner

import (
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// StoreInfo is one row of the store classification catalog.
type StoreInfo struct {
	Category string
	Region   string
	RegionID int
}

var leadTimeDigits = regexp.MustCompile(`\d+`)

// LoadStoreCatalog reads the semicolon-delimited store classification
// CSV (TIENDA;TIPO;REGION;REGION ID). A missing file is not an error;
// the planner simply loses region-aware origin ranking.
func LoadStoreCatalog(path string) (map[string]StoreInfo, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening store catalog: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading store catalog: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	cols := headerIndex(records[0])
	storeCol, ok := cols["TIENDA"]
	if !ok {
		return nil, fmt.Errorf("store catalog missing TIENDA column")
	}

	catalog := make(map[string]StoreInfo)
	for _, rec := range records[1:] {
		if storeCol >= len(rec) {
			continue
		}
		store := strings.ToUpper(strings.TrimSpace(rec[storeCol]))
		if store == "" {
			continue
		}

		info := StoreInfo{}
		if i, ok := cols["TIPO"]; ok && i < len(rec) {
			info.Category = strings.ToUpper(strings.TrimSpace(rec[i]))
		}
		if i, ok := cols["REGION"]; ok && i < len(rec) {
			info.Region = strings.ToUpper(strings.TrimSpace(rec[i]))
		}
		if i, ok := cols["REGION ID"]; ok && i < len(rec) {
			if id, err := strconv.Atoi(strings.TrimSpace(rec[i])); err == nil {
				info.RegionID = id
			}
		}
		catalog[store] = info
	}
	return catalog, nil
}

// DeliveryTable holds lead times and logistic priorities per route.
type DeliveryTable struct {
	routes map[route]deliveryInfo
}

type route struct {
	origin string
	dest   string
}

type deliveryInfo struct {
	days     float64
	priority float64
	hasDays  bool
	hasPri   bool
}

// LoadDeliveryTimes reads the semicolon-delimited delivery times CSV
// (ORIGEN-DESTINO;DESTINO-ORIGEN;ETA;PRIORIDAD). ETA values come as
// free text like "2 dias"; the largest number wins.
func LoadDeliveryTimes(path string) (*DeliveryTable, error) {
	table := &DeliveryTable{routes: make(map[route]deliveryInfo)}
	if path == "" {
		return table, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return table, nil
		}
		return nil, fmt.Errorf("opening delivery times: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading delivery times: %w", err)
	}
	if len(records) < 2 {
		return table, nil
	}

	cols := headerIndex(records[0])
	oCol, okO := cols["ORIGEN-DESTINO"]
	dCol, okD := cols["DESTINO-ORIGEN"]
	if !okO || !okD {
		return nil, fmt.Errorf("delivery times missing origin/destination columns")
	}

	for _, rec := range records[1:] {
		if oCol >= len(rec) || dCol >= len(rec) {
			continue
		}
		key := route{
			origin: strings.ToUpper(strings.TrimSpace(rec[oCol])),
			dest:   strings.ToUpper(strings.TrimSpace(rec[dCol])),
		}

		info := deliveryInfo{}
		if i, ok := cols["ETA"]; ok && i < len(rec) {
			if days, ok := parseLeadTime(rec[i]); ok {
				info.days = days
				info.hasDays = true
			}
		}
		if i, ok := cols["PRIORIDAD"]; ok && i < len(rec) {
			if pri, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64); err == nil {
				info.priority = pri
				info.hasPri = true
			}
		}
		table.routes[key] = info
	}
	return table, nil
}

// Priority returns the logistic priority of a route; ok is false when
// the route is unknown.
func (t *DeliveryTable) Priority(origin, dest string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	info, found := t.routes[route{normalizeKey(origin), normalizeKey(dest)}]
	if !found || !info.hasPri {
		return 0, false
	}
	return info.priority, true
}

// LeadTime returns the delivery days of a route; ok is false when the
// route is unknown.
func (t *DeliveryTable) LeadTime(origin, dest string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	info, found := t.routes[route{normalizeKey(origin), normalizeKey(dest)}]
	if !found || !info.hasDays {
		return 0, false
	}
	return info.days, true
}

func parseLeadTime(raw string) (float64, bool) {
	nums := leadTimeDigits.FindAllString(raw, -1)
	if len(nums) == 0 {
		return 0, false
	}
	max := 0
	for _, n := range nums {
		if v, err := strconv.Atoi(n); err == nil && v > max {
			max = v
		}
	}
	return float64(max), true
}

func normalizeKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	return cols
}
