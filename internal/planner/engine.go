package planner

import (
	"math"
	"sort"
	"strings"

	"transfer-planner/internal/process"
)

// Phase labels recorded on every transfer.
const (
	PhaseBase   = "Fase 1: Base"
	PhaseCurves = "Fase 2: Curvas"
	PhaseDrain  = "Fase 3: Drenaje"
)

// Transfer is one executed stock movement with the surrounding stock
// levels captured at execution time.
type Transfer struct {
	Phase        string `json:"phase"`
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	Reference    string `json:"reference"`
	Size         string `json:"size"`
	Units        int    `json:"units"`
	OriginBefore int    `json:"originBefore"`
	OriginAfter  int    `json:"originAfter"`
	DestBefore   int    `json:"destBefore"`
	DestAfter    int    `json:"destAfter"`
}

// Options configures a planning run.
type Options struct {
	// MainWarehouse overrides auto-detection when non-empty.
	MainWarehouse string
	// AllowSeed permits sending references a store has never carried.
	// Regardless of the flag, a SKU with sale history at the store may
	// always be seeded.
	AllowSeed bool
	// SafetyRatio is the share of warehouse stock the drain phase
	// keeps back (0 drains everything).
	SafetyRatio float64
	// OriginMinCovDays is the coverage an origin store must retain.
	OriginMinCovDays int
	// DestTargetCovDays is the coverage a destination aims for.
	DestTargetCovDays int
	Stores            map[string]StoreInfo
	Delivery          *DeliveryTable
}

func (o Options) originCovDays() int {
	if o.OriginMinCovDays > 0 {
		return o.OriginMinCovDays
	}
	return 7
}

func (o Options) destCovDays() int {
	if o.DestTargetCovDays > 0 {
		return o.DestTargetCovDays
	}
	return 7
}

// board is the mutable stock state shared by the three phases.
type board struct {
	lines     map[storeSKU]*process.StockLine
	adu       *ADUTable
	opts      Options
	main      string
	transfers []Transfer
}

func newBoard(stock []process.StockLine, adu *ADUTable, opts Options, main string) *board {
	lines := make(map[storeSKU]*process.StockLine, len(stock))
	for i := range stock {
		line := stock[i]
		lines[storeSKU{line.Store, line.SKU}] = &line
	}
	return &board{lines: lines, adu: adu, opts: opts, main: main}
}

func (b *board) stock(store, sku string) int {
	if line, ok := b.lines[storeSKU{store, sku}]; ok {
		return line.OnHand
	}
	return 0
}

func (b *board) minTarget(store string, isEcom bool) int {
	if store == b.main {
		return 0
	}
	if isEcom {
		return MinPerSKUEcom
	}
	return MinPerSKUStore
}

// coverage returns days of stock at current sale velocity, +Inf for
// SKUs without sales.
func (b *board) coverage(store, sku string) float64 {
	adu := b.adu.Get(store, sku)
	if adu <= 0 {
		return math.Inf(1)
	}
	return float64(b.stock(store, sku)) / adu
}

// allowedToSend computes the units a store can give away. The main
// warehouse can give everything; any other store keeps the larger of
// its minimum target and the origin coverage window.
func (b *board) allowedToSend(store, sku string) int {
	line, ok := b.lines[storeSKU{store, sku}]
	if !ok {
		return 0
	}
	current := line.OnHand
	if store == b.main {
		return current
	}

	keep := b.minTarget(store, line.IsEcom)
	if adu := b.adu.Get(store, sku); adu > 0 {
		byCoverage := int(math.Ceil(float64(b.opts.originCovDays()) * adu))
		if byCoverage > keep {
			keep = byCoverage
		}
	}

	if current <= keep {
		return 0
	}
	return current - keep
}

// targetUnits computes the destination target, capped at the per-SKU
// maximum.
func (b *board) targetUnits(store, sku string) int {
	line, ok := b.lines[storeSKU{store, sku}]
	if !ok {
		return MinPerSKUStore
	}

	target := b.minTarget(store, line.IsEcom)
	if adu := b.adu.Get(store, sku); adu > 0 {
		byCoverage := int(math.Ceil(float64(b.opts.destCovDays()) * adu))
		if byCoverage > target {
			target = byCoverage
		}
	}
	if target > MaxStockPerSKU {
		target = MaxStockPerSKU
	}
	return target
}

// hasReference reports whether a store carries any size of a reference.
func (b *board) hasReference(store, reference string) bool {
	for key, line := range b.lines {
		if key.store == store && line.Reference == reference && line.OnHand > 0 {
			return true
		}
	}
	return false
}

// canSeed decides whether a SKU may be introduced at a store that does
// not carry its reference yet.
func (b *board) canSeed(store, reference, sku string) bool {
	if b.hasReference(store, reference) {
		return true
	}
	if b.opts.AllowSeed {
		return true
	}
	return b.adu.Get(store, sku) > 0
}

// need is one store/SKU position below its minimum target.
type need struct {
	store     string
	sku       string
	reference string
	size      string
	units     int
	adu       float64
}

// identifyBaseNeeds lists positions below minimum, most urgent (highest
// ADU) first.
func (b *board) identifyBaseNeeds() []need {
	var needs []need
	for key, line := range b.lines {
		if key.store == b.main {
			continue
		}
		min := b.minTarget(key.store, line.IsEcom)
		if line.OnHand >= min {
			continue
		}

		units := min - line.OnHand
		if cap := MaxStockPerSKU - line.OnHand; cap < units {
			units = cap
		}
		if units <= 0 {
			continue
		}

		needs = append(needs, need{
			store:     key.store,
			sku:       key.sku,
			reference: line.Reference,
			size:      line.Size,
			units:     units,
			adu:       b.adu.Get(key.store, key.sku),
		})
	}

	sort.Slice(needs, func(i, j int) bool {
		if needs[i].adu != needs[j].adu {
			return needs[i].adu > needs[j].adu
		}
		if needs[i].store != needs[j].store {
			return needs[i].store < needs[j].store
		}
		return needs[i].sku < needs[j].sku
	})
	return needs
}

func (b *board) sameRegion(a, c string) bool {
	infoA, okA := b.opts.Stores[normalizeKey(a)]
	infoB, okB := b.opts.Stores[normalizeKey(c)]
	if !okA || !okB {
		return false
	}
	if infoA.RegionID != 0 && infoB.RegionID != 0 {
		return infoA.RegionID == infoB.RegionID
	}
	if infoA.Region != "" && infoB.Region != "" {
		return infoA.Region == infoB.Region
	}
	return false
}

// rankOrigins orders candidate origin stores for a SKU: same region
// first, then logistic priority, then higher origin coverage, then
// shorter lead time. The main warehouse always goes first when it has
// stock to give.
func (b *board) rankOrigins(sku, dest string) []string {
	type candidate struct {
		store      string
		regionRank int
		priority   float64
		covRank    float64
		leadTime   float64
	}

	covDest := b.coverage(dest, sku)

	var candidates []candidate
	for key := range b.lines {
		if key.sku != sku || key.store == dest {
			continue
		}
		available := b.allowedToSend(key.store, sku)
		if available <= 0 {
			continue
		}

		covOrigin := b.coverage(key.store, sku)
		if !math.IsInf(covOrigin, 1) && !math.IsInf(covDest, 1) {
			if covOrigin <= covDest+CovBufferDays {
				continue
			}
		}

		c := candidate{store: key.store, regionRank: 1, priority: 999, leadTime: 999}
		if b.sameRegion(key.store, dest) {
			c.regionRank = 0
		}
		if pri, ok := b.opts.Delivery.Priority(key.store, dest); ok {
			c.priority = pri
		}
		if math.IsInf(covOrigin, 1) {
			c.covRank = -1e9
		} else {
			c.covRank = -covOrigin
		}
		if days, ok := b.opts.Delivery.LeadTime(key.store, dest); ok {
			c.leadTime = days
		}
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, c := candidates[i], candidates[j]
		if a.regionRank != c.regionRank {
			return a.regionRank < c.regionRank
		}
		if a.priority != c.priority {
			return a.priority < c.priority
		}
		if a.covRank != c.covRank {
			return a.covRank < c.covRank
		}
		if a.leadTime != c.leadTime {
			return a.leadTime < c.leadTime
		}
		return a.store < c.store
	})

	origins := make([]string, 0, len(candidates))
	mainFound := false
	for _, c := range candidates {
		if c.store == b.main {
			mainFound = true
			continue
		}
		origins = append(origins, c.store)
	}
	if mainFound {
		origins = append([]string{b.main}, origins...)
	}
	return origins
}

// execute moves units between stores, creating the destination line
// when this is a seed, and records the transfer.
func (b *board) execute(phase, origin, dest, sku string, units int, reference, size string) bool {
	destKey := storeSKU{dest, sku}
	if _, ok := b.lines[destKey]; !ok {
		if !b.canSeed(dest, reference, sku) {
			return false
		}
	}

	originBefore := b.stock(origin, sku)
	destBefore := b.stock(dest, sku)

	if line, ok := b.lines[storeSKU{origin, sku}]; ok {
		line.OnHand -= units
	}
	if line, ok := b.lines[destKey]; ok {
		line.OnHand += units
	} else {
		b.lines[destKey] = &process.StockLine{
			Store:     dest,
			Reference: reference,
			Size:      size,
			SKU:       sku,
			Range:     RangeForSize(size),
			OnHand:    units,
			IsEcom:    strings.Contains(strings.ToUpper(dest), "ECOM"),
		}
	}

	b.transfers = append(b.transfers, Transfer{
		Phase:        phase,
		Origin:       origin,
		Destination:  dest,
		Reference:    reference,
		Size:         size,
		Units:        units,
		OriginBefore: originBefore,
		OriginAfter:  b.stock(origin, sku),
		DestBefore:   destBefore,
		DestAfter:    b.stock(dest, sku),
	})
	return true
}

// runBaseNeeds is phase 1: bring every store up to its per-SKU minimum
// from the best ranked origins.
func (b *board) runBaseNeeds() {
	for _, n := range b.identifyBaseNeeds() {
		if _, ok := b.lines[storeSKU{n.store, n.sku}]; !ok {
			if !b.canSeed(n.store, n.reference, n.sku) {
				continue
			}
		}

		target := b.targetUnits(n.store, n.sku)
		gap := target - b.stock(n.store, n.sku)
		if gap <= 0 {
			continue
		}

		for _, origin := range b.rankOrigins(n.sku, n.store) {
			if gap <= 0 {
				break
			}
			available := b.allowedToSend(origin, n.sku)
			if available <= 0 {
				continue
			}

			cap := MaxStockPerSKU - b.stock(n.store, n.sku)
			qty := min3(available, gap, cap)
			if qty <= 0 {
				continue
			}
			if b.execute(PhaseBase, origin, n.store, n.sku, qty, n.reference, n.size) {
				gap -= qty
			}
		}
	}
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
