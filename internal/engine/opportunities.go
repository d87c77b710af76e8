package engine

import (
	"math"
	"sort"
	"strings"

	"wow-terminal/internal/auction"
	"wow-terminal/internal/money"
)

// Scanner defaults.
const (
	DefaultSnipeThreshold     = 0.9
	DefaultArbitrageMinSpread = 15.0 // percent
	HighVolatility            = 0.2
	StableListingCount        = 10000
	postingEpsilonGold        = 1.0 / money.CopperPerGold
)

// FarmRoute is the expected hourly yield of a farming route.
type FarmRoute struct {
	RawGoldPerHour float64           `json:"raw_gold_per_hour"`
	ItemDrops      map[int32]float64 `json:"item_drops"` // item id -> quantity per hour
}

// MarketTables holds the static reference data the scanner relies on.
// Tables are read-only after construction.
type MarketTables struct {
	VendorPrices map[int32]int64      // item id -> vendor sell price, copper
	FarmRoutes   map[string]FarmRoute // lowercase route key
	Demand       map[int32][]int32    // material id -> crafted item ids consuming it
}

// Snipe is a listing priced well under its historical average.
type Snipe struct {
	ListingID   int64   `json:"listing_id"`
	Quantity    int64   `json:"quantity"`
	BuyPrice    float64 `json:"buy_price"` // unit gold
	HistAvg     float64 `json:"hist_avg"`
	SavingsGold float64 `json:"savings"` // per unit
}

// VendorFlip is a listing that can be bought and sold to a vendor at a profit.
type VendorFlip struct {
	ListingID   int64   `json:"listing_id"`
	ItemID      int32   `json:"item_id"`
	Quantity    int64   `json:"quantity"`
	BuyPrice    float64 `json:"buy_price"`    // unit gold
	VendorPrice float64 `json:"vendor_price"` // unit gold
	ProfitGold  float64 `json:"profit"`
}

// ArbitrageEntry is a realm whose average price sits above the cheapest realm.
type ArbitrageEntry struct {
	Realm     string  `json:"realm"`
	AvgPrice  float64 `json:"avg_price"`
	MinPrice  float64 `json:"min_price"`
	SpreadPct float64 `json:"spread_pct"`
}

// EconomyHealth is a coarse liquidity reading of a snapshot.
type EconomyHealth struct {
	Listings int    `json:"listings"`
	Health   string `json:"health"`
}

// Position is a held stack of an item.
type Position struct {
	ItemID   int32   `json:"item_id"`
	Quantity int64   `json:"qty"`
	BuyPrice float64 `json:"buy_price"` // unit gold paid
}

// PortfolioValuation marks positions to the current market.
type PortfolioValuation struct {
	CostGold    float64 `json:"cost"`
	CurrentGold float64 `json:"current"`
	PnLGold     float64 `json:"pnl"`
	PnLPct      float64 `json:"pnl_pct"` // 0 when cost is 0
}

// Scanner runs the opportunity detectors. History may be nil, in which case
// snipes fall back to current snapshot averages.
type Scanner struct {
	History            PriceHistory
	Tables             MarketTables
	SnipeThreshold     float64 // 0 = DefaultSnipeThreshold
	ArbitrageMinSpread float64 // 0 = DefaultArbitrageMinSpread
}

// NewScanner returns a scanner with default thresholds.
func NewScanner(history PriceHistory, tables MarketTables) *Scanner {
	return &Scanner{History: history, Tables: tables}
}

// historicalAvg prefers the stored weekly average and falls back to the
// snapshot's own average.
func (s *Scanner) historicalAvg(snap *auction.Snapshot, realmID, itemID int32) (float64, bool) {
	if s.History != nil {
		if v, ok := s.History.GetRecentPrice(itemID, realmID, SnipeWindow); ok {
			return v, true
		}
	}
	if st := AnalyzeItem(snap, itemID); st != nil {
		return st.Avg, true
	}
	return 0, false
}

// Snipes lists priced listings of an item below threshold × historical
// average. threshold <= 0 uses the scanner default.
func (s *Scanner) Snipes(snap *auction.Snapshot, realmID, itemID int32, threshold float64) []Snipe {
	if threshold <= 0 {
		threshold = s.SnipeThreshold
	}
	if threshold <= 0 {
		threshold = DefaultSnipeThreshold
	}
	out := []Snipe{}
	hist, ok := s.historicalAvg(snap, realmID, itemID)
	if !ok {
		return out
	}
	limit := hist * threshold
	for _, l := range snap.ListingsFor(itemID) {
		copper, ok := l.UnitCopper()
		if !ok {
			continue
		}
		unit := money.ToGold(copper)
		if unit >= limit {
			continue
		}
		out = append(out, Snipe{
			ListingID:   l.ID,
			Quantity:    l.Quantity,
			BuyPrice:    unit,
			HistAvg:     hist,
			SavingsGold: hist - unit,
		})
	}
	return out
}

// VendorFlips lists listings whose unit price is under the vendor sell price.
func (s *Scanner) VendorFlips(snap *auction.Snapshot) []VendorFlip {
	out := []VendorFlip{}
	if snap == nil {
		return out
	}
	for _, l := range snap.Auctions {
		vendor, ok := s.Tables.VendorPrices[l.ItemID]
		if !ok || vendor <= 0 {
			continue
		}
		copper, ok := l.UnitCopper()
		if !ok || copper >= float64(vendor) {
			continue
		}
		buy := money.ToGold(copper)
		sell := money.ToGold(float64(vendor))
		out = append(out, VendorFlip{
			ListingID:   l.ID,
			ItemID:      l.ItemID,
			Quantity:    l.Quantity,
			BuyPrice:    buy,
			VendorPrice: sell,
			ProfitGold:  (sell - buy) * float64(l.Quantity),
		})
	}
	return out
}

// FarmGPH is the expected gold per hour of a route at current prices.
// Unknown routes yield 0.
func (s *Scanner) FarmGPH(snap *auction.Snapshot, route string) float64 {
	r, ok := s.Tables.FarmRoutes[strings.ToLower(route)]
	if !ok {
		return 0
	}
	total := r.RawGoldPerHour
	for itemID, perHour := range r.ItemDrops {
		total += UnitPrice(snap, itemID) * perHour
	}
	return total
}

// RealmArbitrage compares an item's average price across realms and returns
// the realms priced more than the minimum spread above the cheapest one,
// widest spread first.
func (s *Scanner) RealmArbitrage(snaps map[string]*auction.Snapshot, itemID int32) []ArbitrageEntry {
	minSpread := s.ArbitrageMinSpread
	if minSpread <= 0 {
		minSpread = DefaultArbitrageMinSpread
	}

	avgs := make(map[string]float64, len(snaps))
	for realm, snap := range snaps {
		if st := AnalyzeItem(snap, itemID); st != nil {
			avgs[realm] = st.Avg
		}
	}
	out := []ArbitrageEntry{}
	if len(avgs) < 2 {
		return out
	}

	first := true
	var floor float64
	for _, v := range avgs {
		if first || v < floor {
			floor, first = v, false
		}
	}
	if floor <= 0 {
		return out
	}
	for realm, v := range avgs {
		spread := (v - floor) / floor * 100
		if spread <= minSpread {
			continue
		}
		out = append(out, ArbitrageEntry{Realm: realm, AvgPrice: v, MinPrice: floor, SpreadPct: spread})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SpreadPct != out[j].SpreadPct {
			return out[i].SpreadPct > out[j].SpreadPct
		}
		return out[i].Realm < out[j].Realm
	})
	return out
}

// PostingPrice suggests a listing price: 5% under the floor in
// volatile markets, otherwise a 1% undercut less one copper. The result is
// never below one copper.
func PostingPrice(stats ItemPriceStats, volatility float64) float64 {
	price := stats.Min*0.99 - postingEpsilonGold
	if volatility > HighVolatility {
		price = stats.Min * 0.95
	}
	return math.Max(price, postingEpsilonGold)
}

// Demand sums the listed volume of every crafted item that consumes the
// material.
func (s *Scanner) Demand(snap *auction.Snapshot, materialID int32) int64 {
	var total int64
	for _, crafted := range s.Tables.Demand[materialID] {
		if st := AnalyzeItem(snap, crafted); st != nil {
			total += st.Volume
		}
	}
	return total
}

// Health rates market liquidity by listing count.
func Health(snap *auction.Snapshot) EconomyHealth {
	n := 0
	if snap != nil {
		n = len(snap.Auctions)
	}
	h := EconomyHealth{Listings: n, Health: "Low Activity"}
	if n > StableListingCount {
		h.Health = "Stable"
	}
	return h
}

// Portfolio values positions at current cheapest asks.
func Portfolio(snap *auction.Snapshot, positions []Position) PortfolioValuation {
	var v PortfolioValuation
	for _, p := range positions {
		v.CostGold += p.BuyPrice * float64(p.Quantity)
		v.CurrentGold += UnitPrice(snap, p.ItemID) * float64(p.Quantity)
	}
	v.PnLGold = v.CurrentGold - v.CostGold
	if v.CostGold > 0 {
		v.PnLPct = v.PnLGold / v.CostGold * 100
	}
	return v
}
