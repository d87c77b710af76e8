package engine

import (
	"math"

	"wow-terminal/internal/auction"
	"wow-terminal/internal/money"
)

// AnalyzeItem computes price statistics for one item in a snapshot.
// Returns nil when the item has no listings or none of them carries a usable
// price. Listings without a price (or with zero quantity) still count toward
// Listings but not toward the price aggregates or Volume.
func AnalyzeItem(snap *auction.Snapshot, itemID int32) *ItemPriceStats {
	listings := snap.ListingsFor(itemID)
	if len(listings) == 0 {
		return nil
	}

	minCopper := math.MaxFloat64
	maxCopper := 0.0
	var sum float64
	var priced int
	var volume int64
	for _, l := range listings {
		unit, ok := l.UnitCopper()
		if !ok {
			continue
		}
		priced++
		sum += unit
		volume += l.Quantity
		if unit < minCopper {
			minCopper = unit
		}
		if unit > maxCopper {
			maxCopper = unit
		}
	}
	if priced == 0 {
		return nil
	}

	return &ItemPriceStats{
		Min:      money.ToGold(minCopper),
		Avg:      money.ToGold(sum / float64(priced)),
		Max:      money.ToGold(maxCopper),
		Volume:   volume,
		Listings: len(listings),
	}
}

// ListingView is a listing annotated with its per-unit gold price.
type ListingView struct {
	ListingID int64   `json:"listing_id"`
	ItemID    int32   `json:"item_id"`
	Quantity  int64   `json:"quantity"`
	UnitGold  float64 `json:"unit_gold"`
	Priced    bool    `json:"priced"`
}

// TopListings returns the first n listings of the snapshot with their unit
// prices, in snapshot order. n <= 0 means 20.
func TopListings(snap *auction.Snapshot, n int) []ListingView {
	if n <= 0 {
		n = 20
	}
	if snap == nil {
		return []ListingView{}
	}
	if n > len(snap.Auctions) {
		n = len(snap.Auctions)
	}
	out := make([]ListingView, 0, n)
	for _, l := range snap.Auctions[:n] {
		v := ListingView{ListingID: l.ID, ItemID: l.ItemID, Quantity: l.Quantity}
		if unit, ok := l.UnitCopper(); ok {
			v.UnitGold = money.ToGold(unit)
			v.Priced = true
		}
		out = append(out, v)
	}
	return out
}
