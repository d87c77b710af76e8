package engine

import (
	"errors"
	"time"
)

// ItemPriceStats summarizes one item's listings in one snapshot. Prices are gold.
type ItemPriceStats struct {
	Min      float64 `json:"min"`
	Avg      float64 `json:"avg"`
	Max      float64 `json:"max"`
	Volume   int64   `json:"volume"`   // sum of quantities of priced listings
	Listings int     `json:"listings"` // all listings of the item, priced or not
}

// PricePoint is one stored average price, in gold.
type PricePoint struct {
	Timestamp int64   `json:"timestamp"` // epoch seconds
	AvgPrice  float64 `json:"avg_price"`
}

// PriceHistory is the read side of the time-series store. Implementations
// degrade storage failures to "no data": false / an empty slice.
type PriceHistory interface {
	GetRecentPrice(itemID, realmID int32, window time.Duration) (float64, bool)
	GetPriceHistory(itemID, realmID int32, window time.Duration) []PricePoint
}

// PriceWriter is the write side of the time-series store.
type PriceWriter interface {
	StorePrice(realmID, itemID int32, stats ItemPriceStats, timestamp int64) error
}

// PriceStore is a full time-series store.
type PriceStore interface {
	PriceHistory
	PriceWriter
}

// Default lookback windows.
const (
	RecentWindow    = 24 * time.Hour
	HistoryWindow   = 7 * 24 * time.Hour
	SnipeWindow     = 168 * time.Hour
	IndicatorWindow = 30 * 24 * time.Hour
)

var (
	ErrRecipeNotLoaded = errors.New("recipe not loaded")
	ErrNoCraftedItem   = errors.New("no crafted item")
	ErrUnknownRealm    = errors.New("no snapshot loaded for realm")
)
