// Package auction holds the wire shapes delivered by the market data source:
// auction-house snapshots, their listings and crafting recipes.
package auction

import (
	"encoding/json"
	"fmt"
	"io"
)

// PriceSource names where a listing's total price came from.
type PriceSource int

const (
	SourceNone PriceSource = iota
	SourceBuyout
	SourceUnitPrice
)

func (s PriceSource) String() string {
	switch s {
	case SourceBuyout:
		return "buyout"
	case SourceUnitPrice:
		return "unit_price"
	default:
		return "none"
	}
}

// PricePrecedence is the order in which listing prices are consulted.
// The first source with a non-zero amount wins.
var PricePrecedence = []PriceSource{SourceBuyout, SourceUnitPrice}

// PriceQuote is the tagged result of resolving a listing's price.
type PriceQuote struct {
	Source PriceSource
	Copper int64
	Priced bool
}

// Listing is one auction. Amounts are in copper.
type Listing struct {
	ID        int64
	ItemID    int32
	Quantity  int64
	Buyout    int64 // 0 = absent
	UnitPrice int64 // 0 = absent
}

// Price resolves the listing's total price following PricePrecedence.
func (l Listing) Price() PriceQuote {
	for _, src := range PricePrecedence {
		var amount int64
		switch src {
		case SourceBuyout:
			amount = l.Buyout
		case SourceUnitPrice:
			amount = l.UnitPrice
		}
		if amount != 0 {
			return PriceQuote{Source: src, Copper: amount, Priced: true}
		}
	}
	return PriceQuote{}
}

// UnitCopper returns the per-unit price in copper. Listings without a
// usable price or with a zero quantity report false.
func (l Listing) UnitCopper() (float64, bool) {
	q := l.Price()
	if !q.Priced || l.Quantity == 0 {
		return 0, false
	}
	return float64(q.Copper) / float64(l.Quantity), true
}

type wireListing struct {
	ID   int64 `json:"id"`
	Item struct {
		ID int32 `json:"id"`
	} `json:"item"`
	Quantity  int64 `json:"quantity"`
	Buyout    int64 `json:"buyout,omitempty"`
	UnitPrice int64 `json:"unit_price,omitempty"`
}

func (l *Listing) UnmarshalJSON(b []byte) error {
	var w wireListing
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*l = Listing{ID: w.ID, ItemID: w.Item.ID, Quantity: w.Quantity, Buyout: w.Buyout, UnitPrice: w.UnitPrice}
	return nil
}

func (l Listing) MarshalJSON() ([]byte, error) {
	w := wireListing{ID: l.ID, Quantity: l.Quantity, Buyout: l.Buyout, UnitPrice: l.UnitPrice}
	w.Item.ID = l.ItemID
	return json.Marshal(w)
}

// Snapshot is a point-in-time set of listings for one realm.
// Operations in this repository only ever read a Snapshot.
type Snapshot struct {
	Auctions     []Listing `json:"auctions"`
	LastModified int64     `json:"lastModified"` // epoch milliseconds
}

// Timestamp returns LastModified in epoch seconds (0 if unknown).
func (s *Snapshot) Timestamp() int64 {
	if s == nil || s.LastModified <= 0 {
		return 0
	}
	return s.LastModified / 1000
}

// ListingsFor returns the listings of one item, in snapshot order.
func (s *Snapshot) ListingsFor(itemID int32) []Listing {
	if s == nil {
		return nil
	}
	var out []Listing
	for _, l := range s.Auctions {
		if l.ItemID == itemID {
			out = append(out, l)
		}
	}
	return out
}

// ParseSnapshot decodes a snapshot document. A missing "auctions" key yields
// an empty listing slice.
func ParseSnapshot(b []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Auctions == nil {
		s.Auctions = []Listing{}
	}
	return &s, nil
}

// DecodeSnapshot reads a snapshot document from r.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return ParseSnapshot(b)
}
