package engine

import (
	"context"
	"fmt"
	"math"

	"wow-terminal/internal/auction"
	"wow-terminal/internal/money"
)

// UnitPrice returns the cheapest current ask for an item, in gold per unit.
// It is used both as the cost to acquire a reagent and as the price a crafted
// item can be sold at. Returns 0 when the item has no priced listing.
func UnitPrice(snap *auction.Snapshot, itemID int32) float64 {
	best := math.MaxFloat64
	for _, l := range snap.ListingsFor(itemID) {
		unit, ok := l.UnitCopper()
		if !ok {
			continue
		}
		if unit < best {
			best = unit
		}
	}
	if best == math.MaxFloat64 {
		return 0
	}
	return money.ToGold(best)
}

// NameResolver maps item ids to display names.
type NameResolver interface {
	ItemName(ctx context.Context, itemID int32) (string, error)
}

// PlaceholderName is the display name used when resolution fails.
func PlaceholderName(itemID int32) string {
	return fmt.Sprintf("Item %d", itemID)
}

// InputLine is one reagent in a profit calculation.
type InputLine struct {
	ItemID        int32   `json:"item_id"`
	Name          string  `json:"name"`
	Quantity      int64   `json:"quantity"` // reagent quantity × crafts
	UnitPriceGold float64 `json:"unit_price_gold"`
	TotalCostGold float64 `json:"total_cost_gold"`
}

// ProfitCalculation is the priced result of crafting a recipe N times.
type ProfitCalculation struct {
	CraftedItemID   int32       `json:"crafted_item_id"`
	CraftedName     string      `json:"crafted_name"`
	QuantityCrafted int64       `json:"quantity_crafted"`
	TotalCostGold   float64     `json:"total_cost_gold"`
	RevenueGold     float64     `json:"revenue_gold"`
	ProfitGold      float64     `json:"profit_gold"`
	MarginPct       float64     `json:"margin_pct"`
	Inputs          []InputLine `json:"inputs"`
}

// Verdict classifies the margin for display.
func (p *ProfitCalculation) Verdict() string {
	switch {
	case p.MarginPct > 10:
		return "Strong opportunity"
	case p.MarginPct > 0:
		return "Positive margin"
	default:
		return "Loss or break-even"
	}
}

// Valuator prices recipes against a snapshot.
type Valuator struct {
	Names NameResolver // optional; nil uses placeholders
}

func (v *Valuator) name(ctx context.Context, itemID int32) string {
	if v == nil || v.Names == nil {
		return PlaceholderName(itemID)
	}
	name, err := v.Names.ItemName(ctx, itemID)
	if err != nil || name == "" {
		return PlaceholderName(itemID)
	}
	return name
}

// CalculateProfit prices quantity crafts of recipe at current snapshot asks.
// A recipe without data yields ErrRecipeNotLoaded and one without a crafted
// item yields ErrNoCraftedItem. quantity <= 0 is treated as 1.
func (v *Valuator) CalculateProfit(ctx context.Context, recipe *auction.Recipe, snap *auction.Snapshot, quantity int64) (*ProfitCalculation, error) {
	if !recipe.Loaded() {
		return nil, ErrRecipeNotLoaded
	}
	if recipe.CraftedItemID == nil {
		return nil, ErrNoCraftedItem
	}
	if quantity <= 0 {
		quantity = 1
	}
	crafted := *recipe.CraftedItemID

	calc := &ProfitCalculation{
		CraftedItemID:   crafted,
		CraftedName:     v.name(ctx, crafted),
		QuantityCrafted: quantity,
		Inputs:          make([]InputLine, 0, len(recipe.Reagents)),
	}
	for _, r := range recipe.Reagents {
		unit := UnitPrice(snap, r.ItemID)
		cost := unit * float64(r.Quantity) * float64(quantity)
		calc.TotalCostGold += cost
		calc.Inputs = append(calc.Inputs, InputLine{
			ItemID:        r.ItemID,
			Name:          v.name(ctx, r.ItemID),
			Quantity:      r.Quantity * quantity,
			UnitPriceGold: unit,
			TotalCostGold: cost,
		})
	}

	calc.RevenueGold = UnitPrice(snap, crafted) * float64(quantity)
	calc.ProfitGold = calc.RevenueGold - calc.TotalCostGold
	if calc.TotalCostGold > 0 {
		calc.MarginPct = calc.ProfitGold / calc.TotalCostGold * 100
	}
	return calc, nil
}
