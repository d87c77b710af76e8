package auction

import "encoding/json"

// Reagent is one input of a recipe.
type Reagent struct {
	ItemID   int32 `json:"item_id"`
	Quantity int64 `json:"quantity"`
}

// Recipe describes a craft: the reagents consumed and the item produced.
type Recipe struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	CraftedItemID *int32    `json:"crafted_item_id,omitempty"`
	Reagents      []Reagent `json:"reagents"`

	loaded bool
}

// Loaded reports whether the recipe carries any data.
func (r *Recipe) Loaded() bool {
	return r != nil && r.loaded
}

// NewRecipe builds a loaded recipe in code (tests, static definitions).
func NewRecipe(craftedItemID int32, reagents ...Reagent) *Recipe {
	id := craftedItemID
	return &Recipe{CraftedItemID: &id, Reagents: reagents, loaded: true}
}

type wireRecipe struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	CraftedItem *struct {
		ID int32 `json:"id"`
	} `json:"crafted_item"`
	Reagents []struct {
		Reagent *struct {
			ID int32 `json:"id"`
		} `json:"reagent"`
		Quantity int64 `json:"quantity"`
	} `json:"reagents"`
}

// ParseRecipe decodes a recipe document. Malformed or empty input never
// fails: it yields a recipe that reports Loaded() == false. Reagent entries
// without an item id are dropped.
func ParseRecipe(b []byte) *Recipe {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil || len(raw) == 0 {
		return &Recipe{}
	}
	var w wireRecipe
	if err := json.Unmarshal(b, &w); err != nil {
		return &Recipe{}
	}
	r := &Recipe{ID: w.ID, Name: w.Name, loaded: true}
	if w.CraftedItem != nil && w.CraftedItem.ID != 0 {
		id := w.CraftedItem.ID
		r.CraftedItemID = &id
	}
	for _, re := range w.Reagents {
		if re.Reagent == nil || re.Reagent.ID == 0 {
			continue
		}
		r.Reagents = append(r.Reagents, Reagent{ItemID: re.Reagent.ID, Quantity: re.Quantity})
	}
	return r
}
