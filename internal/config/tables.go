package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"wow-terminal/internal/engine"
	"wow-terminal/internal/logger"

	"github.com/spf13/viper"
)

// Tables is the static reference data loaded from the tables file.
type Tables struct {
	Market    engine.MarketTables
	ItemNames map[int32]string
}

type vendorEntry struct {
	ItemID int32 `mapstructure:"item_id"`
	Copper int64 `mapstructure:"copper"`
}

type dropEntry struct {
	ItemID  int32   `mapstructure:"item_id"`
	PerHour float64 `mapstructure:"per_hour"`
}

type routeEntry struct {
	Name           string      `mapstructure:"name"`
	RawGoldPerHour float64     `mapstructure:"raw_gold_per_hour"`
	Drops          []dropEntry `mapstructure:"drops"`
}

type demandEntry struct {
	MaterialID int32   `mapstructure:"material_id"`
	Crafted    []int32 `mapstructure:"crafted"`
}

type nameEntry struct {
	ItemID int32  `mapstructure:"item_id"`
	Name   string `mapstructure:"name"`
}

type tablesFile struct {
	VendorPrices []vendorEntry `mapstructure:"vendor_prices"`
	FarmRoutes   []routeEntry  `mapstructure:"farm_routes"`
	Demand       []demandEntry `mapstructure:"demand"`
	Items        []nameEntry   `mapstructure:"items"`
}

// EmptyTables returns tables with every map allocated.
func EmptyTables() *Tables {
	return &Tables{
		Market: engine.MarketTables{
			VendorPrices: map[int32]int64{},
			FarmRoutes:   map[string]engine.FarmRoute{},
			Demand:       map[int32][]int32{},
		},
		ItemNames: map[int32]string{},
	}
}

// LoadTables reads the tables file (YAML, JSON or TOML by extension).
// A missing file yields empty tables and a warning.
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		return EmptyTables(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		logger.Warn("CONFIG", fmt.Sprintf("Tables file %s not found, scanner tables are empty", path))
		return EmptyTables(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read tables %s: %w", path, err)
	}
	var raw tablesFile
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("decode tables %s: %w", path, err)
	}

	t := raw.build()
	logger.Info("CONFIG", fmt.Sprintf("Loaded tables: %d vendor prices, %d farm routes, %d materials, %d item names",
		len(t.Market.VendorPrices), len(t.Market.FarmRoutes), len(t.Market.Demand), len(t.ItemNames)))
	return t, nil
}

func (raw tablesFile) build() *Tables {
	t := EmptyTables()
	for _, e := range raw.VendorPrices {
		t.Market.VendorPrices[e.ItemID] = e.Copper
	}
	for _, r := range raw.FarmRoutes {
		route := engine.FarmRoute{RawGoldPerHour: r.RawGoldPerHour, ItemDrops: make(map[int32]float64, len(r.Drops))}
		for _, d := range r.Drops {
			route.ItemDrops[d.ItemID] += d.PerHour
		}
		t.Market.FarmRoutes[strings.ToLower(strings.TrimSpace(r.Name))] = route
	}
	for _, d := range raw.Demand {
		t.Market.Demand[d.MaterialID] = append(t.Market.Demand[d.MaterialID], d.Crafted...)
	}
	for _, n := range raw.Items {
		if n.Name != "" {
			t.ItemNames[n.ItemID] = n.Name
		}
	}
	return t
}
