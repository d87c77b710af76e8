// Package ingest turns auction snapshots into stored price records and a
// per-item market summary.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"wow-terminal/internal/auction"
	"wow-terminal/internal/engine"
	"wow-terminal/internal/logger"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// SummaryRow is one line of the market summary.
type SummaryRow struct {
	RealmID   int32                 `json:"realm_id"`
	Realm     string                `json:"realm"`
	ItemID    int32                 `json:"item_id"`
	Name      string                `json:"name"`
	Stats     engine.ItemPriceStats `json:"stats"`
	ChangePct float64               `json:"change_pct"` // vs the newest record in the 24h before Timestamp; 0 without one
	Timestamp int64                 `json:"timestamp"`
}

// ChangeText renders the change as "+1.5%".
func (r SummaryRow) ChangeText() string {
	return fmt.Sprintf("%+.1f%%", r.ChangePct)
}

// RealmSnapshot is one realm's snapshot to ingest.
type RealmSnapshot struct {
	RealmID  int32
	Name     string
	Snapshot *auction.Snapshot
}

// Ingestor analyzes tracked items and writes them to the store.
type Ingestor struct {
	Store       engine.PriceStore
	Names       engine.NameResolver // optional
	Items       []int32             // tracked items; empty tracks every listed item
	Concurrency int                 // realms ingested at once; 0 = 4
	Now         func() time.Time
}

func (in *Ingestor) now() time.Time {
	if in.Now != nil {
		return in.Now()
	}
	return time.Now()
}

func (in *Ingestor) itemsFor(snap *auction.Snapshot) []int32 {
	if len(in.Items) > 0 {
		return in.Items
	}
	seen := make(map[int32]struct{})
	var ids []int32
	if snap != nil {
		for _, l := range snap.Auctions {
			if _, ok := seen[l.ItemID]; ok {
				continue
			}
			seen[l.ItemID] = struct{}{}
			ids = append(ids, l.ItemID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (in *Ingestor) name(ctx context.Context, itemID int32) string {
	if in.Names == nil {
		return engine.PlaceholderName(itemID)
	}
	name, err := in.Names.ItemName(ctx, itemID)
	if err != nil || name == "" {
		return engine.PlaceholderName(itemID)
	}
	return name
}

// previousAvg returns the newest stored average in the 24h before ts.
// Records at or after ts are ignored so an older snapshot ingested late is
// not compared against newer data.
func (in *Ingestor) previousAvg(itemID, realmID int32, ts int64) (float64, bool) {
	window := time.Duration(in.now().Unix()-ts)*time.Second + engine.RecentWindow
	if window < engine.RecentWindow {
		window = engine.RecentWindow
	}
	from := ts - int64(engine.RecentWindow/time.Second)
	history := in.Store.GetPriceHistory(itemID, realmID, window)
	for i := len(history) - 1; i >= 0; i-- {
		p := history[i]
		if p.Timestamp <= from {
			break
		}
		if p.Timestamp < ts {
			return p.AvgPrice, true
		}
	}
	return 0, false
}

// IngestSnapshot stores the stats of every tracked item found in snap at the
// snapshot's timestamp. Items without listings are skipped. Store failures
// do not stop the run; they are returned joined after all items are tried.
func (in *Ingestor) IngestSnapshot(ctx context.Context, rs RealmSnapshot) ([]SummaryRow, error) {
	ts := rs.Snapshot.Timestamp()
	if ts <= 0 {
		ts = in.now().Unix()
	}

	rows := []SummaryRow{}
	var errs []error
	for _, itemID := range in.itemsFor(rs.Snapshot) {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		stats := engine.AnalyzeItem(rs.Snapshot, itemID)
		if stats == nil {
			logger.Debug("INGEST", fmt.Sprintf("No auctions for item %d on realm %d", itemID, rs.RealmID))
			continue
		}

		var change float64
		if prev, ok := in.previousAvg(itemID, rs.RealmID, ts); ok && prev != 0 {
			change = (stats.Avg - prev) / prev * 100
		}
		if err := in.Store.StorePrice(rs.RealmID, itemID, *stats, ts); err != nil {
			errs = append(errs, err)
			continue
		}
		rows = append(rows, SummaryRow{
			RealmID:   rs.RealmID,
			Realm:     rs.Name,
			ItemID:    itemID,
			Name:      in.name(ctx, itemID),
			Stats:     *stats,
			ChangePct: change,
			Timestamp: ts,
		})
	}

	logger.Info("INGEST", fmt.Sprintf("Realm %d (%s): %s listings, %d items stored",
		rs.RealmID, rs.Name, humanize.Comma(int64(engine.Health(rs.Snapshot).Listings)), len(rows)))
	return rows, errors.Join(errs...)
}

// IngestRealms ingests several realms concurrently. Rows come back ordered
// by realm id, then item id. A failing realm does not cancel the others.
func (in *Ingestor) IngestRealms(ctx context.Context, realms []RealmSnapshot) ([]SummaryRow, error) {
	limit := in.Concurrency
	if limit <= 0 {
		limit = 4
	}
	var g errgroup.Group
	g.SetLimit(limit)

	var mu sync.Mutex
	var all []SummaryRow
	var errs []error
	for _, rs := range realms {
		rs := rs
		g.Go(func() error {
			rows, err := in.IngestSnapshot(ctx, rs)
			mu.Lock()
			defer mu.Unlock()
			all = append(all, rows...)
			if err != nil {
				errs = append(errs, fmt.Errorf("realm %d: %w", rs.RealmID, err))
			}
			return nil
		})
	}
	g.Wait()

	sort.Slice(all, func(i, j int) bool {
		if all[i].RealmID != all[j].RealmID {
			return all[i].RealmID < all[j].RealmID
		}
		return all[i].ItemID < all[j].ItemID
	})
	if all == nil {
		all = []SummaryRow{}
	}
	return all, errors.Join(errs...)
}
