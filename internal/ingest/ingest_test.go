package ingest

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"wow-terminal/internal/auction"
	"wow-terminal/internal/engine"
)

type key struct {
	realm, item int32
	ts          int64
}

// memStore is a map-backed engine.PriceStore.
type memStore struct {
	mu      sync.Mutex
	rows    map[key]engine.ItemPriceStats
	failFor int32
}

func newMemStore() *memStore {
	return &memStore{rows: map[key]engine.ItemPriceStats{}}
}

func (m *memStore) StorePrice(realmID, itemID int32, stats engine.ItemPriceStats, ts int64) error {
	if itemID == m.failFor {
		return errors.New("disk full")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[key{realmID, itemID, ts}] = stats
	return nil
}

func (m *memStore) GetRecentPrice(itemID, realmID int32, window time.Duration) (float64, bool) {
	h := m.GetPriceHistory(itemID, realmID, window)
	if len(h) == 0 {
		return 0, false
	}
	return h[len(h)-1].AvgPrice, true
}

// GetPriceHistory ignores the window and returns every stored point, oldest first.
func (m *memStore) GetPriceHistory(itemID, realmID int32, _ time.Duration) []engine.PricePoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []engine.PricePoint
	for k, st := range m.rows {
		if k.item == itemID && k.realm == realmID {
			out = append(out, engine.PricePoint{Timestamp: k.ts, AvgPrice: st.Avg})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

type names map[int32]string

func (n names) ItemName(_ context.Context, id int32) (string, error) {
	if s, ok := n[id]; ok {
		return s, nil
	}
	return "", errors.New("unknown")
}

func listing(id int64, item int32, qty, copper int64) auction.Listing {
	return auction.Listing{ID: id, ItemID: item, Quantity: qty, Buyout: copper}
}

func TestIngestSnapshot(t *testing.T) {
	store := newMemStore()
	store.rows[key{57, 210798, 1_700_000_000 - 3600}] = engine.ItemPriceStats{Avg: 8} // previous avg 8g
	store.rows[key{57, 210798, 1_700_000_000 - 100_000}] = engine.ItemPriceStats{Avg: 1}
	in := &Ingestor{Store: store, Names: names{210798: "Mycobloom"}, Items: []int32{210798, 210808, 999}}

	snap := &auction.Snapshot{
		LastModified: 1_700_000_000_000,
		Auctions: []auction.Listing{
			listing(1, 210798, 10, 1_000_000), // 10g
			listing(2, 210808, 1, 50_000),     // 5g
		},
	}
	rows, err := in.IngestSnapshot(context.Background(), RealmSnapshot{RealmID: 57, Name: "illidan", Snapshot: snap})
	if err != nil {
		t.Fatalf("IngestSnapshot: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 (item 999 has no listings)", len(rows))
	}

	r := rows[0]
	if r.Name != "Mycobloom" || r.Realm != "illidan" || r.Timestamp != 1_700_000_000 {
		t.Errorf("row = %+v", r)
	}
	if math.Abs(r.ChangePct-25) > 1e-9 || r.ChangeText() != "+25.0%" {
		t.Errorf("ChangePct = %v (%s), want 25", r.ChangePct, r.ChangeText())
	}
	if rows[1].Name != "Item 210808" || rows[1].ChangePct != 0 {
		t.Errorf("row[1] = %+v, want placeholder name and no change", rows[1])
	}

	stored, ok := store.rows[key{57, 210798, 1_700_000_000}]
	if !ok || stored.Avg != 10 || stored.Volume != 10 {
		t.Errorf("stored = %+v/%v", stored, ok)
	}
}

func TestIngestSnapshot_TracksEveryItemAndFallsBackToNow(t *testing.T) {
	store := newMemStore()
	now := time.Unix(1_650_000_000, 0)
	in := &Ingestor{Store: store, Now: func() time.Time { return now }}

	snap := &auction.Snapshot{Auctions: []auction.Listing{
		listing(1, 3, 1, 100),
		listing(2, 1, 1, 100),
		listing(3, 3, 1, 300),
	}}
	rows, err := in.IngestSnapshot(context.Background(), RealmSnapshot{RealmID: 1, Snapshot: snap})
	if err != nil {
		t.Fatalf("IngestSnapshot: %v", err)
	}
	if len(rows) != 2 || rows[0].ItemID != 1 || rows[1].ItemID != 3 {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].Timestamp != now.Unix() {
		t.Errorf("Timestamp = %d, want %d", rows[0].Timestamp, now.Unix())
	}
}

func TestIngestSnapshot_StoreFailureIsReported(t *testing.T) {
	store := newMemStore()
	store.failFor = 2
	in := &Ingestor{Store: store}

	snap := &auction.Snapshot{LastModified: 5000, Auctions: []auction.Listing{
		listing(1, 1, 1, 100),
		listing(2, 2, 1, 100),
	}}
	rows, err := in.IngestSnapshot(context.Background(), RealmSnapshot{RealmID: 1, Snapshot: snap})
	if err == nil {
		t.Fatal("expected store error")
	}
	if len(rows) != 1 || rows[0].ItemID != 1 {
		t.Errorf("rows = %+v, want item 1 only", rows)
	}
}

func TestIngestRealms(t *testing.T) {
	store := newMemStore()
	in := &Ingestor{Store: store, Items: []int32{1, 2}, Concurrency: 2}

	var realms []RealmSnapshot
	for r := int32(5); r >= 1; r-- {
		realms = append(realms, RealmSnapshot{
			RealmID: r,
			Snapshot: &auction.Snapshot{LastModified: 1_000_000, Auctions: []auction.Listing{
				listing(1, 1, 1, int64(r)*10_000),
				listing(2, 2, 2, 40_000),
			}},
		})
	}
	rows, err := in.IngestRealms(context.Background(), realms)
	if err != nil {
		t.Fatalf("IngestRealms: %v", err)
	}
	if len(rows) != 10 {
		t.Fatalf("rows = %d, want 10", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		a, b := rows[i-1], rows[i]
		if a.RealmID > b.RealmID || (a.RealmID == b.RealmID && a.ItemID >= b.ItemID) {
			t.Errorf("rows not ordered at %d: %d/%d then %d/%d", i, a.RealmID, a.ItemID, b.RealmID, b.ItemID)
		}
	}
	if len(store.rows) != 10 {
		t.Errorf("stored = %d, want 10", len(store.rows))
	}
	if got := store.rows[key{3, 1, 1000}]; got.Avg != 3 {
		t.Errorf("realm 3 item 1 avg = %v, want 3", got.Avg)
	}

	empty, err := in.IngestRealms(context.Background(), nil)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("IngestRealms(nil) = %#v, %v", empty, err)
	}
}

func TestIngestSnapshot_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := &Ingestor{Store: newMemStore()}
	snap := &auction.Snapshot{Auctions: []auction.Listing{listing(1, 1, 1, 100)}}
	if _, err := in.IngestSnapshot(ctx, RealmSnapshot{RealmID: 1, Snapshot: snap}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestIngestSnapshot_ChangeIgnoresNewerRecords(t *testing.T) {
	store := newMemStore()
	in := &Ingestor{Store: store, Items: []int32{1}, Now: func() time.Time { return time.Unix(1_700_100_000, 0) }}
	ingest := func(ts int64, copper int64) SummaryRow {
		t.Helper()
		snap := &auction.Snapshot{LastModified: ts * 1000, Auctions: []auction.Listing{listing(1, 1, 1, copper)}}
		rows, err := in.IngestSnapshot(context.Background(), RealmSnapshot{RealmID: 1, Snapshot: snap})
		if err != nil || len(rows) != 1 {
			t.Fatalf("IngestSnapshot(%d) = %+v, %v", ts, rows, err)
		}
		return rows[0]
	}

	if r := ingest(1_700_000_000, 200_000); r.ChangePct != 0 {
		t.Errorf("first ChangePct = %v, want 0", r.ChangePct)
	}
	if r := ingest(1_699_990_000, 100_000); r.ChangePct != 0 {
		t.Errorf("older snapshot ChangePct = %v, want 0", r.ChangePct)
	}
	if r := ingest(1_700_003_600, 300_000); math.Abs(r.ChangePct-50) > 1e-9 {
		t.Errorf("newest ChangePct = %v, want 50", r.ChangePct)
	}
	if r := ingest(1_700_000_000, 150_000); math.Abs(r.ChangePct-50) > 1e-9 {
		t.Errorf("re-ingested ChangePct = %v, want 50 (vs 10g at an earlier hour)", r.ChangePct)
	}
}
