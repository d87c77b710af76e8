package db

import (
	"fmt"
	"time"

	"wow-terminal/internal/engine"
	"wow-terminal/internal/logger"
)

var _ engine.PriceStore = (*DB)(nil)

func (d *DB) clock() time.Time {
	if d.now == nil {
		return time.Now()
	}
	return d.now()
}

// StorePrice upserts one (timestamp, realm, item) record. A second write for
// the same key replaces every column.
func (d *DB) StorePrice(realmID, itemID int32, stats engine.ItemPriceStats, timestamp int64) error {
	_, err := d.sql.Exec(
		`INSERT OR REPLACE INTO prices (timestamp, realm_id, item_id, min_price, avg_price, max_price, volume)
		 VALUES (?,?,?,?,?,?,?)`,
		timestamp, realmID, itemID, stats.Min, stats.Avg, stats.Max, stats.Volume,
	)
	if err != nil {
		return fmt.Errorf("store price %d/%d@%d: %w", realmID, itemID, timestamp, err)
	}
	return nil
}

// GetRecentPrice returns the average price of the newest record inside the
// window. Storage errors are logged and reported as no data.
func (d *DB) GetRecentPrice(itemID, realmID int32, window time.Duration) (float64, bool) {
	if window <= 0 {
		window = engine.RecentWindow
	}
	cutoff := d.clock().Add(-window).Unix()

	var avg float64
	err := d.sql.QueryRow(
		`SELECT avg_price FROM prices
		 WHERE item_id=? AND realm_id=? AND timestamp > ?
		 ORDER BY timestamp DESC LIMIT 1`,
		itemID, realmID, cutoff,
	).Scan(&avg)
	if err != nil {
		if !isNoRows(err) {
			logger.Warn("DB", fmt.Sprintf("GetRecentPrice %d/%d: %v", realmID, itemID, err))
		}
		return 0, false
	}
	return avg, true
}

// GetPriceHistory returns the average prices inside the window, oldest first.
// Storage errors are logged and reported as an empty history.
func (d *DB) GetPriceHistory(itemID, realmID int32, window time.Duration) []engine.PricePoint {
	if window <= 0 {
		window = engine.HistoryWindow
	}
	cutoff := d.clock().Add(-window).Unix()

	out := []engine.PricePoint{}
	rows, err := d.sql.Query(
		`SELECT timestamp, avg_price FROM prices
		 WHERE item_id=? AND realm_id=? AND timestamp > ?
		 ORDER BY timestamp ASC`,
		itemID, realmID, cutoff,
	)
	if err != nil {
		logger.Warn("DB", fmt.Sprintf("GetPriceHistory %d/%d: %v", realmID, itemID, err))
		return out
	}
	defer rows.Close()

	for rows.Next() {
		var p engine.PricePoint
		if err := rows.Scan(&p.Timestamp, &p.AvgPrice); err != nil {
			continue
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		logger.Warn("DB", fmt.Sprintf("GetPriceHistory %d/%d: %v", realmID, itemID, err))
	}
	return out
}

// CountPrices returns the number of stored records.
func (d *DB) CountPrices() int64 {
	var n int64
	if err := d.sql.QueryRow("SELECT COUNT(*) FROM prices").Scan(&n); err != nil {
		logger.Warn("DB", fmt.Sprintf("CountPrices: %v", err))
		return 0
	}
	return n
}

// PruneBefore deletes records older than cutoff and returns how many went.
func (d *DB) PruneBefore(cutoff int64) int64 {
	res, err := d.sql.Exec("DELETE FROM prices WHERE timestamp < ?", cutoff)
	if err != nil {
		logger.Warn("DB", fmt.Sprintf("PruneBefore: %v", err))
		return 0
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logger.Info("DB", fmt.Sprintf("Pruned %d old price rows", n))
	}
	return n
}
