package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wow-terminal/internal/logger"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// GetItemName returns a cached item name.
func (d *DB) GetItemName(itemID int32) (string, bool) {
	var name string
	err := d.sql.QueryRow("SELECT name FROM item_names WHERE item_id=?", itemID).Scan(&name)
	if err != nil {
		if !isNoRows(err) {
			logger.Warn("DB", fmt.Sprintf("GetItemName %d: %v", itemID, err))
		}
		return "", false
	}
	return name, true
}

// SetItemName caches an item name.
func (d *DB) SetItemName(itemID int32, name string) {
	_, err := d.sql.Exec(
		"INSERT OR REPLACE INTO item_names (item_id, name, updated_at) VALUES (?,?,?)",
		itemID, name, d.clock().UTC().Format(time.RFC3339),
	)
	if err != nil {
		logger.Warn("DB", fmt.Sprintf("SetItemName %d: %v", itemID, err))
	}
}
