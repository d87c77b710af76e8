package db

import (
	"errors"
	"fmt"
	"time"

	"wow-terminal/internal/engine"
	"wow-terminal/internal/logger"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var _ engine.PriceStore = (*GormStore)(nil)

// priceRow mirrors the prices table of the SQLite store.
type priceRow struct {
	Timestamp int64   `gorm:"primaryKey;autoIncrement:false"`
	RealmID   int32   `gorm:"primaryKey;autoIncrement:false"`
	ItemID    int32   `gorm:"primaryKey;autoIncrement:false;index:idx_prices_item_realm"`
	MinPrice  float64 `gorm:"not null"`
	AvgPrice  float64 `gorm:"not null"`
	MaxPrice  float64 `gorm:"not null"`
	Volume    int64   `gorm:"not null"`
}

func (priceRow) TableName() string { return "prices" }

type itemNameRow struct {
	ItemID    int32  `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"size:255;not null"`
	UpdatedAt time.Time
}

func (itemNameRow) TableName() string { return "item_names" }

// GormStore is the MySQL-backed price store. It keeps the same keys,
// columns and failure policy as DB.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// OpenMySQL connects to MySQL, sizes the pool and migrates the schema.
func OpenMySQL(dsn string) (*GormStore, error) {
	if dsn == "" {
		return nil, errors.New("mysql dsn is empty")
	}
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := gdb.AutoMigrate(&priceRow{}, &itemNameRow{}); err != nil {
		return nil, fmt.Errorf("migrate mysql: %w", err)
	}
	logger.Success("DB", "Connected to MySQL")
	return NewGormStore(gdb), nil
}

// NewGormStore wraps an open gorm handle.
func NewGormStore(gdb *gorm.DB) *GormStore {
	return &GormStore{db: gdb, now: time.Now}
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *GormStore) upsert(row *priceRow) *gorm.DB {
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(row)
}

// StorePrice upserts one (timestamp, realm, item) record.
func (s *GormStore) StorePrice(realmID, itemID int32, stats engine.ItemPriceStats, timestamp int64) error {
	row := &priceRow{
		Timestamp: timestamp,
		RealmID:   realmID,
		ItemID:    itemID,
		MinPrice:  stats.Min,
		AvgPrice:  stats.Avg,
		MaxPrice:  stats.Max,
		Volume:    stats.Volume,
	}
	if err := s.upsert(row).Error; err != nil {
		return fmt.Errorf("store price %d/%d@%d: %w", realmID, itemID, timestamp, err)
	}
	return nil
}

func (s *GormStore) series(itemID, realmID int32, window time.Duration) *gorm.DB {
	cutoff := s.clock().Add(-window).Unix()
	return s.db.Model(&priceRow{}).
		Where("item_id = ? AND realm_id = ? AND timestamp > ?", itemID, realmID, cutoff)
}

// GetRecentPrice returns the average price of the newest record inside the window.
func (s *GormStore) GetRecentPrice(itemID, realmID int32, window time.Duration) (float64, bool) {
	if window <= 0 {
		window = engine.RecentWindow
	}
	var rows []priceRow
	res := s.series(itemID, realmID, window).Order("timestamp DESC").Limit(1).Find(&rows)
	if res.Error != nil {
		logger.Warn("DB", fmt.Sprintf("GetRecentPrice %d/%d: %v", realmID, itemID, res.Error))
		return 0, false
	}
	if len(rows) == 0 {
		return 0, false
	}
	return rows[0].AvgPrice, true
}

// GetPriceHistory returns the average prices inside the window, oldest first.
func (s *GormStore) GetPriceHistory(itemID, realmID int32, window time.Duration) []engine.PricePoint {
	if window <= 0 {
		window = engine.HistoryWindow
	}
	var rows []priceRow
	res := s.series(itemID, realmID, window).Order("timestamp ASC").Find(&rows)
	out := make([]engine.PricePoint, 0, len(rows))
	if res.Error != nil {
		logger.Warn("DB", fmt.Sprintf("GetPriceHistory %d/%d: %v", realmID, itemID, res.Error))
		return out
	}
	for _, r := range rows {
		out = append(out, engine.PricePoint{Timestamp: r.Timestamp, AvgPrice: r.AvgPrice})
	}
	return out
}

// GetItemName returns a cached item name.
func (s *GormStore) GetItemName(itemID int32) (string, bool) {
	var rows []itemNameRow
	if err := s.db.Where("item_id = ?", itemID).Limit(1).Find(&rows).Error; err != nil {
		logger.Warn("DB", fmt.Sprintf("GetItemName %d: %v", itemID, err))
		return "", false
	}
	if len(rows) == 0 {
		return "", false
	}
	return rows[0].Name, true
}

// SetItemName caches an item name.
func (s *GormStore) SetItemName(itemID int32, name string) {
	row := &itemNameRow{ItemID: itemID, Name: name, UpdatedAt: s.clock().UTC()}
	if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error; err != nil {
		logger.Warn("DB", fmt.Sprintf("SetItemName %d: %v", itemID, err))
	}
}
