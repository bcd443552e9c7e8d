package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(allModels...); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// AddWatchedStock is idempotent: an existing code keeps its row, but a
// non-empty name replaces the stored one.
func (d *Database) AddWatchedStock(code, name string) (*WatchedStock, error) {
	stock := WatchedStock{
		Code:     code,
		Name:     name,
		IsActive: true,
	}

	result := d.db.Where("code = ?", code).FirstOrCreate(&stock)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to add watched stock: %w", result.Error)
	}

	if name != "" && stock.Name != name {
		if err := d.db.Model(&stock).Update("name", name).Error; err != nil {
			return nil, fmt.Errorf("failed to rename watched stock: %w", err)
		}
	}
	return &stock, nil
}

func (d *Database) RemoveWatchedStock(code string) error {
	result := d.db.Where("code = ?", code).Delete(&WatchedStock{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove watched stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("watched stock %s: %w", code, ErrNotFound)
	}
	return nil
}

func (d *Database) GetWatchedStocks() ([]WatchedStock, error) {
	var stocks []WatchedStock
	result := d.db.Where("is_active = ?", true).Order("added_at DESC, id DESC").Find(&stocks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query watched stocks: %w", result.Error)
	}
	return stocks, nil
}

func (d *Database) GetWatchedStock(code string) (*WatchedStock, error) {
	var stock WatchedStock
	err := d.db.Where("code = ?", code).First(&stock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("watched stock %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query watched stock: %w", err)
	}
	return &stock, nil
}

// UpdateLastQuote stores the latest price snapshot for a watched code.
func (d *Database) UpdateLastQuote(code string, price *float64, at time.Time) error {
	result := d.db.Model(&WatchedStock{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{
			"last_sync":  at,
			"last_price": price,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update last quote: %w", result.Error)
	}
	return nil
}
