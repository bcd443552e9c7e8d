package main

import (
	"time"
)

// GORM models for the watchlist database. Price history is never stored;
// a watched code only keeps its most recent quote.

// WatchedStock is a code the scheduler keeps a fresh quote for.
type WatchedStock struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Code      string     `gorm:"uniqueIndex;not null" json:"code"`
	Name      string     `gorm:"" json:"name"`
	AddedAt   time.Time  `gorm:"autoCreateTime" json:"addedAt"`
	LastSync  *time.Time `gorm:"" json:"lastSync"`
	LastPrice *float64   `gorm:"" json:"lastPrice"`
	IsActive  bool       `gorm:"default:true;not null" json:"isActive"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name for WatchedStock
func (WatchedStock) TableName() string {
	return "watched_stocks"
}

var allModels = []interface{}{
	&WatchedStock{},
}
