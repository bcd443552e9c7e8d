package main

import (
	"errors"
	"time"
)

var (
	// ErrNotFound means every upstream period or candidate came back empty.
	ErrNotFound = errors.New("no data found")
	// ErrBadInput wraps request validation failures.
	ErrBadInput = errors.New("bad input")
)

// DailyBar is one trading day. Prices are rounded to 2 decimals and Volume
// is in thousands of shares.
type DailyBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"vol"`
}

// Series is the /api/stock payload. Data is ascending by date with no
// duplicate dates.
type Series struct {
	Code string     `json:"code"`
	Name string     `json:"name"`
	Data []DailyBar `json:"data"`
}

// Quote is a real-time snapshot. Any numeric field may be missing upstream.
type Quote struct {
	Name   string   `json:"name"`
	Price  *float64 `json:"price"`
	Prev   *float64 `json:"prev"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Volume *int64   `json:"vol"`
}

type WatchedStockAPI struct {
	ID        int        `json:"id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	AddedAt   time.Time  `json:"addedAt"`
	LastSync  *time.Time `json:"lastSync"`
	LastPrice *float64   `json:"lastPrice"`
	IsActive  bool       `json:"isActive"`
}

type AddStockRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name,omitempty"`
}

type StockSearchResult struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Market string `json:"market"`
}
