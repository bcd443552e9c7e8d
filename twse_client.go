package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// twseStockDay is the STOCK_DAY response. Rows are
// [date, shares, turnover, open, high, low, close, change, transactions].
type twseStockDay struct {
	Stat   string     `json:"stat"`
	Title  string     `json:"title"`
	Fields []string   `json:"fields"`
	Data   [][]string `json:"data"`
}

// TWSEClient pages the exchange's STOCK_DAY report one calendar month at a
// time. It only knows listed stocks.
type TWSEClient struct {
	client    *resty.Client
	logger    *zap.Logger
	metrics   *Metrics
	pageDelay time.Duration
	location  *time.Location
	now       func() time.Time
}

func NewTWSEClient(cfg *Config, logger *zap.Logger, metrics *Metrics) *TWSEClient {
	return &TWSEClient{
		client:    newUpstreamClient(cfg.Upstream.TWSEBaseURL, cfg.Upstream.UserAgent, cfg.Upstream.Timeout),
		logger:    logger.Named("twse"),
		metrics:   metrics,
		pageDelay: cfg.Upstream.PageDelay,
		location:  taipeiLocation(),
		now:       time.Now,
	}
}

func (t *TWSEClient) Name() string { return providerTWSE }

// monthStarts returns the first day of each of the last n months, oldest
// first, ending with the current month.
func monthStarts(now time.Time, n int) []time.Time {
	months := make([]time.Time, 0, n)
	for i := n - 1; i >= 0; i-- {
		months = append(months, time.Date(now.Year(), now.Month()-time.Month(i), 1, 0, 0, 0, 0, now.Location()))
	}
	return months
}

// FetchSeries aggregates every month that has data. A month that is empty
// or fails upstream is skipped; only an all-empty window is ErrNotFound.
func (t *TWSEClient) FetchSeries(ctx context.Context, code string, months int) (*Series, error) {
	limiter := rate.NewLimiter(rate.Every(t.pageDelay), 1)
	if t.pageDelay <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	name := ""
	var bars []DailyBar

	for _, month := range monthStarts(t.now().In(t.location), months) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		date := month.Format("20060102")
		started := time.Now()
		page, err := t.fetchMonth(ctx, code, date)
		if err != nil {
			t.metrics.observeUpstream(providerTWSE, outcomeError, started)
			t.logger.Warn("month fetch failed", zap.String("code", code), zap.String("month", date), zap.Error(err))
			continue
		}
		if page.Stat != "OK" || len(page.Data) == 0 {
			t.metrics.observeUpstream(providerTWSE, outcomeEmpty, started)
			t.logger.Debug("month has no data", zap.String("code", code), zap.String("month", date), zap.String("stat", page.Stat))
			continue
		}
		t.metrics.observeUpstream(providerTWSE, outcomeOK, started)

		if name == "" {
			name = nameFromTitle(page.Title, code)
		}
		for i, row := range page.Data {
			bar, err := parseTWSERow(row)
			if err != nil {
				t.logger.Debug("dropping row", zap.String("code", code), zap.String("month", date), zap.Int("row", i), zap.Error(err))
				continue
			}
			bars = append(bars, bar)
		}
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("twse %s: %w", code, ErrNotFound)
	}
	if name == "" {
		name = code
	}
	return &Series{Code: code, Name: name, Data: normalizeBars(bars)}, nil
}

func (t *TWSEClient) fetchMonth(ctx context.Context, code, date string) (*twseStockDay, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"response": "json",
			"date":     date,
			"stockNo":  code,
		}).
		Get("/exchangeReport/STOCK_DAY")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var page twseStockDay
	if err := decodeUpstreamJSON(resp.Body(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func parseTWSERow(row []string) (DailyBar, error) {
	if len(row) < 7 {
		return DailyBar{}, fmt.Errorf("expected at least 7 columns, got %d", len(row))
	}

	date, err := minguoToISO(row[0])
	if err != nil {
		return DailyBar{}, err
	}
	shares, err := parseNumber(row[1])
	if err != nil {
		return DailyBar{}, err
	}

	var prices [4]float64
	for i := range prices {
		d, err := parseNumber(row[3+i])
		if err != nil {
			return DailyBar{}, err
		}
		prices[i] = roundPrice(d)
	}

	return DailyBar{
		Date:   date,
		Open:   prices[0],
		High:   prices[1],
		Low:    prices[2],
		Close:  prices[3],
		Volume: sharesToThousands(shares),
	}, nil
}

// nameFromTitle pulls the security name out of a title such as
// "113年05月 2330 台積電           各日成交資訊".
func nameFromTitle(title, code string) string {
	fields := strings.Fields(title)
	for i, f := range fields {
		if strings.EqualFold(f, code) && i+1 < len(fields) {
			if name := fields[i+1]; name != "各日成交資訊" {
				return name
			}
		}
	}
	return code
}
