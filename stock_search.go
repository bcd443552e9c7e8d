package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/traditionalchinese"
)

const (
	marketListed = "listed"
	marketOTC    = "otc"
	marketIndex  = "index"
	marketETF    = "etf"
)

type StockInfo struct {
	Code   string
	Name   string
	Market string
}

// StockDirectory is the in-memory code/name table behind /api/search. It is
// replaced wholesale on every reload.
type StockDirectory struct {
	mu     sync.RWMutex
	stocks []StockInfo
	byCode map[string]StockInfo
	logger *zap.Logger
}

func NewStockDirectory(logger *zap.Logger) *StockDirectory {
	return &StockDirectory{
		byCode: make(map[string]StockInfo),
		logger: logger.Named("directory"),
	}
}

func (d *StockDirectory) Replace(stocks []StockInfo) {
	byCode := make(map[string]StockInfo, len(stocks))
	for _, s := range stocks {
		byCode[s.Code] = s
	}

	d.mu.Lock()
	d.stocks = stocks
	d.byCode = byCode
	d.mu.Unlock()
}

func (d *StockDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.stocks)
}

func (d *StockDirectory) Lookup(code string) (StockInfo, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	info, ok := d.byCode[normalizeCode(code)]
	return info, ok
}

// LoadCSV reads "code,name,market" rows. A leading header row is skipped.
func (d *StockDirectory) LoadCSV(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	var stocks []StockInfo

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV record: %w", err)
		}
		if len(record) < 2 {
			continue
		}

		code := normalizeCode(record[0])
		if code == "" || strings.EqualFold(code, "code") {
			continue
		}
		market := marketListed
		if len(record) >= 3 && strings.TrimSpace(record[2]) != "" {
			market = strings.ToLower(strings.TrimSpace(record[2]))
		}
		stocks = append(stocks, StockInfo{
			Code:   code,
			Name:   strings.TrimSpace(record[1]),
			Market: market,
		})
	}

	d.Replace(stocks)
	d.logger.Info("directory loaded from csv", zap.String("path", path), zap.Int("stocks", len(stocks)))
	return nil
}

// RefreshFromISIN rebuilds the directory from the exchange's ISIN listing
// pages. Pages that fail are skipped; the directory is only replaced when at
// least one page parsed.
func (d *StockDirectory) RefreshFromISIN(ctx context.Context, client *resty.Client, urls []string) error {
	var stocks []StockInfo
	var errs []error

	for _, u := range urls {
		resp, err := client.R().
			SetContext(ctx).
			SetHeader("Accept", "text/html").
			Get(u)
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch %s: %w", u, err))
			continue
		}
		if err := checkResponse(resp); err != nil {
			errs = append(errs, fmt.Errorf("fetch %s: %w", u, err))
			continue
		}

		page, err := parseISINListing(decodeListing(resp.Body(), resp.Header().Get("Content-Type")))
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", u, err))
			continue
		}
		stocks = append(stocks, page...)
	}

	if len(stocks) == 0 {
		errs = append(errs, errors.New("no listings parsed"))
		return errors.Join(errs...)
	}
	for _, err := range errs {
		d.logger.Warn("isin page skipped", zap.Error(err))
	}

	d.Replace(stocks)
	d.logger.Info("directory refreshed from isin", zap.Int("stocks", len(stocks)))
	return nil
}

// decodeListing wraps body in a Big5 decoder unless the server declared UTF-8.
func decodeListing(body []byte, contentType string) io.Reader {
	if strings.Contains(strings.ToLower(contentType), "utf-8") {
		return bytes.NewReader(body)
	}
	return traditionalchinese.Big5.NewDecoder().Reader(bytes.NewReader(body))
}

// parseISINListing reads the listing table. Columns are: code+name,
// ISIN, listing date, market, industry, CFI code, note. Single-cell rows are
// section headers ("股票", "ETF", ...).
func parseISINListing(r io.Reader) ([]StockInfo, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var stocks []StockInfo
	section := ""
	doc.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 1 {
			section = strings.TrimSpace(cells.First().Text())
			return
		}
		if cells.Length() < 4 {
			return
		}

		code, name, ok := splitCodeName(cells.Eq(0).Text())
		if !ok {
			return
		}
		stocks = append(stocks, StockInfo{
			Code:   code,
			Name:   name,
			Market: marketFromListing(strings.TrimSpace(cells.Eq(3).Text()), section),
		})
	})
	return stocks, nil
}

// splitCodeName splits "2330　台積電"; the separator is an ideographic space.
func splitCodeName(raw string) (string, string, bool) {
	fields := strings.FieldsFunc(strings.TrimSpace(raw), func(r rune) bool {
		return r == '　' || r == ' ' || r == '\t'
	})
	if len(fields) < 2 {
		return "", "", false
	}
	code := normalizeCode(fields[0])
	if code == "" || code == "有價證券代號及名稱" {
		return "", "", false
	}
	return code, strings.Join(fields[1:], " "), true
}

func marketFromListing(market, section string) string {
	if strings.Contains(strings.ToUpper(section), "ETF") {
		return marketETF
	}
	switch {
	case strings.Contains(market, "上櫃"):
		return marketOTC
	case strings.Contains(market, "上市"):
		return marketListed
	}
	return marketListed
}

// Search matches a code prefix or a name substring, case-insensitively.
// Exact code hits come first, then code prefixes, then name matches.
func (d *StockDirectory) Search(query string, limit int) []StockSearchResult {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || limit <= 0 {
		return []StockSearchResult{}
	}

	type hit struct {
		rank int
		info StockInfo
	}

	d.mu.RLock()
	var hits []hit
	for _, stock := range d.stocks {
		code := strings.ToLower(stock.Code)
		switch {
		case code == query:
			hits = append(hits, hit{0, stock})
		case strings.HasPrefix(code, query):
			hits = append(hits, hit{1, stock})
		case strings.Contains(strings.ToLower(stock.Name), query):
			hits = append(hits, hit{2, stock})
		}
	}
	d.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].rank < hits[j].rank })

	results := make([]StockSearchResult, 0, limit)
	for _, h := range hits {
		if len(results) >= limit {
			break
		}
		results = append(results, StockSearchResult{
			Code:   h.info.Code,
			Name:   h.info.Name,
			Market: h.info.Market,
		})
	}
	return results
}
