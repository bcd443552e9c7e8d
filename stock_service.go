package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// SeriesProvider fetches a daily series for a code. It returns an error
// wrapping ErrNotFound when the upstream simply has no data.
type SeriesProvider interface {
	Name() string
	FetchSeries(ctx context.Context, code string, months int) (*Series, error)
}

// QuoteProvider fetches a real-time snapshot.
type QuoteProvider interface {
	FetchQuote(ctx context.Context, code string) (*Quote, error)
}

// StockService tries each configured provider in order and returns the
// first non-empty result. Nothing is merged across providers.
type StockService struct {
	providers []SeriesProvider
	quotes    QuoteProvider
	directory *StockDirectory
	logger    *zap.Logger
	maxMonths int
}

func NewStockService(providers []SeriesProvider, quotes QuoteProvider, directory *StockDirectory, maxMonths int, logger *zap.Logger) *StockService {
	return &StockService{
		providers: providers,
		quotes:    quotes,
		directory: directory,
		logger:    logger.Named("service"),
		maxMonths: maxMonths,
	}
}

// buildProviders maps provider names from the config to clients.
func buildProviders(cfg *Config, logger *zap.Logger, metrics *Metrics) ([]SeriesProvider, error) {
	var providers []SeriesProvider
	for _, name := range cfg.Upstream.Providers {
		switch name {
		case providerTWSE:
			providers = append(providers, NewTWSEClient(cfg, logger, metrics))
		case providerYahoo:
			providers = append(providers, NewYahooClient(cfg, logger, metrics))
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}
	return providers, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *StockService) validateMonths(months int) error {
	if months < 1 {
		return fmt.Errorf("%w: months must be at least 1", ErrBadInput)
	}
	if s.maxMonths > 0 && months > s.maxMonths {
		return fmt.Errorf("%w: months must be at most %d", ErrBadInput, s.maxMonths)
	}
	return nil
}

// ResolveSeries returns the series for code over the last months calendar
// months. Provider failures are logged and fall through to the next
// provider; when none yields data the error wraps ErrNotFound.
func (s *StockService) ResolveSeries(ctx context.Context, code string, months int) (*Series, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrBadInput)
	}
	if err := s.validateMonths(months); err != nil {
		return nil, err
	}

	for _, p := range s.providers {
		series, err := p.FetchSeries(ctx, code, months)
		switch {
		case err == nil && series != nil && len(series.Data) > 0:
			if series.Name == "" || series.Name == code {
				series.Name = s.lookupName(code)
			}
			s.logger.Info("series resolved",
				zap.String("code", code),
				zap.String("provider", p.Name()),
				zap.Int("months", months),
				zap.Int("bars", len(series.Data)))
			return series, nil
		case err == nil, errors.Is(err, ErrNotFound):
			s.logger.Debug("provider has no data", zap.String("code", code), zap.String("provider", p.Name()))
		default:
			s.logger.Warn("provider failed", zap.String("code", code), zap.String("provider", p.Name()), zap.Error(err))
		}
	}

	return nil, fmt.Errorf("%s: %w", code, ErrNotFound)
}

// ResolveQuote returns the real-time snapshot for code.
func (s *StockService) ResolveQuote(ctx context.Context, code string) (*Quote, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrBadInput)
	}
	if s.quotes == nil {
		return nil, fmt.Errorf("real-time quotes are not configured")
	}

	quote, err := s.quotes.FetchQuote(ctx, code)
	if err != nil {
		return nil, err
	}
	if quote.Name == "" || quote.Name == code {
		quote.Name = s.lookupName(code)
	}
	return quote, nil
}

func (s *StockService) lookupName(code string) string {
	if s.directory != nil {
		if info, ok := s.directory.Lookup(code); ok && info.Name != "" {
			return info.Name
		}
	}
	return code
}
