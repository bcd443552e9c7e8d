package main

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler refreshes watched-stock quotes and the stock directory on cron
// schedules evaluated in Taipei time.
type Scheduler struct {
	service   *StockService
	database  *Database
	directory *StockDirectory
	isin      *resty.Client
	isinURLs  []string
	pause     time.Duration
	cron      *cron.Cron
	logger    *zap.Logger
}

func NewScheduler(cfg *Config, service *StockService, database *Database, directory *StockDirectory, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		service:   service,
		database:  database,
		directory: directory,
		isin:      newUpstreamClient("", cfg.Upstream.UserAgent, cfg.Upstream.Timeout),
		isinURLs:  cfg.Directory.ISINURLs,
		pause:     cfg.Upstream.PageDelay,
		cron:      cron.New(cron.WithLocation(taipeiLocation())),
		logger:    logger.Named("scheduler"),
	}
}

// Register adds the quote job when a database is present and the directory
// job when ISIN pages are configured.
func (s *Scheduler) Register(quoteSpec, directorySpec string) error {
	if s.database != nil {
		if _, err := s.cron.AddFunc(quoteSpec, func() {
			s.refreshWatchedQuotes(context.Background())
		}); err != nil {
			return err
		}
		s.logger.Info("quote refresh scheduled", zap.String("spec", quoteSpec))
	}

	if s.directory != nil && len(s.isinURLs) > 0 {
		if _, err := s.cron.AddFunc(directorySpec, func() {
			s.refreshDirectory(context.Background())
		}); err != nil {
			return err
		}
		s.logger.Info("directory refresh scheduled", zap.String("spec", directorySpec))
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// refreshWatchedQuotes fetches the latest quote for every watched code.
func (s *Scheduler) refreshWatchedQuotes(ctx context.Context) (succeeded, failed int) {
	stocks, err := s.database.GetWatchedStocks()
	if err != nil {
		s.logger.Error("listing watched stocks", zap.Error(err))
		return 0, 0
	}
	if len(stocks) == 0 {
		s.logger.Debug("no watched stocks to update")
		return 0, 0
	}

	s.logger.Info("updating watched stocks", zap.Int("count", len(stocks)))

	for i, stock := range stocks {
		if i > 0 && s.pause > 0 {
			select {
			case <-ctx.Done():
				return succeeded, failed + len(stocks) - i
			case <-time.After(s.pause):
			}
		}

		quote, err := s.service.ResolveQuote(ctx, stock.Code)
		if err != nil {
			s.logger.Warn("quote refresh failed", zap.String("code", stock.Code), zap.Error(err))
			failed++
			continue
		}
		if err := s.database.UpdateLastQuote(stock.Code, quote.Price, time.Now()); err != nil {
			s.logger.Warn("storing quote failed", zap.String("code", stock.Code), zap.Error(err))
			failed++
			continue
		}
		succeeded++
	}

	s.logger.Info("watched stocks updated", zap.Int("succeeded", succeeded), zap.Int("failed", failed))
	return succeeded, failed
}

func (s *Scheduler) refreshDirectory(ctx context.Context) {
	if err := s.directory.RefreshFromISIN(ctx, s.isin, s.isinURLs); err != nil {
		s.logger.Warn("directory refresh failed", zap.Error(err))
	}
}
