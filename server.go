package main

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WebServer struct {
	service   *StockService
	directory *StockDirectory
	database  *Database
	scheduler *Scheduler
	metrics   *Metrics
	logger    *zap.Logger
	router    *gin.Engine
	staticDir string
}

// NewWebServer wires the upstream clients, the optional watchlist database
// and the scheduler from cfg.
func NewWebServer(cfg *Config, logger *zap.Logger) (*WebServer, error) {
	metrics := NewMetrics()
	service, directory, err := newStockStack(cfg, logger, metrics)
	if err != nil {
		return nil, err
	}

	server := &WebServer{
		service:   service,
		directory: directory,
		metrics:   metrics,
		logger:    logger.Named("http"),
		staticDir: cfg.Server.StaticDir,
	}

	if cfg.Database.Path != "" {
		database, err := NewDatabase(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		server.database = database
	}

	if cfg.Schedule.Enabled {
		scheduler := NewScheduler(cfg, service, server.database, directory, logger)
		if err := scheduler.Register(cfg.Schedule.QuoteCron, cfg.Schedule.DirectoryCron); err != nil {
			logger.Warn("failed to initialize scheduler", zap.Error(err))
		} else {
			server.scheduler = scheduler
			scheduler.Start()
		}
	}

	server.setupRoutes()
	return server, nil
}

// newStockStack builds the directory and the provider chain shared by the
// web server and the CLI.
func newStockStack(cfg *Config, logger *zap.Logger, metrics *Metrics) (*StockService, *StockDirectory, error) {
	directory := NewStockDirectory(logger)
	if err := directory.LoadCSV(cfg.Directory.CSVPath); err != nil {
		logger.Warn("stock directory not loaded", zap.Error(err))
	}

	providers, err := buildProviders(cfg, logger, metrics)
	if err != nil {
		return nil, nil, err
	}
	quotes := NewMISClient(cfg, logger, metrics)
	return NewStockService(providers, quotes, directory, cfg.Upstream.MaxMonths, logger), directory, nil
}

func (ws *WebServer) setupRoutes() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(ws.logger), gin.Recovery(), cors())
	if ws.metrics != nil {
		router.Use(ws.metrics.middleware())
		router.GET("/metrics", gin.WrapH(ws.metrics.Handler()))
	}

	router.StaticFile("/", filepath.Join(ws.staticDir, "index.html"))
	router.GET("/health", ws.health)

	api := router.Group("/api")
	{
		api.GET("/stock", ws.getStock)
		api.GET("/realtime", ws.getRealtime)
		api.GET("/search", ws.searchStocks)

		api.GET("/watchlist", ws.getWatchedStocks)
		api.POST("/watchlist", ws.addWatchedStock)
		api.DELETE("/watchlist/:code", ws.removeWatchedStock)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	ws.router = router
}

// cors allows any origin and answers preflight requests directly.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           ws.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		ws.logger.Info("web server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	ws.logger.Info("web server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (ws *WebServer) Close() {
	if ws.scheduler != nil {
		ws.scheduler.Stop()
	}
	if ws.database != nil {
		if err := ws.database.Close(); err != nil {
			ws.logger.Warn("closing database", zap.Error(err))
		}
	}
}
