package main

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const searchLimit = 15

var watchCodePattern = regexp.MustCompile(`^[0-9A-Z^.]{1,10}$`)

func (ws *WebServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps the error taxonomy onto status codes. Unexpected errors
// are returned verbatim; this is a diagnostic tool, not a public API.
func (ws *WebServer) writeError(c *gin.Context, err error, notFoundMsg string) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, ErrBadInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": strings.TrimPrefix(err.Error(), ErrBadInput.Error()+": ")})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMsg})
	default:
		ws.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (ws *WebServer) getStock(c *gin.Context) {
	code := normalizeCode(c.Query("code"))
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'code' is required"})
		return
	}

	months, err := strconv.Atoi(strings.TrimSpace(c.DefaultQuery("months", "1")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'months' must be an integer"})
		return
	}

	series, err := ws.service.ResolveSeries(c.Request.Context(), code, months)
	if err != nil {
		ws.writeError(c, err, fmt.Sprintf("No data found for %s; check that it is a valid listed, OTC or index code", code))
		return
	}

	c.JSON(http.StatusOK, series)
}

func (ws *WebServer) getRealtime(c *gin.Context) {
	code := normalizeCode(c.Query("code"))
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'code' is required"})
		return
	}

	quote, err := ws.service.ResolveQuote(c.Request.Context(), code)
	if err != nil {
		ws.writeError(c, err, fmt.Sprintf("No real-time data for %s", code))
		return
	}

	c.JSON(http.StatusOK, quote)
}

func (ws *WebServer) searchStocks(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' is required"})
		return
	}
	if ws.directory == nil || ws.directory.Len() == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Stock directory is not loaded"})
		return
	}

	results := ws.directory.Search(query, searchLimit)
	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"results": results,
		"count":   len(results),
	})
}

func (ws *WebServer) requireDatabase(c *gin.Context) bool {
	if ws.database == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Watchlist is disabled; set database.path"})
		return false
	}
	return true
}

func (ws *WebServer) getWatchedStocks(c *gin.Context) {
	if !ws.requireDatabase(c) {
		return
	}

	stocks, err := ws.database.GetWatchedStocks()
	if err != nil {
		ws.writeError(c, err, "")
		return
	}

	apiStocks := make([]WatchedStockAPI, 0, len(stocks))
	for _, stock := range stocks {
		apiStocks = append(apiStocks, toWatchedStockAPI(stock))
	}
	c.JSON(http.StatusOK, apiStocks)
}

func (ws *WebServer) addWatchedStock(c *gin.Context) {
	if !ws.requireDatabase(c) {
		return
	}

	var req AddStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code := normalizeCode(req.Code)
	if !watchCodePattern.MatchString(code) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stock code"})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" && ws.directory != nil {
		if info, ok := ws.directory.Lookup(code); ok {
			name = info.Name
		}
	}

	stock, err := ws.database.AddWatchedStock(code, name)
	if err != nil {
		ws.writeError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, toWatchedStockAPI(*stock))
}

func (ws *WebServer) removeWatchedStock(c *gin.Context) {
	if !ws.requireDatabase(c) {
		return
	}

	code := normalizeCode(c.Param("code"))
	if err := ws.database.RemoveWatchedStock(code); err != nil {
		ws.writeError(c, err, fmt.Sprintf("%s is not in the watchlist", code))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Stock removed successfully", "code": code})
}

func toWatchedStockAPI(stock WatchedStock) WatchedStockAPI {
	return WatchedStockAPI{
		ID:        int(stock.ID),
		Code:      stock.Code,
		Name:      stock.Name,
		AddedAt:   stock.AddedAt,
		LastSync:  stock.LastSync,
		LastPrice: stock.LastPrice,
		IsActive:  stock.IsActive,
	}
}
