package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"quantpulse/services/marketdata"
)

// MarketDataController handles OHLCV retrieval and refresh endpoints
type MarketDataController struct {
	service *marketdata.Service
}

// NewMarketDataController creates a new market data controller
func NewMarketDataController(service *marketdata.Service) *MarketDataController {
	return &MarketDataController{service: service}
}

// History returns stored daily bars for a symbol, newest first
// GET /api/v1/market-data/:symbol?limit=
func (ctrl *MarketDataController) History(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "90"))

	bars, err := ctrl.service.History(symbol, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"bars":   bars,
		"count":  len(bars),
	})
}

// Fetch pulls fresh daily bars for one selected symbol from the
// chart provider
// POST /api/v1/market-data/:symbol/fetch
func (ctrl *MarketDataController) Fetch(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	result, err := ctrl.service.FetchSymbol(c.Request.Context(), symbol)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// FetchAll refreshes market data for every selected symbol
// POST /api/v1/market-data/fetch-all (admin)
func (ctrl *MarketDataController) FetchAll(c *gin.Context) {
	results, err := ctrl.service.FetchAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
	})
}
