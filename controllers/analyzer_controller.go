package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"quantpulse/models"
	"quantpulse/services/analyzer"
)

// SignalArchive is the long term signal store queried by the archive
// endpoint. Implemented by archive.MongoArchive.
type SignalArchive interface {
	Enabled() bool
	ArchivedSignals(ctx context.Context, symbol string, limit int64) ([]models.SignalResult, error)
}

// AnalyzerController handles signal analysis endpoints
type AnalyzerController struct {
	service *analyzer.Service
	archive SignalArchive
}

// NewAnalyzerController creates a new analyzer controller. A nil
// archive disables the archive endpoint.
func NewAnalyzerController(service *analyzer.Service, signalArchive SignalArchive) *AnalyzerController {
	return &AnalyzerController{service: service, archive: signalArchive}
}

// Signals returns recent signals, optionally filtered by symbol
// GET /api/v1/signals?symbol=&limit=
func (ctrl *AnalyzerController) Signals(c *gin.Context) {
	symbol := strings.ToUpper(c.Query("symbol"))
	// Zero lets the service pick the default for the query shape.
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	signals, err := ctrl.service.Signals(c.Request.Context(), symbol, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals, "count": len(signals)})
}

// GetSignal returns one signal by ID
// GET /api/v1/signals/:id
func (ctrl *AnalyzerController) GetSignal(c *gin.Context) {
	signal, err := ctrl.service.GetSignal(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, signal)
}

// ArchivedSignals returns archived signals for a symbol, newest first
// GET /api/v1/signals/archive/:symbol?limit=
func (ctrl *AnalyzerController) ArchivedSignals(c *gin.Context) {
	if ctrl.archive == nil || !ctrl.archive.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Signal archive is not configured",
			"code":  "ARCHIVE_DISABLED",
		})
		return
	}

	symbol := strings.ToUpper(c.Param("symbol"))
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)

	signals, err := ctrl.archive.ArchivedSignals(c.Request.Context(), symbol, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":  symbol,
		"signals": signals,
		"count":   len(signals),
	})
}

// Analyze runs trigger evaluation for one symbol on demand
// POST /api/v1/analysis/:symbol/run
func (ctrl *AnalyzerController) Analyze(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	signals, err := ctrl.service.Analyze(c.Request.Context(), symbol)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":    symbol,
		"signals":   signals,
		"triggered": len(signals),
	})
}

// AnalyzeAll runs trigger evaluation for all selected symbols
// POST /api/v1/analysis/run (admin)
func (ctrl *AnalyzerController) AnalyzeAll(c *gin.Context) {
	summary, err := ctrl.service.AnalyzeAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
