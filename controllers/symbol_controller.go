package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"quantpulse/apperrors"
	"quantpulse/services/symbols"
)

// SymbolController handles the instrument registry endpoints
type SymbolController struct {
	service   *symbols.Service
	providers map[string]symbols.SymbolProvider
}

// NewSymbolController creates a new symbol controller. The providers
// map keys are exchange names accepted by the import endpoint.
func NewSymbolController(service *symbols.Service, providerMap map[string]symbols.SymbolProvider) *SymbolController {
	return &SymbolController{service: service, providers: providerMap}
}

// List returns active symbols with optional search and pagination
// GET /api/v1/symbols?search=&limit=&offset=
func (ctrl *SymbolController) List(c *gin.Context) {
	search := c.Query("search")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, total, err := ctrl.service.List(search, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbols": list,
		"count":   len(list),
		"total":   total,
	})
}

// Selected returns the symbols currently selected for analysis
// GET /api/v1/symbols/selected
func (ctrl *SymbolController) Selected(c *gin.Context) {
	selected, err := ctrl.service.Selected()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbols": selected, "count": len(selected)})
}

// Select adds a symbol to the analysis watchlist
// POST /api/v1/symbols/:symbol/select
func (ctrl *SymbolController) Select(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	if err := ctrl.service.Select(c.Request.Context(), symbol, true); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Symbol selected", "symbol": symbol})
}

// Deselect removes a symbol from the analysis watchlist
// DELETE /api/v1/symbols/:symbol/select
func (ctrl *SymbolController) Deselect(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	if err := ctrl.service.Select(c.Request.Context(), symbol, false); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Symbol deselected", "symbol": symbol})
}

type importRequest struct {
	Symbols []symbols.SymbolInput `json:"symbols" binding:"required,min=1,dive"`
}

// Import bulk-creates symbols from the request body
// POST /api/v1/symbols/import (admin)
func (ctrl *SymbolController) Import(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	created, err := ctrl.service.Import(req.Symbols)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Import complete",
		"created": created,
		"total":   len(req.Symbols),
	})
}

// ImportFromProvider refreshes the registry from an exchange provider
// POST /api/v1/symbols/import/:exchange (admin)
func (ctrl *SymbolController) ImportFromProvider(c *gin.Context) {
	exchange := strings.ToLower(c.Param("exchange"))
	provider, ok := ctrl.providers[exchange]
	if !ok {
		respondError(c, apperrors.WithMessage(apperrors.ErrInvalidInput,
			"Unknown exchange: "+exchange))
		return
	}

	summary, err := ctrl.service.ImportFromProvider(c.Request.Context(), exchange, provider)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
