package restapi

import (
	"errors"
	"net/http"
	"strings"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/cache/ownercache"
	"portfolio_tracker/internal/cache/ttlcache"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/registry"
	"portfolio_tracker/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PortfolioHandler exposes the scan, price and cache-management operations.
type PortfolioHandler struct {
	scanner     *service.ScannerService
	prices      port.PriceService
	coordinator *service.Coordinator
	registry    *registry.NetworkRegistry
	active      *service.ActiveAddresses
	logger      *zap.Logger
}

// NewPortfolioHandler creates a handler wired to the core services.
func NewPortfolioHandler(
	scanner *service.ScannerService,
	prices port.PriceService,
	coordinator *service.Coordinator,
	networkRegistry *registry.NetworkRegistry,
	active *service.ActiveAddresses,
	logger *zap.Logger,
) *PortfolioHandler {
	return &PortfolioHandler{
		scanner:     scanner,
		prices:      prices,
		coordinator: coordinator,
		registry:    networkRegistry,
		active:      active,
		logger:      logger.Named("PortfolioHandler"),
	}
}

// ScanAddressHandler handles GET /addresses/:address/balances.
// A scan with some networks errored is still a 200 with partial data; only
// validation failures and unknown networks are hard failures.
func (h *PortfolioHandler) ScanAddressHandler(c *gin.Context) {
	address := c.Param("address")
	opts := entity.ScanOptions{
		ForceRefresh: c.Query("refresh") == "true",
	}
	if networks := c.Query("networks"); networks != "" {
		opts.Networks = strings.Split(networks, ",")
	}

	result, err := h.scanner.ScanAddress(c.Request.Context(), address, opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type bulkScanRequest struct {
	Addresses    []entity.TrackedAddress `json:"addresses" binding:"required"`
	ForceRefresh bool                    `json:"forceRefresh"`
	Networks     []string                `json:"networks"`
}

type bulkScanResponse struct {
	Portfolios []entity.AddressPortfolio `json:"portfolios"`
	Summary    entity.PortfolioSummary  `json:"summary"`
	Errors     []service.ScanFailure    `json:"errors,omitempty"`
}

// BulkScanHandler handles POST /portfolio: scans a set of tracked addresses
// and returns the aggregated summary alongside per-address portfolios.
func (h *PortfolioHandler) BulkScanHandler(c *gin.Context) {
	var req bulkScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	opts := entity.ScanOptions{ForceRefresh: req.ForceRefresh, Networks: req.Networks}
	portfolios, failures := h.coordinator.ScanAll(c.Request.Context(), req.Addresses, opts)
	c.JSON(http.StatusOK, bulkScanResponse{
		Portfolios: portfolios,
		Summary:    service.Aggregate(portfolios),
		Errors:     failures,
	})
}

type pricesRequest struct {
	Tokens       []entity.PriceRequest `json:"tokens" binding:"required"`
	IncludeStats bool                  `json:"includeStats"`
}

type pricesResponse struct {
	entity.PriceLookup
	Stats *ttlcache.Stats `json:"stats,omitempty"`
}

// GetPricesHandler handles POST /prices.
func (h *PortfolioHandler) GetPricesHandler(c *gin.Context) {
	var req pricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	resp := pricesResponse{PriceLookup: h.prices.GetPrices(c.Request.Context(), req.Tokens)}
	if req.IncludeStats {
		stats := h.prices.Stats()
		resp.Stats = &stats
	}
	c.JSON(http.StatusOK, resp)
}

type cacheStatsResponse struct {
	Prices   ttlcache.Stats          `json:"prices"`
	Balances []ownercache.OwnerStats `json:"balances"`
}

// CacheStatsHandler handles GET /cache/stats.
func (h *PortfolioHandler) CacheStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, cacheStatsResponse{
		Prices:   h.prices.Stats(),
		Balances: h.scanner.BalanceCacheStats(),
	})
}

// ClearCacheHandler handles DELETE /cache?type=prices|balances&address=0x...
// Clearing an address's balance cache also unregisters it from the
// background sweeper.
func (h *PortfolioHandler) ClearCacheHandler(c *gin.Context) {
	cacheType := c.Query("type")
	address := c.Query("address")

	switch cacheType {
	case "prices":
		h.prices.Clear()
	case "balances":
		h.scanner.ClearBalances(address)
		if address != "" {
			h.active.Unregister(address)
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be \"prices\" or \"balances\""})
		return
	}
	h.logger.Info("Cache cleared", zap.String("type", cacheType), zap.String("address", address))
	c.Status(http.StatusNoContent)
}

type registerNetworkRequest struct {
	Network entity.Network `json:"network" binding:"required"`
	Tokens  []entity.Token `json:"tokens"`
}

// RegisterNetworkHandler handles POST /networks, extending the registry at
// runtime.
func (h *PortfolioHandler) RegisterNetworkHandler(c *gin.Context) {
	var req registerNetworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := h.registry.Register(req.Network); err != nil {
		h.respondError(c, err)
		return
	}
	for _, token := range req.Tokens {
		if err := h.registry.RegisterToken(req.Network.ID, token); err != nil {
			h.respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, req.Network)
}

// ListNetworksHandler handles GET /networks.
func (h *PortfolioHandler) ListNetworksHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"networks": h.registry.All()})
}

func (h *PortfolioHandler) respondError(c *gin.Context, err error) {
	var validation *entity.ValidationError
	var notFound *entity.NotFoundError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
