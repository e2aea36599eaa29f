package restapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"copyfolio/internal/deploy"
	"copyfolio/internal/entity"
	"copyfolio/internal/service"
)

// APIError is the uniform error payload.
type APIError struct {
	Error string      `json:"error"`
	Code  entity.Code `json:"code,omitempty"`
}

// Handler bundles the service dependencies behind the HTTP endpoints.
type Handler struct {
	lookups   service.LookupService
	chat      service.ChatService
	tokens    service.TokenService
	pools     service.PoolService
	buddies   service.BuddyService
	reports   service.ReportService
	deployRun DeployRunner
	logger    *zap.Logger
}

// DeployRunner executes a server-side deployment run. Nil when the service
// holds no signer key.
type DeployRunner func(ctx context.Context, items []entity.PortfolioItem, targetPool bool) (*deploy.RunSummary, error)

// NewHandler creates a new instance of Handler. deployRun may be nil, in
// which case POST /api/deploy reports the feature as disabled.
func NewHandler(
	lookups service.LookupService,
	chat service.ChatService,
	tokens service.TokenService,
	pools service.PoolService,
	buddies service.BuddyService,
	reports service.ReportService,
	deployRun DeployRunner,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		lookups:   lookups,
		chat:      chat,
		tokens:    tokens,
		pools:     pools,
		buddies:   buddies,
		reports:   reports,
		deployRun: deployRun,
		logger:    logger.Named("RestAPI"),
	}
}

// respondError maps a service error onto the HTTP taxonomy. Upstream outages
// and internal faults get generic messages so provider internals never leak
// to clients.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := entity.HTTPStatus(err)
	code := entity.CodeInternal
	message := "internal server error"
	if typed, ok := entity.AsError(err); ok {
		code = typed.Code
		switch {
		case code == entity.CodeUpstreamUnavailable:
			message = "upstream data source is unavailable, please retry later"
		case status < http.StatusInternalServerError:
			message = typed.Message
		}
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, APIError{Error: message, Code: code})
}

type cryptoLookupRequest struct {
	PersonName string `json:"personName"`
}

// CryptoLookupHandler handles POST /api/crypto/lookup.
func (h *Handler) CryptoLookupHandler(c *gin.Context) {
	var req cryptoLookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body", Code: entity.CodeValidation})
		return
	}
	if req.PersonName == "" {
		c.JSON(http.StatusBadRequest, APIError{Error: "personName is required", Code: entity.CodeValidation})
		return
	}

	result, err := h.lookups.LookupPersonality(c.Request.Context(), req.PersonName)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CryptoHistoryHandler handles GET /api/crypto/history.
func (h *Handler) CryptoHistoryHandler(c *gin.Context) {
	records, err := h.lookups.CryptoHistory(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": records})
}

type walletLookupRequest struct {
	Address string `json:"address"`
}

// WalletLookupHandler handles POST /api/wallet/lookup.
func (h *Handler) WalletLookupHandler(c *gin.Context) {
	var req walletLookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body", Code: entity.CodeValidation})
		return
	}

	result, err := h.lookups.LookupWallet(c.Request.Context(), req.Address)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// WalletHistoryHandler handles GET /api/wallet/history.
func (h *Handler) WalletHistoryHandler(c *gin.Context) {
	records, err := h.lookups.WalletHistory(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": records})
}

type symbolsRequest struct {
	Symbols []string `json:"symbols"`
}

// CheckTokensHandler handles POST /api/uniswap/check-tokens.
func (h *Handler) CheckTokensHandler(c *gin.Context) {
	var req symbolsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body", Code: entity.CodeValidation})
		return
	}

	availability, err := h.tokens.CheckTokens(c.Request.Context(), req.Symbols)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": availability})
}

// PoolsHandler handles POST /api/uniswap/pools.
func (h *Handler) PoolsHandler(c *gin.Context) {
	var req symbolsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body", Code: entity.CodeValidation})
		return
	}

	pools, err := h.pools.PoolsForSymbols(c.Request.Context(), req.Symbols)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pools": pools})
}

type addBuddyRequest struct {
	Name         string          `json:"name"`
	Contribution decimal.Decimal `json:"contribution"`
}

// AddBuddyHandler handles POST /api/buddies.
func (h *Handler) AddBuddyHandler(c *gin.Context) {
	var req addBuddyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body", Code: entity.CodeValidation})
		return
	}

	buddy, err := h.buddies.Add(c.Request.Context(), req.Name, req.Contribution)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buddy)
}

// ListBuddiesHandler handles GET /api/buddies.
func (h *Handler) ListBuddiesHandler(c *gin.Context) {
	summary, err := h.buddies.Summary(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// DeleteBuddyHandler handles DELETE /api/buddies/:id.
func (h *Handler) DeleteBuddyHandler(c *gin.Context) {
	if err := h.buddies.Remove(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type chatRequest struct {
	Message   string                 `json:"message"`
	Portfolio []entity.PortfolioItem `json:"portfolio"`
}

// PortfolioChatHandler handles POST /api/portfolio/chat.
func (h *Handler) PortfolioChatHandler(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body", Code: entity.CodeValidation})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, APIError{Error: "message is required", Code: entity.CodeValidation})
		return
	}

	result, err := h.chat.Edit(c.Request.Context(), req.Message, req.Portfolio)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type saveMetadataRequest struct {
	WalletAddress string          `json:"walletAddress"`
	Metadata      json.RawMessage `json:"metadata"`
}

// SaveMetadataHandler handles POST /api/nft/metadata.
func (h *Handler) SaveMetadataHandler(c *gin.Context) {
	var req saveMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body", Code: entity.CodeValidation})
		return
	}

	saved, err := h.reports.Save(c.Request.Context(), req.WalletAddress, req.Metadata)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// GetMetadataHandler handles GET /api/nft/metadata/:id.
func (h *Handler) GetMetadataHandler(c *gin.Context) {
	record, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", record.Metadata)
}

type deployRequest struct {
	Portfolio  []entity.PortfolioItem `json:"portfolio"`
	TargetPool bool                   `json:"targetPool"`
}

// DeployHandler handles POST /api/deploy. Available only when the service is
// configured with a signer key.
func (h *Handler) DeployHandler(c *gin.Context) {
	if h.deployRun == nil {
		c.JSON(http.StatusNotFound, APIError{Error: "server-side deployment is not enabled", Code: entity.CodeNotFound})
		return
	}

	var req deployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body", Code: entity.CodeValidation})
		return
	}

	summary, err := h.deployRun(c.Request.Context(), req.Portfolio, req.TargetPool)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// HealthHandler handles GET /health.
func (h *Handler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
