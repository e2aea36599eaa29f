package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"copyfolio/internal/entity"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// DefiLlamaClient defines the interface for the DeFiLlama yields API.
type DefiLlamaClient interface {
	GetPools(ctx context.Context) ([]entity.YieldPool, error)
}

// defiLlamaClientImpl is the implementation of DefiLlamaClient.
type defiLlamaClientImpl struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewDefiLlamaClient creates a new instance of defiLlamaClientImpl.
func NewDefiLlamaClient(baseURL string, timeout time.Duration, logger *zap.Logger) DefiLlamaClient {
	return &defiLlamaClientImpl{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger.Named("DefiLlamaClient"),
	}
}

// GetPools implements the DefiLlamaClient interface. The /pools endpoint
// returns every tracked pool; filtering happens in the pool service.
func (c *defiLlamaClientImpl) GetPools(ctx context.Context) ([]entity.YieldPool, error) {
	requestURL := c.baseURL + "/pools"
	c.logger.Debug("Requesting yield pools from DeFiLlama", zap.String("url", requestURL))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetContentTypeBytes([]byte("application/json"))

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			c.logger.Error("Failed to execute request to DeFiLlama", zap.String("url", requestURL), zap.Error(err))
			return nil, entity.WrapError(entity.CodeUpstreamUnavailable, "defillama request failed", err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			c.logger.Error("Failed to execute request to DeFiLlama (with default timeout)", zap.String("url", requestURL), zap.Error(err))
			return nil, entity.WrapError(entity.CodeUpstreamUnavailable, "defillama request failed", err)
		}
	}

	rawBody := resp.Body()

	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("DeFiLlama API request failed",
			zap.String("url", requestURL),
			zap.Int("statusCode", resp.StatusCode()),
		)
		return nil, entity.NewError(entity.CodeUpstreamUnavailable,
			fmt.Sprintf("defillama request failed with status %d", resp.StatusCode()))
	}

	var envelope entity.YieldPoolsResponse
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		c.logger.Error("Failed to unmarshal DeFiLlama response", zap.String("url", requestURL), zap.Error(err))
		return nil, entity.WrapError(entity.CodeUpstreamDataInvalid, "failed to unmarshal defillama response", err)
	}
	if envelope.Status != "success" {
		c.logger.Warn("DeFiLlama returned non-success status", zap.String("status", envelope.Status))
		return nil, entity.NewError(entity.CodeUpstreamDataInvalid,
			fmt.Sprintf("defillama returned status %q", envelope.Status))
	}

	c.logger.Debug("Successfully unmarshalled DeFiLlama response", zap.Int("poolCount", len(envelope.Data)))
	return envelope.Data, nil
}
