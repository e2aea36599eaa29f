package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"copyfolio/internal/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ExplorerClient defines the interface for the block-explorer API used by
// wallet lookups.
type ExplorerClient interface {
	GetAddressInfo(ctx context.Context, address string) (*entity.AddressInfo, error)
}

// explorerClientImpl is the implementation of ExplorerClient backed by an
// Ethplorer-compatible HTTP API.
type explorerClientImpl struct {
	client  *fasthttp.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewExplorerClient creates a new instance of explorerClientImpl. The rate
// limiter guards the free-tier request budget of the upstream API.
func NewExplorerClient(baseURL, apiKey string, timeout time.Duration, rps float64, burst int, logger *zap.Logger) ExplorerClient {
	return &explorerClientImpl{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.Named("ExplorerClient"),
	}
}

// GetAddressInfo implements the ExplorerClient interface.
func (c *explorerClientImpl) GetAddressInfo(ctx context.Context, address string) (*entity.AddressInfo, error) {
	if address == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, entity.WrapError(entity.CodeUpstreamUnavailable, "explorer rate limiter wait interrupted", err)
	}

	requestURL := fmt.Sprintf("%s/getAddressInfo/%s?apiKey=%s", c.baseURL, address, c.apiKey)
	c.logger.Debug("Requesting address info from explorer", zap.String("address", address))

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
			c.logger.Error("Failed to execute request to explorer", zap.String("address", address), zap.Error(err))
			return nil, entity.WrapError(entity.CodeUpstreamUnavailable, "explorer request failed", err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			c.logger.Error("Failed to execute request to explorer (with default timeout)", zap.String("address", address), zap.Error(err))
			return nil, entity.WrapError(entity.CodeUpstreamUnavailable, "explorer request failed", err)
		}
	}

	rawBody := resp.Body()

	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("Explorer API request failed",
			zap.String("address", address),
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", rawBody),
		)
		return nil, entity.NewError(entity.CodeUpstreamUnavailable,
			fmt.Sprintf("explorer request failed with status %d", resp.StatusCode()))
	}

	var info entity.AddressInfo
	if err := json.Unmarshal(rawBody, &info); err != nil {
		c.logger.Error("Failed to unmarshal explorer response",
			zap.String("address", address),
			zap.ByteString("responseBody", rawBody),
			zap.Error(err),
		)
		return nil, entity.WrapError(entity.CodeUpstreamDataInvalid, "failed to unmarshal explorer response", err)
	}

	c.logger.Debug("Successfully unmarshalled explorer response",
		zap.String("address", address),
		zap.Int("tokenCount", len(info.Tokens)))
	return &info, nil
}
