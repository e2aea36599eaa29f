package client

import (
	"context"
	"fmt"
	"time"

	"copyfolio/internal/entity"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// TokenListClient defines the interface for fetching a standard DEX token
// list document.
type TokenListClient interface {
	GetTokenList(ctx context.Context) (*entity.TokenList, error)
}

// tokenListClientImpl is the implementation of TokenListClient.
type tokenListClientImpl struct {
	client  *fasthttp.Client
	url     string
	timeout time.Duration
	logger  *zap.Logger
}

// NewTokenListClient creates a new instance of tokenListClientImpl.
func NewTokenListClient(url string, timeout time.Duration, logger *zap.Logger) TokenListClient {
	return &tokenListClientImpl{
		client:  &fasthttp.Client{},
		url:     url,
		timeout: timeout,
		logger:  logger.Named("TokenListClient"),
	}
}

// GetTokenList implements the TokenListClient interface.
func (c *tokenListClientImpl) GetTokenList(ctx context.Context) (*entity.TokenList, error) {
	c.logger.Debug("Requesting token list", zap.String("url", c.url))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(c.url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetContentTypeBytes([]byte("application/json"))

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			c.logger.Error("Failed to execute token list request", zap.String("url", c.url), zap.Error(err))
			return nil, entity.WrapError(entity.CodeUpstreamUnavailable, "token list request failed", err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			c.logger.Error("Failed to execute token list request (with default timeout)", zap.String("url", c.url), zap.Error(err))
			return nil, entity.WrapError(entity.CodeUpstreamUnavailable, "token list request failed", err)
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("Token list request failed",
			zap.String("url", c.url),
			zap.Int("statusCode", resp.StatusCode()),
		)
		return nil, entity.NewError(entity.CodeUpstreamUnavailable,
			fmt.Sprintf("token list request failed with status %d", resp.StatusCode()))
	}

	var list entity.TokenList
	if err := json.Unmarshal(resp.Body(), &list); err != nil {
		c.logger.Error("Failed to unmarshal token list", zap.String("url", c.url), zap.Error(err))
		return nil, entity.WrapError(entity.CodeUpstreamDataInvalid, "failed to unmarshal token list", err)
	}
	if len(list.Tokens) == 0 {
		c.logger.Warn("Token list contained no tokens", zap.String("url", c.url))
	}

	c.logger.Debug("Successfully unmarshalled token list", zap.Int("tokenCount", len(list.Tokens)))
	return &list, nil
}
