package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"copyfolio/internal/deploy"
	"copyfolio/internal/entity"
	"copyfolio/internal/service"
)

type fakeLookupService struct {
	personality *service.PersonalityResult
	wallet      *service.WalletResult
	err         error
}

func (f *fakeLookupService) LookupPersonality(ctx context.Context, personName string) (*service.PersonalityResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.personality, nil
}

func (f *fakeLookupService) LookupWallet(ctx context.Context, address string) (*service.WalletResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.wallet, nil
}

func (f *fakeLookupService) CryptoHistory(ctx context.Context) ([]entity.CryptoLookupRecord, error) {
	return nil, f.err
}

func (f *fakeLookupService) WalletHistory(ctx context.Context) ([]entity.WalletLookupRecord, error) {
	return nil, f.err
}

type fakeChatService struct {
	result *service.ChatResult
	err    error
}

func (f *fakeChatService) Edit(ctx context.Context, message string, current []entity.PortfolioItem) (*service.ChatResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeTokenService struct {
	availability []entity.TokenAvailability
	err          error
}

func (f *fakeTokenService) CheckTokens(ctx context.Context, symbols []string) ([]entity.TokenAvailability, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.availability, nil
}

func (f *fakeTokenService) ResolveToken(ctx context.Context, symbol string) (entity.TokenAvailability, error) {
	if len(f.availability) == 0 {
		return entity.TokenAvailability{Symbol: symbol}, f.err
	}
	return f.availability[0], f.err
}

type fakePoolService struct {
	pools []entity.Pool
	err   error
}

func (f *fakePoolService) PoolsForSymbols(ctx context.Context, symbols []string) ([]entity.Pool, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pools, nil
}

type fakeBuddyService struct {
	added   *entity.Buddy
	summary *entity.BuddiesSummary
	err     error
	removed []string
}

func (f *fakeBuddyService) Add(ctx context.Context, name string, contribution decimal.Decimal) (*entity.Buddy, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.added, nil
}

func (f *fakeBuddyService) Summary(ctx context.Context) (*entity.BuddiesSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

func (f *fakeBuddyService) Remove(ctx context.Context, id string) error {
	f.removed = append(f.removed, id)
	return f.err
}

type fakeReportService struct {
	saved  *service.SavedReport
	record *entity.ReportMetadata
	err    error
}

func (f *fakeReportService) Save(ctx context.Context, walletAddress string, metadata json.RawMessage) (*service.SavedReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.saved, nil
}

func (f *fakeReportService) Get(ctx context.Context, id string) (*entity.ReportMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

type handlerFixture struct {
	lookups *fakeLookupService
	chat    *fakeChatService
	tokens  *fakeTokenService
	pools   *fakePoolService
	buddies *fakeBuddyService
	reports *fakeReportService
	deploy  DeployRunner
}

func newTestRouter(f handlerFixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if f.lookups == nil {
		f.lookups = &fakeLookupService{}
	}
	if f.chat == nil {
		f.chat = &fakeChatService{}
	}
	if f.tokens == nil {
		f.tokens = &fakeTokenService{}
	}
	if f.pools == nil {
		f.pools = &fakePoolService{}
	}
	if f.buddies == nil {
		f.buddies = &fakeBuddyService{}
	}
	if f.reports == nil {
		f.reports = &fakeReportService{}
	}
	handler := NewHandler(f.lookups, f.chat, f.tokens, f.pools, f.buddies, f.reports, f.deploy, zap.NewNop())
	return SetupRouter(handler)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCryptoLookupHandler(t *testing.T) {
	lookups := &fakeLookupService{
		personality: &service.PersonalityResult{
			PersonName: "Warren Buffett",
			Investments: []entity.PortfolioItem{
				{Name: "Bitcoin", Symbol: "BTC", Percentage: 60},
				{Name: "Ethereum", Symbol: "ETH", Percentage: 40},
			},
		},
	}
	router := newTestRouter(handlerFixture{lookups: lookups})

	rec := doJSON(t, router, http.MethodPost, "/api/crypto/lookup", gin.H{"personName": "Warren Buffett"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result service.PersonalityResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Warren Buffett", result.PersonName)
	require.Len(t, result.Investments, 2)
	assert.Equal(t, 60, result.Investments[0].Percentage)
}

func TestCryptoLookupHandlerRequiresName(t *testing.T) {
	router := newTestRouter(handlerFixture{})

	rec := doJSON(t, router, http.MethodPost, "/api/crypto/lookup", gin.H{"personName": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCryptoLookupHandlerUpstreamDown(t *testing.T) {
	lookups := &fakeLookupService{err: entity.NewError(entity.CodeUpstreamUnavailable, "openai: 503")}
	router := newTestRouter(handlerFixture{lookups: lookups})

	rec := doJSON(t, router, http.MethodPost, "/api/crypto/lookup", gin.H{"personName": "Warren Buffett"})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.NotContains(t, apiErr.Error, "openai", "provider details must not leak to clients")
}

func TestWalletLookupHandlerInvalidAddress(t *testing.T) {
	lookups := &fakeLookupService{err: entity.NewError(entity.CodeValidation, "address must be a 0x-prefixed 40-hex-digit string")}
	router := newTestRouter(handlerFixture{lookups: lookups})

	rec := doJSON(t, router, http.MethodPost, "/api/wallet/lookup", gin.H{"address": "0x123"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, entity.CodeValidation, apiErr.Code)
	assert.Contains(t, apiErr.Error, "40-hex-digit")
}

func TestCheckTokensHandler(t *testing.T) {
	tokens := &fakeTokenService{availability: []entity.TokenAvailability{
		{Symbol: "ETH", Available: true, Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18, Name: "Wrapped Ether"},
		{Symbol: "NOPE", Available: false},
	}}
	router := newTestRouter(handlerFixture{tokens: tokens})

	rec := doJSON(t, router, http.MethodPost, "/api/uniswap/check-tokens", gin.H{"symbols": []string{"ETH", "NOPE"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tokens []entity.TokenAvailability `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tokens, 2)
	assert.True(t, resp.Tokens[0].Available)
	assert.False(t, resp.Tokens[1].Available)
}

func TestBuddyHandlers(t *testing.T) {
	buddies := &fakeBuddyService{
		added: &entity.Buddy{ID: "b-1", Name: "Alice", Contribution: decimal.NewFromInt(100)},
		summary: &entity.BuddiesSummary{
			Buddies: []entity.BuddyShare{
				{Buddy: entity.Buddy{ID: "b-1", Name: "Alice", Contribution: decimal.NewFromInt(100)}, SharePercent: 100},
			},
			TotalFund: decimal.NewFromInt(100),
		},
	}
	router := newTestRouter(handlerFixture{buddies: buddies})

	rec := doJSON(t, router, http.MethodPost, "/api/buddies", gin.H{"name": "Alice", "contribution": "100"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/buddies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary entity.BuddiesSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Len(t, summary.Buddies, 1)
	assert.Equal(t, 100, summary.Buddies[0].SharePercent)

	rec = doJSON(t, router, http.MethodDelete, "/api/buddies/b-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"b-1"}, buddies.removed)
}

func TestDeleteBuddyHandlerNotFound(t *testing.T) {
	buddies := &fakeBuddyService{err: entity.NewError(entity.CodeNotFound, "buddy not found")}
	router := newTestRouter(handlerFixture{buddies: buddies})

	rec := doJSON(t, router, http.MethodDelete, "/api/buddies/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPortfolioChatHandler(t *testing.T) {
	chat := &fakeChatService{result: &service.ChatResult{
		Reply: "Dropped DOGE and rebalanced.",
		Portfolio: []entity.PortfolioItem{
			{Name: "Bitcoin", Symbol: "BTC", Percentage: 100},
		},
	}}
	router := newTestRouter(handlerFixture{chat: chat})

	rec := doJSON(t, router, http.MethodPost, "/api/portfolio/chat", gin.H{
		"message":   "drop doge",
		"portfolio": []gin.H{{"name": "Bitcoin", "symbol": "BTC", "percentage": 60}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result service.ChatResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.Reply)
	require.Len(t, result.Portfolio, 1)
	assert.Equal(t, 100, result.Portfolio[0].Percentage)
}

func TestMetadataHandlers(t *testing.T) {
	metadata := json.RawMessage(`{"name":"Portfolio Report","attributes":[]}`)
	reports := &fakeReportService{
		saved:  &service.SavedReport{ID: "r-1", MetadataURL: "/api/nft/metadata/r-1"},
		record: &entity.ReportMetadata{ID: "r-1", Metadata: metadata},
	}
	router := newTestRouter(handlerFixture{reports: reports})

	rec := doJSON(t, router, http.MethodPost, "/api/nft/metadata", gin.H{
		"walletAddress": "0xD8dA6BF26964aF9D7eEd9e03E53415D37aA96045",
		"metadata":      json.RawMessage(`{"name":"Portfolio Report","attributes":[]}`),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var saved service.SavedReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, "/api/nft/metadata/r-1", saved.MetadataURL)

	rec = doJSON(t, router, http.MethodGet, "/api/nft/metadata/r-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(metadata), rec.Body.String())
}

func TestDeployHandlerDisabled(t *testing.T) {
	router := newTestRouter(handlerFixture{})

	rec := doJSON(t, router, http.MethodPost, "/api/deploy", gin.H{"portfolio": []gin.H{}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeployHandler(t *testing.T) {
	var gotTargetPool bool
	runner := func(ctx context.Context, items []entity.PortfolioItem, targetPool bool) (*deploy.RunSummary, error) {
		gotTargetPool = targetPool
		return &deploy.RunSummary{
			Attempted: 1,
			Succeeded: 1,
			Results: []deploy.AssetResult{
				{Symbol: "ETH", State: deploy.StateConfirmed, TxHash: "0xabc", FeeTier: 3000},
			},
		}, nil
	}
	router := newTestRouter(handlerFixture{deploy: runner})

	rec := doJSON(t, router, http.MethodPost, "/api/deploy", gin.H{
		"portfolio":  []gin.H{{"name": "Ethereum", "symbol": "ETH", "percentage": 100}},
		"targetPool": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gotTargetPool)

	var summary deploy.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Succeeded)
}

func TestHealthHandler(t *testing.T) {
	router := newTestRouter(handlerFixture{})

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
