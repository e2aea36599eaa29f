// Package chain implements the deployment interfaces against an EVM node:
// native balance reads, swap gas estimation and Uniswap V3 router calls.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"copyfolio/internal/config"
	"copyfolio/internal/deploy"
	"copyfolio/internal/entity"
	"copyfolio/internal/pkg/utils"
)

// Minimal SwapRouter ABI: exactInputSingle is the only entry point used.
const swapRouterABI = `[{"inputs":[{"components":[{"internalType":"address","name":"tokenIn","type":"address"},{"internalType":"address","name":"tokenOut","type":"address"},{"internalType":"uint24","name":"fee","type":"uint24"},{"internalType":"address","name":"recipient","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"},{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"amountOutMinimum","type":"uint256"},{"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],"internalType":"struct ISwapRouter.ExactInputSingleParams","name":"params","type":"tuple"}],"name":"exactInputSingle","outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],"stateMutability":"payable","type":"function"}]`

var (
	parsedRouterABI  abi.ABI
	parsedRouterOnce sync.Once
)

func routerABI() abi.ABI {
	parsedRouterOnce.Do(func() {
		parsed, err := abi.JSON(strings.NewReader(swapRouterABI))
		if err != nil {
			// Static ABI; failing to parse is a programming error.
			panic(fmt.Sprintf("failed to parse swap router ABI: %v", err))
		}
		parsedRouterABI = parsed
	})
	return parsedRouterABI
}

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// EVMExecutor implements deploy.BalanceReader, deploy.GasEstimator and
// deploy.SwapRouter against an EVM JSON-RPC endpoint. Swaps spend the native
// balance and route in through WETH.
type EVMExecutor struct {
	ethClient      *ethclient.Client
	chainID        *big.Int
	router         common.Address
	weth           common.Address
	key            *ecdsa.PrivateKey
	signerAddr     common.Address
	rpcCallTimeout time.Duration
	logger         *zap.Logger
}

var (
	_ deploy.BalanceReader = (*EVMExecutor)(nil)
	_ deploy.GasEstimator  = (*EVMExecutor)(nil)
	_ deploy.SwapRouter    = (*EVMExecutor)(nil)
)

// NewEVMExecutor dials the configured endpoints in order, keeping the first
// one that answers.
func NewEVMExecutor(cfg config.ChainConfig, logger *zap.Logger) (*EVMExecutor, error) {
	if cfg.SignerKey == "" {
		return nil, fmt.Errorf("chain signer key is not configured")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.SignerKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid chain signer key: %w", err)
	}

	rpcURLs := append([]string{cfg.Endpoint}, cfg.FallbackEndpoints...)
	timeout := time.Duration(cfg.RPCTimeoutMs) * time.Millisecond

	var client *ethclient.Client
	var lastErr error
	for _, rpcURL := range rpcURLs {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		client, err = ethclient.DialContext(ctx, rpcURL)
		cancel()
		if err == nil {
			break
		}
		client = nil
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
	}
	if client == nil {
		return nil, fmt.Errorf("all RPC connection attempts failed: %w", lastErr)
	}

	return &EVMExecutor{
		ethClient:      client,
		chainID:        big.NewInt(cfg.ChainID),
		router:         common.HexToAddress(cfg.RouterAddress),
		weth:           common.HexToAddress(cfg.WETHAddress),
		key:            key,
		signerAddr:     crypto.PubkeyToAddress(key.PublicKey),
		rpcCallTimeout: timeout,
		logger:         logger.Named("EVMExecutor"),
	}, nil
}

// SpendableBalance implements deploy.BalanceReader with the signer's native
// balance at the latest block.
func (e *EVMExecutor) SpendableBalance(ctx context.Context) (*big.Int, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.rpcCallTimeout)
	defer cancel()
	balance, err := e.ethClient.BalanceAt(callCtx, e.signerAddr, nil)
	if err != nil {
		return nil, entity.WrapError(entity.CodeUpstreamUnavailable, "failed to read balance", err)
	}
	e.logger.Debug("Read spendable balance",
		zap.String("address", e.signerAddr.Hex()),
		zap.String("eth", utils.FormatBigInt(balance, 18)))
	return balance, nil
}

// EstimateSwapCost implements deploy.GasEstimator. The returned value is the
// estimated total gas cost in wei at the current suggested price.
func (e *EVMExecutor) EstimateSwapCost(ctx context.Context, plan deploy.SwapPlan) (*big.Int, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.rpcCallTimeout)
	defer cancel()

	data, err := e.packSwap(plan)
	if err != nil {
		return nil, err
	}
	gasLimit, err := e.ethClient.EstimateGas(callCtx, ethereum.CallMsg{
		From:  e.signerAddr,
		To:    &e.router,
		Value: plan.AmountIn,
		Data:  data,
	})
	if err != nil {
		return nil, entity.WrapError(entity.CodeGasEstimation, "gas estimation failed", err)
	}
	gasPrice, err := e.ethClient.SuggestGasPrice(callCtx)
	if err != nil {
		return nil, entity.WrapError(entity.CodeUpstreamUnavailable, "failed to fetch gas price", err)
	}
	cost := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), gasPrice)
	e.logger.Debug("Estimated swap gas cost",
		zap.Uint64("gasLimit", gasLimit),
		zap.String("gasPrice", gasPrice.String()),
		zap.String("cost", cost.String()))
	return cost, nil
}

// ExecuteSwap implements deploy.SwapRouter: it signs and submits an
// exactInputSingle call spending the plan's native amount.
func (e *EVMExecutor) ExecuteSwap(ctx context.Context, plan deploy.SwapPlan) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.rpcCallTimeout)
	defer cancel()

	data, err := e.packSwap(plan)
	if err != nil {
		return "", err
	}
	nonce, err := e.ethClient.PendingNonceAt(callCtx, e.signerAddr)
	if err != nil {
		return "", entity.WrapError(entity.CodeUpstreamUnavailable, "failed to fetch nonce", err)
	}
	gasPrice, err := e.ethClient.SuggestGasPrice(callCtx)
	if err != nil {
		return "", entity.WrapError(entity.CodeUpstreamUnavailable, "failed to fetch gas price", err)
	}
	gasLimit, err := e.ethClient.EstimateGas(callCtx, ethereum.CallMsg{
		From:  e.signerAddr,
		To:    &e.router,
		Value: plan.AmountIn,
		Data:  data,
	})
	if err != nil {
		return "", entity.WrapError(entity.CodeGasEstimation, "gas estimation failed", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &e.router,
		Value:    plan.AmountIn,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(e.chainID), e.key)
	if err != nil {
		return "", entity.WrapError(entity.CodeInternal, "failed to sign swap transaction", err)
	}
	if err := e.ethClient.SendTransaction(callCtx, signed); err != nil {
		return "", entity.WrapError(entity.CodeInternal, "failed to submit swap transaction", err)
	}

	hash := signed.Hash().Hex()
	e.logger.Info("Swap transaction submitted",
		zap.String("txHash", hash),
		zap.String("tokenOut", plan.TokenOut),
		zap.Int64("feeTier", plan.FeeTier))
	return hash, nil
}

// packSwap encodes the exactInputSingle calldata. An empty TokenIn means the
// native asset, routed in through WETH.
func (e *EVMExecutor) packSwap(plan deploy.SwapPlan) ([]byte, error) {
	tokenIn := e.weth
	if plan.TokenIn != "" {
		tokenIn = common.HexToAddress(plan.TokenIn)
	}
	minOut := plan.MinAmountOut
	if minOut == nil {
		minOut = big.NewInt(1)
	}
	data, err := routerABI().Pack("exactInputSingle", exactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          common.HexToAddress(plan.TokenOut),
		Fee:               big.NewInt(plan.FeeTier),
		Recipient:         e.signerAddr,
		Deadline:          big.NewInt(plan.Deadline.Unix()),
		AmountIn:          plan.AmountIn,
		AmountOutMinimum:  minOut,
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, entity.WrapError(entity.CodeInternal, "failed to encode swap calldata", err)
	}
	return data, nil
}
