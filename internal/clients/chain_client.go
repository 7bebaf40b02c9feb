package clients

import (
	"context"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/fundboard/internal/domain"
	"github.com/vadiminshakov/fundboard/internal/observability"
)

const (
	erc20ABI = `[
		{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
	]`

	miningABI = `[
		{"inputs":[{"name":"player","type":"address"}],"name":"playerHashrate","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"totalHashrate","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"name":"player","type":"address"}],"name":"playerEthermaxPerBlock","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"name":"player","type":"address"}],"name":"pendingRewards","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
	]`

	// JSON-RPC "limit exceeded" code used by most hosted node providers.
	rpcCodeLimitExceeded = -32005
)

// ContractCaller executes read-only contract calls. *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ChainClient reads token and mining contract state over JSON-RPC.
type ChainClient struct {
	caller  ContractCaller
	closer  func()
	erc20   abi.ABI
	mining  abi.ABI
	metrics *observability.Metrics
}

// DialChainClient connects to the node at rpcURL.
func DialChainClient(ctx context.Context, rpcURL string, metrics *observability.Metrics) (*ChainClient, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial rpc %s", rpcURL)
	}
	c, err := NewChainClient(client, metrics)
	if err != nil {
		client.Close()
		return nil, err
	}
	c.closer = client.Close
	return c, nil
}

// NewChainClient wraps an existing caller.
func NewChainClient(caller ContractCaller, metrics *observability.Metrics) (*ChainClient, error) {
	erc20, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse erc20 abi")
	}
	mining, err := abi.JSON(strings.NewReader(miningABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse mining abi")
	}
	return &ChainClient{caller: caller, erc20: erc20, mining: mining, metrics: metrics}, nil
}

// Close releases the underlying RPC connection.
func (c *ChainClient) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// BalanceOf returns the raw token balance of holder.
func (c *ChainClient) BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	return c.callUint(ctx, c.erc20, token, "balanceOf", holder)
}

// Decimals returns the token's decimal precision.
func (c *ChainClient) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := c.call(ctx, c.erc20, token, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, errors.Wrapf(domain.ErrRemoteReadFailed, "decimals: unexpected type %T", out[0])
	}
	return d, nil
}

// PlayerHashrate returns the hashrate credited to player.
func (c *ChainClient) PlayerHashrate(ctx context.Context, contract, player common.Address) (*big.Int, error) {
	return c.callUint(ctx, c.mining, contract, "playerHashrate", player)
}

// TotalHashrate returns the hashrate of all players.
func (c *ChainClient) TotalHashrate(ctx context.Context, contract common.Address) (*big.Int, error) {
	return c.callUint(ctx, c.mining, contract, "totalHashrate")
}

// PlayerPerBlock returns the reward player earns per block, in wei.
func (c *ChainClient) PlayerPerBlock(ctx context.Context, contract, player common.Address) (*big.Int, error) {
	return c.callUint(ctx, c.mining, contract, "playerEthermaxPerBlock", player)
}

// PendingRewards returns the unclaimed reward of player, in wei.
func (c *ChainClient) PendingRewards(ctx context.Context, contract, player common.Address) (*big.Int, error) {
	return c.callUint(ctx, c.mining, contract, "pendingRewards", player)
}

func (c *ChainClient) callUint(ctx context.Context, parsed abi.ABI, to common.Address, method string, args ...interface{}) (*big.Int, error) {
	out, err := c.call(ctx, parsed, to, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.Wrapf(domain.ErrRemoteReadFailed, "%s: unexpected type %T", method, out[0])
	}
	return v, nil
}

func (c *ChainClient) call(ctx context.Context, parsed abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}

	start := time.Now()
	raw, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	c.metrics.RecordReadAttempt(method, time.Since(start))
	if err != nil {
		if IsRateLimited(err) {
			return nil, errors.Wrapf(domain.ErrRateLimited, "%s: %v", method, err)
		}
		return nil, errors.Wrapf(domain.ErrRemoteReadFailed, "%s: %v", method, err)
	}

	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrRemoteReadFailed, "unpack %s: %v", method, err)
	}
	if len(out) == 0 {
		return nil, errors.Wrapf(domain.ErrRemoteReadFailed, "%s returned no values", method)
	}
	return out, nil
}

// IsRateLimited reports whether err is a node-side throttling signal.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrRateLimited) {
		return true
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	var httpErrPtr *rpc.HTTPError
	if errors.As(err, &httpErrPtr) && httpErrPtr != nil && httpErrPtr.StatusCode == http.StatusTooManyRequests {
		return true
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case rpcCodeLimitExceeded, http.StatusTooManyRequests:
			return true
		}
	}

	return isRateLimitText(err.Error())
}
