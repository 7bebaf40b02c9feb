package clients

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/fundboard/internal/domain"
)

var (
	tokenAddr  = common.HexToAddress("0x18c389e739676dcd15386d131e22e1cea5b84ad8")
	holderAddr = common.HexToAddress("0x1b69ec2F03c21CF7f9a791Be9c01EfBd01F49Ef5")
)

type mockCaller struct {
	mock.Mock
}

func (m *mockCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	args := m.Called(ctx, msg, blockNumber)
	var out []byte
	if v := args.Get(0); v != nil {
		out = v.([]byte)
	}
	return out, args.Error(1)
}

type codedError struct {
	code int
}

func (e codedError) Error() string  { return fmt.Sprintf("rpc error %d", e.code) }
func (e codedError) ErrorCode() int { return e.code }

func mustABI(t *testing.T, def string) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(def))
	require.NoError(t, err)
	return parsed
}

func packOutput(t *testing.T, parsed abi.ABI, method string, values ...interface{}) []byte {
	t.Helper()
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

func selector(t *testing.T, parsed abi.ABI, method string) []byte {
	t.Helper()
	return parsed.Methods[method].ID
}

func callFor(sel []byte, to common.Address) interface{} {
	return mock.MatchedBy(func(msg ethereum.CallMsg) bool {
		return msg.To != nil && *msg.To == to && len(msg.Data) >= 4 && bytes.Equal(msg.Data[:4], sel)
	})
}

func TestChainClient_BalanceAndDecimals(t *testing.T) {
	erc20 := mustABI(t, erc20ABI)
	caller := new(mockCaller)
	caller.On("CallContract", mock.Anything, callFor(selector(t, erc20, "balanceOf"), tokenAddr), mock.Anything).
		Return(packOutput(t, erc20, "balanceOf", big.NewInt(1234500)), nil).Once()
	caller.On("CallContract", mock.Anything, callFor(selector(t, erc20, "decimals"), tokenAddr), mock.Anything).
		Return(packOutput(t, erc20, "decimals", uint8(6)), nil).Once()

	client, err := NewChainClient(caller, nil)
	require.NoError(t, err)

	balance, err := client.BalanceOf(context.Background(), tokenAddr, holderAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(1234500), balance.Int64())

	dec, err := client.Decimals(context.Background(), tokenAddr)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), dec)

	caller.AssertExpectations(t)
}

func TestChainClient_MiningReads(t *testing.T) {
	mining := mustABI(t, miningABI)
	caller := new(mockCaller)
	for method, value := range map[string]int64{
		"playerHashrate":         50,
		"totalHashrate":          1000,
		"playerEthermaxPerBlock": 7,
		"pendingRewards":         9,
	} {
		caller.On("CallContract", mock.Anything, callFor(selector(t, mining, method), tokenAddr), mock.Anything).
			Return(packOutput(t, mining, method, big.NewInt(value)), nil)
	}

	client, err := NewChainClient(caller, nil)
	require.NoError(t, err)
	ctx := context.Background()

	v, err := client.PlayerHashrate(ctx, tokenAddr, holderAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(50), v.Int64())

	v, err = client.TotalHashrate(ctx, tokenAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), v.Int64())

	v, err = client.PlayerPerBlock(ctx, tokenAddr, holderAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.Int64())

	v, err = client.PendingRewards(ctx, tokenAddr, holderAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(9), v.Int64())
}

func TestChainClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		callErr  error
		raw      []byte
		sentinel error
	}{
		{name: "http 429", callErr: rpc.HTTPError{StatusCode: 429, Status: "429 Too Many Requests"}, sentinel: domain.ErrRateLimited},
		{name: "limit exceeded code", callErr: codedError{code: -32005}, sentinel: domain.ErrRateLimited},
		{name: "rate limit text", callErr: errors.New("daily request rate limit reached"), sentinel: domain.ErrRateLimited},
		{name: "execution reverted", callErr: errors.New("execution reverted"), sentinel: domain.ErrRemoteReadFailed},
		{name: "empty return data", raw: []byte{}, sentinel: domain.ErrRemoteReadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := new(mockCaller)
			caller.On("CallContract", mock.Anything, mock.Anything, mock.Anything).Return(tt.raw, tt.callErr)

			client, err := NewChainClient(caller, nil)
			require.NoError(t, err)

			_, err = client.BalanceOf(context.Background(), tokenAddr, holderAddr)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}
}

func TestIsRateLimited(t *testing.T) {
	assert.False(t, IsRateLimited(nil))
	assert.True(t, IsRateLimited(domain.ErrRateLimited))
	assert.True(t, IsRateLimited(errors.Wrap(rpc.HTTPError{StatusCode: 429}, "call")))
	assert.True(t, IsRateLimited(&rpc.HTTPError{StatusCode: 429}))
	assert.False(t, IsRateLimited(rpc.HTTPError{StatusCode: 500, Status: "500 Internal Server Error"}))
	assert.True(t, IsRateLimited(codedError{code: 429}))
	assert.False(t, IsRateLimited(codedError{code: -32000}))
	assert.True(t, IsRateLimited(errors.New("Too Many Requests")))
	assert.False(t, IsRateLimited(errors.New("connection refused")))
}
