package setup

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/fundboard/config"
)

func TestValidators(t *testing.T) {
	assert.Error(t, validateRequired(""))
	assert.NoError(t, validateRequired("x"))

	assert.NoError(t, validateAddress("0x1b69ec2F03c21CF7f9a791Be9c01EfBd01F49Ef5"))
	assert.Error(t, validateAddress("0x1b69"))
	assert.Error(t, validateAddress(""))

	assert.NoError(t, validateGoal("2.5"))
	assert.Error(t, validateGoal("0"))
	assert.Error(t, validateGoal("-1"))
	assert.Error(t, validateGoal("abc"))
}

func TestWrittenConfigLoads(t *testing.T) {
	t.Setenv("BASESCAN_API_KEY", "")
	t.Setenv("TARGET_WALLET", "")
	t.Setenv("TARGET_ETH", "")
	t.Setenv("TOKEN_CONTRACT", "")
	t.Setenv("TOKEN_GOAL", "")
	t.Setenv("PORT", "")
	t.Setenv("PRICE_SOURCES", "")

	a := answers{
		apiKey:        "key",
		targetWallet:  "0x1b69ec2F03c21CF7f9a791Be9c01EfBd01F49Ef5",
		targetETH:     "3",
		tokenContract: "0x18c389e739676dcd15386d131e22e1cea5b84ad8",
		tokenGoal:     "1000",
		rpcURL:        "https://mainnet.base.org",
		port:          "4100",
		priceSource:   "bybit",
	}
	path := filepath.Join(t.TempDir(), DefaultOutput)
	require.NoError(t, writeConfig(path, a.toConfig()))

	conf, err := config.Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, ":4100", conf.ListenAddr)
	assert.Equal(t, []string{"bybit", "binance"}, conf.PriceSources)
	assert.Equal(t, "3", conf.NativeGoal.String())
}
