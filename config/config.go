// Package config loads dashboard settings from YAML, .env and the environment.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/fundboard/internal/domain"
)

const (
	defaultPort           = "4000"
	defaultExplorerURL    = "https://api.basescan.org/api"
	defaultRPCURL         = "https://mainnet.base.org"
	defaultMiningContract = "0x18c389e739676dcd15386d131e22e1cea5b84ad8"
	defaultMiningWallet   = "0x1b69ec2F03c21CF7f9a791Be9c01EfBd01F49Ef5"
	defaultPricePair      = "ETH_USDT"
	defaultBlocksPerDay   = 28800
)

type Config struct {
	ListenAddr string

	ExplorerURL    string
	ExplorerAPIKey string

	TargetWallet  string
	NativeGoal    decimal.Decimal
	TokenContract string
	TokenGoal     decimal.Decimal

	RPCURL         string
	ClaimToken     common.Address
	ClaimWallet    common.Address
	MiningContract common.Address
	MiningWallet   common.Address
	BlocksPerDay   int64

	PricePair    domain.Pair
	PriceSources []string
	// ExchangeKeys optional credentials keyed by exchange name.
	ExchangeKeys map[string]ExchangeKey

	ClaimedFreshness time.Duration
	MiningFreshness  time.Duration
	PriceFreshness   time.Duration
	StreamInterval   time.Duration

	Aliases        map[string]string
	StaticDir      string
	AllowedOrigins []string
}

// ExchangeKey API credentials of one exchange.
type ExchangeKey struct {
	APIKey    string
	APISecret string
}

// ConfigTmp is the on-disk shape. Every value is a string so env overrides
// and the setup wizard can fill it without knowing the parsed types.
type ConfigTmp struct {
	Port             string            `yaml:"port,omitempty"`
	ExplorerURL      string            `yaml:"explorer_url,omitempty"`
	ExplorerAPIKey   string            `yaml:"explorer_api_key,omitempty"`
	TargetWallet     string            `yaml:"target_wallet"`
	TargetETH        string            `yaml:"target_eth"`
	TokenContract    string            `yaml:"token_contract"`
	TokenGoal        string            `yaml:"token_goal"`
	RPCURL           string            `yaml:"rpc_url,omitempty"`
	ClaimToken       string            `yaml:"claim_token,omitempty"`
	ClaimWallet      string            `yaml:"claim_wallet,omitempty"`
	MiningContract   string            `yaml:"mining_contract,omitempty"`
	MiningWallet     string            `yaml:"mining_wallet,omitempty"`
	BlocksPerDay     string            `yaml:"blocks_per_day,omitempty"`
	PricePair        string            `yaml:"price_pair,omitempty"`
	PriceSources     []string          `yaml:"price_sources,omitempty"`
	ClaimedFreshness string            `yaml:"claimed_freshness,omitempty"`
	MiningFreshness  string            `yaml:"mining_freshness,omitempty"`
	PriceFreshness   string            `yaml:"price_freshness,omitempty"`
	StreamInterval   string            `yaml:"stream_interval,omitempty"`
	Aliases          map[string]string `yaml:"aliases,omitempty"`
	StaticDir        string            `yaml:"static_dir,omitempty"`
	AllowedOrigins   []string          `yaml:"allowed_origins,omitempty"`
}

// Flags command line switches.
type Flags struct {
	ConfigPath string
	EnvFile    string
	Setup      bool
	Debug      bool
}

// ParseFlags parses the command line arguments (without the program name).
func ParseFlags(args []string) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet("fundboard", flag.ContinueOnError)
	fs.StringVar(&f.ConfigPath, "config", "", "path to yaml config")
	fs.StringVar(&f.EnvFile, "env", ".env", "path to .env file, ignored when missing")
	fs.BoolVar(&f.Setup, "setup", false, "run the interactive config wizard")
	fs.BoolVar(&f.Debug, "debug", false, "development logging")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// Get parses flags and loads the config they point at.
func Get() (Config, Flags, error) {
	flags, err := ParseFlags(os.Args[1:])
	if err != nil {
		return Config{}, Flags{}, err
	}
	if flags.Setup {
		return Config{}, flags, nil
	}

	conf, err := Load(flags.ConfigPath, flags.EnvFile)
	if err != nil {
		return Config{}, flags, err
	}
	return conf, flags, nil
}

// Load reads the yaml file at path (optional), applies .env and environment
// overrides and validates the result.
func Load(path, envFile string) (Config, error) {
	tmp := ConfigTmp{}
	if path != "" {
		f, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(f, &tmp); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if envFile != "" {
		// a missing .env is fine; values may come from the real environment
		_ = godotenv.Load(envFile)
	}
	applyEnvOverrides(&tmp)

	conf, err := tmp.Parse()
	if err != nil {
		return Config{}, err
	}
	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

func applyEnvOverrides(c *ConfigTmp) {
	setStr(&c.ExplorerAPIKey, "BASESCAN_API_KEY")
	setStr(&c.ExplorerURL, "EXPLORER_URL")
	setStr(&c.TargetWallet, "TARGET_WALLET")
	setStr(&c.TargetETH, "TARGET_ETH")
	setStr(&c.TokenContract, "TOKEN_CONTRACT")
	setStr(&c.TokenGoal, "TOKEN_GOAL")
	setStr(&c.Port, "PORT")
	setStr(&c.RPCURL, "RPC_URL")
	setStr(&c.ClaimToken, "CLAIM_TOKEN")
	setStr(&c.ClaimWallet, "CLAIM_WALLET")
	setStr(&c.MiningContract, "MINING_CONTRACT")
	setStr(&c.MiningWallet, "MINING_WALLET")
	setStr(&c.PricePair, "PRICE_PAIR")
	setStr(&c.StaticDir, "STATIC_DIR")
	if v := os.Getenv("PRICE_SOURCES"); v != "" {
		c.PriceSources = splitList(v)
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
}

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

// Parse converts the raw values, filling defaults for optional settings.
func (c ConfigTmp) Parse() (Config, error) {
	conf := Config{
		ListenAddr:     ":" + strings.TrimPrefix(orDefault(c.Port, defaultPort), ":"),
		ExplorerURL:    orDefault(c.ExplorerURL, defaultExplorerURL),
		ExplorerAPIKey: strings.TrimSpace(c.ExplorerAPIKey),
		TargetWallet:   strings.TrimSpace(c.TargetWallet),
		TokenContract:  strings.TrimSpace(c.TokenContract),
		RPCURL:         orDefault(c.RPCURL, defaultRPCURL),
		PriceSources:   c.PriceSources,
		StaticDir:      c.StaticDir,
		AllowedOrigins: c.AllowedOrigins,
		Aliases:        make(map[string]string, len(c.Aliases)),
		ExchangeKeys:   exchangeKeysFromEnv(),
	}
	if len(conf.PriceSources) == 0 {
		conf.PriceSources = []string{"binance", "bybit"}
	}
	for addr, name := range c.Aliases {
		conf.Aliases[domain.NormalizeAddress(addr)] = name
	}

	var err error
	if conf.NativeGoal, err = parseDecimal("target_eth", c.TargetETH); err != nil {
		return Config{}, err
	}
	if conf.TokenGoal, err = parseDecimal("token_goal", c.TokenGoal); err != nil {
		return Config{}, err
	}

	miningContract := orDefault(c.MiningContract, defaultMiningContract)
	miningWallet := orDefault(c.MiningWallet, defaultMiningWallet)
	addrs := []struct {
		name  string
		value string
		dst   *common.Address
	}{
		{"mining_contract", miningContract, &conf.MiningContract},
		{"mining_wallet", miningWallet, &conf.MiningWallet},
		{"claim_token", orDefault(c.ClaimToken, miningContract), &conf.ClaimToken},
		{"claim_wallet", orDefault(c.ClaimWallet, miningWallet), &conf.ClaimWallet},
	}
	for _, a := range addrs {
		if !common.IsHexAddress(a.value) {
			return Config{}, fmt.Errorf("incorrect '%s' param in config: %q is not a hex address", a.name, a.value)
		}
		*a.dst = common.HexToAddress(a.value)
	}

	conf.BlocksPerDay = defaultBlocksPerDay
	if c.BlocksPerDay != "" {
		if conf.BlocksPerDay, err = strconv.ParseInt(c.BlocksPerDay, 10, 64); err != nil || conf.BlocksPerDay <= 0 {
			return Config{}, fmt.Errorf("incorrect 'blocks_per_day' param in config (must be a positive integer): %q", c.BlocksPerDay)
		}
	}

	if conf.PricePair, err = domain.ParsePair(orDefault(c.PricePair, defaultPricePair)); err != nil {
		return Config{}, errors.Wrap(err, "incorrect 'price_pair' param in config")
	}

	durations := []struct {
		name  string
		value string
		def   time.Duration
		dst   *time.Duration
	}{
		{"claimed_freshness", c.ClaimedFreshness, 10 * time.Second, &conf.ClaimedFreshness},
		{"mining_freshness", c.MiningFreshness, 5 * time.Second, &conf.MiningFreshness},
		{"price_freshness", c.PriceFreshness, 30 * time.Second, &conf.PriceFreshness},
		{"stream_interval", c.StreamInterval, 5 * time.Second, &conf.StreamInterval},
	}
	for _, d := range durations {
		if d.value == "" {
			*d.dst = d.def
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil || v <= 0 {
			return Config{}, fmt.Errorf("incorrect '%s' param in config (must be a positive duration like 10s): %q", d.name, d.value)
		}
		*d.dst = v
	}

	return conf, nil
}

func parseDecimal(name, v string) (decimal.Decimal, error) {
	if strings.TrimSpace(v) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, fmt.Errorf("incorrect '%s' param in config (must be a decimal): %w", name, err)
	}
	return d, nil
}

func exchangeKeysFromEnv() map[string]ExchangeKey {
	keys := make(map[string]ExchangeKey)
	for _, name := range []string{"binance", "bybit"} {
		prefix := strings.ToUpper(name)
		key, secret := os.Getenv(prefix+"_API_KEY"), os.Getenv(prefix+"_API_SECRET")
		if key != "" && secret != "" {
			keys[name] = ExchangeKey{APIKey: key, APISecret: secret}
		}
	}
	return keys
}

// Validate fails when a required setting is absent or malformed.
func (c Config) Validate() error {
	if c.ExplorerAPIKey == "" || c.ExplorerAPIKey == "-" {
		return errors.New("explorer API key is required (BASESCAN_API_KEY or explorer_api_key)")
	}
	if c.TargetWallet == "" || !c.NativeGoal.IsPositive() {
		return errors.New("target wallet and a positive native goal are required (TARGET_WALLET, TARGET_ETH)")
	}
	if !common.IsHexAddress(c.TargetWallet) {
		return fmt.Errorf("target wallet %q is not a hex address", c.TargetWallet)
	}
	if c.TokenContract == "" || !c.TokenGoal.IsPositive() {
		return errors.New("token contract and a positive token goal are required (TOKEN_CONTRACT, TOKEN_GOAL)")
	}
	if !common.IsHexAddress(c.TokenContract) {
		return fmt.Errorf("token contract %q is not a hex address", c.TokenContract)
	}
	if c.StaticDir != "" {
		if info, err := os.Stat(c.StaticDir); err != nil || !info.IsDir() {
			return fmt.Errorf("static dir %q is not a directory", c.StaticDir)
		}
	}
	return nil
}
