package internal

import (
	"fmt"
	"strings"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"

	"github.com/vadiminshakov/fundboard/internal/clients"
	"github.com/vadiminshakov/fundboard/internal/services/pricer"
)

const (
	sourceBinance = "binance"
	sourceBybit   = "bybit"
)

// ExchangeCredentials optional API keys; public market data needs none.
type ExchangeCredentials struct {
	APIKey    string
	APISecret string
}

// NewPriceSources creates price sources for the named exchanges, in order.
func NewPriceSources(names []string, creds map[string]ExchangeCredentials) ([]pricer.Pricer, error) {
	sources := make([]pricer.Pricer, 0, len(names))
	for _, name := range names {
		client, err := newExchangeClient(name, creds[strings.ToLower(name)])
		if err != nil {
			return nil, err
		}
		src, err := newPriceSource(client)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func newExchangeClient(name string, creds ExchangeCredentials) (any, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case sourceBinance:
		return clients.NewBinanceClient(creds.APIKey, creds.APISecret), nil
	case sourceBybit:
		return clients.NewBybitClient(creds.APIKey, creds.APISecret), nil
	default:
		return nil, fmt.Errorf("unsupported price source: %q", name)
	}
}

// newPriceSource is the single point of dispatch from client type to pricer.
func newPriceSource(client any) (pricer.Pricer, error) {
	switch c := client.(type) {
	case *binance.Client:
		return pricer.NewBinancePricer(c), nil
	case *bybit.Client:
		return pricer.NewBybitPricer(c), nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}
