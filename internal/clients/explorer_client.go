package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/fundboard/internal/domain"
	"github.com/vadiminshakov/fundboard/internal/observability"
	"github.com/vadiminshakov/fundboard/pkg/retrier"
)

const (
	DefaultExplorerURL = "https://api.basescan.org/api"

	explorerTimeout        = 15 * time.Second
	explorerMaxAttempts    = 3
	explorerRetryInterval  = 1 * time.Second
	explorerMaxBodyBytes   = 32 << 20
	explorerStatusOK       = "1"
	explorerNoTransactions = "No transactions found"

	actionTxList   = "txlist"
	actionTokenTx  = "tokentx"
	outcomeOK      = "ok"
	outcomeEmpty   = "empty"
	outcomeFailure = "failure"
)

// ExplorerClient reads account history from an Etherscan-compatible block explorer API.
type ExplorerClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retrier    *retrier.Retrier
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// ExplorerOption configures an ExplorerClient.
type ExplorerOption func(*ExplorerClient)

// WithExplorerHTTPClient replaces the default HTTP client.
func WithExplorerHTTPClient(c *http.Client) ExplorerOption {
	return func(e *ExplorerClient) {
		e.httpClient = c
	}
}

// WithExplorerRetrier replaces the default rate-limit retrier.
func WithExplorerRetrier(r *retrier.Retrier) ExplorerOption {
	return func(e *ExplorerClient) {
		e.retrier = r
	}
}

// WithExplorerMetrics attaches metrics.
func WithExplorerMetrics(m *observability.Metrics) ExplorerOption {
	return func(e *ExplorerClient) {
		e.metrics = m
	}
}

// NewExplorerClient creates a new explorer client. An empty baseURL selects DefaultExplorerURL.
func NewExplorerClient(baseURL, apiKey string, logger *zap.Logger, opts ...ExplorerOption) *ExplorerClient {
	if baseURL == "" {
		baseURL = DefaultExplorerURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &ExplorerClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: explorerTimeout,
		},
		retrier: retrier.New(
			retrier.WithMaxAttempts(explorerMaxAttempts),
			retrier.WithInitialInterval(explorerRetryInterval),
			retrier.WithRetryIf(func(err error) bool { return errors.Is(err, domain.ErrRateLimited) }),
		),
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// explorerResponse envelope shared by every account action.
// Result is an array on success and a message string on failure.
type explorerResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type explorerTransfer struct {
	BlockNumber  string `json:"blockNumber"`
	TimeStamp    string `json:"timeStamp"`
	Hash         string `json:"hash"`
	From         string `json:"from"`
	To           string `json:"to"`
	Value        string `json:"value"`
	IsError      string `json:"isError"`
	TokenDecimal string `json:"tokenDecimal"`
}

// TxList returns native-currency transactions of address, oldest first.
func (c *ExplorerClient) TxList(ctx context.Context, address string) ([]domain.TransferRecord, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", actionTxList)
	params.Set("address", address)
	params.Set("startblock", "0")
	params.Set("endblock", "99999999")
	params.Set("sort", "asc")

	return c.fetch(ctx, actionTxList, params)
}

// TokenTransfers returns transfers of the token contract involving address, oldest first.
func (c *ExplorerClient) TokenTransfers(ctx context.Context, contract, address string) ([]domain.TransferRecord, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", actionTokenTx)
	params.Set("contractaddress", contract)
	params.Set("address", address)
	params.Set("sort", "asc")

	return c.fetch(ctx, actionTokenTx, params)
}

func (c *ExplorerClient) fetch(ctx context.Context, action string, params url.Values) ([]domain.TransferRecord, error) {
	params.Set("apikey", c.apiKey)

	transfers, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) ([]explorerTransfer, error) {
		return c.sendRequest(ctx, params)
	})
	if err != nil {
		c.metrics.RecordExplorerRequest(action, outcomeFailure)
		c.logger.Warn("explorer request failed", zap.String("action", action), zap.Error(err))
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			return nil, err
		}
		return nil, errors.Wrapf(domain.ErrUpstreamUnavailable, "%s: %v", action, err)
	}

	if len(transfers) == 0 {
		c.metrics.RecordExplorerRequest(action, outcomeEmpty)
	} else {
		c.metrics.RecordExplorerRequest(action, outcomeOK)
	}

	records := make([]domain.TransferRecord, 0, len(transfers))
	for _, t := range transfers {
		records = append(records, t.toRecord(action == actionTxList))
	}
	return records, nil
}

func (c *ExplorerClient) sendRequest(ctx context.Context, params url.Values) ([]explorerTransfer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create HTTP request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.Wrap(domain.ErrRateLimited, "explorer returned 429")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(domain.ErrUpstreamUnavailable, "explorer returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, explorerMaxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	var envelope explorerResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Wrap(domain.ErrUpstreamUnavailable, "failed to decode explorer response")
	}

	if envelope.Status != explorerStatusOK {
		return nil, envelope.failure()
	}

	var transfers []explorerTransfer
	if err := json.Unmarshal(envelope.Result, &transfers); err != nil {
		return nil, errors.Wrap(domain.ErrUpstreamUnavailable, "explorer result is not a transfer list")
	}
	return transfers, nil
}

// failure classifies a non-success envelope. An account without history is
// reported with status "0" too and yields an empty list.
func (r explorerResponse) failure() error {
	if strings.EqualFold(r.Message, explorerNoTransactions) {
		return nil
	}

	var detail string
	if err := json.Unmarshal(r.Result, &detail); err != nil {
		detail = string(r.Result)
	}
	if isRateLimitText(detail) || isRateLimitText(r.Message) {
		return errors.Wrap(domain.ErrRateLimited, detail)
	}
	return errors.Wrap(domain.ErrUpstreamUnavailable, fmt.Sprintf("status %q: %s %s", r.Status, r.Message, detail))
}

// toRecord converts the wire shape. Native transactions count as successful
// only when isError is exactly "0".
func (t explorerTransfer) toRecord(native bool) domain.TransferRecord {
	rec := domain.TransferRecord{
		Hash:  t.Hash,
		From:  t.From,
		To:    t.To,
		Value: t.Value,
	}
	if native {
		rec.IsError = t.IsError != "0"
	} else {
		rec.IsError = t.IsError == "1"
	}
	if n, err := strconv.ParseUint(t.BlockNumber, 10, 64); err == nil {
		rec.BlockNumber = n
	}
	if ts, err := strconv.ParseInt(t.TimeStamp, 10, 64); err == nil {
		rec.TimeStamp = time.Unix(ts, 0).UTC()
	}
	if t.TokenDecimal != "" {
		d, err := strconv.ParseInt(strings.TrimSpace(t.TokenDecimal), 10, 32)
		if err != nil {
			rec.InvalidDecimal = true
		} else {
			dec := int32(d)
			rec.TokenDecimal = &dec
		}
	}
	return rec
}

func isRateLimitText(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "rate limit") || strings.Contains(s, "too many requests")
}
