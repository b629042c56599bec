package adapter

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"

	"github.com/address-ranker/internal/backtest"
	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/types"
)

const transposeTimeLayout = "2006-01-02T15:04:05Z"

// Stablecoins are quoted against the quote token but never scored
var defaultBlacklist = []string{
	"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", // USDC
	"0xdac17f958d2ee523a2206206994597c13d831ec7", // USDT
	"0x6b175474e89094c44da98b954eedeac495271d0f", // DAI
}

// TradeFeed returns the swaps of a trader in time-ascending order
type TradeFeed interface {
	FetchTrades(ctx context.Context, trader string, since time.Time) ([]backtest.SingleTrade, error)
}

// TransposeConfig configures a TransposeClient
type TransposeConfig struct {
	URL           string
	Blockchain    types.Blockchain
	QuoteToken    string
	QuoteDecimals int32
	MaxPairs      int
	Concurrency   int
	Blacklist     []string
}

type transposeRequest struct {
	SQL string `json:"sql"`
}

type swapRow struct {
	FromTokenAddress string          `json:"from_token_address"`
	ToTokenAddress   string          `json:"to_token_address"`
	QuantityIn       decimal.Decimal `json:"quantity_in"`
	QuantityOut      decimal.Decimal `json:"quantity_out"`
	Timestamp        swapTime        `json:"timestamp"`
}

type swapTime struct {
	time.Time
}

func (t *swapTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return stderrors.New("swap has no timestamp")
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised swap timestamp %q", s)
}

type swapsResponse struct {
	Results []swapRow `json:"results"`
}

type pairsResponse struct {
	Results []struct {
		ContractAddress string `json:"contract_address"`
	} `json:"results"`
}

// TransposeClient implements TradeFeed over the Transpose SQL API
type TransposeClient struct {
	cfg       TransposeConfig
	schema    string
	http      *HTTPClient
	tokens    TokenInfoProvider
	blacklist map[string]struct{}
	logger    *logging.Logger
}

func transposeSchema(blockchain types.Blockchain) (string, error) {
	switch blockchain {
	case "", types.BlockchainETH:
		return "ethereum", nil
	case types.BlockchainMATIC:
		return "polygon", nil
	case types.BlockchainARB:
		return "arbitrum", nil
	default:
		return "", fmt.Errorf("trade feed does not cover %s", blockchain)
	}
}

// NewTransposeClient creates a trade feed. The HTTP client should carry the X-API-KEY header.
func NewTransposeClient(cfg TransposeConfig, httpClient *HTTPClient, tokens TokenInfoProvider, logger *logging.Logger) (*TransposeClient, error) {
	schema, err := transposeSchema(cfg.Blockchain)
	if err != nil {
		return nil, err
	}
	if cfg.Blockchain == "" {
		cfg.Blockchain = types.BlockchainETH
	}
	if cfg.QuoteToken == "" {
		return nil, stderrors.New("quote token is required")
	}
	cfg.QuoteToken = strings.ToLower(cfg.QuoteToken)
	if cfg.MaxPairs < 1 {
		cfg.MaxPairs = 100
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Blacklist == nil {
		cfg.Blacklist = defaultBlacklist
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	blacklist := make(map[string]struct{}, len(cfg.Blacklist))
	for _, addr := range cfg.Blacklist {
		blacklist[strings.ToLower(addr)] = struct{}{}
	}

	return &TransposeClient{
		cfg:       cfg,
		schema:    schema,
		http:      httpClient,
		tokens:    tokens,
		blacklist: blacklist,
		logger:    logger.WithField("provider", "transpose"),
	}, nil
}

// FetchTrades implements TradeFeed. Pairs the trader only bought or only sold are left out.
func (c *TransposeClient) FetchTrades(ctx context.Context, trader string, since time.Time) ([]backtest.SingleTrade, error) {
	trader = strings.ToLower(trader)
	logger := c.logger.WithField("trader", trader)

	pairs, err := c.tradedPairs(ctx, trader, since)
	if err != nil {
		return nil, err
	}

	var (
		mu        sync.Mutex
		trades    []backtest.SingleTrade
		failed    int
		lastError error
	)

	p := pool.New().WithMaxGoroutines(c.cfg.Concurrency)
	for _, pair := range pairs {
		p.Go(func() {
			pairTrades, err := c.pairTrades(ctx, trader, pair)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				lastError = err
				logger.WithError(err).WithField("pair", pair).Warn("Skipping pair")
				return
			}
			trades = append(trades, pairTrades...)
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failed > 0 && failed == len(pairs) {
		return nil, fmt.Errorf("all %d pairs failed for %s: %w", failed, trader, lastError)
	}

	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Timestamp.Before(trades[j].Timestamp)
	})

	logger.WithFields(map[string]interface{}{
		"pairs":  len(pairs),
		"trades": len(trades),
	}).Info("Fetched trader swaps")
	return trades, nil
}

func (c *TransposeClient) query(ctx context.Context, sql string, out interface{}) error {
	return c.http.PostJSON(ctx, c.cfg.URL, transposeRequest{SQL: sql}, nil, out)
}

func (c *TransposeClient) tradedPairs(ctx context.Context, trader string, since time.Time) ([]string, error) {
	sql := fmt.Sprintf(
		"SELECT DISTINCT contract_address FROM ("+
			"SELECT contract_address, timestamp FROM %s.dex_swaps "+
			"WHERE origin_address = '%s' "+
			"AND timestamp > '%s' "+
			"ORDER BY timestamp desc "+
			"LIMIT %d) as addresses;",
		c.schema, trader, since.UTC().Format(transposeTimeLayout), c.cfg.MaxPairs,
	)

	var resp pairsResponse
	if err := c.query(ctx, sql, &resp); err != nil {
		return nil, fmt.Errorf("failed to query traded pairs of %s: %w", trader, err)
	}

	seen := make(map[string]struct{}, len(resp.Results))
	pairs := make([]string, 0, len(resp.Results))
	for _, row := range resp.Results {
		pair := strings.ToLower(row.ContractAddress)
		if _, dup := seen[pair]; dup || pair == "" {
			continue
		}
		seen[pair] = struct{}{}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func (c *TransposeClient) pairTrades(ctx context.Context, trader, pair string) ([]backtest.SingleTrade, error) {
	buys, err := c.swaps(ctx, trader, pair, true)
	if err != nil {
		return nil, err
	}
	sells, err := c.swaps(ctx, trader, pair, false)
	if err != nil {
		return nil, err
	}
	if len(buys) == 0 || len(sells) == 0 {
		return nil, nil
	}
	return append(buys, sells...), nil
}

func (c *TransposeClient) swaps(ctx context.Context, trader, pair string, isBuy bool) ([]backtest.SingleTrade, error) {
	quoteColumn := "to_token_address"
	if isBuy {
		quoteColumn = "from_token_address"
	}
	sql := fmt.Sprintf(
		"SELECT * FROM %s.dex_swaps "+
			"WHERE contract_address = '%s' "+
			"AND origin_address = '%s' "+
			"AND %s = '%s' "+
			"ORDER BY timestamp asc",
		c.schema, pair, trader, quoteColumn, c.cfg.QuoteToken,
	)

	var resp swapsResponse
	if err := c.query(ctx, sql, &resp); err != nil {
		return nil, fmt.Errorf("failed to query swaps of pair %s: %w", pair, err)
	}

	trades := make([]backtest.SingleTrade, 0, len(resp.Results))
	for _, row := range resp.Results {
		trade, ok, err := c.toTrade(ctx, row, isBuy)
		if err != nil {
			return nil, err
		}
		if ok {
			trades = append(trades, trade)
		}
	}
	return trades, nil
}

// toTrade converts a swap against the quote token into a trade of the other token
func (c *TransposeClient) toTrade(ctx context.Context, row swapRow, isBuy bool) (backtest.SingleTrade, bool, error) {
	token := strings.ToLower(row.FromTokenAddress)
	if isBuy {
		token = strings.ToLower(row.ToTokenAddress)
	}
	if _, skip := c.blacklist[token]; skip {
		return backtest.SingleTrade{}, false, nil
	}

	info, err := c.tokens.TokenInfo(ctx, token, c.cfg.Blockchain)
	if err != nil {
		return backtest.SingleTrade{}, false, err
	}
	if info == nil {
		c.logger.WithField("token", token).Debug("Skipping swap of token without metadata")
		return backtest.SingleTrade{}, false, nil
	}

	// Prices follow the feed's quantity columns: the scaled quantity on the
	// quote side of the row over the scaled quantity on the other side.
	in, out := row.QuantityIn, row.QuantityOut
	if !isBuy {
		in, out = out, in
	}
	numerator := in.Shift(-info.Decimals)
	denominator := out.Shift(-c.cfg.QuoteDecimals)
	if numerator.IsZero() || denominator.IsZero() {
		return backtest.SingleTrade{}, false, nil
	}
	price := numerator.Div(denominator)
	sizeQuote := in.Shift(-c.cfg.QuoteDecimals)

	return backtest.SingleTrade{
		Timestamp:    row.Timestamp.Time,
		TokenAddress: token,
		Symbol:       info.Symbol,
		IsBuy:        isBuy,
		SizeToken:    sizeQuote.Div(price),
		SizeQuote:    sizeQuote,
		Price:        price,
	}, true, nil
}
