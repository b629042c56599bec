package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/address-ranker/internal/types"
)

const (
	testQuote  = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	testTrader = "0x1111111111111111111111111111111111111111"
	testToken  = "0x2222222222222222222222222222222222222222"
	testUSDC   = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
)

type mockTokenInfoProvider struct {
	TokenInfoFunc func(ctx context.Context, contract string, blockchain types.Blockchain) (*TokenInfo, error)
}

func (m *mockTokenInfoProvider) TokenInfo(ctx context.Context, contract string, blockchain types.Blockchain) (*TokenInfo, error) {
	return m.TokenInfoFunc(ctx, contract, blockchain)
}

func pepeTokens() *mockTokenInfoProvider {
	return &mockTokenInfoProvider{TokenInfoFunc: func(_ context.Context, contract string, _ types.Blockchain) (*TokenInfo, error) {
		return &TokenInfo{Symbol: "PEPE", Decimals: 18, Address: contract}, nil
	}}
}

// transposeHandler answers the pair, buy and sell queries from canned rows keyed by pair
type transposeHandler struct {
	t     *testing.T
	mu    sync.Mutex
	sqls  []string
	pairs []string
	buys  map[string]string
	sells map[string]string
}

func (h *transposeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req transposeRequest
	if !assert.NoError(h.t, json.NewDecoder(r.Body).Decode(&req)) {
		writeJSON(w, http.StatusBadRequest, `{}`)
		return
	}

	h.mu.Lock()
	h.sqls = append(h.sqls, req.SQL)
	h.mu.Unlock()

	if strings.HasPrefix(req.SQL, "SELECT DISTINCT contract_address") {
		rows := make([]string, 0, len(h.pairs))
		for _, p := range h.pairs {
			rows = append(rows, `{"contract_address": "`+p+`"}`)
		}
		writeJSON(w, http.StatusOK, `{"results": [`+strings.Join(rows, ",")+`]}`)
		return
	}

	rows := h.sells
	if strings.Contains(req.SQL, "from_token_address = '"+testQuote+"'") {
		rows = h.buys
	}
	for pair, body := range rows {
		if strings.Contains(req.SQL, "contract_address = '"+pair+"'") {
			writeJSON(w, http.StatusOK, `{"results": [`+body+`]}`)
			return
		}
	}
	writeJSON(w, http.StatusOK, `{"results": []}`)
}

func newTestTranspose(t *testing.T, url string, tokens TokenInfoProvider) *TransposeClient {
	t.Helper()
	client, err := NewTransposeClient(TransposeConfig{
		URL:           url,
		QuoteToken:    testQuote,
		QuoteDecimals: 18,
		Concurrency:   2,
	}, newTestHTTPClient(HTTPClientConfig{Provider: "transpose"}), tokens, testLogger())
	require.NoError(t, err)
	return client
}

func TestTransposeClient_FetchTrades(t *testing.T) {
	handler := &transposeHandler{
		t:     t,
		pairs: []string{"0xpair1", "0xpair2"},
		buys: map[string]string{
			"0xpair1": `{"from_token_address": "` + testQuote + `", "to_token_address": "` + testToken + `",
				"quantity_in": "2000000000000000000", "quantity_out": "1000000000000000000",
				"timestamp": "2022-06-01T00:00:00Z"},
				{"from_token_address": "` + testQuote + `", "to_token_address": "` + testUSDC + `",
				"quantity_in": "5000000000000000000", "quantity_out": "5000000000000000000",
				"timestamp": "2022-06-01T06:00:00Z"}`,
			"0xpair2": `{"from_token_address": "` + testQuote + `", "to_token_address": "0x3333",
				"quantity_in": "1000000000000000000", "quantity_out": "1000000000000000000",
				"timestamp": "2022-06-03T00:00:00Z"}`,
		},
		sells: map[string]string{
			"0xpair1": `{"from_token_address": "` + testToken + `", "to_token_address": "` + testQuote + `",
				"quantity_in": "1000000000000000000", "quantity_out": "3000000000000000000",
				"timestamp": "2022-06-02T00:00:00Z"}`,
		},
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	since := time.Date(2022, 5, 1, 1, 1, 1, 0, time.UTC)
	trades, err := newTestTranspose(t, server.URL, pepeTokens()).FetchTrades(context.Background(), strings.ToUpper(testTrader[:2])+testTrader[2:], since)
	require.NoError(t, err)

	// pair2 has no sells, the USDC buy is blacklisted
	require.Len(t, trades, 2)

	buy, sell := trades[0], trades[1]
	assert.True(t, buy.IsBuy)
	assert.Equal(t, testToken, buy.TokenAddress)
	assert.Equal(t, "PEPE", buy.Symbol)
	assert.True(t, decimal.NewFromInt(2).Equal(buy.Price), buy.Price.String())
	assert.True(t, decimal.NewFromInt(2).Equal(buy.SizeQuote))
	assert.True(t, decimal.NewFromInt(1).Equal(buy.SizeToken))

	assert.False(t, sell.IsBuy)
	assert.Equal(t, testToken, sell.TokenAddress)
	assert.True(t, decimal.NewFromInt(3).Equal(sell.Price), sell.Price.String())
	assert.True(t, decimal.NewFromInt(3).Equal(sell.SizeQuote))
	assert.True(t, decimal.NewFromInt(1).Equal(sell.SizeToken))
	assert.True(t, buy.Timestamp.Before(sell.Timestamp))

	pairSQL := handler.sqls[0]
	assert.Contains(t, pairSQL, "FROM ethereum.dex_swaps")
	assert.Contains(t, pairSQL, "origin_address = '"+testTrader+"'")
	assert.Contains(t, pairSQL, "timestamp > '2022-05-01T01:01:01Z'")
	assert.Contains(t, pairSQL, "LIMIT 100")
}

func TestTransposeClient_SkipsTokensWithoutMetadata(t *testing.T) {
	handler := &transposeHandler{
		t:     t,
		pairs: []string{"0xpair1"},
		buys: map[string]string{"0xpair1": `{"from_token_address": "` + testQuote + `", "to_token_address": "` + testToken + `",
			"quantity_in": "1", "quantity_out": "1", "timestamp": "2022-06-01T00:00:00Z"}`},
		sells: map[string]string{"0xpair1": `{"from_token_address": "` + testToken + `", "to_token_address": "` + testQuote + `",
			"quantity_in": "1", "quantity_out": "1", "timestamp": "2022-06-02T00:00:00Z"}`},
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	tokens := &mockTokenInfoProvider{TokenInfoFunc: func(context.Context, string, types.Blockchain) (*TokenInfo, error) {
		return nil, nil
	}}
	trades, err := newTestTranspose(t, server.URL, tokens).FetchTrades(context.Background(), testTrader, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestTransposeClient_PairQueryFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"message": "bad key"}`)
	}))
	defer server.Close()

	_, err := newTestTranspose(t, server.URL, pepeTokens()).FetchTrades(context.Background(), testTrader, time.Time{})
	assert.Error(t, err)
}

func TestNewTransposeClient_Validation(t *testing.T) {
	httpClient := newTestHTTPClient(HTTPClientConfig{})

	_, err := NewTransposeClient(TransposeConfig{URL: "http://x", QuoteToken: testQuote, Blockchain: types.BlockchainBSC}, httpClient, pepeTokens(), nil)
	assert.Error(t, err)

	_, err = NewTransposeClient(TransposeConfig{URL: "http://x"}, httpClient, pepeTokens(), nil)
	assert.Error(t, err)

	client, err := NewTransposeClient(TransposeConfig{URL: "http://x", QuoteToken: strings.ToUpper(testQuote), Blockchain: types.BlockchainARB}, httpClient, pepeTokens(), nil)
	require.NoError(t, err)
	assert.Equal(t, "arbitrum", client.schema)
	assert.Equal(t, testQuote, client.cfg.QuoteToken)
}
