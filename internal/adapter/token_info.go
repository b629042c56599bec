package adapter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/types"
)

// Symbols advertising a website are spam tokens
var badSymbolDomains = []string{".io", ".net", ".xyz", ".co"}

// TokenInfo is the ERC-20 metadata needed to scale raw swap quantities
type TokenInfo struct {
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
	Address  string `json:"address"`
}

// TokenInfoProvider resolves token metadata. A nil result without an error
// means the token has no usable metadata.
type TokenInfoProvider interface {
	TokenInfo(ctx context.Context, contract string, blockchain types.Blockchain) (*TokenInfo, error)
}

// TokenInfoCache stores resolved metadata. A miss returns the zero value and false.
type TokenInfoCache interface {
	Get(key string) (TokenInfo, bool)
	Set(key string, info TokenInfo)
}

// TokenInfoKey is the cache key for a contract on a chain
func TokenInfoKey(contract string, blockchain types.Blockchain) string {
	return fmt.Sprintf("%s_%s", strings.ToLower(contract), blockchain)
}

// MemoryTokenInfoCache is an in-process TokenInfoCache with expiry
type MemoryTokenInfoCache struct {
	cache *cache.Cache
}

// NewMemoryTokenInfoCache creates a cache whose entries live for ttl
func NewMemoryTokenInfoCache(ttl time.Duration) *MemoryTokenInfoCache {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &MemoryTokenInfoCache{cache: cache.New(ttl, 10*time.Minute)}
}

// Get implements TokenInfoCache
func (c *MemoryTokenInfoCache) Get(key string) (TokenInfo, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return TokenInfo{}, false
	}
	info, ok := v.(TokenInfo)
	return info, ok
}

// Set implements TokenInfoCache
func (c *MemoryTokenInfoCache) Set(key string, info TokenInfo) {
	c.cache.Set(key, info, cache.DefaultExpiration)
}

type moralisToken struct {
	Symbol   string  `json:"symbol"`
	Decimals *string `json:"decimals"`
	Address  string  `json:"address"`
}

// MoralisTokenInfoProvider reads ERC-20 metadata from the Moralis API
type MoralisTokenInfoProvider struct {
	http    *HTTPClient
	baseURL string
	cache   TokenInfoCache
	logger  *logging.Logger
}

// NewMoralisTokenInfoProvider creates a provider. The client should carry the X-API-Key header.
func NewMoralisTokenInfoProvider(httpClient *HTTPClient, baseURL string, tokenCache TokenInfoCache, logger *logging.Logger) *MoralisTokenInfoProvider {
	if tokenCache == nil {
		tokenCache = NewMemoryTokenInfoCache(0)
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &MoralisTokenInfoProvider{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   tokenCache,
		logger:  logger.WithField("provider", "moralis"),
	}
}

func moralisChain(blockchain types.Blockchain) (string, bool) {
	switch blockchain {
	case types.BlockchainETH:
		return "eth", true
	case types.BlockchainMATIC:
		return "polygon", true
	case types.BlockchainARB:
		return "arbitrum", true
	case types.BlockchainBSC:
		return "bsc", true
	case types.BlockchainAVAX:
		return "avalanche", true
	case types.BlockchainFTM:
		return "fantom", true
	case types.BlockchainOptimism:
		return "optimism", true
	default:
		return "", false
	}
}

// TokenInfo implements TokenInfoProvider
func (p *MoralisTokenInfoProvider) TokenInfo(ctx context.Context, contract string, blockchain types.Blockchain) (*TokenInfo, error) {
	contract = strings.ToLower(contract)
	key := TokenInfoKey(contract, blockchain)
	if info, ok := p.cache.Get(key); ok {
		return &info, nil
	}

	chain, ok := moralisChain(blockchain)
	if !ok {
		return nil, fmt.Errorf("no token metadata for chain %s", blockchain)
	}

	var tokens []moralisToken
	query := map[string]string{"chain": chain, "addresses": contract}
	if err := p.http.GetJSON(ctx, p.baseURL+"/erc20/metadata", query, nil, &tokens); err != nil {
		return nil, fmt.Errorf("failed to get token metadata for %s: %w", contract, err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("no token metadata returned for %s", contract)
	}

	info := parseMoralisToken(tokens[0], contract)
	if info == nil {
		p.logger.WithField("contract", contract).Debug("Token has no usable metadata")
		return nil, nil
	}
	p.cache.Set(key, *info)
	return info, nil
}

func parseMoralisToken(token moralisToken, contract string) *TokenInfo {
	if token.Decimals == nil {
		return nil
	}
	decimals, err := strconv.ParseInt(*token.Decimals, 10, 32)
	if err != nil || decimals < 0 {
		return nil
	}
	for _, domain := range badSymbolDomains {
		if strings.Contains(token.Symbol, domain) {
			return nil
		}
	}
	return &TokenInfo{Symbol: token.Symbol, Decimals: int32(decimals), Address: contract}
}
