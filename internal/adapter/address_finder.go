package adapter

import (
	"context"
	"strconv"
	"strings"

	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/models"
	"github.com/address-ranker/internal/types"
)

const leaderboardPageSize = 50

// AddressFinder discovers candidate addresses to track
type AddressFinder interface {
	FindAddresses(ctx context.Context) ([]models.Address, error)
}

type socialRankingResponse struct {
	Data *struct {
		SocialRankingList []struct {
			ID string `json:"id"`
		} `json:"social_ranking_list"`
	} `json:"data"`
}

// LeaderboardFinder reads addresses from the Debank social ranking leaderboard
type LeaderboardFinder struct {
	http    *HTTPClient
	baseURL string
	pages   int
	proxies ProxySource
	agents  UserAgentSource
	logger  *logging.Logger
}

// NewLeaderboardFinder creates a finder that reads the first pages of the leaderboard
func NewLeaderboardFinder(httpClient *HTTPClient, baseURL string, pages int, proxies ProxySource, agents UserAgentSource, logger *logging.Logger) *LeaderboardFinder {
	if pages < 1 {
		pages = 1
	}
	if proxies == nil {
		proxies = EmptyProxySource{}
	}
	if agents == nil {
		agents = NewUserAgentSource(nil)
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &LeaderboardFinder{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		pages:   pages,
		proxies: proxies,
		agents:  agents,
		logger:  logger.WithField("component", "leaderboard_finder"),
	}
}

// FindAddresses implements AddressFinder. A failed page is logged and skipped;
// the error is returned only when no page could be read.
func (f *LeaderboardFinder) FindAddresses(ctx context.Context) ([]models.Address, error) {
	seen := make(map[string]struct{})
	var (
		addresses []models.Address
		lastErr   error
		okPages   int
	)

	for page := 1; page <= f.pages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ids, err := f.fetchPage(ctx, page)
		if err != nil {
			f.logger.WithError(err).WithField("page", page).Warn("Failed to read leaderboard page")
			lastErr = err
			continue
		}
		okPages++

		for _, id := range ids {
			id = strings.ToLower(strings.TrimSpace(id))
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			addresses = append(addresses, models.Address{Address: id, BlockchainType: types.BlockchainTypeEVM})
		}
	}

	if okPages == 0 && lastErr != nil {
		return nil, lastErr
	}

	f.logger.WithField("count", len(addresses)).Info("Leaderboard addresses found")
	return addresses, nil
}

func (f *LeaderboardFinder) fetchPage(ctx context.Context, page int) ([]string, error) {
	proxy, err := f.proxies.Proxy(ctx)
	if err != nil {
		f.logger.WithError(err).Warn("Proxy lookup failed, sending request directly")
	}

	var resp socialRankingResponse
	query := map[string]string{
		"page_num":   strconv.Itoa(page),
		"page_count": strconv.Itoa(leaderboardPageSize),
	}
	headers := map[string]string{"User-Agent": f.agents.UserAgent()}
	if err := f.http.GetJSON(WithProxy(ctx, proxy), f.baseURL+"/social_ranking/list", query, headers, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, ErrInvalidPayload
	}

	ids := make([]string, 0, len(resp.Data.SocialRankingList))
	for _, row := range resp.Data.SocialRankingList {
		ids = append(ids, row.ID)
	}
	return ids, nil
}
