package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/address-ranker/internal/types"
)

func TestLeaderboardFinder_FindAddresses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/social_ranking/list", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("page_count"))

		switch r.URL.Query().Get("page_num") {
		case "1":
			writeJSON(w, http.StatusOK, `{"data": {"social_ranking_list": [{"id": "0xAAA"}, {"id": "0xbbb"}]}}`)
		case "2":
			writeJSON(w, http.StatusInternalServerError, `{}`)
		case "3":
			writeJSON(w, http.StatusOK, `{"data": {"social_ranking_list": [{"id": "0xaaa"}, {"id": "0xccc"}, {"id": ""}]}}`)
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page_num"))
		}
	}))
	defer server.Close()

	finder := NewLeaderboardFinder(newTestHTTPClient(HTTPClientConfig{}), server.URL, 3, nil, nil, testLogger())
	addresses, err := finder.FindAddresses(context.Background())
	require.NoError(t, err)

	require.Len(t, addresses, 3)
	assert.Equal(t, "0xaaa", addresses[0].Address)
	assert.Equal(t, "0xbbb", addresses[1].Address)
	assert.Equal(t, "0xccc", addresses[2].Address)
	assert.Equal(t, types.BlockchainTypeEVM, addresses[0].BlockchainType)
}

func TestLeaderboardFinder_AllPagesFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"message": "blocked"}`)
	}))
	defer server.Close()

	finder := NewLeaderboardFinder(newTestHTTPClient(HTTPClientConfig{}), server.URL, 2, nil, nil, testLogger())
	_, err := finder.FindAddresses(context.Background())
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestLeaderboardFinder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	finder := NewLeaderboardFinder(newTestHTTPClient(HTTPClientConfig{}), "http://leaderboard.invalid", 5, nil, nil, testLogger())
	_, err := finder.FindAddresses(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
