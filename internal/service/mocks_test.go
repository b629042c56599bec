package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/address-ranker/internal/aggregation"
	apperrors "github.com/address-ranker/internal/errors"
	"github.com/address-ranker/internal/models"
	"github.com/address-ranker/internal/types"
)

// Mock address store backed by a map
type mockAddressStore struct {
	mu        sync.Mutex
	addresses map[string]models.Address
	order     []string
	createFn  func(ctx context.Context, address *models.Address) error
	listErr   error
}

func newMockAddressStore(addresses ...string) *mockAddressStore {
	m := &mockAddressStore{addresses: make(map[string]models.Address)}
	for _, a := range addresses {
		_ = m.Create(context.Background(), &models.Address{Address: a, BlockchainType: types.BlockchainTypeEVM})
	}
	return m
}

func (m *mockAddressStore) Create(ctx context.Context, address *models.Address) error {
	if m.createFn != nil {
		return m.createFn(ctx, address)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.addresses[address.Address]; ok {
		return apperrors.NewAddressAlreadyExistsError(address.Address)
	}
	address.CreatedAt = time.Now().UTC()
	m.addresses[address.Address] = *address
	m.order = append(m.order, address.Address)
	return nil
}

func (m *mockAddressStore) Get(ctx context.Context, address string) (*models.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.addresses[strings.ToLower(address)]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *mockAddressStore) List(ctx context.Context) ([]models.Address, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Address, 0, len(m.order))
	for _, a := range m.order {
		out = append(out, m.addresses[a])
	}
	return out, nil
}

type mockFinder struct {
	addresses []models.Address
	err       error
}

func (m *mockFinder) FindAddresses(ctx context.Context) ([]models.Address, error) {
	return m.addresses, m.err
}

type mockAssetProvider struct {
	fetchFn func(ctx context.Context, address string, runTimestamp time.Time) (*models.AddressSnapshot, error)
}

func (m *mockAssetProvider) FetchSnapshot(ctx context.Context, address string, runTimestamp time.Time) (*models.AddressSnapshot, error) {
	return m.fetchFn(ctx, address, runTimestamp)
}

type mockSnapshotStore struct {
	mu       sync.Mutex
	saved    []*models.AddressSnapshot
	runIDs   []uuid.UUID
	last     map[string]*models.AddressSnapshot
	atFn     func(ctx context.Context, address string, t time.Time) (*models.AddressSnapshot, error)
	lastErr  error
	saveErr  error
	lastHits int
}

func newMockSnapshotStore() *mockSnapshotStore {
	return &mockSnapshotStore{last: make(map[string]*models.AddressSnapshot)}
}

func (m *mockSnapshotStore) Save(ctx context.Context, snapshot *models.AddressSnapshot, runID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, snapshot)
	m.runIDs = append(m.runIDs, runID)
	return nil
}

func (m *mockSnapshotStore) FindLastSnapshot(ctx context.Context, address string) (*models.AddressSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastHits++
	if m.lastErr != nil {
		return nil, m.lastErr
	}
	return m.last[address], nil
}

func (m *mockSnapshotStore) FindSnapshotAt(ctx context.Context, address string, t time.Time) (*models.AddressSnapshot, error) {
	if m.atFn != nil {
		return m.atFn(ctx, address, t)
	}
	return nil, nil
}

type mockHistoryStore struct {
	mu     sync.Mutex
	points []models.HoldingHistoryPoint
	err    error
	findFn func(ctx context.Context, address, symbol string, from, to time.Time) ([]models.HoldingHistoryPoint, error)
}

func (m *mockHistoryStore) SaveBatch(ctx context.Context, points []models.HoldingHistoryPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.points = append(m.points, points...)
	return nil
}

func (m *mockHistoryStore) FindHistory(ctx context.Context, address, symbol string, from, to time.Time) ([]models.HoldingHistoryPoint, error) {
	if m.findFn != nil {
		return m.findFn(ctx, address, symbol, from, to)
	}
	return nil, nil
}

type mockPerformanceStore struct {
	mu      sync.Mutex
	saved   []*models.PerformanceResult
	results []models.PerformanceResult
	err     error
}

func (m *mockPerformanceStore) Save(ctx context.Context, result *models.PerformanceResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, result)
	return nil
}

func (m *mockPerformanceStore) FindInWindow(ctx context.Context, address string, start, end time.Time) ([]models.PerformanceResult, error) {
	var out []models.PerformanceResult
	for _, r := range m.results {
		if r.Address == address && !r.StartTime.Before(start) && !r.EndTime.After(end) {
			out = append(out, r)
		}
	}
	return out, m.err
}

func (m *mockPerformanceStore) FindAllInWindow(ctx context.Context, start, end time.Time) ([]models.PerformanceResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.PerformanceResult
	for _, r := range m.results {
		if !r.StartTime.Before(start) && !r.EndTime.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockRankStore struct {
	addressRanks map[string][]models.AddressPerformanceRank
	coinRanks    map[string][]models.CoinChangeRank
	saveErr      error
	finds        int
}

func newMockRankStore() *mockRankStore {
	return &mockRankStore{
		addressRanks: make(map[string][]models.AddressPerformanceRank),
		coinRanks:    make(map[string][]models.CoinChangeRank),
	}
}

func rankStoreKey(rankingType types.RankingType, t time.Time) string {
	return string(rankingType) + t.UTC().Format(time.RFC3339)
}

func (m *mockRankStore) SaveAddressRanks(ctx context.Context, rankingType types.RankingType, t time.Time, ranks []models.AddressPerformanceRank) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.addressRanks[rankStoreKey(rankingType, t)] = ranks
	return nil
}

func (m *mockRankStore) SaveCoinRanks(ctx context.Context, rankingType types.RankingType, t time.Time, ranks []models.CoinChangeRank) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.coinRanks[rankStoreKey(rankingType, t)] = ranks
	return nil
}

func (m *mockRankStore) FindAddressRanks(ctx context.Context, t time.Time, rankingType types.RankingType) ([]models.AddressPerformanceRank, error) {
	m.finds++
	return m.addressRanks[rankStoreKey(rankingType, t)], nil
}

func (m *mockRankStore) FindCoinRanks(ctx context.Context, t time.Time, rankingType types.RankingType) ([]models.CoinChangeRank, error) {
	m.finds++
	return m.coinRanks[rankStoreKey(rankingType, t)], nil
}

func snapshotOf(t *testing.T, address string, at time.Time, holdings ...types.UsdValuedHolding) *models.AddressSnapshot {
	t.Helper()
	snapshot, err := aggregation.BuildSnapshot(address, holdings, at)
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}
	return snapshot
}

func usd(symbol string, amount, price float64) types.UsdValuedHolding {
	return types.NewUsdValuedHolding(symbol, decimal.NewFromFloat(amount), decimal.NewFromFloat(price))
}
