package position

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitinkhare/intradaytrader/internal/policy"
	"github.com/nitinkhare/intradaytrader/internal/trailstop"
)

type memStore struct {
	open   map[string][]byte
	trades []CompletedTrade
}

func newMemStore() *memStore { return &memStore{open: make(map[string][]byte)} }

func (s *memStore) SaveOpenPosition(_ context.Context, symbol string, data []byte) error {
	s.open[symbol] = data
	return nil
}
func (s *memStore) DeleteOpenPosition(_ context.Context, symbol string) error {
	delete(s.open, symbol)
	return nil
}
func (s *memStore) LoadOpenPositions(_ context.Context) (map[string][]byte, error) {
	out := make(map[string][]byte, len(s.open))
	for k, v := range s.open {
		out[k] = v
	}
	return out, nil
}
func (s *memStore) AppendCompletedTrade(_ context.Context, trade CompletedTrade) error {
	s.trades = append(s.trades, trade)
	return nil
}

func newTestPosition(t *testing.T, symbol string, entry float64) *Position {
	t.Helper()
	m, err := trailstop.New(trailstop.Params{
		EntryPrice: entry, Side: trailstop.SideLong,
		StopPct: 0.02, TargetPct: 0.05, TrailActivationPct: 0.01, TrailDistancePct: 0.015,
	})
	require.NoError(t, err)
	return &Position{
		Symbol: symbol, Side: SideLong, Qty: 10, EntryPrice: entry,
		EntryTs: time.Now(), Policy: policy.Default, Trail: m,
	}
}

func TestCreateAndClose_WritesThroughAndAppendsTrade(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, JSONCodec{})
	ctx := context.Background()

	p := newTestPosition(t, "SOFI", 24.0)
	require.NoError(t, mgr.Create(ctx, p))
	assert.Len(t, store.open, 1)
	assert.Equal(t, 1, mgr.Count())

	trade, err := mgr.Close(ctx, "SOFI", 25.0, time.Now(), "TARGET_REACHED")
	require.NoError(t, err)
	assert.Equal(t, 0, mgr.Count())
	assert.Empty(t, store.open)
	assert.Len(t, store.trades, 1)
	assert.InDelta(t, 10.0, trade.RealizedPnL, 0.0001)
}

func TestCreate_RejectsDuplicateSymbol(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, JSONCodec{})
	ctx := context.Background()
	require.NoError(t, mgr.Create(ctx, newTestPosition(t, "SOFI", 24.0)))
	err := mgr.Create(ctx, newTestPosition(t, "SOFI", 24.5))
	assert.Error(t, err)
}

// S5 — Phantom detection: internal record with no broker-reported position
// is deleted, never closed, and no trade/close order is produced.
func TestRecover_PhantomPositionIsDeletedNotClosed(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, JSONCodec{})
	ctx := context.Background()

	p := newTestPosition(t, "QBTS", 10.0)
	p.Qty = 41
	require.NoError(t, mgr.Create(ctx, p))

	result, err := mgr.Recover(ctx, nil, policy.NewTable(nil), func(context.Context, string) (float64, error) { return 10.5, nil }, time.Now())
	require.NoError(t, err)

	assert.Equal(t, []string{"QBTS"}, result.Phantoms)
	assert.Nil(t, mgr.Open("QBTS"))
	assert.Empty(t, store.trades, "a phantom must never produce a completed trade or close order")
}

func TestRecover_RehydratesAndRearmsProfitablePosition(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, JSONCodec{})
	ctx := context.Background()

	pol := policy.Policy{StopPct: 0.0030, TargetPct: 0.05, TrailActivationPct: 0.0040, TrailDistancePct: 0.0045, ConfidenceMultiplier: 1, SizeMultiplier: 1}
	trailM, err := trailstop.New(trailstop.Params{EntryPrice: 24.93, Side: trailstop.SideLong, StopPct: pol.StopPct, TargetPct: pol.TargetPct, TrailActivationPct: pol.TrailActivationPct, TrailDistancePct: pol.TrailDistancePct})
	require.NoError(t, err)
	p := &Position{Symbol: "INTC", Side: SideLong, Qty: 10, EntryPrice: 24.93, EntryTs: time.Now(), Policy: pol, Trail: trailM}
	require.NoError(t, mgr.Create(ctx, p))

	broker := []BrokerPosition{{Symbol: "INTC", Qty: 10, AvgEntryPrice: 24.93}}
	result, err := mgr.Recover(ctx, broker, policy.NewTable(nil), func(context.Context, string) (float64, error) { return 26.20, nil }, time.Now())
	require.NoError(t, err)

	assert.Equal(t, []string{"INTC"}, result.Rehydrated)
	recovered := mgr.Open("INTC")
	require.NotNil(t, recovered)
	assert.Equal(t, trailstop.StateTrailingArmed, recovered.Trail.State)
	assert.InDelta(t, 26.0821, recovered.Trail.TrailingStopPrice, 0.0001)
}

func TestRecover_OrphanBrokerPositionIsReconstructed(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, JSONCodec{})
	ctx := context.Background()

	broker := []BrokerPosition{{Symbol: "GME", Qty: -25, AvgEntryPrice: 20.0}} // short
	result, err := mgr.Recover(ctx, broker, policy.NewTable(nil), func(context.Context, string) (float64, error) { return 19.0, nil }, time.Now())
	require.NoError(t, err)

	assert.Equal(t, []string{"GME"}, result.Orphans)
	p := mgr.Open("GME")
	require.NotNil(t, p)
	assert.Equal(t, SideShort, p.Side)
	assert.Equal(t, 25, p.Qty)
}
