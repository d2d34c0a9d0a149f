package aco

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-protocol/aco/internal/telemetry"
	"github.com/meridian-protocol/aco/internal/types"
)

func usd(amount int64) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(amount, 18)
}

func testView() types.MarketView {
	return types.MarketView{
		BaseAsset:    "WETH",
		BasePriceUSD: usd(2000),
		Assets: map[string]types.AssetMarketData{
			"WETH":   {Decimals: 18, VolatilityScore: 3, YieldBps: 300, LastGoodPriceUSD: usd(2000)},
			"wstETH": {Decimals: 18, VolatilityScore: 2, YieldBps: 450, LastGoodPriceUSD: usd(2400)},
		},
		Timestamp: time.Now().UTC(),
	}
}

func testStrategy(owner string) types.Strategy {
	return types.Strategy{
		Owner:                 owner,
		TargetLTVBps:          8000,
		RiskTolerance:         5,
		PermittedAssets:       []string{"WETH", "wstETH"},
		YieldPriority:         true,
		RebalanceThresholdBps: 100,
		Enabled:               true,
	}
}

func testSnapshot(id uint64, owner string) types.PositionSnapshot {
	return types.PositionSnapshot{
		ID:                 id,
		Owner:              owner,
		CollateralAsset:    "WETH",
		CollateralAmount:   sdkmath.NewIntWithDecimal(1, 18),
		CollateralValueUSD: usd(2000),
		DebtUSD:            usd(1000),
		RatioBps:           20000,
		ObservedAt:         time.Now().UTC(),
	}
}

func testParams() types.EngineParameters {
	return types.EngineParameters{
		MaxSlippageBps:            50,
		MaxPositionsPerCycle:      100,
		PriceCacheTTLSeconds:      300,
		GatewayRateLimitPerSecond: 10,
		GatewayBurst:              20,
	}
}

type fakeMarket struct {
	view types.MarketView
	err  error
}

func (f *fakeMarket) BuildView(context.Context) (types.MarketView, error) {
	return f.view, f.err
}

type fakeStrategies struct {
	strategies []types.Strategy
	err        error
}

func (f *fakeStrategies) ActiveStrategies(context.Context) ([]types.Strategy, error) {
	return f.strategies, f.err
}

type fakePositions struct {
	snapshots []types.PositionSnapshot
	err       error
}

func (f *fakePositions) ActivePositions(context.Context) ([]types.PositionSnapshot, error) {
	return f.snapshots, f.err
}

func (f *fakePositions) GetSnapshot(_ context.Context, id uint64) (types.PositionSnapshot, error) {
	for _, snapshot := range f.snapshots {
		if snapshot.ID == id {
			return snapshot, nil
		}
	}
	return types.PositionSnapshot{}, errors.New("snapshot not found")
}

type fakeJournal struct {
	nextNumber int
	numberErr  error
	paramsID   *int64
	paramsErr  error
	saved      []types.CycleReport
	saveErr    error
}

func (f *fakeJournal) NextCycleNumber(context.Context) (int, error) {
	if f.numberErr != nil {
		return 0, f.numberErr
	}
	f.nextNumber++
	return f.nextNumber, nil
}

func (f *fakeJournal) ActiveParametersID(context.Context) (*int64, error) {
	return f.paramsID, f.paramsErr
}

func (f *fakeJournal) SaveReport(_ context.Context, report types.CycleReport) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.saved = append(f.saved, report)
	return int64(len(f.saved)), nil
}

type fakeExecutor struct {
	intents []types.SwapIntent
	err     error
}

func (f *fakeExecutor) ExecuteSwap(_ context.Context, intent types.SwapIntent) (types.ExecutionReceipt, error) {
	f.intents = append(f.intents, intent)
	if f.err != nil {
		return types.ExecutionReceipt{}, f.err
	}
	return types.ExecutionReceipt{
		IntentID:  intent.IntentID,
		Executed:  true,
		TxHash:    "0xfeedbeef",
		AmountOut: intent.MinAmountOut,
		Timestamp: time.Now().UTC(),
	}, nil
}

type engineFixture struct {
	market     *fakeMarket
	strategies *fakeStrategies
	positions  *fakePositions
	journal    *fakeJournal
	executor   *fakeExecutor
	metrics    *telemetry.Metrics
	engine     *ACO
}

func newEngineFixture(t *testing.T, params types.EngineParameters) *engineFixture {
	t.Helper()

	owner := "0xA11ce00000000000000000000000000000000001"
	f := &engineFixture{
		market:     &fakeMarket{view: testView()},
		strategies: &fakeStrategies{strategies: []types.Strategy{testStrategy(owner)}},
		positions:  &fakePositions{snapshots: []types.PositionSnapshot{testSnapshot(1, owner)}},
		journal:    &fakeJournal{},
		executor:   &fakeExecutor{},
		metrics:    telemetry.NewMetrics(prometheus.NewRegistry()),
	}

	engine, err := NewACO(Config{
		Positions:  f.positions,
		Executor:   f.executor,
		Market:     f.market,
		Strategies: f.strategies,
		Journal:    f.journal,
		Metrics:    f.metrics,
		Params:     params,
	})
	require.NoError(t, err)
	f.engine = engine
	return f
}

func TestOptimizePositionSwitchesCollateral(t *testing.T) {
	f := newEngineFixture(t, testParams())
	owner := "0xA11ce00000000000000000000000000000000001"
	snapshot := testSnapshot(1, owner)

	outcome := f.engine.OptimizePosition(context.Background(), zerolog.Nop(), snapshot, testStrategy(owner), testView())

	assert.Equal(t, types.OutcomeSwitch, outcome.Action)
	assert.Equal(t, uint64(1), outcome.PositionID)
	assert.Equal(t, "WETH", outcome.CurrentAsset)
	assert.Equal(t, "wstETH", outcome.BestAsset)
	assert.Equal(t, uint64(166), outcome.CurrentScore)
	assert.Equal(t, uint64(281), outcome.BestScore)

	assert.True(t, outcome.Decision.Rebalance)
	// Improvement: (450-300)*10000/300. Threshold: 100 bps reduced 10% for
	// the one-point volatility drop.
	assert.Equal(t, uint64(5000), outcome.Decision.ImprovementBps)
	assert.Equal(t, uint64(90), outcome.Decision.ThresholdBps)

	require.NotNil(t, outcome.Intent)
	intent := *outcome.Intent
	assert.NotEmpty(t, intent.IntentID)
	assert.Equal(t, uint64(1), intent.PositionID)
	assert.Equal(t, "WETH", intent.FromAsset)
	assert.Equal(t, "wstETH", intent.ToAsset)
	assert.Equal(t, sdkmath.NewIntWithDecimal(1, 18), intent.FromAmount)
	assert.Equal(t, uint64(20000), intent.TargetRatioBps)
	// Corrected candidate amount is 850340136054421768 wstETH base units;
	// with 50 bps slippage the guard is x 9950 / 10000, truncated.
	assert.Equal(t, sdkmath.NewInt(846088435374149659), intent.MinAmountOut)

	require.NotNil(t, outcome.Receipt)
	assert.True(t, outcome.Receipt.Executed)
	assert.Equal(t, intent.IntentID, outcome.Receipt.IntentID)

	require.Len(t, f.executor.intents, 1)
	assert.Equal(t, intent.IntentID, f.executor.intents[0].IntentID)
}

func TestOptimizePositionGateRejection(t *testing.T) {
	f := newEngineFixture(t, testParams())
	owner := "0xA11ce00000000000000000000000000000000001"

	// 1209/1000 derives to 12090 bps, just under the 12100 gate.
	snapshot := testSnapshot(1, owner)
	snapshot.CollateralValueUSD = usd(1209)
	snapshot.RatioBps = 12090

	outcome := f.engine.OptimizePosition(context.Background(), zerolog.Nop(), snapshot, testStrategy(owner), testView())

	assert.Equal(t, types.OutcomeGateRejected, outcome.Action)
	assert.Contains(t, outcome.Reason, "below the safety gate 12100")
	assert.Nil(t, outcome.Intent)
	assert.Empty(t, f.executor.intents)
}

func TestOptimizePositionGateBoundaryIsInclusive(t *testing.T) {
	f := newEngineFixture(t, testParams())
	owner := "0xA11ce00000000000000000000000000000000001"

	// Exactly 12100 bps sits on the gate and must pass through it.
	snapshot := testSnapshot(1, owner)
	snapshot.CollateralValueUSD = usd(1210)
	snapshot.RatioBps = 12100

	outcome := f.engine.OptimizePosition(context.Background(), zerolog.Nop(), snapshot, testStrategy(owner), testView())

	assert.Equal(t, types.OutcomeSwitch, outcome.Action)
}

func TestOptimizePositionHoldsWhenYieldDoesNotImprove(t *testing.T) {
	f := newEngineFixture(t, testParams())
	owner := "0xA11ce00000000000000000000000000000000001"

	// wstETH still outscores WETH on volatility alone, but with equal yield
	// the rebalance decision must refuse to move.
	view := testView()
	data := view.Assets["wstETH"]
	data.YieldBps = 300
	view.Assets["wstETH"] = data

	outcome := f.engine.OptimizePosition(context.Background(), zerolog.Nop(), testSnapshot(1, owner), testStrategy(owner), view)

	assert.Equal(t, types.OutcomeNoAction, outcome.Action)
	assert.Equal(t, "wstETH", outcome.BestAsset)
	assert.False(t, outcome.Decision.Rebalance)
	assert.Equal(t, uint64(0), outcome.Decision.ImprovementBps)
	assert.Equal(t, "candidate yield does not exceed current yield", outcome.Reason)
	assert.Nil(t, outcome.Intent)
	assert.Empty(t, f.executor.intents)
}

func TestOptimizePositionInvalidSnapshotIsSkipped(t *testing.T) {
	f := newEngineFixture(t, testParams())
	owner := "0xA11ce00000000000000000000000000000000001"

	snapshot := testSnapshot(1, owner)
	snapshot.DebtUSD = sdkmath.ZeroInt()

	outcome := f.engine.OptimizePosition(context.Background(), zerolog.Nop(), snapshot, testStrategy(owner), testView())

	assert.Equal(t, types.OutcomeNoAction, outcome.Action)
	assert.Contains(t, outcome.Reason, "invalid snapshot")
	assert.Empty(t, f.executor.intents)
}

func TestOptimizePositionSelectionFailureIsSkipped(t *testing.T) {
	f := newEngineFixture(t, testParams())
	owner := "0xA11ce00000000000000000000000000000000001"

	// Current asset absent from the view leaves no baseline to compare
	// against, so the selector errors and the position is skipped.
	view := testView()
	delete(view.Assets, "WETH")

	outcome := f.engine.OptimizePosition(context.Background(), zerolog.Nop(), testSnapshot(1, owner), testStrategy(owner), view)

	assert.Equal(t, types.OutcomeNoAction, outcome.Action)
	assert.Contains(t, outcome.Reason, "selection failed")
	assert.Empty(t, f.executor.intents)
}

func TestOptimizePositionExecutionFailureKeepsIntent(t *testing.T) {
	f := newEngineFixture(t, testParams())
	owner := "0xA11ce00000000000000000000000000000000001"
	f.executor.err = errors.New("executor gateway is down")

	outcome := f.engine.OptimizePosition(context.Background(), zerolog.Nop(), testSnapshot(1, owner), testStrategy(owner), testView())

	// The intent was emitted even though execution failed, so it stays on
	// the outcome for the audit trail.
	assert.Equal(t, types.OutcomeNoAction, outcome.Action)
	assert.Contains(t, outcome.Reason, "swap execution failed")
	assert.NotNil(t, outcome.Intent)
	assert.Nil(t, outcome.Receipt)
	require.Len(t, f.executor.intents, 1)
}
