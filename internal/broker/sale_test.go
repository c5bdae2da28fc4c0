package broker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coremarket/broker/internal/broker"
	"github.com/coremarket/broker/internal/config"
	"github.com/coremarket/broker/internal/mask"
	"github.com/coremarket/broker/internal/testutil"
)

const endPrice = broker.Balance(10_000_000)

// testConfig shrinks the timeslice period so tests can cross timeslice
// boundaries without simulating thousands of blocks.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.TimeslicePeriod = 10
	cfg.LeadinLength = 2
	return cfg
}

// startedHarness is a harness with sales running: two cores, none
// reserved or leased, sale over timeslices [3, 6), purchases open at
// block 1 and reach the end price at block 3.
func startedHarness(t *testing.T) *testutil.Harness {
	t.Helper()
	h := testutil.NewHarness(testConfig())
	require.NoError(t, h.Broker.StartSales(testutil.Admin, endPrice, 2))
	return h
}

func TestStartSales_InitializesSaleAndStatus(t *testing.T) {
	h := startedHarness(t)

	require.NotNil(t, h.Broker.Status)
	assert.Equal(t, uint16(2), h.Broker.Status.CoreCount)

	sale := h.Broker.Sale
	require.NotNil(t, sale)
	assert.Equal(t, broker.Timeslice(3), sale.RegionBegin)
	assert.Equal(t, broker.Timeslice(6), sale.RegionEnd)
	assert.Equal(t, broker.CoreIndex(0), sale.FirstCore)
	assert.Equal(t, uint16(2), sale.CoresOffered)
	assert.Equal(t, uint64(1), sale.SaleStart)

	assert.Equal(t, []string{"core_count_changed", "sale_initialized"}, h.Events.Kinds())
	init := h.Events.Last().(broker.SaleInitialized)
	assert.Equal(t, endPrice*100, init.StartPrice)
	assert.Equal(t, endPrice, init.EndPrice)
}

func TestStartSales_RequiresAdmin(t *testing.T) {
	h := testutil.NewHarness(testConfig())
	err := h.Broker.StartSales("mallory", endPrice, 2)
	assert.True(t, broker.IsUnauthorized(err))
}

func TestStartSales_RejectsSecondCall(t *testing.T) {
	h := startedHarness(t)
	err := h.Broker.StartSales(testutil.Admin, endPrice, 2)
	assert.Equal(t, broker.ErrCodeStillValid, broker.CodeOf(err))
}

func TestCurrentPrice_DescendsThroughLeadin(t *testing.T) {
	h := startedHarness(t)

	for _, tc := range []struct {
		block uint64
		want  broker.Balance
	}{
		{0, 1_000_000_000}, // interlude: start price
		{1, 1_000_000_000}, // lead-in begins
		{2, 505_000_000},   // halfway down
		{3, 10_000_000},    // end price reached
		{9, 10_000_000},    // constant afterwards
	} {
		h.Clock.Block = tc.block
		price, err := h.Broker.CurrentPrice()
		require.NoError(t, err)
		assert.Equal(t, tc.want, price, "block %d", tc.block)
	}
}

func TestPurchase_CreatesRegion(t *testing.T) {
	h := startedHarness(t)
	h.Fund("buyer", 20_000_000)
	h.Clock.Block = 3

	id, err := h.Broker.Purchase("buyer", endPrice)
	require.NoError(t, err)

	assert.Equal(t, broker.RegionId{Begin: 3, Core: 0, Mask: mask.Complete()}, id)
	rec := h.Broker.Regions[id]
	require.NotNil(t, rec)
	assert.Equal(t, broker.Timeslice(6), rec.End)
	assert.Equal(t, broker.AccountId("buyer"), rec.Owner)
	require.NotNil(t, rec.Paid)
	assert.Equal(t, endPrice, *rec.Paid)

	assert.Equal(t, broker.Balance(10_000_000), h.Ledger.BalanceOf("buyer"))
	assert.Equal(t, broker.Balance(10_000_000), h.Ledger.BalanceOf(broker.BrokerAccount))
}

func TestPurchase_Errors(t *testing.T) {
	h := startedHarness(t)
	h.Fund("buyer", 100_000_000)

	// Before the interlude ends the sale is not yet purchasable.
	_, err := h.Broker.Purchase("buyer", endPrice*100)
	assert.Equal(t, broker.ErrCodeSaleNotActive, broker.CodeOf(err))

	h.Clock.Block = 3
	_, err = h.Broker.Purchase("buyer", endPrice-1)
	assert.Equal(t, broker.ErrCodePriceTooHigh, broker.CodeOf(err))

	_, err = h.Broker.Purchase("pauper", endPrice)
	assert.True(t, broker.IsInsufficientFunds(err))

	_, err = h.Broker.Purchase("buyer", endPrice)
	require.NoError(t, err)
	_, err = h.Broker.Purchase("buyer", endPrice)
	require.NoError(t, err)
	_, err = h.Broker.Purchase("buyer", endPrice)
	assert.Equal(t, broker.ErrCodeOversold, broker.CodeOf(err))
}

func TestPurchase_AssignsConsecutiveCores(t *testing.T) {
	h := startedHarness(t)
	h.Fund("buyer", 100_000_000)
	h.Clock.Block = 3

	first, err := h.Broker.Purchase("buyer", endPrice)
	require.NoError(t, err)
	second, err := h.Broker.Purchase("buyer", endPrice)
	require.NoError(t, err)

	assert.Equal(t, broker.CoreIndex(0), first.Core)
	assert.Equal(t, broker.CoreIndex(1), second.Core)
}

func TestRotation_SelloutPriceBecomesNextEndPrice(t *testing.T) {
	h := startedHarness(t)
	h.Fund("buyer", 2_000_000_000)

	// Selling out mid-lead-in records the market-clearing price.
	h.Clock.Block = 2
	_, err := h.Broker.Purchase("buyer", 505_000_000)
	require.NoError(t, err)
	_, err = h.Broker.Purchase("buyer", 505_000_000)
	require.NoError(t, err)

	h.Clock.Block = 28 // commit timeslice 3 reaches the sale region
	require.NoError(t, h.Broker.Tick())

	sale := h.Broker.Sale
	require.NotNil(t, sale)
	assert.Equal(t, broker.Timeslice(6), sale.RegionBegin)
	assert.Equal(t, broker.Timeslice(9), sale.RegionEnd)
	assert.Equal(t, broker.Balance(505_000_000), sale.EndPrice)
}

func TestRotation_LeaseSchedulesAndExpires(t *testing.T) {
	h := testutil.NewHarness(testConfig())
	require.NoError(t, h.Broker.SetLease(testutil.Admin, 99, 7))
	require.NoError(t, h.Broker.StartSales(testutil.Admin, endPrice, 1))

	// The lease takes core 0 and the sale offers the one extra core.
	assert.Equal(t, uint16(2), h.Broker.Status.CoreCount)
	assert.Equal(t, broker.CoreIndex(1), h.Broker.Sale.FirstCore)
	assert.Equal(t, uint16(1), h.Broker.Sale.CoresOffered)
	plan := h.Broker.Workplan[broker.WorkplanKey{Timeslice: 3, Core: 0}]
	require.Len(t, plan, 1)
	assert.Equal(t, broker.Task(99), plan[0].Assignment)

	// until=7 falls inside the next region [6, 9): final region, then out.
	h.Clock.Block = 28
	require.NoError(t, h.Broker.Tick())
	ending := h.Events.OfKind("lease_ending")
	require.Len(t, ending, 1)
	assert.Equal(t, broker.LeaseEnding{Task: 99, When: 7}, ending[0])
	assert.Empty(t, h.Broker.Leases)
}

func TestRotation_LimitCoresOffered(t *testing.T) {
	cfg := testConfig()
	limit := uint16(1)
	cfg.LimitCoresOffered = &limit

	h := testutil.NewHarness(cfg)
	require.NoError(t, h.Broker.StartSales(testutil.Admin, endPrice, 3))
	assert.Equal(t, uint16(1), h.Broker.Sale.CoresOffered)
}
