package broker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coremarket/broker/internal/broker"
	"github.com/coremarket/broker/internal/mask"
	"github.com/coremarket/broker/internal/testutil"
)

// renewableHarness buys a core, finally assigns it to task 42, and
// rotates once so the renewal window for [6, 9) is open.
func renewableHarness(t *testing.T) *testutil.Harness {
	t.Helper()
	h, id := purchasedRegion(t)
	require.NoError(t, h.Broker.Assign("buyer", id, 42, broker.Final))
	h.Clock.Block = 28
	require.NoError(t, h.Broker.Tick())
	h.Fund("buyer", 30_000_000)
	return h
}

func TestRenew_BumpsPriceAndRollsForward(t *testing.T) {
	h := renewableHarness(t)

	core, err := h.Broker.Renew("buyer", 0)
	require.NoError(t, err)
	assert.Equal(t, broker.CoreIndex(0), core)

	// 10% over the recorded purchase price.
	renewed := h.Events.OfKind("renewed")
	require.Len(t, renewed, 1)
	assert.Equal(t, broker.Renewed{
		Who:      "buyer",
		OldCore:  0,
		Core:     0,
		Price:    11_000_000,
		Begin:    6,
		Duration: 3,
		Workload: broker.Schedule{{Mask: mask.Complete(), Assignment: broker.Task(42)}},
	}, renewed[0])

	// The plan is written and the opportunity moved to the new region's end.
	assert.Contains(t, h.Broker.Workplan, broker.WorkplanKey{Timeslice: 6, Core: 0})
	assert.NotContains(t, h.Broker.PotentialRenewals, broker.PotentialRenewalId{Core: 0, When: 6})
	next := h.Broker.PotentialRenewals[broker.PotentialRenewalId{Core: 0, When: 9}]
	require.NotNil(t, next)
	assert.Equal(t, broker.Balance(11_000_000), next.Price)
	assert.Equal(t, uint16(1), h.Broker.Sale.CoresSold)
}

func TestRenew_BumpCompounds(t *testing.T) {
	h := renewableHarness(t)

	_, err := h.Broker.Renew("buyer", 0)
	require.NoError(t, err)

	h.Clock.Block = 58
	require.NoError(t, h.Broker.Tick()) // rotates to [9, 12)
	_, err = h.Broker.Renew("buyer", 0)
	require.NoError(t, err)

	record := h.Broker.PotentialRenewals[broker.PotentialRenewalId{Core: 0, When: 12}]
	require.NotNil(t, record)
	assert.Equal(t, broker.Balance(12_100_000), record.Price)
}

func TestRenew_Errors(t *testing.T) {
	h := renewableHarness(t)

	_, err := h.Broker.Renew("buyer", 1)
	assert.True(t, broker.IsNotFound(err))

	h.Ledger.Balances["buyer"] = 0
	_, err = h.Broker.Renew("buyer", 0)
	assert.True(t, broker.IsInsufficientFunds(err))
}

func TestRenew_IncompleteRecord(t *testing.T) {
	h, id := purchasedRegion(t)
	piece, _, err := h.Broker.Interlace("buyer", id, mask.FromChunk(0, 40))
	require.NoError(t, err)
	require.NoError(t, h.Broker.Assign("buyer", piece, 42, broker.Final))

	h.Clock.Block = 28
	require.NoError(t, h.Broker.Tick())

	_, err = h.Broker.Renew("buyer", 0)
	assert.Equal(t, broker.ErrCodeIncomplete, broker.CodeOf(err))
}

func TestRenew_NoSale(t *testing.T) {
	h := testutil.NewHarness(testConfig())
	_, err := h.Broker.Renew("buyer", 0)
	assert.Equal(t, broker.ErrCodeSaleNotActive, broker.CodeOf(err))
}

func TestEnableAutoRenew_ExecutesAtRotation(t *testing.T) {
	h, id := purchasedRegion(t)
	require.NoError(t, h.Broker.Assign("buyer", id, 42, broker.Final))

	// Window not yet open: the intent waits for timeslice 6.
	require.NoError(t, h.Broker.EnableAutoRenew("buyer", 0, 42, nil))
	require.Len(t, h.Broker.AutoRenewals, 1)
	assert.Equal(t, broker.Timeslice(6), h.Broker.AutoRenewals[0].NextRenewal)
	assert.Empty(t, h.Events.OfKind("renewed"))

	h.Fund("buyer", 1_000_000) // exactly the renewal price remains
	h.Clock.Block = 28
	require.NoError(t, h.Broker.Tick())

	// The rotation renewed before announcing the new sale.
	kinds := h.Events.Kinds()
	require.GreaterOrEqual(t, len(kinds), 2)
	assert.Equal(t, "sale_initialized", kinds[len(kinds)-1])
	assert.Equal(t, "renewed", kinds[len(kinds)-2])

	require.Len(t, h.Broker.AutoRenewals, 1)
	assert.Equal(t, broker.Timeslice(9), h.Broker.AutoRenewals[0].NextRenewal)
	assert.Equal(t, broker.Balance(0), h.Ledger.BalanceOf("buyer"))
}

func TestEnableAutoRenew_ImmediateWhenWindowOpen(t *testing.T) {
	h := renewableHarness(t)

	require.NoError(t, h.Broker.EnableAutoRenew("buyer", 0, 42, nil))

	assert.Len(t, h.Events.OfKind("renewed"), 1)
	enabled := h.Events.OfKind("auto_renewal_enabled")
	require.Len(t, enabled, 1)
	assert.Equal(t, broker.AutoRenewalEnabled{Core: 0, Task: 42}, enabled[0])
	require.Len(t, h.Broker.AutoRenewals, 1)
	assert.Equal(t, broker.Timeslice(9), h.Broker.AutoRenewals[0].NextRenewal)
}

func TestEnableAutoRenew_Errors(t *testing.T) {
	h := renewableHarness(t)

	err := h.Broker.EnableAutoRenew("buyer", 0, 99, nil)
	assert.True(t, broker.IsNotFound(err), "task mismatch")

	err = h.Broker.EnableAutoRenew("buyer", 5, 42, nil)
	assert.True(t, broker.IsNotFound(err), "no record")

	require.NoError(t, h.Broker.EnableAutoRenew("buyer", 0, 42, nil))
	err = h.Broker.EnableAutoRenew("buyer", 0, 42, nil)
	assert.Equal(t, broker.ErrCodeStillValid, broker.CodeOf(err), "already enabled")
}

func TestEnableAutoRenew_OnlyAssignmentOwner(t *testing.T) {
	h := renewableHarness(t)
	h.Fund("mallory", 30_000_000)

	err := h.Broker.EnableAutoRenew("mallory", 0, 42, nil)
	assert.True(t, broker.IsUnauthorized(err))
	assert.Empty(t, h.Broker.AutoRenewals)

	// The rightful owner still can.
	require.NoError(t, h.Broker.EnableAutoRenew("buyer", 0, 42, nil))
}

func TestAutoRenewal_DisabledWhenRenewalFails(t *testing.T) {
	h, id := purchasedRegion(t)
	require.NoError(t, h.Broker.Assign("buyer", id, 42, broker.Final))
	require.NoError(t, h.Broker.EnableAutoRenew("buyer", 0, 42, nil))
	h.Ledger.Balances["buyer"] = 0

	h.Clock.Block = 28
	require.NoError(t, h.Broker.Tick())

	assert.Empty(t, h.Broker.AutoRenewals)
	assert.Len(t, h.Events.OfKind("auto_renewal_disabled"), 1)
	// The rotation itself still completed.
	assert.Equal(t, broker.Timeslice(6), h.Broker.Sale.RegionBegin)
}

func TestDisableAutoRenew(t *testing.T) {
	h := renewableHarness(t)
	require.NoError(t, h.Broker.EnableAutoRenew("buyer", 0, 42, nil))

	err := h.Broker.DisableAutoRenew("mallory", 0, 42)
	assert.True(t, broker.IsUnauthorized(err))

	require.NoError(t, h.Broker.DisableAutoRenew("buyer", 0, 42))
	assert.Empty(t, h.Broker.AutoRenewals)

	// Disabling again is a no-op, not an error.
	require.NoError(t, h.Broker.DisableAutoRenew("buyer", 0, 42))
	assert.Len(t, h.Events.OfKind("auto_renewal_disabled"), 1)
}

func TestDropRenewal(t *testing.T) {
	h := renewableHarness(t)

	// The window for timeslice 6 is the current sale; still exercisable.
	err := h.Broker.DropRenewal(0, 6)
	assert.Equal(t, broker.ErrCodeStillValid, broker.CodeOf(err))

	h.Clock.Block = 58
	require.NoError(t, h.Broker.Tick()) // rotates to [9, 12)
	require.NoError(t, h.Broker.DropRenewal(0, 6))
	assert.NotContains(t, h.Broker.PotentialRenewals, broker.PotentialRenewalId{Core: 0, When: 6})

	dropped := h.Events.OfKind("potential_renewal_dropped")
	require.Len(t, dropped, 1)
	assert.Equal(t, broker.PotentialRenewalDropped{Core: 0, When: 6}, dropped[0])
}
