package broker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coremarket/broker/internal/broker"
	"github.com/coremarket/broker/internal/mask"
	"github.com/coremarket/broker/internal/testutil"
)

func TestTick_RequiresStartedSales(t *testing.T) {
	h := testutil.NewHarness(testConfig())
	err := h.Broker.Tick()
	assert.Equal(t, broker.ErrCodeSaleNotActive, broker.CodeOf(err))
}

func TestTick_AppliesCoreCountInbox(t *testing.T) {
	h := startedHarness(t)

	require.NoError(t, h.Broker.RequestCoreCount(testutil.Admin, 5))
	assert.Equal(t, uint16(2), h.Broker.Status.CoreCount)

	require.NoError(t, h.Broker.Tick())
	assert.Equal(t, uint16(5), h.Broker.Status.CoreCount)
	assert.Nil(t, h.Broker.CoreCountInbox)

	changed := h.Events.OfKind("core_count_changed")
	require.Len(t, changed, 2) // once at start, once from the request
	assert.Equal(t, broker.CoreCountChanged{CoreCount: 5}, changed[1])
}

func TestTick_CatchesUpTimeslices(t *testing.T) {
	h := startedHarness(t)

	h.Clock.Block = 28
	require.NoError(t, h.Broker.Tick())

	assert.Equal(t, broker.Timeslice(3), h.Broker.Status.LastCommittedTimeslice)
	assert.Equal(t, broker.Timeslice(2), h.Broker.Status.LastTimeslice)
	assert.Len(t, h.Events.OfKind("history_initialized"), 3)
}

func TestTick_RepeatIsIdempotent(t *testing.T) {
	h := startedHarness(t)

	h.Clock.Block = 28
	require.NoError(t, h.Broker.Tick())
	before := len(h.Events.All())

	require.NoError(t, h.Broker.Tick())
	assert.Len(t, h.Events.All(), before)
}

func TestTick_RotatesWhenRegionReached(t *testing.T) {
	h := startedHarness(t)

	h.Clock.Block = 27 // commit timeslice 2, one short of the region
	require.NoError(t, h.Broker.Tick())
	assert.Equal(t, broker.Timeslice(3), h.Broker.Sale.RegionBegin)

	h.Clock.Block = 28
	require.NoError(t, h.Broker.Tick())
	assert.Equal(t, broker.Timeslice(6), h.Broker.Sale.RegionBegin)
	assert.Equal(t, broker.Timeslice(9), h.Broker.Sale.RegionEnd)
}

func TestTick_LateRotationStillMaterializes(t *testing.T) {
	h := testutil.NewHarness(testConfig())

	sched := broker.Schedule{{Mask: mask.Complete(), Assignment: broker.Task(7)}}
	_, err := h.Broker.Reserve(testutil.Admin, sched)
	require.NoError(t, err)
	require.NoError(t, h.Broker.StartSales(testutil.Admin, endPrice, 0))

	// A single late tick commits through two rotations at once. The
	// plans each rotation writes must land on the workload, not linger
	// behind the committed timeslice.
	h.Clock.Block = 58
	require.NoError(t, h.Broker.Tick())

	assert.Equal(t, broker.Timeslice(9), h.Broker.Sale.RegionBegin)
	assert.Equal(t, sched, h.Broker.Workload[0])
	assert.NotContains(t, h.Broker.Workplan, broker.WorkplanKey{Timeslice: 6, Core: 0})
	assert.Contains(t, h.Broker.Workplan, broker.WorkplanKey{Timeslice: 9, Core: 0})
	assert.Len(t, h.Events.OfKind("core_assigned"), 2)
}
