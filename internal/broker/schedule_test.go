package broker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coremarket/broker/internal/broker"
	"github.com/coremarket/broker/internal/mask"
)

func TestAssign_FinalConsumesRegionAndRecordsRenewal(t *testing.T) {
	h, id := purchasedRegion(t)

	require.NoError(t, h.Broker.Assign("buyer", id, 42, broker.Final))

	assert.NotContains(t, h.Broker.Regions, id)
	plan := h.Broker.Workplan[broker.WorkplanKey{Timeslice: 3, Core: 0}]
	require.Len(t, plan, 1)
	assert.Equal(t, broker.Task(42), plan[0].Assignment)

	record := h.Broker.PotentialRenewals[broker.PotentialRenewalId{Core: 0, When: 6}]
	require.NotNil(t, record)
	assert.True(t, record.Complete)
	assert.Equal(t, endPrice, record.Price)
	assert.True(t, record.Mask.IsComplete())
}

func TestAssign_ProvisionalKeepsRegion(t *testing.T) {
	h, id := purchasedRegion(t)

	require.NoError(t, h.Broker.Assign("buyer", id, 42, broker.Provisional))

	assert.Contains(t, h.Broker.Regions, id)
	assert.Empty(t, h.Broker.PotentialRenewals)

	// Still reassignable: the new plan evicts the overlapping old one.
	require.NoError(t, h.Broker.Assign("buyer", id, 43, broker.Provisional))
	plan := h.Broker.Workplan[broker.WorkplanKey{Timeslice: 3, Core: 0}]
	require.Len(t, plan, 1)
	assert.Equal(t, broker.Task(43), plan[0].Assignment)
}

func TestAssign_PartitionedPieceNotRenewable(t *testing.T) {
	h, id := purchasedRegion(t)

	first, _, err := h.Broker.Partition("buyer", id, 1)
	require.NoError(t, err)
	require.NoError(t, h.Broker.Assign("buyer", first, 42, broker.Final))

	assert.Empty(t, h.Broker.PotentialRenewals)
}

func TestAssign_InterlacedPiecesAccumulateRenewal(t *testing.T) {
	h, id := purchasedRegion(t)

	first, second, err := h.Broker.Interlace("buyer", id, mask.FromChunk(0, 32))
	require.NoError(t, err)

	require.NoError(t, h.Broker.Assign("buyer", first, 42, broker.Final))
	record := h.Broker.PotentialRenewals[broker.PotentialRenewalId{Core: 0, When: 6}]
	require.NotNil(t, record)
	assert.False(t, record.Complete)

	require.NoError(t, h.Broker.Assign("buyer", second, 43, broker.Final))
	assert.True(t, record.Complete)
	assert.Equal(t, endPrice, record.Price)
	assert.Len(t, record.Schedule, 2)
}

func TestAssign_ElapsedRegionFails(t *testing.T) {
	h, id := purchasedRegion(t)

	h.Clock.Block = 58 // commits past the region's end
	require.NoError(t, h.Broker.Tick())

	err := h.Broker.Assign("buyer", id, 42, broker.Final)
	assert.True(t, broker.IsNotFound(err))
}

func TestAssign_BumpsBeginPastCommitted(t *testing.T) {
	h, id := purchasedRegion(t)

	// Committing timeslice 4 means the soonest deliverable plan is 5.
	h.Clock.Block = 38
	require.NoError(t, h.Broker.Tick())

	require.NoError(t, h.Broker.Assign("buyer", id, 42, broker.Provisional))
	assert.Contains(t, h.Broker.Workplan, broker.WorkplanKey{Timeslice: 5, Core: 0})

	assigned := h.Events.OfKind("assigned")
	require.Len(t, assigned, 1)
	assert.Equal(t, broker.Timeslice(1), assigned[0].(broker.Assigned).Duration)
}

func TestTick_MaterializesCoreSchedule(t *testing.T) {
	h, id := purchasedRegion(t)
	require.NoError(t, h.Broker.Assign("buyer", id, 42, broker.Final))

	h.Clock.Block = 28
	require.NoError(t, h.Broker.Tick())

	events := h.Events.OfKind("core_assigned")
	require.Len(t, events, 1)
	assert.Equal(t, broker.CoreAssigned{
		Core: 0,
		When: 30,
		Assignment: []broker.AssignmentWeight{
			{Assignment: broker.Task(42), Parts: 57600},
		},
	}, events[0])

	assert.Equal(t, broker.Schedule{
		{Mask: mask.Complete(), Assignment: broker.Task(42)},
	}, h.Broker.Workload[0])
	assert.NotContains(t, h.Broker.Workplan, broker.WorkplanKey{Timeslice: 3, Core: 0})
}

func TestTick_MixedScheduleWeights(t *testing.T) {
	h, id := purchasedRegion(t)

	first, second, err := h.Broker.Interlace("buyer", id, mask.FromChunk(0, 40))
	require.NoError(t, err)
	require.NoError(t, h.Broker.Assign("buyer", first, 42, broker.Final))
	require.NoError(t, h.Broker.Pool("buyer", second, "payee", broker.Final))

	h.Clock.Block = 28
	require.NoError(t, h.Broker.Tick())

	events := h.Events.OfKind("core_assigned")
	require.Len(t, events, 1)
	assert.Equal(t, []broker.AssignmentWeight{
		{Assignment: broker.Task(42), Parts: 28800},
		{Assignment: broker.PoolAssignment(), Parts: 28800},
	}, events[0].(broker.CoreAssigned).Assignment)
}
