package broker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coremarket/broker/internal/broker"
	"github.com/coremarket/broker/internal/mask"
	"github.com/coremarket/broker/internal/testutil"
)

// purchasedRegion is a started harness with one region bought by "buyer".
func purchasedRegion(t *testing.T) (*testutil.Harness, broker.RegionId) {
	t.Helper()
	h := startedHarness(t)
	h.Fund("buyer", 20_000_000)
	h.Clock.Block = 3
	id, err := h.Broker.Purchase("buyer", endPrice)
	require.NoError(t, err)
	return h, id
}

func TestTransfer(t *testing.T) {
	h, id := purchasedRegion(t)

	require.NoError(t, h.Broker.Transfer("buyer", id, "carol"))
	assert.Equal(t, broker.AccountId("carol"), h.Broker.Regions[id].Owner)

	err := h.Broker.Transfer("buyer", id, "buyer")
	assert.True(t, broker.IsUnauthorized(err))

	err = h.Broker.Transfer("carol", broker.RegionId{Begin: 99}, "buyer")
	assert.True(t, broker.IsNotFound(err))
}

func TestPartition_SplitsOnTimeAxis(t *testing.T) {
	h, id := purchasedRegion(t)

	first, second, err := h.Broker.Partition("buyer", id, 1)
	require.NoError(t, err)

	assert.Equal(t, id, first)
	assert.Equal(t, broker.Timeslice(4), second.Begin)
	assert.Equal(t, id.Mask, second.Mask)

	assert.Equal(t, broker.Timeslice(4), h.Broker.Regions[first].End)
	assert.Equal(t, broker.Timeslice(6), h.Broker.Regions[second].End)

	// Partitioned pieces lose renewal eligibility.
	assert.Nil(t, h.Broker.Regions[first].Paid)
	assert.Nil(t, h.Broker.Regions[second].Paid)
}

func TestPartition_RejectsPivotOutsideSpan(t *testing.T) {
	h, id := purchasedRegion(t)

	for _, pivot := range []broker.Timeslice{0, 3, 10} {
		_, _, err := h.Broker.Partition("buyer", id, pivot)
		assert.Equal(t, broker.ErrCodeInvalidOffset, broker.CodeOf(err), "pivot %d", pivot)
	}
	// The region itself is untouched by the failures.
	assert.Contains(t, h.Broker.Regions, id)
}

func TestInterlace_ConservesCapacity(t *testing.T) {
	h, id := purchasedRegion(t)

	pick := mask.FromChunk(0, 32)
	first, second, err := h.Broker.Interlace("buyer", id, pick)
	require.NoError(t, err)

	assert.Equal(t, pick, first.Mask)
	assert.True(t, first.Mask.Intersection(second.Mask).IsVoid())
	assert.Equal(t, id.Mask, first.Mask.Union(second.Mask))
	assert.NotContains(t, h.Broker.Regions, id)

	// Interlaced pieces stay renewal-eligible.
	require.NotNil(t, h.Broker.Regions[first].Paid)
	assert.Equal(t, endPrice, *h.Broker.Regions[first].Paid)
	require.NotNil(t, h.Broker.Regions[second].Paid)
}

func TestInterlace_RejectsBadMasks(t *testing.T) {
	h, id := purchasedRegion(t)

	for name, pick := range map[string]mask.CoreMask{
		"void":  mask.Void(),
		"equal": id.Mask,
	} {
		_, _, err := h.Broker.Interlace("buyer", id, pick)
		assert.Equal(t, broker.ErrCodeInvalidMask, broker.CodeOf(err), name)
	}

	// A subset of a piece that is not a subset of the region.
	piece, _, err := h.Broker.Interlace("buyer", id, mask.FromChunk(0, 32))
	require.NoError(t, err)
	_, _, err = h.Broker.Interlace("buyer", piece, mask.FromChunk(16, 48))
	assert.Equal(t, broker.ErrCodeInvalidMask, broker.CodeOf(err))
}

func TestDropRegion(t *testing.T) {
	h, id := purchasedRegion(t)

	err := h.Broker.DropRegion(id)
	assert.Equal(t, broker.ErrCodeStillValid, broker.CodeOf(err))

	// Committing past the region's end (timeslice 6) makes it droppable.
	h.Clock.Block = 58
	require.NoError(t, h.Broker.Tick())
	require.NoError(t, h.Broker.DropRegion(id))
	assert.NotContains(t, h.Broker.Regions, id)

	dropped := h.Events.OfKind("region_dropped")
	require.Len(t, dropped, 1)
	assert.Equal(t, broker.RegionDropped{RegionId: id, Duration: 3}, dropped[0])
}
