package broker_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/coremarket/broker/internal/broker"
	"github.com/coremarket/broker/internal/mask"
	"github.com/coremarket/broker/internal/testutil"
)

// TestMarketplaceTrace runs a full cycle through the deterministic
// harness and compares the notification trace byte-for-byte: one
// reserved core pooling its capacity, one core sold, split between a
// task and the pool, revenue settled and claimed.
func TestMarketplaceTrace(t *testing.T) {
	h := testutil.NewHarness(testConfig())

	_, err := h.Broker.Reserve(testutil.Admin, broker.Schedule{
		{Mask: mask.Complete(), Assignment: broker.PoolAssignment()},
	})
	require.NoError(t, err)
	require.NoError(t, h.Broker.StartSales(testutil.Admin, 10_000_000, 1))

	h.Fund("buyer", 20_000_000)
	h.Clock.Block = 3
	id, err := h.Broker.Purchase("buyer", 10_000_000)
	require.NoError(t, err)

	taskPiece, poolPiece, err := h.Broker.Interlace("buyer", id, mask.FromChunk(0, 40))
	require.NoError(t, err)
	require.NoError(t, h.Broker.Assign("buyer", taskPiece, 42, broker.Final))
	require.NoError(t, h.Broker.Pool("buyer", poolPiece, "payee", broker.Final))

	h.Clock.Block = 28
	require.NoError(t, h.Broker.Tick())

	h.Clock.Block = 29
	require.NoError(t, h.Broker.NotifyRevenue(testutil.Admin, 40, 10_000_000))
	require.NoError(t, h.Broker.Tick())

	_, err = h.Broker.ClaimRevenue("payee", poolPiece, 1)
	require.NoError(t, err)

	var buf bytes.Buffer
	for _, n := range h.Events.All() {
		payload, err := json.Marshal(n)
		require.NoError(t, err)
		fmt.Fprintf(&buf, "%s %s\n", n.Kind(), payload)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "marketplace_trace", buf.Bytes())
}
