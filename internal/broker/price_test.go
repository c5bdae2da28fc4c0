package broker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coremarket/broker/internal/broker"
	"github.com/coremarket/broker/internal/testutil"
)

func TestLinearCurve(t *testing.T) {
	curve := broker.LinearCurve{InitialFactor: 100}
	start := curve.StartPrice(10_000_000)
	assert.Equal(t, broker.Balance(1_000_000_000), start)

	tests := []struct {
		name    string
		elapsed uint64
		want    broker.Balance
	}{
		{"leadin start", 0, 1_000_000_000},
		{"halfway", 5, 505_000_000},
		{"leadin end", 10, 10_000_000},
		{"past leadin", 25, 10_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := curve.PriceAt(tt.elapsed, 10, start, 10_000_000)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLinearCurve_ZeroLeadin(t *testing.T) {
	curve := broker.LinearCurve{InitialFactor: 100}
	assert.Equal(t, broker.Balance(500), curve.PriceAt(0, 0, 50_000, 500))
}

func TestLinearCurve_Monotonic(t *testing.T) {
	curve := broker.LinearCurve{InitialFactor: 100}
	start := curve.StartPrice(7)
	prev := start
	for elapsed := uint64(0); elapsed <= 13; elapsed++ {
		price := curve.PriceAt(elapsed, 13, start, 7)
		assert.LessOrEqual(t, price, prev, "elapsed %d", elapsed)
		prev = price
	}
	assert.Equal(t, broker.Balance(7), prev)
}

func TestExponentialCurve_Bounds(t *testing.T) {
	curve := broker.ExponentialCurve{InitialFactor: 100}
	start := curve.StartPrice(10_000)
	require.Equal(t, broker.Balance(1_000_000), start)

	assert.Equal(t, start, curve.PriceAt(0, 10, start, 10_000))
	assert.Equal(t, broker.Balance(10_000), curve.PriceAt(10, 10, start, 10_000))

	prev := start
	for elapsed := uint64(1); elapsed < 10; elapsed++ {
		price := curve.PriceAt(elapsed, 10, start, 10_000)
		assert.LessOrEqual(t, price, prev, "elapsed %d", elapsed)
		assert.GreaterOrEqual(t, price, broker.Balance(10_000), "elapsed %d", elapsed)
		prev = price
	}
}

func TestWithPriceCurve(t *testing.T) {
	h := testutil.NewHarness(testConfig(),
		broker.WithPriceCurve(broker.LinearCurve{InitialFactor: 10}))

	require.NoError(t, h.Broker.StartSales(testutil.Admin, endPrice, 1))

	// Purchases open at block 1; the lead-in starts at 10x instead of 100x.
	h.Clock.Block = 1
	price, err := h.Broker.CurrentPrice()
	require.NoError(t, err)
	assert.Equal(t, broker.Balance(10*endPrice), price)
}
