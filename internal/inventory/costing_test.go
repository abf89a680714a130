package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyInboundCostWeightedAverage(t *testing.T) {
	avg, last := ApplyInboundCost(100, 5.0, 50, 8.0)
	require.InDelta(t, 6.0, avg, 0.0001)
	require.InDelta(t, 8.0, last, 0.0001)

	avg, last = ApplyInboundCost(10, 100000, 5, 120000)
	require.InDelta(t, 106666.6667, avg, 0.1)
	require.InDelta(t, 120000.0, last, 0.01)
}

func TestApplyInboundCostEmptyStock(t *testing.T) {
	// Nothing on hand: the incoming cost becomes the average outright.
	avg, last := ApplyInboundCost(0, 3.50, 25, 7.25)
	require.InDelta(t, 7.25, avg, 0.0001)
	require.InDelta(t, 7.25, last, 0.0001)

	// Backordered stock re-prices from the replenishment cost.
	avg, _ = ApplyInboundCost(-12, 3.50, 25, 7.25)
	require.InDelta(t, 7.25, avg, 0.0001)
}

func TestApplyInboundCostNoIncoming(t *testing.T) {
	avg, last := ApplyInboundCost(10, 4.0, 0, 9.0)
	require.InDelta(t, 4.0, avg, 0.0001)
	require.InDelta(t, 9.0, last, 0.0001)
}

func TestApplyInboundCostSequenceOrderMatters(t *testing.T) {
	// The moving average depends on arrival order, unlike a simple mean.
	avgA, _ := ApplyInboundCost(0, 0, 10, 2.0)
	avgA, _ = ApplyInboundCost(10, avgA, 30, 6.0)

	avgB, _ := ApplyInboundCost(0, 0, 30, 6.0)
	avgB, _ = ApplyInboundCost(30, avgB, 10, 2.0)

	require.InDelta(t, 5.0, avgA, 0.0001)
	require.InDelta(t, 5.0, avgB, 0.0001)

	// With a sale in between the histories diverge.
	avgC, _ := ApplyInboundCost(0, 0, 10, 2.0)
	avgC, _ = ApplyInboundCost(5, avgC, 30, 6.0)
	require.Greater(t, avgC, avgA)
}
