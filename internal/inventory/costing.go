package inventory

// ApplyInboundCost computes the new moving-average and last unit cost after
// incoming stock arrives. Pure function; the caller persists the result.
//
// Formula: (onHand*avg + incoming*cost) / (onHand + incoming), with the
// division-by-zero guard collapsing to the incoming cost when nothing is on
// hand. Negative on-hand quantities (backorder) are treated as zero so a
// backordered product re-prices cleanly from the replenishment cost.
func ApplyInboundCost(onHand int64, averageCost float64, incomingQty int64, incomingCost float64) (newAverage, newLast float64) {
	if incomingQty <= 0 {
		return averageCost, incomingCost
	}
	if onHand <= 0 {
		return incomingCost, incomingCost
	}
	total := float64(onHand)*averageCost + float64(incomingQty)*incomingCost
	newAverage = total / float64(onHand+incomingQty)
	return newAverage, incomingCost
}
