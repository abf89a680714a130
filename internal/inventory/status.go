package inventory

// DeriveStatus recomputes the stock status from quantity and thresholds.
// Deterministic: the same inputs always yield the same status regardless of
// prior history. DISCONTINUED is sticky and never derived here; callers keep
// it once set via Discontinue.
func DeriveStatus(quantity, lowStockThreshold int64, allowBackorder bool) StockStatus {
	if quantity <= 0 {
		if allowBackorder {
			return StatusInStock
		}
		return StatusOutOfStock
	}
	if quantity <= lowStockThreshold {
		return StatusLowStock
	}
	return StatusInStock
}

func nextStatus(rec Record, newQuantity int64) StockStatus {
	if rec.Status == StatusDiscontinued {
		return StatusDiscontinued
	}
	return DeriveStatus(newQuantity, rec.LowStockThreshold, rec.AllowBackorder)
}
