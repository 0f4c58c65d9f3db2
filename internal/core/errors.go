package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InsufficientStockError is returned when an allocation cannot cover the
// requested quantity from the candidate layer set. The allocation is never
// partially applied: callers see either full coverage or this error.
type InsufficientStockError struct {
	WarehouseID int
	ItemID      int
	Requested   decimal.Decimal
	Available   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d in warehouse %d: requested %s, available %s (short %s)",
		e.ItemID, e.WarehouseID,
		e.Requested.StringFixed(qtyScale), e.Available.StringFixed(qtyScale),
		e.Shortfall().StringFixed(qtyScale))
}

// Shortfall is the exact quantity the candidate set could not supply.
func (e *InsufficientStockError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

// DataIntegrityError signals that an applied allocation no longer matches the
// layer state it was planned against: a decrement would take remaining_qty
// negative, or the conditional update observed a concurrent mutation. It is
// raised, never silently clamped.
type DataIntegrityError struct {
	LayerID  int
	Expected decimal.Decimal
	Detail   string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("layer %d integrity violation (expected remaining %s): %s",
		e.LayerID, e.Expected.StringFixed(qtyScale), e.Detail)
}
