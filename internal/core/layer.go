package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Layer is one lot/batch-level stock record for a (warehouse, item, lot, batch)
// key. Layers are created by inbound movements and only ever mutated by
// decrementing RemainingQty during allocation; a fully consumed layer stays
// on file for audit.
type Layer struct {
	ID           int
	CompanyID    int
	WarehouseID  int
	ItemID       int
	LotNo        string
	BatchNo      string
	OpenQty      decimal.Decimal
	OpenValue    decimal.Decimal
	RemainingQty decimal.Decimal
	UnitCost     decimal.Decimal // = OpenValue / OpenQty at creation
	ExpiryDate   *time.Time
	SourceRef    string // movement that created this layer
	CreatedAt    time.Time
}

// HasStock reports whether the layer can still supply an allocation.
func (l Layer) HasStock() bool {
	return l.RemainingQty.IsPositive()
}

// Value returns the remaining value held in the layer.
func (l Layer) Value() decimal.Decimal {
	return roundMoney(l.RemainingQty.Mul(l.UnitCost))
}

// ExpiresBefore orders layers for FEFO picking: a nil expiry sorts after
// every dated one; equal expiries fall back to creation order.
func (l Layer) ExpiresBefore(other Layer) bool {
	switch {
	case l.ExpiryDate == nil && other.ExpiryDate == nil:
		return l.CreatedAt.Before(other.CreatedAt)
	case l.ExpiryDate == nil:
		return false
	case other.ExpiryDate == nil:
		return true
	case l.ExpiryDate.Equal(*other.ExpiryDate):
		return l.CreatedAt.Before(other.CreatedAt)
	default:
		return l.ExpiryDate.Before(*other.ExpiryDate)
	}
}
