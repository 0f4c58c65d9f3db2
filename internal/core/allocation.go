package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AllocationLine pairs a source layer with the quantity taken from it.
type AllocationLine struct {
	Layer Layer
	Qty   decimal.Decimal
}

// Allocation is an ordered pick list covering exactly the requested quantity.
type Allocation struct {
	WarehouseID int
	ItemID      int
	Lines       []AllocationLine
}

func (a Allocation) TotalQty() decimal.Decimal {
	total := decimal.Zero
	for _, line := range a.Lines {
		total = total.Add(line.Qty)
	}
	return roundQty(total)
}

// TotalValue is the summed cost of the picked quantities, rounded per line.
func (a Allocation) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, line := range a.Lines {
		total = total.Add(roundMoney(line.Qty.Mul(line.Layer.UnitCost)))
	}
	return roundMoney(total)
}

// WeightedUnitCost is the allocation-weighted average cost across every layer
// touched: Σ(unit_cost × qty) / Σ(qty). Zero allocations cost zero.
func (a Allocation) WeightedUnitCost() decimal.Decimal {
	qty := a.TotalQty()
	if qty.IsZero() {
		return decimal.Zero
	}
	return roundRate(a.TotalValue().Div(qty))
}

// LayerFilter optionally narrows the candidate set before ordering. A filter
// that eliminates every candidate fails the allocation even when matching
// stock exists under other lots or batches.
type LayerFilter struct {
	LotNo   string
	BatchNo string
}

func (f LayerFilter) matches(l Layer) bool {
	if f.LotNo != "" && l.LotNo != f.LotNo {
		return false
	}
	if f.BatchNo != "" && l.BatchNo != f.BatchNo {
		return false
	}
	return true
}

// sortForPicking orders candidates in consumption order: FEFO (earliest
// expiry first, nil expiry last) when fefo is set, otherwise FIFO by
// creation time.
func sortForPicking(layers []Layer, fefo bool) {
	if fefo {
		sort.SliceStable(layers, func(i, j int) bool { return layers[i].ExpiresBefore(layers[j]) })
		return
	}
	sort.SliceStable(layers, func(i, j int) bool { return layers[i].CreatedAt.Before(layers[j].CreatedAt) })
}

// PlanAllocation walks the candidate layers in picking order, greedily taking
// min(still required, layer remaining) until the requirement is met. The
// input slice is not mutated and no layer state changes here; applying the
// plan is the LayerStore's job, inside the same transaction that locked the
// candidates.
//
// A zero qtyRequired yields an empty, successful allocation.
func PlanAllocation(warehouseID, itemID int, candidates []Layer, qtyRequired decimal.Decimal, fefo bool, filter LayerFilter) (Allocation, error) {
	alloc := Allocation{WarehouseID: warehouseID, ItemID: itemID}
	if qtyRequired.IsZero() {
		return alloc, nil
	}

	pool := make([]Layer, 0, len(candidates))
	for _, l := range candidates {
		if l.HasStock() && filter.matches(l) {
			pool = append(pool, l)
		}
	}
	sortForPicking(pool, fefo)

	remaining := roundQty(qtyRequired)
	for _, l := range pool {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, l.RemainingQty)
		alloc.Lines = append(alloc.Lines, AllocationLine{Layer: l, Qty: roundQty(take)})
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		return Allocation{WarehouseID: warehouseID, ItemID: itemID}, &InsufficientStockError{
			WarehouseID: warehouseID,
			ItemID:      itemID,
			Requested:   roundQty(qtyRequired),
			Available:   roundQty(qtyRequired).Sub(remaining),
		}
	}
	return alloc, nil
}
