package core_test

import (
	"errors"
	"testing"
	"time"

	"stock-engine/internal/core"

	"github.com/shopspring/decimal"
)

var baseTime = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func testLayer(id, dayOffset int, remaining, unitCost float64, expiry *time.Time) core.Layer {
	qty := decimal.NewFromFloat(remaining)
	cost := decimal.NewFromFloat(unitCost)
	return core.Layer{
		ID:           id,
		CompanyID:    1,
		WarehouseID:  1,
		ItemID:       1,
		OpenQty:      qty,
		OpenValue:    qty.Mul(cost).Round(2),
		RemainingQty: qty,
		UnitCost:     cost,
		ExpiryDate:   expiry,
		CreatedAt:    baseTime.AddDate(0, 0, dayOffset),
	}
}

func dateP(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestPlanAllocation_FIFOTouchesOldestOnly(t *testing.T) {
	layers := []core.Layer{
		testLayer(2, 1, 30, 12, nil), // newer, listed first to prove sorting
		testLayer(1, 0, 50, 10, nil),
	}

	alloc, err := core.PlanAllocation(1, 1, layers, decimal.NewFromInt(40), false, core.LayerFilter{})
	if err != nil {
		t.Fatalf("PlanAllocation failed: %v", err)
	}
	if len(alloc.Lines) != 1 {
		t.Fatalf("Expected a single line from the oldest layer, got %d lines", len(alloc.Lines))
	}
	if alloc.Lines[0].Layer.ID != 1 {
		t.Errorf("Expected layer 1 (created first), got layer %d", alloc.Lines[0].Layer.ID)
	}
	if !alloc.Lines[0].Qty.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Expected qty 40, got %s", alloc.Lines[0].Qty)
	}
}

func TestPlanAllocation_FEFOOrdersByExpiryNullLast(t *testing.T) {
	layers := []core.Layer{
		testLayer(3, 0, 10, 5, nil), // no expiry, oldest by creation
		testLayer(1, 2, 10, 5, dateP(2026, 4, 1)),
		testLayer(2, 1, 10, 5, dateP(2026, 5, 1)),
	}

	alloc, err := core.PlanAllocation(1, 1, layers, decimal.NewFromInt(25), true, core.LayerFilter{})
	if err != nil {
		t.Fatalf("PlanAllocation failed: %v", err)
	}
	if len(alloc.Lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(alloc.Lines))
	}
	wantOrder := []int{1, 2, 3} // earliest expiry, later expiry, then null expiry
	for i, want := range wantOrder {
		if alloc.Lines[i].Layer.ID != want {
			t.Errorf("Line %d: expected layer %d, got %d", i, want, alloc.Lines[i].Layer.ID)
		}
	}
	if !alloc.Lines[2].Qty.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected 5 from the null-expiry layer, got %s", alloc.Lines[2].Qty)
	}
}

func TestPlanAllocation_ConservationAndWeightedCost(t *testing.T) {
	// Layer A: day 1, 50 @ 10.00. Layer B: day 2, 30 @ 12.00. Consume 60.
	layers := []core.Layer{
		testLayer(1, 0, 50, 10.00, nil),
		testLayer(2, 1, 30, 12.00, nil),
	}

	alloc, err := core.PlanAllocation(1, 1, layers, decimal.NewFromInt(60), false, core.LayerFilter{})
	if err != nil {
		t.Fatalf("PlanAllocation failed: %v", err)
	}
	if len(alloc.Lines) != 2 {
		t.Fatalf("Expected allocation [(A,50),(B,10)], got %d lines", len(alloc.Lines))
	}
	if alloc.Lines[0].Layer.ID != 1 || !alloc.Lines[0].Qty.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Line 0: expected (layer 1, 50), got (layer %d, %s)", alloc.Lines[0].Layer.ID, alloc.Lines[0].Qty)
	}
	if alloc.Lines[1].Layer.ID != 2 || !alloc.Lines[1].Qty.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Line 1: expected (layer 2, 10), got (layer %d, %s)", alloc.Lines[1].Layer.ID, alloc.Lines[1].Qty)
	}

	if !alloc.TotalQty().Equal(decimal.NewFromInt(60)) {
		t.Errorf("Conservation violated: expected total 60, got %s", alloc.TotalQty())
	}
	// (50×10.00 + 10×12.00) / 60 = 10.3333..., value = 620.00
	if got := alloc.TotalValue().StringFixed(2); got != "620.00" {
		t.Errorf("Expected total value 620.00, got %s", got)
	}
	if got := alloc.WeightedUnitCost().StringFixed(4); got != "10.3333" {
		t.Errorf("Expected weighted unit cost 10.3333, got %s", got)
	}
}

func TestPlanAllocation_InsufficientStock(t *testing.T) {
	layers := []core.Layer{
		testLayer(1, 0, 50, 10, nil),
		testLayer(2, 1, 30, 12, nil),
	}

	_, err := core.PlanAllocation(1, 1, layers, decimal.NewFromInt(81), false, core.LayerFilter{})
	var insufficient *core.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}
	if !insufficient.Shortfall().Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected shortfall 1, got %s", insufficient.Shortfall())
	}
	if !insufficient.Available.Equal(decimal.NewFromInt(80)) {
		t.Errorf("Expected available 80, got %s", insufficient.Available)
	}

	// The planner must not touch layer state on failure.
	if !layers[0].RemainingQty.Equal(decimal.NewFromInt(50)) || !layers[1].RemainingQty.Equal(decimal.NewFromInt(30)) {
		t.Errorf("Candidate layers mutated on failed allocation: %s, %s",
			layers[0].RemainingQty, layers[1].RemainingQty)
	}
}

func TestPlanAllocation_ZeroQtyIsNoOp(t *testing.T) {
	layers := []core.Layer{testLayer(1, 0, 50, 10, nil)}

	alloc, err := core.PlanAllocation(1, 1, layers, decimal.Zero, false, core.LayerFilter{})
	if err != nil {
		t.Fatalf("Expected empty success for qty 0, got %v", err)
	}
	if len(alloc.Lines) != 0 {
		t.Errorf("Expected no lines, got %d", len(alloc.Lines))
	}
}

func TestPlanAllocation_FilterHasNoSilentFallback(t *testing.T) {
	layers := []core.Layer{testLayer(1, 0, 50, 10, nil)} // lot ""

	_, err := core.PlanAllocation(1, 1, layers, decimal.NewFromInt(10), false,
		core.LayerFilter{LotNo: "LOT-MISSING"})
	var insufficient *core.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientStockError when filter excludes all stock, got %v", err)
	}
	if !insufficient.Shortfall().Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected full shortfall 10, got %s", insufficient.Shortfall())
	}
}

func TestPlanAllocation_SkipsConsumedLayers(t *testing.T) {
	empty := testLayer(1, 0, 0, 10, nil)
	empty.RemainingQty = decimal.Zero
	layers := []core.Layer{empty, testLayer(2, 1, 20, 10, nil)}

	alloc, err := core.PlanAllocation(1, 1, layers, decimal.NewFromInt(5), false, core.LayerFilter{})
	if err != nil {
		t.Fatalf("PlanAllocation failed: %v", err)
	}
	if len(alloc.Lines) != 1 || alloc.Lines[0].Layer.ID != 2 {
		t.Errorf("Expected only layer 2 to be touched")
	}
}

func TestOutboundMovement_WeightedCost(t *testing.T) {
	layers := []core.Layer{
		testLayer(1, 0, 50, 10.00, nil),
		testLayer(2, 1, 30, 12.00, nil),
	}
	alloc, err := core.PlanAllocation(1, 1, layers, decimal.NewFromInt(60), false, core.LayerFilter{})
	if err != nil {
		t.Fatalf("PlanAllocation failed: %v", err)
	}

	m := core.OutboundMovement(core.TxnCON, 1, 1, 1, alloc, core.LayerFilter{}, "MI-001", baseTime)
	if m.Code != core.TxnCON {
		t.Errorf("Expected CON, got %s", m.Code)
	}
	if !m.QtyOut.Equal(decimal.NewFromInt(60)) || !m.QtyIn.IsZero() {
		t.Errorf("Expected qty_out=60, qty_in=0; got %s, %s", m.QtyOut, m.QtyIn)
	}
	if got := m.ValueOut.StringFixed(2); got != "620.00" {
		t.Errorf("Expected value_out 620.00, got %s", got)
	}
	if got := m.UnitCost.StringFixed(2); got != "10.33" {
		t.Errorf("Expected unit cost ≈10.33, got %s", got)
	}
}

func TestTransferPair_ConservesValue(t *testing.T) {
	layers := []core.Layer{testLayer(1, 0, 40, 7.50, nil)}
	alloc, err := core.PlanAllocation(1, 1, layers, decimal.NewFromInt(25), false, core.LayerFilter{})
	if err != nil {
		t.Fatalf("PlanAllocation failed: %v", err)
	}

	out, in := core.TransferPair(1, 1, 2, 1, alloc, core.LayerFilter{}, "TR-001", baseTime)
	if out.Code != core.TxnTROUT || in.Code != core.TxnTRIN {
		t.Fatalf("Expected TROUT/TRIN pair, got %s/%s", out.Code, in.Code)
	}
	if !out.ValueOut.Equal(in.ValueIn) {
		t.Errorf("Transfer value not conserved: TROUT value_out %s != TRIN value_in %s", out.ValueOut, in.ValueIn)
	}
	if !out.QtyOut.Equal(in.QtyIn) {
		t.Errorf("Transfer qty not conserved: %s != %s", out.QtyOut, in.QtyIn)
	}
	if !out.UnitCost.Equal(in.UnitCost) {
		t.Errorf("Transfer unit cost differs across the pair: %s != %s", out.UnitCost, in.UnitCost)
	}
	if out.WarehouseID != 1 || in.WarehouseID != 2 {
		t.Errorf("Expected warehouses 1→2, got %d→%d", out.WarehouseID, in.WarehouseID)
	}
}
