package core_test

import (
	"testing"

	"stock-engine/internal/core"

	"github.com/shopspring/decimal"
)

func testComponents() []core.BOMComponent {
	return []core.BOMComponent{
		{ItemID: 1, ItemCode: "FLOUR", QtyRequired: decimal.NewFromFloat(0.5), QtyWithLoss: decimal.NewFromFloat(0.55), UOM: "KG", IsActive: true},
		{ItemID: 2, ItemCode: "YEAST", QtyRequired: decimal.NewFromFloat(0.02), QtyWithLoss: decimal.NewFromFloat(0.022), UOM: "KG", IsActive: true},
		{ItemID: 3, ItemCode: "OLD-MIX", QtyRequired: decimal.NewFromFloat(1), QtyWithLoss: decimal.NewFromFloat(1.1), UOM: "KG", IsActive: false},
	}
}

func TestScaleRequirements_Linearity(t *testing.T) {
	components := testComponents()
	one := core.ScaleRequirements(components, decimal.NewFromInt(1))
	forty := core.ScaleRequirements(components, decimal.NewFromInt(40))

	if len(one) != len(forty) {
		t.Fatalf("Component count changed with planned qty: %d vs %d", len(one), len(forty))
	}
	n := decimal.NewFromInt(40)
	for i := range one {
		wantLoss := one[i].QtyWithLoss.Mul(n).Round(3)
		if !forty[i].QtyWithLoss.Equal(wantLoss) {
			t.Errorf("%s: qty_with_loss not linear: requirements(40) = %s, 40 × requirements(1) = %s",
				one[i].ItemCode, forty[i].QtyWithLoss, wantLoss)
		}
		wantRaw := one[i].QtyRequired.Mul(n).Round(3)
		if !forty[i].QtyRequired.Equal(wantRaw) {
			t.Errorf("%s: qty_required not linear: %s vs %s", one[i].ItemCode, forty[i].QtyRequired, wantRaw)
		}
	}
}

func TestScaleRequirements_SkipsInactiveComponents(t *testing.T) {
	reqs := core.ScaleRequirements(testComponents(), decimal.NewFromInt(10))
	if len(reqs) != 2 {
		t.Fatalf("Expected 2 active components, got %d", len(reqs))
	}
	for _, r := range reqs {
		if r.ItemCode == "OLD-MIX" {
			t.Errorf("Inactive component OLD-MIX must not be scaled")
		}
	}
}

func TestScaleRequirements_LossAtLeastRaw(t *testing.T) {
	reqs := core.ScaleRequirements(testComponents(), decimal.NewFromInt(25))
	for _, r := range reqs {
		if r.QtyWithLoss.LessThan(r.QtyRequired) {
			t.Errorf("%s: qty_with_loss %s below raw requirement %s", r.ItemCode, r.QtyWithLoss, r.QtyRequired)
		}
	}
}

func TestScaleRequirements_ZeroPlannedQty(t *testing.T) {
	reqs := core.ScaleRequirements(testComponents(), decimal.Zero)
	for _, r := range reqs {
		if !r.QtyRequired.IsZero() || !r.QtyWithLoss.IsZero() {
			t.Errorf("%s: expected zero requirements for zero planned qty, got %s / %s",
				r.ItemCode, r.QtyRequired, r.QtyWithLoss)
		}
	}
}
