package core_test

import (
	"context"
	"errors"
	"testing"

	"stock-engine/internal/core"

	"github.com/shopspring/decimal"
)

func TestApplyAllocation_RejectsOverdraw(t *testing.T) {
	layer := testLayer(1, 0, 5, 10, nil)
	alloc := core.Allocation{
		WarehouseID: 1,
		ItemID:      1,
		Lines:       []core.AllocationLine{{Layer: layer, Qty: decimal.NewFromInt(6)}},
	}

	// The overdraw check fires before any row is touched, so no transaction
	// is needed to exercise it.
	store := core.NewLayerStore(nil)
	err := store.ApplyAllocationTx(context.Background(), nil, alloc)

	var integrity *core.DataIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("Expected DataIntegrityError for a line exceeding the layer, got %v", err)
	}
	if integrity.LayerID != 1 {
		t.Errorf("Expected layer 1 in the error, got %d", integrity.LayerID)
	}
	if !integrity.Expected.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected remaining 5 in the error, got %s", integrity.Expected)
	}
}
