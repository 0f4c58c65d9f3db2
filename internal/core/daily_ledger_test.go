package core_test

import (
	"testing"

	"stock-engine/internal/core"

	"github.com/shopspring/decimal"
)

func inbound(code core.TxnCode, qty, value float64) core.Movement {
	return core.Movement{
		Code:    code,
		QtyIn:   decimal.NewFromFloat(qty),
		ValueIn: decimal.NewFromFloat(value),
	}
}

func outbound(code core.TxnCode, qty, value float64) core.Movement {
	return core.Movement{
		Code:     code,
		QtyOut:   decimal.NewFromFloat(qty),
		ValueOut: decimal.NewFromFloat(value),
	}
}

func TestRollupDay_Classification(t *testing.T) {
	movements := []core.Movement{
		inbound(core.TxnGRN, 100, 1000),
		inbound(core.TxnSFG, 10, 120),
		inbound(core.TxnRETIN, 5, 50),
		inbound(core.TxnTRIN, 20, 200),
		outbound(core.TxnCON, 30, 300),
		outbound(core.TxnSCRAP, 2, 20),
		outbound(core.TxnAdjOut, 1, 10),
		outbound(core.TxnTROUT, 15, 150),
	}

	totals := core.RollupDay(movements)

	if !totals.StockIn.Equal(decimal.NewFromInt(115)) {
		t.Errorf("Expected stock_in 115 (GRN+SFG+RETIN), got %s", totals.StockIn)
	}
	if !totals.TransferIn.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected transfer_in 20, got %s", totals.TransferIn)
	}
	if !totals.StockOut.Equal(decimal.NewFromInt(33)) {
		t.Errorf("Expected stock_out 33 (CON+SCRAP+ADJ-), got %s", totals.StockOut)
	}
	if !totals.TransferOut.Equal(decimal.NewFromInt(15)) {
		t.Errorf("Expected transfer_out 15, got %s", totals.TransferOut)
	}
	if !totals.StockInValue.Equal(decimal.NewFromInt(1170)) {
		t.Errorf("Expected stock-in value 1170 (transfers excluded from rate), got %s", totals.StockInValue)
	}
}

func TestBuildDailyEntry_ClosingInvariant(t *testing.T) {
	prev := &core.DailyLedgerEntry{
		ClosingStock:  decimal.NewFromInt(40),
		ValuationRate: decimal.NewFromFloat(9.5),
	}
	totals := core.RollupDay([]core.Movement{
		inbound(core.TxnGRN, 60, 600),
		inbound(core.TxnTRIN, 10, 95),
		outbound(core.TxnCON, 25, 250),
		outbound(core.TxnTROUT, 5, 50),
	})

	entry := core.BuildDailyEntry("2026-03-02", 1, 1, 1, prev, totals)

	if !entry.OpeningStock.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Expected opening 40 (prior closing), got %s", entry.OpeningStock)
	}
	// closing = 40 + 10 + 60 − 5 − 25 = 80
	if !entry.ClosingStock.Equal(decimal.NewFromInt(80)) {
		t.Errorf("Expected closing 80, got %s", entry.ClosingStock)
	}
	// rate = 600 / 60 = 10, from the day's stock-in only
	if got := entry.ValuationRate.StringFixed(4); got != "10.0000" {
		t.Errorf("Expected rate 10.0000, got %s", got)
	}
	if got := entry.ClosingValue.StringFixed(2); got != "800.00" {
		t.Errorf("Expected closing value 800.00, got %s", got)
	}
}

func TestBuildDailyEntry_ChainsAcrossDays(t *testing.T) {
	day1 := core.BuildDailyEntry("2026-03-01", 1, 1, 1, nil,
		core.RollupDay([]core.Movement{inbound(core.TxnGRN, 100, 1000)}))
	day2 := core.BuildDailyEntry("2026-03-02", 1, 1, 1, &day1,
		core.RollupDay([]core.Movement{outbound(core.TxnCON, 30, 300)}))

	if !day1.ClosingStock.Equal(day2.OpeningStock) {
		t.Errorf("Ledger chain broken: day1 closing %s != day2 opening %s",
			day1.ClosingStock, day2.OpeningStock)
	}
	if !day2.ClosingStock.Equal(decimal.NewFromInt(70)) {
		t.Errorf("Expected day2 closing 70, got %s", day2.ClosingStock)
	}
}

func TestBuildDailyEntry_RateCarriesForwardWithoutStockIn(t *testing.T) {
	prev := &core.DailyLedgerEntry{
		ClosingStock:  decimal.NewFromInt(100),
		ValuationRate: decimal.NewFromFloat(12.5),
	}
	totals := core.RollupDay([]core.Movement{outbound(core.TxnCON, 40, 500)})

	entry := core.BuildDailyEntry("2026-03-03", 1, 1, 1, prev, totals)
	if got := entry.ValuationRate.StringFixed(4); got != "12.5000" {
		t.Errorf("Expected rate carried forward unchanged (12.5000), got %s", got)
	}
	if got := entry.ClosingValue.StringFixed(2); got != "750.00" {
		t.Errorf("Expected closing value 60 × 12.50 = 750.00, got %s", got)
	}
}

func TestBuildDailyEntry_NoPriorEntry(t *testing.T) {
	entry := core.BuildDailyEntry("2026-03-01", 1, 1, 1, nil, core.DayTotals{})
	if !entry.OpeningStock.IsZero() || !entry.ClosingStock.IsZero() || !entry.ValuationRate.IsZero() {
		t.Errorf("Expected all-zero entry with no prior and no movements, got %+v", entry)
	}
}
