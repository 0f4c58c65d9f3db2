package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DayTotals is the classified rollup of one day's movements for one
// (warehouse, item) key.
type DayTotals struct {
	TransferIn   decimal.Decimal
	TransferOut  decimal.Decimal
	StockIn      decimal.Decimal
	StockOut     decimal.Decimal
	StockInValue decimal.Decimal // Σ value_in over stock-in movements, for the day's rate
}

// RollupDay classifies movements into transfer vs. general in/out buckets.
// TRIN/TROUT land in the transfer columns; every other inbound code counts as
// stock-in (and feeds the valuation rate), every other outbound as stock-out.
func RollupDay(movements []Movement) DayTotals {
	var t DayTotals
	for _, m := range movements {
		switch {
		case m.Code == TxnTRIN:
			t.TransferIn = t.TransferIn.Add(m.QtyIn)
		case m.Code == TxnTROUT:
			t.TransferOut = t.TransferOut.Add(m.QtyOut)
		case m.Code.Inbound():
			t.StockIn = t.StockIn.Add(m.QtyIn)
			t.StockInValue = t.StockInValue.Add(m.ValueIn)
		default:
			t.StockOut = t.StockOut.Add(m.QtyOut)
		}
	}
	t.TransferIn = roundQty(t.TransferIn)
	t.TransferOut = roundQty(t.TransferOut)
	t.StockIn = roundQty(t.StockIn)
	t.StockOut = roundQty(t.StockOut)
	t.StockInValue = roundMoney(t.StockInValue)
	return t
}

// BuildDailyEntry chains a day's totals onto the prior entry for the same
// key. Opening stock is the prior closing (zero when no prior entry exists);
// the valuation rate is the day's weighted stock-in rate, or the prior rate
// carried forward unchanged when nothing came in.
func BuildDailyEntry(date string, companyID, warehouseID, itemID int, prev *DailyLedgerEntry, t DayTotals) DailyLedgerEntry {
	entry := DailyLedgerEntry{
		LedgerDate:  date,
		CompanyID:   companyID,
		WarehouseID: warehouseID,
		ItemID:      itemID,
		TransferIn:  t.TransferIn,
		TransferOut: t.TransferOut,
		StockIn:     t.StockIn,
		StockOut:    t.StockOut,
	}
	if prev != nil {
		entry.OpeningStock = prev.ClosingStock
		entry.ValuationRate = prev.ValuationRate
	} else {
		entry.OpeningStock = decimal.Zero
		entry.ValuationRate = decimal.Zero
	}

	entry.ClosingStock = roundQty(entry.OpeningStock.
		Add(t.TransferIn).Add(t.StockIn).
		Sub(t.TransferOut).Sub(t.StockOut))

	if t.StockIn.IsPositive() {
		entry.ValuationRate = roundRate(t.StockInValue.Div(t.StockIn))
	}
	entry.ClosingValue = roundMoney(entry.ClosingStock.Mul(entry.ValuationRate))
	return entry
}

// GroupFailure reports one (warehouse, item) group whose recomputation
// failed; the remaining groups are unaffected.
type GroupFailure struct {
	WarehouseID int
	ItemID      int
	Err         error
}

// RecomputeResult tells the caller which groups were recomputed for a date
// and which failed.
type RecomputeResult struct {
	Date     string
	Entries  []DailyLedgerEntry
	Failures []GroupFailure
}

// DailyLedgerService rolls the movement ledger into per-day entries. It is
// read-mostly and safe to run concurrently with transaction processing;
// recomputation is idempotent and overwrites in place.
type DailyLedgerService interface {
	// ComputeDay recomputes every (warehouse, item) group with movements on
	// the given date. warehouseCode and itemCode are optional filters; pass
	// empty strings for no bound.
	ComputeDay(ctx context.Context, companyCode string, day time.Time, warehouseCode, itemCode string) (*RecomputeResult, error)

	// ComputeRange recomputes one date at a time from `from` through `to`
	// inclusive, keeping each day's recomputation independently retryable.
	ComputeRange(ctx context.Context, companyCode string, from, to time.Time, warehouseCode, itemCode string) ([]*RecomputeResult, error)

	// EntriesForDay returns the stored ledger rows for a date.
	EntriesForDay(ctx context.Context, companyCode string, day time.Time) ([]DailyLedgerEntry, error)
}

type dailyLedgerService struct {
	pool      *pgxpool.Pool
	movements *MovementWriter
	config    ConfigService
	log       *logrus.Logger
}

func NewDailyLedgerService(pool *pgxpool.Pool, movements *MovementWriter, config ConfigService, log *logrus.Logger) DailyLedgerService {
	return &dailyLedgerService{pool: pool, movements: movements, config: config, log: log}
}

type ledgerKey struct {
	warehouseID int
	itemID      int
}

func (s *dailyLedgerService) ComputeDay(ctx context.Context, companyCode string, day time.Time, warehouseCode, itemCode string) (*RecomputeResult, error) {
	companyID, err := resolveCompany(ctx, s.pool, companyCode)
	if err != nil {
		return nil, err
	}

	var warehouseID, itemID *int
	if warehouseCode != "" {
		id, err := resolveWarehouse(ctx, s.pool, companyID, warehouseCode)
		if err != nil {
			return nil, err
		}
		warehouseID = &id
	}
	if itemCode != "" {
		item, err := resolveItem(ctx, s.pool, companyID, itemCode)
		if err != nil {
			return nil, err
		}
		itemID = &item.ID
	}

	movements, err := s.movements.MovementsForDay(ctx, companyID, day, warehouseID, itemID)
	if err != nil {
		return nil, err
	}

	groups := make(map[ledgerKey][]Movement)
	var order []ledgerKey
	for _, m := range movements {
		key := ledgerKey{m.WarehouseID, m.ItemID}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], m)
	}

	date := day.UTC().Format("2006-01-02")
	threshold := s.config.VarianceThresholdPct(ctx)
	result := &RecomputeResult{Date: date}

	// One group's failure must not abort the others; the caller gets told
	// which keys failed.
	for _, key := range order {
		entry, err := s.computeGroup(ctx, companyID, date, key, groups[key], threshold)
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"date": date, "warehouse_id": key.warehouseID, "item_id": key.itemID,
			}).Error("daily ledger group recompute failed")
			result.Failures = append(result.Failures, GroupFailure{key.warehouseID, key.itemID, err})
			continue
		}
		result.Entries = append(result.Entries, entry)
	}
	return result, nil
}

func (s *dailyLedgerService) computeGroup(ctx context.Context, companyID int, date string, key ledgerKey, movements []Movement, threshold decimal.Decimal) (DailyLedgerEntry, error) {
	prev, err := s.priorEntry(ctx, companyID, key, date)
	if err != nil {
		return DailyLedgerEntry{}, err
	}

	entry := BuildDailyEntry(date, companyID, key.warehouseID, key.itemID, prev, RollupDay(movements))

	if prev != nil && prev.ValuationRate.IsPositive() && entry.ValuationRate.IsPositive() {
		move := entry.ValuationRate.Sub(prev.ValuationRate).Abs().
			Div(prev.ValuationRate).Mul(decimal.NewFromInt(100))
		if move.GreaterThan(threshold) {
			s.log.WithFields(logrus.Fields{
				"date": date, "warehouse_id": key.warehouseID, "item_id": key.itemID,
				"prior_rate": prev.ValuationRate.StringFixed(rateScale),
				"rate":       entry.ValuationRate.StringFixed(rateScale),
			}).Warn("valuation rate moved beyond variance threshold")
		}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO daily_ledger
			(ledger_date, company_id, warehouse_id, item_id, opening_stock,
			 transfer_in, transfer_out, stock_in, stock_out, closing_stock,
			 valuation_rate, inventory_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (ledger_date, company_id, warehouse_id, item_id) DO UPDATE SET
			opening_stock = EXCLUDED.opening_stock,
			transfer_in = EXCLUDED.transfer_in,
			transfer_out = EXCLUDED.transfer_out,
			stock_in = EXCLUDED.stock_in,
			stock_out = EXCLUDED.stock_out,
			closing_stock = EXCLUDED.closing_stock,
			valuation_rate = EXCLUDED.valuation_rate,
			inventory_value = EXCLUDED.inventory_value
	`, entry.LedgerDate, entry.CompanyID, entry.WarehouseID, entry.ItemID, entry.OpeningStock,
		entry.TransferIn, entry.TransferOut, entry.StockIn, entry.StockOut, entry.ClosingStock,
		entry.ValuationRate, entry.ClosingValue)
	if err != nil {
		return DailyLedgerEntry{}, fmt.Errorf("failed to upsert daily ledger entry: %w", err)
	}
	return entry, nil
}

func (s *dailyLedgerService) priorEntry(ctx context.Context, companyID int, key ledgerKey, date string) (*DailyLedgerEntry, error) {
	var e DailyLedgerEntry
	var ledgerDate time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT ledger_date, company_id, warehouse_id, item_id, opening_stock,
		       transfer_in, transfer_out, stock_in, stock_out, closing_stock,
		       valuation_rate, inventory_value
		FROM daily_ledger
		WHERE company_id = $1 AND warehouse_id = $2 AND item_id = $3 AND ledger_date < $4
		ORDER BY ledger_date DESC
		LIMIT 1
	`, companyID, key.warehouseID, key.itemID, date).Scan(
		&ledgerDate, &e.CompanyID, &e.WarehouseID, &e.ItemID, &e.OpeningStock,
		&e.TransferIn, &e.TransferOut, &e.StockIn, &e.StockOut, &e.ClosingStock,
		&e.ValuationRate, &e.ClosingValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch prior ledger entry: %w", err)
	}
	e.LedgerDate = ledgerDate.Format("2006-01-02")
	return &e, nil
}

func (s *dailyLedgerService) ComputeRange(ctx context.Context, companyCode string, from, to time.Time, warehouseCode, itemCode string) ([]*RecomputeResult, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s is after %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	var results []*RecomputeResult
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		result, err := s.ComputeDay(ctx, companyCode, day, warehouseCode, itemCode)
		if err != nil {
			return results, fmt.Errorf("recompute stopped at %s: %w", day.Format("2006-01-02"), err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *dailyLedgerService) EntriesForDay(ctx context.Context, companyCode string, day time.Time) ([]DailyLedgerEntry, error) {
	companyID, err := resolveCompany(ctx, s.pool, companyCode)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT ledger_date, company_id, warehouse_id, item_id, opening_stock,
		       transfer_in, transfer_out, stock_in, stock_out, closing_stock,
		       valuation_rate, inventory_value
		FROM daily_ledger
		WHERE company_id = $1 AND ledger_date = $2
		ORDER BY warehouse_id, item_id
	`, companyID, day.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily ledger: %w", err)
	}
	defer rows.Close()

	var entries []DailyLedgerEntry
	for rows.Next() {
		var e DailyLedgerEntry
		var ledgerDate time.Time
		if err := rows.Scan(&ledgerDate, &e.CompanyID, &e.WarehouseID, &e.ItemID, &e.OpeningStock,
			&e.TransferIn, &e.TransferOut, &e.StockIn, &e.StockOut, &e.ClosingStock,
			&e.ValuationRate, &e.ClosingValue); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.LedgerDate = ledgerDate.Format("2006-01-02")
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
