package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// MovementWriter appends rows to the stock movement ledger. Rows are immutable
// once written; corrections are new movements, never updates.
type MovementWriter struct {
	pool *pgxpool.Pool
}

func NewMovementWriter(pool *pgxpool.Pool) *MovementWriter {
	return &MovementWriter{pool: pool}
}

// OutboundMovement builds a CON/TROUT/ADJ-/SCRAP/RTV row from a completed
// allocation. Unit cost is the allocation-weighted average across every layer
// touched; value is the exact summed layer cost, so value_out is not subject
// to re-rounding through the averaged rate.
func OutboundMovement(code TxnCode, companyID, warehouseID, itemID int, alloc Allocation, filter LayerFilter, refDoc string, movedAt time.Time) Movement {
	return Movement{
		ID:          uuid.NewString(),
		CompanyID:   companyID,
		WarehouseID: warehouseID,
		ItemID:      itemID,
		LotNo:       filter.LotNo,
		BatchNo:     filter.BatchNo,
		Code:        code,
		QtyOut:      alloc.TotalQty(),
		ValueOut:    alloc.TotalValue(),
		UnitCost:    alloc.WeightedUnitCost(),
		RefDoc:      refDoc,
		MovedAt:     movedAt,
	}
}

// InboundMovement builds a GRN/SFG/FG/RETIN/ADJ+/OPENING row at the
// caller-declared unit cost.
func InboundMovement(code TxnCode, companyID, warehouseID, itemID int, lotNo, batchNo string, qty, unitCost decimal.Decimal, refDoc string, movedAt time.Time) Movement {
	qty = roundQty(qty)
	return Movement{
		ID:          uuid.NewString(),
		CompanyID:   companyID,
		WarehouseID: warehouseID,
		ItemID:      itemID,
		LotNo:       lotNo,
		BatchNo:     batchNo,
		Code:        code,
		QtyIn:       qty,
		ValueIn:     roundMoney(qty.Mul(unitCost)),
		UnitCost:    roundRate(unitCost),
		RefDoc:      refDoc,
		MovedAt:     movedAt,
	}
}

// TransferPair builds the matched TROUT/TRIN rows for a warehouse transfer.
// Both sides share the allocation-weighted unit cost and value, so total
// system value is conserved across the pair.
func TransferPair(companyID, sourceWarehouseID, destWarehouseID, itemID int, alloc Allocation, filter LayerFilter, refDoc string, movedAt time.Time) (Movement, Movement) {
	out := OutboundMovement(TxnTROUT, companyID, sourceWarehouseID, itemID, alloc, filter, refDoc, movedAt)
	in := Movement{
		ID:          uuid.NewString(),
		CompanyID:   companyID,
		WarehouseID: destWarehouseID,
		ItemID:      itemID,
		LotNo:       filter.LotNo,
		BatchNo:     filter.BatchNo,
		Code:        TxnTRIN,
		QtyIn:       out.QtyOut,
		ValueIn:     out.ValueOut,
		UnitCost:    out.UnitCost,
		RefDoc:      refDoc,
		MovedAt:     movedAt,
	}
	return out, in
}

// InsertTx writes one movement row inside the caller's transaction.
func (w *MovementWriter) InsertTx(ctx context.Context, tx pgx.Tx, m Movement) error {
	if !m.Code.Valid() {
		return fmt.Errorf("invalid transaction code %q", m.Code)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.MovedAt.IsZero() {
		m.MovedAt = time.Now().UTC()
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO stock_movements
			(id, company_id, warehouse_id, item_id, lot_no, batch_no, txn_code,
			 qty_in, value_in, qty_out, value_out, unit_cost, ref_doc, moved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, m.ID, m.CompanyID, m.WarehouseID, m.ItemID, m.LotNo, m.BatchNo, string(m.Code),
		m.QtyIn, m.ValueIn, m.QtyOut, m.ValueOut, m.UnitCost, m.RefDoc, m.MovedAt)
	if err != nil {
		return fmt.Errorf("failed to insert %s movement: %w", m.Code, err)
	}
	return nil
}

// MovementsForDay returns all movements whose moved_at falls on the given
// date (UTC), optionally narrowed to one warehouse and/or item, in insertion
// order.
func (w *MovementWriter) MovementsForDay(ctx context.Context, companyID int, day time.Time, warehouseID, itemID *int) ([]Movement, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	rows, err := w.pool.Query(ctx, `
		SELECT id, company_id, warehouse_id, item_id, lot_no, batch_no, txn_code,
		       qty_in, value_in, qty_out, value_out, unit_cost, ref_doc, moved_at, created_at
		FROM stock_movements
		WHERE company_id = $1
		  AND moved_at >= $2 AND moved_at < $3
		  AND ($4::int IS NULL OR warehouse_id = $4)
		  AND ($5::int IS NULL OR item_id = $5)
		ORDER BY moved_at, created_at
	`, companyID, dayStart, dayEnd, warehouseID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements for %s: %w", dayStart.Format("2006-01-02"), err)
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		var code string
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.WarehouseID, &m.ItemID, &m.LotNo, &m.BatchNo, &code,
			&m.QtyIn, &m.ValueIn, &m.QtyOut, &m.ValueOut, &m.UnitCost, &m.RefDoc, &m.MovedAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		m.Code = TxnCode(code)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
