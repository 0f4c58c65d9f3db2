package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LayerStore is the durable home of stock layers. All mutations run inside a
// caller-provided transaction so that planning and applying an allocation are
// one atomic unit relative to concurrent writers on the same (warehouse, item).
type LayerStore struct {
	pool *pgxpool.Pool
}

func NewLayerStore(pool *pgxpool.Pool) *LayerStore {
	return &LayerStore{pool: pool}
}

const layerColumns = `id, company_id, warehouse_id, item_id, lot_no, batch_no,
	open_qty, open_value, remaining_qty, unit_cost, expiry_date, source_ref, created_at`

func scanLayer(row pgx.Row) (Layer, error) {
	var l Layer
	err := row.Scan(&l.ID, &l.CompanyID, &l.WarehouseID, &l.ItemID, &l.LotNo, &l.BatchNo,
		&l.OpenQty, &l.OpenValue, &l.RemainingQty, &l.UnitCost, &l.ExpiryDate, &l.SourceRef, &l.CreatedAt)
	return l, err
}

// CandidateLayersTx loads and row-locks every open layer for (warehouse, item),
// narrowed by the optional lot/batch filter. The lock is held until the
// caller's transaction ends, so a plan computed over this snapshot cannot race
// another consumer of the same layers.
func (s *LayerStore) CandidateLayersTx(ctx context.Context, tx pgx.Tx, companyID, warehouseID, itemID int, filter LayerFilter) ([]Layer, error) {
	query := `
		SELECT ` + layerColumns + `
		FROM stock_layers
		WHERE company_id = $1 AND warehouse_id = $2 AND item_id = $3
		  AND remaining_qty > 0
		  AND ($4 = '' OR lot_no = $4)
		  AND ($5 = '' OR batch_no = $5)
		ORDER BY created_at, id
		FOR UPDATE`

	rows, err := tx.Query(ctx, query, companyID, warehouseID, itemID, filter.LotNo, filter.BatchNo)
	if err != nil {
		return nil, fmt.Errorf("failed to lock candidate layers: %w", err)
	}
	defer rows.Close()

	var layers []Layer
	for rows.Next() {
		l, err := scanLayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan layer: %w", err)
		}
		layers = append(layers, l)
	}
	return layers, rows.Err()
}

// CreateLayerTx inserts a new layer seeded from an inbound movement:
// open_qty = remaining_qty = qty, unit_cost as declared. created_at is the
// movement's business timestamp so FIFO order survives backdated receipts.
func (s *LayerStore) CreateLayerTx(ctx context.Context, tx pgx.Tx, l Layer) (int, error) {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	var id int
	err := tx.QueryRow(ctx, `
		INSERT INTO stock_layers
			(company_id, warehouse_id, item_id, lot_no, batch_no,
			 open_qty, open_value, remaining_qty, unit_cost, expiry_date, source_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, l.CompanyID, l.WarehouseID, l.ItemID, l.LotNo, l.BatchNo,
		l.OpenQty, l.OpenValue, l.RemainingQty, l.UnitCost, l.ExpiryDate, l.SourceRef, l.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create stock layer: %w", err)
	}
	return id, nil
}

// ApplyAllocationTx decrements remaining_qty per allocation line. Each update
// carries the remaining_qty the plan was computed against as a precondition;
// zero rows affected means a concurrent mutation slipped past the row lock
// and the whole operation must roll back as a DataIntegrityError.
func (s *LayerStore) ApplyAllocationTx(ctx context.Context, tx pgx.Tx, alloc Allocation) error {
	for _, line := range alloc.Lines {
		if line.Qty.GreaterThan(line.Layer.RemainingQty) {
			return &DataIntegrityError{
				LayerID:  line.Layer.ID,
				Expected: line.Layer.RemainingQty,
				Detail:   fmt.Sprintf("allocation of %s exceeds remaining quantity", line.Qty.StringFixed(qtyScale)),
			}
		}

		tag, err := tx.Exec(ctx, `
			UPDATE stock_layers
			SET remaining_qty = remaining_qty - $1
			WHERE id = $2 AND remaining_qty = $3
		`, line.Qty, line.Layer.ID, line.Layer.RemainingQty)
		if err != nil {
			return fmt.Errorf("failed to decrement layer %d: %w", line.Layer.ID, err)
		}
		if tag.RowsAffected() != 1 {
			return &DataIntegrityError{
				LayerID:  line.Layer.ID,
				Expected: line.Layer.RemainingQty,
				Detail:   "remaining quantity changed after planning",
			}
		}
	}
	return nil
}

// AvailableQty sums remaining_qty across all layers for (warehouse, item),
// ignoring lot/batch/expiry granularity. Used by the BOM availability check.
func (s *LayerStore) AvailableQty(ctx context.Context, companyID, warehouseID, itemID int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(remaining_qty), 0)
		FROM stock_layers
		WHERE company_id = $1 AND warehouse_id = $2 AND item_id = $3
	`, companyID, warehouseID, itemID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum available stock: %w", err)
	}
	return total, nil
}

// StockLevels returns remaining quantity and value per (warehouse, item) for
// a company, for audit and reporting surfaces.
func (s *LayerStore) StockLevels(ctx context.Context, companyCode string) ([]StockLevel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT i.code, i.name, w.code, i.uom,
		       COALESCE(SUM(sl.remaining_qty), 0),
		       COALESCE(SUM(ROUND(sl.remaining_qty * sl.unit_cost, 2)), 0)
		FROM stock_layers sl
		JOIN items i      ON i.id = sl.item_id
		JOIN warehouses w ON w.id = sl.warehouse_id
		JOIN companies c  ON c.id = sl.company_id
		WHERE c.company_code = $1
		GROUP BY i.code, i.name, w.code, i.uom
		ORDER BY w.code, i.code
	`, companyCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(&sl.ItemCode, &sl.ItemName, &sl.WarehouseCode, &sl.UOM, &sl.OnHand, &sl.Value); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels = append(levels, sl)
	}
	return levels, rows.Err()
}

// ExpiringLayers returns open layers whose expiry falls within the next
// `days` days, earliest expiry first.
func (s *LayerStore) ExpiringLayers(ctx context.Context, companyCode string, days int) ([]Layer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+layerColumns+`
		FROM stock_layers
		WHERE company_id = (SELECT id FROM companies WHERE company_code = $1)
		  AND remaining_qty > 0
		  AND expiry_date IS NOT NULL
		  AND expiry_date <= CURRENT_DATE + $2::int
		ORDER BY expiry_date, created_at
	`, companyCode, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query expiring layers: %w", err)
	}
	defer rows.Close()

	var layers []Layer
	for rows.Next() {
		l, err := scanLayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan layer: %w", err)
		}
		layers = append(layers, l)
	}
	return layers, rows.Err()
}
