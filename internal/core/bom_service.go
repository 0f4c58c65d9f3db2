package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ComponentRequirement is one scaled BOM line for a planned output quantity.
type ComponentRequirement struct {
	ItemID      int
	ItemCode    string
	QtyRequired decimal.Decimal // raw requirement, no loss
	QtyWithLoss decimal.Decimal // loss-inflated requirement, frozen at authoring time
	UOM         string
}

// Shortage reports a component whose summed warehouse availability falls
// short of its loss-inflated requirement.
type Shortage struct {
	ItemID    int
	ItemCode  string
	Required  decimal.Decimal
	Available decimal.Decimal
	Shortfall decimal.Decimal
}

type AvailabilityResult struct {
	IsAvailable bool
	Shortages   []Shortage
}

// ScaleRequirements linearly scales each component's stored per-unit values
// by plannedQty. No component's requirement depends on another's outcome.
func ScaleRequirements(components []BOMComponent, plannedQty decimal.Decimal) []ComponentRequirement {
	reqs := make([]ComponentRequirement, 0, len(components))
	for _, c := range components {
		if !c.IsActive {
			continue
		}
		reqs = append(reqs, ComponentRequirement{
			ItemID:      c.ItemID,
			ItemCode:    c.ItemCode,
			QtyRequired: roundQty(c.QtyRequired.Mul(plannedQty)),
			QtyWithLoss: roundQty(c.QtyWithLoss.Mul(plannedQty)),
			UOM:         c.UOM,
		})
	}
	return reqs
}

// BOMService expands bills of materials into scaled component requirements
// and checks them against the layer store. It never mutates state.
type BOMService interface {
	Requirements(ctx context.Context, companyCode, bomCode string, plannedQty decimal.Decimal) ([]ComponentRequirement, error)
	CheckAvailability(ctx context.Context, companyCode, warehouseCode string, reqs []ComponentRequirement) (*AvailabilityResult, error)
}

type bomService struct {
	pool   *pgxpool.Pool
	layers *LayerStore
}

func NewBOMService(pool *pgxpool.Pool, layers *LayerStore) BOMService {
	return &bomService{pool: pool, layers: layers}
}

func (s *bomService) Requirements(ctx context.Context, companyCode, bomCode string, plannedQty decimal.Decimal) ([]ComponentRequirement, error) {
	if plannedQty.IsNegative() {
		return nil, fmt.Errorf("planned quantity cannot be negative, got %s", plannedQty)
	}

	companyID, err := resolveCompany(ctx, s.pool, companyCode)
	if err != nil {
		return nil, err
	}

	var bomID int
	err = s.pool.QueryRow(ctx,
		"SELECT id FROM boms WHERE company_id = $1 AND code = $2 AND is_active = true",
		companyID, bomCode,
	).Scan(&bomID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("BOM %s not found for company %s", bomCode, companyCode)
		}
		return nil, fmt.Errorf("failed to resolve BOM: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT bc.id, bc.bom_id, bc.component_item_id, i.code,
		       bc.qty_required, bc.qty_with_loss, bc.uom, bc.is_active
		FROM bom_components bc
		JOIN items i ON i.id = bc.component_item_id
		WHERE bc.bom_id = $1 AND bc.is_active = true
		ORDER BY i.code
	`, bomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query BOM components: %w", err)
	}
	defer rows.Close()

	var components []BOMComponent
	for rows.Next() {
		var c BOMComponent
		if err := rows.Scan(&c.ID, &c.BOMID, &c.ItemID, &c.ItemCode,
			&c.QtyRequired, &c.QtyWithLoss, &c.UOM, &c.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan BOM component: %w", err)
		}
		components = append(components, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ScaleRequirements(components, plannedQty), nil
}

// CheckAvailability sums remaining_qty across all layers per component in the
// target warehouse, ignoring lot/batch/expiry granularity, and reports a
// shortage wherever availability is below the loss-inflated requirement.
func (s *bomService) CheckAvailability(ctx context.Context, companyCode, warehouseCode string, reqs []ComponentRequirement) (*AvailabilityResult, error) {
	companyID, err := resolveCompany(ctx, s.pool, companyCode)
	if err != nil {
		return nil, err
	}
	warehouseID, err := resolveWarehouse(ctx, s.pool, companyID, warehouseCode)
	if err != nil {
		return nil, err
	}

	result := &AvailabilityResult{IsAvailable: true}
	for _, req := range reqs {
		available, err := s.layers.AvailableQty(ctx, companyID, warehouseID, req.ItemID)
		if err != nil {
			return nil, fmt.Errorf("availability check failed for %s: %w", req.ItemCode, err)
		}
		if available.LessThan(req.QtyWithLoss) {
			result.IsAvailable = false
			result.Shortages = append(result.Shortages, Shortage{
				ItemID:    req.ItemID,
				ItemCode:  req.ItemCode,
				Required:  req.QtyWithLoss,
				Available: roundQty(available),
				Shortfall: roundQty(req.QtyWithLoss.Sub(available)),
			})
		}
	}
	return result, nil
}
