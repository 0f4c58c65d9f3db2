package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// queryRower is satisfied by both pgxpool.Pool and pgx.Tx.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func resolveCompany(ctx context.Context, q queryRower, companyCode string) (int, error) {
	var id int
	err := q.QueryRow(ctx, "SELECT id FROM companies WHERE company_code = $1", companyCode).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("company code %s not found", companyCode)
		}
		return 0, fmt.Errorf("failed to resolve company: %w", err)
	}
	return id, nil
}

func resolveWarehouse(ctx context.Context, q queryRower, companyID int, code string) (int, error) {
	var id int
	err := q.QueryRow(ctx,
		"SELECT id FROM warehouses WHERE company_id = $1 AND code = $2 AND is_active = true",
		companyID, code,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("warehouse %s not found for company %d", code, companyID)
		}
		return 0, fmt.Errorf("failed to resolve warehouse: %w", err)
	}
	return id, nil
}

func resolveItem(ctx context.Context, q queryRower, companyID int, code string) (Item, error) {
	var it Item
	err := q.QueryRow(ctx, `
		SELECT id, company_id, code, name, uom, perishable, material_class, is_active
		FROM items
		WHERE company_id = $1 AND code = $2 AND is_active = true
	`, companyID, code).Scan(&it.ID, &it.CompanyID, &it.Code, &it.Name, &it.UOM, &it.Perishable, &it.MaterialClass, &it.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, fmt.Errorf("item %s not found for company %d", code, companyID)
		}
		return Item{}, fmt.Errorf("failed to resolve item: %w", err)
	}
	return it, nil
}
