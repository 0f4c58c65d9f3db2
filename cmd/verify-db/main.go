// verify-db runs read-only consistency checks over the engine tables and
// exits non-zero if any check fails. Safe to run against a live database.
package main

import (
	"context"
	"log"
	"os"

	"stock-engine/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

type check struct {
	name  string
	query string // must return a count of violating rows
}

var checks = []check{
	{
		name: "layer quantities stay within their opening balance",
		query: `SELECT count(*) FROM stock_layers
			WHERE remaining_qty < 0 OR remaining_qty > open_qty`,
	},
	{
		name: "every movement is strictly one-sided",
		query: `SELECT count(*) FROM stock_movements
			WHERE NOT ((qty_in > 0 AND qty_out = 0) OR (qty_out > 0 AND qty_in = 0))`,
	},
	{
		name: "every inbound movement produced exactly one layer",
		query: `SELECT count(*) FROM stock_movements m
			WHERE m.qty_in > 0
			  AND NOT EXISTS (SELECT 1 FROM stock_layers l WHERE l.source_ref = m.id::text)`,
	},
	{
		// Per (company, warehouse, item): what entered the layers minus what
		// is still there must equal what the outbound ledger says left.
		name: "layer consumption reconciles with outbound movements",
		query: `SELECT count(*) FROM (
			SELECT l.company_id, l.warehouse_id, l.item_id,
			       SUM(l.open_qty - l.remaining_qty) AS consumed
			FROM stock_layers l
			GROUP BY l.company_id, l.warehouse_id, l.item_id
		) layers
		FULL OUTER JOIN (
			SELECT m.company_id, m.warehouse_id, m.item_id,
			       SUM(m.qty_out) AS moved_out
			FROM stock_movements m
			WHERE m.qty_out > 0
			GROUP BY m.company_id, m.warehouse_id, m.item_id
		) moves USING (company_id, warehouse_id, item_id)
		WHERE COALESCE(layers.consumed, 0) <> COALESCE(moves.moved_out, 0)`,
	},
	{
		name: "daily ledger rows satisfy the closing identity",
		query: `SELECT count(*) FROM daily_ledger
			WHERE closing_stock <> opening_stock + transfer_in + stock_in - transfer_out - stock_out`,
	},
	{
		name: "daily ledger values equal closing stock at the valuation rate",
		query: `SELECT count(*) FROM daily_ledger
			WHERE inventory_value <> ROUND(closing_stock * valuation_rate, 2)`,
	},
	{
		name: "loss-inflated BOM quantities are never below the raw requirement",
		query: `SELECT count(*) FROM bom_components
			WHERE qty_with_loss < qty_required`,
	},
	{
		name: "transfer movements come in matched pairs per reference",
		query: `SELECT count(*) FROM (
			SELECT company_id, item_id, ref_doc,
			       SUM(qty_out) FILTER (WHERE txn_code = 'TROUT') AS out_qty,
			       SUM(qty_in)  FILTER (WHERE txn_code = 'TRIN')  AS in_qty
			FROM stock_movements
			WHERE txn_code IN ('TRIN', 'TROUT')
			GROUP BY company_id, item_id, ref_doc
		) pairs
		WHERE COALESCE(out_qty, 0) <> COALESCE(in_qty, 0)`,
	},
}

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("[CONNECT] %v", err)
	}
	defer pool.Close()

	printRowCounts(ctx, pool)

	failed := 0
	for _, c := range checks {
		if !runCheck(ctx, pool, c) {
			failed++
		}
	}

	if failed > 0 {
		log.Printf("[FAIL] %d of %d checks failed", failed, len(checks))
		os.Exit(1)
	}
	log.Printf("[OK] all %d checks passed", len(checks))
}

func printRowCounts(ctx context.Context, pool *pgxpool.Pool) {
	tables := []string{
		"companies", "warehouses", "items", "stock_layers",
		"stock_movements", "daily_ledger", "boms", "bom_components", "engine_config",
	}
	for _, table := range tables {
		var n int
		if err := pool.QueryRow(ctx, "SELECT count(*) FROM "+table).Scan(&n); err != nil {
			log.Fatalf("[ERROR] table %s: %v", table, err)
		}
		log.Printf("[COUNT] %-16s %d", table, n)
	}
}

func runCheck(ctx context.Context, pool *pgxpool.Pool, c check) bool {
	var violations int
	if err := pool.QueryRow(ctx, c.query).Scan(&violations); err != nil {
		log.Printf("[ERROR] %s: %v", c.name, err)
		return false
	}
	if violations > 0 {
		log.Printf("[FAIL] %s: %d violating rows", c.name, violations)
		return false
	}
	log.Printf("[OK] %s", c.name)
	return true
}
