// seed is a one-shot tool to restore the demo company's master data.
// Run it after migrations when the catalog has been wiped or on a fresh
// database.
//
// Usage: go run ./cmd/seed
package main

import (
	"context"
	"log"
	"time"

	"stock-engine/internal/core"
	"stock-engine/internal/db"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	log.Println("Clearing demo company transactional data...")
	_, err = tx.Exec(ctx, `
		DELETE FROM daily_ledger WHERE company_id IN (
			SELECT id FROM companies WHERE company_code = '1000'
		);
		DELETE FROM stock_movements WHERE company_id IN (
			SELECT id FROM companies WHERE company_code = '1000'
		);
		DELETE FROM stock_layers WHERE company_id IN (
			SELECT id FROM companies WHERE company_code = '1000'
		);
	`)
	if err != nil {
		log.Fatalf("Failed to clear transactional data: %v", err)
	}

	log.Println("Restoring company...")
	_, err = tx.Exec(ctx, `
		INSERT INTO companies (company_code, name)
		VALUES ('1000', 'Local Operations India')
		ON CONFLICT (company_code) DO UPDATE
		  SET name = EXCLUDED.name;
	`)
	if err != nil {
		log.Fatalf("Failed to restore company: %v", err)
	}

	log.Println("Restoring warehouses...")
	_, err = tx.Exec(ctx, `
		INSERT INTO warehouses (company_id, code, name)
		SELECT c.id, w.code, w.name
		FROM companies c
		CROSS JOIN (VALUES
		    ('RM01', 'Raw Material Store'),
		    ('PR01', 'Production Floor'),
		    ('FG01', 'Finished Goods Store')
		) AS w(code, name)
		WHERE c.company_code = '1000'
		ON CONFLICT (company_id, code) DO UPDATE
		  SET name = EXCLUDED.name;
	`)
	if err != nil {
		log.Fatalf("Failed to restore warehouses: %v", err)
	}

	log.Println("Restoring item catalog...")
	_, err = tx.Exec(ctx, `
		INSERT INTO items (company_id, code, name, uom, perishable, material_class)
		SELECT c.id, i.code, i.name, i.uom, i.perishable, i.material_class
		FROM companies c
		CROSS JOIN (VALUES
		    ('FLOUR-01', 'Wheat Flour',        'KG', false, 'RM'),
		    ('SUGAR-01', 'Refined Sugar',      'KG', false, 'RM'),
		    ('MILK-01',  'Raw Milk',           'L',  true,  'RM'),
		    ('YEAST-01', 'Active Dry Yeast',   'KG', true,  'RM'),
		    ('DOUGH-01', 'Proofed Dough',      'KG', true,  'SFG'),
		    ('BREAD-01', 'White Bread Loaf',   'PC', true,  'FG'),
		    ('PACK-01',  'Packaging Film',     'M',  false, 'PKG')
		) AS i(code, name, uom, perishable, material_class)
		WHERE c.company_code = '1000'
		ON CONFLICT (company_id, code) DO UPDATE
		  SET name = EXCLUDED.name,
		      uom = EXCLUDED.uom,
		      perishable = EXCLUDED.perishable,
		      material_class = EXCLUDED.material_class;
	`)
	if err != nil {
		log.Fatalf("Failed to restore items: %v", err)
	}

	log.Println("Restoring bread BOM...")
	_, err = tx.Exec(ctx, `
		INSERT INTO boms (company_id, item_id, code, name)
		SELECT c.id, i.id, 'BREAD-STD', 'Standard White Bread'
		FROM companies c
		JOIN items i ON i.company_id = c.id AND i.code = 'BREAD-01'
		WHERE c.company_code = '1000'
		ON CONFLICT (company_id, code) DO UPDATE
		  SET name = EXCLUDED.name,
		      item_id = EXCLUDED.item_id;

		DELETE FROM bom_components WHERE bom_id IN (
			SELECT b.id FROM boms b
			JOIN companies c ON c.id = b.company_id
			WHERE c.company_code = '1000' AND b.code = 'BREAD-STD'
		);

		INSERT INTO bom_components (bom_id, component_item_id, qty_required, qty_with_loss, uom)
		SELECT b.id, i.id, r.qty_required, r.qty_with_loss, r.uom
		FROM boms b
		JOIN companies c ON c.id = b.company_id AND c.company_code = '1000'
		CROSS JOIN (VALUES
		    ('FLOUR-01', 0.500, 0.525, 'KG'),
		    ('SUGAR-01', 0.050, 0.052, 'KG'),
		    ('MILK-01',  0.250, 0.275, 'L'),
		    ('YEAST-01', 0.010, 0.011, 'KG'),
		    ('PACK-01',  0.300, 0.315, 'M')
		) AS r(item_code, qty_required, qty_with_loss, uom)
		JOIN items i ON i.company_id = c.id AND i.code = r.item_code
		WHERE b.code = 'BREAD-STD';
	`)
	if err != nil {
		log.Fatalf("Failed to restore BOM: %v", err)
	}

	log.Println("Restoring engine config...")
	_, err = tx.Exec(ctx, `
		INSERT INTO engine_config (config_key, config_value) VALUES
		    ('valuation_method', 'FIFO'),
		    ('variance_threshold_pct', '5.0'),
		    ('expiry_warning_days', '30')
		ON CONFLICT (config_key) DO UPDATE
		  SET config_value = EXCLUDED.config_value;
	`)
	if err != nil {
		log.Fatalf("Failed to restore config: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	// Opening balances go through the real receipt path so every layer has a
	// matching OPENING movement behind it.
	logger := logrus.New()
	stock := core.NewStockService(pool, core.NewLayerStore(pool),
		core.NewMovementWriter(pool), core.NewConfigService(pool, logger), logger)

	log.Println("Posting opening balances...")
	openedAt := time.Now().UTC().AddDate(0, 0, -1)
	openings := []struct {
		warehouse string
		item      string
		qty       float64
		unitCost  float64
		lotNo     string
		expiry    *time.Time
	}{
		{"RM01", "FLOUR-01", 500, 42.00, "", nil},
		{"RM01", "SUGAR-01", 120, 55.50, "", nil},
		{"RM01", "MILK-01", 80, 64.00, "OPEN-M1", dateAfter(openedAt, 7)},
		{"RM01", "YEAST-01", 6, 820.00, "OPEN-Y1", dateAfter(openedAt, 90)},
		{"RM01", "PACK-01", 300, 12.25, "", nil},
	}
	for _, o := range openings {
		_, err := stock.Receive(ctx, core.ReceiveRequest{
			CompanyCode:   "1000",
			WarehouseCode: o.warehouse,
			ItemCode:      o.item,
			Qty:           decimal.NewFromFloat(o.qty),
			UnitCost:      decimal.NewFromFloat(o.unitCost),
			LotNo:         o.lotNo,
			ExpiryDate:    o.expiry,
			Code:          core.TxnOPENING,
			RefDoc:        "SEED",
			MovedAt:       openedAt,
		})
		if err != nil {
			log.Fatalf("Failed to post opening balance for %s: %v", o.item, err)
		}
	}

	log.Println("Seed restored.")
}

func dateAfter(from time.Time, days int) *time.Time {
	d := from.AddDate(0, 0, days)
	return &d
}
