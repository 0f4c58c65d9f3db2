package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"stock-engine/internal/core"
	"stock-engine/internal/db"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const usage = `Usage: app <command> [args]

Transactions (read a JSON request from stdin):
  consume                      allocate and post an outbound movement
  receive                      post an inbound movement and create a layer
  transfer                     move stock between warehouses

Reports:
  stock <company>              on-hand quantity and value per warehouse/item
  value <company>              total inventory value per warehouse
  expiring <company> [days]    open layers expiring within the window
  ledger <company> <date>      stored daily ledger rows for a date
  recompute <company> <from> [to]   rebuild daily ledger entries

BOM:
  require <company> <bom> <qty>          scaled component requirements
  check <company> <warehouse> <bom> <qty>  requirements vs. warehouse stock`

// movementRequest is the stdin shape shared by consume/receive/transfer.
type movementRequest struct {
	Company   string          `json:"company"`
	Warehouse string          `json:"warehouse"`
	DestWh    string          `json:"dest_warehouse"`
	Item      string          `json:"item"`
	Qty       decimal.Decimal `json:"qty"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	LotNo     string          `json:"lot_no"`
	BatchNo   string          `json:"batch_no"`
	Code      string          `json:"txn_code"`
	RefDoc    string          `json:"ref_doc"`
	Expiry    string          `json:"expiry_date"` // YYYY-MM-DD
	MovedAt   time.Time       `json:"moved_at"`
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	layers := core.NewLayerStore(pool)
	movements := core.NewMovementWriter(pool)
	config := core.NewConfigService(pool, logger)
	stock := core.NewStockService(pool, layers, movements, config, logger)
	ledger := core.NewDailyLedgerService(pool, movements, config, logger)
	bom := core.NewBOMService(pool, layers)

	switch os.Args[1] {
	case "consume":
		req := readRequest()
		result, err := stock.Consume(ctx, core.ConsumeRequest{
			CompanyCode:   req.Company,
			WarehouseCode: req.Warehouse,
			ItemCode:      req.Item,
			Qty:           req.Qty,
			Filter:        core.LayerFilter{LotNo: req.LotNo, BatchNo: req.BatchNo},
			Code:          core.TxnCode(req.Code),
			RefDoc:        req.RefDoc,
			MovedAt:       req.MovedAt,
		})
		if err != nil {
			log.Fatalf("Consume failed: %v", err)
		}
		writeJSON(result.Movement)

	case "receive":
		req := readRequest()
		result, err := stock.Receive(ctx, core.ReceiveRequest{
			CompanyCode:   req.Company,
			WarehouseCode: req.Warehouse,
			ItemCode:      req.Item,
			Qty:           req.Qty,
			UnitCost:      req.UnitCost,
			LotNo:         req.LotNo,
			BatchNo:       req.BatchNo,
			ExpiryDate:    parseExpiry(req.Expiry),
			Code:          core.TxnCode(req.Code),
			RefDoc:        req.RefDoc,
			MovedAt:       req.MovedAt,
		})
		if err != nil {
			log.Fatalf("Receive failed: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Created layer %d\n", result.LayerID)
		writeJSON(result.Movement)

	case "transfer":
		req := readRequest()
		result, err := stock.Transfer(ctx, core.TransferRequest{
			CompanyCode: req.Company,
			SourceCode:  req.Warehouse,
			DestCode:    req.DestWh,
			ItemCode:    req.Item,
			Qty:         req.Qty,
			Filter:      core.LayerFilter{LotNo: req.LotNo, BatchNo: req.BatchNo},
			RefDoc:      req.RefDoc,
			MovedAt:     req.MovedAt,
		})
		if err != nil {
			log.Fatalf("Transfer failed: %v", err)
		}
		writeJSON([]core.Movement{result.Out, result.In})

	case "stock":
		company := arg(2, "Usage: app stock <company>")
		levels, err := layers.StockLevels(ctx, company)
		if err != nil {
			log.Fatalf("Failed to read stock levels: %v", err)
		}
		printStockLevels(levels)

	case "value":
		company := arg(2, "Usage: app value <company>")
		levels, err := layers.StockLevels(ctx, company)
		if err != nil {
			log.Fatalf("Failed to read stock levels: %v", err)
		}
		printValuation(levels)

	case "expiring":
		company := arg(2, "Usage: app expiring <company> [days]")
		days := config.ExpiryWarningDays(ctx)
		if len(os.Args) > 3 {
			days, err = strconv.Atoi(os.Args[3])
			if err != nil {
				log.Fatalf("Invalid day count: %v", err)
			}
		}
		expiring, err := layers.ExpiringLayers(ctx, company, days)
		if err != nil {
			log.Fatalf("Failed to read expiring layers: %v", err)
		}
		printExpiring(expiring, days)

	case "ledger":
		company := arg(2, "Usage: app ledger <company> <date>")
		date := parseDate(arg(3, "Usage: app ledger <company> <date>"))
		entries, err := ledger.EntriesForDay(ctx, company, date)
		if err != nil {
			log.Fatalf("Failed to read daily ledger: %v", err)
		}
		printLedger(entries)

	case "recompute":
		company := arg(2, "Usage: app recompute <company> <from> [to]")
		from := parseDate(arg(3, "Usage: app recompute <company> <from> [to]"))
		to := from
		if len(os.Args) > 4 {
			to = parseDate(os.Args[4])
		}
		results, err := ledger.ComputeRange(ctx, company, from, to, "", "")
		if err != nil {
			log.Fatalf("Recompute failed: %v", err)
		}
		for _, r := range results {
			fmt.Printf("%s: %d entries", r.Date, len(r.Entries))
			if len(r.Failures) > 0 {
				fmt.Printf(", %d FAILED groups", len(r.Failures))
			}
			fmt.Println()
		}

	case "require":
		company := arg(2, "Usage: app require <company> <bom> <qty>")
		bomCode := arg(3, "Usage: app require <company> <bom> <qty>")
		qty := parseQty(arg(4, "Usage: app require <company> <bom> <qty>"))
		reqs, err := bom.Requirements(ctx, company, bomCode, qty)
		if err != nil {
			log.Fatalf("Failed to expand BOM: %v", err)
		}
		printRequirements(bomCode, qty, reqs)

	case "check":
		company := arg(2, "Usage: app check <company> <warehouse> <bom> <qty>")
		warehouse := arg(3, "Usage: app check <company> <warehouse> <bom> <qty>")
		bomCode := arg(4, "Usage: app check <company> <warehouse> <bom> <qty>")
		qty := parseQty(arg(5, "Usage: app check <company> <warehouse> <bom> <qty>"))
		reqs, err := bom.Requirements(ctx, company, bomCode, qty)
		if err != nil {
			log.Fatalf("Failed to expand BOM: %v", err)
		}
		result, err := bom.CheckAvailability(ctx, company, warehouse, reqs)
		if err != nil {
			log.Fatalf("Availability check failed: %v", err)
		}
		printAvailability(warehouse, result)

	default:
		log.Fatalf("Unknown command: %s\n%s", os.Args[1], usage)
	}
}

func readRequest() movementRequest {
	var req movementRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		log.Fatalf("Invalid JSON request: %v", err)
	}
	return req
}

func writeJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func arg(i int, usage string) string {
	if len(os.Args) <= i {
		log.Fatal(usage)
	}
	return os.Args[i]
}

func parseDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		log.Fatalf("Invalid date %q, expected YYYY-MM-DD", s)
	}
	return d
}

func parseQty(s string) decimal.Decimal {
	q, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatalf("Invalid quantity %q: %v", s, err)
	}
	return q
}

func parseExpiry(s string) *time.Time {
	if s == "" {
		return nil
	}
	d := parseDate(s)
	return &d
}

func printStockLevels(levels []core.StockLevel) {
	fmt.Println("\n--- STOCK ON HAND ---")
	fmt.Printf("%-6s %-12s %-30s %-5s %14s %14s\n", "WH", "ITEM", "NAME", "UOM", "QTY", "VALUE")
	fmt.Println(strings.Repeat("-", 86))
	for _, l := range levels {
		fmt.Printf("%-6s %-12s %-30s %-5s %14s %14s\n",
			l.WarehouseCode, l.ItemCode, l.ItemName, l.UOM,
			l.OnHand.StringFixed(3), l.Value.StringFixed(2))
	}
	fmt.Println(strings.Repeat("-", 86))
}

func printValuation(levels []core.StockLevel) {
	byWarehouse := make(map[string]decimal.Decimal)
	var order []string
	for _, l := range levels {
		if _, seen := byWarehouse[l.WarehouseCode]; !seen {
			order = append(order, l.WarehouseCode)
		}
		byWarehouse[l.WarehouseCode] = byWarehouse[l.WarehouseCode].Add(l.Value)
	}

	fmt.Println("\n--- INVENTORY VALUE ---")
	fmt.Printf("%-6s %16s\n", "WH", "VALUE")
	fmt.Println(strings.Repeat("-", 24))
	total := decimal.Zero
	for _, wh := range order {
		fmt.Printf("%-6s %16s\n", wh, byWarehouse[wh].StringFixed(2))
		total = total.Add(byWarehouse[wh])
	}
	fmt.Println(strings.Repeat("-", 24))
	fmt.Printf("%-6s %16s\n", "TOTAL", total.StringFixed(2))
}

func printExpiring(expiring []core.Layer, days int) {
	fmt.Printf("\n--- LAYERS EXPIRING WITHIN %d DAYS ---\n", days)
	fmt.Printf("%-8s %-12s %-12s %12s %10s\n", "LAYER", "LOT", "BATCH", "REMAINING", "EXPIRY")
	fmt.Println(strings.Repeat("-", 60))
	for _, l := range expiring {
		expiry := ""
		if l.ExpiryDate != nil {
			expiry = l.ExpiryDate.Format("2006-01-02")
		}
		fmt.Printf("%-8d %-12s %-12s %12s %10s\n",
			l.ID, l.LotNo, l.BatchNo, l.RemainingQty.StringFixed(3), expiry)
	}
	fmt.Println(strings.Repeat("-", 60))
}

func printLedger(entries []core.DailyLedgerEntry) {
	fmt.Println("\n--- DAILY LEDGER ---")
	fmt.Printf("%-4s %-4s %10s %8s %8s %8s %8s %10s %10s %12s\n",
		"WH", "ITEM", "OPEN", "TR-IN", "TR-OUT", "IN", "OUT", "CLOSE", "RATE", "VALUE")
	fmt.Println(strings.Repeat("-", 94))
	for _, e := range entries {
		fmt.Printf("%-4d %-4d %10s %8s %8s %8s %8s %10s %10s %12s\n",
			e.WarehouseID, e.ItemID,
			e.OpeningStock.StringFixed(3), e.TransferIn.StringFixed(3), e.TransferOut.StringFixed(3),
			e.StockIn.StringFixed(3), e.StockOut.StringFixed(3), e.ClosingStock.StringFixed(3),
			e.ValuationRate.StringFixed(4), e.ClosingValue.StringFixed(2))
	}
	fmt.Println(strings.Repeat("-", 94))
}

func printRequirements(bomCode string, qty decimal.Decimal, reqs []core.ComponentRequirement) {
	fmt.Printf("\n--- REQUIREMENTS: %s x %s ---\n", bomCode, qty)
	fmt.Printf("%-12s %-5s %14s %14s\n", "COMPONENT", "UOM", "REQUIRED", "WITH LOSS")
	fmt.Println(strings.Repeat("-", 50))
	for _, r := range reqs {
		fmt.Printf("%-12s %-5s %14s %14s\n",
			r.ItemCode, r.UOM, r.QtyRequired.StringFixed(3), r.QtyWithLoss.StringFixed(3))
	}
	fmt.Println(strings.Repeat("-", 50))
}

func printAvailability(warehouse string, result *core.AvailabilityResult) {
	if result.IsAvailable {
		fmt.Printf("All components available in %s.\n", warehouse)
		return
	}
	fmt.Printf("\n--- SHORTAGES IN %s ---\n", warehouse)
	fmt.Printf("%-12s %14s %14s %14s\n", "COMPONENT", "REQUIRED", "AVAILABLE", "SHORTFALL")
	fmt.Println(strings.Repeat("-", 60))
	for _, s := range result.Shortages {
		fmt.Printf("%-12s %14s %14s %14s\n",
			s.ItemCode, s.Required.StringFixed(3), s.Available.StringFixed(3), s.Shortfall.StringFixed(3))
	}
	fmt.Println(strings.Repeat("-", 60))
	os.Exit(1)
}
