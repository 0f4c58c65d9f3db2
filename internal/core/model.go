package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type Company struct {
	ID          int    `json:"id"`
	CompanyCode string `json:"company_code"`
	Name        string `json:"name"`
}

// Warehouse represents a physical storage location within a company.
type Warehouse struct {
	ID        int
	CompanyID int
	Code      string
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

// Item is the external item master as seen by the engine. Perishable items
// allocate FEFO; everything else follows the configured valuation method.
type Item struct {
	ID            int
	CompanyID     int
	Code          string
	Name          string
	UOM           string
	Perishable    bool
	MaterialClass string
	IsActive      bool
}

// TxnCode is the closed set of transaction codes a movement may carry.
type TxnCode string

const (
	TxnGRN     TxnCode = "GRN"     // goods receipt
	TxnCON     TxnCode = "CON"     // consumption
	TxnTRIN    TxnCode = "TRIN"    // transfer in
	TxnTROUT   TxnCode = "TROUT"   // transfer out
	TxnSFG     TxnCode = "SFG"     // semi-finished goods receipt
	TxnFG      TxnCode = "FG"      // finished goods receipt
	TxnAdjIn   TxnCode = "ADJ+"    // positive adjustment
	TxnAdjOut  TxnCode = "ADJ-"    // negative adjustment
	TxnSCRAP   TxnCode = "SCRAP"   // scrap write-off
	TxnRTV     TxnCode = "RTV"     // return to vendor
	TxnRETIN   TxnCode = "RETIN"   // customer return receipt
	TxnOPENING TxnCode = "OPENING" // opening balance load
)

// inboundCodes and outboundCodes partition the full TxnCode set.
var inboundCodes = map[TxnCode]bool{
	TxnGRN: true, TxnTRIN: true, TxnSFG: true, TxnFG: true,
	TxnAdjIn: true, TxnRETIN: true, TxnOPENING: true,
}

var outboundCodes = map[TxnCode]bool{
	TxnCON: true, TxnTROUT: true, TxnAdjOut: true,
	TxnSCRAP: true, TxnRTV: true,
}

func (c TxnCode) Valid() bool   { return inboundCodes[c] || outboundCodes[c] }
func (c TxnCode) Inbound() bool { return inboundCodes[c] }

// Movement is one immutable row in the stock movement ledger. Exactly one of
// the (QtyIn, ValueIn) / (QtyOut, ValueOut) pairs is populated.
type Movement struct {
	ID          string          `json:"id"`
	CompanyID   int             `json:"company_id"`
	WarehouseID int             `json:"warehouse_id"`
	ItemID      int             `json:"item_id"`
	LotNo       string          `json:"lot_no,omitempty"`
	BatchNo     string          `json:"batch_no,omitempty"`
	Code        TxnCode         `json:"txn_code"`
	QtyIn       decimal.Decimal `json:"qty_in"`
	ValueIn     decimal.Decimal `json:"value_in"`
	QtyOut      decimal.Decimal `json:"qty_out"`
	ValueOut    decimal.Decimal `json:"value_out"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	RefDoc      string          `json:"ref_doc,omitempty"`
	MovedAt     time.Time       `json:"moved_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// DailyLedgerEntry is the per-day rollup for one (warehouse, item) key.
// Invariant: ClosingStock = OpeningStock + TransferIn + StockIn − TransferOut − StockOut.
type DailyLedgerEntry struct {
	LedgerDate    string          `json:"ledger_date"` // YYYY-MM-DD
	CompanyID     int             `json:"company_id"`
	WarehouseID   int             `json:"warehouse_id"`
	ItemID        int             `json:"item_id"`
	OpeningStock  decimal.Decimal `json:"opening_stock"`
	TransferIn    decimal.Decimal `json:"transfer_in"`
	TransferOut   decimal.Decimal `json:"transfer_out"`
	StockIn       decimal.Decimal `json:"stock_in"`
	StockOut      decimal.Decimal `json:"stock_out"`
	ClosingStock  decimal.Decimal `json:"closing_stock"`
	ValuationRate decimal.Decimal `json:"valuation_rate"`
	ClosingValue  decimal.Decimal `json:"inventory_value_closing"`
}

// BOM maps a parent item to its active components. Read-only here; a
// separate catalog surface maintains these rows.
type BOM struct {
	ID        int
	CompanyID int
	ItemID    int
	Code      string
	Name      string
	IsActive  bool
}

// BOMComponent carries the per-unit-output requirement and the precomputed
// loss-inflated requirement frozen at authoring time (QtyWithLoss >= QtyRequired).
type BOMComponent struct {
	ID          int
	BOMID       int
	ItemID      int
	ItemCode    string
	QtyRequired decimal.Decimal
	QtyWithLoss decimal.Decimal
	UOM         string
	IsActive    bool
}

// StockLevel is a read view over stock_layers summed per (warehouse, item).
type StockLevel struct {
	ItemCode      string
	ItemName      string
	WarehouseCode string
	UOM           string
	OnHand        decimal.Decimal
	Value         decimal.Decimal
}

const (
	qtyScale   = 3 // quantities and weights
	moneyScale = 2 // monetary values
	rateScale  = 4 // unit costs and valuation rates
)

func roundQty(d decimal.Decimal) decimal.Decimal   { return d.Round(qtyScale) }
func roundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(moneyScale) }
func roundRate(d decimal.Decimal) decimal.Decimal  { return d.Round(rateScale) }
