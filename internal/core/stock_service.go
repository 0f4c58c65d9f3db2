package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ConsumeRequest is a validated outbound line. Validation and shaping is the
// request layer's responsibility; the engine only enforces stock semantics.
type ConsumeRequest struct {
	CompanyCode   string
	WarehouseCode string
	ItemCode      string
	Qty           decimal.Decimal
	Filter        LayerFilter
	Code          TxnCode // CON, ADJ-, SCRAP or RTV; defaults to CON
	RefDoc        string
	MovedAt       time.Time
}

type ConsumeResult struct {
	Movement Movement
	Lines    []AllocationLine
}

// ReceiveRequest is a validated inbound line at a declared unit cost.
type ReceiveRequest struct {
	CompanyCode   string
	WarehouseCode string
	ItemCode      string
	Qty           decimal.Decimal
	UnitCost      decimal.Decimal
	LotNo         string
	BatchNo       string
	ExpiryDate    *time.Time
	Code          TxnCode // GRN, SFG, FG, RETIN, ADJ+ or OPENING; defaults to GRN
	RefDoc        string
	MovedAt       time.Time
}

type ReceiveResult struct {
	Movement Movement
	LayerID  int
}

type TransferRequest struct {
	CompanyCode string
	SourceCode  string
	DestCode    string
	ItemCode    string
	Qty         decimal.Decimal
	Filter      LayerFilter
	RefDoc      string
	MovedAt     time.Time
}

type TransferResult struct {
	Out     Movement
	In      Movement
	LayerID int // destination layer created from the TRIN row
	Lines   []AllocationLine
}

// StockService orchestrates the transaction processors. Each operation is
// all-or-nothing: a failure in any step leaves the movement ledger and the
// layer store exactly as they were.
type StockService interface {
	Consume(ctx context.Context, req ConsumeRequest) (*ConsumeResult, error)
	Receive(ctx context.Context, req ReceiveRequest) (*ReceiveResult, error)
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

type stockService struct {
	pool      *pgxpool.Pool
	layers    *LayerStore
	movements *MovementWriter
	config    ConfigService
	log       *logrus.Logger
}

func NewStockService(pool *pgxpool.Pool, layers *LayerStore, movements *MovementWriter, config ConfigService, log *logrus.Logger) StockService {
	return &stockService{pool: pool, layers: layers, movements: movements, config: config, log: log}
}

// fefoFor decides the picking order: perishable items always allocate FEFO;
// everything else follows the configured valuation method.
func (s *stockService) fefoFor(ctx context.Context, item Item) bool {
	return item.Perishable || s.config.ValuationMethod(ctx) == "FEFO"
}

func (s *stockService) Consume(ctx context.Context, req ConsumeRequest) (*ConsumeResult, error) {
	if req.Code == "" {
		req.Code = TxnCON
	}
	if !outboundCodes[req.Code] || req.Code == TxnTROUT {
		return nil, fmt.Errorf("transaction code %q is not a consumption code", req.Code)
	}
	if req.Qty.IsNegative() {
		return nil, fmt.Errorf("consume quantity cannot be negative, got %s", req.Qty)
	}
	if req.MovedAt.IsZero() {
		req.MovedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	companyID, err := resolveCompany(ctx, tx, req.CompanyCode)
	if err != nil {
		return nil, err
	}
	warehouseID, err := resolveWarehouse(ctx, tx, companyID, req.WarehouseCode)
	if err != nil {
		return nil, err
	}
	item, err := resolveItem(ctx, tx, companyID, req.ItemCode)
	if err != nil {
		return nil, err
	}

	candidates, err := s.layers.CandidateLayersTx(ctx, tx, companyID, warehouseID, item.ID, req.Filter)
	if err != nil {
		return nil, err
	}

	alloc, err := PlanAllocation(warehouseID, item.ID, candidates, req.Qty, s.fefoFor(ctx, item), req.Filter)
	if err != nil {
		return nil, err
	}
	if len(alloc.Lines) == 0 {
		// qty 0: a successful no-op, nothing to write
		return &ConsumeResult{}, nil
	}

	movement := OutboundMovement(req.Code, companyID, warehouseID, item.ID, alloc, req.Filter, req.RefDoc, req.MovedAt)
	if err := s.movements.InsertTx(ctx, tx, movement); err != nil {
		return nil, err
	}
	if err := s.layers.ApplyAllocationTx(ctx, tx, alloc); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"warehouse": req.WarehouseCode, "item": req.ItemCode,
		}).Error("allocation apply failed, rolling back")
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit consumption: %w", err)
	}
	return &ConsumeResult{Movement: movement, Lines: alloc.Lines}, nil
}

func (s *stockService) Receive(ctx context.Context, req ReceiveRequest) (*ReceiveResult, error) {
	if req.Code == "" {
		req.Code = TxnGRN
	}
	if !inboundCodes[req.Code] || req.Code == TxnTRIN {
		return nil, fmt.Errorf("transaction code %q is not a receipt code", req.Code)
	}
	if !req.Qty.IsPositive() {
		return nil, fmt.Errorf("receive quantity must be positive, got %s", req.Qty)
	}
	if req.UnitCost.IsNegative() {
		return nil, fmt.Errorf("unit cost cannot be negative, got %s", req.UnitCost)
	}
	if req.MovedAt.IsZero() {
		req.MovedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	companyID, err := resolveCompany(ctx, tx, req.CompanyCode)
	if err != nil {
		return nil, err
	}
	warehouseID, err := resolveWarehouse(ctx, tx, companyID, req.WarehouseCode)
	if err != nil {
		return nil, err
	}
	item, err := resolveItem(ctx, tx, companyID, req.ItemCode)
	if err != nil {
		return nil, err
	}

	movement := InboundMovement(req.Code, companyID, warehouseID, item.ID,
		req.LotNo, req.BatchNo, req.Qty, req.UnitCost, req.RefDoc, req.MovedAt)
	if err := s.movements.InsertTx(ctx, tx, movement); err != nil {
		return nil, err
	}

	layerID, err := s.layers.CreateLayerTx(ctx, tx, Layer{
		CompanyID:    companyID,
		WarehouseID:  warehouseID,
		ItemID:       item.ID,
		LotNo:        req.LotNo,
		BatchNo:      req.BatchNo,
		OpenQty:      movement.QtyIn,
		OpenValue:    movement.ValueIn,
		RemainingQty: movement.QtyIn,
		UnitCost:     movement.UnitCost,
		ExpiryDate:   req.ExpiryDate,
		SourceRef:    movement.ID,
		CreatedAt:    req.MovedAt,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit receipt: %w", err)
	}
	return &ReceiveResult{Movement: movement, LayerID: layerID}, nil
}

func (s *stockService) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.SourceCode == req.DestCode {
		return nil, fmt.Errorf("transfer source and destination must differ, got %s", req.SourceCode)
	}
	if !req.Qty.IsPositive() {
		return nil, fmt.Errorf("transfer quantity must be positive, got %s", req.Qty)
	}
	if req.MovedAt.IsZero() {
		req.MovedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	companyID, err := resolveCompany(ctx, tx, req.CompanyCode)
	if err != nil {
		return nil, err
	}
	sourceID, err := resolveWarehouse(ctx, tx, companyID, req.SourceCode)
	if err != nil {
		return nil, err
	}
	destID, err := resolveWarehouse(ctx, tx, companyID, req.DestCode)
	if err != nil {
		return nil, err
	}
	item, err := resolveItem(ctx, tx, companyID, req.ItemCode)
	if err != nil {
		return nil, err
	}

	candidates, err := s.layers.CandidateLayersTx(ctx, tx, companyID, sourceID, item.ID, req.Filter)
	if err != nil {
		return nil, err
	}
	alloc, err := PlanAllocation(sourceID, item.ID, candidates, req.Qty, s.fefoFor(ctx, item), req.Filter)
	if err != nil {
		return nil, err
	}

	out, in := TransferPair(companyID, sourceID, destID, item.ID, alloc, req.Filter, req.RefDoc, req.MovedAt)
	if err := s.movements.InsertTx(ctx, tx, out); err != nil {
		return nil, err
	}
	if err := s.movements.InsertTx(ctx, tx, in); err != nil {
		return nil, err
	}

	if err := s.layers.ApplyAllocationTx(ctx, tx, alloc); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"source": req.SourceCode, "item": req.ItemCode,
		}).Error("transfer apply failed, rolling back")
		return nil, err
	}

	// The destination layer inherits the earliest expiry of the source lines,
	// so perishable stock does not shed its expiry by moving warehouses.
	var expiry *time.Time
	for _, line := range alloc.Lines {
		if line.Layer.ExpiryDate != nil && (expiry == nil || line.Layer.ExpiryDate.Before(*expiry)) {
			d := *line.Layer.ExpiryDate
			expiry = &d
		}
	}

	layerID, err := s.layers.CreateLayerTx(ctx, tx, Layer{
		CompanyID:    companyID,
		WarehouseID:  destID,
		ItemID:       item.ID,
		LotNo:        req.Filter.LotNo,
		BatchNo:      req.Filter.BatchNo,
		OpenQty:      in.QtyIn,
		OpenValue:    in.ValueIn,
		RemainingQty: in.QtyIn,
		UnitCost:     in.UnitCost,
		ExpiryDate:   expiry,
		SourceRef:    in.ID,
		CreatedAt:    req.MovedAt,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transfer: %w", err)
	}
	return &TransferResult{Out: out, In: in, LayerID: layerID, Lines: alloc.Lines}, nil
}
