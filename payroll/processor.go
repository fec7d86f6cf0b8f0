package payroll

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// ORDER PROCESSOR - One payment and its order
// =============================================================================

// Outcome summarises what Process did for one payment.
type Outcome struct {
	PaymentID        PaymentID
	OrderID          OrderID
	DirectTip        Cents
	DuplicatePayment bool
	DuplicateOrder   bool
	OrderMissing     bool
	OrderAt          time.Time // order creation in the reporting location
	Allocations      []Allocation
	Skipped          []error // per line item and data diagnostics
}

// Processor credits card tips and drives the allocator over an order.
type Processor struct {
	source    Source
	allocator *Allocator
	ledger    *TipLedger
	shifts    *ShiftIndex
	orders    Claims
	payments  Claims
	location  *time.Location
	logger    *zap.Logger
}

// ProcessorDeps groups the collaborators of a Processor.
type ProcessorDeps struct {
	Source    Source
	Allocator *Allocator
	Ledger    *TipLedger
	Shifts    *ShiftIndex
	Orders    Claims // order ids; defaults to an in-memory set
	Payments  Claims // payment ids; defaults to an in-memory set
	Location  *time.Location
	Logger    *zap.Logger
}

func NewProcessor(deps ProcessorDeps) *Processor {
	p := &Processor{
		source:    deps.Source,
		allocator: deps.Allocator,
		ledger:    deps.Ledger,
		shifts:    deps.Shifts,
		orders:    deps.Orders,
		payments:  deps.Payments,
		location:  deps.Location,
		logger:    deps.Logger,
	}
	if p.orders == nil {
		p.orders = NewProcessedSet()
	}
	if p.payments == nil {
		p.payments = NewProcessedSet()
	}
	if p.location == nil {
		p.location = time.UTC
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// Process applies one payment. The card tip is credited once per payment id;
// line items are allocated once per order id. A returned error means the
// payment was abandoned after any tip credit already made.
func (p *Processor) Process(ctx context.Context, pay Payment) (Outcome, error) {
	out := Outcome{PaymentID: pay.ID, OrderID: pay.OrderID}
	log := p.logger.With(zap.String("payment_id", string(pay.ID)), zap.String("order_id", string(pay.OrderID)))

	first, err := p.payments.Claim(ctx, paymentKey(pay.ID))
	if err != nil {
		return out, fmt.Errorf("claim payment %s: %w", pay.ID, err)
	}
	if !first {
		log.Info("payment already processed, skipping", zap.Error(ErrDuplicatePayment))
		out.DuplicatePayment = true
		return out, nil
	}

	if tip, ok := pay.Tip(); ok {
		p.creditTip(pay, tip, &out, log)
	}

	if pay.OrderID == "" {
		return out, nil
	}
	order, err := p.source.Order(ctx, pay.OrderID)
	if err != nil {
		return out, &FetchError{Resource: "order", ID: string(pay.OrderID), Err: err}
	}
	if order == nil {
		out.OrderMissing = true
		return out, nil
	}
	out.OrderID = order.ID

	first, err = p.orders.Claim(ctx, orderKey(order.ID))
	if err != nil {
		return out, fmt.Errorf("claim order %s: %w", order.ID, err)
	}
	if !first {
		log.Info("already processed order, skipping", zap.Error(ErrDuplicateOrder))
		out.DuplicateOrder = true
		return out, nil
	}

	out.OrderAt = order.CreatedAt.In(p.location)
	log.Debug("processing order",
		zap.String("created_at", out.OrderAt.Format(time.RFC3339)),
		zap.Int("line_items", len(order.LineItems)))

	ref := SaleRef{PaymentID: pay.ID, OrderID: order.ID, CashierID: pay.CashierID}
	for _, item := range order.LineItems {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		alloc, err := p.allocator.Apply(ctx, item, out.OrderAt, ref)
		if err != nil {
			log.Warn("line item skipped",
				zap.String("line_item", item.Name),
				zap.String("catalog_object_id", string(item.CatalogObjectID)),
				zap.Error(err))
			out.Skipped = append(out.Skipped, err)
			continue
		}
		if alloc.Applied() {
			out.Allocations = append(out.Allocations, alloc)
		}
	}
	return out, nil
}

func (p *Processor) creditTip(pay Payment, tip Cents, out *Outcome, log *zap.Logger) {
	if pay.CashierID == "" {
		err := &DataError{Field: "payment.employee_id", Value: string(pay.ID), Err: ErrUnknownWorker}
		log.Warn("card tip without cashier", zap.Error(err))
		out.Skipped = append(out.Skipped, err)
		return
	}
	if !p.shifts.Clocked(pay.CashierID) {
		log.Warn("cashier did not clock in", zap.String("worker_id", string(pay.CashierID)))
	}
	p.ledger.Post(pay.CashierID, Posting{
		Kind:      PostingDirectTip,
		Delta:     tip,
		PaymentID: pay.ID,
		OrderID:   pay.OrderID,
	})
	out.DirectTip = tip
}
