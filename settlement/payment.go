package settlement

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// InstallmentPayment is one installment covered by a settlement.
type InstallmentPayment struct {
	Number int
	Amount decimal.Decimal
}

// SettleRequest proposes a payment against an order.
type SettleRequest struct {
	PayerCode       string
	OrderCode       string
	TotalAmount     decimal.Decimal
	PaymentDate     string
	InvoiceName     string
	TaxID           string
	PaymentLocation string
	Installments    []InstallmentPayment
}

// Settle records a payment in the customer ledger and marks the order paid
// in the obligations ledger.
//
// Preconditions, checked before any write:
//   - the payer exists
//   - the order exists and is unpaid
//   - TotalAmount equals the order amount exactly
//
// Saga:
//  1. record_payment          customer ledger   undo: delete payment
//  2. record_payment_details  customer ledger   undo: delete details
//  3. mark_order_paid         obligations ledger (conditional on unpaid)
//
// A concurrent settlement that loses the race at step 3 is compensated and
// reported as ErrAlreadyPaid.
func (s *Service) Settle(ctx context.Context, req SettleRequest) (payment *Payment, err error) {
	defer func() { s.finish(WorkflowSettle, err) }()

	if _, err := s.requirePayer(ctx, req.PayerCode); err != nil {
		return nil, err
	}

	order, err := s.obligations.GetOrder(ctx, req.OrderCode)
	if err != nil {
		return nil, unavailable("order", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Paid {
		return nil, ErrAlreadyPaid
	}
	if !req.TotalAmount.Equal(order.Amount) {
		return nil, ErrAmountMismatch
	}

	p := Payment{
		PaymentDate:     req.PaymentDate,
		PayerCode:       req.PayerCode,
		TotalAmount:     req.TotalAmount,
		InvoiceName:     truncate(req.InvoiceName, MaxInvoiceNameLen),
		TaxID:           truncate(req.TaxID, MaxTaxIDLen),
		PaymentLocation: truncate(req.PaymentLocation, MaxPaymentLocationLen),
		OrderCode:       req.OrderCode,
	}

	sg := s.newSaga(WorkflowSettle)
	sg.add(step{
		Name:        "record_payment",
		Description: "could not record payment in customer ledger",
		Do: func(ctx context.Context) error {
			id, err := s.customer.CreatePayment(ctx, p)
			if err != nil {
				return err
			}
			p.TransactionID = id
			return nil
		},
		Undo: func(ctx context.Context) error {
			return s.customer.DeletePayment(ctx, p.TransactionID)
		},
	})
	sg.add(step{
		Name:        "record_payment_details",
		Description: "could not record payment details in customer ledger",
		Do: func(ctx context.Context) error {
			if len(req.Installments) == 0 {
				return nil
			}
			details := make([]PaymentDetail, len(req.Installments))
			for i, inst := range req.Installments {
				details[i] = PaymentDetail{
					TransactionID:     p.TransactionID,
					InstallmentNumber: inst.Number,
					InstallmentAmount: inst.Amount,
				}
			}
			return s.customer.CreatePaymentDetails(ctx, p.TransactionID, details)
		},
		Undo: func(ctx context.Context) error {
			if len(req.Installments) == 0 {
				return nil
			}
			return s.customer.DeletePaymentDetails(ctx, p.TransactionID)
		},
	})
	sg.add(step{
		Name:        "mark_order_paid",
		Description: "could not update payment order in obligations ledger",
		Do: func(ctx context.Context) error {
			return s.obligations.SetOrderPaid(ctx, req.OrderCode, true)
		},
	})

	if err := sg.run(ctx); err != nil {
		var stepErr *StepError
		if errors.As(err, &stepErr) && stepErr.Compensated && errors.Is(stepErr.Err, ErrAlreadyPaid) {
			return nil, ErrAlreadyPaid
		}
		return nil, err
	}

	s.logger.Info("payment recorded",
		"order", p.OrderCode,
		"transaction_id", p.TransactionID,
		"amount", p.TotalAmount.String(),
		"installments", len(req.Installments),
	)
	return &p, nil
}
