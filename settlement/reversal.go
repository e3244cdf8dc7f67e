package settlement

import (
	"context"
	"errors"
)

// ReverseRequest asks to undo a settled payment.
type ReverseRequest struct {
	PayerCode    string
	PaymentID    int64
	ReversalID   int64 // caller supplied, must be unique in the customer ledger
	ReversalDate string
}

var errNoReversalID = errors.New("obligations ledger returned no reversal id")

// Reverse undoes a settlement with paired reversal records in both ledgers,
// flips the order back to unpaid and deletes the original payment.
//
// Preconditions, checked before any write:
//   - ReversalID is not yet used in the customer ledger
//   - the payment exists
//   - the payer exists
//
// Saga:
//  4. create_obligations_reversal  obligations ledger  undo: delete it
//  5. read_obligations_reversal_id (generated id returned by step 4)
//  6. create_customer_reversal     customer ledger     undo: delete it
//  7. mark_order_unpaid            obligations ledger  undo: mark paid
//  8. delete_payment_details       customer ledger     undo: re-create rows
//  9. delete_payment               customer ledger
func (s *Service) Reverse(ctx context.Context, req ReverseRequest) (receipt *ReversalReceipt, err error) {
	defer func() { s.finish(WorkflowReverse, err) }()

	exists, err := s.customer.ReversalExists(ctx, req.ReversalID)
	if err != nil {
		return nil, unavailable("reversals", err)
	}
	if exists {
		return nil, ErrDuplicateReversal
	}

	payment, err := s.customer.GetPayment(ctx, req.PaymentID)
	if err != nil {
		return nil, unavailable("payments", err)
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	if _, err := s.requirePayer(ctx, req.PayerCode); err != nil {
		return nil, err
	}

	details, err := s.customer.ListPaymentDetails(ctx, req.PaymentID)
	if err != nil {
		return nil, unavailable("payment details", err)
	}

	var obligationsReversalID int64

	sg := s.newSaga(WorkflowReverse)
	sg.add(step{
		Name:        "create_obligations_reversal",
		Description: "could not create reversal in obligations ledger",
		Do: func(ctx context.Context) error {
			id, err := s.obligations.CreateReversal(ctx, OrderReversal{
				ReversalDate: req.ReversalDate,
				OrderCode:    payment.OrderCode,
				Amount:       payment.TotalAmount,
			})
			obligationsReversalID = id
			return err
		},
		Undo: func(ctx context.Context) error {
			return s.obligations.DeleteReversal(ctx, obligationsReversalID)
		},
	})
	sg.add(step{
		Name:        "read_obligations_reversal_id",
		Description: "could not obtain reversal id from obligations ledger",
		Do: func(ctx context.Context) error {
			if obligationsReversalID <= 0 {
				return errNoReversalID
			}
			return nil
		},
	})
	sg.add(step{
		Name:        "create_customer_reversal",
		Description: "could not create reversal in customer ledger",
		Do: func(ctx context.Context) error {
			return s.customer.CreateReversal(ctx, CustomerReversal{
				ID:                    req.ReversalID,
				ReversalDate:          req.ReversalDate,
				Amount:                payment.TotalAmount,
				ObligationsReversalID: obligationsReversalID,
				PayerCode:             req.PayerCode,
			})
		},
		Undo: func(ctx context.Context) error {
			return s.customer.DeleteReversal(ctx, req.ReversalID)
		},
	})
	sg.add(step{
		Name:        "mark_order_unpaid",
		Description: "could not update payment order in obligations ledger",
		Do: func(ctx context.Context) error {
			return s.obligations.SetOrderPaid(ctx, payment.OrderCode, false)
		},
		Undo: func(ctx context.Context) error {
			return s.obligations.SetOrderPaid(ctx, payment.OrderCode, true)
		},
	})
	sg.add(step{
		Name:        "delete_payment_details",
		Description: "could not delete payment details in customer ledger",
		Do: func(ctx context.Context) error {
			return s.customer.DeletePaymentDetails(ctx, req.PaymentID)
		},
		Undo: func(ctx context.Context) error {
			if len(details) == 0 {
				return nil
			}
			return s.customer.CreatePaymentDetails(ctx, req.PaymentID, details)
		},
	})
	sg.add(step{
		Name:        "delete_payment",
		Description: "could not delete payment in customer ledger",
		Do: func(ctx context.Context) error {
			return s.customer.DeletePayment(ctx, req.PaymentID)
		},
	})

	if err := sg.run(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("payment reversed",
		"order", payment.OrderCode,
		"transaction_id", req.PaymentID,
		"reversal_id", req.ReversalID,
		"obligations_reversal_id", obligationsReversalID,
	)
	return &ReversalReceipt{
		ReversalID:            req.ReversalID,
		PaymentID:             req.PaymentID,
		ObligationsReversalID: obligationsReversalID,
		OrderCode:             payment.OrderCode,
		Amount:                payment.TotalAmount,
	}, nil
}
