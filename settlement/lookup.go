package settlement

import (
	"context"
	"fmt"
)

// OrderState returns the paid flag of an order.
func (s *Service) OrderState(ctx context.Context, code string) (paid bool, err error) {
	defer func() { s.finish(WorkflowOrderState, err) }()

	order, err := s.obligations.GetOrder(ctx, code)
	if err != nil {
		return false, unavailable("order", err)
	}
	if order == nil {
		return false, ErrOrderNotFound
	}
	return order.Paid, nil
}

// OrderDetail expands an unpaid order into billable line items for a payer.
//
// The payer must exist in the customer ledger and the order must exist
// unpaid in the obligations ledger. Obligations are returned by ascending
// id, installments by ascending number. An obligation with installments
// reports only the installments; one without reports its flat amount.
func (s *Service) OrderDetail(ctx context.Context, payerCode, orderCode string) (detail *OrderDetail, err error) {
	defer func() { s.finish(WorkflowOrderDetail, err) }()

	payer, err := s.requirePayer(ctx, payerCode)
	if err != nil {
		return nil, err
	}

	order, err := s.obligations.GetOrder(ctx, orderCode)
	if err != nil {
		return nil, unavailable("order", err)
	}
	if order == nil || order.Paid {
		return nil, ErrOrderNotFound
	}

	obligations, err := s.obligations.ListOrderObligations(ctx, orderCode)
	if err != nil {
		return nil, unavailable("obligations", err)
	}
	if len(obligations) == 0 {
		return nil, fmt.Errorf("%w %s", ErrNoOrderObligations, orderCode)
	}

	items := make([]LineItem, 0, len(obligations))
	for _, o := range obligations {
		installments, err := s.obligations.ListInstallments(ctx, o.ID)
		if err != nil {
			return nil, unavailable("installments", err)
		}

		item := LineItem{ObligationID: o.ID, UnitCode: o.UnitCode}
		if len(installments) > 0 {
			item.Installments = installments
		} else {
			amount := o.Amount
			item.Amount = &amount
		}
		items = append(items, item)
	}

	return &OrderDetail{Payer: *payer, Order: *order, Items: items}, nil
}
