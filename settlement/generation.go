package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// GenerateOrderRequest asks for a payment order covering every unbilled
// obligation of a unit.
type GenerateOrderRequest struct {
	PayerName string
	PayerCode string
	UnitCode  string
}

// GenerateOrder aggregates the unit's unbilled obligations into one payable
// order and returns it.
//
// Steps:
//  1. List the unit's obligations not referenced by any order-line.
//  2. None -> ErrNoBillableObligations.
//  3. Sum their outstanding amounts.
//  4. Number the order from the current order count.
//  5. Write the order and its order-lines as one confirmed write.
func (s *Service) GenerateOrder(ctx context.Context, req GenerateOrderRequest) (order *Order, err error) {
	defer func() { s.finish(WorkflowGenerate, err) }()

	obligations, err := s.obligations.ListUnbilledObligations(ctx, req.UnitCode)
	if err != nil {
		return nil, unavailable("obligations", err)
	}
	if len(obligations) == 0 {
		return nil, ErrNoBillableObligations
	}

	total := decimal.Zero
	ids := make([]int64, len(obligations))
	for i, o := range obligations {
		total = total.Add(o.Amount)
		ids[i] = o.ID
	}

	count, err := s.obligations.CountOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCountUnavailable, err)
	}

	o := Order{
		Code:      NextOrderCode(count),
		PayerName: req.PayerName,
		PayerCode: req.PayerCode,
		UnitCode:  req.UnitCode,
		Amount:    total,
		Paid:      false,
	}

	sg := s.newSaga(WorkflowGenerate)
	sg.add(step{
		Name:        "create_order",
		Description: "could not create payment order",
		Do: func(ctx context.Context) error {
			return s.obligations.CreateOrder(ctx, o, ids)
		},
	})
	if err := sg.run(ctx); err != nil {
		if errors.Is(err, ErrOrderConflict) {
			return nil, ErrOrderConflict
		}
		return nil, err
	}

	s.logger.Info("payment order generated",
		"order", o.Code,
		"unit", o.UnitCode,
		"obligations", len(ids),
		"amount", o.Amount.String(),
	)
	return &o, nil
}
