/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures exchanged with payment channels. Field names
  are camelCase to stay wire compatible with existing channel integrations.

NAMING CONVENTION:
  - *DTO: nested types inside a response
  - *Request: request body types from clients
  - *Response: response bodies

TYPES:
  Payment orders (obligations group):
    GenerateOrderRequest, GenerateOrderResponse, OrderStateResponse

  Customer group:
    SearchPaymentsRequest, SearchPaymentsResponse, LineItemDTO, InstallmentDTO
    MakePaymentRequest, PaymentDetailDTO, MakePaymentResponse
    ReversalRequest, ReversalResponse

AMOUNTS:
  decimal.Decimal accepts both JSON numbers and quoted strings on input and
  is written as a bare number on output.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.
  Pointer fields distinguish "absent" from zero.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/settlement-bridge/settlement"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// =============================================================================
// PAYMENT ORDERS
// =============================================================================

// GenerateOrderRequest asks for a payment order over a unit's unbilled
// obligations.
type GenerateOrderRequest struct {
	PayerName string `json:"payerName"`
	PayerID   string `json:"payerId"`
	UnitCode  string `json:"unitCode"`
}

// GenerateOrderResponse carries the new order code, or "" on any failure.
type GenerateOrderResponse struct {
	Order string `json:"order"`
}

// OrderStateResponse reports whether an order is paid.
type OrderStateResponse struct {
	OrderState *bool `json:"orderState,omitempty"`
}

// =============================================================================
// LOOKUP
// =============================================================================

// SearchPaymentsRequest looks up an unpaid order for a payer.
type SearchPaymentsRequest struct {
	SearchCode string `json:"searchCode"` // payer code, at most 14 chars
	OrderCode  string `json:"orderCode"`  // exactly 3 chars
}

// SearchPaymentsResponse echoes the search codes and, on success, the
// billable view of the order.
type SearchPaymentsResponse struct {
	SearchCode    string           `json:"searchCode"`
	OrderCode     string           `json:"orderCode"`
	AmountDue     *decimal.Decimal `json:"amountDue,omitempty"`
	MinimumAmount *decimal.Decimal `json:"minimumAmount,omitempty"`
	FeeAmount     *decimal.Decimal `json:"feeAmount,omitempty"`
	PayerName     string           `json:"payerName,omitempty"`
	Items         []LineItemDTO    `json:"items,omitempty"`
}

// LineItemDTO is one obligation of the order. Either Amount or
// Installments is set.
type LineItemDTO struct {
	ObligationID int64            `json:"obligationId"`
	UnitCode     string           `json:"unitCode"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Installments []InstallmentDTO `json:"installments,omitempty"`
}

// InstallmentDTO is one entry of an obligation's schedule.
type InstallmentDTO struct {
	Number  int             `json:"number"`
	Detail  string          `json:"detail"`
	DueDate string          `json:"dueDate"`
	Amount  decimal.Decimal `json:"amount"`
	Fee     decimal.Decimal `json:"fee"`
}

// =============================================================================
// SETTLEMENT
// =============================================================================

// MakePaymentRequest settles an order.
type MakePaymentRequest struct {
	SearchCode      string             `json:"searchCode"`
	OrderCode       string             `json:"orderCode"`
	TotalAmount     *decimal.Decimal   `json:"totalAmount"`
	PaymentDate     string             `json:"paymentDate"`
	InvoiceName     string             `json:"invoiceName"`
	TaxID           string             `json:"taxId"`
	PaymentLocation string             `json:"paymentLocation"`
	PaymentDetails  []PaymentDetailDTO `json:"paymentDetails"`
}

// PaymentDetailDTO is one installment covered by a payment.
type PaymentDetailDTO struct {
	InstallmentNumber int             `json:"installmentNumber"`
	InstallmentAmount decimal.Decimal `json:"installmentAmount"`
}

// MakePaymentResponse carries the customer ledger transaction id, which is
// the paymentId of a later reversal.
type MakePaymentResponse struct {
	TransactionID int64 `json:"transactionId,omitempty"`
}

// =============================================================================
// REVERSAL
// =============================================================================

// ReversalRequest undoes a payment.
type ReversalRequest struct {
	SearchCode   string `json:"searchCode"`
	PaymentID    *int64 `json:"paymentId"`
	ReversalID   *int64 `json:"reversalId"`
	ReversalDate string `json:"reversalDate"` // exactly 8 chars
}

// ReversalResponse correlates both reversal records.
type ReversalResponse struct {
	SearchCode            string `json:"searchCode"`
	ReversalID            int64  `json:"reversalId,omitempty"`
	PaymentID             int64  `json:"paymentId,omitempty"`
	ObligationsReversalID int64  `json:"obligationsReversalId,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toSearchPaymentsResponse(req SearchPaymentsRequest, d *settlement.OrderDetail) SearchPaymentsResponse {
	amount := d.Order.Amount
	zero := decimal.Zero
	items := make([]LineItemDTO, len(d.Items))
	for i, item := range d.Items {
		items[i] = LineItemDTO{
			ObligationID: item.ObligationID,
			UnitCode:     item.UnitCode,
			Amount:       item.Amount,
		}
		for _, inst := range item.Installments {
			items[i].Installments = append(items[i].Installments, InstallmentDTO{
				Number:  inst.Number,
				Detail:  inst.Description,
				DueDate: inst.DueDate,
				Amount:  inst.Amount,
				Fee:     inst.Fee,
			})
		}
	}
	return SearchPaymentsResponse{
		SearchCode:    req.SearchCode,
		OrderCode:     req.OrderCode,
		AmountDue:     &amount,
		MinimumAmount: &zero,
		FeeAmount:     &zero,
		PayerName:     d.Payer.Name,
		Items:         items,
	}
}

func toInstallmentPayments(details []PaymentDetailDTO) []settlement.InstallmentPayment {
	if len(details) == 0 {
		return nil
	}
	result := make([]settlement.InstallmentPayment, len(details))
	for i, d := range details {
		result[i] = settlement.InstallmentPayment{Number: d.InstallmentNumber, Amount: d.InstallmentAmount}
	}
	return result
}
