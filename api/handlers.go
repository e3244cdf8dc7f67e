/*
handlers.go - HTTP API handlers for the settlement bridge

PURPOSE:
  Exposes the settlement workflows to payment channels. Handles HTTP
  request/response, JSON serialization, and delegates to settlement.Service.

ENDPOINTS:
  Payment orders:
    POST   /api/obligations/generate-payment-order       Generate order
    GET    /api/obligations/payment-order-state/{code}   Paid flag

  Customer (credential headers required):
    POST   /api/customer/condominium/search-payments     Order lookup
    POST   /api/customer/condominium/make-payment        Settlement
    DELETE /api/customer/condominium/payment-reversion   Reversal

  Operations:
    GET    /healthz                                      Ledger pings

REQUEST FLOW:
  1. Decode body (502 if malformed or a required field is absent)
  2. Check field formats (503)
  3. Call the workflow
  4. Map the outcome onto the result-code table (response.go)

SEE ALSO:
  - dto.go: Request/response data structures
  - response.go: Result codes and status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/warp/settlement-bridge/settlement"
)

// Field format limits checked before any ledger is queried.
const (
	searchCodeMaxLen   = settlement.MaxPayerCodeLen
	orderCodeLen       = 3
	paymentDateMaxLen  = 8
	reversalDateLength = 8
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger is a ledger client that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc         *settlement.Service
	logger      *slog.Logger
	customer    Pinger
	obligations Pinger
}

// NewHandler creates a new handler.
func NewHandler(svc *settlement.Service, logger *slog.Logger, customer, obligations Pinger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:         svc,
		logger:      logger,
		customer:    customer,
		obligations: obligations,
	}
}

// =============================================================================
// PAYMENT ORDERS
// =============================================================================

// GeneratePaymentOrder handles POST /api/obligations/generate-payment-order
func (h *Handler) GeneratePaymentOrder(w http.ResponseWriter, r *http.Request) {
	resp := GenerateOrderResponse{Order: ""}

	var req GenerateOrderRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, groupObligations, err, resp)
		return
	}
	if req.UnitCode == "" {
		h.fail(w, r, groupObligations, missing("unitCode"), resp)
		return
	}

	order, err := h.svc.GenerateOrder(r.Context(), settlement.GenerateOrderRequest{
		PayerName: req.PayerName,
		PayerCode: req.PayerID,
		UnitCode:  req.UnitCode,
	})
	if err != nil {
		h.fail(w, r, groupObligations, err, resp)
		return
	}

	resp.Order = order.Code
	writeResult(w, groupObligations, resultOf(CodeOK), resp)
}

// GetPaymentOrderState handles GET /api/obligations/payment-order-state/{code}
func (h *Handler) GetPaymentOrderState(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	paid, err := h.svc.OrderState(r.Context(), code)
	if err != nil {
		h.fail(w, r, groupObligations, err, OrderStateResponse{})
		return
	}

	writeResult(w, groupObligations, resultOf(CodeOK), OrderStateResponse{OrderState: &paid})
}

// =============================================================================
// CUSTOMER GROUP
// =============================================================================

// SearchPayments handles POST /api/customer/condominium/search-payments
func (h *Handler) SearchPayments(w http.ResponseWriter, r *http.Request) {
	var req SearchPaymentsRequest
	err := decodeBody(r, &req)
	resp := SearchPaymentsResponse{SearchCode: req.SearchCode, OrderCode: req.OrderCode}
	if err == nil {
		err = validateSearch(req)
	}
	if err != nil {
		h.fail(w, r, groupCustomer, err, resp)
		return
	}

	detail, err := h.svc.OrderDetail(r.Context(), req.SearchCode, req.OrderCode)
	if err != nil {
		h.fail(w, r, groupCustomer, err, resp)
		return
	}

	writeResult(w, groupCustomer, resultOf(CodeOK), toSearchPaymentsResponse(req, detail))
}

func validateSearch(req SearchPaymentsRequest) error {
	switch {
	case req.SearchCode == "":
		return missing("searchCode")
	case req.OrderCode == "":
		return missing("orderCode")
	case utf8.RuneCountInString(req.OrderCode) != orderCodeLen:
		return badFormat("orderCode", "must be exactly 3 characters")
	case utf8.RuneCountInString(req.SearchCode) > searchCodeMaxLen:
		return badFormat("searchCode", "must be at most 14 characters")
	}
	return nil
}

// MakePayment handles POST /api/customer/condominium/make-payment
func (h *Handler) MakePayment(w http.ResponseWriter, r *http.Request) {
	var req MakePaymentRequest
	err := decodeBody(r, &req)
	if err == nil {
		err = validatePayment(req)
	}
	if err != nil {
		h.fail(w, r, groupCustomer, err, MakePaymentResponse{})
		return
	}

	payment, err := h.svc.Settle(r.Context(), settlement.SettleRequest{
		PayerCode:       req.SearchCode,
		OrderCode:       req.OrderCode,
		TotalAmount:     *req.TotalAmount,
		PaymentDate:     req.PaymentDate,
		InvoiceName:     req.InvoiceName,
		TaxID:           req.TaxID,
		PaymentLocation: req.PaymentLocation,
		Installments:    toInstallmentPayments(req.PaymentDetails),
	})
	if err != nil {
		h.fail(w, r, groupCustomer, err, MakePaymentResponse{})
		return
	}

	writeResult(w, groupCustomer, resultOf(CodeOK), MakePaymentResponse{TransactionID: payment.TransactionID})
}

func validatePayment(req MakePaymentRequest) error {
	switch {
	case req.SearchCode == "":
		return missing("searchCode")
	case req.OrderCode == "":
		return missing("orderCode")
	case req.TotalAmount == nil:
		return missing("totalAmount")
	case req.PaymentDate == "":
		return missing("paymentDate")
	case utf8.RuneCountInString(req.SearchCode) > searchCodeMaxLen:
		return badFormat("searchCode", "must be at most 14 characters")
	case utf8.RuneCountInString(req.PaymentDate) > paymentDateMaxLen:
		return badFormat("paymentDate", "must be at most 8 characters")
	}
	return nil
}

// ReversePayment handles DELETE /api/customer/condominium/payment-reversion
func (h *Handler) ReversePayment(w http.ResponseWriter, r *http.Request) {
	var req ReversalRequest
	err := decodeBody(r, &req)
	resp := ReversalResponse{SearchCode: req.SearchCode}
	if err == nil {
		err = validateReversal(req)
	}
	if err != nil {
		h.fail(w, r, groupCustomer, err, resp)
		return
	}

	receipt, err := h.svc.Reverse(r.Context(), settlement.ReverseRequest{
		PayerCode:    req.SearchCode,
		PaymentID:    *req.PaymentID,
		ReversalID:   *req.ReversalID,
		ReversalDate: req.ReversalDate,
	})
	if err != nil {
		h.fail(w, r, groupCustomer, err, resp)
		return
	}

	resp.ReversalID = receipt.ReversalID
	resp.PaymentID = receipt.PaymentID
	resp.ObligationsReversalID = receipt.ObligationsReversalID
	writeResult(w, groupCustomer, resultOf(CodeOK), resp)
}

func validateReversal(req ReversalRequest) error {
	switch {
	case req.SearchCode == "":
		return missing("searchCode")
	case req.PaymentID == nil:
		return missing("paymentId")
	case req.ReversalID == nil:
		return missing("reversalId")
	case req.ReversalDate == "":
		return missing("reversalDate")
	case utf8.RuneCountInString(req.SearchCode) > searchCodeMaxLen:
		return badFormat("searchCode", "must be at most 14 characters")
	case utf8.RuneCountInString(req.ReversalDate) != reversalDateLength:
		return badFormat("reversalDate", "must be exactly 8 characters")
	}
	return nil
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	ledgers := map[string]string{}
	for name, p := range map[string]Pinger{"customer": h.customer, "obligations": h.obligations} {
		if err := p.Ping(r.Context()); err != nil {
			ledgers[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		ledgers[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"ledgers": ledgers})
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &settlement.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

func missing(field string) error {
	return &settlement.ValidationError{Field: field, Reason: "required"}
}

func badFormat(field, reason string) error {
	return &settlement.ValidationError{Field: field, Reason: reason, Format: true}
}

// fail maps err onto a result, logs it and writes the response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, g group, err error, body any) {
	res := resultFor(err)
	level := slog.LevelWarn
	switch res.Code {
	case CodeNothingToBill:
		level = slog.LevelInfo
	case CodeUnavailable:
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request not processed",
		"cid", CorrelationIDFromContext(r.Context()),
		"path", r.URL.Path,
		"code", res.Code,
		"description", res.Description,
		"error", err,
	)
	writeResult(w, g, res, body)
}
