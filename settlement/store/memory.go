// Package store provides in-memory ledger clients.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/settlement-bridge/settlement"
)

// =============================================================================
// FAULT INJECTION
// =============================================================================

// faults makes selected operations fail, keyed by method name
// (e.g. "SetOrderPaid").
type faults struct {
	mu     sync.Mutex
	failOn map[string]error
}

// FailOn makes every later call to op return err. A nil err clears it.
func (f *faults) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == nil {
		f.failOn = make(map[string]error)
	}
	if err == nil {
		delete(f.failOn, op)
		return
	}
	f.failOn[op] = err
}

func (f *faults) fault(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failOn[op]
}

// =============================================================================
// CUSTOMER LEDGER
// =============================================================================

// Customer is an in-memory settlement.CustomerLedger.
type Customer struct {
	faults

	mu        sync.RWMutex
	payers    map[string]settlement.Payer
	payments  map[int64]settlement.Payment
	details   map[int64][]settlement.PaymentDetail
	reversals map[int64]settlement.CustomerReversal
	nextTxID  int64
}

func NewCustomer() *Customer {
	return &Customer{
		payers:    make(map[string]settlement.Payer),
		payments:  make(map[int64]settlement.Payment),
		details:   make(map[int64][]settlement.PaymentDetail),
		reversals: make(map[int64]settlement.CustomerReversal),
	}
}

// AddPayer registers a payer. Payers are owned by the customer ledger, so
// this exists for tests and seeding only.
func (c *Customer) AddPayer(p settlement.Payer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payers[p.Code] = p
}

// SavePayer is AddPayer for seeding code that also targets the SQL stores.
func (c *Customer) SavePayer(_ context.Context, p settlement.Payer) error {
	c.AddPayer(p)
	return nil
}

func (c *Customer) Ping(context.Context) error { return c.fault("Ping") }
func (c *Customer) Close() error                { return nil }

func (c *Customer) GetPayer(_ context.Context, code string) (*settlement.Payer, error) {
	if err := c.fault("GetPayer"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.payers[code]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *Customer) ReversalExists(_ context.Context, reversalID int64) (bool, error) {
	if err := c.fault("ReversalExists"); err != nil {
		return false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.reversals[reversalID]
	return ok, nil
}

// Reversal returns a stored reversal, for assertions.
func (c *Customer) Reversal(reversalID int64) (settlement.CustomerReversal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.reversals[reversalID]
	return r, ok
}

func (c *Customer) GetPayment(_ context.Context, transactionID int64) (*settlement.Payment, error) {
	if err := c.fault("GetPayment"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.payments[transactionID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// PaymentCount returns the number of stored payments, for assertions.
func (c *Customer) PaymentCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.payments)
}

func (c *Customer) ListPaymentDetails(_ context.Context, transactionID int64) ([]settlement.PaymentDetail, error) {
	if err := c.fault("ListPaymentDetails"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := append([]settlement.PaymentDetail(nil), c.details[transactionID]...)
	sort.Slice(result, func(i, j int) bool {
		return result[i].InstallmentNumber < result[j].InstallmentNumber
	})
	return result, nil
}

func (c *Customer) CreatePayment(_ context.Context, p settlement.Payment) (int64, error) {
	if err := c.fault("CreatePayment"); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextTxID++
	p.TransactionID = c.nextTxID
	c.payments[p.TransactionID] = p
	return p.TransactionID, nil
}

func (c *Customer) CreatePaymentDetails(_ context.Context, transactionID int64, details []settlement.PaymentDetail) error {
	if err := c.fault("CreatePaymentDetails"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range details {
		d.TransactionID = transactionID
		c.details[transactionID] = append(c.details[transactionID], d)
	}
	return nil
}

func (c *Customer) DeletePaymentDetails(_ context.Context, transactionID int64) error {
	if err := c.fault("DeletePaymentDetails"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.details, transactionID)
	return nil
}

func (c *Customer) DeletePayment(_ context.Context, transactionID int64) error {
	if err := c.fault("DeletePayment"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.payments, transactionID)
	return nil
}

func (c *Customer) CreateReversal(_ context.Context, r settlement.CustomerReversal) error {
	if err := c.fault("CreateReversal"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.reversals[r.ID]; ok {
		return settlement.ErrDuplicateReversal
	}
	c.reversals[r.ID] = r
	return nil
}

func (c *Customer) DeleteReversal(_ context.Context, reversalID int64) error {
	if err := c.fault("DeleteReversal"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.reversals, reversalID)
	return nil
}

// =============================================================================
// OBLIGATIONS LEDGER
// =============================================================================

// Obligations is an in-memory settlement.ObligationsLedger.
type Obligations struct {
	faults

	mu           sync.RWMutex
	obligations  map[int64]settlement.Obligation
	installments map[int64][]settlement.Installment
	orders       map[string]settlement.Order
	lines        map[int64]string // obligation id -> order code
	reversals    map[int64]settlement.OrderReversal
	nextRevID    int64
}

func NewObligations() *Obligations {
	return &Obligations{
		obligations:  make(map[int64]settlement.Obligation),
		installments: make(map[int64][]settlement.Installment),
		orders:       make(map[string]settlement.Order),
		lines:        make(map[int64]string),
		reversals:    make(map[int64]settlement.OrderReversal),
	}
}

// AddObligation registers an obligation with an optional installment
// schedule. Obligations are created outside this system, so this exists
// for tests and seeding only.
func (o *Obligations) AddObligation(ob settlement.Obligation, installments ...settlement.Installment) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.obligations[ob.ID] = ob
	if len(installments) > 0 {
		o.installments[ob.ID] = append([]settlement.Installment(nil), installments...)
	}
}

// SaveObligation is AddObligation for seeding code.
func (o *Obligations) SaveObligation(_ context.Context, ob settlement.Obligation, installments []settlement.Installment) error {
	o.AddObligation(ob, installments...)
	return nil
}

func (o *Obligations) Ping(context.Context) error { return o.fault("Ping") }
func (o *Obligations) Close() error                { return nil }

func (o *Obligations) ListUnbilledObligations(_ context.Context, unitCode string) ([]settlement.Obligation, error) {
	if err := o.fault("ListUnbilledObligations"); err != nil {
		return nil, err
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	var result []settlement.Obligation
	for id, ob := range o.obligations {
		if _, billed := o.lines[id]; billed || ob.UnitCode != unitCode {
			continue
		}
		result = append(result, ob)
	}
	sortObligations(result)
	return result, nil
}

func (o *Obligations) CountOrders(_ context.Context) (int, error) {
	if err := o.fault("CountOrders"); err != nil {
		return 0, err
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.orders), nil
}

func (o *Obligations) CreateOrder(_ context.Context, order settlement.Order, obligationIDs []int64) error {
	if err := o.fault("CreateOrder"); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	// Check everything first so the write is all-or-nothing.
	if _, ok := o.orders[order.Code]; ok {
		return settlement.ErrOrderConflict
	}
	for _, id := range obligationIDs {
		if _, billed := o.lines[id]; billed {
			return settlement.ErrOrderConflict
		}
	}

	o.orders[order.Code] = order
	for _, id := range obligationIDs {
		o.lines[id] = order.Code
	}
	return nil
}

func (o *Obligations) GetOrder(_ context.Context, code string) (*settlement.Order, error) {
	if err := o.fault("GetOrder"); err != nil {
		return nil, err
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	order, ok := o.orders[code]
	if !ok {
		return nil, nil
	}
	return &order, nil
}

// OrderLineCount returns the number of obligations linked to an order, for
// assertions.
func (o *Obligations) OrderLineCount(code string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	n := 0
	for _, c := range o.lines {
		if c == code {
			n++
		}
	}
	return n
}

func (o *Obligations) ListOrderObligations(_ context.Context, code string) ([]settlement.Obligation, error) {
	if err := o.fault("ListOrderObligations"); err != nil {
		return nil, err
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	var result []settlement.Obligation
	for id, c := range o.lines {
		if c == code {
			result = append(result, o.obligations[id])
		}
	}
	sortObligations(result)
	return result, nil
}

func (o *Obligations) ListInstallments(_ context.Context, obligationID int64) ([]settlement.Installment, error) {
	if err := o.fault("ListInstallments"); err != nil {
		return nil, err
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	result := append([]settlement.Installment(nil), o.installments[obligationID]...)
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result, nil
}

func (o *Obligations) SetOrderPaid(_ context.Context, code string, paid bool) error {
	if err := o.fault("SetOrderPaid"); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	order, ok := o.orders[code]
	if !ok || order.Paid == paid {
		if paid {
			return settlement.ErrAlreadyPaid
		}
		return settlement.ErrOrderNotPaid
	}
	order.Paid = paid
	o.orders[code] = order
	return nil
}

func (o *Obligations) CreateReversal(_ context.Context, r settlement.OrderReversal) (int64, error) {
	if err := o.fault("CreateReversal"); err != nil {
		return 0, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextRevID++
	r.ID = o.nextRevID
	o.reversals[r.ID] = r
	return r.ID, nil
}

// Reversal returns a stored reversal, for assertions.
func (o *Obligations) Reversal(id int64) (settlement.OrderReversal, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	r, ok := o.reversals[id]
	return r, ok
}

// ReversalCount returns the number of stored reversals, for assertions.
func (o *Obligations) ReversalCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.reversals)
}

func (o *Obligations) DeleteReversal(_ context.Context, id int64) error {
	if err := o.fault("DeleteReversal"); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.reversals, id)
	return nil
}

func sortObligations(obs []settlement.Obligation) {
	sort.Slice(obs, func(i, j int) bool { return obs[i].ID < obs[j].ID })
}

var (
	_ settlement.CustomerLedger    = (*Customer)(nil)
	_ settlement.ObligationsLedger = (*Obligations)(nil)
)
