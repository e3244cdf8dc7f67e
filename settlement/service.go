package settlement

import (
	"context"
	"log/slog"
)

// Workflow names, used in logs, metrics and StepError.Workflow.
const (
	WorkflowGenerate    = "generate_order"
	WorkflowOrderState  = "order_state"
	WorkflowOrderDetail = "order_detail"
	WorkflowSettle      = "settle"
	WorkflowReverse     = "reverse"
)

// Observer receives workflow outcomes. The HTTP layer implements it with
// Prometheus counters.
type Observer interface {
	WorkflowFinished(workflow string, err error)
	StepFailed(workflow, step string)
}

type nopObserver struct{}

func (nopObserver) WorkflowFinished(string, error) {}
func (nopObserver) StepFailed(string, string)      {}

// Service runs the settlement workflows against both ledgers. It holds no
// per-request state and is safe for concurrent use.
type Service struct {
	customer    CustomerLedger
	obligations ObligationsLedger
	logger      *slog.Logger
	observer    Observer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver sets the outcome observer.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// NewService creates a Service over the two ledger clients.
func NewService(customer CustomerLedger, obligations ObligationsLedger, opts ...Option) *Service {
	s := &Service{
		customer:    customer,
		obligations: obligations,
		logger:      slog.Default(),
		observer:    nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) newSaga(workflow string) *saga {
	return &saga{
		workflow: workflow,
		logger:   s.logger,
		onFail:   s.observer.StepFailed,
	}
}

func (s *Service) finish(workflow string, err error) {
	s.observer.WorkflowFinished(workflow, err)
}

// requirePayer confirms the payer exists in the customer ledger.
func (s *Service) requirePayer(ctx context.Context, code string) (*Payer, error) {
	payer, err := s.customer.GetPayer(ctx, code)
	if err != nil {
		return nil, unavailable("payer", err)
	}
	if payer == nil {
		return nil, ErrPayerNotFound
	}
	return payer, nil
}
