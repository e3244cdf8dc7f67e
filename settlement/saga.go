/*
saga.go - Ordered forward steps with compensation

PURPOSE:
  Settlement and reversal write to both ledgers without a shared
  transaction. Each is expressed as a saga: an ordered list of steps, each
  with an optional Undo. When a step fails, completed steps are undone in
  reverse order and the caller receives a StepError naming the failed step.

GUARANTEES:
  - Steps run strictly in order; a step starts only after the previous one
    returned.
  - No step is retried.
  - Undo runs for every completed step that has one, even if an earlier
    Undo failed. All Undo failures are joined into CompensationErr.
  - Undo runs with a context detached from the caller's cancellation, so a
    client disconnect does not abandon compensation halfway.

SEE ALSO:
  - errors.go: StepError
  - payment.go, reversal.go: saga definitions
*/
package settlement

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// compensationTimeout bounds the whole undo phase of one saga run.
const compensationTimeout = 30 * time.Second

type step struct {
	Name        string
	Description string
	Do          func(ctx context.Context) error
	Undo        func(ctx context.Context) error
}

type saga struct {
	workflow string
	logger   *slog.Logger
	steps    []step
	onFail   func(workflow, step string)
}

func (s *saga) add(st step) {
	s.steps = append(s.steps, st)
}

// run executes the steps. On failure it compensates and returns *StepError.
func (s *saga) run(ctx context.Context) error {
	for i, st := range s.steps {
		err := st.Do(ctx)
		if err == nil {
			continue
		}

		if s.onFail != nil {
			s.onFail(s.workflow, st.Name)
		}
		stepErr := &StepError{
			Workflow:    s.workflow,
			Step:        st.Name,
			Description: st.Description,
			Err:         err,
		}
		stepErr.CompensationErr = s.compensate(ctx, s.steps[:i])
		stepErr.Compensated = stepErr.CompensationErr == nil

		s.logger.Warn("saga step failed",
			"workflow", s.workflow,
			"step", st.Name,
			"error", err,
			"compensated", stepErr.Compensated,
		)
		if stepErr.CompensationErr != nil {
			s.logger.Error("saga compensation incomplete, manual reconciliation required",
				"workflow", s.workflow,
				"step", st.Name,
				"error", stepErr.CompensationErr,
			)
		}
		return stepErr
	}
	return nil
}

func (s *saga) compensate(ctx context.Context, done []step) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		st := done[i]
		if st.Undo == nil {
			continue
		}
		if err := st.Undo(ctx); err != nil {
			s.logger.Error("undo failed", "workflow", s.workflow, "step", st.Name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
