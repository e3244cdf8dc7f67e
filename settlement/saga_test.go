package settlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSaga(failed *[]string) *saga {
	return &saga{
		workflow: "test",
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		onFail: func(_, step string) {
			*failed = append(*failed, step)
		},
	}
}

// recorder builds steps that log their Do/Undo calls in order.
type recorder struct {
	calls []string
}

func (r *recorder) step(name string, doErr, undoErr error) step {
	return step{
		Name:        name,
		Description: "could not " + name,
		Do: func(context.Context) error {
			r.calls = append(r.calls, "do:"+name)
			return doErr
		},
		Undo: func(context.Context) error {
			r.calls = append(r.calls, "undo:"+name)
			return undoErr
		},
	}
}

func TestSaga_AllStepsSucceed(t *testing.T) {
	var failed []string
	rec := &recorder{}
	sg := newTestSaga(&failed)
	sg.add(rec.step("a", nil, nil))
	sg.add(rec.step("b", nil, nil))

	require.NoError(t, sg.run(context.Background()))
	assert.Equal(t, []string{"do:a", "do:b"}, rec.calls)
	assert.Empty(t, failed)
}

func TestSaga_FailureCompensatesInReverse(t *testing.T) {
	// GIVEN: Three steps where the third fails
	// WHEN: The saga runs
	// THEN: The first two are undone newest first, the failed one is not

	var failed []string
	rec := &recorder{}
	boom := errors.New("boom")
	sg := newTestSaga(&failed)
	sg.add(rec.step("a", nil, nil))
	sg.add(rec.step("b", nil, nil))
	sg.add(rec.step("c", boom, nil))

	err := sg.run(context.Background())

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "c", stepErr.Step)
	assert.Equal(t, "could not c", stepErr.Description)
	assert.True(t, stepErr.Compensated)
	assert.NoError(t, stepErr.CompensationErr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"do:a", "do:b", "do:c", "undo:b", "undo:a"}, rec.calls)
	assert.Equal(t, []string{"c"}, failed)
}

func TestSaga_UndoFailureDoesNotStopCompensation(t *testing.T) {
	var failed []string
	rec := &recorder{}
	undoErr := errors.New("undo b")
	sg := newTestSaga(&failed)
	sg.add(rec.step("a", nil, nil))
	sg.add(rec.step("b", nil, undoErr))
	sg.add(rec.step("c", errors.New("boom"), nil))

	err := sg.run(context.Background())

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.False(t, stepErr.Compensated)
	assert.ErrorIs(t, stepErr.CompensationErr, undoErr)
	assert.Equal(t, []string{"do:a", "do:b", "do:c", "undo:b", "undo:a"}, rec.calls)
}

func TestSaga_UndoIgnoresCallerCancellation(t *testing.T) {
	// GIVEN: The caller's context is cancelled while a step runs
	// THEN: Undo still sees a live context

	ctx, cancel := context.WithCancel(context.Background())
	var undoCtxErr error
	var failed []string
	sg := newTestSaga(&failed)
	sg.add(step{
		Name: "write",
		Do:   func(context.Context) error { return nil },
		Undo: func(ctx context.Context) error {
			undoCtxErr = ctx.Err()
			return nil
		},
	})
	sg.add(step{
		Name: "cancelled",
		Do: func(ctx context.Context) error {
			cancel()
			return ctx.Err()
		},
	})

	err := sg.run(ctx)

	require.Error(t, err)
	assert.NoError(t, undoCtxErr)
}

func TestSaga_StepsWithoutUndoAreSkipped(t *testing.T) {
	var failed []string
	rec := &recorder{}
	sg := newTestSaga(&failed)
	sg.add(step{Name: "check", Do: func(context.Context) error { return nil }})
	sg.add(rec.step("b", errors.New("boom"), nil))

	err := sg.run(context.Background())

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.True(t, stepErr.Compensated)
	assert.Equal(t, []string{"do:b"}, rec.calls)
}
