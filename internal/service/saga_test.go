package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingStep(name string, log *[]string, fail error, undoErr error) sagaStep {
	return sagaStep{
		name: name,
		forward: func(context.Context) error {
			*log = append(*log, "do:"+name)
			return fail
		},
		compensate: func(context.Context) error {
			*log = append(*log, "undo:"+name)
			return undoErr
		},
	}
}

func TestRunSagaSucceeds(t *testing.T) {
	var log []string
	failure := runSaga(context.Background(), []sagaStep{
		recordingStep("a", &log, nil, nil),
		recordingStep("b", &log, nil, nil),
	})
	assert.Nil(t, failure)
	assert.Equal(t, []string{"do:a", "do:b"}, log)
}

func TestRunSagaCompensatesInReverse(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	undoFailed := errors.New("undo failed")

	failure := runSaga(context.Background(), []sagaStep{
		recordingStep("a", &log, nil, nil),
		recordingStep("b", &log, nil, undoFailed),
		{name: "no-undo", forward: func(context.Context) error { log = append(log, "do:no-undo"); return nil }},
		recordingStep("c", &log, boom, nil),
		recordingStep("d", &log, nil, nil),
	})

	require.NotNil(t, failure)
	assert.Equal(t, "c", failure.failedStep)
	assert.ErrorIs(t, failure, boom)
	assert.Equal(t, []string{"do:a", "do:b", "do:no-undo", "do:c", "undo:b", "undo:a"}, log)
	require.Len(t, failure.compensations, 2)
	assert.ErrorIs(t, failure.compensations[0].err, undoFailed)
	assert.Equal(t, []string{"a"}, failure.undone())
}

func TestRunSagaCompensatesAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var undoCtxErr error

	failure := runSaga(ctx, []sagaStep{
		{
			name:    "create",
			forward: func(context.Context) error { return nil },
			compensate: func(c context.Context) error {
				undoCtxErr = c.Err()
				return nil
			},
		},
		{
			name: "write",
			forward: func(context.Context) error {
				cancel()
				return context.Canceled
			},
		},
	})

	require.NotNil(t, failure)
	assert.NoError(t, undoCtxErr)
}
