package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpinnerModelShowsLabelUntilWorkIsDone(t *testing.T) {
	workErr := errors.New("dial refused")
	model := newSpinnerModel("Connecting to penphin...", nil)

	assert.Contains(t, model.View(), "Connecting to penphin...")

	next, cmd := model.Update(workDoneMsg{err: workErr})
	require.NotNil(t, cmd)

	done, ok := next.(spinnerModel)
	require.True(t, ok)
	assert.True(t, done.done)
	assert.Empty(t, done.View())
	assert.ErrorIs(t, done.err, workErr)
}

func TestRunWithSpinnerReturnsWorkError(t *testing.T) {
	workErr := errors.New("mind unreachable")
	calls := 0

	err := runWithSpinner(context.Background(), &bytes.Buffer{}, "Connecting...", func(context.Context) error {
		calls++
		return workErr
	})

	require.ErrorIs(t, err, workErr)
	assert.Equal(t, 1, calls)
}
