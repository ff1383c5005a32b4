package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("load: %w", NotFound("order", "4001"))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "load: order 4001 not found", err.Error())
}

func TestAdapterErrorUnwraps(t *testing.T) {
	err := &AdapterError{Kind: AdapterTimeout, Op: "fetch order", Err: context.DeadlineExceeded}

	assert.True(t, IsAdapter(fmt.Errorf("wrapped: %w", err)))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timeout")
}

func TestStorageNilPassthrough(t *testing.T) {
	assert.NoError(t, Storage("get order", nil))

	err := Storage("get order", errors.New("connection reset"))
	assert.True(t, IsStorage(err))
	assert.False(t, IsValidation(err))
}

func TestValidationMessage(t *testing.T) {
	assert.Equal(t, "order_ids: must not be empty", Validation("order_ids", "must not be empty").Error())
	assert.Equal(t, "bad request", (&ValidationError{Message: "bad request"}).Error())
}
