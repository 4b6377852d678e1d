package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("accept: %w", Capacity("reserve_seats", "listing %s has %d seats left", "l1", 0))

	assert.ErrorIs(t, err, ErrCapacity)
	assert.NotErrorIs(t, err, ErrState)
	assert.Equal(t, ErrCapacity, KindOf(err))
	assert.Contains(t, err.Error(), "reserve_seats: listing l1 has 0 seats left")
}

func TestTransportKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Transport("push", cause)

	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "push: transport error: connection refused", err.Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Nil(t, KindOf(errors.New("boom")))
}
