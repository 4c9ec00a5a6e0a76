package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfThroughWrapping(t *testing.T) {
	err := fmt.Errorf("report incident: %w", Conflict("container %s is damaged", "c1"))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, "report incident: container c1 is damaged", err.Error())
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindInternal, cause, "save container")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "save container: disk full", err.Error())
}

func TestValidationFields(t *testing.T) {
	err := ValidationFields("invalid input", map[string]string{"fillLevel": "must be at most 100"})
	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, KindValidation, e.Kind)
	assert.Equal(t, "must be at most 100", e.Fields["fillLevel"])
	assert.Equal(t, "validation_error", e.Kind.String())
}
