package validation

import (
	"errors"
	"testing"

	"github.com/antomihe/SustainableCity/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Location string   `json:"location" validate:"required"`
	Fill     *int     `json:"fillLevel" validate:"omitnil,min=0,max=100"`
	Type     string   `json:"type" validate:"omitempty,container_type"`
	Statuses []string `json:"statuses" validate:"omitempty,dive,container_status"`
}

func TestStructValid(t *testing.T) {
	fill := 0
	assert.NoError(t, Struct(sample{Location: "x", Fill: &fill, Type: "PAPER", Statuses: []string{"OK", "FULL"}}))
}

func TestStructReportsFields(t *testing.T) {
	fill := 101
	err := Struct(sample{Fill: &fill, Type: "WOOD", Statuses: []string{"BROKEN"}})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	var e *apperr.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "is required", e.Fields["location"])
	assert.Equal(t, "must be at most 100", e.Fields["fillLevel"])
	assert.Contains(t, e.Fields["type"], "GENERAL")
	assert.Contains(t, e.Fields["statuses[0]"], "DAMAGED")
	assert.Contains(t, e.Message, "fillLevel must be at most 100")
}
