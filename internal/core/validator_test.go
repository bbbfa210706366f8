package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundwatch/internal/types"
)

type pointRequest struct {
	Lat float64 `validate:"gte=-90,lte=90"`
	Lon float64 `validate:"gte=-180,lte=180"`
}

type batchShape struct {
	Points []pointRequest `validate:"required,max=2,dive"`
}

func TestValidatorStruct(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Struct(pointRequest{Lat: 28.6, Lon: 77.2}))

	err := v.Struct(pointRequest{Lat: 95, Lon: 77.2})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationInvalidLat, types.CodeOf(err))

	err = v.Struct(pointRequest{Lat: 28.6, Lon: -200})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationInvalidLon, types.CodeOf(err))
}

func TestValidatorBatchLimits(t *testing.T) {
	v := NewValidator()

	err := v.Struct(batchShape{})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationMissingField, types.CodeOf(err))

	err = v.Struct(batchShape{Points: []pointRequest{{}, {}, {}}})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationBatchSize, types.CodeOf(err))
}
