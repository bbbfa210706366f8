package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationInvalidLat, http.StatusBadRequest},
		{ErrCodeValidationInvalidLon, http.StatusBadRequest},
		{ErrCodeValidationInvalidDate, http.StatusBadRequest},
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationBatchSize, http.StatusBadRequest},
		{ErrCodeInsufficientData, http.StatusUnprocessableEntity},
		{ErrCodeComputation, http.StatusUnprocessableEntity},
		{ErrCodeNoStations, http.StatusNotFound},
		{ErrCodeUpstreamTimeout, http.StatusGatewayTimeout},
		{ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrorCode("something_unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.HTTPStatus(), "code %s", tt.code)
	}
}

func TestAppErrorChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewAppError(ErrCodeUpstreamUnavailable, "observation source is unavailable", cause)

	assert.Equal(t, "upstream_unavailable: observation source is unavailable", err.Error())
	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus())
	assert.ErrorIs(t, err, cause)
}

func TestCodeOf(t *testing.T) {
	appErr := NewAppError(ErrCodeInsufficientData, "too few observations", nil)
	assert.Equal(t, ErrCodeInsufficientData, CodeOf(appErr))

	// Wrapped AppErrors are still found through the chain.
	wrapped := fmt.Errorf("pipeline stage: %w", appErr)
	assert.Equal(t, ErrCodeInsufficientData, CodeOf(wrapped))

	assert.Equal(t, ErrCodeInternalUnexpected, CodeOf(errors.New("plain")))
	assert.Equal(t, ErrCodeInternalUnexpected, CodeOf(nil))
}

func TestStressCategorySeverityOrdering(t *testing.T) {
	ordered := []StressCategory{StressSafe, StressSemiCritical, StressCritical, StressOverExploited}
	for i := 1; i < len(ordered); i++ {
		require.True(t, ordered[i].MoreSevereThan(ordered[i-1]))
		require.False(t, ordered[i-1].MoreSevereThan(ordered[i]))
	}
}
