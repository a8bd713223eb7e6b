package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromHTTPStatus_Classification(t *testing.T) {
	tests := []struct {
		status    int
		category  ErrorCategory
		retriable bool
	}{
		{http.StatusUnauthorized, CategoryAuthentication, false},
		{http.StatusForbidden, CategoryAuthentication, false},
		{http.StatusUnprocessableEntity, CategoryDeclined, false},
		{http.StatusTooManyRequests, CategorySystemError, true},
		{http.StatusBadGateway, CategorySystemError, true},
		{http.StatusBadRequest, CategoryInvalidRequest, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			pe := FromHTTPStatus(tt.status, "boom")
			assert.Equal(t, tt.category, pe.Category)
			assert.Equal(t, tt.retriable, pe.IsRetriable)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Contains(t, pe.Error(), "gateway: boom")
		})
	}
}

func TestIsRetriable_Wrapped(t *testing.T) {
	err := fmt.Errorf("send refund: %w", NewNetworkError(stderrors.New("connection reset")))
	assert.True(t, IsRetriable(err))
	assert.False(t, IsRetriable(stderrors.New("plain")))
	assert.False(t, IsRetriable(FromHTTPStatus(http.StatusBadRequest, "")))
}
