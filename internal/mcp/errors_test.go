package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	smerrors "github.com/Aman-CERP/smre/internal/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"wrapped cancel", fmt.Errorf("search: %w", context.Canceled), ErrCodeTimeout},
		{"validation", smerrors.ValidationError("k must be positive", nil), ErrCodeInvalidParams},
		{"index missing", smerrors.IndexMissingError("/tmp/idx", nil), ErrCodeIndexNotFound},
		{"index corrupt", smerrors.IndexCorruptError("bad blob", nil), ErrCodeIndexNotFound},
		{"remote", smerrors.RemoteBackendError("503", nil), ErrCodeBackendFailed},
		{"remote timeout", smerrors.New(smerrors.ErrCodeRemoteTimeout, "slow", nil), ErrCodeTimeout},
		{"internal", smerrors.New(smerrors.ErrCodeSearchFailed, "boom", nil), ErrCodeInternalError},
		{"plain", errors.New("x"), ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	got := MapError(smerrors.IndexMissingError("/tmp/idx", nil))

	assert.Contains(t, got.Message, "smre index")
	assert.Contains(t, got.Error(), "MCP error -32001")
}
