package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"typed", Validation("bad"), KindValidation},
		{"wrapped typed", fmt.Errorf("outer: %w", NewError(KindQuotaExhausted, "full", nil)), KindQuotaExhausted},
		{"sentinel", ErrInsufficientFunds, KindInsufficientFunds},
		{"wrapped sentinel", fmt.Errorf("db error: %w", ErrorNotFound), KindNotFound},
		{"version conflict", ErrVersionConflict, KindConflict},
		{"expired token", ErrTokenExpired, KindUnauthorized},
		{"unknown", errors.New("connection reset by peer"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestAsError_HidesInternalDetails(t *testing.T) {
	raw := errors.New("pq: password authentication failed for user postgres")

	e := AsError(raw)
	require.NotNil(t, e)
	assert.Equal(t, KindInternal, e.Kind)
	assert.Equal(t, "internal error", e.Message)
	assert.ErrorIs(t, e, raw, "original error kept for logging")
}

func TestAsError_KeepsTypedError(t *testing.T) {
	orig := NewError(KindInsufficientQuota, "need 2 bytes, 1 left", ErrInsufficientQuota)
	got := AsError(fmt.Errorf("upload: %w", orig))

	assert.Same(t, orig, got)
	assert.ErrorIs(t, got, ErrInsufficientQuota)
}

func TestAsError_Sentinel(t *testing.T) {
	got := AsError(ErrNoActivePlan)
	assert.Equal(t, KindNoActivePlan, got.Kind)
	assert.Equal(t, ErrNoActivePlan.Error(), got.Message)
	assert.Nil(t, AsError(nil))
}

func TestError_Format(t *testing.T) {
	assert.Equal(t, "validation: name is required", Validation("name is required").Error())
	assert.Equal(t, "not_found: file: not found", NotFound("file").Error())
}
