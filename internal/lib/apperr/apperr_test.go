package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("stripe: connection reset")

	tests := []struct {
		name    string
		err     error
		want    Kind
		wantMsg string
	}{
		{
			name:    "прямая ошибка",
			err:     New(InvalidArgument, "priceId is required"),
			want:    InvalidArgument,
			wantMsg: "priceId is required",
		},
		{
			name:    "обёрнутая через fmt.Errorf",
			err:     fmt.Errorf("billing.Reactivate: %w", New(FailedPrecondition, "no subscription on file")),
			want:    FailedPrecondition,
			wantMsg: "no subscription on file",
		},
		{
			name:    "ошибка с причиной",
			err:     Wrap(Internal, "failed to sync subscription", cause),
			want:    Internal,
			wantMsg: "failed to sync subscription",
		},
		{
			name:    "обычная ошибка",
			err:     cause,
			want:    Internal,
			wantMsg: "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
			assert.Equal(t, tt.wantMsg, MessageOf(tt.err))
		})
	}
}

func TestWrap_Unwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := Wrap(Internal, "failed to create checkout session", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to create checkout session: timeout", err.Error())
}
