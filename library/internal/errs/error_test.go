package errs_test

import (
	"fmt"
	"testing"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestError_Is(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same kind sentinel",
			err:    errs.NotFound("book not found"),
			target: errs.ErrNotFound,
			want:   true,
		},
		{
			name:   "wrapped",
			err:    fmt.Errorf("create loan: %w", errs.Conflict("book is not available for loan")),
			target: errs.ErrConflict,
			want:   true,
		},
		{
			name:   "other kind",
			err:    errs.Forbidden("you can only cancel your own reservations"),
			target: errs.ErrConflict,
			want:   false,
		},
		{
			name:   "same kind other message",
			err:    errs.Conflict("reservation is not active"),
			target: errs.Conflict("reservation has expired"),
			want:   false,
		},
		{
			name:   "plain error",
			err:    errors.New("db internal"),
			target: errs.ErrNotFound,
			want:   false,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()
	require.Equal(t, errs.KindValidation, errs.KindOf(errors.Wrap(errs.Validation("bad"), "ctx")))
	require.Equal(t, errs.KindInternal, errs.KindOf(errors.New("boom")))
	require.Equal(t, errs.KindInternal, errs.KindOf(nil))
	require.Equal(t, "not found", errs.ErrNotFound.Error())
	require.Equal(t, "reservation has expired", errs.Conflict("reservation has expired").Error())
}
