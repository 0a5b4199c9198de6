package repository

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageOffset(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		page, limit int
		want        uint64
	}{
		{name: "first page", page: 1, limit: 10, want: 0},
		{name: "unset page", page: 0, limit: 10, want: 0},
		{name: "third page", page: 3, limit: 20, want: 40},
		{name: "huge page saturates", page: math.MaxInt64/100 + 2, limit: 100, want: math.MaxInt64},
		{name: "huge limit saturates", page: 3, limit: math.MaxInt64, want: math.MaxInt64},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, pageOffset(tt.page, tt.limit))
		})
	}
}
