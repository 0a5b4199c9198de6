package model_test

import (
	"testing"
	"time"

	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestBookStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()
	tests := []struct {
		from, to model.BookStatus
		want     bool
	}{
		{model.BookAvailable, model.BookReserved, true},
		{model.BookAvailable, model.BookLoaned, true},
		{model.BookReserved, model.BookLoaned, true},
		{model.BookReserved, model.BookAvailable, true},
		{model.BookLoaned, model.BookAvailable, true},
		{model.BookLoaned, model.BookReserved, false},
		{model.BookReserved, model.BookReserved, false},
		{model.BookAvailable, model.BookAvailable, false},
		{"unknown", model.BookAvailable, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestReservationStatus_Terminal(t *testing.T) {
	t.Parallel()
	for _, st := range []model.ReservationStatus{model.ReservationCancelled, model.ReservationExpired, model.ReservationFulfilled} {
		require.True(t, st.IsTerminal())
		require.True(t, model.ReservationActive.CanTransitionTo(st))
		for _, next := range []model.ReservationStatus{model.ReservationActive, model.ReservationCancelled, model.ReservationExpired, model.ReservationFulfilled} {
			require.False(t, st.CanTransitionTo(next), "%s -> %s", st, next)
		}
	}
	require.False(t, model.ReservationActive.IsTerminal())
	require.False(t, model.ReservationActive.CanTransitionTo(model.ReservationActive))
}

func TestLoanStatus(t *testing.T) {
	t.Parallel()
	require.True(t, model.LoanActive.IsOpen())
	require.True(t, model.LoanOverdue.IsOpen())
	require.False(t, model.LoanReturned.IsOpen())

	require.True(t, model.LoanActive.CanTransitionTo(model.LoanOverdue))
	require.True(t, model.LoanActive.CanTransitionTo(model.LoanReturned))
	require.True(t, model.LoanOverdue.CanTransitionTo(model.LoanReturned))
	require.False(t, model.LoanOverdue.CanTransitionTo(model.LoanActive))
	require.False(t, model.LoanReturned.CanTransitionTo(model.LoanActive))
}

func TestReservation_IsExpiredAt(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	r := model.Reservation{ExpirationDate: now}
	require.False(t, r.IsExpiredAt(now))
	require.True(t, r.IsExpiredAt(now.Add(time.Second)))
}

func TestReservationEvent(t *testing.T) {
	t.Parallel()
	now := time.Now()
	r := model.Reservation{ID: uuid.New(), BookID: uuid.New(), UserID: uuid.New()}
	ev := model.ReservationEvent(model.EventReservationExpired, r, now)
	require.Equal(t, model.EventReservationExpired, ev.Type)
	require.Equal(t, r.BookID, ev.BookID)
	require.NotNil(t, ev.ReservationID)
	require.Equal(t, r.ID, *ev.ReservationID)
	require.Nil(t, ev.LoanID)
}
