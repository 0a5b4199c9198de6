package model

import (
	"time"

	"github.com/google/uuid"
)

// bookTransitions lists every status change the availability coordinator allows.
var bookTransitions = map[BookStatus][]BookStatus{
	BookAvailable: {BookReserved, BookLoaned},
	BookReserved:  {BookLoaned, BookAvailable},
	BookLoaned:    {BookAvailable},
}

func (s BookStatus) CanTransitionTo(next BookStatus) bool {
	for _, st := range bookTransitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

func (s BookStatus) Valid() bool {
	_, ok := bookTransitions[s]
	return ok
}

// Terminal reservation states have no way out.
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationCancelled || s == ReservationExpired || s == ReservationFulfilled
}

func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	return s == ReservationActive && next.IsTerminal()
}

func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	switch s {
	case LoanActive:
		return next == LoanOverdue || next == LoanReturned
	case LoanOverdue:
		return next == LoanReturned
	default:
		return false
	}
}

type EventType string

const (
	EventReservationCreated   EventType = "reservation.created"
	EventReservationCancelled EventType = "reservation.cancelled"
	EventReservationExpired   EventType = "reservation.expired"
	EventReservationFulfilled EventType = "reservation.fulfilled"
	EventLoanCreated          EventType = "loan.created"
	EventLoanReturned         EventType = "loan.returned"
	EventLoanOverdue          EventType = "loan.overdue"
)

// Event is published after a lifecycle transition commits.
type Event struct {
	Type          EventType  `json:"type"`
	BookID        uuid.UUID  `json:"bookId"`
	UserID        uuid.UUID  `json:"userId"`
	ReservationID *uuid.UUID `json:"reservationId,omitempty"`
	LoanID        *uuid.UUID `json:"loanId,omitempty"`
	OccurredAt    time.Time  `json:"occurredAt"`
}

func ReservationEvent(t EventType, r Reservation, at time.Time) Event {
	id := r.ID
	return Event{Type: t, BookID: r.BookID, UserID: r.UserID, ReservationID: &id, OccurredAt: at}
}

func LoanEvent(t EventType, l Loan, at time.Time) Event {
	id := l.ID
	return Event{Type: t, BookID: l.BookID, UserID: l.UserID, LoanID: &id, OccurredAt: at}
}
