package service

import (
	"context"
	"time"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/Astemirdum/library-management/library/internal/repository"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (s *Service) CreateReservation(ctx context.Context, req model.CreateReservationRequest) (model.Reservation, error) {
	now := s.now()
	if !req.ExpirationDate.After(now) {
		return model.Reservation{}, errs.Validation("expiration date must be in the future")
	}

	var res model.Reservation
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		book, err := lockBook(ctx, tx, req.BookID)
		if err != nil {
			return err
		}
		if err := noActiveReservation(ctx, tx, book.ID); err != nil {
			return err
		}
		if err := noOpenLoan(ctx, tx, book.ID); err != nil {
			return err
		}
		if book.Status != model.BookAvailable {
			return errs.Conflict("book is not available for reservation")
		}
		res, err = tx.Reservations().Create(ctx, model.Reservation{
			ID:              uuid.New(),
			BookID:          book.ID,
			UserID:          req.UserID,
			ReservationDate: now,
			ExpirationDate:  req.ExpirationDate,
			Status:          model.ReservationActive,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return err
		}
		_, err = moveBook(ctx, tx, book, model.BookReserved, now)
		return err
	})
	if err != nil {
		return model.Reservation{}, err
	}
	s.publish(ctx, model.ReservationEvent(model.EventReservationCreated, res, now))
	return res, nil
}

func (s *Service) CancelReservation(ctx context.Context, id, userID uuid.UUID) (model.Reservation, error) {
	now := s.now()
	var res model.Reservation
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		current, book, err := lockReservation(ctx, tx, id, userID, "you can only cancel your own reservations")
		if err != nil {
			return err
		}
		res, err = tx.Reservations().Update(ctx, current.ID, model.ReservationUpdate{
			Status:    model.ReservationCancelled,
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}
		_, err = releaseBook(ctx, tx, book, now)
		return err
	})
	if err != nil {
		return model.Reservation{}, err
	}
	s.publish(ctx, model.ReservationEvent(model.EventReservationCancelled, res, now))
	return res, nil
}

// FulfillReservation turns the caller's active reservation into a loan. A reservation found
// past its expiration is expired and the book released before any input is checked; that
// change commits and the call fails with a conflict.
func (s *Service) FulfillReservation(ctx context.Context, id, userID uuid.UUID, loanDueDate time.Time) (model.Loan, error) {
	now := s.now()
	var (
		loan    model.Loan
		res     model.Reservation
		expired bool
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		current, book, err := lockReservation(ctx, tx, id, userID, "you can only fulfill your own reservations")
		if err != nil {
			return err
		}
		if current.IsExpiredAt(now) {
			expired = true
			res, err = expire(ctx, tx, current, book, now)
			return err
		}
		if !loanDueDate.After(now) {
			return errs.Validation("loan due date must be in the future")
		}
		if err := noOpenLoan(ctx, tx, book.ID); err != nil {
			return err
		}
		loan, err = tx.Loans().Create(ctx, model.Loan{
			ID:        uuid.New(),
			BookID:    book.ID,
			UserID:    current.UserID,
			LoanDate:  now,
			DueDate:   loanDueDate,
			Status:    model.LoanActive,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}
		res, err = tx.Reservations().Update(ctx, current.ID, model.ReservationUpdate{
			Status:    model.ReservationFulfilled,
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}
		_, err = moveBook(ctx, tx, book, model.BookLoaned, now)
		return err
	})
	if err != nil {
		return model.Loan{}, err
	}
	if expired {
		s.publish(ctx, model.ReservationEvent(model.EventReservationExpired, res, now))
		return model.Loan{}, errs.Conflict("reservation has expired")
	}
	s.publish(ctx,
		model.ReservationEvent(model.EventReservationFulfilled, res, now),
		model.LoanEvent(model.EventLoanCreated, loan, now),
	)
	return loan, nil
}

func (s *Service) GetUserReservations(ctx context.Context, userID uuid.UUID) ([]model.Reservation, error) {
	return s.repo.Reservations().FindByUserID(ctx, userID)
}

// ExpireReservations expires every active reservation whose window closed, each in its own
// unit of work. Per-item failures are logged and skipped. Returns how many were expired.
func (s *Service) ExpireReservations(ctx context.Context) (int, error) {
	now := s.now()
	candidates, err := s.repo.Reservations().FindExpired(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "find expired reservations")
	}
	expiredCount := 0
	for _, r := range candidates {
		if err := ctx.Err(); err != nil {
			return expiredCount, err
		}
		res, ok, err := s.expireOne(ctx, r.ID, now)
		if err != nil {
			s.log.Error("expire reservation",
				zap.Stringer("reservation_id", r.ID),
				zap.Stringer("book_id", r.BookID),
				zap.Error(err))
			continue
		}
		if ok {
			expiredCount++
			s.publish(ctx, model.ReservationEvent(model.EventReservationExpired, res, now))
		}
	}
	if expiredCount > 0 {
		s.log.Info("reservations expired", zap.Int("count", expiredCount))
	}
	return expiredCount, nil
}

func (s *Service) expireOne(ctx context.Context, id uuid.UUID, now time.Time) (model.Reservation, bool, error) {
	var (
		res  model.Reservation
		done bool
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		current, err := tx.Reservations().FindByID(ctx, id)
		if err != nil {
			return err
		}
		book, err := lockBook(ctx, tx, current.BookID)
		if err != nil {
			return err
		}
		if current, err = tx.Reservations().FindByID(ctx, id); err != nil {
			return err
		}
		// cancelled, fulfilled or expired by someone else in the meantime
		if current.Status != model.ReservationActive || !current.IsExpiredAt(now) {
			return nil
		}
		res, err = expire(ctx, tx, current, book, now)
		done = err == nil
		return err
	})
	return res, done, err
}

func expire(ctx context.Context, tx repository.Store, r model.Reservation, book model.Book, now time.Time) (model.Reservation, error) {
	res, err := tx.Reservations().Update(ctx, r.ID, model.ReservationUpdate{
		Status:    model.ReservationExpired,
		UpdatedAt: now,
	})
	if err != nil {
		return model.Reservation{}, err
	}
	if _, err := releaseBook(ctx, tx, book, now); err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

// lockReservation loads an active reservation owned by userID with its book locked.
func lockReservation(ctx context.Context, tx repository.Store, id, userID uuid.UUID, forbidden string) (model.Reservation, model.Book, error) {
	current, err := tx.Reservations().FindByID(ctx, id)
	if err != nil {
		return model.Reservation{}, model.Book{}, notFound(err, "reservation not found")
	}
	if current.UserID != userID {
		return model.Reservation{}, model.Book{}, errs.Forbidden(forbidden)
	}
	book, err := lockBook(ctx, tx, current.BookID)
	if err != nil {
		return model.Reservation{}, model.Book{}, err
	}
	if current, err = tx.Reservations().FindByID(ctx, id); err != nil {
		return model.Reservation{}, model.Book{}, notFound(err, "reservation not found")
	}
	if current.Status != model.ReservationActive {
		return model.Reservation{}, model.Book{}, errs.Conflict("reservation is not active")
	}
	return current, book, nil
}

func noActiveReservation(ctx context.Context, tx repository.Store, bookID uuid.UUID) error {
	_, err := tx.Reservations().FindActiveByBookID(ctx, bookID)
	switch {
	case err == nil:
		return errs.Conflict("book already has an active reservation")
	case errors.Is(err, errs.ErrNotFound):
		return nil
	default:
		return err
	}
}
