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

func (s *Service) CreateLoan(ctx context.Context, req model.CreateLoanRequest) (model.Loan, error) {
	now := s.now()
	if !req.DueDate.After(now) {
		return model.Loan{}, errs.Validation("due date must be in the future")
	}

	var loan model.Loan
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		book, err := lockBook(ctx, tx, req.BookID)
		if err != nil {
			return err
		}
		if book.Status != model.BookAvailable {
			return errs.Conflict("book is not available for loan")
		}
		if err := noOpenLoan(ctx, tx, book.ID); err != nil {
			return err
		}
		loan, err = tx.Loans().Create(ctx, model.Loan{
			ID:        uuid.New(),
			BookID:    book.ID,
			UserID:    req.UserID,
			LoanDate:  now,
			DueDate:   req.DueDate,
			Status:    model.LoanActive,
			CreatedAt: now,
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
	s.publish(ctx, model.LoanEvent(model.EventLoanCreated, loan, now))
	return loan, nil
}

// ReturnLoan closes an open loan. A nil returnDate means now.
func (s *Service) ReturnLoan(ctx context.Context, id uuid.UUID, returnDate *time.Time) (model.Loan, error) {
	now := s.now()
	rd := now
	if returnDate != nil {
		rd = *returnDate
	}
	if rd.After(now) {
		return model.Loan{}, errs.Validation("return date cannot be in the future")
	}

	var loan model.Loan
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		current, err := tx.Loans().FindByID(ctx, id)
		if err != nil {
			return notFound(err, "loan not found")
		}
		book, err := lockBook(ctx, tx, current.BookID)
		if err != nil {
			return err
		}
		// re-read under the book lock
		if current, err = tx.Loans().FindByID(ctx, id); err != nil {
			return notFound(err, "loan not found")
		}
		if !current.Status.CanTransitionTo(model.LoanReturned) {
			return errs.Conflict("loan is not active")
		}
		if rd.Before(current.LoanDate) {
			return errs.Validation("return date cannot be before loan date")
		}
		loan, err = tx.Loans().Update(ctx, id, model.LoanUpdate{
			Status:     model.LoanReturned,
			ReturnDate: &rd,
			UpdatedAt:  now,
		})
		if err != nil {
			return err
		}
		_, err = releaseBook(ctx, tx, book, now)
		return err
	})
	if err != nil {
		return model.Loan{}, err
	}
	s.publish(ctx, model.LoanEvent(model.EventLoanReturned, loan, now))
	return loan, nil
}

func (s *Service) GetLoan(ctx context.Context, id uuid.UUID) (model.Loan, error) {
	loan, err := s.repo.Loans().FindByID(ctx, id)
	if err != nil {
		return model.Loan{}, notFound(err, "loan not found")
	}
	return loan, nil
}

func (s *Service) GetUserLoans(ctx context.Context, userID uuid.UUID) ([]model.Loan, error) {
	return s.repo.Loans().FindByUserID(ctx, userID)
}

// MarkOverdueLoans flags active loans past their due date. Each loan is handled in its own
// unit of work; a failure is logged and the rest continue.
func (s *Service) MarkOverdueLoans(ctx context.Context) (int, error) {
	now := s.now()
	loans, err := s.repo.Loans().FindOverdue(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "find overdue loans")
	}
	marked := 0
	for _, l := range loans {
		if err := ctx.Err(); err != nil {
			return marked, err
		}
		updated, ok, err := s.markOverdue(ctx, l, now)
		if err != nil {
			s.log.Error("mark loan overdue",
				zap.Stringer("loan_id", l.ID),
				zap.Stringer("book_id", l.BookID),
				zap.Error(err))
			continue
		}
		if ok {
			marked++
			s.publish(ctx, model.LoanEvent(model.EventLoanOverdue, updated, now))
		}
	}
	return marked, nil
}

func (s *Service) markOverdue(ctx context.Context, l model.Loan, now time.Time) (model.Loan, bool, error) {
	var (
		updated model.Loan
		marked  bool
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := lockBook(ctx, tx, l.BookID); err != nil {
			return err
		}
		current, err := tx.Loans().FindByID(ctx, l.ID)
		if err != nil {
			return err
		}
		if current.Status != model.LoanActive || !current.DueDate.Before(now) {
			return nil
		}
		updated, err = tx.Loans().Update(ctx, l.ID, model.LoanUpdate{Status: model.LoanOverdue, UpdatedAt: now})
		marked = err == nil
		return err
	})
	return updated, marked, err
}

func noOpenLoan(ctx context.Context, tx repository.Store, bookID uuid.UUID) error {
	_, err := tx.Loans().FindActiveByBookID(ctx, bookID)
	switch {
	case err == nil:
		return errs.Conflict("book already has an active loan")
	case errors.Is(err, errs.ErrNotFound):
		return nil
	default:
		return err
	}
}
