package repository

import (
	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// Unique indexes and foreign keys declared in the migrations.
const (
	constraintBookTitle          = "books_title_uq"
	constraintActiveReservation  = "reservations_active_book_uq"
	constraintOpenLoan           = "loans_open_book_uq"
	constraintUserEmail          = "users_email_uq"
	constraintReservationBookFK  = "reservations_book_id_fkey"
	constraintReservationUserFK  = "reservations_user_id_fkey"
	constraintLoanBookFK         = "loans_book_id_fkey"
	constraintLoanUserFK         = "loans_user_id_fkey"
	constraintReservationExpires = "reservations_expiration_check"
)

// mapErr converts driver errors into business errors the service layer understands.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		switch pgErr.ConstraintName {
		case constraintBookTitle:
			return errs.Validation("book with this title already exists")
		case constraintActiveReservation:
			return errs.Conflict("book already has an active reservation")
		case constraintOpenLoan:
			return errs.Conflict("book already has an active loan")
		case constraintUserEmail:
			return errs.Validation("email already registered")
		}
		return errs.Conflict(pgErr.Message)
	case pgerrcode.ForeignKeyViolation:
		switch pgErr.ConstraintName {
		case constraintReservationBookFK, constraintLoanBookFK:
			return errs.NotFound("book not found")
		case constraintReservationUserFK, constraintLoanUserFK:
			return errs.NotFound("user not found")
		}
		return errs.NotFound(pgErr.Message)
	case pgerrcode.CheckViolation:
		if pgErr.ConstraintName == constraintReservationExpires {
			return errs.Validation("expiration date must be after reservation date")
		}
		return errs.Validation(pgErr.Message)
	}
	return err
}
