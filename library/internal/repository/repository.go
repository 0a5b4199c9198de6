package repository

import (
	"context"
	"time"

	"github.com/Astemirdum/library-management/library/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type BookRepository interface {
	Create(ctx context.Context, book model.Book) (model.Book, error)
	FindByID(ctx context.Context, id uuid.UUID) (model.Book, error)
	// FindByIDForUpdate reads the book and, inside a transaction, locks it until commit.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (model.Book, error)
	FindAll(ctx context.Context, q model.ListBooksQuery) (model.ListBooks, error)
	Update(ctx context.Context, id uuid.UUID, upd model.BookUpdate) (model.Book, error)
	ExistsByTitle(ctx context.Context, title string, excludeID *uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID, at time.Time) error
}

type ReservationRepository interface {
	Create(ctx context.Context, r model.Reservation) (model.Reservation, error)
	FindByID(ctx context.Context, id uuid.UUID) (model.Reservation, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]model.Reservation, error)
	FindActiveByBookID(ctx context.Context, bookID uuid.UUID) (model.Reservation, error)
	// FindExpired returns active reservations whose expiration date is before now.
	FindExpired(ctx context.Context, now time.Time) ([]model.Reservation, error)
	Update(ctx context.Context, id uuid.UUID, upd model.ReservationUpdate) (model.Reservation, error)
}

type LoanRepository interface {
	Create(ctx context.Context, l model.Loan) (model.Loan, error)
	FindByID(ctx context.Context, id uuid.UUID) (model.Loan, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]model.Loan, error)
	// FindActiveByBookID returns the open (active or overdue) loan of the book.
	FindActiveByBookID(ctx context.Context, bookID uuid.UUID) (model.Loan, error)
	// FindOverdue returns active loans whose due date is before now.
	FindOverdue(ctx context.Context, now time.Time) ([]model.Loan, error)
	Update(ctx context.Context, id uuid.UUID, upd model.LoanUpdate) (model.Loan, error)
}

type UserRepository interface {
	Create(ctx context.Context, u model.User) (model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
}

type Store interface {
	Books() BookRepository
	Reservations() ReservationRepository
	Loans() LoanRepository
	Users() UserRepository
}

// Repository is a Store that can also run a function as one atomic unit of work.
// Every write made through the tx Store is rolled back when fn returns an error.
type Repository interface {
	Store
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// Locker is a cross-process mutual exclusion primitive.
type Locker interface {
	TryLock(ctx context.Context, key int64) (unlock func(), ok bool, err error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type store struct {
	books        *bookRepository
	reservations *reservationRepository
	loans        *loanRepository
	users        *userRepository
}

func newStore(db querier, log *zap.Logger) store {
	_, pooled := db.(*pgxpool.Pool)
	return store{
		books:        &bookRepository{db: db, log: log, pooled: pooled},
		reservations: &reservationRepository{db: db, log: log},
		loans:        &loanRepository{db: db, log: log},
		users:        &userRepository{db: db, log: log},
	}
}

func (s store) Books() BookRepository               { return s.books }
func (s store) Reservations() ReservationRepository { return s.reservations }
func (s store) Loans() LoanRepository               { return s.loans }
func (s store) Users() UserRepository               { return s.users }

type repository struct {
	store
	db  *pgxpool.Pool
	log *zap.Logger
}

func NewRepository(db *pgxpool.Pool, log *zap.Logger) (*repository, error) {
	if db == nil {
		return nil, errors.New("nil pool")
	}
	log = log.Named("repo")
	return &repository{
		store: newStore(db, log),
		db:    db,
		log:   log,
	}, nil
}

func (r *repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, newStore(tx, r.log))
	})
}

const (
	booksTableName        = `books`
	reservationsTableName = `reservations`
	loansTableName        = `loans`
	usersTableName        = `users`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
