package handler

import (
	"context"
	"time"

	"github.com/Astemirdum/library-management/library/internal/job"
	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/Astemirdum/library-management/library/internal/service"
	"github.com/google/uuid"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

var (
	_ BookService    = (*service.Service)(nil)
	_ LendingService = (*service.Service)(nil)
	_ AuthService    = (*service.Service)(nil)
	_ Sweeper        = (*job.Expiration)(nil)
)

type BookService interface {
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (model.Book, error)
	ListBooks(ctx context.Context, q model.ListBooksQuery) (model.ListBooks, error)
	UpdateBook(ctx context.Context, id uuid.UUID, req model.UpdateBookRequest) (model.Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
}

type LendingService interface {
	CreateLoan(ctx context.Context, req model.CreateLoanRequest) (model.Loan, error)
	GetLoan(ctx context.Context, id uuid.UUID) (model.Loan, error)
	ReturnLoan(ctx context.Context, id uuid.UUID, returnDate *time.Time) (model.Loan, error)
	GetUserLoans(ctx context.Context, userID uuid.UUID) ([]model.Loan, error)
	CreateReservation(ctx context.Context, req model.CreateReservationRequest) (model.Reservation, error)
	CancelReservation(ctx context.Context, id, userID uuid.UUID) (model.Reservation, error)
	FulfillReservation(ctx context.Context, id, userID uuid.UUID, loanDueDate time.Time) (model.Loan, error)
	GetUserReservations(ctx context.Context, userID uuid.UUID) ([]model.Reservation, error)
}

type AuthService interface {
	RegisterUser(ctx context.Context, req model.RegisterRequest) (model.AuthResponse, error)
	Login(ctx context.Context, req model.LoginRequest) (model.AuthResponse, error)
}

type Sweeper interface {
	Run(ctx context.Context) (int, error)
}
