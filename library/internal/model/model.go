package model

import (
	"time"

	"github.com/google/uuid"
)

type BookStatus string

const (
	BookAvailable BookStatus = "available"
	BookReserved  BookStatus = "reserved"
	BookLoaned    BookStatus = "loaned"
)

type Book struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	Title           string     `json:"title" db:"title"`
	Author          string     `json:"author" db:"author"`
	PublicationYear int        `json:"publicationYear" db:"publication_year"`
	Status          BookStatus `json:"status" db:"status"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" db:"updated_at"`
	DeletedAt       *time.Time `json:"deletedAt,omitempty" db:"deleted_at"`
}

// BookUpdate holds the fields to change; nil fields are left untouched.
type BookUpdate struct {
	Title           *string
	Author          *string
	PublicationYear *int
	Status          *BookStatus
	UpdatedAt       time.Time
}

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationExpired   ReservationStatus = "expired"
	ReservationFulfilled ReservationStatus = "fulfilled"
)

type Reservation struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	BookID          uuid.UUID         `json:"bookId" db:"book_id"`
	UserID          uuid.UUID         `json:"userId" db:"user_id"`
	ReservationDate time.Time         `json:"reservationDate" db:"reservation_date"`
	ExpirationDate  time.Time         `json:"expirationDate" db:"expiration_date"`
	Status          ReservationStatus `json:"status" db:"status"`
	CreatedAt       time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time         `json:"updatedAt" db:"updated_at"`
}

// IsExpiredAt reports whether the reservation window closed before now.
func (r Reservation) IsExpiredAt(now time.Time) bool {
	return now.After(r.ExpirationDate)
}

type ReservationUpdate struct {
	Status    ReservationStatus
	UpdatedAt time.Time
}

type LoanStatus string

const (
	LoanActive   LoanStatus = "active"
	LoanReturned LoanStatus = "returned"
	LoanOverdue  LoanStatus = "overdue"
)

// IsOpen reports whether the loan still holds the book.
func (s LoanStatus) IsOpen() bool {
	return s == LoanActive || s == LoanOverdue
}

type Loan struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	BookID     uuid.UUID  `json:"bookId" db:"book_id"`
	UserID     uuid.UUID  `json:"userId" db:"user_id"`
	LoanDate   time.Time  `json:"loanDate" db:"loan_date"`
	DueDate    time.Time  `json:"dueDate" db:"due_date"`
	ReturnDate *time.Time `json:"returnDate,omitempty" db:"return_date"`
	Status     LoanStatus `json:"status" db:"status"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time  `json:"updatedAt" db:"updated_at"`
}

type LoanUpdate struct {
	Status     LoanStatus
	ReturnDate *time.Time
	UpdatedAt  time.Time
}

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Password  string    `json:"-" db:"password"`
	Name      string    `json:"name" db:"name"`
	Role      Role      `json:"role" db:"role"`
	IsActive  bool      `json:"isActive" db:"is_active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type ListBooksQuery struct {
	Page      int        `query:"page" validate:"omitempty,min=1,max=1000000"`
	Limit     int        `query:"limit" validate:"omitempty,min=1,max=100"`
	Search    string     `query:"search"`
	Status    BookStatus `query:"status" validate:"omitempty,oneof=available reserved loaned"`
	SortBy    string     `query:"sortBy" validate:"omitempty,oneof=title author publicationYear createdAt"`
	SortOrder SortOrder  `query:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

type ListBooks struct {
	Data       []Book `json:"data"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
}

type CreateBookRequest struct {
	Title           string `json:"title" validate:"required,min=1,max=200"`
	Author          string `json:"author" validate:"required,min=1,max=100"`
	PublicationYear int    `json:"publicationYear" validate:"required,min=1000"`
}

type UpdateBookRequest struct {
	Title           *string `json:"title" validate:"omitempty,min=1,max=200"`
	Author          *string `json:"author" validate:"omitempty,min=1,max=100"`
	PublicationYear *int    `json:"publicationYear" validate:"omitempty,min=1000"`
}

type CreateLoanRequest struct {
	BookID  uuid.UUID `json:"bookId" validate:"required"`
	UserID  uuid.UUID `json:"userId"`
	DueDate time.Time `json:"dueDate" validate:"required"`
}

type ReturnLoanRequest struct {
	ReturnDate *time.Time `json:"returnDate"`
}

type CreateReservationRequest struct {
	BookID         uuid.UUID `json:"bookId" validate:"required"`
	UserID         uuid.UUID `json:"-"`
	ExpirationDate time.Time `json:"expirationDate" validate:"required"`
}

type FulfillReservationRequest struct {
	LoanDueDate time.Time `json:"loanDueDate" validate:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=50"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Role     Role   `json:"role" validate:"omitempty,oneof=admin user"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"`
}

type ExpireReservationsResponse struct {
	ExpiredCount int    `json:"expiredCount"`
	Message      string `json:"message"`
}
