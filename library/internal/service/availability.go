package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/Astemirdum/library-management/library/internal/repository"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// moveBook applies one availability transition to a book locked by the caller's unit of work.
// Moving to the current status is a no-op.
func moveBook(ctx context.Context, tx repository.Store, book model.Book, next model.BookStatus, at time.Time) (model.Book, error) {
	if book.Status == next {
		return book, nil
	}
	if !book.Status.CanTransitionTo(next) {
		return model.Book{}, errs.Conflict(fmt.Sprintf("book cannot move from %s to %s", book.Status, next))
	}
	return tx.Books().Update(ctx, book.ID, model.BookUpdate{Status: &next, UpdatedAt: at})
}

// releaseBook recomputes the book status from the holds that remain on it.
func releaseBook(ctx context.Context, tx repository.Store, book model.Book, at time.Time) (model.Book, error) {
	next, err := heldStatus(ctx, tx, book.ID)
	if err != nil {
		return model.Book{}, err
	}
	return moveBook(ctx, tx, book, next, at)
}

func heldStatus(ctx context.Context, tx repository.Store, bookID uuid.UUID) (model.BookStatus, error) {
	if _, err := tx.Loans().FindActiveByBookID(ctx, bookID); err == nil {
		return model.BookLoaned, nil
	} else if !errors.Is(err, errs.ErrNotFound) {
		return "", err
	}
	if _, err := tx.Reservations().FindActiveByBookID(ctx, bookID); err == nil {
		return model.BookReserved, nil
	} else if !errors.Is(err, errs.ErrNotFound) {
		return "", err
	}
	return model.BookAvailable, nil
}

// lockBook reads the book with a row lock held until the unit of work ends.
func lockBook(ctx context.Context, tx repository.Store, id uuid.UUID) (model.Book, error) {
	book, err := tx.Books().FindByIDForUpdate(ctx, id)
	if err != nil {
		return model.Book{}, notFound(err, "book not found")
	}
	return book, nil
}
