package service

import (
	"context"
	"strings"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/Astemirdum/library-management/library/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const minPublicationYear = 1000

func (s *Service) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	title, author := strings.TrimSpace(req.Title), strings.TrimSpace(req.Author)
	if title == "" || author == "" {
		return model.Book{}, errs.Validation("title and author are required")
	}
	if err := s.validYear(req.PublicationYear); err != nil {
		return model.Book{}, err
	}
	exists, err := s.repo.Books().ExistsByTitle(ctx, title, nil)
	if err != nil {
		return model.Book{}, err
	}
	if exists {
		return model.Book{}, errs.Validation("book with this title already exists")
	}

	now := s.now()
	book, err := s.repo.Books().Create(ctx, model.Book{
		ID:              uuid.New(),
		Title:           title,
		Author:          author,
		PublicationYear: req.PublicationYear,
		Status:          model.BookAvailable,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return model.Book{}, err
	}
	s.log.Debug("book created", zap.Stringer("book_id", book.ID))
	return book, nil
}

func (s *Service) GetBook(ctx context.Context, id uuid.UUID) (model.Book, error) {
	book, err := s.repo.Books().FindByID(ctx, id)
	if err != nil {
		return model.Book{}, notFound(err, "book not found")
	}
	return book, nil
}

func (s *Service) ListBooks(ctx context.Context, q model.ListBooksQuery) (model.ListBooks, error) {
	if q.Status != "" && !q.Status.Valid() {
		return model.ListBooks{}, errs.Validation("unknown book status")
	}
	return s.repo.Books().FindAll(ctx, q)
}

// UpdateBook edits catalog fields only. Status follows reservations and loans.
func (s *Service) UpdateBook(ctx context.Context, id uuid.UUID, req model.UpdateBookRequest) (model.Book, error) {
	upd := model.BookUpdate{UpdatedAt: s.now()}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return model.Book{}, errs.Validation("title must not be empty")
		}
		exists, err := s.repo.Books().ExistsByTitle(ctx, title, &id)
		if err != nil {
			return model.Book{}, err
		}
		if exists {
			return model.Book{}, errs.Validation("book with this title already exists")
		}
		upd.Title = &title
	}
	if req.Author != nil {
		author := strings.TrimSpace(*req.Author)
		if author == "" {
			return model.Book{}, errs.Validation("author must not be empty")
		}
		upd.Author = &author
	}
	if req.PublicationYear != nil {
		if err := s.validYear(*req.PublicationYear); err != nil {
			return model.Book{}, err
		}
		upd.PublicationYear = req.PublicationYear
	}

	book, err := s.repo.Books().Update(ctx, id, upd)
	if err != nil {
		return model.Book{}, notFound(err, "book not found")
	}
	return book, nil
}

// DeleteBook soft-deletes a book that nobody holds.
func (s *Service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	return s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		book, err := lockBook(ctx, tx, id)
		if err != nil {
			return err
		}
		if book.Status != model.BookAvailable {
			return errs.Conflict("book is " + string(book.Status) + " and cannot be deleted")
		}
		return notFound(tx.Books().Delete(ctx, id, s.now()), "book not found")
	})
}

func (s *Service) validYear(year int) error {
	if year < minPublicationYear || year > s.now().Year() {
		return errs.Validation("publication year is out of range")
	}
	return nil
}
