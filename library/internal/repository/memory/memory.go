// Package memory is an in-process Repository. Units of work are serialized by a single
// mutex and rolled back by restoring a snapshot, which mirrors the guarantees of the
// postgres implementation: one writer per book at a time, all-or-nothing commits, and the
// same uniqueness rules as the database indexes.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/Astemirdum/library-management/library/internal/repository"
	"github.com/google/uuid"
)

type state struct {
	books        map[uuid.UUID]model.Book
	reservations map[uuid.UUID]model.Reservation
	loans        map[uuid.UUID]model.Loan
	users        map[uuid.UUID]model.User
}

func newState() *state {
	return &state{
		books:        make(map[uuid.UUID]model.Book),
		reservations: make(map[uuid.UUID]model.Reservation),
		loans:        make(map[uuid.UUID]model.Loan),
		users:        make(map[uuid.UUID]model.User),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.books {
		c.books[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.loans {
		c.loans[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

type Repository struct {
	mu   sync.Mutex
	data *state
}

var _ repository.Repository = (*Repository)(nil)

func New() *Repository {
	return &Repository{data: newState()}
}

func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.data.clone()
	if err := fn(ctx, store{r: r, held: true}); err != nil {
		r.data = snapshot
		return err
	}
	return nil
}

func (r *Repository) Books() repository.BookRepository               { return bookStore{store{r: r}} }
func (r *Repository) Reservations() repository.ReservationRepository { return reservationStore{store{r: r}} }
func (r *Repository) Loans() repository.LoanRepository               { return loanStore{store{r: r}} }
func (r *Repository) Users() repository.UserRepository               { return userStore{store{r: r}} }

// store takes the repository lock per call unless it runs inside WithinTx.
type store struct {
	r    *Repository
	held bool
}

func (s store) lock() func() {
	if s.held {
		return func() {}
	}
	s.r.mu.Lock()
	return s.r.mu.Unlock
}

func (s store) Books() repository.BookRepository               { return bookStore{s} }
func (s store) Reservations() repository.ReservationRepository { return reservationStore{s} }
func (s store) Loans() repository.LoanRepository               { return loanStore{s} }
func (s store) Users() repository.UserRepository               { return userStore{s} }

type bookStore struct{ store }

func (s bookStore) Create(_ context.Context, book model.Book) (model.Book, error) {
	defer s.lock()()
	if s.titleTaken(book.Title, nil) {
		return model.Book{}, errs.Validation("book with this title already exists")
	}
	s.r.data.books[book.ID] = book
	return book, nil
}

func (s bookStore) FindByID(_ context.Context, id uuid.UUID) (model.Book, error) {
	defer s.lock()()
	return s.find(id)
}

func (s bookStore) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (model.Book, error) {
	return s.FindByID(ctx, id)
}

func (s bookStore) find(id uuid.UUID) (model.Book, error) {
	b, ok := s.r.data.books[id]
	if !ok || b.DeletedAt != nil {
		return model.Book{}, errs.ErrNotFound
	}
	return b, nil
}

func (s bookStore) FindAll(_ context.Context, q model.ListBooksQuery) (model.ListBooks, error) {
	defer s.lock()()
	page, limit := q.Page, q.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	search := strings.ToLower(strings.TrimSpace(q.Search))
	items := make([]model.Book, 0, len(s.r.data.books))
	for _, b := range s.r.data.books {
		if b.DeletedAt != nil {
			continue
		}
		if q.Status != "" && b.Status != q.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(b.Title), search) &&
			!strings.Contains(strings.ToLower(b.Author), search) {
			continue
		}
		items = append(items, b)
	}
	sort.SliceStable(items, func(i, j int) bool {
		less := lessBook(items[i], items[j], q.SortBy)
		if q.SortOrder == model.SortAsc {
			return less
		}
		return lessBook(items[j], items[i], q.SortBy)
	})

	total := len(items)
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	// compare page numbers first, (page-1)*limit may overflow
	from, to := total, total
	if page <= pages {
		from = (page - 1) * limit
		if total-from > limit {
			to = from + limit
		}
	}
	return model.ListBooks{
		Data:       items[from:to],
		Total:      total,
		Page:       page,
		TotalPages: pages,
	}, nil
}

func lessBook(a, b model.Book, sortBy string) bool {
	switch sortBy {
	case "title":
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	case "author":
		return strings.ToLower(a.Author) < strings.ToLower(b.Author)
	case "publicationYear":
		return a.PublicationYear < b.PublicationYear
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}

func (s bookStore) Update(_ context.Context, id uuid.UUID, upd model.BookUpdate) (model.Book, error) {
	defer s.lock()()
	b, err := s.find(id)
	if err != nil {
		return model.Book{}, err
	}
	if upd.Title != nil {
		if s.titleTaken(*upd.Title, &id) {
			return model.Book{}, errs.Validation("book with this title already exists")
		}
		b.Title = *upd.Title
	}
	if upd.Author != nil {
		b.Author = *upd.Author
	}
	if upd.PublicationYear != nil {
		b.PublicationYear = *upd.PublicationYear
	}
	if upd.Status != nil {
		b.Status = *upd.Status
	}
	b.UpdatedAt = upd.UpdatedAt
	s.r.data.books[id] = b
	return b, nil
}

func (s bookStore) ExistsByTitle(_ context.Context, title string, excludeID *uuid.UUID) (bool, error) {
	defer s.lock()()
	return s.titleTaken(title, excludeID), nil
}

func (s bookStore) titleTaken(title string, excludeID *uuid.UUID) bool {
	for id, b := range s.r.data.books {
		if b.DeletedAt != nil || (excludeID != nil && id == *excludeID) {
			continue
		}
		if strings.EqualFold(b.Title, title) {
			return true
		}
	}
	return false
}

func (s bookStore) Delete(_ context.Context, id uuid.UUID, at time.Time) error {
	defer s.lock()()
	b, err := s.find(id)
	if err != nil {
		return err
	}
	b.DeletedAt = &at
	b.UpdatedAt = at
	s.r.data.books[id] = b
	return nil
}

type reservationStore struct{ store }

func (s reservationStore) Create(_ context.Context, res model.Reservation) (model.Reservation, error) {
	defer s.lock()()
	if _, ok := s.r.data.books[res.BookID]; !ok {
		return model.Reservation{}, errs.NotFound("book not found")
	}
	if _, ok := s.r.data.users[res.UserID]; !ok {
		return model.Reservation{}, errs.NotFound("user not found")
	}
	if !res.ExpirationDate.After(res.ReservationDate) {
		return model.Reservation{}, errs.Validation("expiration date must be after reservation date")
	}
	if res.Status == model.ReservationActive {
		if _, err := s.active(res.BookID); err == nil {
			return model.Reservation{}, errs.Conflict("book already has an active reservation")
		}
	}
	s.r.data.reservations[res.ID] = res
	return res, nil
}

func (s reservationStore) FindByID(_ context.Context, id uuid.UUID) (model.Reservation, error) {
	defer s.lock()()
	res, ok := s.r.data.reservations[id]
	if !ok {
		return model.Reservation{}, errs.ErrNotFound
	}
	return res, nil
}

func (s reservationStore) FindByUserID(_ context.Context, userID uuid.UUID) ([]model.Reservation, error) {
	defer s.lock()()
	items := make([]model.Reservation, 0)
	for _, res := range s.r.data.reservations {
		if res.UserID == userID {
			items = append(items, res)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (s reservationStore) FindActiveByBookID(_ context.Context, bookID uuid.UUID) (model.Reservation, error) {
	defer s.lock()()
	return s.active(bookID)
}

func (s reservationStore) active(bookID uuid.UUID) (model.Reservation, error) {
	for _, res := range s.r.data.reservations {
		if res.BookID == bookID && res.Status == model.ReservationActive {
			return res, nil
		}
	}
	return model.Reservation{}, errs.ErrNotFound
}

func (s reservationStore) FindExpired(_ context.Context, now time.Time) ([]model.Reservation, error) {
	defer s.lock()()
	items := make([]model.Reservation, 0)
	for _, res := range s.r.data.reservations {
		if res.Status == model.ReservationActive && res.ExpirationDate.Before(now) {
			items = append(items, res)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ExpirationDate.Before(items[j].ExpirationDate) })
	return items, nil
}

func (s reservationStore) Update(_ context.Context, id uuid.UUID, upd model.ReservationUpdate) (model.Reservation, error) {
	defer s.lock()()
	res, ok := s.r.data.reservations[id]
	if !ok {
		return model.Reservation{}, errs.ErrNotFound
	}
	res.Status = upd.Status
	res.UpdatedAt = upd.UpdatedAt
	s.r.data.reservations[id] = res
	return res, nil
}

type loanStore struct{ store }

func (s loanStore) Create(_ context.Context, l model.Loan) (model.Loan, error) {
	defer s.lock()()
	if _, ok := s.r.data.books[l.BookID]; !ok {
		return model.Loan{}, errs.NotFound("book not found")
	}
	if _, ok := s.r.data.users[l.UserID]; !ok {
		return model.Loan{}, errs.NotFound("user not found")
	}
	if l.Status.IsOpen() {
		if _, err := s.open(l.BookID); err == nil {
			return model.Loan{}, errs.Conflict("book already has an active loan")
		}
	}
	s.r.data.loans[l.ID] = l
	return l, nil
}

func (s loanStore) FindByID(_ context.Context, id uuid.UUID) (model.Loan, error) {
	defer s.lock()()
	l, ok := s.r.data.loans[id]
	if !ok {
		return model.Loan{}, errs.ErrNotFound
	}
	return l, nil
}

func (s loanStore) FindByUserID(_ context.Context, userID uuid.UUID) ([]model.Loan, error) {
	defer s.lock()()
	items := make([]model.Loan, 0)
	for _, l := range s.r.data.loans {
		if l.UserID == userID {
			items = append(items, l)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (s loanStore) FindActiveByBookID(_ context.Context, bookID uuid.UUID) (model.Loan, error) {
	defer s.lock()()
	return s.open(bookID)
}

func (s loanStore) open(bookID uuid.UUID) (model.Loan, error) {
	for _, l := range s.r.data.loans {
		if l.BookID == bookID && l.Status.IsOpen() {
			return l, nil
		}
	}
	return model.Loan{}, errs.ErrNotFound
}

func (s loanStore) FindOverdue(_ context.Context, now time.Time) ([]model.Loan, error) {
	defer s.lock()()
	items := make([]model.Loan, 0)
	for _, l := range s.r.data.loans {
		if l.Status == model.LoanActive && l.DueDate.Before(now) {
			items = append(items, l)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].DueDate.Before(items[j].DueDate) })
	return items, nil
}

func (s loanStore) Update(_ context.Context, id uuid.UUID, upd model.LoanUpdate) (model.Loan, error) {
	defer s.lock()()
	l, ok := s.r.data.loans[id]
	if !ok {
		return model.Loan{}, errs.ErrNotFound
	}
	l.Status = upd.Status
	l.UpdatedAt = upd.UpdatedAt
	if upd.ReturnDate != nil {
		rd := *upd.ReturnDate
		l.ReturnDate = &rd
	}
	s.r.data.loans[id] = l
	return l, nil
}

type userStore struct{ store }

func (s userStore) Create(_ context.Context, u model.User) (model.User, error) {
	defer s.lock()()
	for _, existing := range s.r.data.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.User{}, errs.Validation("email already registered")
		}
	}
	s.r.data.users[u.ID] = u
	return u, nil
}

func (s userStore) FindByID(_ context.Context, id uuid.UUID) (model.User, error) {
	defer s.lock()()
	u, ok := s.r.data.users[id]
	if !ok {
		return model.User{}, errs.ErrNotFound
	}
	return u, nil
}

func (s userStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	defer s.lock()()
	for _, u := range s.r.data.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, errs.ErrNotFound
}
