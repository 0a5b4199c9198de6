package repository

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/library/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type bookRepository struct {
	db     querier
	log    *zap.Logger
	pooled bool
}

var bookColumns = []string{"id", "title", "author", "publication_year", "status", "created_at", "updated_at", "deleted_at"}

var bookSortColumns = map[string]string{
	"title":           "title",
	"author":          "author",
	"publicationYear": "publication_year",
	"createdAt":       "created_at",
}

const (
	defaultPage  = 1
	defaultLimit = 10
)

func (r *bookRepository) Create(ctx context.Context, book model.Book) (model.Book, error) {
	query, args, err := qb.Insert(booksTableName).
		Columns("id", "title", "author", "publication_year", "status", "created_at", "updated_at").
		Values(book.ID, book.Title, book.Author, book.PublicationYear, book.Status, book.CreatedAt, book.UpdatedAt).
		Suffix("returning " + strings.Join(bookColumns, ", ")).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	created, err := r.one(ctx, query, args...)
	if err != nil {
		r.log.Error("CreateBook", zap.String("q", query), zap.Error(err))
		return model.Book{}, err
	}
	return created, nil
}

func (r *bookRepository) FindByID(ctx context.Context, id uuid.UUID) (model.Book, error) {
	return r.findByID(ctx, id, false)
}

func (r *bookRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (model.Book, error) {
	return r.findByID(ctx, id, true)
}

func (r *bookRepository) findByID(ctx context.Context, id uuid.UUID, forUpdate bool) (model.Book, error) {
	q := qb.Select(bookColumns...).
		From(booksTableName).
		Where(sq.Eq{"id": id, "deleted_at": nil})
	if forUpdate {
		q = q.Suffix("for update")
	}
	query, args, err := q.ToSql()
	if err != nil {
		return model.Book{}, err
	}
	return r.one(ctx, query, args...)
}

func (r *bookRepository) FindAll(ctx context.Context, lq model.ListBooksQuery) (model.ListBooks, error) {
	page, limit := lq.Page, lq.Limit
	if page <= 0 {
		page = defaultPage
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	sortColumn, ok := bookSortColumns[lq.SortBy]
	if !ok {
		sortColumn = "created_at"
	}
	order := "desc"
	if lq.SortOrder == model.SortAsc {
		order = "asc"
	}

	where := sq.And{sq.Eq{"deleted_at": nil}}
	if s := strings.TrimSpace(lq.Search); s != "" {
		pattern := "%" + escapeLike(s) + "%"
		where = append(where, sq.Or{sq.ILike{"title": pattern}, sq.ILike{"author": pattern}})
	}
	if lq.Status != "" {
		where = append(where, sq.Eq{"status": lq.Status})
	}

	countQuery, countArgs, err := qb.Select("count(*)").From(booksTableName).Where(where).ToSql()
	if err != nil {
		return model.ListBooks{}, err
	}
	query, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		Where(where).
		OrderBy(fmt.Sprintf("%s %s", sortColumn, order), "id").
		Limit(uint64(limit)).
		Offset(pageOffset(page, limit)).
		ToSql()
	if err != nil {
		return model.ListBooks{}, err
	}
	r.log.Debug("ListBooks", zap.String("query", query), zap.Any("args", args))

	var (
		total int
		books []model.Book
	)
	count := func(ctx context.Context) error {
		if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
			return errors.Wrap(err, "count books")
		}
		return nil
	}
	list := func(ctx context.Context) (err error) {
		books, err = r.many(ctx, query, args...)
		return err
	}
	if r.pooled {
		// a pool hands each query its own connection
		eg, egCtx := errgroup.WithContext(ctx)
		eg.Go(func() error { return count(egCtx) })
		eg.Go(func() error { return list(egCtx) })
		if err := eg.Wait(); err != nil {
			return model.ListBooks{}, err
		}
	} else {
		if err := count(ctx); err != nil {
			return model.ListBooks{}, err
		}
		if err := list(ctx); err != nil {
			return model.ListBooks{}, err
		}
	}

	return model.ListBooks{
		Data:       books,
		Total:      total,
		Page:       page,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

func (r *bookRepository) Update(ctx context.Context, id uuid.UUID, upd model.BookUpdate) (model.Book, error) {
	set := map[string]any{"updated_at": upd.UpdatedAt}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Author != nil {
		set["author"] = *upd.Author
	}
	if upd.PublicationYear != nil {
		set["publication_year"] = *upd.PublicationYear
	}
	if upd.Status != nil {
		set["status"] = *upd.Status
	}
	query, args, err := qb.Update(booksTableName).
		SetMap(set).
		Where(sq.Eq{"id": id, "deleted_at": nil}).
		Suffix("returning " + strings.Join(bookColumns, ", ")).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	return r.one(ctx, query, args...)
}

func (r *bookRepository) ExistsByTitle(ctx context.Context, title string, excludeID *uuid.UUID) (bool, error) {
	where := sq.And{
		sq.Expr("lower(title) = lower(?)", title),
		sq.Eq{"deleted_at": nil},
	}
	if excludeID != nil {
		where = append(where, sq.NotEq{"id": *excludeID})
	}
	sub, args, err := qb.Select("1").From(booksTableName).Where(where).ToSql()
	if err != nil {
		return false, err
	}
	var exists bool
	if err := r.db.QueryRow(ctx, "select exists("+sub+")", args...).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "exists by title")
	}
	return exists, nil
}

func (r *bookRepository) Delete(ctx context.Context, id uuid.UUID, at time.Time) error {
	query, args, err := qb.Update(booksTableName).
		Set("deleted_at", at).
		Set("updated_at", at).
		Where(sq.Eq{"id": id, "deleted_at": nil}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *bookRepository) one(ctx context.Context, query string, args ...any) (model.Book, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Book{}, mapErr(err)
	}
	book, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Book])
	if err != nil {
		return model.Book{}, mapErr(err)
	}
	return book, nil
}

func (r *bookRepository) many(ctx context.Context, query string, args ...any) ([]model.Book, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	books, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Book])
	if err != nil {
		return nil, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	return books, nil
}

// pageOffset returns the row offset of page, saturating instead of overflowing.
func pageOffset(page, limit int) uint64 {
	if page <= 1 || limit <= 0 {
		return 0
	}
	p, l := uint64(page-1), uint64(limit)
	if p > math.MaxInt64/l {
		return math.MaxInt64
	}
	return p * l
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
