package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Astemirdum/library-management/library/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type loanRepository struct {
	db  querier
	log *zap.Logger
}

var loanColumns = []string{"id", "book_id", "user_id", "loan_date", "due_date", "return_date", "status", "created_at", "updated_at"}

var openLoanStatuses = []model.LoanStatus{model.LoanActive, model.LoanOverdue}

func (r *loanRepository) Create(ctx context.Context, l model.Loan) (model.Loan, error) {
	query, args, err := qb.Insert(loansTableName).
		Columns(loanColumns...).
		Values(l.ID, l.BookID, l.UserID, l.LoanDate, l.DueDate, l.ReturnDate, l.Status, l.CreatedAt, l.UpdatedAt).
		Suffix("returning " + strings.Join(loanColumns, ", ")).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	created, err := r.one(ctx, query, args...)
	if err != nil {
		r.log.Error("CreateLoan", zap.String("q", query), zap.Any("args", args), zap.Error(err))
		return model.Loan{}, err
	}
	return created, nil
}

func (r *loanRepository) FindByID(ctx context.Context, id uuid.UUID) (model.Loan, error) {
	query, args, err := qb.Select(loanColumns...).
		From(loansTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	return r.one(ctx, query, args...)
}

func (r *loanRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]model.Loan, error) {
	query, args, err := qb.Select(loanColumns...).
		From(loansTableName).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.many(ctx, query, args...)
}

func (r *loanRepository) FindActiveByBookID(ctx context.Context, bookID uuid.UUID) (model.Loan, error) {
	query, args, err := qb.Select(loanColumns...).
		From(loansTableName).
		Where(sq.Eq{"book_id": bookID, "status": openLoanStatuses}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	return r.one(ctx, query, args...)
}

func (r *loanRepository) FindOverdue(ctx context.Context, now time.Time) ([]model.Loan, error) {
	query, args, err := qb.Select(loanColumns...).
		From(loansTableName).
		Where(sq.Eq{"status": model.LoanActive}).
		Where(sq.Lt{"due_date": now}).
		OrderBy("due_date").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.many(ctx, query, args...)
}

func (r *loanRepository) Update(ctx context.Context, id uuid.UUID, upd model.LoanUpdate) (model.Loan, error) {
	q := qb.Update(loansTableName).
		Set("status", upd.Status).
		Set("updated_at", upd.UpdatedAt)
	if upd.ReturnDate != nil {
		q = q.Set("return_date", *upd.ReturnDate)
	}
	query, args, err := q.
		Where(sq.Eq{"id": id}).
		Suffix("returning " + strings.Join(loanColumns, ", ")).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	return r.one(ctx, query, args...)
}

func (r *loanRepository) one(ctx context.Context, query string, args ...any) (model.Loan, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Loan{}, mapErr(err)
	}
	l, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Loan])
	if err != nil {
		return model.Loan{}, mapErr(err)
	}
	return l, nil
}

func (r *loanRepository) many(ctx context.Context, query string, args ...any) ([]model.Loan, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Loan])
	if err != nil {
		return nil, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	return items, nil
}
