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

type reservationRepository struct {
	db  querier
	log *zap.Logger
}

var reservationColumns = []string{"id", "book_id", "user_id", "reservation_date", "expiration_date", "status", "created_at", "updated_at"}

func (r *reservationRepository) Create(ctx context.Context, res model.Reservation) (model.Reservation, error) {
	query, args, err := qb.Insert(reservationsTableName).
		Columns(reservationColumns...).
		Values(res.ID, res.BookID, res.UserID, res.ReservationDate, res.ExpirationDate, res.Status, res.CreatedAt, res.UpdatedAt).
		Suffix("returning " + strings.Join(reservationColumns, ", ")).
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	created, err := r.one(ctx, query, args...)
	if err != nil {
		r.log.Error("CreateReservation", zap.String("q", query), zap.Any("args", args), zap.Error(err))
		return model.Reservation{}, err
	}
	return created, nil
}

func (r *reservationRepository) FindByID(ctx context.Context, id uuid.UUID) (model.Reservation, error) {
	query, args, err := qb.Select(reservationColumns...).
		From(reservationsTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	return r.one(ctx, query, args...)
}

func (r *reservationRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]model.Reservation, error) {
	query, args, err := qb.Select(reservationColumns...).
		From(reservationsTableName).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.many(ctx, query, args...)
}

func (r *reservationRepository) FindActiveByBookID(ctx context.Context, bookID uuid.UUID) (model.Reservation, error) {
	query, args, err := qb.Select(reservationColumns...).
		From(reservationsTableName).
		Where(sq.Eq{"book_id": bookID, "status": model.ReservationActive}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	return r.one(ctx, query, args...)
}

func (r *reservationRepository) FindExpired(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	query, args, err := qb.Select(reservationColumns...).
		From(reservationsTableName).
		Where(sq.Eq{"status": model.ReservationActive}).
		Where(sq.Lt{"expiration_date": now}).
		OrderBy("expiration_date").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.many(ctx, query, args...)
}

func (r *reservationRepository) Update(ctx context.Context, id uuid.UUID, upd model.ReservationUpdate) (model.Reservation, error) {
	query, args, err := qb.Update(reservationsTableName).
		Set("status", upd.Status).
		Set("updated_at", upd.UpdatedAt).
		Where(sq.Eq{"id": id}).
		Suffix("returning " + strings.Join(reservationColumns, ", ")).
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	return r.one(ctx, query, args...)
}

func (r *reservationRepository) one(ctx context.Context, query string, args ...any) (model.Reservation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Reservation{}, mapErr(err)
	}
	res, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Reservation])
	if err != nil {
		return model.Reservation{}, mapErr(err)
	}
	return res, nil
}

func (r *reservationRepository) many(ctx context.Context, query string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Reservation])
	if err != nil {
		return nil, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	return items, nil
}
