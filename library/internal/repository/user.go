package repository

import (
	"context"
	"strings"

	"github.com/Astemirdum/library-management/library/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type userRepository struct {
	db  querier
	log *zap.Logger
}

var userColumns = []string{"id", "email", "password", "name", "role", "is_active", "created_at", "updated_at"}

func (r *userRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	query, args, err := qb.Insert(usersTableName).
		Columns(userColumns...).
		Values(u.ID, u.Email, u.Password, u.Name, u.Role, u.IsActive, u.CreatedAt, u.UpdatedAt).
		Suffix("returning " + strings.Join(userColumns, ", ")).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	return r.one(ctx, query, args...)
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	query, args, err := qb.Select(userColumns...).
		From(usersTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	return r.one(ctx, query, args...)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	query, args, err := qb.Select(userColumns...).
		From(usersTableName).
		Where(sq.Expr("lower(email) = lower(?)", email)).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	return r.one(ctx, query, args...)
}

func (r *userRepository) one(ctx context.Context, query string, args ...any) (model.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.User{}, mapErr(err)
	}
	u, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
	if err != nil {
		return model.User{}, mapErr(err)
	}
	return u, nil
}
